package config

import (
	"encoding/json"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/securevoting/backend/internal/domain"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort string
	AppEnv  string

	// "dynamo" or "memory". Memory keeps everything in-process and is meant
	// for local runs and tests only.
	StorageBackend string

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables

	AuditBucketName string

	SessionSecret string
	SessionTTL    time.Duration

	OTPLength   int
	OTPTTL      time.Duration
	OTPCooldown time.Duration

	SMTPHost     string
	SMTPPort     string
	SMTPFrom     string
	SMTPUsername string
	SMTPPassword string

	SNSRegion string

	Candidates []domain.Candidate

	AllowedOrigins []string // CORS allowed origins
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Voters   string
	OTPCodes string
	Sessions string
	Votes    string
}

// defaultRoster is used when CANDIDATE_ROSTER is not set.
var defaultRoster = []domain.Candidate{
	{ID: 1, Name: "Rajesh Kumar", Party: "Indian National Congress"},
	{ID: 2, Name: "Priya Sharma", Party: "Bharatiya Janata Party"},
	{ID: 3, Name: "Arvind Patel", Party: "Aam Aadmi Party"},
	{ID: 4, Name: "Meera Reddy", Party: "Independent"},
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort:        getEnv("APP_PORT", "3000"),
		AppEnv:         getEnv("APP_ENV", "development"),
		StorageBackend: getEnv("STORAGE_BACKEND", "dynamo"),
		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Voters:   getEnv("DYNAMO_TABLE_VOTERS", "voters"),
			OTPCodes: getEnv("DYNAMO_TABLE_OTP_CODES", "otp_codes"),
			Sessions: getEnv("DYNAMO_TABLE_SESSIONS", "sessions"),
			Votes:    getEnv("DYNAMO_TABLE_VOTES", "votes"),
		},
		AuditBucketName: getEnv("AUDIT_BUCKET_NAME", "ballot-audit"),
		SessionSecret:   getEnv("SESSION_SECRET", "dev-only-secret-change-in-production"),
		SessionTTL:      time.Duration(getEnvInt("SESSION_TTL_HOURS", 24)) * time.Hour,
		OTPLength:       getEnvInt("OTP_LENGTH", 6),
		OTPTTL:          time.Duration(getEnvInt("OTP_TTL_MINUTES", 10)) * time.Minute,
		OTPCooldown:     time.Duration(getEnvInt("OTP_COOLDOWN_SECONDS", 120)) * time.Second,
		SMTPHost:        getEnv("SMTP_HOST", "localhost"),
		SMTPPort:        getEnv("SMTP_PORT", "1025"),
		SMTPFrom:        getEnv("SMTP_FROM", "noreply@securevoting.example"),
		SMTPUsername:    getEnv("SMTP_USERNAME", ""),
		SMTPPassword:    getEnv("SMTP_PASSWORD", ""),
		SNSRegion:       getEnv("SNS_REGION", "us-east-1"),
		Candidates:      loadRoster(),
		AllowedOrigins:  strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
	}
}

// loadRoster parses CANDIDATE_ROSTER as a JSON array of candidates. A broken
// roster is a startup-time configuration error, not something to limp past.
func loadRoster() []domain.Candidate {
	raw := os.Getenv("CANDIDATE_ROSTER")
	if raw == "" {
		return defaultRoster
	}
	var roster []domain.Candidate
	if err := json.Unmarshal([]byte(raw), &roster); err != nil {
		log.Fatalf("invalid CANDIDATE_ROSTER: %v", err)
	}
	if len(roster) == 0 {
		log.Fatal("CANDIDATE_ROSTER must list at least one candidate")
	}
	return roster
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
