package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/securevoting/backend/internal/application/otp"
	"github.com/securevoting/backend/internal/application/session"
	"github.com/securevoting/backend/internal/config"
	"github.com/securevoting/backend/internal/infrastructure/dynamo"
	jwtinfra "github.com/securevoting/backend/internal/infrastructure/jwt"
	"github.com/securevoting/backend/internal/infrastructure/memory"
	s3infra "github.com/securevoting/backend/internal/infrastructure/s3"
	"github.com/securevoting/backend/internal/infrastructure/smtp"
	"github.com/securevoting/backend/internal/infrastructure/sns"
	transporthttp "github.com/securevoting/backend/internal/transport/http"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()

	deps := &transporthttp.Deps{Candidates: cfg.Candidates}

	var otpStore otp.Store
	var sessionStore session.Store

	switch cfg.StorageBackend {
	case "memory":
		voters := memory.NewVoterStore()
		deps.Voters = voters
		deps.Votes = memory.NewVoteStore(voters)
		otpStore = memory.NewOTPStore()
		sessionStore = memory.NewSessionStore()
	default:
		// Bootstrap DynamoDB tables (creates them if they don't exist).
		dynamoClient := dynamo.NewClient(cfg)
		dynamo.Bootstrap(context.Background(), dynamoClient, cfg.DynamoTables)
		deps.Voters = dynamo.NewVoterRepo(dynamoClient, cfg.DynamoTables.Voters)
		deps.Votes = dynamo.NewVoteRepo(dynamoClient, cfg.DynamoTables.Votes, cfg.DynamoTables.Voters)
		otpStore = dynamo.NewOTPRepo(dynamoClient, cfg.DynamoTables.OTPCodes)
		sessionStore = dynamo.NewSessionRepo(dynamoClient, cfg.DynamoTables.Sessions)
	}

	jwtProvider, err := jwtinfra.NewProvider(cfg.SessionSecret, cfg.SessionTTL)
	if err != nil {
		log.Fatalf("JWT provider: %v", err)
	}

	// S3 audit-snapshot archive.
	s3Client := s3infra.NewClient(cfg)
	deps.Archive = s3infra.NewArchive(s3Client, cfg.AuditBucketName)

	// SMTP mailer.
	deps.Mailer = smtp.NewMailer(cfg)

	// SNS SMS sender (OTP delivery is mandatory — fail hard if unavailable).
	smsSender, err := sns.NewSender(cfg)
	if err != nil {
		log.Fatalf("SNS sender: %v", err)
	}
	deps.SMSSender = smsSender

	deps.OTP = otp.NewService(otp.ServiceDeps{
		Store:      otpStore,
		SMSSender:  smsSender,
		CodeLength: cfg.OTPLength,
		TTL:        cfg.OTPTTL,
		Cooldown:   cfg.OTPCooldown,
	})
	deps.Sessions = session.NewService(session.ServiceDeps{
		Store:    sessionStore,
		Provider: jwtProvider,
	})

	// Sweep expired OTP codes and session records in the background.
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-ticker.C:
				if err := deps.OTP.Sweep(sweepCtx); err != nil {
					log.Printf("WARN: otp sweep: %v", err)
				}
				if err := deps.Sessions.Sweep(sweepCtx); err != nil {
					log.Printf("WARN: session sweep: %v", err)
				}
			}
		}
	}()

	router := transporthttp.NewRouter(cfg, deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s (env=%s, storage=%s)", cfg.AppPort, cfg.AppEnv, cfg.StorageBackend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	stopSweep()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}
	log.Println("Server stopped")
}
