// Package credential holds the format rules for voter-supplied identifiers
// and secrets. Everything here is a pure function: no I/O, no stored state.
// Normalization must be applied consistently everywhere an identifier is
// stored or compared, or the uniqueness checks in the identity store break.
package credential

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

var (
	// Indian electoral-roll ID: 3 letters + 7 digits (e.g. ABC1234567).
	voterIDPattern = regexp.MustCompile(`^[A-Z]{3}[0-9]{7}$`)

	// Indian mobile: optional +91/91 prefix, then 10 digits starting 6-9.
	mobilePatterns = []*regexp.Regexp{
		regexp.MustCompile(`^\+91[6-9]\d{9}$`),
		regexp.MustCompile(`^91[6-9]\d{9}$`),
		regexp.MustCompile(`^[6-9]\d{9}$`),
	}

	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	otpPattern   = regexp.MustCompile(`^\d{6}$`)

	nonDialRunes = regexp.MustCompile(`[^\d+]`)
)

var indianStates = map[string]bool{
	"Andhra Pradesh": true, "Arunachal Pradesh": true, "Assam": true,
	"Bihar": true, "Chhattisgarh": true, "Goa": true, "Gujarat": true,
	"Haryana": true, "Himachal Pradesh": true, "Jharkhand": true,
	"Karnataka": true, "Kerala": true, "Madhya Pradesh": true,
	"Maharashtra": true, "Manipur": true, "Meghalaya": true, "Mizoram": true,
	"Nagaland": true, "Odisha": true, "Punjab": true, "Rajasthan": true,
	"Sikkim": true, "Tamil Nadu": true, "Telangana": true, "Tripura": true,
	"Uttar Pradesh": true, "Uttarakhand": true,
	"West Bengal": true, "Andaman and Nicobar Islands": true,
	"Chandigarh": true, "Dadra and Nagar Haveli and Daman and Diu": true,
	"Delhi": true, "Jammu and Kashmir": true, "Ladakh": true,
	"Lakshadweep": true, "Puducherry": true,
}

// Result carries a validity flag plus a human-readable reason on failure.
type Result struct {
	Valid  bool
	Reason string
}

func ok() Result                { return Result{Valid: true} }
func fail(reason string) Result { return Result{Reason: reason} }

// ValidateVoterID checks the normalized form against the electoral-roll
// ID format.
func ValidateVoterID(raw string) Result {
	if raw == "" {
		return fail("voter ID is required")
	}
	if !voterIDPattern.MatchString(NormalizeVoterID(raw)) {
		return fail("invalid voter ID format, expected 3 letters followed by 7 digits (e.g. ABC1234567)")
	}
	return ok()
}

// ValidateMobile accepts any representation that normalizes to a valid
// Indian mobile number.
func ValidateMobile(raw string) Result {
	if raw == "" {
		return fail("mobile number is required")
	}
	clean := nonDialRunes.ReplaceAllString(raw, "")
	for _, p := range mobilePatterns {
		if p.MatchString(clean) {
			return ok()
		}
	}
	return fail("invalid mobile number, expected a valid Indian mobile number")
}

func ValidateEmail(raw string) Result {
	if raw == "" {
		return fail("email is required")
	}
	if !emailPattern.MatchString(raw) {
		return fail("invalid email format")
	}
	return ok()
}

// ValidatePassword enforces length 8-128 and membership of all four
// character classes.
func ValidatePassword(password string) Result {
	if password == "" {
		return fail("password is required")
	}
	if len(password) < 8 {
		return fail("password must be at least 8 characters long")
	}
	if len(password) > 128 {
		return fail("password must be less than 128 characters")
	}
	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= '0' && r <= '9':
			hasDigit = true
		case strings.ContainsRune(`!@#$%^&*()_+-=[]{};':"\|,.<>/?`, r):
			hasSpecial = true
		}
	}
	if !hasUpper || !hasLower || !hasDigit || !hasSpecial {
		return fail("password must contain at least one uppercase letter, one lowercase letter, one digit, and one special character")
	}
	return ok()
}

// ValidateOTP checks the code shape only; matching against a stored code is
// the OTP authenticator's job.
func ValidateOTP(raw string) Result {
	if raw == "" {
		return fail("OTP is required")
	}
	if !otpPattern.MatchString(strings.ReplaceAll(raw, " ", "")) {
		return fail("OTP must be 6 digits")
	}
	return ok()
}

func ValidateState(state string) Result {
	if state == "" {
		return fail("state is required")
	}
	if !indianStates[state] {
		return fail("invalid state name")
	}
	return ok()
}

// NormalizeMobile canonicalizes to +91XXXXXXXXXX.
func NormalizeMobile(raw string) string {
	clean := nonDialRunes.ReplaceAllString(raw, "")
	switch {
	case strings.HasPrefix(clean, "+91"):
		return clean
	case strings.HasPrefix(clean, "91") && len(clean) == 12:
		return "+" + clean
	case len(clean) == 10:
		return "+91" + clean
	}
	return clean
}

// NormalizeVoterID strips whitespace and upper-cases.
func NormalizeVoterID(raw string) string {
	return strings.ToUpper(strings.ReplaceAll(raw, " ", ""))
}

// HashIdentifier returns the hex SHA-256 of a normalized identifier, used to
// index voters without storing the raw electoral-roll ID.
func HashIdentifier(normalized string) string {
	h := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(h[:])
}
