// Package otp issues and verifies one-time codes for reservation requests.
//
// Codes are short-lived value objects with an explicit expiry and attempt
// counter. The engine only consumes verification results; delivery is a
// black-box Sender capability.
package otp

import "context"

// Status is the structured outcome of a verification attempt. Callers
// branch on these values (e.g. offer "resend code"), so they are data,
// not errors.
type Status string

const (
	StatusVerified        Status = "verified"
	StatusNotFound        Status = "not_found"
	StatusExpired         Status = "expired"
	StatusTooManyAttempts Status = "too_many_attempts"
	StatusWrongCode       Status = "wrong_code"
)

// Result carries the verification outcome. AttemptsLeft is meaningful only
// for StatusWrongCode.
type Result struct {
	Status       Status `json:"status"`
	AttemptsLeft int    `json:"attempts_left,omitempty"`
}

// Verifier checks a one-time code for a phone number.
type Verifier interface {
	Verify(ctx context.Context, phone, code string) (Result, error)
}

// Sender delivers a code to a phone number. The transport (WhatsApp, SMS)
// is outside the engine.
type Sender interface {
	SendCode(ctx context.Context, phone, code string) error
}
