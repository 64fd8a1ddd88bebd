package core

import (
	"errors"
	"fmt"

	"github.com/legendstarrx/scriptsea/internal/db"
)

// Account-state error taxonomy.
var (
	ErrUnauthenticated           = errors.New("unauthenticated")
	ErrBannedAccount             = errors.New("account is banned")
	ErrUnverifiedEmail           = errors.New("email address not verified")
	ErrTokenExpiredOrInvalid     = errors.New("verification token expired or invalid")
	ErrQuotaExhausted            = errors.New("script quota exhausted")
	ErrOffline                   = errors.New("account store unreachable")
	ErrUnauthorized              = errors.New("admin privileges required")
	ErrPaymentVerificationFailed = errors.New("payment verification failed")
)

// Supporting errors.
var (
	ErrProfileNotFound  = errors.New("profile not found")
	ErrIPBanned         = errors.New("IP banned")
	ErrAlreadyVerified  = errors.New("email already verified")
	ErrDuplicatePayment = errors.New("payment already processed")
	ErrInvalidPlan      = errors.New("invalid plan")
	ErrInvalidEmail     = errors.New("invalid email address")
	ErrInvalidInput     = errors.New("invalid input")
)

// errUnchanged aborts a transaction that found nothing to write.
var errUnchanged = errors.New("no change")

// storeErr translates repository errors into the core taxonomy while keeping
// the original chain available to errors.Is.
func storeErr(err error, format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	switch {
	case errors.Is(err, db.ErrUnavailable):
		return fmt.Errorf("%s: %w: %w", msg, ErrOffline, err)
	case errors.Is(err, db.ErrNotFound):
		return fmt.Errorf("%s: %w: %w", msg, ErrProfileNotFound, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// PublicMessage returns the short text shown to end users for err. Auth
// failures stay generic; quota and plan messages are actionable.
func PublicMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrBannedAccount):
		return "Your account has been suspended."
	case errors.Is(err, ErrUnverifiedEmail):
		return "Please verify your email address before signing in."
	case errors.Is(err, ErrTokenExpiredOrInvalid):
		return "This verification link is invalid or has expired."
	case errors.Is(err, ErrQuotaExhausted):
		return "You have no scripts remaining. Upgrade to Pro for 100 scripts."
	case errors.Is(err, ErrIPBanned):
		return "IP banned"
	case errors.Is(err, ErrOffline):
		return "Service temporarily unreachable. Please retry."
	case errors.Is(err, ErrUnauthorized):
		return "Unauthorized"
	case errors.Is(err, ErrUnauthenticated):
		return "Authentication required"
	case errors.Is(err, ErrPaymentVerificationFailed):
		return "Payment could not be verified."
	}
	return "Something went wrong."
}
