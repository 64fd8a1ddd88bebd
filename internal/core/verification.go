package core

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/legendstarrx/scriptsea/internal/db"
	"github.com/legendstarrx/scriptsea/internal/models"
)

const (
	// VerificationTokenTTL is how long an issued token stays valid.
	VerificationTokenTTL   = 24 * time.Hour
	verificationTokenBytes = 32
)

// GenerateVerificationToken returns 256 bits of randomness, hex encoded.
func GenerateVerificationToken() (string, error) {
	b := make([]byte, verificationTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate verification token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// VerificationService issues and consumes single-use email verification tokens
// embedded in the profile document.
type VerificationService struct {
	profiles db.ProfileRepository
	notifier AccountNotifier
	baseURL  string
	logger   *zap.Logger
	now      func() time.Time
}

// NewVerificationService creates a VerificationService. Links point at baseURL + "/verify".
func NewVerificationService(profiles db.ProfileRepository, notifier AccountNotifier, baseURL string, logger *zap.Logger) *VerificationService {
	return &VerificationService{
		profiles: profiles,
		notifier: notifier,
		baseURL:  strings.TrimRight(baseURL, "/"),
		logger:   logger.Named("verification"),
		now:      time.Now,
	}
}

// Link builds the verification URL carrying token.
func (s *VerificationService) Link(token string) string {
	return s.baseURL + "/verify?token=" + url.QueryEscape(token)
}

// Issue stores a fresh token on the profile and emails the link. A token that
// was stored but whose email failed stays valid; Resend replaces it.
func (s *VerificationService) Issue(ctx context.Context, profileID string) (*models.Profile, error) {
	token, err := GenerateVerificationToken()
	if err != nil {
		return nil, err
	}
	expiry := s.now().Add(VerificationTokenTTL)

	p, err := s.profiles.Mutate(ctx, profileID, func(p *models.Profile) error {
		if p.EmailVerified {
			return ErrAlreadyVerified
		}
		p.VerificationToken = &token
		p.VerificationTokenExpiry = &expiry
		p.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return nil, storeErr(err, "issue verification token for %s", profileID)
	}

	if err := s.notifier.SendVerification(ctx, p.Email, s.Link(token)); err != nil {
		return p, fmt.Errorf("send verification email to %s: %w", p.Email, err)
	}
	s.logger.Info("verification token issued", zap.String("uid", profileID))
	return p, nil
}

// Consume marks the matching profile verified. The token must match exactly
// and be unexpired at the moment of the transactional write; it is cleared in
// the same write so it can never match again.
func (s *VerificationService) Consume(ctx context.Context, token string) (*models.Profile, error) {
	if token == "" {
		return nil, ErrTokenExpiredOrInvalid
	}
	candidate, err := s.profiles.GetByVerificationToken(ctx, token)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrTokenExpiredOrInvalid
	}
	if err != nil {
		return nil, storeErr(err, "look up verification token")
	}

	p, err := s.profiles.Mutate(ctx, candidate.ID, func(p *models.Profile) error {
		pending := p.PendingToken()
		if pending == "" || subtle.ConstantTimeCompare([]byte(pending), []byte(token)) != 1 {
			return ErrTokenExpiredOrInvalid
		}
		if p.VerificationTokenExpiry == nil || !s.now().Before(*p.VerificationTokenExpiry) {
			return ErrTokenExpiredOrInvalid
		}
		p.EmailVerified = true
		p.VerificationToken = nil
		p.VerificationTokenExpiry = nil
		p.UpdatedAt = s.now()
		return nil
	})
	if errors.Is(err, ErrTokenExpiredOrInvalid) {
		return nil, ErrTokenExpiredOrInvalid
	}
	if err != nil {
		return nil, storeErr(err, "consume verification token")
	}
	s.logger.Info("email verified", zap.String("uid", p.ID))
	return p, nil
}

// Resend issues a new token for the unverified account registered under email.
func (s *VerificationService) Resend(ctx context.Context, email string) error {
	p, err := s.profiles.GetByEmail(ctx, email)
	if err != nil {
		return storeErr(err, "resend verification")
	}
	if p.AuthProvider != "" && p.AuthProvider != models.ProviderPassword {
		return ErrAlreadyVerified
	}
	_, err = s.Issue(ctx, p.ID)
	return err
}
