package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/badoux/checkmail"
	"go.uber.org/zap"

	"github.com/legendstarrx/scriptsea/internal/db"
	"github.com/legendstarrx/scriptsea/internal/models"
)

const minPasswordLength = 6

// SignupInput is a password registration request.
type SignupInput struct {
	Email       string
	Password    string
	DisplayName string
	IP          string
}

// AuthService implements the sign-up, sign-in and self-service checkpoints.
type AuthService struct {
	policy       *PolicyEvaluator
	identity     IdentityProvider
	profiles     db.ProfileRepository
	source       *ProfileSource
	provisioner  *Provisioner
	verification *VerificationService
	notifier     AccountNotifier
	logger       *zap.Logger
	now          func() time.Time
}

// NewAuthService creates an AuthService.
func NewAuthService(policy *PolicyEvaluator, identity IdentityProvider, profiles db.ProfileRepository, source *ProfileSource,
	provisioner *Provisioner, verification *VerificationService, notifier AccountNotifier, logger *zap.Logger) *AuthService {
	return &AuthService{
		policy:       policy,
		identity:     identity,
		profiles:     profiles,
		source:       source,
		provisioner:  provisioner,
		verification: verification,
		notifier:     notifier,
		logger:       logger.Named("auth"),
		now:          time.Now,
	}
}

// CheckIP rejects banned addresses. Any store error is a denial.
func (s *AuthService) CheckIP(ctx context.Context, ip string) error {
	return s.policy.CheckIP(ctx, ip)
}

// Signup creates a password account, its default profile and a verification
// token. The caller is not signed in until the email is verified.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*models.Profile, error) {
	if err := s.policy.CheckIP(ctx, in.IP); err != nil {
		return nil, err
	}
	email := strings.TrimSpace(in.Email)
	if err := checkmail.ValidateFormat(email); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEmail, err)
	}
	if len(in.Password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLength)
	}

	principal, err := s.identity.CreateAccount(ctx, email, in.Password, strings.TrimSpace(in.DisplayName))
	if err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}
	principal.Provider = models.ProviderPassword

	p, err := s.provisioner.Create(ctx, principal)
	if err != nil {
		return nil, err
	}
	if updated, err := s.RecordIP(ctx, p.ID, in.IP); err == nil {
		p = updated
	} else {
		s.logger.Warn("failed to record signup ip", zap.String("uid", p.ID), zap.Error(err))
	}
	return p, nil
}

// Login admits an authenticated principal: IP check, profile load or
// creation, then the access policy. A rejected principal is signed out.
func (s *AuthService) Login(ctx context.Context, principal *Principal, ip string) (*models.Profile, bool, error) {
	if err := s.policy.CheckIP(ctx, ip); err != nil {
		return nil, false, err
	}
	p, offline, err := s.load(ctx, principal)
	if err != nil {
		return nil, offline, err
	}
	if offline {
		return p, true, nil
	}

	updated, err := s.profiles.Mutate(ctx, principal.ID, func(p *models.Profile) error {
		p.LastLogin = s.now()
		if ip != "" {
			p.IPAddress = ip
			p.LastLoginIP = ip
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("failed to record login", zap.String("uid", principal.ID), zap.Error(err))
		return p, false, nil
	}
	updated.IsAdmin = s.policy.IsAdmin(updated.Email)
	return updated, false, nil
}

// Profile returns the caller's profile, falling back to the cache when the
// store is unreachable.
func (s *AuthService) Profile(ctx context.Context, principal *Principal) (*models.Profile, bool, error) {
	return s.load(ctx, principal)
}

func (s *AuthService) load(ctx context.Context, principal *Principal) (*models.Profile, bool, error) {
	p, offline, err := s.source.Load(ctx, principal.ID)
	if errors.Is(err, ErrProfileNotFound) {
		p, err = s.provisioner.Create(ctx, principal)
		offline = false
	}
	if err != nil {
		return nil, offline, err
	}
	if err := s.policy.Enforce(ctx, p, principal); err != nil {
		return nil, offline, err
	}
	p.IsAdmin = s.policy.IsAdmin(p.Email)
	return p, offline, nil
}

// RecordIP stores the address the account last signed in from.
func (s *AuthService) RecordIP(ctx context.Context, uid, ip string) (*models.Profile, error) {
	if ip == "" {
		return nil, fmt.Errorf("%w: empty ip", ErrInvalidInput)
	}
	p, err := s.profiles.Mutate(ctx, uid, func(p *models.Profile) error {
		p.IPAddress = ip
		p.LastLoginIP = ip
		p.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return nil, storeErr(err, "record ip for %s", uid)
	}
	p.IsAdmin = s.policy.IsAdmin(p.Email)
	return p, nil
}

// ResendVerification re-issues a token. Unknown emails succeed silently so
// the endpoint cannot be used to enumerate accounts.
func (s *AuthService) ResendVerification(ctx context.Context, email string) error {
	err := s.verification.Resend(ctx, strings.TrimSpace(email))
	if errors.Is(err, ErrProfileNotFound) {
		return nil
	}
	return err
}

// PasswordReset mails a reset link. Unknown emails succeed silently.
func (s *AuthService) PasswordReset(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if err := checkmail.ValidateFormat(email); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEmail, err)
	}
	link, err := s.identity.PasswordResetLink(ctx, email)
	if errors.Is(err, ErrProfileNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("password reset link: %w", err)
	}
	return s.notifier.SendPasswordReset(ctx, email, link)
}
