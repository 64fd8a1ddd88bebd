package core

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/legendstarrx/scriptsea/internal/db"
	"github.com/legendstarrx/scriptsea/internal/models"
)

// Provisioner creates the default profile on first sign-in.
type Provisioner struct {
	profiles     db.ProfileRepository
	admins       AdminRegistry
	verification *VerificationService
	logger       *zap.Logger
	now          func() time.Time
}

// NewProvisioner creates a Provisioner.
func NewProvisioner(profiles db.ProfileRepository, admins AdminRegistry, verification *VerificationService, logger *zap.Logger) *Provisioner {
	return &Provisioner{
		profiles:     profiles,
		admins:       admins,
		verification: verification,
		logger:       logger.Named("provisioner"),
		now:          time.Now,
	}
}

// DefaultProfile is the free-plan profile for a principal signing in for the first time.
func (p *Provisioner) DefaultProfile(principal *Principal) *models.Profile {
	now := p.now()
	return &models.Profile{
		ID:               principal.ID,
		Email:            principal.Email,
		DisplayName:      principal.DisplayName,
		AuthProvider:     principal.Provider,
		Plan:             models.PlanFree,
		ScriptsRemaining: models.FreeScriptsLimit,
		ScriptsLimit:     models.FreeScriptsLimit,
		IsAdmin:          p.admins.IsAdmin(principal.Email),
		EmailVerified:    !principal.RequiresVerification() && principal.EmailVerified,
		CreatedAt:        now,
		LastLogin:        now,
		UpdatedAt:        now,
	}
}

// Create persists the default profile. Losing a creation race to another
// session returns the winner's document. Password accounts get a verification
// email; a delivery failure is logged and does not fail sign-in.
func (p *Provisioner) Create(ctx context.Context, principal *Principal) (*models.Profile, error) {
	prof := p.DefaultProfile(principal)
	err := p.profiles.Create(ctx, prof)
	if errors.Is(err, db.ErrAlreadyExists) {
		existing, gerr := p.profiles.GetByID(ctx, principal.ID)
		if gerr != nil {
			return nil, storeErr(gerr, "reload profile %s", principal.ID)
		}
		return existing, nil
	}
	if err != nil {
		return nil, storeErr(err, "create profile %s", principal.ID)
	}
	p.logger.Info("default profile created", zap.String("uid", prof.ID), zap.String("provider", principal.Provider))

	if principal.RequiresVerification() && p.verification != nil {
		issued, ierr := p.verification.Issue(ctx, prof.ID)
		if ierr != nil {
			p.logger.Warn("verification email not sent", zap.String("uid", prof.ID), zap.Error(ierr))
		}
		if issued != nil {
			prof = issued
		}
	}
	return prof, nil
}
