package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/legendstarrx/scriptsea/internal/db"
	"github.com/legendstarrx/scriptsea/internal/models"
)

// AdminRegistry decides whether an email belongs to an administrator.
type AdminRegistry interface {
	IsAdmin(email string) bool
}

// SingleAdmin is an AdminRegistry holding exactly one admin email, matched
// exactly and case-sensitively.
type SingleAdmin string

func (a SingleAdmin) IsAdmin(email string) bool {
	return a != "" && email == string(a)
}

// Access is the derived view of a profile the rest of the system acts on.
type Access struct {
	Banned   bool
	Admin    bool
	Verified bool
}

// PolicyEvaluator applies the ban, admin and verification rules. Nothing it
// reads is cached: a new ban takes effect on the very next check.
type PolicyEvaluator struct {
	bannedIPs db.BannedIPRepository
	admins    AdminRegistry
	identity  IdentityProvider
	audit     *AuditService
	logger    *zap.Logger
	now       func() time.Time
}

// NewPolicyEvaluator creates a PolicyEvaluator.
func NewPolicyEvaluator(bannedIPs db.BannedIPRepository, admins AdminRegistry, identity IdentityProvider, audit *AuditService, logger *zap.Logger) *PolicyEvaluator {
	return &PolicyEvaluator{
		bannedIPs: bannedIPs,
		admins:    admins,
		identity:  identity,
		audit:     audit,
		logger:    logger.Named("policy"),
		now:       time.Now,
	}
}

// IsAdmin re-derives admin status from the registry. A stored isAdmin flag is never consulted.
func (e *PolicyEvaluator) IsAdmin(email string) bool {
	return e.admins.IsAdmin(email)
}

// Evaluate derives access flags from the profile and, when known, the session principal.
func (e *PolicyEvaluator) Evaluate(p *models.Profile, principal *Principal) Access {
	verified := p.EmailVerified
	if principal != nil && !principal.RequiresVerification() {
		verified = true
	}
	return Access{
		Banned:   p.IsBanned,
		Admin:    e.admins.IsAdmin(p.Email),
		Verified: verified,
	}
}

// Check returns ErrBannedAccount or ErrUnverifiedEmail when the session may not continue.
func (e *PolicyEvaluator) Check(p *models.Profile, principal *Principal) error {
	access := e.Evaluate(p, principal)
	switch {
	case access.Banned:
		return ErrBannedAccount
	case !access.Verified:
		return ErrUnverifiedEmail
	}
	return nil
}

// Enforce runs Check and force-signs-out the principal when it fails.
func (e *PolicyEvaluator) Enforce(ctx context.Context, p *models.Profile, principal *Principal) error {
	err := e.Check(p, principal)
	if err == nil {
		return nil
	}
	uid := p.ID
	if principal != nil {
		uid = principal.ID
	}
	e.ForceSignOut(ctx, uid, err.Error())
	return err
}

// ForceSignOut revokes every session of uid and audits it.
func (e *PolicyEvaluator) ForceSignOut(ctx context.Context, uid, reason string) {
	if err := e.identity.SignOut(ctx, uid); err != nil {
		e.logger.Error("forced sign-out failed", zap.String("uid", uid), zap.Error(err))
	}
	e.audit.Record(ctx, models.AuditLog{
		UserID:     "system",
		Action:     models.AuditActionForcedSignOut,
		TargetType: "USER",
		TargetID:   uid,
		Details:    map[string]interface{}{"reason": reason},
	})
}

// IPIsBanned reports whether ip is on the deny-list. Entries marked with
// unbannedAt are deleted on sight and do not block.
func (e *PolicyEvaluator) IPIsBanned(ctx context.Context, ip string) (bool, error) {
	if ip == "" {
		return false, nil
	}
	entry, err := e.bannedIPs.Get(ctx, ip)
	if errors.Is(err, db.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, storeErr(err, "check banned ip %s", ip)
	}
	if entry.UnbannedAt != nil {
		if err := e.bannedIPs.Delete(ctx, ip); err != nil && !errors.Is(err, db.ErrNotFound) {
			e.logger.Warn("failed to delete stale ip ban", zap.String("ip", ip), zap.Error(err))
		}
		return false, nil
	}
	return true, nil
}

// CheckIP returns ErrIPBanned for a listed address. Store errors are returned
// unchanged and callers must treat any error as a denial.
func (e *PolicyEvaluator) CheckIP(ctx context.Context, ip string) error {
	banned, err := e.IPIsBanned(ctx, ip)
	if err != nil {
		return err
	}
	if banned {
		return fmt.Errorf("%w: %s", ErrIPBanned, ip)
	}
	return nil
}
