package core

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/legendstarrx/scriptsea/internal/db"
	"github.com/legendstarrx/scriptsea/internal/models"
)

// Default and maximum page sizes for admin listings.
const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// ErrBanNotFound is returned when unbanning an address that is not listed.
var ErrBanNotFound = errors.New("ip ban not found")

// AdminService implements the admin surface. Callers are authorized by the
// admin middleware; actor is the admin email recorded in the audit log.
type AdminService struct {
	profiles  db.ProfileRepository
	bannedIPs db.BannedIPRepository
	ledger    *QuotaLedger
	payments  *PaymentService
	identity  IdentityProvider
	source    *ProfileSource
	policy    *PolicyEvaluator
	audit     *AuditService
	logger    *zap.Logger
	now       func() time.Time
}

// NewAdminService creates an AdminService.
func NewAdminService(profiles db.ProfileRepository, bannedIPs db.BannedIPRepository, ledger *QuotaLedger, payments *PaymentService,
	identity IdentityProvider, source *ProfileSource, policy *PolicyEvaluator, audit *AuditService, logger *zap.Logger) *AdminService {
	return &AdminService{
		profiles:  profiles,
		bannedIPs: bannedIPs,
		ledger:    ledger,
		payments:  payments,
		identity:  identity,
		source:    source,
		policy:    policy,
		audit:     audit,
		logger:    logger.Named("admin"),
		now:       time.Now,
	}
}

func clampPageSize(limit int) int {
	if limit <= 0 {
		return DefaultPageSize
	}
	if limit > MaxPageSize {
		return MaxPageSize
	}
	return limit
}

// ListUsers returns one page of profiles and the cursor of the next page.
func (s *AdminService) ListUsers(ctx context.Context, limit int, cursor string) ([]*models.Profile, string, error) {
	limit = clampPageSize(limit)
	profiles, err := s.profiles.List(ctx, limit, cursor)
	if err != nil {
		return nil, "", storeErr(err, "list users")
	}
	for _, p := range profiles {
		p.IsAdmin = s.policy.IsAdmin(p.Email)
	}
	next := ""
	if len(profiles) == limit {
		next = profiles[len(profiles)-1].ID
	}
	return profiles, next, nil
}

// UpdatePlan overrides the plan of uid with a fresh quota.
func (s *AdminService) UpdatePlan(ctx context.Context, actor, uid string, plan models.Plan) (*models.Profile, error) {
	p, err := s.ledger.ApplyPlanChange(ctx, uid, plan)
	if err != nil {
		return nil, err
	}
	s.record(ctx, actor, models.AuditActionPlanOverride, "USER", uid, map[string]interface{}{"plan": string(plan)})
	return p, nil
}

// SetBanned bans or unbans an account. Banning also revokes its sessions.
func (s *AdminService) SetBanned(ctx context.Context, actor, uid string, banned bool) (*models.Profile, error) {
	p, err := s.profiles.Mutate(ctx, uid, func(p *models.Profile) error {
		p.IsBanned = banned
		p.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return nil, storeErr(err, "set banned on %s", uid)
	}
	action := models.AuditActionAccountUnban
	if banned {
		action = models.AuditActionAccountBan
		if err := s.identity.SignOut(ctx, uid); err != nil {
			return p, fmt.Errorf("revoke sessions of banned account %s: %w", uid, err)
		}
		s.source.Forget(ctx, uid)
	}
	s.record(ctx, actor, action, "USER", uid, nil)
	return p, nil
}

// DeleteUser removes the identity account, the profile and its cached snapshot.
func (s *AdminService) DeleteUser(ctx context.Context, actor, uid string) error {
	if err := s.identity.DeleteAccount(ctx, uid); err != nil && !errors.Is(err, ErrProfileNotFound) {
		return fmt.Errorf("delete identity account %s: %w", uid, err)
	}
	if err := s.profiles.Delete(ctx, uid); err != nil {
		return storeErr(err, "delete profile %s", uid)
	}
	s.source.Forget(ctx, uid)
	s.record(ctx, actor, models.AuditActionAccountDelete, "USER", uid, nil)
	return nil
}

// RevokeSessions invalidates every outstanding token of uid and drops its cached profile.
func (s *AdminService) RevokeSessions(ctx context.Context, actor, uid string) error {
	if err := s.identity.SignOut(ctx, uid); err != nil {
		return fmt.Errorf("revoke sessions of %s: %w", uid, err)
	}
	s.source.Forget(ctx, uid)
	s.record(ctx, actor, models.AuditActionRevokeSessions, "USER", uid, nil)
	return nil
}

// BanIP adds ip to the deny-list, replacing any stale entry.
func (s *AdminService) BanIP(ctx context.Context, actor, ip, reason string) (*models.BannedIP, error) {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return nil, fmt.Errorf("%w: %q is not an IP address", ErrInvalidInput, ip)
	}
	entry := &models.BannedIP{
		IP:       parsed.String(),
		Reason:   reason,
		BannedBy: actor,
		BannedAt: s.now(),
	}
	if err := s.bannedIPs.Put(ctx, entry); err != nil {
		return nil, storeErr(err, "ban ip %s", entry.IP)
	}
	s.record(ctx, actor, models.AuditActionIPBan, "IP", entry.IP, map[string]interface{}{"reason": reason})
	return entry, nil
}

// UnbanIP marks the entry with unbannedAt; the next check of that address deletes it.
func (s *AdminService) UnbanIP(ctx context.Context, actor, ip string) error {
	if parsed := net.ParseIP(ip); parsed != nil {
		ip = parsed.String()
	}
	err := s.bannedIPs.MarkUnbanned(ctx, ip, s.now())
	if errors.Is(err, db.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrBanNotFound, ip)
	}
	if err != nil {
		return storeErr(err, "unban ip %s", ip)
	}
	s.record(ctx, actor, models.AuditActionIPUnban, "IP", ip, nil)
	return nil
}

// ListBannedIPs returns every deny-list entry, including stale ones.
func (s *AdminService) ListBannedIPs(ctx context.Context) ([]*models.BannedIP, error) {
	entries, err := s.bannedIPs.List(ctx)
	if err != nil {
		return nil, storeErr(err, "list banned ips")
	}
	return entries, nil
}

// ListPayments returns recent payment records for reporting.
func (s *AdminService) ListPayments(ctx context.Context, limit int) ([]*models.PaymentRecord, error) {
	return s.payments.ListPayments(ctx, clampPageSize(limit))
}

func (s *AdminService) record(ctx context.Context, actor, action, targetType, targetID string, details map[string]interface{}) {
	s.logger.Info("admin action", zap.String("actor", actor), zap.String("action", action), zap.String("target", targetID))
	s.audit.Record(ctx, models.AuditLog{
		UserID:     actor,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Details:    details,
	})
}
