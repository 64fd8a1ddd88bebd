package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/legendstarrx/scriptsea/internal/db"
	"github.com/legendstarrx/scriptsea/internal/models"
)

// LimitFor returns the fixed script quota of plan.
func LimitFor(plan models.Plan) int {
	if plan == models.PlanPro {
		return models.ProScriptsLimit
	}
	return models.FreeScriptsLimit
}

// CanGenerate reports whether the profile has a script left.
func CanGenerate(p *models.Profile) bool {
	return p.ScriptsRemaining > 0
}

// Reconcile heals a profile that drifted out of invariant: the limit is reset
// to the plan's value and the remaining count clamped into [0, limit].
// It reports whether anything changed.
func Reconcile(p *models.Profile) bool {
	changed := false
	if !p.Plan.Valid() {
		p.Plan = models.PlanFree
		changed = true
	}
	if limit := LimitFor(p.Plan); p.ScriptsLimit != limit {
		p.ScriptsLimit = limit
		changed = true
	}
	if p.ScriptsRemaining > p.ScriptsLimit {
		p.ScriptsRemaining = p.ScriptsLimit
		changed = true
	}
	if p.ScriptsRemaining < 0 {
		p.ScriptsRemaining = 0
		changed = true
	}
	return changed
}

// setPlan applies a plan change in place. A plan change always grants a full quota.
func setPlan(p *models.Profile, plan models.Plan) {
	p.Plan = plan
	p.ScriptsLimit = LimitFor(plan)
	p.ScriptsRemaining = p.ScriptsLimit
	if plan == models.PlanFree {
		p.SubscriptionEnd = nil
		p.SubscriptionID = ""
	}
}

// QuotaLedger owns every mutation of plan and script counts. Each mutation
// is one store transaction.
type QuotaLedger struct {
	profiles db.ProfileRepository
	now      func() time.Time
}

// NewQuotaLedger creates a QuotaLedger.
func NewQuotaLedger(profiles db.ProfileRepository) *QuotaLedger {
	return &QuotaLedger{profiles: profiles, now: time.Now}
}

// ConsumeOne atomically takes one script. It fails with ErrQuotaExhausted,
// without writing, when none are left.
func (l *QuotaLedger) ConsumeOne(ctx context.Context, id string) (*models.Profile, error) {
	p, err := l.profiles.Mutate(ctx, id, func(p *models.Profile) error {
		Reconcile(p)
		if !CanGenerate(p) {
			return ErrQuotaExhausted
		}
		p.ScriptsRemaining--
		p.UpdatedAt = l.now()
		return nil
	})
	if err != nil {
		return nil, storeErr(err, "consume script for %s", id)
	}
	return p, nil
}

// Refund returns one script taken by ConsumeOne, never exceeding the limit.
func (l *QuotaLedger) Refund(ctx context.Context, id string) (*models.Profile, error) {
	p, err := l.profiles.Mutate(ctx, id, func(p *models.Profile) error {
		p.ScriptsRemaining++
		Reconcile(p)
		p.UpdatedAt = l.now()
		return nil
	})
	if err != nil {
		return nil, storeErr(err, "refund script for %s", id)
	}
	return p, nil
}

// ApplyPlanChange moves the profile to plan with a fresh quota.
func (l *QuotaLedger) ApplyPlanChange(ctx context.Context, id string, plan models.Plan) (*models.Profile, error) {
	if !plan.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPlan, plan)
	}
	p, err := l.profiles.Mutate(ctx, id, func(p *models.Profile) error {
		setPlan(p, plan)
		p.UpdatedAt = l.now()
		return nil
	})
	if err != nil {
		return nil, storeErr(err, "apply plan %s to %s", plan, id)
	}
	return p, nil
}

// ReconcileStored heals the stored profile. Clean documents are not rewritten.
func (l *QuotaLedger) ReconcileStored(ctx context.Context, id string) (*models.Profile, bool, error) {
	changed := false
	p, err := l.profiles.Mutate(ctx, id, func(p *models.Profile) error {
		if !Reconcile(p) {
			return errUnchanged
		}
		changed = true
		p.UpdatedAt = l.now()
		return nil
	})
	if errors.Is(err, errUnchanged) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, storeErr(err, "reconcile %s", id)
	}
	return p, changed, nil
}

// ExpireSubscription downgrades a pro profile whose subscription end has
// passed. It reports whether a downgrade happened.
func (l *QuotaLedger) ExpireSubscription(ctx context.Context, id string) (bool, error) {
	_, err := l.profiles.Mutate(ctx, id, func(p *models.Profile) error {
		now := l.now()
		if p.Plan != models.PlanPro || p.SubscriptionEnd == nil || !now.After(*p.SubscriptionEnd) {
			return errUnchanged
		}
		setPlan(p, models.PlanFree)
		p.UpdatedAt = now
		return nil
	})
	if errors.Is(err, errUnchanged) {
		return false, nil
	}
	if err != nil {
		return false, storeErr(err, "expire subscription of %s", id)
	}
	return true, nil
}
