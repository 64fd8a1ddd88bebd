package core

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/legendstarrx/scriptsea/internal/db"
	"github.com/legendstarrx/scriptsea/internal/models"
)

const cleanupPageSize = 100

// CleanupReport summarizes one cleanup pass.
type CleanupReport struct {
	Scanned    int
	Reconciled int
	Downgraded int
	Failed     int
}

// CleanupJob periodically heals profiles that drifted out of the quota
// invariant and downgrades expired subscriptions.
type CleanupJob struct {
	profiles db.ProfileRepository
	ledger   *QuotaLedger
	logger   *zap.Logger
	now      func() time.Time
}

// NewCleanupJob creates a CleanupJob.
func NewCleanupJob(profiles db.ProfileRepository, ledger *QuotaLedger, logger *zap.Logger) *CleanupJob {
	return &CleanupJob{profiles: profiles, ledger: ledger, logger: logger.Named("cleanup"), now: time.Now}
}

// RunOnce scans every profile. Per-profile failures are counted and logged;
// only a listing failure aborts the pass.
func (j *CleanupJob) RunOnce(ctx context.Context) (CleanupReport, error) {
	var report CleanupReport
	cursor := ""
	for {
		page, err := j.profiles.List(ctx, cleanupPageSize, cursor)
		if err != nil {
			return report, storeErr(err, "cleanup list")
		}
		for _, p := range page {
			report.Scanned++
			now := j.now()
			if p.SubscriptionEnd != nil && now.After(*p.SubscriptionEnd) && p.Plan == models.PlanPro {
				downgraded, err := j.ledger.ExpireSubscription(ctx, p.ID)
				if err != nil {
					report.Failed++
					j.logger.Warn("subscription expiry failed", zap.String("uid", p.ID), zap.Error(err))
					continue
				}
				if downgraded {
					report.Downgraded++
					continue
				}
			}
			if !Reconcile(p.Clone()) {
				continue
			}
			_, changed, err := j.ledger.ReconcileStored(ctx, p.ID)
			if err != nil {
				report.Failed++
				j.logger.Warn("reconcile failed", zap.String("uid", p.ID), zap.Error(err))
				continue
			}
			if changed {
				report.Reconciled++
			}
		}
		if len(page) < cleanupPageSize {
			break
		}
		cursor = page[len(page)-1].ID
	}
	return report, nil
}

// Start runs a pass every interval until ctx is cancelled.
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report, err := j.RunOnce(ctx)
			if err != nil {
				j.logger.Error("cleanup pass failed", zap.Error(err))
				continue
			}
			j.logger.Info("cleanup pass complete",
				zap.Int("scanned", report.Scanned),
				zap.Int("reconciled", report.Reconciled),
				zap.Int("downgraded", report.Downgraded),
				zap.Int("failed", report.Failed))
		}
	}
}
