package core

import (
	"context"

	"go.uber.org/zap"

	"github.com/legendstarrx/scriptsea/internal/db"
	"github.com/legendstarrx/scriptsea/internal/models"
)

// AuditService records admin and security actions. Audit failures are logged
// and never fail the action being audited.
type AuditService struct {
	auditRepo db.AuditRepository
	logger    *zap.Logger
}

// NewAuditService creates a new AuditService.
func NewAuditService(auditRepo db.AuditRepository, logger *zap.Logger) *AuditService {
	return &AuditService{auditRepo: auditRepo, logger: logger.Named("audit")}
}

// Record stores logEntry.
func (s *AuditService) Record(ctx context.Context, logEntry models.AuditLog) {
	if s == nil || s.auditRepo == nil {
		return
	}
	if err := s.auditRepo.Create(ctx, logEntry); err != nil {
		s.logger.Warn("failed to write audit log",
			zap.String("action", logEntry.Action),
			zap.String("target", logEntry.TargetID),
			zap.Error(err))
	}
}
