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

// ProfileSource reads profiles from the remote store and falls back to the
// local cache when the store is unreachable within the timeout.
type ProfileSource struct {
	remote  db.ProfileRepository
	local   *ProfileCache
	timeout time.Duration
	logger  *zap.Logger
}

// NewProfileSource creates a two-tier ProfileSource.
func NewProfileSource(remote db.ProfileRepository, local *ProfileCache, timeout time.Duration, logger *zap.Logger) *ProfileSource {
	return &ProfileSource{remote: remote, local: local, timeout: timeout, logger: logger.Named("profile_source")}
}

// Load returns the profile and whether it came from the cache. A missing
// document yields ErrProfileNotFound. An unreachable store with no cached
// snapshot yields ErrOffline.
func (s *ProfileSource) Load(ctx context.Context, id string) (*models.Profile, bool, error) {
	rctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	p, err := s.remote.GetByID(rctx, id)
	if err == nil {
		if cerr := s.local.Save(ctx, p); cerr != nil {
			s.logger.Warn("failed to cache profile", zap.String("uid", id), zap.Error(cerr))
		}
		return p, false, nil
	}
	if errors.Is(err, db.ErrNotFound) {
		return nil, false, fmt.Errorf("%w: %s", ErrProfileNotFound, id)
	}
	if !errors.Is(err, db.ErrUnavailable) && !errors.Is(rctx.Err(), context.DeadlineExceeded) {
		return nil, false, fmt.Errorf("load profile %s: %w", id, err)
	}

	cached, cerr := s.local.Load(ctx, id)
	if cerr != nil {
		return nil, true, fmt.Errorf("load profile %s: %w: %w", id, ErrOffline, err)
	}
	s.logger.Warn("serving cached profile", zap.String("uid", id), zap.Error(err))
	return cached, true, nil
}

// Remember mirrors a live profile into the cache.
func (s *ProfileSource) Remember(ctx context.Context, p *models.Profile) {
	if err := s.local.Save(ctx, p); err != nil {
		s.logger.Warn("failed to cache profile", zap.String("uid", p.ID), zap.Error(err))
	}
}

// Forget drops the cached profile of id.
func (s *ProfileSource) Forget(ctx context.Context, id string) {
	if err := s.local.Forget(ctx, id); err != nil {
		s.logger.Warn("failed to drop cached profile", zap.String("uid", id), zap.Error(err))
	}
}
