package db

import (
	"context"
	"time"

	"github.com/legendstarrx/scriptsea/internal/models"
)

// ProfileSnapshot is one delivery from a profile change stream. Every snapshot
// carries the full document; Exists is false after the document is deleted.
type ProfileSnapshot struct {
	Profile *models.Profile
	Exists  bool
	Err     error
}

// MutateFunc edits a freshly read profile inside a transaction. Returning an
// error aborts the transaction without writing.
type MutateFunc func(p *models.Profile) error

// ProfileRepository defines storage operations for account profiles.
type ProfileRepository interface {
	GetByID(ctx context.Context, id string) (*models.Profile, error)
	GetByEmail(ctx context.Context, email string) (*models.Profile, error)
	GetByVerificationToken(ctx context.Context, token string) (*models.Profile, error)
	Create(ctx context.Context, p *models.Profile) error
	Mutate(ctx context.Context, id string, fn MutateFunc) (*models.Profile, error)
	Delete(ctx context.Context, id string) error
	// List returns up to limit profiles ordered by ID, starting after the given ID.
	List(ctx context.Context, limit int, startAfter string) ([]*models.Profile, error)
	// Subscribe streams snapshots of one profile until ctx is cancelled.
	Subscribe(ctx context.Context, id string) (<-chan ProfileSnapshot, error)
}

// BannedIPRepository defines storage operations for the IP deny-list.
type BannedIPRepository interface {
	Get(ctx context.Context, ip string) (*models.BannedIP, error)
	Put(ctx context.Context, entry *models.BannedIP) error
	MarkUnbanned(ctx context.Context, ip string, at time.Time) error
	Delete(ctx context.Context, ip string) error
	List(ctx context.Context) ([]*models.BannedIP, error)
}

// PaymentRepository stores payment records alongside the profile change they pay for.
type PaymentRepository interface {
	// ApplyOnce mutates the profile and appends rec in one transaction. It
	// fails with ErrAlreadyExists when rec.Reference was already recorded.
	ApplyOnce(ctx context.Context, rec *models.PaymentRecord, fn MutateFunc) (*models.Profile, error)
	List(ctx context.Context, limit int) ([]*models.PaymentRecord, error)
}

// AuditRepository defines the interface for audit log data storage operations.
type AuditRepository interface {
	Create(ctx context.Context, logEntry models.AuditLog) error
}
