package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/legendstarrx/scriptsea/internal/models"
)

// bounded runs fn under a deadline of d. A call cut off by that deadline, and
// not by the caller, is reported as ErrUnavailable.
func bounded(ctx context.Context, d time.Duration, fn func(ctx context.Context) error) error {
	cctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	err := fn(cctx)
	if err == nil || errors.Is(err, ErrUnavailable) {
		return err
	}
	if ctx.Err() == nil && errors.Is(cctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}

type timeoutProfiles struct {
	next ProfileRepository
	d    time.Duration
}

// WithProfileTimeout bounds every call on repo by d. Subscribe is long lived
// and passes through.
func WithProfileTimeout(repo ProfileRepository, d time.Duration) ProfileRepository {
	return &timeoutProfiles{next: repo, d: d}
}

func (r *timeoutProfiles) GetByID(ctx context.Context, id string) (p *models.Profile, err error) {
	err = bounded(ctx, r.d, func(ctx context.Context) error {
		p, err = r.next.GetByID(ctx, id)
		return err
	})
	return p, err
}

func (r *timeoutProfiles) GetByEmail(ctx context.Context, email string) (p *models.Profile, err error) {
	err = bounded(ctx, r.d, func(ctx context.Context) error {
		p, err = r.next.GetByEmail(ctx, email)
		return err
	})
	return p, err
}

func (r *timeoutProfiles) GetByVerificationToken(ctx context.Context, token string) (p *models.Profile, err error) {
	err = bounded(ctx, r.d, func(ctx context.Context) error {
		p, err = r.next.GetByVerificationToken(ctx, token)
		return err
	})
	return p, err
}

func (r *timeoutProfiles) Create(ctx context.Context, p *models.Profile) error {
	return bounded(ctx, r.d, func(ctx context.Context) error {
		return r.next.Create(ctx, p)
	})
}

func (r *timeoutProfiles) Mutate(ctx context.Context, id string, fn MutateFunc) (p *models.Profile, err error) {
	err = bounded(ctx, r.d, func(ctx context.Context) error {
		p, err = r.next.Mutate(ctx, id, fn)
		return err
	})
	return p, err
}

func (r *timeoutProfiles) Delete(ctx context.Context, id string) error {
	return bounded(ctx, r.d, func(ctx context.Context) error {
		return r.next.Delete(ctx, id)
	})
}

func (r *timeoutProfiles) List(ctx context.Context, limit int, startAfter string) (ps []*models.Profile, err error) {
	err = bounded(ctx, r.d, func(ctx context.Context) error {
		ps, err = r.next.List(ctx, limit, startAfter)
		return err
	})
	return ps, err
}

func (r *timeoutProfiles) Subscribe(ctx context.Context, id string) (<-chan ProfileSnapshot, error) {
	return r.next.Subscribe(ctx, id)
}

type timeoutBans struct {
	next BannedIPRepository
	d    time.Duration
}

// WithBannedIPTimeout bounds every call on repo by d.
func WithBannedIPTimeout(repo BannedIPRepository, d time.Duration) BannedIPRepository {
	return &timeoutBans{next: repo, d: d}
}

func (r *timeoutBans) Get(ctx context.Context, ip string) (b *models.BannedIP, err error) {
	err = bounded(ctx, r.d, func(ctx context.Context) error {
		b, err = r.next.Get(ctx, ip)
		return err
	})
	return b, err
}

func (r *timeoutBans) Put(ctx context.Context, entry *models.BannedIP) error {
	return bounded(ctx, r.d, func(ctx context.Context) error {
		return r.next.Put(ctx, entry)
	})
}

func (r *timeoutBans) MarkUnbanned(ctx context.Context, ip string, at time.Time) error {
	return bounded(ctx, r.d, func(ctx context.Context) error {
		return r.next.MarkUnbanned(ctx, ip, at)
	})
}

func (r *timeoutBans) Delete(ctx context.Context, ip string) error {
	return bounded(ctx, r.d, func(ctx context.Context) error {
		return r.next.Delete(ctx, ip)
	})
}

func (r *timeoutBans) List(ctx context.Context) (bs []*models.BannedIP, err error) {
	err = bounded(ctx, r.d, func(ctx context.Context) error {
		bs, err = r.next.List(ctx)
		return err
	})
	return bs, err
}

type timeoutPayments struct {
	next PaymentRepository
	d    time.Duration
}

// WithPaymentTimeout bounds every call on repo by d.
func WithPaymentTimeout(repo PaymentRepository, d time.Duration) PaymentRepository {
	return &timeoutPayments{next: repo, d: d}
}

func (r *timeoutPayments) ApplyOnce(ctx context.Context, rec *models.PaymentRecord, fn MutateFunc) (p *models.Profile, err error) {
	err = bounded(ctx, r.d, func(ctx context.Context) error {
		p, err = r.next.ApplyOnce(ctx, rec, fn)
		return err
	})
	return p, err
}

func (r *timeoutPayments) List(ctx context.Context, limit int) (rs []*models.PaymentRecord, err error) {
	err = bounded(ctx, r.d, func(ctx context.Context) error {
		rs, err = r.next.List(ctx, limit)
		return err
	})
	return rs, err
}

type timeoutAudit struct {
	next AuditRepository
	d    time.Duration
}

// WithAuditTimeout bounds every call on repo by d.
func WithAuditTimeout(repo AuditRepository, d time.Duration) AuditRepository {
	return &timeoutAudit{next: repo, d: d}
}

func (r *timeoutAudit) Create(ctx context.Context, logEntry models.AuditLog) error {
	return bounded(ctx, r.d, func(ctx context.Context) error {
		return r.next.Create(ctx, logEntry)
	})
}
