package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/legendstarrx/scriptsea/configs"
	"github.com/legendstarrx/scriptsea/internal/db"
	"github.com/legendstarrx/scriptsea/internal/models"
)

// PaymentEventsQueue receives a message for every applied payment event.
const PaymentEventsQueue = "payment_events"

// PaymentEventKind classifies normalized gateway events.
type PaymentEventKind string

const (
	PaymentSucceeded      PaymentEventKind = "payment.succeeded"
	SubscriptionCancelled PaymentEventKind = "subscription.cancelled"
)

// PaymentEvent is a gateway webhook reduced to what the account state needs.
type PaymentEvent struct {
	Gateway        string           `json:"gateway"`
	Kind           PaymentEventKind `json:"kind"`
	Reference      string           `json:"reference"`
	UserID         string           `json:"userId,omitempty"`
	Email          string           `json:"email,omitempty"`
	Amount         int64            `json:"amount"` // minor units
	Currency       string           `json:"currency"`
	PriceCode      string           `json:"priceCode,omitempty"`
	SubscriptionID string           `json:"subscriptionId,omitempty"`
	PaidAt         time.Time        `json:"paidAt"`
}

// WebhookVerifier authenticates a raw gateway webhook. It returns
// ErrPaymentVerificationFailed for a bad signature and a nil event for
// event types that do not affect accounts.
type WebhookVerifier interface {
	Gateway() string
	Verify(payload []byte, header http.Header) (*PaymentEvent, error)
}

// PaymentService applies verified gateway events to profiles. A successful
// charge updates the plan and appends its PaymentRecord in one transaction,
// keyed by the gateway reference so retried webhooks are no-ops.
type PaymentService struct {
	profiles db.ProfileRepository
	payments db.PaymentRepository
	ledger   *QuotaLedger
	catalog  *configs.Catalog
	events   EventPublisher
	logger   *zap.Logger
	now      func() time.Time
}

// NewPaymentService creates a PaymentService. events may be nil.
func NewPaymentService(profiles db.ProfileRepository, payments db.PaymentRepository, ledger *QuotaLedger,
	catalog *configs.Catalog, events EventPublisher, logger *zap.Logger) *PaymentService {
	return &PaymentService{
		profiles: profiles,
		payments: payments,
		ledger:   ledger,
		catalog:  catalog,
		events:   events,
		logger:   logger.Named("payments"),
		now:      time.Now,
	}
}

// HandleWebhook verifies and processes a raw webhook delivery.
func (s *PaymentService) HandleWebhook(ctx context.Context, v WebhookVerifier, payload []byte, header http.Header) error {
	ev, err := v.Verify(payload, header)
	if err != nil {
		return err
	}
	if ev == nil {
		return nil
	}
	return s.Process(ctx, ev)
}

// Process applies ev. A duplicate reference returns ErrDuplicatePayment and changes nothing.
func (s *PaymentService) Process(ctx context.Context, ev *PaymentEvent) error {
	switch ev.Kind {
	case PaymentSucceeded:
		return s.applyPayment(ctx, ev)
	case SubscriptionCancelled:
		return s.cancelSubscription(ctx, ev)
	}
	return fmt.Errorf("%w: unsupported event kind %q", ErrPaymentVerificationFailed, ev.Kind)
}

func (s *PaymentService) resolve(ctx context.Context, ev *PaymentEvent) (*models.Profile, error) {
	var (
		p   *models.Profile
		err error
	)
	switch {
	case ev.UserID != "":
		p, err = s.profiles.GetByID(ctx, ev.UserID)
	case ev.Email != "":
		p, err = s.profiles.GetByEmail(ctx, ev.Email)
	default:
		return nil, fmt.Errorf("%w: event %s names no customer", ErrPaymentVerificationFailed, ev.Reference)
	}
	if err != nil {
		return nil, storeErr(err, "resolve customer of %s", ev.Reference)
	}
	return p, nil
}

func (s *PaymentService) applyPayment(ctx context.Context, ev *PaymentEvent) error {
	if ev.Reference == "" {
		return fmt.Errorf("%w: missing reference", ErrPaymentVerificationFailed)
	}
	price, ok := s.catalog.Match(ev.Amount, ev.Currency, ev.PriceCode)
	if !ok {
		return fmt.Errorf("%w: no plan priced %d %s", ErrPaymentVerificationFailed, ev.Amount, ev.Currency)
	}
	target, err := s.resolve(ctx, ev)
	if err != nil {
		return err
	}

	paidAt := ev.PaidAt
	if paidAt.IsZero() {
		paidAt = s.now()
	}
	rec := &models.PaymentRecord{
		Reference: ev.Reference,
		UserID:    target.ID,
		Email:     target.Email,
		Amount:    ev.Amount,
		Currency:  price.Currency,
		Plan:      price.Plan,
		Interval:  price.Interval,
		Status:    models.PaymentStatusSuccess,
		Gateway:   ev.Gateway,
		Date:      paidAt,
	}

	_, err = s.payments.ApplyOnce(ctx, rec, func(p *models.Profile) error {
		start := paidAt
		if p.SubscriptionEnd != nil && p.SubscriptionEnd.After(start) {
			start = *p.SubscriptionEnd // renewals extend the running period
		}
		end := start.Add(price.Period())
		setPlan(p, price.Plan)
		p.SubscriptionEnd = &end
		if ev.SubscriptionID != "" {
			p.SubscriptionID = ev.SubscriptionID
		}
		p.UpdatedAt = s.now()
		return nil
	})
	if errors.Is(err, db.ErrAlreadyExists) {
		s.logger.Info("duplicate payment ignored", zap.String("reference", ev.Reference))
		return fmt.Errorf("%w: %s", ErrDuplicatePayment, ev.Reference)
	}
	if err != nil {
		return storeErr(err, "apply payment %s", ev.Reference)
	}

	s.logger.Info("payment applied",
		zap.String("reference", ev.Reference),
		zap.String("uid", target.ID),
		zap.String("plan", string(price.Plan)),
		zap.Int64("amount", ev.Amount))
	s.publish(ctx, ev)
	return nil
}

func (s *PaymentService) cancelSubscription(ctx context.Context, ev *PaymentEvent) error {
	target, err := s.resolve(ctx, ev)
	if err != nil {
		return err
	}
	if ev.SubscriptionID != "" && target.SubscriptionID != "" && ev.SubscriptionID != target.SubscriptionID {
		s.logger.Info("ignoring cancellation of superseded subscription",
			zap.String("uid", target.ID), zap.String("subscription", ev.SubscriptionID))
		return nil
	}
	if target.Plan == models.PlanFree {
		return nil
	}
	if _, err := s.ledger.ApplyPlanChange(ctx, target.ID, models.PlanFree); err != nil {
		return err
	}
	s.logger.Info("subscription cancelled", zap.String("uid", target.ID))
	s.publish(ctx, ev)
	return nil
}

func (s *PaymentService) publish(ctx context.Context, ev *PaymentEvent) {
	if s.events == nil {
		return
	}
	body, err := json.Marshal(ev)
	if err != nil {
		s.logger.Warn("failed to encode payment event", zap.Error(err))
		return
	}
	if err := s.events.Publish(ctx, PaymentEventsQueue, body); err != nil {
		s.logger.Warn("failed to publish payment event", zap.String("reference", ev.Reference), zap.Error(err))
	}
}

// ListPayments returns the most recent payment records.
func (s *PaymentService) ListPayments(ctx context.Context, limit int) ([]*models.PaymentRecord, error) {
	records, err := s.payments.List(ctx, limit)
	if err != nil {
		return nil, storeErr(err, "list payments")
	}
	return records, nil
}
