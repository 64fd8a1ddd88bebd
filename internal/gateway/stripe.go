package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/legendstarrx/scriptsea/internal/core"
)

// StripeSignatureHeader is the header Stripe signs webhook deliveries in.
const StripeSignatureHeader = "Stripe-Signature"

// Metadata keys set on Stripe checkout sessions and subscriptions.
const (
	metadataUserID    = "userId"
	metadataPriceCode = "priceCode"
)

// Stripe verifies Stripe webhooks with the endpoint signing secret.
type Stripe struct {
	webhookSecret string
}

// NewStripe creates a Stripe verifier.
func NewStripe(webhookSecret string) *Stripe {
	return &Stripe{webhookSecret: webhookSecret}
}

func (s *Stripe) Gateway() string { return "stripe" }

// Verify checks the Stripe-Signature header and normalizes the handled
// event types. Other event types yield a nil event.
func (s *Stripe) Verify(payload []byte, header http.Header) (*core.PaymentEvent, error) {
	if s.webhookSecret == "" {
		return nil, fmt.Errorf("%w: stripe secret not configured", core.ErrPaymentVerificationFailed)
	}
	event, err := webhook.ConstructEventWithOptions(payload, header.Get(StripeSignatureHeader), s.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrPaymentVerificationFailed, err)
	}
	if event.Data == nil {
		return nil, nil
	}

	switch event.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return nil, fmt.Errorf("%w: decode checkout session: %v", core.ErrPaymentVerificationFailed, err)
		}
		return s.checkoutCompleted(&sess, event.Created), nil
	case "invoice.paid":
		var invoice stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
			return nil, fmt.Errorf("%w: decode invoice: %v", core.ErrPaymentVerificationFailed, err)
		}
		return s.invoicePaid(&invoice, event.Created), nil
	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("%w: decode subscription: %v", core.ErrPaymentVerificationFailed, err)
		}
		ev := &core.PaymentEvent{
			Gateway:        s.Gateway(),
			Kind:           core.SubscriptionCancelled,
			Reference:      event.ID,
			UserID:         sub.Metadata[metadataUserID],
			SubscriptionID: sub.ID,
		}
		if sub.Customer != nil {
			ev.Email = sub.Customer.Email
		}
		return ev, nil
	}
	return nil, nil
}

func (s *Stripe) checkoutCompleted(sess *stripe.CheckoutSession, created int64) *core.PaymentEvent {
	if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		return nil
	}
	ev := &core.PaymentEvent{
		Gateway:   s.Gateway(),
		Kind:      core.PaymentSucceeded,
		Reference: sess.ID,
		UserID:    sess.ClientReferenceID,
		Amount:    sess.AmountTotal,
		Currency:  string(sess.Currency),
		PriceCode: sess.Metadata[metadataPriceCode],
		PaidAt:    unixTime(created),
	}
	if ev.UserID == "" {
		ev.UserID = sess.Metadata[metadataUserID]
	}
	if sess.CustomerDetails != nil {
		ev.Email = sess.CustomerDetails.Email
	}
	if sess.Subscription != nil {
		ev.SubscriptionID = sess.Subscription.ID
	}
	return ev
}

// invoicePaid handles renewals. The first invoice of a subscription is
// already covered by checkout.session.completed.
func (s *Stripe) invoicePaid(invoice *stripe.Invoice, created int64) *core.PaymentEvent {
	if invoice.BillingReason == stripe.InvoiceBillingReasonSubscriptionCreate {
		return nil
	}
	ev := &core.PaymentEvent{
		Gateway:   s.Gateway(),
		Kind:      core.PaymentSucceeded,
		Reference: invoice.ID,
		Email:     invoice.CustomerEmail,
		Amount:    invoice.AmountPaid,
		Currency:  string(invoice.Currency),
		PaidAt:    unixTime(created),
	}
	if invoice.StatusTransitions != nil && invoice.StatusTransitions.PaidAt > 0 {
		ev.PaidAt = unixTime(invoice.StatusTransitions.PaidAt)
	}
	if p := invoice.Parent; p != nil && p.SubscriptionDetails != nil {
		ev.UserID = p.SubscriptionDetails.Metadata[metadataUserID]
		ev.PriceCode = p.SubscriptionDetails.Metadata[metadataPriceCode]
		if p.SubscriptionDetails.Subscription != nil {
			ev.SubscriptionID = p.SubscriptionDetails.Subscription.ID
		}
	}
	return ev
}

func unixTime(sec int64) time.Time {
	if sec <= 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

var _ core.WebhookVerifier = (*Stripe)(nil)
