// Package gateway verifies payment gateway webhooks and normalizes them into
// core.PaymentEvent values.
package gateway

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/legendstarrx/scriptsea/internal/core"
)

// PaystackSignatureHeader carries the hex HMAC-SHA512 of the raw body.
const PaystackSignatureHeader = "x-paystack-signature"

const (
	paystackChargeSuccess       = "charge.success"
	paystackSubscriptionDisable = "subscription.disable"
)

type paystackEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type paystackCustomer struct {
	Email string `json:"email"`
}

type paystackCharge struct {
	Reference string           `json:"reference"`
	Status    string           `json:"status"`
	Amount    int64            `json:"amount"`
	Currency  string           `json:"currency"`
	PaidAt    string           `json:"paid_at"`
	Customer  paystackCustomer `json:"customer"`
	Metadata  json.RawMessage  `json:"metadata"`
}

type paystackSubscription struct {
	SubscriptionCode string           `json:"subscription_code"`
	Customer         paystackCustomer `json:"customer"`
}

type paystackMetadata struct {
	UserID    string `json:"userId"`
	PriceCode string `json:"priceCode"`
}

// Paystack verifies Paystack webhooks with the account secret key.
type Paystack struct {
	secretKey string
}

// NewPaystack creates a Paystack verifier.
func NewPaystack(secretKey string) *Paystack {
	return &Paystack{secretKey: secretKey}
}

func (p *Paystack) Gateway() string { return "paystack" }

// Sign returns the signature Paystack sends for payload.
func (p *Paystack) Sign(payload []byte) string {
	mac := hmac.New(sha512.New, []byte(p.secretKey))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks the signature and decodes the event. Unhandled event types
// and unsuccessful charges yield a nil event.
func (p *Paystack) Verify(payload []byte, header http.Header) (*core.PaymentEvent, error) {
	if p.secretKey == "" {
		return nil, fmt.Errorf("%w: paystack secret not configured", core.ErrPaymentVerificationFailed)
	}
	got, err := hex.DecodeString(header.Get(PaystackSignatureHeader))
	if err != nil || len(got) == 0 {
		return nil, fmt.Errorf("%w: missing or malformed paystack signature", core.ErrPaymentVerificationFailed)
	}
	want, _ := hex.DecodeString(p.Sign(payload))
	if !hmac.Equal(got, want) {
		return nil, fmt.Errorf("%w: paystack signature mismatch", core.ErrPaymentVerificationFailed)
	}

	var env paystackEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("%w: decode paystack event: %v", core.ErrPaymentVerificationFailed, err)
	}
	switch env.Event {
	case paystackChargeSuccess:
		return p.charge(env.Data)
	case paystackSubscriptionDisable:
		var sub paystackSubscription
		if err := json.Unmarshal(env.Data, &sub); err != nil {
			return nil, fmt.Errorf("%w: decode paystack subscription: %v", core.ErrPaymentVerificationFailed, err)
		}
		return &core.PaymentEvent{
			Gateway:        p.Gateway(),
			Kind:           core.SubscriptionCancelled,
			Reference:      sub.SubscriptionCode,
			Email:          sub.Customer.Email,
			SubscriptionID: sub.SubscriptionCode,
		}, nil
	}
	return nil, nil
}

func (p *Paystack) charge(data json.RawMessage) (*core.PaymentEvent, error) {
	var ch paystackCharge
	if err := json.Unmarshal(data, &ch); err != nil {
		return nil, fmt.Errorf("%w: decode paystack charge: %v", core.ErrPaymentVerificationFailed, err)
	}
	if ch.Status != "" && ch.Status != "success" {
		return nil, nil
	}
	ev := &core.PaymentEvent{
		Gateway:   p.Gateway(),
		Kind:      core.PaymentSucceeded,
		Reference: ch.Reference,
		Email:     ch.Customer.Email,
		Amount:    ch.Amount,
		Currency:  ch.Currency,
	}
	if md, ok := decodeMetadata(ch.Metadata); ok {
		ev.UserID = md.UserID
		ev.PriceCode = md.PriceCode
	}
	if ch.PaidAt != "" {
		if t, err := time.Parse(time.RFC3339, ch.PaidAt); err == nil {
			ev.PaidAt = t
		}
	}
	return ev, nil
}

// decodeMetadata accepts metadata sent either as an object or as a JSON
// encoded string, both of which Paystack emits.
func decodeMetadata(raw json.RawMessage) (paystackMetadata, bool) {
	var md paystackMetadata
	if len(raw) == 0 {
		return md, false
	}
	if err := json.Unmarshal(raw, &md); err == nil {
		return md, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil || s == "" {
		return md, false
	}
	if err := json.Unmarshal([]byte(s), &md); err != nil {
		return md, false
	}
	return md, true
}

var _ core.WebhookVerifier = (*Paystack)(nil)
