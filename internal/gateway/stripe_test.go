package gateway

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/legendstarrx/scriptsea/internal/core"
)

const stripeSecret = "whsec_scriptsea"

func signedStripe(t *testing.T, secret, body string) http.Header {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(body),
		Secret:    secret,
		Timestamp: time.Now(),
	})
	h := http.Header{}
	h.Set(StripeSignatureHeader, signed.Header)
	return h
}

func stripeEvent(eventType, object string) string {
	return `{"id":"evt_1","object":"event","type":"` + eventType + `","created":1714557600,` +
		`"api_version":"2025-03-31.basil","data":{"object":` + object + `}}`
}

func TestStripeCheckoutCompleted(t *testing.T) {
	s := NewStripe(stripeSecret)
	body := stripeEvent("checkout.session.completed", `{"id":"cs_1","object":"checkout.session",`+
		`"payment_status":"paid","amount_total":499,"currency":"usd","client_reference_id":"u1",`+
		`"metadata":{"priceCode":"pro_monthly"},"customer_details":{"email":"a@scriptsea.test"},`+
		`"subscription":"sub_1"}`)

	ev, err := s.Verify([]byte(body), signedStripe(t, stripeSecret, body))
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if ev == nil {
		t.Fatal("Verify() event = nil")
	}
	want := core.PaymentEvent{
		Gateway:        "stripe",
		Kind:           core.PaymentSucceeded,
		Reference:      "cs_1",
		UserID:         "u1",
		Email:          "a@scriptsea.test",
		Amount:         499,
		Currency:       "usd",
		PriceCode:      "pro_monthly",
		SubscriptionID: "sub_1",
		PaidAt:         time.Unix(1714557600, 0).UTC(),
	}
	if *ev != want {
		t.Errorf("event = %+v, want %+v", *ev, want)
	}
}

func TestStripeUnpaidCheckoutIgnored(t *testing.T) {
	s := NewStripe(stripeSecret)
	body := stripeEvent("checkout.session.completed", `{"id":"cs_2","object":"checkout.session","payment_status":"unpaid"}`)

	ev, err := s.Verify([]byte(body), signedStripe(t, stripeSecret, body))
	if err != nil || ev != nil {
		t.Errorf("Verify() = %+v, %v, want nil, nil", ev, err)
	}
}

func TestStripeInvoicePaid(t *testing.T) {
	s := NewStripe(stripeSecret)
	renewal := stripeEvent("invoice.paid", `{"id":"in_2","object":"invoice","billing_reason":"subscription_cycle",`+
		`"amount_paid":499,"currency":"usd","customer_email":"a@scriptsea.test",`+
		`"parent":{"type":"subscription_details","subscription_details":{"metadata":{"userId":"u1"},"subscription":"sub_1"}}}`)

	ev, err := s.Verify([]byte(renewal), signedStripe(t, stripeSecret, renewal))
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if ev == nil || ev.Reference != "in_2" || ev.UserID != "u1" || ev.SubscriptionID != "sub_1" || ev.Amount != 499 {
		t.Errorf("renewal event = %+v", ev)
	}

	first := stripeEvent("invoice.paid", `{"id":"in_1","object":"invoice","billing_reason":"subscription_create","amount_paid":499}`)
	ev, err = s.Verify([]byte(first), signedStripe(t, stripeSecret, first))
	if err != nil || ev != nil {
		t.Errorf("first invoice = %+v, %v, want nil, nil", ev, err)
	}
}

func TestStripeSubscriptionDeleted(t *testing.T) {
	s := NewStripe(stripeSecret)
	body := stripeEvent("customer.subscription.deleted", `{"id":"sub_1","object":"subscription","metadata":{"userId":"u1"}}`)

	ev, err := s.Verify([]byte(body), signedStripe(t, stripeSecret, body))
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if ev.Kind != core.SubscriptionCancelled || ev.SubscriptionID != "sub_1" || ev.UserID != "u1" {
		t.Errorf("event = %+v", ev)
	}
}

func TestStripeRejectsBadSignature(t *testing.T) {
	s := NewStripe(stripeSecret)
	body := stripeEvent("checkout.session.completed", `{"id":"cs_1"}`)

	for name, header := range map[string]http.Header{
		"missing":      {},
		"wrong secret": signedStripe(t, "whsec_other", body),
	} {
		if _, err := s.Verify([]byte(body), header); !errors.Is(err, core.ErrPaymentVerificationFailed) {
			t.Errorf("%s: Verify() error = %v, want ErrPaymentVerificationFailed", name, err)
		}
	}
}
