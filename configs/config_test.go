package configs

import (
	"testing"
	"time"
)

func TestLoadCatalogShipped(t *testing.T) {
	c, err := LoadCatalog("plans.yaml")
	if err != nil {
		t.Fatalf("LoadCatalog() error = %v", err)
	}

	p, ok := c.Match(499, "usd", "")
	if !ok {
		t.Fatal("Match(499, usd) found nothing, want pro_monthly")
	}
	if p.Code != "pro_monthly" {
		t.Errorf("Code = %q, want %q", p.Code, "pro_monthly")
	}
	if p.Period() != 30*24*time.Hour {
		t.Errorf("Period() = %v, want 720h", p.Period())
	}
}

func TestCatalogMatch(t *testing.T) {
	c, err := ParseCatalog([]byte(`
prices:
  - {code: a, plan: pro, interval: monthly, amount: 100, currency: ngn, days: 30}
  - {code: b, plan: pro, interval: yearly, amount: 100, currency: NGN, days: 365}
`))
	if err != nil {
		t.Fatalf("ParseCatalog() error = %v", err)
	}

	tests := []struct {
		name     string
		amount   int64
		currency string
		code     string
		want     string
		ok       bool
	}{
		{"first by amount", 100, "NGN", "", "a", true},
		{"code disambiguates", 100, "NGN", "b", "b", true},
		{"wrong amount", 99, "NGN", "", "", false},
		{"wrong currency", 100, "USD", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, ok := c.Match(tt.amount, tt.currency, tt.code)
			if ok != tt.ok || p.Code != tt.want {
				t.Errorf("Match() = (%q, %v), want (%q, %v)", p.Code, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestParseCatalogRejectsUnknownPlan(t *testing.T) {
	_, err := ParseCatalog([]byte("prices:\n  - {code: x, plan: gold, amount: 1, currency: USD, days: 1}\n"))
	if err == nil {
		t.Fatal("ParseCatalog() error = nil, want unknown plan error")
	}
}
