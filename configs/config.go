package configs

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/legendstarrx/scriptsea/internal/models"
)

// Price is one purchasable plan option.
type Price struct {
	Code     string      `yaml:"code"`
	Plan     models.Plan `yaml:"plan"`
	Interval string      `yaml:"interval"`
	Amount   int64       `yaml:"amount"` // minor units
	Currency string      `yaml:"currency"`
	Days     int         `yaml:"days"`
}

// Period is the subscription length granted by the price.
func (p Price) Period() time.Duration {
	return time.Duration(p.Days) * 24 * time.Hour
}

// Catalog lists the prices accepted from payment gateways.
type Catalog struct {
	Prices []Price `yaml:"prices"`
}

// LoadCatalog reads a YAML price catalog from path.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan catalog %s: %w", path, err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes and validates a YAML price catalog.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode plan catalog: %w", err)
	}
	if len(c.Prices) == 0 {
		return nil, fmt.Errorf("plan catalog has no prices")
	}
	for i, p := range c.Prices {
		if !p.Plan.Valid() {
			return nil, fmt.Errorf("price %d: unknown plan %q", i, p.Plan)
		}
		if p.Amount <= 0 || p.Days <= 0 {
			return nil, fmt.Errorf("price %d: amount and days must be positive", i)
		}
		c.Prices[i].Currency = strings.ToUpper(p.Currency)
	}
	return &c, nil
}

// Match finds the price for a paid amount. A non-empty code must also match.
func (c *Catalog) Match(amount int64, currency, code string) (Price, bool) {
	currency = strings.ToUpper(currency)
	for _, p := range c.Prices {
		if p.Amount != amount || p.Currency != currency {
			continue
		}
		if code != "" && p.Code != code {
			continue
		}
		return p, true
	}
	return Price{}, false
}
