/*
Package catalog provides JSON to Go conversion for price lists and misc
charges.

PURPOSE:
  Rate tables and charge catalogs are configuration, not code. Operations
  staff define them in JSON; this package validates the JSON and produces
  the pricing package's types. The JSON also round-trips through the store,
  so definitions live in the database and survive restarts.

JSON SCHEMA (price list):
  {
    "id": "pl-standard",
    "name": "Standard fleet",
    "rates": {
      "hourly": "9.5",
      "daily": "45",
      "weekly": "270",
      "monthly": "950",
      "kilometer_charge": "0.25",
      "daily_km_allowed": "200"
    }
  }

  Rates are decimal strings to avoid float drift in config files. Omitted,
  zero, or negative rates mean "not configured" for that bucket.

JSON SCHEMA (misc charge):
  { "id": "chg-gps", "name": "GPS unit", "amount": "25", "taxable": true }

USAGE:
  pl, err := catalog.ParsePriceList(configJSON)
  price := pricing.ResolveLinePrice(ctx, start, end, &pl.Rates)

SEE ALSO:
  - pricing/types.go: RateTable, MiscCharge
  - store/sqlite: Persists the raw JSON
*/
package catalog

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/fleetops/rental-engine/pricing"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// PriceListJSON is the JSON representation of a price list.
type PriceListJSON struct {
	ID    string    `json:"id"`
	Name  string    `json:"name"`
	Rates RatesJSON `json:"rates"`
}

// RatesJSON carries decimal strings; empty string means not configured.
type RatesJSON struct {
	Hourly          string `json:"hourly,omitempty"`
	Daily           string `json:"daily,omitempty"`
	Weekly          string `json:"weekly,omitempty"`
	Monthly         string `json:"monthly,omitempty"`
	KilometerCharge string `json:"kilometer_charge,omitempty"`
	DailyKmAllowed  string `json:"daily_km_allowed,omitempty"`
}

// ChargeJSON is the JSON representation of a misc charge.
type ChargeJSON struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Amount  string `json:"amount"`
	Taxable bool   `json:"taxable"`
}

// =============================================================================
// PRICE LIST
// =============================================================================

// PriceList is the parsed, validated form.
type PriceList struct {
	ID    string
	Name  string
	Rates pricing.RateTable
}

// ParsePriceList validates a JSON price list definition. Rates that are
// absent, zero, or negative come back nil in the table.
func ParsePriceList(configJSON string) (*PriceList, error) {
	var pj PriceListJSON
	if err := json.Unmarshal([]byte(configJSON), &pj); err != nil {
		return nil, fmt.Errorf("invalid price list JSON: %w", err)
	}
	return FromJSON(pj)
}

// FromJSON converts an already-decoded definition.
func FromJSON(pj PriceListJSON) (*PriceList, error) {
	if pj.ID == "" {
		return nil, fmt.Errorf("price list requires an id")
	}
	if pj.Name == "" {
		pj.Name = pj.ID
	}

	table := pricing.RateTable{}
	fields := []struct {
		raw  string
		name string
		dst  **decimal.Decimal
	}{
		{pj.Rates.Hourly, "hourly", &table.Hourly},
		{pj.Rates.Daily, "daily", &table.Daily},
		{pj.Rates.Weekly, "weekly", &table.Weekly},
		{pj.Rates.Monthly, "monthly", &table.Monthly},
		{pj.Rates.KilometerCharge, "kilometer_charge", &table.KilometerCharge},
		{pj.Rates.DailyKmAllowed, "daily_km_allowed", &table.DailyKmAllowed},
	}
	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := decimal.NewFromString(f.raw)
		if err != nil {
			return nil, fmt.Errorf("price list %s: rate %s: %w", pj.ID, f.name, err)
		}
		if !d.IsPositive() {
			continue
		}
		v := d
		*f.dst = &v
	}

	return &PriceList{ID: pj.ID, Name: pj.Name, Rates: table}, nil
}

// ToJSON serializes a price list back into its config form.
func (p *PriceList) ToJSON() (string, error) {
	pj := PriceListJSON{
		ID:   p.ID,
		Name: p.Name,
		Rates: RatesJSON{
			Hourly:          rateString(p.Rates.Hourly),
			Daily:           rateString(p.Rates.Daily),
			Weekly:          rateString(p.Rates.Weekly),
			Monthly:         rateString(p.Rates.Monthly),
			KilometerCharge: rateString(p.Rates.KilometerCharge),
			DailyKmAllowed:  rateString(p.Rates.DailyKmAllowed),
		},
	}
	b, err := json.Marshal(pj)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func rateString(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.String()
}

// =============================================================================
// MISC CHARGES
// =============================================================================

// ParseCharge validates a JSON misc charge definition.
func ParseCharge(configJSON string) (*pricing.MiscCharge, error) {
	var cj ChargeJSON
	if err := json.Unmarshal([]byte(configJSON), &cj); err != nil {
		return nil, fmt.Errorf("invalid charge JSON: %w", err)
	}
	return ChargeFromJSON(cj)
}

// ChargeFromJSON converts an already-decoded definition.
func ChargeFromJSON(cj ChargeJSON) (*pricing.MiscCharge, error) {
	if cj.ID == "" {
		return nil, fmt.Errorf("charge requires an id")
	}
	amount, err := decimal.NewFromString(cj.Amount)
	if err != nil {
		return nil, fmt.Errorf("charge %s: amount: %w", cj.ID, err)
	}
	if amount.IsNegative() {
		return nil, fmt.Errorf("charge %s: amount must not be negative", cj.ID)
	}
	return &pricing.MiscCharge{
		ID:      cj.ID,
		Name:    cj.Name,
		Amount:  amount,
		Taxable: cj.Taxable,
	}, nil
}
