/*
Package pricing provides the deterministic pricing core.

PURPOSE:
  This package contains the pure calculation half of the rental engine:
  rate resolution (which rate bucket applies to a booking span, and at what
  price) and the financial rollup (the fixed sequence of derived totals that
  ends in a balance due).

KEY CONCEPTS IN THIS FILE (types.go):
  - RateTable: Optional per-bucket rates (hourly/daily/weekly/monthly)
  - PricingContext: Resolved pricing policy for one booking attempt
  - ReservationLine: A priced vehicle/date-range allocation
  - MiscCharge: An ancillary charge from an external catalog
  - Round4: The single rounding rule for every monetary field

DESIGN PRINCIPLES:
  1. Purity: Every function here is deterministic with no I/O
  2. Precision: Uses decimal.Decimal to avoid floating-point errors
  3. Totality: Missing inputs degrade to zero-valued outputs, never errors

USAGE:
  ctx := pricing.BuildContext(pricing.ContextInput{
      PriceListID: "pl-standard",
      Daily:       dec("45"),
  })
  price := pricing.ResolveLinePrice(ctx, checkout, checkin, fallback)

SEE ALSO:
  - rates.go: Bucket selection and line price resolution
  - summary.go: Financial rollup
*/
package pricing

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// ROUNDING - One rule for every monetary field
// =============================================================================

// Round4 rounds to 4 decimal places, half away from zero. Every intermediate
// and final field of the rollup is rounded independently with this rule;
// rounding error is never carried forward between fields.
func Round4(d decimal.Decimal) decimal.Decimal {
	return d.Round(4)
}

// =============================================================================
// RATE TABLE - Optional per-bucket rates
// =============================================================================

// RateBucket identifies which duration tier priced a line.
type RateBucket string

const (
	BucketHourly  RateBucket = "hourly"
	BucketDaily   RateBucket = "daily"
	BucketWeekly  RateBucket = "weekly"
	BucketMonthly RateBucket = "monthly"
)

// RateSource reports whether the panel-entered or the price-list rate won.
type RateSource string

const (
	SourcePanel     RateSource = "panel"
	SourcePriceList RateSource = "pricelist"
	// SourceNone means the selected bucket had no configured rate anywhere
	// and the line priced at zero. See priceForMissingRate in rates.go.
	SourceNone RateSource = "none"
)

// RateTable holds the optional rate buckets. A nil field means "not
// configured" - there is no zero-vs-missing ambiguity anywhere downstream.
type RateTable struct {
	Hourly  *decimal.Decimal
	Daily   *decimal.Decimal
	Weekly  *decimal.Decimal
	Monthly *decimal.Decimal

	// Mileage terms travel with the table but do not participate in
	// bucket selection.
	KilometerCharge *decimal.Decimal
	DailyKmAllowed  *decimal.Decimal
}

// =============================================================================
// PRICING CONTEXT - Resolved policy for one booking attempt
// =============================================================================

// PricingContext is rebuilt from current operator input on every change.
// It is a pure function of its inputs and is never persisted.
type PricingContext struct {
	PriceListID string
	PromoCode   string

	// Panel holds the operator-entered rate overrides, already normalized
	// (zero or negative entries become nil).
	Panel RateTable

	// LockRatesOnPromo is true when a non-empty promo code is present. It is
	// a display signal (rate fields become read-only) and does not alter
	// bucket selection.
	LockRatesOnPromo bool

	// PreferPanelRates makes panel-entered rates win over price-list
	// fallbacks when both exist. Currently always true.
	PreferPanelRates bool
}

// =============================================================================
// LINE AND CHARGE INPUTS
// =============================================================================

// ReservationLine is one vehicle/date-range allocation within a booking.
// All amounts are non-negative, 4-decimal precision. Immutable once the
// rollup snapshot feeding an agreement has been committed.
type ReservationLine struct {
	LineNetPrice  decimal.Decimal
	TaxValue      decimal.Decimal
	DiscountValue decimal.Decimal
}

// MiscCharge is a catalog-defined ancillary charge. The catalog is owned
// externally; this core only reads it.
type MiscCharge struct {
	ID      string
	Name    string
	Amount  decimal.Decimal
	Taxable bool
}

// ChargeCatalog is the id -> charge lookup handed to the rollup.
type ChargeCatalog map[string]MiscCharge

// NewChargeCatalog builds a catalog from a slice, last entry wins on
// duplicate ids.
func NewChargeCatalog(charges []MiscCharge) ChargeCatalog {
	c := make(ChargeCatalog, len(charges))
	for _, ch := range charges {
		c[ch.ID] = ch
	}
	return c
}
