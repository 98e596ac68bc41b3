/*
rates.go - Pricing context construction and rate-bucket resolution

PURPOSE:
  Turns raw operator input into a normalized PricingContext, and resolves a
  concrete line price for a booking span. Bucket selection is driven only by
  elapsed duration; which rates happen to be configured never changes the
  tier that is chosen.

BUCKET PRECEDENCE (largest unit first):
  days >= 30  -> monthly, multiplier ceil(days/30)
  days >= 7   -> weekly,  multiplier ceil(days/7)
  days >= 1   -> daily,   multiplier days
  else        -> hourly,  multiplier hours

  hours = ceiling of elapsed whole hours, days = ceil(hours/24).

RATE PRECEDENCE (within the chosen bucket):
  panel-entered rate wins over the price-list fallback when both exist and
  PreferPanelRates is set. The result reports which source was used.

MISSING RATES:
  A bucket with no rate configured prices the line at zero and never raises
  an error; rejecting zero-priced lines is the caller's decision. The policy
  lives in priceForMissingRate so it can be hardened in one place.

SEE ALSO:
  - types.go: RateTable, PricingContext
  - summary.go: Consumes the resolved line prices
*/
package pricing

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CONTEXT CONSTRUCTION
// =============================================================================

// ContextInput is the raw operator input for one booking attempt. Rate
// fields are as-entered: zero or negative entries are treated as not
// provided.
type ContextInput struct {
	PriceListID string
	PromoCode   string

	Hourly  *decimal.Decimal
	Daily   *decimal.Decimal
	Weekly  *decimal.Decimal
	Monthly *decimal.Decimal

	KilometerCharge *decimal.Decimal
	DailyKmAllowed  *decimal.Decimal
}

// BuildContext is pure and total: every input combination yields a valid
// context. Zero-or-negative entered amounts normalize to nil.
func BuildContext(in ContextInput) PricingContext {
	return PricingContext{
		PriceListID: in.PriceListID,
		PromoCode:   in.PromoCode,
		Panel: RateTable{
			Hourly:          normalizeRate(in.Hourly),
			Daily:           normalizeRate(in.Daily),
			Weekly:          normalizeRate(in.Weekly),
			Monthly:         normalizeRate(in.Monthly),
			KilometerCharge: normalizeRate(in.KilometerCharge),
			DailyKmAllowed:  normalizeRate(in.DailyKmAllowed),
		},
		LockRatesOnPromo: in.PromoCode != "",
		PreferPanelRates: true,
	}
}

func normalizeRate(d *decimal.Decimal) *decimal.Decimal {
	if d == nil || !d.IsPositive() {
		return nil
	}
	v := *d
	return &v
}

// =============================================================================
// LINE PRICE RESOLUTION
// =============================================================================

// LinePrice is the outcome of resolving one line against a context.
type LinePrice struct {
	LineNetPrice decimal.Decimal
	Source       RateSource
	Bucket       RateBucket
	Multiplier   int64
}

// ResolveLinePrice resolves the net price for [start, end]. fallback carries
// the price-list rates and may be nil. The function never fails: a span with
// no applicable rate resolves to a zero price with SourceNone.
func ResolveLinePrice(ctx PricingContext, start, end time.Time, fallback *RateTable) LinePrice {
	hours := elapsedWholeHours(start, end)
	days := ceilDiv(hours, 24)

	bucket, multiplier := selectBucket(hours, days)

	var panel, list *decimal.Decimal
	panel = ctx.Panel.rate(bucket)
	if fallback != nil {
		list = fallback.rate(bucket)
	}

	rate, source := chooseRate(panel, list, ctx.PreferPanelRates)
	if rate == nil {
		return LinePrice{
			LineNetPrice: priceForMissingRate(),
			Source:       SourceNone,
			Bucket:       bucket,
			Multiplier:   multiplier,
		}
	}

	return LinePrice{
		LineNetPrice: Round4(rate.Mul(decimal.NewFromInt(multiplier))),
		Source:       source,
		Bucket:       bucket,
		Multiplier:   multiplier,
	}
}

// selectBucket picks the tier from elapsed duration alone. A 40-day booking
// with only an hourly rate configured still selects the monthly bucket and
// prices at zero; see priceForMissingRate. Since days = ceil(hours/24), any
// positive span has days >= 1 and the hourly branch is reached only by
// zero-hour spans, which price at zero.
func selectBucket(hours, days int64) (RateBucket, int64) {
	switch {
	case days >= 30:
		return BucketMonthly, ceilDiv(days, 30)
	case days >= 7:
		return BucketWeekly, ceilDiv(days, 7)
	case days >= 1:
		return BucketDaily, days
	default:
		return BucketHourly, hours
	}
}

// chooseRate applies panel-over-pricelist precedence within a bucket.
func chooseRate(panel, list *decimal.Decimal, preferPanel bool) (*decimal.Decimal, RateSource) {
	if preferPanel {
		if panel != nil {
			return panel, SourcePanel
		}
		if list != nil {
			return list, SourcePriceList
		}
		return nil, SourceNone
	}
	if list != nil {
		return list, SourcePriceList
	}
	if panel != nil {
		return panel, SourcePanel
	}
	return nil, SourceNone
}

// priceForMissingRate is the policy applied when the selected bucket has no
// configured rate anywhere. Parity with the upstream system: the line prices
// at zero and the caller decides whether zero-priced lines are acceptable.
// Replace this with a hard failure without touching bucket selection.
func priceForMissingRate() decimal.Decimal {
	return decimal.Zero
}

func (t RateTable) rate(bucket RateBucket) *decimal.Decimal {
	switch bucket {
	case BucketHourly:
		return t.Hourly
	case BucketDaily:
		return t.Daily
	case BucketWeekly:
		return t.Weekly
	case BucketMonthly:
		return t.Monthly
	default:
		return nil
	}
}

// elapsedWholeHours returns the ceiling of the elapsed hours in [start, end].
// A non-positive span counts as zero hours.
func elapsedWholeHours(start, end time.Time) int64 {
	d := end.Sub(start)
	if d <= 0 {
		return 0
	}
	return int64(math.Ceil(d.Hours()))
}

func ceilDiv(a, b int64) int64 {
	return (a + b - 1) / b
}
