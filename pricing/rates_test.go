package pricing_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fleetops/rental-engine/pricing"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func decp(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func span(days int) (time.Time, time.Time) {
	start := time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, days)
}

func fullTable() *pricing.RateTable {
	return &pricing.RateTable{
		Hourly:  decp("10"),
		Daily:   decp("50"),
		Weekly:  decp("300"),
		Monthly: decp("1000"),
	}
}

// =============================================================================
// CONTEXT CONSTRUCTION
// =============================================================================

func TestBuildContext_NormalizesNonPositiveRates(t *testing.T) {
	// GIVEN: Zero and negative entered amounts
	// WHEN: Building the context
	// THEN: They normalize to nil ("not provided")

	ctx := pricing.BuildContext(pricing.ContextInput{
		PriceListID: "pl-1",
		Hourly:      decp("0"),
		Daily:       decp("-5"),
		Weekly:      decp("300"),
	})

	if ctx.Panel.Hourly != nil {
		t.Error("zero hourly rate should normalize to nil")
	}
	if ctx.Panel.Daily != nil {
		t.Error("negative daily rate should normalize to nil")
	}
	if ctx.Panel.Weekly == nil || !ctx.Panel.Weekly.Equal(dec("300")) {
		t.Errorf("positive weekly rate should survive, got %v", ctx.Panel.Weekly)
	}
}

func TestBuildContext_LockRatesOnPromo(t *testing.T) {
	// A non-empty promo code locks the rate fields in the UI but never
	// changes bucket selection.

	withPromo := pricing.BuildContext(pricing.ContextInput{PromoCode: "SUMMER10"})
	if !withPromo.LockRatesOnPromo {
		t.Error("promo code should set LockRatesOnPromo")
	}

	withoutPromo := pricing.BuildContext(pricing.ContextInput{})
	if withoutPromo.LockRatesOnPromo {
		t.Error("empty promo code should not set LockRatesOnPromo")
	}
	if !withoutPromo.PreferPanelRates {
		t.Error("PreferPanelRates should always be true")
	}
}

func TestBuildContext_DoesNotAliasInput(t *testing.T) {
	in := pricing.ContextInput{Daily: decp("45")}
	ctx := pricing.BuildContext(in)

	*in.Daily = dec("99")
	if !ctx.Panel.Daily.Equal(dec("45")) {
		t.Errorf("context should copy rates, got %v", ctx.Panel.Daily)
	}
}

// =============================================================================
// BUCKET SELECTION
// =============================================================================

func TestResolveLinePrice_BucketBoundaries(t *testing.T) {
	// GIVEN: All four buckets populated
	// THEN: 29 days -> daily x29, 30 days -> monthly x1, 31 days -> monthly x2

	cases := []struct {
		days       int
		bucket     pricing.RateBucket
		multiplier int64
		price      string
	}{
		{1, pricing.BucketDaily, 1, "50"},
		{6, pricing.BucketDaily, 6, "300"},
		{7, pricing.BucketWeekly, 1, "300"},
		{13, pricing.BucketWeekly, 2, "600"},
		{29, pricing.BucketDaily, 29, "1450"},
		{30, pricing.BucketMonthly, 1, "1000"},
		{31, pricing.BucketMonthly, 2, "2000"},
		{60, pricing.BucketMonthly, 2, "2000"},
		{61, pricing.BucketMonthly, 3, "3000"},
	}

	ctx := pricing.BuildContext(pricing.ContextInput{PriceListID: "pl-1"})
	for _, tc := range cases {
		start, end := span(tc.days)
		got := pricing.ResolveLinePrice(ctx, start, end, fullTable())

		if got.Bucket != tc.bucket {
			t.Errorf("%d days: expected bucket %s, got %s", tc.days, tc.bucket, got.Bucket)
		}
		if got.Multiplier != tc.multiplier {
			t.Errorf("%d days: expected multiplier %d, got %d", tc.days, tc.multiplier, got.Multiplier)
		}
		if !got.LineNetPrice.Equal(dec(tc.price)) {
			t.Errorf("%d days: expected price %s, got %v", tc.days, tc.price, got.LineNetPrice)
		}
	}
}

func TestResolveLinePrice_SubDaySpanBillsOneDay(t *testing.T) {
	// 3h20m ceilings to 4 hours, and days = ceil(4/24) = 1, so even a
	// sub-day span lands in the daily bucket. Any positive span has
	// days >= 1; the hourly branch only fires for zero-hour spans.

	ctx := pricing.BuildContext(pricing.ContextInput{})
	start := time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)
	end := start.Add(3*time.Hour + 20*time.Minute)

	got := pricing.ResolveLinePrice(ctx, start, end, fullTable())

	if got.Bucket != pricing.BucketDaily {
		t.Errorf("expected daily bucket, got %s", got.Bucket)
	}
	if got.Multiplier != 1 {
		t.Errorf("3h20m should bill 1 day, got %d", got.Multiplier)
	}
	if !got.LineNetPrice.Equal(dec("50")) {
		t.Errorf("expected 50, got %v", got.LineNetPrice)
	}
}

func TestResolveLinePrice_ZeroSpanUsesHourlyBucket(t *testing.T) {
	// A zero-length (or inverted) span is the only shape that reaches the
	// hourly branch: hours=0, days=0, multiplier 0, price 0.

	ctx := pricing.BuildContext(pricing.ContextInput{})
	start := time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)

	got := pricing.ResolveLinePrice(ctx, start, start, fullTable())

	if got.Bucket != pricing.BucketHourly {
		t.Errorf("expected hourly bucket, got %s", got.Bucket)
	}
	if got.Multiplier != 0 {
		t.Errorf("expected multiplier 0, got %d", got.Multiplier)
	}
	if !got.LineNetPrice.IsZero() {
		t.Errorf("expected zero price, got %v", got.LineNetPrice)
	}
}

func TestResolveLinePrice_PartialDayRoundsUpToExtraDay(t *testing.T) {
	// 25 elapsed hours is 2 billing days.

	ctx := pricing.BuildContext(pricing.ContextInput{})
	start := time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)
	end := start.Add(25 * time.Hour)

	got := pricing.ResolveLinePrice(ctx, start, end, fullTable())

	if got.Bucket != pricing.BucketDaily {
		t.Errorf("expected daily bucket, got %s", got.Bucket)
	}
	if got.Multiplier != 2 {
		t.Errorf("25 hours should bill 2 days, got %d", got.Multiplier)
	}
}

// =============================================================================
// RATE SOURCE PRECEDENCE
// =============================================================================

func TestResolveLinePrice_PanelBeatsPriceList(t *testing.T) {
	// GIVEN: Both a panel rate and a fallback rate for the selected bucket
	// THEN: The panel value is used and the source reports "panel"

	ctx := pricing.BuildContext(pricing.ContextInput{Daily: decp("42")})
	start, end := span(3)

	got := pricing.ResolveLinePrice(ctx, start, end, fullTable())

	if got.Source != pricing.SourcePanel {
		t.Errorf("expected panel source, got %s", got.Source)
	}
	if !got.LineNetPrice.Equal(dec("126")) {
		t.Errorf("expected 42x3=126, got %v", got.LineNetPrice)
	}
}

func TestResolveLinePrice_FallsBackToPriceList(t *testing.T) {
	ctx := pricing.BuildContext(pricing.ContextInput{Weekly: decp("280")})
	start, end := span(3) // daily bucket; panel has no daily rate

	got := pricing.ResolveLinePrice(ctx, start, end, fullTable())

	if got.Source != pricing.SourcePriceList {
		t.Errorf("expected pricelist source, got %s", got.Source)
	}
	if !got.LineNetPrice.Equal(dec("150")) {
		t.Errorf("expected 50x3=150, got %v", got.LineNetPrice)
	}
}

// =============================================================================
// MISSING RATE POLICY
// =============================================================================

func TestResolveLinePrice_MissingBucketRatePricesZero(t *testing.T) {
	// GIVEN: A 40-day booking with only an hourly rate configured
	// THEN: The monthly bucket is still selected and the line prices at
	//       zero. Bucket selection depends only on elapsed duration.

	ctx := pricing.BuildContext(pricing.ContextInput{Hourly: decp("10")})
	start, end := span(40)

	got := pricing.ResolveLinePrice(ctx, start, end, nil)

	if got.Bucket != pricing.BucketMonthly {
		t.Errorf("expected monthly bucket regardless of configured rates, got %s", got.Bucket)
	}
	if got.Source != pricing.SourceNone {
		t.Errorf("expected none source, got %s", got.Source)
	}
	if !got.LineNetPrice.IsZero() {
		t.Errorf("expected zero price, got %v", got.LineNetPrice)
	}
}

func TestResolveLinePrice_NilFallbackAndEmptyPanel(t *testing.T) {
	ctx := pricing.BuildContext(pricing.ContextInput{})
	start, end := span(2)

	got := pricing.ResolveLinePrice(ctx, start, end, nil)

	if !got.LineNetPrice.IsZero() || got.Source != pricing.SourceNone {
		t.Errorf("no rates anywhere should price zero/none, got %v/%s", got.LineNetPrice, got.Source)
	}
}
