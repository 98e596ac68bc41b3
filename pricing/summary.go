/*
summary.go - Financial rollup

PURPOSE:
  Computes the Summary: the fixed sequence of derived totals for a booking,
  ending in a balance due. Pure, deterministic, no I/O. Recomputed on every
  input change; only GrandTotal/BalanceDue are ever persisted elsewhere.

COMPUTATION ORDER (each step feeds the next, every field rounded to 4dp
half-away-from-zero independently):
   1. BaseRate           sum of line net prices
   2. Promotion          -DiscountValue when a promo code is present
   3. FinalBaseRate      BaseRate + Promotion
   4. MiscTaxable /      selected charges partitioned by taxable flag
      MiscNonTaxable
   5. TaxOnLines         sum of line tax values; the blended rate
                         TaxOnLines/BaseRate prices TaxOnMiscTaxable
   6. PreSubtotal        FinalBaseRate + misc charges + PreAdjustment
   7. DiscountOnSubtotal reserved document-level discount, always zero
   8. Subtotal           PreSubtotal + DiscountOnSubtotal
   9. TaxTotal           TaxOnLines + TaxOnMiscTaxable
  10. EstimatedTotal     Subtotal + TaxTotal
  11. GrandTotal         EstimatedTotal + cancellation fee (post-tax)
  12. BalanceDue         max(GrandTotal - AdvancePaid - SecurityDepositPaid, 0)

MODELING NOTES:
  - Misc charges are never taxed at an explicit rate of their own, only at
    the lines' blended average rate. Deliberate simplification, not a bug.
  - BalanceDue is clamped at zero; overpayment is absorbed, not reported as
    a credit. See clampBalance.

SEE ALSO:
  - types.go: ReservationLine, MiscCharge, Round4
  - rates.go: Produces the line net prices summed here
*/
package pricing

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// SUMMARY - The rollup artifact
// =============================================================================

// Summary holds the fourteen derived fields plus the two payment
// passthroughs. Every field carries exactly 4 decimal digits.
type Summary struct {
	BaseRate      decimal.Decimal
	Promotion     decimal.Decimal
	FinalBaseRate decimal.Decimal

	MiscTaxable    decimal.Decimal
	MiscNonTaxable decimal.Decimal

	TaxOnLines       decimal.Decimal
	TaxOnMiscTaxable decimal.Decimal

	PreSubtotal        decimal.Decimal
	DiscountOnSubtotal decimal.Decimal
	Subtotal           decimal.Decimal

	TaxTotal       decimal.Decimal
	EstimatedTotal decimal.Decimal
	GrandTotal     decimal.Decimal

	AdvancePaid         decimal.Decimal
	SecurityDepositPaid decimal.Decimal
	BalanceDue          decimal.Decimal
}

// SummaryInput carries everything the rollup consumes. Unset decimals are
// zero, which degrades cleanly per the never-fail policy.
type SummaryInput struct {
	Lines             []ReservationLine
	SelectedChargeIDs []string
	Charges           ChargeCatalog

	PromoCode     string
	DiscountValue decimal.Decimal

	PreAdjustment       decimal.Decimal
	AdvancePaid         decimal.Decimal
	SecurityDepositPaid decimal.Decimal
	CancellationFee     decimal.Decimal
}

// ComputeSummary runs the rollup. It never fails: missing charges and empty
// line sets produce zero-valued fields rather than errors.
func ComputeSummary(in SummaryInput) Summary {
	baseRate := decimal.Zero
	taxOnLines := decimal.Zero
	for _, line := range in.Lines {
		baseRate = baseRate.Add(line.LineNetPrice)
		taxOnLines = taxOnLines.Add(line.TaxValue)
	}
	baseRate = Round4(baseRate)
	taxOnLines = Round4(taxOnLines)

	promotion := decimal.Zero
	if in.PromoCode != "" {
		promotion = in.DiscountValue.Neg()
	}
	promotion = Round4(promotion)

	finalBaseRate := Round4(baseRate.Add(promotion))

	// Partition selected charges. Unknown ids are skipped silently: the
	// catalog is externally owned and a stale selection must not fail the
	// quote.
	miscTaxable := decimal.Zero
	miscNonTaxable := decimal.Zero
	for _, id := range in.SelectedChargeIDs {
		charge, ok := in.Charges[id]
		if !ok {
			continue
		}
		if charge.Taxable {
			miscTaxable = miscTaxable.Add(charge.Amount)
		} else {
			miscNonTaxable = miscNonTaxable.Add(charge.Amount)
		}
	}
	miscTaxable = Round4(miscTaxable)
	miscNonTaxable = Round4(miscNonTaxable)

	// Misc charges are taxed at the lines' blended rate, never their own.
	blendedRate := decimal.Zero
	if !baseRate.IsZero() {
		blendedRate = taxOnLines.Div(baseRate)
	}
	taxOnMiscTaxable := Round4(miscTaxable.Mul(blendedRate))

	preSubtotal := Round4(finalBaseRate.Add(miscTaxable).Add(miscNonTaxable).Add(in.PreAdjustment))

	// Reserved for a document-level discount; not wired to any input yet.
	discountOnSubtotal := decimal.Zero

	subtotal := Round4(preSubtotal.Add(discountOnSubtotal))
	taxTotal := Round4(taxOnLines.Add(taxOnMiscTaxable))
	estimatedTotal := Round4(subtotal.Add(taxTotal))

	// Cancellation charges land post-tax and are not taxed themselves.
	grandTotal := Round4(estimatedTotal.Add(in.CancellationFee))

	advancePaid := Round4(in.AdvancePaid)
	securityDepositPaid := Round4(in.SecurityDepositPaid)
	balanceDue := clampBalance(grandTotal.Sub(advancePaid).Sub(securityDepositPaid))

	return Summary{
		BaseRate:            baseRate,
		Promotion:           promotion,
		FinalBaseRate:       finalBaseRate,
		MiscTaxable:         miscTaxable,
		MiscNonTaxable:      miscNonTaxable,
		TaxOnLines:          taxOnLines,
		TaxOnMiscTaxable:    taxOnMiscTaxable,
		PreSubtotal:         preSubtotal,
		DiscountOnSubtotal:  discountOnSubtotal,
		Subtotal:            subtotal,
		TaxTotal:            taxTotal,
		EstimatedTotal:      estimatedTotal,
		GrandTotal:          grandTotal,
		AdvancePaid:         advancePaid,
		SecurityDepositPaid: securityDepositPaid,
		BalanceDue:          balanceDue,
	}
}

// clampBalance floors the balance at zero. Overpayment is absorbed rather
// than surfaced as a credit; a credit signal would hang off this function.
func clampBalance(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return Round4(d)
}
