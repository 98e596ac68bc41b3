/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY ENCODING:
  All monetary values cross the wire as decimal strings ("846.25"), never
  floats. Empty string means "not provided" for optional rate fields.

SEE ALSO:
  - handlers.go: Uses these types
  - catalog/catalog.go: PriceListJSON / ChargeJSON config forms
*/
package api

import (
	"github.com/fleetops/rental-engine/catalog"
)

// =============================================================================
// QUOTE
// =============================================================================

// QuoteRequest carries one booking attempt: the pricing inputs, the span to
// price, and the rollup adjustments.
type QuoteRequest struct {
	PriceListID string `json:"price_list_id"`
	PromoCode   string `json:"promo_code,omitempty"`

	// Panel rate overrides, decimal strings; zero/negative/empty means not
	// provided.
	Hourly          string `json:"hourly,omitempty"`
	Daily           string `json:"daily,omitempty"`
	Weekly          string `json:"weekly,omitempty"`
	Monthly         string `json:"monthly,omitempty"`
	KilometerCharge string `json:"kilometer_charge,omitempty"`
	DailyKmAllowed  string `json:"daily_km_allowed,omitempty"`

	CheckoutAt string `json:"checkout_at"` // RFC3339
	CheckinAt  string `json:"checkin_at"`  // RFC3339

	// TaxValue is the tax on the resolved line, operator-entered.
	TaxValue string `json:"tax_value,omitempty"`

	// LineDiscountValue is an informational discount recorded on the
	// resolved line. Like the discounts on ExtraLines it does not enter the
	// rollup; only DiscountValue (with a promo code) does.
	LineDiscountValue string `json:"line_discount_value,omitempty"`

	// ExtraLines are already-priced lines added to the rollup alongside the
	// resolved one.
	ExtraLines []LineDTO `json:"extra_lines,omitempty"`

	SelectedChargeIDs []string `json:"selected_charge_ids,omitempty"`

	DiscountValue       string `json:"discount_value,omitempty"`
	PreAdjustment       string `json:"pre_adjustment,omitempty"`
	AdvancePaid         string `json:"advance_paid,omitempty"`
	SecurityDepositPaid string `json:"security_deposit_paid,omitempty"`
	CancellationFee     string `json:"cancellation_fee,omitempty"`
}

// LineDTO is a priced line in requests and responses.
type LineDTO struct {
	LineNetPrice  string `json:"line_net_price"`
	TaxValue      string `json:"tax_value,omitempty"`
	DiscountValue string `json:"discount_value,omitempty"`
}

// LinePriceDTO reports how the span was priced.
type LinePriceDTO struct {
	LineNetPrice string `json:"line_net_price"`
	Source       string `json:"source"`
	Bucket       string `json:"bucket"`
	Multiplier   int64  `json:"multiplier"`
}

// SummaryDTO mirrors pricing.Summary field by field.
type SummaryDTO struct {
	BaseRate            string `json:"base_rate"`
	Promotion           string `json:"promotion"`
	FinalBaseRate       string `json:"final_base_rate"`
	MiscTaxable         string `json:"misc_taxable"`
	MiscNonTaxable      string `json:"misc_non_taxable"`
	TaxOnLines          string `json:"tax_on_lines"`
	TaxOnMiscTaxable    string `json:"tax_on_misc_taxable"`
	PreSubtotal         string `json:"pre_subtotal"`
	DiscountOnSubtotal  string `json:"discount_on_subtotal"`
	Subtotal            string `json:"subtotal"`
	TaxTotal            string `json:"tax_total"`
	EstimatedTotal      string `json:"estimated_total"`
	GrandTotal          string `json:"grand_total"`
	AdvancePaid         string `json:"advance_paid"`
	SecurityDepositPaid string `json:"security_deposit_paid"`
	BalanceDue          string `json:"balance_due"`
}

// QuoteResponse is the quote endpoint payload.
type QuoteResponse struct {
	Line    LinePriceDTO `json:"line"`
	Summary SummaryDTO   `json:"summary"`
}

// =============================================================================
// RESERVATIONS
// =============================================================================

// CreateReservationRequest creates a booking. Status fields are settable for
// operational tooling; conversion still re-validates them.
type CreateReservationRequest struct {
	ID                string `json:"id,omitempty"`
	CustomerID        string `json:"customer_id"`
	VehicleID         string `json:"vehicle_id"`
	Status            string `json:"status,omitempty"`
	DownPaymentStatus string `json:"down_payment_status,omitempty"`
	CheckoutAt        string `json:"checkout_at"`
	CheckinAt         string `json:"checkin_at"`
	TotalAmount       string `json:"total_amount"`
	Notes             string `json:"notes,omitempty"`
}

// ReservationDTO represents a reservation in API responses.
type ReservationDTO struct {
	ID                   string  `json:"id"`
	CustomerID           string  `json:"customer_id"`
	VehicleID            string  `json:"vehicle_id"`
	Status               string  `json:"status"`
	DownPaymentStatus    string  `json:"down_payment_status"`
	CheckoutAt           string  `json:"checkout_at"`
	CheckinAt            string  `json:"checkin_at"`
	TotalAmount          string  `json:"total_amount"`
	Notes                string  `json:"notes,omitempty"`
	ConvertedAgreementID *string `json:"converted_agreement_id,omitempty"`
	CreatedAt            string  `json:"created_at,omitempty"`
}

// =============================================================================
// CONVERSION
// =============================================================================

// ConvertResponse is the conversion endpoint payload.
type ConvertResponse struct {
	AgreementID      string `json:"agreement_id"`
	AgreementNo      string `json:"agreement_no"`
	ReservationID    string `json:"reservation_id"`
	Status           string `json:"status"`
	AlreadyConverted bool   `json:"already_converted"`
	LineWarning      string `json:"line_warning,omitempty"`
}

// =============================================================================
// AGREEMENTS
// =============================================================================

// AgreementDTO represents an agreement in API responses.
type AgreementDTO struct {
	ID            string `json:"id"`
	AgreementNo   string `json:"agreement_no"`
	ReservationID string `json:"reservation_id"`
	CustomerID    string `json:"customer_id"`
	VehicleID     string `json:"vehicle_id"`
	CheckoutAt    string `json:"checkout_at"`
	CheckinAt     string `json:"checkin_at"`
	TotalAmount   string `json:"total_amount"`
	Notes         string `json:"notes,omitempty"`
	Status        string `json:"status"`
	CreatedAt     string `json:"created_at,omitempty"`
}

// AgreementLineDTO represents an agreement line.
type AgreementLineDTO struct {
	ID          string `json:"id"`
	AgreementID string `json:"agreement_id"`
	VehicleID   string `json:"vehicle_id"`
	CheckoutAt  string `json:"checkout_at"`
	CheckinAt   string `json:"checkin_at"`
	NetPrice    string `json:"net_price"`
	TotalPrice  string `json:"total_price"`
}

// =============================================================================
// CATALOG
// =============================================================================

// PriceListDTO wraps the config form for responses.
type PriceListDTO struct {
	ID     string                `json:"id"`
	Name   string                `json:"name"`
	Config catalog.PriceListJSON `json:"config"`
}

// CreatePriceListRequest is the request to create a price list.
type CreatePriceListRequest struct {
	Config catalog.PriceListJSON `json:"config"`
}

// ChargeDTO represents a misc charge.
type ChargeDTO struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Amount  string `json:"amount"`
	Taxable bool   `json:"taxable"`
}
