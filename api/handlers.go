/*
handlers.go - HTTP API handlers for the rental engine

PURPOSE:
  Exposes the pricing core and the conversion workflow via REST. Handles
  HTTP request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Quotes:
    POST   /api/quote                        Resolve a line price + rollup

  Reservations:
    GET    /api/reservations                 List reservations
    POST   /api/reservations                 Create reservation
    GET    /api/reservations/{id}            Get reservation
    POST   /api/reservations/{id}/convert    Convert to agreement

  Agreements:
    GET    /api/agreements                   List agreements
    GET    /api/agreements/{id}              Get agreement
    GET    /api/agreements/{id}/lines        Get agreement lines

  Catalog:
    GET    /api/pricelists                   List price lists
    POST   /api/pricelists                   Create price list from JSON
    GET    /api/pricelists/{id}              Get price list
    GET    /api/charges                      List misc charges
    POST   /api/charges                      Create misc charge

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Invalid input
  - 404: Resource not found
  - 409: Conversion guard violations, duplicate reservation id
  - 500: Infrastructure failures

  A repeated conversion is NOT an error: it returns 200 with the existing
  agreement and already_converted=true.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/fleetops/rental-engine/catalog"
	"github.com/fleetops/rental-engine/pricing"
	"github.com/fleetops/rental-engine/rental"
	"github.com/fleetops/rental-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store     *sqlite.Store
	Converter *rental.Converter
	Log       zerolog.Logger
}

// NewHandler creates a new handler with the given store.
func NewHandler(store *sqlite.Store, log zerolog.Logger) *Handler {
	return &Handler{
		Store:     store,
		Converter: rental.NewConverter(store, store, log),
		Log:       log,
	}
}

// =============================================================================
// QUOTE
// =============================================================================

// Quote resolves the line price for the requested span and runs the rollup.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	var req QuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	checkout, err := time.Parse(time.RFC3339, req.CheckoutAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid checkout_at (use RFC3339)", err)
		return
	}
	checkin, err := time.Parse(time.RFC3339, req.CheckinAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid checkin_at (use RFC3339)", err)
		return
	}

	pctx := pricing.BuildContext(pricing.ContextInput{
		PriceListID:     req.PriceListID,
		PromoCode:       req.PromoCode,
		Hourly:          parseOptionalDecimal(req.Hourly),
		Daily:           parseOptionalDecimal(req.Daily),
		Weekly:          parseOptionalDecimal(req.Weekly),
		Monthly:         parseOptionalDecimal(req.Monthly),
		KilometerCharge: parseOptionalDecimal(req.KilometerCharge),
		DailyKmAllowed:  parseOptionalDecimal(req.DailyKmAllowed),
	})

	// Price-list fallback rates, when the referenced list exists.
	var fallback *pricing.RateTable
	if req.PriceListID != "" {
		rec, err := h.Store.GetPriceList(r.Context(), req.PriceListID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to load price list", err)
			return
		}
		if rec != nil {
			pl, err := catalog.ParsePriceList(rec.ConfigJSON)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "Stored price list is invalid", err)
				return
			}
			fallback = &pl.Rates
		}
	}

	line := pricing.ResolveLinePrice(pctx, checkout, checkin, fallback)

	lines := []pricing.ReservationLine{{
		LineNetPrice:  line.LineNetPrice,
		TaxValue:      parseDecimalOrZero(req.TaxValue),
		DiscountValue: parseDecimalOrZero(req.LineDiscountValue),
	}}
	for _, extra := range req.ExtraLines {
		lines = append(lines, pricing.ReservationLine{
			LineNetPrice:  parseDecimalOrZero(extra.LineNetPrice),
			TaxValue:      parseDecimalOrZero(extra.TaxValue),
			DiscountValue: parseDecimalOrZero(extra.DiscountValue),
		})
	}

	charges, err := h.Store.ListMiscCharges(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load charge catalog", err)
		return
	}

	summary := pricing.ComputeSummary(pricing.SummaryInput{
		Lines:               lines,
		SelectedChargeIDs:   req.SelectedChargeIDs,
		Charges:             pricing.NewChargeCatalog(charges),
		PromoCode:           req.PromoCode,
		DiscountValue:       parseDecimalOrZero(req.DiscountValue),
		PreAdjustment:       parseDecimalOrZero(req.PreAdjustment),
		AdvancePaid:         parseDecimalOrZero(req.AdvancePaid),
		SecurityDepositPaid: parseDecimalOrZero(req.SecurityDepositPaid),
		CancellationFee:     parseDecimalOrZero(req.CancellationFee),
	})

	writeJSON(w, http.StatusOK, QuoteResponse{
		Line: LinePriceDTO{
			LineNetPrice: line.LineNetPrice.String(),
			Source:       string(line.Source),
			Bucket:       string(line.Bucket),
			Multiplier:   line.Multiplier,
		},
		Summary: summaryDTO(summary),
	})
}

// =============================================================================
// RESERVATION HANDLERS
// =============================================================================

// ListReservations returns all reservations.
func (h *Handler) ListReservations(w http.ResponseWriter, r *http.Request) {
	reservations, err := h.Store.ListReservations(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list reservations", err)
		return
	}

	dtos := make([]ReservationDTO, len(reservations))
	for i, res := range reservations {
		dtos[i] = reservationDTO(res)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetReservation returns a single reservation.
func (h *Handler) GetReservation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	res, err := h.Store.GetReservation(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get reservation", err)
		return
	}
	if res == nil {
		writeError(w, http.StatusNotFound, "Reservation not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, reservationDTO(*res))
}

// CreateReservation creates a new reservation.
func (h *Handler) CreateReservation(w http.ResponseWriter, r *http.Request) {
	var req CreateReservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.CustomerID == "" || req.VehicleID == "" {
		writeError(w, http.StatusBadRequest, "customer_id and vehicle_id are required", nil)
		return
	}

	checkout, err := time.Parse(time.RFC3339, req.CheckoutAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid checkout_at (use RFC3339)", err)
		return
	}
	checkin, err := time.Parse(time.RFC3339, req.CheckinAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid checkin_at (use RFC3339)", err)
		return
	}

	total, err := decimal.NewFromString(req.TotalAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid total_amount", err)
		return
	}

	// A caller-supplied id must not resurrect an existing row: the store's
	// save is a replace, and replacing would clear the conversion link.
	if req.ID != "" {
		existing, err := h.Store.GetReservation(r.Context(), req.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to check reservation", err)
			return
		}
		if existing != nil {
			writeError(w, http.StatusConflict, "Reservation already exists", nil)
			return
		}
	}

	res := rental.Reservation{
		ID:                req.ID,
		CustomerID:        req.CustomerID,
		VehicleID:         req.VehicleID,
		Status:            rental.ReservationStatus(req.Status),
		DownPaymentStatus: rental.DownPaymentStatus(req.DownPaymentStatus),
		CheckoutAt:        checkout,
		CheckinAt:         checkin,
		TotalAmount:       pricing.Round4(total),
		Notes:             req.Notes,
	}
	if res.ID == "" {
		res.ID = uuid.NewString()
	}
	if res.Status == "" {
		res.Status = rental.ReservationPending
	}
	if res.DownPaymentStatus == "" {
		res.DownPaymentStatus = rental.DownPaymentPending
	}

	if err := h.Store.SaveReservation(r.Context(), res); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create reservation", err)
		return
	}
	writeJSON(w, http.StatusCreated, reservationDTO(res))
}

// ConvertReservation runs the conversion workflow. Repeats return the
// existing agreement with 200.
func (h *Handler) ConvertReservation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	result, err := h.Converter.Convert(r.Context(), id)
	if err != nil {
		switch {
		case rental.IsNotFound(err):
			writeError(w, http.StatusNotFound, "Reservation not found", err)
		case rental.IsClientError(err):
			writeError(w, http.StatusConflict, err.Error(), err)
		default:
			h.Log.Error().Err(err).Str("reservation_id", id).Msg("conversion failed")
			writeError(w, http.StatusInternalServerError, "Conversion failed", err)
		}
		return
	}

	resp := ConvertResponse{
		AgreementID:      result.AgreementID,
		AgreementNo:      result.AgreementNo,
		ReservationID:    result.ReservationID,
		Status:           string(result.Status),
		AlreadyConverted: result.AlreadyConverted,
	}
	if result.LineWarning != nil {
		resp.LineWarning = result.LineWarning.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// AGREEMENT HANDLERS
// =============================================================================

// ListAgreements returns all agreements.
func (h *Handler) ListAgreements(w http.ResponseWriter, r *http.Request) {
	agreements, err := h.Store.ListAgreements(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list agreements", err)
		return
	}

	dtos := make([]AgreementDTO, len(agreements))
	for i, a := range agreements {
		dtos[i] = agreementDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetAgreement returns a single agreement.
func (h *Handler) GetAgreement(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	a, err := h.Store.GetAgreement(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get agreement", err)
		return
	}
	if a == nil {
		writeError(w, http.StatusNotFound, "Agreement not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, agreementDTO(*a))
}

// GetAgreementLines returns the lines of an agreement.
func (h *Handler) GetAgreementLines(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	lines, err := h.Store.ListAgreementLines(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list agreement lines", err)
		return
	}

	dtos := make([]AgreementLineDTO, len(lines))
	for i, line := range lines {
		dtos[i] = AgreementLineDTO{
			ID:          line.ID,
			AgreementID: line.AgreementID,
			VehicleID:   line.VehicleID,
			CheckoutAt:  line.CheckoutAt.Format(time.RFC3339),
			CheckinAt:   line.CheckinAt.Format(time.RFC3339),
			NetPrice:    line.NetPrice.String(),
			TotalPrice:  line.TotalPrice.String(),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// CATALOG HANDLERS
// =============================================================================

// ListPriceLists returns all price lists.
func (h *Handler) ListPriceLists(w http.ResponseWriter, r *http.Request) {
	records, err := h.Store.ListPriceLists(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list price lists", err)
		return
	}

	dtos := make([]PriceListDTO, 0, len(records))
	for _, rec := range records {
		var config catalog.PriceListJSON
		if err := json.Unmarshal([]byte(rec.ConfigJSON), &config); err != nil {
			continue // Skip invalid configs
		}
		dtos = append(dtos, PriceListDTO{ID: rec.ID, Name: rec.Name, Config: config})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetPriceList returns a single price list.
func (h *Handler) GetPriceList(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, err := h.Store.GetPriceList(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get price list", err)
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "Price list not found", nil)
		return
	}

	var config catalog.PriceListJSON
	if err := json.Unmarshal([]byte(rec.ConfigJSON), &config); err != nil {
		writeError(w, http.StatusInternalServerError, "Stored price list is invalid", err)
		return
	}
	writeJSON(w, http.StatusOK, PriceListDTO{ID: rec.ID, Name: rec.Name, Config: config})
}

// CreatePriceList creates a price list from a JSON config.
func (h *Handler) CreatePriceList(w http.ResponseWriter, r *http.Request) {
	var req CreatePriceListRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	pl, err := catalog.FromJSON(req.Config)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid price list config", err)
		return
	}

	configJSON, err := pl.ToJSON()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to serialize price list", err)
		return
	}
	rec := sqlite.PriceListRecord{ID: pl.ID, Name: pl.Name, ConfigJSON: configJSON}
	if err := h.Store.SavePriceList(r.Context(), rec); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save price list", err)
		return
	}
	writeJSON(w, http.StatusCreated, PriceListDTO{ID: pl.ID, Name: pl.Name, Config: req.Config})
}

// ListCharges returns the misc charge catalog.
func (h *Handler) ListCharges(w http.ResponseWriter, r *http.Request) {
	charges, err := h.Store.ListMiscCharges(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list charges", err)
		return
	}

	dtos := make([]ChargeDTO, len(charges))
	for i, c := range charges {
		dtos[i] = ChargeDTO{ID: c.ID, Name: c.Name, Amount: c.Amount.String(), Taxable: c.Taxable}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateCharge creates a misc charge from a JSON definition.
func (h *Handler) CreateCharge(w http.ResponseWriter, r *http.Request) {
	var cj catalog.ChargeJSON
	if err := json.NewDecoder(r.Body).Decode(&cj); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	charge, err := catalog.ChargeFromJSON(cj)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid charge definition", err)
		return
	}
	if err := h.Store.SaveMiscCharge(r.Context(), *charge); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save charge", err)
		return
	}
	writeJSON(w, http.StatusCreated, ChargeDTO{
		ID: charge.ID, Name: charge.Name, Amount: charge.Amount.String(), Taxable: charge.Taxable,
	})
}

// =============================================================================
// DTO MAPPERS AND HELPERS
// =============================================================================

func reservationDTO(r rental.Reservation) ReservationDTO {
	dto := ReservationDTO{
		ID:                   r.ID,
		CustomerID:           r.CustomerID,
		VehicleID:            r.VehicleID,
		Status:               string(r.Status),
		DownPaymentStatus:    string(r.DownPaymentStatus),
		CheckoutAt:           r.CheckoutAt.Format(time.RFC3339),
		CheckinAt:            r.CheckinAt.Format(time.RFC3339),
		TotalAmount:          r.TotalAmount.String(),
		Notes:                r.Notes,
		ConvertedAgreementID: r.ConvertedAgreementID,
	}
	if !r.CreatedAt.IsZero() {
		dto.CreatedAt = r.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

func agreementDTO(a rental.Agreement) AgreementDTO {
	dto := AgreementDTO{
		ID:            a.ID,
		AgreementNo:   a.AgreementNo,
		ReservationID: a.ReservationID,
		CustomerID:    a.CustomerID,
		VehicleID:     a.VehicleID,
		CheckoutAt:    a.CheckoutAt.Format(time.RFC3339),
		CheckinAt:     a.CheckinAt.Format(time.RFC3339),
		TotalAmount:   a.TotalAmount.String(),
		Notes:         a.Notes,
		Status:        string(a.Status),
	}
	if !a.CreatedAt.IsZero() {
		dto.CreatedAt = a.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

func summaryDTO(s pricing.Summary) SummaryDTO {
	return SummaryDTO{
		BaseRate:            s.BaseRate.String(),
		Promotion:           s.Promotion.String(),
		FinalBaseRate:       s.FinalBaseRate.String(),
		MiscTaxable:         s.MiscTaxable.String(),
		MiscNonTaxable:      s.MiscNonTaxable.String(),
		TaxOnLines:          s.TaxOnLines.String(),
		TaxOnMiscTaxable:    s.TaxOnMiscTaxable.String(),
		PreSubtotal:         s.PreSubtotal.String(),
		DiscountOnSubtotal:  s.DiscountOnSubtotal.String(),
		Subtotal:            s.Subtotal.String(),
		TaxTotal:            s.TaxTotal.String(),
		EstimatedTotal:      s.EstimatedTotal.String(),
		GrandTotal:          s.GrandTotal.String(),
		AdvancePaid:         s.AdvancePaid.String(),
		SecurityDepositPaid: s.SecurityDepositPaid.String(),
		BalanceDue:          s.BalanceDue.String(),
	}
}

func parseOptionalDecimal(s string) *decimal.Decimal {
	if s == "" {
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil
	}
	return &d
}

func parseDecimalOrZero(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := errorResponse{Error: message}
	if err != nil {
		resp.Detail = err.Error()
	}
	writeJSON(w, status, resp)
}
