/*
handlers.go - HTTP handlers

PURPOSE:
  Implements the REST surface over the scheduling core: visit CRUD,
  workday views, the close-day operation, the 30-day statistics rollup,
  and manual CEP lookup.

SEQUENCING:
  Handlers never touch admission control or ledger refresh directly -
  every mutation goes through schedule.Scheduler (creates/edits/deletes)
  or schedule.CloseEngine (day closing), which own the
  admission -> write -> refresh sequence.

ADDRESS ENRICHMENT:
  On create and on address replacement, the handler resolves the CEP
  through the provider chain and merges the result into the payload
  before the scheduler persists it: only empty fields are filled, the
  postal code is always canonicalized. An unknown CEP rejects the write,
  matching the behavior the front end was built against.

STATUS MAPPING:
  Admission rejection -> 422, invalid input -> 400, missing entity ->
  404, store failure -> 500. The body carries a stable error code.
*/
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/fieldops/visit-engine/cep"
	"github.com/fieldops/visit-engine/schedule"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store     schedule.TxStore
	Scheduler *schedule.Scheduler
	Closer    *schedule.CloseEngine
	Resolver  *cep.Resolver
}

// NewHandler wires a handler over the given store and resolver.
func NewHandler(store schedule.TxStore, resolver *cep.Resolver) *Handler {
	return &Handler{
		Store:     store,
		Scheduler: schedule.NewScheduler(store),
		Closer:    schedule.NewCloseEngine(store),
		Resolver:  resolver,
	}
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, body Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("[api] encode response: %v", err)
	}
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, Envelope{Success: true, Data: data})
}

func writeList(w http.ResponseWriter, data any, count int) {
	writeJSON(w, http.StatusOK, Envelope{Success: true, Data: data, Count: &count})
}

func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, Envelope{Success: false, Message: message, Error: code})
}

// writeDomainError maps a scheduling error to HTTP.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, schedule.ErrCapacityExceeded):
		writeError(w, http.StatusUnprocessableEntity, err.Error(), codeCapacityExceeded)
	case errors.Is(err, schedule.ErrInvalidPostalCode):
		writeError(w, http.StatusBadRequest, err.Error(), codeInvalidPostalCode)
	case errors.Is(err, schedule.ErrInvalidDate):
		writeError(w, http.StatusBadRequest, err.Error(), codeInvalidDate)
	case schedule.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error(), codeNotFound)
	default:
		log.Printf("[api] internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error", codeInternal)
	}
}

// =============================================================================
// VISIT HANDLERS
// =============================================================================

// ListVisits returns all visits for a date, with addresses attached.
func (h *Handler) ListVisits(w http.ResponseWriter, r *http.Request) {
	dateParam := r.URL.Query().Get("date")
	if dateParam == "" {
		writeError(w, http.StatusBadRequest, "date parameter is required", codeMissingDate)
		return
	}
	date, err := schedule.ParseDate(dateParam)
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD", codeInvalidDate)
		return
	}

	visits, err := h.Store.ListVisitsByDate(r.Context(), date)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]VisitDTO, 0, len(visits))
	for i := range visits {
		dtos = append(dtos, h.visitDTO(r, &visits[i]))
	}
	writeList(w, dtos, len(dtos))
}

// CreateVisit creates a visit and its address, enriching the address
// through the CEP provider chain first.
func (h *Handler) CreateVisit(w http.ResponseWriter, r *http.Request) {
	var req CreateVisitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", codeMissingField)
		return
	}
	if req.Date == "" || req.Forms == nil || req.Products == nil || req.Address == nil {
		writeError(w, http.StatusBadRequest, "date, forms, products and address are required", codeMissingField)
		return
	}
	if req.Address.PostalCode == "" {
		writeError(w, http.StatusBadRequest, "address postal_code is required", codeMissingField)
		return
	}

	date, err := schedule.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD", codeInvalidDate)
		return
	}

	addr := schedule.Address{
		PostalCode:   req.Address.PostalCode,
		Sublocality:  req.Address.Sublocality,
		Street:       req.Address.Street,
		StreetNumber: req.Address.StreetNumber,
		Complement:   req.Address.Complement,
	}
	if ok := h.enrichAddress(w, r, &addr); !ok {
		return
	}

	visit, err := h.Scheduler.AddVisit(r.Context(), schedule.VisitInput{
		Date:      date,
		Forms:     *req.Forms,
		Products:  *req.Products,
		Completed: req.Completed,
		Address:   addr,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeData(w, http.StatusCreated, h.visitDTO(r, visit))
}

// UpdateVisit applies a partial update, optionally replacing the address.
func (h *Handler) UpdateVisit(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid visit id", codeMissingField)
		return
	}

	var req UpdateVisitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", codeMissingField)
		return
	}

	changes := schedule.VisitChanges{
		Forms:     req.Forms,
		Products:  req.Products,
		Completed: req.Completed,
	}
	if req.Date != nil {
		date, err := schedule.ParseDate(*req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD", codeInvalidDate)
			return
		}
		changes.Date = &date
	}

	visit, err := h.Scheduler.EditVisit(r.Context(), id, changes)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if req.Address != nil {
		addr := schedule.Address{
			PostalCode:   req.Address.PostalCode,
			Sublocality:  req.Address.Sublocality,
			Street:       req.Address.Street,
			StreetNumber: req.Address.StreetNumber,
			Complement:   req.Address.Complement,
		}
		if ok := h.enrichAddress(w, r, &addr); !ok {
			return
		}
		if _, err := h.Scheduler.ReplaceAddress(r.Context(), id, addr); err != nil {
			writeDomainError(w, err)
			return
		}
		// Re-read so the response carries the new address reference.
		visit, err = h.Store.GetVisit(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
	}

	writeData(w, http.StatusOK, h.visitDTO(r, visit))
}

// DeleteVisit removes a visit (and its address when orphaned).
func (h *Handler) DeleteVisit(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid visit id", codeMissingField)
		return
	}

	if err := h.Scheduler.DeleteVisit(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Envelope{Success: true, Message: "visit deleted"})
}

// enrichAddress validates the CEP, resolves it through the provider
// chain, and merges the result. Writes the error response itself and
// returns false when the request should stop.
func (h *Handler) enrichAddress(w http.ResponseWriter, r *http.Request, addr *schedule.Address) bool {
	if !schedule.ValidPostalCode(addr.PostalCode) {
		writeError(w, http.StatusBadRequest, "postal code must have 8 digits", codeInvalidPostalCode)
		return false
	}

	fields := h.Resolver.Resolve(r.Context(), addr.PostalCode)
	if fields == nil {
		writeError(w, http.StatusUnprocessableEntity, "postal code not found", codePostalCodeMiss)
		return false
	}

	addr.MergeResolved(fields.PostalCode, fields.Sublocality, fields.Street)
	return true
}

// visitDTO builds the response shape, attaching the address when it
// still resolves.
func (h *Handler) visitDTO(r *http.Request, v *schedule.Visit) VisitDTO {
	dto := VisitDTO{
		ID:        v.ID,
		Date:      v.Date.String(),
		Status:    string(v.Status),
		Forms:     v.Forms,
		Products:  v.Products,
		Completed: v.Completed,
		Duration:  v.Duration,
		AddressID: v.AddressID,
	}
	if addr, err := h.Store.GetAddress(r.Context(), v.AddressID); err == nil {
		dto.Address = &AddressDTO{
			ID:           addr.ID,
			PostalCode:   addr.PostalCode,
			Sublocality:  addr.Sublocality,
			Street:       addr.Street,
			StreetNumber: addr.StreetNumber,
			Complement:   addr.Complement,
		}
	}
	return dto
}

// =============================================================================
// WORKDAY HANDLERS
// =============================================================================

// ListWorkdays returns ledger rows, newest first.
func (h *Handler) ListWorkdays(w http.ResponseWriter, r *http.Request) {
	var from, to *schedule.Date
	if s := r.URL.Query().Get("start_date"); s != "" {
		d, err := schedule.ParseDate(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "start_date must be YYYY-MM-DD", codeInvalidDate)
			return
		}
		from = &d
	}
	if s := r.URL.Query().Get("end_date"); s != "" {
		d, err := schedule.ParseDate(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "end_date must be YYYY-MM-DD", codeInvalidDate)
			return
		}
		to = &d
	}
	limit := 30
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			limit = n
		}
	}

	workdays, err := h.Store.ListWorkdays(r.Context(), from, to, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]WorkdayDTO, 0, len(workdays))
	for _, wd := range workdays {
		dtos = append(dtos, workdayDTO(wd))
	}
	writeList(w, dtos, len(dtos))
}

// GetWorkday returns one workday with its visits, materializing the
// ledger row on first touch.
func (h *Handler) GetWorkday(w http.ResponseWriter, r *http.Request) {
	date, err := schedule.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD", codeInvalidDate)
		return
	}

	workday, err := h.Store.GetWorkday(r.Context(), date)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if workday == nil {
		// Lazy materialization: first touch creates the row.
		if err := h.Scheduler.Ledger().Refresh(r.Context(), date); err != nil {
			writeDomainError(w, err)
			return
		}
		workday, err = h.Store.GetWorkday(r.Context(), date)
		if err != nil {
			writeDomainError(w, err)
			return
		}
	}

	visits, err := h.Store.ListVisitsByDate(r.Context(), date)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]VisitDTO, 0, len(visits))
	for i := range visits {
		dtos = append(dtos, h.visitDTO(r, &visits[i]))
	}

	writeData(w, http.StatusOK, WorkdayViewDTO{
		Workday: workdayDTO(*workday),
		Visits:  dtos,
	})
}

// CloseWorkday sweeps a day's pending visits onto future days.
func (h *Handler) CloseWorkday(w http.ResponseWriter, r *http.Request) {
	var req CloseWorkdayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", codeMissingField)
		return
	}
	if req.Date == "" {
		writeError(w, http.StatusBadRequest, "date is required", codeMissingDate)
		return
	}
	date, err := schedule.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD", codeInvalidDate)
		return
	}

	result, err := h.Closer.Close(r.Context(), date)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeData(w, http.StatusOK, closeResultDTO(result))
}

// Statistics returns the trailing 30 days rollup.
func (h *Handler) Statistics(w http.ResponseWriter, r *http.Request) {
	end := schedule.Today()
	start := end.AddDays(-30)

	workdays, err := h.Store.ListWorkdays(r.Context(), &start, nil, 0)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	totalDays := len(workdays)
	totalVisits, totalCompleted, totalDuration := 0, 0, 0
	for _, wd := range workdays {
		totalVisits += wd.Visits
		totalCompleted += wd.Completed
		totalDuration += wd.Duration
	}

	// Decimal math so the 2dp rounding matches what the front end shows.
	sixty := decimal.NewFromInt(60)
	round2 := func(d decimal.Decimal) float64 {
		f, _ := d.Round(2).Float64()
		return f
	}
	ratio := func(num, den int) decimal.Decimal {
		if den == 0 {
			return decimal.Zero
		}
		return decimal.NewFromInt(int64(num)).Div(decimal.NewFromInt(int64(den)))
	}

	avgDuration := ratio(totalDuration, totalDays)

	writeData(w, http.StatusOK, StatisticsDTO{
		Period: StatsPeriodDTO{
			StartDate: start.String(),
			EndDate:   end.String(),
			TotalDays: totalDays,
		},
		Totals: StatsTotalsDTO{
			Visits:          totalVisits,
			Completed:       totalCompleted,
			DurationMinutes: totalDuration,
			DurationHours:   round2(decimal.NewFromInt(int64(totalDuration)).Div(sixty)),
		},
		Averages: StatsAveragesDTO{
			VisitsPerDay:          round2(ratio(totalVisits, totalDays)),
			CompletionRatePercent: round2(ratio(totalCompleted, totalVisits).Mul(decimal.NewFromInt(100))),
			DurationPerDayMinutes: round2(avgDuration),
			DurationPerDayHours:   round2(avgDuration.Div(sixty)),
		},
	})
}

func workdayDTO(w schedule.Workday) WorkdayDTO {
	return WorkdayDTO{
		ID:        w.ID,
		Date:      w.Date.String(),
		Visits:    w.Visits,
		Completed: w.Completed,
		Duration:  w.Duration,
	}
}

func closeResultDTO(result *schedule.CloseResult) CloseResultDTO {
	dto := CloseResultDTO{
		ClosedDate:  result.ClosedDate.String(),
		Reallocated: make([]ReallocatedVisitDTO, 0, len(result.Reallocated)),
		Failed:      make([]FailedReallocationDTO, 0, len(result.Failed)),
		Summary: CloseSummaryDTO{
			TotalPending: result.Summary.TotalPending,
			Succeeded:    result.Summary.Succeeded,
			Failed:       result.Summary.Failed,
		},
	}
	for _, s := range result.Reallocated {
		dto.Reallocated = append(dto.Reallocated, ReallocatedVisitDTO{
			VisitID:  s.VisitID,
			FromDate: s.FromDate.String(),
			ToDate:   s.ToDate.String(),
			Duration: s.Duration,
		})
	}
	for _, f := range result.Failed {
		dto.Failed = append(dto.Failed, FailedReallocationDTO{
			VisitID: f.VisitID,
			Reason:  f.Reason,
		})
	}
	return dto
}

// =============================================================================
// CEP HANDLER
// =============================================================================

// LookupCEP resolves a postal code through the provider chain.
func (h *Handler) LookupCEP(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if !schedule.ValidPostalCode(code) {
		writeError(w, http.StatusBadRequest, "postal code must have 8 digits", codeInvalidPostalCode)
		return
	}

	fields := h.Resolver.Resolve(r.Context(), code)
	if fields == nil {
		writeError(w, http.StatusNotFound, "postal code not found", codePostalCodeMiss)
		return
	}

	writeData(w, http.StatusOK, ResolvedAddressDTO{
		PostalCode:  fields.PostalCode,
		Sublocality: fields.Sublocality,
		Street:      fields.Street,
		City:        fields.City,
		State:       fields.State,
	})
}

// Health is the liveness endpoint.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Envelope{Success: true, Message: "ok"})
}
