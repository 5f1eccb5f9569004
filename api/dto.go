/*
dto.go - JSON request and response types

PURPOSE:
  Wire contracts for the HTTP API. These shapes are consumed by an
  existing SPA front end, so field names are load-bearing - in
  particular the close-day payload and the resolved-address payload
  must not drift.

ENVELOPE:
  Every response is wrapped: {"success": bool, "data": ..., ...} with
  {"message", "error"} on failures, where "error" is a stable code the
  front end switches on.
*/
package api

// =============================================================================
// ENVELOPE
// =============================================================================

// Envelope is the uniform response wrapper.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Count   *int   `json:"count,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Stable error codes.
const (
	codeMissingDate       = "MISSING_DATE_PARAMETER"
	codeInvalidDate       = "INVALID_DATE_FORMAT"
	codeMissingField      = "MISSING_REQUIRED_FIELD"
	codeInvalidPostalCode = "INVALID_POSTAL_CODE"
	codePostalCodeMiss    = "POSTAL_CODE_NOT_FOUND"
	codeCapacityExceeded  = "DAILY_CAPACITY_EXCEEDED"
	codeNotFound          = "NOT_FOUND"
	codeInternal          = "INTERNAL_ERROR"
)

// =============================================================================
// ADDRESSES AND VISITS
// =============================================================================

// AddressDTO mirrors the front end's Address type.
type AddressDTO struct {
	ID           int64  `json:"id"`
	PostalCode   string `json:"postal_code"`
	Sublocality  string `json:"sublocality,omitempty"`
	Street       string `json:"street,omitempty"`
	StreetNumber string `json:"street_number,omitempty"`
	Complement   string `json:"complement,omitempty"`
}

// VisitDTO mirrors the front end's Visit type.
type VisitDTO struct {
	ID        int64       `json:"id"`
	Date      string      `json:"date"`
	Status    string      `json:"status"`
	Forms     int         `json:"forms"`
	Products  int         `json:"products"`
	Completed bool        `json:"completed"`
	Duration  int         `json:"duration"`
	AddressID int64       `json:"address_id"`
	Address   *AddressDTO `json:"address,omitempty"`
}

// AddressPayload is the inline address in create/update requests.
type AddressPayload struct {
	PostalCode   string `json:"postal_code"`
	Sublocality  string `json:"sublocality"`
	Street       string `json:"street"`
	StreetNumber string `json:"street_number"`
	Complement   string `json:"complement"`
}

// CreateVisitRequest is the POST /api/visits body.
type CreateVisitRequest struct {
	Date      string          `json:"date"`
	Forms     *int            `json:"forms"`
	Products  *int            `json:"products"`
	Completed bool            `json:"completed"`
	Address   *AddressPayload `json:"address"`
}

// UpdateVisitRequest is the PUT /api/visits/{id} body; nil fields are
// left unchanged.
type UpdateVisitRequest struct {
	Date      *string         `json:"date"`
	Forms     *int            `json:"forms"`
	Products  *int            `json:"products"`
	Completed *bool           `json:"completed"`
	Address   *AddressPayload `json:"address"`
}

// =============================================================================
// WORKDAYS
// =============================================================================

// WorkdayDTO mirrors the front end's Workday type.
type WorkdayDTO struct {
	ID        int64  `json:"id"`
	Date      string `json:"date"`
	Visits    int    `json:"visits"`
	Completed int    `json:"completed"`
	Duration  int    `json:"duration"`
}

// WorkdayViewDTO is the GET /api/workdays/{date} payload.
type WorkdayViewDTO struct {
	Workday WorkdayDTO `json:"workday"`
	Visits  []VisitDTO `json:"visits"`
}

// CloseWorkdayRequest is the POST /api/workdays/close body.
type CloseWorkdayRequest struct {
	Date string `json:"date"`
}

// ReallocatedVisitDTO is one success entry in a close response.
type ReallocatedVisitDTO struct {
	VisitID  int64  `json:"visit_id"`
	FromDate string `json:"from_date"`
	ToDate   string `json:"to_date"`
	Duration int    `json:"duration"`
}

// FailedReallocationDTO is one failure entry in a close response.
type FailedReallocationDTO struct {
	VisitID int64  `json:"visit_id"`
	Reason  string `json:"error"`
}

// CloseSummaryDTO is the close response count rollup.
type CloseSummaryDTO struct {
	TotalPending int `json:"total_pending"`
	Succeeded    int `json:"successfully_reallocated"`
	Failed       int `json:"failed_reallocations"`
}

// CloseResultDTO is the POST /api/workdays/close payload.
type CloseResultDTO struct {
	ClosedDate  string                  `json:"closed_date"`
	Reallocated []ReallocatedVisitDTO   `json:"reallocated_visits"`
	Failed      []FailedReallocationDTO `json:"failed_reallocations"`
	Summary     CloseSummaryDTO         `json:"summary"`
}

// =============================================================================
// STATISTICS
// =============================================================================

// StatisticsDTO is the GET /api/workdays/statistics payload, covering
// the trailing 30 days.
type StatisticsDTO struct {
	Period   StatsPeriodDTO   `json:"period"`
	Totals   StatsTotalsDTO   `json:"totals"`
	Averages StatsAveragesDTO `json:"averages"`
}

type StatsPeriodDTO struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	TotalDays int    `json:"total_days"`
}

type StatsTotalsDTO struct {
	Visits          int     `json:"visits"`
	Completed       int     `json:"completed"`
	DurationMinutes int     `json:"duration_minutes"`
	DurationHours   float64 `json:"duration_hours"`
}

type StatsAveragesDTO struct {
	VisitsPerDay          float64 `json:"visits_per_day"`
	CompletionRatePercent float64 `json:"completion_rate_percent"`
	DurationPerDayMinutes float64 `json:"duration_per_day_minutes"`
	DurationPerDayHours   float64 `json:"duration_per_day_hours"`
}

// =============================================================================
// CEP
// =============================================================================

// ResolvedAddressDTO is the GET /api/cep/{code} payload.
type ResolvedAddressDTO struct {
	PostalCode  string `json:"postal_code"`
	Sublocality string `json:"sublocality,omitempty"`
	Street      string `json:"street,omitempty"`
	City        string `json:"city,omitempty"`
	State       string `json:"state,omitempty"`
}
