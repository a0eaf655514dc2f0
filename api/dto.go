/*
dto.go - Request/response data structures for the HTTP API

PURPOSE:
  Defines the JSON shapes exchanged with clients. DTOs are kept separate
  from engine types so the wire format can evolve without touching the
  accounting logic.

CONVENTIONS:
  - Dates are "YYYY-MM-DD" strings
  - Quantities are decimal strings, never floats, to keep wire precision
  - Optional fields use pointers with omitempty

SEE ALSO:
  - handlers.go: Handlers building these DTOs
  - engine/report.go: The Report these DTOs serialize
*/
package api

import (
	"github.com/warp/scope-engine/engine"
	"github.com/warp/scope-engine/factory"
	"github.com/warp/scope-engine/store/sqlite"
)

// =============================================================================
// CLIENTS
// =============================================================================

type ClientDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// =============================================================================
// WORK PACKAGES
// =============================================================================

// WorkPackageDTO mirrors factory.WorkPackageRecord on the wire.
type WorkPackageDTO struct {
	ID                  string `json:"id"`
	ClientID            string `json:"client_id"`
	Name                string `json:"name"`
	ContractType        string `json:"contract_type"`
	IncludedTicketTypes string `json:"included_ticket_types,omitempty"`
	IncludeEvoTM        bool   `json:"include_evo_tm"`
	IncludeEvoEstimates bool   `json:"include_evo_estimates"`
}

func toWorkPackageDTO(rec factory.WorkPackageRecord) WorkPackageDTO {
	return WorkPackageDTO{
		ID:                  rec.ID,
		ClientID:            rec.ClientID,
		Name:                rec.Name,
		ContractType:        rec.ContractType,
		IncludedTicketTypes: rec.IncludedTicketTypes,
		IncludeEvoTM:        rec.IncludeEvoTM,
		IncludeEvoEstimates: rec.IncludeEvoEstimates,
	}
}

// =============================================================================
// PERIODS AND LEDGER
// =============================================================================

type PeriodDTO struct {
	ID            string `json:"id"`
	StartDate     string `json:"start_date"`
	EndDate       string `json:"end_date"`
	TotalQuantity string `json:"total_quantity"`
	ScopeUnit     string `json:"scope_unit"`
}

// RegularizationDTO carries a ledger entry over the wire. IsBilled is a
// pointer so an omitted field is distinguishable from an explicit false;
// omitted means billed. Responses always populate it.
type RegularizationDTO struct {
	ID       string `json:"id"`
	Date     string `json:"date"`
	Type     string `json:"type"`
	Quantity string `json:"quantity"`
	IsBilled *bool  `json:"is_billed,omitempty"`
}

// =============================================================================
// ACTIVITY INGESTION
// =============================================================================

type TicketBatchRequest struct {
	Tickets []sqlite.TicketRow `json:"tickets"`
}

type MetricRequest struct {
	Year          int    `json:"year"`
	Month         int    `json:"month"`
	ConsumedHours string `json:"consumed_hours"`
}

// =============================================================================
// REPORTS
// =============================================================================

// ReportDTO is the consumption report for one work package.
type ReportDTO struct {
	WorkPackageID    string   `json:"work_package_id"`
	ClientID         string   `json:"client_id"`
	Name             string   `json:"name"`
	ScopeUnit        string   `json:"scope_unit"`
	IsEventos        bool     `json:"is_eventos"`
	PeriodStart      string   `json:"period_start"`
	PeriodEnd        string   `json:"period_end"`
	TotalScope       string   `json:"total_scope"`
	TotalConsumed    string   `json:"total_consumed"`
	ConsumedToDate   string   `json:"consumed_to_date"`
	ContractedToDate string   `json:"contracted_to_date"`
	Carryover        string   `json:"carryover"`
	Remaining        string   `json:"remaining"`
	Warnings         []string `json:"warnings,omitempty"`
}

func toReportDTO(r engine.Report) ReportDTO {
	return ReportDTO{
		WorkPackageID:    string(r.WorkPackageID),
		ClientID:         string(r.ClientID),
		Name:             r.Name,
		ScopeUnit:        r.ScopeUnit,
		IsEventos:        r.IsEventos,
		PeriodStart:      r.PeriodStart.String(),
		PeriodEnd:        r.PeriodEnd.String(),
		TotalScope:       r.TotalScope.String(),
		TotalConsumed:    r.TotalConsumed.String(),
		ConsumedToDate:   r.ConsumedToDate.String(),
		ContractedToDate: r.ContractedToDate.String(),
		Carryover:        r.Carryover.String(),
		Remaining:        r.Remaining.String(),
		Warnings:         r.Warnings,
	}
}

// BatchReportDTO is the dashboard payload: one entry per work package,
// failed work packages reported alongside the successful ones.
type BatchReportDTO struct {
	AsOf     string             `json:"as_of"`
	Reports  []ReportDTO        `json:"reports"`
	Failures []ReportFailureDTO `json:"failures,omitempty"`
}

type ReportFailureDTO struct {
	WorkPackageID string `json:"work_package_id"`
	Error         string `json:"error"`
}

// =============================================================================
// RECONCILIATION
// =============================================================================

type ReconciliationRunDTO struct {
	ID            string `json:"id"`
	WorkPackageID string `json:"work_package_id"`
	PeriodID      string `json:"period_id"`
	PeriodStart   string `json:"period_start"`
	PeriodEnd     string `json:"period_end"`
	Settlement    string `json:"settlement"`
	Status        string `json:"status"`
	CreatedAt     string `json:"created_at"`
}

// =============================================================================
// SCENARIOS AND ERRORS
// =============================================================================

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
