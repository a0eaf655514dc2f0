/*
handlers.go - HTTP API handlers for the scope accounting engine

PURPOSE:
  Exposes the consumption reporting engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Clients:
    GET    /api/clients                       List all clients
    POST   /api/clients                       Create client

  Work packages:
    GET    /api/workpackages                  List all work packages
    POST   /api/workpackages                  Create work package
    GET    /api/workpackages/{id}             Get work package details
    GET    /api/workpackages/{id}/report      Consumption report
    GET    /api/workpackages/{id}/periods     List validity periods
    POST   /api/workpackages/{id}/periods     Add validity period
    GET    /api/workpackages/{id}/regularizations  List ledger entries
    POST   /api/workpackages/{id}/regularizations  Append ledger entry
    POST   /api/workpackages/{id}/tickets     Ingest ticket batch
    PUT    /api/workpackages/{id}/metrics     Upsert monthly hours

  Reports:
    GET    /api/reports                       Batch report, all work packages

  Reconciliation:
    GET    /api/reconciliation/runs           Run history
    POST   /api/reconciliation/process        Trigger a check now

  Scenarios:
    GET    /api/scenarios                     List demo scenarios
    POST   /api/scenarios/load                Load a demo scenario

REPORT CLOCK:
  Report endpoints accept ?as_of=YYYY-MM-DD to compute the report at an
  arbitrary date. Without it the server clock is used. The engine itself
  never reads the clock.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/warp/scope-engine/engine"
	"github.com/warp/scope-engine/factory"
	"github.com/warp/scope-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store *sqlite.Store

	// Clock supplies "now" for report endpoints without an as_of override.
	// Tests replace it with a fixed instant.
	Clock func() time.Time

	// Track currently loaded scenario
	currentScenario string
}

// NewHandler creates a new handler with the given store.
func NewHandler(store *sqlite.Store) *Handler {
	return &Handler{
		Store: store,
		Clock: time.Now,
	}
}

// =============================================================================
// CLIENT HANDLERS
// =============================================================================

// ListClients returns all clients.
func (h *Handler) ListClients(w http.ResponseWriter, r *http.Request) {
	clients, err := h.Store.ListClients(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list clients", err)
		return
	}

	dtos := make([]ClientDTO, len(clients))
	for i, c := range clients {
		dtos[i] = ClientDTO{ID: c.ID, Name: c.Name}
	}

	writeJSON(w, http.StatusOK, dtos)
}

// CreateClient creates a new client.
func (h *Handler) CreateClient(w http.ResponseWriter, r *http.Request) {
	var req ClientDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "Client id and name are required", nil)
		return
	}

	if err := h.Store.SaveClient(r.Context(), sqlite.Client{ID: req.ID, Name: req.Name}); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create client", err)
		return
	}

	writeJSON(w, http.StatusCreated, req)
}

// =============================================================================
// WORK PACKAGE HANDLERS
// =============================================================================

// ListWorkPackages returns all work packages.
func (h *Handler) ListWorkPackages(w http.ResponseWriter, r *http.Request) {
	recs, err := h.Store.ListWorkPackages(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list work packages", err)
		return
	}

	dtos := make([]WorkPackageDTO, len(recs))
	for i, rec := range recs {
		dtos[i] = toWorkPackageDTO(rec)
	}

	writeJSON(w, http.StatusOK, dtos)
}

// GetWorkPackage returns a single work package.
func (h *Handler) GetWorkPackage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, err := h.Store.GetWorkPackage(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get work package", err)
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "Work package not found", nil)
		return
	}

	writeJSON(w, http.StatusOK, toWorkPackageDTO(*rec))
}

// CreateWorkPackage creates a new work package.
func (h *Handler) CreateWorkPackage(w http.ResponseWriter, r *http.Request) {
	var req WorkPackageDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	rec := factory.WorkPackageRecord{
		ID:                  req.ID,
		ClientID:            req.ClientID,
		Name:                req.Name,
		ContractType:        req.ContractType,
		IncludedTicketTypes: req.IncludedTicketTypes,
		IncludeEvoTM:        req.IncludeEvoTM,
		IncludeEvoEstimates: req.IncludeEvoEstimates,
	}

	// Validate before persisting
	if _, err := factory.ParseWorkPackage(rec); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid work package", err)
		return
	}

	if err := h.Store.SaveWorkPackage(r.Context(), rec); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create work package", err)
		return
	}

	writeJSON(w, http.StatusCreated, toWorkPackageDTO(rec))
}

// =============================================================================
// PERIOD HANDLERS
// =============================================================================

// ListPeriods returns the validity periods of a work package.
func (h *Handler) ListPeriods(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	recs, err := h.Store.ListPeriods(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list periods", err)
		return
	}

	dtos := make([]PeriodDTO, len(recs))
	for i, rec := range recs {
		dtos[i] = PeriodDTO{
			ID:            rec.ID,
			StartDate:     rec.StartDate,
			EndDate:       rec.EndDate,
			TotalQuantity: rec.TotalQuantity,
			ScopeUnit:     rec.ScopeUnit,
		}
	}

	writeJSON(w, http.StatusOK, dtos)
}

// CreatePeriod adds a validity period to a work package.
func (h *Handler) CreatePeriod(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := r.Context()

	wp, err := h.Store.GetWorkPackage(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get work package", err)
		return
	}
	if wp == nil {
		writeError(w, http.StatusNotFound, "Work package not found", nil)
		return
	}

	var req PeriodDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	rec := factory.PeriodRecord{
		ID:            req.ID,
		StartDate:     req.StartDate,
		EndDate:       req.EndDate,
		TotalQuantity: req.TotalQuantity,
		ScopeUnit:     req.ScopeUnit,
	}

	// Parse and run the period's own validity checks before persisting
	period, err := factory.ParsePeriod(id, rec)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period", err)
		return
	}
	if err := period.Validate(engine.WorkPackageID(id)); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period", err)
		return
	}

	if err := h.Store.SavePeriod(ctx, id, rec); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create period", err)
		return
	}

	writeJSON(w, http.StatusCreated, req)
}

// =============================================================================
// REGULARIZATION HANDLERS
// =============================================================================

var knownRegularizationTypes = map[engine.RegularizationType]bool{
	engine.RegExcess:            true,
	engine.RegReturn:            true,
	engine.RegManualConsumption: true,
	engine.RegPriorSurplus:      true,
	engine.RegOneOff:            true,
}

// ListRegularizations returns a work package's ledger entries.
func (h *Handler) ListRegularizations(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	recs, err := h.Store.ListRegularizations(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list regularizations", err)
		return
	}

	dtos := make([]RegularizationDTO, len(recs))
	for i, rec := range recs {
		billed := rec.IsBilled == nil || *rec.IsBilled
		dtos[i] = RegularizationDTO{
			ID:       rec.ID,
			Date:     rec.Date,
			Type:     rec.Type,
			Quantity: rec.Quantity,
			IsBilled: &billed,
		}
	}

	writeJSON(w, http.StatusOK, dtos)
}

// CreateRegularization appends a ledger entry. Entries are immutable;
// there is no update or delete endpoint.
func (h *Handler) CreateRegularization(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := r.Context()

	wp, err := h.Store.GetWorkPackage(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get work package", err)
		return
	}
	if wp == nil {
		writeError(w, http.StatusNotFound, "Work package not found", nil)
		return
	}

	var req RegularizationDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	// IsBilled passes through as-is: nil lets the factory and store apply
	// the billed-by-default rule.
	rec := factory.RegularizationRecord{
		ID:       req.ID,
		Date:     req.Date,
		Type:     req.Type,
		Quantity: req.Quantity,
		IsBilled: req.IsBilled,
	}
	if rec.ID == "" {
		rec.ID = fmt.Sprintf("reg-%d", time.Now().UnixNano())
	}

	parsed, err := factory.ParseRegularization(id, rec)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid regularization", err)
		return
	}
	if !knownRegularizationTypes[parsed.Type] {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("Unknown regularization type %q", req.Type), nil)
		return
	}

	if err := h.Store.AppendRegularization(ctx, id, rec); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to append regularization", err)
		return
	}

	req.ID = rec.ID
	req.Type = string(parsed.Type)
	if req.IsBilled == nil {
		billed := true
		req.IsBilled = &billed
	}
	writeJSON(w, http.StatusCreated, req)
}

// =============================================================================
// ACTIVITY INGESTION HANDLERS
// =============================================================================

// AddTickets ingests a batch of synced tickets.
func (h *Handler) AddTickets(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req TicketBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if len(req.Tickets) == 0 {
		writeError(w, http.StatusBadRequest, "At least one ticket is required", nil)
		return
	}
	for _, t := range req.Tickets {
		if t.Year < 2000 || t.Month < 1 || t.Month > 12 {
			writeError(w, http.StatusBadRequest,
				fmt.Sprintf("Invalid ticket month %d-%d", t.Year, t.Month), nil)
			return
		}
	}

	if err := h.Store.AddTickets(r.Context(), id, req.Tickets); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to add tickets", err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"status": "created",
		"count":  len(req.Tickets),
	})
}

// UpsertMetric replaces a month's consumed hours.
func (h *Handler) UpsertMetric(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req MetricRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Year < 2000 || req.Month < 1 || req.Month > 12 {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("Invalid metric month %d-%d", req.Year, req.Month), nil)
		return
	}
	if _, err := decimal.NewFromString(req.ConsumedHours); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid consumed_hours", err)
		return
	}

	err := h.Store.UpsertMetric(r.Context(), id, sqlite.MetricRow{
		Year: req.Year, Month: req.Month, ConsumedHours: req.ConsumedHours,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save metric", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// REPORT HANDLERS
// =============================================================================

// GetReport computes the consumption report for one work package.
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := r.Context()

	asOf, err := h.parseAsOf(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid as_of date (use YYYY-MM-DD)", err)
		return
	}

	snaps, err := h.Store.LoadSnapshots(ctx, []string{id})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load work package data", err)
		return
	}
	if len(snaps) == 0 {
		writeError(w, http.StatusNotFound, "Work package not found", nil)
		return
	}

	report, err := engine.BuildReport(snaps[0], asOf)
	if err != nil {
		status := http.StatusInternalServerError
		if engine.IsClientError(err) {
			status = http.StatusBadRequest
		}
		writeError(w, status, "Failed to build report", err)
		return
	}
	if report == nil {
		writeError(w, http.StatusNotFound, "Work package has no validity periods", nil)
		return
	}

	writeJSON(w, http.StatusOK, toReportDTO(*report))
}

// GetReports computes reports for every work package in one pass.
func (h *Handler) GetReports(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	asOf, err := h.parseAsOf(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid as_of date (use YYYY-MM-DD)", err)
		return
	}

	snaps, err := h.Store.LoadSnapshots(ctx, nil)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load work package data", err)
		return
	}

	reports, failures := engine.BuildReports(snaps, asOf)

	out := BatchReportDTO{
		AsOf:    asOf.Format("2006-01-02"),
		Reports: make([]ReportDTO, len(reports)),
	}
	for i, rep := range reports {
		out.Reports[i] = toReportDTO(rep)
	}
	for _, f := range failures {
		out.Failures = append(out.Failures, ReportFailureDTO{
			WorkPackageID: string(f.WorkPackageID),
			Error:         f.Err.Error(),
		})
	}

	writeJSON(w, http.StatusOK, out)
}

// parseAsOf resolves the report clock: ?as_of=YYYY-MM-DD or the handler's
// clock. The date is pinned to noon UTC so end-of-day period bounds hold.
func (h *Handler) parseAsOf(r *http.Request) (time.Time, error) {
	raw := r.URL.Query().Get("as_of")
	if raw == "" {
		return h.Clock(), nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 12, 0, 0, 0, time.UTC), nil
}

// =============================================================================
// RECONCILIATION HANDLERS
// =============================================================================

// ListReconciliationRuns returns reconciliation run history.
func (h *Handler) ListReconciliationRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.Store.ListReconciliationRuns(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get reconciliation runs", err)
		return
	}

	dtos := make([]ReconciliationRunDTO, 0, len(runs))
	for _, run := range runs {
		dtos = append(dtos, ReconciliationRunDTO{
			ID:            run.ID,
			WorkPackageID: run.WorkPackageID,
			PeriodID:      run.PeriodID,
			PeriodStart:   run.PeriodStart,
			PeriodEnd:     run.PeriodEnd,
			Settlement:    run.Settlement,
			Status:        run.Status,
			CreatedAt:     run.CreatedAt.Format(time.RFC3339),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"runs": dtos})
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}

	h.currentScenario = ""

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
