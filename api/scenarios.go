/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for testing and demos. Each scenario creates clients, work
	packages, validity periods, regularizations, and activity data that
	demonstrate specific features.

AVAILABLE SCENARIOS:

	ticket-bundle:   Eventos contract, basic ticket consumption
	hours-support:   Hours contract fed by worklog metrics
	renewed-contract: Second validity period with carryover from the first
	billed-excess:   Overconsumption regularized and billed

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create client and work packages
 3. Add validity periods
 4. Ingest tickets or monthly metrics
 5. Optionally append regularizations

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "renewed-contract"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: LoadScenario, ListScenarios handlers
*/
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/warp/scope-engine/factory"
	"github.com/warp/scope-engine/store/sqlite"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "ticket-bundle",
		Name:        "Ticket Bundle",
		Description: "Eventos contract with monthly ticket consumption",
		Category:    "eventos",
	},
	{
		ID:          "hours-support",
		Name:        "Hours Support",
		Description: "Hours contract fed by worklog metrics",
		Category:    "hours",
	},
	{
		ID:          "renewed-contract",
		Name:        "Renewed Contract",
		Description: "Two validity periods with carryover from the closed one",
		Category:    "hours",
	},
	{
		ID:          "billed-excess",
		Name:        "Billed Excess",
		Description: "Overconsumption regularized and billed as extra scope",
		Category:    "eventos",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	if h.currentScenario == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}

	for _, s := range scenarios {
		if s.ID == h.currentScenario {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}

	// Scenario ID exists but not in list (shouldn't happen)
	writeJSON(w, http.StatusOK, ScenarioDTO{
		ID:          h.currentScenario,
		Name:        h.currentScenario,
		Description: "Currently loaded scenario",
	})
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScenarioID string `json:"scenario_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()

	// Reset first
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""

	var err error
	switch req.ScenarioID {
	case "ticket-bundle":
		err = loadTicketBundleScenario(ctx, h)
	case "hours-support":
		err = loadHoursSupportScenario(ctx, h)
	case "renewed-contract":
		err = loadRenewedContractScenario(ctx, h)
	case "billed-excess":
		err = loadBilledExcessScenario(ctx, h)
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario: "+req.ScenarioID, nil)
		return
	}

	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	h.currentScenario = req.ScenarioID
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "loaded",
		"scenario": req.ScenarioID,
	})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

// scenarioYear anchors all demo data to the current calendar year so
// reports computed "today" land inside the demo periods.
func scenarioYear() int {
	return time.Now().Year()
}

func loadTicketBundleScenario(ctx context.Context, h *Handler) error {
	year := scenarioYear()
	yearStr := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC).Format("2006")

	if err := h.Store.SaveClient(ctx, sqlite.Client{ID: "acme", Name: "Acme Retail"}); err != nil {
		return err
	}
	if err := h.Store.SaveWorkPackage(ctx, factory.WorkPackageRecord{
		ID:           "acme-support",
		ClientID:     "acme",
		Name:         "Acme Support Bundle",
		ContractType: "EVENTOS",
	}); err != nil {
		return err
	}
	if err := h.Store.SavePeriod(ctx, "acme-support", factory.PeriodRecord{
		ID:            "acme-support-" + yearStr,
		StartDate:     yearStr + "-01-01",
		EndDate:       yearStr + "-12-31",
		TotalQuantity: "120",
		ScopeUnit:     "Tickets",
	}); err != nil {
		return err
	}

	// A few months of ticket activity, including excluded classes
	tickets := []sqlite.TicketRow{
		{Year: year, Month: 1, IssueType: "Incidencia"},
		{Year: year, Month: 1, IssueType: "Consulta"},
		{Year: year, Month: 2, IssueType: "Incidencia"},
		{Year: year, Month: 2, IssueType: "Evolutivo"},
		{Year: year, Month: 2, IssueType: "Incidencia", BillingMode: "Facturable"},
		{Year: year, Month: 3, IssueType: "Consulta"},
	}
	return h.Store.AddTickets(ctx, "acme-support", tickets)
}

func loadHoursSupportScenario(ctx context.Context, h *Handler) error {
	year := scenarioYear()
	yearStr := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC).Format("2006")

	if err := h.Store.SaveClient(ctx, sqlite.Client{ID: "globex", Name: "Globex Logistics"}); err != nil {
		return err
	}
	if err := h.Store.SaveWorkPackage(ctx, factory.WorkPackageRecord{
		ID:           "globex-hours",
		ClientID:     "globex",
		Name:         "Globex Managed Hours",
		ContractType: "HORAS",
	}); err != nil {
		return err
	}
	if err := h.Store.SavePeriod(ctx, "globex-hours", factory.PeriodRecord{
		ID:            "globex-hours-" + yearStr,
		StartDate:     yearStr + "-01-01",
		EndDate:       yearStr + "-12-31",
		TotalQuantity: "480",
		ScopeUnit:     "Hours",
	}); err != nil {
		return err
	}

	metrics := []sqlite.MetricRow{
		{Year: year, Month: 1, ConsumedHours: "36.5"},
		{Year: year, Month: 2, ConsumedHours: "41"},
		{Year: year, Month: 3, ConsumedHours: "28.25"},
	}
	for _, m := range metrics {
		if err := h.Store.UpsertMetric(ctx, "globex-hours", m); err != nil {
			return err
		}
	}
	return nil
}

func loadRenewedContractScenario(ctx context.Context, h *Handler) error {
	year := scenarioYear()
	thisYear := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC).Format("2006")
	lastYear := time.Date(year-1, 1, 1, 0, 0, 0, 0, time.UTC).Format("2006")

	if err := h.Store.SaveClient(ctx, sqlite.Client{ID: "initech", Name: "Initech Systems"}); err != nil {
		return err
	}
	if err := h.Store.SaveWorkPackage(ctx, factory.WorkPackageRecord{
		ID:           "initech-support",
		ClientID:     "initech",
		Name:         "Initech Platform Support",
		ContractType: "HORAS",
	}); err != nil {
		return err
	}

	// Closed prior period: 240h contracted, 200h used, surplus carries over
	if err := h.Store.SavePeriod(ctx, "initech-support", factory.PeriodRecord{
		ID:            "initech-" + lastYear,
		StartDate:     lastYear + "-01-01",
		EndDate:       lastYear + "-12-31",
		TotalQuantity: "240",
		ScopeUnit:     "Hours",
	}); err != nil {
		return err
	}
	if err := h.Store.SavePeriod(ctx, "initech-support", factory.PeriodRecord{
		ID:            "initech-" + thisYear,
		StartDate:     thisYear + "-01-01",
		EndDate:       thisYear + "-12-31",
		TotalQuantity: "240",
		ScopeUnit:     "Hours",
	}); err != nil {
		return err
	}

	for month := 1; month <= 12; month++ {
		hours := "16"
		if month == 12 {
			hours = "24"
		}
		if err := h.Store.UpsertMetric(ctx, "initech-support", sqlite.MetricRow{
			Year: year - 1, Month: month, ConsumedHours: hours,
		}); err != nil {
			return err
		}
	}
	return h.Store.UpsertMetric(ctx, "initech-support", sqlite.MetricRow{
		Year: year, Month: 1, ConsumedHours: "20",
	})
}

func loadBilledExcessScenario(ctx context.Context, h *Handler) error {
	year := scenarioYear()
	yearStr := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC).Format("2006")

	if err := h.Store.SaveClient(ctx, sqlite.Client{ID: "umbrella", Name: "Umbrella Health"}); err != nil {
		return err
	}
	if err := h.Store.SaveWorkPackage(ctx, factory.WorkPackageRecord{
		ID:           "umbrella-tickets",
		ClientID:     "umbrella",
		Name:         "Umbrella Ticket Bundle",
		ContractType: "EVENTOS",
	}); err != nil {
		return err
	}
	if err := h.Store.SavePeriod(ctx, "umbrella-tickets", factory.PeriodRecord{
		ID:            "umbrella-" + yearStr,
		StartDate:     yearStr + "-01-01",
		EndDate:       yearStr + "-12-31",
		TotalQuantity: "24",
		ScopeUnit:     "Tickets",
	}); err != nil {
		return err
	}

	// January blows through the 2-ticket monthly allotment
	tickets := make([]sqlite.TicketRow, 0, 6)
	for i := 0; i < 6; i++ {
		tickets = append(tickets, sqlite.TicketRow{Year: year, Month: 1, IssueType: "Incidencia"})
	}
	if err := h.Store.AddTickets(ctx, "umbrella-tickets", tickets); err != nil {
		return err
	}

	// Excess billed to the client, expanding the period's scope
	return h.Store.AppendRegularization(ctx, "umbrella-tickets", factory.RegularizationRecord{
		ID:       "umbrella-reg-1",
		Date:     yearStr + "-01-31",
		Type:     "EXCESS",
		Quantity: "4",
	})
}
