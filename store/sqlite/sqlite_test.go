package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/scope-engine/engine"
	"github.com/warp/scope-engine/factory"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func boolPtr(b bool) *bool { return &b }

func seedWorkPackage(t *testing.T, store *Store, id, contractType string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.SaveClient(ctx, Client{ID: "CL1", Name: "Acme"}))
	require.NoError(t, store.SaveWorkPackage(ctx, factory.WorkPackageRecord{
		ID:           id,
		ClientID:     "CL1",
		Name:         "Support " + id,
		ContractType: contractType,
	}))
}

func TestRoundTripWorkPackage(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	seedWorkPackage(t, store, "WP1", "EVENTOS")

	got, err := store.GetWorkPackage(ctx, "WP1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "WP1", got.ID)
	assert.Equal(t, "CL1", got.ClientID)
	assert.Equal(t, "EVENTOS", got.ContractType)

	missing, err := store.GetWorkPackage(ctx, "NOPE")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestPeriodsOrderedByStartDate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedWorkPackage(t, store, "WP1", "HORAS")

	require.NoError(t, store.SavePeriod(ctx, "WP1", factory.PeriodRecord{
		ID: "P2", StartDate: "2025-01-01", EndDate: "2025-12-31",
		TotalQuantity: "240", ScopeUnit: "Hours",
	}))
	require.NoError(t, store.SavePeriod(ctx, "WP1", factory.PeriodRecord{
		ID: "P1", StartDate: "2024-01-01", EndDate: "2024-12-31",
		TotalQuantity: "120", ScopeUnit: "Hours",
	}))

	periods, err := store.ListPeriods(ctx, "WP1")
	require.NoError(t, err)
	require.Len(t, periods, 2)
	assert.Equal(t, "P1", periods[0].ID)
	assert.Equal(t, "P2", periods[1].ID)
}

func TestRegularizationDefaultsToBilled(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedWorkPackage(t, store, "WP1", "EVENTOS")

	// No IsBilled on the record: billed by default.
	require.NoError(t, store.AppendRegularization(ctx, "WP1", factory.RegularizationRecord{
		ID: "R1", Date: "2025-03-10", Type: "EXCESS", Quantity: "5",
	}))
	require.NoError(t, store.AppendRegularization(ctx, "WP1", factory.RegularizationRecord{
		ID: "R2", Date: "2025-03-11", Type: "EXCESS", Quantity: "2", IsBilled: boolPtr(false),
	}))

	regs, err := store.ListRegularizations(ctx, "WP1")
	require.NoError(t, err)
	require.Len(t, regs, 2)
	require.NotNil(t, regs[0].IsBilled)
	assert.True(t, *regs[0].IsBilled)
	require.NotNil(t, regs[1].IsBilled)
	assert.False(t, *regs[1].IsBilled)
}

func TestUpsertMetricReplacesMonth(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedWorkPackage(t, store, "WP1", "HORAS")

	require.NoError(t, store.SavePeriod(ctx, "WP1", factory.PeriodRecord{
		ID: "P1", StartDate: "2025-01-01", EndDate: "2025-12-31",
		TotalQuantity: "120", ScopeUnit: "Hours",
	}))
	require.NoError(t, store.UpsertMetric(ctx, "WP1", MetricRow{Year: 2025, Month: 1, ConsumedHours: "8"}))
	require.NoError(t, store.UpsertMetric(ctx, "WP1", MetricRow{Year: 2025, Month: 1, ConsumedHours: "12.5"}))

	snaps, err := store.LoadSnapshots(ctx, []string{"WP1"})
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	require.Len(t, snaps[0].Metrics, 1)
	assert.True(t, snaps[0].Metrics[0].ConsumedHours.Equal(engine.MustDecimal("12.5")))
}

func TestLoadSnapshotsAssemblesPerWorkPackage(t *testing.T) {
	// GIVEN two work packages with disjoint child records
	store := newTestStore(t)
	ctx := context.Background()
	seedWorkPackage(t, store, "WP1", "EVENTOS")
	seedWorkPackage(t, store, "WP2", "HORAS")

	require.NoError(t, store.SavePeriod(ctx, "WP1", factory.PeriodRecord{
		ID: "P1", StartDate: "2025-01-01", EndDate: "2025-12-31",
		TotalQuantity: "60", ScopeUnit: "Tickets",
	}))
	require.NoError(t, store.SavePeriod(ctx, "WP2", factory.PeriodRecord{
		ID: "P2", StartDate: "2025-01-01", EndDate: "2025-12-31",
		TotalQuantity: "240", ScopeUnit: "Hours",
	}))
	require.NoError(t, store.AddTickets(ctx, "WP1", []TicketRow{
		{Year: 2025, Month: 2, IssueType: "Consulta"},
		{Year: 2025, Month: 2, IssueType: "Incidencia"},
	}))
	require.NoError(t, store.UpsertMetric(ctx, "WP2", MetricRow{Year: 2025, Month: 2, ConsumedHours: "17"}))
	require.NoError(t, store.AppendRegularization(ctx, "WP1", factory.RegularizationRecord{
		ID: "R1", Date: "2025-02-15", Type: "EXCESS", Quantity: "3",
	}))

	// WHEN loading all snapshots
	snaps, err := store.LoadSnapshots(ctx, nil)
	require.NoError(t, err)
	require.Len(t, snaps, 2)

	// THEN each snapshot holds only its own records
	byID := map[engine.WorkPackageID]engine.Snapshot{}
	for _, s := range snaps {
		byID[s.WorkPackage.ID] = s
	}
	wp1 := byID["WP1"]
	assert.True(t, wp1.WorkPackage.IsEventos())
	assert.Len(t, wp1.Tickets, 2)
	assert.Len(t, wp1.Regularizations, 1)
	assert.Empty(t, wp1.Metrics)

	wp2 := byID["WP2"]
	assert.False(t, wp2.WorkPackage.IsEventos())
	assert.Len(t, wp2.Metrics, 1)
	assert.Empty(t, wp2.Tickets)
}

func TestLoadSnapshotsFiltersByID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedWorkPackage(t, store, "WP1", "EVENTOS")
	seedWorkPackage(t, store, "WP2", "HORAS")

	snaps, err := store.LoadSnapshots(ctx, []string{"WP2"})
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, engine.WorkPackageID("WP2"), snaps[0].WorkPackage.ID)
}

func TestLoadSnapshotsFeedsReportEndToEnd(t *testing.T) {
	// GIVEN a stored eventos contract with tickets and a billed excess
	store := newTestStore(t)
	ctx := context.Background()
	seedWorkPackage(t, store, "WP1", "EVENTOS")
	require.NoError(t, store.SavePeriod(ctx, "WP1", factory.PeriodRecord{
		ID: "P1", StartDate: "2025-01-01", EndDate: "2025-12-31",
		TotalQuantity: "120", ScopeUnit: "Tickets",
	}))
	require.NoError(t, store.AddTickets(ctx, "WP1", []TicketRow{
		{Year: 2025, Month: 1, IssueType: "Consulta"},
		{Year: 2025, Month: 1, IssueType: "Incidencia"},
	}))
	require.NoError(t, store.AppendRegularization(ctx, "WP1", factory.RegularizationRecord{
		ID: "R1", Date: "2025-01-20", Type: "EXCESS", Quantity: "4",
	}))

	// WHEN loading and reporting as of mid-February 2025
	snaps, err := store.LoadSnapshots(ctx, []string{"WP1"})
	require.NoError(t, err)
	require.Len(t, snaps, 1)

	now := time.Date(2025, time.February, 15, 12, 0, 0, 0, time.UTC)
	report, err := engine.BuildReport(snaps[0], now)
	require.NoError(t, err)
	require.NotNil(t, report)

	// THEN scope covers the contracted quantity plus the billed excess
	assert.True(t, report.TotalScope.Equal(engine.MustDecimal("124")),
		"total scope = %s", report.TotalScope)
	assert.True(t, report.TotalConsumed.Equal(engine.MustDecimal("2")))
}

func TestReconciliationRunIsRecordedOnce(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedWorkPackage(t, store, "WP1", "HORAS")

	run := ReconciliationRun{
		ID: "RUN1", WorkPackageID: "WP1", PeriodID: "P1",
		PeriodStart: "2024-01-01", PeriodEnd: "2024-12-31",
		Settlement: "20", Status: "recorded",
	}
	require.NoError(t, store.SaveReconciliationRun(ctx, run))

	// Duplicate run for the same period is a no-op.
	run.ID = "RUN2"
	run.Settlement = "999"
	require.NoError(t, store.SaveReconciliationRun(ctx, run))

	has, err := store.HasReconciliationRun(ctx, "WP1", "P1")
	require.NoError(t, err)
	assert.True(t, has)

	runs, err := store.ListReconciliationRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "RUN1", runs[0].ID)
	assert.Equal(t, "20", runs[0].Settlement)
}

func TestResetClearsEverything(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedWorkPackage(t, store, "WP1", "EVENTOS")
	require.NoError(t, store.AppendRegularization(ctx, "WP1", factory.RegularizationRecord{
		ID: "R1", Date: "2025-01-01", Type: "RETURN", Quantity: "1",
	}))

	require.NoError(t, store.Reset(ctx))

	wps, err := store.ListWorkPackages(ctx)
	require.NoError(t, err)
	assert.Empty(t, wps)

	clients, err := store.ListClients(ctx)
	require.NoError(t, err)
	assert.Empty(t, clients)
}
