/*
Package sqlite provides the SQLite-backed persistence layer.

PURPOSE:
  Stores the contract-management records the engine reports on: clients,
  work packages, validity periods, regularizations, tickets and monthly
  metrics, plus the reconciliation-run audit table. In production the same
  patterns apply to PostgreSQL - only minor SQL dialect differences.

APPEND-ONLY LEDGER:
  The regularizations table is append-only: no UPDATE or DELETE statements
  exist for it. A wrong entry is corrected by a new compensating entry, so
  the adjustment history stays auditable.

SNAPSHOT LOADING:
  LoadSnapshots materializes the engine's per-work-package input sets with
  one query per entity type over the whole id set (no per-work-package
  round trips), then assembles and validates the records through the
  factory package. The engine itself never touches the database.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/scope.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  snapshots, err := store.LoadSnapshots(ctx, nil) // nil = all work packages

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - factory: raw record shapes and their validation
  - engine: the computation the snapshots feed
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/scope-engine/engine"
	"github.com/warp/scope-engine/factory"
)

// Store persists all contract records.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS clients (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS work_packages (
		id TEXT PRIMARY KEY,
		client_id TEXT NOT NULL,
		name TEXT NOT NULL,
		contract_type TEXT NOT NULL,
		included_ticket_types TEXT NOT NULL DEFAULT '',
		include_evo_tm BOOLEAN NOT NULL DEFAULT FALSE,
		include_evo_estimates BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_work_packages_client
		ON work_packages(client_id);

	CREATE TABLE IF NOT EXISTS validity_periods (
		id TEXT PRIMARY KEY,
		work_package_id TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		total_quantity TEXT NOT NULL,
		scope_unit TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_periods_wp_start
		ON validity_periods(work_package_id, start_date);

	-- Append-only adjustment ledger. No UPDATE, no DELETE.
	CREATE TABLE IF NOT EXISTS regularizations (
		id TEXT PRIMARY KEY,
		work_package_id TEXT NOT NULL,
		date TEXT NOT NULL,
		type TEXT NOT NULL,
		quantity TEXT NOT NULL,
		is_billed BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_regularizations_wp_date
		ON regularizations(work_package_id, date);

	CREATE TABLE IF NOT EXISTS tickets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		work_package_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		month INTEGER NOT NULL,
		issue_type TEXT NOT NULL,
		billing_mode TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tickets_wp_month
		ON tickets(work_package_id, year, month);

	-- One record per work package per month; the worklog sync replaces it.
	CREATE TABLE IF NOT EXISTS monthly_metrics (
		work_package_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		month INTEGER NOT NULL,
		consumed_hours TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (work_package_id, year, month)
	);

	CREATE TABLE IF NOT EXISTS reconciliation_runs (
		id TEXT PRIMARY KEY,
		work_package_id TEXT NOT NULL,
		period_id TEXT NOT NULL,
		period_start TEXT NOT NULL,
		period_end TEXT NOT NULL,
		settlement TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_reconciliation_runs_wp_period
		ON reconciliation_runs(work_package_id, period_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// CLIENTS
// =============================================================================

type Client struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

func (s *Store) SaveClient(ctx context.Context, c Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO clients (id, name, created_at) VALUES (?, ?, ?)`,
		c.ID, c.Name, now())
	return err
}

func (s *Store) ListClients(ctx context.Context) ([]Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, created_at FROM clients ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query clients: %w", err)
	}
	defer rows.Close()

	var clients []Client
	for rows.Next() {
		var c Client
		var createdAt string
		if err := rows.Scan(&c.ID, &c.Name, &createdAt); err != nil {
			return nil, err
		}
		c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

// =============================================================================
// WORK PACKAGES
// =============================================================================

func (s *Store) SaveWorkPackage(ctx context.Context, rec factory.WorkPackageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO work_packages
		(id, client_id, name, contract_type, included_ticket_types,
		 include_evo_tm, include_evo_estimates, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.ClientID, rec.Name, rec.ContractType, rec.IncludedTicketTypes,
		rec.IncludeEvoTM, rec.IncludeEvoEstimates, now())
	return err
}

func (s *Store) GetWorkPackage(ctx context.Context, id string) (*factory.WorkPackageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, client_id, name, contract_type, included_ticket_types,
		       include_evo_tm, include_evo_estimates
		FROM work_packages WHERE id = ?`, id)

	var rec factory.WorkPackageRecord
	err := row.Scan(&rec.ID, &rec.ClientID, &rec.Name, &rec.ContractType,
		&rec.IncludedTicketTypes, &rec.IncludeEvoTM, &rec.IncludeEvoEstimates)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get work package: %w", err)
	}
	return &rec, nil
}

func (s *Store) ListWorkPackages(ctx context.Context) ([]factory.WorkPackageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, client_id, name, contract_type, included_ticket_types,
		       include_evo_tm, include_evo_estimates
		FROM work_packages ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query work packages: %w", err)
	}
	defer rows.Close()

	var recs []factory.WorkPackageRecord
	for rows.Next() {
		var rec factory.WorkPackageRecord
		if err := rows.Scan(&rec.ID, &rec.ClientID, &rec.Name, &rec.ContractType,
			&rec.IncludedTicketTypes, &rec.IncludeEvoTM, &rec.IncludeEvoEstimates); err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// =============================================================================
// VALIDITY PERIODS
// =============================================================================

func (s *Store) SavePeriod(ctx context.Context, workPackageID string, rec factory.PeriodRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO validity_periods
		(id, work_package_id, start_date, end_date, total_quantity, scope_unit, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, workPackageID, rec.StartDate, rec.EndDate, rec.TotalQuantity, rec.ScopeUnit, now())
	return err
}

func (s *Store) ListPeriods(ctx context.Context, workPackageID string) ([]factory.PeriodRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, start_date, end_date, total_quantity, scope_unit
		FROM validity_periods WHERE work_package_id = ? ORDER BY start_date`,
		workPackageID)
	if err != nil {
		return nil, fmt.Errorf("failed to query periods: %w", err)
	}
	defer rows.Close()

	var recs []factory.PeriodRecord
	for rows.Next() {
		var rec factory.PeriodRecord
		if err := rows.Scan(&rec.ID, &rec.StartDate, &rec.EndDate, &rec.TotalQuantity, &rec.ScopeUnit); err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// =============================================================================
// REGULARIZATIONS (append-only)
// =============================================================================

// AppendRegularization adds a ledger entry. This is the only write
// operation on the ledger; corrections are new compensating entries.
func (s *Store) AppendRegularization(ctx context.Context, workPackageID string, rec factory.RegularizationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	billed := true
	if rec.IsBilled != nil {
		billed = *rec.IsBilled
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO regularizations
		(id, work_package_id, date, type, quantity, is_billed, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, workPackageID, rec.Date, rec.Type, rec.Quantity, billed, now())
	return err
}

func (s *Store) ListRegularizations(ctx context.Context, workPackageID string) ([]factory.RegularizationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, date, type, quantity, is_billed
		FROM regularizations WHERE work_package_id = ? ORDER BY date, created_at`,
		workPackageID)
	if err != nil {
		return nil, fmt.Errorf("failed to query regularizations: %w", err)
	}
	defer rows.Close()

	var recs []factory.RegularizationRecord
	for rows.Next() {
		var rec factory.RegularizationRecord
		var billed bool
		if err := rows.Scan(&rec.ID, &rec.Date, &rec.Type, &rec.Quantity, &billed); err != nil {
			return nil, err
		}
		rec.IsBilled = &billed
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// =============================================================================
// TICKETS
// =============================================================================

// TicketRow is the raw ticket shape as synced from the issue tracker.
type TicketRow struct {
	Year        int    `json:"year"`
	Month       int    `json:"month"`
	IssueType   string `json:"issue_type"`
	BillingMode string `json:"billing_mode"`
}

// AddTickets inserts a batch of tickets atomically.
func (s *Store) AddTickets(ctx context.Context, workPackageID string, tickets []TicketRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, t := range tickets {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO tickets (work_package_id, year, month, issue_type, billing_mode, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			workPackageID, t.Year, t.Month, t.IssueType, t.BillingMode, now()); err != nil {
			return fmt.Errorf("failed to insert ticket: %w", err)
		}
	}

	return tx.Commit()
}

// =============================================================================
// MONTHLY METRICS
// =============================================================================

// MetricRow is the raw consumed-hours shape from the worklog sync.
type MetricRow struct {
	Year          int    `json:"year"`
	Month         int    `json:"month"`
	ConsumedHours string `json:"consumed_hours"`
}

// UpsertMetric replaces the consumed-hours record for one month. The sync
// process recomputes whole months, so replacement is the natural write.
func (s *Store) UpsertMetric(ctx context.Context, workPackageID string, m MetricRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO monthly_metrics
		(work_package_id, year, month, consumed_hours, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		workPackageID, m.Year, m.Month, m.ConsumedHours, now())
	return err
}

// =============================================================================
// RECONCILIATION RUNS
// =============================================================================

// ReconciliationRun records the computed settlement of a closed period.
type ReconciliationRun struct {
	ID            string
	WorkPackageID string
	PeriodID      string
	PeriodStart   string
	PeriodEnd     string
	Settlement    string
	Status        string
	CreatedAt     time.Time
}

// SaveReconciliationRun records a run. A period already reconciled for a
// work package is left untouched (unique index, INSERT OR IGNORE).
func (s *Store) SaveReconciliationRun(ctx context.Context, run ReconciliationRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO reconciliation_runs
		(id, work_package_id, period_id, period_start, period_end, settlement, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.WorkPackageID, run.PeriodID, run.PeriodStart, run.PeriodEnd,
		run.Settlement, run.Status, now())
	return err
}

func (s *Store) HasReconciliationRun(ctx context.Context, workPackageID, periodID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reconciliation_runs WHERE work_package_id = ? AND period_id = ?`,
		workPackageID, periodID).Scan(&count)
	return count > 0, err
}

func (s *Store) ListReconciliationRuns(ctx context.Context) ([]ReconciliationRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, work_package_id, period_id, period_start, period_end, settlement, status, created_at
		FROM reconciliation_runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query reconciliation runs: %w", err)
	}
	defer rows.Close()

	var runs []ReconciliationRun
	for rows.Next() {
		var run ReconciliationRun
		var createdAt string
		if err := rows.Scan(&run.ID, &run.WorkPackageID, &run.PeriodID, &run.PeriodStart,
			&run.PeriodEnd, &run.Settlement, &run.Status, &createdAt); err != nil {
			return nil, err
		}
		run.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// =============================================================================
// SNAPSHOT LOADING
// =============================================================================

// LoadSnapshots materializes engine snapshots for the given work package
// ids (nil or empty means all work packages). One query per entity type
// over the whole id set, then per-work-package assembly in memory.
func (s *Store) LoadSnapshots(ctx context.Context, ids []string) ([]engine.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wps, err := s.loadWorkPackages(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(wps) == 0 {
		return nil, nil
	}

	order := make([]string, 0, len(wps))
	snapshots := make(map[string]*engine.Snapshot, len(wps))
	for _, rec := range wps {
		wp, err := factory.ParseWorkPackage(rec)
		if err != nil {
			return nil, err
		}
		order = append(order, rec.ID)
		snapshots[rec.ID] = &engine.Snapshot{WorkPackage: wp}
	}

	if err := s.loadPeriodsInto(ctx, snapshots); err != nil {
		return nil, err
	}
	if err := s.loadRegularizationsInto(ctx, snapshots); err != nil {
		return nil, err
	}
	if err := s.loadTicketsInto(ctx, snapshots); err != nil {
		return nil, err
	}
	if err := s.loadMetricsInto(ctx, snapshots); err != nil {
		return nil, err
	}

	result := make([]engine.Snapshot, 0, len(order))
	for _, id := range order {
		result = append(result, *snapshots[id])
	}
	return result, nil
}

func (s *Store) loadWorkPackages(ctx context.Context, ids []string) ([]factory.WorkPackageRecord, error) {
	query := `
		SELECT id, client_id, name, contract_type, included_ticket_types,
		       include_evo_tm, include_evo_estimates
		FROM work_packages`
	args := make([]any, 0, len(ids))
	if len(ids) > 0 {
		query += ` WHERE id IN (` + placeholders(len(ids)) + `)`
		for _, id := range ids {
			args = append(args, id)
		}
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query work packages: %w", err)
	}
	defer rows.Close()

	var recs []factory.WorkPackageRecord
	for rows.Next() {
		var rec factory.WorkPackageRecord
		if err := rows.Scan(&rec.ID, &rec.ClientID, &rec.Name, &rec.ContractType,
			&rec.IncludedTicketTypes, &rec.IncludeEvoTM, &rec.IncludeEvoEstimates); err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func (s *Store) loadPeriodsInto(ctx context.Context, snapshots map[string]*engine.Snapshot) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT work_package_id, id, start_date, end_date, total_quantity, scope_unit
		FROM validity_periods ORDER BY work_package_id, start_date`)
	if err != nil {
		return fmt.Errorf("failed to query periods: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var wpID string
		var rec factory.PeriodRecord
		if err := rows.Scan(&wpID, &rec.ID, &rec.StartDate, &rec.EndDate, &rec.TotalQuantity, &rec.ScopeUnit); err != nil {
			return err
		}
		snap, ok := snapshots[wpID]
		if !ok {
			continue
		}
		p, err := factory.ParsePeriod(wpID, rec)
		if err != nil {
			return err
		}
		snap.Periods = append(snap.Periods, p)
	}
	return rows.Err()
}

func (s *Store) loadRegularizationsInto(ctx context.Context, snapshots map[string]*engine.Snapshot) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT work_package_id, id, date, type, quantity, is_billed
		FROM regularizations ORDER BY work_package_id, date`)
	if err != nil {
		return fmt.Errorf("failed to query regularizations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var wpID string
		var rec factory.RegularizationRecord
		var billed bool
		if err := rows.Scan(&wpID, &rec.ID, &rec.Date, &rec.Type, &rec.Quantity, &billed); err != nil {
			return err
		}
		snap, ok := snapshots[wpID]
		if !ok {
			continue
		}
		rec.IsBilled = &billed
		r, err := factory.ParseRegularization(wpID, rec)
		if err != nil {
			return err
		}
		snap.Regularizations = append(snap.Regularizations, r)
	}
	return rows.Err()
}

func (s *Store) loadTicketsInto(ctx context.Context, snapshots map[string]*engine.Snapshot) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT work_package_id, year, month, issue_type, billing_mode
		FROM tickets`)
	if err != nil {
		return fmt.Errorf("failed to query tickets: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var wpID, issueType, billingMode string
		var year, month int
		if err := rows.Scan(&wpID, &year, &month, &issueType, &billingMode); err != nil {
			return err
		}
		if snap, ok := snapshots[wpID]; ok {
			snap.Tickets = append(snap.Tickets, engine.NewTicket(year, month, issueType, billingMode))
		}
	}
	return rows.Err()
}

func (s *Store) loadMetricsInto(ctx context.Context, snapshots map[string]*engine.Snapshot) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT work_package_id, year, month, consumed_hours
		FROM monthly_metrics`)
	if err != nil {
		return fmt.Errorf("failed to query metrics: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var wpID, hours string
		var year, month int
		if err := rows.Scan(&wpID, &year, &month, &hours); err != nil {
			return err
		}
		if snap, ok := snapshots[wpID]; ok {
			snap.Metrics = append(snap.Metrics, engine.MonthlyMetric{
				Year: year, Month: month, ConsumedHours: engine.MustDecimal(hours),
			})
		}
	}
	return rows.Err()
}

// =============================================================================
// MAINTENANCE
// =============================================================================

// Reset clears every table. Used by scenario loading and tests.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{
		"clients", "work_packages", "validity_periods", "regularizations",
		"tickets", "monthly_metrics", "reconciliation_runs",
	} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to reset %s: %w", table, err)
		}
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
