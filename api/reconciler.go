/*
reconciler.go - Automated period-close reconciliation

PURPOSE:
  Periodically checks for validity periods that have ended and records
  their final settlement (contracted minus consumed, adjusted by returns
  and billed excess) as an audit run.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Detects periods whose end date is in the past
  - Skips periods that already have a recorded run
  - Records runs for audit and UI display only; it never writes
    regularizations, so report math is unaffected

USAGE:
  reconciler := NewReconciler(store)
  reconciler.Start()
  // ... later
  reconciler.Stop()

SEE ALSO:
  - store/sqlite: reconciliation_runs table
  - engine/accumulator.go: the settlement computation
*/
package api

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/warp/scope-engine/engine"
	"github.com/warp/scope-engine/store/sqlite"
)

// Reconciler records settlements for closed validity periods.
type Reconciler struct {
	Store         *sqlite.Store
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewReconciler creates a new reconciler.
func NewReconciler(store *sqlite.Store) *Reconciler {
	return &Reconciler{
		Store:         store,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		stop:          make(chan bool),
	}
}

// Start begins the background loop.
func (rc *Reconciler) Start() {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if !rc.Enabled {
		log.Println("[Reconciler] Disabled, not starting")
		return
	}

	rc.ticker = time.NewTicker(rc.CheckInterval)
	rc.wg.Add(1)

	go rc.run(rc.ticker)

	log.Printf("[Reconciler] Started with check interval: %v", rc.CheckInterval)
}

// Stop stops the background loop. Safe to call more than once.
func (rc *Reconciler) Stop() {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if rc.ticker != nil {
		rc.ticker.Stop()
		rc.ticker = nil
		close(rc.stop)
		rc.wg.Wait()
		log.Println("[Reconciler] Stopped")
	}
}

func (rc *Reconciler) run(ticker *time.Ticker) {
	defer rc.wg.Done()

	// Run immediately on start
	rc.checkAndRecord()

	for {
		select {
		case <-ticker.C:
			rc.checkAndRecord()
		case <-rc.stop:
			return
		}
	}
}

// RunNow triggers an immediate check (for testing/admin).
func (rc *Reconciler) RunNow() {
	rc.checkAndRecord()
}

func (rc *Reconciler) checkAndRecord() {
	ctx := context.Background()
	now := time.Now()

	snaps, err := rc.Store.LoadSnapshots(ctx, nil)
	if err != nil {
		log.Printf("[Reconciler] Error loading work packages: %v", err)
		return
	}

	recordedCount := 0
	skippedCount := 0

	for _, snap := range snaps {
		wpID := string(snap.WorkPackage.ID)
		meter := engine.NewMeter(snap)
		ledger := engine.NewAdjustmentLedger(snap.Regularizations)

		for _, period := range snap.Periods {
			if !period.End.EndOfDay().Before(now) {
				// Period still open
				continue
			}

			done, err := rc.Store.HasReconciliationRun(ctx, wpID, period.ID)
			if err != nil {
				log.Printf("[Reconciler] Error checking run status for %s/%s: %v", wpID, period.ID, err)
				continue
			}
			if done {
				skippedCount++
				continue
			}

			totals := engine.AccumulatePeriod(period, meter, ledger, engine.MonthOf(period.End))
			settlement := totals.Settlement()

			status := "completed"
			if totals.Truncated {
				status = "truncated"
			}

			run := sqlite.ReconciliationRun{
				ID:            fmt.Sprintf("run-%d", time.Now().UnixNano()),
				WorkPackageID: wpID,
				PeriodID:      period.ID,
				PeriodStart:   period.Start.String(),
				PeriodEnd:     period.End.String(),
				Settlement:    settlement.String(),
				Status:        status,
			}

			if err := rc.Store.SaveReconciliationRun(ctx, run); err != nil {
				log.Printf("[Reconciler] Error saving run for %s/%s: %v", wpID, period.ID, err)
				continue
			}

			log.Printf("[Reconciler] Recorded %s/%s: settlement=%s", wpID, period.ID, settlement)
			recordedCount++
		}
	}

	if recordedCount > 0 || skippedCount > 0 {
		log.Printf("[Reconciler] Completed: %d recorded, %d skipped (already done)", recordedCount, skippedCount)
	}
}
