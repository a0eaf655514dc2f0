/*
report.go - Final per-work-package report assembly and batch fan-out

PURPOSE:
  Combines the current period's accumulated totals with the carryover from
  contract history into the flat report record the export/UI layers consume:

    TotalScope       = contracted + billed excess (full current period)
    ContractedToDate = contracted + billed excess, months through today
    Remaining        = ContractedToDate + carryover - consumed to date

  A work package with no validity periods yields no report (nil, nil): an
  incompletely configured contract is skipped, not failed. Malformed input
  (invalid period, zero reference instant) fails only that work package.

BATCH REPORTS:
  BuildReports fans out one goroutine per work package. Each computation
  reads only its own snapshot, so there is no shared state to guard; results
  land in an index-addressed slice and come back in input order.
*/
package engine

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Report is the computed consumption report for one work package.
type Report struct {
	WorkPackageID WorkPackageID
	ClientID      ClientID
	Name          string

	ScopeUnit string
	IsEventos bool

	PeriodStart TimePoint
	PeriodEnd   TimePoint

	// TotalScope is the current period's full contracted scope including
	// billed excess.
	TotalScope decimal.Decimal

	// TotalConsumed is the full-period net consumption, informational: it
	// may include months not yet reached.
	TotalConsumed decimal.Decimal

	// ConsumedToDate and ContractedToDate cover months through the
	// reference instant.
	ConsumedToDate   decimal.Decimal
	ContractedToDate decimal.Decimal

	// Carryover is the net balance inherited from closed periods.
	Carryover decimal.Decimal

	// Remaining is the live balance: contracted-to-date plus carryover
	// minus consumed-to-date. May be negative.
	Remaining decimal.Decimal

	// Warnings flag data-quality findings (runaway period spans) without
	// failing the computation.
	Warnings []string
}

// BuildReport computes the report for one work package snapshot as of the
// given instant. Returns (nil, nil) when the work package has no validity
// periods.
func BuildReport(s Snapshot, now time.Time) (*Report, error) {
	if now.IsZero() {
		return nil, ErrInvalidInstant
	}
	for _, p := range s.Periods {
		if err := p.Validate(s.WorkPackage.ID); err != nil {
			return nil, err
		}
	}

	current, ok := SelectCurrent(s.Periods, now)
	if !ok {
		return nil, nil
	}

	meter := NewMeter(s)
	ledger := NewAdjustmentLedger(s.Regularizations)

	totals := AccumulatePeriod(current, meter, ledger, MonthOf(At(now)))
	carryover := AggregateCarryover(s.Periods, current, meter, ledger)

	r := &Report{
		WorkPackageID:    s.WorkPackage.ID,
		ClientID:         s.WorkPackage.ClientID,
		Name:             s.WorkPackage.Name,
		ScopeUnit:        current.ScopeUnit,
		IsEventos:        s.WorkPackage.IsEventos(),
		PeriodStart:      current.Start,
		PeriodEnd:        current.End,
		TotalScope:       totals.Contracted.Add(totals.BilledExcess),
		TotalConsumed:    totals.Consumed,
		ConsumedToDate:   totals.ConsumedToDate,
		ContractedToDate: totals.BilledToDate,
		Carryover:        carryover,
		Remaining:        totals.BilledToDate.Add(carryover).Sub(totals.ConsumedToDate),
	}

	if totals.Truncated {
		r.Warnings = append(r.Warnings,
			"period "+current.Start.String()+".."+current.End.String()+" exceeds the 120-month bound; totals cover the first 120 months")
	}

	return r, nil
}

// Failure records a work package whose report could not be computed.
// The batch keeps going; the caller decides whether to flag or omit.
type Failure struct {
	WorkPackageID WorkPackageID
	Err           error
}

// BuildReports computes reports for many work packages concurrently.
// Reports come back in input order; skipped work packages (no periods) are
// simply absent. The batch never fails as a whole.
func BuildReports(snapshots []Snapshot, now time.Time) ([]Report, []Failure) {
	type slot struct {
		report *Report
		err    error
	}

	slots := make([]slot, len(snapshots))
	var wg sync.WaitGroup
	for i := range snapshots {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := BuildReport(snapshots[i], now)
			slots[i] = slot{report: r, err: err}
		}(i)
	}
	wg.Wait()

	var reports []Report
	var failures []Failure
	for i, s := range slots {
		switch {
		case s.err != nil:
			failures = append(failures, Failure{
				WorkPackageID: snapshots[i].WorkPackage.ID,
				Err:           s.err,
			})
		case s.report != nil:
			reports = append(reports, *s.report)
		}
	}
	return reports, failures
}
