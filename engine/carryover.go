/*
carryover.go - Net balance inherited from closed validity periods

PURPOSE:
  Replays every validity period that ended before the current period's start
  and sums each one's settlement (surplus or deficit), plus any stray billed
  adjustments from before the modeled history. The result is a single scalar
  carried into the current period's balance; negative means the client had
  already over-consumed relative to contract when the current period began.

  Closed periods are fully realized, so the replay uses full-span totals,
  never "to date" ones.
*/
package engine

import (
	"github.com/shopspring/decimal"
)

// AggregateCarryover computes the balance carried into the current period.
//
// Previous periods are those with End before current.Start. Ledger entries
// dated before current.Start that fall inside none of them (stray
// pre-history adjustments) contribute directly: billed EXCESS and
// SOBRANTE_ANTERIOR add, billed RETURN subtracts. Each previous period then
// contributes its settlement from a full replay.
func AggregateCarryover(periods []ValidityPeriod, current ValidityPeriod, meter *Meter, ledger *AdjustmentLedger) decimal.Decimal {
	var previous []ValidityPeriod
	for _, p := range periods {
		if p.End.Before(current.Start) {
			previous = append(previous, p)
		}
	}

	carryover := ledger.StrayBefore(current.Start, previous)

	for _, p := range previous {
		// Full span: every month of a closed period is realized, so the
		// reference month is the period's own end month.
		totals := AccumulatePeriod(p, meter, ledger, MonthOf(p.End))
		carryover = carryover.Add(totals.Settlement())
	}

	return carryover
}

// CarryoverOf is a convenience over AggregateCarryover for a snapshot whose
// current period has already been selected.
func CarryoverOf(s Snapshot, current ValidityPeriod, meter *Meter, ledger *AdjustmentLedger) decimal.Decimal {
	if meter == nil {
		meter = NewMeter(s)
	}
	if ledger == nil {
		ledger = NewAdjustmentLedger(s.Regularizations)
	}
	return AggregateCarryover(s.Periods, current, meter, ledger)
}
