/*
regularization.go - Month-partitioned reduction of the adjustment ledger

PURPOSE:
  Partitions a work package's regularization entries by calendar month and
  reduces each month's partition to four scalars:

    ManualConsumption  MANUAL_CONSUMPTION sum (adds to consumption,
                       Eventos mode only - see accumulator.go)
    Returned           RETURN sum (subtracts from consumption, both modes)
    BilledExcess       EXCESS + SOBRANTE_ANTERIOR sums where IsBilled
                       (adds to the contracted/billed side)
    OneOff             CONTRATACION_PUNTUAL sum (adds to that month's
                       contracted amount)

  Unknown entry types are ignored in every sum: malformed entries are the
  data-entry boundary's problem, and must never crash the engine. Negative
  quantities are summed as given; validation lives upstream.
*/
package engine

import (
	"github.com/shopspring/decimal"
)

// MonthlyAdjustments is the reduced effect of one month's regularizations.
type MonthlyAdjustments struct {
	ManualConsumption decimal.Decimal
	Returned          decimal.Decimal
	BilledExcess      decimal.Decimal
	OneOff            decimal.Decimal
}

// AdjustmentLedger indexes a work package's regularizations by month.
// Built once per snapshot, read by every accumulator pass.
type AdjustmentLedger struct {
	byMonth map[MonthKey]MonthlyAdjustments
	entries []Regularization
}

// NewAdjustmentLedger partitions and reduces the ledger entries.
func NewAdjustmentLedger(entries []Regularization) *AdjustmentLedger {
	l := &AdjustmentLedger{
		byMonth: make(map[MonthKey]MonthlyAdjustments),
		entries: entries,
	}

	for _, e := range entries {
		k := MonthOf(e.Date)
		adj := l.byMonth[k]

		switch e.Type {
		case RegManualConsumption:
			adj.ManualConsumption = adj.ManualConsumption.Add(e.Quantity)
		case RegReturn:
			adj.Returned = adj.Returned.Add(e.Quantity)
		case RegExcess, RegPriorSurplus:
			if e.IsBilled {
				adj.BilledExcess = adj.BilledExcess.Add(e.Quantity)
			}
		case RegOneOff:
			adj.OneOff = adj.OneOff.Add(e.Quantity)
		}
		// Unknown types fall through every case and are dropped.

		l.byMonth[k] = adj
	}
	return l
}

// ForMonth returns the reduced adjustments for one calendar month.
// Months with no entries return the zero value.
func (l *AdjustmentLedger) ForMonth(month MonthKey) MonthlyAdjustments {
	return l.byMonth[month]
}

// StrayBefore sums the billed EXCESS/SOBRANTE_ANTERIOR entries, minus the
// billed RETURN entries, dated before 'cutoff' and not attributable to any of
// the given periods. These are pre-history adjustments from before the first
// modeled validity period; the carryover aggregator folds them in.
func (l *AdjustmentLedger) StrayBefore(cutoff TimePoint, periods []ValidityPeriod) decimal.Decimal {
	total := decimal.Zero

entry:
	for _, e := range l.entries {
		if !e.Date.Before(cutoff) || !e.IsBilled {
			continue
		}
		switch e.Type {
		case RegExcess, RegPriorSurplus, RegReturn:
		default:
			continue
		}
		for _, p := range periods {
			if p.ContainsDate(e.Date) {
				continue entry
			}
		}
		if e.Type == RegReturn {
			total = total.Sub(e.Quantity)
		} else {
			total = total.Add(e.Quantity)
		}
	}
	return total
}
