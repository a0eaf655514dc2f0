/*
accumulator.go - Month-by-month totals for one validity period

PURPOSE:
  Walks a validity period's calendar months from start month to end month
  inclusive, combining raw consumption (consumption.go) with the month's
  regularization scalars (regularization.go) into running totals. This is
  where the accounting identities live:

    net monthly consumed   = raw + manualConsumption(Eventos only) - returned
    net monthly contracted = TotalQuantity/months + oneOff

  Months up to and including the reference month additionally accrue into the
  "to date" totals (BilledToDate, ConsumedToDate); the full-span totals are
  what closed periods settle on.

ACCUMULATOR DISCIPLINE:
  Every total is an explicit value threaded through the loop and returned.
  Nothing is stored on the input records; calling the accumulator twice with
  the same inputs gives the same totals.

SAFETY BOUND:
  The walk is capped at 120 months. Contract periods run one to a few years;
  a period over ten years is a data-quality problem, so the cap trips into a
  Truncated flag that the report surfaces instead of silently cutting off.
*/
package engine

import (
	"github.com/shopspring/decimal"
)

// maxPeriodMonths caps the month walk. Periods are expected to be well
// under ten years.
const maxPeriodMonths = 120

// PeriodTotals are the accumulated results of walking one validity period.
type PeriodTotals struct {
	// Contracted is the full-span contracted scope: the pro-rated base for
	// every month plus any one-off top-ups.
	Contracted decimal.Decimal

	// Consumed is the full-span net consumption (raw + manual - returned).
	Consumed decimal.Decimal

	// BilledExcess is the full-span billed EXCESS/SOBRANTE_ANTERIOR sum.
	BilledExcess decimal.Decimal

	// OneOff and Returned are tracked separately for reporting and for the
	// carryover settlement formula.
	OneOff   decimal.Decimal
	Returned decimal.Decimal

	// BilledToDate is contracted + billed excess accrued through the
	// reference month. ConsumedToDate is net consumption through the
	// reference month.
	BilledToDate   decimal.Decimal
	ConsumedToDate decimal.Decimal

	// Truncated is set when the period spans more than maxPeriodMonths and
	// the walk stopped at the cap.
	Truncated bool
}

// AccumulatePeriod walks the period month by month and returns its totals.
// refMonth decides which months count "to date". The period must already be
// validated; a degenerate month span yields zero contracted scope.
func AccumulatePeriod(p ValidityPeriod, meter *Meter, ledger *AdjustmentLedger, refMonth MonthKey) PeriodTotals {
	var totals PeriodTotals

	monthlyBase := p.MonthlyContracted()
	endMonth := MonthOf(p.End)

	month := MonthOf(p.Start)
	for steps := 0; !month.AfterMonth(endMonth); month = month.Next() {
		if steps++; steps > maxPeriodMonths {
			totals.Truncated = true
			break
		}

		adj := ledger.ForMonth(month)

		contracted := monthlyBase.Add(adj.OneOff)
		consumed := meter.ConsumedIn(month)
		if meter.IsEventos() {
			consumed = consumed.Add(adj.ManualConsumption)
		}
		consumed = consumed.Sub(adj.Returned)

		totals.Contracted = totals.Contracted.Add(contracted)
		totals.Consumed = totals.Consumed.Add(consumed)
		totals.BilledExcess = totals.BilledExcess.Add(adj.BilledExcess)
		totals.OneOff = totals.OneOff.Add(adj.OneOff)
		totals.Returned = totals.Returned.Add(adj.Returned)

		if !month.AfterMonth(refMonth) {
			totals.BilledToDate = totals.BilledToDate.Add(contracted).Add(adj.BilledExcess)
			totals.ConsumedToDate = totals.ConsumedToDate.Add(consumed)
		}
	}

	return totals
}

// Settlement returns the period's net surplus (positive) or deficit
// (negative) once fully realized: everything contracted and billed, minus
// everything consumed net of returns. Closed periods feed this into the
// carryover.
func (pt PeriodTotals) Settlement() decimal.Decimal {
	return pt.Contracted.Sub(pt.Consumed.Sub(pt.Returned)).Add(pt.BilledExcess)
}
