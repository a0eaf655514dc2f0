/*
consumption.go - Raw monthly consumption under either contract mode

PURPOSE:
  Answers "how much did this work package consume in month M?" before any
  regularization is applied.

  Eventos mode: counts tickets whose (year, month) match the target and that
  pass the work package's inclusion rules (see Ticket.CountsFor). Separately
  billed tickets never count; evolutivo tickets count only when the matching
  inclusion flag is set; an issue-type allow list, when present, filters the
  rest.

  Hours mode: looks up the precomputed MonthlyMetric for the month. A missing
  metric means the month simply has not been worked (or synced) yet and
  contributes zero - genuinely unstarted months are not failures.

MODE EXCLUSIVITY:
  An Eventos meter reads only tickets; an Hours meter reads only metrics.
  Whatever stray records of the other kind exist in the snapshot are ignored.
*/
package engine

import (
	"github.com/shopspring/decimal"
)

// Meter precomputes per-month raw consumption for one work package, so the
// month-walking accumulators do a map lookup instead of re-filtering records
// on every month.
type Meter struct {
	eventos bool
	byMonth map[MonthKey]decimal.Decimal
}

// NewMeter builds the per-month consumption index for the snapshot's work
// package, applying the inclusion rules once.
func NewMeter(s Snapshot) *Meter {
	m := &Meter{
		eventos: s.WorkPackage.IsEventos(),
		byMonth: make(map[MonthKey]decimal.Decimal),
	}

	if m.eventos {
		for _, t := range s.Tickets {
			if !t.CountsFor(s.WorkPackage) {
				continue
			}
			k := MonthKey{Year: t.Year, Month: t.Month}
			m.byMonth[k] = m.byMonth[k].Add(decimal.NewFromInt(1))
		}
		return m
	}

	for _, metric := range s.Metrics {
		k := MonthKey{Year: metric.Year, Month: metric.Month}
		m.byMonth[k] = m.byMonth[k].Add(metric.ConsumedHours)
	}
	return m
}

// IsEventos reports the meter's counting mode.
func (m *Meter) IsEventos() bool {
	return m.eventos
}

// ConsumedIn returns the raw consumed quantity for one calendar month.
// Months with no data return zero.
func (m *Meter) ConsumedIn(month MonthKey) decimal.Decimal {
	return m.byMonth[month]
}
