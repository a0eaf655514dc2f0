package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// VALIDITY PERIOD - Date-bounded contracted scope
// =============================================================================

// ValidityPeriod is an inclusive date range [Start, End] during which
// TotalQuantity of scope applies to a work package. The end date is treated
// as end-of-day. Periods are expected not to overlap, but the engine does
// not assume that is enforced upstream.
type ValidityPeriod struct {
	ID            string
	Start         TimePoint
	End           TimePoint
	TotalQuantity decimal.Decimal
	ScopeUnit     string
}

// Validate checks the period invariants: End >= Start, TotalQuantity >= 0.
func (p ValidityPeriod) Validate(wpID WorkPackageID) error {
	if p.End.Before(p.Start) {
		return &InvalidPeriodError{WorkPackageID: wpID, Start: p.Start, End: p.End,
			Reason: "end date before start date"}
	}
	if p.TotalQuantity.IsNegative() {
		return &InvalidPeriodError{WorkPackageID: wpID, Start: p.Start, End: p.End,
			Reason: "negative total quantity"}
	}
	return nil
}

// ContainsInstant reports whether the instant falls in
// [Start, endOfDay(End)].
func (p ValidityPeriod) ContainsInstant(at time.Time) bool {
	return !at.Before(p.Start.Time) && !at.After(p.EndOfDay())
}

// ContainsDate reports whether a date falls in the period's inclusive range.
func (p ValidityPeriod) ContainsDate(d TimePoint) bool {
	return p.ContainsInstant(d.Time)
}

// EndOfDay returns the inclusive end instant of the period.
func (p ValidityPeriod) EndOfDay() time.Time {
	return p.End.EndOfDay()
}

// Months returns the number of calendar months the period spans, counting
// both endpoints' months.
func (p ValidityPeriod) Months() int {
	return MonthsInclusive(p.Start, p.End)
}

// MonthlyContracted returns the period's pro-rated monthly scope:
// TotalQuantity spread evenly across the months of the period. A degenerate
// month span contributes zero rather than dividing by zero.
func (p ValidityPeriod) MonthlyContracted() decimal.Decimal {
	months := p.Months()
	if months <= 0 {
		return decimal.Zero
	}
	return p.TotalQuantity.Div(decimal.NewFromInt(int64(months)))
}

// =============================================================================
// PERIOD SELECTOR - Pick the period a report runs against
// =============================================================================

// SelectCurrent picks the "current" validity period for a reference instant:
// the first period (in start-date order) whose range contains the instant,
// or the period with the latest start date when none matches. Returns false
// when the list is empty; the caller skips the work package, it is not an
// error.
func SelectCurrent(periods []ValidityPeriod, now time.Time) (ValidityPeriod, bool) {
	if len(periods) == 0 {
		return ValidityPeriod{}, false
	}

	for _, p := range periods {
		if p.ContainsInstant(now) {
			return p, true
		}
	}

	latest := periods[0]
	for _, p := range periods[1:] {
		if p.Start.After(latest.Start) {
			latest = p
		}
	}
	return latest, true
}
