package engine

import (
	"fmt"
	"time"
)

// =============================================================================
// TIME POINT - Day-granular instant (all contract dates are dates, not times)
// =============================================================================

type TimePoint struct {
	Time time.Time
}

// Constructors
func NewTimePoint(year int, month time.Month, day int) TimePoint {
	return TimePoint{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func At(t time.Time) TimePoint {
	return TimePoint{Time: t.UTC()}
}

// Comparison
func (tp TimePoint) Before(other TimePoint) bool { return tp.Time.Before(other.Time) }
func (tp TimePoint) After(other TimePoint) bool  { return tp.Time.After(other.Time) }
func (tp TimePoint) IsZero() bool                { return tp.Time.IsZero() }

// Properties
func (tp TimePoint) Year() int         { return tp.Time.Year() }
func (tp TimePoint) Month() time.Month { return tp.Time.Month() }
func (tp TimePoint) Day() int          { return tp.Time.Day() }

// EndOfDay returns the last instant of the time point's day. Period end
// dates are inclusive, end treated as end-of-day.
func (tp TimePoint) EndOfDay() time.Time {
	return time.Date(tp.Year(), tp.Month(), tp.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), time.UTC)
}

func (tp TimePoint) String() string {
	return tp.Time.Format("2006-01-02")
}

// =============================================================================
// MONTH KEY - Calendar month used as the accounting bucket
// =============================================================================

// MonthKey identifies one calendar month. All consumption, contracting and
// regularization amounts are bucketed by MonthKey.
type MonthKey struct {
	Year  int
	Month int // 1-12
}

func MonthOf(tp TimePoint) MonthKey {
	return MonthKey{Year: tp.Year(), Month: int(tp.Month())}
}

func (m MonthKey) Next() MonthKey {
	if m.Month == 12 {
		return MonthKey{Year: m.Year + 1, Month: 1}
	}
	return MonthKey{Year: m.Year, Month: m.Month + 1}
}

// Ordinal returns a sortable year*100+month value. Two months compare in
// calendar order by comparing ordinals.
func (m MonthKey) Ordinal() int {
	return m.Year*100 + m.Month
}

func (m MonthKey) AfterMonth(other MonthKey) bool {
	return m.Ordinal() > other.Ordinal()
}

func (m MonthKey) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, m.Month)
}

// MonthsInclusive counts calendar months from the month of 'from' through the
// month of 'to', both endpoints included. Returns 0 when 'to' is in an
// earlier month than 'from'.
func MonthsInclusive(from, to TimePoint) int {
	n := (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month()) + 1
	if n < 0 {
		return 0
	}
	return n
}
