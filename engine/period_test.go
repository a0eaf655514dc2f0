package engine_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/scope-engine/engine"
)

// =============================================================================
// PERIOD SELECTOR
// =============================================================================

func TestSelectCurrent_PicksContainingPeriod(t *testing.T) {
	periods := []engine.ValidityPeriod{
		period("p0", date(2024, time.January, 1), date(2024, time.December, 31), 100, "HORAS"),
		period("p1", date(2025, time.January, 1), date(2025, time.December, 31), 100, "HORAS"),
	}

	now := time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)
	current, ok := engine.SelectCurrent(periods, now)
	require.True(t, ok)
	assert.Equal(t, "p1", current.ID)
}

func TestSelectCurrent_EndDateIsInclusiveToEndOfDay(t *testing.T) {
	periods := []engine.ValidityPeriod{
		period("p0", date(2025, time.January, 1), date(2025, time.June, 30), 100, "HORAS"),
	}

	// Late on the end date still belongs to the period.
	now := time.Date(2025, time.June, 30, 23, 30, 0, 0, time.UTC)
	current, ok := engine.SelectCurrent(periods, now)
	require.True(t, ok)
	assert.Equal(t, "p0", current.ID)

	// The next midnight does not.
	after := time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC)
	assert.False(t, current.ContainsInstant(after))
}

func TestSelectCurrent_FallsBackToLatestStart(t *testing.T) {
	// Reference instant after every period: the latest-starting one wins.
	periods := []engine.ValidityPeriod{
		period("p0", date(2023, time.January, 1), date(2023, time.December, 31), 100, "HORAS"),
		period("p1", date(2024, time.January, 1), date(2024, time.December, 31), 100, "HORAS"),
	}

	now := time.Date(2026, time.May, 1, 0, 0, 0, 0, time.UTC)
	current, ok := engine.SelectCurrent(periods, now)
	require.True(t, ok)
	assert.Equal(t, "p1", current.ID)
}

func TestSelectCurrent_EmptyListIsASkip(t *testing.T) {
	_, ok := engine.SelectCurrent(nil, time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC))
	assert.False(t, ok)
}

// =============================================================================
// PERIOD INVARIANTS
// =============================================================================

func TestValidityPeriod_Validate(t *testing.T) {
	ok := period("p", date(2025, time.January, 1), date(2025, time.January, 1), 0, "HORAS")
	assert.NoError(t, ok.Validate("wp"), "single-day zero-quantity period is valid")

	inverted := period("p", date(2025, time.March, 1), date(2025, time.January, 1), 10, "HORAS")
	err := inverted.Validate("wp")
	require.Error(t, err)
	assert.ErrorIs(t, err, engine.ErrInvalidPeriod)

	var detail *engine.InvalidPeriodError
	require.ErrorAs(t, err, &detail)
	assert.Equal(t, engine.WorkPackageID("wp"), detail.WorkPackageID)

	negative := period("p", date(2025, time.January, 1), date(2025, time.March, 1), -5, "HORAS")
	assert.ErrorIs(t, negative.Validate("wp"), engine.ErrInvalidPeriod)
}

func TestValidityPeriod_MonthSpan(t *testing.T) {
	cases := []struct {
		name   string
		start  engine.TimePoint
		end    engine.TimePoint
		months int
	}{
		{"single month", date(2025, time.January, 5), date(2025, time.January, 20), 1},
		{"partial months count whole", date(2025, time.January, 15), date(2025, time.March, 1), 3},
		{"full year", date(2024, time.January, 1), date(2024, time.December, 31), 12},
		{"across year boundary", date(2024, time.November, 1), date(2025, time.February, 28), 4},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := period("p", tc.start, tc.end, 12, "HORAS")
			assert.Equal(t, tc.months, p.Months())
		})
	}
}

func TestValidityPeriod_MonthlyContractedDegenerateSpanIsZero(t *testing.T) {
	// Defensive: an inverted range computes a zero month span and must
	// contribute nothing rather than divide by zero.
	p := period("p", date(2025, time.March, 1), date(2025, time.January, 1), 10, "HORAS")
	assert.True(t, p.MonthlyContracted().IsZero())
}

func TestMonthKey_Arithmetic(t *testing.T) {
	dec := engine.MonthKey{Year: 2024, Month: 12}
	jan := dec.Next()
	assert.Equal(t, engine.MonthKey{Year: 2025, Month: 1}, jan)
	assert.True(t, jan.AfterMonth(dec))
	assert.Equal(t, 202501, jan.Ordinal())
	assert.Equal(t, "2025-01", jan.String())
}
