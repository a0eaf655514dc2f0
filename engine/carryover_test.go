package engine_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/warp/scope-engine/engine"
)

func TestCarryover_SumsAllClosedPeriods(t *testing.T) {
	// GIVEN: two closed yearly periods (surplus 20 and deficit 30) and a
	//        current 2025 period
	// THEN: carryover nets to -10
	metrics := []engine.MonthlyMetric{
		{Year: 2023, Month: 6, ConsumedHours: d(100)}, // 120 contracted -> +20
		{Year: 2024, Month: 6, ConsumedHours: d(150)}, // 120 contracted -> -30
	}
	s := engine.Snapshot{
		WorkPackage: hoursWP("WP"),
		Periods: []engine.ValidityPeriod{
			period("p0", date(2023, time.January, 1), date(2023, time.December, 31), 120, "HORAS"),
			period("p1", date(2024, time.January, 1), date(2024, time.December, 31), 120, "HORAS"),
			period("p2", date(2025, time.January, 1), date(2025, time.December, 31), 120, "HORAS"),
		},
		Metrics: metrics,
	}

	current := s.Periods[2]
	carryover := engine.CarryoverOf(s, current, nil, nil)
	assertDecimal(t, -10, carryover, "20 - 30")
}

func TestCarryover_IncludesStrayPreHistoryAdjustments(t *testing.T) {
	// A billed excess from before the first modeled period joins the
	// carryover directly.
	s := engine.Snapshot{
		WorkPackage: hoursWP("WP"),
		Periods: []engine.ValidityPeriod{
			period("p0", date(2024, time.January, 1), date(2024, time.December, 31), 120, "HORAS"),
			period("p1", date(2025, time.January, 1), date(2025, time.December, 31), 120, "HORAS"),
		},
		Regularizations: []engine.Regularization{
			reg(engine.RegPriorSurplus, date(2022, time.March, 1), 15, true),
			reg(engine.RegReturn, date(2022, time.April, 1), 5, true),
		},
	}

	carryover := engine.CarryoverOf(s, s.Periods[1], nil, nil)
	// 15 - 5 stray, plus p0 fully unconsumed: +120.
	assertDecimal(t, 130, carryover, "stray 10 + period surplus 120")
}

func TestCarryover_IgnoresPeriodsOverlappingCurrent(t *testing.T) {
	// A period whose end reaches into the current one is not "previous";
	// only strictly earlier periods are replayed.
	s := engine.Snapshot{
		WorkPackage: hoursWP("WP"),
		Periods: []engine.ValidityPeriod{
			period("p0", date(2024, time.January, 1), date(2025, time.March, 31), 120, "HORAS"),
			period("p1", date(2025, time.January, 1), date(2025, time.December, 31), 120, "HORAS"),
		},
	}

	carryover := engine.CarryoverOf(s, s.Periods[1], nil, nil)
	require.True(t, carryover.IsZero(), "overlapping period must not settle into carryover")
}

func TestCarryover_EqualsContractedMinusConsumedForBackToBackPeriods(t *testing.T) {
	// Continuity: closed P0 with no regularizations contributes exactly
	// P0.contracted - P0.consumed.
	s := engine.Snapshot{
		WorkPackage: hoursWP("WP"),
		Periods: []engine.ValidityPeriod{
			period("p0", date(2024, time.January, 1), date(2024, time.December, 31), 120, "HORAS"),
			period("p1", date(2025, time.January, 1), date(2025, time.December, 31), 120, "HORAS"),
		},
		Metrics: []engine.MonthlyMetric{
			{Year: 2024, Month: 2, ConsumedHours: d(33)},
			{Year: 2024, Month: 11, ConsumedHours: d(44)},
		},
	}

	meter := engine.NewMeter(s)
	ledger := engine.NewAdjustmentLedger(nil)

	p0 := engine.AccumulatePeriod(s.Periods[0], meter, ledger, engine.MonthKey{Year: 2024, Month: 12})
	carryover := engine.AggregateCarryover(s.Periods, s.Periods[1], meter, ledger)

	expected := p0.Contracted.Sub(p0.Consumed)
	require.True(t, carryover.Equal(expected), "carryover %v, expected %v", carryover, expected)
	assertDecimal(t, 43, carryover, "120 - 77")
}
