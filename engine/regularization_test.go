package engine_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/warp/scope-engine/engine"
)

// =============================================================================
// MONTHLY PARTITIONING
// =============================================================================

func TestAdjustmentLedger_PartitionsByTypeAndMonth(t *testing.T) {
	ledger := engine.NewAdjustmentLedger([]engine.Regularization{
		reg(engine.RegManualConsumption, date(2025, time.January, 5), 3, true),
		reg(engine.RegManualConsumption, date(2025, time.January, 20), 2, true),
		reg(engine.RegReturn, date(2025, time.January, 10), 1, true),
		reg(engine.RegExcess, date(2025, time.January, 15), 5, true),
		reg(engine.RegPriorSurplus, date(2025, time.January, 2), 4, true),
		reg(engine.RegOneOff, date(2025, time.January, 1), 10, true),
		// February entry must not leak into January.
		reg(engine.RegReturn, date(2025, time.February, 1), 9, true),
	})

	jan := ledger.ForMonth(engine.MonthKey{Year: 2025, Month: 1})
	assertDecimal(t, 5, jan.ManualConsumption, "manual consumption")
	assertDecimal(t, 1, jan.Returned, "returned")
	assertDecimal(t, 9, jan.BilledExcess, "excess + prior surplus")
	assertDecimal(t, 10, jan.OneOff, "one-off top-up")

	feb := ledger.ForMonth(engine.MonthKey{Year: 2025, Month: 2})
	assertDecimal(t, 9, feb.Returned, "february returned")
	assertDecimal(t, 0, feb.BilledExcess, "february excess")
}

func TestAdjustmentLedger_UnbilledExcessExcluded(t *testing.T) {
	ledger := engine.NewAdjustmentLedger([]engine.Regularization{
		reg(engine.RegExcess, date(2025, time.January, 15), 5, false),
		reg(engine.RegPriorSurplus, date(2025, time.January, 16), 3, false),
	})

	jan := ledger.ForMonth(engine.MonthKey{Year: 2025, Month: 1})
	assert.True(t, jan.BilledExcess.IsZero(), "unbilled entries must not count")
}

func TestAdjustmentLedger_UnknownTypesIgnored(t *testing.T) {
	// Malformed entries are rejected at data entry; if one slips through,
	// it contributes to no partition and the engine keeps going.
	ledger := engine.NewAdjustmentLedger([]engine.Regularization{
		reg(engine.RegularizationType("AJUSTE_MISTERIOSO"), date(2025, time.January, 5), 100, true),
		reg(engine.RegReturn, date(2025, time.January, 6), 2, true),
	})

	jan := ledger.ForMonth(engine.MonthKey{Year: 2025, Month: 1})
	assertDecimal(t, 2, jan.Returned, "known entry still counted")
	assert.True(t, jan.BilledExcess.IsZero())
	assert.True(t, jan.ManualConsumption.IsZero())
	assert.True(t, jan.OneOff.IsZero())
}

// =============================================================================
// STRAY PRE-HISTORY ADJUSTMENTS
// =============================================================================

func TestAdjustmentLedger_StrayBefore(t *testing.T) {
	previous := []engine.ValidityPeriod{
		period("p0", date(2024, time.January, 1), date(2024, time.December, 31), 120, "HORAS"),
	}
	cutoff := date(2025, time.January, 1)

	ledger := engine.NewAdjustmentLedger([]engine.Regularization{
		// Pre-history, outside any period: counts.
		reg(engine.RegExcess, date(2023, time.June, 1), 8, true),
		reg(engine.RegPriorSurplus, date(2023, time.July, 1), 2, true),
		reg(engine.RegReturn, date(2023, time.August, 1), 3, true),
		// Inside a previous period: attributed to that period's replay.
		reg(engine.RegExcess, date(2024, time.March, 1), 50, true),
		// Unbilled stray: excluded.
		reg(engine.RegExcess, date(2023, time.September, 1), 40, false),
		// After the cutoff: belongs to the current period.
		reg(engine.RegExcess, date(2025, time.February, 1), 60, true),
		// Stray of a non-carryover type: excluded.
		reg(engine.RegManualConsumption, date(2023, time.May, 1), 70, true),
	})

	stray := ledger.StrayBefore(cutoff, previous)
	assertDecimal(t, 7, stray, "8 + 2 - 3")
}
