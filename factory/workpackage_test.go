package factory_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/scope-engine/engine"
	"github.com/warp/scope-engine/factory"
)

func TestParseWorkPackage(t *testing.T) {
	wp, err := factory.ParseWorkPackage(factory.WorkPackageRecord{
		ID:                  "wp-1",
		ClientID:            "client-1",
		Name:                "Soporte Correctivo",
		ContractType:        "eventos",
		IncludedTicketTypes: "Consulta, Incidencia ,,  ",
		IncludeEvoEstimates: true,
	})
	require.NoError(t, err)

	assert.Equal(t, engine.ModeEventos, wp.Mode)
	assert.True(t, wp.IncludeEvoEstimates)
	assert.False(t, wp.IncludeEvoTM)
	assert.Len(t, wp.IncludedTicketTypes, 2)
	assert.True(t, wp.AllowsTicketType("INCIDENCIA"))
	assert.False(t, wp.AllowsTicketType("Peticion"))
}

func TestParseWorkPackage_MissingIDs(t *testing.T) {
	_, err := factory.ParseWorkPackage(factory.WorkPackageRecord{ClientID: "c"})
	assert.Error(t, err)

	_, err = factory.ParseWorkPackage(factory.WorkPackageRecord{ID: "wp"})
	assert.Error(t, err)
}

func TestParseContractMode_DefaultsToHours(t *testing.T) {
	assert.Equal(t, engine.ModeEventos, factory.ParseContractMode(" EVENTOS "))
	assert.Equal(t, engine.ModeHours, factory.ParseContractMode("HORAS"))
	assert.Equal(t, engine.ModeHours, factory.ParseContractMode("bolsa"))
	assert.Equal(t, engine.ModeHours, factory.ParseContractMode(""))
}

func TestParseTicketTypes_EmptyMeansNoRestriction(t *testing.T) {
	assert.Nil(t, factory.ParseTicketTypes(""))
	assert.Nil(t, factory.ParseTicketTypes("  , ,"))
}

func TestParsePeriod(t *testing.T) {
	p, err := factory.ParsePeriod("wp-1", factory.PeriodRecord{
		ID:            "per-1",
		StartDate:     "2025-01-01",
		EndDate:       "2025-12-31",
		TotalQuantity: "120.5",
		ScopeUnit:     "HORAS",
	})
	require.NoError(t, err)

	assert.Equal(t, "2025-01-01", p.Start.String())
	assert.Equal(t, "2025-12-31", p.End.String())
	assert.Equal(t, "120.5", p.TotalQuantity.String())
	assert.Equal(t, 12, p.Months())
}

func TestParsePeriod_BadFields(t *testing.T) {
	_, err := factory.ParsePeriod("wp-1", factory.PeriodRecord{
		StartDate: "01/01/2025", EndDate: "2025-12-31", TotalQuantity: "10",
	})
	assert.Error(t, err, "non-ISO date must be rejected")

	_, err = factory.ParsePeriod("wp-1", factory.PeriodRecord{
		StartDate: "2025-01-01", EndDate: "2025-12-31", TotalQuantity: "diez",
	})
	assert.Error(t, err, "non-numeric quantity must be rejected")
}

func TestParseRegularization_IsBilledDefaultsTrue(t *testing.T) {
	r, err := factory.ParseRegularization("wp-1", factory.RegularizationRecord{
		ID: "reg-1", Date: "2025-01-10", Type: "excess", Quantity: "5",
	})
	require.NoError(t, err)

	assert.True(t, r.IsBilled)
	assert.Equal(t, engine.RegExcess, r.Type)

	billed := false
	r, err = factory.ParseRegularization("wp-1", factory.RegularizationRecord{
		ID: "reg-2", Date: "2025-01-10", Type: "RETURN", Quantity: "2", IsBilled: &billed,
	})
	require.NoError(t, err)
	assert.False(t, r.IsBilled)
	assert.Equal(t, engine.RegReturn, r.Type)
}
