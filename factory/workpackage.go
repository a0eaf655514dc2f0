/*
Package factory converts raw contract records into typed engine inputs.

PURPOSE:
  The data layer (and the admin API in front of it) traffics in loosely
  typed records: contract modes as free-form strings, included ticket types
  as a comma-separated list, dates as ISO strings, quantities as text.
  This package is the single place those shapes are validated and converted
  into the engine's strongly typed inputs, so the accounting code can assume
  well-formed records and every "missing or malformed field" decision lives
  in one ingestion step.

DEFAULTING RULES:
  - contract mode: anything other than EVENTOS (case-insensitive) is an
    hours-based contract
  - included ticket types: empty or whitespace-only list means no
    restriction; entries are trimmed and lower-cased
  - regularization is_billed: defaults to true when the source omits it

USAGE:
  wp, err := factory.ParseWorkPackage(record)
  p, err := factory.ParsePeriod("wp-1", periodRecord)

SEE ALSO:
  - engine/types.go: the typed targets
  - store/sqlite: persists the raw shapes these parsers accept
*/
package factory

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/scope-engine/engine"
)

// =============================================================================
// RAW RECORD SHAPES
// =============================================================================

// WorkPackageRecord is the raw work-package shape from storage or the API.
type WorkPackageRecord struct {
	ID                  string `json:"id"`
	ClientID            string `json:"client_id"`
	Name                string `json:"name"`
	ContractType        string `json:"contract_type"`
	IncludedTicketTypes string `json:"included_ticket_types"` // comma-separated
	IncludeEvoTM        bool   `json:"include_evo_tm"`
	IncludeEvoEstimates bool   `json:"include_evo_estimates"`
}

// PeriodRecord is the raw validity-period shape.
type PeriodRecord struct {
	ID            string `json:"id"`
	StartDate     string `json:"start_date"` // YYYY-MM-DD
	EndDate       string `json:"end_date"`   // YYYY-MM-DD
	TotalQuantity string `json:"total_quantity"`
	ScopeUnit     string `json:"scope_unit"`
}

// RegularizationRecord is the raw ledger-entry shape. IsBilled is a pointer
// so an omitted value can default to true.
type RegularizationRecord struct {
	ID       string `json:"id"`
	Date     string `json:"date"` // YYYY-MM-DD
	Type     string `json:"type"`
	Quantity string `json:"quantity"`
	IsBilled *bool  `json:"is_billed,omitempty"`
}

// =============================================================================
// PARSERS
// =============================================================================

// ParseWorkPackage validates and converts a raw work-package record.
func ParseWorkPackage(rec WorkPackageRecord) (engine.WorkPackage, error) {
	if strings.TrimSpace(rec.ID) == "" {
		return engine.WorkPackage{}, fmt.Errorf("work package: missing id")
	}
	if strings.TrimSpace(rec.ClientID) == "" {
		return engine.WorkPackage{}, fmt.Errorf("work package %s: missing client id", rec.ID)
	}

	return engine.WorkPackage{
		ID:                  engine.WorkPackageID(rec.ID),
		ClientID:            engine.ClientID(rec.ClientID),
		Name:                rec.Name,
		Mode:                ParseContractMode(rec.ContractType),
		IncludedTicketTypes: ParseTicketTypes(rec.IncludedTicketTypes),
		IncludeEvoTM:        rec.IncludeEvoTM,
		IncludeEvoEstimates: rec.IncludeEvoEstimates,
	}, nil
}

// ParseContractMode normalizes the contract type string. Only EVENTOS
// selects ticket counting; every other value is an hours contract.
func ParseContractMode(s string) engine.ContractMode {
	if strings.EqualFold(strings.TrimSpace(s), string(engine.ModeEventos)) {
		return engine.ModeEventos
	}
	return engine.ModeHours
}

// ParseTicketTypes splits a comma-separated issue-type list into the
// lower-cased set the engine matches against. Empty input means no
// restriction and returns nil.
func ParseTicketTypes(csv string) map[string]struct{} {
	var set map[string]struct{}
	for _, part := range strings.Split(csv, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		if name == "" {
			continue
		}
		if set == nil {
			set = make(map[string]struct{})
		}
		set[name] = struct{}{}
	}
	return set
}

// ParsePeriod validates and converts a raw validity-period record. The
// period invariants themselves (end >= start, quantity >= 0) are checked by
// the engine; this layer only rejects unparseable fields.
func ParsePeriod(wpID string, rec PeriodRecord) (engine.ValidityPeriod, error) {
	start, err := ParseDate(rec.StartDate)
	if err != nil {
		return engine.ValidityPeriod{}, fmt.Errorf("period %s of %s: start_date: %w", rec.ID, wpID, err)
	}
	end, err := ParseDate(rec.EndDate)
	if err != nil {
		return engine.ValidityPeriod{}, fmt.Errorf("period %s of %s: end_date: %w", rec.ID, wpID, err)
	}
	qty, err := decimal.NewFromString(strings.TrimSpace(rec.TotalQuantity))
	if err != nil {
		return engine.ValidityPeriod{}, fmt.Errorf("period %s of %s: total_quantity %q: %w", rec.ID, wpID, rec.TotalQuantity, err)
	}

	return engine.ValidityPeriod{
		ID:            rec.ID,
		Start:         start,
		End:           end,
		TotalQuantity: qty,
		ScopeUnit:     rec.ScopeUnit,
	}, nil
}

// ParseRegularization validates and converts a raw ledger entry.
// Unknown types are accepted here and ignored by the engine's partition
// sums; rejecting them is the admin UI's job.
func ParseRegularization(wpID string, rec RegularizationRecord) (engine.Regularization, error) {
	at, err := ParseDate(rec.Date)
	if err != nil {
		return engine.Regularization{}, fmt.Errorf("regularization %s of %s: date: %w", rec.ID, wpID, err)
	}
	qty, err := decimal.NewFromString(strings.TrimSpace(rec.Quantity))
	if err != nil {
		return engine.Regularization{}, fmt.Errorf("regularization %s of %s: quantity %q: %w", rec.ID, wpID, rec.Quantity, err)
	}

	billed := true
	if rec.IsBilled != nil {
		billed = *rec.IsBilled
	}

	return engine.Regularization{
		ID:       rec.ID,
		Date:     at,
		Type:     engine.RegularizationType(strings.ToUpper(strings.TrimSpace(rec.Type))),
		Quantity: qty,
		IsBilled: billed,
	}, nil
}

// ParseDate parses a YYYY-MM-DD contract date.
func ParseDate(s string) (engine.TimePoint, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return engine.TimePoint{}, fmt.Errorf("expected YYYY-MM-DD: %w", err)
	}
	return engine.At(t), nil
}
