/*
Package engine computes work-package consumption and regularization balances.

PURPOSE:
  This package is the accounting core of the contract-management system. For a
  work package (a contracted service scope for one client) spanning one or
  more date-bounded validity periods, it computes how much capacity was
  contracted, how much was consumed, how prior-period surpluses and deficits
  carry forward, and what the outstanding balance is today, after applying a
  ledger of manual adjustments ("regularizations").

KEY CONCEPTS IN THIS FILE (types.go):
  - Quantity: a scope amount with a unit (hours, tickets)
  - WorkPackage: contract mode + ticket inclusion rules
  - Ticket / MonthlyMetric: the two consumption sources (Eventos vs Hours)
  - Regularization: an immutable ledger entry adjusting the balance
  - BillingClass: ticket billing classification, computed once at load

DESIGN PRINCIPLES:
  1. Purity: every computation is a function of an immutable Snapshot and an
     injected reference instant. No hidden state, no clock reads.
  2. Precision: decimal.Decimal everywhere a quantity is summed or divided.
  3. Classification at the boundary: billing-mode string matching happens
     exactly once per ticket (Classify), never inside the accounting loops.

SEE ALSO:
  - period.go: validity periods and the current-period selector
  - consumption.go: per-month consumed quantity (both modes)
  - regularization.go: month-partitioned ledger reduction
  - accumulator.go: month-by-month period totals
  - carryover.go: replay of closed periods
  - report.go: final report assembly and batch fan-out
*/
package engine

import (
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// QUANTITY - Scope amount with unit
// =============================================================================

// Quantity is a contracted or consumed scope amount.
// Unit is free-form because it comes from contract data ("HORAS", "Tickets",
// "Jornadas"); the engine never interprets it, only reports it.
type Quantity struct {
	Value decimal.Decimal
	Unit  string
}

func NewQuantity(value float64, unit string) Quantity {
	return Quantity{Value: decimal.NewFromFloat(value), Unit: unit}
}

func (q Quantity) Add(d decimal.Decimal) Quantity {
	return Quantity{Value: q.Value.Add(d), Unit: q.Unit}
}

// MustDecimal parses a decimal string, returning zero on malformed input.
// Used when loading quantities persisted as text.
func MustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type WorkPackageID string
type ClientID string

// =============================================================================
// WORK PACKAGE - Contracted service scope for one client
// =============================================================================

// ContractMode selects how consumption is counted.
type ContractMode string

const (
	// ModeEventos counts tickets against the scope.
	ModeEventos ContractMode = "EVENTOS"

	// ModeHours counts aggregated worklog hours (MonthlyMetric records)
	// against the scope. Any mode other than EVENTOS behaves this way.
	ModeHours ContractMode = "HORAS"
)

// WorkPackage is a contracted service scope for one client.
//
// IncludedTicketTypes is a lower-cased set of issue-type names. Empty means
// no type restriction. IncludeEvoTM / IncludeEvoEstimates independently gate
// whether evolutivo work counts against the scope (see Classify).
type WorkPackage struct {
	ID       WorkPackageID
	ClientID ClientID
	Name     string
	Mode     ContractMode

	IncludedTicketTypes map[string]struct{}
	IncludeEvoTM        bool
	IncludeEvoEstimates bool
}

// IsEventos reports whether consumption is ticket-count based.
func (wp WorkPackage) IsEventos() bool {
	return wp.Mode == ModeEventos
}

// AllowsTicketType reports whether the issue type passes the work package's
// type restriction. An empty set allows everything.
func (wp WorkPackage) AllowsTicketType(issueType string) bool {
	if len(wp.IncludedTicketTypes) == 0 {
		return true
	}
	_, ok := wp.IncludedTicketTypes[strings.ToLower(strings.TrimSpace(issueType))]
	return ok
}

// =============================================================================
// TICKET - Consumption unit in Eventos mode
// =============================================================================

// BillingClass is the closed classification of a ticket's billing treatment.
// Classification happens once when the ticket is loaded; the accounting loops
// match on the class, never on the raw strings.
type BillingClass int

const (
	// BillingStandard tickets always count against the scope
	// (subject only to the type restriction).
	BillingStandard BillingClass = iota

	// BillingEvoTM is evolutivo time-and-materials work billed against the
	// scope ("T&M contra bolsa"). Counted only when IncludeEvoTM is set.
	BillingEvoTM

	// BillingEvoEstimate is estimate-based evolutivo work (issue type
	// "Evolutivo" or billing mode "Bolsa de Horas"). Counted only when
	// IncludeEvoEstimates is set.
	BillingEvoEstimate

	// BillingSeparate tickets are invoiced apart from the contract
	// ("Facturable", "T&M Facturable") and never count against the scope.
	BillingSeparate
)

// Classify maps a ticket's raw issue type and billing mode to its
// BillingClass. This is the single place the string matching rules live.
//
// Precedence when a ticket matches more than one rule: the billing mode
// wins over the issue type. An "Evolutivo" ticket billed "T&M contra bolsa"
// is BillingEvoTM, not BillingEvoEstimate, so only the IncludeEvoTM flag
// governs whether it counts.
func Classify(issueType, billingMode string) BillingClass {
	mode := strings.ToLower(strings.TrimSpace(billingMode))

	switch mode {
	case "facturable", "t&m facturable":
		return BillingSeparate
	case "t&m contra bolsa":
		return BillingEvoTM
	case "bolsa de horas":
		return BillingEvoEstimate
	}
	if strings.EqualFold(strings.TrimSpace(issueType), "Evolutivo") {
		return BillingEvoEstimate
	}
	return BillingStandard
}

// Ticket is a unit of consumable work, already classified.
type Ticket struct {
	Year      int
	Month     int // 1-12
	IssueType string
	Class     BillingClass
}

// NewTicket classifies and returns a ticket from raw source fields.
func NewTicket(year, month int, issueType, billingMode string) Ticket {
	return Ticket{
		Year:      year,
		Month:     month,
		IssueType: issueType,
		Class:     Classify(issueType, billingMode),
	}
}

// CountsFor reports whether the ticket counts against the work package's
// scope under its inclusion rules.
func (t Ticket) CountsFor(wp WorkPackage) bool {
	switch t.Class {
	case BillingSeparate:
		return false
	case BillingEvoTM:
		if !wp.IncludeEvoTM {
			return false
		}
	case BillingEvoEstimate:
		if !wp.IncludeEvoEstimates {
			return false
		}
	}
	return wp.AllowsTicketType(t.IssueType)
}

// =============================================================================
// MONTHLY METRIC - Consumption source in Hours mode
// =============================================================================

// MonthlyMetric is a precomputed consumed-hours record for one month,
// produced by an external worklog synchronization process.
type MonthlyMetric struct {
	Year          int
	Month         int // 1-12
	ConsumedHours decimal.Decimal
}

// =============================================================================
// REGULARIZATION - Manual ledger adjustment
// =============================================================================

// RegularizationType identifies how a ledger entry affects the balance.
type RegularizationType string

const (
	// RegExcess is extra consumption billed on top of the base contract.
	// Adds to the contracted/billed side when IsBilled.
	RegExcess RegularizationType = "EXCESS"

	// RegReturn gives scope back to the client. Subtracts from consumption.
	RegReturn RegularizationType = "RETURN"

	// RegManualConsumption records consumption with no backing ticket.
	// Adds to consumption in Eventos mode only.
	RegManualConsumption RegularizationType = "MANUAL_CONSUMPTION"

	// RegPriorSurplus ("SOBRANTE_ANTERIOR") is a billed carryover correction
	// from contract history. Treated like RegExcess.
	RegPriorSurplus RegularizationType = "SOBRANTE_ANTERIOR"

	// RegOneOff ("CONTRATACION_PUNTUAL") is an ad-hoc scope top-up for a
	// single month. Adds to that month's contracted amount.
	RegOneOff RegularizationType = "CONTRATACION_PUNTUAL"
)

// Regularization is a single immutable ledger entry. Quantity is a
// non-negative magnitude; the sign of its effect is determined by Type.
// The engine never mutates entries; corrections are new entries.
type Regularization struct {
	ID       string
	Date     TimePoint
	Type     RegularizationType
	Quantity decimal.Decimal
	IsBilled bool
}

// =============================================================================
// SNAPSHOT - Immutable per-work-package input set
// =============================================================================

// Snapshot is everything the engine reads for one work package, materialized
// by the caller at invocation time. The engine never fetches or mutates.
type Snapshot struct {
	WorkPackage     WorkPackage
	Periods         []ValidityPeriod // ordered by start date
	Regularizations []Regularization
	Tickets         []Ticket
	Metrics         []MonthlyMetric
}
