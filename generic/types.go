/*
Package generic provides the domain-agnostic building blocks of the leave engine.

PURPOSE:
  This package contains the calendar and quantity primitives shared by every
  leave category. Whether counting legal vacation days, benefit days or days
  paid out in cash, the same types handle date arithmetic, closed periods,
  decimal quantities and error classification.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount: A quantity with a unit (e.g., 12.5 days)
  - EntityID: Type-safe identifier for the person owning a balance

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal so 1.25 days/month never drifts
  2. Type Safety: Strong typing for IDs prevents mixing them with free text
  3. Derivation: Balances are computed from history, never stored

USAGE:
  accrued := generic.NewAmountFromInt(12, generic.UnitDays).Mul(decimal.RequireFromString("1.25"))
  taken := generic.NewAmountFromInt(4, generic.UnitDays)
  balance := accrued.Sub(taken) // 11 days

SEE ALSO:
  - time.go: TimePoint and holiday calendar contract
  - period.go: Closed periods and anniversary cycles
  - errors.go: Sentinel and structured errors
*/
package generic

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Quantity with unit
// =============================================================================

type Amount struct {
	Value decimal.Decimal
	Unit  Unit
}

type Unit string

const (
	UnitDays Unit = "days"
)

func NewAmountFromInt(value int, unit Unit) Amount {
	return Amount{Value: decimal.NewFromInt(int64(value)), Unit: unit}
}

// Days is shorthand for an integer amount of days.
func Days(n int) Amount { return NewAmountFromInt(n, UnitDays) }

func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (a Amount) Add(b Amount) Amount          { return Amount{Value: a.Value.Add(b.Value), Unit: a.Unit} }
func (a Amount) Sub(b Amount) Amount          { return Amount{Value: a.Value.Sub(b.Value), Unit: a.Unit} }
func (a Amount) Mul(s decimal.Decimal) Amount { return Amount{Value: a.Value.Mul(s), Unit: a.Unit} }
func (a Amount) IsNegative() bool             { return a.Value.IsNegative() }
func (a Amount) GreaterThan(b Amount) bool    { return a.Value.GreaterThan(b.Value) }
func (a Amount) Equal(b Amount) bool          { return a.Value.Equal(b.Value) }
func (a Amount) Float64() float64             { return a.Value.InexactFloat64() }
func (a Amount) String() string               { return a.Value.String() + " " + string(a.Unit) }

// Sum adds amounts of the same unit. An empty input yields zero days.
func Sum(amounts ...Amount) Amount {
	total := Amount{Value: decimal.Zero, Unit: UnitDays}
	for i, a := range amounts {
		if i == 0 {
			total.Unit = a.Unit
		}
		total = total.Add(a)
	}
	return total
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EntityID string

func (id EntityID) String() string { return string(id) }
