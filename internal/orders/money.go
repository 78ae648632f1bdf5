package orders

import "github.com/shopspring/decimal"

// Amounts are persisted as integer minor units (cents) and tax rates as
// basis points, so no store has to round-trip a decimal type.

func Cents(d decimal.Decimal) int64 { return d.Shift(MoneyPlaces).Round(0).IntPart() }

func FromCents(c int64) decimal.Decimal { return decimal.New(c, -MoneyPlaces) }

func BasisPoints(rate decimal.Decimal) int64 { return rate.Shift(2).Round(0).IntPart() }

func FromBasisPoints(bp int64) decimal.Decimal { return decimal.New(bp, -2) }
