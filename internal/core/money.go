// Package core provides the domain model of the ledger engine.
//
// This file contains amount parsing and the signed-delta rules used by the
// balance maintainer. Amounts are exact decimals with a fixed scale of two
// fractional digits; they are persisted as integer cents so that SQL sums
// stay exact.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a decimal string to an exact amount with scale 2.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and performs
// half-up rounding on the third decimal place. The result must be positive.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34, nil
//	ParseAmount("12,34")  -> 12.34, nil
//	ParseAmount("12.345") -> 12.35, nil (rounds up)
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrValidation
	}
	// Normalize decimal comma to dot
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrValidation
	}
	d = d.Round(2)
	if d.Sign() <= 0 {
		return decimal.Zero, ErrValidation
	}
	return d, nil
}

// ValidAmount reports whether d is a positive amount with at most two
// fractional digits. Stored transaction amounts must satisfy it.
func ValidAmount(d decimal.Decimal) bool {
	return d.Sign() > 0 && d.Exponent() >= -2
}

// Cents converts an amount to integer minor units for storage.
func Cents(d decimal.Decimal) int64 {
	return d.Round(2).Shift(2).IntPart()
}

// FromCents converts stored integer minor units back to an amount.
func FromCents(c int64) decimal.Decimal {
	return decimal.New(c, -2)
}

// SignedAmount returns the balance delta a transaction of the given type and
// amount contributes to its account: income and transfer_in add, expense and
// transfer_out subtract.
func SignedAmount(t TransactionType, amount decimal.Decimal) decimal.Decimal {
	switch t {
	case TransactionIncome, TransactionTransferIn:
		return amount
	case TransactionExpense, TransactionTransferOut:
		return amount.Neg()
	}
	return decimal.Zero
}

// SignedCents is SignedAmount over stored minor units.
func SignedCents(t TransactionType, cents int64) int64 {
	switch t {
	case TransactionIncome, TransactionTransferIn:
		return cents
	case TransactionExpense, TransactionTransferOut:
		return -cents
	}
	return 0
}
