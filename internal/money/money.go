// Package money holds the rounding policy shared by every ledger component.
//
// Amounts are float64 currency units. The 0.01 tolerance is a business rule
// (one cent), not a numerical-stability workaround: balances smaller than a
// cent are considered settled and split totals may drift by up to a cent.
package money

import "math"

const (
	// Epsilon is the currency-unit tolerance for all equality and
	// threshold checks.
	Epsilon = 0.01

	// MaxAmount is the largest accepted expense or settlement amount.
	MaxAmount = 10_000_000
)

// IsZero reports whether amount is settled, i.e. smaller than one cent in
// either direction.
func IsZero(amount float64) bool {
	return math.Abs(amount) < Epsilon
}

// Equal reports whether two amounts match within Epsilon.
func Equal(a, b float64) bool {
	return math.Abs(a-b) <= Epsilon
}

// ValidAmount reports whether amount is a usable expense/settlement amount:
// positive, finite and at most MaxAmount.
func ValidAmount(amount float64) bool {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return false
	}
	return amount > 0 && amount <= MaxAmount
}
