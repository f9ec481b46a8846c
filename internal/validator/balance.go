package validator

import "github.com/shopspring/decimal"

// effectiveBalance is the staleness-adjusted view of a maker's holdings.
// The unconstrained variant stands in for "freshly registered, not yet
// sampled" and is treated as sufficient for any maker amount; it is a tag,
// not a numeric infinity, so it never leaks into arithmetic.
type effectiveBalance struct {
	unconstrained bool
	amount        decimal.Decimal
}

func unconstrainedBalance() effectiveBalance {
	return effectiveBalance{unconstrained: true}
}

func knownBalance(amount decimal.Decimal) effectiveBalance {
	return effectiveBalance{amount: amount}
}

// covers reports whether the balance suffices for the given maker amount.
func (b effectiveBalance) covers(makerAmount decimal.Decimal) bool {
	return b.unconstrained || b.amount.GreaterThanOrEqual(makerAmount)
}
