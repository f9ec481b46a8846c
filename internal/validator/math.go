package validator

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// proRataFloor returns floor(balance * taker / maker), computed exactly.
// decimal.Div rounds at a configured precision, so the quotient is taken
// over the big-int coefficients instead, with exponents aligned first.
// Callers guarantee maker > 0 and balance, taker >= 0, which makes the
// truncating Quo equal to floor.
func proRataFloor(balance, taker, maker decimal.Decimal) decimal.Decimal {
	product := balance.Mul(taker)

	num := new(big.Int).Set(product.Coefficient())
	den := new(big.Int).Set(maker.Coefficient())

	shift := int64(product.Exponent()) - int64(maker.Exponent())
	if shift > 0 {
		num.Mul(num, pow10(shift))
	} else if shift < 0 {
		den.Mul(den, pow10(-shift))
	}

	return decimal.NewFromBigInt(new(big.Int).Quo(num, den), 0)
}

func pow10(n int64) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(n), nil)
}
