package validator

import (
	"testing"

	"github.com/shopspring/decimal"
)

func mustDec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return d
}

func TestProRataFloor(t *testing.T) {
	cases := []struct {
		name    string
		balance string
		taker   string
		maker   string
		want    string
	}{
		{"even split", "40", "50", "100", "20"},
		{"rounds down", "1", "100", "3", "33"},
		{"zero balance", "0", "100", "3", "0"},
		{"fractional operands", "1.5", "2.5", "2", "1"},
		{"fractional maker", "1", "1", "0.3", "3"},
		{"exact at scale", "1000000000000000000000000000001", "1000000000000000000000000000000", "1000000000000000000000000000001", "1000000000000000000000000000000"},
		{"wei amounts", "123456789012345678", "1000000000000000000", "2000000000000000000", "61728394506172839"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := proRataFloor(mustDec(t, tc.balance), mustDec(t, tc.taker), mustDec(t, tc.maker))
			if !got.Equal(mustDec(t, tc.want)) {
				t.Fatalf("floor(%s*%s/%s) = %s, want %s", tc.balance, tc.taker, tc.maker, got, tc.want)
			}
		})
	}
}

func TestProRataFloorNeverExceedsTaker(t *testing.T) {
	balance := mustDec(t, "99")
	taker := mustDec(t, "1234567")
	maker := mustDec(t, "100")

	got := proRataFloor(balance, taker, maker)
	if got.GreaterThan(taker) {
		t.Fatalf("partial fill %s exceeds taker amount %s", got, taker)
	}
}

func TestEffectiveBalanceCovers(t *testing.T) {
	if !unconstrainedBalance().covers(mustDec(t, "1000000000000000000000000")) {
		t.Fatal("unconstrained balance must cover any maker amount")
	}
	if !knownBalance(mustDec(t, "100")).covers(mustDec(t, "100")) {
		t.Fatal("equal balance must cover the maker amount")
	}
	if knownBalance(mustDec(t, "99")).covers(mustDec(t, "100")) {
		t.Fatal("insufficient balance must not cover the maker amount")
	}
}
