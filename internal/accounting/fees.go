/*

Fee and LP-share math. All amounts are integer USD cents or integer token
quantities; division truncates, which systematically favors the vault
(under-mint on deposit, under-pay on withdrawal).

*/

package accounting

import (
	"errors"

	sdkmath "cosmossdk.io/math"
)

// ErrDivisionByZero indicates an input set that would require dividing by a
// zero denominator: an LP redemption against an empty pool, or a vault
// balance fully consumed by the operator fee.
var ErrDivisionByZero = errors.New("division by zero in share math")

// OperatorFee returns the operator performance fee for the given balance.
// The fee accrues only on gains above the high-water mark; below the mark it
// is zero, never negative.
func OperatorFee(balance, hwm, charge sdkmath.Int) sdkmath.Int {
	if balance.LT(hwm) {
		return sdkmath.ZeroInt()
	}
	return balance.Sub(hwm).Mul(charge).QuoRaw(100)
}

// LPMinted returns the LP tokens minted for a deposit worth usdValue. With an
// empty pool the bootstrap issuance ratio applies (usdValue * lpDecimal,
// independent of balance); otherwise the deposit buys a proportional share of
// the fee-adjusted pool value.
func LPMinted(usdValue, balance, totalLP, fee, lpDecimal sdkmath.Int) (sdkmath.Int, error) {
	if totalLP.IsZero() {
		return usdValue.Mul(lpDecimal), nil
	}
	denom := balance.Sub(fee)
	if denom.IsZero() {
		return sdkmath.Int{}, ErrDivisionByZero
	}
	return usdValue.Mul(totalLP).Quo(denom), nil
}

// USDFromLP returns the USD value redeemed by burning lpAmount LP tokens
// against the fee-adjusted pool value.
func USDFromLP(lpAmount, totalLP, balance, fee sdkmath.Int) (sdkmath.Int, error) {
	if totalLP.IsZero() {
		return sdkmath.Int{}, ErrDivisionByZero
	}
	return lpAmount.Mul(balance.Sub(fee)).Quo(totalLP), nil
}
