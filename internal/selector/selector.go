/*

Greedy multi-asset UTxO selection for withdrawal funding. First-fit over the
vault's UTxO set: whole UTxOs only, one pass per required unit, unconsumed
UTxOs stay in the pool for later units. Not a minimal-count optimizer.

*/

package selector

import (
	"context"
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/whalala-labs/vault-settlement/internal/types"
)

// ErrInsufficientFunds indicates that the address's total holdings of some
// required unit are below the withdrawal target. Shortfalls are always
// reported, never silently truncated.
var ErrInsufficientFunds = errors.New("insufficient funds at address")

// Source lists the unspent outputs currently held at an address.
type Source interface {
	FetchAddressUTxOs(ctx context.Context, address string) ([]types.UTxO, error)
}

// Selection is the outcome of a withdrawal selection: the UTxOs the
// settlement transaction must consume, and the change Value returned to the
// vault.
type Selection struct {
	Selected []types.UTxO
	Change   types.Value
}

// SelectForWithdrawal selects vault UTxOs covering the target Value. Units
// are processed in ascending unit-identifier order for reproducibility, with
// the native currency last against target + MinUTxOLovelace so the change
// output stays above the ledger's minimum. The floor is applied whether or
// not the target itself carries a native leg.
func SelectForWithdrawal(ctx context.Context, source Source, vaultAddress string, target types.Value) (*Selection, error) {
	pool, err := source.FetchAddressUTxOs(ctx, vaultAddress)
	if err != nil {
		return nil, err
	}

	var selected []types.UTxO
	var selectedValue types.Value

	for _, unit := range target.Units() {
		if unit == types.LovelaceUnit {
			continue
		}
		want := target.QuantityOf(unit)
		collected := sdkmath.ZeroInt()

		var remaining []types.UTxO
		satisfied := false
		for i, utxo := range pool {
			if satisfied || utxo.Value.QuantityOf(unit).IsZero() {
				remaining = append(remaining, pool[i])
				continue
			}
			selected = append(selected, utxo)
			selectedValue = types.Combine(selectedValue, utxo.Value)
			collected = collected.Add(utxo.Value.QuantityOf(unit))
			if collected.GTE(want) {
				satisfied = true
			}
		}
		if !satisfied {
			return nil, fmt.Errorf("%w: unit %s needs %s, holdings cover %s",
				ErrInsufficientFunds, unit, want, collected)
		}
		pool = remaining
	}

	// Native pass: lovelace carried by already-selected UTxOs counts toward
	// the floored target.
	nativeTarget := target.QuantityOf(types.LovelaceUnit).AddRaw(types.MinUTxOLovelace)
	collected := selectedValue.QuantityOf(types.LovelaceUnit)
	for _, utxo := range pool {
		if collected.GTE(nativeTarget) {
			break
		}
		selected = append(selected, utxo)
		selectedValue = types.Combine(selectedValue, utxo.Value)
		collected = collected.Add(utxo.Value.QuantityOf(types.LovelaceUnit))
	}
	if collected.LT(nativeTarget) {
		return nil, fmt.Errorf("%w: unit %s needs %s, holdings cover %s",
			ErrInsufficientFunds, types.LovelaceUnit, nativeTarget, collected)
	}

	flooredTarget := types.Combine(target, types.Value{
		{Unit: types.LovelaceUnit, Quantity: sdkmath.NewInt(types.MinUTxOLovelace)},
	})

	return &Selection{
		Selected: selected,
		Change:   types.Subtract(selectedValue, flooredTarget),
	}, nil
}
