/*

Batch accountant. Folds an ordered list of same-kind intent UTxOs against one
price snapshot and the current vault state into per-owner payout outputs,
aggregate totals, and the burn-index list handed to the intent minting policy.

A batch is all-or-nothing: the first intent that fails to decode or to price
aborts the whole batch, because the on-chain burn amount and the burn-index
list must agree with the accountant's count exactly.

*/

package accounting

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/whalala-labs/vault-settlement/internal/plutus"
	"github.com/whalala-labs/vault-settlement/internal/types"
)

// ErrMissingPrice indicates a withdrawal batch priced against a snapshot
// that carries no native-currency price, so the native payout leg cannot be
// computed.
var ErrMissingPrice = errors.New("price snapshot is missing a required unit")

// The settlement transaction's first two inputs are the vault state input
// and a reference input, so intent burn indices start at 2.
const burnIndexOffset = 2

// PayoutOutput is one settlement output owed to an intent owner.
type PayoutOutput struct {
	Address string
	Value   types.Value
}

// BatchResult is the full accounting outcome of one settled batch. AssetDelta
// carries positive magnitudes; the direction (into or out of the vault) is
// the batch kind's.
type BatchResult struct {
	Payouts     []PayoutOutput
	AssetDelta  types.Value
	USDDelta    sdkmath.Int
	LPDelta     sdkmath.Int
	BurnIndices []int64
}

// ProcessDepositBatch accounts an ordered deposit (or swap) batch. Each
// intent's deposited Value is priced against the snapshot, LP tokens are
// minted at the pool ratio, and the deposited assets accumulate into the
// vault's incoming value.
func ProcessDepositBatch(
	intents []types.UTxO,
	snapshot *types.PriceSnapshot,
	state *types.VaultState,
	operatorFee sdkmath.Int,
	lpDecimal sdkmath.Int,
	networkID uint8,
) (*BatchResult, error) {
	result := &BatchResult{
		USDDelta: sdkmath.ZeroInt(),
		LPDelta:  sdkmath.ZeroInt(),
	}

	for i, utxo := range intents {
		intent, err := plutus.DecodeDepositIntent(utxo, networkID)
		if err != nil {
			return nil, fmt.Errorf("intent %s: %w", utxo.Ref, err)
		}

		usdValue := types.PriceValueUSD(intent.Value, snapshot.Prices)
		lpAmount, err := LPMinted(usdValue, snapshot.VaultBalance, state.TotalLP, operatorFee, lpDecimal)
		if err != nil {
			return nil, fmt.Errorf("intent %s: %w", utxo.Ref, err)
		}

		result.Payouts = append(result.Payouts, PayoutOutput{
			Address: intent.Owner,
			Value:   types.Value{{Unit: state.LPTokenScriptHash, Quantity: lpAmount}},
		})
		result.AssetDelta = types.Combine(result.AssetDelta, intent.Value)
		result.USDDelta = result.USDDelta.Add(usdValue)
		result.LPDelta = result.LPDelta.Add(lpAmount)
		result.BurnIndices = append(result.BurnIndices, int64(burnIndexOffset+i))
	}

	return result, nil
}

// ProcessWithdrawalBatch accounts an ordered withdrawal batch. Each intent's
// LP amount is redeemed against the fee-adjusted pool value, then split into
// a stable-asset leg (usd * ratioPercent / 100) and a native leg covering the
// remainder at the snapshot's native price.
func ProcessWithdrawalBatch(
	intents []types.UTxO,
	snapshot *types.PriceSnapshot,
	state *types.VaultState,
	operatorFee sdkmath.Int,
	stableUnit string,
	ratioPercent int64,
	networkID uint8,
) (*BatchResult, error) {
	nativePrice, ok := snapshot.Prices[types.LovelaceUnit]
	if !ok || nativePrice.IsZero() {
		return nil, fmt.Errorf("%w: %s", ErrMissingPrice, types.LovelaceUnit)
	}

	result := &BatchResult{
		USDDelta: sdkmath.ZeroInt(),
		LPDelta:  sdkmath.ZeroInt(),
	}

	for i, utxo := range intents {
		intent, err := plutus.DecodeWithdrawalIntent(utxo, networkID)
		if err != nil {
			return nil, fmt.Errorf("intent %s: %w", utxo.Ref, err)
		}

		usdValue, err := USDFromLP(intent.LPAmount, state.TotalLP, snapshot.VaultBalance, operatorFee)
		if err != nil {
			return nil, fmt.Errorf("intent %s: %w", utxo.Ref, err)
		}

		stableAmount := usdValue.MulRaw(ratioPercent).QuoRaw(100)
		nativeAmount := usdValue.Sub(stableAmount).Quo(nativePrice)

		// Combine normalizes: a zero leg (ratio 0 or 100) is dropped.
		payout := types.Combine(nil, types.Value{
			{Unit: stableUnit, Quantity: stableAmount},
			{Unit: types.LovelaceUnit, Quantity: nativeAmount},
		})

		result.Payouts = append(result.Payouts, PayoutOutput{
			Address: intent.Owner,
			Value:   payout,
		})
		result.AssetDelta = types.Combine(result.AssetDelta, payout)
		result.USDDelta = result.USDDelta.Add(usdValue)
		result.LPDelta = result.LPDelta.Add(intent.LPAmount)
		result.BurnIndices = append(result.BurnIndices, int64(burnIndexOffset+i))
	}

	return result, nil
}
