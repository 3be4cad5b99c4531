package accounting

import (
	"errors"

	sdkmath "cosmossdk.io/math"

	"github.com/whalala-labs/vault-settlement/internal/types"
)

// ErrNegativeSupply indicates a withdrawal batch that would burn more LP
// tokens than the vault has issued.
var ErrNegativeSupply = errors.New("lp supply would go negative")

// BatchDirection is the sign convention of a settled batch: deposits add to
// the vault's supply and cost basis, withdrawals subtract.
type BatchDirection int

const (
	DirectionDeposit BatchDirection = iota
	DirectionWithdrawal
)

// NextState produces the successor vault state from the current state and
// one settled batch. Only the three accounting fields change; protocol
// configuration (oracle refs, signer set, operator identity, script hashes)
// is carried forward untouched.
//
// The high-water mark is monotonic: the fee-adjusted post-settlement balance
// overwrites it only on an increase, so a settlement that realizes a loss
// never lowers the fee baseline.
func NextState(
	state *types.VaultState,
	balance sdkmath.Int,
	lpDelta, usdDelta, operatorFee sdkmath.Int,
	direction BatchDirection,
) (*types.VaultState, error) {
	next := *state
	// make+copy rather than append: an empty signer set must stay an empty
	// slice, not collapse to nil, so the successor always re-encodes to the
	// same datum shape.
	next.NodePubKeys = make([]string, len(state.NodePubKeys))
	copy(next.NodePubKeys, state.NodePubKeys)

	var hwmCandidate sdkmath.Int
	switch direction {
	case DirectionDeposit:
		next.TotalLP = state.TotalLP.Add(lpDelta)
		next.VaultCost = state.VaultCost.Add(usdDelta)
		hwmCandidate = balance.Sub(operatorFee).Add(usdDelta)
	case DirectionWithdrawal:
		next.TotalLP = state.TotalLP.Sub(lpDelta)
		if next.TotalLP.IsNegative() {
			return nil, ErrNegativeSupply
		}
		next.VaultCost = state.VaultCost.Sub(usdDelta)
		hwmCandidate = balance.Sub(operatorFee).Sub(usdDelta)
	}

	if hwmCandidate.GT(state.HWMLpValue) {
		next.HWMLpValue = hwmCandidate
	}

	return &next, nil
}
