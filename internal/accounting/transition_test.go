package accounting

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/whalala-labs/vault-settlement/internal/types"
)

func baseState() *types.VaultState {
	return &types.VaultState{
		AppOracle:                  "aa01",
		PluggableLogic:             "bb02",
		NodePubKeys:                []string{"cc03", "dd04"},
		TotalLP:                    sdkmath.NewInt(1000),
		HWMLpValue:                 sdkmath.NewInt(500),
		OperatorCharge:             sdkmath.NewInt(20),
		OperatorKey:                "ee05",
		VaultCost:                  sdkmath.NewInt(400),
		VaultScriptHash:            "11",
		DepositIntentScriptHash:    "22",
		WithdrawalIntentScriptHash: "33",
		LPTokenScriptHash:          "44",
	}
}

func TestNextStateDeposit(t *testing.T) {
	state := baseState()

	next, err := NextState(state,
		sdkmath.NewInt(600), // balance
		sdkmath.NewInt(100), // lp delta
		sdkmath.NewInt(50),  // usd delta
		sdkmath.NewInt(10),  // fee
		DirectionDeposit)
	require.NoError(t, err)

	require.Equal(t, sdkmath.NewInt(1100), next.TotalLP)
	require.Equal(t, sdkmath.NewInt(450), next.VaultCost)
	// 600 - 10 + 50 = 640 > 500, so the mark moves up.
	require.Equal(t, sdkmath.NewInt(640), next.HWMLpValue)
}

func TestNextStateWithdrawal(t *testing.T) {
	state := baseState()

	next, err := NextState(state,
		sdkmath.NewInt(900),
		sdkmath.NewInt(300),
		sdkmath.NewInt(200),
		sdkmath.NewInt(40),
		DirectionWithdrawal)
	require.NoError(t, err)

	require.Equal(t, sdkmath.NewInt(700), next.TotalLP)
	require.Equal(t, sdkmath.NewInt(200), next.VaultCost)
	// 900 - 40 - 200 = 660 > 500.
	require.Equal(t, sdkmath.NewInt(660), next.HWMLpValue)
}

func TestNextStateHWMNeverDecreases(t *testing.T) {
	state := baseState()

	// 300 - 0 - 100 = 200 < 500: a settlement at a loss keeps the mark.
	next, err := NextState(state,
		sdkmath.NewInt(300),
		sdkmath.NewInt(100),
		sdkmath.NewInt(100),
		sdkmath.ZeroInt(),
		DirectionWithdrawal)
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(500), next.HWMLpValue)
}

func TestNextStateNegativeSupply(t *testing.T) {
	state := baseState()

	_, err := NextState(state,
		sdkmath.NewInt(900),
		sdkmath.NewInt(1001), // more than total supply
		sdkmath.NewInt(200),
		sdkmath.ZeroInt(),
		DirectionWithdrawal)
	require.ErrorIs(t, err, ErrNegativeSupply)
}

func TestNextStateVaultCostMayGoNegative(t *testing.T) {
	state := baseState()

	next, err := NextState(state,
		sdkmath.NewInt(900),
		sdkmath.NewInt(100),
		sdkmath.NewInt(500), // more than current cost basis
		sdkmath.ZeroInt(),
		DirectionWithdrawal)
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(-100), next.VaultCost)
}

func TestNextStateCarriesConfiguration(t *testing.T) {
	state := baseState()

	next, err := NextState(state,
		sdkmath.NewInt(600), sdkmath.NewInt(1), sdkmath.NewInt(1), sdkmath.ZeroInt(),
		DirectionDeposit)
	require.NoError(t, err)

	require.Equal(t, state.AppOracle, next.AppOracle)
	require.Equal(t, state.PluggableLogic, next.PluggableLogic)
	require.Equal(t, state.NodePubKeys, next.NodePubKeys)
	require.Equal(t, state.OperatorCharge, next.OperatorCharge)
	require.Equal(t, state.OperatorKey, next.OperatorKey)
	require.Equal(t, state.VaultScriptHash, next.VaultScriptHash)
	require.Equal(t, state.DepositIntentScriptHash, next.DepositIntentScriptHash)
	require.Equal(t, state.WithdrawalIntentScriptHash, next.WithdrawalIntentScriptHash)
	require.Equal(t, state.LPTokenScriptHash, next.LPTokenScriptHash)

	// The successor owns its signer list.
	next.NodePubKeys[0] = "mutated"
	require.Equal(t, "cc03", state.NodePubKeys[0])
}

func TestNextStateEmptySignerSetStaysEmpty(t *testing.T) {
	state := baseState()
	state.NodePubKeys = nil

	next, err := NextState(state,
		sdkmath.NewInt(600), sdkmath.NewInt(1), sdkmath.NewInt(1), sdkmath.ZeroInt(),
		DirectionDeposit)
	require.NoError(t, err)

	// An absent signer set must survive as an empty slice so the successor
	// compares equal to its own datum round trip.
	require.NotNil(t, next.NodePubKeys)
	require.Empty(t, next.NodePubKeys)
}
