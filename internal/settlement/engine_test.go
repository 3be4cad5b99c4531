package settlement

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/blinklabs-io/gouroboros/cbor"
	"github.com/stretchr/testify/require"

	"github.com/whalala-labs/vault-settlement/internal/plutus"
	"github.com/whalala-labs/vault-settlement/internal/types"
)

const (
	testStableUnit = "efefefefefefefefefefefefefefefefefefefefefefefefefefefef5553444d"
	testToken      = "1212121212121212121212121212121212121212121212121212121274657374"
)

type stubSource struct {
	byRef     map[string]types.UTxO
	byAddress map[string][]types.UTxO
}

func (s *stubSource) FetchAddressUTxOs(_ context.Context, address string) ([]types.UTxO, error) {
	return s.byAddress[address], nil
}

func (s *stubSource) FetchUTxO(_ context.Context, ref types.UTxORef) (*types.UTxO, error) {
	utxo, ok := s.byRef[ref.String()]
	if !ok {
		return nil, fmt.Errorf("utxo not found: %s", ref)
	}
	return &utxo, nil
}

func testEngine(t *testing.T, source *stubSource) *Engine {
	t.Helper()
	engine, err := NewEngine(Config{
		Source:             source,
		NetworkID:          0,
		StableUnit:         testStableUnit,
		StableRatioPercent: 50,
		LPDecimal:          1_000_000,
	})
	require.NoError(t, err)
	return engine
}

// stateFixture encodes a vault state into its singleton UTxO and returns the
// snapshot message hex pointing at it.
func stateFixture(t *testing.T, source *stubSource, state *types.VaultState, balance int64, prices types.PriceMap) string {
	t.Helper()

	datum, err := plutus.EncodeVaultStateDatum(state)
	require.NoError(t, err)

	ref := types.UTxORef{TxHash: strings.Repeat("ab", 32), OutputIndex: 0}
	source.byRef[ref.String()] = types.UTxO{
		Ref:         ref,
		Value:       types.Value{types.NewAsset(types.LovelaceUnit, types.MinUTxOLovelace)},
		InlineDatum: datum,
	}

	message, err := plutus.EncodeSignedMessage(&types.PriceSnapshot{
		VaultBalance: sdkmath.NewInt(balance),
		Prices:       prices,
		StateRef:     ref,
	})
	require.NoError(t, err)
	return hex.EncodeToString(message)
}

func depositFixture(t *testing.T, owner string, value types.Value, index uint32) types.UTxO {
	t.Helper()
	datum, err := plutus.BuildDepositIntentDatum(owner, value)
	require.NoError(t, err)
	return types.UTxO{
		Ref:         types.UTxORef{TxHash: strings.Repeat("cd", 32), OutputIndex: index},
		Value:       types.Value{types.NewAsset(types.LovelaceUnit, types.MinUTxOLovelace)},
		InlineDatum: datum,
	}
}

func TestPlanDepositSettlement(t *testing.T) {
	source := &stubSource{byRef: map[string]types.UTxO{}, byAddress: map[string][]types.UTxO{}}
	engine := testEngine(t, source)

	state := &types.VaultState{
		TotalLP:                    sdkmath.ZeroInt(),
		HWMLpValue:                 sdkmath.ZeroInt(),
		OperatorCharge:             sdkmath.NewInt(20),
		VaultCost:                  sdkmath.ZeroInt(),
		VaultScriptHash:            strings.Repeat("01", 28),
		DepositIntentScriptHash:    strings.Repeat("02", 28),
		WithdrawalIntentScriptHash: strings.Repeat("03", 28),
		LPTokenScriptHash:          strings.Repeat("04", 28),
		NodePubKeys:                []string{strings.Repeat("c3", 32)},
	}

	messageHex := stateFixture(t, source, state, 0, types.PriceMap{
		types.LovelaceUnit: sdkmath.NewInt(1),
		testToken:          sdkmath.NewInt(2),
	})

	owner, err := plutus.ScriptAddress(strings.Repeat("34", 28), 0)
	require.NoError(t, err)

	plan, err := engine.PlanSettlement(context.Background(), Request{
		Kind:          types.IntentDeposit,
		Intents:       []types.UTxO{depositFixture(t, owner, types.Value{types.NewAsset(testToken, 5)}, 0)},
		MessageHex:    messageHex,
		SignaturesHex: []string{strings.Repeat("aa", 64)},
	})
	require.NoError(t, err)

	// Bootstrap: usd = 10, lp = 10 * 1_000_000.
	require.True(t, plan.OperatorFee.IsZero())
	require.Equal(t, []int64{2}, plan.BurnIndices)
	require.Equal(t, sdkmath.NewInt(10_000_000), plan.NextState.TotalLP)
	require.Equal(t, sdkmath.NewInt(10), plan.NextState.HWMLpValue)
	require.Equal(t, sdkmath.NewInt(10), plan.NextState.VaultCost)
	require.Empty(t, plan.Selected)

	require.Len(t, plan.Payouts, 1)
	require.Equal(t, owner, plan.Payouts[0].Address)
	require.Equal(t, sdkmath.NewInt(10_000_000), plan.Payouts[0].Value.QuantityOf(state.LPTokenScriptHash))

	// The successor datum re-decodes to the successor state.
	decoded, err := plutus.DecodeVaultStateDatum(plan.NextStateDatum)
	require.NoError(t, err)
	require.Equal(t, plan.NextState, decoded)

	var redeemer cbor.Constructor
	_, err = cbor.Decode(plan.BurnRedeemer, &redeemer)
	require.NoError(t, err)
	require.Equal(t, uint(1), redeemer.Constructor())
}

func TestPlanWithdrawalSettlementSelectsFunding(t *testing.T) {
	source := &stubSource{byRef: map[string]types.UTxO{}, byAddress: map[string][]types.UTxO{}}
	engine := testEngine(t, source)

	state := &types.VaultState{
		TotalLP:                    sdkmath.NewInt(1000),
		HWMLpValue:                 sdkmath.ZeroInt(),
		OperatorCharge:             sdkmath.ZeroInt(),
		VaultCost:                  sdkmath.NewInt(2000),
		VaultScriptHash:            strings.Repeat("01", 28),
		DepositIntentScriptHash:    strings.Repeat("02", 28),
		WithdrawalIntentScriptHash: strings.Repeat("03", 28),
		LPTokenScriptHash:          strings.Repeat("04", 28),
		NodePubKeys:                []string{strings.Repeat("c3", 32)},
	}

	messageHex := stateFixture(t, source, state, 2000, types.PriceMap{
		types.LovelaceUnit: sdkmath.NewInt(2),
	})

	vaultAddress, err := plutus.ScriptAddress(state.VaultScriptHash, 0)
	require.NoError(t, err)
	source.byAddress[vaultAddress] = []types.UTxO{
		{
			Ref: types.UTxORef{TxHash: strings.Repeat("ef", 32), OutputIndex: 0},
			Value: types.Value{
				types.NewAsset(testStableUnit, 500),
				types.NewAsset(types.LovelaceUnit, 10_000_000),
			},
		},
	}

	owner, err := plutus.ScriptAddress(strings.Repeat("34", 28), 0)
	require.NoError(t, err)
	withdrawalDatum, err := plutus.BuildWithdrawalIntentDatum(owner, sdkmath.NewInt(100))
	require.NoError(t, err)

	plan, err := engine.PlanSettlement(context.Background(), Request{
		Kind: types.IntentWithdrawal,
		Intents: []types.UTxO{{
			Ref:         types.UTxORef{TxHash: strings.Repeat("cd", 32), OutputIndex: 0},
			InlineDatum: withdrawalDatum,
		}},
		MessageHex:    messageHex,
		SignaturesHex: []string{strings.Repeat("bb", 64)},
	})
	require.NoError(t, err)

	// usd = 100 * 2000 / 1000 = 200; stable 100, native (200-100)/2 = 50.
	require.Equal(t, sdkmath.NewInt(900), plan.NextState.TotalLP)
	require.Equal(t, sdkmath.NewInt(1800), plan.NextState.VaultCost)
	require.Len(t, plan.Selected, 1)

	require.Equal(t, sdkmath.NewInt(400), plan.Change.QuantityOf(testStableUnit))
	// 10_000_000 - 50 native - 2_000_000 floor.
	require.Equal(t, sdkmath.NewInt(7_999_950), plan.Change.QuantityOf(types.LovelaceUnit))
}

func TestNewEngineValidation(t *testing.T) {
	source := &stubSource{byRef: map[string]types.UTxO{}, byAddress: map[string][]types.UTxO{}}

	_, err := NewEngine(Config{NetworkID: 0, StableUnit: testStableUnit, StableRatioPercent: 50, LPDecimal: 1})
	require.Error(t, err) // nil source

	_, err = NewEngine(Config{Source: source, NetworkID: 2, StableUnit: testStableUnit, StableRatioPercent: 50, LPDecimal: 1})
	require.Error(t, err)

	_, err = NewEngine(Config{Source: source, NetworkID: 0, StableUnit: testStableUnit, StableRatioPercent: 101, LPDecimal: 1})
	require.Error(t, err)

	_, err = NewEngine(Config{Source: source, NetworkID: 0, StableUnit: "", StableRatioPercent: 50, LPDecimal: 1})
	require.Error(t, err)

	_, err = NewEngine(Config{Source: source, NetworkID: 0, StableUnit: testStableUnit, StableRatioPercent: 50, LPDecimal: 0})
	require.Error(t, err)
}
