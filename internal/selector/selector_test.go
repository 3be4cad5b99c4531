package selector

import (
	"context"
	"strings"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/whalala-labs/vault-settlement/internal/types"
)

const (
	tokenA = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa41"
	tokenB = "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb42"
)

type stubSource struct {
	utxos []types.UTxO
}

func (s *stubSource) FetchAddressUTxOs(_ context.Context, _ string) ([]types.UTxO, error) {
	return s.utxos, nil
}

func utxo(index uint32, assets ...types.Asset) types.UTxO {
	return types.UTxO{
		Ref:   types.UTxORef{TxHash: strings.Repeat("aa", 32), OutputIndex: index},
		Value: types.Value(assets),
	}
}

func refs(utxos []types.UTxO) []types.UTxORef {
	out := make([]types.UTxORef, 0, len(utxos))
	for _, u := range utxos {
		out = append(out, u.Ref)
	}
	return out
}

func TestSelectFirstFitWithNativeFloor(t *testing.T) {
	u1 := utxo(0, types.NewAsset(tokenA, 5))
	u2 := utxo(1, types.NewAsset(tokenA, 3), types.NewAsset(types.LovelaceUnit, 2_000_000))
	source := &stubSource{utxos: []types.UTxO{u1, u2}}

	target := types.Value{types.NewAsset(tokenA, 4)}

	selection, err := SelectForWithdrawal(context.Background(), source, "addr_test1vault", target)
	require.NoError(t, err)

	// U1 alone covers tokenA (5 >= 4); the native floor then forces U2 in
	// because U1 carries no lovelace.
	require.Equal(t, []types.UTxORef{u1.Ref, u2.Ref}, refs(selection.Selected))

	// change = {8 tokenA, 2_000_000 lovelace} - {4 tokenA, 2_000_000 lovelace}
	require.Equal(t, sdkmath.NewInt(4), selection.Change.QuantityOf(tokenA))
	require.True(t, selection.Change.QuantityOf(types.LovelaceUnit).IsZero())
}

func TestSelectStopsAtThreshold(t *testing.T) {
	u1 := utxo(0, types.NewAsset(tokenA, 4), types.NewAsset(types.LovelaceUnit, 5_000_000))
	u2 := utxo(1, types.NewAsset(tokenA, 100), types.NewAsset(types.LovelaceUnit, 5_000_000))
	source := &stubSource{utxos: []types.UTxO{u1, u2}}

	target := types.Value{types.NewAsset(tokenA, 4)}

	selection, err := SelectForWithdrawal(context.Background(), source, "addr_test1vault", target)
	require.NoError(t, err)

	// First fit: u1 crosses the threshold, u2 stays unselected and its
	// lovelace is not needed (u1 already covers the 2_000_000 floor).
	require.Equal(t, []types.UTxORef{u1.Ref}, refs(selection.Selected))
	require.Equal(t, sdkmath.NewInt(3_000_000), selection.Change.QuantityOf(types.LovelaceUnit))
}

func TestSelectReturnsUnconsumedToPool(t *testing.T) {
	// u2 holds tokenA but is not needed for it; it must remain available
	// for the tokenB pass.
	u1 := utxo(0, types.NewAsset(tokenA, 10), types.NewAsset(types.LovelaceUnit, 2_000_000))
	u2 := utxo(1, types.NewAsset(tokenA, 50), types.NewAsset(tokenB, 7))
	source := &stubSource{utxos: []types.UTxO{u1, u2}}

	target := types.Value{types.NewAsset(tokenA, 8), types.NewAsset(tokenB, 7)}

	selection, err := SelectForWithdrawal(context.Background(), source, "addr_test1vault", target)
	require.NoError(t, err)
	require.Equal(t, []types.UTxORef{u1.Ref, u2.Ref}, refs(selection.Selected))
	require.Equal(t, sdkmath.NewInt(52), selection.Change.QuantityOf(tokenA))
	require.True(t, selection.Change.QuantityOf(tokenB).IsZero())
}

func TestSelectInsufficientToken(t *testing.T) {
	source := &stubSource{utxos: []types.UTxO{
		utxo(0, types.NewAsset(tokenA, 3), types.NewAsset(types.LovelaceUnit, 9_000_000)),
	}}

	target := types.Value{types.NewAsset(tokenA, 4)}

	_, err := SelectForWithdrawal(context.Background(), source, "addr_test1vault", target)
	require.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestSelectInsufficientNativeForFloor(t *testing.T) {
	// Holdings cover the token but not target native + floor.
	source := &stubSource{utxos: []types.UTxO{
		utxo(0, types.NewAsset(types.LovelaceUnit, 2_500_000)),
	}}

	target := types.Value{types.NewAsset(types.LovelaceUnit, 1_000_000)}

	_, err := SelectForWithdrawal(context.Background(), source, "addr_test1vault", target)
	require.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestSelectNativeOnlyTarget(t *testing.T) {
	u1 := utxo(0, types.NewAsset(types.LovelaceUnit, 2_000_000))
	u2 := utxo(1, types.NewAsset(types.LovelaceUnit, 2_000_000))
	source := &stubSource{utxos: []types.UTxO{u1, u2}}

	target := types.Value{types.NewAsset(types.LovelaceUnit, 1_500_000)}

	selection, err := SelectForWithdrawal(context.Background(), source, "addr_test1vault", target)
	require.NoError(t, err)
	// Needs 1_500_000 + 2_000_000 floor, so both UTxOs are consumed.
	require.Equal(t, []types.UTxORef{u1.Ref, u2.Ref}, refs(selection.Selected))
	require.Equal(t, sdkmath.NewInt(500_000), selection.Change.QuantityOf(types.LovelaceUnit))
}
