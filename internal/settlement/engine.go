/*

Settlement engine. Ties the wire codecs, the batch accountant, the state
transition, and the withdrawal selector into one planning pass: a settlement
request (signed oracle message + intents) in, a complete settlement plan out.
The plan carries everything the downstream transaction builder needs — payout
outputs, burn redeemer bytes, the successor state datum, and for withdrawals
the funding UTxOs and change.

The engine never builds, signs, or submits a transaction.

*/

package settlement

import (
	"context"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/whalala-labs/vault-settlement/internal/accounting"
	"github.com/whalala-labs/vault-settlement/internal/logger"
	"github.com/whalala-labs/vault-settlement/internal/plutus"
	"github.com/whalala-labs/vault-settlement/internal/selector"
	"github.com/whalala-labs/vault-settlement/internal/types"
)

// UTxOSource is the engine's view of the chain index.
type UTxOSource interface {
	FetchAddressUTxOs(ctx context.Context, address string) ([]types.UTxO, error)
	FetchUTxO(ctx context.Context, ref types.UTxORef) (*types.UTxO, error)
}

// Engine plans settlements against one UTxO source and one network.
type Engine struct {
	logger       zerolog.Logger
	source       UTxOSource
	networkID    uint8
	stableUnit   string
	ratioPercent int64
	lpDecimal    sdkmath.Int
}

// Config holds the dependencies and parameters for a new Engine.
type Config struct {
	Source UTxOSource
	// NetworkID selects address serialization: 0 testnet, 1 mainnet.
	NetworkID uint8
	// StableUnit is the stable asset paid on the withdrawal stable leg.
	StableUnit string
	// StableRatioPercent is the percentage of a withdrawal's USD value paid
	// in the stable asset; the remainder is paid in the native currency.
	StableRatioPercent int64
	// LPDecimal is the bootstrap LP issuance ratio (LP units per USD cent
	// when total supply is zero).
	LPDecimal int64
}

// NewEngine validates the configuration and returns a settlement engine.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("utxo source cannot be nil")
	}
	if cfg.NetworkID > 1 {
		return nil, fmt.Errorf("network id must be 0 or 1, got %d", cfg.NetworkID)
	}
	if cfg.StableRatioPercent < 0 || cfg.StableRatioPercent > 100 {
		return nil, fmt.Errorf("stable ratio must be within 0-100, got %d", cfg.StableRatioPercent)
	}
	if cfg.StableUnit == "" {
		return nil, fmt.Errorf("stable unit cannot be empty")
	}
	if cfg.LPDecimal <= 0 {
		return nil, fmt.Errorf("lp decimal must be positive, got %d", cfg.LPDecimal)
	}

	return &Engine{
		logger:       logger.GetForComponent("settlement_engine"),
		source:       cfg.Source,
		networkID:    cfg.NetworkID,
		stableUnit:   cfg.StableUnit,
		ratioPercent: cfg.StableRatioPercent,
		lpDecimal:    sdkmath.NewInt(cfg.LPDecimal),
	}, nil
}

// Request is one settlement request: the batch kind, the intent UTxOs to
// settle in order, and the signed oracle message with its node signatures,
// both hex encoded.
type Request struct {
	Kind          types.IntentKind
	Intents       []types.UTxO
	MessageHex    string
	SignaturesHex []string
}

// Plan is the full outcome of planning one settlement.
type Plan struct {
	Snapshot    *types.PriceSnapshot
	State       *types.VaultState
	NextState   *types.VaultState
	OperatorFee sdkmath.Int
	Payouts     []accounting.PayoutOutput
	BurnIndices []int64

	// Wire-ready bytes for the transaction builder.
	NextStateDatum []byte
	BurnRedeemer   []byte

	// Withdrawal funding; empty for deposit batches.
	Selected []types.UTxO
	Change   types.Value
}

// PlanSettlement computes the complete settlement plan for a request. Any
// failure aborts the whole batch; no partial plan is ever returned.
func (e *Engine) PlanSettlement(ctx context.Context, req Request) (*Plan, error) {
	snapshot, err := plutus.DecodeSignedMessageHex(req.MessageHex)
	if err != nil {
		return nil, fmt.Errorf("decoding oracle message: %w", err)
	}

	state, err := e.resolveVaultState(ctx, snapshot.StateRef)
	if err != nil {
		return nil, err
	}

	operatorFee := accounting.OperatorFee(snapshot.VaultBalance, state.HWMLpValue, state.OperatorCharge)

	e.logger.Info().
		Str("kind", req.Kind.String()).
		Int("intents", len(req.Intents)).
		Str("vaultBalance", snapshot.VaultBalance.String()).
		Str("operatorFee", operatorFee.String()).
		Msg("Planning settlement batch")

	var (
		batch     *accounting.BatchResult
		direction accounting.BatchDirection
	)
	switch req.Kind {
	case types.IntentDeposit, types.IntentSwap:
		direction = accounting.DirectionDeposit
		batch, err = accounting.ProcessDepositBatch(
			req.Intents, snapshot, state, operatorFee, e.lpDecimal, e.networkID)
	case types.IntentWithdrawal:
		direction = accounting.DirectionWithdrawal
		batch, err = accounting.ProcessWithdrawalBatch(
			req.Intents, snapshot, state, operatorFee, e.stableUnit, e.ratioPercent, e.networkID)
	default:
		return nil, fmt.Errorf("unknown intent kind %d", req.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("accounting %s batch: %w", req.Kind, err)
	}

	nextState, err := accounting.NextState(
		state, snapshot.VaultBalance, batch.LPDelta, batch.USDDelta, operatorFee, direction)
	if err != nil {
		return nil, fmt.Errorf("state transition: %w", err)
	}

	nextDatum, err := plutus.EncodeVaultStateDatum(nextState)
	if err != nil {
		return nil, fmt.Errorf("encoding next state: %w", err)
	}
	burnRedeemer, err := plutus.EncodeBurnIntentRedeemer(batch.BurnIndices, req.MessageHex, req.SignaturesHex)
	if err != nil {
		return nil, fmt.Errorf("encoding burn redeemer: %w", err)
	}

	plan := &Plan{
		Snapshot:       snapshot,
		State:          state,
		NextState:      nextState,
		OperatorFee:    operatorFee,
		Payouts:        batch.Payouts,
		BurnIndices:    batch.BurnIndices,
		NextStateDatum: nextDatum,
		BurnRedeemer:   burnRedeemer,
	}

	if req.Kind == types.IntentWithdrawal {
		vaultAddress, err := plutus.ScriptAddress(state.VaultScriptHash, e.networkID)
		if err != nil {
			return nil, fmt.Errorf("deriving vault address: %w", err)
		}
		selection, err := selector.SelectForWithdrawal(ctx, e.source, vaultAddress, batch.AssetDelta)
		if err != nil {
			return nil, fmt.Errorf("selecting withdrawal funding: %w", err)
		}
		plan.Selected = selection.Selected
		plan.Change = selection.Change
	}

	e.logger.Info().
		Str("kind", req.Kind.String()).
		Int("payouts", len(plan.Payouts)).
		Str("lpDelta", batch.LPDelta.String()).
		Str("usdDelta", batch.USDDelta.String()).
		Int("fundingUtxos", len(plan.Selected)).
		Msg("Settlement plan ready")

	return plan, nil
}

// PendingIntents lists the intent UTxOs currently locked at the intent
// script address for the given kind. Deposits and swaps share the deposit
// intent script.
func (e *Engine) PendingIntents(ctx context.Context, state *types.VaultState, kind types.IntentKind) ([]types.UTxO, error) {
	scriptHash := state.DepositIntentScriptHash
	if kind == types.IntentWithdrawal {
		scriptHash = state.WithdrawalIntentScriptHash
	}

	address, err := plutus.ScriptAddress(scriptHash, e.networkID)
	if err != nil {
		return nil, fmt.Errorf("deriving intent address: %w", err)
	}
	return e.source.FetchAddressUTxOs(ctx, address)
}

// resolveVaultState re-resolves the snapshot's state reference into the live
// vault state UTxO and decodes its inline datum.
func (e *Engine) resolveVaultState(ctx context.Context, ref types.UTxORef) (*types.VaultState, error) {
	stateUTxO, err := e.source.FetchUTxO(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("resolving vault state %s: %w", ref, err)
	}
	return DecodeStateUTxO(stateUTxO)
}

// DecodeStateUTxO decodes the vault state carried inline by the singleton
// state UTxO.
func DecodeStateUTxO(utxo *types.UTxO) (*types.VaultState, error) {
	if utxo.InlineDatum == nil {
		return nil, fmt.Errorf("vault state %s: %w", utxo.Ref, plutus.ErrMissingInlineState)
	}
	state, err := plutus.DecodeVaultStateDatum(utxo.InlineDatum)
	if err != nil {
		return nil, fmt.Errorf("decoding vault state %s: %w", utxo.Ref, err)
	}
	return state, nil
}
