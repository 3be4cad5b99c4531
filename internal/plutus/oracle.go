package plutus

import (
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/blinklabs-io/gouroboros/cbor"

	"github.com/whalala-labs/vault-settlement/internal/types"
)

// The vault oracle datum is a 12-field constructor. The field order below is
// shared with every on-chain validator parameterized by the oracle NFT and
// must never be reordered.
//
//	VaultOracleDatum = #6.121([appOracle: bytes,
//	                           pluggableLogic: bytes,
//	                           nodePubKeys: [bytes],
//	                           totalLP: int,
//	                           hwmLpValue: int,
//	                           operatorCharge: int,
//	                           operatorKey: bytes,
//	                           vaultCost: int,
//	                           vaultScriptHash: bytes,
//	                           depositIntentScriptHash: bytes,
//	                           withdrawalIntentScriptHash: bytes,
//	                           lpTokenScriptHash: bytes])

// DecodeVaultStateDatum decodes the vault oracle datum.
func DecodeVaultStateDatum(data []byte) (*types.VaultState, error) {
	var constr cbor.Constructor
	if _, err := cbor.Decode(data, &constr); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if constr.Constructor() != 0 {
		return nil, fmt.Errorf("%w: expected vault oracle constructor 0, got %d", ErrMalformedPayload, constr.Constructor())
	}

	var wire struct {
		cbor.StructAsArray
		AppOracle                  []byte
		PluggableLogic             []byte
		NodePubKeys                [][]byte
		TotalLP                    big.Int
		HWMLpValue                 big.Int
		OperatorCharge             big.Int
		OperatorKey                []byte
		VaultCost                  big.Int
		VaultScriptHash            []byte
		DepositIntentScriptHash    []byte
		WithdrawalIntentScriptHash []byte
		LPTokenScriptHash          []byte
	}
	if err := cbor.DecodeGeneric(constr.FieldsCbor(), &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	nodeKeys := make([]string, 0, len(wire.NodePubKeys))
	for _, key := range wire.NodePubKeys {
		nodeKeys = append(nodeKeys, hex.EncodeToString(key))
	}

	return &types.VaultState{
		AppOracle:                  hex.EncodeToString(wire.AppOracle),
		PluggableLogic:             hex.EncodeToString(wire.PluggableLogic),
		NodePubKeys:                nodeKeys,
		TotalLP:                    intFromBig(wire.TotalLP),
		HWMLpValue:                 intFromBig(wire.HWMLpValue),
		OperatorCharge:             intFromBig(wire.OperatorCharge),
		OperatorKey:                hex.EncodeToString(wire.OperatorKey),
		VaultCost:                  intFromBig(wire.VaultCost),
		VaultScriptHash:            hex.EncodeToString(wire.VaultScriptHash),
		DepositIntentScriptHash:    hex.EncodeToString(wire.DepositIntentScriptHash),
		WithdrawalIntentScriptHash: hex.EncodeToString(wire.WithdrawalIntentScriptHash),
		LPTokenScriptHash:          hex.EncodeToString(wire.LPTokenScriptHash),
	}, nil
}

// EncodeVaultStateDatum serializes a VaultState back into the oracle datum
// wire shape, as required for the successor state output.
func EncodeVaultStateDatum(state *types.VaultState) ([]byte, error) {
	fields := cbor.IndefLengthList{}

	for _, field := range []string{state.AppOracle, state.PluggableLogic} {
		b, err := hexField(field)
		if err != nil {
			return nil, err
		}
		fields = append(fields, b)
	}

	nodeKeys := cbor.IndefLengthList{}
	for _, key := range state.NodePubKeys {
		b, err := hexField(key)
		if err != nil {
			return nil, err
		}
		nodeKeys = append(nodeKeys, b)
	}
	fields = append(fields, nodeKeys)

	fields = append(fields, encInt(state.TotalLP), encInt(state.HWMLpValue), encInt(state.OperatorCharge))

	operatorKey, err := hexField(state.OperatorKey)
	if err != nil {
		return nil, err
	}
	fields = append(fields, operatorKey, encInt(state.VaultCost))

	for _, field := range []string{
		state.VaultScriptHash,
		state.DepositIntentScriptHash,
		state.WithdrawalIntentScriptHash,
		state.LPTokenScriptHash,
	} {
		b, err := hexField(field)
		if err != nil {
			return nil, err
		}
		fields = append(fields, b)
	}

	return cbor.Encode(cbor.NewConstructor(0, fields))
}

func hexField(s string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex field %q: %w", s, err)
	}
	if b == nil {
		b = []byte{}
	}
	return b, nil
}
