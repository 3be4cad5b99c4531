package plutus

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"sort"

	sdkmath "cosmossdk.io/math"
	"github.com/blinklabs-io/gouroboros/cbor"

	"github.com/whalala-labs/vault-settlement/internal/types"
)

// Intent inline state:
//
//	DepositIntent    = #6.121([owner: Address, value: { policy => { name => int } }])
//	SwapIntent       = #6.121([owner: Address, value: { policy => { name => int } }])
//	WithdrawalIntent = #6.121([owner: Address, lpAmount: int])

// DepositIntent is the decoded inline state of a deposit or swap intent.
type DepositIntent struct {
	Owner string
	Value types.Value
}

// WithdrawalIntent is the decoded inline state of a withdrawal intent.
type WithdrawalIntent struct {
	Owner    string
	LPAmount sdkmath.Int
}

// DecodeDepositIntent decodes the inline state of a deposit intent UTxO.
// The owner address is re-serialized for the given network; it is the real
// payout destination for the minted LP tokens.
func DecodeDepositIntent(utxo types.UTxO, networkID uint8) (*DepositIntent, error) {
	if utxo.InlineDatum == nil {
		return nil, fmt.Errorf("%w: deposit intent %s", ErrMissingInlineState, utxo.Ref)
	}

	var constr cbor.Constructor
	if _, err := cbor.Decode(utxo.InlineDatum, &constr); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if constr.Constructor() != 0 {
		return nil, fmt.Errorf("%w: expected intent constructor 0, got %d", ErrMalformedPayload, constr.Constructor())
	}

	var wire struct {
		cbor.StructAsArray
		Owner  cbor.Constructor
		Assets cbor.RawMessage
	}
	if err := cbor.DecodeGeneric(constr.FieldsCbor(), &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	owner, err := decodeAddressDatum(wire.Owner, networkID)
	if err != nil {
		return nil, err
	}
	value, err := decodeValueMap(wire.Assets)
	if err != nil {
		return nil, err
	}

	return &DepositIntent{Owner: owner, Value: value}, nil
}

// DecodeSwapIntent decodes the inline state of a swap intent UTxO. Swap
// intents share the deposit wire shape.
func DecodeSwapIntent(utxo types.UTxO, networkID uint8) (*DepositIntent, error) {
	return DecodeDepositIntent(utxo, networkID)
}

// DecodeWithdrawalIntent decodes the inline state of a withdrawal intent UTxO.
func DecodeWithdrawalIntent(utxo types.UTxO, networkID uint8) (*WithdrawalIntent, error) {
	if utxo.InlineDatum == nil {
		return nil, fmt.Errorf("%w: withdrawal intent %s", ErrMissingInlineState, utxo.Ref)
	}

	var constr cbor.Constructor
	if _, err := cbor.Decode(utxo.InlineDatum, &constr); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if constr.Constructor() != 0 {
		return nil, fmt.Errorf("%w: expected intent constructor 0, got %d", ErrMalformedPayload, constr.Constructor())
	}

	var wire struct {
		cbor.StructAsArray
		Owner  cbor.Constructor
		Amount big.Int
	}
	if err := cbor.DecodeGeneric(constr.FieldsCbor(), &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	owner, err := decodeAddressDatum(wire.Owner, networkID)
	if err != nil {
		return nil, err
	}

	return &WithdrawalIntent{Owner: owner, LPAmount: intFromBig(wire.Amount)}, nil
}

// BuildDepositIntentDatum serializes the inline state for a new deposit or
// swap intent from the owner's bech32 address and the deposited Value.
func BuildDepositIntentDatum(ownerAddr string, value types.Value) ([]byte, error) {
	owner, err := encodeAddressDatum(ownerAddr)
	if err != nil {
		return nil, err
	}
	valueBytes, err := encodeValueMap(value)
	if err != nil {
		return nil, err
	}
	return cbor.Encode(cbor.NewConstructor(0, cbor.IndefLengthList{
		owner,
		cbor.RawMessage(valueBytes),
	}))
}

// BuildWithdrawalIntentDatum serializes the inline state for a new
// withdrawal intent.
func BuildWithdrawalIntentDatum(ownerAddr string, lpAmount sdkmath.Int) ([]byte, error) {
	owner, err := encodeAddressDatum(ownerAddr)
	if err != nil {
		return nil, err
	}
	return cbor.Encode(cbor.NewConstructor(0, cbor.IndefLengthList{
		owner,
		encInt(lpAmount),
	}))
}

// decodeValueMap walks the nested policy => (name => quantity) map of a
// deposited Value.
func decodeValueMap(data []byte) (types.Value, error) {
	count, offset, indef, err := readMapHeader(data)
	if err != nil {
		return nil, err
	}

	var value types.Value
	for i := 0; indef || i < count; i++ {
		if indef {
			if atBreak(data, offset) {
				break
			}
			if offset >= len(data) {
				return nil, fmt.Errorf("%w: unterminated value map", ErrMalformedPayload)
			}
		}

		var policy []byte
		consumed, err := cbor.Decode(data[offset:], &policy)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid policy id: %v", ErrMalformedPayload, err)
		}
		offset += consumed

		innerCount, innerOffset, innerIndef, err := readMapHeader(data[offset:])
		if err != nil {
			return nil, err
		}
		inner := data[offset:]
		pos := innerOffset
		for j := 0; innerIndef || j < innerCount; j++ {
			if innerIndef {
				if atBreak(inner, pos) {
					pos++
					break
				}
				if pos >= len(inner) {
					return nil, fmt.Errorf("%w: unterminated asset map", ErrMalformedPayload)
				}
			}

			var name []byte
			consumed, err := cbor.Decode(inner[pos:], &name)
			if err != nil {
				return nil, fmt.Errorf("%w: invalid asset name: %v", ErrMalformedPayload, err)
			}
			pos += consumed

			var quantity big.Int
			consumed, err = cbor.Decode(inner[pos:], &quantity)
			if err != nil {
				return nil, fmt.Errorf("%w: invalid asset quantity: %v", ErrMalformedPayload, err)
			}
			pos += consumed

			unit := assetUnit(hex.EncodeToString(policy), hex.EncodeToString(name))
			value = types.Combine(value, types.Value{{Unit: unit, Quantity: intFromBig(quantity)}})
		}
		offset += pos
	}
	return value, nil
}

// encodeValueMap emits the nested value map with policies and names in
// ascending order.
func encodeValueMap(value types.Value) ([]byte, error) {
	grouped := make(map[string]map[string]sdkmath.Int)
	for _, asset := range value {
		policy, name, err := splitUnit(asset.Unit)
		if err != nil {
			return nil, err
		}
		policyHex := hex.EncodeToString(policy)
		nameHex := hex.EncodeToString(name)
		if grouped[policyHex] == nil {
			grouped[policyHex] = make(map[string]sdkmath.Int)
		}
		grouped[policyHex][nameHex] = asset.Quantity
	}

	policies := make([]string, 0, len(grouped))
	for policyHex := range grouped {
		policies = append(policies, policyHex)
	}
	sort.Strings(policies)

	out, err := mapHeaderBytes(len(policies))
	if err != nil {
		return nil, err
	}
	for _, policyHex := range policies {
		policy, _ := hex.DecodeString(policyHex)
		if policy == nil {
			policy = []byte{}
		}
		keyBytes, err := cbor.Encode(policy)
		if err != nil {
			return nil, err
		}
		out = append(out, keyBytes...)

		names := make([]string, 0, len(grouped[policyHex]))
		for nameHex := range grouped[policyHex] {
			names = append(names, nameHex)
		}
		sort.Strings(names)

		innerHeader, err := mapHeaderBytes(len(names))
		if err != nil {
			return nil, err
		}
		out = append(out, innerHeader...)
		for _, nameHex := range names {
			name, _ := hex.DecodeString(nameHex)
			if name == nil {
				name = []byte{}
			}
			nameBytes, err := cbor.Encode(name)
			if err != nil {
				return nil, err
			}
			qtyBytes, err := cbor.Encode(encInt(grouped[policyHex][nameHex]))
			if err != nil {
				return nil, err
			}
			out = append(out, nameBytes...)
			out = append(out, qtyBytes...)
		}
	}
	return out, nil
}
