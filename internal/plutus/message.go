package plutus

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"sort"

	"github.com/blinklabs-io/gouroboros/cbor"

	"github.com/whalala-labs/vault-settlement/internal/types"
)

// The signed oracle message is a single-constructor structure:
//
//	Message = #6.121([balance: int,
//	                  prices: { [policy: bytes, name: bytes] => int },
//	                  stateRef: #6.121([txHash: bytes .size 32, index: int])])
//
// Signature verification over these bytes happens on-chain; this codec only
// parses the payload.

// messageConstrTag is the CBOR tag for PlutusData constructor 0.
const messageConstrTag = 121

// DecodeSignedMessage decodes a signed oracle message into a PriceSnapshot.
//
// The outer tag is peeled off with cbor.RawTag rather than cbor.Constructor:
// Constructor eagerly decodes every nested value, and the list-typed keys of
// the price map cannot be materialized into a Go map. The price bytes stay
// raw until decodePriceTable walks them.
func DecodeSignedMessage(data []byte) (*types.PriceSnapshot, error) {
	var tag cbor.RawTag
	if _, err := cbor.Decode(data, &tag); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if tag.Number != messageConstrTag {
		return nil, fmt.Errorf("%w: expected message constructor tag %d, got %d", ErrMalformedPayload, messageConstrTag, tag.Number)
	}

	var wire struct {
		cbor.StructAsArray
		Balance  big.Int
		Prices   cbor.RawMessage
		StateRef cbor.RawMessage
	}
	if err := cbor.DecodeGeneric(tag.Content, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	prices, err := decodePriceTable(wire.Prices)
	if err != nil {
		return nil, err
	}

	var refConstr cbor.Constructor
	if _, err := cbor.Decode(wire.StateRef, &refConstr); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	stateRef, err := decodeOutputReference(refConstr)
	if err != nil {
		return nil, err
	}

	return &types.PriceSnapshot{
		VaultBalance: intFromBig(wire.Balance),
		Prices:       prices,
		StateRef:     stateRef,
	}, nil
}

// DecodeSignedMessageHex decodes a hex-encoded signed oracle message, the
// form in which settlement requests carry it.
func DecodeSignedMessageHex(messageHex string) (*types.PriceSnapshot, error) {
	data, err := hex.DecodeString(messageHex)
	if err != nil {
		return nil, fmt.Errorf("%w: message is not valid hex: %v", ErrMalformedPayload, err)
	}
	return DecodeSignedMessage(data)
}

// EncodeSignedMessage serializes a PriceSnapshot back into the signed-message
// wire shape. Price entries are emitted in ascending unit order so the
// encoding is deterministic.
func EncodeSignedMessage(snapshot *types.PriceSnapshot) ([]byte, error) {
	priceBytes, err := encodePriceTable(snapshot.Prices)
	if err != nil {
		return nil, err
	}

	txHash, err := hex.DecodeString(snapshot.StateRef.TxHash)
	if err != nil {
		return nil, fmt.Errorf("invalid state ref tx hash: %w", err)
	}
	if len(txHash) != txHashLen {
		return nil, fmt.Errorf("invalid state ref tx hash length: %d", len(txHash))
	}

	stateRef := cbor.NewConstructor(0, cbor.IndefLengthList{
		txHash,
		uint64(snapshot.StateRef.OutputIndex),
	})

	return cbor.Encode(cbor.NewConstructor(0, cbor.IndefLengthList{
		encInt(snapshot.VaultBalance),
		cbor.RawMessage(priceBytes),
		stateRef,
	}))
}

// decodeOutputReference decodes #6.121([txHash, index]) into a UTxORef.
func decodeOutputReference(constr cbor.Constructor) (types.UTxORef, error) {
	if constr.Constructor() != 0 {
		return types.UTxORef{}, fmt.Errorf("%w: expected output reference constructor 0, got %d", ErrMalformedPayload, constr.Constructor())
	}
	var wire struct {
		cbor.StructAsArray
		TxHash []byte
		Index  uint32
	}
	if err := cbor.DecodeGeneric(constr.FieldsCbor(), &wire); err != nil {
		return types.UTxORef{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if len(wire.TxHash) != txHashLen {
		return types.UTxORef{}, fmt.Errorf("%w: output reference tx hash has %d bytes", ErrMalformedPayload, len(wire.TxHash))
	}
	return types.UTxORef{
		TxHash:      hex.EncodeToString(wire.TxHash),
		OutputIndex: wire.Index,
	}, nil
}

// decodePriceTable walks the price map pair by pair. Keys are two-element
// lists [policy, name]; an empty policy keys the native currency.
func decodePriceTable(data []byte) (types.PriceMap, error) {
	count, offset, indef, err := readMapHeader(data)
	if err != nil {
		return nil, err
	}

	prices := make(types.PriceMap)
	for i := 0; indef || i < count; i++ {
		if indef {
			if atBreak(data, offset) {
				break
			}
			if offset >= len(data) {
				return nil, fmt.Errorf("%w: unterminated price map", ErrMalformedPayload)
			}
		}

		var key struct {
			cbor.StructAsArray
			Policy []byte
			Name   []byte
		}
		consumed, err := cbor.Decode(data[offset:], &key)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid price key: %v", ErrMalformedPayload, err)
		}
		offset += consumed

		var price big.Int
		consumed, err = cbor.Decode(data[offset:], &price)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid price value: %v", ErrMalformedPayload, err)
		}
		offset += consumed

		unit := priceUnit(hex.EncodeToString(key.Policy), hex.EncodeToString(key.Name))
		prices[unit] = intFromBig(price)
	}
	return prices, nil
}

// encodePriceTable emits a definite-length map in ascending unit order.
func encodePriceTable(prices types.PriceMap) ([]byte, error) {
	units := make([]string, 0, len(prices))
	for unit := range prices {
		units = append(units, unit)
	}
	sort.Strings(units)

	out, err := mapHeaderBytes(len(units))
	if err != nil {
		return nil, err
	}
	for _, unit := range units {
		policy, name, err := splitUnit(unit)
		if err != nil {
			return nil, err
		}
		keyBytes, err := cbor.Encode(cbor.IndefLengthList{policy, name})
		if err != nil {
			return nil, err
		}
		valBytes, err := cbor.Encode(encInt(prices[unit]))
		if err != nil {
			return nil, err
		}
		out = append(out, keyBytes...)
		out = append(out, valBytes...)
	}
	return out, nil
}
