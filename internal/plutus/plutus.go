/*

PlutusData wire codecs for the vault protocol. Every on-chain datum and the
signed oracle message are tagged-constructor CBOR structures; field order and
nesting depth are part of the contract shared with the on-chain validators,
so every decoder here is schema-exact: any structural deviation is a decode
failure, never a best-effort recovery.

*/

package plutus

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	sdkmath "cosmossdk.io/math"

	"github.com/whalala-labs/vault-settlement/internal/types"
)

var (
	// ErrMalformedPayload indicates bytes that do not parse as the expected
	// constructor structure, or a field of the wrong primitive kind.
	ErrMalformedPayload = errors.New("malformed plutus payload")

	// ErrMissingInlineState indicates an intent UTxO without an inline datum.
	ErrMissingInlineState = errors.New("utxo carries no inline state")
)

const (
	scriptHashLen = 28
	txHashLen     = 32
)

// assetUnit forms the unit identifier for a held asset from hex policy id
// and hex asset name. An empty pair is the native currency.
func assetUnit(policyHex, nameHex string) string {
	if nameHex == "" {
		if policyHex == "" {
			return types.LovelaceUnit
		}
		return policyHex
	}
	return policyHex + nameHex
}

// priceUnit forms the unit key for a price table entry. The oracle keys the
// native currency with an empty policy id.
func priceUnit(policyHex, nameHex string) string {
	if policyHex == "" {
		return types.LovelaceUnit + nameHex
	}
	return policyHex + nameHex
}

// splitUnit is the inverse of assetUnit/priceUnit: it recovers the raw
// (policy, name) byte pair from a unit identifier. Policy ids are blake2b-224
// hashes, so a non-native unit always starts with 56 hex characters.
func splitUnit(unit string) (policy []byte, name []byte, err error) {
	// Empty byte strings (never nil) so the encoder emits h'' rather than null.
	if unit == types.LovelaceUnit {
		return []byte{}, []byte{}, nil
	}
	if rest, ok := strings.CutPrefix(unit, types.LovelaceUnit); ok {
		name, err = hex.DecodeString(rest)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid unit %q: %w", unit, err)
		}
		if name == nil {
			name = []byte{}
		}
		return []byte{}, name, nil
	}
	if len(unit) < 2*scriptHashLen {
		return nil, nil, fmt.Errorf("invalid unit %q: shorter than a policy id", unit)
	}
	policy, err = hex.DecodeString(unit[:2*scriptHashLen])
	if err != nil {
		return nil, nil, fmt.Errorf("invalid unit %q: %w", unit, err)
	}
	name, err = hex.DecodeString(unit[2*scriptHashLen:])
	if err != nil {
		return nil, nil, fmt.Errorf("invalid unit %q: %w", unit, err)
	}
	return policy, name, nil
}

// readMapHeader parses a CBOR map header. It returns the number of pairs for
// a definite-length map, or indef=true for an indefinite one (terminated by
// a break byte), plus the offset of the first key.
func readMapHeader(data []byte) (count int, offset int, indef bool, err error) {
	if len(data) == 0 {
		return 0, 0, false, fmt.Errorf("%w: empty map field", ErrMalformedPayload)
	}
	b := data[0]
	if b == 0xbf {
		return 0, 1, true, nil
	}
	if b>>5 != 5 {
		return 0, 0, false, fmt.Errorf("%w: expected map, got major type %d", ErrMalformedPayload, b>>5)
	}
	ai := int(b & 0x1f)
	switch {
	case ai < 24:
		return ai, 1, false, nil
	case ai == 24:
		if len(data) < 2 {
			return 0, 0, false, fmt.Errorf("%w: truncated map header", ErrMalformedPayload)
		}
		return int(data[1]), 2, false, nil
	case ai == 25:
		if len(data) < 3 {
			return 0, 0, false, fmt.Errorf("%w: truncated map header", ErrMalformedPayload)
		}
		return int(binary.BigEndian.Uint16(data[1:3])), 3, false, nil
	default:
		return 0, 0, false, fmt.Errorf("%w: unsupported map length encoding", ErrMalformedPayload)
	}
}

// atBreak reports whether data[offset] is the indefinite-length break byte.
func atBreak(data []byte, offset int) bool {
	return offset < len(data) && data[offset] == 0xff
}

// mapHeaderBytes encodes a definite-length CBOR map header for n pairs.
func mapHeaderBytes(n int) ([]byte, error) {
	switch {
	case n < 24:
		return []byte{0xa0 | byte(n)}, nil
	case n < 256:
		return []byte{0xb8, byte(n)}, nil
	case n < 65536:
		return []byte{0xb9, byte(n >> 8), byte(n)}, nil
	default:
		return nil, fmt.Errorf("map too large: %d pairs", n)
	}
}

// encInt picks the narrowest Go representation for an integer field so small
// values serialize as plain CBOR ints, matching the on-chain encoding.
func encInt(v sdkmath.Int) any {
	if v.IsInt64() {
		return v.Int64()
	}
	return v.BigInt()
}

// intFromBig converts a decoded big.Int into the arithmetic type used by the
// accounting core.
func intFromBig(v big.Int) sdkmath.Int {
	return sdkmath.NewIntFromBigInt(&v)
}
