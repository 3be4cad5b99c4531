package plutus

import (
	"encoding/hex"
	"fmt"

	serAddress "github.com/Salvionied/apollo/serialization/Address"
	"github.com/blinklabs-io/gouroboros/cbor"
)

// On-chain addresses are a credential pair:
//
//	Address    = #6.121([payment: Credential, stake: StakeOption])
//	Credential = #6.121([keyHash: bytes]) / #6.122([scriptHash: bytes])
//	StakeOption= #6.121([#6.121([Credential])]) / #6.122([])   ; Some(Inline)/None
//
// The reconstruction below determines the real payout destination, so the
// variant selection must match the validators exactly.

// CIP-19 header type nibbles.
const (
	addrTypePaymentScript = 0x1
	addrTypeStakeScript   = 0x2
	addrTypeEnterprise    = 0x6
)

// decodeAddressDatum reconstructs the bech32 address for the given network
// from an address datum constructor.
func decodeAddressDatum(constr cbor.Constructor, networkID uint8) (string, error) {
	if constr.Constructor() != 0 {
		return "", fmt.Errorf("%w: expected address constructor 0, got %d", ErrMalformedPayload, constr.Constructor())
	}
	var wire struct {
		cbor.StructAsArray
		Payment cbor.Constructor
		Stake   cbor.Constructor
	}
	if err := cbor.DecodeGeneric(constr.FieldsCbor(), &wire); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	payHash, payIsScript, err := decodeCredential(wire.Payment)
	if err != nil {
		return "", err
	}

	var addrType byte
	stakeHash := []byte{}

	switch wire.Stake.Constructor() {
	case 0:
		// Some(Inline(credential)): unwrap the option and inline wrappers.
		var some struct {
			cbor.StructAsArray
			Inline cbor.Constructor
		}
		if err := cbor.DecodeGeneric(wire.Stake.FieldsCbor(), &some); err != nil {
			return "", fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		if some.Inline.Constructor() != 0 {
			return "", fmt.Errorf("%w: pointer stake references are not supported", ErrMalformedPayload)
		}
		var inline struct {
			cbor.StructAsArray
			Cred cbor.Constructor
		}
		if err := cbor.DecodeGeneric(some.Inline.FieldsCbor(), &inline); err != nil {
			return "", fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		var stakeIsScript bool
		stakeHash, stakeIsScript, err = decodeCredential(inline.Cred)
		if err != nil {
			return "", err
		}
		if payIsScript {
			addrType |= addrTypePaymentScript
		}
		if stakeIsScript {
			addrType |= addrTypeStakeScript
		}
	case 1:
		addrType = addrTypeEnterprise
		if payIsScript {
			addrType |= addrTypePaymentScript
		}
	default:
		return "", fmt.Errorf("%w: unknown stake option constructor %d", ErrMalformedPayload, wire.Stake.Constructor())
	}

	return bech32Address(payHash, stakeHash, addrType, networkID), nil
}

// bech32Address assembles an apollo Address from its parts and renders the
// bech32 form. DecodeAddress cannot be used here: it accepts bech32 text
// only, not raw header+hash bytes.
func bech32Address(paymentPart, stakingPart []byte, addrType byte, networkID uint8) string {
	addr := serAddress.Address{
		PaymentPart: paymentPart,
		StakingPart: stakingPart,
		Network:     networkID,
		AddressType: addrType,
		HeaderByte:  (addrType << 4) | (networkID & 0x0f),
		Hrp:         serAddress.ComputeHrp(addrType, networkID),
	}
	return addr.String()
}

// decodeCredential decodes a key (constructor 0) or script (constructor 1)
// credential and its 28-byte hash.
func decodeCredential(constr cbor.Constructor) ([]byte, bool, error) {
	idx := constr.Constructor()
	if idx != 0 && idx != 1 {
		return nil, false, fmt.Errorf("%w: unknown credential constructor %d", ErrMalformedPayload, idx)
	}
	var wire struct {
		cbor.StructAsArray
		Hash []byte
	}
	if err := cbor.DecodeGeneric(constr.FieldsCbor(), &wire); err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if len(wire.Hash) != scriptHashLen {
		return nil, false, fmt.Errorf("%w: credential hash has %d bytes", ErrMalformedPayload, len(wire.Hash))
	}
	return wire.Hash, idx == 1, nil
}

// encodeAddressDatum decomposes a bech32 address back into the datum shape.
// The payment part is the script hash when the key hash variant is absent,
// and likewise for the stake part.
func encodeAddressDatum(bech32Addr string) (cbor.Constructor, error) {
	addr, err := serAddress.DecodeAddress(bech32Addr)
	if err != nil {
		return cbor.Constructor{}, fmt.Errorf("invalid address %q: %w", bech32Addr, err)
	}

	headerType := addr.HeaderByte >> 4
	payIdx := uint(0)
	if headerType&addrTypePaymentScript != 0 {
		payIdx = 1
	}
	payment := cbor.NewConstructor(payIdx, cbor.IndefLengthList{addr.PaymentPart})

	var stake cbor.Constructor
	if headerType < 4 && len(addr.StakingPart) == scriptHashLen {
		credIdx := uint(0)
		if headerType&addrTypeStakeScript != 0 {
			credIdx = 1
		}
		cred := cbor.NewConstructor(credIdx, cbor.IndefLengthList{addr.StakingPart})
		inline := cbor.NewConstructor(0, cbor.IndefLengthList{cred})
		stake = cbor.NewConstructor(0, cbor.IndefLengthList{inline})
	} else {
		stake = cbor.NewConstructor(1, cbor.IndefLengthList{})
	}

	return cbor.NewConstructor(0, cbor.IndefLengthList{payment, stake}), nil
}

// ScriptAddress derives the bech32 enterprise address of a script from its
// hex hash, for the given network. The vault address is derived this way
// from the vault script hash in the oracle datum.
func ScriptAddress(scriptHashHex string, networkID uint8) (string, error) {
	hash, err := hex.DecodeString(scriptHashHex)
	if err != nil {
		return "", fmt.Errorf("invalid script hash %q: %w", scriptHashHex, err)
	}
	if len(hash) != scriptHashLen {
		return "", fmt.Errorf("invalid script hash length: %d", len(hash))
	}
	return bech32Address(hash, []byte{}, addrTypeEnterprise|addrTypePaymentScript, networkID), nil
}
