package plutus

import (
	"encoding/hex"
	"fmt"

	"github.com/blinklabs-io/gouroboros/cbor"
)

// The intent minting policy redeemer:
//
//	IntentRedeemer = MintIntent #6.121([])
//	               / BurnIntent #6.122([indices: [int], message: bytes, signatures: [bytes]])
//
// BurnIntent proves to the policy exactly which settlement inputs consumed
// intents: the burn indices must match the batch accountant's output.

// EncodeMintIntentRedeemer serializes the redeemer used when a new intent is
// minted.
func EncodeMintIntentRedeemer() ([]byte, error) {
	return cbor.Encode(cbor.NewConstructor(0, cbor.IndefLengthList{}))
}

// EncodeBurnIntentRedeemer serializes the redeemer burning a settled batch:
// the burn index list, the signed oracle message, and the node signatures,
// all hex encoded as supplied by the settlement request.
func EncodeBurnIntentRedeemer(indices []int64, messageHex string, signaturesHex []string) ([]byte, error) {
	message, err := hex.DecodeString(messageHex)
	if err != nil {
		return nil, fmt.Errorf("invalid message hex: %w", err)
	}

	idxList := cbor.IndefLengthList{}
	for _, idx := range indices {
		idxList = append(idxList, idx)
	}

	sigList := cbor.IndefLengthList{}
	for _, sigHex := range signaturesHex {
		sig, err := hex.DecodeString(sigHex)
		if err != nil {
			return nil, fmt.Errorf("invalid signature hex: %w", err)
		}
		sigList = append(sigList, sig)
	}

	return cbor.Encode(cbor.NewConstructor(1, cbor.IndefLengthList{
		idxList,
		message,
		sigList,
	}))
}
