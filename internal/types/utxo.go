package types

import "fmt"

// UTxORef is the opaque identity of a ledger output: the producing
// transaction hash (hex) and the output index within it. Immutable once
// created; a referenced output is consumed exactly once.
type UTxORef struct {
	TxHash      string
	OutputIndex uint32
}

// String renders the reference in the conventional txhash#index form.
func (r UTxORef) String() string {
	return fmt.Sprintf("%s#%d", r.TxHash, r.OutputIndex)
}

// UTxO is an unspent transaction output. InlineDatum carries the raw
// PlutusData bytes when the output has an inline datum, nil otherwise.
type UTxO struct {
	Ref         UTxORef
	Address     string
	Value       Value
	InlineDatum []byte
}
