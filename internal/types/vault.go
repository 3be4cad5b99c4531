package types

import (
	sdkmath "cosmossdk.io/math"
)

// PriceSnapshot is the decoded oracle message: the externally attested vault
// balance (USD cents), the asset price table, and the reference of the vault
// state UTxO the snapshot was produced against. Single use; a snapshot is
// valid only for a settlement that consumes exactly that state UTxO.
type PriceSnapshot struct {
	VaultBalance sdkmath.Int
	Prices       PriceMap
	StateRef     UTxORef
}

// VaultState is the vault oracle datum: the singleton ledger snapshot of the
// vault's protocol configuration and accounting totals. Exactly one live
// instance exists at a time; every settlement consumes it and produces one
// successor with updated TotalLP, HWMLpValue and VaultCost.
//
// Hash-valued fields are hex encoded. Field order mirrors the on-chain datum
// and must not change: it is the wire format.
type VaultState struct {
	AppOracle                  string
	PluggableLogic             string
	NodePubKeys                []string
	TotalLP                    sdkmath.Int
	HWMLpValue                 sdkmath.Int
	OperatorCharge             sdkmath.Int
	OperatorKey                string
	VaultCost                  sdkmath.Int
	VaultScriptHash            string
	DepositIntentScriptHash    string
	WithdrawalIntentScriptHash string
	LPTokenScriptHash          string
}

// IntentKind discriminates the settlement batch kinds.
type IntentKind int

const (
	IntentDeposit IntentKind = iota
	IntentWithdrawal
	IntentSwap
)

// String returns the lowercase kind name used in logs and records.
func (k IntentKind) String() string {
	switch k {
	case IntentDeposit:
		return "deposit"
	case IntentWithdrawal:
		return "withdrawal"
	case IntentSwap:
		return "swap"
	default:
		return "unknown"
	}
}
