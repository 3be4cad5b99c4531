/*

Multiset arithmetic over (unit, quantity) pairs. A Value is a collection of
Assets with unique units; quantities are big integers so LP amounts and USD
cent totals never overflow. Normalized Values never contain a zero-quantity
entry.

*/

package types

import (
	"sort"

	sdkmath "cosmossdk.io/math"
)

// LovelaceUnit is the sentinel unit for the ledger's native currency.
// Every other unit is the hex policy id concatenated with the hex asset name.
const LovelaceUnit = "lovelace"

// MinUTxOLovelace is the minimum lovelace any ledger output must carry.
const MinUTxOLovelace = 2_000_000

// Asset is a quantity of a single unit. Quantity may be negative only when
// expressing a mint/burn delta, never in a held balance.
type Asset struct {
	Unit     string
	Quantity sdkmath.Int
}

// NewAsset builds an Asset from an int64 quantity.
func NewAsset(unit string, quantity int64) Asset {
	return Asset{Unit: unit, Quantity: sdkmath.NewInt(quantity)}
}

// Value is an unordered collection of Assets with unique units. The slice
// order is the first-seen insertion order, which keeps batch processing
// deterministic without imposing a sort on the wire.
type Value []Asset

// QuantityOf returns the quantity held for a unit, or zero if absent.
func (v Value) QuantityOf(unit string) sdkmath.Int {
	for _, asset := range v {
		if asset.Unit == unit {
			return asset.Quantity
		}
	}
	return sdkmath.ZeroInt()
}

// Combine unions two Values by unit, summing quantities. Commutative up to
// ordering, associative, and Combine(v, nil) preserves v. Entries that sum
// to zero are dropped so the result stays normalized.
func Combine(a, b Value) Value {
	combined := make(Value, 0, len(a)+len(b))
	for _, asset := range a {
		combined = append(combined, asset)
	}

	for _, asset := range b {
		pos := -1
		for i := range combined {
			if combined[i].Unit == asset.Unit {
				pos = i
				break
			}
		}
		if pos >= 0 {
			combined[pos].Quantity = combined[pos].Quantity.Add(asset.Quantity)
		} else {
			combined = append(combined, asset)
		}
	}

	// Drop zero entries introduced by cancelling deltas.
	normalized := make(Value, 0, len(combined))
	for _, asset := range combined {
		if !asset.Quantity.IsZero() {
			normalized = append(normalized, asset)
		}
	}
	return normalized
}

// Subtract removes b's quantities from a, unit by unit. Units absent from a
// are ignored; units whose result is zero or negative are dropped. This is a
// floor-at-zero operation, not a group inverse of Combine: callers rely on
// the flooring to compute the vault change after a payout.
func Subtract(a, b Value) Value {
	result := make(Value, 0, len(a))
	for _, asset := range a {
		remaining := asset.Quantity.Sub(b.QuantityOf(asset.Unit))
		if remaining.IsPositive() {
			result = append(result, Asset{Unit: asset.Unit, Quantity: remaining})
		}
	}
	return result
}

// Units returns the units present in the Value in ascending order.
func (v Value) Units() []string {
	units := make([]string, 0, len(v))
	for _, asset := range v {
		units = append(units, asset.Unit)
	}
	sort.Strings(units)
	return units
}

// PriceMap maps a unit identifier to its price in USD cents per unit.
type PriceMap map[string]sdkmath.Int

// PriceValueUSD sums quantity x price over all units of the Value. Units
// without a price contribute nothing; callers must ensure all relevant units
// are priced or accept the truncation.
func PriceValueUSD(v Value, prices PriceMap) sdkmath.Int {
	total := sdkmath.ZeroInt()
	for _, asset := range v {
		if price, ok := prices[asset.Unit]; ok {
			total = total.Add(price.Mul(asset.Quantity))
		}
	}
	return total
}
