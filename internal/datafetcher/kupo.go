/*
This file is the Kupo chain-index client: the UTxO source for the settlement
core. Kupo serves unspent outputs by address pattern or by output reference
(the pattern "{output_index}@{transaction_id}"), with inline datums resolved
through a separate /datums lookup.
*/

package datafetcher

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/whalala-labs/vault-settlement/internal/logger"
	"github.com/whalala-labs/vault-settlement/internal/types"
)

var kupoLogger = logger.GetForComponent("kupo_client")

var (
	// ErrFetchFailed indicates an I/O or protocol failure against the Kupo
	// endpoint. Distinguished from ErrNotFound; retry policy belongs to the
	// caller, never to this client.
	ErrFetchFailed = errors.New("utxo source fetch failed")

	// ErrNotFound indicates a reference that resolves to no unspent output.
	ErrNotFound = errors.New("utxo not found")
)

const requestTimeout = 30 * time.Second

// kupoMatch is one entry of Kupo's /matches response.
type kupoMatch struct {
	TransactionID string `json:"transaction_id"`
	OutputIndex   uint32 `json:"output_index"`
	Address       string `json:"address"`
	Value         struct {
		Coins  int64            `json:"coins"`
		Assets map[string]int64 `json:"assets"`
	} `json:"value"`
	DatumHash string `json:"datum_hash"`
	DatumType string `json:"datum_type"`
}

type kupoDatum struct {
	Datum string `json:"datum"`
}

// KupoClient fetches UTxOs from a Kupo chain index.
type KupoClient struct {
	baseURL string
	client  *http.Client
}

// NewKupoClient returns a client for the Kupo instance at baseURL.
func NewKupoClient(baseURL string) *KupoClient {
	return &KupoClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: requestTimeout},
	}
}

// FetchAddressUTxOs lists the unspent outputs held at an address, with
// inline datums resolved.
func (k *KupoClient) FetchAddressUTxOs(ctx context.Context, address string) ([]types.UTxO, error) {
	matches, err := k.fetchMatches(ctx, address)
	if err != nil {
		return nil, err
	}

	utxos := make([]types.UTxO, 0, len(matches))
	for _, match := range matches {
		utxo, err := k.toUTxO(ctx, match)
		if err != nil {
			return nil, err
		}
		utxos = append(utxos, utxo)
	}

	kupoLogger.Debug().
		Str("address", address).
		Int("count", len(utxos)).
		Msg("Fetched address UTxOs")
	return utxos, nil
}

// FetchUTxO resolves a single output reference. Returns ErrNotFound when the
// output does not exist or has been spent.
func (k *KupoClient) FetchUTxO(ctx context.Context, ref types.UTxORef) (*types.UTxO, error) {
	pattern := fmt.Sprintf("%d@%s", ref.OutputIndex, ref.TxHash)
	matches, err := k.fetchMatches(ctx, pattern)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}

	utxo, err := k.toUTxO(ctx, matches[0])
	if err != nil {
		return nil, err
	}
	return &utxo, nil
}

// FetchAssetUTxOs lists the unspent outputs holding any asset of the given
// policy id, via Kupo's "{policy_id}.*" pattern. Used to locate the singleton
// vault state UTxO by its oracle NFT.
func (k *KupoClient) FetchAssetUTxOs(ctx context.Context, policyID string) ([]types.UTxO, error) {
	matches, err := k.fetchMatches(ctx, policyID+".*")
	if err != nil {
		return nil, err
	}

	utxos := make([]types.UTxO, 0, len(matches))
	for _, match := range matches {
		utxo, err := k.toUTxO(ctx, match)
		if err != nil {
			return nil, err
		}
		utxos = append(utxos, utxo)
	}
	return utxos, nil
}

func (k *KupoClient) fetchMatches(ctx context.Context, pattern string) ([]kupoMatch, error) {
	url := fmt.Sprintf("%s/matches/%s?unspent", k.baseURL, pattern)
	body, err := k.get(ctx, url)
	if err != nil {
		return nil, err
	}

	var matches []kupoMatch
	if err := json.Unmarshal(body, &matches); err != nil {
		return nil, fmt.Errorf("%w: decoding matches: %v", ErrFetchFailed, err)
	}
	return matches, nil
}

func (k *KupoClient) toUTxO(ctx context.Context, match kupoMatch) (types.UTxO, error) {
	value := types.Value{{
		Unit:     types.LovelaceUnit,
		Quantity: sdkmath.NewInt(match.Value.Coins),
	}}
	for key, quantity := range match.Value.Assets {
		// Kupo keys assets as "policy.name" in hex.
		unit := strings.Replace(key, ".", "", 1)
		value = types.Combine(value, types.Value{{
			Unit:     unit,
			Quantity: sdkmath.NewInt(quantity),
		}})
	}

	utxo := types.UTxO{
		Ref: types.UTxORef{
			TxHash:      match.TransactionID,
			OutputIndex: match.OutputIndex,
		},
		Address: match.Address,
		Value:   value,
	}

	if match.DatumType == "inline" && match.DatumHash != "" {
		datum, err := k.fetchDatum(ctx, match.DatumHash)
		if err != nil {
			return types.UTxO{}, err
		}
		utxo.InlineDatum = datum
	}

	return utxo, nil
}

func (k *KupoClient) fetchDatum(ctx context.Context, datumHash string) ([]byte, error) {
	url := fmt.Sprintf("%s/datums/%s", k.baseURL, datumHash)
	body, err := k.get(ctx, url)
	if err != nil {
		return nil, err
	}

	var datum kupoDatum
	if err := json.Unmarshal(body, &datum); err != nil {
		return nil, fmt.Errorf("%w: decoding datum: %v", ErrFetchFailed, err)
	}
	if datum.Datum == "" {
		return nil, fmt.Errorf("%w: datum %s", ErrNotFound, datumHash)
	}

	raw, err := hex.DecodeString(datum.Datum)
	if err != nil {
		return nil, fmt.Errorf("%w: datum %s is not hex: %v", ErrFetchFailed, datumHash, err)
	}
	return raw, nil
}

func (k *KupoClient) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	resp, err := k.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, url)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d from %s", ErrFetchFailed, resp.StatusCode, url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrFetchFailed, err)
	}
	return body, nil
}
