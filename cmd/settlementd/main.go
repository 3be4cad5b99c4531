package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/whalala-labs/vault-settlement/internal/config"
	"github.com/whalala-labs/vault-settlement/internal/datafetcher"
	"github.com/whalala-labs/vault-settlement/internal/logger"
	"github.com/whalala-labs/vault-settlement/internal/settlement"
	"github.com/whalala-labs/vault-settlement/internal/state"
	"github.com/whalala-labs/vault-settlement/internal/types"
)

const POLL_INTERVAL = 1 * time.Minute

// main is the entry point for the settlement daemon.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Initialize(os.Getenv("LOG_LEVEL"))
	log.Info().Msg("Vault settlement daemon starting...")

	// Initialize Database Connection (settlement audit records)
	dbCfg := state.DBConfig{
		Host: os.Getenv("DB_HOST"), Port: mustAtoi(os.Getenv("DB_PORT"), 5432),
		User: os.Getenv("DB_USER"), Password: os.Getenv("DB_PASSWORD"),
		DBName: os.Getenv("DB_NAME"), SSLMode: os.Getenv("DB_SSLMODE"),
	}
	if err := state.InitDB(dbCfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer state.CloseDB()
	if err := state.EnsureSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure database schema")
	}

	// --- 2. Engine Initialization ---
	kupoClient := datafetcher.NewKupoClient(config.KupoURL)

	engine, err := settlement.NewEngine(settlement.Config{
		Source:             kupoClient,
		NetworkID:          config.NetworkID,
		StableUnit:         config.StableUnit,
		StableRatioPercent: config.StableRatioPercent,
		LPDecimal:          config.LPDecimal,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create settlement engine")
	}

	ctx := context.Background()

	// --- 3. One-shot settlement mode ---
	// When SETTLEMENT_KIND is set, plan a single batch over all pending
	// intents of that kind, record it, and exit.
	if kindName := os.Getenv("SETTLEMENT_KIND"); kindName != "" {
		if err := runSettlement(ctx, engine, kupoClient, kindName); err != nil {
			log.Fatal().Err(err).Msg("Settlement failed")
		}
		return
	}

	// --- 4. Polling mode: watch the intent queues ---
	log.Info().Str("interval", POLL_INTERVAL.String()).Msg("Starting intent poll loop")
	ticker := time.NewTicker(POLL_INTERVAL)
	defer ticker.Stop()

	pollIntents(ctx, engine, kupoClient)
	for range ticker.C {
		pollIntents(ctx, engine, kupoClient)
	}
}

// runSettlement plans one settlement batch over the pending intents of the
// given kind and records the plan to the database.
func runSettlement(ctx context.Context, engine *settlement.Engine, kupoClient *datafetcher.KupoClient, kindName string) error {
	kind, err := parseKind(kindName)
	if err != nil {
		return err
	}

	vaultState, err := resolveState(ctx, kupoClient)
	if err != nil {
		return err
	}

	intents, err := engine.PendingIntents(ctx, vaultState, kind)
	if err != nil {
		return fmt.Errorf("listing pending intents: %w", err)
	}
	if len(intents) == 0 {
		log.Info().Str("kind", kind.String()).Msg("No pending intents to settle")
		return nil
	}

	req := settlement.Request{
		Kind:       kind,
		Intents:    intents,
		MessageHex: os.Getenv("SETTLEMENT_MESSAGE"),
	}
	if sigs := os.Getenv("SETTLEMENT_SIGNATURES"); sigs != "" {
		req.SignaturesHex = strings.Split(sigs, ",")
	}

	plan, err := engine.PlanSettlement(ctx, req)
	if err != nil {
		return err
	}

	recordID, err := state.SaveSettlementPlan(kind, plan)
	if err != nil {
		return err
	}

	log.Info().
		Int64("record_id", recordID).
		Str("kind", kind.String()).
		Int("payouts", len(plan.Payouts)).
		Str("total_lp_after", plan.NextState.TotalLP.String()).
		Msg("Settlement planned and recorded")
	return nil
}

// pollIntents logs the current depth of both intent queues.
func pollIntents(ctx context.Context, engine *settlement.Engine, kupoClient *datafetcher.KupoClient) {
	vaultState, err := resolveState(ctx, kupoClient)
	if err != nil {
		log.Error().Err(err).Msg("Failed to resolve vault state")
		return
	}

	for _, kind := range []types.IntentKind{types.IntentDeposit, types.IntentWithdrawal} {
		intents, err := engine.PendingIntents(ctx, vaultState, kind)
		if err != nil {
			log.Error().Err(err).Str("kind", kind.String()).Msg("Failed to list pending intents")
			continue
		}
		log.Info().Str("kind", kind.String()).Int("pending", len(intents)).Msg("Intent queue depth")
	}
}

// resolveState locates the live vault state UTxO: by VAULT_STATE_REF
// ("txhash#index") when set, otherwise by the oracle NFT policy id.
func resolveState(ctx context.Context, kupoClient *datafetcher.KupoClient) (*types.VaultState, error) {
	if refStr := os.Getenv("VAULT_STATE_REF"); refStr != "" {
		ref, err := parseStateRef(refStr)
		if err != nil {
			return nil, err
		}
		utxo, err := kupoClient.FetchUTxO(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("fetching vault state %s: %w", ref, err)
		}
		return settlement.DecodeStateUTxO(utxo)
	}

	utxos, err := kupoClient.FetchAssetUTxOs(ctx, config.OracleNFT)
	if err != nil {
		return nil, fmt.Errorf("locating vault state by oracle NFT: %w", err)
	}
	if len(utxos) == 0 {
		return nil, fmt.Errorf("no UTxO holds oracle NFT %s", config.OracleNFT)
	}
	if len(utxos) > 1 {
		return nil, fmt.Errorf("oracle NFT %s is not a singleton: %d UTxOs", config.OracleNFT, len(utxos))
	}
	return settlement.DecodeStateUTxO(&utxos[0])
}

// parseStateRef parses "txhash#index".
func parseStateRef(s string) (types.UTxORef, error) {
	txHash, indexStr, found := strings.Cut(s, "#")
	if !found || len(txHash) != 64 {
		return types.UTxORef{}, fmt.Errorf("expected txhash#index, got %q", s)
	}
	index, err := strconv.ParseUint(indexStr, 10, 32)
	if err != nil {
		return types.UTxORef{}, fmt.Errorf("invalid output index %q: %w", indexStr, err)
	}
	return types.UTxORef{TxHash: txHash, OutputIndex: uint32(index)}, nil
}

func parseKind(name string) (types.IntentKind, error) {
	switch name {
	case "deposit":
		return types.IntentDeposit, nil
	case "withdrawal":
		return types.IntentWithdrawal, nil
	case "swap":
		return types.IntentSwap, nil
	default:
		return 0, fmt.Errorf("unknown settlement kind %q", name)
	}
}

// Helper to convert string to int with a default value
func mustAtoi(s string, defaultValue int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return i
}
