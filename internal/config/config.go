package config

import (
	"errors"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"
)

// Application configuration loaded from environment variables.
// These are populated at startup by LoadConfig and then threaded into the
// components that need them; no component reads the environment at call time.
var (
	// NetworkID is the Cardano network id (0 = testnet/preprod, 1 = mainnet).
	// It determines address serialization for payout destinations.
	NetworkID uint8

	// KupoURL is the base URL of the Kupo instance used as the UTxO source.
	KupoURL string

	// OracleNFT is the policy id of the vault oracle NFT identifying the
	// singleton vault state UTxO.
	OracleNFT string

	// LPDecimal is the bootstrap issuance ratio: LP units minted per USD cent
	// on the very first deposit into an empty vault.
	LPDecimal int64

	// StableRatioPercent is the percentage of a withdrawal payout settled in
	// the stable asset; the remainder is settled in the native currency.
	StableRatioPercent int64

	// StableUnit is the unit identifier of the stable asset used for the
	// stable leg of withdrawal payouts.
	StableUnit string
)

// StableUnitPreprod is the preprod USDM unit (policy id + asset name, hex).
const StableUnitPreprod = "c69b981db7a65e339a6d783755f85a2e03afa1cece9714c55fe4c9135553444d"

// LoadConfig loads configuration from environment variables and sets the
// global config vars. All listed variables are required unless noted.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	networkID, err := getEnvAsInt64("NETWORK_ID")
	if err != nil {
		return err
	}
	if networkID != 0 && networkID != 1 {
		return errors.New("NETWORK_ID must be 0 (testnet) or 1 (mainnet)")
	}
	NetworkID = uint8(networkID)

	KupoURL, err = getEnv("KUPO_URL")
	if err != nil {
		return err
	}

	OracleNFT, err = getEnv("ORACLE_NFT")
	if err != nil {
		return err
	}

	LPDecimal, err = getEnvAsInt64("LP_DECIMAL")
	if err != nil {
		return err
	}
	if LPDecimal <= 0 {
		return errors.New("LP_DECIMAL must be positive")
	}

	StableRatioPercent, err = getEnvAsInt64("STABLE_RATIO_PERCENT")
	if err != nil {
		return err
	}
	if StableRatioPercent < 0 || StableRatioPercent > 100 {
		return errors.New("STABLE_RATIO_PERCENT must be between 0 and 100")
	}

	StableUnit = os.Getenv("STABLE_UNIT")
	if StableUnit == "" {
		StableUnit = StableUnitPreprod
	}

	log.Debug().
		Uint8("NetworkID", NetworkID).
		Str("KupoURL", KupoURL).
		Str("OracleNFT", OracleNFT).
		Int64("StableRatioPercent", StableRatioPercent).
		Msg("Configuration loaded successfully.")

	return nil
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// getEnvAsInt64 retrieves an environment variable as an int64. Returns error if not set or invalid.
func getEnvAsInt64(key string) (int64, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid int64, got: " + valueStr)
	}
	return value, nil
}
