// ./internal/state/db.go
package state

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"
)

// DB is a global database connection pool.
var DB *sql.DB

// DBConfig holds database connection parameters.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string // "disable", "require", "verify-full", etc.
}

// InitDB initializes the database connection pool.
func InitDB(cfg DBConfig) error {
	psqlInfo := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	var err error
	DB, err = sql.Open("postgres", psqlInfo)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	DB.SetMaxOpenConns(25)
	DB.SetMaxIdleConns(25)
	DB.SetConnMaxLifetime(5 * time.Minute)

	err = DB.Ping()
	if err != nil {
		DB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("Successfully connected to the PostgreSQL database!")
	return nil
}

// CloseDB closes the database connection pool.
func CloseDB() {
	if DB != nil {
		log.Info().Msg("Closing database connection...")
		if err := DB.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database connection")
		}
	}
}

// EnsureSchema applies the necessary DDL to create tables if they don't exist.
func EnsureSchema() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	schemaSQL := `
		CREATE TABLE IF NOT EXISTS settlement_records (
			record_id SERIAL PRIMARY KEY,
			batch_kind VARCHAR(16) NOT NULL,
			intent_count INTEGER NOT NULL,
			burn_indices BIGINT[] NOT NULL,
			operator_fee NUMERIC(39, 0) NOT NULL,
			usd_delta NUMERIC(39, 0) NOT NULL,
			lp_delta NUMERIC(39, 0) NOT NULL,
			total_lp_after NUMERIC(39, 0) NOT NULL,
			hwm_after NUMERIC(39, 0) NOT NULL,
			vault_cost_after NUMERIC(39, 0) NOT NULL,
			state_tx_hash VARCHAR(64) NOT NULL,
			state_output_index BIGINT NOT NULL,
			payouts JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE INDEX IF NOT EXISTS idx_settlement_records_created_at
			ON settlement_records (created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_settlement_records_state_ref
			ON settlement_records (state_tx_hash, state_output_index);
	`

	if _, err := DB.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}

	log.Info().Msg("Database schema ensured.")
	return nil
}
