// ./internal/state/settlement_store.go
package state

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq" // PostgreSQL driver for array support
	"github.com/rs/zerolog/log"

	"github.com/whalala-labs/vault-settlement/internal/settlement"
	"github.com/whalala-labs/vault-settlement/internal/types"
)

// SettlementRecord is the audit row written after each planned settlement.
type SettlementRecord struct {
	RecordID         int64
	BatchKind        string
	IntentCount      int
	BurnIndices      []int64
	OperatorFee      string
	USDDelta         string
	LPDelta          string
	TotalLPAfter     string
	HWMAfter         string
	VaultCostAfter   string
	StateTxHash      string
	StateOutputIndex uint32
	CreatedAt        time.Time
}

// SaveSettlementPlan records a planned settlement batch for auditing.
func SaveSettlementPlan(kind types.IntentKind, plan *settlement.Plan) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	payoutsJSON, err := json.Marshal(plan.Payouts)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal payouts: %w", err)
	}

	lpDelta := plan.NextState.TotalLP.Sub(plan.State.TotalLP).Abs()
	usdDelta := plan.NextState.VaultCost.Sub(plan.State.VaultCost).Abs()

	query := `
		INSERT INTO settlement_records (
			batch_kind, intent_count, burn_indices,
			operator_fee, usd_delta, lp_delta,
			total_lp_after, hwm_after, vault_cost_after,
			state_tx_hash, state_output_index, payouts
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING record_id;
	`

	var recordID int64
	err = DB.QueryRow(
		query,
		kind.String(), len(plan.Payouts), pq.Array(plan.BurnIndices),
		plan.OperatorFee.String(), usdDelta.String(), lpDelta.String(),
		plan.NextState.TotalLP.String(), plan.NextState.HWMLpValue.String(), plan.NextState.VaultCost.String(),
		plan.Snapshot.StateRef.TxHash, plan.Snapshot.StateRef.OutputIndex, payoutsJSON,
	).Scan(&recordID)

	if err != nil {
		return 0, fmt.Errorf("failed to save settlement record: %w", err)
	}

	log.Info().
		Int64("record_id", recordID).
		Str("batch_kind", kind.String()).
		Int("intent_count", len(plan.Payouts)).
		Msg("Settlement record saved to database")

	return recordID, nil
}

// LoadRecentSettlements returns the most recent settlement records, newest
// first.
func LoadRecentSettlements(limit int) ([]SettlementRecord, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
		SELECT record_id, batch_kind, intent_count, burn_indices,
		       operator_fee, usd_delta, lp_delta,
		       total_lp_after, hwm_after, vault_cost_after,
		       state_tx_hash, state_output_index, created_at
		FROM settlement_records
		ORDER BY created_at DESC
		LIMIT $1;
	`

	rows, err := DB.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query settlement records: %w", err)
	}
	defer rows.Close()

	var records []SettlementRecord
	for rows.Next() {
		var rec SettlementRecord
		err := rows.Scan(
			&rec.RecordID, &rec.BatchKind, &rec.IntentCount, pq.Array(&rec.BurnIndices),
			&rec.OperatorFee, &rec.USDDelta, &rec.LPDelta,
			&rec.TotalLPAfter, &rec.HWMAfter, &rec.VaultCostAfter,
			&rec.StateTxHash, &rec.StateOutputIndex, &rec.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan settlement record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating settlement records: %w", err)
	}

	return records, nil
}
