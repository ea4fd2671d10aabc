// ./internal/state/simulation_store.go
package state

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/loopscope/loopsim/internal/types"
)

// ErrNotFound is returned when no matching row exists (or it has expired).
var ErrNotFound = errors.New("simulation not found")

// SaveSimulation persists a completed simulation result. idempotencyKey may
// be empty; expiresAt bounds how long the row can be replayed for
// idempotent requests.
func SaveSimulation(result *types.SimulationResult, idempotencyKey, requestHash string, expiresAt time.Time) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal simulation result: %w", err)
	}

	var key sql.NullString
	if idempotencyKey != "" {
		key = sql.NullString{String: idempotencyKey, Valid: true}
	}

	query := `
		INSERT INTO simulations (run_id, idempotency_key, request_hash, engine_version, result, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7);
	`
	_, err = DB.Exec(query, result.RunID, key, requestHash, result.EngineVersion, resultJSON, result.Timestamp, expiresAt)
	if err != nil {
		return fmt.Errorf("failed to save simulation: %w", err)
	}

	// Best-effort cleanup of replay rows past their TTL.
	if _, err := DB.Exec(`DELETE FROM simulations WHERE expires_at IS NOT NULL AND expires_at < NOW()`); err != nil {
		log.Warn().Err(err).Msg("Failed to purge expired simulations")
	}

	return nil
}

// GetSimulationByID fetches a persisted result by run ID.
func GetSimulationByID(runID string) (*types.SimulationResult, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	var resultJSON []byte
	err := DB.QueryRow(`SELECT result FROM simulations WHERE run_id = $1`, runID).Scan(&resultJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query simulation: %w", err)
	}

	var result types.SimulationResult
	if err := json.Unmarshal(resultJSON, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal simulation result: %w", err)
	}
	return &result, nil
}

// GetByIdempotencyKey fetches an unexpired stored response for the key. The
// request hash must match: reusing a key with a different body is a caller
// error surfaced as ErrNotFound plus a warning.
func GetByIdempotencyKey(idempotencyKey, requestHash string) (*types.SimulationResult, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	var (
		resultJSON []byte
		storedHash string
	)
	query := `
		SELECT result, request_hash FROM simulations
		WHERE idempotency_key = $1 AND (expires_at IS NULL OR expires_at > NOW());
	`
	err := DB.QueryRow(query, idempotencyKey).Scan(&resultJSON, &storedHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query idempotent simulation: %w", err)
	}
	if storedHash != requestHash {
		log.Warn().Str("idempotencyKey", idempotencyKey).Msg("Idempotency key reused with a different request body")
		return nil, ErrNotFound
	}

	var result types.SimulationResult
	if err := json.Unmarshal(resultJSON, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal simulation result: %w", err)
	}
	return &result, nil
}
