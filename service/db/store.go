package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tracesanford134/aksol-dapp/service/metrics"
)

// Store provides database operations for the panel's persistent transfer
// history. The in-session activity log only keeps the last few outcomes;
// this table keeps everything.
type Store struct {
	pool    *pgxpool.Pool
	metrics *metrics.Metrics
}

// NewStore creates a new Store with the given database connection pool.
// If m is nil, no metrics are recorded.
func NewStore(pool *pgxpool.Pool, m *metrics.Metrics) *Store {
	return &Store{pool: pool, metrics: m}
}

// TransferRecord is one persisted pipeline outcome.
type TransferRecord struct {
	ID          int64
	Wallet      string
	Destination *string // nil for swaps
	Kind        string  // "transfer" or "swap"
	AmountUI    float64
	Cluster     string
	Outcome     string  // "success" or "failure"
	ErrorKind   *string // nil on success
	Signature   *string // nil when no signature was obtained
	CreatedAt   time.Time
}

// CreateTransferParams contains the parameters for recording an outcome.
type CreateTransferParams struct {
	Wallet      string
	Destination *string
	Kind        string
	AmountUI    float64
	Cluster     string
	Outcome     string
	ErrorKind   *string
	Signature   *string
}

// EnsureSchema creates the history table if it does not exist. The panel is
// a demo; a real deployment would run migrations instead.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS transfer_history (
			id          BIGSERIAL PRIMARY KEY,
			wallet      TEXT NOT NULL,
			destination TEXT,
			kind        TEXT NOT NULL,
			amount_ui   DOUBLE PRECISION NOT NULL,
			cluster     TEXT NOT NULL,
			outcome     TEXT NOT NULL,
			error_kind  TEXT,
			signature   TEXT,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS transfer_history_wallet_idx
			ON transfer_history (wallet, created_at DESC);
	`)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// RecordTransfer persists one pipeline outcome.
func (s *Store) RecordTransfer(ctx context.Context, params CreateTransferParams) (*TransferRecord, error) {
	start := time.Now()
	row := s.pool.QueryRow(ctx, `
		INSERT INTO transfer_history
			(wallet, destination, kind, amount_ui, cluster, outcome, error_kind, signature)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`, params.Wallet, params.Destination, params.Kind, params.AmountUI,
		params.Cluster, params.Outcome, params.ErrorKind, params.Signature)

	rec := &TransferRecord{
		Wallet:      params.Wallet,
		Destination: params.Destination,
		Kind:        params.Kind,
		AmountUI:    params.AmountUI,
		Cluster:     params.Cluster,
		Outcome:     params.Outcome,
		ErrorKind:   params.ErrorKind,
		Signature:   params.Signature,
	}
	err := row.Scan(&rec.ID, &rec.CreatedAt)
	if s.metrics != nil {
		s.metrics.RecordDBQuery("record_transfer", time.Since(start).Seconds(), err)
	}
	if err != nil {
		return nil, fmt.Errorf("record transfer: %w", err)
	}
	return rec, nil
}

// ListTransfers returns the most recent outcomes for a wallet, newest first.
// An empty wallet returns outcomes across all wallets.
func (s *Store) ListTransfers(ctx context.Context, wallet string, limit int) ([]*TransferRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	start := time.Now()
	rows, err := s.pool.Query(ctx, `
		SELECT id, wallet, destination, kind, amount_ui, cluster, outcome, error_kind, signature, created_at
		FROM transfer_history
		WHERE ($1 = '' OR wallet = $1)
		ORDER BY created_at DESC
		LIMIT $2
	`, wallet, limit)
	if s.metrics != nil {
		s.metrics.RecordDBQuery("list_transfers", time.Since(start).Seconds(), err)
	}
	if err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	defer rows.Close()

	var records []*TransferRecord
	for rows.Next() {
		rec := &TransferRecord{}
		if err := rows.Scan(
			&rec.ID, &rec.Wallet, &rec.Destination, &rec.Kind, &rec.AmountUI,
			&rec.Cluster, &rec.Outcome, &rec.ErrorKind, &rec.Signature, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan transfer: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transfers: %w", err)
	}
	return records, nil
}
