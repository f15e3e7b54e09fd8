// Package store journals delivery outcomes to PostgreSQL.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/IRandonation/AutoTikTokSendComment/internal/delivery"
)

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// DeliveryRecord is one row of the deliveries table.
type DeliveryRecord struct {
	ID           uuid.UUID
	RunID        string
	Message      string
	Succeeded    bool
	UsedFallback bool
	Reason       string
	AttemptedAt  time.Time
}

// NewRecord converts an attempt outcome into a record.
func NewRecord(runID string, o delivery.Outcome) DeliveryRecord {
	at := o.Started
	if at.IsZero() {
		at = time.Now()
	}
	return DeliveryRecord{
		ID:           uuid.New(),
		RunID:        runID,
		Message:      o.Message,
		Succeeded:    o.Succeeded,
		UsedFallback: o.UsedFallback,
		Reason:       o.Reason,
		AttemptedAt:  at,
	}
}

const schemaSQL = `
        CREATE TABLE IF NOT EXISTS deliveries (
            id UUID PRIMARY KEY,
            run_id TEXT NOT NULL,
            message TEXT NOT NULL,
            succeeded BOOLEAN NOT NULL,
            used_fallback BOOLEAN NOT NULL,
            reason TEXT NOT NULL DEFAULT '',
            attempted_at TIMESTAMPTZ NOT NULL
        );
        CREATE INDEX IF NOT EXISTS deliveries_attempted_at_idx ON deliveries (attempted_at DESC);
    `

const insertSQL = `
        INSERT INTO deliveries (id, run_id, message, succeeded, used_fallback, reason, attempted_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7);
    `

const recentSQL = `
        SELECT id, run_id, message, succeeded, used_fallback, reason, attempted_at
        FROM deliveries
        ORDER BY attempted_at DESC
        LIMIT $1;
    `

var deliveryColumns = []string{"id", "run_id", "message", "succeeded", "used_fallback", "reason", "attempted_at"}

// Store is the PostgreSQL delivery journal.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

// New creates a new store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

// EnsureSchema creates the deliveries table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create deliveries table: %w", err)
	}
	return nil
}

// Record inserts one delivery record.
func (s *Store) Record(ctx context.Context, r DeliveryRecord) error {
	_, err := s.pool.Exec(ctx, insertSQL, r.ID, r.RunID, r.Message, r.Succeeded, r.UsedFallback, r.Reason, r.AttemptedAt)
	if err != nil {
		return fmt.Errorf("failed to insert delivery %s: %w", r.ID, err)
	}
	return nil
}

// RecordBatch writes records in one transaction using COPY.
func (s *Store) RecordBatch(ctx context.Context, records []DeliveryRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && rollbackErr != pgx.ErrTxClosed {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	rows := make([][]interface{}, len(records))
	for i, r := range records {
		rows[i] = []interface{}{r.ID, r.RunID, r.Message, r.Succeeded, r.UsedFallback, r.Reason, r.AttemptedAt}
	}
	copyCount, err := tx.CopyFrom(ctx, pgx.Identifier{"deliveries"}, deliveryColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("failed to copy deliveries: %w", err)
	}
	if int(copyCount) != len(records) {
		return fmt.Errorf("mismatch in copied deliveries count: expected %d, got %d", len(records), copyCount)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Recent returns the newest limit records.
func (s *Store) Recent(ctx context.Context, limit int) ([]DeliveryRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, recentSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query deliveries: %w", err)
	}
	defer rows.Close()

	var records []DeliveryRecord
	for rows.Next() {
		var r DeliveryRecord
		if err := rows.Scan(&r.ID, &r.RunID, &r.Message, &r.Succeeded, &r.UsedFallback, &r.Reason, &r.AttemptedAt); err != nil {
			return nil, fmt.Errorf("failed to scan delivery row: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return records, nil
}
