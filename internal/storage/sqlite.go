package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/lottoscan/internal/analysis"
	"github.com/aristath/lottoscan/internal/database"
	"github.com/rs/zerolog"
)

// SQLiteStore persists records in the analysis_records table.
type SQLiteStore struct {
	db  *database.DB
	log zerolog.Logger
}

// NewSQLiteStore wraps a migrated "records" database.
func NewSQLiteStore(db *database.DB, log zerolog.Logger) *SQLiteStore {
	return &SQLiteStore{
		db:  db,
		log: log.With().Str("store", "sqlite").Logger(),
	}
}

// Load returns the record stored under key, or nil when there is none.
func (s *SQLiteStore) Load(ctx context.Context, key string) (*analysis.Record, error) {
	var payload []byte
	err := s.db.Conn().QueryRowContext(ctx,
		"SELECT payload FROM analysis_records WHERE key = ?", key,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load record %s: %w", key, err)
	}

	record, err := analysis.DecodeMsgpack(payload)
	if err != nil {
		return nil, fmt.Errorf("record %s: %w", key, err)
	}
	return record, nil
}

// Save upserts the record under key.
func (s *SQLiteStore) Save(ctx context.Context, key string, record *analysis.Record) error {
	payload, err := analysis.EncodeMsgpack(record)
	if err != nil {
		return err
	}

	complete := 0
	if record.Complete() {
		complete = 1
	}

	return database.WithTransactionContext(ctx, s.db.Conn(), func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO analysis_records (key, payload, processed, complete, updated_by, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET
				payload = excluded.payload,
				processed = excluded.processed,
				complete = excluded.complete,
				updated_by = excluded.updated_by,
				updated_at = excluded.updated_at
		`, key, payload, record.Processed().String(), complete, record.UpdatedBy, time.Now().Unix())
		if err != nil {
			return fmt.Errorf("failed to save record %s: %w", key, err)
		}
		return nil
	})
}

// HealthCheck pings the database and runs its integrity check.
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	return s.db.HealthCheck(ctx)
}

// Name implements Store.
func (s *SQLiteStore) Name() string { return "sqlite(" + s.db.Driver() + ")" }

// Close checkpoints the WAL and closes the database.
func (s *SQLiteStore) Close() error {
	if err := s.db.WALCheckpoint("TRUNCATE"); err != nil {
		s.log.Warn().Err(err).Msg("WAL checkpoint on close failed")
	}
	return s.db.Close()
}
