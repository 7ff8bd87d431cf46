// Package storage holds the record store backends: SQLite, local files,
// Badger, S3-compatible object storage and memory.
package storage

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/aristath/lottoscan/internal/analysis"
	"github.com/aristath/lottoscan/internal/config"
	"github.com/aristath/lottoscan/internal/database"
	"github.com/rs/zerolog"
)

// Store is a record repository owning its resources.
type Store interface {
	analysis.Repository
	// Name identifies the backend in logs.
	Name() string
	Close() error
}

// Open builds the store selected by cfg. Local stores live under dataDir.
// The S3 backend falls back to the local file store when no bucket is set.
func Open(ctx context.Context, cfg config.StorageConfig, dataDir string, log zerolog.Logger) (Store, error) {
	log = log.With().Str("component", "storage").Logger()

	switch cfg.Backend {
	case config.BackendMemory:
		return NewMemoryStore(), nil

	case config.BackendFile:
		return NewFileStore(filepath.Join(dataDir, "records"), log)

	case config.BackendBadger:
		return OpenBadgerStore(BadgerConfig{Path: filepath.Join(dataDir, "badger"), SyncWrites: true}, log)

	case config.BackendS3:
		if !cfg.S3.Configured() {
			log.Info().Msg("S3 bucket not set, using local file store")
			return NewFileStore(filepath.Join(dataDir, "records"), log)
		}
		client, err := NewS3Client(ctx, cfg.S3)
		if err != nil {
			return nil, err
		}
		return NewS3Store(client, cfg.S3.Bucket, cfg.S3.Prefix, log), nil

	case config.BackendSQLite, "":
		db, err := database.New(database.Config{
			Path:    filepath.Join(dataDir, "records.db"),
			Driver:  cfg.SQLiteDriver,
			Profile: database.ProfileDurable,
			Name:    "records",
		})
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(); err != nil {
			_ = db.Close()
			return nil, err
		}
		return NewSQLiteStore(db, log), nil
	}

	return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
}
