package storage

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/aristath/lottoscan/internal/analysis"
	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
)

const badgerKeyPrefix = "record/"

// BadgerConfig configures the embedded key-value store.
type BadgerConfig struct {
	Path       string
	InMemory   bool
	SyncWrites bool
}

// badgerLogger routes Badger's internal logging through zerolog.
type badgerLogger struct {
	log zerolog.Logger
}

func (l badgerLogger) Errorf(format string, args ...interface{}) {
	l.log.Error().Msgf(format, args...)
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.log.Warn().Msgf(format, args...)
}

func (l badgerLogger) Infof(format string, args ...interface{}) {
	l.log.Debug().Msgf(format, args...)
}

func (l badgerLogger) Debugf(format string, args ...interface{}) {
	l.log.Trace().Msgf(format, args...)
}

// BadgerStore keeps msgpack records in a Badger database.
type BadgerStore struct {
	db  *badger.DB
	log zerolog.Logger
}

// OpenBadgerStore opens (or creates) the database described by cfg.
func OpenBadgerStore(cfg BadgerConfig, log zerolog.Logger) (*BadgerStore, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent badger store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create badger directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	log = log.With().Str("store", "badger").Logger()
	opts = opts.
		WithSyncWrites(cfg.SyncWrites).
		WithNumVersionsToKeep(1).
		WithLogger(badgerLogger{log: log})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return &BadgerStore{db: db, log: log}, nil
}

// Load returns the record stored under key, or nil when there is none.
func (s *BadgerStore) Load(_ context.Context, key string) (*analysis.Record, error) {
	var payload []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(badgerKeyPrefix + key))
		if err != nil {
			return err
		}
		payload, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load record %s: %w", key, err)
	}
	return analysis.DecodeMsgpack(payload)
}

// Save stores the record under key.
func (s *BadgerStore) Save(_ context.Context, key string, record *analysis.Record) error {
	payload, err := analysis.EncodeMsgpack(record)
	if err != nil {
		return err
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(badgerKeyPrefix+key), payload)
	})
	if err != nil {
		return fmt.Errorf("failed to save record %s: %w", key, err)
	}
	return nil
}

// Name implements Store.
func (s *BadgerStore) Name() string { return "badger" }

// Close implements Store.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
