package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aristath/lottoscan/internal/analysis"
	"github.com/rs/zerolog"
)

// FileStore writes each record twice under dir: a msgpack snapshot read back
// on load and an indented JSON copy for people. When the snapshot is missing
// or unreadable the JSON copy is used instead.
type FileStore struct {
	dir string
	log zerolog.Logger
}

// NewFileStore creates the directory when needed.
func NewFileStore(dir string, log zerolog.Logger) (*FileStore, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve record directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("failed to create record directory: %w", err)
	}
	return &FileStore{dir: abs, log: log.With().Str("store", "file").Logger()}, nil
}

func (s *FileStore) snapshotPath(key string) string {
	return filepath.Join(s.dir, key+".msgpack")
}

func (s *FileStore) jsonPath(key string) string {
	return filepath.Join(s.dir, key+".json")
}

// Load returns the record stored under key, or nil when there is none.
func (s *FileStore) Load(_ context.Context, key string) (*analysis.Record, error) {
	data, err := os.ReadFile(s.snapshotPath(key))
	if err == nil {
		record, decodeErr := analysis.DecodeMsgpack(data)
		if decodeErr == nil {
			return record, nil
		}
		s.log.Warn().Err(decodeErr).Str("key", key).Msg("Snapshot unreadable, trying JSON copy")
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read snapshot %s: %w", key, err)
	}

	data, err = os.ReadFile(s.jsonPath(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read record %s: %w", key, err)
	}
	return analysis.DecodeJSON(data)
}

// Save writes both representations, each through a temp file and rename.
func (s *FileStore) Save(_ context.Context, key string, record *analysis.Record) error {
	snapshot, err := analysis.EncodeMsgpack(record)
	if err != nil {
		return err
	}
	pretty, err := analysis.EncodeJSON(record)
	if err != nil {
		return err
	}

	if err := writeAtomic(s.snapshotPath(key), snapshot); err != nil {
		return fmt.Errorf("failed to write snapshot %s: %w", key, err)
	}
	if err := writeAtomic(s.jsonPath(key), pretty); err != nil {
		return fmt.Errorf("failed to write JSON copy %s: %w", key, err)
	}
	return nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

// Name implements Store.
func (s *FileStore) Name() string { return "file" }

// Close implements Store.
func (s *FileStore) Close() error { return nil }
