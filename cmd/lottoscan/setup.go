package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aristath/lottoscan/internal/config"
	"github.com/aristath/lottoscan/internal/storage"
	"github.com/aristath/lottoscan/pkg/logger"
	"github.com/rs/zerolog"
)

// environment is what every command needs: configuration, a logger, the
// record store and the enabled analyses.
type environment struct {
	cfg      *config.Config
	log      zerolog.Logger
	store    storage.Store
	analyses []*config.AnalysisConfig
}

func setup(ctx context.Context) (*environment, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
		Output: os.Stderr,
	})
	logger.SetGlobalLogger(log)

	all, err := config.LoadAnalyses(cfg.AnalysisDir)
	if err != nil {
		return nil, err
	}
	var enabled []*config.AnalysisConfig
	for _, a := range all {
		if !a.Enabled {
			log.Debug().Str("analysis", a.Name).Msg("Analysis disabled, skipping")
			continue
		}
		enabled = append(enabled, a)
	}
	if len(enabled) == 0 {
		return nil, fmt.Errorf("no enabled analysis in %s", cfg.AnalysisDir)
	}

	store, err := storage.Open(ctx, cfg.Storage, cfg.DataDir, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open record store: %w", err)
	}
	log.Info().Str("backend", store.Name()).Str("worker", cfg.WorkerID).Msg("Record store ready")

	return &environment{cfg: cfg, log: log, store: store, analyses: enabled}, nil
}

func (e *environment) close() {
	if err := e.store.Close(); err != nil {
		e.log.Error().Err(err).Msg("Failed to close record store")
	}
}
