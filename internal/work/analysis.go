package work

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/aristath/lottoscan/internal/analysis"
	"github.com/aristath/lottoscan/internal/assignment"
	"github.com/aristath/lottoscan/internal/combinatorics"
	"github.com/aristath/lottoscan/internal/config"
	"github.com/aristath/lottoscan/internal/ranking"
	"github.com/aristath/lottoscan/internal/scan"
	"github.com/aristath/lottoscan/internal/scoring"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AnalysisDeps contains the collaborators shared by all analysis jobs
type AnalysisDeps struct {
	Repository analysis.Repository
	WorkerID   string
	Emitter    EventEmitter
	Now        func() time.Time
	Log        zerolog.Logger
}

// Target is the resolved identity of an analysis: its space and record key.
type Target struct {
	Space    *combinatorics.Space
	Tiers    []ranking.Tier
	Baseline ranking.Tier
	From     time.Time
	To       time.Time
	Key      string
}

// ResolveTarget builds the combination space of cfg and derives its record
// key for the archive window ending at now.
func ResolveTarget(cfg *config.AnalysisConfig, now time.Time) (*Target, error) {
	space, err := combinatorics.NewSpace(cfg.Universe(), cfg.CombinationSize)
	if err != nil {
		return nil, fmt.Errorf("analysis %s: %w", cfg.Name, err)
	}
	tiers, err := cfg.ParsedTiers()
	if err != nil {
		return nil, fmt.Errorf("analysis %s: %w", cfg.Name, err)
	}
	baseline, err := cfg.ParsedBaseline()
	if err != nil {
		return nil, fmt.Errorf("analysis %s: %w", cfg.Name, err)
	}
	from, to, err := cfg.DateRange(now)
	if err != nil {
		return nil, fmt.Errorf("analysis %s: %w", cfg.Name, err)
	}

	return &Target{
		Space:    space,
		Tiers:    tiers,
		Baseline: baseline,
		From:     from,
		To:       to,
		Key: analysis.CacheKey(analysis.KeyParams{
			Size:     space.Size(),
			K:        cfg.CombinationSize,
			Tiers:    tiers,
			RankSize: cfg.RankSize,
			From:     from,
			To:       to,
			Universe: cfg.Universe(),
			Baseline: baseline,
			Archive:  archiveIdentity(cfg.Archive.File),
		}),
	}, nil
}

// archiveIdentity is the absolute path of the draws archive, so the same
// file named from different working directories maps to one record.
func archiveIdentity(file string) string {
	abs, err := filepath.Abs(file)
	if err != nil {
		return filepath.Clean(file)
	}
	return abs
}

// BuildJob wires an analysis configuration into a runnable job: space,
// scorer over the archived draws, rank store, assignment rule and scan.
func BuildJob(cfg *config.AnalysisConfig, deps AnalysisDeps) (*Job, error) {
	if deps.Now == nil {
		deps.Now = time.Now
	}

	target, err := ResolveTarget(cfg, deps.Now())
	if err != nil {
		return nil, err
	}
	rule, err := assignment.ParseRule(cfg.BlocksAssignee)
	if err != nil {
		return nil, fmt.Errorf("analysis %s: %w", cfg.Name, err)
	}

	draws, err := scoring.LoadDraws(cfg.Archive.File, target.From, target.To)
	if err != nil {
		return nil, fmt.Errorf("analysis %s: %w", cfg.Name, err)
	}
	scorer, err := scoring.NewIntegralScorer(draws, target.Tiers, cfg.CombinationSize)
	if err != nil {
		return nil, fmt.Errorf("analysis %s: %w", cfg.Name, err)
	}

	log := deps.Log.With().Str("analysis", cfg.Name).Logger()
	log.Info().
		Int("draws", scorer.Draws()).
		Str("from", target.From.Format(config.DateLayout)).
		Str("to", target.To.Format(config.DateLayout)).
		Str("key", target.Key).
		Msg("Analysis prepared")

	id := uuid.NewString()
	reporter := NewProgressReporter(deps.Emitter, id, cfg.Name)

	orchestrator, err := scan.New(scan.Config{
		Name:          cfg.Name,
		Key:           target.Key,
		Space:         target.Space,
		Rank:          ranking.NewStore(cfg.RankSize, target.Tiers, target.Baseline, log),
		Scorer:        scorer,
		Repository:    deps.Repository,
		Rule:          rule,
		WorkerID:      deps.WorkerID,
		BlockCount:    cfg.BlockCount,
		BlockDivisor:  cfg.BlockDivisor,
		AutosaveEvery: cfg.AutosaveEvery,
		Progress:      reporter.Callback(),
		Now:           deps.Now,
	}, deps.Log)
	if err != nil {
		return nil, fmt.Errorf("analysis %s: %w", cfg.Name, err)
	}

	return &Job{
		ID:       id,
		Name:     cfg.Name,
		Key:      target.Key,
		Async:    cfg.Async,
		Scan:     orchestrator,
		progress: reporter,
	}, nil
}
