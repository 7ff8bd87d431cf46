package scan

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aristath/lottoscan/internal/analysis"
	"github.com/aristath/lottoscan/internal/assignment"
	"github.com/aristath/lottoscan/internal/blocks"
	"github.com/aristath/lottoscan/internal/combinatorics"
	"github.com/aristath/lottoscan/internal/progress"
	"github.com/aristath/lottoscan/internal/ranking"
	"github.com/rs/zerolog"
)

const (
	// DefaultAutosaveEvery is the number of visited indexes between checkpoints
	DefaultAutosaveEvery int64 = 1_000_000
	// DefaultCheckpointTimeout bounds one read-merge-write round trip
	DefaultCheckpointTimeout = 30 * time.Second

	cancelCheckEvery = 4096
)

// ErrFinalCheckpoint marks a run whose last checkpoint could not be
// persisted.
var ErrFinalCheckpoint = errors.New("final checkpoint failed")

// Config wires an orchestrator to its collaborators.
type Config struct {
	Name       string
	Key        string
	Space      *combinatorics.Space
	Rank       *ranking.Store
	Scorer     Scorer
	Repository analysis.Repository

	Rule     assignment.Rule
	WorkerID string
	Shuffler assignment.Shuffler

	// BlockCount fixes the partition size of a new record; zero derives it
	// from the space with BlockDivisor.
	BlockCount   int
	BlockDivisor int64

	AutosaveEvery     int64
	CheckpointTimeout time.Duration

	Progress progress.DetailedCallback
	Now      func() time.Time
}

func (c *Config) validate() error {
	switch {
	case c.Key == "":
		return errors.New("scan key is required")
	case c.Space == nil:
		return errors.New("combination space is required")
	case c.Rank == nil:
		return errors.New("rank store is required")
	case c.Scorer == nil:
		return errors.New("scorer is required")
	case c.Repository == nil:
		return errors.New("repository is required")
	}
	if c.Name == "" {
		c.Name = c.Key
	}
	if c.AutosaveEvery <= 0 {
		c.AutosaveEvery = DefaultAutosaveEvery
	}
	if c.BlockDivisor <= 0 {
		c.BlockDivisor = blocks.DefaultDivisor
	}
	if c.CheckpointTimeout <= 0 {
		c.CheckpointTimeout = DefaultCheckpointTimeout
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return nil
}

// Orchestrator scans the blocks assigned to one worker, scoring every
// combination into the rank and checkpointing progress into the shared
// record.
type Orchestrator struct {
	cfg     Config
	log     zerolog.Logger
	metrics *metrics
	state   atomic.Int32

	mu               sync.RWMutex
	blocks           []*blocks.Block
	visited          *big.Int
	unreported       int64
	dirty            bool
	savedVersion     uint64
	loggedVersion    uint64
	degraded         bool
	failures         int
	lastErr          error
	lastCheckpointAt time.Time
}

// New validates cfg and returns an orchestrator in the Loading state.
func New(cfg Config, log zerolog.Logger) (*Orchestrator, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid scan config: %w", err)
	}
	return &Orchestrator{
		cfg:     cfg,
		log:     log.With().Str("component", "scan").Str("analysis", cfg.Name).Logger(),
		metrics: newMetrics(cfg.Name),
		visited: new(big.Int),
	}, nil
}

// State returns the current phase.
func (o *Orchestrator) State() State {
	return State(o.state.Load())
}

func (o *Orchestrator) setState(s State) {
	o.state.Store(int32(s))
}

// Name returns the analysis name.
func (o *Orchestrator) Name() string { return o.cfg.Name }

// Rank returns the rank store the scan feeds.
func (o *Orchestrator) Rank() *ranking.Store { return o.cfg.Rank }

// Blocks returns a copy of the local partition state.
func (o *Orchestrator) Blocks() []*blocks.Block {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return blocks.CloneAll(o.blocks)
}

// Summary returns a snapshot of the scan progress.
func (o *Orchestrator) Summary() Summary {
	o.mu.RLock()
	defer o.mu.RUnlock()

	s := Summary{
		Name:               o.cfg.Name,
		Key:                o.cfg.Key,
		State:              o.State(),
		Total:              o.cfg.Space.Size(),
		Processed:          blocks.ProcessedTotal(o.blocks),
		Remaining:          blocks.RemainingTotal(o.blocks),
		VisitedThisRun:     new(big.Int).Set(o.visited),
		Blocks:             len(o.blocks),
		BlocksComplete:     blocks.CompleteCount(o.blocks),
		RankSize:           o.cfg.Rank.Len(),
		Degraded:           o.degraded,
		CheckpointFailures: o.failures,
		LastCheckpointAt:   o.lastCheckpointAt,
	}
	if len(o.blocks) == 0 {
		s.Remaining = o.cfg.Space.Size()
	}
	if o.lastErr != nil {
		s.LastCheckpointErr = o.lastErr.Error()
	}
	s.Completed = len(o.blocks) > 0 && s.BlocksComplete == len(o.blocks)
	return s
}

// Run loads the record, scans every block planned for this worker until the
// plan is empty, and persists progress along the way. Checkpoint failures
// mark the run degraded without stopping it; only a failed final checkpoint
// is returned. A cancelled context stops the scan after a best-effort final
// checkpoint and returns the context error.
func (o *Orchestrator) Run(ctx context.Context) (Summary, error) {
	o.setState(StateLoading)
	if err := o.load(ctx); err != nil {
		o.setState(StateDone)
		return o.Summary(), err
	}

	scanErr := o.scan(ctx)
	finalErr := o.finish(ctx)
	o.setState(StateDone)

	summary := o.Summary()
	event := o.log.Info().
		Str("processed", summary.Processed.String()).
		Str("remaining", summary.Remaining.String()).
		Str("visited", summary.VisitedThisRun.String()).
		Int("blocks_complete", summary.BlocksComplete).
		Int("blocks", summary.Blocks).
		Bool("completed", summary.Completed).
		Bool("degraded", summary.Degraded)
	if scanErr != nil {
		event.Err(scanErr).Msg("Scan stopped")
	} else {
		event.Msg("Scan finished")
	}

	if finalErr != nil {
		finalErr = fmt.Errorf("%w of %s: %w", ErrFinalCheckpoint, o.cfg.Name, finalErr)
	}
	return summary, errors.Join(scanErr, finalErr)
}

// load restores the persisted record or creates a fresh partition.
func (o *Orchestrator) load(ctx context.Context) error {
	record, err := o.cfg.Repository.Load(ctx, o.cfg.Key)
	if err != nil {
		return fmt.Errorf("failed to load record %s: %w", o.cfg.Key, err)
	}

	if record == nil {
		count := o.cfg.BlockCount
		if count <= 0 {
			count, err = blocks.DefaultCount(o.cfg.Space.Size(), o.cfg.Space.K(), o.cfg.BlockDivisor)
			if err != nil {
				return err
			}
		}
		list, err := blocks.Partition(o.cfg.Space.Size(), count)
		if err != nil {
			return err
		}
		o.mu.Lock()
		o.blocks = list
		o.dirty = true
		o.mu.Unlock()

		o.log.Info().
			Str("total", o.cfg.Space.Size().String()).
			Int("blocks", len(list)).
			Msg("New analysis, partition created")
		return nil
	}

	covered := new(big.Int)
	if len(record.Blocks) > 0 {
		covered.Add(record.Blocks[len(record.Blocks)-1].End, big.NewInt(1))
	}
	if covered.Cmp(o.cfg.Space.Size()) != 0 {
		return fmt.Errorf("record %s covers %s indexes, space has %s: %w",
			o.cfg.Key, covered.String(), o.cfg.Space.Size().String(), blocks.ErrShapeMismatch)
	}

	seeded := o.cfg.Rank.Seed(record.Ranked)
	o.mu.Lock()
	o.blocks = blocks.CloneAll(record.Blocks)
	o.savedVersion = o.cfg.Rank.Version()
	o.loggedVersion = o.savedVersion
	o.mu.Unlock()

	processed, remaining := record.Processed(), record.Remaining()
	o.log.Info().
		Str("processed", processed.String()).
		Str("remaining", remaining.String()).
		Int("blocks_complete", blocks.CompleteCount(record.Blocks)).
		Int("blocks", len(record.Blocks)).
		Int("ranked", seeded).
		Str("updated_by", record.UpdatedBy).
		Msg("Cache restored")

	progress.CallDetailed(o.cfg.Progress, progress.Update{
		Phase:   "loading",
		Current: processed,
		Total:   o.cfg.Space.Size(),
		Message: fmt.Sprintf("cache restored, %s processed, %s remaining", processed, remaining),
		Details: map[string]any{"rank_size": o.cfg.Rank.Len()},
	})
	return nil
}

// scan re-plans until no assigned block is left.
func (o *Orchestrator) scan(ctx context.Context) error {
	for {
		o.mu.RLock()
		plan, err := assignment.Plan(o.blocks, o.cfg.Rule, o.cfg.WorkerID, o.cfg.Shuffler)
		o.mu.RUnlock()
		if err != nil {
			return fmt.Errorf("failed to plan blocks: %w", err)
		}
		if len(plan) == 0 {
			return nil
		}

		o.log.Debug().Int("blocks", len(plan)).Msg("Blocks planned")
		for _, b := range plan {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := o.scanBlock(ctx, b); err != nil {
				return err
			}
		}
	}
}

// scanBlock enumerates b from its resume index to its end. When a checkpoint
// merges remote progress into b, enumeration restarts at the new resume
// index.
func (o *Orchestrator) scanBlock(ctx context.Context, b *blocks.Block) error {
	o.setState(StateScanning)
	o.log.Debug().Str("block", b.String()).Msg("Scanning block")

	for !o.complete(b) {
		start := o.resumeIndex(b)
		last := new(big.Int)
		var sinceSave, visits int64
		var stopErr error
		restart := false

		err := o.cfg.Space.IterateFrom(start, func(c *combinatorics.Combination) bool {
			score := o.cfg.Scorer.Score(c.Numbers())
			if o.cfg.Rank.Eligible(score) {
				o.cfg.Rank.Offer(ranking.Entry{Subset: c.Numbers(), Score: score})
			}
			last.Set(c.Index())
			sinceSave++
			visits++

			if c.Index().Cmp(b.End) >= 0 {
				return false
			}
			if visits%cancelCheckEvery == 0 {
				if err := ctx.Err(); err != nil {
					stopErr = err
					return false
				}
			}
			if sinceSave >= o.cfg.AutosaveEvery {
				o.advance(b, last, sinceSave)
				sinceSave = 0
				o.checkpoint(ctx, b)
				o.setState(StateScanning)
				// another worker got further into this block
				if o.resumeIndex(b).Cmp(new(big.Int).Add(last, big.NewInt(1))) != 0 {
					restart = true
					return false
				}
			}
			return true
		})
		if err != nil {
			return fmt.Errorf("failed to iterate block %s: %w", b, err)
		}
		if sinceSave > 0 {
			o.advance(b, last, sinceSave)
		}
		if stopErr != nil {
			return stopErr
		}
		if restart {
			continue
		}
		o.checkpoint(ctx, b)
		o.setState(StateScanning)
	}
	return nil
}

func (o *Orchestrator) complete(b *blocks.Block) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return b.IsComplete()
}

func (o *Orchestrator) resumeIndex(b *blocks.Block) *big.Int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return b.ResumeIndex()
}

// advance records visited indexes up to idx on b.
func (o *Orchestrator) advance(b *blocks.Block, idx *big.Int, visited int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := b.Advance(idx); err != nil {
		o.log.Error().Err(err).Msg("Cursor update rejected")
		return
	}
	o.visited.Add(o.visited, big.NewInt(visited))
	o.unreported += visited
	o.dirty = true
}

// finish writes the last checkpoint when something is not yet persisted.
func (o *Orchestrator) finish(ctx context.Context) error {
	o.mu.RLock()
	pending := o.dirty || o.degraded || o.savedVersion != o.cfg.Rank.Version()
	o.mu.RUnlock()
	if !pending {
		return nil
	}
	return o.checkpoint(ctx, nil)
}

// checkpoint performs a read-merge-write of the record. Failures are logged
// and counted; the scan goes on.
func (o *Orchestrator) checkpoint(ctx context.Context, current *blocks.Block) error {
	o.setState(StateCheckpointing)
	started := o.cfg.Now()

	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.CheckpointTimeout)
	defer cancel()

	err := o.persist(cctx)
	o.metrics.duration.Observe(o.cfg.Now().Sub(started).Seconds())

	o.mu.Lock()
	if o.unreported > 0 {
		o.metrics.processed.Add(float64(o.unreported))
		o.unreported = 0
	}
	if err != nil {
		o.degraded = true
		o.failures++
		o.lastErr = err
	} else {
		o.degraded = false
		o.lastErr = nil
		o.lastCheckpointAt = o.cfg.Now()
	}
	processed := blocks.ProcessedTotal(o.blocks)
	incomplete := len(o.blocks) - blocks.CompleteCount(o.blocks)
	failures := o.failures
	o.mu.Unlock()

	o.metrics.rank.Set(float64(o.cfg.Rank.Len()))
	o.metrics.remaining.Set(float64(incomplete))

	update := progress.Update{
		Phase:   "checkpoint",
		Current: processed,
		Total:   o.cfg.Space.Size(),
		Details: map[string]any{
			"blocks_remaining": incomplete,
			"rank_size":        o.cfg.Rank.Len(),
			"worker":           o.cfg.WorkerID,
		},
	}
	if current != nil {
		update.SubPhase = current.String()
	}

	if err != nil {
		o.metrics.checkpointsFail.Inc()
		o.metrics.degraded.Set(1)
		o.log.Warn().
			Err(err).
			Int("failures", failures).
			Msg("Checkpoint failed, scan continues degraded")
		update.Phase = "checkpoint_failed"
		update.Message = err.Error()
		update.Details["degraded"] = true
		progress.CallDetailed(o.cfg.Progress, update)
		return err
	}

	o.metrics.checkpointsOK.Inc()
	o.metrics.degraded.Set(0)
	o.log.Debug().
		Str("processed", processed.String()).
		Int("blocks_remaining", incomplete).
		Msg("Checkpoint saved")
	o.logRank()

	update.Message = fmt.Sprintf("%s of %s processed", processed, o.cfg.Space.Size())
	progress.CallDetailed(o.cfg.Progress, update)
	return nil
}

// persist loads the shared record, folds it into the local state and saves
// the result.
func (o *Orchestrator) persist(ctx context.Context) error {
	loaded, err := o.cfg.Repository.Load(ctx, o.cfg.Key)
	if err != nil {
		return fmt.Errorf("failed to reload record: %w", err)
	}

	o.mu.Lock()
	if loaded != nil {
		if err := blocks.Merge(o.blocks, loaded.Blocks); err != nil {
			o.mu.Unlock()
			return fmt.Errorf("failed to merge record: %w", err)
		}
	}
	snapshot := blocks.CloneAll(o.blocks)
	o.mu.Unlock()

	if loaded != nil {
		o.cfg.Rank.Seed(loaded.Ranked)
	}

	version := o.cfg.Rank.Version()
	record := &analysis.Record{
		Blocks:    snapshot,
		Ranked:    o.cfg.Rank.Entries(),
		UpdatedAt: o.cfg.Now().UTC(),
		UpdatedBy: o.cfg.WorkerID,
	}
	if err := o.cfg.Repository.Save(ctx, o.cfg.Key, record); err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}

	o.mu.Lock()
	o.dirty = false
	o.savedVersion = version
	o.mu.Unlock()
	return nil
}

// logRank logs the full rank when it changed since the last log.
func (o *Orchestrator) logRank() {
	version := o.cfg.Rank.Version()
	o.mu.Lock()
	changed := version != o.loggedVersion
	o.loggedVersion = version
	o.mu.Unlock()
	if !changed {
		return
	}

	entries := o.cfg.Rank.Entries()
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = e.String()
	}
	o.log.Info().Strs("rank", lines).Msg("Rank changed")
}
