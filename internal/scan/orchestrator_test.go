package scan

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aristath/lottoscan/internal/analysis"
	"github.com/aristath/lottoscan/internal/assignment"
	"github.com/aristath/lottoscan/internal/blocks"
	"github.com/aristath/lottoscan/internal/combinatorics"
	"github.com/aristath/lottoscan/internal/progress"
	"github.com/aristath/lottoscan/internal/ranking"
	"github.com/aristath/lottoscan/internal/storage"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "[scan-test]"

var testTiers = []ranking.Tier{6, 5.5}

// sumScore is a deterministic scorer spreading hits over the space.
func sumScore(subset []int) ranking.Score {
	sum, prod := 0, 1
	for _, v := range subset {
		sum += v
		prod = (prod * v) % 11
	}
	return ranking.Score{6: sum % 5, 5.5: prod % 3}
}

// countingScorer counts calls and can fire a hook at a given call.
type countingScorer struct {
	calls  atomic.Int64
	at     int64
	onCall func()
}

func (c *countingScorer) Score(subset []int) ranking.Score {
	n := c.calls.Add(1)
	if c.onCall != nil && n == c.at {
		c.onCall()
	}
	return sumScore(subset)
}

func newSpace(t *testing.T, n, k int) *combinatorics.Space {
	t.Helper()
	universe := make([]int, n)
	for i := range universe {
		universe[i] = i + 1
	}
	space, err := combinatorics.NewSpace(universe, k)
	require.NoError(t, err)
	return space
}

func newRank(capacity int) *ranking.Store {
	return ranking.NewStore(capacity, testTiers, ranking.DefaultBaseline, zerolog.Nop())
}

// bruteForce ranks the whole space without blocks or checkpoints.
func bruteForce(t *testing.T, space *combinatorics.Space, capacity int) []ranking.Entry {
	t.Helper()
	rank := newRank(capacity)
	require.NoError(t, space.Iterate(func(c *combinatorics.Combination) bool {
		score := sumScore(c.Numbers())
		if rank.Eligible(score) {
			rank.Offer(ranking.Entry{Subset: c.Numbers(), Score: score})
		}
		return true
	}))
	return rank.Entries()
}

func newOrchestrator(t *testing.T, cfg Config) *Orchestrator {
	t.Helper()
	if cfg.Key == "" {
		cfg.Key = testKey
	}
	if cfg.Scorer == nil {
		cfg.Scorer = ScorerFunc(sumScore)
	}
	if cfg.Rank == nil {
		cfg.Rank = newRank(10)
	}
	if cfg.WorkerID == "" {
		cfg.WorkerID = "hostA"
	}
	o, err := New(cfg, zerolog.Nop())
	require.NoError(t, err)
	return o
}

func load(t *testing.T, repo analysis.Repository) *analysis.Record {
	t.Helper()
	rec, err := repo.Load(context.Background(), testKey)
	require.NoError(t, err)
	require.NotNil(t, rec)
	return rec
}

// hookRepo wraps a repository, counting calls and optionally failing or
// rewriting loaded records.
type hookRepo struct {
	inner analysis.Repository

	mu        sync.Mutex
	loads     int
	saves     int
	loadErr   error
	failSaves int // saves to fail, -1 fails all
	onLoad    func(n int, rec *analysis.Record)
}

func (r *hookRepo) Load(ctx context.Context, key string) (*analysis.Record, error) {
	r.mu.Lock()
	r.loads++
	n := r.loads
	err := r.loadErr
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}

	rec, err := r.inner.Load(ctx, key)
	if err != nil || rec == nil {
		return rec, err
	}
	if r.onLoad != nil {
		r.onLoad(n, rec)
	}
	return rec, nil
}

var errDiskFull = errors.New("disk full")

func (r *hookRepo) Save(ctx context.Context, key string, rec *analysis.Record) error {
	r.mu.Lock()
	r.saves++
	fail := r.failSaves < 0 || r.saves <= r.failSaves
	r.mu.Unlock()
	if fail {
		return errDiskFull
	}
	return r.inner.Save(ctx, key, rec)
}

func TestNew_Validation(t *testing.T) {
	space := newSpace(t, 10, 3)
	_, err := New(Config{Space: space, Rank: newRank(1), Scorer: ScorerFunc(sumScore), Repository: storage.NewMemoryStore()}, zerolog.Nop())
	assert.Error(t, err, "missing key")

	_, err = New(Config{Key: "k", Rank: newRank(1), Scorer: ScorerFunc(sumScore), Repository: storage.NewMemoryStore()}, zerolog.Nop())
	assert.Error(t, err, "missing space")

	o, err := New(Config{Key: "k", Space: space, Rank: newRank(1), Scorer: ScorerFunc(sumScore), Repository: storage.NewMemoryStore()}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "k", o.Name())
	assert.Equal(t, StateLoading, o.State())
}

func TestRun_CompleteScanMatchesBruteForce(t *testing.T) {
	space := newSpace(t, 12, 4)
	repo := storage.NewMemoryStore()
	scorer := &countingScorer{}

	var phases []string
	o := newOrchestrator(t, Config{
		Name:          "integral",
		Space:         space,
		Scorer:        scorer,
		Repository:    repo,
		BlockCount:    3,
		AutosaveEvery: 50,
		Progress:      func(u progress.Update) { phases = append(phases, u.Phase) },
	})

	summary, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StateDone, o.State())
	assert.True(t, summary.Completed)
	assert.False(t, summary.Degraded)
	assert.Equal(t, "495", summary.Total.String())
	assert.Equal(t, "495", summary.Processed.String())
	assert.Equal(t, "495", summary.VisitedThisRun.String())
	assert.Zero(t, summary.Remaining.Sign())
	assert.Equal(t, 3, summary.Blocks)
	assert.Equal(t, int64(495), scorer.calls.Load())

	expected := bruteForce(t, space, 10)
	assert.Equal(t, expected, o.Rank().Entries())

	rec := load(t, repo)
	assert.True(t, rec.Complete())
	assert.Equal(t, expected, rec.Ranked)
	assert.Equal(t, "hostA", rec.UpdatedBy)
	assert.Contains(t, phases, "checkpoint")
	assert.NotContains(t, phases, "checkpoint_failed")
}

func TestRun_DefaultBlockCount(t *testing.T) {
	o := newOrchestrator(t, Config{
		Space:      newSpace(t, 10, 3),
		Repository: storage.NewMemoryStore(),
	})
	summary, err := o.Run(context.Background())
	require.NoError(t, err)
	// 2k blocks for small spaces
	assert.Equal(t, 6, summary.Blocks)
	assert.True(t, summary.Completed)
}

func TestRun_ResumesFromCheckpoint(t *testing.T) {
	space := newSpace(t, 10, 3)
	repo := storage.NewMemoryStore()

	list, err := blocks.Partition(space.Size(), 3)
	require.NoError(t, err)
	require.NoError(t, list[0].Advance(list[0].End))
	require.NoError(t, list[1].Advance(big.NewInt(59)))
	seeded := ranking.Entry{Subset: []int{1, 2, 3}, Score: ranking.Score{6: 99}}
	require.NoError(t, repo.Save(context.Background(), testKey, &analysis.Record{
		Blocks: list,
		Ranked: []ranking.Entry{seeded},
	}))

	var restored progress.Update
	scorer := &countingScorer{}
	o := newOrchestrator(t, Config{
		Space:      space,
		Scorer:     scorer,
		Repository: repo,
		Progress: func(u progress.Update) {
			if u.Phase == "loading" {
				restored = u
			}
		},
	})

	summary, err := o.Run(context.Background())
	require.NoError(t, err)

	// blocks are [0,39] [40,79] [80,119]; 60..119 remain
	assert.Equal(t, int64(60), scorer.calls.Load())
	assert.Equal(t, "60", summary.VisitedThisRun.String())
	assert.True(t, summary.Completed)
	assert.Equal(t, seeded, o.Rank().Entries()[0])

	assert.Equal(t, "60", restored.Current.String())
	assert.Contains(t, restored.Message, "60 remaining")
}

func TestRun_MergesRemoteProgress(t *testing.T) {
	space := newSpace(t, 10, 3)
	mem := storage.NewMemoryStore()
	list, err := blocks.Partition(space.Size(), 3)
	require.NoError(t, err)
	require.NoError(t, mem.Save(context.Background(), testKey, &analysis.Record{Blocks: list}))

	repo := &hookRepo{inner: mem}
	repo.onLoad = func(n int, rec *analysis.Record) {
		if n != 2 {
			return
		}
		// another worker finished blocks 2 and 3 and got to 29 in block 1
		require.NoError(t, rec.Blocks[0].Advance(big.NewInt(29)))
		require.NoError(t, rec.Blocks[1].Advance(rec.Blocks[1].End))
		require.NoError(t, rec.Blocks[2].Advance(rec.Blocks[2].End))
	}

	scorer := &countingScorer{}
	o := newOrchestrator(t, Config{
		Space:         space,
		Scorer:        scorer,
		Repository:    repo,
		AutosaveEvery: 10,
	})

	summary, err := o.Run(context.Background())
	require.NoError(t, err)

	// 0..9, then restart at 30 through 39
	assert.Equal(t, int64(20), scorer.calls.Load())
	assert.True(t, summary.Completed)
	assert.True(t, load(t, mem).Complete())
}

func TestRun_CheckpointFailureDegradesAndContinues(t *testing.T) {
	space := newSpace(t, 10, 3)
	mem := storage.NewMemoryStore()
	repo := &hookRepo{inner: mem, failSaves: 2}

	var failed []progress.Update
	o := newOrchestrator(t, Config{
		Space:         space,
		Repository:    repo,
		BlockCount:    2,
		AutosaveEvery: 25,
		Progress: func(u progress.Update) {
			if u.Phase == "checkpoint_failed" {
				failed = append(failed, u)
			}
		},
	})

	summary, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.CheckpointFailures)
	assert.False(t, summary.Degraded)
	assert.Empty(t, summary.LastCheckpointErr)
	assert.True(t, summary.Completed)
	require.Len(t, failed, 2)
	assert.Contains(t, failed[0].Message, "disk full")
	assert.Equal(t, true, failed[0].Details["degraded"])

	rec := load(t, mem)
	assert.True(t, rec.Complete())
	assert.Equal(t, bruteForce(t, space, 10), rec.Ranked)
}

func TestRun_FinalCheckpointFailureIsReturned(t *testing.T) {
	space := newSpace(t, 10, 3)
	repo := &hookRepo{inner: storage.NewMemoryStore(), failSaves: -1}
	scorer := &countingScorer{}

	o := newOrchestrator(t, Config{
		Space:      space,
		Scorer:     scorer,
		Repository: repo,
		BlockCount: 3,
	})

	summary, err := o.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errDiskFull)
	assert.ErrorIs(t, err, ErrFinalCheckpoint)

	// scanning went on despite every checkpoint failing
	assert.Equal(t, int64(120), scorer.calls.Load())
	assert.True(t, summary.Degraded)
	assert.Equal(t, 4, summary.CheckpointFailures)
	assert.Contains(t, summary.LastCheckpointErr, "disk full")
}

func TestRun_LoadFailure(t *testing.T) {
	repo := &hookRepo{inner: storage.NewMemoryStore(), loadErr: errors.New("connection refused")}
	o := newOrchestrator(t, Config{Space: newSpace(t, 10, 3), Repository: repo})

	_, err := o.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, StateDone, o.State())
}

func TestRun_RejectsRecordOfAnotherSpace(t *testing.T) {
	repo := storage.NewMemoryStore()
	list, err := blocks.Partition(big.NewInt(100), 2)
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), testKey, &analysis.Record{Blocks: list}))

	o := newOrchestrator(t, Config{Space: newSpace(t, 10, 3), Repository: repo})
	_, err = o.Run(context.Background())
	assert.ErrorIs(t, err, blocks.ErrShapeMismatch)
}

func TestRun_CancelCheckpointsProgress(t *testing.T) {
	space := newSpace(t, 20, 5) // 15504 combinations
	repo := storage.NewMemoryStore()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	scorer := &countingScorer{at: 5000, onCall: cancel}

	o := newOrchestrator(t, Config{
		Space:         space,
		Scorer:        scorer,
		Repository:    repo,
		BlockCount:    1,
		AutosaveEvery: 1 << 40,
	})

	summary, err := o.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrFinalCheckpoint)
	assert.False(t, summary.Completed)

	// cancellation is noticed at the next check, after 8192 visits
	assert.Equal(t, int64(8192), scorer.calls.Load())
	rec := load(t, repo)
	assert.Equal(t, "8192", rec.Processed().String())
	assert.False(t, rec.Complete())
}

func TestRun_AssignmentSplitsWorkBetweenWorkers(t *testing.T) {
	space := newSpace(t, 12, 4)
	repo := storage.NewMemoryStore()
	rule, err := assignment.ParseRule("hostA:odd;all:even")
	require.NoError(t, err)

	run := func(worker string) (Summary, int64) {
		scorer := &countingScorer{}
		o := newOrchestrator(t, Config{
			Space:      space,
			Scorer:     scorer,
			Repository: repo,
			Rule:       rule,
			WorkerID:   worker,
			BlockCount: 4,
		})
		summary, err := o.Run(context.Background())
		require.NoError(t, err)
		return summary, scorer.calls.Load()
	}

	summaryA, callsA := run("hostA")
	assert.False(t, summaryA.Completed)
	assert.Equal(t, 2, summaryA.BlocksComplete)

	rec := load(t, repo)
	assert.True(t, rec.Blocks[0].IsComplete())
	assert.Nil(t, rec.Blocks[1].Cursor)
	assert.True(t, rec.Blocks[2].IsComplete())
	assert.Nil(t, rec.Blocks[3].Cursor)

	summaryB, callsB := run("hostB")
	assert.True(t, summaryB.Completed)
	assert.Equal(t, int64(495), callsA+callsB)

	rec = load(t, repo)
	assert.True(t, rec.Complete())
	assert.Equal(t, "hostB", rec.UpdatedBy)
	assert.Equal(t, bruteForce(t, space, 10), rec.Ranked)
}

func TestRun_NothingLeftIsCompletion(t *testing.T) {
	space := newSpace(t, 10, 3)
	repo := storage.NewMemoryStore()

	first := newOrchestrator(t, Config{Space: space, Repository: repo})
	_, err := first.Run(context.Background())
	require.NoError(t, err)
	saves := repo.Saves()

	scorer := &countingScorer{}
	second := newOrchestrator(t, Config{Space: space, Scorer: scorer, Repository: repo})
	summary, err := second.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, summary.Completed)
	assert.Zero(t, scorer.calls.Load())
	assert.Equal(t, saves, repo.Saves(), "no checkpoint without changes")
}

func TestRun_CheckpointUsesClock(t *testing.T) {
	repo := storage.NewMemoryStore()
	fixed := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	o := newOrchestrator(t, Config{
		Space:      newSpace(t, 8, 2),
		Repository: repo,
		Now:        func() time.Time { return fixed },
	})
	summary, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, fixed, summary.LastCheckpointAt)
	assert.Equal(t, fixed, load(t, repo).UpdatedAt)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "loading", StateLoading.String())
	assert.Equal(t, "scanning", StateScanning.String())
	assert.Equal(t, "checkpointing", StateCheckpointing.String())
	assert.Equal(t, "done", StateDone.String())
	assert.Equal(t, "unknown", State(42).String())

	text, err := StateDone.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "done", string(text))
}
