package work

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aristath/lottoscan/internal/analysis"
	"github.com/aristath/lottoscan/internal/config"
	"github.com/aristath/lottoscan/internal/events"
	"github.com/aristath/lottoscan/internal/storage"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const archiveCSV = `date,n1,n2,n3,n4,n5,n6,jolly
2019-12-28,1,2,3,4,5,6,7
2020-01-04,1,2,3,4,5,9,8
2020-02-11,2,3,4,5,6,7,1
2020-03-19,10,20,30,40,50,60,70
`

func writeArchive(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "draws.csv")
	require.NoError(t, os.WriteFile(path, []byte(archiveCSV), 0644))
	return path
}

func testAnalysis(name, archive string, async bool) *config.AnalysisConfig {
	cfg := config.DefaultAnalysis()
	cfg.Name = name
	cfg.Enabled = true
	cfg.Async = async
	cfg.Numbers = []int{1, 2, 3, 4, 5, 6, 7, 8, 9}
	cfg.CombinationSize = 6
	cfg.RankSize = 5
	cfg.BlockCount = 2
	cfg.Archive = config.Archive{File: archive, StartDate: "2020-01-01", EndDate: "2020-12-31"}
	return &cfg
}

func testDeps(repo analysis.Repository, emitter EventEmitter) AnalysisDeps {
	return AnalysisDeps{
		Repository: repo,
		WorkerID:   "hostA",
		Emitter:    emitter,
		Now:        func() time.Time { return time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC) },
		Log:        zerolog.Nop(),
	}
}

func TestResolveTarget(t *testing.T) {
	cfg := testAnalysis("integral-6", "unused.csv", false)

	target, err := ResolveTarget(cfg, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "84", target.Space.Size().String())
	assert.Regexp(t, `^\[84\]\[6\]\[6,5_5,5,4,3,2\]\[5\]\[20200101\]\[20201231\]\[[0-9a-f]{16}\]$`, target.Key)
}

func TestResolveTarget_KeySeparatesInputs(t *testing.T) {
	resolve := func(mutate func(cfg *config.AnalysisConfig)) string {
		cfg := testAnalysis("a", "draws.csv", false)
		cfg.CombinationSize = 7
		cfg.Numbers = []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20}
		mutate(cfg)
		target, err := ResolveTarget(cfg, time.Now())
		require.NoError(t, err)
		return target.Key
	}

	base := resolve(func(*config.AnalysisConfig) {})
	assert.Equal(t, base, resolve(func(*config.AnalysisConfig) {}))
	assert.Equal(t, base, resolve(func(cfg *config.AnalysisConfig) { cfg.Archive.File = "./draws.csv" }))

	shifted := resolve(func(cfg *config.AnalysisConfig) {
		for i := range cfg.Numbers {
			cfg.Numbers[i] += 20
		}
	})
	assert.NotEqual(t, base, shifted)
	// same size, so only the digest segment tells them apart
	assert.Equal(t, base[:strings.LastIndex(base, "[")], shifted[:strings.LastIndex(shifted, "[")])

	reordered := resolve(func(cfg *config.AnalysisConfig) {
		cfg.Numbers[0], cfg.Numbers[1] = cfg.Numbers[1], cfg.Numbers[0]
	})
	assert.NotEqual(t, base, reordered)

	assert.NotEqual(t, base, resolve(func(cfg *config.AnalysisConfig) { cfg.Baseline = "3" }))
	assert.NotEqual(t, base, resolve(func(cfg *config.AnalysisConfig) { cfg.Archive.File = "other.csv" }))
}

func TestBuildJob(t *testing.T) {
	cfg := testAnalysis("integral-6", writeArchive(t), true)

	job, err := BuildJob(cfg, testDeps(storage.NewMemoryStore(), nil))
	require.NoError(t, err)

	assert.Equal(t, "integral-6", job.Name)
	assert.True(t, job.Async)
	target, err := ResolveTarget(cfg, time.Now())
	require.NoError(t, err)
	assert.Equal(t, target.Key, job.Key)
	_, err = uuid.Parse(job.ID)
	assert.NoError(t, err)
	assert.Equal(t, StatusPending, job.Status())
}

func TestBuildJob_Errors(t *testing.T) {
	archive := writeArchive(t)

	t.Run("missing archive", func(t *testing.T) {
		cfg := testAnalysis("a", filepath.Join(t.TempDir(), "missing.csv"), false)
		_, err := BuildJob(cfg, testDeps(storage.NewMemoryStore(), nil))
		assert.ErrorContains(t, err, "failed to open draws archive")
	})

	t.Run("invalid assignment rule", func(t *testing.T) {
		cfg := testAnalysis("a", archive, false)
		cfg.BlocksAssignee = "hostA:3/2"
		_, err := BuildJob(cfg, testDeps(storage.NewMemoryStore(), nil))
		assert.ErrorContains(t, err, "invalid slice")
	})

	t.Run("too few numbers for an integral system", func(t *testing.T) {
		cfg := testAnalysis("a", archive, false)
		cfg.CombinationSize = 5
		_, err := BuildJob(cfg, testDeps(storage.NewMemoryStore(), nil))
		assert.Error(t, err)
	})
}

func TestRunner_RunsAllJobs(t *testing.T) {
	archive := writeArchive(t)
	repo := storage.NewMemoryStore()
	bus := events.NewBus(zerolog.Nop())

	var started, completed atomic.Int32
	bus.Subscribe(events.ScanStarted, func(*events.Event) { started.Add(1) })
	bus.Subscribe(events.ScanCompleted, func(*events.Event) { completed.Add(1) })

	// different rank sizes give each analysis its own record
	var jobs []*Job
	for i, async := range []bool{true, false, true} {
		cfg := testAnalysis("integral-"+string(rune('a'+i)), archive, async)
		cfg.RankSize = 3 + i
		job, err := BuildJob(cfg, testDeps(repo, bus))
		require.NoError(t, err)
		jobs = append(jobs, job)
	}

	registry := NewRegistry()
	runner := NewRunner(registry, 2, zerolog.Nop())
	require.NoError(t, runner.Run(context.Background(), jobs))

	assert.Equal(t, 3, registry.Count())
	for _, job := range jobs {
		info := job.Info()
		assert.Equal(t, StatusCompleted, info.Status, job.Name)
		assert.True(t, info.Summary.Completed, job.Name)
		assert.False(t, info.FinishedAt.IsZero())

		rec, err := repo.Load(context.Background(), job.Key)
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.True(t, rec.Complete())
		assert.NotEmpty(t, rec.Ranked)
	}

	// the bus runs handlers synchronously, so counts are final
	assert.Equal(t, int32(3), started.Load())
	assert.Equal(t, int32(3), completed.Load())
}

func TestRunner_CancelledContextInterrupts(t *testing.T) {
	archive := writeArchive(t)
	job, err := BuildJob(testAnalysis("a", archive, true), testDeps(storage.NewMemoryStore(), nil))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := NewRunner(NewRegistry(), 1, zerolog.Nop())
	require.NoError(t, runner.Run(ctx, []*Job{job}))
	assert.Equal(t, StatusInterrupted, job.Status())
	assert.NoError(t, job.Err())
}

// brokenRepo fails every load.
type brokenRepo struct{}

func (brokenRepo) Load(context.Context, string) (*analysis.Record, error) {
	return nil, errors.New("connection refused")
}

func (brokenRepo) Save(context.Context, string, *analysis.Record) error {
	return errors.New("connection refused")
}

func TestRunner_FailedJobReturnsError(t *testing.T) {
	archive := writeArchive(t)
	emitter := &mockEmitter{}

	good, err := BuildJob(testAnalysis("good", archive, false), testDeps(storage.NewMemoryStore(), emitter))
	require.NoError(t, err)
	bad, err := BuildJob(testAnalysis("bad", archive, true), testDeps(brokenRepo{}, emitter))
	require.NoError(t, err)

	runner := NewRunner(NewRegistry(), 2, zerolog.Nop())
	err = runner.Run(context.Background(), []*Job{bad, good})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "analysis bad")
	assert.Contains(t, err.Error(), "connection refused")

	assert.Equal(t, StatusFailed, bad.Status())
	assert.Equal(t, StatusCompleted, good.Status())
	assert.ErrorContains(t, bad.Err(), "connection refused")

	failed := emitter.named(events.ScanFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, "bad", failed[0].Analysis)
}
