package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aristath/lottoscan/internal/ranking"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("LOTTOSCAN_DATA_DIR", filepath.Join(dir, "data"))
	t.Setenv("ANALYSIS_DIR", filepath.Join(dir, "analyses"))
	t.Setenv("WORKER_ID", "hostA")
	t.Setenv("STORAGE_BACKEND", "")
	t.Setenv("TIMEOUT", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, filepath.IsAbs(cfg.DataDir))
	assert.DirExists(t, cfg.DataDir)
	assert.Equal(t, "hostA", cfg.WorkerID)
	assert.Equal(t, BackendSQLite, cfg.Storage.Backend)
	assert.GreaterOrEqual(t, cfg.MaxParallel, 1)
	assert.Zero(t, cfg.Timeout)
	assert.False(t, cfg.Storage.S3.Configured())
}

func TestLoad_Overrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("LOTTOSCAN_DATA_DIR", dir)
	t.Setenv("TASKS_MAX_PARALLEL", "3")
	t.Setenv("TIMEOUT", "90")
	t.Setenv("STORAGE_BACKEND", "S3")
	t.Setenv("S3_BUCKET", "stats")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.MaxParallel)
	assert.Equal(t, 90*time.Second, cfg.Timeout)
	assert.Equal(t, BackendS3, cfg.Storage.Backend)
	assert.True(t, cfg.Storage.S3.Configured())
}

func TestLoad_RejectsUnknownBackend(t *testing.T) {
	t.Setenv("LOTTOSCAN_DATA_DIR", t.TempDir())
	t.Setenv("STORAGE_BACKEND", "firestore")

	_, err := Load()
	assert.Error(t, err)
}

func TestDefaultMaxParallel(t *testing.T) {
	assert.GreaterOrEqual(t, DefaultMaxParallel(), 1)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadAnalysis(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "se-12.yaml", `
enabled: true
async: true
combination_size: 12
tiers: [6, 5.5, 5]
rank_size: 50
blocks_assignee: "hostA:odd;all:even"
archive:
  file: draws.csv
  start_date: 2009-07-01
  end_date: 2026-10-10
`)

	cfg, err := LoadAnalysis(path)
	require.NoError(t, err)

	assert.Equal(t, "se-12", cfg.Name)
	assert.True(t, cfg.Enabled)
	assert.True(t, cfg.Async)
	assert.Equal(t, 50, cfg.RankSize)
	assert.Equal(t, int64(1_000_000), cfg.AutosaveEvery)
	assert.Equal(t, filepath.Join(dir, "draws.csv"), cfg.Archive.File)
	assert.Len(t, cfg.Universe(), 90)

	tiers, err := cfg.ParsedTiers()
	require.NoError(t, err)
	assert.Equal(t, []ranking.Tier{6, 5.5, 5}, tiers)

	baseline, err := cfg.ParsedBaseline()
	require.NoError(t, err)
	assert.Equal(t, ranking.DefaultBaseline, baseline)

	from, to, err := cfg.DateRange(time.Now())
	require.NoError(t, err)
	assert.Equal(t, 2009, from.Year())
	assert.Equal(t, time.October, to.Month())
}

func TestLoadAnalysis_Invalid(t *testing.T) {
	dir := t.TempDir()
	tests := map[string]string{
		"missing_size.yaml": `
archive: {file: d.csv, start_date: 2020-01-01}
`,
		"too_large.yaml": `
numbers: [1, 2, 3]
combination_size: 4
archive: {file: d.csv, start_date: 2020-01-01}
`,
		"bad_tier.yaml": `
combination_size: 6
tiers: [six]
archive: {file: d.csv, start_date: 2020-01-01}
`,
		"bad_dates.yaml": `
combination_size: 6
archive: {file: d.csv, start_date: 2020-01-01, end_date: 2019-01-01}
`,
		"duplicate_numbers.yaml": `
numbers: [1, 1, 2, 3, 4, 5, 6]
combination_size: 6
archive: {file: d.csv, start_date: 2020-01-01}
`,
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadAnalysis(writeFile(t, dir, name, content))
			assert.Error(t, err)
		})
	}
}

func TestLoadAnalyses_OrderedByName(t *testing.T) {
	dir := t.TempDir()
	body := "combination_size: 6\narchive: {file: d.csv, start_date: 2020-01-01}\n"
	writeFile(t, dir, "b.yaml", "name: second\n"+body)
	writeFile(t, dir, "a.yml", "name: first\n"+body)
	writeFile(t, dir, "notes.txt", "ignored")

	list, err := LoadAnalyses(dir)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "first", list[0].Name)
	assert.Equal(t, "second", list[1].Name)
}
