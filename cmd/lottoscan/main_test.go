package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const archiveCSV = `date,n1,n2,n3,n4,n5,n6,jolly
2020-01-04,1,2,3,4,5,9,8
2020-02-11,2,3,4,5,6,7,1
`

const analysisYAML = `name: integral-9
enabled: true
numbers: [1, 2, 3, 4, 5, 6, 7, 8, 9]
combination_size: 6
rank_size: 3
block_count: 2
archive:
  file: draws.csv
  start_date: "2020-01-01"
  end_date: "2020-12-31"
`

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())
	return out.String()
}

func setupWorkspace(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	analyses := filepath.Join(dir, "analyses")
	require.NoError(t, os.MkdirAll(analyses, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(analyses, "draws.csv"), []byte(archiveCSV), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(analyses, "integral-9.yaml"), []byte(analysisYAML), 0644))

	t.Setenv("LOTTOSCAN_DATA_DIR", filepath.Join(dir, "data"))
	t.Setenv("ANALYSIS_DIR", analyses)
	t.Setenv("STORAGE_BACKEND", "file")
	t.Setenv("WORKER_ID", "hostA")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("TASKS_MAX_PARALLEL", "1")
}

func TestVersion(t *testing.T) {
	assert.Equal(t, "dev\n", run(t, "version"))
}

func TestShowBeforeAnalyze(t *testing.T) {
	setupWorkspace(t)

	out := run(t, "show")
	assert.Contains(t, out, "integral-9")
	assert.Contains(t, out, "not started (84 combinations)")
}

func TestAnalyzeThenShow(t *testing.T) {
	setupWorkspace(t)

	run(t, "analyze")

	out := run(t, "show")
	assert.Contains(t, out, "84 / 84 (100.00%)")
	assert.Contains(t, out, "2/2 complete")

	js := run(t, "show", "--json")
	assert.True(t, strings.HasPrefix(strings.TrimSpace(js), "["))
	assert.Contains(t, js, `"found": true`)
	assert.Contains(t, js, `"updated_by": "hostA"`)
}
