package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aristath/lottoscan/internal/ranking"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DateLayout is the date format used in analysis files.
const DateLayout = "2006-01-02"

// AnalysisConfig describes one integral system analysis.
type AnalysisConfig struct {
	Name            string   `yaml:"name" json:"name" validate:"required"`
	Enabled         bool     `yaml:"enabled" json:"enabled"`
	Async           bool     `yaml:"async" json:"async"`
	Numbers         []int    `yaml:"numbers" json:"numbers" validate:"omitempty,unique,dive,min=1"`
	CombinationSize int      `yaml:"combination_size" json:"combination_size" validate:"required,min=1"`
	Tiers           []string `yaml:"tiers" json:"tiers" validate:"required,min=1,dive,required"`
	Baseline        string   `yaml:"baseline" json:"baseline"`
	RankSize        int      `yaml:"rank_size" json:"rank_size" validate:"min=1"`
	AutosaveEvery   int64    `yaml:"autosave_every" json:"autosave_every" validate:"min=1"`
	BlockCount      int      `yaml:"block_count" json:"block_count" validate:"min=0"`
	BlockDivisor    int64    `yaml:"block_divisor" json:"block_divisor" validate:"min=1"`
	BlocksAssignee  string   `yaml:"blocks_assignee" json:"blocks_assignee"`
	Archive         Archive  `yaml:"archive" json:"archive"`
}

// Archive locates the historical draws used for scoring.
type Archive struct {
	File      string `yaml:"file" json:"file" validate:"required"`
	StartDate string `yaml:"start_date" json:"start_date" validate:"required"`
	EndDate   string `yaml:"end_date" json:"end_date"`
}

// DefaultAnalysis returns an analysis with the defaults applied before the
// YAML document is decoded over it.
func DefaultAnalysis() AnalysisConfig {
	return AnalysisConfig{
		Tiers:         []string{"6", "5.5", "5", "4", "3", "2"},
		Baseline:      ranking.DefaultBaseline.String(),
		RankSize:      100,
		AutosaveEvery: 1_000_000,
		BlockDivisor:  100_000_000,
	}
}

// Universe returns the configured numbers, or 1..90 when none are set.
func (a AnalysisConfig) Universe() []int {
	if len(a.Numbers) > 0 {
		return append([]int(nil), a.Numbers...)
	}
	out := make([]int, 90)
	for i := range out {
		out[i] = i + 1
	}
	return out
}

// ParsedTiers returns the tiers in priority order.
func (a AnalysisConfig) ParsedTiers() ([]ranking.Tier, error) {
	return ranking.ParseTiers(a.Tiers)
}

// ParsedBaseline returns the eligibility baseline tier.
func (a AnalysisConfig) ParsedBaseline() (ranking.Tier, error) {
	if strings.TrimSpace(a.Baseline) == "" {
		return ranking.DefaultBaseline, nil
	}
	return ranking.ParseTier(a.Baseline)
}

// DateRange returns the archive window. An empty end date means now.
func (a AnalysisConfig) DateRange(now time.Time) (time.Time, time.Time, error) {
	from, err := time.Parse(DateLayout, a.Archive.StartDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start date: %w", err)
	}
	to := now.UTC().Truncate(24 * time.Hour)
	if a.Archive.EndDate != "" {
		to, err = time.Parse(DateLayout, a.Archive.EndDate)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end date: %w", err)
		}
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("end date %s before start date %s", to.Format(DateLayout), from.Format(DateLayout))
	}
	return from, to, nil
}

// Validate checks field constraints and cross-field consistency.
func (a AnalysisConfig) Validate() error {
	if err := validator.New().Struct(a); err != nil {
		return fmt.Errorf("analysis %q: %w", a.Name, err)
	}
	if n := len(a.Universe()); a.CombinationSize > n {
		return fmt.Errorf("analysis %q: combination size %d exceeds %d numbers", a.Name, a.CombinationSize, n)
	}
	if _, err := a.ParsedTiers(); err != nil {
		return fmt.Errorf("analysis %q: %w", a.Name, err)
	}
	if _, err := a.ParsedBaseline(); err != nil {
		return fmt.Errorf("analysis %q: %w", a.Name, err)
	}
	if _, _, err := a.DateRange(time.Now()); err != nil {
		return fmt.Errorf("analysis %q: %w", a.Name, err)
	}
	return nil
}

// LoadAnalysis reads and validates one analysis file. A relative archive
// path is resolved against the file's directory.
func LoadAnalysis(path string) (*AnalysisConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read analysis file: %w", err)
	}

	cfg := DefaultAnalysis()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse analysis file %s: %w", path, err)
	}
	if cfg.Name == "" {
		cfg.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if cfg.Archive.File != "" && !filepath.IsAbs(cfg.Archive.File) {
		cfg.Archive.File = filepath.Join(filepath.Dir(path), cfg.Archive.File)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadAnalyses loads every *.yaml / *.yml file of dir in name order.
func LoadAnalyses(dir string) ([]*AnalysisConfig, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read analysis directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml":
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)

	out := make([]*AnalysisConfig, 0, len(files))
	for _, f := range files {
		cfg, err := LoadAnalysis(f)
		if err != nil {
			return nil, err
		}
		out = append(out, cfg)
	}
	return out, nil
}
