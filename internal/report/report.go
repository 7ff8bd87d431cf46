// Package report renders the persisted state of an analysis for humans and
// scripts.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/aristath/lottoscan/internal/analysis"
	"github.com/aristath/lottoscan/internal/progress"
	"github.com/aristath/lottoscan/internal/ranking"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Report is the rendered state of one analysis record.
type Report struct {
	Name           string        `json:"name"`
	Key            string        `json:"key"`
	Found          bool          `json:"found"`
	Total          string        `json:"total"`
	Processed      string        `json:"processed"`
	Remaining      string        `json:"remaining"`
	Percent        float64       `json:"percent"`
	BlocksComplete int           `json:"blocks_complete"`
	Blocks         []BlockStatus `json:"blocks"`
	Rank           []RankLine    `json:"rank"`
	TierStats      []TierStat    `json:"tier_stats"`
	UpdatedAt      time.Time     `json:"updated_at,omitempty"`
	UpdatedBy      string        `json:"updated_by,omitempty"`
}

// BlockStatus is the progress of one block.
type BlockStatus struct {
	Start     string  `json:"start"`
	End       string  `json:"end"`
	Processed string  `json:"processed"`
	Percent   float64 `json:"percent"`
	Complete  bool    `json:"complete"`
}

// RankLine is one ranked subset.
type RankLine struct {
	Position int           `json:"position"`
	Subset   []int         `json:"subset"`
	Score    ranking.Score `json:"score"`
}

// TierStat summarizes the hits of one tier across the ranked subsets.
type TierStat struct {
	Tier   ranking.Tier `json:"tier"`
	Mean   float64      `json:"mean"`
	StdDev float64      `json:"std_dev"`
	Min    float64      `json:"min"`
	Max    float64      `json:"max"`
}

// Build renders rec, the record stored under key for a space of total
// combinations. A nil rec yields an empty report with Found unset. Tier
// statistics follow the order of tiers.
func Build(name, key string, total *big.Int, tiers []ranking.Tier, rec *analysis.Record) Report {
	r := Report{
		Name:      name,
		Key:       key,
		Total:     total.String(),
		Processed: "0",
		Remaining: total.String(),
		Blocks:    []BlockStatus{},
		Rank:      []RankLine{},
		TierStats: []TierStat{},
	}
	if rec == nil {
		return r
	}

	processed := rec.Processed()
	r.Found = true
	r.Processed = processed.String()
	r.Remaining = rec.Remaining().String()
	r.Percent = progress.Update{Current: processed, Total: total}.Percent()
	r.UpdatedAt = rec.UpdatedAt
	r.UpdatedBy = rec.UpdatedBy

	for _, b := range rec.Blocks {
		if b.IsComplete() {
			r.BlocksComplete++
		}
		r.Blocks = append(r.Blocks, BlockStatus{
			Start:     b.Start.String(),
			End:       b.End.String(),
			Processed: b.Processed().String(),
			Percent:   progress.Update{Current: b.Processed(), Total: b.Len()}.Percent(),
			Complete:  b.IsComplete(),
		})
	}

	for i, e := range rec.Ranked {
		r.Rank = append(r.Rank, RankLine{Position: i + 1, Subset: e.Subset, Score: e.Score})
	}
	r.TierStats = tierStats(tiers, rec.Ranked)
	return r
}

func tierStats(tiers []ranking.Tier, entries []ranking.Entry) []TierStat {
	out := []TierStat{}
	if len(entries) == 0 {
		return out
	}

	hits := make([]float64, len(entries))
	for _, tier := range tiers {
		for i, e := range entries {
			hits[i] = float64(e.Score[tier])
		}
		mean, std := stat.MeanStdDev(hits, nil)
		if len(hits) == 1 {
			std = 0
		}
		out = append(out, TierStat{
			Tier:   tier,
			Mean:   mean,
			StdDev: std,
			Min:    floats.Min(hits),
			Max:    floats.Max(hits),
		})
	}
	return out
}

// WriteJSON writes reports as an indented JSON array.
func WriteJSON(w io.Writer, reports []Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(reports); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return nil
}

// WriteText writes a plain-text rendering of r.
func WriteText(w io.Writer, r Report) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "%s\n", r.Name)
	fmt.Fprintf(tw, "key\t%s\n", r.Key)
	if !r.Found {
		fmt.Fprintf(tw, "status\tnot started (%s combinations)\n", r.Total)
		return tw.Flush()
	}

	fmt.Fprintf(tw, "processed\t%s / %s (%.2f%%)\n", r.Processed, r.Total, r.Percent)
	fmt.Fprintf(tw, "remaining\t%s\n", r.Remaining)
	if !r.UpdatedAt.IsZero() {
		fmt.Fprintf(tw, "updated\t%s by %s\n", r.UpdatedAt.Format(time.RFC3339), r.UpdatedBy)
	}
	fmt.Fprintf(tw, "blocks\t%d/%d complete\n", r.BlocksComplete, len(r.Blocks))
	for i, b := range r.Blocks {
		state := fmt.Sprintf("%s processed (%.2f%%)", b.Processed, b.Percent)
		if b.Complete {
			state = "complete"
		}
		fmt.Fprintf(tw, "  #%d\t[%s, %s]\t%s\n", i+1, b.Start, b.End, state)
	}

	fmt.Fprintf(tw, "rank\t%d entries\n", len(r.Rank))
	for _, line := range r.Rank {
		fmt.Fprintf(tw, "  %d.\t%s\t%s\n", line.Position, formatSubset(line.Subset), line.Score)
	}

	if len(r.TierStats) > 0 {
		fmt.Fprintf(tw, "tier\tmean\tstd dev\tmin\tmax\n")
		for _, s := range r.TierStats {
			fmt.Fprintf(tw, "  %s\t%.2f\t%.2f\t%.0f\t%.0f\n", s.Tier, s.Mean, s.StdDev, s.Min, s.Max)
		}
	}
	return tw.Flush()
}

func formatSubset(subset []int) string {
	parts := make([]string, len(subset))
	for i, n := range subset {
		parts[i] = fmt.Sprintf("%2d", n)
	}
	return strings.Join(parts, " ")
}
