// Package progress provides progress reporting utilities for long-running scans.
package progress

import (
	"math/big"
)

// Update represents a detailed progress update with hierarchical phase information.
// Counts are big integers because scanned spaces do not fit machine integers.
type Update struct {
	Phase    string         // Phase identifier (e.g., "loading", "scanning", "checkpoint")
	SubPhase string         // Sub-phase identifier (e.g., a block range)
	Current  *big.Int       // Combinations processed so far
	Total    *big.Int       // Combinations in the whole space
	Message  string         // Human-readable progress message
	Details  map[string]any // Arbitrary metrics (e.g., blocks_remaining, rank_size)
}

// Percent returns Current/Total as a percentage, 0 when Total is unknown.
func (u Update) Percent() float64 {
	if u.Current == nil || u.Total == nil || u.Total.Sign() == 0 {
		return 0
	}
	ratio := new(big.Rat).SetFrac(u.Current, u.Total)
	f, _ := ratio.Float64()
	return f * 100
}

// DetailedCallback is a function that receives detailed progress updates.
// A nil DetailedCallback is valid and will be safely ignored by CallDetailed().
type DetailedCallback func(update Update)

// CallDetailed safely invokes the detailed callback if non-nil.
// This allows callers to pass progress updates without checking for nil.
func CallDetailed(cb DetailedCallback, update Update) {
	if cb != nil {
		cb(update)
	}
}
