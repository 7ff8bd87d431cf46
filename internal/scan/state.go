// Package scan drives a resumable, checkpointed scan of a combination space
// into a bounded rank.
package scan

import (
	"math/big"
	"time"

	"github.com/aristath/lottoscan/internal/ranking"
)

// State is the phase of a scan.
type State int32

const (
	// StateLoading reads and merges the persisted record
	StateLoading State = iota
	// StateScanning enumerates and scores combinations
	StateScanning
	// StateCheckpointing merges and persists progress
	StateCheckpointing
	// StateDone means no assigned work is left, or the scan was stopped
	StateDone
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateScanning:
		return "scanning"
	case StateCheckpointing:
		return "checkpointing"
	case StateDone:
		return "done"
	}
	return "unknown"
}

// MarshalText renders the state name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Scorer computes the tier hits of a subset.
type Scorer interface {
	Score(subset []int) ranking.Score
}

// ScorerFunc adapts a function to Scorer.
type ScorerFunc func(subset []int) ranking.Score

// Score implements Scorer.
func (f ScorerFunc) Score(subset []int) ranking.Score { return f(subset) }

// Summary is a point-in-time view of a scan.
type Summary struct {
	Name               string    `json:"name"`
	Key                string    `json:"key"`
	State              State     `json:"state"`
	Total              *big.Int  `json:"total"`
	Processed          *big.Int  `json:"processed"`
	Remaining          *big.Int  `json:"remaining"`
	VisitedThisRun     *big.Int  `json:"visited_this_run"`
	Blocks             int       `json:"blocks"`
	BlocksComplete     int       `json:"blocks_complete"`
	RankSize           int       `json:"rank_size"`
	Degraded           bool      `json:"degraded"`
	CheckpointFailures int       `json:"checkpoint_failures"`
	LastCheckpointErr  string    `json:"last_checkpoint_error,omitempty"`
	LastCheckpointAt   time.Time `json:"last_checkpoint_at,omitempty"`
	Completed          bool      `json:"completed"`
}
