// Package analysis defines the persisted state of an analysis and the
// contract of the stores that hold it.
package analysis

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/lottoscan/internal/blocks"
	"github.com/aristath/lottoscan/internal/ranking"
	"github.com/zeebo/blake3"
)

// Record is the checkpointed state of one analysis: the block partition with
// its progress and the best entries found so far.
type Record struct {
	Blocks    []*blocks.Block
	Ranked    []ranking.Entry
	UpdatedAt time.Time
	UpdatedBy string
}

// Processed returns the number of indexes processed across all blocks.
func (r *Record) Processed() *big.Int {
	return blocks.ProcessedTotal(r.Blocks)
}

// Remaining returns the number of indexes left across all blocks.
func (r *Record) Remaining() *big.Int {
	return blocks.RemainingTotal(r.Blocks)
}

// Complete reports whether every block has been fully processed.
func (r *Record) Complete() bool {
	return blocks.CompleteCount(r.Blocks) == len(r.Blocks)
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	out := &Record{
		Blocks:    blocks.CloneAll(r.Blocks),
		Ranked:    make([]ranking.Entry, len(r.Ranked)),
		UpdatedAt: r.UpdatedAt,
		UpdatedBy: r.UpdatedBy,
	}
	for i, e := range r.Ranked {
		out.Ranked[i] = e.Clone()
	}
	return out
}

// Repository loads and saves records by cache key. Load returns (nil, nil)
// when no record exists for the key.
type Repository interface {
	Load(ctx context.Context, key string) (*Record, error)
	Save(ctx context.Context, key string, record *Record) error
}

// KeyParams are the parameters that identify an analysis record. Universe
// is ordered: subset indexes map through it, so a reordering is a different
// space. Archive identifies the draws file.
type KeyParams struct {
	Size     *big.Int
	K        int
	Tiers    []ranking.Tier
	RankSize int
	From     time.Time
	To       time.Time
	Universe []int
	Baseline ranking.Tier
	Archive  string
}

// digestLen is the number of digest bytes kept in a key.
const digestLen = 8

// CacheKey derives the record key. Two analyses share a record only when
// they scan the same space with the same scoring over the same draws.
func CacheKey(p KeyParams) string {
	tiers := make([]string, len(p.Tiers))
	for i, t := range p.Tiers {
		tiers[i] = t.String()
	}
	return fmt.Sprintf("[%s][%d][%s][%d][%s][%s][%s]",
		groupDigits(p.Size.String()),
		p.K,
		strings.ReplaceAll(strings.Join(tiers, ","), ".", "_"),
		p.RankSize,
		p.From.Format("20060102"),
		p.To.Format("20060102"),
		identity(p),
	)
}

// identity digests the inputs that the readable key segments leave out.
func identity(p KeyParams) string {
	h := blake3.New()
	var b strings.Builder
	b.WriteString("universe:")
	for i, n := range p.Universe {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(n))
	}
	b.WriteString("\nbaseline:")
	b.WriteString(p.Baseline.String())
	b.WriteString("\narchive:")
	b.WriteString(p.Archive)
	_, _ = h.Write([]byte(b.String()))
	return hex.EncodeToString(h.Sum(nil)[:digestLen])
}

// groupDigits writes a decimal number with '_' every three digits.
func groupDigits(s string) string {
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte('_')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
