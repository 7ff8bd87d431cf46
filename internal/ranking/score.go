// Package ranking keeps the best K scored subsets seen during a scan.
package ranking

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Tier identifies a scoring category, e.g. 5 for five hits or 5.5 for five
// hits plus the jolly number.
type Tier float64

// ParseTier parses the decimal form of a tier.
func ParseTier(s string) (Tier, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid tier %q: %w", s, err)
	}
	return Tier(f), nil
}

// ParseTiers parses a list of tiers.
func ParseTiers(values []string) ([]Tier, error) {
	out := make([]Tier, 0, len(values))
	for _, v := range values {
		t, err := ParseTier(v)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (t Tier) String() string {
	return strconv.FormatFloat(float64(t), 'f', -1, 64)
}

// MarshalText implements encoding.TextMarshaler so tiers can key JSON maps.
func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Tier) UnmarshalText(b []byte) error {
	v, err := ParseTier(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Score maps each tier to its hit count.
type Score map[Tier]int

// Clone returns a copy of the score.
func (s Score) Clone() Score {
	out := make(Score, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Total returns the sum of all hits.
func (s Score) Total() int {
	n := 0
	for _, v := range s {
		n += v
	}
	return n
}

// String renders the score with tiers in descending order.
func (s Score) String() string {
	tiers := make([]Tier, 0, len(s))
	for t := range s {
		tiers = append(tiers, t)
	}
	sort.Slice(tiers, func(i, j int) bool { return tiers[i] > tiers[j] })

	var b strings.Builder
	for i, t := range tiers {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s: %d", t, s[t])
	}
	return "{" + b.String() + "}"
}

// Entry is a subset with its score.
type Entry struct {
	Subset []int
	Score  Score
}

func (e Entry) String() string {
	return fmt.Sprintf("%v %s", e.Subset, e.Score)
}

// Clone returns a deep copy of the entry.
func (e Entry) Clone() Entry {
	return Entry{Subset: append([]int(nil), e.Subset...), Score: e.Score.Clone()}
}
