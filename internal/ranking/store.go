package ranking

import (
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// DefaultBaseline is the tier an entry has to beat to be worth ranking.
const DefaultBaseline Tier = 5

// Store is a bounded, ordered set of the best entries. Entries are kept
// best first; equal entries are stored once.
type Store struct {
	mu       sync.RWMutex
	capacity int
	priority []Tier
	baseline Tier
	entries  []Entry
	version  uint64
	log      zerolog.Logger
}

// NewStore creates a store holding at most capacity entries. priority lists
// the tiers in the order they are compared.
func NewStore(capacity int, priority []Tier, baseline Tier, log zerolog.Logger) *Store {
	if capacity < 0 {
		capacity = 0
	}
	return &Store{
		capacity: capacity,
		priority: append([]Tier(nil), priority...),
		baseline: baseline,
		entries:  make([]Entry, 0, capacity),
		log:      log.With().Str("component", "rank_store").Logger(),
	}
}

// Compare orders two entries: positive when a ranks above b, negative when
// below, zero when they are equal. Hit counts are compared tier by tier in
// priority order; full ties fall back to the subset elements, larger first.
func (s *Store) Compare(a, b Entry) int {
	for _, t := range s.priority {
		if d := a.Score[t] - b.Score[t]; d != 0 {
			return d
		}
	}
	n := len(a.Subset)
	if len(b.Subset) < n {
		n = len(b.Subset)
	}
	for i := 0; i < n; i++ {
		if d := a.Subset[i] - b.Subset[i]; d != 0 {
			return d
		}
	}
	return len(a.Subset) - len(b.Subset)
}

// Eligible reports whether score has hits in some tier above the baseline.
func (s *Store) Eligible(score Score) bool {
	for t, hits := range score {
		if t > s.baseline && hits > 0 {
			return true
		}
	}
	return false
}

// Offer inserts e when it belongs to the best entries and reports whether it
// was retained. The tail is evicted once the store is full.
func (s *Store) Offer(e Entry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offer(e)
}

func (s *Store) offer(e Entry) bool {
	if s.capacity == 0 {
		return false
	}

	// first position whose entry does not rank above e
	i := sort.Search(len(s.entries), func(i int) bool {
		return s.Compare(s.entries[i], e) <= 0
	})
	if i < len(s.entries) && s.Compare(s.entries[i], e) == 0 {
		return false
	}
	if i >= s.capacity {
		return false
	}

	e = e.Clone()
	s.entries = append(s.entries, Entry{})
	copy(s.entries[i+1:], s.entries[i:])
	s.entries[i] = e
	s.version++

	if len(s.entries) > s.capacity {
		evicted := s.entries[len(s.entries)-1]
		s.entries = s.entries[:s.capacity]
		s.log.Debug().
			Ints("subset", e.Subset).
			Str("score", e.Score.String()).
			Ints("replaced", evicted.Subset).
			Msg("Replaced in rank")
		return true
	}

	s.log.Debug().
		Ints("subset", e.Subset).
		Str("score", e.Score.String()).
		Msg("Added to rank")
	return true
}

// Seed offers every entry of a persisted rank.
func (s *Store) Seed(entries []Entry) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	added := 0
	for _, e := range entries {
		if s.offer(e) {
			added++
		}
	}
	return added
}

// Entries returns a copy of the ranked entries, best first.
func (s *Store) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.Clone()
	}
	return out
}

// Len returns the number of ranked entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Capacity returns the maximum number of entries.
func (s *Store) Capacity() int {
	return s.capacity
}

// Version increases every time the ranked set changes.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}
