package scoring

import (
	"fmt"
	"math/bits"

	"github.com/aristath/lottoscan/internal/ranking"
	"gonum.org/v1/gonum/stat/combin"
)

// Scoring tiers of an integral system.
const (
	TierTwo      ranking.Tier = 2
	TierThree    ranking.Tier = 3
	TierFour     ranking.Tier = 4
	TierFive     ranking.Tier = 5
	TierFivePlus ranking.Tier = 5.5
	TierSix      ranking.Tier = 6
)

// AllTiers lists the supported tiers, best first.
var AllTiers = []ranking.Tier{TierSix, TierFivePlus, TierFive, TierFour, TierThree, TierTwo}

type preparedDraw struct {
	mask  []uint64
	jolly int
}

// IntegralScorer counts, for a k-subset, how many of its 6-number tickets
// would have won each tier over the historical draws. Counts come from
// closed-form binomial products, so no ticket is enumerated.
type IntegralScorer struct {
	draws []preparedDraw
	tiers []ranking.Tier
	k     int
	words int
}

// NewIntegralScorer prepares draws for scoring subsets of size k.
func NewIntegralScorer(draws []Draw, tiers []ranking.Tier, k int) (*IntegralScorer, error) {
	if k < TicketSize {
		return nil, fmt.Errorf("integral systems need at least %d numbers, got %d", TicketSize, k)
	}
	for _, t := range tiers {
		if !supported(t) {
			return nil, fmt.Errorf("unsupported tier %s", t)
		}
	}

	maxNumber := 0
	for _, d := range draws {
		for _, n := range d.Numbers {
			maxNumber = max(maxNumber, n)
		}
		maxNumber = max(maxNumber, d.Jolly)
	}
	words := maxNumber/64 + 1

	s := &IntegralScorer{
		draws: make([]preparedDraw, len(draws)),
		tiers: append([]ranking.Tier(nil), tiers...),
		k:     k,
		words: words,
	}
	for i, d := range draws {
		p := preparedDraw{mask: make([]uint64, words), jolly: d.Jolly}
		for _, n := range d.Numbers {
			p.mask[n/64] |= 1 << (uint(n) % 64)
		}
		s.draws[i] = p
	}
	return s, nil
}

func supported(t ranking.Tier) bool {
	for _, s := range AllTiers {
		if s == t {
			return true
		}
	}
	return false
}

// Draws returns the number of draws the scorer evaluates against.
func (s *IntegralScorer) Draws() int {
	return len(s.draws)
}

type outcome struct {
	hits  int
	jolly bool
}

// stackWords covers numbers up to 255 without a heap-allocated mask.
const stackWords = 4

// Score returns the hit counts of subset for the configured tiers.
func (s *IntegralScorer) Score(subset []int) ranking.Score {
	var buf [stackWords]uint64
	var mask []uint64
	if s.words <= stackWords {
		mask = buf[:s.words]
	} else {
		mask = make([]uint64, s.words)
	}
	for _, n := range subset {
		if n >= 0 && n/64 < s.words {
			mask[n/64] |= 1 << (uint(n) % 64)
		}
	}

	// draws sharing (hits, jolly) contribute identically
	var outcomes [TicketSize + 1][2]int
	for _, d := range s.draws {
		h := 0
		for w, m := range d.mask {
			h += bits.OnesCount64(m & mask[w])
		}
		if h < 2 {
			continue
		}
		j := 0
		if mask[d.jolly/64]&(1<<(uint(d.jolly)%64)) != 0 {
			j = 1
		}
		outcomes[h][j]++
	}

	score := make(ranking.Score, len(s.tiers))
	for _, t := range s.tiers {
		score[t] = 0
	}
	for h := 2; h <= TicketSize; h++ {
		for j, times := range outcomes[h] {
			if times == 0 {
				continue
			}
			o := outcome{hits: h, jolly: j == 1}
			for _, t := range s.tiers {
				score[t] += times * s.wins(t, o)
			}
		}
	}
	return score
}

// wins counts the tickets of a k-subset winning tier t in one draw where h
// subset numbers were drawn.
func (s *IntegralScorer) wins(t ranking.Tier, o outcome) int {
	miss := s.k - o.hits
	switch t {
	case TierSix:
		return choose(o.hits, 6)
	case TierFivePlus:
		if o.jolly {
			return choose(o.hits, 5)
		}
		return 0
	case TierFive:
		five := choose(o.hits, 5) * miss
		if o.jolly {
			five -= choose(o.hits, 5)
		}
		return five
	case TierFour:
		return choose(o.hits, 4) * choose(miss, 2)
	case TierThree:
		return choose(o.hits, 3) * choose(miss, 3)
	case TierTwo:
		return choose(o.hits, 2) * choose(miss, 4)
	}
	return 0
}

// choose is C(n, k), zero when k is out of range.
func choose(n, k int) int {
	if k < 0 || n < 0 || k > n {
		return 0
	}
	return combin.Binomial(n, k)
}
