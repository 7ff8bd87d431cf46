// Package combinatorics maps dense integer indexes to k-element subsets of a
// number universe and back.
//
// Subsets are ordered lexicographically over universe positions: index 0 is
// the first k positions, the last index is the final k positions. Sizes and
// indexes are *big.Int because realistic spaces do not fit 64 bits.
package combinatorics

import (
	"errors"
	"fmt"
	"math/big"
)

var (
	// ErrSpaceTooLarge is returned when a size or count is requested as a
	// machine integer but does not fit one.
	ErrSpaceTooLarge = errors.New("combination space exceeds 64-bit range")
	// ErrIndexesNotFound is returned when some requested indexes lie outside
	// the space.
	ErrIndexesNotFound = errors.New("indexes not found in combination space")
	// ErrNotInSpace is returned when a subset cannot be ranked in the space.
	ErrNotInSpace = errors.New("subset is not part of combination space")
)

// Space is the immutable set of all k-subsets of an ordered universe.
type Space struct {
	universe  []int
	positions map[int]int
	k         int
	size      *big.Int
	// binom[m][r] = C(m, r) for m <= n, r <= k
	binom [][]*big.Int
}

// NewSpace builds the space of k-subsets of universe. The universe is copied
// and must not contain duplicates.
func NewSpace(universe []int, k int) (*Space, error) {
	n := len(universe)
	if k < 0 {
		return nil, fmt.Errorf("invalid subset size %d", k)
	}
	if k > n {
		return nil, fmt.Errorf("subset size %d exceeds universe size %d", k, n)
	}

	positions := make(map[int]int, n)
	for i, v := range universe {
		if _, dup := positions[v]; dup {
			return nil, fmt.Errorf("duplicate universe element %d", v)
		}
		positions[v] = i
	}

	s := &Space{
		universe:  append([]int(nil), universe...),
		positions: positions,
		k:         k,
		binom:     pascal(n, k),
	}
	s.size = s.binom[n][k]
	return s, nil
}

// pascal fills the binomial table up to C(n, k) with the additive rule, so
// no factorial of n is ever materialised.
func pascal(n, k int) [][]*big.Int {
	table := make([][]*big.Int, n+1)
	for m := 0; m <= n; m++ {
		table[m] = make([]*big.Int, k+1)
		for r := 0; r <= k; r++ {
			switch {
			case r == 0:
				table[m][r] = big.NewInt(1)
			case m == 0:
				table[m][r] = big.NewInt(0)
			default:
				table[m][r] = new(big.Int).Add(table[m-1][r-1], table[m-1][r])
			}
		}
	}
	return table
}

// Size returns C(n, k). The returned value is a copy.
func (s *Space) Size() *big.Int {
	return new(big.Int).Set(s.size)
}

// Uint64Size returns the size as uint64 or ErrSpaceTooLarge.
func (s *Space) Uint64Size() (uint64, error) {
	if !s.size.IsUint64() {
		return 0, fmt.Errorf("size %s: %w", s.size.String(), ErrSpaceTooLarge)
	}
	return s.size.Uint64(), nil
}

// K returns the subset size.
func (s *Space) K() int {
	return s.k
}

// Universe returns a copy of the universe.
func (s *Space) Universe() []int {
	return append([]int(nil), s.universe...)
}

// leaves returns the number of subsets reachable from a node that still has
// r elements to pick among the positions p..n-1.
func (s *Space) leaves(p, r int) *big.Int {
	n := len(s.universe)
	if r < 0 || r > n-p {
		return zero
	}
	return s.binom[n-p][r]
}

var (
	zero = big.NewInt(0)
	one  = big.NewInt(1)
)

// Contains reports whether idx is a valid index of the space.
func (s *Space) Contains(idx *big.Int) bool {
	return idx != nil && idx.Sign() >= 0 && idx.Cmp(s.size) < 0
}

// IndexOf returns the dense index of subset, which may be given in any order.
func (s *Space) IndexOf(subset []int) (*big.Int, error) {
	if len(subset) != s.k {
		return nil, fmt.Errorf("subset has %d elements, want %d: %w", len(subset), s.k, ErrNotInSpace)
	}

	chosen := make([]bool, len(s.universe))
	for _, v := range subset {
		p, ok := s.positions[v]
		if !ok {
			return nil, fmt.Errorf("element %d: %w", v, ErrNotInSpace)
		}
		if chosen[p] {
			return nil, fmt.Errorf("element %d repeated: %w", v, ErrNotInSpace)
		}
		chosen[p] = true
	}

	idx := new(big.Int)
	r := s.k
	for p := 0; p < len(s.universe) && r > 0; p++ {
		if chosen[p] {
			r--
			continue
		}
		// skipping p passes over every subset that includes it
		idx.Add(idx, s.leaves(p+1, r-1))
	}
	return idx, nil
}

// SubsetAt returns the subset at idx.
func (s *Space) SubsetAt(idx *big.Int) ([]int, error) {
	if !s.Contains(idx) {
		return nil, fmt.Errorf("index %v outside [0, %s): %w", idx, s.size.String(), ErrIndexesNotFound)
	}
	found, err := s.FindByIndexes([]*big.Int{idx})
	if err != nil {
		return nil, err
	}
	return found[idx.String()], nil
}

func (s *Space) values(positions []int) []int {
	out := make([]int, len(positions))
	for i, p := range positions {
		out[i] = s.universe[p]
	}
	return out
}
