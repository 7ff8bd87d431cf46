package combinatorics

import (
	"fmt"
	"math/big"
	"sort"
)

// Combination is the subset currently visited by an iteration. It is reused
// between visits: copy what must outlive the callback.
type Combination struct {
	index     *big.Int
	positions []int
	numbers   []int
}

// Index returns the dense index of the subset. It must not be modified.
func (c *Combination) Index() *big.Int {
	return c.index
}

// Numbers returns the subset values in universe order. It must not be modified.
func (c *Combination) Numbers() []int {
	return c.numbers
}

// Copy returns the subset values in a fresh slice.
func (c *Combination) Copy() []int {
	return append([]int(nil), c.numbers...)
}

// Visitor receives every visited subset and returns false to stop.
type Visitor func(c *Combination) bool

// Iterate visits every subset in increasing index order.
func (s *Space) Iterate(visit Visitor) error {
	return s.IterateFrom(new(big.Int), visit)
}

// IterateFrom visits subsets in increasing index order starting at start.
// Subtrees lying entirely before start are skipped through their leaf count,
// so resuming costs O(n) regardless of how far start is.
func (s *Space) IterateFrom(start *big.Int, visit Visitor) error {
	if start == nil || start.Sign() < 0 || start.Cmp(s.size) > 0 {
		return fmt.Errorf("start %v outside [0, %s]: %w", start, s.size.String(), ErrIndexesNotFound)
	}
	if start.Cmp(s.size) == 0 {
		return nil
	}

	n, k := len(s.universe), s.k
	pos := s.descend(start)
	c := &Combination{
		index:     new(big.Int).Set(start),
		positions: pos,
		numbers:   make([]int, k),
	}

	for {
		for j, p := range pos {
			c.numbers[j] = s.universe[p]
		}
		if !visit(c) {
			return nil
		}

		// rightmost position that can still move right
		i := k - 1
		for i >= 0 && pos[i] == n-k+i {
			i--
		}
		if i < 0 {
			return nil
		}
		pos[i]++
		for j := i + 1; j < k; j++ {
			pos[j] = pos[j-1] + 1
		}
		c.index.Add(c.index, one)
	}
}

// descend walks the include/skip tree from the root to the leaf at idx.
func (s *Space) descend(idx *big.Int) []int {
	pos := make([]int, 0, s.k)
	rem := new(big.Int).Set(idx)
	r := s.k
	for p := 0; r > 0; p++ {
		inc := s.leaves(p+1, r-1)
		if rem.Cmp(inc) < 0 {
			pos = append(pos, p)
			r--
			continue
		}
		rem.Sub(rem, inc)
	}
	return pos
}

type frame struct {
	p     int
	r     int
	depth int
	base  *big.Int
}

// FindByIndexes resolves many indexes in a single traversal. The result is
// keyed by the decimal form of each index. Subtrees holding none of the
// pending indexes are pruned, and found indexes leave the working set.
func (s *Space) FindByIndexes(indexes []*big.Int) (map[string][]int, error) {
	pending := make([]*big.Int, 0, len(indexes))
	seen := make(map[string]struct{}, len(indexes))
	for _, idx := range indexes {
		if idx == nil {
			continue
		}
		key := idx.String()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		pending = append(pending, idx)
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].Cmp(pending[j]) < 0 })

	found := make(map[string][]int, len(pending))
	chosen := make([]int, s.k)
	stack := []frame{{p: 0, r: s.k, depth: 0, base: new(big.Int)}}
	limit := new(big.Int)

	for len(stack) > 0 && len(pending) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		count := s.leaves(f.p, f.r)
		if count.Sign() == 0 {
			continue
		}
		limit.Add(f.base, count)
		at := sort.Search(len(pending), func(i int) bool { return pending[i].Cmp(f.base) >= 0 })
		if at == len(pending) || pending[at].Cmp(limit) >= 0 {
			continue
		}

		if f.r == 0 {
			// leaf: f.base is the only index of this subtree
			found[pending[at].String()] = s.values(chosen[:f.depth])
			pending = append(pending[:at], pending[at+1:]...)
			continue
		}

		inc := s.leaves(f.p+1, f.r-1)
		stack = append(stack, frame{
			p:     f.p + 1,
			r:     f.r,
			depth: f.depth,
			base:  new(big.Int).Add(f.base, inc),
		})
		chosen[f.depth] = f.p
		stack = append(stack, frame{p: f.p + 1, r: f.r - 1, depth: f.depth + 1, base: f.base})
	}

	if len(pending) > 0 {
		return found, fmt.Errorf("%d of %d: %w", len(pending), len(seen), ErrIndexesNotFound)
	}
	return found, nil
}
