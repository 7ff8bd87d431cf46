package assignment

import (
	"fmt"
	"math/rand"

	"github.com/aristath/lottoscan/internal/blocks"
)

// Shuffler randomises the order of n elements. *rand.Rand satisfies it.
type Shuffler interface {
	Shuffle(n int, swap func(i, j int))
}

type globalShuffler struct{}

func (globalShuffler) Shuffle(n int, swap func(i, j int)) { rand.Shuffle(n, swap) }

// Plan returns the incomplete blocks assigned to worker, in scan order.
// Blocks are returned by reference so progress made on them is visible to
// the caller. A nil shuffler uses the global random source.
func Plan(list []*blocks.Block, rule Rule, worker string, shuffler Shuffler) ([]*blocks.Block, error) {
	if shuffler == nil {
		shuffler = globalShuffler{}
	}

	selected := list
	shuffle := false
	if !rule.Empty() {
		selected = nil
		for _, c := range rule.Clauses {
			if !c.matches(worker) {
				continue
			}
			var err error
			selected, err = c.apply(list)
			if err != nil {
				return nil, err
			}
			shuffle = c.Shuffle
			break
		}
	}

	out := make([]*blocks.Block, 0, len(selected))
	for _, b := range selected {
		if !b.IsComplete() {
			out = append(out, b)
		}
	}
	if shuffle {
		shuffler.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	}
	return out, nil
}

// apply resolves the clause selectors against list, without duplicates and
// in first-selected order.
func (c Clause) apply(list []*blocks.Block) ([]*blocks.Block, error) {
	seen := make(map[int]bool, len(list))
	var out []*blocks.Block
	add := func(i int) {
		if !seen[i] {
			seen[i] = true
			out = append(out, list[i])
		}
	}

	for _, s := range c.selectors {
		switch s.kind {
		case selectAll:
			for i := range list {
				add(i)
			}
		case selectOdd:
			for i := 0; i < len(list); i += 2 {
				add(i)
			}
		case selectEven:
			for i := 1; i < len(list); i += 2 {
				add(i)
			}
		case selectSlice:
			chunk := (len(list) + s.of - 1) / s.of
			from := (s.index - 1) * chunk
			to := from + chunk
			if to > len(list) {
				to = len(list)
			}
			for i := from; i < to; i++ {
				add(i)
			}
		case selectPosition:
			if s.index > len(list) {
				return nil, fmt.Errorf("block position %d out of range (%d blocks)", s.index, len(list))
			}
			add(s.index - 1)
		}
	}
	return out, nil
}
