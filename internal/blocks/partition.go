package blocks

import (
	"fmt"
	"math/big"

	"github.com/aristath/lottoscan/internal/combinatorics"
)

// DefaultDivisor is the target number of indexes per block used by
// DefaultCount.
const DefaultDivisor int64 = 100_000_000

// DefaultCount returns max(2*k, size/divisor), at least 1.
func DefaultCount(size *big.Int, k int, divisor int64) (int, error) {
	if divisor <= 0 {
		divisor = DefaultDivisor
	}
	byDivisor := new(big.Int).Quo(size, big.NewInt(divisor))
	if !byDivisor.IsInt64() || byDivisor.Int64() > int64(maxInt) {
		return 0, fmt.Errorf("block count %s: %w", byDivisor.String(), combinatorics.ErrSpaceTooLarge)
	}

	count := int(byDivisor.Int64())
	if 2*k > count {
		count = 2 * k
	}
	if count < 1 {
		count = 1
	}
	return count, nil
}

const maxInt = int(^uint(0) >> 1)

// Partition splits [0, size) into count contiguous blocks. The first
// size mod count blocks hold one extra index. When size is smaller than
// count, one block per index is returned; an empty space has no blocks.
func Partition(size *big.Int, count int) ([]*Block, error) {
	if count < 1 {
		return nil, fmt.Errorf("invalid block count %d", count)
	}
	if size.Sign() < 0 {
		return nil, fmt.Errorf("invalid space size %s", size.String())
	}
	if size.Sign() == 0 {
		return []*Block{}, nil
	}

	n := big.NewInt(int64(count))
	if size.Cmp(n) < 0 {
		n.Set(size)
	}
	base, extra := new(big.Int).QuoRem(size, n, new(big.Int))

	total := int(n.Int64())
	out := make([]*Block, 0, total)
	start := new(big.Int)
	for i := 0; i < total; i++ {
		length := new(big.Int).Set(base)
		if big.NewInt(int64(i)).Cmp(extra) < 0 {
			length.Add(length, one)
		}
		end := new(big.Int).Add(start, length)
		end.Sub(end, one)
		out = append(out, New(start, end))
		start = end.Add(end, one)
	}
	return out, nil
}

// Merge folds loaded progress into local: at every position the higher
// cursor wins. Both lists must describe the same partition.
func Merge(local, loaded []*Block) error {
	if len(local) != len(loaded) {
		return fmt.Errorf("%d local vs %d loaded blocks: %w", len(local), len(loaded), ErrShapeMismatch)
	}
	for i, b := range local {
		o := loaded[i]
		if !b.SameRange(o) {
			return fmt.Errorf("block %d %s vs %s: %w", i, b, o, ErrShapeMismatch)
		}
		if o.Cursor == nil {
			continue
		}
		if err := b.Advance(o.Cursor); err != nil {
			return fmt.Errorf("merge block %d: %w", i, err)
		}
	}
	return nil
}

// ProcessedTotal sums processed indexes over all blocks.
func ProcessedTotal(list []*Block) *big.Int {
	total := new(big.Int)
	for _, b := range list {
		total.Add(total, b.Processed())
	}
	return total
}

// RemainingTotal sums unprocessed indexes over all blocks.
func RemainingTotal(list []*Block) *big.Int {
	total := new(big.Int)
	for _, b := range list {
		total.Add(total, b.Remaining())
	}
	return total
}

// CompleteCount returns how many blocks are complete.
func CompleteCount(list []*Block) int {
	n := 0
	for _, b := range list {
		if b.IsComplete() {
			n++
		}
	}
	return n
}

// Incomplete returns the blocks that still have work, in order.
func Incomplete(list []*Block) []*Block {
	out := make([]*Block, 0, len(list))
	for _, b := range list {
		if !b.IsComplete() {
			out = append(out, b)
		}
	}
	return out
}
