// Package blocks partitions a combination space into contiguous resumable
// index ranges.
package blocks

import (
	"errors"
	"fmt"
	"math/big"
)

// ErrShapeMismatch is returned when two block lists describing the same space
// do not share the same partition.
var ErrShapeMismatch = errors.New("block partitions differ")

var one = big.NewInt(1)

// Block is an inclusive index range with the last fully processed index.
// Cursor is nil until the first index is processed; Cursor == End means the
// block is complete.
type Block struct {
	Start  *big.Int
	End    *big.Int
	Cursor *big.Int
}

// New returns a block covering [start, end] with no progress.
func New(start, end *big.Int) *Block {
	return &Block{Start: new(big.Int).Set(start), End: new(big.Int).Set(end)}
}

// IsComplete reports whether every index of the block has been processed.
func (b *Block) IsComplete() bool {
	return b.Cursor != nil && b.Cursor.Cmp(b.End) == 0
}

// ResumeIndex returns the first index not yet processed.
func (b *Block) ResumeIndex() *big.Int {
	if b.Cursor == nil {
		return new(big.Int).Set(b.Start)
	}
	return new(big.Int).Add(b.Cursor, one)
}

// Len returns the number of indexes covered by the block.
func (b *Block) Len() *big.Int {
	l := new(big.Int).Sub(b.End, b.Start)
	return l.Add(l, one)
}

// Processed returns how many indexes of the block have been processed.
func (b *Block) Processed() *big.Int {
	if b.Cursor == nil {
		return new(big.Int)
	}
	p := new(big.Int).Sub(b.Cursor, b.Start)
	return p.Add(p, one)
}

// Remaining returns how many indexes are left to process.
func (b *Block) Remaining() *big.Int {
	return new(big.Int).Sub(b.Len(), b.Processed())
}

// Advance moves the cursor to idx. Cursors never move backwards, and idx
// must lie inside the block.
func (b *Block) Advance(idx *big.Int) error {
	if idx.Cmp(b.Start) < 0 || idx.Cmp(b.End) > 0 {
		return fmt.Errorf("index %s outside block %s", idx.String(), b.String())
	}
	if b.Cursor != nil && idx.Cmp(b.Cursor) <= 0 {
		return nil
	}
	if b.Cursor == nil {
		b.Cursor = new(big.Int)
	}
	b.Cursor.Set(idx)
	return nil
}

// Clone returns a deep copy of the block.
func (b *Block) Clone() *Block {
	c := New(b.Start, b.End)
	if b.Cursor != nil {
		c.Cursor = new(big.Int).Set(b.Cursor)
	}
	return c
}

// SameRange reports whether both blocks cover the same indexes.
func (b *Block) SameRange(o *Block) bool {
	return b.Start.Cmp(o.Start) == 0 && b.End.Cmp(o.End) == 0
}

func (b *Block) String() string {
	cursor := "-"
	if b.Cursor != nil {
		cursor = b.Cursor.String()
	}
	return fmt.Sprintf("[%s..%s @%s]", b.Start.String(), b.End.String(), cursor)
}

// CloneAll deep-copies a block list.
func CloneAll(list []*Block) []*Block {
	out := make([]*Block, len(list))
	for i, b := range list {
		out[i] = b.Clone()
	}
	return out
}
