// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package mmr implements an append-only, content-addressed log of byte values
// indexed by position.
//
// The log is a Merkle mountain range. Each value is stored as a leaf block,
// leaves are merged pairwise into perfect binary trees, and the roots of those
// trees (the peaks) are kept in an AMT, largest tree first. Appending a leaf
// merges one pair per trailing one bit of the previous leaf count, so the
// shape of the range depends only on the number of leaves.
//
// The log root is the id of a header block recording the leaf count and the
// peaks trie. It is a pure function of the appended sequence.
package mmr

import (
	"errors"
	"fmt"
	"math"
	"math/bits"

	"github.com/ava-labs/avalanchego/database/memdb"
	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/accumulatorvm/amt"
	"github.com/ava-labs/accumulatorvm/blockstore"
)

var (
	ErrNotFound  = errors.New("leaf not found")
	ErrMalformed = errors.New("malformed log")
	ErrFull      = errors.New("log is full")
)

type header struct {
	LeafCount uint64 `serialize:"true"`
	Peaks     ids.ID `serialize:"true"`
}

type pair struct {
	Left  ids.ID `serialize:"true"`
	Right ids.ID `serialize:"true"`
}

// Entry is a value read back from the log.
type Entry struct {
	Index uint64
	Hash  ids.ID
	Value []byte
}

// Log is an open Merkle mountain range. Appends are held in memory until Flush
// except for leaf and pair blocks, which are written as they are created.
type Log struct {
	store     blockstore.Blockstore
	leafCount uint64
	peaks     *amt.AMT
}

// New returns an empty log whose peaks trie uses nodes of 2^[bitWidth] slots.
func New(store blockstore.Blockstore, bitWidth uint8) (*Log, error) {
	peaks, err := amt.New(store, bitWidth)
	if err != nil {
		return nil, err
	}
	return &Log{
		store: store,
		peaks: peaks,
	}, nil
}

// Empty writes an empty log to [store] and returns its root.
func Empty(store blockstore.Blockstore, bitWidth uint8) (ids.ID, error) {
	l, err := New(store, bitWidth)
	if err != nil {
		return ids.Empty, err
	}
	return l.Flush()
}

// EmptyRoot returns the root of an empty log without persisting it.
func EmptyRoot(bitWidth uint8) (ids.ID, error) {
	return Empty(blockstore.New(memdb.New()), bitWidth)
}

// Load opens the log flushed as [root].
func Load(store blockstore.Blockstore, root ids.ID) (*Log, error) {
	bytes, err := store.Get(root)
	if err != nil {
		return nil, fmt.Errorf("failed to load log header %s: %w", root, err)
	}
	h := header{}
	if _, err := Codec.Unmarshal(bytes, &h); err != nil {
		return nil, fmt.Errorf("%w: failed to parse log header %s: %v", ErrMalformed, root, err)
	}
	peaks, err := amt.Load(store, h.Peaks)
	if err != nil {
		return nil, fmt.Errorf("failed to load peaks of log %s: %w", root, err)
	}
	if want := uint64(bits.OnesCount64(h.LeafCount)); peaks.Count() != want {
		return nil, fmt.Errorf("%w: %d leaves need %d peaks, found %d",
			ErrMalformed, h.LeafCount, want, peaks.Count())
	}
	return &Log{
		store:     store,
		leafCount: h.LeafCount,
		peaks:     peaks,
	}, nil
}

// Count returns the number of leaves.
func (l *Log) Count() uint64 { return l.leafCount }

// BitWidth returns the bit width of the peaks trie.
func (l *Log) BitWidth() uint8 { return l.peaks.BitWidth() }

// Append stores [value] as the next leaf and returns its index and hash.
func (l *Log) Append(value []byte) (uint64, ids.ID, error) {
	if l.leafCount == math.MaxUint64 {
		return 0, ids.Empty, ErrFull
	}
	leaf, err := l.store.Put(value)
	if err != nil {
		return 0, ids.Empty, fmt.Errorf("failed to put leaf: %w", err)
	}
	if err := l.push(leaf); err != nil {
		return 0, ids.Empty, err
	}

	// Every trailing one of the previous leaf count is a pair of equal
	// height trees at the end of the range that now merge.
	for merges := bits.TrailingZeros64(^l.leafCount); merges > 0; merges-- {
		right, err := l.pop()
		if err != nil {
			return 0, ids.Empty, err
		}
		left, err := l.pop()
		if err != nil {
			return 0, ids.Empty, err
		}
		parent, err := l.putPair(left, right)
		if err != nil {
			return 0, ids.Empty, err
		}
		if err := l.push(parent); err != nil {
			return 0, ids.Empty, err
		}
	}

	index := l.leafCount
	l.leafCount++
	return index, leaf, nil
}

// Get returns the value and hash of leaf [index].
func (l *Log) Get(index uint64) ([]byte, ids.ID, error) {
	id, err := l.leaf(index)
	if err != nil {
		return nil, ids.Empty, err
	}
	value, err := l.store.Get(id)
	if err != nil {
		return nil, ids.Empty, fmt.Errorf("failed to get leaf %d: %w", index, err)
	}
	return value, id, nil
}

// GetRange returns [count] consecutive leaves starting at [start]. It fails
// with ErrNotFound unless the whole range exists.
func (l *Log) GetRange(start, count uint64) ([]Entry, error) {
	end := start + count
	if end < start || end > l.leafCount {
		return nil, fmt.Errorf("%w: range [%d, %d+%d) of %d", ErrNotFound, start, start, count, l.leafCount)
	}
	entries := make([]Entry, 0, count)
	for i := start; i < end; i++ {
		value, hash, err := l.Get(i)
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{
			Index: i,
			Hash:  hash,
			Value: value,
		})
	}
	return entries, nil
}

// Peaks returns the peak ids, largest tree first.
func (l *Log) Peaks() ([]ids.ID, error) {
	peaks := make([]ids.ID, 0, l.peaks.Count())
	err := l.peaks.ForEach(func(_ uint64, peak ids.ID) error {
		peaks = append(peaks, peak)
		return nil
	})
	return peaks, err
}

// Commitment bags the peaks from right to left into a single id. It is
// ids.Empty for an empty log and the only peak for a perfect tree.
func (l *Log) Commitment() (ids.ID, error) {
	peaks, err := l.Peaks()
	if err != nil {
		return ids.Empty, err
	}
	return Bag(peaks)
}

// Bag folds [peaks] from right to left.
func Bag(peaks []ids.ID) (ids.ID, error) {
	switch len(peaks) {
	case 0:
		return ids.Empty, nil
	case 1:
		return peaks[0], nil
	}
	n := len(peaks)
	root, err := hashPair(peaks[n-2], peaks[n-1])
	if err != nil {
		return ids.Empty, err
	}
	for i := n - 3; i >= 0; i-- {
		root, err = hashPair(peaks[i], root)
		if err != nil {
			return ids.Empty, err
		}
	}
	return root, nil
}

// Flush persists the peaks trie and the header and returns the log root.
func (l *Log) Flush() (ids.ID, error) {
	peaks, err := l.peaks.Flush()
	if err != nil {
		return ids.Empty, fmt.Errorf("failed to flush peaks: %w", err)
	}
	h := header{
		LeafCount: l.leafCount,
		Peaks:     peaks,
	}
	bytes, err := Codec.Marshal(CodecVersion, &h)
	if err != nil {
		return ids.Empty, fmt.Errorf("failed to marshal log header: %w", err)
	}
	return l.store.Put(bytes)
}

func (l *Log) leaf(index uint64) (ids.ID, error) {
	path, peak, err := eigenPath(index, l.leafCount)
	if err != nil {
		return ids.Empty, err
	}
	id, err := l.peaks.Get(peak)
	if err != nil {
		return ids.Empty, fmt.Errorf("%w: missing peak %d: %v", ErrMalformed, peak, err)
	}
	for level := bits.Len64(path) - 2; level >= 0; level-- {
		p, err := l.getPair(id)
		if err != nil {
			return ids.Empty, err
		}
		if path>>uint(level)&1 == 0 {
			id = p.Left
		} else {
			id = p.Right
		}
	}
	return id, nil
}

func (l *Log) push(id ids.ID) error {
	return l.peaks.Set(l.peaks.Count(), id)
}

func (l *Log) pop() (ids.ID, error) {
	last := l.peaks.Count() - 1
	id, err := l.peaks.Get(last)
	if err != nil {
		return ids.Empty, fmt.Errorf("%w: missing peak %d: %v", ErrMalformed, last, err)
	}
	if err := l.peaks.Delete(last); err != nil {
		return ids.Empty, err
	}
	return id, nil
}

func (l *Log) getPair(id ids.ID) (pair, error) {
	bytes, err := l.store.Get(id)
	if err != nil {
		return pair{}, fmt.Errorf("failed to get pair node %s: %w", id, err)
	}
	p := pair{}
	if _, err := Codec.Unmarshal(bytes, &p); err != nil {
		return pair{}, fmt.Errorf("%w: failed to parse pair node %s: %v", ErrMalformed, id, err)
	}
	return p, nil
}

func (l *Log) putPair(left, right ids.ID) (ids.ID, error) {
	bytes, err := marshalPair(left, right)
	if err != nil {
		return ids.Empty, err
	}
	return l.store.Put(bytes)
}

func hashPair(left, right ids.ID) (ids.ID, error) {
	bytes, err := marshalPair(left, right)
	if err != nil {
		return ids.Empty, err
	}
	return blockstore.ID(bytes), nil
}

func marshalPair(left, right ids.ID) ([]byte, error) {
	bytes, err := Codec.Marshal(CodecVersion, &pair{Left: left, Right: right})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal pair node: %w", err)
	}
	return bytes, nil
}

// Append adds [value] to the log at [root] and returns the new root, the
// index of the value and its hash.
func Append(store blockstore.Blockstore, root ids.ID, value []byte) (ids.ID, uint64, ids.ID, error) {
	l, err := Load(store, root)
	if err != nil {
		return ids.Empty, 0, ids.Empty, err
	}
	index, hash, err := l.Append(value)
	if err != nil {
		return ids.Empty, 0, ids.Empty, err
	}
	newRoot, err := l.Flush()
	if err != nil {
		return ids.Empty, 0, ids.Empty, err
	}
	return newRoot, index, hash, nil
}

// Get returns the value and hash at [index] of the log at [root].
func Get(store blockstore.Blockstore, root ids.ID, index uint64) ([]byte, ids.ID, error) {
	l, err := Load(store, root)
	if err != nil {
		return nil, ids.Empty, err
	}
	return l.Get(index)
}

// GetRange returns [count] entries starting at [start] of the log at [root].
func GetRange(store blockstore.Blockstore, root ids.ID, start, count uint64) ([]Entry, error) {
	l, err := Load(store, root)
	if err != nil {
		return nil, err
	}
	return l.GetRange(start, count)
}
