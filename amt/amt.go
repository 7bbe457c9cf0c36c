// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package amt implements an array mapped trie: a persistent, content-addressed
// array of ids.ID values indexed by dense uint64 keys.
//
// Each node has 2^BitWidth slots. The trie is kept in canonical form: its
// height is the smallest that addresses the largest set index, and empty
// nodes are removed. Two tries holding the same entries therefore flush to the
// same root id, regardless of the order of the operations that built them.
//
// An AMT is not safe for concurrent use.
package amt

import (
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/accumulatorvm/blockstore"
)

const (
	DefaultBitWidth uint8 = 3
	MinBitWidth     uint8 = 1
	MaxBitWidth     uint8 = 6

	// MaxIndex is the largest index that can be set.
	MaxIndex uint64 = 1<<63 - 1
)

var (
	ErrNotFound        = errors.New("index not found")
	ErrIndexTooLarge   = errors.New("index exceeds maximum")
	ErrInvalidBitWidth = errors.New("invalid bit width")
	ErrMalformedNode   = errors.New("malformed node")
)

// AMT is an array mapped trie. Changes are held in memory until Flush.
type AMT struct {
	store blockstore.Blockstore

	bitWidth uint8
	height   uint8
	count    uint64
	root     *node
}

// New returns an empty trie with nodes of 2^[bitWidth] slots.
func New(store blockstore.Blockstore, bitWidth uint8) (*AMT, error) {
	if bitWidth < MinBitWidth || bitWidth > MaxBitWidth {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBitWidth, bitWidth)
	}
	a := &AMT{
		store:    store,
		bitWidth: bitWidth,
	}
	a.root = newNode(a.width(), 0)
	return a, nil
}

// Load returns the trie whose root was flushed as [id].
func Load(store blockstore.Blockstore, id ids.ID) (*AMT, error) {
	bytes, err := store.Get(id)
	if err != nil {
		return nil, fmt.Errorf("failed to load trie root %s: %w", id, err)
	}

	r := root{}
	if _, err := Codec.Unmarshal(bytes, &r); err != nil {
		return nil, fmt.Errorf("%w: failed to parse trie root %s: %v", ErrMalformedNode, id, err)
	}
	if r.BitWidth < MinBitWidth || r.BitWidth > MaxBitWidth {
		return nil, fmt.Errorf("%w: root has bit width %d", ErrMalformedNode, r.BitWidth)
	}
	if uint(r.BitWidth)*uint(r.Height) > 63 {
		return nil, fmt.Errorf("%w: root has height %d", ErrMalformedNode, r.Height)
	}

	a := &AMT{
		store:    store,
		bitWidth: r.BitWidth,
		height:   r.Height,
		count:    r.Count,
	}
	a.root, err = expand(&r.Node, a.width(), r.Height, true)
	if err != nil {
		return nil, err
	}
	if a.height > 0 && (a.root.empty() || a.root.bmap == 1) {
		return nil, fmt.Errorf("%w: root of height %d is not minimal", ErrMalformedNode, a.height)
	}
	return a, nil
}

// BitWidth returns log2 of the number of slots per node.
func (a *AMT) BitWidth() uint8 { return a.bitWidth }

// Height returns the number of interior levels above the leaves.
func (a *AMT) Height() uint8 { return a.height }

// Count returns the number of set indices.
func (a *AMT) Count() uint64 { return a.count }

// Get returns the value at [i].
func (a *AMT) Get(i uint64) (ids.ID, error) {
	if i > MaxIndex || !a.fits(a.height, i) {
		return ids.Empty, fmt.Errorf("%w: %d", ErrNotFound, i)
	}

	n := a.root
	for height := a.height; height > 0; height-- {
		shift := uint(a.bitWidth) * uint(height)
		slot := (i >> shift) & a.mask()
		if !n.has(slot) {
			return ids.Empty, fmt.Errorf("%w: %d", ErrNotFound, i)
		}
		child, err := a.loadLink(n.links[slot], height-1)
		if err != nil {
			return ids.Empty, err
		}
		n = child
	}

	slot := i & a.mask()
	if !n.has(slot) {
		return ids.Empty, fmt.Errorf("%w: %d", ErrNotFound, i)
	}
	return n.values[slot], nil
}

// Set stores [v] at [i], replacing any previous value.
func (a *AMT) Set(i uint64, v ids.ID) error {
	if i > MaxIndex {
		return fmt.Errorf("%w: %d", ErrIndexTooLarge, i)
	}

	for !a.fits(a.height, i) {
		if a.root.empty() {
			a.height++
			a.root = newNode(a.width(), a.height)
			continue
		}
		grown := newNode(a.width(), a.height+1)
		grown.links[0] = &link{cached: a.root, dirty: true}
		grown.bmap = 1
		a.root = grown
		a.height++
	}

	added, err := a.set(a.root, a.height, i, v)
	if err != nil {
		return err
	}
	if added {
		a.count++
	}
	return nil
}

func (a *AMT) set(n *node, height uint8, i uint64, v ids.ID) (bool, error) {
	if height == 0 {
		slot := i & a.mask()
		added := !n.has(slot)
		n.values[slot] = v
		n.bmap |= 1 << slot
		return added, nil
	}

	shift := uint(a.bitWidth) * uint(height)
	slot := (i >> shift) & a.mask()
	l := n.links[slot]
	if l == nil {
		l = &link{cached: newNode(a.width(), height-1), dirty: true}
		n.links[slot] = l
		n.bmap |= 1 << slot
	}
	child, err := a.loadLink(l, height-1)
	if err != nil {
		return false, err
	}
	l.dirty = true
	return a.set(child, height-1, i&(1<<shift-1), v)
}

// Delete removes the value at [i]. It fails with ErrNotFound if [i] is unset.
func (a *AMT) Delete(i uint64) error {
	if i > MaxIndex || !a.fits(a.height, i) {
		return fmt.Errorf("%w: %d", ErrNotFound, i)
	}
	if err := a.delete(a.root, a.height, i); err != nil {
		return err
	}
	a.count--

	// Collapse the root while everything lives under its first slot.
	for a.height > 0 && a.root.bmap == 1 {
		child, err := a.loadLink(a.root.links[0], a.height-1)
		if err != nil {
			return err
		}
		a.root = child
		a.height--
	}
	if a.root.empty() && a.height > 0 {
		a.height = 0
		a.root = newNode(a.width(), 0)
	}
	return nil
}

func (a *AMT) delete(n *node, height uint8, i uint64) error {
	if height == 0 {
		slot := i & a.mask()
		if !n.has(slot) {
			return fmt.Errorf("%w: %d", ErrNotFound, i)
		}
		n.values[slot] = ids.Empty
		n.bmap &^= 1 << slot
		return nil
	}

	shift := uint(a.bitWidth) * uint(height)
	slot := (i >> shift) & a.mask()
	if !n.has(slot) {
		return fmt.Errorf("%w: %d", ErrNotFound, i)
	}
	l := n.links[slot]
	child, err := a.loadLink(l, height-1)
	if err != nil {
		return err
	}
	if err := a.delete(child, height-1, i&(1<<shift-1)); err != nil {
		return err
	}
	if child.empty() {
		n.links[slot] = nil
		n.bmap &^= 1 << slot
		return nil
	}
	l.dirty = true
	return nil
}

// ForEach calls [fn] for every set index in ascending order. Iteration stops
// at the first error, which is returned.
func (a *AMT) ForEach(fn func(i uint64, v ids.ID) error) error {
	return a.forEach(a.root, a.height, 0, fn)
}

func (a *AMT) forEach(n *node, height uint8, offset uint64, fn func(uint64, ids.ID) error) error {
	width := a.width()
	if height == 0 {
		for slot := uint64(0); slot < width; slot++ {
			if !n.has(slot) {
				continue
			}
			if err := fn(offset+slot, n.values[slot]); err != nil {
				return err
			}
		}
		return nil
	}

	shift := uint(a.bitWidth) * uint(height)
	for slot := uint64(0); slot < width; slot++ {
		if !n.has(slot) {
			continue
		}
		child, err := a.loadLink(n.links[slot], height-1)
		if err != nil {
			return err
		}
		if err := a.forEach(child, height-1, offset+slot<<shift, fn); err != nil {
			return err
		}
	}
	return nil
}

// Flush writes every modified node to the blockstore and returns the id of
// the root.
func (a *AMT) Flush() (ids.ID, error) {
	data, err := a.flush(a.root, a.height)
	if err != nil {
		return ids.Empty, err
	}
	r := root{
		BitWidth: a.bitWidth,
		Height:   a.height,
		Count:    a.count,
		Node:     data,
	}
	bytes, err := Codec.Marshal(CodecVersion, &r)
	if err != nil {
		return ids.Empty, fmt.Errorf("failed to marshal trie root: %w", err)
	}
	return a.store.Put(bytes)
}

func (a *AMT) flush(n *node, height uint8) (nodeData, error) {
	data := nodeData{Bmap: n.bmap}
	width := a.width()
	if height == 0 {
		for slot := uint64(0); slot < width; slot++ {
			if n.has(slot) {
				data.Values = append(data.Values, n.values[slot])
			}
		}
		return data, nil
	}

	for slot := uint64(0); slot < width; slot++ {
		if !n.has(slot) {
			continue
		}
		l := n.links[slot]
		if l.dirty {
			childData, err := a.flush(l.cached, height-1)
			if err != nil {
				return nodeData{}, err
			}
			bytes, err := Codec.Marshal(CodecVersion, &childData)
			if err != nil {
				return nodeData{}, fmt.Errorf("failed to marshal trie node: %w", err)
			}
			id, err := a.store.Put(bytes)
			if err != nil {
				return nodeData{}, err
			}
			l.id = id
			l.dirty = false
		}
		data.Links = append(data.Links, l.id)
	}
	return data, nil
}

func (a *AMT) loadLink(l *link, height uint8) (*node, error) {
	if l.cached != nil {
		return l.cached, nil
	}
	bytes, err := a.store.Get(l.id)
	if err != nil {
		return nil, fmt.Errorf("failed to load trie node %s: %w", l.id, err)
	}
	data := nodeData{}
	if _, err := Codec.Unmarshal(bytes, &data); err != nil {
		return nil, fmt.Errorf("%w: failed to parse trie node %s: %v", ErrMalformedNode, l.id, err)
	}
	n, err := expand(&data, a.width(), height, false)
	if err != nil {
		return nil, err
	}
	l.cached = n
	return n, nil
}

func (a *AMT) width() uint64 { return 1 << a.bitWidth }

func (a *AMT) mask() uint64 { return a.width() - 1 }

// fits reports whether a trie of [height] can address [i].
func (a *AMT) fits(height uint8, i uint64) bool {
	shift := uint(a.bitWidth) * (uint(height) + 1)
	if shift >= 64 {
		return true
	}
	return i < 1<<shift
}
