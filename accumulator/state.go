// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package accumulator

import (
	"errors"
	"fmt"
	"math"

	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/accumulatorvm/amt"
	"github.com/ava-labs/accumulatorvm/blockstore"
	"github.com/ava-labs/accumulatorvm/machine"
	"github.com/ava-labs/accumulatorvm/mmr"
)

// State is the persisted record of an accumulator. A State is never modified
// in place, Push returns its successor.
type State struct {
	// Root of the log holding the entries.
	Root     ids.ID `serialize:"true"`
	Count    uint64 `serialize:"true"`
	ByteSize uint64 `serialize:"true"`

	HasCapacity bool   `serialize:"true"`
	Capacity    uint64 `serialize:"true"`

	Machine machine.Metadata `serialize:"true"`
}

// NewState writes an empty log to [store] and returns a record pointing at it.
func NewState(store blockstore.Blockstore, md machine.Metadata, hasCapacity bool, capacity uint64, bitWidth uint8) (*State, error) {
	root, err := mmr.Empty(store, bitWidth)
	if err != nil {
		return nil, classify(err)
	}
	s := &State{
		Root:        root,
		HasCapacity: hasCapacity,
		Machine:     md,
	}
	if hasCapacity {
		s.Capacity = capacity
	}
	return s, nil
}

// LoadState reads the record stored as [head].
func LoadState(store blockstore.Blockstore, head ids.ID) (*State, error) {
	bytes, err := store.Get(head)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get state %s: %v", ErrIllegalState, head, err)
	}
	s := &State{}
	if _, err := Codec.Unmarshal(bytes, s); err != nil {
		return nil, fmt.Errorf("%w: failed to parse state %s: %v", ErrIllegalState, head, err)
	}
	if s.HasCapacity && s.Count > s.Capacity {
		return nil, fmt.Errorf("%w: %d entries exceed capacity %d", ErrIllegalState, s.Count, s.Capacity)
	}
	return s, nil
}

// Save writes the record to [store] and returns its head id.
func (s *State) Save(store blockstore.Blockstore) (ids.ID, error) {
	bytes, err := Codec.Marshal(CodecVersion, s)
	if err != nil {
		return ids.Empty, fmt.Errorf("%w: failed to marshal state: %v", ErrEncoding, err)
	}
	head, err := store.Put(bytes)
	if err != nil {
		return ids.Empty, fmt.Errorf("%w: failed to put state: %v", ErrIllegalState, err)
	}
	return head, nil
}

// Full reports whether another entry would exceed the capacity.
func (s *State) Full() bool {
	return s.HasCapacity && s.Count >= s.Capacity
}

// Summary is the record without the machine metadata.
func (s *State) Summary() *RootReturn {
	return &RootReturn{
		Root:        s.Root,
		Count:       s.Count,
		ByteSize:    s.ByteSize,
		HasCapacity: s.HasCapacity,
		Capacity:    s.Capacity,
	}
}

// Push appends [data] to the log and returns the successor record together
// with the index and hash of the entry. [s] is left untouched.
func (s *State) Push(store blockstore.Blockstore, data []byte) (*State, *PushReturn, error) {
	if s.Full() {
		return nil, nil, fmt.Errorf("%w: %d of %d", ErrCapacityExceeded, s.Count, s.Capacity)
	}
	if len(data) > MaxPayloadSize {
		return nil, nil, fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, len(data), MaxPayloadSize)
	}
	size := uint64(len(data))
	if s.ByteSize > math.MaxUint64-size {
		return nil, nil, fmt.Errorf("%w: byte size overflow", ErrIllegalState)
	}
	hash := blockstore.ID(data)

	l, err := s.open(store)
	if err != nil {
		return nil, nil, err
	}
	index, leaf, err := l.Append(data)
	if err != nil {
		return nil, nil, classify(err)
	}
	root, err := l.Flush()
	if err != nil {
		return nil, nil, classify(err)
	}
	if leaf != hash || index != s.Count {
		return nil, nil, fmt.Errorf("%w: appended %s at %d, expected %s at %d",
			ErrIllegalState, leaf, index, hash, s.Count)
	}

	next := *s
	next.Root = root
	next.Count++
	next.ByteSize += size
	return &next, &PushReturn{
		Index: index,
		Hash:  hash,
		Root:  root,
	}, nil
}

// Get returns the entry at [index].
func (s *State) Get(store blockstore.Blockstore, index uint64) (*GetReturn, error) {
	l, err := s.open(store)
	if err != nil {
		return nil, err
	}
	data, hash, err := l.Get(index)
	if err != nil {
		return nil, classify(err)
	}
	return &GetReturn{
		Data: data,
		Hash: hash,
	}, nil
}

// GetRange returns [count] entries starting at [start], or none at all. It
// fails with ErrRangeTooLarge when the entries do not fit in one reply.
func (s *State) GetRange(store blockstore.Blockstore, start, count uint64) (*GetRangeReturn, error) {
	l, err := s.open(store)
	if err != nil {
		return nil, err
	}
	entries, err := l.GetRange(start, count)
	if err != nil {
		return nil, classify(err)
	}
	reply := &GetRangeReturn{Entries: make([]Entry, len(entries))}
	for i, entry := range entries {
		reply.Entries[i] = Entry{
			Index: entry.Index,
			Hash:  entry.Hash,
			Data:  entry.Value,
		}
	}
	size, err := Codec.Size(CodecVersion, reply)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to size range: %v", ErrEncoding, err)
	}
	if size > MaxMessageSize {
		return nil, fmt.Errorf("%w: %d entries from %d take %d bytes", ErrRangeTooLarge, count, start, size)
	}
	return reply, nil
}

// Peaks returns the peaks of the log and their bagged commitment.
func (s *State) Peaks(store blockstore.Blockstore) (*PeaksReturn, error) {
	l, err := s.open(store)
	if err != nil {
		return nil, err
	}
	peaks, err := l.Peaks()
	if err != nil {
		return nil, classify(err)
	}
	commitment, err := mmr.Bag(peaks)
	if err != nil {
		return nil, classify(err)
	}
	return &PeaksReturn{
		Peaks:      peaks,
		Commitment: commitment,
	}, nil
}

// open loads the log and checks that it agrees with the record.
func (s *State) open(store blockstore.Blockstore) (*mmr.Log, error) {
	l, err := mmr.Load(store, s.Root)
	if err != nil {
		return nil, classify(err)
	}
	if l.Count() != s.Count {
		return nil, fmt.Errorf("%w: log %s holds %d entries, state records %d",
			ErrIllegalState, s.Root, l.Count(), s.Count)
	}
	return l, nil
}

// classify maps errors of the storage layers onto the call taxonomy.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mmr.ErrNotFound):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, mmr.ErrMalformed),
		errors.Is(err, amt.ErrMalformedNode),
		errors.Is(err, blockstore.ErrCorrupt):
		return fmt.Errorf("%w: %v", ErrEncoding, err)
	case errors.Is(err, amt.ErrInvalidBitWidth):
		return fmt.Errorf("%w: %v", ErrIllegalArgument, err)
	default:
		return fmt.Errorf("%w: %v", ErrIllegalState, err)
	}
}
