// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package accumulator

import (
	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/accumulatorvm/machine"
)

// ConstructorParams are the params of MethodConstructor.
type ConstructorParams struct {
	Owner ids.ShortID `serialize:"true"`
	// Capacity limits the number of entries when HasCapacity is set.
	HasCapacity bool   `serialize:"true"`
	Capacity    uint64 `serialize:"true"`

	WriteAccess machine.Access `serialize:"true"`
	ReadAccess  machine.Access `serialize:"true"`
	Allowlist   []ids.ShortID  `serialize:"true"`

	// BitWidth of the peaks trie. Zero selects amt.DefaultBitWidth.
	BitWidth uint8 `serialize:"true"`
}

// PushParams are the params of MethodPush.
type PushParams struct {
	Data []byte `serialize:"true"`
}

// PushReturn is the return value of MethodPush.
type PushReturn struct {
	Index uint64 `serialize:"true"`
	Hash  ids.ID `serialize:"true"`
	Root  ids.ID `serialize:"true"`
}

// GetParams are the params of MethodGet.
type GetParams struct {
	Index uint64 `serialize:"true"`
}

// GetReturn is the return value of MethodGet.
type GetReturn struct {
	Data []byte `serialize:"true"`
	Hash ids.ID `serialize:"true"`
}

// GetRangeParams are the params of MethodGetRange.
type GetRangeParams struct {
	Start uint64 `serialize:"true"`
	Count uint64 `serialize:"true"`
}

type Entry struct {
	Index uint64 `serialize:"true"`
	Hash  ids.ID `serialize:"true"`
	Data  []byte `serialize:"true"`
}

// GetRangeReturn is the return value of MethodGetRange.
type GetRangeReturn struct {
	Entries []Entry `serialize:"true"`
}

// RootReturn is the return value of MethodRoot.
type RootReturn struct {
	Root        ids.ID `serialize:"true"`
	Count       uint64 `serialize:"true"`
	ByteSize    uint64 `serialize:"true"`
	HasCapacity bool   `serialize:"true"`
	Capacity    uint64 `serialize:"true"`
}

// PeaksReturn is the return value of MethodPeaks.
type PeaksReturn struct {
	Peaks      []ids.ID `serialize:"true"`
	Commitment ids.ID   `serialize:"true"`
}

// CountReturn is the return value of MethodCount.
type CountReturn struct {
	Count uint64 `serialize:"true"`
}
