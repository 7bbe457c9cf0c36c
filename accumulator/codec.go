// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package accumulator

import (
	"github.com/ava-labs/avalanchego/codec"
	"github.com/ava-labs/avalanchego/codec/linearcodec"
	"github.com/ava-labs/avalanchego/utils/hashing"
	"github.com/ava-labs/avalanchego/utils/units"
	"github.com/ava-labs/avalanchego/utils/wrappers"
)

const (
	// CodecVersion is the version of the state and message serialization format
	CodecVersion = 0

	// MaxMessageSize bounds every encoded record, params and return value, and
	// the length of any slice inside them.
	MaxMessageSize = units.MiB

	// entryOverhead is what a single entry GetRange reply adds to the
	// payload: codec version, entry count, index, hash and payload length.
	entryOverhead = wrappers.ShortLen + wrappers.IntLen +
		wrappers.LongLen + hashing.HashLen + wrappers.IntLen

	// MaxPayloadSize is the largest payload Push accepts. Any committed entry
	// can be returned by Get and by a GetRange of that entry alone.
	MaxPayloadSize = MaxMessageSize - entryOverhead
)

// Codec does serialization and deserialization of state records, params and
// return values
var Codec codec.Manager

func init() {
	c := linearcodec.NewCustomMaxLength(MaxMessageSize)
	Codec = codec.NewManager(MaxMessageSize)

	if err := Codec.RegisterCodec(CodecVersion, c); err != nil {
		panic(err)
	}
}
