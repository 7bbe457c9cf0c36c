// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package amt

import (
	"github.com/ava-labs/avalanchego/codec"
	"github.com/ava-labs/avalanchego/codec/linearcodec"
)

// CodecVersion is the version of the node serialization format
const CodecVersion = 0

// Codec does serialization and deserialization of trie nodes
var Codec codec.Manager

func init() {
	c := linearcodec.NewDefault()
	Codec = codec.NewDefaultManager()

	if err := Codec.RegisterCodec(CodecVersion, c); err != nil {
		panic(err)
	}
}
