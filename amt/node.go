// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package amt

import (
	"fmt"
	"math/bits"

	"github.com/ava-labs/avalanchego/ids"
)

// root is the serialized form of the top of the trie. The root node is stored
// inline so that loading an empty or small trie needs a single block.
type root struct {
	BitWidth uint8    `serialize:"true"`
	Height   uint8    `serialize:"true"`
	Count    uint64   `serialize:"true"`
	Node     nodeData `serialize:"true"`
}

// nodeData is the serialized form of a node. Only occupied slots are written,
// in slot order; Bmap records which slots they are.
type nodeData struct {
	Bmap   uint64   `serialize:"true"`
	Links  []ids.ID `serialize:"true"`
	Values []ids.ID `serialize:"true"`
}

type link struct {
	id     ids.ID
	cached *node
	dirty  bool
}

// node is the expanded, in-memory form of a node. Leaves (height 0) use
// values, interior nodes use links; both are indexed by slot.
type node struct {
	bmap   uint64
	links  []*link
	values []ids.ID
}

func newNode(width uint64, height uint8) *node {
	if height == 0 {
		return &node{values: make([]ids.ID, width)}
	}
	return &node{links: make([]*link, width)}
}

func (n *node) has(slot uint64) bool { return n.bmap&(1<<slot) != 0 }

func (n *node) empty() bool { return n.bmap == 0 }

// expand validates [data] for a node at [height] and returns its in-memory form.
func expand(data *nodeData, width uint64, height uint8, isRoot bool) (*node, error) {
	if width < 64 && data.Bmap>>width != 0 {
		return nil, fmt.Errorf("%w: bitmap %b exceeds width %d", ErrMalformedNode, data.Bmap, width)
	}
	if !isRoot && data.Bmap == 0 {
		return nil, fmt.Errorf("%w: empty non-root node", ErrMalformedNode)
	}
	occupied := bits.OnesCount64(data.Bmap)

	n := newNode(width, height)
	n.bmap = data.Bmap
	if height == 0 {
		if len(data.Links) != 0 || len(data.Values) != occupied {
			return nil, fmt.Errorf("%w: leaf has %d links and %d values for %d slots",
				ErrMalformedNode, len(data.Links), len(data.Values), occupied)
		}
		next := 0
		for slot := uint64(0); slot < width; slot++ {
			if n.has(slot) {
				n.values[slot] = data.Values[next]
				next++
			}
		}
		return n, nil
	}

	if len(data.Values) != 0 || len(data.Links) != occupied {
		return nil, fmt.Errorf("%w: interior node has %d links and %d values for %d slots",
			ErrMalformedNode, len(data.Links), len(data.Values), occupied)
	}
	next := 0
	for slot := uint64(0); slot < width; slot++ {
		if n.has(slot) {
			n.links[slot] = &link{id: data.Links[next]}
			next++
		}
	}
	return n, nil
}
