// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package mmr

import (
	"fmt"
	"math/bits"
)

// eigenPath locates leaf [leafIndex] in a range of [leafCount] leaves.
//
// It returns the index of the peak whose tree holds the leaf, and the path to
// the leaf inside that tree. The path has a leading one bit followed by one
// bit per level, most significant first, where 0 selects the left child. A
// path of 1 means the peak is the leaf itself.
//
// The trees of the range correspond to the one bits of leafCount, largest
// first. The highest bit where leafIndex and leafCount differ is the height of
// the tree holding the leaf.
func eigenPath(leafIndex, leafCount uint64) (uint64, uint64, error) {
	if leafIndex >= leafCount {
		return 0, 0, fmt.Errorf("%w: leaf %d of %d", ErrNotFound, leafIndex, leafCount)
	}

	height := bits.Len64(leafIndex^leafCount) - 1
	merge := uint64(1) << height
	mask := merge - 1

	// Trees lower than the merge height sit to the right of the one we want.
	lower := bits.OnesCount64(leafCount & mask)
	peak := bits.OnesCount64(leafCount) - lower - 1

	return leafIndex&mask + merge, uint64(peak), nil
}
