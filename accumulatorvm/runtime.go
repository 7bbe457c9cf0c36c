// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package accumulatorvm

import (
	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/accumulatorvm/accumulator"
	"github.com/ava-labs/accumulatorvm/blockstore"
)

var (
	_ accumulator.Runtime      = &runtime{}
	_ accumulator.PushObserver = &runtime{}
)

// runtime is the view of a single call on the VM state. The new head is
// only recorded here, the VM writes it once the call has succeeded.
type runtime struct {
	caller ids.ShortID
	store  blockstore.Blockstore
	head   ids.ID

	// pushes and pushedBytes count the entries appended during the call.
	pushes      int
	pushedBytes int
}

func (rt *runtime) Caller() ids.ShortID          { return rt.caller }
func (rt *runtime) Store() blockstore.Blockstore { return rt.store }
func (rt *runtime) StateRoot() ids.ID            { return rt.head }

func (rt *runtime) SetStateRoot(head ids.ID) error {
	rt.head = head
	return nil
}

func (rt *runtime) ObservePush(size int) {
	rt.pushes++
	rt.pushedBytes += size
}
