// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package client

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/ava-labs/avalanchego/database/memdb"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/accumulatorvm/accumulatorvm"
	"github.com/ava-labs/accumulatorvm/blockstore"
)

var (
	alice = ids.ShortID{'a'}
	bob   = ids.ShortID{'b'}
)

func newTestClient(t *testing.T) Client {
	vm, err := accumulatorvm.New(memdb.New(), accumulatorvm.DefaultConfig(), prometheus.NewRegistry())
	require.NoError(t, err)
	handler, err := accumulatorvm.NewHandler(vm)
	require.NoError(t, err)

	server := httptest.NewServer(handler)
	t.Cleanup(func() {
		server.Close()
		require.NoError(t, vm.Shutdown())
	})
	return New(server.URL)
}

func TestClient(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	cli := newTestClient(t)

	capacity := uint64(2)
	addr, err := cli.Create(ctx, alice, CreateOptions{Capacity: &capacity})
	require.NoError(err)

	index, hash, err := cli.Push(ctx, alice, addr, []byte("event1"))
	require.NoError(err)
	require.Zero(index)
	require.Equal(blockstore.ID([]byte("event1")), hash)

	index, _, err = cli.Push(ctx, alice, addr, []byte("event2"))
	require.NoError(err)
	require.Equal(uint64(1), index)

	_, _, err = cli.Push(ctx, alice, addr, []byte("event3"))
	require.Error(err)

	data, _, err := cli.Get(ctx, bob, addr, 0)
	require.NoError(err)
	require.Equal([]byte("event1"), data)

	_, _, err = cli.Get(ctx, bob, addr, 2)
	require.Error(err)

	entries, err := cli.GetRange(ctx, bob, addr, 0, 2)
	require.NoError(err)
	require.Len(entries, 2)
	require.Equal([]byte("event2"), entries[1].Data)

	root, err := cli.Root(ctx, bob, addr)
	require.NoError(err)
	require.Equal(uint64(2), uint64(root.Count))

	peaks, commitment, err := cli.Peaks(ctx, bob, addr)
	require.NoError(err)
	require.Len(peaks, 1)
	require.Equal(peaks[0], commitment)

	count, err := cli.Count(ctx, bob, addr)
	require.NoError(err)
	require.Equal(uint64(2), count)

	md, err := cli.GetMetadata(ctx, bob, addr)
	require.NoError(err)
	require.Equal(alice, md.Owner)

	machines, err := cli.ListByOwner(ctx, alice)
	require.NoError(err)
	require.Equal([]ids.ShortID{addr}, machines)
}

func TestClientUnauthorized(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	cli := newTestClient(t)

	addr, err := cli.Create(ctx, alice, CreateOptions{})
	require.NoError(err)

	_, _, err = cli.Push(ctx, bob, addr, []byte("x"))
	require.Error(err)

	count, err := cli.Count(ctx, bob, addr)
	require.NoError(err)
	require.Zero(count)
}
