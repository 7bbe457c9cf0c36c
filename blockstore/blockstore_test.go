// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package blockstore

import (
	"testing"

	"github.com/ava-labs/avalanchego/database/memdb"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/stretchr/testify/require"
)

func TestPutGet(t *testing.T) {
	require := require.New(t)
	store := New(memdb.New())

	id, err := store.Put([]byte("event1"))
	require.NoError(err)
	require.Equal(ID([]byte("event1")), id)

	block, err := store.Get(id)
	require.NoError(err)
	require.Equal([]byte("event1"), block)

	has, err := store.Has(id)
	require.NoError(err)
	require.True(has)

	// Putting the same block twice returns the same id.
	again, err := store.Put([]byte("event1"))
	require.NoError(err)
	require.Equal(id, again)
}

func TestGetMissing(t *testing.T) {
	require := require.New(t)
	store := New(memdb.New())

	_, err := store.Get(ids.ID{1})
	require.ErrorIs(err, ErrNotFound)

	has, err := store.Has(ids.ID{1})
	require.NoError(err)
	require.False(has)
}

func TestGetCorrupt(t *testing.T) {
	require := require.New(t)
	db := memdb.New()
	store := New(db)

	id, err := store.Put([]byte("event1"))
	require.NoError(err)

	require.NoError(db.Put(id[:], []byte("tampered")))
	_, err = store.Get(id)
	require.ErrorIs(err, ErrCorrupt)
}
