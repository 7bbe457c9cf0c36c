// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package accumulator

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ava-labs/accumulatorvm/blockstore"
)

func invokePush(t *testing.T, rt *testRuntime, data []byte) ([]byte, error) {
	params, err := Codec.Marshal(CodecVersion, &PushParams{Data: data})
	require.NoError(t, err)
	return Invoke(rt, MethodPush, params)
}

func TestMaxPayloadRoundTrips(t *testing.T) {
	require := require.New(t)
	rt := newTestAccumulator(t, &ConstructorParams{})

	data := bytes.Repeat([]byte{0xab}, MaxPayloadSize)
	_, err := invokePush(t, rt, data)
	require.NoError(err)

	params, err := Codec.Marshal(CodecVersion, &GetParams{Index: 0})
	require.NoError(err)
	ret, err := Invoke(rt, MethodGet, params)
	require.NoError(err)
	entry := GetReturn{}
	_, err = Codec.Unmarshal(ret, &entry)
	require.NoError(err)
	require.Equal(data, entry.Data)
	require.Equal(blockstore.ID(data), entry.Hash)

	params, err = Codec.Marshal(CodecVersion, &GetRangeParams{Start: 0, Count: 1})
	require.NoError(err)
	ret, err = Invoke(rt, MethodGetRange, params)
	require.NoError(err)
	require.Len(ret, MaxMessageSize)
	entries := GetRangeReturn{}
	_, err = Codec.Unmarshal(ret, &entries)
	require.NoError(err)
	require.Len(entries.Entries, 1)
	require.Equal(data, entries.Entries[0].Data)
}

func TestPushPayloadTooLarge(t *testing.T) {
	require := require.New(t)
	rt := newTestAccumulator(t, &ConstructorParams{})
	head := rt.head

	_, err := invokePush(t, rt, make([]byte, MaxPayloadSize+1))
	require.ErrorIs(err, ErrPayloadTooLarge)
	require.ErrorIs(err, ErrIllegalArgument)
	require.Equal(ExitIllegalArgument, ExitCodeOf(err))
	require.Equal(head, rt.head)

	summary, err := Root(rt)
	require.NoError(err)
	require.Zero(summary.Count)
	require.Zero(summary.ByteSize)
}

func TestFullBeforePayloadSize(t *testing.T) {
	require := require.New(t)
	rt := newTestAccumulator(t, &ConstructorParams{HasCapacity: true})

	_, err := Push(rt, &PushParams{Data: make([]byte, MaxPayloadSize+1)})
	require.ErrorIs(err, ErrCapacityExceeded)
}

func TestGetRangeTooLarge(t *testing.T) {
	require := require.New(t)
	rt := newTestAccumulator(t, &ConstructorParams{})

	half := MaxPayloadSize/2 + 1
	first := bytes.Repeat([]byte{1}, half)
	second := bytes.Repeat([]byte{2}, half)
	for _, data := range [][]byte{first, second} {
		_, err := Push(rt, &PushParams{Data: data})
		require.NoError(err)
	}

	_, err := GetRange(rt, &GetRangeParams{Start: 0, Count: 2})
	require.ErrorIs(err, ErrRangeTooLarge)
	require.Equal(ExitIllegalArgument, ExitCodeOf(err))

	// Out of range is still reported before the size.
	_, err = GetRange(rt, &GetRangeParams{Start: 1, Count: 2})
	require.ErrorIs(err, ErrNotFound)

	for i, data := range [][]byte{first, second} {
		params, err := Codec.Marshal(CodecVersion, &GetRangeParams{Start: uint64(i), Count: 1})
		require.NoError(err)
		ret, err := Invoke(rt, MethodGetRange, params)
		require.NoError(err)
		entries := GetRangeReturn{}
		_, err = Codec.Unmarshal(ret, &entries)
		require.NoError(err)
		require.Equal(data, entries.Entries[0].Data)
	}
}
