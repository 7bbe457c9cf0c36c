// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package accumulator

import (
	"fmt"
	"testing"

	"github.com/ava-labs/avalanchego/database/memdb"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/accumulatorvm/blockstore"
	"github.com/ava-labs/accumulatorvm/machine"
	"github.com/ava-labs/accumulatorvm/mmr"
)

var (
	owner    = ids.ShortID{'a'}
	stranger = ids.ShortID{'b'}
	friend   = ids.ShortID{'c'}
)

type testRuntime struct {
	caller ids.ShortID
	store  blockstore.Blockstore
	head   ids.ID
}

func newTestRuntime() *testRuntime {
	return &testRuntime{
		caller: owner,
		store:  blockstore.New(memdb.New()),
	}
}

func (rt *testRuntime) Caller() ids.ShortID          { return rt.caller }
func (rt *testRuntime) Store() blockstore.Blockstore { return rt.store }
func (rt *testRuntime) StateRoot() ids.ID            { return rt.head }

func (rt *testRuntime) SetStateRoot(head ids.ID) error {
	rt.head = head
	return nil
}

func (rt *testRuntime) as(caller ids.ShortID) *testRuntime {
	rt.caller = caller
	return rt
}

func newTestAccumulator(t *testing.T, args *ConstructorParams) *testRuntime {
	rt := newTestRuntime()
	if args.Owner == ids.ShortEmpty {
		args.Owner = owner
	}
	require.NoError(t, Construct(rt, args))
	return rt
}

func TestConstruct(t *testing.T) {
	require := require.New(t)
	rt := newTestAccumulator(t, &ConstructorParams{})

	summary, err := Root(rt)
	require.NoError(err)
	require.Zero(summary.Count)
	require.Zero(summary.ByteSize)
	require.False(summary.HasCapacity)

	empty, err := mmr.EmptyRoot(3)
	require.NoError(err)
	require.Equal(empty, summary.Root)

	md, err := GetMetadata(rt.as(stranger))
	require.NoError(err)
	require.Equal(machine.Accumulator, md.Kind)
	require.Equal(owner, md.Owner)
	require.Equal(machine.OnlyOwner, md.WriteAccess)
	require.Equal(machine.Public, md.ReadAccess)
}

func TestConstructTwice(t *testing.T) {
	require := require.New(t)
	rt := newTestAccumulator(t, &ConstructorParams{})
	head := rt.head

	err := Construct(rt, &ConstructorParams{Owner: stranger})
	require.ErrorIs(err, ErrIllegalState)
	require.Equal(head, rt.head)
}

func TestConstructInvalid(t *testing.T) {
	tests := []struct {
		name string
		args ConstructorParams
	}{
		{name: "no owner", args: ConstructorParams{}},
		{name: "bad access", args: ConstructorParams{Owner: owner, WriteAccess: machine.Access(9)}},
		{name: "bad bit width", args: ConstructorParams{Owner: owner, BitWidth: 7}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require := require.New(t)
			rt := newTestRuntime()
			err := Construct(rt, &test.args)
			require.ErrorIs(err, ErrIllegalArgument)
			require.Equal(ids.Empty, rt.head)
		})
	}
}

func TestNotConstructed(t *testing.T) {
	require := require.New(t)
	rt := newTestRuntime()

	_, err := Push(rt, &PushParams{Data: []byte("x")})
	require.ErrorIs(err, ErrIllegalState)
	_, err = Get(rt, &GetParams{})
	require.ErrorIs(err, ErrIllegalState)
	_, err = Root(rt)
	require.ErrorIs(err, ErrIllegalState)
}

func TestCapacityScenario(t *testing.T) {
	require := require.New(t)
	rt := newTestAccumulator(t, &ConstructorParams{
		Owner:       owner,
		HasCapacity: true,
		Capacity:    2,
	})

	reply, err := Push(rt, &PushParams{Data: []byte("event1")})
	require.NoError(err)
	require.Zero(reply.Index)
	require.Equal(blockstore.ID([]byte("event1")), reply.Hash)
	count, err := Count(rt)
	require.NoError(err)
	require.Equal(uint64(1), count.Count)

	reply, err = Push(rt, &PushParams{Data: []byte("event2")})
	require.NoError(err)
	require.Equal(uint64(1), reply.Index)
	require.Equal(blockstore.ID([]byte("event2")), reply.Hash)

	before, err := Root(rt)
	require.NoError(err)
	require.Equal(uint64(2), before.Count)
	require.Equal(reply.Root, before.Root)

	_, err = Push(rt, &PushParams{Data: []byte("event3")})
	require.ErrorIs(err, ErrCapacityExceeded)
	require.Equal(ExitCapacityExceeded, ExitCodeOf(err))

	after, err := Root(rt)
	require.NoError(err)
	require.Equal(before, after)

	entry, err := Get(rt, &GetParams{Index: 0})
	require.NoError(err)
	require.Equal([]byte("event1"), entry.Data)

	_, err = Get(rt, &GetParams{Index: 2})
	require.ErrorIs(err, ErrNotFound)
}

func TestUnauthorizedScenario(t *testing.T) {
	require := require.New(t)
	rt := newTestAccumulator(t, &ConstructorParams{Owner: owner})
	head := rt.head

	_, err := Push(rt.as(stranger), &PushParams{Data: []byte("x")})
	require.ErrorIs(err, ErrUnauthorized)
	require.Equal(ExitForbidden, ExitCodeOf(err))
	require.Equal(head, rt.head)

	summary, err := Root(rt)
	require.NoError(err)
	require.Zero(summary.Count)
}

func TestPushCheckOrder(t *testing.T) {
	require := require.New(t)
	rt := newTestAccumulator(t, &ConstructorParams{
		Owner:       owner,
		HasCapacity: true,
		Capacity:    1,
	})
	_, err := Push(rt, &PushParams{Data: []byte("only")})
	require.NoError(err)
	head := rt.head

	_, err = Push(rt.as(stranger), &PushParams{Data: []byte("x")})
	require.ErrorIs(err, ErrUnauthorized)
	require.NotErrorIs(err, ErrCapacityExceeded)

	_, err = Push(rt.as(owner), &PushParams{Data: []byte("x")})
	require.ErrorIs(err, ErrCapacityExceeded)
	require.Equal(head, rt.head)
}

func TestCountAndByteSize(t *testing.T) {
	require := require.New(t)
	rt := newTestAccumulator(t, &ConstructorParams{})

	var (
		payloads [][]byte
		size     uint64
	)
	for i := 0; i < 40; i++ {
		payload := append([]byte(fmt.Sprintf("event-%d", i)), make([]byte, i%7)...)
		payloads = append(payloads, payload)
		size += uint64(len(payload))

		reply, err := Push(rt, &PushParams{Data: payload})
		require.NoError(err)
		require.Equal(uint64(i), reply.Index)
	}

	summary, err := Root(rt)
	require.NoError(err)
	require.Equal(uint64(len(payloads)), summary.Count)
	require.Equal(size, summary.ByteSize)

	for i, payload := range payloads {
		entry, err := Get(rt, &GetParams{Index: uint64(i)})
		require.NoError(err)
		require.Equal(payload, entry.Data)
		require.Equal(blockstore.ID(payload), entry.Hash)
	}
	_, err = Get(rt, &GetParams{Index: uint64(len(payloads))})
	require.ErrorIs(err, ErrNotFound)
}

func TestEmptyPayload(t *testing.T) {
	require := require.New(t)
	rt := newTestAccumulator(t, &ConstructorParams{})

	reply, err := Push(rt, &PushParams{})
	require.NoError(err)
	require.Zero(reply.Index)

	entry, err := Get(rt, &GetParams{})
	require.NoError(err)
	require.Empty(entry.Data)

	summary, err := Root(rt)
	require.NoError(err)
	require.Equal(uint64(1), summary.Count)
	require.Zero(summary.ByteSize)
}

func TestDeterministicRoot(t *testing.T) {
	require := require.New(t)

	replay := func() (ids.ID, ids.ID) {
		rt := newTestAccumulator(t, &ConstructorParams{})
		for i := 0; i < 21; i++ {
			_, err := Push(rt, &PushParams{Data: []byte{byte(i), byte(i * 3)}})
			require.NoError(err)
		}
		summary, err := Root(rt)
		require.NoError(err)
		return summary.Root, rt.head
	}

	root0, head0 := replay()
	root1, head1 := replay()
	require.Equal(root0, root1)
	require.Equal(head0, head1)
}

func TestDuplicatePayloads(t *testing.T) {
	require := require.New(t)
	rt := newTestAccumulator(t, &ConstructorParams{})

	for i := uint64(0); i < 5; i++ {
		reply, err := Push(rt, &PushParams{Data: []byte("same")})
		require.NoError(err)
		require.Equal(i, reply.Index)
	}
	entries, err := GetRange(rt, &GetRangeParams{Start: 0, Count: 5})
	require.NoError(err)
	require.Len(entries.Entries, 5)
	for _, entry := range entries.Entries {
		require.Equal([]byte("same"), entry.Data)
	}
}

func TestGetRange(t *testing.T) {
	require := require.New(t)
	rt := newTestAccumulator(t, &ConstructorParams{})
	for i := 0; i < 9; i++ {
		_, err := Push(rt, &PushParams{Data: []byte{byte(i)}})
		require.NoError(err)
	}

	reply, err := GetRange(rt, &GetRangeParams{Start: 2, Count: 4})
	require.NoError(err)
	require.Len(reply.Entries, 4)
	for n, entry := range reply.Entries {
		require.Equal(uint64(2+n), entry.Index)
		require.Equal([]byte{byte(2 + n)}, entry.Data)
	}

	_, err = GetRange(rt, &GetRangeParams{Start: 6, Count: 4})
	require.ErrorIs(err, ErrNotFound)
	_, err = GetRange(rt, &GetRangeParams{Start: 1, Count: ^uint64(0)})
	require.ErrorIs(err, ErrNotFound)
}

func TestReadPolicy(t *testing.T) {
	require := require.New(t)
	rt := newTestAccumulator(t, &ConstructorParams{
		Owner:       owner,
		WriteAccess: machine.Allowlist,
		ReadAccess:  machine.OnlyOwner,
		Allowlist:   []ids.ShortID{friend},
	})

	_, err := Push(rt.as(friend), &PushParams{Data: []byte("from a friend")})
	require.NoError(err)

	_, err = Get(rt.as(friend), &GetParams{})
	require.ErrorIs(err, ErrUnauthorized)
	_, err = GetRange(rt.as(stranger), &GetRangeParams{Count: 1})
	require.ErrorIs(err, ErrUnauthorized)
	_, err = Peaks(rt.as(stranger))
	require.ErrorIs(err, ErrUnauthorized)

	// Summaries stay public.
	count, err := Count(rt.as(stranger))
	require.NoError(err)
	require.Equal(uint64(1), count.Count)

	entry, err := Get(rt.as(owner), &GetParams{})
	require.NoError(err)
	require.Equal([]byte("from a friend"), entry.Data)
}

func TestPeaks(t *testing.T) {
	require := require.New(t)
	rt := newTestAccumulator(t, &ConstructorParams{})

	reply, err := Peaks(rt)
	require.NoError(err)
	require.Empty(reply.Peaks)
	require.Equal(ids.Empty, reply.Commitment)

	for i := 0; i < 11; i++ {
		_, err := Push(rt, &PushParams{Data: []byte{byte(i)}})
		require.NoError(err)
	}
	reply, err = Peaks(rt)
	require.NoError(err)
	require.Len(reply.Peaks, 3)

	commitment, err := mmr.Bag(reply.Peaks)
	require.NoError(err)
	require.Equal(commitment, reply.Commitment)
}

func TestCorruptState(t *testing.T) {
	require := require.New(t)
	rt := newTestAccumulator(t, &ConstructorParams{})
	_, err := Push(rt, &PushParams{Data: []byte("x")})
	require.NoError(err)

	s, err := LoadState(rt.store, rt.head)
	require.NoError(err)
	s.Count = 2
	head, err := s.Save(rt.store)
	require.NoError(err)
	rt.head = head

	_, err = Push(rt, &PushParams{Data: []byte("y")})
	require.ErrorIs(err, ErrIllegalState)
	require.True(Fatal(err))
	require.Equal(head, rt.head)

	rt.head = ids.ID{'m', 'i', 's', 's', 'i', 'n', 'g'}
	_, err = Root(rt)
	require.ErrorIs(err, ErrIllegalState)
}

func TestInvoke(t *testing.T) {
	require := require.New(t)
	rt := newTestRuntime()

	params, err := Codec.Marshal(CodecVersion, &ConstructorParams{Owner: owner})
	require.NoError(err)
	ret, err := Invoke(rt, MethodConstructor, params)
	require.NoError(err)
	require.Empty(ret)

	params, err = Codec.Marshal(CodecVersion, &PushParams{Data: []byte("hello")})
	require.NoError(err)
	ret, err = Invoke(rt, MethodPush, params)
	require.NoError(err)
	pushed := PushReturn{}
	_, err = Codec.Unmarshal(ret, &pushed)
	require.NoError(err)
	require.Zero(pushed.Index)
	require.Equal(blockstore.ID([]byte("hello")), pushed.Hash)

	params, err = Codec.Marshal(CodecVersion, &GetParams{Index: 0})
	require.NoError(err)
	ret, err = Invoke(rt, MethodGet, params)
	require.NoError(err)
	got := GetReturn{}
	_, err = Codec.Unmarshal(ret, &got)
	require.NoError(err)
	require.Equal([]byte("hello"), got.Data)

	ret, err = Invoke(rt, MethodRoot, nil)
	require.NoError(err)
	summary := RootReturn{}
	_, err = Codec.Unmarshal(ret, &summary)
	require.NoError(err)
	require.Equal(pushed.Root, summary.Root)
	require.Equal(uint64(1), summary.Count)

	ret, err = Invoke(rt, MethodGetMetadata, nil)
	require.NoError(err)
	md := machine.Metadata{}
	_, err = Codec.Unmarshal(ret, &md)
	require.NoError(err)
	require.Equal(owner, md.Owner)
}

func TestInvokeErrors(t *testing.T) {
	require := require.New(t)
	rt := newTestAccumulator(t, &ConstructorParams{})

	_, err := Invoke(rt, Method(12345678), nil)
	require.ErrorIs(err, ErrUnhandledMessage)
	require.Equal(ExitUnhandledMessage, ExitCodeOf(err))

	_, err = Invoke(rt, MethodPush, []byte{0xff})
	require.ErrorIs(err, ErrEncoding)
	require.Equal(ExitSerialization, ExitCodeOf(err))

	_, err = Invoke(rt, MethodCount, []byte{0})
	require.ErrorIs(err, ErrIllegalArgument)
}
