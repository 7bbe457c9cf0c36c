// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package client

import (
	"context"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/formatting"
	"github.com/ava-labs/avalanchego/utils/json"
	"github.com/ava-labs/avalanchego/utils/rpc"

	"github.com/ava-labs/accumulatorvm/accumulatorvm"
)

// Entry is an entry read back from an accumulator.
type Entry struct {
	Index uint64
	Hash  ids.ID
	Data  []byte
}

// CreateOptions configure a new accumulator. The zero value creates an
// unlimited accumulator owned by the creator with default policies.
type CreateOptions struct {
	Owner       ids.ShortID
	Capacity    *uint64
	WriteAccess string
	ReadAccess  string
	Allowlist   []ids.ShortID
	BitWidth    uint8
}

// Client defines accumulatorvm client operations.
type Client interface {
	// Create constructs an accumulator and returns its address
	Create(ctx context.Context, creator ids.ShortID, opts CreateOptions) (ids.ShortID, error)

	// Push appends data to an accumulator and returns its index and hash
	Push(ctx context.Context, from, to ids.ShortID, data []byte) (uint64, ids.ID, error)

	// Get fetches the entry at index
	Get(ctx context.Context, from, to ids.ShortID, index uint64) ([]byte, ids.ID, error)

	// GetRange fetches count entries starting at start
	GetRange(ctx context.Context, from, to ids.ShortID, start, count uint64) ([]Entry, error)

	// Root fetches the summary of an accumulator
	Root(ctx context.Context, from, to ids.ShortID) (*accumulatorvm.RootReply, error)

	// Peaks fetches the peaks of an accumulator and their commitment
	Peaks(ctx context.Context, from, to ids.ShortID) ([]ids.ID, ids.ID, error)

	// Count fetches the number of entries of an accumulator
	Count(ctx context.Context, from, to ids.ShortID) (uint64, error)

	// GetMetadata fetches the owner and policies of an accumulator
	GetMetadata(ctx context.Context, from, to ids.ShortID) (*accumulatorvm.MetadataReply, error)

	// ListByOwner fetches the accumulators owned by owner
	ListByOwner(ctx context.Context, owner ids.ShortID) ([]ids.ShortID, error)
}

// New creates a new client object.
func New(uri string) Client {
	req := rpc.NewEndpointRequester(uri)
	return &client{req: req}
}

type client struct {
	req rpc.EndpointRequester
}

func (cli *client) Create(ctx context.Context, creator ids.ShortID, opts CreateOptions) (ids.ShortID, error) {
	args := &accumulatorvm.CreateArgs{
		Creator:     creator,
		Owner:       opts.Owner,
		WriteAccess: opts.WriteAccess,
		ReadAccess:  opts.ReadAccess,
		Allowlist:   opts.Allowlist,
		BitWidth:    json.Uint32(opts.BitWidth),
	}
	if opts.Capacity != nil {
		capacity := json.Uint64(*opts.Capacity)
		args.Capacity = &capacity
	}
	resp := new(accumulatorvm.CreateReply)
	err := cli.req.SendRequest(ctx, "accumulatorvm.create", args, resp)
	return resp.Address, err
}

func (cli *client) Push(ctx context.Context, from, to ids.ShortID, data []byte) (uint64, ids.ID, error) {
	bytes, err := formatting.Encode(formatting.Hex, data)
	if err != nil {
		return 0, ids.Empty, err
	}

	resp := new(accumulatorvm.PushReply)
	err = cli.req.SendRequest(ctx,
		"accumulatorvm.push",
		&accumulatorvm.PushArgs{
			ActorArgs: accumulatorvm.ActorArgs{From: from, To: to},
			Data:      bytes,
		},
		resp,
	)
	if err != nil {
		return 0, ids.Empty, err
	}
	return uint64(resp.Index), resp.Hash, nil
}

func (cli *client) Get(ctx context.Context, from, to ids.ShortID, index uint64) ([]byte, ids.ID, error) {
	resp := new(accumulatorvm.GetReply)
	err := cli.req.SendRequest(ctx,
		"accumulatorvm.get",
		&accumulatorvm.GetArgs{
			ActorArgs: accumulatorvm.ActorArgs{From: from, To: to},
			Index:     json.Uint64(index),
		},
		resp,
	)
	if err != nil {
		return nil, ids.Empty, err
	}
	bytes, err := formatting.Decode(formatting.Hex, resp.Data)
	if err != nil {
		return nil, ids.Empty, err
	}
	return bytes, resp.Hash, nil
}

func (cli *client) GetRange(ctx context.Context, from, to ids.ShortID, start, count uint64) ([]Entry, error) {
	resp := new(accumulatorvm.GetRangeReply)
	err := cli.req.SendRequest(ctx,
		"accumulatorvm.getRange",
		&accumulatorvm.GetRangeArgs{
			ActorArgs: accumulatorvm.ActorArgs{From: from, To: to},
			Start:     json.Uint64(start),
			Count:     json.Uint64(count),
		},
		resp,
	)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, len(resp.Entries))
	for i, entry := range resp.Entries {
		bytes, err := formatting.Decode(formatting.Hex, entry.Data)
		if err != nil {
			return nil, err
		}
		entries[i] = Entry{
			Index: uint64(entry.Index),
			Hash:  entry.Hash,
			Data:  bytes,
		}
	}
	return entries, nil
}

func (cli *client) Root(ctx context.Context, from, to ids.ShortID) (*accumulatorvm.RootReply, error) {
	resp := new(accumulatorvm.RootReply)
	err := cli.req.SendRequest(ctx,
		"accumulatorvm.root",
		&accumulatorvm.ActorArgs{From: from, To: to},
		resp,
	)
	return resp, err
}

func (cli *client) Peaks(ctx context.Context, from, to ids.ShortID) ([]ids.ID, ids.ID, error) {
	resp := new(accumulatorvm.PeaksReply)
	err := cli.req.SendRequest(ctx,
		"accumulatorvm.peaks",
		&accumulatorvm.ActorArgs{From: from, To: to},
		resp,
	)
	return resp.Peaks, resp.Commitment, err
}

func (cli *client) Count(ctx context.Context, from, to ids.ShortID) (uint64, error) {
	resp := new(accumulatorvm.CountReply)
	err := cli.req.SendRequest(ctx,
		"accumulatorvm.count",
		&accumulatorvm.ActorArgs{From: from, To: to},
		resp,
	)
	return uint64(resp.Count), err
}

func (cli *client) GetMetadata(ctx context.Context, from, to ids.ShortID) (*accumulatorvm.MetadataReply, error) {
	resp := new(accumulatorvm.MetadataReply)
	err := cli.req.SendRequest(ctx,
		"accumulatorvm.getMetadata",
		&accumulatorvm.ActorArgs{From: from, To: to},
		resp,
	)
	return resp, err
}

func (cli *client) ListByOwner(ctx context.Context, owner ids.ShortID) ([]ids.ShortID, error) {
	resp := new(accumulatorvm.ListByOwnerReply)
	err := cli.req.SendRequest(ctx,
		"accumulatorvm.listByOwner",
		&accumulatorvm.ListByOwnerArgs{Owner: owner},
		resp,
	)
	return resp.Machines, err
}
