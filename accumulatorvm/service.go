// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package accumulatorvm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"

	"github.com/gorilla/rpc/v2"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/formatting"
	"github.com/ava-labs/avalanchego/utils/json"

	"github.com/ava-labs/accumulatorvm/accumulator"
	"github.com/ava-labs/accumulatorvm/amt"
	"github.com/ava-labs/accumulatorvm/machine"
)

var errRangeTooLarge = errors.New("range exceeds max range count")

// Service is the API service for this VM
type Service struct{ vm *VM }

// NewHandler returns the JSON-RPC handler serving [vm] under the service
// name Name.
func NewHandler(vm *VM) (http.Handler, error) {
	server := rpc.NewServer()
	codec := json.NewCodec()
	server.RegisterCodec(codec, "application/json")
	server.RegisterCodec(codec, "application/json;charset=UTF-8")
	return server, server.RegisterService(&Service{vm: vm}, Name)
}

// CreateArgs are the arguments to Create
type CreateArgs struct {
	Creator ids.ShortID `json:"creator"`
	// Owner defaults to Creator
	Owner ids.ShortID `json:"owner"`
	// Capacity is unlimited when omitted
	Capacity    *json.Uint64  `json:"capacity"`
	WriteAccess string        `json:"writeAccess"`
	ReadAccess  string        `json:"readAccess"`
	Allowlist   []ids.ShortID `json:"allowlist"`
	BitWidth    json.Uint32   `json:"bitWidth"`
}

// CreateReply is the reply from Create
type CreateReply struct {
	Address ids.ShortID `json:"address"`
}

// Create constructs a new accumulator.
func (s *Service) Create(r *http.Request, args *CreateArgs, reply *CreateReply) error {
	if args.BitWidth > math.MaxUint8 {
		return fmt.Errorf("%w: %d", amt.ErrInvalidBitWidth, uint32(args.BitWidth))
	}
	write, err := machine.ParseAccess(args.WriteAccess)
	if err != nil {
		return err
	}
	read, err := machine.ParseAccess(args.ReadAccess)
	if err != nil {
		return err
	}
	params := accumulator.ConstructorParams{
		Owner:       args.Owner,
		WriteAccess: write,
		ReadAccess:  read,
		Allowlist:   args.Allowlist,
		BitWidth:    uint8(args.BitWidth),
	}
	if args.Capacity != nil {
		params.HasCapacity = true
		params.Capacity = uint64(*args.Capacity)
	}
	reply.Address, err = s.vm.Create(r.Context(), args.Creator, params)
	return err
}

// ActorArgs address a read call to actor [To] sent by [From]
type ActorArgs struct {
	From ids.ShortID `json:"from"`
	To   ids.ShortID `json:"to"`
}

// PushArgs are the arguments to Push
type PushArgs struct {
	ActorArgs
	// Data (hex-encoded) to append
	Data string `json:"data"`
}

// PushReply is the reply from Push
type PushReply struct {
	Index json.Uint64 `json:"index"`
	Hash  ids.ID      `json:"hash"`
	Root  ids.ID      `json:"root"`
}

// Push appends [args].Data to the accumulator.
func (s *Service) Push(r *http.Request, args *PushArgs, reply *PushReply) error {
	data, err := formatting.Decode(formatting.Hex, args.Data)
	if err != nil {
		return fmt.Errorf("couldn't decode data: %w", err)
	}
	ret := accumulator.PushReturn{}
	if err := s.call(r.Context(), args.ActorArgs, accumulator.MethodPush, &accumulator.PushParams{Data: data}, &ret); err != nil {
		return err
	}
	reply.Index = json.Uint64(ret.Index)
	reply.Hash = ret.Hash
	reply.Root = ret.Root
	return nil
}

// GetArgs are the arguments to Get
type GetArgs struct {
	ActorArgs
	Index json.Uint64 `json:"index"`
}

// GetReply is the reply from Get
type GetReply struct {
	// Data (hex-encoded) of the entry
	Data string `json:"data"`
	Hash ids.ID `json:"hash"`
}

// Get returns the entry at [args].Index.
func (s *Service) Get(r *http.Request, args *GetArgs, reply *GetReply) error {
	ret := accumulator.GetReturn{}
	if err := s.call(r.Context(), args.ActorArgs, accumulator.MethodGet, &accumulator.GetParams{Index: uint64(args.Index)}, &ret); err != nil {
		return err
	}
	data, err := formatting.Encode(formatting.Hex, ret.Data)
	if err != nil {
		return err
	}
	reply.Data = data
	reply.Hash = ret.Hash
	return nil
}

// GetRangeArgs are the arguments to GetRange
type GetRangeArgs struct {
	ActorArgs
	Start json.Uint64 `json:"start"`
	Count json.Uint64 `json:"count"`
}

// EntryReply is a single entry of a GetRangeReply
type EntryReply struct {
	Index json.Uint64 `json:"index"`
	Hash  ids.ID      `json:"hash"`
	Data  string      `json:"data"`
}

// GetRangeReply is the reply from GetRange
type GetRangeReply struct {
	Entries []EntryReply `json:"entries"`
}

// GetRange returns [args].Count entries starting at [args].Start.
func (s *Service) GetRange(r *http.Request, args *GetRangeArgs, reply *GetRangeReply) error {
	if limit := s.vm.Config().MaxRangeCount; uint64(args.Count) > limit {
		return fmt.Errorf("%w: %d > %d", errRangeTooLarge, uint64(args.Count), limit)
	}
	ret := accumulator.GetRangeReturn{}
	params := &accumulator.GetRangeParams{
		Start: uint64(args.Start),
		Count: uint64(args.Count),
	}
	if err := s.call(r.Context(), args.ActorArgs, accumulator.MethodGetRange, params, &ret); err != nil {
		return err
	}
	reply.Entries = make([]EntryReply, len(ret.Entries))
	for i, entry := range ret.Entries {
		data, err := formatting.Encode(formatting.Hex, entry.Data)
		if err != nil {
			return err
		}
		reply.Entries[i] = EntryReply{
			Index: json.Uint64(entry.Index),
			Hash:  entry.Hash,
			Data:  data,
		}
	}
	return nil
}

// RootReply is the reply from Root
type RootReply struct {
	Root     ids.ID      `json:"root"`
	Count    json.Uint64 `json:"count"`
	ByteSize json.Uint64 `json:"byteSize"`
	// Capacity is omitted when unlimited
	Capacity *json.Uint64 `json:"capacity,omitempty"`
}

// Root returns the summary of the accumulator.
func (s *Service) Root(r *http.Request, args *ActorArgs, reply *RootReply) error {
	ret := accumulator.RootReturn{}
	if err := s.call(r.Context(), *args, accumulator.MethodRoot, nil, &ret); err != nil {
		return err
	}
	reply.Root = ret.Root
	reply.Count = json.Uint64(ret.Count)
	reply.ByteSize = json.Uint64(ret.ByteSize)
	if ret.HasCapacity {
		capacity := json.Uint64(ret.Capacity)
		reply.Capacity = &capacity
	}
	return nil
}

// PeaksReply is the reply from Peaks
type PeaksReply struct {
	Peaks      []ids.ID `json:"peaks"`
	Commitment ids.ID   `json:"commitment"`
}

// Peaks returns the peaks of the accumulator and their commitment.
func (s *Service) Peaks(r *http.Request, args *ActorArgs, reply *PeaksReply) error {
	ret := accumulator.PeaksReturn{}
	if err := s.call(r.Context(), *args, accumulator.MethodPeaks, nil, &ret); err != nil {
		return err
	}
	reply.Peaks = ret.Peaks
	reply.Commitment = ret.Commitment
	return nil
}

// CountReply is the reply from Count
type CountReply struct {
	Count json.Uint64 `json:"count"`
}

// Count returns the number of entries.
func (s *Service) Count(r *http.Request, args *ActorArgs, reply *CountReply) error {
	ret := accumulator.CountReturn{}
	if err := s.call(r.Context(), *args, accumulator.MethodCount, nil, &ret); err != nil {
		return err
	}
	reply.Count = json.Uint64(ret.Count)
	return nil
}

// MetadataReply is the reply from GetMetadata
type MetadataReply struct {
	Kind        string        `json:"kind"`
	Owner       ids.ShortID   `json:"owner"`
	WriteAccess string        `json:"writeAccess"`
	ReadAccess  string        `json:"readAccess"`
	Allowlist   []ids.ShortID `json:"allowlist"`
}

// GetMetadata returns the machine record of the accumulator.
func (s *Service) GetMetadata(r *http.Request, args *ActorArgs, reply *MetadataReply) error {
	md := machine.Metadata{}
	if err := s.call(r.Context(), *args, accumulator.MethodGetMetadata, nil, &md); err != nil {
		return err
	}
	reply.Kind = md.Kind.String()
	reply.Owner = md.Owner
	reply.WriteAccess = md.WriteAccess.String()
	reply.ReadAccess = md.ReadAccess.String()
	reply.Allowlist = md.Allowlist
	return nil
}

// ListByOwnerArgs are the arguments to ListByOwner
type ListByOwnerArgs struct {
	Owner ids.ShortID `json:"owner"`
}

// ListByOwnerReply is the reply from ListByOwner
type ListByOwnerReply struct {
	Machines []ids.ShortID `json:"machines"`
}

// ListByOwner returns the accumulators owned by [args].Owner.
func (s *Service) ListByOwner(r *http.Request, args *ListByOwnerArgs, reply *ListByOwnerReply) error {
	machines, err := s.vm.ListByOwner(r.Context(), args.Owner)
	if err != nil {
		return err
	}
	reply.Machines = machines
	return nil
}

// InvokeArgs are the arguments to Invoke
type InvokeArgs struct {
	ActorArgs
	Method json.Uint64 `json:"method"`
	// Params (hex-encoded) in the accumulator codec
	Params string `json:"params"`
}

// InvokeReply is the reply from Invoke
type InvokeReply struct {
	ExitCode json.Uint32 `json:"exitCode"`
	// Return (hex-encoded) in the accumulator codec
	Return string `json:"return"`
	Error  string `json:"error,omitempty"`
}

// Invoke sends a raw message. A failed call is reported through the exit
// code rather than as an error.
func (s *Service) Invoke(r *http.Request, args *InvokeArgs, reply *InvokeReply) error {
	var params []byte
	if args.Params != "" {
		var err error
		params, err = formatting.Decode(formatting.Hex, args.Params)
		if err != nil {
			return fmt.Errorf("couldn't decode params: %w", err)
		}
	}
	receipt, err := s.vm.Invoke(r.Context(), Message{
		From:   args.From,
		To:     args.To,
		Method: accumulator.Method(args.Method),
		Params: params,
	})
	if err != nil {
		return err
	}
	reply.ExitCode = json.Uint32(receipt.ExitCode)
	reply.Error = receipt.Error
	if len(receipt.Return) > 0 {
		reply.Return, err = formatting.Encode(formatting.Hex, receipt.Return)
	}
	return err
}

// MethodNumberArgs are the arguments to MethodNumber
type MethodNumberArgs struct {
	Name string `json:"name"`
}

// MethodNumberReply is the reply from MethodNumber
type MethodNumberReply struct {
	Method json.Uint64 `json:"method"`
}

// MethodNumber returns the selector of the method called [args].Name.
func (*Service) MethodNumber(_ *http.Request, args *MethodNumberArgs, reply *MethodNumberReply) error {
	m, err := accumulator.MethodNumber(args.Name)
	if err != nil {
		return err
	}
	reply.Method = json.Uint64(m)
	return nil
}

// call invokes [method] with [params] encoded and decodes the return value
// into [ret]. A nil [params] sends no params.
func (s *Service) call(ctx context.Context, args ActorArgs, method accumulator.Method, params interface{}, ret interface{}) error {
	var paramBytes []byte
	if params != nil {
		var err error
		paramBytes, err = accumulator.Codec.Marshal(accumulator.CodecVersion, params)
		if err != nil {
			return err
		}
	}
	receipt, err := s.vm.Invoke(ctx, Message{
		From:   args.From,
		To:     args.To,
		Method: method,
		Params: paramBytes,
	})
	if err != nil {
		return err
	}
	if receipt.ExitCode != accumulator.ExitOK {
		return &CallError{Code: receipt.ExitCode, Message: receipt.Error}
	}
	if _, err := accumulator.Codec.Unmarshal(receipt.Return, ret); err != nil {
		return fmt.Errorf("couldn't parse return of %s: %w", method, err)
	}
	return nil
}

// CallError is returned by the typed service methods when the call fails.
type CallError struct {
	Code    accumulator.ExitCode
	Message string
}

func (e *CallError) Error() string {
	return fmt.Sprintf("call failed with exit code %d (%s): %s", uint32(e.Code), e.Code, e.Message)
}
