// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package accumulator implements the accumulator actor: an append-only log of
// events owned by a machine, invoked one message at a time by its host.
package accumulator

import (
	"fmt"

	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/accumulatorvm/amt"
	"github.com/ava-labs/accumulatorvm/blockstore"
	"github.com/ava-labs/accumulatorvm/machine"
)

// Runtime is the host side of a single call. The host commits whatever was
// written through it only if the call succeeds.
type Runtime interface {
	// Caller is the address that sent the message.
	Caller() ids.ShortID
	// Store holds the log, the state records and the entries.
	Store() blockstore.Blockstore
	// StateRoot is the head of the actor's state, or ids.Empty before it is
	// constructed.
	StateRoot() ids.ID
	SetStateRoot(head ids.ID) error
}

// PushObserver is implemented by runtimes that account for appended entries.
// ObservePush is called once the new state root is set.
type PushObserver interface {
	ObservePush(size int)
}

// Invoke decodes [params], runs [method] and encodes its return value.
func Invoke(rt Runtime, method Method, params []byte) ([]byte, error) {
	switch method {
	case MethodConstructor:
		args := &ConstructorParams{}
		if err := decode(params, args); err != nil {
			return nil, err
		}
		return nil, Construct(rt, args)
	case MethodPush:
		args := &PushParams{}
		if err := decode(params, args); err != nil {
			return nil, err
		}
		return encode(Push(rt, args))
	case MethodGet:
		args := &GetParams{}
		if err := decode(params, args); err != nil {
			return nil, err
		}
		return encode(Get(rt, args))
	case MethodGetRange:
		args := &GetRangeParams{}
		if err := decode(params, args); err != nil {
			return nil, err
		}
		return encode(GetRange(rt, args))
	}

	if len(params) != 0 && method.Known() {
		return nil, fmt.Errorf("%w: %s takes no params", ErrIllegalArgument, method)
	}
	switch method {
	case MethodRoot:
		return encode(Root(rt))
	case MethodPeaks:
		return encode(Peaks(rt))
	case MethodCount:
		return encode(Count(rt))
	case MethodGetMetadata:
		return encode(GetMetadata(rt))
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnhandledMessage, method)
	}
}

// Construct initializes the actor. It fails if the actor already has state.
func Construct(rt Runtime, args *ConstructorParams) error {
	if rt.StateRoot() != ids.Empty {
		return errAlreadyConstructed
	}
	md, err := machine.NewMetadata(machine.Accumulator, args.Owner, args.WriteAccess, args.ReadAccess, args.Allowlist)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIllegalArgument, err)
	}
	bitWidth := args.BitWidth
	if bitWidth == 0 {
		bitWidth = amt.DefaultBitWidth
	}
	s, err := NewState(rt.Store(), md, args.HasCapacity, args.Capacity, bitWidth)
	if err != nil {
		return err
	}
	return save(rt, s)
}

// Push appends [args].Data if the caller may write and the log has room.
func Push(rt Runtime, args *PushParams) (*PushReturn, error) {
	s, m, err := load(rt)
	if err != nil {
		return nil, err
	}
	if !m.AuthorizeWrite(rt.Caller()) {
		return nil, fmt.Errorf("%w: %s may not write", ErrUnauthorized, rt.Caller())
	}
	next, reply, err := s.Push(rt.Store(), args.Data)
	if err != nil {
		return nil, err
	}
	if err := save(rt, next); err != nil {
		return nil, err
	}
	if o, ok := rt.(PushObserver); ok {
		o.ObservePush(len(args.Data))
	}
	return reply, nil
}

// Get returns the entry at [args].Index.
func Get(rt Runtime, args *GetParams) (*GetReturn, error) {
	s, err := loadForRead(rt)
	if err != nil {
		return nil, err
	}
	return s.Get(rt.Store(), args.Index)
}

// GetRange returns [args].Count entries starting at [args].Start.
func GetRange(rt Runtime, args *GetRangeParams) (*GetRangeReturn, error) {
	s, err := loadForRead(rt)
	if err != nil {
		return nil, err
	}
	return s.GetRange(rt.Store(), args.Start, args.Count)
}

// Peaks returns the peaks of the log and their commitment.
func Peaks(rt Runtime) (*PeaksReturn, error) {
	s, err := loadForRead(rt)
	if err != nil {
		return nil, err
	}
	return s.Peaks(rt.Store())
}

// Root returns the record summary. It is open to every caller.
func Root(rt Runtime) (*RootReturn, error) {
	s, _, err := load(rt)
	if err != nil {
		return nil, err
	}
	return s.Summary(), nil
}

// Count returns the number of entries. It is open to every caller.
func Count(rt Runtime) (*CountReturn, error) {
	s, _, err := load(rt)
	if err != nil {
		return nil, err
	}
	return &CountReturn{Count: s.Count}, nil
}

// GetMetadata returns the machine record. It is open to every caller.
func GetMetadata(rt Runtime) (*machine.Metadata, error) {
	s, _, err := load(rt)
	if err != nil {
		return nil, err
	}
	return &s.Machine, nil
}

func load(rt Runtime) (*State, machine.Capability, error) {
	head := rt.StateRoot()
	if head == ids.Empty {
		return nil, nil, errNotConstructed
	}
	s, err := LoadState(rt.Store(), head)
	if err != nil {
		return nil, nil, err
	}
	if s.Machine.Kind != machine.Accumulator {
		return nil, nil, fmt.Errorf("%w: state of %s is not an accumulator", ErrIllegalState, s.Machine.Kind)
	}
	m, err := machine.New(s.Machine)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrIllegalState, err)
	}
	return s, m, nil
}

func loadForRead(rt Runtime) (*State, error) {
	s, m, err := load(rt)
	if err != nil {
		return nil, err
	}
	if !m.AuthorizeRead(rt.Caller()) {
		return nil, fmt.Errorf("%w: %s may not read", ErrUnauthorized, rt.Caller())
	}
	return s, nil
}

func save(rt Runtime, s *State) error {
	head, err := s.Save(rt.Store())
	if err != nil {
		return err
	}
	if err := rt.SetStateRoot(head); err != nil {
		return fmt.Errorf("%w: failed to set state root: %v", ErrIllegalState, err)
	}
	return nil
}

func decode(params []byte, args interface{}) error {
	if _, err := Codec.Unmarshal(params, args); err != nil {
		return fmt.Errorf("%w: failed to parse params: %v", ErrEncoding, err)
	}
	return nil
}

func encode(reply interface{}, err error) ([]byte, error) {
	if err != nil {
		return nil, err
	}
	bytes, err := Codec.Marshal(CodecVersion, reply)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to marshal return: %v", ErrEncoding, err)
	}
	return bytes, nil
}
