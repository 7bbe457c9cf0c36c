// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package accumulatorvm

import (
	"context"
	"errors"
	"fmt"
	"sync"

	log "github.com/inconshreveable/log15"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/hashing"
	"github.com/ava-labs/avalanchego/utils/wrappers"
	"github.com/ava-labs/avalanchego/version"

	"github.com/ava-labs/accumulatorvm/accumulator"
)

const (
	Name = "accumulatorvm"
)

var (
	Version = &version.Semantic{
		Major: 0,
		Minor: 1,
		Patch: 0,
	}

	ErrUnknownActor = errors.New("unknown actor")
	errClosed       = errors.New("vm is shut down")
	errNoCreator    = errors.New("creator address is empty")
	errZeroMaxRange = errors.New("max range count must be positive")
)

// Message is a call to the actor at To.
type Message struct {
	From   ids.ShortID
	To     ids.ShortID
	Method accumulator.Method
	Params []byte
}

// Receipt is the outcome of a message. Return is only set on success and
// Error only on failure.
type Receipt struct {
	ExitCode accumulator.ExitCode
	Return   []byte
	Error    string
}

// VM hosts accumulator actors on a single database. Messages are executed one
// at a time and each one either commits all of its writes or none of them.
type VM struct {
	lock sync.Mutex

	log     log.Logger
	config  Config
	state   State
	metrics *metrics
	closed  bool
}

// New opens the VM stored in [db].
func New(db database.Database, config Config, registerer prometheus.Registerer) (*VM, error) {
	if err := config.Verify(); err != nil {
		return nil, err
	}
	m, err := newMetrics(registerer)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}
	vm := &VM{
		log:     log.New("vm", Name),
		config:  config,
		state:   NewState(db),
		metrics: m,
	}

	initialized, err := vm.state.IsInitialized()
	if err != nil {
		return nil, err
	}
	if !initialized {
		vm.log.Info("initializing database", "version", Version)
		if err := vm.state.SetInitialized(); err != nil {
			return nil, fmt.Errorf("error while setting db to initialized: %w", err)
		}
		if err := vm.state.Commit(); err != nil {
			return nil, fmt.Errorf("error while committing db: %w", err)
		}
	}

	nonce, err := vm.state.Nonce()
	if err != nil {
		return nil, err
	}
	vm.metrics.actors.Set(float64(nonce))
	vm.log.Info("vm started", "actors", nonce, "bitWidth", config.BitWidth)
	return vm, nil
}

// Create constructs a new accumulator on behalf of [creator] and returns its
// address. The creator owns it unless [params] names another owner.
func (vm *VM) Create(ctx context.Context, creator ids.ShortID, params accumulator.ConstructorParams) (ids.ShortID, error) {
	if err := ctx.Err(); err != nil {
		return ids.ShortEmpty, err
	}
	if creator == ids.ShortEmpty {
		return ids.ShortEmpty, errNoCreator
	}
	if params.Owner == ids.ShortEmpty {
		params.Owner = creator
	}
	if params.BitWidth == 0 {
		params.BitWidth = vm.config.BitWidth
	}
	paramBytes, err := accumulator.Codec.Marshal(accumulator.CodecVersion, &params)
	if err != nil {
		return ids.ShortEmpty, fmt.Errorf("%w: %v", accumulator.ErrEncoding, err)
	}

	vm.lock.Lock()
	defer vm.lock.Unlock()

	if vm.closed {
		return ids.ShortEmpty, errClosed
	}
	defer vm.state.Abort()

	nonce, err := vm.state.Nonce()
	if err != nil {
		return ids.ShortEmpty, err
	}
	addr := actorAddress(creator, nonce)
	rt := &runtime{
		caller: creator,
		store:  vm.state.Blockstore(),
	}
	_, err = accumulator.Invoke(rt, accumulator.MethodConstructor, paramBytes)
	vm.observe(accumulator.MethodConstructor, err)
	if err != nil {
		vm.logFailure(addr, accumulator.MethodConstructor, err)
		return ids.ShortEmpty, err
	}

	if err := vm.state.AddActor(params.Owner, addr, rt.head); err != nil {
		return ids.ShortEmpty, err
	}
	if err := vm.state.SetNonce(nonce + 1); err != nil {
		return ids.ShortEmpty, err
	}
	if err := vm.state.Commit(); err != nil {
		return ids.ShortEmpty, fmt.Errorf("failed to commit actor %s: %w", addr, err)
	}

	vm.metrics.actors.Inc()
	vm.log.Info("created accumulator", "address", addr, "owner", params.Owner, "head", rt.head)
	return addr, nil
}

// Invoke executes [msg]. Failures of the call itself are reported in the
// receipt. The error is only set when the message could not be executed.
func (vm *VM) Invoke(ctx context.Context, msg Message) (*Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vm.lock.Lock()
	defer vm.lock.Unlock()

	if vm.closed {
		return nil, errClosed
	}
	defer vm.state.Abort()

	head, err := vm.state.GetHead(msg.To)
	if errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownActor, msg.To)
	}
	if err != nil {
		return nil, err
	}

	rt := &runtime{
		caller: msg.From,
		store:  vm.state.Blockstore(),
		head:   head,
	}
	ret, err := accumulator.Invoke(rt, msg.Method, msg.Params)
	vm.observe(msg.Method, err)
	if err != nil {
		vm.logFailure(msg.To, msg.Method, err)
		return &Receipt{
			ExitCode: accumulator.ExitCodeOf(err),
			Error:    err.Error(),
		}, nil
	}

	if rt.head != head {
		if err := vm.state.PutHead(msg.To, rt.head); err != nil {
			return nil, err
		}
		if err := vm.state.Commit(); err != nil {
			return nil, fmt.Errorf("failed to commit actor %s: %w", msg.To, err)
		}
		vm.log.Debug("committed", "address", msg.To, "method", msg.Method, "head", rt.head)
	}
	vm.metrics.entries.Add(float64(rt.pushes))
	vm.metrics.bytesPushed.Add(float64(rt.pushedBytes))
	return &Receipt{
		ExitCode: accumulator.ExitOK,
		Return:   ret,
	}, nil
}

// ListByOwner returns the addresses of the actors owned by [owner].
func (vm *VM) ListByOwner(ctx context.Context, owner ids.ShortID) ([]ids.ShortID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vm.lock.Lock()
	defer vm.lock.Unlock()

	if vm.closed {
		return nil, errClosed
	}
	return vm.state.ListByOwner(owner)
}

// Config returns the configuration the VM was opened with.
func (vm *VM) Config() Config { return vm.config }

// Shutdown closes the VM state. Later calls fail.
func (vm *VM) Shutdown() error {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	if vm.closed {
		return nil
	}
	vm.closed = true
	vm.log.Info("shutting down")
	return vm.state.Close()
}

func (vm *VM) observe(method accumulator.Method, err error) {
	label := "unknown"
	if method.Known() {
		label = method.String()
	}
	vm.metrics.calls.WithLabelValues(label, accumulator.ExitCodeOf(err).String()).Inc()
}

func (vm *VM) logFailure(addr ids.ShortID, method accumulator.Method, err error) {
	if accumulator.Fatal(err) {
		vm.log.Error("call failed on illegal state", "address", addr, "method", method, "err", err)
		return
	}
	vm.log.Debug("call failed", "address", addr, "method", method, "err", err)
}

// actorAddress derives the address of the [nonce]th actor, created by
// [creator].
func actorAddress(creator ids.ShortID, nonce uint64) ids.ShortID {
	p := wrappers.Packer{Bytes: make([]byte, hashing.AddrLen+wrappers.LongLen)}
	p.PackFixedBytes(creator[:])
	p.PackLong(nonce)
	return hashing.ComputeHash160Array(p.Bytes)
}
