// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package accumulator

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthorized     = errors.New("unauthorized")
	ErrCapacityExceeded = errors.New("capacity exceeded")
	ErrNotFound         = errors.New("not found")
	ErrEncoding         = errors.New("encoding error")
	ErrIllegalState     = errors.New("illegal state")
	ErrUnhandledMessage = errors.New("unhandled message")

	// ErrIllegalArgument is malformed input that decoded fine.
	ErrIllegalArgument = fmt.Errorf("%w: illegal argument", ErrEncoding)
	ErrPayloadTooLarge = fmt.Errorf("%w: payload too large", ErrIllegalArgument)
	ErrRangeTooLarge   = fmt.Errorf("%w: range does not fit in one reply", ErrIllegalArgument)

	errAlreadyConstructed = fmt.Errorf("%w: already constructed", ErrIllegalState)
	errNotConstructed     = fmt.Errorf("%w: not constructed", ErrIllegalState)
)

// ExitCode is the outcome of a call as reported to the host.
type ExitCode uint32

const (
	ExitOK               ExitCode = 0
	ExitIllegalArgument  ExitCode = 16
	ExitNotFound         ExitCode = 17
	ExitForbidden        ExitCode = 18
	ExitIllegalState     ExitCode = 20
	ExitSerialization    ExitCode = 21
	ExitUnhandledMessage ExitCode = 22

	// Codes from 32 up belong to the actor.
	ExitCapacityExceeded ExitCode = 32
)

var exitCodes = []struct {
	err  error
	code ExitCode
}{
	{err: ErrUnauthorized, code: ExitForbidden},
	{err: ErrCapacityExceeded, code: ExitCapacityExceeded},
	{err: ErrNotFound, code: ExitNotFound},
	{err: ErrIllegalArgument, code: ExitIllegalArgument},
	{err: ErrEncoding, code: ExitSerialization},
	{err: ErrUnhandledMessage, code: ExitUnhandledMessage},
	{err: ErrIllegalState, code: ExitIllegalState},
}

// ExitCodeOf classifies [err]. Unclassified errors are illegal state.
func ExitCodeOf(err error) ExitCode {
	if err == nil {
		return ExitOK
	}
	for _, e := range exitCodes {
		if errors.Is(err, e.err) {
			return e.code
		}
	}
	return ExitIllegalState
}

func (c ExitCode) String() string {
	switch c {
	case ExitOK:
		return "ok"
	case ExitIllegalArgument:
		return "illegal_argument"
	case ExitNotFound:
		return "not_found"
	case ExitForbidden:
		return "forbidden"
	case ExitIllegalState:
		return "illegal_state"
	case ExitSerialization:
		return "serialization"
	case ExitUnhandledMessage:
		return "unhandled_message"
	case ExitCapacityExceeded:
		return "capacity_exceeded"
	default:
		return fmt.Sprintf("exit(%d)", uint32(c))
	}
}

// Fatal reports whether [err] means the persisted record can not be trusted.
func Fatal(err error) bool {
	return err != nil && ExitCodeOf(err) == ExitIllegalState
}
