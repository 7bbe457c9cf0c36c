// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package accumulator

import (
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// Method selects an operation of a call.
type Method uint64

const (
	MethodConstructor Method = 1

	// Selectors below this are reserved for built in methods.
	firstExportedMethod = 1 << 24
	constructorName     = "Constructor"
)

var (
	errIllegalName = errors.New("illegal method name")
	errNoSelector  = errors.New("no selector in method name hash")

	MethodGetMetadata = MustMethodHash("GetMetadata")
	MethodPush        = MustMethodHash("Push")
	MethodGet         = MustMethodHash("Get")
	MethodGetRange    = MustMethodHash("GetRange")
	MethodRoot        = MustMethodHash("Root")
	MethodPeaks       = MustMethodHash("Peaks")
	MethodCount       = MustMethodHash("Count")

	methodNames = map[Method]string{
		MethodConstructor: constructorName,
		MethodGetMetadata: "GetMetadata",
		MethodPush:        "Push",
		MethodGet:         "Get",
		MethodGetRange:    "GetRange",
		MethodRoot:        "Root",
		MethodPeaks:       "Peaks",
		MethodCount:       "Count",
	}
)

// MethodHash derives the selector of an exported method from its name. The
// name must start with an upper case letter and continue with letters, digits
// or underscores. The selector is the first 4 byte big endian word of
// blake2b-512("1|" + name) that is not reserved.
func MethodHash(name string) (Method, error) {
	if name == constructorName || !validName(name) {
		return 0, fmt.Errorf("%w: %q", errIllegalName, name)
	}
	digest := blake2b.Sum512([]byte("1|" + name))
	for i := 0; i+4 <= len(digest); i += 4 {
		if word := binary.BigEndian.Uint32(digest[i:]); word >= firstExportedMethod {
			return Method(word), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", errNoSelector, name)
}

// MustMethodHash is MethodHash for names known to be valid.
func MustMethodHash(name string) Method {
	m, err := MethodHash(name)
	if err != nil {
		panic(err)
	}
	return m
}

// MethodNumber returns the selector of [name], including the constructor.
func MethodNumber(name string) (Method, error) {
	if name == constructorName {
		return MethodConstructor, nil
	}
	return MethodHash(name)
}

// Known reports whether [m] selects a method of the accumulator.
func (m Method) Known() bool {
	_, ok := methodNames[m]
	return ok
}

func (m Method) String() string {
	if name, ok := methodNames[m]; ok {
		return name
	}
	return fmt.Sprintf("method(%d)", uint64(m))
}

func validName(name string) bool {
	if name == "" || name[0] < 'A' || name[0] > 'Z' {
		return false
	}
	for i := 1; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_':
		default:
			return false
		}
	}
	return true
}
