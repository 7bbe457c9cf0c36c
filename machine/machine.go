// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package machine holds the ownership and access record shared by every
// machine actor kind.
package machine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils"
	"github.com/ava-labs/avalanchego/utils/set"
)

var (
	ErrUnknownKind   = errors.New("unknown machine kind")
	ErrUnknownAccess = errors.New("unknown access policy")
	ErrNoOwner       = errors.New("machine has no owner")
	ErrAllowlist     = errors.New("allowlist is not sorted and unique")

	_ Capability = (*Machine)(nil)
)

// Kind is the type of a machine actor.
type Kind uint8

const (
	ObjectStore Kind = iota
	Accumulator
)

func (k Kind) String() string {
	switch k {
	case ObjectStore:
		return "objectstore"
	case Accumulator:
		return "accumulator"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

func (k Kind) Valid() bool { return k <= Accumulator }

// Access is an authorization policy. Default is only meaningful when a
// machine is being constructed, it never appears in a persisted record.
type Access uint8

const (
	Default Access = iota
	OnlyOwner
	Public
	Allowlist
)

var accessNames = map[Access]string{
	Default:   "default",
	OnlyOwner: "onlyOwner",
	Public:    "public",
	Allowlist: "allowlist",
}

func (a Access) String() string {
	if name, ok := accessNames[a]; ok {
		return name
	}
	return fmt.Sprintf("access(%d)", uint8(a))
}

// ParseAccess is the inverse of String. It is case insensitive and maps the
// empty string to Default.
func ParseAccess(s string) (Access, error) {
	if s == "" {
		return Default, nil
	}
	for a, name := range accessNames {
		if strings.EqualFold(s, name) {
			return a, nil
		}
	}
	return Default, fmt.Errorf("%w: %q", ErrUnknownAccess, s)
}

// Resolve replaces Default with [fallback].
func (a Access) Resolve(fallback Access) Access {
	if a == Default {
		return fallback
	}
	return a
}

// Capability is what an actor consults before touching its state.
type Capability interface {
	Kind() Kind
	Owner() ids.ShortID
	AuthorizeWrite(caller ids.ShortID) bool
	AuthorizeRead(caller ids.ShortID) bool
}

// Metadata is the persisted ownership record. Writes default to the owner
// alone and reads default to anyone.
type Metadata struct {
	Kind        Kind          `serialize:"true"`
	Owner       ids.ShortID   `serialize:"true"`
	WriteAccess Access        `serialize:"true"`
	ReadAccess  Access        `serialize:"true"`
	Allowlist   []ids.ShortID `serialize:"true"`
}

// NewMetadata resolves default policies and normalizes the allowlist.
func NewMetadata(kind Kind, owner ids.ShortID, write, read Access, allowlist []ids.ShortID) (Metadata, error) {
	md := Metadata{
		Kind:        kind,
		Owner:       owner,
		WriteAccess: write.Resolve(OnlyOwner),
		ReadAccess:  read.Resolve(Public),
		Allowlist:   SortAllowlist(allowlist),
	}
	return md, md.Verify()
}

// Verify checks that [md] is a well formed persisted record.
func (md *Metadata) Verify() error {
	switch {
	case !md.Kind.Valid():
		return fmt.Errorf("%w: %s", ErrUnknownKind, md.Kind)
	case md.Owner == ids.ShortEmpty:
		return ErrNoOwner
	}
	for _, a := range []Access{md.WriteAccess, md.ReadAccess} {
		if a == Default || a > Allowlist {
			return fmt.Errorf("%w: %s", ErrUnknownAccess, a)
		}
	}
	if !utils.IsSortedAndUniqueSortable(md.Allowlist) {
		return ErrAllowlist
	}
	return nil
}

// SortAllowlist returns a sorted copy of [addrs] without duplicates or the
// empty address. It returns nil when nothing is left.
func SortAllowlist(addrs []ids.ShortID) []ids.ShortID {
	unique := set.NewSet[ids.ShortID](len(addrs))
	unique.Add(addrs...)
	unique.Remove(ids.ShortEmpty)
	if unique.Len() == 0 {
		return nil
	}
	sorted := unique.List()
	utils.Sort(sorted)
	return sorted
}

// Machine answers authorization questions for a verified record.
type Machine struct {
	md        Metadata
	allowlist set.Set[ids.ShortID]
}

// New verifies [md] and returns its capability.
func New(md Metadata) (*Machine, error) {
	if err := md.Verify(); err != nil {
		return nil, err
	}
	allowlist := set.NewSet[ids.ShortID](len(md.Allowlist))
	allowlist.Add(md.Allowlist...)
	return &Machine{
		md:        md,
		allowlist: allowlist,
	}, nil
}

func (m *Machine) Kind() Kind         { return m.md.Kind }
func (m *Machine) Owner() ids.ShortID { return m.md.Owner }

func (m *Machine) AuthorizeWrite(caller ids.ShortID) bool {
	return m.allowed(m.md.WriteAccess, caller)
}

func (m *Machine) AuthorizeRead(caller ids.ShortID) bool {
	return m.allowed(m.md.ReadAccess, caller)
}

func (m *Machine) allowed(access Access, caller ids.ShortID) bool {
	if caller == m.md.Owner {
		return true
	}
	switch access {
	case Public:
		return true
	case Allowlist:
		return m.allowlist.Contains(caller)
	default:
		return false
	}
}
