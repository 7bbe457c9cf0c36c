// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package accumulatorvm

import (
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/hashing"
)

var (
	errActorExists  = errors.New("actor already exists")
	errBadOwnerKey  = errors.New("malformed owner index key")
	errBadActorHead = errors.New("malformed actor head")

	_ ActorState = &actorState{}
)

// ActorState maps actor addresses to the head of their state and indexes
// actors by owner.
type ActorState interface {
	GetHead(addr ids.ShortID) (ids.ID, error)
	PutHead(addr ids.ShortID, head ids.ID) error
	HasActor(addr ids.ShortID) (bool, error)

	AddActor(owner, addr ids.ShortID, head ids.ID) error
	ListByOwner(owner ids.ShortID) ([]ids.ShortID, error)
}

type actorState struct {
	actorDB database.Database
	ownerDB database.Database
}

func NewActorState(actorDB, ownerDB database.Database) ActorState {
	return &actorState{
		actorDB: actorDB,
		ownerDB: ownerDB,
	}
}

func (s *actorState) GetHead(addr ids.ShortID) (ids.ID, error) {
	headBytes, err := s.actorDB.Get(addr[:])
	if err != nil {
		return ids.Empty, err
	}
	head, err := ids.ToID(headBytes)
	if err != nil {
		return ids.Empty, fmt.Errorf("%w: %s: %v", errBadActorHead, addr, err)
	}
	return head, nil
}

func (s *actorState) PutHead(addr ids.ShortID, head ids.ID) error {
	return s.actorDB.Put(addr[:], head[:])
}

func (s *actorState) HasActor(addr ids.ShortID) (bool, error) {
	return s.actorDB.Has(addr[:])
}

func (s *actorState) AddActor(owner, addr ids.ShortID, head ids.ID) error {
	has, err := s.HasActor(addr)
	if err != nil {
		return err
	}
	if has {
		return fmt.Errorf("%w: %s", errActorExists, addr)
	}
	if err := s.PutHead(addr, head); err != nil {
		return err
	}
	return s.ownerDB.Put(ownerKey(owner, addr), nil)
}

// ListByOwner returns the actors of [owner] in address order.
func (s *actorState) ListByOwner(owner ids.ShortID) ([]ids.ShortID, error) {
	it := s.ownerDB.NewIteratorWithPrefix(owner[:])
	defer it.Release()

	var addrs []ids.ShortID
	for it.Next() {
		key := it.Key()
		if len(key) != 2*hashing.AddrLen {
			return nil, fmt.Errorf("%w: %x", errBadOwnerKey, key)
		}
		addr, err := ids.ToShortID(key[hashing.AddrLen:])
		if err != nil {
			return nil, err
		}
		addrs = append(addrs, addr)
	}
	return addrs, it.Error()
}

func ownerKey(owner, addr ids.ShortID) []byte {
	key := make([]byte, 0, 2*hashing.AddrLen)
	key = append(key, owner[:]...)
	return append(key, addr[:]...)
}
