// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package accumulatorvm

import (
	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/database/prefixdb"
	"github.com/ava-labs/avalanchego/database/versiondb"

	"github.com/ava-labs/accumulatorvm/blockstore"
)

var (
	// These are prefixes for db keys.
	// It's important to set different prefixes for each separate database objects.
	singletonStatePrefix = []byte("singleton")
	actorStatePrefix     = []byte("actor")
	ownerStatePrefix     = []byte("owner")
	blockStatePrefix     = []byte("block")

	_ State = &state{}
)

// State is a wrapper around the singleton state, the actor registry and the
// blockstore shared by all actors. Writes are buffered until Commit and
// dropped by Abort.
type State interface {
	SingletonState
	ActorState

	Blockstore() blockstore.Blockstore

	Commit() error
	Abort()
	Close() error
}

type state struct {
	SingletonState
	ActorState

	blocks blockstore.Blockstore
	baseDB *versiondb.Database
}

func NewState(db database.Database) State {
	// create a new baseDB
	baseDB := versiondb.New(db)

	// create prefixed databases from baseDB
	singletonDB := prefixdb.New(singletonStatePrefix, baseDB)
	actorDB := prefixdb.New(actorStatePrefix, baseDB)
	ownerDB := prefixdb.New(ownerStatePrefix, baseDB)
	blockDB := prefixdb.New(blockStatePrefix, baseDB)

	return &state{
		SingletonState: NewSingletonState(singletonDB),
		ActorState:     NewActorState(actorDB, ownerDB),
		blocks:         blockstore.New(blockDB),
		baseDB:         baseDB,
	}
}

func (s *state) Blockstore() blockstore.Blockstore { return s.blocks }

// Commit commits pending operations to baseDB
func (s *state) Commit() error {
	return s.baseDB.Commit()
}

// Abort discards pending operations
func (s *state) Abort() {
	s.baseDB.Abort()
}

// Close closes the underlying base database
func (s *state) Close() error {
	return s.baseDB.Close()
}
