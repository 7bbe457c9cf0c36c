// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package blockstore is a content-addressed block store. Blocks are keyed by
// the SHA-256 hash of their bytes.
package blockstore

import (
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/hashing"
)

var (
	// ErrNotFound is returned when no block is stored under the requested id.
	ErrNotFound = database.ErrNotFound
	// ErrCorrupt is returned when the stored bytes do not hash to their key.
	ErrCorrupt = errors.New("block does not match its id")

	_ Blockstore = (*dbBlockstore)(nil)
)

// Blockstore stores immutable blocks addressed by their content hash.
type Blockstore interface {
	// Get returns the block stored under [id].
	Get(id ids.ID) ([]byte, error)
	// Put stores [block] and returns its id. Putting a block that is already
	// present is a no-op.
	Put(block []byte) (ids.ID, error)
	// Has reports whether a block with [id] is stored.
	Has(id ids.ID) (bool, error)
}

// ID returns the id [block] would be stored under.
func ID(block []byte) ids.ID {
	return hashing.ComputeHash256Array(block)
}

type dbBlockstore struct {
	db database.Database
}

// New returns a Blockstore that keeps its blocks in [db].
func New(db database.Database) Blockstore {
	return &dbBlockstore{db: db}
}

func (s *dbBlockstore) Get(id ids.ID) ([]byte, error) {
	block, err := s.db.Get(id[:])
	if err != nil {
		return nil, fmt.Errorf("failed to get block %s: %w", id, err)
	}
	if ID(block) != id {
		return nil, fmt.Errorf("%w: %s", ErrCorrupt, id)
	}
	return block, nil
}

func (s *dbBlockstore) Put(block []byte) (ids.ID, error) {
	id := ID(block)
	has, err := s.db.Has(id[:])
	if err != nil {
		return ids.Empty, fmt.Errorf("failed to check block %s: %w", id, err)
	}
	if has {
		return id, nil
	}
	if err := s.db.Put(id[:], block); err != nil {
		return ids.Empty, fmt.Errorf("failed to put block %s: %w", id, err)
	}
	return id, nil
}

func (s *dbBlockstore) Has(id ids.ID) (bool, error) {
	return s.db.Has(id[:])
}
