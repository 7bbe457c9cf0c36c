// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package accumulatorvm

import (
	"errors"

	"github.com/ava-labs/avalanchego/database"
)

const (
	IsInitializedKey byte = iota
	NonceKey
)

var (
	isInitializedKey                = []byte{IsInitializedKey}
	nonceKey                        = []byte{NonceKey}
	_                SingletonState = (*singletonState)(nil)
)

// SingletonState is a thin wrapper around a database to provide
// serialization and de-serialization of the VM wide values.
type SingletonState interface {
	IsInitialized() (bool, error)
	SetInitialized() error

	// Nonce is the number of actors created so far.
	Nonce() (uint64, error)
	SetNonce(nonce uint64) error
}

type singletonState struct {
	singletonDB database.Database
}

func NewSingletonState(db database.Database) SingletonState {
	return &singletonState{
		singletonDB: db,
	}
}

func (s *singletonState) IsInitialized() (bool, error) {
	return s.singletonDB.Has(isInitializedKey)
}

func (s *singletonState) SetInitialized() error {
	return s.singletonDB.Put(isInitializedKey, nil)
}

func (s *singletonState) Nonce() (uint64, error) {
	nonce, err := database.GetUInt64(s.singletonDB, nonceKey)
	if errors.Is(err, database.ErrNotFound) {
		return 0, nil
	}
	return nonce, err
}

func (s *singletonState) SetNonce(nonce uint64) error {
	return database.PutUInt64(s.singletonDB, nonceKey, nonce)
}
