// Package store implements the persistent byte-keyed KV store of spec §4.7
// over syndtr/goleveldb, adapting the shape of the teacher's tosdb/leveldb
// wrapper (a thin Database{db *leveldb.DB} around Get/Put/Delete/Has) to
// spec's own tagged-key scheme rather than the teacher's ethdb KeyValueStore
// interface.
package store

import (
	"os"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/errors"

	"github.com/lk-network/lkchain/lkerrors"
)

// Tag is the one-byte key-type prefix of spec §4.7.
type Tag byte

const (
	TagBlock             Tag = 1
	TagPreviousBlockHash Tag = 2
	TagSystem            Tag = 3
)

// SystemLastBlockHashKey is the well-known SYSTEM-tagged key pointing at
// the current chain tip (spec §4.7/§6.2).
const SystemLastBlockHashKey = "last_block_hash"

// OpenMode selects whether the store directory is emptied on startup.
type OpenMode int

const (
	OpenDefault OpenMode = iota
	OpenClear
)

// Store is a byte-keyed persistent KV store: put, get, exists, remove.
// Callers serialize concurrent access externally (spec §5: "the persistent
// store is externally synchronized through _database_rw_mutex").
type Store struct {
	db *leveldb.DB
}

func Open(path string, mode OpenMode) (*Store, error) {
	if mode == OpenClear {
		if err := os.RemoveAll(path); err != nil {
			return nil, lkerrors.Wrap(lkerrors.DatabaseError, "store: clear directory", err)
		}
	}
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, lkerrors.Wrap(lkerrors.DatabaseError, "store: open", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return lkerrors.Wrap(lkerrors.DatabaseError, "store: close", err)
	}
	return nil
}

func MakeKey(tag Tag, payload []byte) []byte {
	k := make([]byte, 1+len(payload))
	k[0] = byte(tag)
	copy(k[1:], payload)
	return k
}

func (s *Store) Put(key, value []byte) error {
	if err := s.db.Put(key, value, nil); err != nil {
		return lkerrors.Wrap(lkerrors.DatabaseError, "store: put", err)
	}
	return nil
}

// Get returns (value, true, nil) if key exists, (nil, false, nil) if it
// does not, or (nil, false, err) on a real I/O failure.
func (s *Store) Get(key []byte) ([]byte, bool, error) {
	v, err := s.db.Get(key, nil)
	if err == errors.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, lkerrors.Wrap(lkerrors.DatabaseError, "store: get", err)
	}
	return v, true, nil
}

func (s *Store) Exists(key []byte) (bool, error) {
	ok, err := s.db.Has(key, nil)
	if err != nil {
		return false, lkerrors.Wrap(lkerrors.DatabaseError, "store: exists", err)
	}
	return ok, nil
}

func (s *Store) Remove(key []byte) error {
	if err := s.db.Delete(key, nil); err != nil {
		return lkerrors.Wrap(lkerrors.DatabaseError, "store: remove", err)
	}
	return nil
}
