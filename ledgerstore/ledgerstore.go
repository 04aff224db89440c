// Copyright (c) 2025 The NCN Labs developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package ledgerstore provides the in-process account store backing
// cmd/ncnsim's deterministic harness: every core account (Config,
// VaultRegistry, EpochState, WeightTable, snapshots, BallotBox, routers)
// is addressed by its pdaddr-derived key and persisted as an opaque
// byte blob, the way the real ledger runtime persists account data. It
// is not part of the on-chain core itself; the core packages never
// import it.
package ledgerstore

import (
	"errors"

	"github.com/ncn-labs/tip-router-core/pubkey"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// ErrNotFound is returned when an account key has no stored blob.
var ErrNotFound = errors.New("ledgerstore: account not found")

// Store is a goleveldb-backed key/value account store keyed by
// pdaddr-derived account addresses.
type Store struct {
	db *leveldb.DB
}

// Open opens (creating if absent) a leveldb database at dir.
func Open(dir string) (*Store, error) {
	db, err := leveldb.OpenFile(dir, nil)
	if err != nil {
		return nil, err
	}
	log.Infof("ledgerstore: opened account database %q", dir)
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	log.Infof("ledgerstore: closing account database")
	return s.db.Close()
}

// Put writes data under account's address, overwriting any prior value.
func (s *Store) Put(account pubkey.Key, data []byte) error {
	return s.db.Put(account[:], data, nil)
}

// Get reads the blob stored under account's address.
func (s *Store) Get(account pubkey.Key) ([]byte, error) {
	data, err := s.db.Get(account[:], nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Has reports whether account has a stored blob.
func (s *Store) Has(account pubkey.Key) (bool, error) {
	return s.db.Has(account[:], nil)
}

// Delete removes account's stored blob, modeling close_epoch_account's
// lamport zeroing and discriminator invalidation.
func (s *Store) Delete(account pubkey.Key) error {
	return s.db.Delete(account[:], nil)
}

// Prefix iterates every account whose address begins with the bytes of
// prefix, yielding each via fn in key order. Used
// to enumerate e.g. every per-epoch account under one NCN during test
// harness teardown.
func (s *Store) Prefix(prefix []byte, fn func(account pubkey.Key, data []byte) error) error {
	iter := s.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()

	for iter.Next() {
		var key pubkey.Key
		copy(key[:], iter.Key())
		data := make([]byte, len(iter.Value()))
		copy(data, iter.Value())
		if err := fn(key, data); err != nil {
			return err
		}
	}
	return iter.Error()
}

// Batch applies a set of writes atomically.
type Batch struct {
	b *leveldb.Batch
}

// NewBatch starts an empty Batch.
func NewBatch() *Batch { return &Batch{b: new(leveldb.Batch)} }

// Put stages a write into the batch.
func (b *Batch) Put(account pubkey.Key, data []byte) { b.b.Put(account[:], data) }

// Delete stages a deletion into the batch.
func (b *Batch) Delete(account pubkey.Key) { b.b.Delete(account[:]) }

// Commit applies the batch's staged writes atomically.
func (s *Store) Commit(b *Batch) error { return s.db.Write(b.b, nil) }
