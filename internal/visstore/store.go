// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

// Package visstore persists each rider's visible-set: the twist ids whose
// route layers the rider currently has shown on the map. One BadgerDB entry
// per rider holds the set as a JSON array, the server-side successor of the
// client-local storage key the map page used when the catalog was
// single-user.
package visstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/mototwist/mototwist/internal/logging"
	"github.com/mototwist/mototwist/internal/metrics"
)

// visibleKeyPrefix namespaces visible-set entries so the store can share a
// BadgerDB with other page-state consumers.
const visibleKeyPrefix = "visible:"

// gcDiscardRatio is the value-log rewrite threshold passed to BadgerDB GC.
const gcDiscardRatio = 0.5

// Store is a BadgerDB-backed visible-set store.
type Store struct {
	db     *badger.DB
	ownsDB bool
}

// Open opens (or creates) a BadgerDB at path and returns a store that owns
// the database; Close releases it.
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // Suppress BadgerDB logs

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db for visible-sets: %w", err)
	}

	logging.Info().Str("path", path).Msg("Visible-set store opened")
	return &Store{db: db, ownsDB: true}, nil
}

// NewWithDB wraps an existing BadgerDB shared with other stores. Close
// becomes a no-op; whoever opened the database closes it.
func NewWithDB(db *badger.DB) *Store {
	return &Store{db: db}
}

// Close closes the underlying BadgerDB if this store opened it.
func (s *Store) Close() error {
	if !s.ownsDB {
		return nil
	}
	return s.db.Close()
}

func userKey(userID string) []byte {
	return []byte(visibleKeyPrefix + userID)
}

// Get returns the rider's stored visible-set. The second return value
// reports whether a set has ever been stored: a rider who hid every twist
// gets (empty, true) while a rider who never toggled visibility gets
// (nil, false). Callers use that distinction to decide whether the list
// visibility filter applies at all.
func (s *Store) Get(ctx context.Context, userID string) ([]int64, bool, error) {
	var (
		ids   []int64
		found bool
	)

	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		ids, found, err = readSet(txn, userID)
		return err
	})
	if err != nil {
		return nil, false, err
	}

	if found && ids == nil {
		ids = []int64{}
	}

	metrics.RecordVisibleSetOp("load")
	if found {
		metrics.VisibleSetSize.Set(float64(len(ids)))
	}
	return ids, found, nil
}

// SetVisible adds twistID to (visible=true) or removes it from
// (visible=false) the rider's stored set. Both directions are idempotent.
// The first toggle materializes the set, so even a rider whose first action
// is hiding a twist ends up with a stored (empty) set.
func (s *Store) SetVisible(ctx context.Context, userID string, twistID int64, visible bool) error {
	op := "remove"
	if visible {
		op = "add"
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		ids, found, err := readSet(txn, userID)
		if err != nil {
			return err
		}

		if visible {
			for _, id := range ids {
				if id == twistID {
					return nil
				}
			}
			return writeSet(txn, userID, append(ids, twistID))
		}

		next := make([]int64, 0, len(ids))
		for _, id := range ids {
			if id != twistID {
				next = append(next, id)
			}
		}
		if found && len(next) == len(ids) {
			return nil
		}
		return writeSet(txn, userID, next)
	})
	if err != nil {
		return err
	}

	metrics.RecordVisibleSetOp(op)
	return nil
}

// RemoveTwist removes twistID from every rider's stored set. Invoked after
// a twist is deleted so stale ids do not linger in page state. Returns the
// number of riders whose set contained the id.
func (s *Store) RemoveTwist(ctx context.Context, twistID int64) (int, error) {
	// Collect affected riders first; rewriting entries during iteration
	// risks ErrTxnTooBig on large stores.
	var affected []string

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(visibleKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := string(item.Key())

			var ids []int64
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &ids)
			})
			if err != nil {
				continue
			}

			for _, id := range ids {
				if id == twistID {
					affected = append(affected, strings.TrimPrefix(key, visibleKeyPrefix))
					break
				}
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scan visible-sets: %w", err)
	}

	count := 0
	for _, userID := range affected {
		if err := s.SetVisible(ctx, userID, twistID, false); err != nil {
			logging.Warn().Err(err).
				Str("user_id", userID).
				Int64("twist_id", twistID).
				Msg("Failed to purge deleted twist from visible-set")
			continue
		}
		count++
	}

	return count, nil
}

// DeleteUser removes the rider's stored visible-set entirely. Deleting a
// rider that never stored a set is not an error.
func (s *Store) DeleteUser(ctx context.Context, userID string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(userKey(userID)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("delete visible-set: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	metrics.RecordVisibleSetOp("clear")
	return nil
}

// Count returns the number of riders with a stored visible-set.
func (s *Store) Count(ctx context.Context) (int, error) {
	count := 0

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(visibleKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})

	return count, err
}

// RunGC runs BadgerDB value-log garbage collection until no further rewrite
// is possible. The supervision tree ticks it through supervisor.BadgerGC.
func (s *Store) RunGC() error {
	for {
		err := s.db.RunValueLogGC(gcDiscardRatio)
		if errors.Is(err, badger.ErrNoRewrite) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("run GC: %w", err)
		}
	}
}

func readSet(txn *badger.Txn, userID string) ([]int64, bool, error) {
	item, err := txn.Get(userKey(userID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get visible-set: %w", err)
	}

	var ids []int64
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &ids)
	})
	if err != nil {
		return nil, false, fmt.Errorf("unmarshal visible-set: %w", err)
	}
	return ids, true, nil
}

func writeSet(txn *badger.Txn, userID string, ids []int64) error {
	data, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("marshal visible-set: %w", err)
	}
	if err := txn.Set(userKey(userID), data); err != nil {
		return fmt.Errorf("set visible-set: %w", err)
	}
	return nil
}
