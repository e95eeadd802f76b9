// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

// stateKeyPrefix namespaces OIDC state entries in the shared BadgerDB.
const stateKeyPrefix = "oidc_state:"

// BadgerStateStore implements StateStore on BadgerDB so logins started
// before a restart can still complete. It shares the session database.
type BadgerStateStore struct {
	db *badger.DB
}

// NewBadgerStateStore creates a state store over an open BadgerDB.
func NewBadgerStateStore(db *badger.DB) *BadgerStateStore {
	return &BadgerStateStore{db: db}
}

// Store saves state data with a TTL matching its expiry.
func (s *BadgerStateStore) Store(ctx context.Context, key string, state *StateData) error {
	if key == "" {
		return errors.New("state key cannot be empty")
	}
	if state == nil {
		return errors.New("state data cannot be nil")
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(stateKeyPrefix+key), data)
		if ttl := time.Until(state.ExpiresAt); ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
}

// Get retrieves state data by key.
func (s *BadgerStateStore) Get(ctx context.Context, key string) (*StateData, error) {
	if key == "" {
		return nil, ErrStateNotFound
	}

	var state StateData

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(stateKeyPrefix + key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrStateNotFound
		}
		if err != nil {
			return fmt.Errorf("get state: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &state)
		})
	})
	if err != nil {
		return nil, err
	}

	if state.IsExpired() {
		//nolint:errcheck // best-effort removal of an already-expired state
		s.Delete(ctx, key)
		return nil, ErrStateExpired
	}

	return &state, nil
}

// Delete removes state data by key.
func (s *BadgerStateStore) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}

	return s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete([]byte(stateKeyPrefix + key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
}

// CleanupExpired removes expired states that badger's TTL has not yet
// reclaimed.
func (s *BadgerStateStore) CleanupExpired(ctx context.Context) (int, error) {
	var expired []string

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(stateKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var state StateData
			key := string(it.Item().Key())
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &state)
			}); err != nil {
				continue
			}
			if state.IsExpired() {
				expired = append(expired, key[len(stateKeyPrefix):])
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scan states: %w", err)
	}

	count := 0
	for _, key := range expired {
		if err := s.Delete(ctx, key); err != nil {
			continue
		}
		count++
	}

	return count, nil
}

// Compile-time interface checks.
var (
	_ StateStore = (*MemoryStateStore)(nil)
	_ StateStore = (*BadgerStateStore)(nil)
)
