// Copyright (C) 2025 Brimu (dev@brimu.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package notify

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/amadalihammoud/brimu-telemetry/pkg/logging"
	"github.com/amadalihammoud/brimu-telemetry/services/telemetry/datatypes"
)

// keyPrefix namespaces notification records in the key space.
const keyPrefix = "notif:"

// BadgerStore persists notifications in an embedded Badger database.
//
// # Description
//
// Records with an expiry also carry a Badger TTL, so the database
// reclaims them on its own; SweepExpired handles the ones Badger has
// not compacted yet. Surviving a restart is the point: unread
// notifications are still listable after the process comes back.
type BadgerStore struct {
	db  *badger.DB
	log *logging.Logger
}

var _ Store = (*BadgerStore)(nil)

// OpenBadgerStore opens (or creates) the database at dir. An empty dir
// opens an in-memory database, used by tests.
func OpenBadgerStore(dir string, log *logging.Logger) (*BadgerStore, error) {
	var opts badger.Options
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(dir)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening notification store: %w", err)
	}
	return &BadgerStore{db: db, log: log}, nil
}

func notifKey(id string) []byte {
	return []byte(keyPrefix + id)
}

// Put stores a notification, attaching a TTL when it expires.
func (s *BadgerStore) Put(n datatypes.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encoding notification: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(notifKey(n.ID), data)
		if !n.ExpiresAt.IsZero() {
			ttl := time.Until(n.ExpiresAt)
			if ttl <= 0 {
				ttl = time.Second
			}
			e = e.WithTTL(ttl)
		}
		return txn.SetEntry(e)
	})
}

// Get loads one notification. The second return is false when absent.
func (s *BadgerStore) Get(id string) (datatypes.Notification, bool, error) {
	var n datatypes.Notification
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(notifKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			return json.Unmarshal(v, &n)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return n, false, nil
	}
	if err != nil {
		return n, false, fmt.Errorf("loading notification: %w", err)
	}
	return n, true, nil
}

// Update rewrites a stored notification, preserving its TTL semantics.
func (s *BadgerStore) Update(n datatypes.Notification) error {
	return s.Put(n)
}

// List returns stored notifications, newest first.
func (s *BadgerStore) List(limit int, unreadOnly bool) ([]datatypes.Notification, error) {
	var out []datatypes.Notification
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var n datatypes.Notification
			if err := it.Item().Value(func(v []byte) error {
				return json.Unmarshal(v, &n)
			}); err != nil {
				return err
			}
			if unreadOnly && n.Read {
				continue
			}
			out = append(out, n)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Delete removes one notification. Absent keys are not an error.
func (s *BadgerStore) Delete(id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete(notifKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
}

// SweepExpired removes notifications past their application-level
// expiry that Badger's own TTL has not reclaimed yet.
func (s *BadgerStore) SweepExpired(now time.Time) (int, error) {
	var expired []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var n datatypes.Notification
			if err := it.Item().Value(func(v []byte) error {
				return json.Unmarshal(v, &n)
			}); err != nil {
				return err
			}
			if n.Expired(now) {
				expired = append(expired, n.ID)
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scanning for expired notifications: %w", err)
	}

	for _, id := range expired {
		if err := s.Delete(id); err != nil {
			return 0, fmt.Errorf("deleting expired notification %q: %w", id, err)
		}
	}
	return len(expired), nil
}

// Close releases the database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
