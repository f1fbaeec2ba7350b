// Package badgerstore implements store.Store on top of BadgerDB, an
// embedded ordered key-value engine whose transactions and prefix
// iterators give the telemetry store exactly the range-scan and atomic
// batch-write primitives store.Store requires.
package badgerstore

import (
	"context"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/kadirpekel/spanstore/pkg/telemetry/store"
)

// Store wraps a *badger.DB.
type Store struct {
	db *badger.DB
}

// Open opens (creating if absent) a BadgerDB instance rooted at dir.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badgerstore: open %s: %w", dir, err)
	}
	return &Store{db: db}, nil
}

// New wraps an already-opened *badger.DB, for callers (tests) that manage
// the database lifecycle themselves.
func New(db *badger.DB) *Store {
	return &Store{db: db}
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Iterate performs a range scan per params using a prefetching iterator.
// Badger's Seek is inclusive of an exact match, so FromKey is included,
// giving the half-open [FromKey, ToKey) interval store.IterateParams
// describes.
func (s *Store) Iterate(_ context.Context, params store.IterateParams, visit store.VisitFunc) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = !params.NoValues
		opts.Reverse = !params.Ascending

		it := txn.NewIterator(opts)
		defer it.Close()

		if params.Ascending {
			if len(params.FromKey) == 0 {
				it.Rewind()
			} else {
				it.Seek(params.FromKey)
			}
		} else {
			if len(params.ToKey) == 0 {
				it.Rewind()
			} else {
				// Reverse iteration starts at the largest key <= seek key;
				// ToKey is exclusive, so seek to just before it.
				it.Seek(prevKey(params.ToKey))
			}
		}

		for ; it.Valid(); it.Next() {
			item := it.Item()
			key := item.KeyCopy(nil)

			if params.Ascending && len(params.ToKey) > 0 && compareBytes(key, params.ToKey) >= 0 {
				break
			}
			if !params.Ascending && len(params.FromKey) > 0 && compareBytes(key, params.FromKey) < 0 {
				break
			}

			var value []byte
			if !params.NoValues {
				v, err := item.ValueCopy(nil)
				if err != nil {
					return fmt.Errorf("badgerstore: read value: %w", err)
				}
				value = v
			}

			cont, err := visit(key, value)
			if err != nil {
				return err
			}
			if !cont {
				return nil
			}
		}
		return nil
	})
}

// Write applies every operation in batch inside one Badger transaction,
// committed atomically.
func (s *Store) Write(_ context.Context, batch *store.Batch) error {
	return s.db.Update(func(txn *badger.Txn) error {
		for _, op := range batch.Ops() {
			if op.Delete {
				if err := txn.Delete(op.Key); err != nil {
					return fmt.Errorf("badgerstore: delete %x: %w", op.Key, err)
				}
				continue
			}
			if err := txn.Set(op.Key, op.Value); err != nil {
				return fmt.Errorf("badgerstore: set %x: %w", op.Key, err)
			}
		}
		return nil
	})
}

// GetValue fetches a single key's value.
func (s *Store) GetValue(_ context.Context, key []byte) ([]byte, bool, error) {
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, false, fmt.Errorf("badgerstore: get %x: %w", key, err)
	}
	if value == nil {
		return nil, false, nil
	}
	return value, true, nil
}

// DeleteRange deletes every key in [from, to) by iterating key-only and
// dropping each into a transaction, since Badger has no native
// range-delete primitive.
func (s *Store) DeleteRange(_ context.Context, from, to []byte) error {
	var keys [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(from); it.Valid(); it.Next() {
			key := it.Item().KeyCopy(nil)
			if len(to) > 0 && compareBytes(key, to) >= 0 {
				break
			}
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("badgerstore: scan delete range: %w", err)
	}

	const chunkSize = 1000
	for i := 0; i < len(keys); i += chunkSize {
		end := i + chunkSize
		if end > len(keys) {
			end = len(keys)
		}
		err := s.db.Update(func(txn *badger.Txn) error {
			for _, k := range keys[i:end] {
				if err := txn.Delete(k); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("badgerstore: delete range batch: %w", err)
		}
	}
	return nil
}

func compareBytes(a, b []byte) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

// prevKey returns the largest byte string strictly less than key, used to
// seek a reverse iterator to just before an exclusive upper bound.
func prevKey(key []byte) []byte {
	out := append([]byte(nil), key...)
	for i := len(out) - 1; i >= 0; i-- {
		if out[i] > 0 {
			out[i]--
			return append(out[:i+1], 0xff)
		}
		out = out[:i]
	}
	return out
}
