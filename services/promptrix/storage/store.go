package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/dgraph-io/badger/v4"

	"github.com/fatinm1/promptrix/services/promptrix/datatypes"
)

const (
	testKeyPrefix   = "test/"
	resultKeyPrefix = "result/"
)

// ErrNotFound is returned when a test ID has no stored definition.
var ErrNotFound = errors.New("test not found")

// ErrInvalidTransition is returned for illegal status changes, such as
// moving a completed test back to running.
var ErrInvalidTransition = errors.New("invalid status transition")

// Store is the persistence collaborator for tests and their results.
// Results are append-only: the store exposes no way to edit or delete
// a recorded PairwiseResult.
type Store struct {
	db   *badger.DB
	stop chan struct{}
}

// New opens a store with the given configuration and starts value log
// GC when the config enables it. Call Close when done.
func New(cfg Config) (*Store, error) {
	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db, stop: make(chan struct{})}
	if cfg.GCInterval > 0 && cfg.Logger != nil {
		go runGC(db, cfg.GCInterval, cfg.GCDiscardRatio, cfg.Logger, store.stop)
	}
	return store, nil
}

// NewInMemory opens a throwaway in-memory store, mainly for tests.
func NewInMemory() (*Store, error) {
	return New(InMemoryConfig())
}

func (s *Store) Close() error {
	close(s.stop)
	return s.db.Close()
}

func testKey(id string) []byte {
	return []byte(testKeyPrefix + id)
}

func resultKey(testID, resultID string) []byte {
	return []byte(resultKeyPrefix + testID + "/" + resultID)
}

// CreateTest stores a new test definition.
func (s *Store) CreateTest(_ context.Context, test datatypes.ABTest) error {
	value, err := json.Marshal(test)
	if err != nil {
		return fmt.Errorf("marshal test %s: %w", test.ID, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(testKey(test.ID), value)
	})
	if err != nil {
		return fmt.Errorf("store test %s: %w", test.ID, err)
	}
	return nil
}

// GetTest loads a test definition by ID. Returns ErrNotFound for
// unknown IDs.
func (s *Store) GetTest(_ context.Context, id string) (datatypes.ABTest, error) {
	var test datatypes.ABTest
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(testKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			return json.Unmarshal(value, &test)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return datatypes.ABTest{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return datatypes.ABTest{}, fmt.Errorf("load test %s: %w", id, err)
	}
	return test, nil
}

// UpdateStatus moves a test to the given run status inside a single
// transaction. Illegal transitions return ErrInvalidTransition; a test
// never regresses to an earlier state.
func (s *Store) UpdateStatus(_ context.Context, id string, status datatypes.RunStatus) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(testKey(id))
		if err != nil {
			return err
		}
		var test datatypes.ABTest
		if err := item.Value(func(value []byte) error {
			return json.Unmarshal(value, &test)
		}); err != nil {
			return err
		}
		if !test.Status.CanTransition(status) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, test.Status, status)
		}
		test.Status = status
		value, err := json.Marshal(test)
		if err != nil {
			return err
		}
		return txn.Set(testKey(id), value)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil && !errors.Is(err, ErrInvalidTransition) {
		return fmt.Errorf("update test %s status: %w", id, err)
	}
	return err
}

// AppendResult stores one PairwiseResult under its test's key prefix.
// Safe for concurrent use; every result has a unique ID so concurrent
// appends never collide.
func (s *Store) AppendResult(_ context.Context, result datatypes.PairwiseResult) error {
	value, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result %s: %w", result.ID, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(resultKey(result.TestID, result.ID), value)
	})
	if err != nil {
		return fmt.Errorf("store result %s: %w", result.ID, err)
	}
	return nil
}

// ListResults returns every stored result for a test, oldest first.
// An unknown or result-less test yields an empty slice, not an error;
// aggregation over zero results is a valid case.
func (s *Store) ListResults(_ context.Context, testID string) ([]datatypes.PairwiseResult, error) {
	var results []datatypes.PairwiseResult
	prefix := []byte(resultKeyPrefix + testID + "/")
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
			var result datatypes.PairwiseResult
			if err := it.Item().Value(func(value []byte) error {
				return json.Unmarshal(value, &result)
			}); err != nil {
				return err
			}
			results = append(results, result)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list results for test %s: %w", testID, err)
	}
	// Keys are ordered by result ID, not by time.
	sort.Slice(results, func(i, j int) bool {
		return results[i].CreatedAt.Before(results[j].CreatedAt)
	})
	return results, nil
}
