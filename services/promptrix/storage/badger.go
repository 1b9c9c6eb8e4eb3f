// Package storage persists A/B tests and their pairwise results in an
// embedded BadgerDB instance.
//
// Tests are small JSON documents keyed by ID; results are append-only
// JSON documents keyed under their test's prefix so a single prefix
// scan reads a test's full history. Aggregates are never stored, they
// are recomputed from results on demand.
//
// License: BadgerDB is Apache 2.0 licensed (github.com/dgraph-io/badger).
package storage

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Config holds configuration for the BadgerDB instance.
type Config struct {
	// Path is the directory for BadgerDB files.
	// Required for persistent databases.
	// Ignored when InMemory is true.
	Path string

	// InMemory enables in-memory mode (no disk persistence).
	// Useful for testing.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	// Default: true for production, false for testing.
	SyncWrites bool

	// Logger is the logger for BadgerDB operations.
	// If nil, BadgerDB's internal logging is disabled.
	Logger *slog.Logger

	// GCInterval is how often to run value log garbage collection.
	// Default: 5 minutes. Set to 0 to disable.
	GCInterval time.Duration

	// GCDiscardRatio is the minimum ratio of discardable data before GC.
	// Default: 0.5.
	GCDiscardRatio float64
}

// DefaultConfig returns sensible defaults for production use:
// synchronous writes, 5-minute GC interval, 50% discard ratio.
func DefaultConfig() Config {
	return Config{
		SyncWrites:     true,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryConfig returns configuration optimized for testing: no disk
// I/O, no sync writes, GC disabled.
func InMemoryConfig() Config {
	return Config{
		InMemory:   true,
		SyncWrites: false,
		GCInterval: 0,
	}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// openDB opens a BadgerDB instance with the given configuration,
// creating the directory when needed. The returned *badger.DB is safe
// for concurrent use; the caller must Close() it.
func openDB(cfg Config) (*badger.DB, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	opts = opts.WithSyncWrites(cfg.SyncWrites)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return db, nil
}

// runGC periodically triggers BadgerDB value log garbage collection
// until stop is closed. Run it in its own goroutine.
func runGC(db *badger.DB, interval time.Duration, ratio float64, logger *slog.Logger, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			err := db.RunValueLogGC(ratio)
			switch {
			case err == nil:
				logger.Debug("badger value log GC reclaimed space")
			case errors.Is(err, badger.ErrNoRewrite):
				// Nothing to collect this round.
			default:
				logger.Warn("badger value log GC failed", "error", err)
			}
		}
	}
}
