// Package cache keeps recent catalog responses in an embedded badger store
// so repeated searches and selections do not go back to TMDB.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/okian/movierank/pkg/logger"
)

const (
	defaultTTL        = time.Hour
	keyPrefix         = "catalog:"
	gcDiscardRatio    = 0.5
	valueLogFileBytes = 16 << 20
)

// BadgerCache is a TTL cache over badger. An empty path keeps everything
// in memory.
type BadgerCache struct {
	db       *badger.DB
	ttl      time.Duration
	inMemory bool
	closed   atomic.Bool
	logger   logger.Logger
}

// Open opens (creating if needed) the cache directory at path.
func Open(path string, opts ...Option) (*BadgerCache, error) {
	c := &BadgerCache{ttl: defaultTTL, inMemory: path == ""}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logger.Named("cache")
	}

	bopts := badger.DefaultOptions(path)
	if c.inMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	}
	bopts.Logger = badgerLogger{l: c.logger}
	bopts.ValueLogFileSize = valueLogFileBytes

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrOpen, path, err)
	}
	c.db = db
	return c, nil
}

// Get returns the cached body for key. Misses and read failures both
// report false; a failed read is logged and treated as a miss.
func (c *BadgerCache) Get(ctx context.Context, key string) ([]byte, bool) {
	if c.closed.Load() {
		return nil, false
	}
	var out []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + key))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false
	}
	if err != nil {
		c.logger.Warn(ctx, "catalog cache read failed", logger.String("key", key), logger.Error(err))
		return nil, false
	}
	return out, true
}

// Set stores body under key for the configured TTL.
func (c *BadgerCache) Set(ctx context.Context, key string, body []byte) {
	if c.closed.Load() {
		return
	}
	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry([]byte(keyPrefix+key), body).WithTTL(c.ttl))
	})
	if err != nil {
		c.logger.Warn(ctx, "catalog cache write failed", logger.String("key", key), logger.Error(err))
	}
}

// RunGC reclaims value log space held by expired entries. It is a no-op in
// memory mode and when there is nothing to rewrite.
func (c *BadgerCache) RunGC() error {
	if c.inMemory {
		return nil
	}
	if c.closed.Load() {
		return ErrClosed
	}
	err := c.db.RunValueLogGC(gcDiscardRatio)
	if err == nil || errors.Is(err, badger.ErrNoRewrite) {
		return nil
	}
	return err
}

// Close releases the badger store. Further calls are misses.
func (c *BadgerCache) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.db.Close()
}

// badgerLogger routes badger's printf-style logs through pkg/logger.
// Info and debug output is dropped; badger is chatty at startup.
type badgerLogger struct {
	l logger.Logger
}

func (b badgerLogger) Errorf(format string, args ...interface{}) {
	b.l.Error(context.Background(), fmt.Sprintf(format, args...))
}

func (b badgerLogger) Warningf(format string, args ...interface{}) {
	b.l.Warn(context.Background(), fmt.Sprintf(format, args...))
}

func (b badgerLogger) Infof(string, ...interface{}) {}

func (b badgerLogger) Debugf(string, ...interface{}) {}
