package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
)

// setSep separates a set key from a member in the Badger keyspace. It
// never appears in cache or rate-limit keys, so member keys cannot
// collide with real entries.
const setSep = "\x00"

// admitMaxRetries bounds transaction retries when concurrent Admit
// calls conflict on the same window key.
const admitMaxRetries = 16

// Badger is a Store backed by an embedded Badger database. It gives a
// single process durable cache and rate-limit state without an
// external server.
type Badger struct {
	db *badger.DB
}

// BadgerConfig configures the embedded store.
type BadgerConfig struct {
	// Dir is the database directory. Ignored when InMemory is set.
	Dir string
	// InMemory keeps all data off disk. Useful for tests.
	InMemory bool
}

// NewBadger opens the embedded store.
func NewBadger(cfg BadgerConfig) (*Badger, error) {
	if cfg.Dir == "" && !cfg.InMemory {
		return nil, errors.New("store: badger directory is required")
	}
	opts := badger.DefaultOptions(cfg.Dir).WithLogger(nil)
	if cfg.InMemory {
		opts = opts.WithInMemory(true).WithDir("").WithValueDir("")
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("store: badger open: %w", err)
	}
	return &Badger{db: db}, nil
}

// Get retrieves a value. Badger expires entries by TTL on its own.
func (b *Badger) Get(_ context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("store: badger get: %w", err)
	}
	return value, true, nil
}

// Set stores a value with the given TTL. TTL <= 0 stores nothing.
func (b *Badger) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry([]byte(key), value).WithTTL(ttl))
	})
	if err != nil {
		return fmt.Errorf("store: badger set: %w", err)
	}
	return nil
}

// Delete removes keys and reports how many existed. Deleting a set key
// also drops its member keys.
func (b *Badger) Delete(_ context.Context, keys ...string) (int, error) {
	removed := 0
	err := b.db.Update(func(txn *badger.Txn) error {
		removed = 0
		for _, key := range keys {
			if _, err := txn.Get([]byte(key)); err == nil {
				removed++
				if err := txn.Delete([]byte(key)); err != nil {
					return err
				}
			} else if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
			if err := b.deleteMembersLocked(txn, key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("store: badger delete: %w", err)
	}
	return removed, nil
}

func (b *Badger) deleteMembersLocked(txn *badger.Txn, key string) error {
	prefix := []byte(key + setSep)
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix

	it := txn.NewIterator(opts)
	var memberKeys [][]byte
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		memberKeys = append(memberKeys, it.Item().KeyCopy(nil))
	}
	it.Close()

	for _, mk := range memberKeys {
		if err := txn.Delete(mk); err != nil {
			return err
		}
	}
	return nil
}

// AddToSet writes a marker entry for the set key plus one member key,
// both carrying the refreshed TTL.
func (b *Badger) AddToSet(_ context.Context, key, member string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	err := b.db.Update(func(txn *badger.Txn) error {
		if err := txn.SetEntry(badger.NewEntry([]byte(key), nil).WithTTL(ttl)); err != nil {
			return err
		}
		return txn.SetEntry(badger.NewEntry([]byte(key+setSep+member), nil).WithTTL(ttl))
	})
	if err != nil {
		return fmt.Errorf("store: badger sadd: %w", err)
	}
	return nil
}

// SetMembers returns the members of the set at key, empty on miss.
func (b *Badger) SetMembers(_ context.Context, key string) ([]string, error) {
	prefix := []byte(key + setSep)
	var members []string
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			members = append(members, string(it.Item().Key()[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("store: badger smembers: %w", err)
	}
	return members, nil
}

// Scan returns every live key with the given prefix. Internal member
// keys are skipped.
func (b *Badger) Scan(_ context.Context, prefix string) ([]string, error) {
	p := []byte(prefix)
	var keys []string
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = p
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			key := it.Item().Key()
			if bytes.Contains(key, []byte(setSep)) {
				continue
			}
			keys = append(keys, string(key))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("store: badger scan: %w", err)
	}
	return keys, nil
}

// Admit runs the discard-count-append sequence inside one Badger
// transaction. Badger detects write conflicts at commit, so two
// concurrent admissions on the same key cannot both read the same
// window state; the loser retries.
func (b *Badger) Admit(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	var admitted bool
	for attempt := 0; attempt < admitMaxRetries; attempt++ {
		err := b.db.Update(func(txn *badger.Txn) error {
			stamps, err := readWindow(txn, key)
			if err != nil {
				return err
			}
			now := time.Now()
			live := pruneWindow(stamps, now, window)
			if len(live) >= limit {
				admitted = false
				return nil
			}
			admitted = true
			live = append(live, now.UnixMicro())
			encoded, err := json.Marshal(live)
			if err != nil {
				return err
			}
			return txn.SetEntry(badger.NewEntry([]byte(key), encoded).WithTTL(window))
		})
		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		if err != nil {
			return false, fmt.Errorf("store: badger admit: %w", err)
		}
		return admitted, nil
	}
	return false, fmt.Errorf("store: badger admit: %w", badger.ErrConflict)
}

// Count returns the number of admissions within the window.
func (b *Badger) Count(_ context.Context, key string, window time.Duration) (int, error) {
	count := 0
	err := b.db.View(func(txn *badger.Txn) error {
		stamps, err := readWindow(txn, key)
		if err != nil {
			return err
		}
		count = len(pruneWindow(stamps, time.Now(), window))
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("store: badger count: %w", err)
	}
	return count, nil
}

func readWindow(txn *badger.Txn, key string) ([]int64, error) {
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	raw, err := item.ValueCopy(nil)
	if err != nil {
		return nil, err
	}
	var stamps []int64
	if err := json.Unmarshal(raw, &stamps); err != nil {
		return nil, err
	}
	return stamps, nil
}

func pruneWindow(stamps []int64, now time.Time, window time.Duration) []int64 {
	cutoff := now.Add(-window).UnixMicro()
	live := stamps[:0]
	for _, ts := range stamps {
		if ts > cutoff {
			live = append(live, ts)
		}
	}
	return live
}

// Ping reports whether the database is open.
func (b *Badger) Ping(_ context.Context) error {
	if b.db.IsClosed() {
		return errors.New("store: badger database is closed")
	}
	return nil
}

// Close closes the database.
func (b *Badger) Close() error {
	return b.db.Close()
}

// Ensure Badger implements Store
var _ Store = (*Badger)(nil)
