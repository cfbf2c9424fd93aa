// Package usage implements the UsageTracker (§4.6): a durable history of
// user activations keyed by (application_id, item_identifier), answering
// frequency queries and seeding itself from per-application info files.
package usage

import (
	"encoding/binary"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.etcd.io/bbolt"
)

// TTL is the window rows are aged within; §4.6 fixes it at 30 days.
const TTL = 30 * 24 * time.Hour

// MaxSeedCount is the per-item clamp applied to seed-file counts.
const MaxSeedCount = 30

var bucketName = []byte("usage")

// Tracker persists activation rows and answers frequency queries. It
// selects its store location at construction: a bbolt database when
// persistence is enabled, or an in-memory map when it is not (either by
// setting or by HUD_NO_STORE_USAGE_DATA). A store-open failure degrades
// the Tracker to in-memory mode for the rest of the process, per §7.
type Tracker struct {
	mu sync.Mutex

	db  *bbolt.DB
	mem map[string][]time.Time

	seeded  map[string]bool
	infoDir string
	logger  *slog.Logger

	nowFn func() time.Time
}

// Option configures a Tracker at construction.
type Option func(*Tracker)

// WithClock overrides the tracker's notion of "now"; used by tests.
func WithClock(fn func() time.Time) Option {
	return func(t *Tracker) { t.nowFn = fn }
}

// New builds a Tracker. persist selects durable (bbolt-backed) storage;
// it is forced false by ForceInMemory regardless of the caller's wish.
func New(persist bool, logger *slog.Logger, opts ...Option) (*Tracker, error) {
	if logger == nil {
		logger = slog.Default()
	}
	t := &Tracker{
		seeded:  make(map[string]bool),
		infoDir: InfoDir(),
		logger:  logger,
		nowFn:   time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}

	if !persist || ForceInMemory() {
		t.mem = make(map[string][]time.Time)
		return t, nil
	}

	path, err := StorePath()
	if err != nil {
		logger.Warn("usage store path resolution failed, falling back to in-memory", "error", err)
		t.mem = make(map[string][]time.Time)
		return t, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		logger.Warn("usage store directory creation failed, falling back to in-memory", "error", err)
		t.mem = make(map[string][]time.Time)
		return t, nil
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		logger.Warn("usage store open failed, falling back to in-memory", "error", err)
		t.mem = make(map[string][]time.Time)
		return t, nil
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	}); err != nil {
		logger.Warn("usage store init failed, falling back to in-memory", "error", err)
		_ = db.Close()
		t.mem = make(map[string][]time.Time)
		return t, nil
	}
	t.db = db

	if err := t.DropStale(); err != nil {
		logger.Warn("initial stale-row sweep failed", "error", err)
	}
	return t, nil
}

// Persistent reports whether the tracker is backed by the durable store.
func (t *Tracker) Persistent() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.db != nil
}

// Close releases the durable store handle, if any.
func (t *Tracker) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.db == nil {
		return nil
	}
	err := t.db.Close()
	t.db = nil
	return err
}

func rowKey(applicationID, itemIdentifier string) string {
	return applicationID + "\x00" + itemIdentifier
}

// MarkUsage appends a row with the current UTC timestamp. A write failure
// is logged and discarded: usage data is best-effort and never blocks a
// user action.
func (t *Tracker) MarkUsage(applicationID, itemIdentifier string) {
	now := t.nowFn().UTC()
	t.ensureInitialised(applicationID)

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.db == nil {
		key := rowKey(applicationID, itemIdentifier)
		t.mem[key] = append(t.mem[key], now)
		return
	}

	if err := t.db.Update(func(tx *bbolt.Tx) error {
		return putRow(tx, applicationID, itemIdentifier, now)
	}); err != nil {
		t.logger.Warn("usage mark failed, discarding", "application_id", applicationID, "error", err)
	}
}

func putRow(tx *bbolt.Tx, applicationID, itemIdentifier string, ts time.Time) error {
	b := tx.Bucket(bucketName)
	var seq [8]byte
	binary.BigEndian.PutUint64(seq[:], uint64(ts.UnixNano()))
	key := []byte(rowKey(applicationID, itemIdentifier) + "\x00")
	key = append(key, seq[:]...)
	value, err := ts.MarshalBinary()
	if err != nil {
		return err
	}
	return b.Put(key, value)
}

// GetUsage counts rows for (applicationID, itemIdentifier) within the last
// 30 days, seeding the application from its info file first if this is the
// first reference to it.
func (t *Tracker) GetUsage(applicationID, itemIdentifier string) uint32 {
	t.ensureInitialised(applicationID)

	cutoff := t.nowFn().UTC().Add(-TTL)
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.db == nil {
		var count uint32
		for _, ts := range t.mem[rowKey(applicationID, itemIdentifier)] {
			if ts.After(cutoff) {
				count++
			}
		}
		return count
	}

	var count uint32
	prefix := []byte(rowKey(applicationID, itemIdentifier) + "\x00")
	_ = t.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketName).Cursor()
		for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
			var ts time.Time
			if err := ts.UnmarshalBinary(v); err == nil && ts.After(cutoff) {
				count++
			}
		}
		return nil
	})
	return count
}

func hasPrefix(k, prefix []byte) bool {
	return len(k) >= len(prefix) && string(k[:len(prefix)]) == string(prefix)
}

// DropStale deletes rows older than 30 days. It is idempotent: two calls
// with no intervening mark leave the store unchanged.
func (t *Tracker) DropStale() error {
	cutoff := t.nowFn().UTC().Add(-TTL)

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.db == nil {
		for key, stamps := range t.mem {
			kept := stamps[:0]
			for _, ts := range stamps {
				if ts.After(cutoff) {
					kept = append(kept, ts)
				}
			}
			if len(kept) == 0 {
				delete(t.mem, key)
			} else {
				t.mem[key] = kept
			}
		}
		return nil
	}

	return t.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		c := b.Cursor()
		var stale [][]byte
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var ts time.Time
			if err := ts.UnmarshalBinary(v); err == nil && !ts.After(cutoff) {
				stale = append(stale, append([]byte(nil), k...))
			}
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

// ensureInitialised seeds applicationID from its app-info file the first
// time it is referenced, if the store holds no row for it yet.
func (t *Tracker) ensureInitialised(applicationID string) {
	t.mu.Lock()
	if t.seeded[applicationID] {
		t.mu.Unlock()
		return
	}
	t.seeded[applicationID] = true
	hasRows := t.hasAnyRowLocked(applicationID)
	t.mu.Unlock()

	if hasRows {
		return
	}
	t.seedFromInfoFile(applicationID)
}

func (t *Tracker) hasAnyRowLocked(applicationID string) bool {
	prefix := applicationID + "\x00"
	if t.db == nil {
		for key := range t.mem {
			if strings.HasPrefix(key, prefix) {
				return true
			}
		}
		return false
	}
	found := false
	_ = t.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketName).Cursor()
		k, _ := c.Seek([]byte(prefix))
		found = k != nil && strings.HasPrefix(string(k), prefix)
		return nil
	})
	return found
}

func (t *Tracker) seedFromInfoFile(applicationID string) {
	if t.infoDir == "" {
		return
	}
	path := filepath.Join(t.infoDir, filepath.Base(applicationID)+".hud-app-info")
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	info, err := ParseAppInfo(f)
	if err != nil {
		t.logger.Warn("malformed application-info file, skipping", "path", path, "error", err)
		return
	}

	today := t.nowFn().UTC().Truncate(24 * time.Hour)
	for _, item := range info.Items {
		n := item.Count
		if n > MaxSeedCount {
			n = MaxSeedCount
		}
		for i := 0; i < n; i++ {
			ts := today.Add(-time.Duration(i) * 24 * time.Hour)
			t.mu.Lock()
			if t.db == nil {
				key := rowKey(applicationID, item.Name)
				t.mem[key] = append(t.mem[key], ts)
			} else {
				if err := t.db.Update(func(tx *bbolt.Tx) error {
					return putRow(tx, applicationID, item.Name, ts)
				}); err != nil {
					t.logger.Warn("seed row write failed", "application_id", applicationID, "error", err)
				}
			}
			t.mu.Unlock()
		}
	}
}
