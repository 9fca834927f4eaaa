// Package ledger tracks which (item, platform) pairs have been published. The
// ledger is the only mutable state in the system: it is loaded once, passed
// explicitly to whoever needs it, and every successful Record is persisted
// before the call returns so an interrupted run never loses a completion.
package ledger

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kingrea/crosspost/internal/catalog"
)

// Key is the ledger's primary key.
type Key struct {
	Sequence int
	Platform catalog.Platform
}

func (k Key) String() string {
	return fmt.Sprintf("%d/%s", k.Sequence, k.Platform)
}

// Record is one successful publication.
type Record struct {
	Sequence    int
	Platform    catalog.Platform
	PublishedAt time.Time
	// Reference is the URL or identifier the platform returned, if any.
	Reference string
}

// Key returns the record's primary key.
func (r Record) Key() Key {
	return Key{Sequence: r.Sequence, Platform: r.Platform}
}

// Snapshot is the persisted form of a ledger.
type Snapshot struct {
	LastRunAt time.Time
	Records   []Record
}

// Store persists ledger snapshots.
type Store interface {
	Load() (Snapshot, error)
	Save(Snapshot) error
}

// Ledger is the in-memory record set plus the store backing it.
type Ledger struct {
	mu        sync.RWMutex
	store     Store
	readOnly  bool
	records   map[Key]Record
	lastRunAt time.Time
	dirty     bool
}

// New returns an empty ledger with no backing store. Records live only in
// memory.
func New() *Ledger {
	return &Ledger{records: map[Key]Record{}}
}

// Open loads the ledger from store for reading and writing. A store with no
// persisted state yields an empty ledger.
func Open(store Store) (*Ledger, error) {
	if store == nil {
		return nil, fmt.Errorf("ledger: store is required")
	}
	l := &Ledger{store: store, records: map[Key]Record{}}
	if err := l.Reload(); err != nil {
		return nil, err
	}
	return l, nil
}

// Load opens the ledger read-only. Record fails and Close never writes, so
// the backing file is guaranteed untouched.
func Load(store Store) (*Ledger, error) {
	l, err := Open(store)
	if err != nil {
		return nil, err
	}
	l.readOnly = true
	return l, nil
}

// With opens the ledger, runs fn, and flushes on every exit path.
func With(store Store, fn func(*Ledger) error) (err error) {
	l, err := Open(store)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := l.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(l)
}

// Reload replaces the in-memory state with what the store holds. The lock is
// held across the load so a concurrent Record cannot be overwritten by an
// older snapshot.
func (l *Ledger) Reload() error {
	if l.store == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	snap, err := l.store.Load()
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			snap = Snapshot{}
		} else {
			return err
		}
	}
	l.records = make(map[Key]Record, len(snap.Records))
	for _, rec := range snap.Records {
		l.records[rec.Key()] = rec
	}
	l.lastRunAt = snap.LastRunAt
	l.dirty = false
	return nil
}

// HasPublished is the idempotence gate checked before every dispatch.
func (l *Ledger) HasPublished(sequence int, platform catalog.Platform) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.records[Key{Sequence: sequence, Platform: platform}]
	return ok
}

// Get returns the record for a pair.
func (l *Ledger) Get(sequence int, platform catalog.Platform) (Record, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, ok := l.records[Key{Sequence: sequence, Platform: platform}]
	return rec, ok
}

// Record inserts rec and persists the ledger. The duplicate check runs
// against the freshest persisted state immediately before the write, so a
// second process that recorded the pair in the meantime is detected. If the
// write fails the insert is rolled back and the pair stays unpublished.
func (l *Ledger) Record(rec Record) error {
	if l.readOnly {
		return ErrReadOnly
	}
	if rec.Sequence <= 0 {
		return fmt.Errorf("ledger: sequence must be positive")
	}
	if !rec.Platform.Known() {
		return &catalog.UnknownPlatformError{Name: string(rec.Platform)}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.mergePersistedLocked(); err != nil {
		return err
	}
	key := rec.Key()
	if _, exists := l.records[key]; exists {
		return &DuplicateRecordError{Key: key}
	}
	if rec.PublishedAt.IsZero() {
		rec.PublishedAt = time.Now().UTC()
	}
	l.records[key] = rec
	if l.store != nil {
		if err := l.store.Save(l.snapshotLocked()); err != nil {
			delete(l.records, key)
			return fmt.Errorf("ledger: persist %s: %w", key, err)
		}
	}
	return nil
}

// mergePersistedLocked folds records written by other processes into memory.
func (l *Ledger) mergePersistedLocked() error {
	if l.store == nil {
		return nil
	}
	snap, err := l.store.Load()
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	for _, rec := range snap.Records {
		if _, ok := l.records[rec.Key()]; !ok {
			l.records[rec.Key()] = rec
		}
	}
	if snap.LastRunAt.After(l.lastRunAt) && !l.dirty {
		l.lastRunAt = snap.LastRunAt
	}
	return nil
}

// Touch stamps the last-run time. It is flushed by Flush or Close.
func (l *Ledger) Touch(at time.Time) {
	if l.readOnly {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastRunAt = at.UTC()
	l.dirty = true
}

// LastRunAt returns the last-run stamp.
func (l *Ledger) LastRunAt() time.Time {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lastRunAt
}

// Flush persists pending metadata changes.
func (l *Ledger) Flush() error {
	if l.readOnly || l.store == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.dirty {
		return nil
	}
	if err := l.mergePersistedLocked(); err != nil {
		return err
	}
	if err := l.store.Save(l.snapshotLocked()); err != nil {
		return fmt.Errorf("ledger: flush: %w", err)
	}
	l.dirty = false
	return nil
}

// Close flushes and releases the ledger.
func (l *Ledger) Close() error {
	return l.Flush()
}

// Records returns every record ordered by sequence then dispatch order.
func (l *Ledger) Records() []Record {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.sortedLocked()
}

// Len returns the number of records.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

// Remaining lists the item's target platforms that have no record, in
// dispatch order.
func (l *Ledger) Remaining(item catalog.Item) []catalog.Platform {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []catalog.Platform
	for _, p := range item.Platforms {
		if _, ok := l.records[Key{Sequence: item.Sequence, Platform: p}]; !ok {
			out = append(out, p)
		}
	}
	return out
}

// Complete reports whether every target platform of item is ledgered.
func (l *Ledger) Complete(item catalog.Item) bool {
	return len(l.Remaining(item)) == 0
}

// Validate returns an OrphanRecordError when records reference sequences the
// catalog does not contain.
func (l *Ledger) Validate(cat *catalog.Catalog) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	seen := map[int]struct{}{}
	var orphans []int
	for key := range l.records {
		if cat.Has(key.Sequence) {
			continue
		}
		if _, ok := seen[key.Sequence]; ok {
			continue
		}
		seen[key.Sequence] = struct{}{}
		orphans = append(orphans, key.Sequence)
	}
	if len(orphans) == 0 {
		return nil
	}
	sort.Ints(orphans)
	return &OrphanRecordError{Sequences: orphans}
}

func (l *Ledger) snapshotLocked() Snapshot {
	return Snapshot{LastRunAt: l.lastRunAt, Records: l.sortedLocked()}
}

func (l *Ledger) sortedLocked() []Record {
	out := make([]Record, 0, len(l.records))
	for _, rec := range l.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Sequence != out[j].Sequence {
			return out[i].Sequence < out[j].Sequence
		}
		return out[i].Platform.Rank() < out[j].Platform.Rank()
	})
	return out
}
