package ledger

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/kingrea/crosspost/internal/catalog"
)

const fileVersion = 1

// FileStore keeps the ledger in a single JSON file keyed by sequence.
//
// All writes are atomic and durable: the snapshot is written to a temp file
// in the same directory, synced, renamed over the target, and the directory
// is synced. A crash mid-write leaves either the old or the new file, never a
// torn one.
type FileStore struct {
	path string
}

// NewFileStore returns a store backed by path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the ledger file location.
func (s *FileStore) Path() string {
	return s.path
}

type fileLedger struct {
	Version   int                             `json:"version"`
	LastRunAt *time.Time                      `json:"last_run_at,omitempty"`
	Published map[string]map[string]fileEntry `json:"published"`
}

type fileEntry struct {
	PublishedAt time.Time `json:"published_at"`
	Reference   string    `json:"reference,omitempty"`
}

// Load reads the ledger file. A missing file yields ErrNotFound; anything
// unparseable yields a CorruptLedgerError.
func (s *FileStore) Load() (Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Snapshot{}, ErrNotFound
		}
		return Snapshot{}, fmt.Errorf("ledger: read %s: %w", s.path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return Snapshot{}, s.corrupt(errors.New("file is empty"))
	}
	var raw fileLedger
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&raw); err != nil {
		return Snapshot{}, s.corrupt(err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return Snapshot{}, s.corrupt(errors.New("trailing content after ledger object"))
	}
	if raw.Version > fileVersion {
		return Snapshot{}, s.corrupt(fmt.Errorf("unsupported version %d", raw.Version))
	}
	snap := Snapshot{}
	if raw.LastRunAt != nil {
		snap.LastRunAt = raw.LastRunAt.UTC()
	}
	for seqKey, platforms := range raw.Published {
		seq, err := strconv.Atoi(strings.TrimSpace(seqKey))
		if err != nil || seq <= 0 {
			return Snapshot{}, s.corrupt(fmt.Errorf("invalid sequence key %q", seqKey))
		}
		for name, entry := range platforms {
			platform := catalog.Platform(name)
			if !platform.Known() {
				return Snapshot{}, s.corrupt(fmt.Errorf("sequence %d: unknown platform %q", seq, name))
			}
			snap.Records = append(snap.Records, Record{
				Sequence:    seq,
				Platform:    platform,
				PublishedAt: entry.PublishedAt.UTC(),
				Reference:   entry.Reference,
			})
		}
	}
	return snap, nil
}

// Save atomically replaces the ledger file with snap.
func (s *FileStore) Save(snap Snapshot) error {
	raw := fileLedger{
		Version:   fileVersion,
		Published: map[string]map[string]fileEntry{},
	}
	if !snap.LastRunAt.IsZero() {
		at := snap.LastRunAt.UTC()
		raw.LastRunAt = &at
	}
	for _, rec := range snap.Records {
		key := strconv.Itoa(rec.Sequence)
		if raw.Published[key] == nil {
			raw.Published[key] = map[string]fileEntry{}
		}
		raw.Published[key][string(rec.Platform)] = fileEntry{
			PublishedAt: rec.PublishedAt.UTC(),
			Reference:   rec.Reference,
		}
	}
	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return fmt.Errorf("ledger: encode: %w", err)
	}
	return writeFileAtomic(s.path, append(data, '\n'), 0o644)
}

func (s *FileStore) corrupt(err error) error {
	return &CorruptLedgerError{Path: s.path, Err: err}
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		_ = tmp.Close()
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()
	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	committed = true
	return syncDir(dir)
}

func syncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	// Some platforms refuse to fsync directories; the rename already happened.
	_ = f.Sync()
	return nil
}
