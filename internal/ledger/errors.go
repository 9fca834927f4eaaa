package ledger

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNotFound is returned by a Store when nothing has been persisted yet.
	ErrNotFound = errors.New("ledger: no persisted state")
	// ErrReadOnly is returned when a read-only ledger is asked to record.
	ErrReadOnly = errors.New("ledger: opened read-only")
)

// DuplicateRecordError reports a second record for the same pair.
type DuplicateRecordError struct {
	Key Key
}

func (e *DuplicateRecordError) Error() string {
	return fmt.Sprintf("ledger: %s already recorded", e.Key)
}

// CorruptLedgerError means the persisted ledger could not be parsed. Callers
// must stop rather than treat the ledger as empty.
type CorruptLedgerError struct {
	Path string
	Err  error
}

func (e *CorruptLedgerError) Error() string {
	return fmt.Sprintf("ledger: corrupt ledger %s: %v", e.Path, e.Err)
}

func (e *CorruptLedgerError) Unwrap() error {
	return e.Err
}

// OrphanRecordError lists ledgered sequences that no catalog item owns.
type OrphanRecordError struct {
	Sequences []int
}

func (e *OrphanRecordError) Error() string {
	seqs := append([]int(nil), e.Sequences...)
	sort.Ints(seqs)
	parts := make([]string, len(seqs))
	for i, s := range seqs {
		parts[i] = fmt.Sprint(s)
	}
	return fmt.Sprintf("ledger: records reference sequences missing from the catalog: %s", strings.Join(parts, ", "))
}
