package orchestrator

import (
	"fmt"
	"time"

	"github.com/kingrea/crosspost/internal/catalog"
	"github.com/kingrea/crosspost/internal/dispatch"
	"github.com/kingrea/crosspost/internal/handoff"
)

// Mode selects what Run does.
type Mode string

const (
	ModeRunToday Mode = "run-today"
	ModeRunDay   Mode = "run-day"
	ModeDryRun   Mode = "dry-run"
	ModeDaemon   Mode = "daemon"
)

// Request is one Run invocation. Day selects a single item for ModeRunDay
// and narrows ModeDryRun to that item when positive.
type Request struct {
	Mode Mode
	Day  int
}

// Result is the end state of one (item, platform) pair within a run.
type Result string

const (
	ResultPublished            Result = "published"
	ResultAlreadyDone          Result = "already_done"
	ResultAwaitingConfirmation Result = "awaiting_confirmation"
	ResultFailedRetry          Result = "failed_will_retry"
	ResultFailedFatal          Result = "failed_fatal"
	ResultUnrecorded           Result = "unrecorded"
	ResultPlanned              Result = "planned"
	ResultDisabled             Result = "disabled"
)

// PairResult reports one pair.
type PairResult struct {
	Sequence  int
	Title     string
	Platform  catalog.Platform
	Result    Result
	Attempts  int
	Reference string
	Failure   *dispatch.Failure
	Staged    *handoff.Staged
}

// Summary counts pair results for the run summary line.
type Summary struct {
	Published            int
	AlreadyDone          int
	AwaitingConfirmation int
	FailedRetry          int
	FailedFatal          int
	Unrecorded           int
	Planned              int
}

func (s *Summary) add(r Result) {
	switch r {
	case ResultPublished:
		s.Published++
	case ResultAlreadyDone:
		s.AlreadyDone++
	case ResultAwaitingConfirmation:
		s.AwaitingConfirmation++
	case ResultFailedRetry:
		s.FailedRetry++
	case ResultFailedFatal:
		s.FailedFatal++
	case ResultUnrecorded:
		s.Unrecorded++
	case ResultPlanned:
		s.Planned++
	}
}

func (s Summary) String() string {
	return fmt.Sprintf("published=%d already-done=%d awaiting-confirmation=%d failed-will-retry=%d failed-fatal=%d unrecorded=%d",
		s.Published, s.AlreadyDone, s.AwaitingConfirmation, s.FailedRetry, s.FailedFatal, s.Unrecorded)
}

// Report is what a run did.
type Report struct {
	RunID string
	Mode  Mode
	// Today is the civil date the run planned against.
	Today time.Time
	// Items are the sequences selected for this run, in order.
	Items   []int
	Pairs   []PairResult
	Summary Summary
	// Deferred are overdue sequences left for a later run by the catch-up
	// bound.
	Deferred []int
	// Halted are platforms disabled for the rest of the run by a fatal
	// failure.
	Halted []catalog.Platform
	// CampaignComplete is true when every catalog item is fully ledgered.
	CampaignComplete bool
	// CampaignJustCompleted is true only for the run that wrote the flag.
	CampaignJustCompleted bool
	StartedAt             time.Time
	FinishedAt            time.Time
}

func (r *Report) add(pr PairResult) {
	r.Pairs = append(r.Pairs, pr)
	r.Summary.add(pr.Result)
}
