package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/kingrea/crosspost/internal/catalog"
	"github.com/kingrea/crosspost/internal/dispatch"
	"github.com/kingrea/crosspost/internal/events"
	"github.com/kingrea/crosspost/internal/ledger"
	"github.com/kingrea/crosspost/internal/schedule"
)

type runState struct {
	id     string
	mode   Mode
	report *Report
	halted map[catalog.Platform]bool
}

// Run executes one pass. The report is returned even when a context
// cancellation cuts the pass short. Configuration problems come back as
// ConfigErrors; dispatch failures never produce an error.
func (o *Orchestrator) Run(ctx context.Context, req Request) (Report, error) {
	mode := req.Mode
	if mode == "" {
		mode = ModeRunToday
	}
	rs := &runState{
		id:     o.newRunID(),
		mode:   mode,
		halted: map[catalog.Platform]bool{},
	}
	report := Report{RunID: rs.id, Mode: mode, Today: o.Today(), StartedAt: o.now().UTC()}
	rs.report = &report

	if err := o.refreshLedger(); err != nil {
		return report, err
	}
	items, deferred, err := o.plan(req, report.Today)
	if err != nil {
		return report, err
	}
	report.Deferred = deferred
	for _, item := range items {
		report.Items = append(report.Items, item.Sequence)
	}

	o.emitRun(rs, events.Event{Type: events.RunStarted, Message: fmt.Sprintf("%d item(s) selected for %s", len(items), report.Today.Format("2006-01-02"))})
	if len(deferred) > 0 {
		o.emitRun(rs, events.Event{Type: events.Skipped, Level: events.LevelWarn, Outcome: "deferred",
			Message: fmt.Sprintf("catch-up bound reached, deferring %d overdue item(s): %v", len(deferred), deferred)})
	}

	var runErr error
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		if err := o.runItem(ctx, rs, item); err != nil {
			runErr = err
			break
		}
	}

	if mode != ModeDryRun {
		o.ledger.Touch(o.now())
		if err := o.ledger.Flush(); err != nil {
			o.emitRun(rs, events.Event{Type: events.Unrecorded, Level: events.LevelWarn, Message: "last-run stamp not saved: " + err.Error()})
		}
		o.checkCampaign(rs)
	} else {
		report.CampaignComplete = o.allComplete()
	}

	for p := range rs.halted {
		report.Halted = append(report.Halted, p)
	}
	catalog.SortPlatforms(report.Halted)
	report.FinishedAt = o.now().UTC()
	level := events.LevelInfo
	if report.Summary.Unrecorded > 0 || report.Summary.FailedFatal > 0 {
		level = events.LevelWarn
	}
	o.emitRun(rs, events.Event{Type: events.RunFinished, Level: level, Message: report.Summary.String()})
	return report, runErr
}

// refreshLedger picks up records written by other processes since the last
// pass and re-checks them against the catalog.
func (o *Orchestrator) refreshLedger() error {
	if err := o.ledger.Reload(); err != nil {
		return NewConfigError(err)
	}
	if err := o.ledger.Validate(o.catalog); err != nil {
		return NewConfigError(err)
	}
	return nil
}

// plan selects the items for a run. Today's items are always selected;
// overdue items are caught up oldest first within the catch-up bound.
func (o *Orchestrator) plan(req Request, today time.Time) ([]catalog.Item, []int, error) {
	if req.Mode == ModeRunDay || (req.Mode == ModeDryRun && req.Day > 0) {
		item, ok := o.catalog.Get(req.Day)
		if !ok {
			return nil, nil, fmt.Errorf("%w: %d", ErrUnknownSequence, req.Day)
		}
		return []catalog.Item{item}, nil, nil
	}
	var due, overdue []catalog.Item
	for _, item := range o.catalog.Items() {
		switch schedule.Classify(item.Sequence, o.schedule, today, o.ledger.Complete(item)) {
		case schedule.StatusDue:
			due = append(due, item)
		case schedule.StatusOverdue:
			overdue = append(overdue, item)
		}
	}
	// Overdue items with only manual pairs left are re-staged but do not
	// count against the catch-up bound.
	var deferred []int
	caught := 0
	selected := due
	for _, item := range overdue {
		if !o.dispatchable(item) {
			selected = append(selected, item)
			continue
		}
		if o.maxCatchup >= 0 && caught >= o.maxCatchup {
			deferred = append(deferred, item.Sequence)
			continue
		}
		caught++
		selected = append(selected, item)
	}
	sort.SliceStable(selected, func(i, j int) bool { return selected[i].Sequence < selected[j].Sequence })
	return selected, deferred, nil
}

// dispatchable reports whether item still has a pair that would go out over
// the network. Platforms whose capability the publisher cannot report count
// as automatic.
func (o *Orchestrator) dispatchable(item catalog.Item) bool {
	caps, _ := o.publisher.(interface {
		Capability(catalog.Platform) (dispatch.Capability, bool)
	})
	for _, p := range item.Platforms {
		if o.disabled[p] || o.ledger.HasPublished(item.Sequence, p) {
			continue
		}
		if caps == nil {
			return true
		}
		if c, ok := caps.Capability(p); !ok || c != dispatch.CapabilityManualAssist {
			return true
		}
	}
	return false
}

func (o *Orchestrator) runItem(ctx context.Context, rs *runState, item catalog.Item) error {
	platforms := append([]catalog.Platform(nil), item.Platforms...)
	catalog.SortPlatforms(platforms)
	for _, platform := range platforms {
		if err := ctx.Err(); err != nil {
			return err
		}
		pr := PairResult{Sequence: item.Sequence, Title: item.Title, Platform: platform}
		switch {
		case o.ledger.HasPublished(item.Sequence, platform):
			pr.Result = ResultAlreadyDone
			if rec, ok := o.ledger.Get(item.Sequence, platform); ok {
				pr.Reference = rec.Reference
			}
			o.emitPair(rs, pr, events.Event{Type: events.Skipped, Outcome: string(pr.Result)})
		case o.disabled[platform]:
			pr.Result = ResultDisabled
			o.emitPair(rs, pr, events.Event{Type: events.Skipped, Outcome: string(pr.Result), Message: "platform disabled in config"})
		case rs.halted[platform]:
			pr.Result = ResultFailedFatal
			o.emitPair(rs, pr, events.Event{Type: events.Skipped, Level: events.LevelWarn, Outcome: string(pr.Result), Message: "platform halted earlier in this run"})
		case rs.mode == ModeDryRun:
			pr.Result = ResultPlanned
			o.emitPair(rs, pr, events.Event{Type: events.Skipped, Outcome: "would_dispatch"})
		default:
			var err error
			pr, err = o.dispatchPair(ctx, rs, item, pr)
			if err != nil {
				rs.report.add(pr)
				return err
			}
		}
		rs.report.add(pr)
	}
	return nil
}

// dispatchPair runs the attempt loop for one pair. Only context
// cancellation during a backoff wait is returned as an error.
func (o *Orchestrator) dispatchPair(ctx context.Context, rs *runState, item catalog.Item, pr PairResult) (PairResult, error) {
	for attempt := 1; ; attempt++ {
		pr.Attempts = attempt
		out := o.publish(ctx, item, pr.Platform)
		o.emitPair(rs, pr, events.Event{
			Type:      events.Attempt,
			Level:     attemptLevel(out),
			Attempt:   attempt,
			Outcome:   string(out.Kind),
			Failure:   string(out.FailureKind()),
			Reference: out.Reference,
			Message:   failureMessage(out.Failure),
		})

		switch out.Kind {
		case dispatch.OutcomeSuccess:
			return o.recordPair(rs, pr, out.Reference, events.Published, ""), nil
		case dispatch.OutcomeManual:
			return o.handOff(ctx, rs, pr, out.Prepared), nil
		}

		f := out.Failure
		if f == nil {
			f = dispatch.NewFailure(dispatch.FailureRejected, "adapter returned an empty outcome")
		}
		pr.Failure = f
		if out.Recordable() {
			return o.recordPair(rs, pr, "", events.Published, "already on platform"), nil
		}
		if f.Kind.HaltsPlatform() {
			rs.halted[pr.Platform] = true
			pr.Result = ResultFailedFatal
			o.emitPair(rs, pr, events.Event{Type: events.PlatformHalted, Level: events.LevelError, Failure: string(f.Kind),
				Message: "skipping " + pr.Platform.Label() + " for the rest of this run: " + f.Message})
			return pr, nil
		}
		delay, retry := o.retry.Next(attempt, f)
		if !retry {
			pr.Result = ResultFailedRetry
			return pr, nil
		}
		if err := o.sleep(ctx, delay); err != nil {
			pr.Result = ResultFailedRetry
			return pr, err
		}
	}
}

func (o *Orchestrator) publish(ctx context.Context, item catalog.Item, platform catalog.Platform) dispatch.Outcome {
	if o.publisher == nil {
		return dispatch.Fail(dispatch.NewFailure(dispatch.FailureUnknownPlatform, "no dispatcher configured"))
	}
	return o.publisher.Publish(ctx, item, platform)
}

// recordPair writes the ledger record for a successful dispatch. A write
// failure leaves the pair unrecorded: the remote post may exist but nothing
// durable says so.
func (o *Orchestrator) recordPair(rs *runState, pr PairResult, reference string, typ events.Type, note string) PairResult {
	pr.Reference = reference
	err := o.ledger.Record(ledger.Record{
		Sequence:    pr.Sequence,
		Platform:    pr.Platform,
		PublishedAt: o.now().UTC(),
		Reference:   reference,
	})
	var dup *ledger.DuplicateRecordError
	switch {
	case err == nil:
		pr.Result = ResultPublished
		o.emitPair(rs, pr, events.Event{Type: typ, Reference: reference, Message: note})
	case errors.As(err, &dup):
		pr.Result = ResultAlreadyDone
		o.emitPair(rs, pr, events.Event{Type: events.Skipped, Level: events.LevelWarn, Outcome: string(pr.Result),
			Message: "recorded by another process during this run"})
	default:
		pr.Result = ResultUnrecorded
		o.emitPair(rs, pr, events.Event{Type: events.Unrecorded, Level: events.LevelWarn, Reference: reference,
			Message: "published but not saved to the ledger, verify the post before the next run: " + err.Error()})
	}
	return pr
}

func (o *Orchestrator) handOff(ctx context.Context, rs *runState, pr PairResult, prepared *dispatch.Prepared) PairResult {
	pr.Result = ResultAwaitingConfirmation
	if prepared == nil || o.desk == nil {
		o.emitPair(rs, pr, events.Event{Type: events.ManualStaged, Level: events.LevelWarn, Message: "no hand-off desk configured"})
		return pr
	}
	staged, err := o.desk.Stage(ctx, *prepared)
	if err != nil {
		o.emitPair(rs, pr, events.Event{Type: events.ManualStaged, Level: events.LevelError, Message: err.Error()})
		return pr
	}
	pr.Staged = &staged
	o.emitPair(rs, pr, events.Event{Type: events.ManualStaged, Message: staged.Path})

	answer, err := o.confirmer.Confirm(ctx, staged)
	if err != nil || !answer.Confirmed {
		return pr
	}
	pr = o.recordPair(rs, pr, answer.Reference, events.Confirmed, "confirmed by operator")
	if pr.Result == ResultPublished {
		_ = o.desk.Clear(pr.Sequence, pr.Platform)
	}
	return pr
}

func (o *Orchestrator) allComplete() bool {
	if o.catalog.Len() == 0 {
		return false
	}
	for _, item := range o.catalog.Items() {
		if !o.ledger.Complete(item) {
			return false
		}
	}
	return true
}

// checkCampaign writes the completion flag the first time every item is
// fully ledgered.
func (o *Orchestrator) checkCampaign(rs *runState) {
	if !o.allComplete() {
		return
	}
	rs.report.CampaignComplete = true
	if o.campaignFlag == "" {
		return
	}
	if _, err := os.Stat(o.campaignFlag); err == nil || !errors.Is(err, fs.ErrNotExist) {
		return
	}
	if err := os.MkdirAll(filepath.Dir(o.campaignFlag), 0o755); err != nil {
		return
	}
	stamp := o.now().UTC().Format(time.RFC3339) + "\n"
	if err := os.WriteFile(o.campaignFlag, []byte(stamp), 0o644); err != nil {
		o.emitRun(rs, events.Event{Type: events.CampaignDone, Level: events.LevelWarn, Message: "could not write completion flag: " + err.Error()})
		return
	}
	rs.report.CampaignJustCompleted = true
	o.emitRun(rs, events.Event{Type: events.CampaignDone, Message: fmt.Sprintf("all %d items published", o.catalog.Len())})
}

func (o *Orchestrator) emitRun(rs *runState, e events.Event) {
	e.RunID = rs.id
	e.Mode = string(rs.mode)
	o.emit(e)
}

func (o *Orchestrator) emitPair(rs *runState, pr PairResult, e events.Event) {
	e.Sequence = pr.Sequence
	e.Platform = pr.Platform
	o.emitRun(rs, e)
}

func attemptLevel(out dispatch.Outcome) events.Level {
	if out.Kind != dispatch.OutcomeFailure || out.Recordable() {
		return events.LevelInfo
	}
	if out.Failure != nil && out.Failure.Kind.HaltsPlatform() {
		return events.LevelError
	}
	return events.LevelWarn
}

func failureMessage(f *dispatch.Failure) string {
	if f == nil {
		return ""
	}
	return f.Message
}
