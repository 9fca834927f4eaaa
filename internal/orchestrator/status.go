package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/kingrea/crosspost/internal/catalog"
	"github.com/kingrea/crosspost/internal/events"
	"github.com/kingrea/crosspost/internal/handoff"
	"github.com/kingrea/crosspost/internal/ledger"
	"github.com/kingrea/crosspost/internal/schedule"
)

// ItemStatus is one row of the status report.
type ItemStatus struct {
	Sequence     int
	Title        string
	ExpectedDate time.Time
	Status       schedule.Status
	Platforms    []catalog.Platform
	Remaining    []catalog.Platform
	Records      []ledger.Record
}

// StatusReport classifies every catalog item against today.
type StatusReport struct {
	Today     time.Time
	LastRunAt time.Time
	Items     []ItemStatus
	Counts    map[schedule.Status]int
}

// Status reports each item's classification and, for incomplete items, the
// platforms still to publish.
func (o *Orchestrator) Status() (StatusReport, error) {
	if err := o.refreshLedger(); err != nil {
		return StatusReport{}, err
	}
	today := o.Today()
	report := StatusReport{
		Today:     today,
		LastRunAt: o.ledger.LastRunAt(),
		Counts:    map[schedule.Status]int{},
	}
	for _, item := range o.catalog.Items() {
		remaining := o.ledger.Remaining(item)
		row := ItemStatus{
			Sequence:     item.Sequence,
			Title:        item.Title,
			ExpectedDate: o.schedule.ExpectedDate(item.Sequence),
			Status:       schedule.Classify(item.Sequence, o.schedule, today, len(remaining) == 0),
			Platforms:    item.Platforms,
			Remaining:    remaining,
		}
		for _, p := range item.Platforms {
			if rec, ok := o.ledger.Get(item.Sequence, p); ok {
				row.Records = append(row.Records, rec)
			}
		}
		report.Counts[row.Status]++
		report.Items = append(report.Items, row)
	}
	return report, nil
}

// ScheduleEntry is one row of the schedule listing.
type ScheduleEntry struct {
	Sequence     int
	Title        string
	ExpectedDate time.Time
	Platforms    []catalog.Platform
}

// Schedule lists every item's expected date and targets. It does not
// consult the ledger.
func (o *Orchestrator) Schedule() []ScheduleEntry {
	items := o.catalog.Items()
	out := make([]ScheduleEntry, 0, len(items))
	for _, item := range items {
		out = append(out, ScheduleEntry{
			Sequence:     item.Sequence,
			Title:        item.Title,
			ExpectedDate: o.schedule.ExpectedDate(item.Sequence),
			Platforms:    item.Platforms,
		})
	}
	return out
}

// Pending lists staged hand-offs not yet confirmed.
func (o *Orchestrator) Pending() ([]handoff.Staged, error) {
	if o.desk == nil {
		return nil, nil
	}
	if err := o.refreshLedger(); err != nil {
		return nil, err
	}
	return o.desk.Pending(o.ledger)
}

// Confirm records an operator's confirmation that a manual hand-off was
// published. Confirming a pair twice returns a DuplicateRecordError.
func (o *Orchestrator) Confirm(_ context.Context, sequence int, platform catalog.Platform, reference string) (ledger.Record, error) {
	item, ok := o.catalog.Get(sequence)
	if !ok {
		return ledger.Record{}, fmt.Errorf("%w: %d", ErrUnknownSequence, sequence)
	}
	if !item.Targets(platform) {
		return ledger.Record{}, fmt.Errorf("%w: item %d, %s", ErrNotTargeted, sequence, platform)
	}
	rec := ledger.Record{
		Sequence:    sequence,
		Platform:    platform,
		PublishedAt: o.now().UTC(),
		Reference:   reference,
	}
	if err := o.ledger.Record(rec); err != nil {
		return ledger.Record{}, err
	}
	rs := &runState{id: o.newRunID(), mode: "confirm", report: &Report{}}
	o.emitPair(rs, PairResult{Sequence: sequence, Platform: platform}, events.Event{
		Type:      events.Confirmed,
		Reference: reference,
		Message:   "confirmed by operator",
	})
	if o.desk != nil {
		_ = o.desk.Clear(sequence, platform)
	}
	o.checkCampaign(rs)
	return rec, nil
}
