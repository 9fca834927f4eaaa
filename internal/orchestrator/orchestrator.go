// Package orchestrator drives publishing: it picks the due items, skips
// ledgered pairs, dispatches the rest and records what succeeded.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kingrea/crosspost/internal/catalog"
	"github.com/kingrea/crosspost/internal/dispatch"
	"github.com/kingrea/crosspost/internal/events"
	"github.com/kingrea/crosspost/internal/handoff"
	"github.com/kingrea/crosspost/internal/ledger"
	"github.com/kingrea/crosspost/internal/schedule"
)

// Publisher performs one dispatch. *dispatch.Dispatcher satisfies it.
type Publisher interface {
	Publish(ctx context.Context, item catalog.Item, platform catalog.Platform) dispatch.Outcome
}

// Desk stages manual hand-offs. *handoff.Desk satisfies it.
type Desk interface {
	Stage(ctx context.Context, p dispatch.Prepared) (handoff.Staged, error)
	Pending(published handoff.Publisher) ([]handoff.Staged, error)
	Clear(sequence int, platform catalog.Platform) error
}

// Orchestrator owns one ledger for its lifetime.
type Orchestrator struct {
	catalog   *catalog.Catalog
	schedule  schedule.Config
	ledger    *ledger.Ledger
	publisher Publisher

	desk         Desk
	confirmer    handoff.Confirmer
	sink         events.Sink
	retry        dispatch.RetryPolicy
	maxCatchup   int
	disabled     map[catalog.Platform]bool
	location     *time.Location
	campaignFlag string
	now          func() time.Time
	sleep        func(context.Context, time.Duration) error
	newRunID     func() string
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// WithSleep replaces the cancellable wait used for retry backoff and the
// daemon's idle period.
func WithSleep(fn func(context.Context, time.Duration) error) Option {
	return func(o *Orchestrator) {
		if fn != nil {
			o.sleep = fn
		}
	}
}

// WithSink sets the event sink.
func WithSink(sink events.Sink) Option {
	return func(o *Orchestrator) {
		if sink != nil {
			o.sink = sink
		}
	}
}

// WithDesk sets where manual hand-offs are staged.
func WithDesk(desk Desk) Option {
	return func(o *Orchestrator) { o.desk = desk }
}

// WithConfirmer sets how staged hand-offs are confirmed during a run.
func WithConfirmer(c handoff.Confirmer) Option {
	return func(o *Orchestrator) {
		if c != nil {
			o.confirmer = c
		}
	}
}

// WithRetryPolicy sets the in-run retry policy.
func WithRetryPolicy(p dispatch.RetryPolicy) Option {
	return func(o *Orchestrator) { o.retry = p }
}

// WithMaxCatchup bounds how many overdue items one run picks up. Zero
// disables catch-up, negative removes the bound.
func WithMaxCatchup(n int) Option {
	return func(o *Orchestrator) { o.maxCatchup = n }
}

// WithDisabledPlatforms skips platforms in every run.
func WithDisabledPlatforms(platforms ...catalog.Platform) Option {
	return func(o *Orchestrator) {
		for _, p := range platforms {
			o.disabled[p] = true
		}
	}
}

// WithLocation sets the timezone "today" is computed in.
func WithLocation(loc *time.Location) Option {
	return func(o *Orchestrator) {
		if loc != nil {
			o.location = loc
		}
	}
}

// WithCampaignFlag sets the file written once when every item is complete.
func WithCampaignFlag(path string) Option {
	return func(o *Orchestrator) { o.campaignFlag = path }
}

// WithRunIDs overrides run ID generation.
func WithRunIDs(fn func() string) Option {
	return func(o *Orchestrator) {
		if fn != nil {
			o.newRunID = fn
		}
	}
}

// New validates the collaborators and the ledger against the catalog. All
// returned errors are ConfigErrors.
func New(cat *catalog.Catalog, sched schedule.Config, led *ledger.Ledger, pub Publisher, opts ...Option) (*Orchestrator, error) {
	if cat == nil {
		return nil, NewConfigError(fmt.Errorf("orchestrator: catalog is required"))
	}
	if led == nil {
		return nil, NewConfigError(fmt.Errorf("orchestrator: ledger is required"))
	}
	if err := sched.Validate(); err != nil {
		return nil, NewConfigError(err)
	}
	if err := led.Validate(cat); err != nil {
		return nil, NewConfigError(err)
	}
	o := &Orchestrator{
		catalog:    cat,
		schedule:   sched,
		ledger:     led,
		publisher:  pub,
		confirmer:  handoff.Deferred{},
		sink:       events.Discard,
		retry:      dispatch.DefaultRetryPolicy(),
		maxCatchup: 4,
		disabled:   map[catalog.Platform]bool{},
		location:   time.Local,
		now:        time.Now,
		sleep:      sleepContext,
		newRunID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Catalog returns the catalog.
func (o *Orchestrator) Catalog() *catalog.Catalog {
	return o.catalog
}

// Ledger returns the ledger.
func (o *Orchestrator) Ledger() *ledger.Ledger {
	return o.ledger
}

// ScheduleConfig returns the schedule configuration.
func (o *Orchestrator) ScheduleConfig() schedule.Config {
	return o.schedule
}

// Today is the civil date in the configured timezone.
func (o *Orchestrator) Today() time.Time {
	return schedule.Today(o.now(), o.location)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (o *Orchestrator) emit(e events.Event) {
	e.Normalize(o.now())
	// Sinks never fail a run.
	_ = o.sink.HandleEvent(e)
}
