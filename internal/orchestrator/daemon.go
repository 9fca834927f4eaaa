package orchestrator

import (
	"context"
	"time"

	"github.com/kingrea/crosspost/internal/events"
	"github.com/kingrea/crosspost/internal/schedule"
)

// DaemonState is the daemon loop's current phase.
type DaemonState string

const (
	StateRunning     DaemonState = "running"
	StateSleeping    DaemonState = "sleeping"
	StateTerminating DaemonState = "terminating"
)

// DaemonHooks observe the loop. Both are optional.
type DaemonHooks struct {
	// OnState is called on every transition. next is the wake-up time when
	// entering StateSleeping and zero otherwise.
	OnState func(state DaemonState, next time.Time)
	// OnReport receives each pass's report and error.
	OnReport func(Report, error)
}

// Daemon runs a pass immediately, then one pass each day at publishAt, until
// ctx is cancelled. Every pass reloads the ledger, so the loop holds no state
// a restart would lose. Only configuration errors end the loop early.
func (o *Orchestrator) Daemon(ctx context.Context, publishAt schedule.TimeOfDay, hooks DaemonHooks) error {
	rs := &runState{id: o.newRunID(), mode: ModeDaemon, report: &Report{}}
	transition := func(state DaemonState, next time.Time) {
		msg := string(state)
		if !next.IsZero() {
			msg += " until " + next.Format(time.RFC3339)
		}
		o.emitRun(rs, events.Event{Type: events.DaemonState, Outcome: string(state), Message: msg})
		if hooks.OnState != nil {
			hooks.OnState(state, next)
		}
	}

	state := StateRunning
	for {
		switch state {
		case StateRunning:
			transition(StateRunning, time.Time{})
			report, err := o.Run(ctx, Request{Mode: ModeRunToday})
			if hooks.OnReport != nil {
				hooks.OnReport(report, err)
			}
			switch {
			case ctx.Err() != nil:
				state = StateTerminating
			case IsConfigError(err):
				transition(StateTerminating, time.Time{})
				return err
			default:
				state = StateSleeping
			}
		case StateSleeping:
			now := o.now()
			next := publishAt.NextOccurrence(now, o.location)
			transition(StateSleeping, next)
			if err := o.sleep(ctx, next.Sub(now)); err != nil {
				state = StateTerminating
				continue
			}
			state = StateRunning
		case StateTerminating:
			transition(StateTerminating, time.Time{})
			return nil
		}
	}
}
