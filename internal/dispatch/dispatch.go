// Package dispatch publishes one content item to one platform. Every adapter
// reports through Outcome; nothing here panics on a platform error and
// nothing here touches the ledger.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/kingrea/crosspost/internal/catalog"
)

// Capability describes how a platform is published to.
type Capability string

const (
	// CapabilityAutomatic adapters publish over the network.
	CapabilityAutomatic Capability = "automatic"
	// CapabilityManualAssist adapters only prepare content. A human
	// publishes it and confirms afterwards.
	CapabilityManualAssist Capability = "manual_assist"
)

// Adapter publishes to a single platform.
type Adapter interface {
	Platform() catalog.Platform
	Capability() Capability
	Publish(ctx context.Context, item catalog.Item) Outcome
}

// DefaultTimeout bounds a single dispatch call.
const DefaultTimeout = 30 * time.Second

// Dispatcher routes dispatches to registered adapters.
type Dispatcher struct {
	adapters map[catalog.Platform]Adapter
	timeout  time.Duration
}

// Option customizes a Dispatcher.
type Option func(*Dispatcher)

// WithTimeout sets the per-call timeout. Zero keeps the default.
func WithTimeout(d time.Duration) Option {
	return func(dp *Dispatcher) {
		if d > 0 {
			dp.timeout = d
		}
	}
}

// New builds a dispatcher over adapters. A later adapter for the same
// platform replaces an earlier one.
func New(adapters []Adapter, opts ...Option) *Dispatcher {
	d := &Dispatcher{adapters: map[catalog.Platform]Adapter{}, timeout: DefaultTimeout}
	for _, a := range adapters {
		if a != nil {
			d.adapters[a.Platform()] = a
		}
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Timeout returns the per-call bound.
func (d *Dispatcher) Timeout() time.Duration {
	return d.timeout
}

// Platforms lists registered platforms in dispatch order.
func (d *Dispatcher) Platforms() []catalog.Platform {
	out := make([]catalog.Platform, 0, len(d.adapters))
	for p := range d.adapters {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rank() < out[j].Rank() })
	return out
}

// Capability reports the capability of platform's adapter.
func (d *Dispatcher) Capability(platform catalog.Platform) (Capability, bool) {
	a, ok := d.adapters[platform]
	if !ok {
		return "", false
	}
	return a.Capability(), true
}

// Publish performs one bounded dispatch of item to platform.
func (d *Dispatcher) Publish(ctx context.Context, item catalog.Item, platform catalog.Platform) (out Outcome) {
	adapter, ok := d.adapters[platform]
	if !ok {
		return Fail(NewFailure(FailureUnknownPlatform, "no adapter registered for %q", platform))
	}
	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			out = Fail(NewFailure(FailureRejected, "%s adapter panicked: %v", platform, r))
		}
	}()
	out = adapter.Publish(callCtx, item)
	if out.Kind == "" {
		return Fail(NewFailure(FailureRejected, "%s adapter returned an empty outcome", platform))
	}
	if out.Kind == OutcomeFailure && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		out.Failure = &Failure{
			Kind:      FailureTransientNetwork,
			Retryable: true,
			Message:   fmt.Sprintf("timed out after %s", d.timeout),
			Err:       out.Failure,
		}
	}
	return out
}

// FuncAdapter adapts a function into an Adapter.
type FuncAdapter struct {
	Name catalog.Platform
	Cap  Capability
	Fn   func(ctx context.Context, item catalog.Item) Outcome
}

func (f FuncAdapter) Platform() catalog.Platform { return f.Name }

func (f FuncAdapter) Capability() Capability {
	if f.Cap == "" {
		return CapabilityAutomatic
	}
	return f.Cap
}

func (f FuncAdapter) Publish(ctx context.Context, item catalog.Item) Outcome {
	if f.Fn == nil {
		return Success("")
	}
	return f.Fn(ctx, item)
}
