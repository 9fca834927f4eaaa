package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kingrea/crosspost/internal/catalog"
)

// FailureKind classifies why a dispatch did not succeed.
type FailureKind string

const (
	// FailureAuth means credentials are missing or rejected. Fatal for the
	// platform for the rest of the run.
	FailureAuth FailureKind = "auth"
	// FailureRateLimited is retryable and may carry a Retry-After hint.
	FailureRateLimited FailureKind = "rate_limited"
	// FailureDuplicateContent means the platform already has this post. It
	// is recorded as if it had succeeded.
	FailureDuplicateContent FailureKind = "duplicate_content"
	// FailureTransientNetwork covers timeouts, transport errors and 5xx.
	FailureTransientNetwork FailureKind = "transient_network"
	// FailureUnknownPlatform means no adapter is registered. Configuration
	// error, fatal for the platform.
	FailureUnknownPlatform FailureKind = "unknown_platform"
	// FailureRejected means the platform refused the payload. Not retryable
	// and local to the pair.
	FailureRejected FailureKind = "rejected"
)

// Retryable reports whether an in-run retry can help.
func (k FailureKind) Retryable() bool {
	return k == FailureRateLimited || k == FailureTransientNetwork
}

// HaltsPlatform reports whether the platform must be skipped for the rest of
// the run.
func (k FailureKind) HaltsPlatform() bool {
	return k == FailureAuth || k == FailureUnknownPlatform
}

// Failure is the typed error every adapter returns instead of panicking.
type Failure struct {
	Kind       FailureKind
	Retryable  bool
	RetryAfter time.Duration
	StatusCode int
	Message    string
	Err        error
}

// NewFailure builds a failure with the kind's default retryability.
func NewFailure(kind FailureKind, format string, args ...any) *Failure {
	return &Failure{Kind: kind, Retryable: kind.Retryable(), Message: fmt.Sprintf(format, args...)}
}

func (f *Failure) Error() string {
	msg := f.Message
	if msg == "" && f.Err != nil {
		msg = f.Err.Error()
	}
	if f.StatusCode > 0 {
		return fmt.Sprintf("%s (HTTP %d): %s", f.Kind, f.StatusCode, msg)
	}
	return fmt.Sprintf("%s: %s", f.Kind, msg)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// AsFailure converts any adapter error into a Failure. Context deadlines and
// unclassified errors become transient network failures.
func AsFailure(err error) *Failure {
	if err == nil {
		return nil
	}
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Failure{Kind: FailureTransientNetwork, Retryable: true, Message: "timed out", Err: err}
	}
	return &Failure{Kind: FailureTransientNetwork, Retryable: true, Err: err}
}

// Prepared is the content a manual-assist adapter hands to the operator.
type Prepared struct {
	Sequence     int
	Platform     catalog.Platform
	Title        string
	Tags         []string
	Body         string
	EditorURL    string
	Instructions []string
}

// OutcomeKind discriminates Outcome.
type OutcomeKind string

const (
	OutcomeSuccess OutcomeKind = "success"
	OutcomeManual  OutcomeKind = "manual_step_required"
	OutcomeFailure OutcomeKind = "failure"
)

// Outcome is the result of one dispatch.
type Outcome struct {
	Kind      OutcomeKind
	Reference string
	Prepared  *Prepared
	Failure   *Failure
}

// Success reports a publication, with the platform's URL or ID if known.
func Success(reference string) Outcome {
	return Outcome{Kind: OutcomeSuccess, Reference: reference}
}

// ManualStepRequired hands prepared content to the operator.
func ManualStepRequired(p Prepared) Outcome {
	return Outcome{Kind: OutcomeManual, Prepared: &p}
}

// Fail wraps err as a failure outcome.
func Fail(err error) Outcome {
	f := AsFailure(err)
	if f == nil {
		f = NewFailure(FailureRejected, "adapter reported failure without a cause")
	}
	return Outcome{Kind: OutcomeFailure, Failure: f}
}

// Recordable reports whether the pair should be written to the ledger.
func (o Outcome) Recordable() bool {
	switch o.Kind {
	case OutcomeSuccess:
		return true
	case OutcomeFailure:
		return o.Failure != nil && o.Failure.Kind == FailureDuplicateContent
	default:
		return false
	}
}

// FailureKind returns the failure kind, or "" for non-failures.
func (o Outcome) FailureKind() FailureKind {
	if o.Failure == nil {
		return ""
	}
	return o.Failure.Kind
}
