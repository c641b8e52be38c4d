package k8sfixture

import (
	"fmt"
	"time"

	"github.com/giantswarm/k8sfixture/internal/sentinel"
)

// Sentinel errors for error inspection with errors.Is.
// These are immutable constants safe for use in wrapped error chain comparison.
const (
	// ErrWaitTimeout is the sentinel matched by every *WaitTimeoutError.
	// Use errors.Is(err, ErrWaitTimeout) to detect any bounded wait that
	// expired, regardless of which operation it came from.
	ErrWaitTimeout = sentinel.Error("wait deadline exceeded")

	// ErrMissingName is returned when a resource specification lacks
	// metadata.name, which every apply/create operation requires.
	ErrMissingName = sentinel.Error("metadata.name is missing")

	// ErrUnknownType is returned when a resource type is not registered in
	// the client's scheme. Register custom types via WithScheme.
	ErrUnknownType = sentinel.Error("resource type not registered in scheme")

	// ErrNoCluster is returned by TestCluster operations that require a
	// previously applied cluster resource.
	ErrNoCluster = sentinel.Error("no cluster resource applied")

	// ErrWatchClosed is returned when the API server closes a watch stream
	// before the awaited state change was observed.
	ErrWatchClosed = sentinel.Error("watch stream closed")
)

// WaitTimeoutError reports that a bounded wait expired before the target
// condition was observed. It records what was being waited for, the last
// observed value, and the configured timeout, per the error contract of
// every blocking operation in this package.
type WaitTimeoutError struct {
	// Op names the operation that timed out, e.g. "create" or "wait ready".
	Op string
	// Resource identifies the awaited resource as kind/name.
	Resource string
	// LastObserved describes the most recent observed state, e.g. "2/3 pods".
	LastObserved string
	// Timeout is the deadline that expired.
	Timeout time.Duration
}

// Error implements the error interface.
func (e *WaitTimeoutError) Error() string {
	msg := fmt.Sprintf("%s %s: condition not reached within %s", e.Op, e.Resource, e.Timeout)
	if e.LastObserved != "" {
		msg += fmt.Sprintf(" (last observed: %s)", e.LastObserved)
	}
	return msg
}

// Is reports a match for ErrWaitTimeout so that callers can detect timeouts
// with errors.Is without inspecting the concrete type.
func (e *WaitTimeoutError) Is(target error) bool {
	return target == ErrWaitTimeout
}

// newWaitTimeout builds a WaitTimeoutError for the given operation.
func newWaitTimeout(op, resource, lastObserved string, timeout time.Duration) *WaitTimeoutError {
	return &WaitTimeoutError{Op: op, Resource: resource, LastObserved: lastObserved, Timeout: timeout}
}
