package k8sfixture

import (
	"log/slog"
	"sync/atomic"
)

// customLogger holds a logger installed via SetLogger. A nil value means no
// custom logger has been set and logger() falls back to the cached default.
var customLogger atomic.Pointer[slog.Logger]

// defaultLogger caches the default-derived logger so it is not re-created on
// every logger() call. If slog.SetDefault is called after the first logger()
// call, the cached value will not reflect the change; SetLogger(nil) clears
// the cache so the next call re-derives it.
var defaultLogger atomic.Pointer[slog.Logger]

// logger returns the current package-level logger. Safe for concurrent use.
func logger() *slog.Logger {
	if l := customLogger.Load(); l != nil {
		return l
	}
	if l := defaultLogger.Load(); l != nil {
		return l
	}
	l := slog.Default().With("component", "k8sfixture")
	if defaultLogger.CompareAndSwap(nil, l) {
		return l
	}
	if l2 := defaultLogger.Load(); l2 != nil {
		return l2
	}
	return l
}

// SetLogger replaces the package-level logger used by k8sfixture, allowing
// test suites to route progress and cleanup messages through their own
// logging setup. If l is nil, the logger resets to slog.Default() with a
// "component" attribute, re-derived on the next use.
//
// SetLogger is safe to call concurrently with other k8sfixture operations,
// but for a strict happens-before guarantee call it before the first Client
// is used (e.g. in TestMain before m.Run).
func SetLogger(l *slog.Logger) {
	customLogger.Store(l)
	defaultLogger.Store(nil)
}
