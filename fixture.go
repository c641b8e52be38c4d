package k8sfixture

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// fixtureLockRetryInterval is the interval between consecutive attempts to
// acquire a fixture's file lock while another process holds it.
const fixtureLockRetryInterval = 50 * time.Millisecond

// Fixtures runs named setup functions at most once per process, with an
// optional file lock serializing the setup across processes. It covers
// shared preconditions of a test suite, e.g. deploying an operator or
// applying its custom resource definitions, that every test needs but only
// one should perform.
//
// The once-per-process guarantee is re-armed on failure: a setup that
// returned an error is retried by the next Ensure call for the same name.
// Across processes only the execution is serialized, not deduplicated, so
// setup functions must be idempotent (server-side apply qualifies).
type Fixtures struct {
	mu      sync.Mutex
	done    map[string]bool
	lockDir string
}

// FixtureOption configures Fixtures during construction via NewFixtures.
type FixtureOption func(*Fixtures)

// WithLockDir enables cross-process serialization: each fixture name maps to
// a lock file in the given directory, held for the duration of its setup.
// Panics if dir is empty.
func WithLockDir(dir string) FixtureOption {
	requireNonEmpty("lock directory", dir)
	return func(f *Fixtures) {
		f.lockDir = dir
	}
}

// NewFixtures creates an empty fixture registry. Without WithLockDir the
// once-guard is process-local only.
func NewFixtures(opts ...FixtureOption) *Fixtures {
	f := &Fixtures{done: make(map[string]bool)}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Ensure runs setup under the given name unless a previous call for the same
// name already succeeded in this process. Concurrent Ensure calls are
// serialized; the losing caller observes the winner's result and, on
// success, skips its own setup.
func (f *Fixtures) Ensure(ctx context.Context, name string, setup func(context.Context) error) error {
	if name == "" {
		return fmt.Errorf("ensure fixture: %w", ErrMissingName)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.done[name] {
		return nil
	}

	release, err := f.lock(ctx, name)
	if err != nil {
		return fmt.Errorf("ensure fixture %s: %w", name, err)
	}
	defer release()

	logger().Info("running fixture setup", "fixture", name)
	if err := setup(ctx); err != nil {
		return fmt.Errorf("ensure fixture %s: %w", name, err)
	}

	f.done[name] = true
	return nil
}

// lock acquires the fixture's cross-process file lock and returns its
// release function. Without a lock directory it is a no-op.
func (f *Fixtures) lock(ctx context.Context, name string) (func(), error) {
	if f.lockDir == "" {
		return func() {}, nil
	}

	if err := os.MkdirAll(f.lockDir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	fl := flock.New(filepath.Join(f.lockDir, name+".lock"))
	locked, err := fl.TryLockContext(ctx, fixtureLockRetryInterval)
	if err != nil {
		return nil, fmt.Errorf("acquire file lock %s: %w", fl.Path(), err)
	}
	if !locked {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("acquire file lock %s: %w", fl.Path(), ctx.Err())
		}
		return nil, fmt.Errorf("acquire file lock %s: lock not acquired", fl.Path())
	}

	// The lock file stays on disk: removing it would race with another
	// process locking the same path.
	return func() {
		if err := fl.Close(); err != nil {
			logger().Debug("failed to release file lock", "path", fl.Path(), "error", err)
		}
	}, nil
}
