package k8sfixture_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/giantswarm/k8sfixture"
)

func TestEnsureRunsSetupOnce(t *testing.T) {
	t.Parallel()

	f := k8sfixture.NewFixtures()
	runs := 0
	setup := func(context.Context) error {
		runs++
		return nil
	}

	for range 3 {
		if err := f.Ensure(t.Context(), "operator", setup); err != nil {
			t.Fatalf("Ensure: %v", err)
		}
	}
	if runs != 1 {
		t.Errorf("setup ran %d times, want 1", runs)
	}
}

func TestEnsureTracksNamesIndependently(t *testing.T) {
	t.Parallel()

	f := k8sfixture.NewFixtures()
	var ran []string
	setup := func(name string) func(context.Context) error {
		return func(context.Context) error {
			ran = append(ran, name)
			return nil
		}
	}

	if err := f.Ensure(t.Context(), "operator", setup("operator")); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if err := f.Ensure(t.Context(), "crds", setup("crds")); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if len(ran) != 2 {
		t.Errorf("setups ran = %v, want both operator and crds", ran)
	}
}

func TestEnsureRearmsOnFailure(t *testing.T) {
	t.Parallel()

	f := k8sfixture.NewFixtures()
	boom := errors.New("deploy failed")
	runs := 0

	err := f.Ensure(t.Context(), "operator", func(context.Context) error {
		runs++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want wrapped setup error", err)
	}

	// The failed attempt must not latch; the next call retries.
	if err := f.Ensure(t.Context(), "operator", func(context.Context) error {
		runs++
		return nil
	}); err != nil {
		t.Fatalf("Ensure after failure: %v", err)
	}
	if runs != 2 {
		t.Errorf("setup ran %d times, want 2", runs)
	}
}

func TestEnsureMissingName(t *testing.T) {
	t.Parallel()

	f := k8sfixture.NewFixtures()
	err := f.Ensure(t.Context(), "", func(context.Context) error { return nil })
	if !errors.Is(err, k8sfixture.ErrMissingName) {
		t.Errorf("error = %v, want ErrMissingName", err)
	}
}

func TestEnsureConcurrent(t *testing.T) {
	t.Parallel()

	f := k8sfixture.NewFixtures()
	var runs atomic.Int32
	var wg sync.WaitGroup

	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = f.Ensure(context.Background(), "operator", func(context.Context) error {
				runs.Add(1)
				return nil
			})
		}()
	}
	wg.Wait()

	if got := runs.Load(); got != 1 {
		t.Errorf("setup ran %d times under contention, want 1", got)
	}
}

func TestEnsureWithLockDir(t *testing.T) {
	t.Parallel()

	lockDir := t.TempDir()

	// Two registries model two test processes sharing the lock directory:
	// each runs the setup once, serialized by the file lock. Deduplication
	// across processes is the setup's job (it must be idempotent).
	first := k8sfixture.NewFixtures(k8sfixture.WithLockDir(lockDir))
	second := k8sfixture.NewFixtures(k8sfixture.WithLockDir(lockDir))

	runs := 0
	setup := func(context.Context) error {
		runs++
		return nil
	}

	if err := first.Ensure(t.Context(), "operator", setup); err != nil {
		t.Fatalf("first Ensure: %v", err)
	}
	if err := second.Ensure(t.Context(), "operator", setup); err != nil {
		t.Fatalf("second Ensure: %v", err)
	}
	if runs != 2 {
		t.Errorf("setup ran %d times across two registries, want 2", runs)
	}

	// Within one registry the guard still holds.
	if err := first.Ensure(t.Context(), "operator", setup); err != nil {
		t.Fatalf("repeated Ensure: %v", err)
	}
	if runs != 2 {
		t.Errorf("setup ran %d times after repeat, want 2", runs)
	}
}

func TestWithLockDirPanicsOnEmpty(t *testing.T) {
	t.Parallel()
	runPanicTests(t, []panicTestCase{
		{
			name:     "empty",
			panics:   true,
			panicMsg: "k8sfixture: lock directory must not be empty",
			fn:       func() { k8sfixture.WithLockDir("") },
		},
		{name: "valid", fn: func() { k8sfixture.WithLockDir("/tmp/locks") }},
	})
}
