package k8sfixture_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/giantswarm/k8sfixture"
)

func TestWaitTimeoutErrorMessage(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		err  *k8sfixture.WaitTimeoutError
		want string
	}{
		"with last observed": {
			err: &k8sfixture.WaitTimeoutError{
				Op:           "wait ready",
				Resource:     "zookeeper/zookeeper-a1b2",
				LastObserved: "2/3 pods",
				Timeout:      5 * time.Minute,
			},
			want: "wait ready zookeeper/zookeeper-a1b2: condition not reached within 5m0s (last observed: 2/3 pods)",
		},
		"without last observed": {
			err: &k8sfixture.WaitTimeoutError{
				Op:       "create",
				Resource: "Pod/agent",
				Timeout:  10 * time.Second,
			},
			want: "create Pod/agent: condition not reached within 10s",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWaitTimeoutErrorMatchesSentinel(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("outer: %w", &k8sfixture.WaitTimeoutError{
		Op:       "delete",
		Resource: "ConfigMap/test",
		Timeout:  time.Second,
	})

	if !errors.Is(err, k8sfixture.ErrWaitTimeout) {
		t.Error("wrapped WaitTimeoutError does not match ErrWaitTimeout")
	}

	var wte *k8sfixture.WaitTimeoutError
	if !errors.As(err, &wte) {
		t.Fatal("wrapped WaitTimeoutError not recoverable with errors.As")
	}
	if wte.Resource != "ConfigMap/test" {
		t.Errorf("Resource = %q, want %q", wte.Resource, "ConfigMap/test")
	}
}

func TestSentinelsAreDistinct(t *testing.T) {
	t.Parallel()

	sentinels := []error{
		k8sfixture.ErrWaitTimeout,
		k8sfixture.ErrMissingName,
		k8sfixture.ErrUnknownType,
		k8sfixture.ErrNoCluster,
		k8sfixture.ErrWatchClosed,
	}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i != j && errors.Is(a, b) {
				t.Errorf("sentinel %v unexpectedly matches %v", a, b)
			}
		}
	}
}
