package k8sfixture

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/util/wait"
)

// readinessCheckLimit caps how many per-pod readiness verifications WaitReady
// runs concurrently. The client serializes the underlying API calls anyway;
// the limit keeps the goroutine count bounded for large clusters.
const readinessCheckLimit = 4

// TestCluster sequences the lifecycle of one operator-managed cluster
// resource: apply, wait for the expected pods to become ready, run the test
// body, delete, wait for the pods to terminate. T is the cluster's custom
// resource type.
//
// Each TestCluster owns exactly one remote cluster identity, derived from a
// unique instance name, so concurrent tests never select each other's pods.
// The current cluster resource is nil until Apply succeeds and is cleared
// again only after the associated pods are confirmed terminated.
type TestCluster[T any, P Resource[T]] struct {
	client  *Client
	cluster *T
	cfg     clusterConfig
}

// NewTestCluster creates a TestCluster for the given logical application
// name (e.g. "zookeeper"). The instance name defaults to the application
// name with a random suffix, capped at 63 characters.
//
// Panics if client is nil or appName is empty.
func NewTestCluster[T any, P Resource[T]](client *Client, appName string, opts ...ClusterOption) *TestCluster[T, P] {
	if client == nil {
		panic("k8sfixture: NewTestCluster client must not be nil")
	}
	requireNonEmpty("application name", appName)

	cfg := defaultClusterConfig(appName)
	for _, opt := range opts {
		opt(&cfg)
	}
	return &TestCluster[T, P]{client: client, cfg: cfg}
}

// Client returns the underlying resource client.
func (tc *TestCluster[T, P]) Client() *Client {
	return tc.client
}

// Cluster returns the last applied cluster resource, or nil before the first
// successful Apply.
func (tc *TestCluster[T, P]) Cluster() *T {
	return tc.cluster
}

// InstanceName returns the unique name identifying this cluster instance.
// Apply stamps it on the cluster resource, and the instance label selector
// is derived from it.
func (tc *TestCluster[T, P]) InstanceName() string {
	return tc.cfg.instanceName
}

// describe identifies the cluster in log and error messages.
func (tc *TestCluster[T, P]) describe() string {
	return tc.cfg.appName + "/" + tc.cfg.instanceName
}

// selector returns the label selector identifying resources of this cluster
// instance, merged with any additional caller-supplied key=value terms.
func (tc *TestCluster[T, P]) selector(additional ...string) string {
	terms := make([]string, 0, 2+len(additional))
	terms = append(terms,
		tc.cfg.appLabelKey+"="+tc.cfg.appName,
		tc.cfg.instanceLabelKey+"="+tc.cfg.instanceName,
	)
	terms = append(terms, additional...)
	return strings.Join(terms, ",")
}

// Apply decodes the YAML specification and applies it as this instance's
// cluster resource. See ApplyObject.
func (tc *TestCluster[T, P]) Apply(spec string) error {
	obj, err := FromYAML[T, P](spec)
	if err != nil {
		return err
	}
	return tc.ApplyObject(obj)
}

// ApplyObject applies the given cluster resource, overriding metadata.name
// with the instance name so repeated runs never collide, and stores the
// result as the current cluster. After the apply it sleeps for the
// configured grace period to give the operator time to begin reconciling;
// this is a heuristic poll delay, not a reconciliation guarantee (see
// WaitObservedGeneration).
func (tc *TestCluster[T, P]) ApplyObject(obj P) error {
	obj.SetName(tc.cfg.instanceName)

	applied, err := ApplyObject[T, P](tc.client, obj)
	if err != nil {
		return fmt.Errorf("apply cluster resource %s: %w", tc.describe(), err)
	}
	tc.cluster = applied

	if tc.cfg.applyGrace > 0 {
		time.Sleep(tc.cfg.applyGrace)
	}
	return nil
}

// CreateOrUpdate applies the cluster specification and waits for the
// expected number of ready pods.
func (tc *TestCluster[T, P]) CreateOrUpdate(spec string, expectedPodCount int) error {
	if err := tc.Apply(spec); err != nil {
		return err
	}
	return tc.WaitReady(expectedPodCount)
}

// WaitReady polls the cluster's pod list until it holds exactly
// expectedPodCount pods and every one of them reports the Ready condition,
// within the cluster-ready timeout. The count is re-polled at the configured
// interval; once it matches, each pod's readiness is verified individually.
func (tc *TestCluster[T, P]) WaitReady(expectedPodCount int) error {
	lastCount := 0

	ctx, cancel := context.WithTimeout(context.Background(), tc.cfg.readyTimeout)
	defer cancel()

	err := wait.PollUntilContextCancel(ctx, tc.cfg.readyInterval, true, func(context.Context) (bool, error) {
		pods, err := tc.ListPods()
		if err != nil {
			return false, err
		}
		lastCount = len(pods)

		logger().Info("waiting for pods to become ready",
			"cluster", tc.describe(), "observed", lastCount, "expected", expectedPodCount)

		if lastCount != expectedPodCount {
			return false, nil
		}

		g := new(errgroup.Group)
		g.SetLimit(readinessCheckLimit)
		for i := range pods {
			pod := &pods[i]
			g.Go(func() error {
				if _, err := tc.client.VerifyPodCondition(pod, "Ready"); err != nil {
					return fmt.Errorf("pod %s: %w", pod.Name, err)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return false, err
		}

		logger().Info("cluster ready", "cluster", tc.describe(), "pods", expectedPodCount)
		return true, nil
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return newWaitTimeout(
				"wait ready",
				tc.describe(),
				fmt.Sprintf("%d/%d pods", lastCount, expectedPodCount),
				tc.cfg.readyTimeout,
			)
		}
		return err
	}
	return nil
}

// WaitForPodsTerminated polls the cluster's pod list until it is empty,
// within the pods-terminated timeout. Pods in a terminating state still
// count as present.
func (tc *TestCluster[T, P]) WaitForPodsTerminated() error {
	remaining := 0

	ctx, cancel := context.WithTimeout(context.Background(), tc.cfg.terminatedTimeout)
	defer cancel()

	err := wait.PollUntilContextCancel(ctx, tc.cfg.terminatedInterval, true, func(context.Context) (bool, error) {
		pods, err := tc.ListPods()
		if err != nil {
			return false, err
		}
		remaining = len(pods)
		if remaining == 0 {
			return true, nil
		}

		logger().Info("waiting for pods to terminate", "cluster", tc.describe(), "remaining", remaining)
		return false, nil
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return newWaitTimeout(
				"wait for pod termination of",
				tc.describe(),
				fmt.Sprintf("%d pods remaining", remaining),
				tc.cfg.terminatedTimeout,
			)
		}
		return err
	}
	return nil
}

// Delete deletes the current cluster resource and waits until its pods are
// confirmed terminated; dependent pods and commands are expected to be
// cascade-deleted by the server through owner references. The current
// cluster is cleared only after the pods are gone. Deleting a cluster that
// was never applied is a no-op.
func (tc *TestCluster[T, P]) Delete() error {
	if tc.cluster == nil {
		return nil
	}
	if err := Delete[T, P](tc.client, tc.cluster); err != nil {
		return fmt.Errorf("delete cluster resource %s: %w", tc.describe(), err)
	}
	if err := tc.WaitForPodsTerminated(); err != nil {
		return err
	}
	tc.cluster = nil
	return nil
}

// Close deletes the cluster resource and waits for pod termination, logging
// any failure instead of returning it. It is meant for defer and t.Cleanup,
// where cleanup must run even when the test body failed and has no caller to
// report to. Close is idempotent.
func (tc *TestCluster[T, P]) Close() {
	if err := tc.Delete(); err != nil {
		logger().Error("test cluster cleanup failed", "cluster", tc.describe(), "error", err)
	}
}

// WaitObservedGeneration blocks until the operator reports a
// status.observedGeneration of at least the cluster resource's current
// generation, within the verify-status timeout. It is the precise
// alternative to the fixed post-apply grace period for operators that
// acknowledge reconciliation.
//
// Returns ErrNoCluster before the first successful Apply.
func (tc *TestCluster[T, P]) WaitObservedGeneration() error {
	if tc.cluster == nil {
		return fmt.Errorf("wait for observed generation of %s: %w", tc.describe(), ErrNoCluster)
	}

	updated, err := VerifyStatus[T, P](tc.client, tc.cluster, func(current *T) bool {
		content, convErr := runtime.DefaultUnstructuredConverter.ToUnstructured(current)
		if convErr != nil {
			return false
		}
		observed, found, _ := unstructured.NestedInt64(content, "status", "observedGeneration")
		return found && observed >= P(current).GetGeneration()
	})
	if err != nil {
		return err
	}
	tc.cluster = updated
	return nil
}

// ListPods returns all pods belonging to this cluster instance, selected by
// the derived app and instance labels merged with any additional key=value
// terms.
func (tc *TestCluster[T, P]) ListPods(additionalLabels ...string) ([]corev1.Pod, error) {
	return List[corev1.Pod](tc.client, tc.selector(additionalLabels...))
}

// ListConfigMaps returns all config maps belonging to this cluster instance,
// selected like ListPods.
func (tc *TestCluster[T, P]) ListConfigMaps(additionalLabels ...string) ([]corev1.ConfigMap, error) {
	return List[corev1.ConfigMap](tc.client, tc.selector(additionalLabels...))
}

// ListNodes returns the nodes matching the given label selector, falling
// back to the configured node selector when selector is empty. Useful for
// deriving the expected pod count of node-bound workloads.
func (tc *TestCluster[T, P]) ListNodes(selector string) ([]corev1.Node, error) {
	if selector == "" {
		selector = tc.cfg.nodeSelector
	}
	return List[corev1.Node](tc.client, selector)
}

// CheckPodCreationTimestamp verifies that every pod of this cluster was
// created strictly after the given cutoff. Useful after restart-style
// commands, where stale pods indicate the command did not take effect.
func (tc *TestCluster[T, P]) CheckPodCreationTimestamp(cutoff time.Time) error {
	pods, err := tc.ListPods()
	if err != nil {
		return err
	}
	for i := range pods {
		created := pods[i].CreationTimestamp.Time
		if !created.After(cutoff) {
			return fmt.Errorf("pod %s of %s was created at %s, not after %s",
				pods[i].Name, tc.describe(), created.Format(time.RFC3339), cutoff.Format(time.RFC3339))
		}
	}
	return nil
}

// CheckPodVersion verifies that every pod of this cluster carries the
// version label with the expected value. Useful after cluster updates.
func (tc *TestCluster[T, P]) CheckPodVersion(expected string) error {
	pods, err := tc.ListPods()
	if err != nil {
		return err
	}
	for i := range pods {
		version, ok := pods[i].Labels[tc.cfg.versionLabelKey]
		if !ok {
			return fmt.Errorf("pod %s of %s has no %s label, expected version %q",
				pods[i].Name, tc.describe(), tc.cfg.versionLabelKey, expected)
		}
		if version != expected {
			return fmt.Errorf("pod %s of %s has version %q, expected %q",
				pods[i].Name, tc.describe(), version, expected)
		}
	}
	return nil
}

// ApplyCommand applies an auxiliary command resource (e.g. a restart
// command) and returns it as decoded after the write. Like Apply, it sleeps
// for the cluster's grace period afterwards so the operator can react before
// the test continues. The command does not participate in the cluster's
// lifecycle; cleanup is expected to cascade from the cluster resource via
// owner references.
func ApplyCommand[C any, PC Resource[C], T any, P Resource[T]](tc *TestCluster[T, P], spec string) (*C, error) {
	cmd, err := Apply[C, PC](tc.client, spec)
	if err != nil {
		return nil, fmt.Errorf("apply command for %s: %w", tc.describe(), err)
	}
	if tc.cfg.applyGrace > 0 {
		time.Sleep(tc.cfg.applyGrace)
	}
	return cmd, nil
}
