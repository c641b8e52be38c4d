package k8sfixture

import "time"

// Default configuration values for NewClient and NewTestCluster.
// These constants are exported so callers can build custom configurations
// relative to them (e.g. 2 * DefaultVerifyStatusTimeout).
const (
	// DefaultNamespace is the namespace used for namespaced operations when
	// none is configured via WithNamespace.
	DefaultNamespace = "default"

	// DefaultFieldManager is the server-side apply field manager recorded
	// for every apply operation issued by this package.
	DefaultFieldManager = "k8sfixture"

	// DefaultApplyCRDTimeout bounds ApplyCRD, which waits for the
	// NamesAccepted condition on the applied definition.
	DefaultApplyCRDTimeout = 30 * time.Second

	// DefaultCreateTimeout bounds Create, which waits for the created
	// resource to be observed on a watch.
	DefaultCreateTimeout = 10 * time.Second

	// DefaultDeleteTimeout bounds Delete, which waits for the deletion to
	// be observed on a watch.
	DefaultDeleteTimeout = 10 * time.Second

	// DefaultGetAnnotationTimeout bounds GetAnnotation, which waits for the
	// named annotation to appear on the resource.
	DefaultGetAnnotationTimeout = 10 * time.Second

	// DefaultVerifyStatusTimeout bounds VerifyStatus and VerifyPodCondition,
	// which wait for a resource's status to satisfy a predicate.
	DefaultVerifyStatusTimeout = 30 * time.Second

	// DefaultClusterReadyTimeout bounds TestCluster.WaitReady. Operators
	// typically need a few minutes to schedule and start all pods.
	DefaultClusterReadyTimeout = 5 * time.Minute

	// DefaultPodsTerminatedTimeout bounds TestCluster.WaitForPodsTerminated
	// after the cluster resource has been deleted.
	DefaultPodsTerminatedTimeout = 2 * time.Minute

	// DefaultApplyGracePeriod is the fixed delay after applying a cluster or
	// command resource, giving the operator time to begin reconciling before
	// the first pod list. This is a heuristic, not a reconciliation signal;
	// operators that report status.observedGeneration should be awaited with
	// WaitObservedGeneration instead.
	DefaultApplyGracePeriod = 2 * time.Second

	// DefaultReadyPollInterval is the pod-list polling cadence of WaitReady.
	DefaultReadyPollInterval = 2 * time.Second

	// DefaultTerminatedPollInterval is the pod-list polling cadence of
	// WaitForPodsTerminated.
	DefaultTerminatedPollInterval = 1 * time.Second

	// DefaultAppLabelKey is the label key identifying the logical workload
	// type of operator-managed resources.
	DefaultAppLabelKey = "app.kubernetes.io/name"

	// DefaultInstanceLabelKey is the label key identifying one specific
	// cluster instance among all instances of a workload type.
	DefaultInstanceLabelKey = "app.kubernetes.io/instance"

	// DefaultVersionLabelKey is the label key carrying the workload version,
	// checked by TestCluster.CheckPodVersion.
	DefaultVersionLabelKey = "app.kubernetes.io/version"

	// DefaultNodeSelector is the legacy fallback selector used by
	// TestCluster.ListNodes when the caller supplies none.
	DefaultNodeSelector = "kubernetes.io/arch=amd64"
)
