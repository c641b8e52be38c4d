package k8sfixture

import (
	"fmt"
	"time"

	"k8s.io/apimachinery/pkg/runtime"

	"github.com/giantswarm/k8sfixture/internal/naming"
)

// requirePositive panics if v <= 0 with a descriptive message.
func requirePositive(name string, v time.Duration) {
	if v <= 0 {
		panic(fmt.Sprintf("k8sfixture: %s must be greater than 0, got %v", name, v))
	}
}

// requireNonNegative panics if v < 0 with a descriptive message.
func requireNonNegative(name string, v time.Duration) {
	if v < 0 {
		panic(fmt.Sprintf("k8sfixture: %s must not be negative, got %v", name, v))
	}
}

// requireNonEmpty panics if s is empty with a descriptive message.
func requireNonEmpty(name, s string) {
	if s == "" {
		panic(fmt.Sprintf("k8sfixture: %s must not be empty", name))
	}
}

// clientConfig holds the configurable state of a Client.
type clientConfig struct {
	namespace string
	timeouts  Timeouts
	schemeFns []func(*runtime.Scheme) error
}

// defaultClientConfig returns a clientConfig populated with all defaults.
func defaultClientConfig() clientConfig {
	return clientConfig{
		namespace: DefaultNamespace,
		timeouts:  DefaultTimeouts(),
	}
}

// ClientOption configures a Client during construction via NewClient.
//
// Several With* functions panic on invalid input (empty names, non-positive
// durations). Option values are typically compile-time constants, so an
// invalid value indicates a programmer error rather than a runtime
// condition; failing fast during initialization beats returning errors that
// would be universally fatal anyway.
type ClientOption func(*clientConfig)

// WithNamespace sets the namespace used for namespaced operations.
// Panics if ns is empty.
func WithNamespace(ns string) ClientOption {
	requireNonEmpty("namespace", ns)
	return func(c *clientConfig) {
		c.namespace = ns
	}
}

// WithTimeouts replaces all per-operation timeouts at once.
// Panics if any of the timeouts is not positive.
func WithTimeouts(t Timeouts) ClientOption {
	requirePositive("apply-CRD timeout", t.ApplyCRD)
	requirePositive("create timeout", t.Create)
	requirePositive("delete timeout", t.Delete)
	requirePositive("get-annotation timeout", t.GetAnnotation)
	requirePositive("verify-status timeout", t.VerifyStatus)
	return func(c *clientConfig) {
		c.timeouts = t
	}
}

// WithCreateTimeout bounds Create. Panics if d <= 0.
func WithCreateTimeout(d time.Duration) ClientOption {
	requirePositive("create timeout", d)
	return func(c *clientConfig) {
		c.timeouts.Create = d
	}
}

// WithDeleteTimeout bounds Delete. Panics if d <= 0.
func WithDeleteTimeout(d time.Duration) ClientOption {
	requirePositive("delete timeout", d)
	return func(c *clientConfig) {
		c.timeouts.Delete = d
	}
}

// WithApplyCRDTimeout bounds ApplyCRD. Panics if d <= 0.
func WithApplyCRDTimeout(d time.Duration) ClientOption {
	requirePositive("apply-CRD timeout", d)
	return func(c *clientConfig) {
		c.timeouts.ApplyCRD = d
	}
}

// WithGetAnnotationTimeout bounds GetAnnotation. Panics if d <= 0.
func WithGetAnnotationTimeout(d time.Duration) ClientOption {
	requirePositive("get-annotation timeout", d)
	return func(c *clientConfig) {
		c.timeouts.GetAnnotation = d
	}
}

// WithVerifyStatusTimeout bounds VerifyStatus and VerifyPodCondition.
// Panics if d <= 0.
func WithVerifyStatusTimeout(d time.Duration) ClientOption {
	requirePositive("verify-status timeout", d)
	return func(c *clientConfig) {
		c.timeouts.VerifyStatus = d
	}
}

// WithScheme registers additional types (typically generated custom resource
// types) in the client's scheme. May be given multiple times.
// Panics if add is nil.
func WithScheme(add func(*runtime.Scheme) error) ClientOption {
	if add == nil {
		panic("k8sfixture: scheme registration function must not be nil")
	}
	return func(c *clientConfig) {
		c.schemeFns = append(c.schemeFns, add)
	}
}

// clusterConfig holds the configurable state of a TestCluster.
type clusterConfig struct {
	appName            string
	instanceName       string
	appLabelKey        string
	instanceLabelKey   string
	versionLabelKey    string
	readyTimeout       time.Duration
	terminatedTimeout  time.Duration
	applyGrace         time.Duration
	readyInterval      time.Duration
	terminatedInterval time.Duration
	nodeSelector       string
}

// defaultClusterConfig returns a clusterConfig populated with all defaults.
// The instance name is derived from the application name with a random
// suffix unless overridden.
func defaultClusterConfig(appName string) clusterConfig {
	return clusterConfig{
		appName:            appName,
		instanceName:       naming.Unique(appName),
		appLabelKey:        DefaultAppLabelKey,
		instanceLabelKey:   DefaultInstanceLabelKey,
		versionLabelKey:    DefaultVersionLabelKey,
		readyTimeout:       DefaultClusterReadyTimeout,
		terminatedTimeout:  DefaultPodsTerminatedTimeout,
		applyGrace:         DefaultApplyGracePeriod,
		readyInterval:      DefaultReadyPollInterval,
		terminatedInterval: DefaultTerminatedPollInterval,
		nodeSelector:       DefaultNodeSelector,
	}
}

// ClusterOption configures a TestCluster during construction via
// NewTestCluster. The same panic-on-invalid convention as ClientOption
// applies.
type ClusterOption func(*clusterConfig)

// WithInstanceName sets the exact instance name instead of deriving one from
// the application name. The caller is responsible for uniqueness across
// concurrent test runs. Panics if name is empty or longer than 63
// characters.
func WithInstanceName(name string) ClusterOption {
	requireNonEmpty("instance name", name)
	if len(name) > naming.MaxNameLength {
		panic(fmt.Sprintf("k8sfixture: instance name must not exceed %d characters, got %d",
			naming.MaxNameLength, len(name)))
	}
	return func(c *clusterConfig) {
		c.instanceName = name
	}
}

// WithInstanceBaseName derives the instance name from the given base instead
// of the application name, still with a random suffix and the 63-character
// cap. Panics if base is empty.
func WithInstanceBaseName(base string) ClusterOption {
	requireNonEmpty("instance base name", base)
	return func(c *clusterConfig) {
		c.instanceName = naming.Unique(base)
	}
}

// WithLabelKeys sets the label keys used to select resources belonging to
// the cluster instance and to check pod versions. Panics if any key is
// empty.
func WithLabelKeys(app, instance, version string) ClusterOption {
	requireNonEmpty("app label key", app)
	requireNonEmpty("instance label key", instance)
	requireNonEmpty("version label key", version)
	return func(c *clusterConfig) {
		c.appLabelKey = app
		c.instanceLabelKey = instance
		c.versionLabelKey = version
	}
}

// WithClusterReadyTimeout bounds WaitReady. Panics if d <= 0.
func WithClusterReadyTimeout(d time.Duration) ClusterOption {
	requirePositive("cluster ready timeout", d)
	return func(c *clusterConfig) {
		c.readyTimeout = d
	}
}

// WithPodsTerminatedTimeout bounds WaitForPodsTerminated. Panics if d <= 0.
func WithPodsTerminatedTimeout(d time.Duration) ClusterOption {
	requirePositive("pods terminated timeout", d)
	return func(c *clusterConfig) {
		c.terminatedTimeout = d
	}
}

// WithApplyGracePeriod sets the fixed delay after Apply and ApplyCommand that
// gives the operator time to begin reconciling. Zero disables the delay; use
// WaitObservedGeneration instead when the operator reports
// status.observedGeneration. Panics if d < 0.
func WithApplyGracePeriod(d time.Duration) ClusterOption {
	requireNonNegative("apply grace period", d)
	return func(c *clusterConfig) {
		c.applyGrace = d
	}
}

// WithReadyPollInterval sets the pod-list polling cadence of WaitReady.
// Panics if d <= 0.
func WithReadyPollInterval(d time.Duration) ClusterOption {
	requirePositive("ready poll interval", d)
	return func(c *clusterConfig) {
		c.readyInterval = d
	}
}

// WithTerminatedPollInterval sets the pod-list polling cadence of
// WaitForPodsTerminated. Panics if d <= 0.
func WithTerminatedPollInterval(d time.Duration) ClusterOption {
	requirePositive("terminated poll interval", d)
	return func(c *clusterConfig) {
		c.terminatedInterval = d
	}
}

// WithNodeSelector sets the label selector ListNodes falls back to when
// called with an empty selector. Panics if selector is empty.
func WithNodeSelector(selector string) ClusterOption {
	requireNonEmpty("node selector", selector)
	return func(c *clusterConfig) {
		c.nodeSelector = selector
	}
}
