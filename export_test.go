package k8sfixture

import (
	"time"

	"k8s.io/apimachinery/pkg/runtime"
)

// ClientConfigSnapshot holds a copy of clientConfig fields for test
// assertions. Exported only via export_test.go so that the _test package can
// verify option closures actually mutate the config without accessing
// internals.
type ClientConfigSnapshot struct {
	Namespace   string
	Timeouts    Timeouts
	SchemeFuncs int
}

// ApplyClientOptionsForTesting creates a default clientConfig, applies the
// given options, and returns a snapshot of the result.
func ApplyClientOptionsForTesting(opts ...ClientOption) ClientConfigSnapshot {
	cfg := defaultClientConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return ClientConfigSnapshot{
		Namespace:   cfg.namespace,
		Timeouts:    cfg.timeouts,
		SchemeFuncs: len(cfg.schemeFns),
	}
}

// ClusterConfigSnapshot holds a copy of clusterConfig fields for test
// assertions.
type ClusterConfigSnapshot struct {
	AppName            string
	InstanceName       string
	AppLabelKey        string
	InstanceLabelKey   string
	VersionLabelKey    string
	ReadyTimeout       time.Duration
	TerminatedTimeout  time.Duration
	ApplyGrace         time.Duration
	ReadyInterval      time.Duration
	TerminatedInterval time.Duration
	NodeSelector       string
}

// ApplyClusterOptionsForTesting creates a default clusterConfig for the
// given application name, applies the given options, and returns a snapshot
// of the result.
func ApplyClusterOptionsForTesting(appName string, opts ...ClusterOption) ClusterConfigSnapshot {
	cfg := defaultClusterConfig(appName)
	for _, opt := range opts {
		opt(&cfg)
	}

	return ClusterConfigSnapshot{
		AppName:            cfg.appName,
		InstanceName:       cfg.instanceName,
		AppLabelKey:        cfg.appLabelKey,
		InstanceLabelKey:   cfg.instanceLabelKey,
		VersionLabelKey:    cfg.versionLabelKey,
		ReadyTimeout:       cfg.readyTimeout,
		TerminatedTimeout:  cfg.terminatedTimeout,
		ApplyGrace:         cfg.applyGrace,
		ReadyInterval:      cfg.readyInterval,
		TerminatedInterval: cfg.terminatedInterval,
		NodeSelector:       cfg.nodeSelector,
	}
}

// SchemeForTesting exposes the client's scheme so tests can assert custom
// type registration.
func (c *Client) SchemeForTesting() *runtime.Scheme { return c.scheme }
