// Package k8sfixture provides integration-test support for Kubernetes operators.
//
// The package wraps client-go behind a synchronous, timeout-bounded facade so
// that test code can create, observe, and tear down custom resources without
// managing watches, informers, or goroutines itself. Every blocking operation
// establishes its watch before issuing the mutating call, so a state change
// occurring between the call and the first observation is never missed.
//
// # Basic Usage
//
//	import "github.com/giantswarm/k8sfixture"
//
//	cfg, err := clientcmd.BuildConfigFromFlags("", kubeconfig)
//	if err != nil {
//	    t.Fatal(err)
//	}
//
//	client, err := k8sfixture.NewClient(cfg)
//	if err != nil {
//	    t.Fatal(err)
//	}
//
//	pod := k8sfixture.NewScopedResource[corev1.Pod](t, client, `
//	    apiVersion: v1
//	    kind: Pod
//	    metadata:
//	      name: probe
//	    ...
//	`)
//	// The pod is deleted automatically when the test ends, pass or fail.
//
//	if _, err := client.VerifyPodCondition(pod.Get(), "Ready"); err != nil {
//	    t.Fatal(err)
//	}
//
// # Test Clusters
//
// TestCluster sequences the full lifecycle of an operator-managed cluster
// resource: apply the custom resource, wait for the expected pods to become
// ready, run the test body, then delete the resource and wait for the pods to
// terminate:
//
//	tc := k8sfixture.NewTestCluster[zkv1.ZookeeperCluster](client, "zookeeper")
//	defer tc.Close()
//
//	if err := tc.CreateOrUpdate(spec, 3); err != nil {
//	    t.Fatal(err)
//	}
//
// Each TestCluster derives a unique instance name (capped at 63 characters)
// and selects its dependent pods and config maps through the standard
// app.kubernetes.io/name and app.kubernetes.io/instance labels, so parallel
// tests do not collide on label-selected resource sets.
//
// # Concurrency Model
//
// A Client is logically single-threaded: every operation blocks the calling
// goroutine until completion or timeout, and operations issued through the
// same Client execute one at a time in issuance order. Timeouts are the sole
// cancellation mechanism; there is no explicit cancel primitive.
package k8sfixture
