package k8sfixture

import (
	"fmt"
	"sync"
	"testing"
)

// TemporaryResource is a single Kubernetes resource whose lifetime is bound
// to a test: created on construction, deleted exactly once on Close. It is
// the building block for secrets, config maps, and other supporting objects
// a test needs around its cluster under test.
type TemporaryResource[T any, P Resource[T]] struct {
	client   *Client
	resource *T
	once     sync.Once
}

// NewTemporaryResource decodes the YAML specification, creates the resource,
// and returns a handle that deletes it on Close. The specification should
// carry a unique name (see WithUniqueName) when tests may run concurrently.
func NewTemporaryResource[T any, P Resource[T]](client *Client, spec string) (*TemporaryResource[T, P], error) {
	obj, err := FromYAML[T, P](spec)
	if err != nil {
		return nil, err
	}
	created, err := CreateObject[T, P](client, obj)
	if err != nil {
		return nil, err
	}
	return &TemporaryResource[T, P]{client: client, resource: created}, nil
}

// Get returns the resource as last read from the server.
func (tr *TemporaryResource[T, P]) Get() *T {
	return tr.resource
}

// Update re-reads the resource from the server and replaces the local copy.
func (tr *TemporaryResource[T, P]) Update() error {
	current, err := GetStatus[T, P](tr.client, tr.resource)
	if err != nil {
		return fmt.Errorf("update temporary resource %s: %w", P(tr.resource).GetName(), err)
	}
	tr.resource = current
	return nil
}

// Close deletes the resource and waits for the deletion to be observed,
// logging any failure instead of returning it. Only the first call deletes;
// subsequent calls are no-ops, so Close is safe to both defer and register
// with t.Cleanup.
func (tr *TemporaryResource[T, P]) Close() {
	tr.once.Do(func() {
		if err := Delete[T, P](tr.client, tr.resource); err != nil {
			logger().Error("temporary resource cleanup failed",
				"name", P(tr.resource).GetName(), "error", err)
		}
	})
}

// NewScopedResource creates a temporary resource whose cleanup is registered
// with the test: it fails the test immediately when creation fails and
// deletes the resource when the test (or subtest) finishes.
func NewScopedResource[T any, P Resource[T]](tb testing.TB, client *Client, spec string) *TemporaryResource[T, P] {
	tb.Helper()
	tr, err := NewTemporaryResource[T, P](client, spec)
	if err != nil {
		tb.Fatalf("create scoped resource: %v", err)
	}
	tb.Cleanup(tr.Close)
	return tr
}
