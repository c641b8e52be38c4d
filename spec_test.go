package k8sfixture_test

import (
	"errors"
	"strings"
	"testing"

	corev1 "k8s.io/api/core/v1"

	"github.com/giantswarm/k8sfixture"
)

func TestUniqueName(t *testing.T) {
	t.Parallel()

	first := k8sfixture.UniqueName("zookeeper")
	second := k8sfixture.UniqueName("zookeeper")

	if first == second {
		t.Errorf("two unique names collide: %q", first)
	}
	if !strings.HasPrefix(first, "zookeeper-") {
		t.Errorf("unique name %q does not start with base", first)
	}
	if len(first) > 63 {
		t.Errorf("unique name %q exceeds 63 characters", first)
	}
}

func TestUniqueNameTruncatesLongBase(t *testing.T) {
	t.Parallel()

	got := k8sfixture.UniqueName(strings.Repeat("x", 100))
	if len(got) > 63 {
		t.Errorf("unique name length = %d, want <= 63", len(got))
	}
	// The random suffix is a 36-character UUID; it must survive intact.
	if len(got) < 36 {
		t.Errorf("unique name %q shorter than its suffix", got)
	}
}

func TestWithUniqueName(t *testing.T) {
	t.Parallel()

	spec := `
apiVersion: v1
kind: ConfigMap
metadata:
  name: test-config
  labels:
    app.kubernetes.io/name: test
data:
  key: value
`
	got, err := k8sfixture.WithUniqueName(spec)
	if err != nil {
		t.Fatalf("WithUniqueName: %v", err)
	}

	obj, err := k8sfixture.FromYAML[corev1.ConfigMap](got)
	if err != nil {
		t.Fatalf("decode renamed spec: %v", err)
	}

	if obj.Name == "test-config" {
		t.Error("name was not made unique")
	}
	if !strings.HasPrefix(obj.Name, "test-config-") {
		t.Errorf("name %q does not start with original name", obj.Name)
	}
	if len(obj.Name) > 63 {
		t.Errorf("name %q exceeds 63 characters", obj.Name)
	}
	// Everything else must be untouched.
	if obj.Kind != "ConfigMap" {
		t.Errorf("kind = %q, want ConfigMap", obj.Kind)
	}
	if obj.Labels["app.kubernetes.io/name"] != "test" {
		t.Errorf("labels = %v, label lost in rewrite", obj.Labels)
	}
	if obj.Data["key"] != "value" {
		t.Errorf("data = %v, data lost in rewrite", obj.Data)
	}
}

func TestWithUniqueNameProducesDistinctNames(t *testing.T) {
	t.Parallel()

	spec := "apiVersion: v1\nkind: Secret\nmetadata:\n  name: creds\n"

	first, err := k8sfixture.WithUniqueName(spec)
	if err != nil {
		t.Fatalf("WithUniqueName: %v", err)
	}
	second, err := k8sfixture.WithUniqueName(spec)
	if err != nil {
		t.Fatalf("WithUniqueName: %v", err)
	}
	if first == second {
		t.Error("two renamed specs are identical")
	}
}

func TestWithUniqueNameMissingName(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"no metadata":   "apiVersion: v1\nkind: ConfigMap\ndata: {}\n",
		"no name":       "apiVersion: v1\nkind: ConfigMap\nmetadata:\n  labels: {}\n",
		"empty name":    "apiVersion: v1\nkind: ConfigMap\nmetadata:\n  name: \"\"\n",
		"empty document": "",
	}

	for name, spec := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if _, err := k8sfixture.WithUniqueName(spec); !errors.Is(err, k8sfixture.ErrMissingName) {
				t.Errorf("error = %v, want ErrMissingName", err)
			}
		})
	}
}

func TestFromYAMLRejectsMalformed(t *testing.T) {
	t.Parallel()

	if _, err := k8sfixture.FromYAML[corev1.ConfigMap]("{invalid yaml"); err == nil {
		t.Error("expected error for malformed specification")
	}
}
