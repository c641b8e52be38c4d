package k8sfixture

import (
	"errors"
	"testing"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

const temporarySecretSpec = `
apiVersion: v1
kind: Secret
metadata:
  name: test-credentials
stringData:
  username: admin
`

// countDeletes returns how many delete calls the dynamic fake has seen.
func countDeletes(fakes *clientFakes) int {
	n := 0
	for _, action := range fakes.dyn.Actions() {
		if action.GetVerb() == "delete" {
			n++
		}
	}
	return n
}

func TestTemporaryResourceLifecycle(t *testing.T) {
	t.Parallel()

	c, fakes := newFakeClient(t, nil)

	tr, err := NewTemporaryResource[corev1.Secret](c, temporarySecretSpec)
	if err != nil {
		t.Fatalf("NewTemporaryResource: %v", err)
	}
	if tr.Get().Name != "test-credentials" {
		t.Errorf("name = %q, want %q", tr.Get().Name, "test-credentials")
	}

	found, err := Find[corev1.Secret](c, "test-credentials")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if found == nil {
		t.Fatal("resource not created")
	}

	tr.Close()

	found, err = Find[corev1.Secret](c, "test-credentials")
	if err != nil {
		t.Fatalf("Find after Close: %v", err)
	}
	if found != nil {
		t.Error("resource still present after Close")
	}
	if got := countDeletes(fakes); got != 1 {
		t.Errorf("delete calls = %d, want 1", got)
	}
}

func TestTemporaryResourceCloseDeletesOnlyOnce(t *testing.T) {
	t.Parallel()

	c, fakes := newFakeClient(t, nil)

	tr, err := NewTemporaryResource[corev1.Secret](c, temporarySecretSpec)
	if err != nil {
		t.Fatalf("NewTemporaryResource: %v", err)
	}

	tr.Close()
	tr.Close()
	tr.Close()

	if got := countDeletes(fakes); got != 1 {
		t.Errorf("delete calls = %d, want 1", got)
	}
}

func TestTemporaryResourceUpdate(t *testing.T) {
	t.Parallel()

	c, fakes := newFakeClient(t, nil)

	tr, err := NewTemporaryResource[corev1.Secret](c, temporarySecretSpec)
	if err != nil {
		t.Fatalf("NewTemporaryResource: %v", err)
	}

	// A controller annotates the secret behind the test's back.
	annotated := tr.Get().DeepCopy()
	annotated.Annotations = map[string]string{"managed-by": "operator"}
	u := asUnstructured(annotated, "v1", "Secret")
	if err := fakes.dyn.Tracker().Update(
		corev1.SchemeGroupVersion.WithResource("secrets"), u, "default",
	); err != nil {
		t.Fatalf("update tracker: %v", err)
	}

	if err := tr.Update(); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if tr.Get().Annotations["managed-by"] != "operator" {
		t.Error("local copy not refreshed from server")
	}
}

func TestNewTemporaryResourceMissingName(t *testing.T) {
	t.Parallel()

	c, _ := newFakeClient(t, nil)

	_, err := NewTemporaryResource[corev1.Secret](c, "apiVersion: v1\nkind: Secret\n")
	if !errors.Is(err, ErrMissingName) {
		t.Errorf("error = %v, want ErrMissingName", err)
	}
}

func TestNewScopedResourceCleansUpWithTest(t *testing.T) {
	t.Parallel()

	c, _ := newFakeClient(t, nil)

	t.Run("scope", func(t *testing.T) {
		tr := NewScopedResource[corev1.Secret](t, c, temporarySecretSpec)
		if tr.Get().Name != "test-credentials" {
			t.Errorf("name = %q, want %q", tr.Get().Name, "test-credentials")
		}
	})

	// The subtest's cleanup has run by now.
	found, err := Find[corev1.Secret](c, "test-credentials")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if found != nil {
		t.Error("scoped resource survived its test scope")
	}
}

func TestScopedResourceSurvivesUntilScopeEnds(t *testing.T) {
	t.Parallel()

	c, _ := newFakeClient(t, nil, &corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{Name: "unrelated", Namespace: "default"},
	})

	tr := NewScopedResource[corev1.Secret](t, c, temporarySecretSpec)

	found, err := Find[corev1.Secret](c, tr.Get().Name)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if found == nil {
		t.Error("scoped resource missing while its test is still running")
	}
}
