package k8sfixture

import (
	"fmt"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	yamlutil "k8s.io/apimachinery/pkg/util/yaml"
)

// Resource constrains the typed Kubernetes objects this package can manage.
// T is the object struct (e.g. corev1.Pod) and *T must implement both the
// runtime and metadata accessors, which holds for every standard API type and
// for generated custom resource types. Type inference resolves P from T, so
// call sites name only the struct: List[corev1.Pod](c, selector).
type Resource[T any] interface {
	*T
	runtime.Object
	metav1.Object
}

// gvkFor resolves the GroupVersionKind of obj, preferring the TypeMeta the
// object already carries (set when decoded from a YAML specification) and
// falling back to the client's scheme.
func (c *Client) gvkFor(obj runtime.Object) (schema.GroupVersionKind, error) {
	if gvk := obj.GetObjectKind().GroupVersionKind(); !gvk.Empty() {
		return gvk, nil
	}
	gvks, _, err := c.scheme.ObjectKinds(obj)
	if err != nil || len(gvks) == 0 {
		return schema.GroupVersionKind{}, fmt.Errorf("%w: %T", ErrUnknownType, obj)
	}
	return gvks[0], nil
}

// toUnstructured converts a typed object to its unstructured form with the
// GroupVersionKind stamped, ready for the dynamic client.
func (c *Client) toUnstructured(obj runtime.Object) (*unstructured.Unstructured, schema.GroupVersionKind, error) {
	gvk, err := c.gvkFor(obj)
	if err != nil {
		return nil, schema.GroupVersionKind{}, err
	}
	content, err := runtime.DefaultUnstructuredConverter.ToUnstructured(obj)
	if err != nil {
		return nil, schema.GroupVersionKind{}, fmt.Errorf("convert %s to unstructured: %w", gvk.Kind, err)
	}
	u := &unstructured.Unstructured{Object: content}
	u.SetGroupVersionKind(gvk)
	return u, gvk, nil
}

// fromUnstructured converts an unstructured object back into its typed form.
func fromUnstructured[T any, P Resource[T]](u *unstructured.Unstructured) (*T, error) {
	out := new(T)
	if err := runtime.DefaultUnstructuredConverter.FromUnstructured(u.Object, out); err != nil {
		return nil, fmt.Errorf("decode %s %s: %w", u.GetKind(), u.GetName(), err)
	}
	return out, nil
}

// FromYAML decodes a YAML specification into the given resource type.
func FromYAML[T any, P Resource[T]](spec string) (*T, error) {
	out := new(T)
	if err := yamlutil.Unmarshal([]byte(spec), out); err != nil {
		return nil, fmt.Errorf("decode specification: %w", err)
	}
	return out, nil
}
