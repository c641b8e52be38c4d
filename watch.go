package k8sfixture

import (
	"context"
	"errors"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/watch"
)

// nameSelector returns list options that restrict a watch to a single
// resource name.
func nameSelector(name string) metav1.ListOptions {
	return metav1.ListOptions{FieldSelector: "metadata.name=" + name}
}

// awaitEvent consumes events from w until match returns a non-nil object or
// the context expires. Events for other resources sharing the watch are
// skipped. Returns ErrWatchClosed if the server ends the stream first.
func awaitEvent(
	ctx context.Context,
	w watch.Interface,
	match func(ev watch.Event) *unstructured.Unstructured,
) (*unstructured.Unstructured, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case ev, ok := <-w.ResultChan():
			if !ok {
				return nil, ErrWatchClosed
			}
			if obj := match(ev); obj != nil {
				return obj, nil
			}
		}
	}
}

// eventObject returns the event's object as unstructured if it carries the
// given name, else nil. Watches are opened with a metadata.name field
// selector, but fakes and relisting watches may deliver unrelated events.
func eventObject(ev watch.Event, name string) *unstructured.Unstructured {
	u, ok := ev.Object.(*unstructured.Unstructured)
	if !ok {
		return nil
	}
	if u.GetName() != name {
		return nil
	}
	return u
}

// Create decodes the YAML specification, creates the resource, and blocks
// until the creation is observed on a watch established before the create
// call, within the Create timeout.
func Create[T any, P Resource[T]](c *Client, spec string) (*T, error) {
	obj, err := FromYAML[T, P](spec)
	if err != nil {
		return nil, err
	}
	return CreateObject[T, P](c, obj)
}

// CreateObject creates the resource and blocks until the creation is
// observed via watch, within the Create timeout.
func CreateObject[T any, P Resource[T]](c *Client, obj P) (*T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	u, gvk, err := c.toUnstructured(obj)
	if err != nil {
		return nil, err
	}
	name := u.GetName()
	if name == "" {
		return nil, fmt.Errorf("create %s: %w", gvk.Kind, ErrMissingName)
	}
	ri, err := c.resourceFor(gvk, scopeDefault)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeouts.Create)
	defer cancel()

	// Watch before create, so the Added event cannot slip past.
	w, err := ri.Watch(ctx, nameSelector(name))
	if err != nil {
		return nil, fmt.Errorf("watch %s %s: %w", gvk.Kind, name, err)
	}
	defer w.Stop()

	if _, err := ri.Create(ctx, u, metav1.CreateOptions{}); err != nil {
		return nil, fmt.Errorf("create %s %s: %w", gvk.Kind, name, err)
	}

	created, err := awaitEvent(ctx, w, func(ev watch.Event) *unstructured.Unstructured {
		if ev.Type != watch.Added {
			return nil
		}
		return eventObject(ev, name)
	})
	if err != nil {
		if errors.Is(err, ErrWatchClosed) {
			return nil, fmt.Errorf("create %s %s: %w", gvk.Kind, name, err)
		}
		return nil, newWaitTimeout("create", gvk.Kind+"/"+name, "creation not observed", c.timeouts.Create)
	}
	return fromUnstructured[T, P](created)
}

// Delete deletes the given resource and blocks until the deletion is
// observed, within the Delete timeout. A resource that is already gone, or
// that the server reports as immediately deleted, returns nil without
// waiting.
func Delete[T any, P Resource[T]](c *Client, obj P) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	u, gvk, err := c.toUnstructured(obj)
	if err != nil {
		return err
	}
	name := u.GetName()
	if name == "" {
		return fmt.Errorf("delete %s: %w", gvk.Kind, ErrMissingName)
	}
	ri, err := c.resourceFor(gvk, scopeDefault)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeouts.Delete)
	defer cancel()

	// Watch before delete, so the Deleted event cannot slip past.
	w, err := ri.Watch(ctx, nameSelector(name))
	if err != nil {
		return fmt.Errorf("watch %s %s: %w", gvk.Kind, name, err)
	}
	defer w.Stop()

	if err := ri.Delete(ctx, name, metav1.DeleteOptions{}); err != nil {
		if apierrors.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("delete %s %s: %w", gvk.Kind, name, err)
	}

	// The server may have deleted synchronously (no finalizers, no grace
	// period); a Get settles it without waiting for the watch.
	if _, err := ri.Get(ctx, name, metav1.GetOptions{}); apierrors.IsNotFound(err) {
		return nil
	}

	_, err = awaitEvent(ctx, w, func(ev watch.Event) *unstructured.Unstructured {
		if ev.Type != watch.Deleted {
			return nil
		}
		return eventObject(ev, name)
	})
	if err != nil {
		if errors.Is(err, ErrWatchClosed) {
			return fmt.Errorf("delete %s %s: %w", gvk.Kind, name, err)
		}
		return newWaitTimeout("delete", gvk.Kind+"/"+name, "deletion not observed", c.timeouts.Delete)
	}
	return nil
}

// GetAnnotation blocks until the named annotation appears on the resource
// and returns its value, within the GetAnnotation timeout. The value already
// present on the given object is returned without a round-trip.
func GetAnnotation[T any, P Resource[T]](c *Client, obj P, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if value, ok := obj.GetAnnotations()[key]; ok {
		return value, nil
	}

	gvk, err := c.gvkFor(obj)
	if err != nil {
		return "", err
	}
	name := obj.GetName()
	ri, err := c.resourceFor(gvk, scopeDefault)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeouts.GetAnnotation)
	defer cancel()

	w, err := ri.Watch(ctx, nameSelector(name))
	if err != nil {
		return "", fmt.Errorf("watch %s %s: %w", gvk.Kind, name, err)
	}
	defer w.Stop()

	annotated, err := awaitEvent(ctx, w, func(ev watch.Event) *unstructured.Unstructured {
		if ev.Type != watch.Added && ev.Type != watch.Modified {
			return nil
		}
		u := eventObject(ev, name)
		if u == nil {
			return nil
		}
		if _, ok := u.GetAnnotations()[key]; !ok {
			return nil
		}
		return u
	})
	if err != nil {
		if errors.Is(err, ErrWatchClosed) {
			return "", fmt.Errorf("get annotation %s from %s %s: %w", key, gvk.Kind, name, err)
		}
		return "", newWaitTimeout(
			"get annotation "+key+" from",
			gvk.Kind+"/"+name,
			"annotation absent",
			c.timeouts.GetAnnotation,
		)
	}
	return annotated.GetAnnotations()[key], nil
}

// VerifyStatus blocks until the resource's status satisfies the predicate,
// within the VerifyStatus timeout. The already-current status is checked
// first via a fresh read, then modifications are observed on a watch that
// was established before that read.
func VerifyStatus[T any, P Resource[T]](c *Client, obj P, predicate func(*T) bool) (*T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	gvk, err := c.gvkFor(obj)
	if err != nil {
		return nil, err
	}
	name := obj.GetName()
	ri, err := c.resourceFor(gvk, scopeDefault)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeouts.VerifyStatus)
	defer cancel()

	w, err := ri.Watch(ctx, nameSelector(name))
	if err != nil {
		return nil, fmt.Errorf("watch %s %s: %w", gvk.Kind, name, err)
	}
	defer w.Stop()

	matches := func(u *unstructured.Unstructured) (*T, bool) {
		typed, convErr := fromUnstructured[T, P](u)
		if convErr != nil {
			return nil, false
		}
		return typed, predicate(typed)
	}

	current, err := ri.Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return nil, fmt.Errorf("get %s %s: %w", gvk.Kind, name, err)
	}
	if typed, ok := matches(current); ok {
		return typed, nil
	}

	var result *T
	_, err = awaitEvent(ctx, w, func(ev watch.Event) *unstructured.Unstructured {
		if ev.Type != watch.Modified {
			return nil
		}
		u := eventObject(ev, name)
		if u == nil {
			return nil
		}
		typed, ok := matches(u)
		if !ok {
			return nil
		}
		result = typed
		return u
	})
	if err != nil {
		if errors.Is(err, ErrWatchClosed) {
			return nil, fmt.Errorf("verify status of %s %s: %w", gvk.Kind, name, err)
		}
		return nil, newWaitTimeout(
			"verify status of",
			gvk.Kind+"/"+name,
			"predicate not satisfied",
			c.timeouts.VerifyStatus,
		)
	}
	return result, nil
}

// VerifyPodCondition blocks until the given pod condition reports status
// True, within the VerifyStatus timeout.
func (c *Client) VerifyPodCondition(pod *corev1.Pod, conditionType string) (*corev1.Pod, error) {
	return VerifyStatus[corev1.Pod](c, pod, func(p *corev1.Pod) bool {
		for _, cond := range PodConditions(p) {
			if string(cond.Type) == conditionType && cond.Status == corev1.ConditionTrue {
				return true
			}
		}
		return false
	})
}
