package k8sfixture

import (
	"context"
	"encoding/json"
	"fmt"

	apiextensionsv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/utils/ptr"
)

// crdNamesAccepted reports whether the definition's names have been accepted
// by the API server.
func crdNamesAccepted(crd *apiextensionsv1.CustomResourceDefinition) bool {
	for _, cond := range CRDConditions(crd) {
		if cond.Type == apiextensionsv1.NamesAccepted && cond.Status == apiextensionsv1.ConditionTrue {
			return true
		}
	}
	return false
}

// ApplyCRD applies the given custom resource definition server-side and
// blocks until it is accepted, within the ApplyCRD timeout. A definition
// that is already gettable after the apply short-circuits the wait;
// otherwise the NamesAccepted condition is awaited on a watch established
// before the apply.
func (c *Client) ApplyCRD(crd *apiextensionsv1.CustomResourceDefinition) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	name := crd.Name
	if name == "" {
		return fmt.Errorf("apply custom resource definition: %w", ErrMissingName)
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeouts.ApplyCRD)
	defer cancel()

	crds := c.ext.ApiextensionsV1().CustomResourceDefinitions()

	w, err := crds.Watch(ctx, nameSelector(name))
	if err != nil {
		return fmt.Errorf("watch custom resource definition %s: %w", name, err)
	}
	defer w.Stop()

	// Server-side apply requires TypeMeta; stamp it on a copy so the
	// caller's object stays untouched.
	toApply := crd.DeepCopy()
	toApply.TypeMeta = metav1.TypeMeta{
		APIVersion: apiextensionsv1.SchemeGroupVersion.String(),
		Kind:       "CustomResourceDefinition",
	}
	payload, err := json.Marshal(toApply)
	if err != nil {
		return fmt.Errorf("encode custom resource definition %s: %w", name, err)
	}
	if _, err := crds.Patch(
		ctx,
		name,
		types.ApplyPatchType,
		payload,
		metav1.PatchOptions{FieldManager: DefaultFieldManager, Force: ptr.To(true)},
	); err != nil {
		return fmt.Errorf("apply custom resource definition %s: %w", name, err)
	}

	if _, err := crds.Get(ctx, name, metav1.GetOptions{}); err == nil {
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return newWaitTimeout(
				"apply custom resource definition",
				"CustomResourceDefinition/"+name,
				"names not accepted",
				c.timeouts.ApplyCRD,
			)
		case ev, ok := <-w.ResultChan():
			if !ok {
				return newWaitTimeout(
					"apply custom resource definition",
					"CustomResourceDefinition/"+name,
					"names not accepted",
					c.timeouts.ApplyCRD,
				)
			}
			if ev.Type != watch.Added && ev.Type != watch.Modified {
				continue
			}
			current, isCRD := ev.Object.(*apiextensionsv1.CustomResourceDefinition)
			if !isCRD || current.Name != name {
				continue
			}
			if crdNamesAccepted(current) {
				return nil
			}
		}
	}
}
