package k8sfixture

import (
	corev1 "k8s.io/api/core/v1"
	apiextensionsv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
)

// PodConditions returns the conditions of the given pod, or nil if the pod
// has no status yet.
func PodConditions(pod *corev1.Pod) []corev1.PodCondition {
	return pod.Status.Conditions
}

// NodeConditions returns the conditions of the given node.
func NodeConditions(node *corev1.Node) []corev1.NodeCondition {
	return node.Status.Conditions
}

// NodeTaints returns the taints of the given node.
func NodeTaints(node *corev1.Node) []corev1.Taint {
	return node.Spec.Taints
}

// CRDConditions returns the conditions of the given custom resource
// definition.
func CRDConditions(crd *apiextensionsv1.CustomResourceDefinition) []apiextensionsv1.CustomResourceDefinitionCondition {
	return crd.Status.Conditions
}

// AllocatablePods returns the number of pods the given node can schedule,
// or 0 when the node does not report the quantity.
func AllocatablePods(node *corev1.Node) int64 {
	quantity, ok := node.Status.Allocatable[corev1.ResourcePods]
	if !ok {
		return 0
	}
	return quantity.Value()
}
