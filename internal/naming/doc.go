// Package naming generates unique Kubernetes resource names.
//
// Repeated test runs must not collide on resource names or on the label
// selectors derived from them. Unique appends a random suffix to a base name
// while keeping the result within the Kubernetes resource name length limit.
package naming
