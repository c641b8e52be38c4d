package k8sfixture

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/giantswarm/k8sfixture/internal/naming"
)

// UniqueName returns base with a random suffix appended, truncated so the
// result stays within the 63-character Kubernetes resource name limit. The
// suffix is never truncated; only the base gives way.
func UniqueName(base string) string {
	return naming.Unique(base)
}

// WithUniqueName returns the given YAML specification with a random suffix
// appended to metadata.name, so that repeated test runs never collide on the
// resource name. The rest of the document is left untouched.
//
// Returns ErrMissingName if the specification has no metadata.name.
func WithUniqueName(spec string) (string, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(spec), &doc); err != nil {
		return "", fmt.Errorf("parse specification: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return "", fmt.Errorf("parse specification: %w", ErrMissingName)
	}

	metadata := mappingValue(doc.Content[0], "metadata")
	name := mappingValue(metadata, "name")
	if name == nil || name.Value == "" {
		return "", ErrMissingName
	}
	name.Value = naming.Unique(name.Value)
	name.Tag = "!!str"
	name.Style = 0

	out, err := yaml.Marshal(doc.Content[0])
	if err != nil {
		return "", fmt.Errorf("serialize specification: %w", err)
	}
	return string(out), nil
}

// mappingValue returns the value node for key within a YAML mapping node,
// or nil when node is not a mapping or the key is absent.
func mappingValue(node *yaml.Node, key string) *yaml.Node {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}
