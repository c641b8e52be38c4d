package naming

import (
	"strings"

	"github.com/google/uuid"
)

// MaxNameLength is the Kubernetes resource name length limit. Names are DNS
// subdomain labels in most APIs, capped at 63 characters.
const MaxNameLength = 63

// separator joins the base name and the random suffix.
const separator = "-"

// Unique returns base with a random UUID suffix appended, truncating base so
// that the result never exceeds MaxNameLength. The suffix is never truncated;
// only the base gives way.
func Unique(base string) string {
	return WithSuffix(base, uuid.NewString())
}

// WithSuffix returns base+"-"+suffix, truncating base so that the result
// never exceeds MaxNameLength. Trailing separator characters left over from
// truncation are stripped from the base to keep the name well-formed.
func WithSuffix(base, suffix string) string {
	budget := MaxNameLength - len(suffix) - len(separator)
	if budget < 0 {
		budget = 0
	}
	if len(base) > budget {
		base = base[:budget]
	}
	base = strings.TrimRight(base, separator)
	if base == "" {
		return suffix
	}
	return base + separator + suffix
}
