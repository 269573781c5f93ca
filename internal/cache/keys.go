package cache

import (
	"sort"
	"strings"
)

// Key derives a deterministic cache key from a namespace and a parameter set.
// Parameter names are sorted lexicographically before rendering, so two
// set-equal parameter maps always yield the same key regardless of insertion
// order. Absence of a parameter is distinct from an empty-string value.
func Key(namespace string, params map[string]string) string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	pairs := make([]string, len(names))
	for i, name := range names {
		pairs[i] = name + "=" + params[name]
	}

	return namespace + ":" + strings.Join(pairs, "&")
}
