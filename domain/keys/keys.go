package keys

import (
	"strings"
)

// CustomKey joins the key components with the specified delimiter
func CustomKey(delimiter string, components ...string) string {
	return strings.Join(components, delimiter)
}

// CacheKey joins cache key components with the canonical delimiter
func CacheKey(components ...string) string {
	return CustomKey(":", components...)
}
