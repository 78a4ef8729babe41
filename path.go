package arx

import "strings"

// SplitPath splits a slash-separated path into its components.
//
// Empty components are dropped, so leading, trailing and repeated slashes
// have no effect: "/etc//nginx/" → ["etc", "nginx"]. The root ("" or "/")
// has no components.
//
// Components are compared as raw bytes. "." and ".." have no special
// meaning; they are looked up like any other name.
func SplitPath(p string) []string {
	parts := strings.Split(p, "/")
	result := parts[:0] // reuse backing array
	for _, part := range parts {
		if part != "" {
			result = append(result, part)
		}
	}
	return result
}

// NormalizePath converts a path to the form stored in the archive: no
// leading, trailing or repeated slashes. The root normalizes to "".
func NormalizePath(p string) string {
	return strings.Join(SplitPath(p), "/")
}
