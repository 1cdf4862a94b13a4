package helper_util

import "strings"

// MatchPath reports whether path matches pattern. A pattern ending in "*"
// matches every path with the preceding prefix; "*" alone matches all.
// Anything else must match exactly.
func MatchPath(pattern, path string) bool {
	if pattern == "*" {
		return true
	}
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(path, strings.TrimSuffix(pattern, "*"))
	}
	return pattern == path
}

// MatchAnyPath reports whether path matches one of patterns.
func MatchAnyPath(patterns []string, path string) bool {
	for _, p := range patterns {
		if MatchPath(p, path) {
			return true
		}
	}
	return false
}

// MatchResourceKey matches "METHOD:path" keys. The method part of pattern
// may be "*"; the path part follows MatchPath.
func MatchResourceKey(pattern, key string) bool {
	pMethod, pPath, ok := strings.Cut(pattern, ":")
	if !ok {
		return false
	}
	kMethod, kPath, ok := strings.Cut(key, ":")
	if !ok {
		return false
	}
	if pMethod != "*" && !strings.EqualFold(pMethod, kMethod) {
		return false
	}
	return MatchPath(pPath, kPath)
}
