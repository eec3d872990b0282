// Package globmatch implements the deliberately minimal glob language used
// by both the Policy Engine's allowedKeys rules and the sandbox's
// utils.matchPath, per SPEC_FULL.md section 4.2: "*", "**", "**/", and a
// literal ".". Both call sites share this package so the two can't drift.
package globmatch

import "strings"

// Match reports whether path satisfies pattern, where:
//   - "*" matches one path segment (no "/")
//   - a trailing "**" matches one or more remaining segments
//   - "**/" matches zero or more whole segments before the remainder
//   - any other rune, including a literal ".", matches itself
func Match(pattern, path string) bool {
	return matchSegments(splitSegments(pattern), splitSegments(path))
}

func splitSegments(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

func matchSegments(pat, path []string) bool {
	if len(pat) == 0 {
		return len(path) == 0
	}

	head := pat[0]

	if head == "**" {
		// "**" alone (last segment) matches everything remaining, provided
		// at least one segment remains.
		if len(pat) == 1 {
			return len(path) > 0
		}
		// Try consuming 0..len(path) segments with "**" and match the rest.
		for i := 0; i <= len(path); i++ {
			if matchSegments(pat[1:], path[i:]) {
				return true
			}
		}
		return false
	}

	if len(path) == 0 {
		return false
	}

	if !matchSegment(head, path[0]) {
		return false
	}
	return matchSegments(pat[1:], path[1:])
}

// matchSegment matches a single path segment against a single pattern
// segment containing "*" wildcards (no slash-crossing).
func matchSegment(pat, seg string) bool {
	if pat == "*" {
		return true
	}
	if !strings.Contains(pat, "*") {
		return pat == seg
	}

	parts := strings.Split(pat, "*")
	if !strings.HasPrefix(seg, parts[0]) {
		return false
	}
	seg = seg[len(parts[0]):]
	for i := 1; i < len(parts)-1; i++ {
		idx := strings.Index(seg, parts[i])
		if idx < 0 {
			return false
		}
		seg = seg[idx+len(parts[i]):]
	}
	last := parts[len(parts)-1]
	return strings.HasSuffix(seg, last) && len(seg) >= len(last)
}

// MatchAny reports whether path matches at least one pattern in patterns.
func MatchAny(patterns []string, path string) bool {
	for _, p := range patterns {
		if Match(p, path) {
			return true
		}
	}
	return false
}
