package tools

import (
	"strings"
)

// matchPattern reports whether a tool name matches a pattern. Patterns
// are literal names, optionally ending in "*" for a prefix match; a
// bare "*" matches everything.
func matchPattern(pattern, name string) bool {
	if pattern == "*" {
		return true
	}
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(name, strings.TrimSuffix(pattern, "*"))
	}
	return pattern == name
}

func matchesAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if matchPattern(p, name) {
			return true
		}
	}
	return false
}

// Allowed evaluates an agent's allow/deny tool patterns against a
// capability name. Deny always wins over allow. An empty allow list
// grants everything not denied.
func Allowed(allow, deny []string, name string) bool {
	if matchesAny(deny, name) {
		return false
	}
	if len(allow) == 0 {
		return true
	}
	return matchesAny(allow, name)
}

// MissingPermissions returns the required permission tags that are not
// grantable under the agent's patterns, in declaration order.
func MissingPermissions(required, allow, deny []string) []string {
	var missing []string
	for _, tag := range required {
		if !Allowed(allow, deny, tag) {
			missing = append(missing, tag)
		}
	}
	return missing
}
