package deviceflow

import (
	"slices"
	"strings"
)

// DefaultScopeSeparator is the RFC 6749 scope delimiter
const DefaultScopeSeparator = " "

// ScopeSet is an ordered list of scope tokens
type ScopeSet []string

// ParseScope splits raw on the first separator that yields more than one
// token. Separators are tried in order, which lets a server favor spaces and
// still accept comma separated scope from deployed clients. When no
// separator applies the whole string is a single scope.
func ParseScope(raw string, separators []string) ScopeSet {
	if len(separators) == 0 {
		separators = []string{DefaultScopeSeparator}
	}

	for _, sep := range separators {
		if sep == "" {
			continue
		}
		if parts := strings.Split(raw, sep); len(parts) > 1 {
			return ScopeSet(parts)
		}
	}
	return ScopeSet{raw}
}

// String joins the scope with the RFC 6749 delimiter
func (s ScopeSet) String() string {
	return strings.Join(s, DefaultScopeSeparator)
}

// Contains reports whether scope is part of the set
func (s ScopeSet) Contains(scope string) bool {
	return slices.Contains(s, scope)
}
