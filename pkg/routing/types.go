package routing

import (
	"regexp"
)

// Rewrite is one pattern/replacement pair of a rule. Replacement may refer
// to capture groups as $1 or ${name}.
type Rewrite struct {
	Pattern     string
	Replacement string

	re *regexp.Regexp
}

// Override is a per-environment partial replacement of a rule.
type Override struct {
	// Target replaces the rule's target when non-empty.
	Target string

	// PathRewrite replaces the rule's rewrites when non-nil. An empty,
	// non-nil list disables the rule in that environment.
	PathRewrite []Rewrite
}

// Rule is one entry of a table.
type Rule struct {
	// Pattern is matched against the unrewritten path.
	Pattern string

	// Target is the upstream of matching requests.
	Target string

	// PathRewrite is evaluated in order; the first match is applied.
	PathRewrite []Rewrite

	// Env holds overrides keyed by environment name.
	Env map[string]Override

	re *regexp.Regexp
}

// Match is the outcome of a successful lookup.
type Match struct {
	// Rule is the pattern of the winning rule.
	Rule string

	// Target is the upstream for the request.
	Target string

	// Path is the rewritten path.
	Path string
}
