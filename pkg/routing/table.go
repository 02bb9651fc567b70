package routing

import (
	"fmt"
	"regexp"
	"strings"

	"relayhq/relay/pkg/gateway"
)

// Table is an immutable, compiled path-rewrite table with the environment
// overrides of one environment applied.
type Table struct {
	rules []Rule
	env   string
}

// NewTable compiles rules in order and applies the overrides of env.
func NewTable(rules []Rule, env string) (*Table, error) {
	t := &Table{
		rules: make([]Rule, 0, len(rules)),
		env:   env,
	}

	for _, r := range rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, &RuleError{Rule: r.Pattern, Err: err}
		}

		effective := Rule{
			Pattern:     r.Pattern,
			Target:      r.Target,
			PathRewrite: r.PathRewrite,
			Env:         r.Env,
			re:          re,
		}
		if o, ok := r.Env[env]; ok && env != "" {
			if o.Target != "" {
				effective.Target = o.Target
			}
			if o.PathRewrite != nil {
				effective.PathRewrite = o.PathRewrite
			}
		}

		compiled, err := compileRewrites(r.Pattern, effective.PathRewrite)
		if err != nil {
			return nil, err
		}
		effective.PathRewrite = compiled

		if effective.Target == "" {
			return nil, &RuleError{Rule: r.Pattern, Field: "target", Err: fmt.Errorf("is required")}
		}
		t.rules = append(t.rules, effective)
	}

	return t, nil
}

func compileRewrites(rule string, rewrites []Rewrite) ([]Rewrite, error) {
	out := make([]Rewrite, len(rewrites))
	for i, rw := range rewrites {
		re, err := regexp.Compile(rw.Pattern)
		if err != nil {
			return nil, &RuleError{Rule: rule, Field: "pathRewrite", Err: err}
		}
		out[i] = Rewrite{Pattern: rw.Pattern, Replacement: rw.Replacement, re: re}
	}
	return out, nil
}

// Match finds the target and rewritten path for path. Rules and rewrites
// see only the part before "?"; the raw query is re-attached to the
// rewritten path unchanged. A miss is returned as a *gateway.Error with
// status 404 wrapping gateway.ErrNoRouteMatched.
func (t *Table) Match(path string) (Match, error) {
	if t == nil {
		return Match{}, gateway.NotFound("", path)
	}

	p, query, hasQuery := strings.Cut(path, "?")
	for i := range t.rules {
		r := &t.rules[i]
		if !r.re.MatchString(p) {
			continue
		}

		for _, rw := range r.PathRewrite {
			if rewritten, ok := replaceFirst(rw.re, p, rw.Replacement); ok {
				if hasQuery {
					rewritten += "?" + query
				}
				return Match{Rule: r.Pattern, Target: r.Target, Path: rewritten}, nil
			}
		}
		return Match{}, gateway.NotFound("", path)
	}

	return Match{}, gateway.NotFound("", path)
}

// Len returns the number of rules.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rules)
}

// Env returns the environment whose overrides were applied.
func (t *Table) Env() string {
	if t == nil {
		return ""
	}
	return t.env
}

// Rules returns the effective rules in evaluation order.
func (t *Table) Rules() []Rule {
	if t == nil {
		return nil
	}
	out := make([]Rule, len(t.rules))
	copy(out, t.rules)
	return out
}

// replaceFirst replaces the leftmost match of re in s, expanding capture
// group references in repl.
func replaceFirst(re *regexp.Regexp, s, repl string) (string, bool) {
	loc := re.FindStringSubmatchIndex(s)
	if loc == nil {
		return "", false
	}
	expanded := re.ExpandString(nil, repl, s, loc)
	return s[:loc[0]] + string(expanded) + s[loc[1]:], true
}
