// Package routing implements the path-rewrite table and the table-driven
// router built on it.
//
// A table is an ordered list of rules. Each rule has a match pattern, a
// target and an ordered list of rewrites:
//
//	"^/api/github":
//	  target: https://api.github.com
//	  pathRewrite:
//	    "^/api/github": /users
//	  env:
//	    staging:
//	      target: https://github.staging.example.com
//
// Match walks the rules in order. The first rule whose pattern matches the
// path wins; its environment override, if any, replaces the target and the
// rewrites. The first rewrite whose pattern matches replaces the first
// occurrence in the path. When no rewrite of the winning rule matches, or
// no rule matches at all, Match returns a routing miss (404) that HTTP
// adapters treat as "fall through to the next handler".
//
// Tables are loaded from YAML or from JSON with comments (.json, .jsonc)
// and can be swapped at runtime; the Watcher reloads a table file when it
// changes.
package routing
