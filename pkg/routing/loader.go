package routing

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// ParseYAML parses a YAML table. Rule order follows the document.
func ParseYAML(data []byte, env string) (*Table, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTable, err)
	}
	return ParseNode(&doc, env)
}

// ParseJSON parses a JSON table. Comments and trailing commas are allowed.
func ParseJSON(data []byte, env string) (*Table, error) {
	// JSON is valid YAML, and the YAML node tree keeps key order.
	return ParseYAML(jsonc.ToJSON(data), env)
}

// LoadFile reads a table file. .json and .jsonc files are parsed as JSON
// with comments, anything else as YAML.
func LoadFile(path string, env string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read routing table: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		return ParseJSON(data, env)
	default:
		return ParseYAML(data, env)
	}
}

// ParseNode builds a table from a YAML mapping node. An empty node yields
// an empty table.
func ParseNode(node *yaml.Node, env string) (*Table, error) {
	rules, err := parseRules(node)
	if err != nil {
		return nil, err
	}
	return NewTable(rules, env)
}

func parseRules(node *yaml.Node) ([]Rule, error) {
	if node == nil || node.Kind == 0 {
		return nil, nil
	}
	if node.Kind == yaml.DocumentNode {
		if len(node.Content) == 0 {
			return nil, nil
		}
		node = node.Content[0]
	}
	if node.Tag == "!!null" {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: line %d: table must be a mapping", ErrInvalidTable, node.Line)
	}

	rules := make([]Rule, 0, len(node.Content)/2)
	seen := make(map[string]bool, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i].Value, node.Content[i+1]
		if seen[key] {
			return nil, &RuleError{Rule: key, Err: errors.New("duplicate rule")}
		}
		seen[key] = true

		rule, err := parseRule(key, value)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func parseRule(key string, node *yaml.Node) (Rule, error) {
	rule := Rule{Pattern: key}
	if node.Kind != yaml.MappingNode {
		return rule, &RuleError{Rule: key, Err: fmt.Errorf("line %d: rule must be a mapping", node.Line)}
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		field, value := node.Content[i].Value, node.Content[i+1]
		switch field {
		case "target":
			rule.Target = value.Value

		case "pathRewrite", "path_rewrite":
			rewrites, err := parseRewrites(value)
			if err != nil {
				return rule, &RuleError{Rule: key, Field: field, Err: err}
			}
			rule.PathRewrite = rewrites

		case "env":
			if value.Kind != yaml.MappingNode {
				return rule, &RuleError{Rule: key, Field: field, Err: errors.New("must be a mapping")}
			}
			rule.Env = make(map[string]Override, len(value.Content)/2)
			for j := 0; j+1 < len(value.Content); j += 2 {
				name := value.Content[j].Value
				o, err := parseOverride(value.Content[j+1])
				if err != nil {
					return rule, &RuleError{Rule: key, Field: "env." + name, Err: err}
				}
				rule.Env[name] = o
			}

		case "changeOrigin", "change_origin":
			// The upstream Host is always derived from the target.

		default:
			return rule, &RuleError{Rule: key, Field: field, Err: errors.New("unknown field")}
		}
	}

	return rule, nil
}

func parseOverride(node *yaml.Node) (Override, error) {
	var o Override
	if node.Kind != yaml.MappingNode {
		return o, fmt.Errorf("line %d: override must be a mapping", node.Line)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		field, value := node.Content[i].Value, node.Content[i+1]
		switch field {
		case "target":
			o.Target = value.Value
		case "pathRewrite", "path_rewrite":
			rewrites, err := parseRewrites(value)
			if err != nil {
				return o, err
			}
			o.PathRewrite = rewrites
		case "changeOrigin", "change_origin":
		default:
			return o, fmt.Errorf("unknown field %q", field)
		}
	}
	return o, nil
}

// parseRewrites returns a non-nil slice for any mapping, including an empty
// one, so that an empty override can disable a rule.
func parseRewrites(node *yaml.Node) ([]Rewrite, error) {
	if node.Tag == "!!null" {
		return []Rewrite{}, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: must be a mapping of pattern to replacement", node.Line)
	}
	out := make([]Rewrite, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		out = append(out, Rewrite{
			Pattern:     node.Content[i].Value,
			Replacement: node.Content[i+1].Value,
		})
	}
	return out, nil
}
