// Package knowledge loads the static rule set used for ticket triage.
//
// The backing file is a YAML document with four rule groups: two code
// pattern sub-groups plus database and system patterns. The file is read
// once at startup. A missing or malformed file degrades to an empty rule
// set so that triage keeps working on AI analysis alone.
package knowledge

import (
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// ErrMalformed indicates the knowledge base document could not be parsed.
var ErrMalformed = errors.New("malformed knowledge base")

// Load reads the knowledge base from path. It never fails: load problems
// are logged and an empty base is returned.
func Load(path string, logger *zap.Logger) *Base {
	if logger == nil {
		logger = zap.NewNop()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warn("knowledge base file not found, continuing without patterns",
				zap.String("path", path))
		} else {
			logger.Error("failed to read knowledge base", zap.String("path", path), zap.Error(err))
		}
		return &Base{}
	}

	base, err := Parse(data)
	if err != nil {
		logger.Error("failed to parse knowledge base", zap.String("path", path), zap.Error(err))
		return &Base{}
	}

	logger.Info("knowledge base loaded",
		zap.String("path", path),
		zap.Int("rules", base.Len()))
	return base
}

// Parse decodes and validates a knowledge base document.
//
// Rule order within a group follows document order, which plain map
// decoding would lose, so the document is walked as yaml.Node pairs.
func Parse(data []byte) (*Base, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(doc.Content) == 0 {
		return &Base{}, nil
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: root must be a mapping", ErrMalformed)
	}

	base := &Base{groups: make(map[Group][]Rule)}

	for i := 0; i+1 < len(root.Content); i += 2 {
		section := root.Content[i].Value
		node := root.Content[i+1]

		switch section {
		case "code_patterns":
			if node.Kind != yaml.MappingNode {
				return nil, fmt.Errorf("%w: code_patterns must be a mapping", ErrMalformed)
			}
			for j := 0; j+1 < len(node.Content); j += 2 {
				var group Group
				switch sub := node.Content[j].Value; sub {
				case "backend":
					group = GroupBackendCode
				case "frontend":
					group = GroupFrontendCode
				default:
					return nil, fmt.Errorf("%w: unknown code pattern sub-group %q", ErrMalformed, sub)
				}
				rules, err := parseGroup(node.Content[j+1], group)
				if err != nil {
					return nil, err
				}
				base.groups[group] = rules
			}
		case "database_patterns":
			rules, err := parseGroup(node, GroupDatabase)
			if err != nil {
				return nil, err
			}
			base.groups[GroupDatabase] = rules
		case "system_patterns":
			rules, err := parseGroup(node, GroupSystem)
			if err != nil {
				return nil, err
			}
			base.groups[GroupSystem] = rules
		default:
			return nil, fmt.Errorf("%w: unknown section %q", ErrMalformed, section)
		}
	}

	return base, nil
}

// parseGroup decodes one group mapping of rule id to rule body,
// preserving document order.
func parseGroup(node *yaml.Node, group Group) ([]Rule, error) {
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: group %s must be a mapping", ErrMalformed, group)
	}

	rules := make([]Rule, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		id := node.Content[i].Value

		var rule Rule
		if err := node.Content[i+1].Decode(&rule); err != nil {
			return nil, fmt.Errorf("%w: rule %s/%s: %v", ErrMalformed, group, id, err)
		}
		rule.ID = id
		rule.Group = group

		if err := validateRule(&rule); err != nil {
			return nil, fmt.Errorf("%w: rule %s/%s: %v", ErrMalformed, group, id, err)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func validateRule(r *Rule) error {
	if len(r.Keywords) == 0 {
		return errors.New("keywords are required")
	}
	for _, kw := range r.Keywords {
		if kw == "" {
			return errors.New("keywords must be non-empty")
		}
	}
	if r.Category == "" {
		return errors.New("category is required")
	}
	if !r.Priority.Valid() {
		return fmt.Errorf("invalid priority %q", r.Priority)
	}
	if r.Solution == "" {
		return errors.New("solution is required")
	}
	return nil
}
