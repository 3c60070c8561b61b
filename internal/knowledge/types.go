package knowledge

// Priority classifies how urgent a rule's remediation is.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Group identifies which section of the knowledge base a rule belongs to.
// Groups are evaluated in the order declared in GroupOrder.
type Group string

const (
	GroupBackendCode  Group = "backend_code"
	GroupFrontendCode Group = "frontend_code"
	GroupDatabase     Group = "database"
	GroupSystem       Group = "system"
)

// GroupOrder is the fixed evaluation order for rule groups.
var GroupOrder = []Group{GroupBackendCode, GroupFrontendCode, GroupDatabase, GroupSystem}

// Solution kinds attached to rules. A rule may declare its own kind;
// DefaultKind supplies one derived from the group when it doesn't.
const (
	KindCode   = "code"
	KindSQL    = "sql"
	KindConfig = "config"
	KindDebug  = "debug"
)

// DefaultKind returns the solution kind implied by a rule group.
func DefaultKind(g Group) string {
	switch g {
	case GroupBackendCode, GroupFrontendCode:
		return KindCode
	case GroupDatabase:
		return KindSQL
	default:
		return KindConfig
	}
}

// Rule is one knowledge base entry mapping keywords to a remediation.
// Rules are immutable after load; concurrent readers need no locking.
type Rule struct {
	// ID is unique within the rule's group.
	ID string `yaml:"-"`

	// Group the rule was declared under.
	Group Group `yaml:"-"`

	// Keywords are case-insensitive substrings. The first keyword found
	// in the ticket text matches the rule; remaining keywords are skipped.
	Keywords []string `yaml:"keywords"`

	// Category is the human-readable problem category (e.g. "Performance").
	Category string `yaml:"category"`

	// Priority of the suggested remediation.
	Priority Priority `yaml:"priority"`

	// Solution describes the remediation steps.
	Solution string `yaml:"solution"`

	// Kind overrides the group-derived solution kind (code, sql, config, debug).
	Kind string `yaml:"kind,omitempty"`

	// Optional illustrative artifacts.
	Code string   `yaml:"code,omitempty"`
	SQL  string   `yaml:"sql,omitempty"`
	SQLs []string `yaml:"sqls,omitempty"`
}

// SolutionKind returns the rule's declared kind, or the group default.
func (r *Rule) SolutionKind() string {
	if r.Kind != "" {
		return r.Kind
	}
	return DefaultKind(r.Group)
}

// Base is the loaded rule set. The zero value is an empty, usable base.
type Base struct {
	groups map[Group][]Rule
}

// Rules returns the rules of a group in stored order. A group that was
// never declared yields nil, which callers treat as an empty list.
func (b *Base) Rules(g Group) []Rule {
	if b == nil || b.groups == nil {
		return nil
	}
	return b.groups[g]
}

// All returns every rule, iterating groups in GroupOrder.
func (b *Base) All() []Rule {
	var rules []Rule
	for _, g := range GroupOrder {
		rules = append(rules, b.Rules(g)...)
	}
	return rules
}

// Len is the total number of rules across all groups.
func (b *Base) Len() int {
	n := 0
	for _, g := range GroupOrder {
		n += len(b.Rules(g))
	}
	return n
}

// Empty reports whether the base holds no rules.
func (b *Base) Empty() bool {
	return b.Len() == 0
}
