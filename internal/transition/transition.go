package transition

import "fmt"

// Rule is an explicit allow or deny override for moving an entity from one
// stage to another. Stages without a rule are allowed.
type Rule struct {
	FromStage string `json:"from_stage" yaml:"from_stage"`
	ToStage   string `json:"to_stage" yaml:"to_stage"`
	Enabled   bool   `json:"enabled" yaml:"enabled"`
}

// IsAllowed reports whether an entity may move from one stage to another.
// Staying in the same stage is always allowed. Otherwise the first rule whose
// stages match exactly decides; with no matching rule the move is allowed.
func IsAllowed(from, to string, rules []Rule) bool {
	if from == to {
		return true
	}
	for _, r := range rules {
		if r.FromStage == from && r.ToStage == to {
			return r.Enabled
		}
	}
	return true
}

type pair struct{ from, to string }

// RuleSet is a compiled rule table with constant-time lookups.
// The zero value allows every transition.
type RuleSet struct {
	rules map[pair]bool
}

// NewRuleSet compiles rules. When a pair appears more than once the first
// occurrence wins, matching IsAllowed.
func NewRuleSet(rules []Rule) RuleSet {
	m := make(map[pair]bool, len(rules))
	for _, r := range rules {
		k := pair{r.FromStage, r.ToStage}
		if _, seen := m[k]; seen {
			continue
		}
		m[k] = r.Enabled
	}
	return RuleSet{rules: m}
}

// Allowed has the same semantics as IsAllowed.
func (s RuleSet) Allowed(from, to string) bool {
	if from == to {
		return true
	}
	enabled, ok := s.rules[pair{from, to}]
	if !ok {
		return true
	}
	return enabled
}

// Len returns the number of distinct stage pairs with a rule.
func (s RuleSet) Len() int { return len(s.rules) }

// ValidateRules reports duplicate stage pairs and empty stage names.
func ValidateRules(rules []Rule) []string {
	var errs []string
	seen := make(map[pair]int, len(rules))
	for i, r := range rules {
		if r.FromStage == "" || r.ToStage == "" {
			errs = append(errs, fmt.Sprintf("rule %d: from_stage and to_stage are required", i))
			continue
		}
		k := pair{r.FromStage, r.ToStage}
		if first, ok := seen[k]; ok {
			errs = append(errs, fmt.Sprintf("rule %d: duplicate of rule %d (%s -> %s)", i, first, r.FromStage, r.ToStage))
			continue
		}
		seen[k] = i
	}
	return errs
}

// Matrix expands a rule set over the given stages into a from -> to -> allowed
// grid.
func Matrix(stages []string, set RuleSet) map[string]map[string]bool {
	grid := make(map[string]map[string]bool, len(stages))
	for _, from := range stages {
		row := make(map[string]bool, len(stages))
		for _, to := range stages {
			row[to] = set.Allowed(from, to)
		}
		grid[from] = row
	}
	return grid
}
