package pipeline

import "sort"

// RuleTable evaluates rules first-match-wins in precedence order.
type RuleTable struct {
	rules []Rule
}

// NewRuleTable orders rules by descending priority, keeping declaration
// order between rules of equal priority.
func NewRuleTable(rules []Rule) *RuleTable {
	ordered := make([]Rule, len(rules))
	copy(ordered, rules)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority > ordered[j].Priority
	})
	return &RuleTable{rules: ordered}
}

// Match returns the single rule that applies to p.
func (t *RuleTable) Match(p string) (*Rule, bool) {
	for i := range t.rules {
		if t.rules[i].Matches(p) {
			return &t.rules[i], true
		}
	}
	return nil, false
}

// Rules returns the rules in evaluation order.
func (t *RuleTable) Rules() []Rule {
	return t.rules
}
