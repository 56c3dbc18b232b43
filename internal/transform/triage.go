package transform

import (
	"github.com/bmatcuk/doublestar/v4"

	"github.com/qlty-sh/qlty-core/internal/issue"
)

// TriageMatch is the predicate half of a user-declared triage rule: every
// non-empty field must match for the rule to apply. RuleKeys and Paths use
// doublestar glob syntax for Paths, exact match for RuleKeys.
type TriageMatch struct {
	RuleKeys    []string
	Paths       []string
	Levels      []issue.Level
	PluginNames []string
}

// TriageRule rewrites or ignores issues matching Match. SetLevel,
// SetCategory, and SetMode are applied only when non-empty; Ignore, when
// true, marks the issue Ignored without removing it from the batch (the
// Executor's caps and Results still need to know it existed).
type TriageRule struct {
	Match       TriageMatch
	SetLevel    issue.Level
	SetCategory string
	SetMode     string
	Ignore      bool
}

// Triage builds the §4.9 step 5 stage. Rules apply in declaration order;
// per spec.md §8's triage-ordering invariant, a later rule's non-empty
// set-fields override an earlier rule's on the same issue, since each rule
// is applied to the running issue value rather than only the original.
func Triage(rules []TriageRule) func([]issue.Issue) []issue.Issue {
	if len(rules) == 0 {
		return nil
	}
	return func(issues []issue.Issue) []issue.Issue {
		out := make([]issue.Issue, len(issues))
		copy(out, issues)
		for i := range out {
			for _, rule := range rules {
				if ruleMatches(rule.Match, out[i]) {
					applyTriage(rule, &out[i])
				}
			}
		}
		return out
	}
}

func ruleMatches(m TriageMatch, iss issue.Issue) bool {
	if len(m.RuleKeys) > 0 && !contains(m.RuleKeys, iss.RuleKey) {
		return false
	}
	if len(m.Levels) > 0 && !containsLevel(m.Levels, iss.Level) {
		return false
	}
	if len(m.Paths) > 0 && !matchesAny(m.Paths, iss.Location.Path) {
		return false
	}
	if len(m.PluginNames) > 0 && !contains(m.PluginNames, iss.PluginName) {
		return false
	}
	return true
}

func applyTriage(rule TriageRule, iss *issue.Issue) {
	if rule.SetLevel != "" {
		iss.Level = rule.SetLevel
	}
	if rule.SetCategory != "" {
		iss.Category = rule.SetCategory
	}
	if rule.SetMode != "" {
		iss.Mode = rule.SetMode
	}
	if rule.Ignore {
		iss.Ignored = true
	}
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func containsLevel(set []issue.Level, v issue.Level) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func matchesAny(patterns []string, path string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, path); ok {
			return true
		}
	}
	return false
}
