package main

import (
	"github.com/qlty-sh/qlty-core/internal/issue"
	"github.com/qlty-sh/qlty-core/internal/planner"
	"github.com/qlty-sh/qlty-core/internal/transform"
)

// triageRulesFromIgnores turns the project's ignore list into Triage rules.
// Only ignores that name plugins/rules/levels reach here as metadata-driven
// per-issue suppressions; file-level ignores without that metadata are
// applied earlier, at target-discovery time, by the Planner itself (§4.5
// step 4), so they never produce an issue for Triage to see in the first
// place.
func triageRulesFromIgnores(ignores []planner.Ignore) []transform.TriageRule {
	rules := make([]transform.TriageRule, 0, len(ignores))
	for _, ig := range ignores {
		if len(ig.Plugins) == 0 && len(ig.Rules) == 0 && len(ig.Levels) == 0 {
			continue
		}
		rules = append(rules, transform.TriageRule{
			Match: transform.TriageMatch{
				RuleKeys:    ig.Rules,
				Paths:       ig.FilePatterns,
				Levels:      levelsOf(ig.Levels),
				PluginNames: ig.Plugins,
			},
			Ignore: true,
		})
	}
	return rules
}

func levelsOf(levels []string) []issue.Level {
	out := make([]issue.Level, len(levels))
	for i, l := range levels {
		out[i] = issue.Level(l)
	}
	return out
}
