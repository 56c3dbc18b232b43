package transform

import (
	"github.com/bmatcuk/doublestar/v4"

	"github.com/qlty-sh/qlty-core/internal/issue"
)

// CheckFilters builds the §4.9 step 1 stage: an issue survives only if its
// location path matches at least one include pattern (or include is empty,
// meaning "everything") and matches no exclude pattern. Patterns use
// doublestar syntax, matching internal/planner's WorkspaceEntryFinder
// convention for glob matching against workspace-relative paths.
func CheckFilters(include, exclude []string) func([]issue.Issue) []issue.Issue {
	return func(issues []issue.Issue) []issue.Issue {
		if len(include) == 0 && len(exclude) == 0 {
			return issues
		}
		out := make([]issue.Issue, 0, len(issues))
		for _, iss := range issues {
			if checkFilterKeep(iss.Location.Path, include, exclude) {
				out = append(out, iss)
			}
		}
		return out
	}
}

func checkFilterKeep(path string, include, exclude []string) bool {
	for _, pattern := range exclude {
		if ok, _ := doublestar.Match(pattern, path); ok {
			return false
		}
	}
	if len(include) == 0 {
		return true
	}
	for _, pattern := range include {
		if ok, _ := doublestar.Match(pattern, path); ok {
			return true
		}
	}
	return false
}
