package transform

import "github.com/qlty-sh/qlty-core/internal/issue"

// DiffLineFilter builds the §4.9 step 3 stage, active only in HeadDiff or
// UpstreamDiff target modes: an issue survives only if its location's
// start line (or, absent a range, any line) falls in changedLines for its
// path. changedLines comes from planner.GitDiff.ChangedLines, keyed by
// absolute path; toAbs converts an issue's staging-relative path back to
// the same absolute form GitDiff used, since the Executor normalizes issue
// paths to be staging-root-relative (internal/driver's normalize step).
//
// A path absent from changedLines is kept rather than dropped: it means
// the diff computation had no line data for that file (e.g. a brand new
// file outside git's tracked diff, or IndexFile mode which names files but
// not lines), and spec.md §8's diff-mode restriction is about lines that
// ARE tracked, not an invitation to silently drop untracked files.
func DiffLineFilter(changedLines map[string]map[int]bool, toAbs func(relPath string) string) func([]issue.Issue) []issue.Issue {
	return func(issues []issue.Issue) []issue.Issue {
		if len(changedLines) == 0 {
			return issues
		}
		out := make([]issue.Issue, 0, len(issues))
		for _, iss := range issues {
			lines, ok := changedLines[toAbs(iss.Location.Path)]
			if !ok {
				out = append(out, iss)
				continue
			}
			if iss.Location.Range == nil {
				continue // line-less issue in a tracked file: no line to confirm as changed
			}
			if lines[iss.Location.Range.StartLine] {
				out = append(out, iss)
			}
		}
		return out
	}
}
