// Package results implements the Results component (spec.md §2/§4.7 step 5):
// final issue/message collation and the exit-code decision a CLI layer
// renders from one Executor run. The Executor already produces the capped
// issue list; this package adds the one thing that's a policy
// decision rather than a pipeline mechanic — whether the run should be
// reported as failing — and a couple of presentation-adjacent summaries
// (per-tool counts sorted for display, a blocking/non-blocking split) that
// don't belong inside the Executor's own run loop.
package results

import (
	"sort"

	"github.com/qlty-sh/qlty-core/internal/issue"
	"github.com/qlty-sh/qlty-core/internal/plugin"
)

// Summary is the final, renderable shape of one run.
type Summary struct {
	Issues         []issue.Issue
	FormattedFiles []string
	Messages       []string

	// BlockingIssues is Issues filtered to those produced by a block-mode
	// plugin and not triaged as Ignored: the set that should fail a CI run.
	BlockingIssues []issue.Issue

	ToolCounts []ToolCount

	CacheHits   int
	CacheMisses int
}

// ToolCount is one row of the per-tool issue breakdown (spec.md §8 scenario
// 5's "per-tool counts in descending order").
type ToolCount struct {
	ToolName string
	Count    int
}

// ExecutorResult is the subset of executor.Result this package consumes.
// Declared locally (rather than importing internal/executor) so results
// stays a leaf package Executor could, in principle, sit downstream of
// without a cycle — the same decoupling convention used throughout this
// module's adapter boundaries.
type ExecutorResult struct {
	Issues          []issue.Issue
	FormattedFiles  []string
	Messages        []string
	ToolIssueCounts map[string]int
	CacheHits       int
	CacheMisses     int
}

// Summarize builds a Summary from one Executor run. modes maps plugin name
// to the plugin.Mode that produced each issue's PluginName, used to compute
// BlockingIssues — an Issue's own Mode field already carries this (set by
// the Driver's normalize step from the EnabledPlugin at invocation time),
// so modes is only consulted as a fallback for issues a test constructs
// without populating Mode.
func Summarize(r ExecutorResult, modes map[string]plugin.Mode) Summary {
	blocking := make([]issue.Issue, 0, len(r.Issues))
	for _, iss := range r.Issues {
		if iss.Ignored {
			continue
		}
		if isBlocking(iss, modes) {
			blocking = append(blocking, iss)
		}
	}

	counts := make([]ToolCount, 0, len(r.ToolIssueCounts))
	for name, n := range r.ToolIssueCounts {
		counts = append(counts, ToolCount{ToolName: name, Count: n})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].ToolName < counts[j].ToolName
	})

	files := make([]string, len(r.FormattedFiles))
	copy(files, r.FormattedFiles)

	return Summary{
		Issues:         r.Issues,
		FormattedFiles: files,
		Messages:       r.Messages,
		BlockingIssues: blocking,
		ToolCounts:     counts,
		CacheHits:      r.CacheHits,
		CacheMisses:    r.CacheMisses,
	}
}

func isBlocking(iss issue.Issue, modes map[string]plugin.Mode) bool {
	mode := plugin.Mode(iss.Mode)
	if mode == "" {
		mode = modes[iss.PluginName]
	}
	return mode == plugin.ModeBlock
}

// ExitCode maps a Summary to a process exit code: 1 if any blocking issue
// survived, 0 otherwise. Comment- and Monitor-mode issues are still
// reported (Summary.Issues includes them) but never fail the run.
func (s Summary) ExitCode() int {
	if len(s.BlockingIssues) > 0 {
		return 1
	}
	return 0
}
