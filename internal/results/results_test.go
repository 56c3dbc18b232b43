package results_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qlty-sh/qlty-core/internal/issue"
	"github.com/qlty-sh/qlty-core/internal/plugin"
	"github.com/qlty-sh/qlty-core/internal/results"
)

func TestSummarize_SplitsBlockingFromNonBlocking(t *testing.T) {
	t.Parallel()

	r := results.ExecutorResult{
		Issues: []issue.Issue{
			{RuleKey: "a", PluginName: "rubocop", Mode: string(plugin.ModeBlock)},
			{RuleKey: "b", PluginName: "eslint", Mode: string(plugin.ModeComment)},
		},
		ToolIssueCounts: map[string]int{"rubocop": 1, "eslint": 1},
	}

	summary := results.Summarize(r, nil)
	require.Len(t, summary.Issues, 2)
	require.Len(t, summary.BlockingIssues, 1)
	assert.Equal(t, "a", summary.BlockingIssues[0].RuleKey)
	assert.Equal(t, 1, summary.ExitCode())
}

func TestSummarize_NoBlockingIssuesExitsZero(t *testing.T) {
	t.Parallel()

	r := results.ExecutorResult{
		Issues: []issue.Issue{{RuleKey: "a", PluginName: "eslint", Mode: string(plugin.ModeMonitor)}},
	}
	summary := results.Summarize(r, nil)
	assert.Empty(t, summary.BlockingIssues)
	assert.Equal(t, 0, summary.ExitCode())
}

func TestSummarize_IgnoredIssueNeverBlocks(t *testing.T) {
	t.Parallel()

	r := results.ExecutorResult{
		Issues: []issue.Issue{{RuleKey: "a", PluginName: "rubocop", Mode: string(plugin.ModeBlock), Ignored: true}},
	}
	summary := results.Summarize(r, nil)
	require.Len(t, summary.Issues, 1)
	assert.Empty(t, summary.BlockingIssues)
	assert.Equal(t, 0, summary.ExitCode())
}

func TestSummarize_FallsBackToModesMapWhenIssueModeEmpty(t *testing.T) {
	t.Parallel()

	r := results.ExecutorResult{
		Issues: []issue.Issue{{RuleKey: "a", PluginName: "rubocop"}},
	}
	modes := map[string]plugin.Mode{"rubocop": plugin.ModeBlock}
	summary := results.Summarize(r, modes)
	require.Len(t, summary.BlockingIssues, 1)
}

func TestSummarize_ToolCountsSortedDescending(t *testing.T) {
	t.Parallel()

	r := results.ExecutorResult{
		ToolIssueCounts: map[string]int{"eslint": 3, "rubocop": 10, "shellcheck": 3},
	}
	summary := results.Summarize(r, nil)
	require.Len(t, summary.ToolCounts, 3)
	assert.Equal(t, "rubocop", summary.ToolCounts[0].ToolName)
	assert.Equal(t, "eslint", summary.ToolCounts[1].ToolName) // tie broken alphabetically
	assert.Equal(t, "shellcheck", summary.ToolCounts[2].ToolName)
}
