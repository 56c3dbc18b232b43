package main

import (
	"context"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/qlty-sh/qlty-core/internal/issue"
	"github.com/qlty-sh/qlty-core/internal/planner"
	"github.com/qlty-sh/qlty-core/internal/results"
	"github.com/qlty-sh/qlty-core/internal/staging"
	"github.com/qlty-sh/qlty-core/internal/ui"
)

var (
	checkAll         bool
	checkUpstreamRef string
	checkInclude     []string
	checkExclude     []string
)

var checkCmd = &cobra.Command{
	Use:   "check [files or directories...]",
	Short: "Run linters and report issues",
	Long: `Plan and run every enabled check-mode driver against the given paths
(or the whole workspace with --all, or files changed since --upstream),
then print the collated issue list and exit 1 if any block-mode issue
survived triage.`,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().BoolVar(&checkAll, "all", false, "Check every file in the workspace, not just the given paths")
	checkCmd.Flags().StringVar(&checkUpstreamRef, "upstream", "", "Only check files changed since this git ref")
	checkCmd.Flags().StringSliceVar(&checkInclude, "include", nil, "Only report issues in files matching one of these globs")
	checkCmd.Flags().StringSliceVar(&checkExclude, "exclude", nil, "Drop issues in files matching one of these globs")
}

func runCheck(cmd *cobra.Command, args []string) error {
	root, err := os.Getwd()
	if err != nil {
		return err
	}

	summary, err := runPipeline(context.Background(), runOpts{
		root:        root,
		paths:       args,
		allFiles:    checkAll,
		upstreamRef: checkUpstreamRef,
		stagingMode: staging.ModeSource,
		include:     checkInclude,
		exclude:     checkExclude,
	}, planner.VerbCheck)
	if err != nil {
		return err
	}

	renderSummary(cmd, summary)
	if code := summary.ExitCode(); code != 0 {
		os.Exit(code)
	}
	return nil
}

func renderSummary(cmd *cobra.Command, summary results.Summary) {
	style := ui.NewStyle()

	blocking := make(map[string]bool, len(summary.BlockingIssues))
	for _, iss := range summary.BlockingIssues {
		blocking[issueKey(iss)] = true
	}

	for _, iss := range summary.Issues {
		marker := style.LevelMark(iss.Level)
		switch {
		case iss.Ignored:
			marker = style.SkipMark
		case blocking[issueKey(iss)]:
			marker = style.FailMark
		}
		cmd.Printf("%s %s%s %s [%s] %s\n", marker, style.Path.Sprint(iss.Location.Path), lineSuffix(iss.Location), style.RuleKey.Sprint(iss.RuleKey), style.PluginTag.Sprint(iss.PluginName), iss.Message)
	}

	for _, msg := range summary.Messages {
		cmd.Println("note:", msg)
	}

	cmd.Printf("\n%d issue(s), %d blocking\n", len(summary.Issues), len(summary.BlockingIssues))
	for _, tc := range summary.ToolCounts {
		cmd.Printf("  %-20s %d\n", tc.ToolName, tc.Count)
	}
	cmd.Printf("cache: %d hit(s), %d miss(es)\n", summary.CacheHits, summary.CacheMisses)
}

// issueKey identifies an issue for the blocking-set lookup above; Issue
// itself isn't comparable (Location.Range is a pointer), so this builds a
// plain string key from the fields that make a finding unique.
func issueKey(iss issue.Issue) string {
	line := 0
	if iss.Location.Range != nil {
		line = iss.Location.Range.StartLine
	}
	return iss.Location.Path + "|" + iss.RuleKey + "|" + iss.PluginName + "|" + iss.Fingerprint + "|" + strconv.Itoa(line)
}

func lineSuffix(loc issue.Location) string {
	if loc.Range == nil {
		return ""
	}
	return ":" + strconv.Itoa(loc.Range.StartLine)
}
