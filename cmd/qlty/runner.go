package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/qlty-sh/qlty-core/internal/app"
	"github.com/qlty-sh/qlty-core/internal/executor"
	"github.com/qlty-sh/qlty-core/internal/planner"
	"github.com/qlty-sh/qlty-core/internal/plugin"
	"github.com/qlty-sh/qlty-core/internal/results"
	"github.com/qlty-sh/qlty-core/internal/staging"
	"github.com/qlty-sh/qlty-core/internal/transform"
	"github.com/qlty-sh/qlty-core/internal/ui"
)

// runOpts gathers the flags check and fmt share.
type runOpts struct {
	root        string
	paths       []string
	allFiles    bool
	upstreamRef string
	stagingMode staging.Mode
	include     []string
	exclude     []string
}

// runPipeline loads the project, plans against opts, runs the Executor, and
// returns the collated Summary. verb narrows which drivers the Planner's
// plans come from (VerbCheck or VerbFmt).
func runPipeline(ctx context.Context, opts runOpts, verb planner.Verb) (results.Summary, error) {
	proj, err := app.Load(ctx, opts.root)
	if err != nil {
		return results.Summary{}, fmt.Errorf("failed to load project: %w", err)
	}
	if err := proj.EnsureQltyDir(); err != nil {
		return results.Summary{}, err
	}

	enabled, err := proj.ResolveEnabled()
	if err != nil {
		return results.Summary{}, err
	}

	mode := planner.ModeAll
	switch {
	case opts.upstreamRef != "":
		mode = planner.ModeUpstreamDiff
	case opts.allFiles:
		mode = planner.ModeAll
	case len(opts.paths) > 0:
		mode = planner.ModePaths
	}

	plan, err := planner.Plan(planner.Input{
		WorkspaceRoot: opts.root,
		QltyDir:       proj.QltyDir,
		Mode:          mode,
		Paths:         opts.paths,
		UpstreamRef:   opts.upstreamRef,
		RawEnabled:    app.EnabledSlice(enabled),
		Definitions:   proj.Definitions,
		Ignores:       proj.Config.Ignores,
	})
	if err != nil {
		return results.Summary{}, fmt.Errorf("failed to plan: %w", err)
	}
	plan.Plans = filterByVerb(plan.Plans, verb)

	// §4.9's TransformerChain order is CheckFilters, SourceExtractor,
	// DiffLineFilter, Fixer, Triage. SourceExtractor and the optional
	// DiffLineFilter need the staging area's destination directory, which
	// only exists once the Executor has run staging, so it builds those two
	// stages itself; this caller supplies the stages on either side of them.
	pre := []executor.Transformer{transform.CheckFilters(opts.include, opts.exclude)}
	post := []executor.Transformer{transform.Triage(triageRulesFromIgnores(proj.Config.Ignores))}

	var changedLines map[string]map[int]bool
	if mode == planner.ModeUpstreamDiff && plan.GitDiff != nil {
		changedLines = plan.GitDiff.ChangedLines
	}
	toAbs := func(relPath string) string { return filepath.Join(opts.root, relPath) }

	progress := ui.NewProgress(os.Stderr)

	out, err := executor.Run(ctx, executor.Input{
		WorkspaceRoot:      opts.root,
		QltyDir:            proj.QltyDir,
		Plans:              plan.Plans,
		StagingOps:         plan.StagingOps,
		Definitions:        proj.Definitions,
		Enabled:            enabled,
		Resolve:            proj.ToolResolver(enabled),
		Cache:              proj.Cache,
		Logs:               proj.Logs,
		Downloader:         proj.Downloader,
		StagingMode:        opts.stagingMode,
		Transformers:       pre,
		PostTransformers:   post,
		DiffChangedLines:   changedLines,
		DiffToAbs:          toAbs,
		OnEvent:            progress.EventFunc(),
		Jobs:               proj.Config.Jobs,
		SkipErroredPlugins: proj.Config.SkipErroredPlugins,
		MaxIssues:          proj.Config.MaxIssues,
		MaxIssuesPerFile:   proj.Config.MaxIssuesPerFile,
	})
	progress.Wait()
	if err != nil {
		return results.Summary{}, fmt.Errorf("run failed: %w", err)
	}

	modes := make(map[string]plugin.Mode, len(enabled))
	for name, e := range enabled {
		modes[name] = e.Mode
	}

	return results.Summarize(results.ExecutorResult{
		Issues:          out.Issues,
		FormattedFiles:  out.FormattedFiles,
		Messages:        out.Messages,
		ToolIssueCounts: out.ToolIssueCounts,
		CacheHits:       out.CacheHits,
		CacheMisses:     out.CacheMisses,
	}, modes), nil
}

func filterByVerb(plans []planner.InvocationPlan, verb planner.Verb) []planner.InvocationPlan {
	out := make([]planner.InvocationPlan, 0, len(plans))
	for _, p := range plans {
		if p.Verb == verb {
			out = append(out, p)
		}
	}
	return out
}
