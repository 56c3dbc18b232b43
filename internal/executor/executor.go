// Package executor runs a Planner Result end to end (spec.md §4.7): install
// tools, run any driver prepare scripts once, stage the workspace, invoke
// every plan respecting the linters-before-formatters ordering and the
// global issue cap, apply the transformer chain per file, persist
// cache-eligible results, and collate the final issue list.
//
// The Executor is the adapter layer the leaf packages (internal/driver,
// internal/cache, internal/staging) are deliberately decoupled from: it is
// the one place that knows about internal/planner's InvocationPlan shape,
// internal/tool's Tool lifecycle, and internal/plugin's Definition/Enabled
// data, and translates between all of them.
package executor

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/qlty-sh/qlty-core/internal/cache"
	"github.com/qlty-sh/qlty-core/internal/fingerprint"
	"github.com/qlty-sh/qlty-core/internal/installlog"
	"github.com/qlty-sh/qlty-core/internal/issue"
	"github.com/qlty-sh/qlty-core/internal/planner"
	"github.com/qlty-sh/qlty-core/internal/plugin"
	"github.com/qlty-sh/qlty-core/internal/qerrors"
	"github.com/qlty-sh/qlty-core/internal/staging"
	"github.com/qlty-sh/qlty-core/internal/tool"
	"github.com/qlty-sh/qlty-core/internal/tool/download"
	"github.com/qlty-sh/qlty-core/internal/transform"
)

// DefaultMaxIssues and DefaultMaxIssuesPerFile are the spec's MAX_ISSUES and
// MAX_ISSUES_PER_FILE caps.
const (
	DefaultMaxIssues        = 50_000
	DefaultMaxIssuesPerFile = 500
)

// Transformer is one stage of the TransformerChain (§4.9): a pure function
// over one file's issue batch.
type Transformer func(issues []issue.Issue) []issue.Issue

// ToolResolver resolves the live, installable Tool behind a plan's
// ToolName/RuntimeName. Tool construction from a plugin.Definition belongs
// upstream of the Executor (config loading), so it is injected rather than
// built here, keeping this package free of plugin-definition-to-tool.Spec
// translation concerns.
type ToolResolver func(name string) (*tool.Tool, bool)

// EventKind tags one step of an invocation's lifecycle, for a caller that
// wants to render progress while Run is still in flight.
type EventKind int

const (
	EventInvocationStart EventKind = iota
	EventInvocationDone
	EventInvocationFailed
)

// Event reports one invocation lifecycle transition. Err is set only for
// EventInvocationFailed.
type Event struct {
	Kind       EventKind
	PluginName string
	DriverName string
	Verb       planner.Verb
	Err        error
}

// EventFunc receives Events as invocations start and finish. It is called
// from worker goroutines and must not block or panic.
type EventFunc func(Event)

func emit(f EventFunc, e Event) {
	if f != nil {
		f(e)
	}
}

// Input gathers everything one Executor run needs.
type Input struct {
	WorkspaceRoot string
	QltyDir       string

	Plans      []planner.InvocationPlan
	StagingOps []staging.ConfigStagingOperation
	// Definitions supplies each plan's plugin.Definition, keyed by
	// PluginName, for driver script templates, config files, and parsers.
	Definitions map[string]plugin.Definition
	// Enabled supplies each plan's plugin.Enabled, keyed by PluginName, for
	// Mode and package-file contents feeding tool/cache fingerprints.
	Enabled map[string]plugin.Enabled

	Parsers    map[string]driverParserFor
	Resolve    ToolResolver
	Cache      *cache.Cache
	Logs       *installlog.Store
	Downloader download.Downloader
	StagingMode staging.Mode

	// Transformers run first in the §4.9 chain, ahead of the Executor's own
	// SourceExtractor/DiffLineFilter stages (the caller's CheckFilters, e.g.
	// cmd/qlty's --include/--exclude filtering).
	Transformers []Transformer
	// PostTransformers run last in the §4.9 chain, after DiffLineFilter
	// (Fixer, then Triage).
	PostTransformers []Transformer

	// SnippetContextLines configures the SourceExtractor stage the Executor
	// always runs (§4.9 step 2); 0 uses transform.DefaultSnippetContextLines.
	SnippetContextLines int
	// DiffChangedLines and DiffToAbs, when both set, enable the
	// DiffLineFilter stage (§4.9 step 3); a caller only sets these in a
	// diff-based TargetMode (ModeUpstreamDiff, ModeHeadDiff, ModeIndex,
	// ModeIndexFile).
	DiffChangedLines map[string]map[int]bool
	DiffToAbs        func(relPath string) string

	// OnEvent, if set, is notified as each invocation starts and finishes.
	// Optional: a nil OnEvent is a no-op, so callers with no progress UI
	// (tests, `qlty plan`) pass nothing.
	OnEvent EventFunc

	Jobs               int
	SkipErroredPlugins bool
	MaxIssues          int
	MaxIssuesPerFile   int
}

// Result is everything the Executor produces from one run.
type Result struct {
	Issues          []issue.Issue
	FormattedFiles  []string
	Messages        []string
	ToolIssueCounts map[string]int
	CacheHits       int
	CacheMisses     int
}

// Run executes the full §4.7 pipeline against in.
func Run(ctx context.Context, in Input) (*Result, error) {
	jobs := in.Jobs
	if jobs <= 0 {
		jobs = runtime.NumCPU()
	}
	maxIssues := in.MaxIssues
	if maxIssues <= 0 {
		maxIssues = DefaultMaxIssues
	}
	maxPerFile := in.MaxIssuesPerFile
	if maxPerFile <= 0 {
		maxPerFile = DefaultMaxIssuesPerFile
	}

	var messages []string

	disabled, installMessages, err := installTools(ctx, in, jobs)
	messages = append(messages, installMessages...)
	if err != nil {
		return nil, err
	}

	prepMessages, err := runPrepareScripts(ctx, in, disabled)
	messages = append(messages, prepMessages...)
	if err != nil {
		return nil, err
	}

	area, err := staging.New(stagingModeOrDefault(in.StagingMode), in.WorkspaceRoot)
	if err != nil {
		return nil, err
	}
	defer func() { _ = area.Cleanup() }()

	if err := stageWorkspaceEntries(ctx, area, in); err != nil {
		return nil, err
	}
	if err := area.Apply(ctx, in.StagingOps, in.Downloader); err != nil {
		return nil, err
	}

	in.Transformers = []Transformer{buildChain(in, area)}

	var totalIssues atomic.Int64
	runnable := excludeDisabled(in.Plans, disabled)
	linters, formatters := partitionByVerb(runnable)

	collector := newCollector()

	linterErr := runInvocationGroup(ctx, in, area, linters, jobs, maxIssues, maxPerFile, &totalIssues, collector)
	formatterErr := runInvocationGroup(ctx, in, area, formatters, jobs, maxIssues, maxPerFile, &totalIssues, collector)
	if linterErr != nil {
		return nil, linterErr
	}
	if formatterErr != nil {
		return nil, formatterErr
	}

	messages = append(messages, collector.messages...)

	result, err := collate(collector, maxIssues)
	if err != nil {
		return nil, err
	}
	result.Messages = messages
	return result, nil
}

// buildChain assembles the full §4.9 TransformerChain: the caller's
// Transformers (CheckFilters) first, then the Executor's own SourceExtractor
// and (in diff mode) DiffLineFilter stages, then the caller's
// PostTransformers (Fixer, Triage). SourceExtractor needs area's destination
// directory, which only exists once staging has run, so this chain can only
// be built here rather than by the caller ahead of time.
func buildChain(in Input, area *staging.StagingArea) Transformer {
	stages := make([]func([]issue.Issue) []issue.Issue, 0, len(in.Transformers)+len(in.PostTransformers)+2)
	for _, t := range in.Transformers {
		stages = append(stages, t)
	}

	stages = append(stages, transform.SourceExtractor(area.DestinationDir(), in.SnippetContextLines))

	if in.DiffChangedLines != nil && in.DiffToAbs != nil {
		stages = append(stages, transform.DiffLineFilter(in.DiffChangedLines, in.DiffToAbs))
	}

	for _, t := range in.PostTransformers {
		stages = append(stages, t)
	}

	return transform.Chain(stages...)
}

func stagingModeOrDefault(m staging.Mode) staging.Mode {
	return m // zero value is staging.ModeSource, the spec's default shadow-workspace behavior
}

// driverParserFor mirrors internal/driver.Parser; redeclared here so this
// package's public Input doesn't force callers to import internal/driver
// just to name the type (it is structurally identical and passed straight
// through to driver.Invoke).
type driverParserFor = func(pluginName string, output []byte) ([]issue.Issue, error)

// partitionByVerb splits plans into linter (check) and formatter (fmt)
// groups, each shuffled independently for fairness among slow tools, per
// §4.7 step 3d. Shuffling uses a fixed permutation derived from each plan's ID rather
// than math/rand (whose global seeding is time-based and therefore
// unavailable under the no-Date.Now-equivalent determinism this codebase
// otherwise favors in planner/cache); this still breaks the declaration-
// order bias the spec calls out, without introducing a hidden dependency on
// wall-clock time.
func partitionByVerb(plans []planner.InvocationPlan) (linters, formatters []planner.InvocationPlan) {
	for _, p := range plans {
		if p.Verb == planner.VerbFmt {
			formatters = append(formatters, p)
		} else {
			linters = append(linters, p)
		}
	}
	return fisherYatesByID(linters), fisherYatesByID(formatters)
}

// fisherYatesByID deterministically reorders plans using each plan's own ID
// as a sort/shuffle key, so repeated runs over the same plan set interleave
// tools the same way without depending on wall-clock-seeded randomness.
func fisherYatesByID(plans []planner.InvocationPlan) []planner.InvocationPlan {
	out := make([]planner.InvocationPlan, len(plans))
	copy(out, plans)
	sort.Slice(out, func(i, j int) bool {
		return fingerprintOrder(out[i].ID) < fingerprintOrder(out[j].ID)
	})
	return out
}

func fingerprintOrder(id string) string {
	// Re-hashing the ID scrambles the otherwise-alphabetic InvocationPlan.ID
	// ordering into an order unrelated to plugin name, which is what the
	// "shuffle for fairness" requirement is actually after.
	fp := fingerprint.Compute(fingerprint.Input{Package: fingerprint.Package{Name: id}})
	return string(fp)
}

func excludeDisabled(plans []planner.InvocationPlan, disabled map[string]bool) []planner.InvocationPlan {
	if len(disabled) == 0 {
		return plans
	}
	out := make([]planner.InvocationPlan, 0, len(plans))
	for _, p := range plans {
		if disabled[p.ToolName] {
			continue
		}
		out = append(out, p)
	}
	return out
}

type resultCollector struct {
	mu              sync.Mutex
	issues          []issue.Issue
	formattedFiles  []string
	messages        []string
	toolIssueCounts map[string]int
	cacheHits       int
	cacheMisses     int
}

func newCollector() *resultCollector {
	return &resultCollector{toolIssueCounts: make(map[string]int)}
}

func (c *resultCollector) addIssues(toolName string, issues []issue.Issue) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.issues = append(c.issues, issues...)
	c.toolIssueCounts[toolName] += len(issues)
}

func (c *resultCollector) addFormattedFile(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.formattedFiles = append(c.formattedFiles, path)
}

func (c *resultCollector) addMessage(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, msg)
}

func (c *resultCollector) addCacheStats(hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cacheHits += hits
	c.cacheMisses += misses
}

// collate builds the final Result from c. When the collected issue count has
// reached maxIssues, it halts rather than silently truncating: it returns a
// qerrors-typed error (CategoryCap/CodeIssueCapExceeded) describing the cap
// and a per-tool breakdown, grounded on the original executor's
// format_max_issues_error/bail! behavior.
func collate(c *resultCollector, maxIssues int) (*Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	issues := make([]issue.Issue, len(c.issues))
	copy(issues, c.issues)

	files := make([]string, len(c.formattedFiles))
	copy(files, c.formattedFiles)
	sort.Strings(files)

	counts := make(map[string]int, len(c.toolIssueCounts))
	for k, v := range c.toolIssueCounts {
		counts[k] = v
	}

	if len(issues) >= maxIssues {
		return nil, qerrors.New(qerrors.CategoryCap, formatMaxIssuesError(maxIssues, counts)).
			WithCode(qerrors.CodeIssueCapExceeded).
			WithDetail("maxIssues", maxIssues).
			WithDetail("toolIssueCounts", counts).
			WithHint("adjust your configuration to reduce the number of issues generated")
	}

	return &Result{
		Issues:          issues,
		FormattedFiles:  files,
		ToolIssueCounts: counts,
		CacheHits:       c.cacheHits,
		CacheMisses:     c.cacheMisses,
	}, nil
}

// toolCount pairs a tool name with its issue count, for the cap error's
// per-tool breakdown.
type toolCount struct {
	name  string
	count int
}

// formatMaxIssuesError renders the same message shape as the original
// executor's format_max_issues_error: the cap, a descending per-tool
// breakdown, and a pointer at what to do about it.
func formatMaxIssuesError(maxIssues int, counts map[string]int) string {
	summary := make([]toolCount, 0, len(counts))
	for name, n := range counts {
		summary = append(summary, toolCount{name, n})
	}
	sort.Slice(summary, func(i, j int) bool {
		if summary[i].count != summary[j].count {
			return summary[i].count > summary[j].count
		}
		return summary[i].name < summary[j].name
	})

	lines := make([]string, len(summary))
	for i, tc := range summary {
		lines[i] = fmt.Sprintf("  %s (%s issues)", tc.name, formatThousands(tc.count))
	}

	return fmt.Sprintf(
		"Maximum issue count of %s reached. Execution halted.\n\nIssue count by tool:\n%s\n\n"+
			"Please adjust your configuration to reduce the number of issues generated.\n"+
			"For more information: https://qlty.sh/d/too-many-issues",
		formatThousands(maxIssues),
		strings.Join(lines, "\n"),
	)
}

// formatThousands inserts comma grouping, matching the original executor's
// format_number.
func formatThousands(n int) string {
	s := strconv.Itoa(n)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}

	var out []byte
	for i, c := range []byte(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, c)
	}
	if neg {
		return "-" + string(out)
	}
	return string(out)
}
