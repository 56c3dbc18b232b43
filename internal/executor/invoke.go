package executor

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/qlty-sh/qlty-core/internal/cache"
	"github.com/qlty-sh/qlty-core/internal/driver"
	"github.com/qlty-sh/qlty-core/internal/issue"
	"github.com/qlty-sh/qlty-core/internal/planner"
	"github.com/qlty-sh/qlty-core/internal/plugin"
	"github.com/qlty-sh/qlty-core/internal/staging"
	"github.com/qlty-sh/qlty-core/internal/tool"
)

// runPrepareScripts implements §4.7 step 2: every (plugin, driver) pair that
// declares a prepare_script runs it exactly once, deduplicated by
// invocation_label (or, absent one, by plugin+driver name).
func runPrepareScripts(ctx context.Context, in Input, disabled map[string]bool) ([]string, error) {
	var messages []string
	ran := make(map[string]bool)

	for _, p := range in.Plans {
		if disabled[p.ToolName] {
			continue
		}
		def, ok := in.Definitions[p.PluginName]
		if !ok {
			continue
		}
		d, ok := findDriver(def, p.DriverName)
		if !ok || d.PrepareScript == "" {
			continue
		}

		label := d.InvocationLabel
		if label == "" {
			label = p.PluginName + "/" + p.DriverName
		}
		if ran[label] {
			continue
		}
		ran[label] = true

		if err := driver.RunScript(ctx, d.PrepareScript, in.WorkspaceRoot, nil, driverTimeout(d)); err != nil {
			if in.SkipErroredPlugins {
				disabled[p.ToolName] = true
				messages = append(messages, fmt.Sprintf("disabling %s: prepare script failed: %s", p.PluginName, err))
				continue
			}
			return messages, err
		}
	}

	return messages, nil
}

func findDriver(def plugin.Definition, name string) (plugin.Driver, bool) {
	for _, d := range def.Drivers {
		if d.Name == name {
			return d, true
		}
	}
	return plugin.Driver{}, false
}

func driverTimeout(d plugin.Driver) time.Duration {
	if d.TimeoutSeconds <= 0 {
		return driver.DefaultTimeout
	}
	return time.Duration(d.TimeoutSeconds) * time.Second
}

// stageWorkspaceEntries implements §4.7 step 3c's first half: every target
// file any runnable plan names is staged before config-staging operations
// run (the Executor calls area.Apply for those separately, since ordering
// among config ops is itself significant and independent of target
// staging).
func stageWorkspaceEntries(_ context.Context, area *staging.StagingArea, in Input) error {
	seen := make(map[string]bool)
	for _, p := range in.Plans {
		for _, target := range p.Targets {
			if seen[target.Path] {
				continue
			}
			seen[target.Path] = true
			if _, err := area.Stage(target.Path); err != nil {
				return err
			}
		}
	}
	return nil
}

// runInvocationGroup runs one ordered group of plans (all linters, or all
// formatters) through a bounded worker pool. Each worker re-checks the
// shared issue counter before starting its invocation, implementing the
// soft-cancel described in §5: in-flight invocations always run to
// completion, but no new one starts once the cap is already crossed.
func runInvocationGroup(ctx context.Context, in Input, area *staging.StagingArea, plans []planner.InvocationPlan, jobs int, maxIssues, maxPerFile int, totalIssues *atomic.Int64, collector *resultCollector) error {
	if len(plans) == 0 {
		return nil
	}

	sem := semaphore.NewWeighted(int64(jobs))
	var (
		mu       sync.Mutex
		firstErr error
		wg       sync.WaitGroup
	)

	for _, p := range plans {
		if totalIssues.Load() >= int64(maxIssues) {
			collector.addMessage(fmt.Sprintf("skipping %s: issue cap (%d) already reached", p.ID, maxIssues))
			continue
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Go(func() {
			defer sem.Release(1)

			if totalIssues.Load() >= int64(maxIssues) {
				return
			}

			if err := runOneInvocation(ctx, in, area, p, maxPerFile, totalIssues, collector); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		})
	}

	wg.Wait()
	return firstErr
}

func runOneInvocation(ctx context.Context, in Input, area *staging.StagingArea, p planner.InvocationPlan, maxPerFile int, totalIssues *atomic.Int64, collector *resultCollector) (err error) {
	emit(in.OnEvent, Event{Kind: EventInvocationStart, PluginName: p.PluginName, DriverName: p.DriverName, Verb: p.Verb})
	defer func() {
		kind := EventInvocationDone
		if err != nil {
			kind = EventInvocationFailed
		}
		emit(in.OnEvent, Event{Kind: kind, PluginName: p.PluginName, DriverName: p.DriverName, Verb: p.Verb, Err: err})
	}()

	def, ok := in.Definitions[p.PluginName]
	if !ok {
		return nil
	}
	d, ok := findDriver(def, p.DriverName)
	if !ok {
		return nil
	}
	enabled := in.Enabled[p.PluginName]

	t, ok := in.Resolve(p.ToolName)
	if !ok {
		return nil
	}
	toolFP := t.Fingerprint(runtimeFingerprintOf(t), packageFileContents(in, p.PluginName))

	stagedTargets := make([]string, 0, len(p.Targets))
	for _, target := range p.Targets {
		staged, err := area.Stage(target.Path)
		if err != nil {
			return err
		}
		stagedTargets = append(stagedTargets, staged)
	}

	var hits map[string]issue.FileResult
	misses := stagedTargets

	if in.Cache != nil {
		lookup, err := in.Cache.Lookup(cache.PlanInput{
			ToolFingerprint:   string(toolFP),
			DriverName:        d.Name,
			DriverVersion:     enabled.Version,
			Targets:           stagedTargets,
			ConfigFilePaths:   def.ConfigFiles,
			AffectsCachePaths: def.AffectsCache,
		})
		if err != nil {
			return err
		}
		hits = lookup.Hits
		misses = lookup.Misses

		hitCount := 0
		for _, fr := range hits {
			collector.addIssues(p.ToolName, fr.Issues)
			hitCount += len(fr.Issues)
		}
		collector.addCacheStats(len(hits), len(misses))
		totalIssues.Add(int64(hitCount))
	}

	if len(misses) == 0 {
		return nil
	}

	dirKind := invocationDirKind(p.InvocationDir)
	toolInstallDir := ""
	if dirKind == driver.DirToolInstall {
		toolInstallDir = t.Directory(toolFP)
	}

	result, err := driver.Invoke(ctx, driver.Input{
		PluginName:     p.PluginName,
		DriverName:     d.Name,
		ScriptTpl:      d.ScriptTpl,
		SuccessCodes:   d.SuccessCodes,
		ErrorCodes:     d.ErrorCodes,
		Mode:           string(enabled.Mode),
		Vars:           driver.Vars{Linter: p.PluginName, CacheDir: area.DestinationDir()},
		Targets:        misses,
		DirKind:        dirKind,
		WorkspaceRoot:  area.DestinationDir(),
		StagingRoot:    area.DestinationDir(),
		ToolInstallDir: toolInstallDir,
		Env:            t.Env(toolInstallDir, tool.EnvContext{WorkspaceRoot: area.DestinationDir()}),
		Timeout:        driverTimeout(d),
		Parser:         in.Parsers[p.PluginName],
	})
	if err != nil {
		return err
	}

	// result.Issues carry staging-root-relative paths (driver.Invoke already
	// normalized them); re-derive the same relative form for misses so the
	// seeded empty buckets below line up with real per-file issue lists.
	// absByRel recovers the staged absolute path a relative identity came
	// from, since ComputeKey needs to read real file bytes.
	relMisses := relativeToStagingRoot(area, misses)
	absByRel := make(map[string]string, len(misses))
	for i, rel := range relMisses {
		absByRel[rel] = misses[i]
	}
	byFile := groupByFile(result.Issues, relMisses)

	var issueLimitReached []string
	for path, issues := range byFile {
		if len(issues) >= maxPerFile {
			issueLimitReached = append(issueLimitReached, path)
			continue
		}

		transformed := issues
		for _, xf := range in.Transformers {
			transformed = xf(transformed)
		}

		collector.addIssues(p.ToolName, transformed)
		totalIssues.Add(int64(len(transformed)))

		if in.Cache != nil {
			key := keyFor(d, enabled, def, string(toolFP), absByRel[path])
			if key != "" {
				_ = in.Cache.Put(key, issue.FileResult{Path: path, Issues: transformed})
			}
		}
	}

	if len(issueLimitReached) > 0 {
		sort.Strings(issueLimitReached)
		collector.addMessage(fmt.Sprintf(
			"Maximum issue count of %d reached, skipping any further issues in files. "+
				"The following files have been skipped due to the issue limit: %s",
			maxPerFile, strings.Join(issueLimitReached, ", "),
		))
	}

	if p.Verb == planner.VerbFmt && result.Status == issue.StatusSuccess {
		for _, target := range relMisses {
			collector.addFormattedFile(target)
		}
	}

	return nil
}

func keyFor(d plugin.Driver, enabled plugin.Enabled, def plugin.Definition, toolFP, path string) string {
	key, err := cache.ComputeKey(cache.KeyInput{
		ToolFingerprint:   toolFP,
		DriverName:        d.Name,
		DriverVersion:     enabled.Version,
		TargetPath:        path,
		ConfigFilePaths:   def.ConfigFiles,
		AffectsCachePaths: def.AffectsCache,
	})
	if err != nil {
		return ""
	}
	return key
}

// groupByFile buckets issues by their normalized location path, seeding an
// empty bucket for every invoked target so a clean file still gets a
// (possibly empty) cache entry.
func groupByFile(issues []issue.Issue, targets []string) map[string][]issue.Issue {
	out := make(map[string][]issue.Issue, len(targets))
	for _, t := range targets {
		out[t] = nil
	}
	for _, iss := range issues {
		out[iss.Location.Path] = append(out[iss.Location.Path], iss)
	}
	return out
}

// relativeToStagingRoot mirrors driver.Invoke's own path normalization so a
// target list computed before the call lines up with the relative paths
// the driver's parsed issues carry afterward.
func relativeToStagingRoot(area *staging.StagingArea, targets []string) []string {
	out := make([]string, len(targets))
	for i, t := range targets {
		rel, err := filepath.Rel(area.DestinationDir(), t)
		if err != nil {
			out[i] = t
			continue
		}
		out[i] = rel
	}
	return out
}

func invocationDirKind(kind planner.InvocationDirectory) driver.InvocationDirKind {
	switch kind {
	case planner.InvocationDirTargetRelative:
		return driver.DirTargetRelative
	case planner.InvocationDirToolInstall:
		return driver.DirToolInstall
	default:
		return driver.DirRoot
	}
}
