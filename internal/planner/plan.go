package planner

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/qlty-sh/qlty-core/internal/plugin"
	"github.com/qlty-sh/qlty-core/internal/qerrors"
	"github.com/qlty-sh/qlty-core/internal/staging"
)

// InvocationDirectory selects the working directory a Driver is spawned in.
type InvocationDirectory int

const (
	InvocationDirRoot InvocationDirectory = iota
	InvocationDirTargetRelative
	InvocationDirToolInstall
)

// Verb distinguishes a check invocation from a format invocation.
type Verb string

const (
	VerbCheck Verb = "check"
	VerbFmt   Verb = "fmt"
)

// Ignore is one project-configured ignore rule. Plugins/Rules/Levels scope
// the ignore to specific issues rather than whole files; only ignores with
// none of those set participate in target discovery (§4.5 step 4 excludes
// "ignores with metadata" from the file-matching globset, since those are
// applied later, per-issue, by the Triage transformer instead).
type Ignore struct {
	FilePatterns []string
	Plugins      []string
	Rules        []string
	Levels       []string
}

func (i Ignore) hasMetadata() bool {
	return len(i.Plugins) > 0 || len(i.Rules) > 0 || len(i.Levels) > 0
}

// InvocationPlan is one (plugin, driver, target-set) work unit, per §3.1.
// It names its runtime/tool by identifier rather than holding a live Tool,
// since tool installation and lifecycle belong to the Executor, not the
// Planner.
type InvocationPlan struct {
	ID            string
	PluginName    string
	Prefix        string
	DriverName    string
	Verb          Verb
	ToolName      string
	RuntimeName   string
	Targets       []WorkspaceEntry
	InvocationDir InvocationDirectory
}

// Input gathers everything Plan needs to run the six-step algorithm from
// §4.5.
type Input struct {
	WorkspaceRoot string
	QltyDir       string
	Mode          TargetMode
	Paths         []string
	UpstreamRef   string
	IndexFilePath string

	RawEnabled  []plugin.Enabled
	Definitions map[string]plugin.Definition
	Ignores     []Ignore
}

// Result is everything the Executor needs to run a plan.
type Result struct {
	Plans      []InvocationPlan
	StagingOps []staging.ConfigStagingOperation
	// GitDiff is non-nil only in a diff-based TargetMode (ModeUpstreamDiff,
	// ModeHeadDiff, ModeIndex, ModeIndexFile); a caller builds
	// transform.DiffLineFilter from its ChangedLines to enforce §4.9 step 3.
	GitDiff *GitDiff
}

// Plan runs the full Planner algorithm: merge duplicate plugin activations,
// resolve version sentinels, validate, discover targets, emit
// InvocationPlans, and compute config-staging operations.
func Plan(in Input) (*Result, error) {
	enabled := plugin.MergeDuplicates(in.RawEnabled)

	for i := range enabled {
		def, ok := in.Definitions[enabled[i].Name]
		if !ok {
			return nil, qerrors.New(qerrors.CategoryConfig, fmt.Sprintf("unknown plugin %q", enabled[i].Name)).
				WithCode(qerrors.CodeUnknownPlugin)
		}

		resolved, err := plugin.ResolveSentinel(enabled[i].Version, def)
		if err != nil {
			return nil, err
		}
		enabled[i].Version = resolved

		if err := enabled[i].Validate(); err != nil {
			return nil, err
		}
	}

	gitDiff, err := maybeComputeDiff(in)
	if err != nil {
		return nil, err
	}

	var plans []InvocationPlan
	var ops []staging.ConfigStagingOperation

	for _, ep := range enabled {
		def := in.Definitions[ep.Name]

		finder, err := buildFinder(in, ep, def, gitDiff)
		if err != nil {
			return nil, err
		}
		targets, err := finder.Find()
		if err != nil {
			return nil, err
		}

		drivers := selectDrivers(def, ep)
		for _, d := range drivers {
			plan := InvocationPlan{
				ID:            invocationID(ep, d),
				PluginName:    ep.Name,
				Prefix:        ep.Prefix,
				DriverName:    d.Name,
				Verb:          Verb(d.Verb),
				ToolName:      ep.Name,
				RuntimeName:   def.Runtime,
				Targets:       targets,
				InvocationDir: InvocationDirRoot,
			}
			plans = append(plans, plan)
		}

		ops = append(ops, configOperations(in, ep, def, targets)...)
	}

	sort.Slice(plans, func(i, j int) bool { return plans[i].ID < plans[j].ID })

	return &Result{Plans: plans, StagingOps: staging.Deduplicate(ops), GitDiff: gitDiff}, nil
}

func maybeComputeDiff(in Input) (*GitDiff, error) {
	switch in.Mode {
	case ModeUpstreamDiff, ModeHeadDiff, ModeIndex, ModeIndexFile:
		return ComputeGitDiff(in.Mode, in.WorkspaceRoot, in.UpstreamRef, in.IndexFilePath)
	default:
		return nil, nil
	}
}

func buildFinder(in Input, ep plugin.Enabled, def plugin.Definition, diff *GitDiff) (*WorkspaceEntryFinder, error) {
	var source WorkspaceEntrySource
	switch in.Mode {
	case ModePaths:
		source = ArgsSource{Root: in.WorkspaceRoot, Paths: in.Paths}
	case ModeUpstreamDiff, ModeHeadDiff, ModeIndex, ModeIndexFile:
		source = DiffSource{ChangedFiles: diff.ChangedFiles}
	default: // ModeAll, ModeSample
		source = AllSource{Root: in.WorkspaceRoot}
	}

	matchers := []WorkspaceEntryMatcher{FileMatcher{}}

	if len(def.FileTypes) > 0 {
		matchers = append(matchers, NewGlobsMatcher(fileTypeGlobs(def.FileTypes), false))
	}

	matchers = append(matchers, NewPrefixMatcher(in.WorkspaceRoot, ""))
	if ep.Prefix != "" {
		matchers = append(matchers, NewPrefixMatcher(in.WorkspaceRoot, ep.Prefix))
	}

	var patternLists [][]string
	for _, ig := range in.Ignores {
		if ig.hasMetadata() || len(ig.FilePatterns) == 0 {
			continue
		}
		patternLists = append(patternLists, ig.FilePatterns)
	}
	ignoreGroups := BuildIgnoreGroups(patternLists)
	matchers = append(matchers, IgnoreGroupsMatcher{Groups: ignoreGroups})

	return NewWorkspaceEntryFinder(source, AndMatcher{Matchers: matchers}), nil
}

// fileTypeGlobs maps declared file_types to glob patterns. file_types here
// are themselves already glob-shaped basename patterns (e.g. "*.rb"); this
// exists as a seam so a future richer FileType→extension table can replace
// the pass-through without touching buildFinder.
func fileTypeGlobs(fileTypes []string) []string {
	globs := make([]string, len(fileTypes))
	copy(globs, fileTypes)
	return globs
}

// selectDrivers returns def's drivers, narrowed to ep.Drivers if that
// override list is non-empty.
func selectDrivers(def plugin.Definition, ep plugin.Enabled) []plugin.Driver {
	if len(ep.Drivers) == 0 {
		return def.Drivers
	}
	want := make(map[string]bool, len(ep.Drivers))
	for _, name := range ep.Drivers {
		want[name] = true
	}
	var out []plugin.Driver
	for _, d := range def.Drivers {
		if want[d.Name] {
			out = append(out, d)
		}
	}
	return out
}

// invocationID derives a deterministic identifier for one (plugin, driver)
// invocation, stable across runs given the same plugin/prefix/driver/
// version tuple.
func invocationID(ep plugin.Enabled, d plugin.Driver) string {
	h := sha256.New()
	h.Write([]byte(ep.Name))
	h.Write([]byte(ep.Prefix))
	h.Write([]byte(ep.Version))
	h.Write([]byte(d.Name))
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:6])
}

// configOperations implements §4.5 step 6: config-file inclusion, exported
// config routing, .qlty/configs copies, and FetchFile materialization.
func configOperations(in Input, ep plugin.Enabled, def plugin.Definition, targets []WorkspaceEntry) []staging.ConfigStagingOperation {
	var ops []staging.ConfigStagingOperation

	configBasenames := make(map[string]bool, len(def.ConfigFiles)+len(def.AffectsCache))
	for _, n := range def.ConfigFiles {
		configBasenames[n] = true
	}
	for _, n := range def.AffectsCache {
		configBasenames[n] = true
	}

	for _, t := range targets {
		if configBasenames[filepath.Base(t.Path)] {
			ops = append(ops, staging.ConfigStagingOperation{
				Source:      t.Path,
				Destination: t.Path,
				Operation:   staging.CopyToStagingArea,
			})
		}
	}

	for _, exported := range def.ExportedConfigPaths {
		source := filepath.Join(in.WorkspaceRoot, exported)
		ops = append(ops,
			staging.ConfigStagingOperation{Source: source, Destination: source, Operation: staging.CopyToWorkspaceRoot},
		)
	}

	qltyConfigDir := filepath.Join(in.QltyDir, "configs", ep.Name)
	for _, n := range def.ConfigFiles {
		ops = append(ops, staging.ConfigStagingOperation{
			Source:      filepath.Join(qltyConfigDir, n),
			Destination: filepath.Join(in.WorkspaceRoot, n),
			Operation:   staging.LoadFromQltyDir,
		})
	}

	for _, fetch := range def.Fetch {
		dest := fetch.Path
		if !filepath.IsAbs(dest) {
			dest = filepath.Join(in.WorkspaceRoot, dest)
		}
		ops = append(ops, staging.ConfigStagingOperation{
			Source:      fetch.URL,
			Destination: dest,
			Operation:   staging.FetchFile,
		})
	}

	return ops
}
