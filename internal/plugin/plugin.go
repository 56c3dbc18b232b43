// Package plugin defines the Plugin and EnabledPlugin entities and the
// merge/sentinel-resolution rules the Planner applies to a project's
// activated plugin list before target discovery.
package plugin

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/qlty-sh/qlty-core/internal/qerrors"
)

// Mode controls how an enabled plugin's issues affect the run's outcome.
type Mode string

const (
	ModeBlock    Mode = "block"
	ModeComment  Mode = "comment"
	ModeMonitor  Mode = "monitor"
	ModeDisabled Mode = "disabled"
)

// Sentinel version strings resolved only at planning time.
const (
	VersionLatest    = "latest"
	VersionKnownGood = "known_good"
)

// IsSentinel reports whether v is a version sentinel rather than a literal.
func IsSentinel(v string) bool {
	return v == VersionLatest || v == VersionKnownGood
}

// FetchDirective names a single URL->relative-path fetch the plugin
// declares for its config staging.
type FetchDirective struct {
	URL  string
	Path string
}

// ExtraPackage is a name+version pair installed alongside a plugin's
// primary package.
type ExtraPackage struct {
	Name    string
	Version string
}

// Driver is one invocation definition a plugin exposes (lint or fmt entry
// point); the core treats its command template and parser as opaque.
type Driver struct {
	Name           string
	Verb           string // "check" or "fmt"
	ScriptTpl      string
	SuccessCodes   []int
	ErrorCodes     []int
	TimeoutSeconds int // 0 means the Driver's default timeout applies

	// PrepareScript, if set, runs once before any invocation of this
	// driver, e.g. to generate a derived config file. InvocationLabel
	// dedupes this across plugins/prefixes that share the same prepare
	// step (empty means "dedupe by plugin+driver name" at the Executor).
	PrepareScript   string
	InvocationLabel string
}

// Definition is the immutable descriptor of an analyzer, as read from a
// plugin source repository.
type Definition struct {
	Name                       string
	LatestVersion              string
	KnownGoodVersion           string
	Drivers                    []Driver
	Runtime                    string // runtime tool name, empty if none
	ConfigFiles                []string
	ExportedConfigPaths        []string
	AffectsCache               []string
	PackageFile                string
	PackageFilters             []string
	ExtraPackages              []ExtraPackage
	Fetch                      []FetchDirective
	FileTypes                  []string
	PackageFileCandidate       string
	PackageFileCandidateFilter []string
	Environment                []EnvEntry
}

// EnvEntry is one PATH or non-PATH environment contribution a plugin or
// runtime declares for the tools it drives.
type EnvEntry struct {
	Name    string
	Value   string
	IsPATH  bool
}

// Enabled is a plugin activated in project configuration.
type Enabled struct {
	Name          string
	Prefix        string
	Mode          Mode
	Version       string // literal or sentinel until resolved
	PackageFile   string
	PackageFilters []string
	ExtraPackages []ExtraPackage
	AffectsCache  []string
	ConfigFiles   []string
	Triggers      []string
	Drivers       []string // override list of driver names, empty = all
}

// Validate enforces the mutual-exclusion invariants from the data model:
// package_file and extra_packages are mutually exclusive, and
// package_filters requires package_file.
func (e *Enabled) Validate() error {
	if e.PackageFile != "" && len(e.ExtraPackages) > 0 {
		return qerrors.New(qerrors.CategoryConfig, fmt.Sprintf("plugin %q: package_file and extra_packages are mutually exclusive", e.Name)).
			WithCode(qerrors.CodeConfigParse)
	}
	if len(e.PackageFilters) > 0 && e.PackageFile == "" {
		return qerrors.New(qerrors.CategoryConfig, fmt.Sprintf("plugin %q: package_filters requires package_file", e.Name)).
			WithCode(qerrors.CodeConfigParse)
	}
	return nil
}

// key groups enabled plugins for the merge-duplicates step: (name, prefix).
type key struct {
	name   string
	prefix string
}

// MergeDuplicates merges a raw list of Enabled entries from possibly
// multiple config sources by (name, prefix), applying the Planner's
// field-level last-wins rule with the literal-beats-sentinel exception for
// Version.
func MergeDuplicates(raw []Enabled) []Enabled {
	order := make([]key, 0, len(raw))
	merged := make(map[key]Enabled, len(raw))

	for _, e := range raw {
		k := key{name: e.Name, prefix: e.Prefix}
		existing, seen := merged[k]
		if !seen {
			merged[k] = e
			order = append(order, k)
			continue
		}
		merged[k] = mergeOne(existing, e)
	}

	out := make([]Enabled, 0, len(order))
	for _, k := range order {
		out = append(out, merged[k])
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		if out[i].Prefix != out[j].Prefix {
			return out[i].Prefix < out[j].Prefix
		}
		return out[i].Version < out[j].Version
	})

	return out
}

// mergeOne applies last-wins-per-field to base (earlier occurrence) and next
// (later occurrence), except for Version, which follows the
// literal-beats-sentinel rule.
func mergeOne(base, next Enabled) Enabled {
	result := next // last occurrence wins for every field by default

	switch {
	case IsSentinel(next.Version) && !IsSentinel(base.Version) && base.Version != "":
		// an earlier literal beats a later sentinel
		result.Version = base.Version
	case !IsSentinel(next.Version) && !IsSentinel(base.Version) && base.Version != "" && next.Version != "" && base.Version != next.Version:
		// both literal and differ: later wins, already the default
		slog.Warn("conflicting plugin versions, using the later activation",
			"plugin", next.Name, "earlier", base.Version, "later", next.Version)
	}

	return result
}

// ResolveSentinel replaces a sentinel version with the concrete value the
// plugin definition declares, erroring if that value is itself absent.
func ResolveSentinel(version string, def Definition) (string, error) {
	switch version {
	case VersionLatest:
		if def.LatestVersion == "" {
			return "", qerrors.New(qerrors.CategoryConfig, fmt.Sprintf("plugin %q: latest_version unresolvable", def.Name)).
				WithCode(qerrors.CodeInvalidVersion)
		}
		return def.LatestVersion, nil
	case VersionKnownGood:
		if def.KnownGoodVersion == "" {
			return "", qerrors.New(qerrors.CategoryConfig, fmt.Sprintf("plugin %q: known_good_version unresolvable", def.Name)).
				WithCode(qerrors.CodeInvalidVersion)
		}
		return def.KnownGoodVersion, nil
	default:
		return version, nil
	}
}
