// Package tool implements the Tool abstraction: the thing the core
// provisions before any Driver can run it. A Tool is one of five tagged
// variants (Runtime, RuntimePackage, Download, GitHubRelease, NullTool)
// sharing a common install/validate/env lifecycle.
package tool

import (
	"fmt"
	"path/filepath"
	"regexp"

	"github.com/qlty-sh/qlty-core/internal/fingerprint"
	"github.com/qlty-sh/qlty-core/internal/plugin"
	"github.com/qlty-sh/qlty-core/internal/tool/checksum"
)

// Kind tags which install strategy a Tool uses.
type Kind int

const (
	KindRuntime Kind = iota
	KindRuntimePackage
	KindDownload
	KindGitHubRelease
	KindNull
)

func (k Kind) String() string {
	switch k {
	case KindRuntime:
		return "runtime"
	case KindRuntimePackage:
		return "runtime_package"
	case KindDownload:
		return "download"
	case KindGitHubRelease:
		return "github_release"
	case KindNull:
		return "null"
	default:
		return "unknown"
	}
}

// System identifies an install target by OS and CPU architecture, using Go's
// own GOOS/GOARCH spelling (linux/darwin/windows, amd64/arm64).
type System struct {
	OS   string
	Arch string
}

// Key returns the "os/arch" form used to index DownloadDef.URLs.
func (s System) Key() string {
	return s.OS + "/" + s.Arch
}

// DownloadDef carries a Download Tool's per-system fetch/extract
// configuration.
type DownloadDef struct {
	// URLs maps a System.Key() (e.g. "linux/amd64") to a download URL.
	URLs map[string]string
	// Checksum, if non-nil, is verified against the downloaded file.
	Checksum *checksum.Spec
	// ArchiveType overrides auto-detection from the URL's extension; empty
	// means auto-detect.
	ArchiveType string
	// StripComponents is carried from the plugin definition; extraction
	// does not apply it, so archive entries keep every leading path segment.
	StripComponents int
	// BinaryName is carried from the plugin definition; extraction does not
	// read it, so extracted files keep their archive-relative names.
	BinaryName string
}

// GitHubReleaseDef carries a GitHubRelease Tool's repository coordinates.
type GitHubReleaseDef struct {
	Owner string
	Repo  string
	// TagPrefix is stripped from the resolved tag to recover the plugin's
	// version string, e.g. "cli-v" for "cli-v2.62.0".
	TagPrefix string
}

// Spec is the declarative description of a Tool, resolved from a Plugin
// Definition plus an EnabledPlugin by the time it reaches this package.
type Spec struct {
	Name    string
	Version string
	Kind    Kind

	// Runtime is the owning reference to this tool's runtime, set only for
	// RuntimePackage tools. Ownership runs Tool -> Runtime only; a Runtime
	// never references the packages installed against it.
	Runtime *Tool

	// RuntimePackage fields.
	PackageName            string
	ExtraPackages          []plugin.ExtraPackage
	PackageFile            string
	PackageFilters         []string
	PackageInstallCommands []string
	PackageFileInstallCmds []string

	// Runtime fields.
	RuntimeInstallCommands []string

	Download      *DownloadDef
	GitHubRelease *GitHubReleaseDef

	VersionCommand []string
	VersionRegex   string

	InstallMaxRetries int

	Env []plugin.EnvEntry

	PreInstall  func() error
	PostInstall func() error
}

const defaultVersionRegex = `v?(\d+\.\d+\.\d+)`

func (s Spec) versionRegex() string {
	if s.VersionRegex != "" {
		return s.VersionRegex
	}
	return defaultVersionRegex
}

// Tool is a fully-resolved, installable unit.
type Tool struct {
	spec        Spec
	globalCache string

	// lastKnownDir caches the most recently resolved install directory so
	// that a RuntimePackage tool's PATH/${runtime} interpolation can read
	// its owning Runtime's directory without recomputing the Runtime's
	// fingerprint on every env() call. Set by SetDirectory once Setup has
	// resolved the directory.
	lastKnownDir string

	// lastLogPath is the install log written by the most recent
	// installWithRetry attempt, read back by reportFailure to tail on
	// failure.
	lastLogPath string
}

// SetDirectory records dir as this tool's resolved install directory, for
// later PATH/${runtime} interpolation by tools that reference it.
func (t *Tool) SetDirectory(dir string) {
	t.lastKnownDir = dir
}

// New builds a Tool from spec, rooted at globalCache (the directory under
// which all tool install directories and lockfiles live).
func New(spec Spec, globalCache string) *Tool {
	return &Tool{spec: spec, globalCache: globalCache}
}

// Name is the plugin name this tool was resolved from.
func (t *Tool) Name() string { return t.spec.Name }

// Version returns the declared version, or "" if the tool has none (e.g.
// NullTool, or a Runtime resolved to "system").
func (t *Tool) Version() (string, bool) {
	return t.spec.Version, t.spec.Version != ""
}

// ToolKind reports which variant this tool is.
func (t *Tool) ToolKind() Kind { return t.spec.Kind }

// Runtime returns the owning runtime Tool, if this is a RuntimePackage Tool.
func (t *Tool) Runtime() (*Tool, bool) {
	return t.spec.Runtime, t.spec.Runtime != nil
}

// Fingerprint computes this tool's content-addressed identity. Callers
// supply the runtime's own fingerprint (empty for a Runtime tool) since
// Tool does not recursively fingerprint its Runtime pointer itself — the
// caller controls that traversal order (see fingerprint.Input's
// RuntimeFingerprint field).
func (t *Tool) Fingerprint(runtimeFingerprint fingerprint.Fingerprint, packageFileContents string) fingerprint.Fingerprint {
	extras := make([]fingerprint.Package, len(t.spec.ExtraPackages))
	for i, p := range t.spec.ExtraPackages {
		extras[i] = fingerprint.Package{Name: p.Name, Version: p.Version}
	}
	return fingerprint.Compute(fingerprint.Input{
		RuntimeFingerprint: runtimeFingerprint,
		Package:            fingerprint.Package{Name: t.spec.Name, Version: t.spec.Version},
		ExtraPackages:      extras,
		PackageFile:        packageFileContents,
		PackageFilters:     t.spec.PackageFilters,
	})
}

// Directory derives this tool's install directory:
// <globalCache>/tools/<name>/<version-or-"generic">-<fingerprint>.
func (t *Tool) Directory(fp fingerprint.Fingerprint) string {
	version := t.spec.Version
	if version == "" {
		version = "generic"
	}
	return filepath.Join(t.globalCache, "tools", t.spec.Name, fmt.Sprintf("%s-%s", version, fp))
}

// expectedVersion extracts the comparable version token from the tool's
// declared version using the same regex validate() uses against the
// version command's output, so "1.60.0" and "v1.60.0" compare equal.
func (t *Tool) expectedVersion() (string, error) {
	re, err := regexp.Compile(t.spec.versionRegex())
	if err != nil {
		return "", fmt.Errorf("compile version_regex %q: %w", t.spec.versionRegex(), err)
	}
	m := re.FindStringSubmatch(t.spec.Version)
	if m == nil {
		return t.spec.Version, nil
	}
	return m[len(m)-1], nil
}
