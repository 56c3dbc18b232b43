// Package planner resolves a project's enabled plugins and a workspace into
// the InvocationPlans and ConfigStagingOperations the Executor runs, via a
// WorkspaceEntryFinder (target discovery) composed with the plugin
// merge/sentinel-resolution rules in internal/plugin.
package planner

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/qlty-sh/qlty-core/internal/qerrors"
)

// TargetMode selects which files a WorkspaceEntryFinder considers before
// matcher filtering narrows them further.
type TargetMode int

const (
	ModeAll TargetMode = iota
	ModePaths
	ModeUpstreamDiff
	ModeHeadDiff
	ModeIndex
	ModeIndexFile
	ModeSample
)

// WorkspaceEntry is one candidate file under consideration, identified by
// its absolute path.
type WorkspaceEntry struct {
	Path string // absolute
}

// WorkspaceEntrySource produces the initial candidate set for a TargetMode,
// before any WorkspaceEntryMatcher filtering.
type WorkspaceEntrySource interface {
	Entries() ([]WorkspaceEntry, error)
}

// AllSource walks the entire workspace tree, skipping VCS directories.
type AllSource struct {
	Root string
}

func (s AllSource) Entries() ([]WorkspaceEntry, error) {
	var entries []WorkspaceEntry
	err := filepath.WalkDir(s.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" || d.Name() == ".qlty" {
				return filepath.SkipDir
			}
			return nil
		}
		entries = append(entries, WorkspaceEntry{Path: path})
		return nil
	})
	if err != nil {
		return nil, qerrors.Wrap(qerrors.CategoryConfig, "failed to walk workspace", err)
	}
	return entries, nil
}

// ArgsSource takes an explicit list of paths (files or directories,
// resolved to absolute against root), expanding any directory into the
// files beneath it.
type ArgsSource struct {
	Root  string
	Paths []string
}

func (s ArgsSource) Entries() ([]WorkspaceEntry, error) {
	var entries []WorkspaceEntry
	for _, p := range s.Paths {
		abs := p
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(s.Root, p)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, qerrors.Wrap(qerrors.CategoryConfig, "target path not found", err).WithDetail("path", abs)
		}
		if !info.IsDir() {
			entries = append(entries, WorkspaceEntry{Path: abs})
			continue
		}
		sub, err := (AllSource{Root: abs}).Entries()
		if err != nil {
			return nil, err
		}
		entries = append(entries, sub...)
	}
	return entries, nil
}

// DiffSource takes a precomputed list of changed files (absolute paths),
// used for UpstreamDiff/HeadDiff/Index/IndexFile modes once the git diff
// has been computed.
type DiffSource struct {
	ChangedFiles []string
}

func (s DiffSource) Entries() ([]WorkspaceEntry, error) {
	entries := make([]WorkspaceEntry, 0, len(s.ChangedFiles))
	for _, f := range s.ChangedFiles {
		if _, err := os.Stat(f); err != nil {
			continue // deleted in the diff; nothing to lint
		}
		entries = append(entries, WorkspaceEntry{Path: f})
	}
	return entries, nil
}

// WorkspaceEntryMatcher filters one candidate WorkspaceEntry.
type WorkspaceEntryMatcher interface {
	Matches(e WorkspaceEntry) bool
}

// FileMatcher excludes directories and symlinks, keeping regular files.
type FileMatcher struct{}

func (FileMatcher) Matches(e WorkspaceEntry) bool {
	info, err := os.Lstat(e.Path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}

// PrefixMatcher keeps only entries under prefix.
type PrefixMatcher struct {
	Prefix string
}

func NewPrefixMatcher(root, prefix string) PrefixMatcher {
	return PrefixMatcher{Prefix: filepath.Join(root, prefix)}
}

func (m PrefixMatcher) Matches(e WorkspaceEntry) bool {
	rel, err := filepath.Rel(m.Prefix, e.Path)
	if err != nil {
		return false
	}
	return rel == "." || !strings.HasPrefix(rel, "..")
}

// GlobsMatcher keeps (or, if negate, drops) entries whose path matches any
// of globs. Patterns use doublestar syntax (`**`, `*`, `?`, `{a,b}`).
type GlobsMatcher struct {
	globs  []string
	negate bool
}

// NewGlobsMatcher builds a matcher for the given glob patterns. When negate
// is true, Matches returns true for paths that do NOT match any pattern
// (an exclusion group); when false, Matches returns true for paths that DO
// match at least one (an inclusion group).
func NewGlobsMatcher(globs []string, negate bool) GlobsMatcher {
	return GlobsMatcher{globs: globs, negate: negate}
}

func (m GlobsMatcher) Matches(e WorkspaceEntry) bool {
	matched := false
	base := filepath.Base(e.Path)
	for _, g := range m.globs {
		if ok, _ := doublestar.Match(g, e.Path); ok {
			matched = true
			break
		}
		if ok, _ := doublestar.Match(g, base); ok {
			matched = true
			break
		}
	}
	if m.negate {
		return !matched
	}
	return matched
}

// AndMatcher requires every sub-matcher to match.
type AndMatcher struct {
	Matchers []WorkspaceEntryMatcher
}

func (m AndMatcher) Matches(e WorkspaceEntry) bool {
	for _, sub := range m.Matchers {
		if !sub.Matches(e) {
			return false
		}
	}
	return true
}

// ignoreGroup is one run of ignore patterns sharing the same negation
// sense, as built by BuildIgnoreGroups.
type ignoreGroup struct {
	patterns []string
	negate   bool
}

// BuildIgnoreGroups splits a flat, ordered list of ignore glob patterns
// (each optionally `!`-prefixed) into alternating inclusion/exclusion
// groups: a run of plain patterns forms one exclusion group, a run of
// `!`-prefixed patterns forms one inclusion (negated) group, and a
// transition between the two starts a new group. This mirrors the
// file_patterns grouping rule from §4.5 step 4 exactly: "successive
// `!`-prefixed patterns group together, and inclusion/exclusion alternates".
func BuildIgnoreGroups(patternLists [][]string) []GlobsMatcher {
	var groups []ignoreGroup

	startsNegated := false
	for _, patterns := range patternLists {
		if len(patterns) > 0 && strings.HasPrefix(patterns[0], "!") {
			startsNegated = true
		}
		break
	}

	current := ignoreGroup{negate: startsNegated}

	flush := func() {
		if len(current.patterns) > 0 {
			groups = append(groups, current)
		}
	}

	for _, patterns := range patternLists {
		if len(patterns) == 0 {
			continue
		}
		for _, raw := range patterns {
			if neg, ok := strings.CutPrefix(raw, "!"); ok {
				if current.negate {
					current.patterns = append(current.patterns, neg)
				} else {
					flush()
					current = ignoreGroup{patterns: []string{neg}, negate: true}
				}
			} else if current.negate {
				flush()
				current = ignoreGroup{patterns: []string{raw}, negate: false}
			} else {
				current.patterns = append(current.patterns, raw)
			}
		}
	}
	flush()

	matchers := make([]GlobsMatcher, 0, len(groups))
	for _, g := range groups {
		matchers = append(matchers, NewGlobsMatcher(g.patterns, g.negate))
	}
	return matchers
}

// IgnoreGroupsMatcher applies ignore groups in order, gitignore-style: a
// path matching a plain group is excluded, a later `!` group it matches
// re-includes it, and a path no group matches is kept.
type IgnoreGroupsMatcher struct {
	Groups []GlobsMatcher
}

func (m IgnoreGroupsMatcher) Matches(e WorkspaceEntry) bool {
	excluded := false
	for _, g := range m.Groups {
		if g.Matches(e) != g.negate { // raw pattern match, whatever the group's sense
			excluded = !g.negate
		}
	}
	return !excluded
}

// WorkspaceEntryFinder composes a source and a matcher to produce the final
// target list for one InvocationPlan.
type WorkspaceEntryFinder struct {
	Source  WorkspaceEntrySource
	Matcher WorkspaceEntryMatcher
}

func NewWorkspaceEntryFinder(source WorkspaceEntrySource, matcher WorkspaceEntryMatcher) *WorkspaceEntryFinder {
	return &WorkspaceEntryFinder{Source: source, Matcher: matcher}
}

// Find returns every entry that both the source yields and the matcher
// accepts, sorted by path for determinism.
func (f *WorkspaceEntryFinder) Find() ([]WorkspaceEntry, error) {
	candidates, err := f.Source.Entries()
	if err != nil {
		return nil, err
	}

	matched := make([]WorkspaceEntry, 0, len(candidates))
	for _, c := range candidates {
		if f.Matcher.Matches(c) {
			matched = append(matched, c)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Path < matched[j].Path })
	return matched, nil
}
