// Package source manages plugin-definition source repositories: git
// repositories referenced from project config, cloned into
// .qlty/sources/<name>, that hold the TOML/YAML files naming each plugin's
// drivers, file_types, and fetch URLs.
package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/qlty-sh/qlty-core/internal/git"
	"github.com/qlty-sh/qlty-core/internal/qerrors"
)

// PluginSource names a single plugin-definition source repository as
// declared in project config.
type PluginSource struct {
	Name string
	URL  string
	Ref  string // branch name (tags are not resolved); empty means the repository's default branch
}

// definitionExtensions are the file suffixes indexed as plugin definitions.
var definitionExtensions = []string{".toml", ".yaml", ".yml"}

// Repository wraps one cloned PluginSource checked out under dir.
type Repository struct {
	Source PluginSource
	dir    string
}

// Dir is the local working-copy path this source is checked out to.
func (r *Repository) Dir() string { return r.dir }

// Manager clones and indexes PluginSources under a sources root directory,
// conventionally "<workspace>/.qlty/sources".
type Manager struct {
	sourcesRoot string
}

// NewManager returns a Manager rooted at sourcesRoot.
func NewManager(sourcesRoot string) *Manager {
	return &Manager{sourcesRoot: sourcesRoot}
}

// Sync ensures src is cloned (or up to date) under <sourcesRoot>/<name>,
// returning the resulting Repository.
func (m *Manager) Sync(ctx context.Context, src PluginSource) (*Repository, error) {
	dir := filepath.Join(m.sourcesRoot, src.Name)
	repo := &Repository{Source: src, dir: dir}

	if err := git.CloneOrPullURL(ctx, src.URL, dir, &git.CloneOptions{Branch: src.Ref}); err != nil {
		return nil, qerrors.Wrap(qerrors.CategoryRegistry, fmt.Sprintf("failed to sync plugin source %s", src.Name), err).
			WithDetail("url", src.URL)
	}

	return repo, nil
}

// DefinitionFiles walks the repository and returns every plugin-definition
// file it finds (by extension), sorted for deterministic indexing order.
func (r *Repository) DefinitionFiles() ([]string, error) {
	var files []string
	err := filepath.WalkDir(r.dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		for _, ext := range definitionExtensions {
			if strings.EqualFold(filepath.Ext(path), ext) {
				files = append(files, path)
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, qerrors.Wrap(qerrors.CategoryRegistry, "failed to walk plugin source", err).WithDetail("dir", r.dir)
	}
	sort.Strings(files)
	return files, nil
}
