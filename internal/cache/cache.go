// Package cache implements the IssueCache (spec.md §4.6): a content-
// addressed, persistent store of (fingerprint -> FileResult) keyed by a hash
// over everything that could change a driver invocation's output for one
// target file.
package cache

import (
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"

	"github.com/qlty-sh/qlty-core/internal/issue"
	"github.com/qlty-sh/qlty-core/internal/qerrors"
)

// Cache reads and writes FileResult entries under <library>/<cache-dir>/issues/<fingerprint>.
type Cache struct {
	dir string
}

// New returns a Cache rooted at dir, creating it if absent. dir is expected
// to be the issues/ directory under a library's cache-dir, e.g.
// "<library>/.qlty/cache/issues".
func New(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, qerrors.Wrap(qerrors.CategoryCache, "failed to create cache directory", err).
			WithCode(qerrors.CodeCacheIO).WithDetail("dir", dir)
	}
	return &Cache{dir: dir}, nil
}

func (c *Cache) path(fingerprint string) string {
	return filepath.Join(c.dir, fingerprint)
}

// Get returns the FileResult stored under fingerprint, and false if no entry
// exists yet.
func (c *Cache) Get(fingerprint string) (issue.FileResult, bool, error) {
	data, err := os.ReadFile(c.path(fingerprint))
	if err != nil {
		if os.IsNotExist(err) {
			return issue.FileResult{}, false, nil
		}
		return issue.FileResult{}, false, qerrors.Wrap(qerrors.CategoryCache, "failed to read cache entry", err).
			WithCode(qerrors.CodeCacheIO).WithDetail("fingerprint", fingerprint)
	}

	var fr issue.FileResult
	if err := yaml.Unmarshal(data, &fr); err != nil {
		return issue.FileResult{}, false, qerrors.Wrap(qerrors.CategoryCache, "failed to decode cache entry", err).
			WithCode(qerrors.CodeCacheCorruptEntry).WithDetail("fingerprint", fingerprint)
	}
	return fr, true, nil
}

// Put writes fr under fingerprint, atomically (write to a sibling temp file,
// then rename) so a crash mid-write never leaves a corrupt entry visible.
func (c *Cache) Put(fingerprint string, fr issue.FileResult) error {
	data, err := yaml.Marshal(fr)
	if err != nil {
		return qerrors.Wrap(qerrors.CategoryCache, "failed to encode cache entry", err).
			WithCode(qerrors.CodeCacheIO).WithDetail("fingerprint", fingerprint)
	}

	dest := c.path(fingerprint)
	tmp := dest + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return qerrors.Wrap(qerrors.CategoryCache, "failed to write cache entry", err).
			WithCode(qerrors.CodeCacheIO).WithDetail("fingerprint", fingerprint)
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return qerrors.Wrap(qerrors.CategoryCache, "failed to commit cache entry", err).
			WithCode(qerrors.CodeCacheIO).WithDetail("fingerprint", fingerprint)
	}
	return nil
}
