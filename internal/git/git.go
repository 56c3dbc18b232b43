// Package git wraps go-git's clone/pull primitives for plugin-definition
// source repositories (spec.md §4.3): the arbitrary git URLs a project
// declares under sources, checked out under .qlty/sources/<name>.
package git

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/qlty-sh/qlty-core/internal/qerrors"
)

// CloneOptions configures clone behavior for a plugin source checkout.
type CloneOptions struct {
	// Branch pins the checkout to a branch name (a PluginSource's Ref),
	// resolved as refs/heads/<name>; tag names are not resolved. Empty
	// checks out the repository's default branch.
	Branch string
	// Depth shallow-clones to the given number of commits (0 = full
	// clone). Plugin sources only ever need the one ref a project names,
	// so a Branch always implies SingleBranch regardless of Depth.
	Depth int
}

// CloneURL clones the git repository at url into destPath.
func CloneURL(ctx context.Context, url, destPath string, opts *CloneOptions) error {
	slog.Debug("cloning plugin source", "url", url, "dest", destPath)

	cloneOpts := &git.CloneOptions{URL: url}
	if opts != nil {
		if opts.Depth > 0 {
			cloneOpts.Depth = opts.Depth
		}
		if opts.Branch != "" {
			cloneOpts.ReferenceName = plumbing.NewBranchReferenceName(opts.Branch)
			cloneOpts.SingleBranch = true
		}
	}

	if _, err := git.PlainCloneContext(ctx, destPath, false, cloneOpts); err != nil {
		if errors.Is(err, git.ErrRepositoryAlreadyExists) {
			return qerrors.Wrap(qerrors.CategoryRegistry, "plugin source already cloned", err).
				WithDetail("url", url).WithDetail("dest", destPath)
		}
		return qerrors.Wrap(qerrors.CategoryRegistry, "failed to clone plugin source", err).
			WithDetail("url", url).WithDetail("dest", destPath)
	}

	slog.Debug("clone completed", "url", url, "path", destPath)
	return nil
}

// PullPath fast-forwards the plugin source checked out at repoPath.
func PullPath(ctx context.Context, repoPath string) error {
	slog.Debug("pulling plugin source", "path", repoPath)

	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return qerrors.Wrap(qerrors.CategoryRegistry, "failed to open plugin source checkout", err).
			WithDetail("path", repoPath)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return qerrors.Wrap(qerrors.CategoryRegistry, "failed to get plugin source worktree", err).
			WithDetail("path", repoPath)
	}

	if err := wt.PullContext(ctx, &git.PullOptions{}); err != nil {
		if errors.Is(err, git.NoErrAlreadyUpToDate) {
			slog.Debug("plugin source already up-to-date", "path", repoPath)
			return nil
		}
		return qerrors.Wrap(qerrors.CategoryRegistry, "failed to pull plugin source", err).
			WithDetail("path", repoPath)
	}

	slog.Debug("pull completed", "path", repoPath)
	return nil
}

// CloneOrPullURL ensures url is checked out at destPath: pulls if a checkout
// already exists there, clones otherwise. This is the sole entry point
// internal/source.Manager.Sync uses, since a project resyncs the same
// sources directory on every run.
func CloneOrPullURL(ctx context.Context, url, destPath string, opts *CloneOptions) error {
	if Exists(destPath) {
		return PullPath(ctx, destPath)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return qerrors.Wrap(qerrors.CategoryRegistry, "failed to create plugin sources directory", err).
			WithDetail("dest", destPath)
	}

	return CloneURL(ctx, url, destPath, opts)
}

// Exists reports whether path already holds a git checkout.
func Exists(path string) bool {
	_, err := git.PlainOpen(path)
	return err == nil
}
