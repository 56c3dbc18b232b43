package planner

import (
	"bufio"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/qlty-sh/qlty-core/internal/qerrors"
)

// GitDiff is the resolved changed-file set for a diff-based TargetMode.
type GitDiff struct {
	ChangedFiles []string // absolute paths

	// ChangedLines maps an absolute path to the set of 1-based line numbers
	// added or modified relative to the diff's base, for DiffLineFilter
	// (spec.md §4.9 step 3). A path with no entry here but present in
	// ChangedFiles is treated as "keep every line" (e.g. IndexFile mode,
	// which names files only).
	ChangedLines map[string]map[int]bool
}

// ComputeGitDiff resolves the changed-file set for mode against root.
// upstreamRef is only consulted for ModeUpstreamDiff; indexFilePath only
// for ModeIndexFile.
func ComputeGitDiff(mode TargetMode, root, upstreamRef, indexFilePath string) (*GitDiff, error) {
	switch mode {
	case ModeHeadDiff, ModeIndex:
		return workingTreeDiff(root)
	case ModeUpstreamDiff:
		return upstreamDiff(root, upstreamRef)
	case ModeIndexFile:
		return indexFileDiff(root, indexFilePath)
	default:
		return &GitDiff{}, nil
	}
}

// workingTreeDiff reports every file with uncommitted changes (staged or
// unstaged) against HEAD, used for both HeadDiff ("what have I changed
// since my last commit") and, as a simplification, Index ("what's staged")
// since go-git's Status already merges both into one view.
func workingTreeDiff(root string) (*GitDiff, error) {
	repo, err := git.PlainOpen(root)
	if err != nil {
		return nil, qerrors.Wrap(qerrors.CategoryConfig, "failed to open git repository", err).WithDetail("root", root)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, qerrors.Wrap(qerrors.CategoryConfig, "failed to get worktree", err)
	}

	status, err := wt.Status()
	if err != nil {
		return nil, qerrors.Wrap(qerrors.CategoryConfig, "failed to compute git status", err)
	}

	headRef, err := repo.Head()
	if err != nil {
		return nil, qerrors.Wrap(qerrors.CategoryConfig, "failed to resolve HEAD", err)
	}
	headCommit, err := repo.CommitObject(headRef.Hash())
	if err != nil {
		return nil, qerrors.Wrap(qerrors.CategoryConfig, "failed to load HEAD commit", err)
	}
	headTree, err := headCommit.Tree()
	if err != nil {
		return nil, qerrors.Wrap(qerrors.CategoryConfig, "failed to load HEAD tree", err)
	}

	var files []string
	lines := make(map[string]map[int]bool)
	for path, s := range status {
		if s.Worktree == git.Deleted || s.Staging == git.Deleted {
			continue
		}
		if s.Worktree == git.Unmodified && s.Staging == git.Unmodified {
			continue
		}
		abs := filepath.Join(root, path)
		files = append(files, abs)

		newContent, err := os.ReadFile(abs)
		if err != nil {
			continue // unreadable (e.g. binary-ish race), keep file without line data
		}
		oldContent := ""
		if f, err := headTree.File(path); err == nil {
			if c, err := f.Contents(); err == nil {
				oldContent = c
			}
		}
		lines[abs] = addedLines(oldContent, string(newContent))
	}
	return &GitDiff{ChangedFiles: files, ChangedLines: lines}, nil
}

// upstreamDiff compares HEAD's tree against upstreamRef's tree, returning
// files that were added or modified (not deleted, since those have no
// content left to lint).
func upstreamDiff(root, upstreamRef string) (*GitDiff, error) {
	repo, err := git.PlainOpen(root)
	if err != nil {
		return nil, qerrors.Wrap(qerrors.CategoryConfig, "failed to open git repository", err).WithDetail("root", root)
	}

	headRef, err := repo.Head()
	if err != nil {
		return nil, qerrors.Wrap(qerrors.CategoryConfig, "failed to resolve HEAD", err)
	}
	headCommit, err := repo.CommitObject(headRef.Hash())
	if err != nil {
		return nil, qerrors.Wrap(qerrors.CategoryConfig, "failed to load HEAD commit", err)
	}
	headTree, err := headCommit.Tree()
	if err != nil {
		return nil, qerrors.Wrap(qerrors.CategoryConfig, "failed to load HEAD tree", err)
	}

	upstreamHash, err := repo.ResolveRevision(plumbing.Revision(upstreamRef))
	if err != nil {
		return nil, qerrors.Wrap(qerrors.CategoryConfig, "failed to resolve upstream ref", err).WithDetail("ref", upstreamRef)
	}
	upstreamCommit, err := repo.CommitObject(*upstreamHash)
	if err != nil {
		return nil, qerrors.Wrap(qerrors.CategoryConfig, "failed to load upstream commit", err)
	}
	upstreamTree, err := upstreamCommit.Tree()
	if err != nil {
		return nil, qerrors.Wrap(qerrors.CategoryConfig, "failed to load upstream tree", err)
	}

	changes, err := upstreamTree.Diff(headTree)
	if err != nil {
		return nil, qerrors.Wrap(qerrors.CategoryConfig, "failed to diff trees", err)
	}

	var files []string
	lines := make(map[string]map[int]bool)
	for _, c := range changes {
		from, to, err := c.Files()
		if err != nil {
			continue
		}
		if to == nil {
			continue // pure deletion
		}
		abs := filepath.Join(root, to.Name)
		files = append(files, abs)

		newContent, err := to.Contents()
		if err != nil {
			continue
		}
		oldContent := ""
		if from != nil {
			if c, err := from.Contents(); err == nil {
				oldContent = c
			}
		}
		lines[abs] = addedLines(oldContent, newContent)
	}
	return &GitDiff{ChangedFiles: files, ChangedLines: lines}, nil
}

// indexFileDiff reads a newline-separated list of paths from a file, used
// by ModeIndexFile for CI systems that precompute the changed-file set.
func indexFileDiff(root, indexFilePath string) (*GitDiff, error) {
	f, err := os.Open(indexFilePath)
	if err != nil {
		return nil, qerrors.Wrap(qerrors.CategoryConfig, "failed to open index file", err).WithDetail("path", indexFilePath)
	}
	defer f.Close()

	var files []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		if !filepath.IsAbs(line) {
			line = filepath.Join(root, line)
		}
		files = append(files, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, qerrors.Wrap(qerrors.CategoryConfig, "failed to read index file", err)
	}
	return &GitDiff{ChangedFiles: files}, nil
}
