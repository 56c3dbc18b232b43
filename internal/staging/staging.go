// Package staging implements the StagingArea: a shadow workspace that
// invocations run against instead of the real workspace root, so that
// config files a plugin needs to see can be placed without mutating the
// project and formatted-file output can be diffed against the original.
package staging

import (
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/qlty-sh/qlty-core/internal/qerrors"
)

// Mode selects how the StagingArea's destination directory relates to the
// workspace root.
type Mode int

const (
	// ModeSource stages into a sibling temp directory; staged entries are
	// symlinked from the workspace so invocations read real file content
	// without the workspace itself being touched.
	ModeSource Mode = iota
	// ModeTargetDirectory runs invocations directly against the workspace
	// root; nothing is copied or linked.
	ModeTargetDirectory
	// ModeTempDirectory stages into a fresh temp directory; staged entries
	// are copied rather than linked (needed when a driver mutates files
	// in place and the workspace must stay untouched, e.g. a dry-run fmt).
	ModeTempDirectory
)

// StagingArea is a shadow workspace rooted at DestinationDir. Invocation
// directories and config files are placed relative to it rather than the
// real workspace root.
type StagingArea struct {
	mode            Mode
	workspaceRoot   string
	destinationDir  string
	ownsDestination bool
}

// New constructs a StagingArea for mode, for the workspace at workspaceRoot.
// ModeSource creates a fresh directory beside the workspace (in its parent
// directory) and ModeTempDirectory one under the OS temp directory;
// Cleanup removes it. For ModeTargetDirectory the destination is the
// workspace root itself and Cleanup is a no-op.
func New(mode Mode, workspaceRoot string) (*StagingArea, error) {
	switch mode {
	case ModeTargetDirectory:
		return &StagingArea{mode: mode, workspaceRoot: workspaceRoot, destinationDir: workspaceRoot}, nil

	case ModeSource:
		parent := filepath.Dir(workspaceRoot)
		dir, err := os.MkdirTemp(parent, ".qlty-staging-")
		if err != nil {
			return nil, qerrors.Wrap(qerrors.CategoryStaging, "failed to create source staging directory", err)
		}
		return &StagingArea{mode: mode, workspaceRoot: workspaceRoot, destinationDir: dir, ownsDestination: true}, nil

	case ModeTempDirectory:
		dir, err := os.MkdirTemp("", "qlty-staging-")
		if err != nil {
			return nil, qerrors.Wrap(qerrors.CategoryStaging, "failed to create temp staging directory", err)
		}
		return &StagingArea{mode: mode, workspaceRoot: workspaceRoot, destinationDir: dir, ownsDestination: true}, nil

	default:
		return nil, qerrors.New(qerrors.CategoryStaging, fmt.Sprintf("unknown staging mode %d", mode))
	}
}

// DestinationDir is the root invocations should treat as the workspace.
func (s *StagingArea) DestinationDir() string { return s.destinationDir }

// Mode reports the mode this StagingArea was constructed with.
func (s *StagingArea) Mode() Mode { return s.mode }

// Stage ensures path (absolute, under the workspace root) is reachable from
// the destination root, without altering the workspace, and returns the
// corresponding path under the destination. In ModeTargetDirectory the
// workspace root IS the destination, so path is returned unchanged.
func (s *StagingArea) Stage(path string) (string, error) {
	if s.mode == ModeTargetDirectory {
		return path, nil
	}

	rel, err := filepath.Rel(s.workspaceRoot, path)
	if err != nil {
		return "", qerrors.Wrap(qerrors.CategoryStaging, "path is not under the workspace root", err).
			WithDetail("path", path).WithDetail("workspace_root", s.workspaceRoot)
	}

	dest := filepath.Join(s.destinationDir, rel)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", qerrors.Wrap(qerrors.CategoryStaging, "failed to prepare staging parent directory", err).WithCode(qerrors.CodeStagingIO)
	}

	if _, err := os.Lstat(dest); err == nil {
		return dest, nil
	}

	switch s.mode {
	case ModeSource:
		if err := symlinkOrCopy(path, dest); err != nil {
			return "", qerrors.Wrap(qerrors.CategoryStaging, "failed to stage path", err).WithCode(qerrors.CodeStagingIO).WithDetail("path", path)
		}
	case ModeTempDirectory:
		if err := copyTree(path, dest); err != nil {
			return "", qerrors.Wrap(qerrors.CategoryStaging, "failed to stage path", err).WithCode(qerrors.CodeStagingIO).WithDetail("path", path)
		}
	}

	return dest, nil
}

// Cleanup tears down the staging directory this StagingArea created. It is
// a no-op in ModeTargetDirectory, where the destination is the workspace
// root itself and must never be removed.
func (s *StagingArea) Cleanup() error {
	if !s.ownsDestination {
		return nil
	}
	slog.Debug("cleaning up staging area", "dir", s.destinationDir)
	if err := os.RemoveAll(s.destinationDir); err != nil && !os.IsNotExist(err) {
		return qerrors.Wrap(qerrors.CategoryStaging, "failed to clean up staging directory", err)
	}
	return nil
}

// symlinkOrCopy links dest to src, falling back to a full copy when the
// link fails (e.g. crossing a filesystem boundary the OS won't symlink
// across, or on platforms lacking symlink support for this path type).
func symlinkOrCopy(src, dest string) error {
	if err := os.Symlink(src, dest); err != nil {
		return copyTree(src, dest)
	}
	return nil
}

func copyTree(src, dest string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return copyFile(src, dest, info.Mode())
	}

	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		return copyFile(path, target, info.Mode())
	})
}

func copyFile(src, dest string, mode fs.FileMode) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}

	destFile, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer destFile.Close()

	_, err = io.Copy(destFile, srcFile)
	return err
}
