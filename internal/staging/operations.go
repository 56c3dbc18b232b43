package staging

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/qlty-sh/qlty-core/internal/qerrors"
	"github.com/qlty-sh/qlty-core/internal/tool/download"
)

// OperationType names one of the five config-file placement actions the
// Planner can emit.
type OperationType int

const (
	// CopyToStagingArea places source under the StagingArea's destination
	// directory, symlinked when cross-device copying isn't required.
	CopyToStagingArea OperationType = iota
	// CopyToWorkspaceRoot places source into the real workspace root,
	// used for plugins that export a config file other plugins consume.
	CopyToWorkspaceRoot
	// LoadFromQltyDir reads source from the project's .qlty directory.
	LoadFromQltyDir
	// CopyToToolInstall places source inside a tool's install directory,
	// always as a real copy (the install directory may be wiped and
	// reinstalled, which would orphan a symlink's target).
	CopyToToolInstall
	// FetchFile downloads source (a URL) to destination, always as a real
	// copy.
	FetchFile
)

func (t OperationType) String() string {
	switch t {
	case CopyToStagingArea:
		return "copy_to_staging_area"
	case CopyToWorkspaceRoot:
		return "copy_to_workspace_root"
	case LoadFromQltyDir:
		return "load_from_qlty_dir"
	case CopyToToolInstall:
		return "copy_to_tool_install"
	case FetchFile:
		return "fetch_file"
	default:
		return "unknown"
	}
}

// ConfigStagingOperation is a single file-placement step emitted by the
// Planner. Ordering among operations for the same plugin is significant and
// preserved end to end: Apply executes ops in slice order.
type ConfigStagingOperation struct {
	Source      string
	Destination string
	Operation   OperationType
}

// Deduplicate drops operations whose (Destination, Operation) pair repeats
// an earlier one, keeping the first occurrence and preserving relative
// order, per §3.2's "operations that would collide are deduplicated before
// execution".
func Deduplicate(ops []ConfigStagingOperation) []ConfigStagingOperation {
	type key struct {
		dest string
		op   OperationType
	}
	seen := make(map[key]bool, len(ops))
	out := make([]ConfigStagingOperation, 0, len(ops))
	for _, op := range ops {
		k := key{dest: op.Destination, op: op.Operation}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, op)
	}
	return out
}

// Apply executes ops in order against this StagingArea, using downloader
// for any FetchFile operations (may be nil if none are present).
// CopyToStagingArea produces a symlink when possible (falling back to a
// copy across devices); every other operation type produces a real copy,
// since their destinations outlive or sit outside the staging directory's
// own lifecycle.
func (s *StagingArea) Apply(ctx context.Context, ops []ConfigStagingOperation, downloader download.Downloader) error {
	for _, op := range ops {
		if err := s.applyOne(ctx, op, downloader); err != nil {
			return qerrors.Wrap(qerrors.CategoryStaging, fmt.Sprintf("config staging operation %s failed", op.Operation), err).
				WithCode(qerrors.CodeStagingIO).
				WithDetail("source", op.Source).
				WithDetail("destination", op.Destination)
		}
	}
	return nil
}

func (s *StagingArea) applyOne(ctx context.Context, op ConfigStagingOperation, downloader download.Downloader) error {
	if err := os.MkdirAll(filepath.Dir(op.Destination), 0o755); err != nil {
		return err
	}

	switch op.Operation {
	case CopyToStagingArea:
		if _, err := os.Lstat(op.Destination); err == nil {
			return nil
		}
		return symlinkOrCopy(op.Source, op.Destination)

	case CopyToWorkspaceRoot, LoadFromQltyDir, CopyToToolInstall:
		return copyTree(op.Source, op.Destination)

	case FetchFile:
		if downloader == nil {
			return qerrors.New(qerrors.CategoryStaging, "fetch_file operation with no downloader configured")
		}
		if _, err := os.Stat(op.Destination); err == nil {
			return nil
		}
		_, err := downloader.Fetch(ctx, op.Source, op.Destination)
		return err

	default:
		return fmt.Errorf("unknown staging operation type %d", op.Operation)
	}
}
