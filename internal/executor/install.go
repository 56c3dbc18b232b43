package executor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/qlty-sh/qlty-core/internal/fingerprint"
	"github.com/qlty-sh/qlty-core/internal/planner"
	"github.com/qlty-sh/qlty-core/internal/tool"
)

// installTools runs §4.7 step 1: a semaphore-bounded pool installs every
// Tool a runnable plan references. Runtimes install in their own pool pass
// before the package tools that depend on them, mirroring §5's "tool
// installs of a runtime precede its packages" ordering guarantee without
// requiring a dependency graph (a Tool only ever depends on its own single
// Runtime pointer, never another package tool).
func installTools(ctx context.Context, in Input, jobs int) (map[string]bool, []string, error) {
	names := uniqueToolNames(in.Plans)

	resolved := make(map[string]*tool.Tool, len(names))
	var runtimes, others []string
	for _, name := range names {
		t, ok := in.Resolve(name)
		if !ok {
			continue
		}
		resolved[name] = t
		if t.ToolKind() == tool.KindRuntime {
			runtimes = append(runtimes, name)
		} else {
			others = append(others, name)
		}
	}

	disabled := make(map[string]bool)
	var messages []string

	if err := installPool(ctx, in, jobs, runtimes, resolved, disabled, &messages); err != nil {
		return disabled, messages, err
	}
	if err := installPool(ctx, in, jobs, others, resolved, disabled, &messages); err != nil {
		return disabled, messages, err
	}

	return disabled, messages, nil
}

func uniqueToolNames(plans []planner.InvocationPlan) []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range plans {
		if !seen[p.ToolName] {
			seen[p.ToolName] = true
			out = append(out, p.ToolName)
		}
	}
	sort.Strings(out)
	return out
}

// installPool installs each named tool in names concurrently, bounded by
// jobs. Failures are collected under a mutex; when SkipErroredPlugins is
// set a failure disables that tool and becomes an install message instead
// of aborting the run.
func installPool(ctx context.Context, in Input, jobs int, names []string, resolved map[string]*tool.Tool, disabled map[string]bool, messages *[]string) error {
	if len(names) == 0 {
		return nil
	}

	sem := semaphore.NewWeighted(int64(jobs))
	var (
		mu      sync.Mutex
		firstErr error
		wg      sync.WaitGroup
	)

	for _, name := range names {
		t, ok := resolved[name]
		if !ok {
			continue
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Go(func() {
			defer sem.Release(1)

			runtimeFP := runtimeFingerprintOf(t)
			packageContents := packageFileContents(in, name)

			_, err := t.Setup(ctx, tool.Task{
				WorkspaceRoot: in.WorkspaceRoot,
				Logs:          in.Logs,
				Downloader:    in.Downloader,
			}, runtimeFP, packageContents)

			if err == nil {
				return
			}

			mu.Lock()
			defer mu.Unlock()
			if in.SkipErroredPlugins {
				disabled[name] = true
				*messages = append(*messages, fmt.Sprintf("disabling %s: install failed: %s", name, err))
				return
			}
			if firstErr == nil {
				firstErr = err
			}
		})
	}

	wg.Wait()
	return firstErr
}

func runtimeFingerprintOf(t *tool.Tool) fingerprint.Fingerprint {
	rt, ok := t.Runtime()
	if !ok {
		return ""
	}
	return rt.Fingerprint("", "")
}

// packageFileContents reads the enabled plugin's declared package_file
// relative to the workspace root, for fingerprinting. A missing or unset
// file contributes an empty string, matching a plugin with no package_file.
func packageFileContents(in Input, pluginName string) string {
	enabled, ok := in.Enabled[pluginName]
	if !ok || enabled.PackageFile == "" {
		return ""
	}
	data, err := os.ReadFile(filepath.Join(in.WorkspaceRoot, enabled.PackageFile))
	if err != nil {
		return ""
	}
	return string(data)
}
