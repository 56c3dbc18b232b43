// Package driver implements one analyzer invocation (spec.md §4.8): building
// a shell command from a plugin.Driver's template, spawning it with a
// timeout, mapping its exit code to an ExitResult, handing its output to a
// parser, and normalizing the resulting issues.
package driver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/qlty-sh/qlty-core/internal/interp"
	"github.com/qlty-sh/qlty-core/internal/issue"
	"github.com/qlty-sh/qlty-core/internal/qerrors"
)

// DefaultTimeout applies when a Driver declares no TimeoutSeconds.
const DefaultTimeout = 5 * time.Minute

// DefaultMaxArgBytes bounds one shell command's joined target-list length,
// chosen well below common OS argv limits (ARG_MAX is 128KiB+ on Linux/
// macOS, but shells and env also consume argv space).
const DefaultMaxArgBytes = 32 * 1024

// Vars are the substitution values available inside a ScriptTpl, per §4.8
// step 1: ${target}, ${linter}, ${runtime}, ${cachedir}, ${env.X}.
type Vars struct {
	Targets  []string
	Linter   string
	Runtime  string
	CacheDir string
}

// BuildCommand expands tpl's `${...}` tokens against v. Unresolvable tokens
// are left verbatim, matching internal/tool's interpolation behavior.
func BuildCommand(tpl string, v Vars) string {
	return interp.Expand(tpl, func(token string) (string, bool) {
		switch {
		case token == "target":
			return strings.Join(v.Targets, " "), true
		case token == "linter":
			return v.Linter, true
		case token == "runtime":
			return v.Runtime, true
		case token == "cachedir":
			return v.CacheDir, true
		case strings.HasPrefix(token, "env."):
			return os.Getenv(strings.TrimPrefix(token, "env.")), true
		default:
			return "", false
		}
	})
}

// ChunkTargets splits targets into groups whose joined length (plus one
// separating space per element) stays under maxArgBytes, so a single
// `${target}` expansion never exceeds the host's argv limit. A single
// target longer than maxArgBytes still gets its own one-element chunk.
func ChunkTargets(targets []string, maxArgBytes int) [][]string {
	if maxArgBytes <= 0 {
		maxArgBytes = DefaultMaxArgBytes
	}

	var chunks [][]string
	var current []string
	size := 0

	for _, t := range targets {
		add := len(t) + 1
		if len(current) > 0 && size+add > maxArgBytes {
			chunks = append(chunks, current)
			current = nil
			size = 0
		}
		current = append(current, t)
		size += add
	}
	if len(current) > 0 {
		chunks = append(chunks, current)
	}
	return chunks
}

// InvocationDirKind mirrors planner.InvocationDirectory without importing
// internal/planner, keeping driver a leaf package the Executor adapts into.
type InvocationDirKind int

const (
	DirRoot InvocationDirKind = iota
	DirTargetRelative
	DirToolInstall
)

// ResolveWorkDir picks the working directory a command is spawned in.
func ResolveWorkDir(kind InvocationDirKind, workspaceRoot, targetPath, toolInstallDir string) string {
	switch kind {
	case DirTargetRelative:
		if targetPath == "" {
			return workspaceRoot
		}
		return filepath.Dir(targetPath)
	case DirToolInstall:
		return toolInstallDir
	default:
		return workspaceRoot
	}
}

// ExitResult classifies a completed invocation's exit code.
type ExitResult string

const (
	ExitSuccess      ExitResult = "success"
	ExitNoIssues     ExitResult = "no_issues"
	ExitKnownError   ExitResult = "known_error"
	ExitUnknownError ExitResult = "unknown_error"
)

// ClassifyExit maps an exit code to an ExitResult using a driver's declared
// success_codes / error_codes. error_codes take precedence, since a tool may
// reuse an exit code for both "ran, found nothing" and a documented error
// family is never the case in practice but the precedence keeps the mapping
// deterministic either way. Among success codes, 0 is distinguished as
// NoIssues (a clean run); any other declared success code means the tool
// ran fine but reported findings (e.g. rubocop's exit 1).
func ClassifyExit(exitCode int, successCodes, errorCodes []int) ExitResult {
	if containsInt(errorCodes, exitCode) {
		return ExitKnownError
	}
	if containsInt(successCodes, exitCode) {
		if exitCode == 0 {
			return ExitNoIssues
		}
		return ExitSuccess
	}
	return ExitUnknownError
}

func containsInt(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

// Parser turns one invocation's raw output into normalized issues. Concrete
// parsers (JSON, XML, SARIF, LCOV, regex-over-text) are language- and
// tool-specific and live outside the core; the core treats them as black
// boxes given this signature.
type Parser func(pluginName string, output []byte) ([]issue.Issue, error)

// Input is everything one Invoke call needs to run a single driver
// invocation to completion.
type Input struct {
	PluginName     string
	DriverName     string
	ScriptTpl      string
	SuccessCodes   []int
	ErrorCodes     []int
	Mode           string
	Vars           Vars
	Targets        []string
	DirKind        InvocationDirKind
	WorkspaceRoot  string
	StagingRoot    string
	ToolInstallDir string
	Env            []string
	Timeout        time.Duration
	MaxArgBytes    int
	Parser         Parser
}

// Result is one Invoke call's outcome, shaped to feed directly into
// issue.InvocationResult once the Executor merges per-chunk results.
type Result struct {
	Status   issue.Status
	ExitCode int
	Stdout   string
	Stderr   string
	Issues   []issue.Issue
	Elapsed  time.Duration
}

// Invoke builds the command, chunks targets if needed, spawns each chunk in
// sequence, and merges their output into one Result. A parse error on an
// otherwise-successful exit downgrades the result's Status to ParseError,
// per §4.8 step 4.
func Invoke(ctx context.Context, in Input) (Result, error) {
	chunks := ChunkTargets(in.Targets, in.MaxArgBytes)
	if len(chunks) == 0 {
		chunks = [][]string{nil}
	}

	timeout := in.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	var merged Result
	merged.Status = issue.StatusSuccess

	for _, chunk := range chunks {
		vars := in.Vars
		vars.Targets = chunk

		workDir := ResolveWorkDir(in.DirKind, in.WorkspaceRoot, firstOrEmpty(chunk), in.ToolInstallDir)
		command := BuildCommand(in.ScriptTpl, vars)

		start := time.Now()
		spawnResult, err := spawn(ctx, spawnInput{Command: command, WorkDir: workDir, Env: in.Env, Timeout: timeout})
		elapsed := time.Since(start)
		merged.Elapsed += elapsed

		if err != nil {
			return merged, qerrors.Wrap(qerrors.CategoryDriver, "failed to spawn driver invocation", err).
				WithCode(qerrors.CodeDriverSpawnFailed).WithDetail("plugin", in.PluginName).WithDetail("driver", in.DriverName)
		}

		merged.Stdout += spawnResult.Stdout
		merged.Stderr += spawnResult.Stderr
		merged.ExitCode = spawnResult.ExitCode

		exitResult := ClassifyExit(spawnResult.ExitCode, in.SuccessCodes, in.ErrorCodes)
		if exitResult == ExitKnownError || exitResult == ExitUnknownError {
			merged.Status = issue.StatusLintError
			continue
		}

		if in.Parser == nil {
			continue
		}
		parsed, perr := in.Parser(in.PluginName, []byte(spawnResult.Stdout))
		if perr != nil {
			merged.Status = issue.StatusParseError
			continue
		}
		merged.Issues = append(merged.Issues, normalize(parsed, in)...)
	}

	return merged, nil
}

// RunScript spawns command (e.g. a plugin's prepare_script) to completion
// and returns an error if it exits nonzero or fails to start, without any
// exit-code classification or parsing. Used for one-shot setup steps that
// have no notion of issues.
func RunScript(ctx context.Context, command, workDir string, env []string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	result, err := spawn(ctx, spawnInput{Command: command, WorkDir: workDir, Env: env, Timeout: timeout})
	if err != nil {
		return qerrors.Wrap(qerrors.CategoryDriver, "failed to spawn prepare script", err).WithCode(qerrors.CodeDriverSpawnFailed)
	}
	if result.ExitCode != 0 {
		return qerrors.New(qerrors.CategoryDriver, fmt.Sprintf("prepare script exited %d", result.ExitCode)).
			WithCode(qerrors.CodeDriverSpawnFailed).WithDetail("stderr", result.Stderr)
	}
	return nil
}

func firstOrEmpty(ss []string) string {
	if len(ss) == 0 {
		return ""
	}
	return ss[0]
}

// normalize implements §4.8 step 6: strip the staging-root prefix from every
// location, and attach plugin_name/driver_name/mode.
func normalize(issues []issue.Issue, in Input) []issue.Issue {
	out := make([]issue.Issue, len(issues))
	for i, iss := range issues {
		iss.Location.Path = stripStagingRoot(iss.Location.Path, in.StagingRoot)
		for j := range iss.OtherLocations {
			iss.OtherLocations[j].Path = stripStagingRoot(iss.OtherLocations[j].Path, in.StagingRoot)
		}
		iss.PluginName = in.PluginName
		iss.DriverName = in.DriverName
		iss.Mode = in.Mode
		out[i] = iss
	}
	return out
}

func stripStagingRoot(path, stagingRoot string) string {
	if stagingRoot == "" {
		return path
	}
	rel, err := filepath.Rel(stagingRoot, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}

type spawnInput struct {
	Command string
	WorkDir string
	Env     []string
	Timeout time.Duration
}

type spawnResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

func spawn(ctx context.Context, in spawnInput) (spawnResult, error) {
	runCtx := ctx
	if in.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, in.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, "sh", "-c", in.Command)
	cmd.Dir = in.WorkDir
	cmd.Env = in.Env

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := spawnResult{Stdout: stdout.String(), Stderr: stderr.String()}

	if err == nil {
		result.ExitCode = 0
		return result, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}
	return result, err
}
