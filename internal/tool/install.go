package tool

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/qlty-sh/qlty-core/internal/fingerprint"
	"github.com/qlty-sh/qlty-core/internal/installlog"
	"github.com/qlty-sh/qlty-core/internal/lockfile"
	"github.com/qlty-sh/qlty-core/internal/progress"
	"github.com/qlty-sh/qlty-core/internal/qerrors"
	"github.com/qlty-sh/qlty-core/internal/tool/checksum"
	"github.com/qlty-sh/qlty-core/internal/tool/command"
	"github.com/qlty-sh/qlty-core/internal/tool/download"
	"github.com/qlty-sh/qlty-core/internal/tool/extract"
	"github.com/qlty-sh/qlty-core/internal/tool/githubrelease"
)

// Task carries the ambient context a Setup call needs but that the Tool
// itself shouldn't own, since it's shared across every tool in a run.
type Task struct {
	WorkspaceRoot string
	Logs          *installlog.Store
	Downloader    download.Downloader
}

const tailStderr = 50
const tailUser = 20

// Setup installs this tool if it is not already present, under a
// cross-process lock scoped to its install directory. It returns the
// resolved install directory on success.
func (t *Tool) Setup(ctx context.Context, task Task, runtimeFingerprint fingerprint.Fingerprint, packageFileContents string) (string, error) {
	fp := t.Fingerprint(runtimeFingerprint, packageFileContents)
	dir := t.Directory(fp)
	t.SetDirectory(dir)

	if t.spec.Kind == KindNull {
		return dir, nil
	}

	lock := lockfile.New(dir)
	release, err := lock.Lock(ctx)
	if err != nil {
		return "", err
	}
	defer release()

	if lock.IsInstalled() {
		return dir, nil
	}

	if err := t.installAndValidate(ctx, task, dir); err != nil {
		return "", t.reportFailure(task, dir, err)
	}

	if err := lock.MarkInstalled(); err != nil {
		return "", err
	}
	return dir, nil
}

func (t *Tool) reportFailure(task Task, dir string, cause error) error {
	_ = dir
	logPath := t.lastLogPath
	if task.Logs == nil || logPath == "" {
		return cause
	}

	stderrTail, err := installlog.Tail(logPath, tailStderr)
	if err == nil && len(stderrTail) > 0 {
		fmt.Fprint(os.Stderr, installlog.Summary(logPath, stderrTail))
	}

	userTail, err := installlog.Tail(logPath, tailUser)
	if err != nil {
		return cause
	}
	return qerrors.Wrap(qerrors.CategoryInstall, fmt.Sprintf("install failed for %s, see %s", t.spec.Name, logPath), cause).
		WithDetail("log_tail", userTail).
		WithDetail("log_path", logPath)
}

// installAndValidate runs the five-step install pipeline: internal
// pre-install (mkdir) -> pre_install hook -> install with retry -> post
// install hook -> validate.
func (t *Tool) installAndValidate(ctx context.Context, task Task, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return qerrors.Wrap(qerrors.CategoryInstall, "failed to create install directory", err).WithDetail("dir", dir)
	}

	if t.spec.PreInstall != nil {
		if err := t.spec.PreInstall(); err != nil {
			return qerrors.Wrap(qerrors.CategoryInstall, "pre_install hook failed", err)
		}
	}

	if err := t.installWithRetry(ctx, task, dir); err != nil {
		return err
	}

	if t.spec.PostInstall != nil {
		if err := t.spec.PostInstall(); err != nil {
			return qerrors.Wrap(qerrors.CategoryInstall, "post_install hook failed", err)
		}
	}

	return t.validate(ctx, dir)
}

func (t *Tool) installWithRetry(ctx context.Context, task Task, dir string) error {
	maxRetries := t.spec.InstallMaxRetries
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		start := time.Now()
		cb := progress.FromContext[progress.InstallCallback](ctx)
		if cb != nil {
			cb(progress.InstallEvent{ToolName: t.spec.Name, Phase: "installing", Detail: fmt.Sprintf("attempt %d/%d", attempt+1, maxRetries+1)})
		}

		script, stdout, stderr, err := t.runInstall(ctx, dir, task)
		finished := time.Now()

		if task.Logs != nil {
			path, logErr := task.Logs.Write(dir, installlog.Installation{
				ToolName: t.spec.Name, Script: script, Stdout: stdout, Stderr: stderr,
				ExitCode: exitCodeOf(err), StartedAt: start, FinishedAt: finished,
			})
			if logErr == nil {
				t.lastLogPath = path
			}
		}

		if err == nil {
			return nil
		}
		lastErr = qerrors.Wrap(qerrors.CategoryInstall, fmt.Sprintf("install attempt %d/%d failed", attempt+1, maxRetries+1), err).
			WithCode(qerrors.CodeInstallFailed).WithDetail("tool", t.spec.Name)
	}
	return lastErr
}

func exitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	return 1
}

// runInstall dispatches to the variant-specific installer, returning the
// script/command string run plus captured stdout/stderr for the install
// log.
func (t *Tool) runInstall(ctx context.Context, dir string, task Task) (script, stdout, stderr string, err error) {
	switch t.spec.Kind {
	case KindRuntime:
		return t.installRuntime(ctx, dir)
	case KindRuntimePackage:
		return t.installRuntimePackage(ctx, dir)
	case KindDownload:
		return t.installDownload(ctx, dir, t.spec.Download, task)
	case KindGitHubRelease:
		return t.installGitHubRelease(ctx, dir, task)
	case KindNull:
		return "", "", "", nil
	default:
		return "", "", "", qerrors.New(qerrors.CategoryInstall, fmt.Sprintf("unknown tool kind %v", t.spec.Kind))
	}
}

func (t *Tool) installRuntime(ctx context.Context, dir string) (string, string, string, error) {
	exec := command.New(dir)
	vars := command.Vars{Name: t.spec.Name, Version: t.spec.Version, BinPath: dir}
	out, err := exec.Capture(ctx, t.spec.RuntimeInstallCommands, vars, nil)
	return strings.Join(t.spec.RuntimeInstallCommands, " && "), out, "", err
}

func (t *Tool) installRuntimePackage(ctx context.Context, dir string) (string, string, string, error) {
	exec := command.New(dir)
	vars := command.Vars{Package: t.spec.PackageName, Version: t.spec.Version, Name: t.spec.Name, BinPath: dir}

	cmds := t.spec.PackageInstallCommands
	if t.spec.PackageFile != "" {
		cmds = t.spec.PackageFileInstallCmds
	}

	out, err := exec.Capture(ctx, cmds, vars, nil)
	return strings.Join(cmds, " && "), out, "", err
}

func (t *Tool) installDownload(ctx context.Context, dir string, def *DownloadDef, task Task) (string, string, string, error) {
	if def == nil {
		return "", "", "", qerrors.New(qerrors.CategoryInstall, "download tool has no DownloadDef")
	}

	sys := System{OS: runtime.GOOS, Arch: runtime.GOARCH}
	url, ok := def.URLs[sys.Key()]
	if !ok {
		return "", "", "", qerrors.New(qerrors.CategoryInstall, fmt.Sprintf("no download URL for %s", sys.Key())).
			WithCode(qerrors.CodeNoMatchingAsset)
	}

	return t.fetchAndExtract(ctx, dir, url, def, task)
}

func (t *Tool) installGitHubRelease(ctx context.Context, dir string, task Task) (string, string, string, error) {
	def := t.spec.GitHubRelease
	if def == nil {
		return "", "", "", qerrors.New(qerrors.CategoryInstall, "github_release tool has no GitHubReleaseDef")
	}

	client := githubrelease.NewHTTPClient(githubrelease.TokenFromEnv())
	rel, err := githubrelease.GetReleaseByTag(ctx, client, def.Owner, def.Repo, t.spec.Version)
	if err != nil {
		return "", "", "", qerrors.Wrap(qerrors.CategoryInstall, "failed to fetch GitHub release", err).
			WithCode(qerrors.CodeDownloadFailed)
	}

	asset, ok := githubrelease.SelectAssetForHost(rel.Assets)
	if !ok {
		return "", "", "", qerrors.New(qerrors.CategoryInstall, fmt.Sprintf("no matching release asset for %s/%s@%s", def.Owner, def.Repo, t.spec.Version)).
			WithCode(qerrors.CodeNoMatchingAsset)
	}

	downloadDef := &DownloadDef{ArchiveType: t.spec.Download.archiveTypeOr(""), BinaryName: t.spec.Name}
	if t.spec.Download != nil {
		downloadDef.StripComponents = t.spec.Download.StripComponents
		downloadDef.Checksum = t.spec.Download.Checksum
	}

	return t.fetchAndExtract(ctx, dir, asset.BrowserDownloadURL, downloadDef, task)
}

func (d *DownloadDef) archiveTypeOr(fallback string) string {
	if d == nil || d.ArchiveType == "" {
		return fallback
	}
	return d.ArchiveType
}

func (t *Tool) fetchAndExtract(ctx context.Context, dir, url string, def *DownloadDef, task Task) (string, string, string, error) {
	downloader := task.Downloader
	if downloader == nil {
		downloader = download.New()
	}
	archivePath := filepath.Join(dir, filepath.Base(url))

	if _, err := downloader.Fetch(ctx, url, archivePath); err != nil {
		return url, "", "", qerrors.Wrap(qerrors.CategoryInstall, "download failed", err).WithCode(qerrors.CodeDownloadFailed)
	}

	if def.Checksum != nil {
		if err := downloader.Verify(ctx, archivePath, &checksum.Spec{Value: def.Checksum.Value, URL: def.Checksum.URL, FilePattern: def.Checksum.FilePattern}); err != nil {
			return url, "", "", qerrors.Wrap(qerrors.CategoryInstall, "checksum verification failed", err).WithCode(qerrors.CodeChecksumMismatch)
		}
	}

	archiveType := extract.Normalize(def.ArchiveType)
	if def.ArchiveType == "" {
		archiveType = extract.Detect(url)
	}
	extractor, err := extract.New(archiveType)
	if err != nil {
		return url, "", "", qerrors.Wrap(qerrors.CategoryInstall, "unsupported archive type", err)
	}

	f, err := os.Open(archivePath)
	if err != nil {
		return url, "", "", qerrors.Wrap(qerrors.CategoryInstall, "failed to open downloaded archive", err)
	}
	defer f.Close()

	if err := extractor.Extract(f, dir); err != nil {
		return url, "", "", qerrors.Wrap(qerrors.CategoryInstall, "extraction failed", err).WithCode(qerrors.CodeExtractFailed)
	}

	return url, "", "", nil
}

// validate runs the tool's version command and checks its output against
// the declared version.
func (t *Tool) validate(ctx context.Context, dir string) error {
	if t.spec.Kind == KindNull || len(t.spec.VersionCommand) == 0 {
		return nil
	}

	exec := command.New(dir)
	vars := command.Vars{Name: t.spec.Name, Version: t.spec.Version, BinPath: dir}
	out, err := exec.Capture(ctx, t.spec.VersionCommand, vars, map[string]string{"PATH": t.path(dir, EnvContext{})})
	if err != nil {
		return qerrors.Wrap(qerrors.CategoryInstall, "version command failed", err).WithCode(qerrors.CodeVerifyFailed)
	}

	re, err := regexp.Compile(t.spec.versionRegex())
	if err != nil {
		return qerrors.Wrap(qerrors.CategoryInstall, "invalid version_regex", err)
	}
	m := re.FindStringSubmatch(out)
	if m == nil {
		return qerrors.New(qerrors.CategoryInstall, fmt.Sprintf("could not extract version from output: %q", out)).
			WithCode(qerrors.CodeVerifyFailed)
	}
	got := m[len(m)-1]

	if t.spec.Version == "" {
		return nil
	}
	want, err := t.expectedVersion()
	if err != nil {
		return err
	}
	if got != want {
		return qerrors.New(qerrors.CategoryInstall, fmt.Sprintf("version mismatch for %s: want %s, got %s", t.spec.Name, want, got)).
			WithCode(qerrors.CodeVerifyFailed).WithDetail("want", want).WithDetail("got", got)
	}
	return nil
}
