package tool

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qlty-sh/qlty-core/internal/installlog"
	"github.com/qlty-sh/qlty-core/internal/tool/checksum"
)

func TestSetup_NullToolSucceedsUnconditionally(t *testing.T) {
	t.Parallel()

	cache := t.TempDir()
	tl := New(Spec{Name: "preinstalled", Kind: KindNull}, cache)

	dir, err := tl.Setup(context.Background(), Task{}, "", "")
	require.NoError(t, err)
	assert.NotEmpty(t, dir)
}

func TestSetup_RuntimePackageInstallsAndValidates(t *testing.T) {
	t.Parallel()

	cache := t.TempDir()
	logs := installlog.NewStore()

	tl := New(Spec{
		Name:                   "fakepkg",
		Version:                "1.0.0",
		Kind:                   KindRuntimePackage,
		PackageName:            "fakepkg",
		PackageInstallCommands: []string{"true"},
		VersionCommand:         []string{"echo 1.0.0"},
	}, cache)

	dir, err := tl.Setup(context.Background(), Task{Logs: logs}, "", "")
	require.NoError(t, err)

	_, err = os.Stat(dir + ".done")
	assert.NoError(t, err, "MarkInstalled must write the sibling .done marker")

	_, err = os.Stat(dir + "-install.log")
	assert.NoError(t, err, "a successful attempt must still append to the sibling install log")
}

func TestSetup_IsIdempotentOnSecondCall(t *testing.T) {
	t.Parallel()

	cache := t.TempDir()
	calls := 0
	tl := New(Spec{
		Name: "idempotent",
		Kind: KindRuntimePackage,
		PackageInstallCommands: []string{"true"},
		PreInstall: func() error {
			calls++
			return nil
		},
	}, cache)

	ctx := context.Background()
	_, err := tl.Setup(ctx, Task{}, "", "")
	require.NoError(t, err)

	tl2 := New(tl.spec, cache)
	_, err = tl2.Setup(ctx, Task{}, "", "")
	require.NoError(t, err)

	assert.Equal(t, 1, calls, "the second Setup call must observe is_installed() and skip reinstalling")
}

func TestSetup_FailureTailsInstallLog(t *testing.T) {
	t.Parallel()

	cache := t.TempDir()
	logs := installlog.NewStore()

	tl := New(Spec{
		Name:                   "broken",
		Kind:                   KindRuntimePackage,
		PackageInstallCommands: []string{"false"},
	}, cache)

	_, err := tl.Setup(context.Background(), Task{Logs: logs}, "", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "install failed for broken")
}

func TestSetup_RetriesUpToInstallMaxRetries(t *testing.T) {
	t.Parallel()

	cache := t.TempDir()
	tl := New(Spec{
		Name:                   "flaky",
		Kind:                   KindRuntimePackage,
		PackageInstallCommands: []string{"false"},
		InstallMaxRetries:      2,
	}, cache)

	_, err := tl.Setup(context.Background(), Task{}, "", "")
	require.Error(t, err)
}

func TestSetup_DownloadToolFetchesAndExtracts(t *testing.T) {
	t.Parallel()

	cache := t.TempDir()
	archivePath := filepath.Join(t.TempDir(), "tool-linux-amd64.tar.gz")
	writeTarGz(t, archivePath, "bin/tool", "#!/bin/sh\necho hi\n")

	fakeHash, err := checksum.Calculate(archivePath, checksum.SHA256)
	require.NoError(t, err)

	tl := New(Spec{
		Name: "fetched",
		Kind: KindDownload,
		Download: &DownloadDef{
			URLs:     map[string]string{"linux/amd64": "file://" + archivePath},
			Checksum: &checksum.Spec{Value: "sha256:" + fakeHash},
		},
	}, cache)

	dir, err := tl.Setup(context.Background(), Task{Downloader: fakeFileDownloader{}}, "", "")
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "bin", "tool"))
	assert.NoError(t, err)
}

// fakeFileDownloader copies from a "file://" URL instead of performing a
// real HTTP fetch, so download tests don't depend on the network.
type fakeFileDownloader struct{}

func (fakeFileDownloader) Fetch(_ context.Context, url, destPath string) (string, error) {
	src := url[len("file://"):]
	data, err := os.ReadFile(src)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(destPath, data, 0o644); err != nil {
		return "", err
	}
	return destPath, nil
}

func (fakeFileDownloader) Verify(_ context.Context, filePath string, spec *checksum.Spec) error {
	if spec == nil || spec.Value == "" {
		return nil
	}
	algorithm, expected, err := checksum.Parse(spec.Value)
	if err != nil {
		return err
	}
	return checksum.Verify(filePath, algorithm, expected)
}

func writeTarGz(t *testing.T, path, entryName, contents string) {
	t.Helper()

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	require.NoError(t, tw.WriteHeader(&tar.Header{
		Name: entryName,
		Mode: 0o755,
		Size: int64(len(contents)),
	}))
	_, err := tw.Write([]byte(contents))
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())

	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}
