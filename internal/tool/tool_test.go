package tool

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qlty-sh/qlty-core/internal/fingerprint"
)

func TestTool_DirectoryUsesVersionAndFingerprint(t *testing.T) {
	t.Parallel()

	tl := New(Spec{Name: "rubocop", Version: "1.60.0"}, "/cache")
	fp := tl.Fingerprint("", "")
	dir := tl.Directory(fp)

	assert.Equal(t, filepath.Join("/cache", "tools", "rubocop", "1.60.0-"+string(fp)), dir)
}

func TestTool_DirectoryUsesGenericWhenVersionless(t *testing.T) {
	t.Parallel()

	tl := New(Spec{Name: "null-tool", Kind: KindNull}, "/cache")
	fp := tl.Fingerprint("", "")
	dir := tl.Directory(fp)
	assert.Contains(t, dir, "generic-")
}

func TestTool_FingerprintStableAcrossCalls(t *testing.T) {
	t.Parallel()

	tl := New(Spec{Name: "rubocop", Version: "1.60.0", ExtraPackages: nil}, "/cache")
	a := tl.Fingerprint("rtfp", "contents")
	b := tl.Fingerprint("rtfp", "contents")
	assert.Equal(t, a, b)
}

func TestTool_ExpectedVersionStripsVPrefix(t *testing.T) {
	t.Parallel()

	tl := New(Spec{Name: "gh", Version: "v2.62.0"}, "/cache")
	got, err := tl.expectedVersion()
	require.NoError(t, err)
	assert.Equal(t, "2.62.0", got)
}

func TestTool_RuntimeAccessor(t *testing.T) {
	t.Parallel()

	rt := New(Spec{Name: "ruby", Kind: KindRuntime, Version: "3.3.0"}, "/cache")
	pkg := New(Spec{Name: "rubocop", Kind: KindRuntimePackage, Runtime: rt}, "/cache")

	got, ok := pkg.Runtime()
	require.True(t, ok)
	assert.Same(t, rt, got)

	_, ok = rt.Runtime()
	assert.False(t, ok)
}

func TestKind_String(t *testing.T) {
	t.Parallel()

	cases := map[Kind]string{
		KindRuntime:        "runtime",
		KindRuntimePackage: "runtime_package",
		KindDownload:       "download",
		KindGitHubRelease:  "github_release",
		KindNull:           "null",
		Kind(99):           "unknown",
	}
	for k, want := range cases {
		assert.Equal(t, want, k.String())
	}
}

func TestFingerprint_TypeRoundTrips(t *testing.T) {
	t.Parallel()

	tl := New(Spec{Name: "x", Version: "1.0.0"}, "/cache")
	fp := tl.Fingerprint("", "")
	assert.False(t, fingerprint.Fingerprint(fp).Empty())
}
