package download

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qlty-sh/qlty-core/internal/tool/checksum"
)

func TestHTTPDownloader_FetchWritesFileAtomically(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("tool-binary-bytes"))
	}))
	defer srv.Close()

	d := New()
	dest := filepath.Join(t.TempDir(), "rubocop-1.60.0.tar.gz")

	path, err := d.Fetch(context.Background(), srv.URL, dest)
	require.NoError(t, err)
	assert.Equal(t, dest, path)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "tool-binary-bytes", string(got))

	_, err = os.Stat(dest + ".tmp")
	assert.True(t, os.IsNotExist(err), "the .tmp staging file must not survive a successful download")
}

func TestHTTPDownloader_FetchNonOKStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	d := New()
	_, err := d.Fetch(context.Background(), srv.URL, filepath.Join(t.TempDir(), "out"))
	require.Error(t, err)
}

func TestHTTPDownloader_VerifyDirectValue(t *testing.T) {
	t.Parallel()

	dest := filepath.Join(t.TempDir(), "bin")
	require.NoError(t, os.WriteFile(dest, []byte("payload"), 0o644))

	hash, err := checksum.Calculate(dest, checksum.SHA256)
	require.NoError(t, err)

	d := New()
	err = d.Verify(context.Background(), dest, &checksum.Spec{Value: "sha256:" + hash})
	require.NoError(t, err)

	err = d.Verify(context.Background(), dest, &checksum.Spec{Value: "sha256:deadbeef"})
	assert.Error(t, err)
}

func TestHTTPDownloader_VerifyFromChecksumsFileURL(t *testing.T) {
	t.Parallel()

	dest := filepath.Join(t.TempDir(), "rubocop-1.60.0-linux-amd64.tar.gz")
	require.NoError(t, os.WriteFile(dest, []byte("payload"), 0o644))
	hash, err := checksum.Calculate(dest, checksum.SHA256)
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(hash + "  rubocop-1.60.0-linux-amd64.tar.gz\n"))
	}))
	defer srv.Close()

	d := New()
	err = d.Verify(context.Background(), dest, &checksum.Spec{URL: srv.URL})
	require.NoError(t, err)
}

func TestHTTPDownloader_VerifyNilSpecSkips(t *testing.T) {
	t.Parallel()

	d := New()
	assert.NoError(t, d.Verify(context.Background(), "/does/not/exist", nil))
}
