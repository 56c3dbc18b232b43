package checksum

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Parallel()

	alg, hash, err := Parse("sha256:deadbeef")
	require.NoError(t, err)
	assert.Equal(t, SHA256, alg)
	assert.Equal(t, "deadbeef", hash)

	_, _, err = Parse("md5:deadbeef")
	assert.Error(t, err, "unsupported algorithms must be rejected")

	_, _, err = Parse("deadbeef")
	assert.Error(t, err, "missing algorithm prefix must be rejected")
}

func TestCalculateAndVerify(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "rubocop")
	require.NoError(t, os.WriteFile(path, []byte("binary contents"), 0o644))

	hash, err := Calculate(path, SHA256)
	require.NoError(t, err)
	assert.Len(t, hash, 64)

	require.NoError(t, Verify(path, SHA256, hash))
	assert.Error(t, Verify(path, SHA256, "wrong"))
}

func TestDetectAlgorithm(t *testing.T) {
	t.Parallel()

	sha256Hash, _ := Calculate(writeTempFile(t, "x"), SHA256)
	sha512Hash, _ := Calculate(writeTempFile(t, "x"), SHA512)

	assert.Equal(t, SHA256, DetectAlgorithm(sha256Hash))
	assert.Equal(t, SHA512, DetectAlgorithm(sha512Hash))
	assert.Equal(t, Algorithm(""), DetectAlgorithm("short"))
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}
