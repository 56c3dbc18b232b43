package lockfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockfile_LockUnlockRoundTrip(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "rubocop-1.60.0-abcdef123456")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	lf := New(dir)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	release, err := lf.Lock(ctx)
	require.NoError(t, err)
	require.NotNil(t, release)
	release()
}

func TestLockfile_IsInstalled(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "black-24.1.0-112233445566")
	lf := New(dir)
	assert.False(t, lf.IsInstalled(), "missing directory must not be reported installed")

	require.NoError(t, os.MkdirAll(dir, 0o755))
	assert.False(t, lf.IsInstalled(), "directory without a done marker must not be reported installed")

	require.NoError(t, lf.MarkInstalled())
	assert.True(t, lf.IsInstalled())
}

func TestLockfile_SerializesConcurrentAcquisition(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "golangci-lint-1.59.0-aabbccddeeff")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	first := New(dir)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	release, err := first.Lock(ctx)
	require.NoError(t, err)
	defer release()

	second := New(dir)
	shortCtx, shortCancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer shortCancel()

	_, err = second.Lock(shortCtx)
	assert.Error(t, err, "a second locker must not acquire the lock while the first holds it")
}
