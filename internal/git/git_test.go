package git

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSourceURL = "https://github.com/octocat/Hello-World.git"

func TestCloneURL(t *testing.T) {
	t.Run("clone repository", func(t *testing.T) {
		tmpDir := t.TempDir()
		destPath := filepath.Join(tmpDir, "hello-world")

		err := CloneURL(context.Background(), testSourceURL, destPath, nil)
		require.NoError(t, err)

		assert.DirExists(t, filepath.Join(destPath, ".git"))
		assert.FileExists(t, filepath.Join(destPath, "README"))
	})

	t.Run("clone with shallow depth", func(t *testing.T) {
		tmpDir := t.TempDir()
		destPath := filepath.Join(tmpDir, "hello-world-shallow")

		err := CloneURL(context.Background(), testSourceURL, destPath, &CloneOptions{Depth: 1})
		require.NoError(t, err)

		assert.DirExists(t, filepath.Join(destPath, ".git"))
	})

	t.Run("clone with branch", func(t *testing.T) {
		tmpDir := t.TempDir()
		destPath := filepath.Join(tmpDir, "hello-world-branch")

		err := CloneURL(context.Background(), testSourceURL, destPath, &CloneOptions{Branch: "master", Depth: 1})
		require.NoError(t, err)

		assert.DirExists(t, filepath.Join(destPath, ".git"))
	})

	t.Run("clone already exists error", func(t *testing.T) {
		tmpDir := t.TempDir()
		destPath := filepath.Join(tmpDir, "hello-world")

		require.NoError(t, CloneURL(context.Background(), testSourceURL, destPath, &CloneOptions{Depth: 1}))

		err := CloneURL(context.Background(), testSourceURL, destPath, &CloneOptions{Depth: 1})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already cloned")
	})

	t.Run("clone invalid source", func(t *testing.T) {
		tmpDir := t.TempDir()
		destPath := filepath.Join(tmpDir, "invalid")

		err := CloneURL(context.Background(), "https://github.com/invalid/nonexistent-repo-12345.git", destPath, nil)
		require.Error(t, err)
	})

	t.Run("clone context canceled", func(t *testing.T) {
		tmpDir := t.TempDir()
		destPath := filepath.Join(tmpDir, "canceled")

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := CloneURL(ctx, testSourceURL, destPath, nil)
		require.Error(t, err)
	})
}

func TestPullPath(t *testing.T) {
	t.Run("pull existing checkout", func(t *testing.T) {
		tmpDir := t.TempDir()
		destPath := filepath.Join(tmpDir, "hello-world")

		require.NoError(t, CloneURL(context.Background(), testSourceURL, destPath, &CloneOptions{Depth: 1}))
		require.NoError(t, PullPath(context.Background(), destPath))
	})

	t.Run("pull non-existent checkout", func(t *testing.T) {
		tmpDir := t.TempDir()
		destPath := filepath.Join(tmpDir, "nonexistent")

		err := PullPath(context.Background(), destPath)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to open plugin source checkout")
	})
}

func TestExists(t *testing.T) {
	t.Run("exists returns true for a checked-out source", func(t *testing.T) {
		tmpDir := t.TempDir()
		destPath := filepath.Join(tmpDir, "hello-world")

		require.NoError(t, CloneURL(context.Background(), testSourceURL, destPath, &CloneOptions{Depth: 1}))
		assert.True(t, Exists(destPath))
	})

	t.Run("exists returns false for a plain directory", func(t *testing.T) {
		tmpDir := t.TempDir()
		assert.False(t, Exists(tmpDir))
	})

	t.Run("exists returns false for a non-existent path", func(t *testing.T) {
		assert.False(t, Exists("/nonexistent/path"))
	})
}

func TestCloneOrPullURL(t *testing.T) {
	t.Run("clones when no checkout exists", func(t *testing.T) {
		tmpDir := t.TempDir()
		destPath := filepath.Join(tmpDir, "hello-world")

		err := CloneOrPullURL(context.Background(), testSourceURL, destPath, &CloneOptions{Depth: 1})
		require.NoError(t, err)
		assert.True(t, Exists(destPath))
	})

	t.Run("pulls when a checkout already exists", func(t *testing.T) {
		tmpDir := t.TempDir()
		destPath := filepath.Join(tmpDir, "hello-world")

		require.NoError(t, CloneOrPullURL(context.Background(), testSourceURL, destPath, &CloneOptions{Depth: 1}))

		readme := filepath.Join(destPath, "README")
		info1, err := os.Stat(readme)
		require.NoError(t, err)

		require.NoError(t, CloneOrPullURL(context.Background(), testSourceURL, destPath, &CloneOptions{Depth: 1}))

		info2, err := os.Stat(readme)
		require.NoError(t, err)
		assert.Equal(t, info1.ModTime(), info2.ModTime())
	})

	t.Run("creates the parent sources directory", func(t *testing.T) {
		tmpDir := t.TempDir()
		destPath := filepath.Join(tmpDir, "nested", "dir", "hello-world")

		err := CloneOrPullURL(context.Background(), testSourceURL, destPath, &CloneOptions{Depth: 1})
		require.NoError(t, err)
		assert.True(t, Exists(destPath))
	})
}
