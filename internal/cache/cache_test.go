package cache_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qlty-sh/qlty-core/internal/cache"
	"github.com/qlty-sh/qlty-core/internal/issue"
)

func TestCache_GetMissReturnsFalse(t *testing.T) {
	t.Parallel()

	c, err := cache.New(filepath.Join(t.TempDir(), "issues"))
	require.NoError(t, err)

	_, hit, err := c.Get("deadbeefcafe")
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestCache_PutThenGetRoundTrips(t *testing.T) {
	t.Parallel()

	c, err := cache.New(filepath.Join(t.TempDir(), "issues"))
	require.NoError(t, err)

	fr := issue.FileResult{
		Path: "app.rb",
		Issues: []issue.Issue{
			{ToolName: "rubocop", RuleKey: "Lint/UselessAssignment", Level: issue.LevelMedium},
		},
	}

	require.NoError(t, c.Put("abc123", fr))

	got, hit, err := c.Get("abc123")
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, fr, got)
}

func TestCache_PutIsAtomicNoStrayTempFile(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "issues")
	c, err := cache.New(dir)
	require.NoError(t, err)

	require.NoError(t, c.Put("xyz", issue.FileResult{Path: "a.rb"}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "xyz", entries[0].Name())
}

func TestComputeKey_ChangesWithTargetContents(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	target := filepath.Join(dir, "app.rb")
	require.NoError(t, os.WriteFile(target, []byte("puts 1"), 0o644))

	key1, err := cache.ComputeKey(cache.KeyInput{ToolFingerprint: "t1", DriverName: "lint", TargetPath: target})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(target, []byte("puts 2"), 0o644))
	key2, err := cache.ComputeKey(cache.KeyInput{ToolFingerprint: "t1", DriverName: "lint", TargetPath: target})
	require.NoError(t, err)

	assert.NotEqual(t, key1, key2)
}

func TestComputeKey_StableForIdenticalInputs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	target := filepath.Join(dir, "app.rb")
	require.NoError(t, os.WriteFile(target, []byte("puts 1"), 0o644))

	in := cache.KeyInput{ToolFingerprint: "t1", DriverName: "lint", DriverVersion: "1.60.0", TargetPath: target}
	key1, err := cache.ComputeKey(in)
	require.NoError(t, err)
	key2, err := cache.ComputeKey(in)
	require.NoError(t, err)
	assert.Equal(t, key1, key2)
}

func TestLookup_PartitionsHitsAndMisses(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := filepath.Join(dir, "a.rb")
	b := filepath.Join(dir, "b.rb")
	require.NoError(t, os.WriteFile(a, []byte("puts 1"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("puts 2"), 0o644))

	c, err := cache.New(filepath.Join(dir, "issues"))
	require.NoError(t, err)

	in := cache.PlanInput{ToolFingerprint: "t1", DriverName: "lint", Targets: []string{a, b}}

	keyA, err := cache.ComputeKey(cache.KeyInput{ToolFingerprint: "t1", DriverName: "lint", TargetPath: a})
	require.NoError(t, err)
	require.NoError(t, c.Put(keyA, issue.FileResult{Path: a}))

	result, err := c.Lookup(in)
	require.NoError(t, err)

	assert.Contains(t, result.Hits, a)
	assert.Equal(t, []string{b}, result.Misses)
	assert.Len(t, result.Keys, 2)
}
