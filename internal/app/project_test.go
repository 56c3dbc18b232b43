package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qlty-sh/qlty-core/internal/config"
	"github.com/qlty-sh/qlty-core/internal/plugin"
	"github.com/qlty-sh/qlty-core/internal/tool"
)

func testProject() *Project {
	return &Project{
		Definitions: map[string]plugin.Definition{
			"rubocop": {Name: "rubocop", LatestVersion: "1.60.0", KnownGoodVersion: "1.59.0"},
		},
		toolSpecs: map[string]tool.Spec{
			"rubocop": {Name: "rubocop", Kind: tool.KindGitHubRelease},
		},
		Config:   config.QltyConfig{},
		cacheDir: "/tmp/qlty-test-cache",
	}
}

func TestProject_ResolveEnabled_ResolvesSentinel(t *testing.T) {
	t.Parallel()

	p := testProject()
	p.Config.Plugins = map[string]plugin.Enabled{
		"rubocop": {Name: "rubocop", Mode: plugin.ModeBlock, Version: plugin.VersionLatest},
	}

	resolved, err := p.ResolveEnabled()
	require.NoError(t, err)
	assert.Equal(t, "1.60.0", resolved["rubocop"].Version)
}

func TestProject_ResolveEnabled_UnknownPluginErrors(t *testing.T) {
	t.Parallel()

	p := testProject()
	p.Config.Plugins = map[string]plugin.Enabled{
		"nonexistent": {Name: "nonexistent", Version: "1.0.0"},
	}

	_, err := p.ResolveEnabled()
	assert.Error(t, err)
}

func TestEnabledSlice_IsNameSorted(t *testing.T) {
	t.Parallel()

	enabled := map[string]plugin.Enabled{
		"zsh-lint":  {Name: "zsh-lint"},
		"actionlint": {Name: "actionlint"},
	}

	out := EnabledSlice(enabled)
	require.Len(t, out, 2)
	assert.Equal(t, "actionlint", out[0].Name)
	assert.Equal(t, "zsh-lint", out[1].Name)
}

func TestProject_ToolResolver_AppliesResolvedVersionAndOverrides(t *testing.T) {
	t.Parallel()

	p := testProject()
	enabled := map[string]plugin.Enabled{
		"rubocop": {
			Name:          "rubocop",
			Version:       "1.60.0",
			ExtraPackages: []plugin.ExtraPackage{{Name: "rubocop-rspec", Version: "2.0.0"}},
		},
	}

	resolve := p.ToolResolver(enabled)
	got, ok := resolve("rubocop")
	require.True(t, ok)
	version, hasVersion := got.Version()
	assert.True(t, hasVersion)
	assert.Equal(t, "1.60.0", version)
}

func TestProject_ToolResolver_UnknownToolIsMissing(t *testing.T) {
	t.Parallel()

	p := testProject()
	resolve := p.ToolResolver(map[string]plugin.Enabled{})
	_, ok := resolve("does-not-exist")
	assert.False(t, ok)
}
