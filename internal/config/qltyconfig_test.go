package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qlty-sh/qlty-core/internal/config"
	"github.com/qlty-sh/qlty-core/internal/plugin"
)

func TestLoadQltyConfig_MissingFileReturnsDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadQltyConfig(filepath.Join(t.TempDir(), "qlty.toml"))
	require.NoError(t, err)
	assert.Empty(t, cfg.Plugins)
	assert.Equal(t, 0, cfg.Jobs)
}

func TestLoadQltyConfig_ParsesPluginsAndRunSection(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "qlty.toml")
	const content = `
[plugins.rubocop]
mode = "block"
version = "1.60.0"
package_file = "Gemfile"
package_filters = ["rubocop"]
triggers = ["push"]

[plugins.eslint]
mode = "comment"

[[sources]]
name = "default"
url = "https://example.invalid/qlty-plugins"
ref = "main"

[[ignore]]
file_patterns = ["vendor/**"]
plugins = ["rubocop"]

[run]
jobs = 4
skip_errored_plugins = true

[cache]
max_issues = 1000
max_issues_per_file = 50
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := config.LoadQltyConfig(path)
	require.NoError(t, err)

	require.Contains(t, cfg.Plugins, "rubocop")
	rubocop := cfg.Plugins["rubocop"]
	assert.Equal(t, plugin.ModeBlock, rubocop.Mode)
	assert.Equal(t, "1.60.0", rubocop.Version)
	assert.Equal(t, "Gemfile", rubocop.PackageFile)
	assert.Equal(t, []string{"push"}, rubocop.Triggers)

	require.Contains(t, cfg.Plugins, "eslint")
	assert.Equal(t, plugin.ModeComment, cfg.Plugins["eslint"].Mode)

	require.Len(t, cfg.Sources, 1)
	assert.Equal(t, "default", cfg.Sources[0].Name)

	require.Len(t, cfg.Ignores, 1)
	assert.Equal(t, []string{"vendor/**"}, cfg.Ignores[0].FilePatterns)
	assert.Equal(t, []string{"rubocop"}, cfg.Ignores[0].Plugins)

	assert.Equal(t, 4, cfg.Jobs)
	assert.True(t, cfg.SkipErroredPlugins)
	assert.Equal(t, 1000, cfg.MaxIssues)
	assert.Equal(t, 50, cfg.MaxIssuesPerFile)
}

func TestLoadQltyConfig_DefaultsModeToBlock(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "qlty.toml")
	require.NoError(t, os.WriteFile(path, []byte("[plugins.shellcheck]\n"), 0o644))

	cfg, err := config.LoadQltyConfig(path)
	require.NoError(t, err)
	assert.Equal(t, plugin.ModeBlock, cfg.Plugins["shellcheck"].Mode)
}

func TestLoadQltyConfig_RejectsMutuallyExclusiveFields(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "qlty.toml")
	const content = `
[plugins.rubocop]
package_file = "Gemfile"
[[plugins.rubocop.extra_packages]]
name = "rubocop-rails"
version = "2.0"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := config.LoadQltyConfig(path)
	assert.Error(t, err)
}

func TestLoadQltyConfig_EnvOverridesFileAndDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qlty.toml")
	require.NoError(t, os.WriteFile(path, []byte("[run]\njobs = 2\n"), 0o644))

	t.Setenv(config.EnvJobs, "8")
	t.Setenv(config.EnvSkipErroredPlugins, "true")

	cfg, err := config.LoadQltyConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Jobs)
	assert.True(t, cfg.SkipErroredPlugins)
}
