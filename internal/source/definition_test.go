package source

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qlty-sh/qlty-core/internal/tool"
)

func writeDefinition(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plugin.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefinition_ParsesDriversAndFileTypes(t *testing.T) {
	t.Parallel()

	path := writeDefinition(t, `
name = "rubocop"
latest_version = "1.60.0"
known_good_version = "1.59.0"
runtime = "ruby"
file_types = ["*.rb"]
config_files = [".rubocop.yml"]

[[drivers]]
name = "lint"
verb = "check"
script = "rubocop --format json ${target}"
success_codes = [0, 1]

[tool.github_release]
owner = "rubocop"
repo = "rubocop"
`)

	loaded, err := LoadDefinition(path)
	require.NoError(t, err)

	assert.Equal(t, "rubocop", loaded.Definition.Name)
	assert.Equal(t, "1.60.0", loaded.Definition.LatestVersion)
	assert.Equal(t, "ruby", loaded.Definition.Runtime)
	require.Len(t, loaded.Definition.Drivers, 1)
	assert.Equal(t, "lint", loaded.Definition.Drivers[0].Name)

	assert.Equal(t, tool.KindGitHubRelease, loaded.Tool.Kind)
	require.NotNil(t, loaded.Tool.GitHubRelease)
	assert.Equal(t, "rubocop", loaded.Tool.GitHubRelease.Owner)
}

func TestLoadDefinition_DownloadKindWithChecksum(t *testing.T) {
	t.Parallel()

	path := writeDefinition(t, `
name = "shellcheck"

[tool.download]
checksum = "sha256:abcd"
[tool.download.urls]
"linux/amd64" = "https://example.invalid/shellcheck-linux-amd64.tar.gz"
`)

	loaded, err := LoadDefinition(path)
	require.NoError(t, err)

	assert.Equal(t, tool.KindDownload, loaded.Tool.Kind)
	require.NotNil(t, loaded.Tool.Download)
	require.NotNil(t, loaded.Tool.Download.Checksum)
	assert.Equal(t, "sha256:abcd", loaded.Tool.Download.Checksum.Value)
}

func TestLoadDefinition_NoToolSectionIsNullKind(t *testing.T) {
	t.Parallel()

	path := writeDefinition(t, `name = "prettier"`)

	loaded, err := LoadDefinition(path)
	require.NoError(t, err)
	assert.Equal(t, tool.KindNull, loaded.Tool.Kind)
}

func TestLoadDefinition_MissingNameErrors(t *testing.T) {
	t.Parallel()

	path := writeDefinition(t, `latest_version = "1.0.0"`)

	_, err := LoadDefinition(path)
	assert.Error(t, err)
}

func TestLoadDefinition_GitHubReleaseRequiresOwnerAndRepo(t *testing.T) {
	t.Parallel()

	path := writeDefinition(t, `
name = "broken"
[tool.github_release]
owner = "only-owner"
`)

	_, err := LoadDefinition(path)
	assert.Error(t, err)
}
