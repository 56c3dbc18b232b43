package tool

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qlty-sh/qlty-core/internal/plugin"
)

func TestTool_Env_ComputesPATHFromDirAndBasePath(t *testing.T) {
	t.Parallel()

	tl := New(Spec{Name: "rubocop"}, "/cache")
	env := tl.Env("/cache/tools/rubocop/1.60.0-abc", EnvContext{})

	pathLine := findVar(t, env, "PATH")
	assert.True(t, strings.HasPrefix(pathLine, filepath.Join("/cache/tools/rubocop/1.60.0-abc", "bin")))
	assert.Contains(t, pathLine, "/usr/bin")
}

func TestTool_Env_DeclaredPATHOverridesDerived(t *testing.T) {
	t.Parallel()

	tl := New(Spec{
		Name: "gh",
		Env:  []plugin.EnvEntry{{Name: "PATH", Value: "/opt/gh/bin", IsPATH: true}},
	}, "/cache")
	env := tl.Env("/cache/tools/gh/2.0.0-abc", EnvContext{})

	pathLine := findVar(t, env, "PATH")
	assert.True(t, strings.HasPrefix(pathLine, "/opt/gh/bin"))
	assert.NotContains(t, pathLine, filepath.Join("/cache/tools/gh/2.0.0-abc", "bin"))
}

func TestTool_Env_InterpolatesCachedirAndLinter(t *testing.T) {
	t.Parallel()

	tl := New(Spec{
		Name: "gh",
		Env:  []plugin.EnvEntry{{Name: "CACHE", Value: "${cachedir}"}, {Name: "SELF", Value: "${linter}"}},
	}, "/cache")
	dir := "/cache/tools/gh/2.0.0-abc"
	env := tl.Env(dir, EnvContext{WorkspaceRoot: "/repo"})

	assert.Equal(t, "CACHE="+filepath.Join("/repo", ".qlty", "plugin_cachedir"), findRaw(t, env, "CACHE"))
	assert.Equal(t, "SELF="+dir, findRaw(t, env, "SELF"))
}

func TestTool_Env_InterpolatesEnvVar(t *testing.T) {
	t.Setenv("QLTY_TEST_TOKEN", "secret-value")

	tl := New(Spec{
		Name: "gh",
		Env:  []plugin.EnvEntry{{Name: "TOKEN", Value: "${env.QLTY_TEST_TOKEN}"}},
	}, "/cache")
	env := tl.Env("/cache/tools/gh/1-abc", EnvContext{})
	assert.Equal(t, "TOKEN=secret-value", findRaw(t, env, "TOKEN"))
}

func TestTool_Env_IncludesAllowlistedHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	t.Setenv("HOME", home)

	tl := New(Spec{Name: "gh"}, "/cache")
	env := tl.Env("/cache/tools/gh/1-abc", EnvContext{})
	assert.Equal(t, "HOME="+home, findRaw(t, env, "HOME"))
}

func findRaw(t *testing.T, env []string, key string) string {
	t.Helper()
	for _, e := range env {
		if strings.HasPrefix(e, key+"=") {
			return e
		}
	}
	t.Fatalf("env var %s not found in %v", key, env)
	return ""
}

func findVar(t *testing.T, env []string, key string) string {
	t.Helper()
	raw := findRaw(t, env, key)
	return strings.TrimPrefix(raw, key+"=")
}
