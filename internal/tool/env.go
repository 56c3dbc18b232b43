package tool

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/qlty-sh/qlty-core/internal/interp"
)

// allowedEnvVarsPOSIX is the allow-listed set of ambient OS variables child
// processes inherit on POSIX systems.
var allowedEnvVarsPOSIX = []string{"HOME", "HTTP_PROXY", "HTTPS_PROXY", "NO_PROXY", "http_proxy", "https_proxy", "no_proxy", "LANG", "LC_ALL", "TMPDIR", "USER", "SHELL"}

// allowedEnvVarsWindows is the allow-listed set for Windows.
var allowedEnvVarsWindows = []string{"SYSTEMROOT", "TEMP", "TMP", "USERPROFILE", "APPDATA", "LOCALAPPDATA", "HOMEDRIVE", "HOMEPATH"}

func basePath() string {
	if runtime.GOOS == "windows" {
		systemRoot := os.Getenv("SYSTEMROOT")
		if systemRoot == "" {
			systemRoot = `C:\Windows`
		}
		return systemRoot + `\System32;` + systemRoot
	}
	return "/usr/local/bin:/usr/bin:/bin:/usr/sbin:/sbin"
}

func allowedEnvVars() []string {
	if runtime.GOOS == "windows" {
		return allowedEnvVarsWindows
	}
	return allowedEnvVarsPOSIX
}

// EnvContext is the set of values available for ${...} interpolation and
// for computing a tool's PATH.
type EnvContext struct {
	WorkspaceRoot string
	CacheDir      string
}

// Env assembles the environment for a child process that runs this tool:
// an allow-listed slice of the current OS environment, the tool's own PATH
// contribution, and any plugin/runtime-declared extra variables.
func (t *Tool) Env(dir string, ectx EnvContext) []string {
	env := make(map[string]string)
	for _, name := range allowedEnvVars() {
		if v, ok := os.LookupEnv(name); ok {
			env[name] = v
		}
	}

	env["PATH"] = t.path(dir, ectx)

	for _, e := range t.spec.Env {
		if e.IsPATH {
			continue
		}
		env[e.Name] = interpolate(e.Value, t, dir, ectx)
	}

	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}

// path computes PATH as: plugin-declared PATH entries (if any), else
// <dir>/bin + <dir> + recursively the runtime's extra paths, always
// appended by the base shell PATH.
func (t *Tool) path(dir string, ectx EnvContext) string {
	var entries []string

	hasDeclaredPath := false
	for _, e := range t.spec.Env {
		if e.IsPATH {
			entries = append(entries, interpolate(e.Value, t, dir, ectx))
			hasDeclaredPath = true
		}
	}

	if !hasDeclaredPath {
		entries = append(entries, filepath.Join(dir, "bin"), dir)
		if rt, ok := t.Runtime(); ok {
			entries = append(entries, strings.Split(rt.path(rt.lastKnownDir, ectx), string(os.PathListSeparator))...)
		}
	}

	entries = append(entries, basePath())
	return strings.Join(dedupe(entries), string(os.PathListSeparator))
}

func dedupe(ss []string) []string {
	seen := make(map[string]bool, len(ss))
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// interpolate expands ${env.NAME}, ${linter}, ${cachedir}, ${runtime}
// inside value.
func interpolate(value string, t *Tool, dir string, ectx EnvContext) string {
	return interp.Expand(value, func(token string) (string, bool) {
		switch {
		case token == "linter":
			return dir, true
		case token == "cachedir":
			return filepath.Join(ectx.WorkspaceRoot, ".qlty", "plugin_cachedir"), true
		case token == "runtime":
			if rt, ok := t.Runtime(); ok {
				return rt.lastKnownDir, true
			}
			return "", true
		case strings.HasPrefix(token, "env."):
			return os.Getenv(strings.TrimPrefix(token, "env.")), true
		default:
			return "", false
		}
	})
}
