// Package interp implements the `${...}` variable interpolation shared by
// Tool environment assembly (internal/tool) and Driver command templating
// (internal/driver): both substitute a small fixed vocabulary of tokens
// (env.X, linter, cachedir, runtime, target, …) inside a string.
package interp

import "regexp"

var pattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_.]*)\}`)

// Expand replaces every `${token}` occurrence in value using resolve(token).
// A token resolve leaves unresolved (resolve returns ok=false) is left
// untouched in the output, matching the teacher's original
// leave-unknown-tokens-alone behavior.
func Expand(value string, resolve func(token string) (string, bool)) string {
	return pattern.ReplaceAllStringFunc(value, func(match string) string {
		token := match[2 : len(match)-1]
		if v, ok := resolve(token); ok {
			return v
		}
		return match
	})
}
