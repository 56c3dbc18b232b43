package interp_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/qlty-sh/qlty-core/internal/interp"
)

func TestExpand_ReplacesKnownTokens(t *testing.T) {
	t.Parallel()

	out := interp.Expand("hello ${name}", func(token string) (string, bool) {
		if token == "name" {
			return "world", true
		}
		return "", false
	})
	assert.Equal(t, "hello world", out)
}

func TestExpand_LeavesUnknownTokenVerbatim(t *testing.T) {
	t.Parallel()

	out := interp.Expand("hello ${mystery}", func(string) (string, bool) { return "", false })
	assert.Equal(t, "hello ${mystery}", out)
}

func TestExpand_HandlesDottedTokens(t *testing.T) {
	t.Parallel()

	out := interp.Expand("${env.HOME}", func(token string) (string, bool) {
		assert.Equal(t, "env.HOME", token)
		return "/root", true
	})
	assert.Equal(t, "/root", out)
}
