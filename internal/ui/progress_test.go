package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/qlty-sh/qlty-core/internal/executor"
	"github.com/qlty-sh/qlty-core/internal/planner"
)

// In non-interactive test runs os.Stdout isn't a TTY, so NewProgress always
// takes the plain-line fallback path here; the mpb bar path is exercised
// manually against a real terminal, the same boundary tomei's own
// progress.go draws (its tests stub engine events, not terminal detection).
func TestProgress_PrintsStartAndFinishLines(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	p := NewProgress(&buf)
	fn := p.EventFunc()

	fn(executor.Event{Kind: executor.EventInvocationStart, PluginName: "rubocop", DriverName: "lint", Verb: planner.VerbCheck})
	fn(executor.Event{Kind: executor.EventInvocationDone, PluginName: "rubocop", DriverName: "lint", Verb: planner.VerbCheck})

	out := buf.String()
	assert.True(t, strings.Contains(out, "rubocop/lint"))
	assert.True(t, strings.Contains(out, "done"))
}

func TestProgress_ReportsFailure(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	p := NewProgress(&buf)
	fn := p.EventFunc()

	fn(executor.Event{Kind: executor.EventInvocationStart, PluginName: "eslint", DriverName: "lint"})
	fn(executor.Event{Kind: executor.EventInvocationFailed, PluginName: "eslint", DriverName: "lint", Err: assert.AnError})

	assert.True(t, strings.Contains(buf.String(), "failed"))
}
