package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutor_Execute(t *testing.T) {
	t.Parallel()

	e := New(t.TempDir())
	err := e.Execute(context.Background(), []string{"pip install --target {{.BinPath}} {{.Package}}=={{.Version}}"}, Vars{
		Package: "echo", Version: "1.0.0", BinPath: "/tmp/x",
	}, nil)
	// pip does not exist in the test sandbox; we only assert the template
	// expanded without error before the shell rejected the command.
	assert.Error(t, err)
}

func TestExecutor_Capture(t *testing.T) {
	t.Parallel()

	e := New(t.TempDir())
	out, err := e.Capture(context.Background(), []string{"echo {{.Name}}"}, Vars{Name: "rubocop"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "rubocop", out)
}

func TestExecutor_Check(t *testing.T) {
	t.Parallel()

	e := New(t.TempDir())
	assert.True(t, e.Check(context.Background(), []string{"true"}, Vars{}, nil))
	assert.False(t, e.Check(context.Background(), []string{"false"}, Vars{}, nil))
}

func TestExecutor_ExecuteWithOutput_StreamsBothPipes(t *testing.T) {
	t.Parallel()

	e := New(t.TempDir())
	var lines []string
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := e.ExecuteWithOutput(ctx, []string{"echo out-line; echo err-line 1>&2"}, Vars{}, nil, func(line string) {
		lines = append(lines, line)
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"out-line", "err-line"}, lines)
}

func TestExecutor_Capture_TemplateError(t *testing.T) {
	t.Parallel()

	e := New(t.TempDir())
	_, err := e.Capture(context.Background(), []string{"echo {{.Missing"}, Vars{}, nil)
	assert.Error(t, err)
}
