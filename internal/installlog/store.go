// Package installlog persists a structured record of every Tool install
// attempt (script, captured output, exit code, timing) so a failed setup
// can be diagnosed after the fact without re-running the install.
package installlog

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Installation is one persisted install attempt.
type Installation struct {
	ToolName   string
	Script     string
	Stdout     string
	Stderr     string
	ExitCode   int
	StartedAt  time.Time
	FinishedAt time.Time
}

// logSuffix names the log file as a sibling of the tool's install directory:
// "<dir>-install.log".
const logSuffix = "-install.log"

// Store writes Installation records as the sibling "<dir>-install.log" of
// whatever install directory is passed to Write. One Store is shared across
// every tool in a run; it carries no state of its own beyond that naming
// convention.
type Store struct{}

// NewStore returns a Store. It is stateless; baseDir is no longer needed
// since each log lives next to its own install directory.
func NewStore() *Store {
	return &Store{}
}

// Write appends inst to the install log sibling of dir (the tool's install
// directory), creating it if absent, and returns the log's path. Each retry
// attempt appends rather than overwrites, so the log spans the whole
// install history for that directory.
func (s *Store) Write(dir string, inst Installation) (string, error) {
	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return "", fmt.Errorf("create install log parent dir: %w", err)
	}

	path := dir + logSuffix
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return "", fmt.Errorf("open install log file: %w", err)
	}
	defer f.Close()

	fmt.Fprintf(f, "tool: %s\n", inst.ToolName)
	fmt.Fprintf(f, "script: %s\n", inst.Script)
	fmt.Fprintf(f, "exit_code: %d\n", inst.ExitCode)
	fmt.Fprintf(f, "started_at: %s\n", inst.StartedAt.UTC().Format(time.RFC3339Nano))
	fmt.Fprintf(f, "finished_at: %s\n", inst.FinishedAt.UTC().Format(time.RFC3339Nano))
	fmt.Fprintln(f, "--- stdout ---")
	fmt.Fprintln(f, inst.Stdout)
	fmt.Fprintln(f, "--- stderr ---")
	fmt.Fprintln(f, inst.Stderr)

	return path, nil
}

// Tail returns the last n lines of the log file at path, or fewer if the
// file is shorter.
func Tail(path string, n int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open install log: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if len(lines) > n {
			lines = lines[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read install log: %w", err)
	}
	return lines, nil
}

// Summary renders lines with a header naming path, for attaching to an
// error or writing to stderr.
func Summary(path string, lines []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "install log (%s):\n", path)
	for _, l := range lines {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	return b.String()
}
