package transform

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/qlty-sh/qlty-core/internal/issue"
)

// DefaultSnippetContextLines is how many lines of surrounding source
// snippet_with_context carries on either side of an issue's start line.
const DefaultSnippetContextLines = 3

// SourceExtractor builds the §4.9 step 2 stage: attaches Snippet (the
// issue's own line) and SnippetWithContext (contextLines on either side) by
// reading the staged source under stagingRoot. Issues without a Range, or
// whose file can't be read, pass through unchanged.
func SourceExtractor(stagingRoot string, contextLines int) func([]issue.Issue) []issue.Issue {
	if contextLines <= 0 {
		contextLines = DefaultSnippetContextLines
	}
	return func(issues []issue.Issue) []issue.Issue {
		if len(issues) == 0 {
			return issues
		}
		fileLines := make(map[string][]string)
		out := make([]issue.Issue, len(issues))
		for i, iss := range issues {
			out[i] = iss
			if iss.Location.Range == nil {
				continue
			}
			lines, ok := fileLines[iss.Location.Path]
			if !ok {
				lines = readLines(filepath.Join(stagingRoot, iss.Location.Path))
				fileLines[iss.Location.Path] = lines
			}
			if lines == nil {
				continue
			}
			out[i].Snippet = lineAt(lines, iss.Location.Range.StartLine)
			out[i].SnippetWithContext = linesAround(lines, iss.Location.Range.StartLine, contextLines)
		}
		return out
	}
}

func readLines(path string) []string {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	return strings.Split(string(data), "\n")
}

// lineAt returns the 1-based line, or "" if out of range.
func lineAt(lines []string, n int) string {
	if n < 1 || n > len(lines) {
		return ""
	}
	return lines[n-1]
}

func linesAround(lines []string, n, context int) string {
	if n < 1 || n > len(lines) {
		return ""
	}
	start := n - context
	if start < 1 {
		start = 1
	}
	end := n + context
	if end > len(lines) {
		end = len(lines)
	}
	return strings.Join(lines[start-1:end], "\n")
}
