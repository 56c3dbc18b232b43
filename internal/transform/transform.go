// Package transform implements the TransformerChain (spec.md §4.9): an
// ordered sequence of pure `func([]issue.Issue) []issue.Issue` stages the
// Executor runs over each file's issue batch after a Driver invocation.
// Every builder here returns a plain, unnamed function value rather than a
// package-local named type, so the result assigns directly into
// internal/executor.Transformer without this package importing
// internal/executor.
package transform

import "github.com/qlty-sh/qlty-core/internal/issue"

// Chain composes stages into one function that applies each in order, per
// spec.md §4.9's "ordered sequence of transformers" contract. A nil stage
// is skipped, so callers can build a chain conditionally (e.g. omit
// DiffLineFilter outside diff modes, omit Fixer when unconfigured) without
// filtering a slice themselves.
func Chain(stages ...func([]issue.Issue) []issue.Issue) func([]issue.Issue) []issue.Issue {
	active := make([]func([]issue.Issue) []issue.Issue, 0, len(stages))
	for _, s := range stages {
		if s != nil {
			active = append(active, s)
		}
	}
	return func(issues []issue.Issue) []issue.Issue {
		for _, s := range active {
			issues = s(issues)
		}
		return issues
	}
}
