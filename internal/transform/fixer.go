package transform

import (
	"context"

	"github.com/qlty-sh/qlty-core/internal/issue"
)

// FixSuggester proposes a fix for one issue given its snippet context.
// The anthropic-sdk-go-backed implementation lives at the config/CLI layer
// (it needs an API key and model selection); this package only defines the
// seam so Fixer stays a pure issue transformer with an injected dependency,
// matching the Executor's own ToolResolver injection convention.
type FixSuggester interface {
	Suggest(ctx context.Context, iss issue.Issue) (*issue.Suggestion, error)
}

// DefaultMaxFixSuggestions bounds how many issues one Fixer pass will send
// to the suggester per file batch, since each call is a network round trip.
const DefaultMaxFixSuggestions = 10

// Fixer builds the §4.9 step 4 stage (enabled only when a suggester is
// configured): augments up to maxSuggestions issues per batch with an
// LLM-generated issue.Suggestion, skipping issues that already carry a
// tool-produced suggestion. Suggester failures are swallowed per-issue; a
// Fixer outage must not fail the run, only leave that issue unaugmented.
func Fixer(ctx context.Context, suggester FixSuggester, maxSuggestions int) func([]issue.Issue) []issue.Issue {
	if suggester == nil {
		return nil
	}
	if maxSuggestions <= 0 {
		maxSuggestions = DefaultMaxFixSuggestions
	}
	return func(issues []issue.Issue) []issue.Issue {
		sent := 0
		out := make([]issue.Issue, len(issues))
		for i, iss := range issues {
			out[i] = iss
			if sent >= maxSuggestions || len(iss.Suggestions) > 0 {
				continue
			}
			suggestion, err := suggester.Suggest(ctx, iss)
			sent++
			if err != nil || suggestion == nil {
				continue
			}
			suggestion.Source = issue.SuggestionSourceLLM
			out[i].Suggestions = append(out[i].Suggestions, *suggestion)
		}
		return out
	}
}
