package ui

import (
	"github.com/fatih/color"

	"github.com/qlty-sh/qlty-core/internal/issue"
)

// Style holds common output styling for the check/fmt/plan commands.
type Style struct {
	OKMark    string
	FailMark  string
	WarnMark  string
	SkipMark  string
	Path      *color.Color
	Header    *color.Color
	RuleKey   *color.Color
	PluginTag *color.Color
}

// NewStyle creates a Style with qlty's standard colors.
func NewStyle() *Style {
	return &Style{
		OKMark:    color.New(color.FgGreen).Sprint("✓"),
		FailMark:  color.New(color.FgRed).Sprint("✗"),
		WarnMark:  color.New(color.FgYellow).Sprint("⚠"),
		SkipMark:  color.New(color.FgHiBlack).Sprint("-"),
		Path:      color.New(color.FgCyan),
		Header:    color.New(color.FgCyan, color.Bold),
		RuleKey:   color.New(color.FgHiBlack),
		PluginTag: color.New(color.FgMagenta),
	}
}

// LevelMark returns the marker glyph for an issue's level.
func (s *Style) LevelMark(level issue.Level) string {
	switch level {
	case issue.LevelHigh:
		return s.FailMark
	case issue.LevelMedium, issue.LevelLow:
		return s.WarnMark
	case issue.LevelFmt, issue.LevelNote:
		return s.SkipMark
	default:
		return s.OKMark
	}
}
