package logging

import (
	"fmt"
	"io"
	"strings"

	"github.com/linuxmatters/mixdesk/internal/processor"
)

// MaxReportSuggestions caps the suggestions printed per report.
const MaxReportSuggestions = 8

// suggestionWidth is the wrap column for suggestion text.
const suggestionWidth = 72

// topSuggestions returns at most limit suggestions, highest priority first.
// A rule that fired more than once keeps only its first occurrence.
func topSuggestions(s []processor.Suggestion, limit int) []processor.Suggestion {
	sorted := make([]processor.Suggestion, len(s))
	copy(sorted, s)
	processor.SortSuggestions(sorted)

	seen := make(map[string]bool, len(sorted))
	out := sorted[:0]
	for _, sg := range sorted {
		if sg.RuleID != "" && seen[sg.RuleID] {
			continue
		}
		seen[sg.RuleID] = true
		out = append(out, sg)
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// FormatSuggestions writes numbered suggestions with their reasoning
// wrapped beneath. Nothing is written for an empty list.
func FormatSuggestions(w io.Writer, s []processor.Suggestion, limit int) {
	top := topSuggestions(s, limit)
	if len(top) == 0 {
		return
	}
	for i, sg := range top {
		prefix := fmt.Sprintf("%2d. ", i+1)
		indent := strings.Repeat(" ", len(prefix))
		fmt.Fprintf(w, "%s[%s/%s] %s\n", prefix, sg.Priority, sg.Category,
			wrapText(sg.Suggestion, suggestionWidth, indent))
		if sg.Reasoning != "" {
			fmt.Fprintf(w, "%s%s\n", indent, wrapText(sg.Reasoning, suggestionWidth, indent))
		}
		fmt.Fprintf(w, "%sconfidence %.0f%%, impact %.0f%%\n", indent, sg.Confidence*100, sg.Impact*100)
	}
}

// wrapText wraps text at word boundaries to fit within maxWidth columns.
// Continuation lines are prefixed with indent.
func wrapText(text string, maxWidth int, indent string) string {
	words := strings.Fields(text)
	var lines []string
	currentLine := ""

	for _, word := range words {
		if currentLine == "" {
			currentLine = word
		} else if len(currentLine)+1+len(word) <= maxWidth {
			currentLine += " " + word
		} else {
			lines = append(lines, currentLine)
			currentLine = word
		}
	}
	if currentLine != "" {
		lines = append(lines, currentLine)
	}

	return strings.Join(lines, "\n"+indent)
}
