package handoff

import "strings"

// DefaultSummaryLength caps derived summaries.
const DefaultSummaryLength = 200

// Summarize extracts a short summary: skip the leading blockquote header,
// then accumulate body lines (no headings, no rules) until maxLen is reached.
// Truncates at the last whole word and appends an ellipsis when cut.
func Summarize(content string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = DefaultSummaryLength
	}

	var parts []string
	inHeader := false
	for _, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(line, ">") {
			inHeader = true
			continue
		}
		trimmed := strings.TrimSpace(line)
		if inHeader && trimmed != "" {
			inHeader = false
		}
		if inHeader || trimmed == "" {
			continue
		}
		if strings.HasPrefix(line, "#") || strings.HasPrefix(line, "---") {
			continue
		}
		parts = append(parts, trimmed)
		if len(strings.Join(parts, " ")) > maxLen {
			break
		}
	}

	summary := strings.Join(parts, " ")
	if len(summary) > maxLen {
		summary = summary[:maxLen]
	}
	if len(summary) == maxLen {
		if i := strings.LastIndex(summary, " "); i > 0 {
			summary = summary[:i]
		}
		summary += "..."
	}
	return summary
}
