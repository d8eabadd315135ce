package utils

import "strings"

// Truncate returns s shortened to maxLen bytes, with "..." appended when
// anything was cut. maxLen <= 0 disables truncation.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// CollapseSpaces trims s and collapses runs of whitespace (including newlines
// inside a line) to single spaces, preserving paragraph breaks ("\n\n").
func CollapseSpaces(s string) string {
	paragraphs := strings.Split(s, "\n\n")
	out := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		p = strings.Join(strings.Fields(p), " ")
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "\n\n")
}
