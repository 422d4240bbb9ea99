package ocr

import "strings"

// snippet returns a shortened version of text for logging.
func snippet(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}

// normalizeOCRText collapses all whitespace runs, newlines included, to
// single spaces.
func normalizeOCRText(t string) string {
	return strings.Join(strings.Fields(t), " ")
}
