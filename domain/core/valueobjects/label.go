package valueobjects

import "strings"

// NormalizeLabel returns the de-duplication key for a node label:
// lowercase with surrounding whitespace removed.
func NormalizeLabel(label string) string {
	return strings.ToLower(strings.TrimSpace(label))
}

// CleanLabel trims whitespace and collapses internal runs of spaces for display
func CleanLabel(label string) string {
	return strings.Join(strings.Fields(label), " ")
}
