package stringslice

import "strings"

// ContainsFold returns true if the given string is present at least once in the slice,
// ignoring case
func ContainsFold(col []string, item string) bool {
	for i := range col {
		if strings.EqualFold(col[i], item) {
			return true
		}
	}
	return false
}

// Unique returns the distinct non-empty strings of col, in order of first appearance.
// Strings differing only in case are considered equal, the first spelling wins.
// Does not mutate col
func Unique(col []string) []string {
	out := make([]string, 0, len(col))
	for _, item := range col {
		if item == "" || ContainsFold(out, item) {
			continue
		}
		out = append(out, item)
	}
	return out
}
