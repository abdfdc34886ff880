package utils

import "strings"

// UniqueStrings returns the input without duplicates, keeping first occurrences
// in order. Blank strings are dropped.
func UniqueStrings(input []string) []string {
	seen := make(map[string]bool)
	var result []string
	for _, val := range input {
		if strings.TrimSpace(val) == "" {
			continue
		}
		if !seen[val] {
			result = append(result, val)
			seen[val] = true
		}
	}
	return result
}

// MergeStrings concatenates the given slices and de-duplicates the result.
func MergeStrings(slices ...[]string) []string {
	var all []string
	for _, s := range slices {
		all = append(all, s...)
	}
	return UniqueStrings(all)
}

// Intersects reports whether a and b share at least one element.
func Intersects(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	set := make(map[string]struct{}, len(small))
	for _, s := range small {
		set[s] = struct{}{}
	}
	for _, s := range large {
		if _, ok := set[s]; ok {
			return true
		}
	}
	return false
}

// ClampInt bounds v into [lo, hi]. When hi < lo, lo wins.
func ClampInt(v, lo, hi int) int {
	if v > hi {
		v = hi
	}
	if v < lo {
		v = lo
	}
	return v
}
