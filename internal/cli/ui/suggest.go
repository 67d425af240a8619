package ui

import (
	"sort"
	"strings"
)

// MaxSuggestions bounds the suggestions shown for an unknown key
const MaxSuggestions = 3

// SuggestKeys returns up to MaxSuggestions keys close to target. A key
// matches when either the whole key or its last segment is within edit
// distance of target; "relations.usr" and "usr" both suggest
// "relations.users".
func SuggestKeys(target string, keys []string) []string {
	target = strings.ToLower(target)
	limit := max(2, len(target)/5)

	type match struct {
		key      string
		distance int
	}
	var matches []match
	for _, key := range keys {
		lower := strings.ToLower(key)
		d := Distance(target, lower)
		if i := strings.LastIndex(lower, "."); i >= 0 {
			d = min(d, Distance(target, lower[i+1:]))
		}
		if d <= limit {
			matches = append(matches, match{key: key, distance: d})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].distance != matches[j].distance {
			return matches[i].distance < matches[j].distance
		}
		return matches[i].key < matches[j].key
	})

	out := make([]string, 0, MaxSuggestions)
	for i := 0; i < len(matches) && i < MaxSuggestions; i++ {
		out = append(out, matches[i].key)
	}
	return out
}

// Distance is the Levenshtein distance between a and b, in bytes
func Distance(a, b string) int {
	if a == "" {
		return len(b)
	}
	if b == "" {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}
