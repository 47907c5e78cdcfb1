package ui

import (
	"sort"
	"strings"
)

// MaxDistance is the largest edit distance Suggest still offers
const MaxDistance = 3

// MaxSuggestions caps the number of names Suggest returns
const MaxSuggestions = 3

// Suggest returns the candidates closest to target by case-insensitive edit
// distance, nearest first
func Suggest(target string, candidates []string) []string {
	type match struct {
		name     string
		distance int
	}

	var matches []match
	lower := strings.ToLower(target)
	for _, c := range candidates {
		if d := Distance(lower, strings.ToLower(c)); d <= MaxDistance {
			matches = append(matches, match{c, d})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].distance < matches[j].distance
	})

	out := make([]string, 0, MaxSuggestions)
	for i := 0; i < len(matches) && i < MaxSuggestions; i++ {
		out = append(out, matches[i].name)
	}
	return out
}

// Distance is the Levenshtein distance between a and b, counted in runes
func Distance(a, b string) int {
	s, t := []rune(a), []rune(b)
	if len(s) == 0 {
		return len(t)
	}
	if len(t) == 0 {
		return len(s)
	}

	prev := make([]int, len(t)+1)
	curr := make([]int, len(t)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(s); i++ {
		curr[0] = i
		for j := 1; j <= len(t); j++ {
			cost := 1
			if s[i-1] == t[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(t)]
}
