package reddit

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"mcp-fleet/internal/shape"
)

// terms splits a query into distinct lower-case words.
func terms(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]bool, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}

// relevance scores a post against the query: three points per query term in
// the title, one per term in the body, three more when the title holds the
// whole phrase, plus dampened engagement.
func relevance(query string, words []string, title, body string, ups, comments float64) float64 {
	title, body = strings.ToLower(title), strings.ToLower(body)
	score := 0.0
	for _, w := range words {
		if strings.Contains(title, w) {
			score += 3
		}
		if strings.Contains(body, w) {
			score++
		}
	}
	if phrase := strings.ToLower(strings.TrimSpace(query)); phrase != "" && strings.Contains(title, phrase) {
		score += 3
	}
	score += 0.5*math.Log10(1+math.Max(ups, 0)) + 0.25*math.Log10(1+math.Max(comments, 0))
	return math.Round(score*1000) / 1000
}

// rank orders posts by descending relevance. Ties keep Reddit's order.
func rank(query string, posts []map[string]any) {
	words := terms(query)
	for _, p := range posts {
		p["relevance"] = relevance(query, words,
			shape.String(p["title"]), shape.String(p["selftext"]), shape.Float(p["score"]), shape.Float(p["num_comments"]))
	}
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i]["relevance"].(float64) > posts[j]["relevance"].(float64)
	})
}
