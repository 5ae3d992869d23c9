// Package rerank orders retrieval candidates by a hybrid score built from
// keyword overlap, heading position and embedding distance.
package rerank

import (
	"regexp"
	"sort"
	"strings"

	"github.com/xhad/docqa/internal/models"
)

const (
	// HeadingWindow is how many leading characters of a chunk count as its heading.
	HeadingWindow = 200
	HeadingBoost  = 2.0
)

var keywordPattern = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// Keywords returns the distinct lowercased word tokens of the question in
// order of first appearance.
func Keywords(question string) []string {
	tokens := keywordPattern.FindAllString(strings.ToLower(question), -1)

	seen := make(map[string]bool, len(tokens))
	keywords := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if seen[tok] {
			continue
		}
		seen[tok] = true
		keywords = append(keywords, tok)
	}
	return keywords
}

// LexicalScore counts keywords occurring anywhere in text. Matching is plain
// substring containment, so "cat" also hits "category".
func LexicalScore(text string, keywords []string) int {
	lower := strings.ToLower(text)

	score := 0
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			score++
		}
	}
	return score
}

// HeadingScore returns HeadingBoost when the whole question appears within
// the first HeadingWindow characters of text.
func HeadingScore(text, question string) float64 {
	q := strings.ToLower(question)
	head := []rune(strings.ToLower(text))
	if len(head) > HeadingWindow {
		head = head[:HeadingWindow]
	}
	if strings.Contains(string(head), q) {
		return HeadingBoost
	}
	return 0
}

// Score combines the signals for one candidate. Distance is subtracted so it
// only separates candidates with equal keyword and heading counts.
func Score(c models.Candidate, question string, keywords []string) float64 {
	return float64(LexicalScore(c.Text, keywords)) + HeadingScore(c.Text, question) - c.Distance
}

// Rerank scores every candidate and sorts by score descending. Equal scores
// keep their retrieval order.
func Rerank(candidates []models.Candidate, question string) []models.ScoredCandidate {
	keywords := Keywords(question)

	scored := make([]models.ScoredCandidate, 0, len(candidates))
	for _, c := range candidates {
		scored = append(scored, models.ScoredCandidate{
			Candidate: c,
			Score:     Score(c, question, keywords),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	return scored
}
