// Package gate decides whether retrieved passages can support an answer.
package gate

import (
	"regexp"
	"strings"
)

// ShortQuestionTokens is the largest question, in whitespace separated
// tokens, treated as a section or topic lookup.
const ShortQuestionTokens = 4

var (
	wordPattern = regexp.MustCompile(`\b[a-zA-Z]{3,}\b`)

	stopwords = map[string]bool{
		"what": true, "when": true, "where": true, "which": true,
		"that": true, "this": true, "with": true, "from": true,
		"have": true, "will": true, "does": true, "how": true,
	}
)

// IsShortQuestion reports whether question has at most ShortQuestionTokens tokens.
func IsShortQuestion(question string) bool {
	return len(strings.Fields(question)) <= ShortQuestionTokens
}

// Keywords extracts the lowercased words of three or more letters that are
// not stopwords. Duplicates are kept.
func Keywords(question string) []string {
	var keywords []string
	for _, w := range wordPattern.FindAllString(strings.ToLower(question), -1) {
		if !stopwords[w] {
			keywords = append(keywords, w)
		}
	}
	return keywords
}

// IsAnswerable is true for short questions, and otherwise only when at least
// one text contains at least one question keyword.
func IsAnswerable(texts []string, question string) bool {
	if IsShortQuestion(question) {
		return true
	}

	keywords := Keywords(question)
	for _, text := range texts {
		lower := strings.ToLower(text)
		for _, k := range keywords {
			if strings.Contains(lower, k) {
				return true
			}
		}
	}
	return false
}
