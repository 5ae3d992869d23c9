// Package assembler packs ranked passages into a size-bounded context block.
package assembler

import (
	"strings"
	"unicode/utf8"
)

const (
	DefaultMaxTokens = 1500
	Separator        = "\n\n"
)

// EstimateTokens approximates a token as four characters of text.
func EstimateTokens(text string) int {
	if n := utf8.RuneCountInString(text) / 4; n > 1 {
		return n
	}
	return 1
}

// Build joins the passages Admit accepts with a blank line.
func Build(passages []string, maxTokens int) string {
	return strings.Join(Admit(passages, maxTokens), Separator)
}

// Admit returns trimmed passages, in order, until the next one would exceed
// maxTokens. Blank passages are skipped.
func Admit(passages []string, maxTokens int) []string {
	var parts []string
	tokens := 0

	for _, p := range passages {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}

		cost := EstimateTokens(p)
		if tokens+cost > maxTokens {
			break
		}

		parts = append(parts, p)
		tokens += cost
	}

	return parts
}
