package assembler_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/docqa/pkg/assembler"
)

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 1, assembler.EstimateTokens(""))
	assert.Equal(t, 1, assembler.EstimateTokens("abc"))
	assert.Equal(t, 1, assembler.EstimateTokens("abcdefg"))
	assert.Equal(t, 2, assembler.EstimateTokens("abcdefgh"))
	assert.Equal(t, 250, assembler.EstimateTokens(strings.Repeat("a", 1003)))
}

func TestEstimateTokens_CountsCharacters(t *testing.T) {
	accented := strings.Repeat("é", 400)
	require.Len(t, accented, 800)

	assert.Equal(t, 100, assembler.EstimateTokens(accented))
	assert.Equal(t, 2, assembler.EstimateTokens("日本語のテキスト"))
	assert.Equal(t, accented, assembler.Build([]string{accented}, 150))
	assert.Empty(t, assembler.Build([]string{accented}, 99))
}

func TestBuild(t *testing.T) {
	a := strings.Repeat("a", 40) // 10 tokens
	b := strings.Repeat("b", 80) // 20 tokens
	c := strings.Repeat("c", 20) // 5 tokens

	tests := []struct {
		name      string
		passages  []string
		maxTokens int
		want      string
	}{
		{"all fit", []string{a, b, c}, 35, a + "\n\n" + b + "\n\n" + c},
		{"stops at first overflow", []string{a, b, c}, 29, a},
		{"blank passages skipped", []string{"  ", a, "\n\t", c}, 100, a + "\n\n" + c},
		{"passages trimmed", []string{"  " + a + "\n"}, 10, a},
		{"too small for first", []string{b, c}, 19, ""},
		{"empty input", nil, 100, ""},
		{"zero budget", []string{a}, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, assembler.Build(tt.passages, tt.maxTokens))
		})
	}
}

func TestBuild_Bounded(t *testing.T) {
	var passages []string
	for i := 1; i <= 40; i++ {
		passages = append(passages, strings.Repeat("word ", i*3))
	}

	for _, max := range []int{0, 1, 5, 17, 64, 200, 1500} {
		out := assembler.Build(passages, max)

		total := 0
		if out != "" {
			for _, part := range strings.Split(out, assembler.Separator) {
				total += assembler.EstimateTokens(part)
			}
		}
		assert.LessOrEqual(t, total, max)
	}
}

func TestAdmit(t *testing.T) {
	got := assembler.Admit([]string{" first ", "", strings.Repeat("x", 400), "third"}, 50)
	assert.Equal(t, []string{"first"}, got)
	assert.Empty(t, assembler.Admit(nil, 10))
}
