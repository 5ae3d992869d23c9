package eval

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrecisionAtK(t *testing.T) {
	assert.Equal(t, 0.0, PrecisionAtK(nil, []string{"a"}))
	assert.Equal(t, 0.5, PrecisionAtK([]string{"a", "b", "a"}, []string{"a", "c"}))
	assert.Equal(t, 0.333, PrecisionAtK([]string{"a", "b", "c"}, []string{"c"}))
	assert.Equal(t, 1.0, PrecisionAtK([]string{"a"}, []string{"a", "b"}))
}

func TestRecall(t *testing.T) {
	assert.Equal(t, 0.0, Recall([]string{"a"}, nil))
	assert.Equal(t, 0.5, Recall([]string{"a", "x"}, []string{"a", "b"}))
	assert.Equal(t, 0.667, Recall([]string{"a", "b"}, []string{"a", "b", "c", "c"}))
}

func TestAverageDistance(t *testing.T) {
	assert.Equal(t, 0.0, AverageDistance(nil))
	assert.Equal(t, 0.2, AverageDistance([]float64{0.1, 0.3}))
	assert.Equal(t, 0.333, AverageDistance([]float64{0, 0, 1}))
}
