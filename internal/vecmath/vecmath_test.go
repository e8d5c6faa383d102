package vecmath

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine([]float32{1, 2}, []float32{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Equal(t, 0.0, Cosine([]float32{1}, []float32{1, 2}))
	assert.Equal(t, 0.0, Cosine([]float32{0, 0}, []float32{1, 2}))
}

func TestMeanSkipsMismatchedDims(t *testing.T) {
	assert.Equal(t, []float32{2, 3}, Mean([][]float32{{1, 2}, {3, 4}, {9}}))
	assert.Nil(t, Mean(nil))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.3, Clamp(0.1, 0.3, 1))
	assert.Equal(t, 1.0, Clamp(1.4, 0.3, 1))
	assert.Equal(t, 0.5, Clamp(0.5, 0.3, 1))
}
