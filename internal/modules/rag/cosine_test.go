package rag

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCosine_IdenticalVectors(t *testing.T) {
	v := []float64{0.5, 0.3, 0.2}
	assert.InDelta(t, 1.0, Cosine(v, v), 1e-9)
}

func TestCosine_OppositeVectors(t *testing.T) {
	a := []float64{1, 2, 3}
	b := []float64{-1, -2, -3}
	assert.InDelta(t, -1.0, Cosine(a, b), 1e-9)
}

func TestCosine_OrthogonalVectors(t *testing.T) {
	a := []float64{1, 0}
	b := []float64{0, 1}
	assert.InDelta(t, 0.0, Cosine(a, b), 1e-9)
}

func TestCosine_DegenerateInputs(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
	}{
		{"both nil", nil, nil},
		{"one nil", []float64{1, 2}, nil},
		{"empty", []float64{}, []float64{}},
		{"length mismatch", []float64{1, 2}, []float64{1, 2, 3}},
		{"zero magnitude", []float64{0, 0, 0}, []float64{1, 2, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, 0.0, Cosine(tt.a, tt.b))
		})
	}
}

func TestCosine_Symmetric(t *testing.T) {
	a := []float64{0.1, 0.9, 0.4}
	b := []float64{0.7, 0.2, 0.5}
	assert.InDelta(t, Cosine(a, b), Cosine(b, a), 1e-12)
}
