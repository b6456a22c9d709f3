package rag

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmbeddingCache_KeyNormalization(t *testing.T) {
	cache := NewEmbeddingCache()
	cache.Put("  Dragones Amistosos ", []float64{0.1, 0.2})

	vec, ok := cache.Get("dragones amistosos")
	assert.True(t, ok)
	assert.Equal(t, []float64{0.1, 0.2}, vec)
	assert.True(t, cache.Has("DRAGONES AMISTOSOS"))
}

func TestEmbeddingCache_NilVectorIgnored(t *testing.T) {
	cache := NewEmbeddingCache()
	cache.Put("tema", nil)
	cache.Put("otro", []float64{})

	assert.False(t, cache.Has("tema"))
	assert.False(t, cache.Has("otro"))
	assert.Equal(t, 0, cache.Size())
}

func TestEmbeddingCache_Clear(t *testing.T) {
	cache := NewEmbeddingCache()
	cache.Put("a", []float64{1})
	cache.Put("b", []float64{2})
	assert.Equal(t, 2, cache.Size())
	assert.ElementsMatch(t, []string{"a", "b"}, cache.Keys())

	removed := cache.Clear()
	assert.Equal(t, 2, removed)
	assert.Equal(t, 0, cache.Size())
	assert.False(t, cache.Has("a"))
}
