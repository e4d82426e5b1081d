package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSampleDefaultQuestions(t *testing.T) {
	questions := sampleDefaultQuestions(5)
	assert.Len(t, questions, 5)

	seen := make(map[string]bool)
	for _, q := range questions {
		assert.False(t, seen[q], "duplicate question %q", q)
		seen[q] = true
		assert.Contains(t, defaultQuestions, q)
	}

	// Requests beyond the pool are capped, not padded.
	assert.Len(t, sampleDefaultQuestions(len(defaultQuestions)+10), len(defaultQuestions))

	assert.Empty(t, sampleDefaultQuestions(0))
}

func TestRandomIndexBounds(t *testing.T) {
	for _, n := range []int{2, 3, 36, len(defaultQuestions)} {
		for i := 0; i < 100; i++ {
			idx := randomIndex(n)
			assert.GreaterOrEqual(t, idx, 0)
			assert.Less(t, idx, n)
		}
	}
}
