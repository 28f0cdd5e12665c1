package semantic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

func TestHashEmbedderDeterministic(t *testing.T) {
	e := NewHashEmbedder()
	a := e.Embed("generate a professional summary for this resume")
	b := e.Embed("generate a professional summary for this resume")

	require.Len(t, a, hashDims)
	assert.Equal(t, a, b)
	assert.InDelta(t, 1.0, floats.Norm(a, 2), 1e-9)
}

func TestHashEmbedderSimilarity(t *testing.T) {
	e := NewHashEmbedder()
	a := e.Embed("write a cover letter for software engineer role")
	b := e.Embed("write a cover letter for the software engineer position")
	c := e.Embed("summarize quarterly revenue figures finance team")

	assert.Greater(t, cosine(a, b), 0.85, "paraphrases should read as similar")
	assert.InDelta(t, 0.0, cosine(a, c), 1e-9, "disjoint vocabularies should not match")
}

func TestTFIDFEmbedderUnfitted(t *testing.T) {
	e := NewTFIDFEmbedder(0)
	assert.False(t, e.Fitted())
	assert.Empty(t, e.Embed("anything at all"))
}

func TestTFIDFEmbedderFitEmptyCorpus(t *testing.T) {
	e := NewTFIDFEmbedder(0)
	e.Fit(nil)
	assert.False(t, e.Fitted())
}

func TestTFIDFEmbedderFitAndEmbed(t *testing.T) {
	e := NewTFIDFEmbedder(0)
	e.Fit([]string{
		"resume summary for a backend engineer",
		"resume summary for a frontend engineer",
		"cover letter for a product manager",
	})
	require.True(t, e.Fitted())

	a := e.Embed("resume summary for a backend engineer")
	b := e.Embed("resume summary for a frontend engineer")
	c := e.Embed("cover letter for a product manager")

	assert.InDelta(t, 1.0, floats.Norm(a, 2), 1e-9)
	assert.Greater(t, cosine(a, b), cosine(a, c),
		"documents sharing rare terms should be closer")

	// Terms never seen during fitting contribute nothing.
	assert.InDelta(t, 0.0, floats.Norm(e.Embed("völlig unbekannte wörter"), 2), 1e-9)
}

func TestTFIDFEmbedderCapsFeatures(t *testing.T) {
	e := NewTFIDFEmbedder(3)
	e.Fit([]string{
		"alpha beta gamma delta",
		"alpha beta gamma epsilon",
		"alpha beta zeta eta",
	})
	require.True(t, e.Fitted())
	assert.Len(t, e.vocab, 3)
	// The most widespread terms survive the cap.
	assert.Contains(t, e.vocab, "alpha")
	assert.Contains(t, e.vocab, "beta")
	assert.Contains(t, e.vocab, "gamma")
}

func TestCosineGuards(t *testing.T) {
	assert.Equal(t, 0.0, cosine(nil, nil))
	assert.Equal(t, 0.0, cosine([]float64{1, 0}, []float64{1, 0, 0}))
	assert.Equal(t, 0.0, cosine([]float64{0, 0}, []float64{1, 0}))
	assert.InDelta(t, 1.0, cosine([]float64{0.6, 0.8}, []float64{0.6, 0.8}), 1e-9)
}
