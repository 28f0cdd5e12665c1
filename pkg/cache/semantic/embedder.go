package semantic

import (
	"hash/fnv"
	"math"
	"sort"
	"strings"
	"unicode"

	"gonum.org/v1/gonum/floats"
)

// Embedder turns text into a fixed-length vector for similarity comparison.
// Implementations must be deterministic for a given fitted state.
type Embedder interface {
	Embed(text string) []float64
	// Fitted reports whether the embedder has been trained on a corpus.
	Fitted() bool
}

// FittableEmbedder can be retrained over the live prompt corpus.
type FittableEmbedder interface {
	Embedder
	Fit(corpus []string)
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

const (
	hashDims     = 100
	hashMaxWords = 50
)

// HashEmbedder is the always-available fallback strategy: a position-weighted
// hashed bag of words. No training required, stable across restarts.
type HashEmbedder struct{}

// NewHashEmbedder creates a HashEmbedder.
func NewHashEmbedder() *HashEmbedder { return &HashEmbedder{} }

// Fitted implements Embedder; the hash strategy needs no corpus.
func (e *HashEmbedder) Fitted() bool { return false }

// Embed implements Embedder. Earlier words weigh more, so prompts sharing an
// opening read as closer than prompts sharing a tail.
func (e *HashEmbedder) Embed(text string) []float64 {
	vec := make([]float64, hashDims)
	words := tokenize(text)
	if len(words) > hashMaxWords {
		words = words[:hashMaxWords]
	}
	for i, w := range words {
		h := fnv.New32a()
		h.Write([]byte(w))
		vec[h.Sum32()%hashDims] += 1.0 / float64(i+1)
	}
	normalize(vec)
	return vec
}

// TFIDFEmbedder is the trained strategy: TF-IDF over a vocabulary fitted on
// the live prompt corpus, L2-normalized, feature count capped. Re-fitting
// changes the vector space, so the owning cache re-embeds its entries after
// every fit.
type TFIDFEmbedder struct {
	maxFeatures int
	vocab       map[string]int
	idf         []float64
	fitted      bool
}

// NewTFIDFEmbedder creates an unfitted TFIDFEmbedder.
func NewTFIDFEmbedder(maxFeatures int) *TFIDFEmbedder {
	if maxFeatures <= 0 {
		maxFeatures = 512
	}
	return &TFIDFEmbedder{maxFeatures: maxFeatures}
}

// Fitted implements Embedder.
func (e *TFIDFEmbedder) Fitted() bool { return e.fitted }

// Fit builds the vocabulary and inverse document frequencies from corpus.
// An empty corpus leaves the embedder unfitted.
func (e *TFIDFEmbedder) Fit(corpus []string) {
	if len(corpus) == 0 {
		return
	}

	df := make(map[string]int)
	for _, doc := range corpus {
		seen := make(map[string]bool)
		for _, term := range tokenize(doc) {
			if !seen[term] {
				seen[term] = true
				df[term]++
			}
		}
	}

	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	// Keep the most widespread terms; break ties lexically so fitting is
	// deterministic for a given corpus.
	sort.Slice(terms, func(i, j int) bool {
		if df[terms[i]] != df[terms[j]] {
			return df[terms[i]] > df[terms[j]]
		}
		return terms[i] < terms[j]
	})
	if len(terms) > e.maxFeatures {
		terms = terms[:e.maxFeatures]
	}
	sort.Strings(terms)

	n := float64(len(corpus))
	e.vocab = make(map[string]int, len(terms))
	e.idf = make([]float64, len(terms))
	for i, term := range terms {
		e.vocab[term] = i
		e.idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1
	}
	e.fitted = true
}

// Embed implements Embedder. Terms outside the fitted vocabulary are ignored.
func (e *TFIDFEmbedder) Embed(text string) []float64 {
	vec := make([]float64, len(e.vocab))
	if !e.fitted {
		return vec
	}
	for _, term := range tokenize(text) {
		if idx, ok := e.vocab[term]; ok {
			vec[idx] += e.idf[idx]
		}
	}
	normalize(vec)
	return vec
}

func normalize(vec []float64) {
	n := floats.Norm(vec, 2)
	if n > 0 {
		floats.Scale(1/n, vec)
	}
}

// cosine returns the cosine similarity of two vectors. Vectors from
// different embedding spaces (mismatched lengths) compare as 0.
func cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	na := floats.Norm(a, 2)
	nb := floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	return floats.Dot(a, b) / (na * nb)
}
