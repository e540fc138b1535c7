package memory

import (
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// embedDim is the dimensionality of the hashed bag-of-words vectors.
const embedDim = 256

// embed maps text to an L2-normalized hashed bag-of-words vector. Terms
// are lowercased alphanumeric runs hashed with FNV-1a into embedDim
// buckets. Deterministic and cheap; no model call on the ingest path.
func embed(text string) []float32 {
	vec := make([]float32, embedDim)

	for _, term := range tokenize(text) {
		h := fnv.New32a()
		h.Write([]byte(term))
		vec[h.Sum32()%embedDim]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	inv := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= inv
	}
	return vec
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// cosine returns the similarity of two normalized vectors.
func cosine(a, b []float32) float32 {
	var dot float32
	for i := range a {
		dot += a[i] * b[i]
	}
	return dot
}
