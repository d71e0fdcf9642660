package textindex

import "math"

// Cosine returns the cosine similarity of two vectors over the same
// vocabulary. Vectors from FitTransform are already L2-normalized, so
// this is a plain dot product with a zero-norm guard for callers that
// build vectors by hand.
func Cosine(a, b Vector) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	// Normalized inputs make na and nb 1; skip the sqrt then.
	if na > 0.9999 && na < 1.0001 && nb > 0.9999 && nb < 1.0001 {
		return dot
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// SimilarityMatrix computes pairwise cosine similarities. The result is
// symmetric with a unit diagonal for nonzero vectors.
func SimilarityMatrix(vecs []Vector) [][]float64 {
	m := make([][]float64, len(vecs))
	for i := range vecs {
		m[i] = make([]float64, len(vecs))
	}
	for i := range vecs {
		for j := i; j < len(vecs); j++ {
			s := Cosine(vecs[i], vecs[j])
			m[i][j] = s
			m[j][i] = s
		}
	}
	return m
}

// CrossSimilarity computes similarities between two vector sets: one
// row per vector in a, one column per vector in b.
func CrossSimilarity(a, b []Vector) [][]float64 {
	m := make([][]float64, len(a))
	for i := range a {
		m[i] = make([]float64, len(b))
		for j := range b {
			m[i][j] = Cosine(a[i], b[j])
		}
	}
	return m
}
