package textindex

import (
	"math"
	"testing"
)

func TestFitTransformVocabulary(t *testing.T) {
	docs := []string{
		"invoice payment invoice",
		"payment reminder",
		"weekly newsletter",
	}
	vectors, vocab := NewVectorizer(0, "").FitTransform(docs)

	if len(vectors) != 3 {
		t.Fatalf("got %d vectors, want 3", len(vectors))
	}
	want := []string{"invoice", "newsletter", "payment", "reminder", "weekly"}
	if len(vocab) != len(want) {
		t.Fatalf("vocab = %v, want %v", vocab, want)
	}
	for i, term := range want {
		if vocab[i] != term {
			t.Fatalf("vocab = %v, want %v", vocab, want)
		}
	}
	for i, vec := range vectors {
		if len(vec) != len(vocab) {
			t.Errorf("vector %d has %d columns, want %d", i, len(vec), len(vocab))
		}
	}
}

func TestFitTransformVectorsAreNormalized(t *testing.T) {
	docs := []string{
		"alpha beta gamma alpha",
		"delta epsilon",
	}
	vectors, _ := NewVectorizer(0, "").FitTransform(docs)
	for i, vec := range vectors {
		var sum float64
		for _, w := range vec {
			sum += w * w
		}
		if math.Abs(sum-1) > 1e-9 {
			t.Errorf("vector %d norm^2 = %v, want 1", i, sum)
		}
	}
}

func TestMaxFeaturesKeepsMostFrequent(t *testing.T) {
	docs := []string{
		"common common common rare",
		"common other other",
	}
	_, vocab := NewVectorizer(2, "").FitTransform(docs)
	if len(vocab) != 2 {
		t.Fatalf("vocab = %v, want 2 terms", vocab)
	}
	// "common" (4) and "other" (2) beat "rare" (1).
	if vocab[0] != "common" || vocab[1] != "other" {
		t.Errorf("vocab = %v, want [common other]", vocab)
	}
}

func TestMaxFeaturesTiesBreakAlphabetically(t *testing.T) {
	docs := []string{"zebra apple", "zebra apple mango"}
	_, vocab := NewVectorizer(2, "").FitTransform(docs)
	// apple and zebra both appear twice; mango once. The tie keeps both
	// two-count terms regardless of order, mango is cut.
	if len(vocab) != 2 || vocab[0] != "apple" || vocab[1] != "zebra" {
		t.Errorf("vocab = %v, want [apple zebra]", vocab)
	}
}

func TestEnglishStopwordsDropped(t *testing.T) {
	docs := []string{"the quick brown fox and the lazy dog"}
	_, vocab := NewVectorizer(0, "english").FitTransform(docs)
	for _, term := range vocab {
		if term == "the" || term == "and" {
			t.Errorf("stopword %q survived: %v", term, vocab)
		}
	}
	found := false
	for _, term := range vocab {
		if term == "quick" {
			found = true
		}
	}
	if !found {
		t.Errorf("content word missing from vocab: %v", vocab)
	}
}

func TestTokenizeDropsShortAndPunctuation(t *testing.T) {
	v := NewVectorizer(0, "")
	tokens := v.tokenize("Re: FW: a I ok, running—fast! 42")
	want := map[string]bool{"re": true, "fw": true, "ok": true, "running": true, "fast": true, "42": true}
	if len(tokens) != len(want) {
		t.Fatalf("tokens = %v", tokens)
	}
	for _, tok := range tokens {
		if !want[tok] {
			t.Errorf("unexpected token %q in %v", tok, tokens)
		}
	}
}

func TestCosine(t *testing.T) {
	a := Vector{1, 0, 0}
	b := Vector{0, 1, 0}
	if got := Cosine(a, b); got != 0 {
		t.Errorf("orthogonal cosine = %v, want 0", got)
	}
	if got := Cosine(a, a); math.Abs(got-1) > 1e-9 {
		t.Errorf("self cosine = %v, want 1", got)
	}
	// Unnormalized inputs still work.
	c := Vector{2, 2, 0}
	d := Vector{1, 1, 0}
	if got := Cosine(c, d); math.Abs(got-1) > 1e-9 {
		t.Errorf("parallel cosine = %v, want 1", got)
	}
	if got := Cosine(Vector{0, 0, 0}, a); got != 0 {
		t.Errorf("zero-vector cosine = %v, want 0", got)
	}
	if got := Cosine(Vector{1}, Vector{1, 2}); got != 0 {
		t.Errorf("mismatched length cosine = %v, want 0", got)
	}
}

func TestSimilarityMatrix(t *testing.T) {
	docs := []string{
		"invoice payment due",
		"invoice payment overdue",
		"kittens playing outside",
	}
	vectors, _ := NewVectorizer(0, "").FitTransform(docs)
	m := SimilarityMatrix(vectors)

	if len(m) != 3 || len(m[0]) != 3 {
		t.Fatalf("matrix shape = %dx%d", len(m), len(m[0]))
	}
	for i := range m {
		if math.Abs(m[i][i]-1) > 1e-9 {
			t.Errorf("diagonal [%d][%d] = %v, want 1", i, i, m[i][i])
		}
		for j := range m {
			if math.Abs(m[i][j]-m[j][i]) > 1e-12 {
				t.Errorf("matrix not symmetric at [%d][%d]", i, j)
			}
		}
	}
	if m[0][1] <= m[0][2] {
		t.Errorf("similar docs scored %v, dissimilar %v; expected similar > dissimilar", m[0][1], m[0][2])
	}
}

func TestCrossSimilarity(t *testing.T) {
	a := []Vector{{1, 0}, {0, 1}}
	b := []Vector{{1, 0}}
	m := CrossSimilarity(a, b)
	if len(m) != 2 || len(m[0]) != 1 {
		t.Fatalf("shape = %dx%d, want 2x1", len(m), len(m[0]))
	}
	if math.Abs(m[0][0]-1) > 1e-9 || m[1][0] != 0 {
		t.Errorf("cross = %v", m)
	}
}

func TestFitTransformEmptyCorpus(t *testing.T) {
	vectors, vocab := NewVectorizer(0, "").FitTransform(nil)
	if len(vectors) != 0 || len(vocab) != 0 {
		t.Errorf("expected empty results, got %d vectors, %d terms", len(vectors), len(vocab))
	}
}
