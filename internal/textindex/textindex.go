// Package textindex implements the TF-IDF vectorizer and cosine
// similarity used for message clustering and folder matching. Vectors
// are dense: the vocabulary is capped, so sparsity buys nothing.
package textindex

import (
	"math"
	"sort"
	"strings"
	"unicode"
)

// DefaultMaxFeatures caps the vocabulary when the caller passes zero.
const DefaultMaxFeatures = 100

// Vector is one document's weights over the fitted vocabulary.
type Vector []float64

// Vectorizer turns a corpus of documents into L2-normalized TF-IDF
// vectors over a shared vocabulary.
type Vectorizer struct {
	maxFeatures int
	stopwords   map[string]struct{}
}

// NewVectorizer creates a vectorizer. stopwordsMode "english" (or "en")
// drops common English words; any other value keeps everything.
func NewVectorizer(maxFeatures int, stopwordsMode string) *Vectorizer {
	if maxFeatures <= 0 {
		maxFeatures = DefaultMaxFeatures
	}
	v := &Vectorizer{maxFeatures: maxFeatures}
	switch stopwordsMode {
	case "english", "en":
		v.stopwords = englishStopwords
	}
	return v
}

// FitTransform builds the vocabulary from the corpus and returns one
// vector per input document, plus the vocabulary in column order. The
// vocabulary keeps the maxFeatures most frequent terms; ties break
// alphabetically so results are deterministic.
func (v *Vectorizer) FitTransform(docs []string) ([]Vector, []string) {
	tokenized := make([][]string, len(docs))
	termTotal := make(map[string]int)
	docFreq := make(map[string]int)

	for i, doc := range docs {
		tokens := v.tokenize(doc)
		tokenized[i] = tokens
		seen := make(map[string]struct{}, len(tokens))
		for _, tok := range tokens {
			termTotal[tok]++
			if _, ok := seen[tok]; !ok {
				seen[tok] = struct{}{}
				docFreq[tok]++
			}
		}
	}

	vocab := make([]string, 0, len(termTotal))
	for term := range termTotal {
		vocab = append(vocab, term)
	}
	sort.Slice(vocab, func(a, b int) bool {
		if termTotal[vocab[a]] != termTotal[vocab[b]] {
			return termTotal[vocab[a]] > termTotal[vocab[b]]
		}
		return vocab[a] < vocab[b]
	})
	if len(vocab) > v.maxFeatures {
		vocab = vocab[:v.maxFeatures]
	}
	sort.Strings(vocab)

	column := make(map[string]int, len(vocab))
	for i, term := range vocab {
		column[term] = i
	}

	n := float64(len(docs))
	idf := make([]float64, len(vocab))
	for i, term := range vocab {
		idf[i] = math.Log(n/float64(docFreq[term])) + 1
	}

	vectors := make([]Vector, len(docs))
	for i, tokens := range tokenized {
		vec := make(Vector, len(vocab))
		for _, tok := range tokens {
			if col, ok := column[tok]; ok {
				vec[col]++
			}
		}
		for col := range vec {
			vec[col] *= idf[col]
		}
		normalize(vec)
		vectors[i] = vec
	}

	return vectors, vocab
}

// tokenize lowercases and splits on non-alphanumeric runes, keeping
// tokens of two or more characters and dropping stopwords.
func (v *Vectorizer) tokenize(doc string) []string {
	var tokens []string
	var b strings.Builder
	flush := func() {
		if b.Len() >= 2 {
			tok := b.String()
			if _, stop := v.stopwords[tok]; !stop {
				tokens = append(tokens, tok)
			}
		}
		b.Reset()
	}
	for _, r := range strings.ToLower(doc) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return tokens
}

func normalize(vec Vector) {
	var sum float64
	for _, w := range vec {
		sum += w * w
	}
	if sum == 0 {
		return
	}
	norm := math.Sqrt(sum)
	for i := range vec {
		vec[i] /= norm
	}
}
