// Package cluster groups messages into categories by TF-IDF similarity
// and matches new clusters against existing category folders.
package cluster

import (
	"math"
	"strings"
	"time"
	"unicode"

	"github.com/mailgroom/mailgroom/internal/folder"
	"github.com/mailgroom/mailgroom/internal/mailbox"
	"github.com/mailgroom/mailgroom/internal/textindex"
)

// Category is one emitted cluster: a generated name and the indices of
// its members in the input slice.
type Category struct {
	Name    string
	Members []int
}

// Engine clusters messages with a greedy single pass. Grouping is not
// transitive: members join through their similarity to the anchor, not
// to each other.
type Engine struct {
	vec                *textindex.Vectorizer
	threshold          float64
	minClusterSize     int
	minClusterFraction float64

	now func() time.Time
}

// NewEngine creates a cluster engine.
func NewEngine(vec *textindex.Vectorizer, threshold float64, minSize int, minFraction float64) *Engine {
	return &Engine{
		vec:                vec,
		threshold:          threshold,
		minClusterSize:     minSize,
		minClusterFraction: minFraction,
		now:                time.Now,
	}
}

// Cluster walks the messages in order. Each unassigned message anchors
// a candidate group of all still-unassigned messages similar enough to
// it; groups meeting the size floor are emitted and their members
// consumed, undersized groups dissolve and their members stay eligible
// for later anchors. Messages left over at the end belong to no
// category.
func (e *Engine) Cluster(msgs []*mailbox.Message) []Category {
	if len(msgs) == 0 {
		return nil
	}

	docs := make([]string, len(msgs))
	for i, m := range msgs {
		docs[i] = m.Content()
	}
	vectors, _ := e.vec.FitTransform(docs)
	sims := textindex.SimilarityMatrix(vectors)

	minRequired := e.minClusterSize
	if byFraction := int(math.Ceil(e.minClusterFraction * float64(len(msgs)))); byFraction > minRequired {
		minRequired = byFraction
	}

	used := make([]bool, len(msgs))
	var out []Category

	for i := range msgs {
		if used[i] {
			continue
		}
		var members []int
		for j := range msgs {
			if !used[j] && sims[i][j] >= e.threshold {
				members = append(members, j)
			}
		}
		if len(members) < minRequired {
			continue
		}
		for _, j := range members {
			used[j] = true
		}
		group := make([]*mailbox.Message, len(members))
		for k, j := range members {
			group[k] = msgs[j]
		}
		out = append(out, Category{Name: e.categoryName(group), Members: members})
	}
	return out
}

// categoryName derives a name from the group's most frequent subject
// token longer than three characters, in first-seen order on ties. A
// group with no qualifying token gets a timestamp name.
func (e *Engine) categoryName(msgs []*mailbox.Message) string {
	counts := make(map[string]int)
	var order []string
	for _, m := range msgs {
		for _, word := range strings.Fields(strings.ToLower(m.Subject)) {
			if len(word) <= 3 {
				continue
			}
			if counts[word] == 0 {
				order = append(order, word)
			}
			counts[word]++
		}
	}

	best := ""
	bestCount := 0
	for _, word := range order {
		if counts[word] > bestCount {
			best = word
			bestCount = counts[word]
		}
	}
	if best == "" {
		return folder.CategoryPrefix + e.now().Format("20060102_150405")
	}
	return folder.CategoryPrefix + capitalize(best)
}

func capitalize(s string) string {
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
