package classify

import (
	"github.com/mailgroom/mailgroom/internal/mailbox"
	"github.com/mailgroom/mailgroom/internal/textindex"
)

// MarkLikeSpam compares inbox messages against reference texts sampled
// from the spam and trash folders and returns the indices of messages
// whose best similarity reaches the threshold. A joint vocabulary is
// fitted over references and inbox together so the vectors are
// comparable. With no references nothing is marked.
func MarkLikeSpam(refTexts []string, msgs []*mailbox.Message, vec *textindex.Vectorizer, threshold float64) []int {
	if len(refTexts) == 0 || len(msgs) == 0 {
		return nil
	}

	docs := make([]string, 0, len(refTexts)+len(msgs))
	docs = append(docs, refTexts...)
	for _, m := range msgs {
		docs = append(docs, m.Content())
	}

	vectors, _ := vec.FitTransform(docs)
	refVecs := vectors[:len(refTexts)]
	inboxVecs := vectors[len(refTexts):]

	sims := textindex.CrossSimilarity(inboxVecs, refVecs)

	var marked []int
	for i, row := range sims {
		best := 0.0
		for _, s := range row {
			if s > best {
				best = s
			}
		}
		if best >= threshold {
			marked = append(marked, i)
		}
	}
	return marked
}
