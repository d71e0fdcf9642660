package cluster

import (
	"log/slog"
	"strings"

	"github.com/mailgroom/mailgroom/internal/mailbox"
	"github.com/mailgroom/mailgroom/internal/textindex"
)

// FolderSampler fetches up to limit recent messages from a folder.
type FolderSampler interface {
	SampleFolderMessages(folderName string, limit int) ([]*mailbox.Message, error)
}

// Matcher scores a new cluster against existing category folders so
// recurring mail lands in the folder it landed in last month instead of
// spawning Category_Invoices_2.
type Matcher struct {
	sampler      FolderSampler
	newVec       func() *textindex.Vectorizer
	threshold    float64
	senderWeight float64
	sampleLimit  int
	logger       *slog.Logger
}

// NewMatcher creates a category folder matcher. newVec must return a
// fresh vectorizer per call: each candidate folder gets its own joint
// vocabulary with the cluster.
func NewMatcher(sampler FolderSampler, newVec func() *textindex.Vectorizer, threshold, senderWeight float64, sampleLimit int, logger *slog.Logger) *Matcher {
	if sampleLimit < 1 {
		sampleLimit = 1
	}
	return &Matcher{
		sampler:      sampler,
		newVec:       newVec,
		threshold:    threshold,
		senderWeight: senderWeight,
		sampleLimit:  sampleLimit,
		logger:       logger,
	}
}

// BestFolder returns the existing folder the cluster should merge into,
// or "" when no candidate reaches the match threshold.
func (m *Matcher) BestFolder(cluster []*mailbox.Message, candidates []string) string {
	if len(cluster) == 0 || len(candidates) == 0 {
		return ""
	}

	clusterTexts := make([]string, len(cluster))
	for i, msg := range cluster {
		clusterTexts[i] = msg.Content()
	}
	clusterSenders := senderForms(cluster)

	bestFolder := ""
	bestScore := -1.0

	for _, folderName := range candidates {
		sample, err := m.sampler.SampleFolderMessages(folderName, m.sampleLimit)
		if err != nil {
			m.logger.Debug("category folder sample failed", "folder", folderName, "error", err)
			continue
		}
		if len(sample) == 0 {
			continue
		}

		contentScore := m.contentScore(clusterTexts, sample)

		senderScore := 0.0
		if folderSenders := senderForms(sample); len(clusterSenders) > 0 && len(folderSenders) > 0 {
			overlap := 0
			for s := range clusterSenders {
				if folderSenders[s] {
					overlap++
				}
			}
			senderScore = float64(overlap) / float64(len(cluster))
		}

		score := contentScore + m.senderWeight*senderScore
		m.logger.Debug("category folder scored", "folder", folderName, "content", contentScore, "sender", senderScore, "score", score)
		if score > bestScore {
			bestScore = score
			bestFolder = folderName
		}
	}

	if bestScore >= m.threshold {
		return bestFolder
	}
	return ""
}

// contentScore is the mean over cluster messages of their maximum
// similarity to any sampled folder message, in a joint TF-IDF space.
func (m *Matcher) contentScore(clusterTexts []string, sample []*mailbox.Message) float64 {
	docs := make([]string, 0, len(clusterTexts)+len(sample))
	docs = append(docs, clusterTexts...)
	for _, msg := range sample {
		docs = append(docs, msg.Content())
	}

	vectors, _ := m.newVec().FitTransform(docs)
	clusterVecs := vectors[:len(clusterTexts)]
	folderVecs := vectors[len(clusterTexts):]

	sims := textindex.CrossSimilarity(clusterVecs, folderVecs)
	total := 0.0
	for _, row := range sims {
		best := 0.0
		for _, s := range row {
			if s > best {
				best = s
			}
		}
		total += best
	}
	return total / float64(len(clusterTexts))
}

// senderForms collects both the full address and the bare domain of
// every sender, lowercased.
func senderForms(msgs []*mailbox.Message) map[string]bool {
	out := make(map[string]bool)
	for _, msg := range msgs {
		addr := strings.ToLower(msg.FromAddress)
		if addr == "" {
			continue
		}
		out[addr] = true
		if at := strings.LastIndex(addr, "@"); at >= 0 {
			out[addr[at+1:]] = true
		}
	}
	return out
}
