package classify

import (
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"

	"github.com/mailgroom/mailgroom/internal/mailbox"
	"github.com/mailgroom/mailgroom/internal/session"
)

// conversationFolderKeywords identify Sent and Drafts folders across
// localized servers.
var conversationFolderKeywords = []string{
	"sent", "wysłane", "wyslane", "drafts", "draft", "robocze",
}

// maxConversationFolders caps how many Sent/Drafts folders the index
// reads. Accounts with many archived Sent folders would otherwise drag
// the whole run.
const maxConversationFolders = 4

// msgIDTokenRe pulls every angle-bracketed ID out of a header block.
// The fetch below requests only Message-ID, In-Reply-To and References,
// so everything bracketed in the block is a message ID.
var msgIDTokenRe = regexp.MustCompile(`<([^>]+)>`)

// ConversationIndex holds the Message-IDs touching recently sent or
// drafted mail: the sent messages' own IDs plus everything they replied
// to or referenced. A message intersecting the index belongs to an
// active conversation and is never filed away.
type ConversationIndex struct {
	ids map[string]struct{}
}

// NewConversationIndex builds an index from an explicit ID list.
func NewConversationIndex(ids []string) *ConversationIndex {
	idx := &ConversationIndex{ids: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		idx.ids[id] = struct{}{}
	}
	return idx
}

// Len returns the number of indexed Message-IDs.
func (idx *ConversationIndex) Len() int {
	return len(idx.ids)
}

// IsActive reports whether the message intersects the index through
// its own Message-ID, In-Reply-To, or References.
func (idx *ConversationIndex) IsActive(msg *mailbox.Message) bool {
	if len(idx.ids) == 0 {
		return false
	}
	if msg.MessageID != "" {
		if _, ok := idx.ids[msg.MessageID]; ok {
			return true
		}
	}
	for _, id := range msg.InReplyTo {
		if _, ok := idx.ids[id]; ok {
			return true
		}
	}
	for _, id := range msg.References {
		if _, ok := idx.ids[id]; ok {
			return true
		}
	}
	return false
}

// ConversationSession is the slice of the IMAP session the index
// builder needs.
type ConversationSession interface {
	Select(folder string, readOnly bool) (*imap.SelectData, error)
	UIDSearch(criteria *imap.SearchCriteria) ([]imap.UID, error)
	FetchHeaderFields(uids []imap.UID, fields []string) ([]session.RawMessage, error)
}

// BuildConversationIndex collects Message-IDs from Sent and Drafts
// folders within the lookback window, capped per folder. Folders that
// fail to open are skipped; the index degrades rather than the run
// failing.
func BuildConversationIndex(sess ConversationSession, folders []string, days, perFolderLimit int, logger *slog.Logger) *ConversationIndex {
	idx := &ConversationIndex{ids: make(map[string]struct{})}

	var targets []string
	for _, name := range folders {
		low := strings.ToLower(name)
		for _, kw := range conversationFolderKeywords {
			if strings.Contains(low, kw) {
				targets = append(targets, name)
				break
			}
		}
	}
	if len(targets) > maxConversationFolders {
		targets = targets[:maxConversationFolders]
	}
	if len(targets) == 0 {
		return idx
	}

	since := time.Now().AddDate(0, 0, -days)

	for _, name := range targets {
		if _, err := sess.Select(name, true); err != nil {
			logger.Debug("skipping conversation folder", "folder", name, "error", err)
			continue
		}
		uids, err := sess.UIDSearch(&imap.SearchCriteria{Since: since})
		if err != nil {
			logger.Debug("conversation search failed", "folder", name, "error", err)
			continue
		}
		if len(uids) > perFolderLimit {
			uids = uids[len(uids)-perFolderLimit:]
		}
		if len(uids) == 0 {
			continue
		}

		headers, err := sess.FetchHeaderFields(uids, []string{"Message-ID", "In-Reply-To", "References"})
		if err != nil {
			logger.Debug("conversation header fetch failed", "folder", name, "error", err)
			continue
		}
		for _, raw := range headers {
			for _, m := range msgIDTokenRe.FindAllSubmatch(raw.Body, -1) {
				idx.ids[string(m[1])] = struct{}{}
			}
		}
	}

	logger.Debug("conversation index built", "folders", len(targets), "ids", len(idx.ids))
	return idx
}
