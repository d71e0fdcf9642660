package classify

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/emersion/go-imap/v2"

	"github.com/mailgroom/mailgroom/internal/mailbox"
	"github.com/mailgroom/mailgroom/internal/session"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestConversationIndexIsActive(t *testing.T) {
	idx := NewConversationIndex([]string{"sent1@example.com", "sent2@example.com"})

	reply := &mailbox.Message{InReplyTo: []string{"sent1@example.com"}}
	if !idx.IsActive(reply) {
		t.Error("direct reply not recognized")
	}

	threaded := &mailbox.Message{References: []string{"old@example.com", "sent2@example.com"}}
	if !idx.IsActive(threaded) {
		t.Error("threaded reference not recognized")
	}

	own := &mailbox.Message{MessageID: "sent2@example.com"}
	if !idx.IsActive(own) {
		t.Error("message with indexed Message-ID not recognized")
	}

	unrelated := &mailbox.Message{InReplyTo: []string{"other@example.com"}}
	if idx.IsActive(unrelated) {
		t.Error("unrelated message marked active")
	}

	if NewConversationIndex(nil).IsActive(reply) {
		t.Error("empty index marked a message active")
	}
}

// fakeConversationSession serves Message-ID headers for two folders.
type fakeConversationSession struct {
	uids     map[string][]imap.UID
	selected string
	badOpen  map[string]bool
}

func (f *fakeConversationSession) Select(folder string, readOnly bool) (*imap.SelectData, error) {
	if f.badOpen[folder] {
		return nil, errors.New("cannot open")
	}
	f.selected = folder
	return &imap.SelectData{}, nil
}

func (f *fakeConversationSession) UIDSearch(criteria *imap.SearchCriteria) ([]imap.UID, error) {
	return f.uids[f.selected], nil
}

func (f *fakeConversationSession) FetchHeaderFields(uids []imap.UID, fields []string) ([]session.RawMessage, error) {
	var out []session.RawMessage
	for _, uid := range uids {
		body := fmt.Sprintf("Message-ID: <%s-%d@example.com>\r\n\r\n", f.selected, uid)
		out = append(out, session.RawMessage{UID: uid, Body: []byte(body)})
	}
	return out, nil
}

func TestBuildConversationIndex(t *testing.T) {
	sess := &fakeConversationSession{
		uids: map[string][]imap.UID{
			"Sent":   {1, 2, 3},
			"Drafts": {7},
		},
	}
	folders := []string{"INBOX", "Sent", "Drafts", "Archive"}

	idx := BuildConversationIndex(sess, folders, 360, 300, testLogger())
	if idx.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", idx.Len())
	}

	msg := &mailbox.Message{References: []string{"Sent-2@example.com"}}
	if !idx.IsActive(msg) {
		t.Error("indexed sent message not recognized")
	}
}

func TestBuildConversationIndexPerFolderLimit(t *testing.T) {
	sess := &fakeConversationSession{
		uids: map[string][]imap.UID{"Sent": {1, 2, 3, 4, 5}},
	}
	idx := BuildConversationIndex(sess, []string{"Sent"}, 360, 2, testLogger())
	if idx.Len() != 2 {
		t.Fatalf("Len() = %d, want 2 (limit)", idx.Len())
	}
	// The newest UIDs (tail of the list) survive the cap.
	if !idx.IsActive(&mailbox.Message{InReplyTo: []string{"Sent-5@example.com"}}) {
		t.Error("newest message missing from capped index")
	}
	if idx.IsActive(&mailbox.Message{InReplyTo: []string{"Sent-1@example.com"}}) {
		t.Error("oldest message should have been dropped by the cap")
	}
}

func TestBuildConversationIndexSkipsBrokenFolders(t *testing.T) {
	sess := &fakeConversationSession{
		uids:    map[string][]imap.UID{"Drafts": {1}},
		badOpen: map[string]bool{"Sent": true},
	}
	idx := BuildConversationIndex(sess, []string{"Sent", "Drafts"}, 360, 300, testLogger())
	if idx.Len() != 1 {
		t.Errorf("Len() = %d, want 1 from the healthy folder", idx.Len())
	}
}

func TestBuildConversationIndexNoTargets(t *testing.T) {
	sess := &fakeConversationSession{}
	idx := BuildConversationIndex(sess, []string{"INBOX", "Archive"}, 360, 300, testLogger())
	if idx.Len() != 0 {
		t.Errorf("Len() = %d, want 0", idx.Len())
	}
}
