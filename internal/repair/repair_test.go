package repair

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/emersion/go-imap/v2"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeRepairSession simulates a mailbox whose UIDs fail to fetch until
// the messages have been through a copy round trip.
type fakeRepairSession struct {
	// messages per folder; the selected folder drives searches.
	folders  map[string][]int
	selected string
	deadUIDs map[imap.UID]bool
	healed   bool // set once messages came back; probes succeed after

	created    []string
	deleted    []string
	copyCalls  int
	failCopyAt int // fail the Nth copy call (1-based), 0 = never

	pendingDeleted []uint32
}

func newFakeRepairSession(inboxSize int, deadUIDs ...imap.UID) *fakeRepairSession {
	msgs := make([]int, inboxSize)
	for i := range msgs {
		msgs[i] = i + 1
	}
	dead := map[imap.UID]bool{}
	for _, u := range deadUIDs {
		dead[u] = true
	}
	return &fakeRepairSession{
		folders:  map[string][]int{"INBOX": msgs},
		deadUIDs: dead,
	}
}

func (f *fakeRepairSession) Select(folder string, readOnly bool) (*imap.SelectData, error) {
	if _, ok := f.folders[folder]; !ok {
		return nil, errors.New("no such folder")
	}
	f.selected = folder
	return &imap.SelectData{NumMessages: uint32(len(f.folders[folder]))}, nil
}

func (f *fakeRepairSession) Unselect() error { return nil }

func (f *fakeRepairSession) UIDSearchAll() ([]imap.UID, error) {
	msgs := f.folders[f.selected]
	uids := make([]imap.UID, len(msgs))
	for i, id := range msgs {
		uids[i] = imap.UID(id)
	}
	return uids, nil
}

func (f *fakeRepairSession) SearchAll() ([]uint32, error) {
	msgs := f.folders[f.selected]
	seqs := make([]uint32, len(msgs))
	for i := range msgs {
		seqs[i] = uint32(i + 1)
	}
	return seqs, nil
}

func (f *fakeRepairSession) ProbeFlags(uid imap.UID) (int, error) {
	if !f.healed && f.deadUIDs[uid] {
		return 0, nil
	}
	return 1, nil
}

func (f *fakeRepairSession) Create(mailbox string) error {
	f.created = append(f.created, mailbox)
	f.folders[mailbox] = nil
	return nil
}

func (f *fakeRepairSession) Delete(mailbox string) error {
	f.deleted = append(f.deleted, mailbox)
	delete(f.folders, mailbox)
	return nil
}

func (f *fakeRepairSession) CopySeq(seqs []uint32, dest string) error {
	f.copyCalls++
	if f.failCopyAt > 0 && f.copyCalls == f.failCopyAt {
		return errors.New("copy failed")
	}
	src := f.folders[f.selected]
	for _, seq := range seqs {
		f.folders[dest] = append(f.folders[dest], src[seq-1])
	}
	if dest == "INBOX" {
		f.healed = true
	}
	return nil
}

func (f *fakeRepairSession) StoreDeletedSeq(seqs []uint32) error {
	f.pendingDeleted = append(f.pendingDeleted, seqs...)
	return nil
}

func (f *fakeRepairSession) Expunge() (int, error) {
	src := f.folders[f.selected]
	keep := make([]int, 0, len(src))
	del := map[uint32]bool{}
	for _, seq := range f.pendingDeleted {
		del[seq] = true
	}
	for i, id := range src {
		if !del[uint32(i+1)] {
			keep = append(keep, id)
		}
	}
	n := len(src) - len(keep)
	f.folders[f.selected] = keep
	f.pendingDeleted = nil
	return n, nil
}

func newTestRepairer(sess Session) *Repairer {
	r := NewRepairer(sess, testLogger())
	r.Force = true
	r.now = func() time.Time { return time.Unix(1700000000, 0) }
	return r
}

func TestRunSkipsHealthyMailbox(t *testing.T) {
	// 1 dead UID out of 10 probed: ratio 0.1, below the repair floor.
	sess := newFakeRepairSession(20, 3)
	res, err := newTestRepairer(sess).Run("INBOX")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Skipped {
		t.Error("healthy mailbox was not skipped")
	}
	if len(sess.created) != 0 {
		t.Errorf("skip still created folders: %v", sess.created)
	}
}

func TestRunRepairsCorruptMailbox(t *testing.T) {
	// 6 of the first 10 UIDs dead: ratio 0.6 triggers a repair.
	sess := newFakeRepairSession(120, 1, 2, 3, 4, 5, 6)
	res, err := newTestRepairer(sess).Run("INBOX")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.TempFolder != "INBOX_REPAIR_TEMP_1700000000" {
		t.Errorf("TempFolder = %q", res.TempFolder)
	}
	if res.MovedOut != 120 || res.MovedBack != 120 {
		t.Errorf("MovedOut/MovedBack = %d/%d, want 120/120", res.MovedOut, res.MovedBack)
	}
	if !res.Repaired {
		t.Errorf("Repaired = false, VerifyRatio = %v", res.VerifyRatio)
	}
	if len(sess.deleted) != 1 || sess.deleted[0] != res.TempFolder {
		t.Errorf("temp folder not cleaned up: %v", sess.deleted)
	}
	if got := len(sess.folders["INBOX"]); got != 120 {
		t.Errorf("INBOX ended with %d messages, want 120", got)
	}
}

func TestRunDryRunTouchesNothing(t *testing.T) {
	sess := newFakeRepairSession(30, 1, 2, 3, 4, 5, 6, 7, 8)
	r := newTestRepairer(sess)
	r.DryRun = true

	res, err := r.Run("INBOX")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Skipped || res.Cancelled {
		t.Errorf("unexpected result flags: %+v", res)
	}
	if len(sess.created) != 0 || sess.copyCalls != 0 || len(sess.deleted) != 0 {
		t.Error("dry run performed mutations")
	}
}

func TestRunRequiresConfirmation(t *testing.T) {
	sess := newFakeRepairSession(10, 1, 2, 3, 4, 5, 6)
	r := NewRepairer(sess, testLogger())

	res, err := r.Run("INBOX")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Cancelled {
		t.Error("missing confirmation channel should cancel")
	}

	declined := false
	r.Confirm = func() bool { declined = true; return false }
	res, err = r.Run("INBOX")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !declined || !res.Cancelled {
		t.Error("declined confirmation should cancel")
	}
	if sess.copyCalls != 0 {
		t.Error("cancelled run performed mutations")
	}
}

func TestRunPartialDrainReportsTempFolder(t *testing.T) {
	sess := newFakeRepairSession(120, 1, 2, 3, 4, 5, 6)
	sess.failCopyAt = 2 // second batch of the drain out
	res, err := newTestRepairer(sess).Run("INBOX")
	if err == nil {
		t.Fatal("expected a mid-drain error")
	}
	if !res.Partial {
		t.Error("Partial not set on mid-drain failure")
	}
	if res.TempFolder == "" {
		t.Error("TempFolder missing from partial result")
	}
	if res.MovedOut != 50 {
		t.Errorf("MovedOut = %d, want the one completed batch of 50", res.MovedOut)
	}
}

func TestRunUnknownFolder(t *testing.T) {
	sess := newFakeRepairSession(10)
	if _, err := newTestRepairer(sess).Run("Nope"); err == nil {
		t.Fatal("expected error for unknown folder")
	}
}
