package report

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/mailgroom/mailgroom/internal/mailbox"
	"github.com/mailgroom/mailgroom/internal/organize"
)

func newTestRecorder(t *testing.T) *Recorder {
	t.Helper()
	r, err := Open(filepath.Join(t.TempDir(), "report.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func TestRecordAndListRuns(t *testing.T) {
	r := newTestRecorder(t)

	started := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		stats := &organize.Stats{
			Folder:          "INBOX",
			CorruptionLevel: mailbox.CorruptionMinimal,
			Strategy:        mailbox.StrategyBatch,
			Candidates:      100,
			SpamMoved:       4,
			CrossSpamMoved:  1,
			Accepted:        80 + i,
			Categories:      3,
			Moved:           60,
			Started:         started.Add(time.Duration(i) * time.Hour),
			Duration:        90 * time.Second,
		}
		if err := r.RecordRun(stats); err != nil {
			t.Fatalf("RecordRun: %v", err)
		}
	}

	runs, err := r.RecentRuns(2)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}
	if runs[0].Accepted != 82 {
		t.Errorf("newest run Accepted = %d, want 82", runs[0].Accepted)
	}
	if runs[0].SpamMoved != 5 {
		t.Errorf("SpamMoved = %d, want spam+cross = 5", runs[0].SpamMoved)
	}
	if runs[0].Duration != 90*time.Second {
		t.Errorf("Duration = %v, want 90s", runs[0].Duration)
	}
	if runs[0].RunID == "" || runs[0].RunID == runs[1].RunID {
		t.Errorf("run IDs not unique: %q vs %q", runs[0].RunID, runs[1].RunID)
	}
}

func TestRecordRepair(t *testing.T) {
	r := newTestRecorder(t)

	err := r.RecordRepair(RepairRecord{
		Started:         time.Now(),
		Folder:          "INBOX",
		TempFolder:      "INBOX_REPAIR_TEMP_1700000000",
		CorruptionRatio: 0.7,
		MovedOut:        120,
		MovedBack:       120,
		VerifyRatio:     1.0,
		Repaired:        true,
	})
	if err != nil {
		t.Fatalf("RecordRepair: %v", err)
	}

	var count int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM repairs").Scan(&count); err != nil {
		t.Fatalf("count repairs: %v", err)
	}
	if count != 1 {
		t.Errorf("repairs count = %d, want 1", count)
	}
}

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	if err := r.RecordRun(&organize.Stats{}); err != nil {
		t.Errorf("nil RecordRun: %v", err)
	}
	if err := r.RecordRepair(RepairRecord{}); err != nil {
		t.Errorf("nil RecordRepair: %v", err)
	}
	if runs, err := r.RecentRuns(5); err != nil || runs != nil {
		t.Errorf("nil RecentRuns = %v, %v", runs, err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("nil Close: %v", err)
	}
}

func TestOpenEmptyPath(t *testing.T) {
	r, err := Open("")
	if err != nil {
		t.Fatalf("Open(\"\"): %v", err)
	}
	if r != nil {
		t.Errorf("Open(\"\") = %v, want nil recorder", r)
	}
}
