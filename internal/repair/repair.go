// Package repair rebuilds a mailbox's UID index by draining every
// message into a temporary folder and back. IMAP servers regenerate
// UIDs on copy, so a round trip through a temp folder leaves the
// mailbox with a coherent index again.
package repair

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/emersion/go-imap/v2"
)

// drainBatchSize is how many messages each COPY+STORE+EXPUNGE cycle
// moves.
const drainBatchSize = 50

// probeLimit caps how many UIDs the before/after probes test.
const probeLimit = 10

// repairRatioFloor: below this corruption ratio the mailbox is not
// worth the churn of a full drain.
const repairRatioFloor = 0.5

// verifyRatioFloor: after the drain, at least this share of probed UIDs
// must fetch cleanly for the repair to count as successful.
const verifyRatioFloor = 0.9

// Session is the slice of the IMAP session the repairer needs.
type Session interface {
	Select(folder string, readOnly bool) (*imap.SelectData, error)
	Unselect() error
	UIDSearchAll() ([]imap.UID, error)
	SearchAll() ([]uint32, error)
	ProbeFlags(uid imap.UID) (int, error)
	Create(mailbox string) error
	Delete(mailbox string) error
	CopySeq(seqs []uint32, dest string) error
	StoreDeletedSeq(seqs []uint32) error
	Expunge() (int, error)
}

// Result describes one repair run.
type Result struct {
	Folder     string
	TempFolder string

	// CorruptionRatio is the pre-repair probe failure ratio.
	CorruptionRatio float64

	// Skipped is set when the mailbox was healthy enough to leave
	// alone, Cancelled when the user declined the confirmation.
	Skipped   bool
	Cancelled bool

	MovedOut  int
	MovedBack int

	// VerifyRatio is the post-repair probe success ratio; Repaired is
	// set when it clears the verification floor.
	VerifyRatio float64
	Repaired    bool

	// Partial is set when a drain stopped early; messages may sit in
	// TempFolder and need manual attention.
	Partial bool
}

// Repairer runs the repair state machine:
// diagnose, create temp, drain out, drain back, cleanup, verify.
type Repairer struct {
	sess   Session
	logger *slog.Logger

	// Force skips the confirmation prompt. DryRun reports what would
	// happen without touching the mailbox.
	Force  bool
	DryRun bool

	// Confirm is consulted when Force and DryRun are both unset. Nil
	// means no interactive channel, which counts as declined.
	Confirm func() bool

	now func() time.Time
}

// NewRepairer creates a Repairer over a connected session.
func NewRepairer(sess Session, logger *slog.Logger) *Repairer {
	return &Repairer{
		sess:   sess,
		logger: logger,
		now:    time.Now,
	}
}

// Run repairs the given folder. A healthy mailbox (corruption below
// 50%) is skipped. Mid-drain failures return a Result with Partial set
// alongside the error so the caller can name the temp folder holding
// stranded mail.
func (r *Repairer) Run(folderName string) (*Result, error) {
	if folderName == "" {
		folderName = "INBOX"
	}
	res := &Result{Folder: folderName}

	if !r.Force && !r.DryRun {
		if r.Confirm == nil || !r.Confirm() {
			r.logger.Info("repair cancelled")
			res.Cancelled = true
			return res, nil
		}
	}

	if _, err := r.sess.Select(folderName, true); err != nil {
		return res, fmt.Errorf("open %s: %w", folderName, err)
	}

	ratio, err := r.probeFailureRatio()
	if err != nil {
		return res, fmt.Errorf("diagnose %s: %w", folderName, err)
	}
	res.CorruptionRatio = ratio
	r.logger.Info("pre-repair diagnosis", "folder", folderName, "corruption_ratio", ratio)

	if ratio < repairRatioFloor {
		r.logger.Info("mailbox does not need repair", "folder", folderName)
		res.Skipped = true
		return res, nil
	}

	res.TempFolder = fmt.Sprintf("%s_REPAIR_TEMP_%d", folderName, r.now().Unix())

	if r.DryRun {
		if _, err := r.sess.Select(folderName, true); err != nil {
			return res, fmt.Errorf("open %s: %w", folderName, err)
		}
		seqs, err := r.sess.SearchAll()
		if err != nil {
			return res, fmt.Errorf("count %s: %w", folderName, err)
		}
		r.logger.Info("dry-run: would repair mailbox",
			"folder", folderName, "temp", res.TempFolder, "messages", len(seqs))
		return res, nil
	}

	r.logger.Info("creating temp folder", "folder", res.TempFolder)
	if err := r.sess.Create(res.TempFolder); err != nil {
		return res, fmt.Errorf("create temp folder: %w", err)
	}

	moved, err := r.drain(folderName, res.TempFolder)
	res.MovedOut = moved
	if err != nil {
		res.Partial = true
		return res, fmt.Errorf("drain %s to %s: %w", folderName, res.TempFolder, err)
	}
	r.logger.Info("drained messages to temp folder", "count", moved)

	movedBack, err := r.drain(res.TempFolder, folderName)
	res.MovedBack = movedBack
	if err != nil {
		res.Partial = true
		return res, fmt.Errorf("drain %s back to %s: %w", res.TempFolder, folderName, err)
	}
	r.logger.Info("restored messages", "count", movedBack)

	if err := r.sess.Unselect(); err != nil {
		r.logger.Debug("deselect failed", "error", err)
	}
	if err := r.sess.Delete(res.TempFolder); err != nil {
		r.logger.Warn("temp folder delete failed, remove manually", "folder", res.TempFolder, "error", err)
	}

	if _, err := r.sess.Select(folderName, true); err != nil {
		return res, fmt.Errorf("verify open %s: %w", folderName, err)
	}
	failRatio, err := r.probeFailureRatio()
	if err != nil {
		return res, fmt.Errorf("verify %s: %w", folderName, err)
	}
	res.VerifyRatio = 1 - failRatio
	res.Repaired = res.VerifyRatio > verifyRatioFloor
	r.logger.Info("post-repair verification",
		"folder", folderName, "uids_working", res.VerifyRatio, "repaired", res.Repaired)

	return res, nil
}

// probeFailureRatio probes up to probeLimit UIDs of the selected
// mailbox and returns the failure ratio. An empty mailbox probes clean.
func (r *Repairer) probeFailureRatio() (float64, error) {
	uids, err := r.sess.UIDSearchAll()
	if err != nil {
		return 0, err
	}
	if len(uids) == 0 {
		return 0, nil
	}
	if len(uids) > probeLimit {
		uids = uids[:probeLimit]
	}
	failed := 0
	for _, uid := range uids {
		n, probeErr := r.sess.ProbeFlags(uid)
		if probeErr != nil || n == 0 {
			failed++
		}
	}
	return float64(failed) / float64(len(uids)), nil
}

// drain moves every message from src to dst in sequence-number batches.
// Each cycle re-searches and takes the lowest sequence numbers:
// expunging renumbers everything that remains, so sequence numbers from
// a previous cycle must never be reused.
func (r *Repairer) drain(src, dst string) (int, error) {
	if _, err := r.sess.Select(src, false); err != nil {
		return 0, err
	}

	moved := 0
	prev := -1
	for {
		seqs, err := r.sess.SearchAll()
		if err != nil {
			return moved, err
		}
		if len(seqs) == 0 {
			return moved, nil
		}
		if len(seqs) == prev {
			return moved, fmt.Errorf("drain stalled with %d messages remaining", len(seqs))
		}
		prev = len(seqs)

		batch := seqs
		if len(batch) > drainBatchSize {
			batch = batch[:drainBatchSize]
		}
		if err := r.sess.CopySeq(batch, dst); err != nil {
			return moved, err
		}
		if err := r.sess.StoreDeletedSeq(batch); err != nil {
			return moved, err
		}
		if _, err := r.sess.Expunge(); err != nil {
			return moved, err
		}
		moved += len(batch)
	}
}
