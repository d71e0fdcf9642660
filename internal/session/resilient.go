package session

import (
	"log/slog"
	"time"

	"github.com/emersion/go-imap/v2"
)

// RetryPolicy controls how mutating and flaky operations are retried.
// Backoff is linear: attempt n sleeps Backoff*(n+1).
type RetryPolicy struct {
	Retries int
	Backoff time.Duration
}

// DefaultRetryPolicy retries twice with a half-second base backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Retries: 2, Backoff: 500 * time.Millisecond}
}

// Resilient wraps a Session with retry-on-error and dry-run
// interception. In dry-run mode every mutating operation is logged and
// skipped, so a full organizer pass can be previewed against a live
// mailbox without changing it. Read operations always go through.
type Resilient struct {
	s      *Session
	policy RetryPolicy
	dryRun bool
	logger *slog.Logger

	sleep func(time.Duration)
}

// NewResilient wraps a connected Session.
func NewResilient(s *Session, policy RetryPolicy, dryRun bool, logger *slog.Logger) *Resilient {
	if policy.Retries < 0 {
		policy.Retries = 0
	}
	return &Resilient{
		s:      s,
		policy: policy,
		dryRun: dryRun,
		logger: logger,
		sleep:  time.Sleep,
	}
}

// DryRun reports whether mutating operations are being intercepted.
func (r *Resilient) DryRun() bool {
	return r.dryRun
}

// Selected returns the currently selected mailbox, or "" if none.
func (r *Resilient) Selected() string {
	return r.s.Selected()
}

// retry runs op up to Retries+1 times with linear backoff between
// attempts. The last error wins.
func (r *Resilient) retry(name string, op func() error) error {
	var err error
	for attempt := 0; attempt <= r.policy.Retries; attempt++ {
		if attempt > 0 {
			delay := r.policy.Backoff * time.Duration(attempt)
			r.logger.Warn("retrying IMAP operation", "op", name, "attempt", attempt+1, "delay", delay, "error", err)
			r.sleep(delay)
		}
		err = op()
		if err == nil {
			return nil
		}
	}
	return err
}

// Select opens a mailbox with retry.
func (r *Resilient) Select(folder string, readOnly bool) (*imap.SelectData, error) {
	var data *imap.SelectData
	err := r.retry("select", func() error {
		var opErr error
		data, opErr = r.s.Select(folder, readOnly)
		return opErr
	})
	return data, err
}

// Unselect returns the session to the unselected state.
func (r *Resilient) Unselect() error {
	return r.s.Unselect()
}

// UIDSearchAll returns every UID in the selected mailbox.
func (r *Resilient) UIDSearchAll() ([]imap.UID, error) {
	var uids []imap.UID
	err := r.retry("uid search all", func() error {
		var opErr error
		uids, opErr = r.s.UIDSearchAll()
		return opErr
	})
	return uids, err
}

// UIDSearch runs UID SEARCH with the given criteria.
func (r *Resilient) UIDSearch(criteria *imap.SearchCriteria) ([]imap.UID, error) {
	var uids []imap.UID
	err := r.retry("uid search", func() error {
		var opErr error
		uids, opErr = r.s.UIDSearch(criteria)
		return opErr
	})
	return uids, err
}

// SearchAll returns every sequence number in the selected mailbox.
func (r *Resilient) SearchAll() ([]uint32, error) {
	var seqs []uint32
	err := r.retry("search all", func() error {
		var opErr error
		seqs, opErr = r.s.SearchAll()
		return opErr
	})
	return seqs, err
}

// ProbeFlags is a single-shot probe: corruption diagnostics interpret a
// failed probe as signal, so no retry here.
func (r *Resilient) ProbeFlags(uid imap.UID) (int, error) {
	return r.s.ProbeFlags(uid)
}

// FetchFullUID fetches one full message body by UID. No retry: fetch
// strategies implement their own fallback ladder.
func (r *Resilient) FetchFullUID(uid imap.UID) (RawMessage, error) {
	return r.s.FetchFullUID(uid)
}

// FetchFullSeq fetches one full message body by sequence number.
func (r *Resilient) FetchFullSeq(seq uint32) (RawMessage, error) {
	return r.s.FetchFullSeq(seq)
}

// FetchFullUIDs fetches full message bodies for a batch of UIDs.
func (r *Resilient) FetchFullUIDs(uids []imap.UID) ([]RawMessage, error) {
	return r.s.FetchFullUIDs(uids)
}

// FetchHeaderFields fetches selected header fields for a batch of UIDs.
func (r *Resilient) FetchHeaderFields(uids []imap.UID, fields []string) ([]RawMessage, error) {
	return r.s.FetchHeaderFields(uids, fields)
}

// List returns all mailboxes with retry.
func (r *Resilient) List() ([]ListEntry, error) {
	var entries []ListEntry
	err := r.retry("list", func() error {
		var opErr error
		entries, opErr = r.s.List()
		return opErr
	})
	return entries, err
}

// SupportsMove reports whether the server advertises MOVE.
func (r *Resilient) SupportsMove() (bool, error) {
	return r.s.SupportsMove()
}

// Create creates a mailbox, or logs the intent in dry-run mode.
func (r *Resilient) Create(mailbox string) error {
	if r.dryRun {
		r.logger.Info("dry-run: would create folder", "folder", mailbox)
		return nil
	}
	return r.retry("create", func() error { return r.s.Create(mailbox) })
}

// Delete removes a mailbox, or logs the intent in dry-run mode.
func (r *Resilient) Delete(mailbox string) error {
	if r.dryRun {
		r.logger.Info("dry-run: would delete folder", "folder", mailbox)
		return nil
	}
	return r.retry("delete", func() error { return r.s.Delete(mailbox) })
}

// Rename renames a mailbox, or logs the intent in dry-run mode.
func (r *Resilient) Rename(oldName, newName string) error {
	if r.dryRun {
		r.logger.Info("dry-run: would rename folder", "from", oldName, "to", newName)
		return nil
	}
	return r.retry("rename", func() error { return r.s.Rename(oldName, newName) })
}

// Subscribe subscribes a mailbox, or logs the intent in dry-run mode.
func (r *Resilient) Subscribe(mailbox string) error {
	if r.dryRun {
		r.logger.Info("dry-run: would subscribe folder", "folder", mailbox)
		return nil
	}
	return r.retry("subscribe", func() error { return r.s.Subscribe(mailbox) })
}

// Unsubscribe unsubscribes a mailbox, or logs the intent in dry-run mode.
func (r *Resilient) Unsubscribe(mailbox string) error {
	if r.dryRun {
		r.logger.Info("dry-run: would unsubscribe folder", "folder", mailbox)
		return nil
	}
	return r.retry("unsubscribe", func() error { return r.s.Unsubscribe(mailbox) })
}

// CopyUID copies messages by UID, or logs the intent in dry-run mode.
func (r *Resilient) CopyUID(uids []imap.UID, dest string) error {
	if r.dryRun {
		r.logger.Info("dry-run: would copy messages", "count", len(uids), "dest", dest)
		return nil
	}
	return r.retry("uid copy", func() error { return r.s.CopyUID(uids, dest) })
}

// CopySeq copies messages by sequence number, or logs the intent in
// dry-run mode.
func (r *Resilient) CopySeq(seqs []uint32, dest string) error {
	if r.dryRun {
		r.logger.Info("dry-run: would copy messages by sequence", "count", len(seqs), "dest", dest)
		return nil
	}
	return r.retry("copy", func() error { return r.s.CopySeq(seqs, dest) })
}

// StoreDeletedUID flags messages \Deleted by UID, or logs the intent in
// dry-run mode.
func (r *Resilient) StoreDeletedUID(uids []imap.UID) error {
	if r.dryRun {
		r.logger.Info("dry-run: would flag messages deleted", "count", len(uids))
		return nil
	}
	return r.retry("store deleted", func() error { return r.s.StoreDeletedUID(uids) })
}

// StoreDeletedSeq flags messages \Deleted by sequence number, or logs
// the intent in dry-run mode.
func (r *Resilient) StoreDeletedSeq(seqs []uint32) error {
	if r.dryRun {
		r.logger.Info("dry-run: would flag messages deleted by sequence", "count", len(seqs))
		return nil
	}
	return r.retry("store deleted seq", func() error { return r.s.StoreDeletedSeq(seqs) })
}

// MoveUID moves messages by UID, using MOVE when the server supports it
// and falling back to COPY + STORE \Deleted + EXPUNGE otherwise. In
// dry-run mode the intent is logged and nothing is sent.
func (r *Resilient) MoveUID(uids []imap.UID, dest string) error {
	if len(uids) == 0 {
		return nil
	}
	if r.dryRun {
		r.logger.Info("dry-run: would move messages", "count", len(uids), "dest", dest)
		return nil
	}

	hasMove, err := r.s.SupportsMove()
	if err != nil {
		return err
	}
	if hasMove {
		return r.retry("uid move", func() error { return r.s.MoveUID(uids, dest) })
	}

	if err := r.retry("uid copy", func() error { return r.s.CopyUID(uids, dest) }); err != nil {
		return err
	}
	if err := r.retry("store deleted", func() error { return r.s.StoreDeletedUID(uids) }); err != nil {
		return err
	}
	_, err = r.Expunge()
	return err
}

// Expunge removes \Deleted messages, or logs the intent in dry-run mode.
func (r *Resilient) Expunge() (int, error) {
	if r.dryRun {
		r.logger.Info("dry-run: would expunge deleted messages", "folder", r.s.Selected())
		return 0, nil
	}
	var n int
	err := r.retry("expunge", func() error {
		var opErr error
		n, opErr = r.s.Expunge()
		return opErr
	})
	return n, err
}

// Append uploads a message, or logs the intent in dry-run mode.
func (r *Resilient) Append(mailbox string, msg []byte, flags []imap.Flag) error {
	if r.dryRun {
		r.logger.Info("dry-run: would append message", "folder", mailbox, "bytes", len(msg))
		return nil
	}
	return r.retry("append", func() error { return r.s.Append(mailbox, msg, flags) })
}
