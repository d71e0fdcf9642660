// Package respond drafts replies to recent unanswered messages and
// saves them into the Drafts folder. Reply text comes from a pluggable
// Generator so the core carries no LLM dependency.
package respond

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/emersion/go-imap/v2"

	"github.com/mailgroom/mailgroom/internal/classify"
	"github.com/mailgroom/mailgroom/internal/folder"
	"github.com/mailgroom/mailgroom/internal/mailbox"
	"github.com/mailgroom/mailgroom/internal/session"
)

// Generator produces a markdown reply body for one message.
type Generator interface {
	Draft(ctx context.Context, msg *mailbox.Message) (string, error)
}

// CannedGenerator is the offline generator: a short acknowledgement
// that quotes the subject. Useful for testing the draft plumbing
// without any model behind it.
type CannedGenerator struct{}

func (CannedGenerator) Draft(_ context.Context, msg *mailbox.Message) (string, error) {
	subject := strings.TrimSpace(msg.Subject)
	if subject == "" {
		subject = "your message"
	}
	return fmt.Sprintf("Thanks for reaching out about **%s**.\n\nI received your message and will get back to you with a full answer soon.", subject), nil
}

// Session is the slice of the IMAP session the responder needs. A
// connected *session.Resilient satisfies it.
type Session interface {
	Select(folderName string, readOnly bool) (*imap.SelectData, error)
	UIDSearch(criteria *imap.SearchCriteria) ([]imap.UID, error)
	FetchFullUIDs(uids []imap.UID) ([]session.RawMessage, error)
	FetchHeaderFields(uids []imap.UID, fields []string) ([]session.RawMessage, error)
	Append(mailbox string, msg []byte, flags []imap.Flag) error
}

// Options selects what one responder run covers.
type Options struct {
	// Folder to scan for unanswered mail. Default INBOX.
	Folder string

	// From is the sender identity for the drafts.
	From string

	// Limit caps how many drafts one run writes.
	Limit int

	// ConversationDays bounds the sent-mail lookback used to decide
	// whether a message was already answered.
	ConversationDays int

	// ConversationLimit caps per-folder header fetches for that
	// lookback.
	ConversationLimit int
}

// Result summarizes one responder run.
type Result struct {
	Scanned         int
	AlreadyAnswered int
	Drafted         int
	DraftsFolder    string
}

// Responder scans a folder and writes reply drafts.
type Responder struct {
	sess    Session
	folders *folder.Manager
	gen     Generator
	logger  *slog.Logger
}

// New creates a Responder. The folder manager must wrap the same
// session.
func New(sess Session, folders *folder.Manager, gen Generator, logger *slog.Logger) *Responder {
	return &Responder{sess: sess, folders: folders, gen: gen, logger: logger}
}

// Run drafts replies for up to opts.Limit unanswered messages, newest
// first, and appends them to the Drafts folder with the \Draft flag.
func (r *Responder) Run(ctx context.Context, opts Options) (*Result, error) {
	target := opts.Folder
	if target == "" {
		target = "INBOX"
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}

	draftsFolder, err := r.resolveDraftsFolder()
	if err != nil {
		return nil, fmt.Errorf("resolve drafts folder: %w", err)
	}
	res := &Result{DraftsFolder: draftsFolder}

	names, err := r.folders.Folders()
	if err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}
	answered := classify.BuildConversationIndex(r.sess, names, opts.ConversationDays, opts.ConversationLimit, r.logger)

	if _, err := r.sess.Select(target, true); err != nil {
		return nil, fmt.Errorf("select %s: %w", target, err)
	}
	uids, err := r.sess.UIDSearch(&imap.SearchCriteria{})
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", target, err)
	}
	// Scan a window a few times the draft cap; most recent mail last.
	if window := limit * 4; len(uids) > window {
		uids = uids[len(uids)-window:]
	}

	raws, err := r.sess.FetchFullUIDs(uids)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", target, err)
	}

	// Newest first.
	for i := len(raws) - 1; i >= 0 && res.Drafted < limit; i-- {
		raw := raws[i]
		msg, err := mailbox.ParseMessage(raw.Body, mailbox.Ref{UID: raw.UID, SeqNum: raw.SeqNum}, r.logger)
		if err != nil {
			continue
		}
		res.Scanned++

		if msg.FromAddress == "" || classify.IsSpam(msg) {
			continue
		}
		if answered.IsActive(msg) {
			res.AlreadyAnswered++
			continue
		}

		markdown, err := r.gen.Draft(ctx, msg)
		if err != nil {
			r.logger.Warn("draft generation failed", "ref", msg.Ref.String(), "error", err)
			continue
		}

		draft, err := ComposeReply(ReplyOptions{
			From:     opts.From,
			Original: msg,
			Markdown: markdown,
		})
		if err != nil {
			r.logger.Warn("draft composition failed", "ref", msg.Ref.String(), "error", err)
			continue
		}
		if err := r.sess.Append(draftsFolder, draft, []imap.Flag{imap.FlagDraft, imap.FlagSeen}); err != nil {
			return res, fmt.Errorf("append draft: %w", err)
		}
		res.Drafted++
		r.logger.Info("draft saved", "subject", msg.Subject, "from", msg.FromAddress)
	}

	return res, nil
}

// resolveDraftsFolder finds the account's drafts folder, creating
// "Drafts" when none exists.
func (r *Responder) resolveDraftsFolder() (string, error) {
	names, err := r.folders.Folders()
	if err != nil {
		return "", err
	}
	for _, name := range names {
		lower := strings.ToLower(name)
		if strings.Contains(lower, "draft") || strings.Contains(lower, "robocze") {
			return name, nil
		}
	}
	if err := r.folders.Create("Drafts"); err != nil {
		return "", err
	}
	return "Drafts", nil
}
