package mailbox

import (
	"log/slog"
	"time"

	"github.com/emersion/go-imap/v2"

	"github.com/mailgroom/mailgroom/internal/session"
)

const (
	batchChunkSize    = 10
	recoveryChunkSize = 5
	safeAttempts      = 3
	safeBackoff       = 100 * time.Millisecond
)

// FetchSession is the slice of the IMAP session the fetcher needs.
type FetchSession interface {
	FetchFullUID(uid imap.UID) (session.RawMessage, error)
	FetchFullSeq(seq uint32) (session.RawMessage, error)
	FetchFullUIDs(uids []imap.UID) ([]session.RawMessage, error)
}

// Fetcher pulls and parses message bodies using a graduated strategy.
// Individual failures are logged and skipped; a fetch pass over a
// damaged mailbox returns whatever could be recovered.
type Fetcher struct {
	sess   FetchSession
	logger *slog.Logger

	sleep func(time.Duration)
}

// NewFetcher creates a Fetcher over a selected mailbox.
func NewFetcher(sess FetchSession, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		sess:   sess,
		logger: logger,
		sleep:  time.Sleep,
	}
}

// Fetch retrieves and parses the given messages with the given
// strategy. Results keep the input order of the refs that succeeded.
func (f *Fetcher) Fetch(refs []Ref, strategy FetchStrategy) []*Message {
	if len(refs) == 0 {
		return nil
	}
	f.logger.Debug("fetching messages", "count", len(refs), "strategy", strategy.String())

	switch strategy {
	case StrategySequence:
		return f.fetchSequence(refs)
	case StrategyBatch:
		return f.fetchBatch(refs, batchChunkSize)
	case StrategyRecovery:
		return f.fetchRecovery(refs)
	case StrategySafe:
		return f.fetchSafe(refs)
	default:
		return f.fetchStandard(refs)
	}
}

func (f *Fetcher) fetchStandard(refs []Ref) []*Message {
	var out []*Message
	for _, ref := range refs {
		raw, err := f.sess.FetchFullUID(ref.UID)
		if err != nil {
			f.logger.Debug("uid fetch failed", "ref", ref.String(), "error", err)
			continue
		}
		if msg := f.parse(raw, ref); msg != nil {
			out = append(out, msg)
		}
	}
	return out
}

func (f *Fetcher) fetchSequence(refs []Ref) []*Message {
	var out []*Message
	for _, ref := range refs {
		raw, err := f.sess.FetchFullSeq(ref.SeqNum)
		if err != nil {
			f.logger.Debug("sequence fetch failed", "ref", ref.String(), "error", err)
			continue
		}
		if msg := f.parse(raw, ref); msg != nil {
			out = append(out, msg)
		}
	}
	return out
}

// fetchBatch fetches UIDs in chunks. A failed or short chunk falls back
// to fetching each of its members individually, so one dead UID cannot
// sink its nine neighbors.
func (f *Fetcher) fetchBatch(refs []Ref, chunkSize int) []*Message {
	var out []*Message
	for start := 0; start < len(refs); start += chunkSize {
		end := start + chunkSize
		if end > len(refs) {
			end = len(refs)
		}
		chunk := refs[start:end]

		uids := make([]imap.UID, len(chunk))
		for i, ref := range chunk {
			uids[i] = ref.UID
		}

		raws, err := f.sess.FetchFullUIDs(uids)
		if err == nil && len(raws) == len(chunk) {
			byUID := refsByUID(chunk)
			for _, raw := range raws {
				ref, ok := byUID[raw.UID]
				if !ok {
					ref = Ref{UID: raw.UID, SeqNum: raw.SeqNum}
				}
				if msg := f.parse(raw, ref); msg != nil {
					out = append(out, msg)
				}
			}
			continue
		}
		if err != nil {
			f.logger.Debug("batch fetch failed, retrying per message", "chunk", len(chunk), "error", err)
		} else {
			f.logger.Debug("batch fetch incomplete, retrying per message", "requested", len(chunk), "got", len(raws))
		}
		out = append(out, f.fetchStandard(chunk)...)
	}
	return out
}

// fetchRecovery chains whole-set passes: a plain UID pass first, a
// sequence-number pass if that recovered nothing, and small UID batches
// as the last rung.
func (f *Fetcher) fetchRecovery(refs []Ref) []*Message {
	if out := f.fetchStandard(refs); len(out) > 0 {
		return out
	}
	f.logger.Debug("recovery: uid pass empty, trying sequence numbers")
	if out := f.fetchSequence(refs); len(out) > 0 {
		return out
	}
	f.logger.Debug("recovery: sequence pass empty, trying small batches")
	return f.fetchBatch(refs, recoveryChunkSize)
}

// fetchSafe is the last-resort strategy for critically damaged
// mailboxes: sequence numbers only, one message at a time, with growing
// pauses between attempts.
func (f *Fetcher) fetchSafe(refs []Ref) []*Message {
	var out []*Message
	for _, ref := range refs {
		var raw session.RawMessage
		var err error
		for attempt := 1; attempt <= safeAttempts; attempt++ {
			raw, err = f.sess.FetchFullSeq(ref.SeqNum)
			if err == nil {
				break
			}
			if attempt < safeAttempts {
				f.sleep(safeBackoff * time.Duration(attempt))
			}
		}
		if err != nil {
			f.logger.Debug("safe fetch gave up", "ref", ref.String(), "error", err)
			continue
		}
		if msg := f.parse(raw, ref); msg != nil {
			out = append(out, msg)
		}
	}
	return out
}

func (f *Fetcher) parse(raw session.RawMessage, ref Ref) *Message {
	if ref.UID == 0 {
		ref.UID = raw.UID
	}
	if ref.SeqNum == 0 {
		ref.SeqNum = raw.SeqNum
	}
	msg, err := ParseMessage(raw.Body, ref, f.logger)
	if err != nil {
		f.logger.Debug("unparseable message skipped", "ref", ref.String(), "error", err)
		return nil
	}
	return msg
}

func refsByUID(refs []Ref) map[imap.UID]Ref {
	m := make(map[imap.UID]Ref, len(refs))
	for _, ref := range refs {
		m[ref.UID] = ref
	}
	return m
}
