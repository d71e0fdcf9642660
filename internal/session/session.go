// Package session provides the typed IMAP protocol layer for mailgroom.
// Session wraps go-imap/v2's imapclient with the operations the organizer
// needs; Resilient adds uniform retry/backoff and dry-run interception on
// top. Every operation returns a typed value or an error; no string
// status tags leak above this package.
package session

import (
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
)

// Config holds the IMAP server connection parameters.
type Config struct {
	// Host is the IMAP server hostname (e.g., "imap.example.com").
	Host string `yaml:"host"`

	// Port is the IMAP server port. Default: 993 (IMAPS).
	Port int `yaml:"port"`

	// Username is the IMAP login username (typically the email address).
	Username string `yaml:"username"`

	// Password is the IMAP login password. Supports environment variable
	// fallback via the config loader.
	Password string `yaml:"password"`

	// TLS controls whether to use TLS for the connection. Default: true.
	TLS bool `yaml:"tls"`

	// Timeout is the socket-level dial timeout.
	Timeout time.Duration `yaml:"-"`

	// Trace enables wire-level protocol logging through the session's
	// trace writer. Very verbose.
	Trace bool `yaml:"-"`
}

// Session is a single-connection IMAP session. Command issuance is
// strictly sequential: all calls are blocking round-trips and the caller
// is expected to serialize access. There is no pipelining.
type Session struct {
	cfg    Config
	logger *slog.Logger

	client   *imapclient.Client
	selected string
	caps     imap.CapSet
}

// New creates a Session for the given server configuration. The
// connection is established by Connect.
func New(cfg Config, logger *slog.Logger) *Session {
	return &Session{
		cfg:    cfg,
		logger: logger,
	}
}

// Connect dials the server and authenticates. It must be called before
// any other operation.
func (s *Session) Connect() error {
	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprintf("%d", s.cfg.Port))

	var opts imapclient.Options
	if s.cfg.TLS {
		opts.TLSConfig = &tls.Config{ServerName: s.cfg.Host}
	}
	if s.cfg.Trace {
		opts.DebugWriter = newTraceWriter(s.logger)
	}

	s.logger.Debug("connecting to IMAP server", "host", s.cfg.Host, "port", s.cfg.Port, "tls", s.cfg.TLS)

	var client *imapclient.Client
	var err error
	if s.cfg.TLS {
		client, err = imapclient.DialTLS(addr, &opts)
	} else {
		client, err = imapclient.DialInsecure(addr, &opts)
	}
	if err != nil {
		return fmt.Errorf("dial IMAP %s: %w", addr, err)
	}

	if err := client.Login(s.cfg.Username, s.cfg.Password).Wait(); err != nil {
		_ = client.Close()
		return fmt.Errorf("login as %s: %w", s.cfg.Username, err)
	}

	s.client = client
	s.logger.Info("IMAP connected", "host", s.cfg.Host, "user", s.cfg.Username)
	return nil
}

// Logout sends LOGOUT and closes the connection.
func (s *Session) Logout() error {
	if s.client == nil {
		return nil
	}
	err := s.client.Logout().Wait()
	_ = s.client.Close()
	s.client = nil
	s.selected = ""
	return err
}

// Close tears down the connection without a LOGOUT round-trip.
func (s *Session) Close() error {
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	s.selected = ""
	return err
}

// Selected returns the currently selected mailbox, or "" if none.
func (s *Session) Selected() string {
	return s.selected
}

// Select opens a mailbox. With readOnly it issues EXAMINE semantics so
// the select cannot mutate flags as a side effect.
func (s *Session) Select(folder string, readOnly bool) (*imap.SelectData, error) {
	if folder == "" {
		folder = "INBOX"
	}
	opts := &imap.SelectOptions{ReadOnly: readOnly}
	data, err := s.client.Select(folder, opts).Wait()
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", folder, err)
	}
	s.selected = folder
	return data, nil
}

// Unselect returns the session to the unselected state. Servers without
// UNSELECT get a harmless INBOX EXAMINE instead; either way the previous
// mailbox is no longer selected.
func (s *Session) Unselect() error {
	if s.selected == "" {
		return nil
	}
	if _, err := s.Select("INBOX", true); err != nil {
		return err
	}
	return nil
}

// UIDSearchAll returns every UID in the selected mailbox in server order.
func (s *Session) UIDSearchAll() ([]imap.UID, error) {
	return s.UIDSearch(&imap.SearchCriteria{})
}

// UIDSearch runs UID SEARCH with the given criteria.
func (s *Session) UIDSearch(criteria *imap.SearchCriteria) ([]imap.UID, error) {
	data, err := s.client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("uid search: %w", err)
	}
	return data.AllUIDs(), nil
}

// SearchAll returns every sequence number in the selected mailbox. This
// is the corruption-era fallback: sequence numbers bypass the server's
// UID index entirely.
func (s *Session) SearchAll() ([]uint32, error) {
	data, err := s.client.Search(&imap.SearchCriteria{}, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return data.AllSeqNums(), nil
}

// ProbeFlags issues UID FETCH (FLAGS) for a single UID and reports how
// many messages the server actually returned. A healthy mailbox returns
// exactly one; a desynced UID index returns zero.
func (s *Session) ProbeFlags(uid imap.UID) (int, error) {
	uidSet := imap.UIDSet{}
	uidSet.AddNum(uid)
	msgs, err := s.client.Fetch(uidSet, &imap.FetchOptions{Flags: true}).Collect()
	if err != nil {
		return 0, fmt.Errorf("uid fetch flags %d: %w", uid, err)
	}
	return len(msgs), nil
}

// RawMessage is one fetched message body with its identifying numbers.
type RawMessage struct {
	UID    imap.UID
	SeqNum uint32
	Body   []byte
}

// maxRawMessageSize caps how much of an RFC822 literal is buffered.
// Oversized messages are truncated and the remainder drained to keep
// the IMAP stream in sync.
const maxRawMessageSize = 5 * 1024 * 1024

// FetchFullUID fetches the complete RFC822 body for one UID.
func (s *Session) FetchFullUID(uid imap.UID) (RawMessage, error) {
	uidSet := imap.UIDSet{}
	uidSet.AddNum(uid)
	msgs, err := s.fetchFull(uidSet)
	if err != nil {
		return RawMessage{}, err
	}
	if len(msgs) == 0 {
		return RawMessage{}, fmt.Errorf("uid %d: no data returned", uid)
	}
	return msgs[0], nil
}

// FetchFullSeq fetches the complete RFC822 body for one sequence number.
func (s *Session) FetchFullSeq(seq uint32) (RawMessage, error) {
	seqSet := imap.SeqSet{}
	seqSet.AddNum(seq)
	msgs, err := s.fetchFull(seqSet)
	if err != nil {
		return RawMessage{}, err
	}
	if len(msgs) == 0 {
		return RawMessage{}, fmt.Errorf("seq %d: no data returned", seq)
	}
	return msgs[0], nil
}

// FetchFullUIDs fetches complete RFC822 bodies for a batch of UIDs with
// a single FETCH round-trip. Results come back in server order and may
// be fewer than requested.
func (s *Session) FetchFullUIDs(uids []imap.UID) ([]RawMessage, error) {
	uidSet := imap.UIDSet{}
	for _, uid := range uids {
		uidSet.AddNum(uid)
	}
	return s.fetchFull(uidSet)
}

// fetchFull streams RFC822 literals for the given message set. Literals
// are consumed inline: go-imap/v2 streams them from the connection, so
// deferring the read past msg.Next() would lose the data.
func (s *Session) fetchFull(set imap.NumSet) ([]RawMessage, error) {
	fetchOpts := &imap.FetchOptions{
		UID: true,
		BodySection: []*imap.FetchItemBodySection{
			{Peek: true},
		},
	}

	cmd := s.client.Fetch(set, fetchOpts)

	var out []RawMessage
	for {
		msg := cmd.Next()
		if msg == nil {
			break
		}

		raw := RawMessage{SeqNum: msg.SeqNum}
		for {
			item := msg.Next()
			if item == nil {
				break
			}
			switch data := item.(type) {
			case imapclient.FetchItemDataUID:
				raw.UID = data.UID
			case imapclient.FetchItemDataBodySection:
				if data.Literal == nil {
					continue
				}
				body, readErr := io.ReadAll(io.LimitReader(data.Literal, maxRawMessageSize))
				_, _ = io.Copy(io.Discard, data.Literal)
				if readErr != nil {
					s.logger.Debug("error reading body literal", "seq", msg.SeqNum, "error", readErr)
					continue
				}
				raw.Body = body
			}
		}
		if len(raw.Body) > 0 {
			out = append(out, raw)
		}
	}

	if err := cmd.Close(); err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	return out, nil
}

// FetchHeaderFields fetches only the named header fields for a batch of
// UIDs. Used by the conversation index, where pulling full bodies from
// Sent and Drafts would be wasteful.
func (s *Session) FetchHeaderFields(uids []imap.UID, fields []string) ([]RawMessage, error) {
	uidSet := imap.UIDSet{}
	for _, uid := range uids {
		uidSet.AddNum(uid)
	}

	fetchOpts := &imap.FetchOptions{
		UID: true,
		BodySection: []*imap.FetchItemBodySection{
			{
				Specifier:    imap.PartSpecifierHeader,
				HeaderFields: fields,
				Peek:         true,
			},
		},
	}

	cmd := s.client.Fetch(uidSet, fetchOpts)

	var out []RawMessage
	for {
		msg := cmd.Next()
		if msg == nil {
			break
		}
		raw := RawMessage{SeqNum: msg.SeqNum}
		for {
			item := msg.Next()
			if item == nil {
				break
			}
			switch data := item.(type) {
			case imapclient.FetchItemDataUID:
				raw.UID = data.UID
			case imapclient.FetchItemDataBodySection:
				if data.Literal == nil {
					continue
				}
				body, readErr := io.ReadAll(io.LimitReader(data.Literal, maxRawMessageSize))
				_, _ = io.Copy(io.Discard, data.Literal)
				if readErr != nil {
					continue
				}
				raw.Body = body
			}
		}
		if len(raw.Body) > 0 {
			out = append(out, raw)
		}
	}

	if err := cmd.Close(); err != nil {
		return nil, fmt.Errorf("fetch header fields: %w", err)
	}
	return out, nil
}

// ListEntry is one mailbox from a LIST response.
type ListEntry struct {
	Attrs   []string
	Delim   string
	Mailbox string
}

// List returns all mailboxes visible to the account.
func (s *Session) List() ([]ListEntry, error) {
	mailboxes, err := s.client.List("", "*", nil).Collect()
	if err != nil {
		return nil, fmt.Errorf("list mailboxes: %w", err)
	}

	entries := make([]ListEntry, 0, len(mailboxes))
	for _, mbox := range mailboxes {
		entry := ListEntry{
			Delim:   string(mbox.Delim),
			Mailbox: mbox.Mailbox,
		}
		if mbox.Delim == 0 {
			entry.Delim = ""
		}
		for _, attr := range mbox.Attrs {
			entry.Attrs = append(entry.Attrs, string(attr))
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// SupportsMove reports whether the server advertises the MOVE capability
// (RFC 6851). The capability set is cached after the first query.
func (s *Session) SupportsMove() (bool, error) {
	if s.caps == nil {
		caps, err := s.client.Capability().Wait()
		if err != nil {
			return false, fmt.Errorf("capability: %w", err)
		}
		s.caps = caps
	}
	return s.caps.Has(imap.CapMove), nil
}

// Create creates a mailbox.
func (s *Session) Create(mailbox string) error {
	if err := s.client.Create(mailbox, nil).Wait(); err != nil {
		return fmt.Errorf("create %s: %w", mailbox, err)
	}
	return nil
}

// Delete removes a mailbox.
func (s *Session) Delete(mailbox string) error {
	if err := s.client.Delete(mailbox).Wait(); err != nil {
		return fmt.Errorf("delete %s: %w", mailbox, err)
	}
	return nil
}

// Rename renames a mailbox.
func (s *Session) Rename(oldName, newName string) error {
	if err := s.client.Rename(oldName, newName, nil).Wait(); err != nil {
		return fmt.Errorf("rename %s to %s: %w", oldName, newName, err)
	}
	return nil
}

// Subscribe adds a mailbox to the subscription list.
func (s *Session) Subscribe(mailbox string) error {
	if err := s.client.Subscribe(mailbox).Wait(); err != nil {
		return fmt.Errorf("subscribe %s: %w", mailbox, err)
	}
	return nil
}

// Unsubscribe removes a mailbox from the subscription list.
func (s *Session) Unsubscribe(mailbox string) error {
	if err := s.client.Unsubscribe(mailbox).Wait(); err != nil {
		return fmt.Errorf("unsubscribe %s: %w", mailbox, err)
	}
	return nil
}

// CopyUID copies messages by UID into the destination mailbox.
func (s *Session) CopyUID(uids []imap.UID, dest string) error {
	uidSet := imap.UIDSet{}
	for _, uid := range uids {
		uidSet.AddNum(uid)
	}
	if _, err := s.client.Copy(uidSet, dest).Wait(); err != nil {
		return fmt.Errorf("uid copy to %s: %w", dest, err)
	}
	return nil
}

// CopySeq copies messages by sequence number into the destination mailbox.
func (s *Session) CopySeq(seqs []uint32, dest string) error {
	seqSet := imap.SeqSet{}
	for _, seq := range seqs {
		seqSet.AddNum(seq)
	}
	if _, err := s.client.Copy(seqSet, dest).Wait(); err != nil {
		return fmt.Errorf("copy to %s: %w", dest, err)
	}
	return nil
}

// StoreDeletedUID adds the \Deleted flag to messages by UID.
func (s *Session) StoreDeletedUID(uids []imap.UID) error {
	uidSet := imap.UIDSet{}
	for _, uid := range uids {
		uidSet.AddNum(uid)
	}
	return s.storeDeleted(uidSet)
}

// StoreDeletedSeq adds the \Deleted flag to messages by sequence number.
func (s *Session) StoreDeletedSeq(seqs []uint32) error {
	seqSet := imap.SeqSet{}
	for _, seq := range seqs {
		seqSet.AddNum(seq)
	}
	return s.storeDeleted(seqSet)
}

func (s *Session) storeDeleted(set imap.NumSet) error {
	store := &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagDeleted},
	}
	if err := s.client.Store(set, store, nil).Close(); err != nil {
		return fmt.Errorf("store +flags \\Deleted: %w", err)
	}
	return nil
}

// MoveUID moves messages by UID using the MOVE extension. Callers are
// expected to check SupportsMove first; on servers without it the
// COPY+STORE+EXPUNGE sequence is used instead.
func (s *Session) MoveUID(uids []imap.UID, dest string) error {
	uidSet := imap.UIDSet{}
	for _, uid := range uids {
		uidSet.AddNum(uid)
	}
	if _, err := s.client.Move(uidSet, dest).Wait(); err != nil {
		return fmt.Errorf("uid move to %s: %w", dest, err)
	}
	return nil
}

// Expunge permanently removes messages flagged \Deleted from the
// selected mailbox and returns how many were expunged.
func (s *Session) Expunge() (int, error) {
	seqNums, err := s.client.Expunge().Collect()
	if err != nil {
		return 0, fmt.Errorf("expunge: %w", err)
	}
	return len(seqNums), nil
}

// Append uploads a complete RFC 5322 message into the given mailbox with
// the given flags. Used by the draft-saving collaborator.
func (s *Session) Append(mailbox string, msg []byte, flags []imap.Flag) error {
	opts := &imap.AppendOptions{Flags: flags}
	cmd := s.client.Append(mailbox, int64(len(msg)), opts)
	if _, err := cmd.Write(msg); err != nil {
		_ = cmd.Close()
		return fmt.Errorf("append write: %w", err)
	}
	if err := cmd.Close(); err != nil {
		return fmt.Errorf("append close: %w", err)
	}
	if _, err := cmd.Wait(); err != nil {
		return fmt.Errorf("append %s: %w", mailbox, err)
	}
	return nil
}
