// Package mailbox models fetched messages and the machinery for getting
// them out of unhealthy mailboxes: corruption diagnosis, graduated fetch
// strategies, and MIME parsing of raw RFC822 bodies.
package mailbox

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"
)

// maxBodySize is the maximum parsed body text to keep per message.
// Clustering and spam scoring work on prefixes; huge bodies only slow
// the vectorizer down.
const maxBodySize = 32 * 1024

// Ref identifies a message on the server. Exactly one of UID or SeqNum
// is meaningful depending on the fetch strategy that produced it; UID 0
// means the message was fetched by sequence number only.
type Ref struct {
	UID    imap.UID
	SeqNum uint32
}

func (r Ref) String() string {
	if r.UID != 0 {
		return fmt.Sprintf("uid:%d", r.UID)
	}
	return fmt.Sprintf("seq:%d", r.SeqNum)
}

// Message is one parsed mail message.
type Message struct {
	Ref Ref

	Subject     string
	From        string // display form, e.g. `Jo Smith <jo@example.com>`
	FromAddress string // bare addr-spec, lowercased
	To          []string
	Date        time.Time

	MessageID  string
	InReplyTo  []string
	References []string

	TextBody string
	HTMLBody string
}

// Body returns the best available text content: the plain-text part if
// present, otherwise the HTML part with tags stripped.
func (m *Message) Body() string {
	if m.TextBody != "" {
		return m.TextBody
	}
	return stripTags(m.HTMLBody)
}

// Content returns subject and body joined, the unit the clusterer and
// spam filter score.
func (m *Message) Content() string {
	body := m.Body()
	if m.Subject == "" {
		return body
	}
	if body == "" {
		return m.Subject
	}
	return m.Subject + " " + body
}

var tagRe = regexp.MustCompile(`<[^>]*>`)

func stripTags(s string) string {
	if s == "" {
		return ""
	}
	return strings.TrimSpace(tagRe.ReplaceAllString(s, " "))
}

// ParseMessage parses a raw RFC822 message into a Message. Charset
// problems are tolerated: go-message may return both a usable reader and
// an error for unknown charsets, and slightly garbled text is still good
// enough for clustering.
func ParseMessage(raw []byte, ref Ref, logger *slog.Logger) (*Message, error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, fmt.Errorf("parse message %s: %w", ref, err)
	}
	if mr == nil {
		return nil, fmt.Errorf("parse message %s: no readable header", ref)
	}

	msg := &Message{Ref: ref}

	if subject, err := mr.Header.Subject(); err == nil {
		msg.Subject = strings.TrimSpace(subject)
	}
	if date, err := mr.Header.Date(); err == nil {
		msg.Date = date
	}
	if from, err := mr.Header.AddressList("From"); err == nil && len(from) > 0 {
		msg.From = formatAddress(from[0])
		msg.FromAddress = strings.ToLower(from[0].Address)
	}
	if to, err := mr.Header.AddressList("To"); err == nil {
		for _, addr := range to {
			msg.To = append(msg.To, strings.ToLower(addr.Address))
		}
	}
	if id, err := mr.Header.MessageID(); err == nil {
		msg.MessageID = id
	}
	if refs, err := mr.Header.MsgIDList("In-Reply-To"); err == nil {
		msg.InReplyTo = refs
	}
	if refs, err := mr.Header.MsgIDList("References"); err == nil {
		msg.References = refs
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil && !message.IsUnknownCharset(err) {
			// A broken part does not invalidate what we already have.
			logger.Debug("stopping at unreadable MIME part", "ref", ref.String(), "error", err)
			break
		}
		if part == nil {
			continue
		}

		var contentType string
		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			contentType, _, _ = h.ContentType()
		case *mail.AttachmentHeader:
			continue
		default:
			continue
		}

		switch {
		case contentType == "text/plain" && msg.TextBody == "":
			msg.TextBody = readPartText(part.Body, ref, logger)
		case contentType == "text/html" && msg.HTMLBody == "":
			msg.HTMLBody = readPartText(part.Body, ref, logger)
		}
	}

	return msg, nil
}

func readPartText(r io.Reader, ref Ref, logger *slog.Logger) string {
	body, err := io.ReadAll(io.LimitReader(r, maxBodySize))
	if err != nil {
		logger.Debug("error reading MIME part", "ref", ref.String(), "error", err)
		return ""
	}
	return strings.TrimSpace(string(body))
}

func formatAddress(addr *mail.Address) string {
	if addr.Name != "" {
		return fmt.Sprintf("%s <%s>", addr.Name, addr.Address)
	}
	return addr.Address
}
