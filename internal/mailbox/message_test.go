package mailbox

import (
	"strings"
	"testing"
)

const plainMessage = "From: Jo Smith <Jo@Example.com>\r\n" +
	"To: team@example.com\r\n" +
	"Subject: Quarterly planning\r\n" +
	"Date: Mon, 12 Jan 2026 10:30:00 +0000\r\n" +
	"Message-ID: <abc123@example.com>\r\n" +
	"In-Reply-To: <root@example.com>\r\n" +
	"References: <root@example.com> <mid@example.com>\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Let's review the roadmap on Thursday.\r\n"

func TestParseMessagePlain(t *testing.T) {
	msg, err := ParseMessage([]byte(plainMessage), Ref{UID: 7}, testLogger())
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}

	if msg.Subject != "Quarterly planning" {
		t.Errorf("Subject = %q", msg.Subject)
	}
	if msg.From != "Jo Smith <Jo@Example.com>" {
		t.Errorf("From = %q", msg.From)
	}
	if msg.FromAddress != "jo@example.com" {
		t.Errorf("FromAddress = %q, want lowercased addr-spec", msg.FromAddress)
	}
	if len(msg.To) != 1 || msg.To[0] != "team@example.com" {
		t.Errorf("To = %v", msg.To)
	}
	if msg.Date.IsZero() {
		t.Error("Date not parsed")
	}
	if msg.MessageID != "abc123@example.com" {
		t.Errorf("MessageID = %q", msg.MessageID)
	}
	if len(msg.InReplyTo) != 1 || msg.InReplyTo[0] != "root@example.com" {
		t.Errorf("InReplyTo = %v", msg.InReplyTo)
	}
	if len(msg.References) != 2 {
		t.Errorf("References = %v", msg.References)
	}
	if msg.TextBody != "Let's review the roadmap on Thursday." {
		t.Errorf("TextBody = %q", msg.TextBody)
	}
}

func TestParseMessageMultipartPrefersPlain(t *testing.T) {
	raw := "From: a@example.com\r\n" +
		"Subject: hi\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: multipart/alternative; boundary=BOUND\r\n" +
		"\r\n" +
		"--BOUND\r\n" +
		"Content-Type: text/plain\r\n" +
		"\r\n" +
		"plain content\r\n" +
		"--BOUND\r\n" +
		"Content-Type: text/html\r\n" +
		"\r\n" +
		"<p>html content</p>\r\n" +
		"--BOUND--\r\n"

	msg, err := ParseMessage([]byte(raw), Ref{UID: 1}, testLogger())
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	if msg.TextBody != "plain content" {
		t.Errorf("TextBody = %q", msg.TextBody)
	}
	if msg.Body() != "plain content" {
		t.Errorf("Body() = %q, want the plain part", msg.Body())
	}
}

func TestBodyFallsBackToStrippedHTML(t *testing.T) {
	msg := &Message{HTMLBody: "<html><body><p>Buy <b>now</b></p></body></html>"}
	body := msg.Body()
	if strings.Contains(body, "<") {
		t.Errorf("Body() kept tags: %q", body)
	}
	if !strings.Contains(body, "Buy") || !strings.Contains(body, "now") {
		t.Errorf("Body() lost text: %q", body)
	}
}

func TestContentJoinsSubjectAndBody(t *testing.T) {
	msg := &Message{Subject: "Invoice", TextBody: "attached below"}
	if got := msg.Content(); got != "Invoice attached below" {
		t.Errorf("Content() = %q", got)
	}

	subjectOnly := &Message{Subject: "Invoice"}
	if got := subjectOnly.Content(); got != "Invoice" {
		t.Errorf("Content() = %q for subject-only message", got)
	}

	bodyOnly := &Message{TextBody: "no subject here"}
	if got := bodyOnly.Content(); got != "no subject here" {
		t.Errorf("Content() = %q for body-only message", got)
	}
}

func TestParseMessageGarbage(t *testing.T) {
	// Headerless garbage still yields a parse (everything before the
	// first blank line is treated as headers); the point is that it
	// must not panic and must not fabricate fields.
	msg, err := ParseMessage([]byte("complete nonsense\r\n\r\nbody?"), Ref{SeqNum: 9}, testLogger())
	if err != nil {
		t.Skipf("parser rejected garbage outright: %v", err)
	}
	if msg.Subject != "" || msg.FromAddress != "" {
		t.Errorf("fabricated fields from garbage: %+v", msg)
	}
}

func TestRefString(t *testing.T) {
	if got := (Ref{UID: 42}).String(); got != "uid:42" {
		t.Errorf("String() = %q", got)
	}
	if got := (Ref{SeqNum: 7}).String(); got != "seq:7" {
		t.Errorf("String() = %q", got)
	}
}
