package seedmail

import (
	"io"
	"strings"
	"testing"

	"github.com/emersion/go-message/mail"
)

func TestBatchSpamRatio(t *testing.T) {
	g := NewGenerator("test@localhost", 42)
	batch := g.Batch(50, 0.2)

	if len(batch) != 50 {
		t.Fatalf("got %d emails, want 50", len(batch))
	}
	spam := 0
	for _, e := range batch {
		if e.Spam {
			spam++
			if e.Category != "spam" {
				t.Errorf("spam email has category %q", e.Category)
			}
		}
		if e.To != "test@localhost" {
			t.Errorf("recipient = %q, want test@localhost", e.To)
		}
		if e.Subject == "" || e.Body == "" || e.From == "" {
			t.Errorf("incomplete email: %+v", e)
		}
	}
	if spam != 10 {
		t.Errorf("spam count = %d, want 10", spam)
	}
}

func TestBatchDeterministicWithSeed(t *testing.T) {
	a := NewGenerator("test@localhost", 7).Batch(20, 0.25)
	b := NewGenerator("test@localhost", 7).Batch(20, 0.25)

	for i := range a {
		if a[i].Subject != b[i].Subject || a[i].From != b[i].From {
			t.Fatalf("batches diverge at %d: %q vs %q", i, a[i].Subject, b[i].Subject)
		}
	}
}

func TestBatchEdgeCases(t *testing.T) {
	g := NewGenerator("test@localhost", 1)
	if got := g.Batch(0, 0.5); got != nil {
		t.Errorf("Batch(0) = %v, want nil", got)
	}
	all := g.Batch(10, 1.5) // ratio clamped to 1
	for _, e := range all {
		if !e.Spam {
			t.Errorf("ratio 1 produced ham: %+v", e)
		}
	}
	none := g.Batch(10, -1)
	for _, e := range none {
		if e.Spam {
			t.Errorf("ratio 0 produced spam: %+v", e)
		}
	}
}

func TestFillTemplate(t *testing.T) {
	g := NewGenerator("test@localhost", 3)

	got := g.fillTemplate("Order #%d confirmed")
	if strings.Contains(got, "%") {
		t.Errorf("unresolved placeholder: %q", got)
	}
	got = g.fillTemplate("VIAGRA - 80%% OFF - LIMITED TIME")
	if got != "VIAGRA - 80% OFF - LIMITED TIME" {
		t.Errorf("literal percent broken: %q", got)
	}
	got = g.fillTemplate("Quick question about %s")
	if strings.Contains(got, "%") || strings.HasSuffix(got, "about ") {
		t.Errorf("string placeholder broken: %q", got)
	}
}

func TestRenderRoundTrip(t *testing.T) {
	raw, err := Render(Email{
		From:    "orders@bigshop.example",
		To:      "test@localhost",
		Subject: "Order #1234 confirmed",
		Body:    "Thank you for your order!\n",
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	mr, err := mail.CreateReader(strings.NewReader(string(raw)))
	if err != nil {
		t.Fatalf("parse rendered mail: %v", err)
	}
	if subject, _ := mr.Header.Subject(); subject != "Order #1234 confirmed" {
		t.Errorf("Subject = %q", subject)
	}
	id, err := mr.Header.MessageID()
	if err != nil || id == "" {
		t.Errorf("MessageID = %q, %v", id, err)
	}
	if !strings.HasSuffix(id, "@seed.mailgroom") {
		t.Errorf("MessageID %q missing seed domain", id)
	}

	part, err := mr.NextPart()
	if err != nil {
		t.Fatalf("NextPart: %v", err)
	}
	body, _ := io.ReadAll(part.Body)
	if !strings.Contains(string(body), "Thank you for your order!") {
		t.Errorf("body = %q", body)
	}
}

func TestRenderRejectsBadAddress(t *testing.T) {
	_, err := Render(Email{From: "not an address", To: "test@localhost"})
	if err == nil {
		t.Fatal("expected error for invalid sender")
	}
}
