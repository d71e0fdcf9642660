package cluster

import (
	"strings"
	"testing"
	"time"

	"github.com/mailgroom/mailgroom/internal/mailbox"
	"github.com/mailgroom/mailgroom/internal/textindex"
)

func newTestEngine(threshold float64, minSize int, minFraction float64) *Engine {
	e := NewEngine(textindex.NewVectorizer(100, ""), threshold, minSize, minFraction)
	e.now = func() time.Time { return time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC) }
	return e
}

func msg(subject, body string) *mailbox.Message {
	return &mailbox.Message{Subject: subject, TextBody: body}
}

func TestClusterGroupsSimilarMessages(t *testing.T) {
	msgs := []*mailbox.Message{
		msg("invoice payment march", "invoice payment due march office"),
		msg("invoice payment april", "invoice payment due april office"),
		msg("invoice payment may", "invoice payment due may office"),
		msg("hiking trip photos", "mountain hiking trip photos weekend"),
		msg("hiking trip plan", "mountain hiking trip plan weekend"),
	}
	cats := newTestEngine(0.25, 2, 0).Cluster(msgs)

	if len(cats) != 2 {
		t.Fatalf("got %d categories, want 2: %+v", len(cats), cats)
	}
	if len(cats[0].Members) != 3 {
		t.Errorf("first cluster members = %v, want the three invoices", cats[0].Members)
	}
	if len(cats[1].Members) != 2 {
		t.Errorf("second cluster members = %v, want the two hikes", cats[1].Members)
	}
	if cats[0].Name != "Category_Invoice" {
		t.Errorf("first cluster name = %q, want Category_Invoice", cats[0].Name)
	}
	if cats[1].Name != "Category_Hiking" {
		t.Errorf("second cluster name = %q, want Category_Hiking", cats[1].Name)
	}
}

func TestClusterSizeFloorByFraction(t *testing.T) {
	// 10 messages, fraction 0.3: floor is ceil(3.0) = 3, beating
	// minClusterSize 2. A pair can no longer form a category.
	var msgs []*mailbox.Message
	msgs = append(msgs,
		msg("pair topic alpha", "pair topic alpha content"),
		msg("pair topic beta", "pair topic beta content"),
	)
	for i := 0; i < 8; i++ {
		msgs = append(msgs, msg("filler "+strings.Repeat("x", i+1), "entirely unrelated filler number "+strings.Repeat("y", i+1)))
	}
	cats := newTestEngine(0.25, 2, 0.3).Cluster(msgs)
	for _, c := range cats {
		if len(c.Members) < 3 {
			t.Errorf("category %q has %d members, below the fraction floor", c.Name, len(c.Members))
		}
	}
}

func TestClusterMembersBelongToOneCategory(t *testing.T) {
	msgs := []*mailbox.Message{
		msg("project update weekly", "project update weekly status report"),
		msg("project update weekly", "project update weekly status report"),
		msg("project update weekly", "project update weekly status report"),
	}
	cats := newTestEngine(0.25, 2, 0).Cluster(msgs)

	seen := map[int]bool{}
	for _, c := range cats {
		for _, idx := range c.Members {
			if seen[idx] {
				t.Fatalf("message %d assigned twice", idx)
			}
			seen[idx] = true
		}
	}
}

func TestClusterUndersizedGroupStaysEligible(t *testing.T) {
	// Message 0 anchors a group of one (nothing else similar), which
	// dissolves. Messages 1 and 2 are mutually similar and must still
	// be able to form a category afterwards.
	msgs := []*mailbox.Message{
		msg("zebra quantum unique", "zebra quantum unique standalone topic"),
		msg("garden flowers spring", "garden flowers spring planting tips"),
		msg("garden flowers spring", "garden flowers spring planting tips"),
	}
	cats := newTestEngine(0.25, 2, 0).Cluster(msgs)
	if len(cats) != 1 {
		t.Fatalf("got %d categories, want 1: %+v", len(cats), cats)
	}
	if len(cats[0].Members) != 2 || cats[0].Members[0] != 1 || cats[0].Members[1] != 2 {
		t.Errorf("members = %v, want [1 2]", cats[0].Members)
	}
}

func TestCategoryNameTiesFirstSeen(t *testing.T) {
	e := newTestEngine(0.25, 2, 0)
	group := []*mailbox.Message{
		msg("bravo alpha", ""),
		msg("alpha bravo", ""),
	}
	// bravo and alpha both count 2; bravo was seen first.
	if got := e.categoryName(group); got != "Category_Bravo" {
		t.Errorf("categoryName = %q, want Category_Bravo", got)
	}
}

func TestCategoryNameSkipsShortTokens(t *testing.T) {
	e := newTestEngine(0.25, 2, 0)
	group := []*mailbox.Message{
		msg("re fw the program", ""),
		msg("re fw program now", ""),
	}
	if got := e.categoryName(group); got != "Category_Program" {
		t.Errorf("categoryName = %q, want Category_Program", got)
	}
}

func TestCategoryNameTimestampFallback(t *testing.T) {
	e := newTestEngine(0.25, 2, 0)
	group := []*mailbox.Message{msg("re fw ok", ""), msg("", "")}
	if got := e.categoryName(group); got != "Category_20260314_092653" {
		t.Errorf("categoryName = %q, want timestamp form", got)
	}
}

func TestClusterEmptyInput(t *testing.T) {
	if cats := newTestEngine(0.25, 2, 0).Cluster(nil); cats != nil {
		t.Errorf("expected nil, got %+v", cats)
	}
}
