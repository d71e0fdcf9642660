// Package seedmail populates a test mailbox with a realistic mix of
// ham and spam so the organizer has something to chew on.
package seedmail

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Email is one generated message before rendering.
type Email struct {
	From     string
	To       string
	Subject  string
	Body     string
	Category string
	Spam     bool
}

// Generator produces weighted batches of test mail. A fixed seed gives
// a reproducible batch.
type Generator struct {
	rng       *rand.Rand
	recipient string
}

// NewGenerator creates a generator addressing all mail to recipient.
func NewGenerator(recipient string, seed int64) *Generator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Generator{
		rng:       rand.New(rand.NewSource(seed)),
		recipient: recipient,
	}
}

type category struct {
	name     string
	weight   float64
	subjects []string
	senders  []string
	body     func(g *Generator) string
}

var categories = []category{
	{
		name:   "work",
		weight: 0.25,
		subjects: []string{
			"Meeting tomorrow at %d:00",
			"Project %s update",
			"Deadline reminder: %s",
			"Quarterly report - Q%d",
			"Budget approval needed for %s",
		},
		senders: []string{"boss@company.example", "hr@company.example", "team@company.example"},
		body:    (*Generator).workBody,
	},
	{
		name:   "newsletters",
		weight: 0.20,
		subjects: []string{
			"Weekly Newsletter #%d",
			"Tech News Digest #%d",
			"Industry insights - %s",
			"Top 10 %s stories this week",
		},
		senders: []string{"newsletter@techblog.example", "digest@devnews.example"},
		body:    (*Generator).newsletterBody,
	},
	{
		name:   "shopping",
		weight: 0.15,
		subjects: []string{
			"Order #%d confirmed",
			"Your package is on the way",
			"Weekend deals in %s",
			"Items in your cart are waiting",
		},
		senders: []string{"orders@bigshop.example", "store@megamart.example"},
		body:    (*Generator).shoppingBody,
	},
	{
		name:   "social",
		weight: 0.15,
		subjects: []string{
			"%s sent you a message",
			"You have %d new notifications",
			"%s commented on your post",
		},
		senders: []string{"notifications@socialnet.example", "alerts@connect.example"},
		body:    (*Generator).socialBody,
	},
	{
		name:   "banking",
		weight: 0.10,
		subjects: []string{
			"Transaction confirmation - %d PLN",
			"Your statement is ready",
			"Monthly account summary for %s",
		},
		senders: []string{"noreply@bank.example", "statements@bank.example"},
		body:    (*Generator).bankingBody,
	},
	{
		name:   "personal",
		weight: 0.15,
		subjects: []string{
			"Quick question about %s",
			"Thanks for yesterday",
			"Invitation: %s",
		},
		senders: nil,
		body:    (*Generator).personalBody,
	},
}

type spamTemplate struct {
	subject string
	sender  string
	body    string
}

var spamTemplates = []spamTemplate{
	{
		subject: "Congratulations! You won $%d!!!",
		sender:  "winner@lottery%d.example",
		body:    "You are our lucky winner! Click here immediately to claim your prize! Act now, this offer expires in 24 hours!!!",
	},
	{
		subject: "VIAGRA - 80%% OFF - LIMITED TIME",
		sender:  "pharmacy%d@cheapmeds.example",
		body:    "Best prices on VIAGRA, CIALIS and more! No prescription needed! Fast discrete shipping! Order now and save!!!",
	},
	{
		subject: "Urgent business proposal",
		sender:  "prince%d@inheritance.example",
		body:    "Dear friend, I am a Nigerian prince and I need your help to transfer my inheritance out of the country. You will receive a generous commission.",
	},
	{
		subject: "Make $%d per week working from home!",
		sender:  "easy.money@workfromhome%d.example",
		body:    "Discover this one weird trick to make money fast from home! No experience needed! Start earning extra cash today!",
	},
	{
		subject: "Your account will be suspended!!!",
		sender:  "security@account-verify%d.example",
		body:    "Your account will be suspended unless you verify your information immediately. Click here now to keep your access!",
	},
}

var fillerWords = []string{
	"roadmap", "migration", "onboarding", "rollout", "retrospective",
	"gardening", "photography", "cycling", "astronomy", "cooking",
}

var fillerNames = []string{"Anna", "Marek", "Kasia", "Piotr", "Ola", "Tomek"}

func (g *Generator) word() string { return fillerWords[g.rng.Intn(len(fillerWords))] }
func (g *Generator) name() string { return fillerNames[g.rng.Intn(len(fillerNames))] }

// Batch generates count emails with roughly spamRatio of them spam,
// shuffled so spam is interleaved with ham.
func (g *Generator) Batch(count int, spamRatio float64) []Email {
	if count <= 0 {
		return nil
	}
	if spamRatio < 0 {
		spamRatio = 0
	}
	if spamRatio > 1 {
		spamRatio = 1
	}

	numSpam := int(float64(count) * spamRatio)
	out := make([]Email, 0, count)
	for i := 0; i < count-numSpam; i++ {
		out = append(out, g.ham(g.pickCategory()))
	}
	for i := 0; i < numSpam; i++ {
		out = append(out, g.spam())
	}
	g.rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

func (g *Generator) pickCategory() category {
	total := 0.0
	for _, c := range categories {
		total += c.weight
	}
	roll := g.rng.Float64() * total
	for _, c := range categories {
		roll -= c.weight
		if roll <= 0 {
			return c
		}
	}
	return categories[len(categories)-1]
}

func (g *Generator) ham(cat category) Email {
	subject := g.fillTemplate(cat.subjects[g.rng.Intn(len(cat.subjects))])
	sender := fmt.Sprintf("%s.%s@friends.example",
		strings.ToLower(g.name()), g.word())
	if len(cat.senders) > 0 {
		sender = cat.senders[g.rng.Intn(len(cat.senders))]
	}
	return Email{
		From:     sender,
		To:       g.recipient,
		Subject:  subject,
		Body:     cat.body(g),
		Category: cat.name,
	}
}

func (g *Generator) spam() Email {
	tpl := spamTemplates[g.rng.Intn(len(spamTemplates))]
	return Email{
		From:     g.fillTemplate(tpl.sender),
		To:       g.recipient,
		Subject:  g.fillTemplate(tpl.subject),
		Body:     tpl.body,
		Category: "spam",
		Spam:     true,
	}
}

// fillTemplate resolves %d and %s placeholders with random fillers in
// order of appearance.
func (g *Generator) fillTemplate(tpl string) string {
	var args []any
	rest := tpl
	for {
		idx := strings.IndexByte(rest, '%')
		if idx < 0 || idx+1 >= len(rest) {
			break
		}
		switch rest[idx+1] {
		case 'd':
			args = append(args, 100+g.rng.Intn(9900))
		case 's':
			args = append(args, g.word())
		}
		rest = rest[idx+2:]
	}
	return fmt.Sprintf(tpl, args...)
}

func (g *Generator) workBody() string {
	return fmt.Sprintf(`Hi Team,

A quick status update on the %s work.

Key points:
- The %s milestone is on track for this sprint.
- We still need sign-off on the %s budget.
- Please review the open action items before Friday.

Best regards,
%s
`, g.word(), g.word(), g.word(), g.name())
}

func (g *Generator) newsletterBody() string {
	var b strings.Builder
	b.WriteString("This week's highlights:\n\n")
	for i := 0; i < 3; i++ {
		fmt.Fprintf(&b, "* Deep dive into %s practices and what changed this quarter.\n", g.word())
	}
	b.WriteString("\n---\nUpdate preferences | View in browser\n")
	return b.String()
}

func (g *Generator) shoppingBody() string {
	return fmt.Sprintf(`Thank you for your order!

Order details:
- %s starter kit - %d PLN
- %s accessories - %d PLN

Estimated delivery: %s
`, g.word(), 50+g.rng.Intn(450), g.word(), 20+g.rng.Intn(200),
		time.Now().AddDate(0, 0, 2+g.rng.Intn(5)).Format("2006-01-02"))
}

func (g *Generator) socialBody() string {
	return fmt.Sprintf(`%s commented on your post about %s.

"Great writeup, thanks for sharing the details with everyone."

See more activity on your profile.
`, g.name(), g.word())
}

func (g *Generator) bankingBody() string {
	return fmt.Sprintf(`Dear Customer,

Transaction details:
Date: %s
Amount: %d PLN
Reference: %s
Status: Completed

If you did not make this transaction, please contact us immediately.
`, time.Now().Format(time.RFC1123), 10+g.rng.Intn(4990),
		strings.ToUpper(uuid.NewString()[:12]))
}

func (g *Generator) personalBody() string {
	return fmt.Sprintf(`Hey!

I was thinking about the %s plans we talked about and wanted to check
whether next weekend still works for you. %s mentioned joining too.

Talk soon,
%s
`, g.word(), g.name(), g.name())
}
