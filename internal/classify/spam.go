// Package classify holds the message filters: heuristic spam detection,
// cross-folder spam similarity, short-content rejection, and the active
// conversation index built from Sent and Drafts.
package classify

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/mailgroom/mailgroom/internal/mailbox"
)

// strongSpamPatterns short-circuit: one hit anywhere in the lowercased
// subject+body marks the message as spam outright.
var strongSpamPatterns = []*regexp.Regexp{
	regexp.MustCompile(`viagra|cialis|pharmacy`),
	regexp.MustCompile(`winner|congratulations|you won`),
	regexp.MustCompile(`click here now|act now|limited time`),
	regexp.MustCompile(`100% free|risk free|satisfaction guaranteed`),
	regexp.MustCompile(`make money fast|earn extra cash`),
	regexp.MustCompile(`nigerian prince|inheritance|lottery`),
	regexp.MustCompile(`unsubscribe|opt-out`),
	regexp.MustCompile(`dear friend|dear sir/madam`),
	regexp.MustCompile(`!!!|₹|\$\$\$`),
}

// suspiciousTLDs are domain endings that add one point to the soft
// spam score.
var suspiciousTLDs = []string{
	".xyz", ".top", ".club", ".work", ".click", ".link",
	".pw", ".gq", ".tk", ".ml", ".info",
}

// IsSpam applies the heuristic spam filter. Strong content patterns
// decide immediately; otherwise soft signals (shouty subject, throwaway
// TLD, machine-generated local part) accumulate and two or more points
// mean spam.
func IsSpam(msg *mailbox.Message) bool {
	text := strings.ToLower(msg.Subject + " " + msg.Body())
	for _, pat := range strongSpamPatterns {
		if pat.MatchString(text) {
			return true
		}
	}

	score := 0

	if subjectIsShouty(msg.Subject) {
		score++
	}

	if addr := msg.FromAddress; addr != "" {
		if at := strings.LastIndex(addr, "@"); at > 0 {
			local, domain := addr[:at], addr[at+1:]

			for _, tld := range suspiciousTLDs {
				if strings.HasSuffix(domain, tld) {
					score++
					break
				}
			}

			digits := 0
			for _, r := range local {
				if unicode.IsDigit(r) {
					digits++
				}
			}
			if len(local) >= 8 && float64(digits)/float64(len(local)) > 0.5 {
				score++
			}

			vowels := 0
			for _, r := range local {
				switch r {
				case 'a', 'e', 'i', 'o', 'u':
					vowels++
				}
			}
			if len(local) >= 10 && vowels <= 1 {
				score++
			}
		}
	}

	return score >= 2
}

// subjectIsShouty reports whether a subject of five or more characters
// is over 70% uppercase.
func subjectIsShouty(subject string) bool {
	runes := []rune(subject)
	if len(runes) < 5 {
		return false
	}
	upper := 0
	for _, r := range runes {
		if unicode.IsUpper(r) {
			upper++
		}
	}
	return float64(upper)/float64(len(runes)) > 0.7
}
