package classify

import (
	"strings"

	"github.com/mailgroom/mailgroom/internal/mailbox"
)

// HasSufficientText reports whether a message carries enough text for
// similarity comparisons to mean anything. Messages below both the
// character and the token floor get skipped by the organizer rather
// than force-clustered on noise.
func HasSufficientText(msg *mailbox.Message, minChars, minTokens int) bool {
	text := strings.TrimSpace(msg.Content())
	if text == "" {
		return false
	}
	if len(text) < minChars {
		return false
	}
	return len(strings.Fields(text)) >= minTokens
}
