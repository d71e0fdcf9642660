package session

import (
	"strings"
)

// ParseListLine parses the payload of an IMAP LIST response line of the
// form `(\Attr1 \Attr2) "/" "Folder Name"`. The delimiter may be NIL on
// servers with flat namespaces, and unquoted atom names are accepted.
// Malformed input never fails: the parser degrades to no attributes, a
// "/" delimiter, and an empty mailbox name, which callers treat as
// "skip this entry". Used by the protocol trace writer and as the
// delimiter-discovery fallback when a server's typed LIST data is
// unusable.
func ParseListLine(line string) ListEntry {
	fallback := ListEntry{Delim: "/"}

	rest := strings.TrimSpace(line)
	if !strings.HasPrefix(rest, "(") {
		return fallback
	}
	end := strings.IndexByte(rest, ')')
	if end < 0 {
		return fallback
	}

	var attrs []string
	for _, f := range strings.Fields(rest[1:end]) {
		attrs = append(attrs, f)
	}

	rest = strings.TrimSpace(rest[end+1:])

	delim, rest, ok := parseDelim(rest)
	if !ok {
		fallback.Attrs = attrs
		return fallback
	}

	name, ok := parseMailboxName(strings.TrimSpace(rest))
	if !ok {
		return ListEntry{Attrs: attrs, Delim: delim}
	}

	return ListEntry{Attrs: attrs, Delim: delim, Mailbox: name}
}

// parseDelim consumes a quoted single-character delimiter or the NIL
// atom and returns the remainder of the line.
func parseDelim(s string) (delim, rest string, ok bool) {
	if strings.HasPrefix(s, "NIL") {
		return "", s[len("NIL"):], true
	}
	if len(s) >= 3 && s[0] == '"' && s[2] == '"' {
		return string(s[1]), s[3:], true
	}
	return "", s, false
}

// parseMailboxName consumes a quoted string (with backslash escapes) or
// a bare atom running to end of line.
func parseMailboxName(s string) (string, bool) {
	if s == "" {
		return "", false
	}
	if s[0] != '"' {
		return s, true
	}

	var b strings.Builder
	escaped := false
	for i := 1; i < len(s); i++ {
		c := s[i]
		if escaped {
			b.WriteByte(c)
			escaped = false
			continue
		}
		switch c {
		case '\\':
			escaped = true
		case '"':
			return b.String(), true
		default:
			b.WriteByte(c)
		}
	}
	// Unterminated quote.
	return "", false
}
