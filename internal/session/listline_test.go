package session

import (
	"reflect"
	"testing"
)

func TestParseListLine(t *testing.T) {
	tests := []struct {
		name string
		line string
		want ListEntry
	}{
		{
			name: "quoted name with attributes",
			line: `(\HasNoChildren) "/" "INBOX"`,
			want: ListEntry{Attrs: []string{`\HasNoChildren`}, Delim: "/", Mailbox: "INBOX"},
		},
		{
			name: "nested folder",
			line: `(\HasChildren \Noselect) "." "Archive.2024"`,
			want: ListEntry{Attrs: []string{`\HasChildren`, `\Noselect`}, Delim: ".", Mailbox: "Archive.2024"},
		},
		{
			name: "nil delimiter",
			line: `() NIL "Flat Mailbox"`,
			want: ListEntry{Delim: "", Mailbox: "Flat Mailbox"},
		},
		{
			name: "unquoted atom name",
			line: `(\Unmarked) "/" INBOX`,
			want: ListEntry{Attrs: []string{`\Unmarked`}, Delim: "/", Mailbox: "INBOX"},
		},
		{
			name: "escaped quote in name",
			line: `() "/" "Say \"Hi\""`,
			want: ListEntry{Delim: "/", Mailbox: `Say "Hi"`},
		},
		{
			name: "escaped backslash in name",
			line: `() "/" "Back\\slash"`,
			want: ListEntry{Delim: "/", Mailbox: `Back\slash`},
		},
		{
			name: "name with delimiter characters",
			line: `() "/" "Projects/2024/Q1"`,
			want: ListEntry{Delim: "/", Mailbox: "Projects/2024/Q1"},
		},
		{
			name: "empty attribute list",
			line: `() "/" "Sent"`,
			want: ListEntry{Delim: "/", Mailbox: "Sent"},
		},
		{
			name: "malformed falls back",
			line: `garbage with no parens`,
			want: ListEntry{Delim: "/"},
		},
		{
			name: "unterminated attribute list falls back",
			line: `(\HasNoChildren "/" "INBOX"`,
			want: ListEntry{Delim: "/"},
		},
		{
			name: "unterminated quoted name keeps attrs and delim",
			line: `(\Marked) "/" "Broken`,
			want: ListEntry{Attrs: []string{`\Marked`}, Delim: "/"},
		},
		{
			name: "missing delimiter keeps attrs",
			line: `(\Marked)`,
			want: ListEntry{Attrs: []string{`\Marked`}, Delim: "/"},
		},
		{
			name: "empty line falls back",
			line: "",
			want: ListEntry{Delim: "/"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseListLine(tt.line)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseListLine(%q) = %+v, want %+v", tt.line, got, tt.want)
			}
		})
	}
}

func TestListPayload(t *testing.T) {
	payload, ok := listPayload(`* LIST (\HasNoChildren) "/" "INBOX"`)
	if !ok {
		t.Fatal("expected LIST line to be recognized")
	}
	if payload != `(\HasNoChildren) "/" "INBOX"` {
		t.Errorf("unexpected payload: %q", payload)
	}

	if _, ok := listPayload(`* OK [CAPABILITY IMAP4rev1] ready`); ok {
		t.Error("non-LIST line should not be recognized")
	}
}
