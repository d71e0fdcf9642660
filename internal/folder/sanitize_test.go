package folder

import "testing"

func TestSanitizeSegment(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		delim string
		want  string
	}{
		{"plain ascii", "Invoices", "/", "Invoices"},
		{"spaces become underscores", "Project Updates", "/", "Project_Updates"},
		// ż and ó decompose to base letters; ł has no decomposition
		// and is dropped outright.
		{"accents stripped", "Zażółć gęślą jaźń", "/", "Zazoc_gesla_jazn"},
		{"diacritics simple", "Café Résumé", "/", "Cafe_Resume"},
		{"disallowed chars", "a/b:c*d", "/", "a_b_c_d"},
		{"delimiter neutralized", "Work.Stuff", ".", "Work_Stuff"},
		{"underscore runs collapse", "a___b", "/", "a_b"},
		{"leading trailing stripped", "__hello__", "/", "hello"},
		{"empty input", "", "/", "Category"},
		// ą/ę/ó decompose to base letters plus a combining mark, so
		// only the mark is dropped.
		{"ogonek and acute stripped", "ąęó", "/", "aeo"},
		// CJK has no decomposition to ASCII at all.
		{"all stripped falls back", "日本語", "/", "Category"},
		{"emoji dropped", "Deals \U0001F4B0 2024", "/", "Deals_2024"},
		{"no delimiter given", "a/b", "", "a_b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeSegment(tt.in, tt.delim); got != tt.want {
				t.Errorf("SanitizeSegment(%q, %q) = %q, want %q", tt.in, tt.delim, got, tt.want)
			}
		})
	}
}

func TestSanitizeSegmentIdempotent(t *testing.T) {
	inputs := []string{"Zażółć gęślą", "Project Updates", "a/b:c", "", "Café.2024"}
	for _, in := range inputs {
		for _, delim := range []string{"/", "."} {
			once := SanitizeSegment(in, delim)
			twice := SanitizeSegment(once, delim)
			if once != twice {
				t.Errorf("not idempotent for %q delim %q: %q -> %q", in, delim, once, twice)
			}
		}
	}
}

func TestIsSafeSegment(t *testing.T) {
	safe := []string{"Category_Work", "a.b-c_d", "X1"}
	for _, s := range safe {
		if !IsSafeSegment(s) {
			t.Errorf("IsSafeSegment(%q) = false, want true", s)
		}
	}
	unsafe := []string{"", "has space", "ąę", "a/b", "quote\"d"}
	for _, s := range unsafe {
		if IsSafeSegment(s) {
			t.Errorf("IsSafeSegment(%q) = true, want false", s)
		}
	}
}
