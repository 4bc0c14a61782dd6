package textmatch_test

import (
	"slices"
	"testing"

	"github.com/MrWong99/voicenav/pkg/textmatch"
)

func TestNormalizeText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"punctuation and case", "  Hello, WORLD!! ", "hello world"},
		{"empty", "", ""},
		{"whitespace only", " \t\n ", ""},
		{"diacritics", "Café Déjà Vu", "cafe deja vu"},
		{"ligature", "ﬁne", "fine"},
		{"apostrophe splits", "it's 2 o'clock", "it s 2 o clock"},
		{"control whitespace", "Tab\tand\nnewline", "tab and newline"},
		{"non-latin script", "لوحة القيادة", ""},
		{"mixed script", "go لوحة back", "go back"},
		{"digits kept", "Option 3", "option 3"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := textmatch.NormalizeText(tc.in); got != tc.want {
				t.Errorf("NormalizeText(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestNormalizeText_Idempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"  Hello, WORLD!! ",
		"Café au lait",
		"ﬁne ℌello",
		"لوحة القيادة",
		"\x00\xff broken utf8 \xfe",
		"Go To   DASHBOARD, please!",
	}
	for _, in := range inputs {
		once := textmatch.NormalizeText(in)
		twice := textmatch.NormalizeText(once)
		if once != twice {
			t.Errorf("NormalizeText not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestTokenize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want []string
	}{
		{"", []string{}},
		{"   ", []string{}},
		{"  go   to Dashboard ", []string{"go", "to", "dashboard"}},
		{"next-question", []string{"next", "question"}},
	}

	for _, tc := range tests {
		got := textmatch.Tokenize(tc.in)
		if got == nil {
			t.Errorf("Tokenize(%q) returned nil, want non-nil slice", tc.in)
		}
		if !slices.Equal(got, tc.want) {
			t.Errorf("Tokenize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
