package phonetic_test

import (
	"testing"

	"github.com/MrWong99/voicenav/internal/transcript/phonetic"
)

func TestMatcher_SingleWordMatch(t *testing.T) {
	t.Parallel()

	m := phonetic.New()
	phrases := []string{"go to settings", "settings", "help"}

	phrase, conf, matched := m.Match("setings", phrases)
	if !matched {
		t.Fatalf("Match(%q, phrases): matched=false, want true", "setings")
	}
	if phrase != "settings" {
		t.Errorf("Match(%q): phrase=%q, want %q", "setings", phrase, "settings")
	}
	if conf < 0.8 {
		t.Errorf("Match(%q): confidence=%f, want >= 0.8", "setings", conf)
	}
}

func TestMatcher_MultiWordPhrase(t *testing.T) {
	t.Parallel()

	m := phonetic.New()
	phrases := []string{"repeat question", "read question", "next question"}

	// "red" and "read" share the Double Metaphone code RT.
	phrase, conf, matched := m.Match("red question", phrases)
	if !matched {
		t.Fatalf("Match(%q, phrases): matched=false, want true", "red question")
	}
	if phrase != "read question" {
		t.Errorf("Match(%q): phrase=%q, want %q", "red question", phrase, "read question")
	}
	if conf < 0.8 {
		t.Errorf("Match(%q): confidence=%f, want >= 0.8", "red question", conf)
	}
}

func TestMatcher_NoMatch(t *testing.T) {
	t.Parallel()

	m := phonetic.New()

	phrase, conf, matched := m.Match("hello", []string{"algebra", "exit"})
	if matched {
		t.Fatalf("Match(%q): matched=true (%q), want false", "hello", phrase)
	}
	if phrase != "" || conf != 0 {
		t.Errorf("Match(%q): got (%q, %f), want (\"\", 0)", "hello", phrase, conf)
	}
}

func TestMatcher_EmptyInputs(t *testing.T) {
	t.Parallel()

	m := phonetic.New()
	tests := []struct {
		name      string
		utterance string
		phrases   []string
	}{
		{"empty utterance", "", []string{"help"}},
		{"punctuation utterance", "?!", []string{"help"}},
		{"no phrases", "help", nil},
		{"blank phrases", "help", []string{"", "  "}},
		{"non-latin phrase", "help", []string{"مساعدة"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if phrase, _, matched := m.Match(tc.utterance, tc.phrases); matched {
				t.Errorf("matched %q, want no match", phrase)
			}
		})
	}
}

func TestMatcher_PhoneticThreshold(t *testing.T) {
	t.Parallel()

	m := phonetic.New(phonetic.WithPhoneticThreshold(0.999))

	// A covered phrase below the phonetic threshold is not retried against
	// the fuzzy threshold.
	if phrase, _, matched := m.Match("setings", []string{"settings"}); matched {
		t.Errorf("Match with strict threshold: matched %q, want no match", phrase)
	}
}

func TestMatcher_ExactPhrase(t *testing.T) {
	t.Parallel()

	m := phonetic.New(phonetic.WithFuzzyThreshold(0.95))

	phrase, conf, matched := m.Match("Algebra!", []string{"basic math", "algebra"})
	if !matched || phrase != "algebra" {
		t.Fatalf("Match: got (%q, %v), want algebra", phrase, matched)
	}
	if conf != 1 {
		t.Errorf("confidence=%f, want 1", conf)
	}
}
