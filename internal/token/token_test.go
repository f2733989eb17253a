package token

import "testing"

func TestChars(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"abcd", 1},
		{"abcde", 2},
		{"hello world!", 3},
	}
	for _, tt := range tests {
		if got := Chars(tt.text); got != tt.want {
			t.Errorf("Chars(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}

func TestCharsPerToken(t *testing.T) {
	est := CharsPerToken(2)
	if got := est("abcd"); got != 2 {
		t.Errorf("expected 2, got %d", got)
	}

	// Non-positive ratio falls back to the default
	est = CharsPerToken(0)
	if got := est("abcd"); got != 1 {
		t.Errorf("expected 1, got %d", got)
	}
}

func TestCharsDeterministic(t *testing.T) {
	text := "the same input must always cost the same"
	if Chars(text) != Chars(text) {
		t.Error("estimator is not deterministic")
	}
}
