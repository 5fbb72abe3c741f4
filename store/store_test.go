package store

import (
	"strings"
	"testing"
)

func TestRandomTokenShape(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		token := randomToken(8)
		if len(token) != 8 {
			t.Fatalf("token %q has length %d, want 8", token, len(token))
		}
		for _, r := range token {
			if !strings.ContainsRune(string(tokenAlphabet), r) {
				t.Fatalf("token %q contains %q outside the alphabet", token, r)
			}
		}
		seen[token] = true
	}
	if len(seen) < 2 {
		t.Error("tokens should vary across calls")
	}
}

func TestAtoiOrZero(t *testing.T) {
	tests := []struct {
		input string
		want  int
	}{
		{"30", 30},
		{"-5", -5},
		{"0", 0},
		{"", 0},
		{"abc", 0},
	}
	for _, tt := range tests {
		if got := atoiOrZero(tt.input); got != tt.want {
			t.Errorf("atoiOrZero(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}
