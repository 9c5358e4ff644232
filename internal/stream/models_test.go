package stream

import (
	"strings"
	"testing"
)

func TestValidContentID(t *testing.T) {
	tests := []struct {
		name string
		id   string
		want bool
	}{
		{"lowercase", "dd1e67078381739d14beca697356ab76d49d1a2d", true},
		{"uppercase", "DD1E67078381739D14BECA697356AB76D49D1A2D", true},
		{"mixed_case", "Dd1E67078381739d14BECA697356ab76d49d1a2D", true},
		{"all_f", strings.Repeat("f", 40), true},
		{"empty", "", false},
		{"short", "abc123", false},
		{"39_chars", strings.Repeat("a", 39), false},
		{"41_chars", strings.Repeat("a", 41), false},
		{"non_hex", "gg1e67078381739d14beca697356ab76d49d1a2d", false},
		{"trailing_space", "dd1e67078381739d14beca697356ab76d49d1a2 ", false},
		{"multibyte", "é" + strings.Repeat("a", 38), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidContentID(tt.id); got != tt.want {
				t.Errorf("ValidContentID(%q) = %v, want %v", tt.id, got, tt.want)
			}
		})
	}
}

func TestNewSessionID_unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := newSessionID()
		if len(id) != 26 {
			t.Fatalf("unexpected id length %d: %q", len(id), id)
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}
