package invite

import (
	"strings"
	"testing"
)

func TestNewCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code, err := NewCode()
		if err != nil {
			t.Fatalf("NewCode: %v", err)
		}
		if len(code) != CodeLength {
			t.Fatalf("expected %d characters, got %q", CodeLength, code)
		}
		if code != strings.ToUpper(code) {
			t.Fatalf("code must be uppercase: %q", code)
		}
		for _, c := range code {
			if !strings.ContainsRune(alphabet, c) {
				t.Fatalf("unexpected character %q in %q", c, code)
			}
		}
		seen[code] = true
	}
	// 100 draws from 36^6 should essentially never collide into one value
	if len(seen) < 2 {
		t.Fatal("codes are not random")
	}
}
