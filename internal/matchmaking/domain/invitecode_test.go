package domain

import "testing"

func TestNewInviteCodeFormat(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code, err := NewInviteCode()
		if err != nil {
			t.Fatalf("new invite code: %v", err)
		}
		if len(code) != InviteCodeLength {
			t.Fatalf("expected %d characters, got %d", InviteCodeLength, len(code))
		}
		if !ValidInviteCode(code) {
			t.Fatalf("generated code %q fails its own format check", code)
		}
		seen[code] = true
	}
	// 50 draws from a 36^6 space virtually never collide entirely.
	if len(seen) < 2 {
		t.Fatal("expected distinct codes across draws")
	}
}

func TestValidInviteCode(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"AB12CD", true},
		{"ZZZZZZ", true},
		{"ab12cd", false},
		{"AB12C", false},
		{"AB12CDE", false},
		{"AB 2CD", false},
		{"", false},
	}
	for _, tc := range tests {
		if got := ValidInviteCode(tc.code); got != tc.want {
			t.Fatalf("code %q: expected %v, got %v", tc.code, tc.want, got)
		}
	}
}
