package domain

import (
	"crypto/rand"
	"fmt"
	"regexp"
)

// InviteCodeLength is the fixed length of shareable invite codes.
const InviteCodeLength = 6

// inviteCodeAlphabet omits nothing: codes are plain uppercase alphanumerics
// so they survive being read aloud or typed from a screenshot.
const inviteCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

var inviteCodePattern = regexp.MustCompile(`^[A-Z0-9]{6}$`)

// NewInviteCode generates a short shareable code from a random base.
// Codes are not globally unique across time; the store enforces uniqueness
// only among currently-waiting sessions.
func NewInviteCode() (string, error) {
	buf := make([]byte, InviteCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	for i, b := range buf {
		buf[i] = inviteCodeAlphabet[int(b)%len(inviteCodeAlphabet)]
	}
	return string(buf), nil
}

// ValidInviteCode reports whether a candidate matches the invite code format.
func ValidInviteCode(code string) bool {
	return inviteCodePattern.MatchString(code)
}
