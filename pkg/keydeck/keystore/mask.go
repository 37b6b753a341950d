package keystore

import "strings"

const (
	maskBullets = "••••••••"
	// minVisible is the shortest input that still gets a visible suffix.
	minVisible = 4
)

// Mask produces a display-safe form of a secret, revealing at most its
// last four characters. Well-formed secrets (three or more underscore
// segments, like sk_test_xxx) keep their prefix segments for recognition;
// anything else degrades to a bare masked suffix or, for very short
// input, a full mask. Mask never fails on malformed input.
func Mask(secret string) string {
	runes := []rune(secret)
	if len(runes) < minVisible {
		return maskBullets
	}
	last4 := string(runes[len(runes)-4:])

	parts := strings.Split(secret, "_")
	if len(parts) >= 3 {
		return parts[0] + "_" + parts[1] + "_" + maskBullets + last4
	}
	return maskBullets + last4
}
