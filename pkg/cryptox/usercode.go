package cryptox

import (
	"crypto/rand"
	"fmt"
)

// UserCodeAlphabet excludes the glyphs I, O, 0 and 1, which are too easy to
// misread when a user copies the code from a TV screen onto a phone.
const UserCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const userCodeGroupLen = 4

// GenerateUserCode produces a human-enterable device-flow user code in the
// form XXXX-XXXX drawn from UserCodeAlphabet.
func GenerateUserCode() (string, error) {
	buf := make([]byte, userCodeGroupLen*2)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate user code: %w", err)
	}

	code := make([]byte, 0, userCodeGroupLen*2+1)
	for i, b := range buf {
		if i == userCodeGroupLen {
			code = append(code, '-')
		}
		code = append(code, UserCodeAlphabet[int(b)%len(UserCodeAlphabet)])
	}
	return string(code), nil
}
