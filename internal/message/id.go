package message

import (
	"crypto/rand"
	"fmt"
	"regexp"
	"time"
)

const idAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// IDPattern is the regex every stored message id must satisfy (spec §8
// property 5).
var IDPattern = regexp.MustCompile(`^msg-\d{8}T\d{6}-[a-z0-9]{6}$`)

// newID builds a msg-YYYYMMDDThhmmss-<6 lowercase alphanum> identifier
// from the given instant. Collisions within a second are handled by the
// caller retrying with a fresh suffix (spec §4.I).
func newID(at time.Time) (string, error) {
	suffix, err := randomSuffix(6)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("msg-%sT%s-%s", at.UTC().Format("20060102"), at.UTC().Format("150405"), suffix), nil
}

func randomSuffix(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	out := make([]byte, n)
	for i, b := range buf {
		out[i] = idAlphabet[int(b)%len(idAlphabet)]
	}
	return string(out), nil
}
