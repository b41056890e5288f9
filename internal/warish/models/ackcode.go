package models

import (
	"crypto/rand"
	"fmt"
	"time"
)

// ackAlphabet omits characters that are easy to misread (0/O, 1/I/L).
const ackAlphabet = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"

const ackRandomLength = 8

// NewAckCode returns a public acknowledgment code such as WAR-2025-7K3M9QXD.
// Uniqueness is enforced by the store; callers regenerate on collision.
func NewAckCode(now time.Time) (string, error) {
	buf := make([]byte, ackRandomLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate acknowledgment code: %w", err)
	}
	out := make([]byte, ackRandomLength)
	for i, b := range buf {
		out[i] = ackAlphabet[int(b)%len(ackAlphabet)]
	}
	return fmt.Sprintf("WAR-%d-%s", now.Year(), out), nil
}
