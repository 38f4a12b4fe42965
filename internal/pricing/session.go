package pricing

import (
	"crypto/rand"
	"fmt"
	"time"
)

const (
	sessionPrefix    = "UMS"
	randomTokenChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// NewSessionID returns a checkout session identifier: a fixed prefix, the
// millisecond timestamp, and an 8 character random suffix. The suffix keeps
// concurrent checkouts distinct even when the clock cannot separate them;
// collisions are astronomically unlikely rather than impossible, the same
// contract a UUID offers.
func NewSessionID(now time.Time) string {
	return fmt.Sprintf("%s-%d-%s", sessionPrefix, now.UnixMilli(), randomToken(8))
}

// PaymentReference derives the gateway transaction reference for one vendor
// group inside a session. The group's position and a timestamp make each
// reference distinct while keeping it traceable to the parent session.
func PaymentReference(sessionID string, groupIndex int, now time.Time) string {
	return fmt.Sprintf("%s-%d-%d", sessionID, groupIndex, now.UnixMilli())
}

func randomToken(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		// Reference uniqueness depends on the system CSPRNG.
		panic(fmt.Errorf("pricing: read random bytes: %w", err))
	}
	for i, b := range buf {
		buf[i] = randomTokenChars[int(b)%len(randomTokenChars)]
	}
	return string(buf)
}
