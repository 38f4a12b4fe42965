package pricing

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewSessionIDDistinctAcrossCalls(t *testing.T) {
	// The clock is frozen, so distinctness rests entirely on the random
	// suffix, the worst case for concurrent checkouts.
	seen := make(map[string]struct{}, 10_000)
	for i := 0; i < 10_000; i++ {
		id := NewSessionID(testNow)
		_, dup := seen[id]
		require.False(t, dup, "duplicate session id %q after %d calls", id, i)
		seen[id] = struct{}{}
	}
}

func TestNewSessionIDShape(t *testing.T) {
	id := NewSessionID(testNow)
	prefix := "UMS-1741608000000-"
	require.True(t, strings.HasPrefix(id, prefix), "got %q", id)
	require.Len(t, id, len(prefix)+8, "suffix must be 8 characters")
}

func TestPaymentReferenceDistinctPerGroup(t *testing.T) {
	sessionID := NewSessionID(testNow)
	seen := make(map[string]struct{})
	for group := 0; group < 10; group++ {
		ref := PaymentReference(sessionID, group, testNow)
		require.True(t, strings.HasPrefix(ref, sessionID+"-"), "reference must trace back to its session")
		_, dup := seen[ref]
		require.False(t, dup, "groups of one session must not share a reference")
		seen[ref] = struct{}{}
	}
}
