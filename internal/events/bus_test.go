package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/unimart-ng/backend-unimart/internal/store"
)

type memStore struct {
	events []store.DomainEvent
	err    error
}

func (m *memStore) InsertEvent(_ context.Context, ev store.DomainEvent) (uuid.UUID, error) {
	if m.err != nil {
		return uuid.Nil, m.err
	}
	id := uuid.New()
	ev.ID = id
	m.events = append(m.events, ev)
	return id, nil
}

type recordingNotifier struct {
	seen []store.DomainEvent
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, ev store.DomainEvent) error {
	n.seen = append(n.seen, ev)
	return n.err
}

func TestEmitPersistsAndNotifies(t *testing.T) {
	st := &memStore{}
	notifier := &recordingNotifier{}
	fixed := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	bus := &Bus{Store: st, Notifiers: []Notifier{notifier}, Now: func() time.Time { return fixed }}

	ev, err := bus.Emit(context.Background(), TopicCheckoutCreated, "UMS-1", map[string]any{"total": 5500})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, ev.ID)
	require.Equal(t, TopicCheckoutCreated, ev.Topic)
	require.Equal(t, fixed, ev.OccurredAt)
	require.Len(t, st.events, 1)
	require.Len(t, notifier.seen, 1)
	require.JSONEq(t, `{"total":5500}`, string(notifier.seen[0].Payload))
}

func TestEmitRejectsMissingTopicAndAggregate(t *testing.T) {
	bus := &Bus{Store: &memStore{}}
	_, err := bus.Emit(context.Background(), "  ", "UMS-1", nil)
	require.Error(t, err)
	_, err = bus.Emit(context.Background(), TopicOrderPaid, "", nil)
	require.Error(t, err)
}

func TestEmitSurvivesNotifierFailure(t *testing.T) {
	st := &memStore{}
	bad := &recordingNotifier{err: errors.New("boom")}
	bus := &Bus{Store: st, Notifiers: []Notifier{bad}}

	_, err := bus.Emit(context.Background(), TopicPaymentFailed, "ref-1", []byte(`{"reason":"declined"}`))
	require.Error(t, err)
	require.Len(t, st.events, 1, "event must persist even when fan-out fails")
}

func TestEmitRejectsInvalidJSONPayload(t *testing.T) {
	bus := &Bus{Store: &memStore{}}
	_, err := bus.Emit(context.Background(), TopicOrderPaid, "ref-1", []byte("{not json"))
	require.Error(t, err)
}
