package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fieldops/intervention-service/internal/domain"
)

type fakePublisher struct {
	mu       sync.Mutex
	channels []string
	bodies   [][]byte
	err      error
}

func (p *fakePublisher) Publish(_ context.Context, channel string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.channels = append(p.channels, channel)
	p.bodies = append(p.bodies, payload)
	return p.err
}

func TestInMemoryDispatcher_Publish(t *testing.T) {
	t.Parallel()

	d := NewInMemoryDispatcher(zap.NewNop())
	var got []EventType
	d.Subscribe(EventPartRecorded, func(_ context.Context, e Event) error {
		got = append(got, e.Type)
		return errors.New("handler failed")
	})
	d.Subscribe(EventPartRecorded, func(_ context.Context, e Event) error {
		got = append(got, e.Type)
		return nil
	})

	require.NoError(t, d.Publish(context.Background(), Event{Type: EventPartRecorded}))
	require.NoError(t, d.Publish(context.Background(), Event{Type: EventPartRemoved}))
	assert.Equal(t, []EventType{EventPartRecorded, EventPartRecorded}, got)
}

func TestMirrorToChannel(t *testing.T) {
	t.Parallel()

	d := NewInMemoryDispatcher(nil)
	pub := &fakePublisher{}
	MirrorToChannel(d, pub, "interventions.events")

	ticketID := gofakeit.UUID()
	err := d.Publish(context.Background(), Event{
		ID:       gofakeit.UUID(),
		Type:     EventInterventionStateChanged,
		TicketID: ticketID,
		Payload: StateChangedPayload{
			OldState: domain.StateAssigned,
			NewState: domain.StateInProgress,
		},
	})
	require.NoError(t, err)

	require.Len(t, pub.bodies, 1)
	assert.Equal(t, "interventions.events", pub.channels[0])

	var decoded struct {
		Type     string `json:"type"`
		TicketID string `json:"ticket_id"`
		Payload  struct {
			NewState string `json:"new_state"`
		} `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(pub.bodies[0], &decoded))
	assert.Equal(t, string(EventInterventionStateChanged), decoded.Type)
	assert.Equal(t, ticketID, decoded.TicketID)
	assert.Equal(t, string(domain.StateInProgress), decoded.Payload.NewState)
}

func TestMirrorToChannel_PublisherFailureDoesNotReachCaller(t *testing.T) {
	t.Parallel()

	d := NewInMemoryDispatcher(zap.NewNop())
	MirrorToChannel(d, &fakePublisher{err: errors.New("redis unavailable")}, "interventions.events")

	assert.NoError(t, d.Publish(context.Background(), Event{Type: EventInvoiceGenerated}))
}
