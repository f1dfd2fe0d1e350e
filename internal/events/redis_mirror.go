package events

import (
	"context"
	"encoding/json"
)

// Publisher is the pub/sub capability the mirror needs; persistence.Redis satisfies it.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// MirrorToChannel forwards every event to a pub/sub channel as JSON.
func MirrorToChannel(d Dispatcher, pub Publisher, channel string) {
	if d == nil || pub == nil || channel == "" {
		return
	}
	forward := func(ctx context.Context, event Event) error {
		body, err := json.Marshal(event)
		if err != nil {
			return err
		}
		return pub.Publish(ctx, channel, body)
	}
	for _, t := range AllTypes {
		d.Subscribe(t, forward)
	}
}
