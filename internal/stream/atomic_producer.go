// Package stream publishes node lease changes to a Redis stream so operators
// can audit which instance held which node id and when.
package stream

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	EventNodeAcquired = "node.acquired"
	EventNodeLost     = "node.lost"
	EventNodeReleased = "node.released"
)

// Publisher appends a payload to a named stream.
type Publisher interface {
	Publish(ctx context.Context, stream string, data any) (string, error)
}

type Producer struct {
	pub      Publisher
	stream   string
	instance string
}

func NewProducer(pub Publisher, stream, instance string) *Producer {
	if stream == "" {
		stream = StreamLeaseEvents
	}
	return &Producer{pub: pub, stream: stream, instance: instance}
}

type LeaseEvent struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Node      int       `json:"node"`
	Instance  string    `json:"instance"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (p *Producer) PublishLease(ctx context.Context, typ string, node int, reason string) (string, error) {
	event := &LeaseEvent{
		ID:        uuid.New().String(),
		Type:      typ,
		Node:      node,
		Instance:  p.instance,
		Reason:    reason,
		CreatedAt: time.Now().UTC(),
	}
	return p.pub.Publish(ctx, p.stream, event)
}
