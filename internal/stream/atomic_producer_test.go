package stream

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	stream string
	events []*LeaseEvent
	err    error
}

func (r *recorder) Publish(_ context.Context, stream string, data any) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	r.stream = stream
	r.events = append(r.events, data.(*LeaseEvent))
	return "1-0", nil
}

func TestProducer_PublishLease(t *testing.T) {
	rec := &recorder{}
	p := NewProducer(rec, "", "host-1/abc")

	id, err := p.PublishLease(context.Background(), EventNodeAcquired, 7, "")
	require.NoError(t, err)
	assert.Equal(t, "1-0", id)
	assert.Equal(t, StreamLeaseEvents, rec.stream)

	require.Len(t, rec.events, 1)
	ev := rec.events[0]
	assert.Equal(t, EventNodeAcquired, ev.Type)
	assert.Equal(t, 7, ev.Node)
	assert.Equal(t, "host-1/abc", ev.Instance)
	assert.NotEmpty(t, ev.ID)
	assert.False(t, ev.CreatedAt.IsZero())
}

func TestProducer_PublishError(t *testing.T) {
	rec := &recorder{err: errors.New("down")}
	p := NewProducer(rec, "custom", "x")

	_, err := p.PublishLease(context.Background(), EventNodeLost, 3, "renew failed")
	assert.EqualError(t, err, "down")
}
