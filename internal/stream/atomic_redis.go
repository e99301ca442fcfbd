package stream

import (
	"context"

	"github.com/goccy/go-json"

	"github.com/redis/go-redis/v9"
)

// StreamLeaseEvents is the default stream that records node lease changes.
const StreamLeaseEvents = "atomicid:lease-events"

// RedisStream appends JSON payloads to capped Redis streams.
type RedisStream struct {
	client *redis.Client
	maxLen int64
}

// NewRedisStream trims each stream to roughly maxLen entries; 0 keeps all.
func NewRedisStream(client *redis.Client, maxLen int64) *RedisStream {
	return &RedisStream{
		client: client,
		maxLen: maxLen,
	}
}

func (s *RedisStream) Publish(ctx context.Context, stream string, data any) (string, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return "", err
	}

	return s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: s.maxLen,
		Approx: s.maxLen > 0,
		Values: map[string]any{"data": jsonData},
	}).Result()
}

// Recent returns up to n payloads, newest first.
func (s *RedisStream) Recent(ctx context.Context, stream string, n int64) ([][]byte, error) {
	msgs, err := s.client.XRevRangeN(ctx, stream, "+", "-", n).Result()
	if err != nil {
		return nil, err
	}

	out := make([][]byte, 0, len(msgs))
	for _, msg := range msgs {
		data, ok := msg.Values["data"].(string)
		if !ok {
			continue
		}
		out = append(out, []byte(data))
	}
	return out, nil
}
