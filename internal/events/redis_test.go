package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedisClient(t *testing.T) *redis.Client {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run() error = %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() {
		_ = rdb.Close()
	})

	return rdb
}

func TestRedisPublisherEnvelope(t *testing.T) {
	t.Parallel()

	rdb := newTestRedisClient(t)

	sub := rdb.Subscribe(context.Background(), "test:events")
	t.Cleanup(func() { _ = sub.Close() })
	if _, err := sub.Receive(context.Background()); err != nil {
		t.Fatalf("subscribe handshake error = %v", err)
	}

	publisher := NewRedisPublisher(rdb, "test:events", nil)
	publisher.Notify(context.Background(), KindBulkProgress, BulkProgressPayload{
		Current:      2,
		Total:        5,
		SuccessCount: 1,
		FailureCount: 1,
	})

	select {
	case msg := <-sub.Channel():
		var parsed struct {
			Event   string              `json:"event"`
			Payload BulkProgressPayload `json:"payload"`
		}
		if err := json.Unmarshal([]byte(msg.Payload), &parsed); err != nil {
			t.Fatalf("json unmarshal error = %v", err)
		}
		if parsed.Event != string(KindBulkProgress) {
			t.Fatalf("event = %q, want %q", parsed.Event, KindBulkProgress)
		}
		if parsed.Payload.Current != 2 || parsed.Payload.Total != 5 {
			t.Fatalf("payload = %+v", parsed.Payload)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("published event did not arrive")
	}
}

func TestRedisPublisherSwallowsFailures(t *testing.T) {
	t.Parallel()

	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	t.Cleanup(func() { _ = rdb.Close() })

	publisher := NewRedisPublisher(rdb, "test:events", nil)
	// Must not panic or block past its timeout when Redis is unreachable.
	publisher.Notify(context.Background(), KindError, ErrorPayload{Message: "boom"})
}

func TestRedisPublisherNilClient(t *testing.T) {
	t.Parallel()

	publisher := NewRedisPublisher(nil, "test:events", nil)
	publisher.Notify(context.Background(), KindNewMessage, MessagePayload{ID: "m-1"})
}
