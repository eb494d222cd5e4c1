package events

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"
)

func TestRecord(t *testing.T) {
	ts := time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)
	ev := NewSubscriberCreated("cv37rs3pp9olc6atsptg", "new@example.com", ts)

	rec, err := record(ev)
	require.NoError(t, err)

	assert.Equal(t, "cv37rs3pp9olc6atsptg", string(rec.Key))
	require.Len(t, rec.Headers, 2)
	assert.Equal(t, "type", rec.Headers[0].Key)
	assert.Equal(t, EventSubscriberCreated, string(rec.Headers[0].Value))
	assert.Equal(t, "1", string(rec.Headers[1].Value))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Value, &body))
	assert.Equal(t, "subscriber.created", body["event"])
	assert.Equal(t, "new@example.com", body["email"])
	assert.Equal(t, "2026-10-15T09:30:00Z", body["ts"])
}

func TestNewKafkaPublisher_Validation(t *testing.T) {
	_, err := NewKafkaPublisher(nil, "subscribers.created", discardLogger())
	assert.Error(t, err)

	_, err = NewKafkaPublisher([]string{"localhost:9092"}, "", discardLogger())
	assert.Error(t, err)
}

// syncBuffer lets the produce callback goroutine and the test share a log.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestKafkaPublisher_UnreachableBrokerDoesNotBlock(t *testing.T) {
	var logs syncBuffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	// Nothing listens on this port.
	p, err := NewKafkaPublisher([]string{"127.0.0.1:1"}, "subscribers.created", logger,
		kgo.RecordDeliveryTimeout(200*time.Millisecond))
	require.NoError(t, err)
	p.flushTimeout = 100 * time.Millisecond

	// A cancelled caller context must not matter either.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err = p.Publish(ctx, NewSubscriberCreated("cv37rs3pp9olc6atsptg", "a@b.co", time.Now()))
	assert.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second, "Publish must only buffer")

	start = time.Now()
	p.Close()
	assert.Less(t, time.Since(start), 5*time.Second, "Close is bounded by the flush timeout")

	assert.Eventually(t, func() bool {
		return strings.Contains(logs.String(), "failed to deliver subscriber event")
	}, 5*time.Second, 20*time.Millisecond)
	assert.Contains(t, logs.String(), "cv37rs3pp9olc6atsptg")
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	assert.NoError(t, p.Publish(context.Background(), SubscriberCreated{}))
	p.Close()
}
