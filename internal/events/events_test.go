package events

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/palmrest/internal/logging"
)

func TestEvent_JSON(t *testing.T) {
	ev := Event{
		Kind:      RestEnded,
		StreamID:  "abc",
		Seconds:   42,
		Timestamp: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}

	data, err := json.Marshal(ev)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "ended", got["event"])
	assert.Equal(t, "abc", got["stream_id"])
	assert.Equal(t, float64(42), got["duration_s"])
	assert.Equal(t, "2024-03-01T09:00:00Z", got["timestamp"])
}

func TestRecorder(t *testing.T) {
	r := NewRecorder(1)

	require.NoError(t, r.Publish(context.Background(), Event{Kind: RestStarted}))
	require.NoError(t, r.Publish(context.Background(), Event{Kind: RestEnded}), "full buffer drops silently")

	ev := <-r.Events()
	assert.Equal(t, RestStarted, ev.Kind)
	select {
	case extra := <-r.Events():
		t.Errorf("unexpected extra event %+v", extra)
	default:
	}
}

func TestNop(t *testing.T) {
	var p Publisher = Nop{}
	assert.NoError(t, p.Publish(context.Background(), Event{}))
	assert.NoError(t, p.Close())
}

func TestMQTTConfig_Topic(t *testing.T) {
	assert.Equal(t, "palmrest/rest", MQTTConfig{TopicPrefix: "palmrest"}.Topic())
	assert.Equal(t, "home/desk/rest", MQTTConfig{TopicPrefix: "home/desk/"}.Topic())
}

func TestMQTTPublisher_GeneratesClientID(t *testing.T) {
	p := NewMQTTPublisher(MQTTConfig{Broker: "localhost:1883"}, logging.Discard())

	assert.True(t, strings.HasPrefix(p.cfg.ClientID, "palmrest-"))

	other := NewMQTTPublisher(MQTTConfig{Broker: "localhost:1883"}, logging.Discard())
	assert.NotEqual(t, p.cfg.ClientID, other.cfg.ClientID)
}

func TestMQTTPublisher_PublishBeforeConnect(t *testing.T) {
	p := NewMQTTPublisher(MQTTConfig{Broker: "localhost:1883", TopicPrefix: "palmrest"}, logging.Discard())

	err := p.Publish(context.Background(), Event{Kind: RestStarted})
	assert.Error(t, err)

	assert.NoError(t, p.Close())
	_, _, connected := p.Stats()
	assert.False(t, connected)
}

func TestMQTTPublisher_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	p := NewMQTTPublisher(MQTTConfig{Broker: "localhost:1883", TopicPrefix: "palmrest-test"}, logging.Discard())

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := p.Connect(ctx); err != nil {
		t.Skipf("skipping test - broker not available: %v", err)
	}
	defer p.Close()

	require.NoError(t, p.Publish(ctx, Event{Kind: RestStarted, StreamID: "it", Timestamp: time.Now()}))
	published, failed, _ := p.Stats()
	assert.Equal(t, uint64(1), published)
	assert.Zero(t, failed)
}

type failingPublisher struct{ err error }

func (f failingPublisher) Publish(context.Context, Event) error { return f.err }
func (f failingPublisher) Close() error                         { return f.err }

func TestFanout(t *testing.T) {
	a, b := NewRecorder(4), NewRecorder(4)
	boom := errors.New("boom")
	f := Fanout{a, failingPublisher{boom}, b}

	err := f.Publish(context.Background(), Event{Kind: RestStarted, StreamID: "s1"})
	assert.ErrorIs(t, err, boom)

	// Later publishers still receive the event.
	assert.Equal(t, "s1", (<-a.Events()).StreamID)
	assert.Equal(t, "s1", (<-b.Events()).StreamID)

	assert.ErrorIs(t, f.Close(), boom)
}
