package push

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPublishDeliversToSubscriber(t *testing.T) {
	h := NewHub(DefaultConfig())
	sub := h.Subscribe(TopicAlerts)

	h.Publish(TopicAlerts, []byte("hello"))

	select {
	case msg := <-sub.Messages():
		assert.Equal(t, "hello", string(msg))
	case <-time.After(time.Second):
		t.Fatal("expected message was not delivered")
	}
}

func TestPublishOnlyReachesItsTopic(t *testing.T) {
	h := NewHub(DefaultConfig())
	sub := h.Subscribe(MetricsTopic("cam1"))

	h.Publish(MetricsTopic("cam2"), []byte("other camera"))

	select {
	case <-sub.Messages():
		t.Fatal("should not receive messages for a different camera's topic")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestPublishDropsWhenBufferFull(t *testing.T) {
	cfg := Config{SubscriberBuffer: 1, SendDeadline: time.Second, MaxConsecutiveDrops: 10}
	h := NewHub(cfg)
	sub := h.Subscribe(TopicAlerts)

	h.Publish(TopicAlerts, []byte("first"))
	h.Publish(TopicAlerts, []byte("second")) // buffer full, dropped

	msg := <-sub.Messages()
	assert.Equal(t, "first", string(msg))

	select {
	case <-sub.Messages():
		t.Fatal("second payload should have been dropped, not queued")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestSubscriberDisconnectedAfterMaxConsecutiveDrops(t *testing.T) {
	cfg := Config{SubscriberBuffer: 1, SendDeadline: time.Second, MaxConsecutiveDrops: 3}
	h := NewHub(cfg)
	sub := h.Subscribe(TopicAlerts)

	h.Publish(TopicAlerts, []byte("fills buffer"))
	for i := 0; i < 3; i++ {
		h.Publish(TopicAlerts, []byte("dropped"))
	}

	select {
	case <-sub.Done():
	case <-time.After(time.Second):
		t.Fatal("subscriber should have been disconnected after repeated drops")
	}
}

func TestUnsubscribeClosesDone(t *testing.T) {
	h := NewHub(DefaultConfig())
	sub := h.Subscribe(TopicAlerts)
	h.Unsubscribe(sub)

	select {
	case <-sub.Done():
	default:
		t.Fatal("Done should be closed after Unsubscribe")
	}
}
