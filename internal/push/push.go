// Package push implements the §4.9 outbound push fabric: two logical
// topics (per-camera metrics, global alerts), at-most-once best-effort
// delivery, and drop-then-disconnect handling for stalled subscribers.
package push

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/technosupport/crowdwatch/internal/metrics"
)

const (
	TopicAlerts        = "alerts"
	metricsTopicPrefix = "metrics."
)

// MetricsTopic returns the per-camera topic name for analytics/metrics
// broadcasts.
func MetricsTopic(cameraID string) string {
	return metricsTopicPrefix + cameraID
}

// Config holds the push fabric's tunables (§4.9/§5 defaults).
type Config struct {
	SubscriberBuffer    int
	SendDeadline        time.Duration
	MaxConsecutiveDrops int
}

func DefaultConfig() Config {
	return Config{SubscriberBuffer: 64, SendDeadline: time.Second, MaxConsecutiveDrops: 3}
}

// Subscriber is one registered receiver on a topic. Messages delivers queued
// payloads in emission order; Done closes when the subscriber has been
// disconnected by the hub, either on request or after too many drops.
type Subscriber struct {
	ID    string
	Topic string

	send  chan []byte
	done  chan struct{}
	once  sync.Once
	mu    sync.Mutex
	drops int
}

func (s *Subscriber) Messages() <-chan []byte { return s.send }
func (s *Subscriber) Done() <-chan struct{}   { return s.done }

func (s *Subscriber) close() {
	s.once.Do(func() { close(s.done) })
}

func (s *Subscriber) bumpDrops() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drops++
	return s.drops
}

func (s *Subscriber) resetDrops() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drops = 0
}

// Hub fans payloads published on a topic out to every subscriber of that
// topic. A subscriber whose send buffer is full has the new payload
// dropped (counted); after MaxConsecutiveDrops consecutive drops it is
// disconnected. Subscribers that terminate mid-send are cleaned up quietly
// and never propagate an error to Publish's caller.
type Hub struct {
	mu   sync.Mutex
	cfg  Config
	subs map[string]map[string]*Subscriber // topic -> subscriber id -> subscriber
}

func NewHub(cfg Config) *Hub {
	return &Hub{cfg: cfg, subs: make(map[string]map[string]*Subscriber)}
}

// Subscribe registers a new subscriber on topic and returns it; the caller
// drains Messages() until Done() closes.
func (h *Hub) Subscribe(topic string) *Subscriber {
	sub := &Subscriber{
		ID:    uuid.NewString(),
		Topic: topic,
		send:  make(chan []byte, h.cfg.SubscriberBuffer),
		done:  make(chan struct{}),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	bucket, ok := h.subs[topic]
	if !ok {
		bucket = make(map[string]*Subscriber)
		h.subs[topic] = bucket
	}
	bucket[sub.ID] = sub
	return sub
}

// Unsubscribe removes sub from its topic and signals Done. Safe to call
// more than once or after the hub has already disconnected it.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	if bucket, ok := h.subs[sub.Topic]; ok {
		delete(bucket, sub.ID)
		if len(bucket) == 0 {
			delete(h.subs, sub.Topic)
		}
	}
	h.mu.Unlock()
	sub.close()
}

// Publish delivers payload to every current subscriber of topic,
// best-effort. It never blocks on a slow subscriber.
func (h *Hub) Publish(topic string, payload []byte) {
	h.mu.Lock()
	bucket := h.subs[topic]
	targets := make([]*Subscriber, 0, len(bucket))
	for _, sub := range bucket {
		targets = append(targets, sub)
	}
	h.mu.Unlock()

	for _, sub := range targets {
		select {
		case sub.send <- payload:
			sub.resetDrops()
			metrics.PushDelivered.WithLabelValues(topic).Inc()
		default:
			metrics.PushDropped.WithLabelValues(topic).Inc()
			if sub.bumpDrops() >= h.cfg.MaxConsecutiveDrops {
				metrics.PushDisconnected.WithLabelValues(topic).Inc()
				h.Unsubscribe(sub)
			}
		}
	}
}
