package crosscam

import (
	"encoding/json"
	"log"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/technosupport/crowdwatch/internal/apperr"
	"github.com/technosupport/crowdwatch/internal/model"
)

// eventEnvelope is the wire format published for each entry/exit event: the
// event itself plus the track's current re-id embedding, since the matcher
// needs the embedding but the store's EntryExitEvent rows do not carry one.
type eventEnvelope struct {
	Event     model.EntryExitEvent `json:"event"`
	Embedding []float32            `json:"embedding"`
}

// Bus publishes entry/exit events onto NATS and drives a Matcher from the
// subscription side, decoupling the matcher worker from camera ingest.
type Bus struct {
	conn       *nats.Conn
	subject    string
	maxRetries int
}

func NewBus(conn *nats.Conn, subject string, maxRetries int) *Bus {
	return &Bus{conn: conn, subject: subject, maxRetries: maxRetries}
}

// Publish sends one entry/exit event with its embedding, retrying with a
// linear backoff on transient publish failures.
func (b *Bus) Publish(ev model.EntryExitEvent, embedding []float32) error {
	data, err := json.Marshal(eventEnvelope{Event: ev, Embedding: embedding})
	if err != nil {
		return apperr.Corruptf("marshal entry/exit event: %v", err)
	}

	var lastErr error
	for i := 0; i <= b.maxRetries; i++ {
		if lastErr = b.conn.Publish(b.subject, data); lastErr == nil {
			return nil
		}
		time.Sleep(time.Duration(i*100) * time.Millisecond)
	}
	return apperr.Transientf("publish entry/exit event after %d retries: %v", b.maxRetries, lastErr)
}

// Sink receives the movements a Matcher produces for one event, e.g. to
// persist them and push them to subscribers.
type Sink func([]model.CrossCameraMovement)

// Run subscribes to the bus's subject and feeds every decoded event into
// matcher, forwarding any resulting movements to sink. It returns as soon as
// the subscription is in place; events are then handled on the NATS
// client's callback goroutine until the subscription is unsubscribed or the
// connection closes.
func Run(bus *Bus, matcher *Matcher, sink Sink) (*nats.Subscription, error) {
	sub, err := bus.conn.Subscribe(bus.subject, func(msg *nats.Msg) {
		var env eventEnvelope
		if err := json.Unmarshal(msg.Data, &env); err != nil {
			log.Printf("[crosscam] dropping malformed event: %v", err)
			return
		}
		movements := matcher.Ingest(env.Event, env.Embedding, time.Now())
		if len(movements) > 0 && sink != nil {
			sink(movements)
		}
	})
	if err != nil {
		return nil, apperr.Transientf("subscribe to %s: %v", bus.subject, err)
	}
	return sub, nil
}

// DefaultSubject is the single NATS subject every camera publishes entry/exit
// events to; the matcher subscribes once across all cameras.
const DefaultSubject = "crowdwatch.events"
