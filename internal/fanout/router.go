// Package fanout delivers room events to participant outboxes.
//
// An event is encoded once and the same frame is enqueued to every
// recipient. Callers invoke the router while holding their room's lock, so
// each outbox sees a room's events in exactly the order the room applied
// them. Enqueue never blocks.
package fanout

import (
	"encoding/json"

	"canvasroom/internal/metrics"

	"go.uber.org/zap"
)

// Outbox is one participant's ordered outbound queue.
type Outbox interface {
	// ID is the participant identity used for sender exclusion.
	ID() string
	// Enqueue appends a frame without blocking. It reports false when the
	// frame could not be queued (connection closed or too slow).
	Enqueue(frame []byte) bool
}

// Event is the wire envelope shared with inbound frames.
type Event struct {
	Name string `json:"event"`
	Body any    `json:"body,omitempty"`
}

type Router struct {
	metrics *metrics.Metrics
}

func NewRouter(m *metrics.Metrics) *Router { return &Router{metrics: m} }

// Encode marshals ev into a frame.
func Encode(ev Event) ([]byte, error) { return json.Marshal(ev) }

// To delivers ev to a single outbox.
func (r *Router) To(o Outbox, ev Event) bool {
	frame, err := Encode(ev)
	if err != nil {
		zap.L().Error("fanout.encode", zap.String("event", ev.Name), zap.Error(err))
		return false
	}
	return r.deliver(o, frame)
}

// ToAll delivers ev to every recipient and returns how many accepted it.
func (r *Router) ToAll(recipients []Outbox, ev Event) int {
	return r.ToOthers(recipients, "", ev)
}

// ToOthers delivers ev to every recipient except the one whose ID is
// senderID. An empty senderID excludes nobody.
func (r *Router) ToOthers(recipients []Outbox, senderID string, ev Event) int {
	if len(recipients) == 0 {
		return 0
	}
	frame, err := Encode(ev)
	if err != nil {
		zap.L().Error("fanout.encode", zap.String("event", ev.Name), zap.Error(err))
		return 0
	}
	sent := 0
	for _, o := range recipients {
		if senderID != "" && o.ID() == senderID {
			continue
		}
		if r.deliver(o, frame) {
			sent++
		}
	}
	return sent
}

func (r *Router) deliver(o Outbox, frame []byte) bool {
	if o.Enqueue(frame) {
		return true
	}
	r.metrics.FrameDropped()
	zap.L().Debug("fanout.dropped", zap.String("recipient", o.ID()))
	return false
}
