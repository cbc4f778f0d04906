// Package activity records room lifecycle events (a room opened, a room
// closed with its counters) for the session archive. Recording never blocks
// the caller; a worker publishes to a Redis stream in the background.
package activity

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Stream is the Redis stream carrying lifecycle records.
const Stream = "room_activity"

type Kind string

const (
	Opened Kind = "opened"
	Closed Kind = "closed"
)

// Record is one lifecycle event. Counters are only meaningful on Closed.
type Record struct {
	Kind      Kind
	SessionID string
	RoomID    string
	At        time.Time
	OpenedAt  time.Time
	Peak      int
	Strokes   int
	Undos     int
	Redos     int
	Clears    int
}

// Recorder accepts lifecycle records. Implementations must not block.
type Recorder interface {
	Record(r Record)
}

// Nop discards everything; used when the archive is disabled.
type Nop struct{}

func (Nop) Record(Record) {}

// fields flattens r in a fixed order for XADD.
func (r Record) fields() []interface{} {
	return []interface{}{
		"kind", string(r.Kind),
		"session", r.SessionID,
		"room", r.RoomID,
		"at", strconv.FormatInt(r.At.UnixMilli(), 10),
		"opened_at", strconv.FormatInt(r.OpenedAt.UnixMilli(), 10),
		"peak", strconv.Itoa(r.Peak),
		"strokes", strconv.Itoa(r.Strokes),
		"undos", strconv.Itoa(r.Undos),
		"redos", strconv.Itoa(r.Redos),
		"clears", strconv.Itoa(r.Clears),
	}
}

var ErrMalformed = errors.New("malformed activity record")

// Parse rebuilds a Record from stream entry values.
func Parse(values map[string]interface{}) (Record, error) {
	str := func(k string) string {
		v, _ := values[k].(string)
		return v
	}
	r := Record{
		Kind:      Kind(str("kind")),
		SessionID: str("session"),
		RoomID:    str("room"),
	}
	if r.SessionID == "" || (r.Kind != Opened && r.Kind != Closed) {
		return Record{}, fmt.Errorf("%w: kind=%q session=%q", ErrMalformed, r.Kind, r.SessionID)
	}

	ms := func(k string) time.Time {
		i, _ := strconv.ParseInt(str(k), 10, 64)
		return time.UnixMilli(i).UTC()
	}
	num := func(k string) int {
		i, _ := strconv.Atoi(str(k))
		return i
	}
	r.At = ms("at")
	r.OpenedAt = ms("opened_at")
	r.Peak = num("peak")
	r.Strokes = num("strokes")
	r.Undos = num("undos")
	r.Redos = num("redos")
	r.Clears = num("clears")
	return r, nil
}

// StreamRecorder buffers records and XADDs them from Run.
type StreamRecorder struct {
	rdc   *redis.Client
	queue chan Record
}

func NewStreamRecorder(rdc *redis.Client, buffer int) *StreamRecorder {
	if buffer <= 0 {
		buffer = 1024
	}
	return &StreamRecorder{rdc: rdc, queue: make(chan Record, buffer)}
}

func (s *StreamRecorder) Record(r Record) {
	select {
	case s.queue <- r:
	default:
		zap.L().Warn("activity.queue_full",
			zap.String("kind", string(r.Kind)),
			zap.String("room", r.RoomID),
		)
	}
}

// Run publishes queued records until ctx is cancelled.
func (s *StreamRecorder) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case r := <-s.queue:
			if err := s.publish(ctx, r); err != nil {
				zap.L().Warn("activity.xadd", zap.String("room", r.RoomID), zap.Error(err))
			}
		}
	}
}

func (s *StreamRecorder) publish(ctx context.Context, r Record) error {
	return s.rdc.XAdd(ctx, &redis.XAddArgs{
		Stream: Stream,
		Values: r.fields(),
	}).Err()
}
