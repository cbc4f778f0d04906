package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"canvasroom/internal/metrics"
	"canvasroom/internal/rooms"

	"github.com/go-playground/validator/v10"
)

var (
	ErrUnknownEvent = errors.New("unknown_event")
	ErrBadBody      = errors.New("invalid_body")
)

// internal (untyped) handler signature.
type rawHandler func(ctx context.Context, p *rooms.Participant, body json.RawMessage) error

// Router keeps a map[event]handler, à-la gin.Engine.
type Router struct {
	mu       sync.RWMutex
	handlers map[string]rawHandler
	validate *validator.Validate
	metrics  *metrics.Metrics
}

func NewRouter(m *metrics.Metrics) *Router {
	return &Router{
		handlers: make(map[string]rawHandler),
		validate: validator.New(),
		metrics:  m,
	}
}

// Register binds an event to a strongly-typed handler. The body is decoded
// into Req and validated before h runs.
func Register[Req any](
	r *Router,
	event string,
	h func(ctx context.Context, p *rooms.Participant, req Req) error,
) {
	if event == "" {
		panic("ws router: empty event")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.handlers[event] = func(ctx context.Context, p *rooms.Participant, body json.RawMessage) error {
		var req Req
		if len(body) > 0 && string(body) != "null" {
			if err := json.Unmarshal(body, &req); err != nil {
				return fmt.Errorf("%w: %v", ErrBadBody, err)
			}
		}
		if err := r.validate.Struct(req); err != nil {
			var invalid *validator.InvalidValidationError
			if !errors.As(err, &invalid) {
				return fmt.Errorf("%w: %v", ErrBadBody, err)
			}
		}
		return h(ctx, p, req)
	}
}

// dispatch is called by the server's reader loop.
func (r *Router) dispatch(ctx context.Context, p *rooms.Participant, env Envelope) error {
	r.mu.RLock()
	h, ok := r.handlers[env.Event]
	r.mu.RUnlock()
	if !ok {
		return ErrUnknownEvent
	}
	r.metrics.Command(env.Event)
	return h(ctx, p, env.Body)
}
