package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"canvasroom/internal/fanout"
	"canvasroom/internal/metrics"
	"canvasroom/internal/ratelimit"
	"canvasroom/internal/rooms"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10 // must be < pongWait
	commandTimeout = 1900 * time.Millisecond
)

type Options struct {
	AllowedOrigins    []string
	SendBuffer        int
	MaxMessageBytes   int64
	MessagesPerSecond float64
	MessageBurst      int
}

type WsServer struct {
	registry *rooms.Registry
	router   *Router
	upgrader websocket.Upgrader
	opts     Options
}

func NewWsServer(registry *rooms.Registry, m *metrics.Metrics, opts Options) *WsServer {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 256
	}
	if opts.MaxMessageBytes <= 0 {
		opts.MaxMessageBytes = 16 << 20
	}
	srv := &WsServer{
		registry: registry,
		router:   NewRouter(m),
		opts:     opts,
	}
	srv.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker(opts.AllowedOrigins),
	}
	srv.registerHandlers() // ← all WS events configured here
	return srv
}

// originChecker accepts every origin when allowed is empty.
func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o = strings.TrimSpace(o); o != "" {
			set[strings.ToLower(o)] = struct{}{}
		}
	}
	return func(r *http.Request) bool {
		if len(set) == 0 {
			return true
		}
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[strings.ToLower(origin)]
		return ok
	}
}

// ---------------------------------------------------------------------------
//  Public: Gin entry-point
// ---------------------------------------------------------------------------

func (s *WsServer) Handle(ginCtx *gin.Context) {
	rawConn, err := s.upgrader.Upgrade(ginCtx.Writer, ginCtx.Request, nil)
	if err != nil {
		zap.L().Warn("ws.accept", zap.Error(err))
		return
	}

	conn := newClientConn(uuid.NewString(), rawConn, s.opts.SendBuffer)
	p := s.registry.Connect(conn.id, conn)
	zap.L().Debug("ws.connected", zap.String("conn", conn.id), zap.String("color", p.Color()))

	go conn.writePump()
	go s.reader(p, conn)
}

// ---------------------------------------------------------------------------
//  Private helpers
// ---------------------------------------------------------------------------

func (s *WsServer) reader(p *rooms.Participant, conn *clientConn) {
	defer func() {
		roomID, name := p.RoomID(), p.Name()
		s.registry.Disconnect(p)
		conn.close()
		zap.L().Debug("ws.disconnected",
			zap.String("conn", conn.id),
			zap.String("room", roomID),
			zap.String("name", name),
		)
	}()

	conn.rawConn.SetReadLimit(s.opts.MaxMessageBytes)
	_ = conn.rawConn.SetReadDeadline(time.Now().Add(pongWait))
	conn.rawConn.SetPongHandler(func(string) error {
		return conn.rawConn.SetReadDeadline(time.Now().Add(pongWait))
	})

	limiter := ratelimit.NewLimiter(s.opts.MessagesPerSecond, s.opts.MessageBurst)

	for {
		_, data, err := conn.rawConn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				zap.L().Debug("ws.read", zap.String("conn", conn.id), zap.Error(err))
			}
			return // client closed or errored
		}
		// any frame proves the peer is alive
		_ = conn.rawConn.SetReadDeadline(time.Now().Add(pongWait))

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			env = Envelope{} // answered as malformed below
		}

		// Commands that change room state or membership are never throttled:
		// dropping one would leave the room out of step with its clients.
		if !applied[env.Event] && !limiter.Allow() {
			if limiter.Dropped()%100 == 1 {
				zap.L().Warn("ws.rate_limited", zap.String("conn", conn.id), zap.Uint64("dropped", limiter.Dropped()))
			}
			continue
		}

		if env.Event == "" {
			s.replyError(p, "malformed_frame")
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		err = s.router.dispatch(ctx, p, env)
		cancel()

		if err != nil {
			s.fail(p, env.Event, err)
		}
	}
}

// fail reports a failed command to its sender. No-op commands are dropped
// quietly; nothing here ever touches room state.
func (s *WsServer) fail(p *rooms.Participant, event string, err error) {
	switch {
	case rooms.Silent(err):
		zap.L().Debug("ws.ignored", zap.String("conn", p.ID()), zap.String("event", event), zap.Error(err))
	case errors.Is(err, rooms.ErrIDSpaceExhausted):
		zap.L().Error("ws.create_room", zap.String("conn", p.ID()), zap.Error(err))
		s.replyError(p, err.Error())
	default:
		zap.L().Debug("ws.command", zap.String("conn", p.ID()), zap.String("event", event), zap.Error(err))
		s.replyError(p, err.Error())
	}
}

func (s *WsServer) replyError(p *rooms.Participant, msg string) {
	s.registry.Router().To(p.Outbox(), fanout.Event{
		Name: rooms.EventError,
		Body: rooms.ErrorBody{Error: msg},
	})
}
