package rooms

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"canvasroom/internal/activity"
	"canvasroom/internal/canvas"
	"canvasroom/internal/fanout"
	"canvasroom/internal/metrics"
	"canvasroom/internal/roomdir"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// maxIDAttempts bounds how many fresh codes CreateRoom draws before
	// giving up with ErrIDSpaceExhausted.
	maxIDAttempts  = 64
	releaseTimeout = 2 * time.Second
)

type Options struct {
	HistoryLimit int
	DefaultName  string
	NameMax      int
	Palette      []string

	Directory roomdir.Directory
	Recorder  activity.Recorder
	Metrics   *metrics.Metrics

	// NewID and Now are replaceable for tests.
	NewID func() (string, error)
	Now   func() time.Time
}

// Registry maps live room ids to rooms and owns their lifecycle: a room
// exists from CreateRoom until its last participant leaves.
type Registry struct {
	opts    Options
	router  *fanout.Router
	palette *palette

	mu    sync.RWMutex
	rooms map[string]*Room
}

func NewRegistry(opts Options) *Registry {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = canvas.DefaultHistoryLimit
	}
	if opts.DefaultName == "" {
		opts.DefaultName = "Anonymous"
	}
	if opts.NameMax <= 0 {
		opts.NameMax = 20
	}
	if opts.Directory == nil {
		opts.Directory = roomdir.NewLocal()
	}
	if opts.Recorder == nil {
		opts.Recorder = activity.Nop{}
	}
	if opts.NewID == nil {
		opts.NewID = NewID
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Registry{
		opts:    opts,
		router:  fanout.NewRouter(opts.Metrics),
		palette: newPalette(opts.Palette),
		rooms:   make(map[string]*Room),
	}
}

// Router is the broadcast router shared by every room of this registry.
func (g *Registry) Router() *fanout.Router { return g.router }

// Connect registers a new connection and assigns its cursor color.
func (g *Registry) Connect(id string, out fanout.Outbox) *Participant {
	g.opts.Metrics.ConnectionOpened()
	return &Participant{id: id, color: g.palette.assign(), out: out}
}

// Disconnect removes p from its room before the connection goes away. It is
// processed like any other room command, so the participant count broadcast
// and the emptiness check happen exactly once.
func (g *Registry) Disconnect(p *Participant) {
	g.LeaveRoom(p)
	g.opts.Metrics.ConnectionClosed()
}

// CreateRoom opens a room with a fresh id and p as its only participant.
// p leaves any room it was in first.
func (g *Registry) CreateRoom(ctx context.Context, p *Participant, displayName string) (*Room, error) {
	g.LeaveRoom(p)

	id, err := g.reserveID(ctx)
	if err != nil {
		return nil, err
	}
	name := normalizeName(displayName, g.opts.DefaultName, g.opts.NameMax)
	room := newRoom(id, uuid.NewString(), g.opts.Now().UTC(), g.opts.HistoryLimit, g.router, g.opts.Metrics)
	g.opts.Metrics.RoomOpened()
	room.found(p, name)

	g.mu.Lock()
	g.rooms[id] = room
	g.mu.Unlock()

	g.opts.Recorder.Record(activity.Record{
		Kind:      activity.Opened,
		SessionID: room.sessionID,
		RoomID:    id,
		At:        room.createdAt,
		OpenedAt:  room.createdAt,
	})
	zap.L().Info("room.created", zap.String("room", id), zap.String("participant", p.id))
	return room, nil
}

func (g *Registry) reserveID(ctx context.Context) (string, error) {
	for i := 0; i < maxIDAttempts; i++ {
		id, err := g.opts.NewID()
		if err != nil {
			return "", fmt.Errorf("generate room id: %w", err)
		}
		g.mu.RLock()
		_, live := g.rooms[id]
		g.mu.RUnlock()
		if live {
			continue
		}
		ok, err := g.opts.Directory.Reserve(ctx, id)
		if err != nil {
			return "", err
		}
		if ok {
			return id, nil
		}
	}
	return "", ErrIDSpaceExhausted
}

// JoinRoom adds p to the live room roomID. Joining the room p is already in
// only re-sends the room view.
func (g *Registry) JoinRoom(p *Participant, roomID, displayName string) (*Room, error) {
	roomID = NormalizeID(roomID)
	if cur := p.Room(); cur != nil {
		if cur.id == roomID {
			return cur, cur.rejoinView(p)
		}
		g.LeaveRoom(p)
	}

	room, ok := g.Lookup(roomID)
	if !ok {
		return nil, ErrRoomNotFound
	}
	name := normalizeName(displayName, g.opts.DefaultName, g.opts.NameMax)
	if err := room.join(p, name); err != nil {
		return nil, err
	}
	zap.L().Debug("room.joined", zap.String("room", roomID), zap.String("participant", p.id))
	return room, nil
}

// LeaveRoom takes p out of its current room, destroying the room if p was
// the last participant. It is a no-op for a participant in no room.
func (g *Registry) LeaveRoom(p *Participant) {
	room := p.Room()
	if room == nil {
		return
	}
	emptied, stats := room.leave(p)
	if !emptied {
		return
	}
	g.destroy(room, stats)
}

func (g *Registry) destroy(room *Room, stats Stats) {
	g.mu.Lock()
	if g.rooms[room.id] == room {
		delete(g.rooms, room.id)
	}
	g.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()
	if err := g.opts.Directory.Release(ctx, room.id); err != nil {
		zap.L().Warn("room.release", zap.String("room", room.id), zap.Error(err))
	}

	g.opts.Metrics.RoomClosed()
	g.opts.Recorder.Record(activity.Record{
		Kind:      activity.Closed,
		SessionID: room.sessionID,
		RoomID:    room.id,
		At:        g.opts.Now().UTC(),
		OpenedAt:  room.createdAt,
		Peak:      stats.Peak,
		Strokes:   stats.Strokes,
		Undos:     stats.Undos,
		Redos:     stats.Redos,
		Clears:    stats.Clears,
	})
	zap.L().Info("room.destroyed", zap.String("room", room.id))
}

// KeepAlive refreshes the directory claim of every live room each period
// until ctx is cancelled, so a long-lived room never loses its id to
// another instance.
func (g *Registry) KeepAlive(ctx context.Context, every time.Duration) {
	tk := time.NewTicker(every)
	defer tk.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tk.C:
			g.refreshClaims(ctx)
		}
	}
}

// refreshClaims touches every live room id and returns the ids whose claim
// is now held elsewhere.
func (g *Registry) refreshClaims(ctx context.Context) (lost []string) {
	g.mu.RLock()
	ids := make([]string, 0, len(g.rooms))
	for id := range g.rooms {
		ids = append(ids, id)
	}
	g.mu.RUnlock()

	for _, id := range ids {
		tctx, cancel := context.WithTimeout(ctx, releaseTimeout)
		held, err := g.opts.Directory.Touch(tctx, id)
		cancel()
		switch {
		case err != nil:
			zap.L().Warn("room.touch", zap.String("room", id), zap.Error(err))
		case !held:
			zap.L().Error("room.claim_lost", zap.String("room", id))
			lost = append(lost, id)
		}
	}
	return lost
}

// Lookup finds a live room by id.
func (g *Registry) Lookup(roomID string) (*Room, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	r, ok := g.rooms[NormalizeID(roomID)]
	return r, ok
}

// Target resolves the room a command addressed to roomID applies to. It
// fails with ErrInvalidTarget unless p is currently in that room.
func (g *Registry) Target(p *Participant, roomID string) (*Room, error) {
	roomID = NormalizeID(roomID)
	if roomID == "" {
		return nil, ErrInvalidTarget
	}
	room := p.Room()
	if room == nil || room.id != roomID {
		return nil, ErrInvalidTarget
	}
	return room, nil
}

// Len is the number of live rooms.
func (g *Registry) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.rooms)
}

// Rooms lists live rooms, oldest first.
func (g *Registry) Rooms() []Info {
	g.mu.RLock()
	live := make([]*Room, 0, len(g.rooms))
	for _, r := range g.rooms {
		live = append(live, r)
	}
	g.mu.RUnlock()

	out := make([]Info, 0, len(live))
	for _, r := range live {
		out = append(out, r.Info())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
