package rooms

import (
	"sync"
	"time"

	"canvasroom/internal/canvas"
	"canvasroom/internal/fanout"
	"canvasroom/internal/metrics"

	"go.uber.org/zap"
)

// Stats are per-room counters kept for the REST view and the archive.
type Stats struct {
	Peak    int `json:"peakParticipants"`
	Strokes int `json:"strokes"`
	Undos   int `json:"undos"`
	Redos   int `json:"redos"`
	Clears  int `json:"clears"`
}

type member struct {
	p    *Participant
	name string
}

// Room owns one canvas session and its roster. Every command takes r.mu for
// its whole duration, including the enqueueing of the events it emits, so a
// room behaves as a single-threaded actor and all recipients observe its
// events in application order.
type Room struct {
	id        string
	sessionID string
	createdAt time.Time
	router    *fanout.Router
	metrics   *metrics.Metrics

	mu      sync.Mutex
	closed  bool
	session *canvas.Session
	members map[string]member
	stats   Stats
}

func newRoom(id, sessionID string, createdAt time.Time, historyLimit int, router *fanout.Router, m *metrics.Metrics) *Room {
	return &Room{
		id:        id,
		sessionID: sessionID,
		createdAt: createdAt,
		router:    router,
		metrics:   m,
		session:   canvas.NewSession(historyLimit),
		members:   make(map[string]member),
	}
}

func (r *Room) ID() string { return r.id }

func (r *Room) SessionID() string { return r.sessionID }

func (r *Room) CreatedAt() time.Time { return r.createdAt }

// recipients must be called with r.mu held.
func (r *Room) recipients() []fanout.Outbox {
	out := make([]fanout.Outbox, 0, len(r.members))
	for _, m := range r.members {
		out = append(out, m.p.out)
	}
	return out
}

// memberLocked must be called with r.mu held.
func (r *Room) memberLocked(p *Participant) (member, error) {
	if r.closed {
		return member{}, ErrInvalidTarget
	}
	m, ok := r.members[p.id]
	if !ok {
		return member{}, ErrInvalidTarget
	}
	return m, nil
}

func (r *Room) roster() map[string]RosterEntry {
	out := make(map[string]RosterEntry, len(r.members))
	for id, m := range r.members {
		out[id] = RosterEntry{Name: m.name, Color: m.p.color}
	}
	return out
}

// found seeds the room with its creator before the room is published in the
// registry, so nobody can observe it empty.
func (r *Room) found(p *Participant, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.members[p.id] = member{p: p, name: name}
	r.stats.Peak = 1
	p.setRoom(r, name)
	r.router.To(p.out, fanout.Event{Name: EventRoomCreated, Body: RoomCreated{
		RoomID:    r.id,
		UserColor: p.color,
		UserName:  name,
		UserCount: 1,
	}})
}

// join adds p and tells everyone. It fails with ErrRoomNotFound if the room
// was destroyed after the registry lookup.
func (r *Room) join(p *Participant, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRoomNotFound
	}

	r.members[p.id] = member{p: p, name: name}
	p.setRoom(r, name)
	count := len(r.members)
	if count > r.stats.Peak {
		r.stats.Peak = count
	}

	r.router.To(p.out, fanout.Event{Name: EventRoomJoined, Body: RoomJoined{
		RoomID:       r.id,
		UserColor:    p.color,
		UserName:     name,
		UserCount:    count,
		CanvasState:  r.session.Canvas(),
		Availability: r.session.Availability(),
	}})
	r.router.To(p.out, fanout.Event{Name: EventExistingUsers, Body: r.roster()})

	all := r.recipients()
	r.router.ToAll(all, fanout.Event{Name: EventUserCount, Body: count})
	r.router.ToOthers(all, p.id, fanout.Event{Name: EventUserJoined, Body: UserJoined{
		SocketID: p.id,
		Name:     name,
		Color:    p.color,
	}})
	return nil
}

// rejoinView re-sends the join payload to a participant already inside.
func (r *Room) rejoinView(p *Participant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, err := r.memberLocked(p)
	if err != nil {
		return ErrRoomNotFound
	}
	r.router.To(p.out, fanout.Event{Name: EventRoomJoined, Body: RoomJoined{
		RoomID:       r.id,
		UserColor:    p.color,
		UserName:     m.name,
		UserCount:    len(r.members),
		CanvasState:  r.session.Canvas(),
		Availability: r.session.Availability(),
	}})
	r.router.To(p.out, fanout.Event{Name: EventExistingUsers, Body: r.roster()})
	return nil
}

// leave removes p. A stroke p left pending is discarded. When p was the last
// member the room is marked closed and emptied reports true; the caller then
// unregisters it.
func (r *Room) leave(p *Participant) (emptied bool, stats Stats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.members[p.id]; !ok {
		return false, r.stats
	}
	delete(r.members, p.id)
	p.clearRoom(r)

	if r.session.DiscardOwnedBy(p.id) {
		zap.L().Debug("room.stroke_abandoned", zap.String("room", r.id), zap.String("participant", p.id))
	}

	if len(r.members) == 0 {
		r.closed = true
		return true, r.stats
	}

	all := r.recipients()
	r.router.ToAll(all, fanout.Event{Name: EventUserCount, Body: len(r.members)})
	r.router.ToAll(all, fanout.Event{Name: EventCursorHide, Body: p.id})
	r.router.ToAll(all, fanout.Event{Name: EventUserLeft, Body: p.id})
	return false, r.stats
}

// BeginStroke records the canvas as it was before p's stroke started.
func (r *Room) BeginStroke(p *Participant, prior canvas.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.memberLocked(p); err != nil {
		return err
	}
	if r.session.BeginStroke(p.id, prior) {
		zap.L().Debug("room.stroke_overwritten", zap.String("room", r.id), zap.String("participant", p.id))
	}
	return nil
}

// CommitStroke makes final the room canvas and pushes the pending snapshot
// onto the undo history.
func (r *Room) CommitStroke(p *Participant, final canvas.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.memberLocked(p); err != nil {
		return err
	}
	before := r.session.Evictions()
	if err := r.session.CommitStroke(final); err != nil {
		return err
	}
	r.metrics.Evicted(r.session.Evictions() - before)
	r.stats.Strokes++
	r.router.ToAll(r.recipients(), fanout.Event{Name: EventHistoryUpdate, Body: r.session.Availability()})
	return nil
}

func (r *Room) DiscardStroke(p *Participant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.memberLocked(p); err != nil {
		return err
	}
	return r.session.DiscardStroke()
}

// Undo restores the previous canvas for everyone, requester included.
func (r *Room) Undo(p *Participant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.memberLocked(p); err != nil {
		return err
	}
	if !r.session.Undo() {
		return nil
	}
	r.stats.Undos++
	r.broadcastRestoreLocked()
	return nil
}

// Redo re-applies the last undone canvas for everyone.
func (r *Room) Redo(p *Participant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.memberLocked(p); err != nil {
		return err
	}
	before := r.session.Evictions()
	if !r.session.Redo() {
		return nil
	}
	r.metrics.Evicted(r.session.Evictions() - before)
	r.stats.Redos++
	r.broadcastRestoreLocked()
	return nil
}

func (r *Room) broadcastRestoreLocked() {
	r.router.ToAll(r.recipients(), fanout.Event{Name: EventCanvasRestore, Body: CanvasRestore{
		State:        r.session.Canvas(),
		Availability: r.session.Availability(),
	}})
}

// Clear wipes the canvas and the shared history.
func (r *Room) Clear(p *Participant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.memberLocked(p); err != nil {
		return err
	}
	r.session.Clear()
	r.stats.Clears++
	all := r.recipients()
	r.router.ToOthers(all, p.id, fanout.Event{Name: EventClear})
	r.router.ToAll(all, fanout.Event{Name: EventHistoryUpdate, Body: r.session.Availability()})
	return nil
}

// Segment relays one stroke sample to the other members untouched.
func (r *Room) Segment(p *Participant, seg Segment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.memberLocked(p); err != nil {
		return err
	}
	r.router.ToOthers(r.recipients(), p.id, fanout.Event{Name: EventDraw, Body: Draw{SocketID: p.id, Segment: seg}})
	return nil
}

// StrokeEnd relays "pointer up" so other clients stop joining segments.
func (r *Room) StrokeEnd(p *Participant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.memberLocked(p); err != nil {
		return err
	}
	r.router.ToOthers(r.recipients(), p.id, fanout.Event{Name: EventMouseUp, Body: MouseUp{SocketID: p.id}})
	return nil
}

func (r *Room) CursorMove(p *Participant, x, y float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, err := r.memberLocked(p)
	if err != nil {
		return err
	}
	r.router.ToOthers(r.recipients(), p.id, fanout.Event{Name: EventCursorMove, Body: CursorMove{
		SocketID: p.id,
		X:        x,
		Y:        y,
		Color:    p.color,
		Name:     m.name,
	}})
	return nil
}

func (r *Room) CursorLeave(p *Participant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.memberLocked(p); err != nil {
		return err
	}
	r.router.ToOthers(r.recipients(), p.id, fanout.Event{Name: EventCursorHide, Body: p.id})
	return nil
}

// State is a point-in-time copy of a room, for inspection and REST.
type State struct {
	ID           string
	SessionID    string
	CreatedAt    time.Time
	Closed       bool
	Canvas       canvas.Snapshot
	UndoStack    []canvas.Snapshot
	RedoStack    []canvas.Snapshot
	Stroke       canvas.StrokeState
	Pending      canvas.Snapshot
	Participants map[string]RosterEntry
	Stats        Stats
}

func (r *Room) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	pending, _, _ := r.session.Pending()
	return State{
		ID:           r.id,
		SessionID:    r.sessionID,
		CreatedAt:    r.createdAt,
		Closed:       r.closed,
		Canvas:       r.session.Canvas(),
		UndoStack:    r.session.UndoStack(),
		RedoStack:    r.session.RedoStack(),
		Stroke:       r.session.State(),
		Pending:      pending,
		Participants: r.roster(),
		Stats:        r.stats,
	}
}

// Info is the REST summary of a live room.
type Info struct {
	ID           string    `json:"id"             example:"K3X9QZ"`
	Participants int       `json:"participants"`
	HasUndo      bool      `json:"hasUndo"`
	HasRedo      bool      `json:"hasRedo"`
	CreatedAt    time.Time `json:"createdAt"      example:"2025-07-27T16:05:05Z"`
	Stats
}

func (r *Room) Info() Info {
	r.mu.Lock()
	defer r.mu.Unlock()
	av := r.session.Availability()
	return Info{
		ID:           r.id,
		Participants: len(r.members),
		HasUndo:      av.HasUndo,
		HasRedo:      av.HasRedo,
		CreatedAt:    r.createdAt,
		Stats:        r.stats,
	}
}
