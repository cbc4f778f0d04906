package rooms

import (
	"sync"

	"canvasroom/internal/fanout"
)

// Participant is one connected client. Its identity and color are fixed for
// the connection's lifetime; its room changes on create/join/leave.
type Participant struct {
	id    string
	color string
	out   fanout.Outbox

	mu   sync.Mutex
	room *Room
	name string
}

func (p *Participant) ID() string { return p.id }

func (p *Participant) Color() string { return p.color }

// Outbox is the participant's ordered outbound queue.
func (p *Participant) Outbox() fanout.Outbox { return p.out }

// Name is the display name used in the current room; empty outside a room.
func (p *Participant) Name() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.name
}

// Room returns the participant's current room, or nil.
func (p *Participant) Room() *Room {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.room
}

// RoomID returns the current room id, or "".
func (p *Participant) RoomID() string {
	if r := p.Room(); r != nil {
		return r.id
	}
	return ""
}

// setRoom is only called with r.mu held by the room being entered or left.
func (p *Participant) setRoom(r *Room, name string) {
	p.mu.Lock()
	p.room = r
	p.name = name
	p.mu.Unlock()
}

// clearRoom detaches p from r; a no-op if p already moved elsewhere.
func (p *Participant) clearRoom(r *Room) {
	p.mu.Lock()
	if p.room == r {
		p.room = nil
		p.name = ""
	}
	p.mu.Unlock()
}
