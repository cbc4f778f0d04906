package ws

import (
	"context"
	"errors"

	"canvasroom/internal/canvas"
	"canvasroom/internal/fanout"
	"canvasroom/internal/rooms"
)

// Inbound event names.
const (
	EventCreateRoom    = "create-room"
	EventJoinRoom      = "join-room"
	EventLeaveRoom     = "leave-room"
	EventBeginStroke   = "begin-stroke"
	EventStrokeSegment = "stroke-segment"
	EventDiscardStroke = "discard-stroke"
	EventCommitStroke  = "commit-stroke"
	EventStrokeEnd     = "stroke-end"
	EventClear         = "clear"
	EventUndo          = "undo"
	EventRedo          = "redo"
	EventCursorMove    = "cursor-move"
	EventCursorLeave   = "cursor-leave"
)

// applied lists the events that mutate room state or membership. They bypass
// the rate limiter; only relays (segments, cursor, stroke-end) and unknown or
// malformed frames spend tokens.
var applied = map[string]bool{
	EventCreateRoom:    true,
	EventJoinRoom:      true,
	EventLeaveRoom:     true,
	EventBeginStroke:   true,
	EventDiscardStroke: true,
	EventCommitStroke:  true,
	EventClear:         true,
	EventUndo:          true,
	EventRedo:          true,
}

func (s *WsServer) registerHandlers() {
	reg := s.registry

	// 🔹 lifecycle -------------------------------------------------------------
	Register(s.router, EventCreateRoom,
		func(ctx context.Context, p *rooms.Participant, req CreateRoomRequest) error {
			_, err := reg.CreateRoom(ctx, p, req.UserName)
			return err
		})

	Register(s.router, EventJoinRoom,
		func(_ context.Context, p *rooms.Participant, req JoinRoomRequest) error {
			_, err := reg.JoinRoom(p, req.RoomID, req.UserName)
			if errors.Is(err, rooms.ErrRoomNotFound) {
				reg.Router().To(p.Outbox(), fanout.Event{
					Name: rooms.EventRoomNotFound,
					Body: rooms.NormalizeID(req.RoomID),
				})
				return nil
			}
			return err
		})

	Register(s.router, EventLeaveRoom,
		func(_ context.Context, p *rooms.Participant, req RoomRef) error {
			room, err := reg.Target(p, req.RoomID)
			if err != nil {
				return err
			}
			reg.LeaveRoom(p)
			reg.Router().To(p.Outbox(), fanout.Event{
				Name: rooms.EventRoomLeft,
				Body: rooms.RoomLeft{RoomID: room.ID()},
			})
			return nil
		})

	// 🔹 strokes ---------------------------------------------------------------
	Register(s.router, EventBeginStroke,
		func(_ context.Context, p *rooms.Participant, req SnapshotRequest) error {
			return s.inRoom(p, req.RoomID, func(r *rooms.Room) error {
				return r.BeginStroke(p, canvas.Snapshot(req.State))
			})
		})

	Register(s.router, EventStrokeSegment,
		func(_ context.Context, p *rooms.Participant, req SegmentRequest) error {
			return s.inRoom(p, req.RoomID, func(r *rooms.Room) error {
				return r.Segment(p, req.segment())
			})
		})

	Register(s.router, EventDiscardStroke,
		func(_ context.Context, p *rooms.Participant, req RoomRef) error {
			return s.inRoom(p, req.RoomID, func(r *rooms.Room) error {
				return r.DiscardStroke(p)
			})
		})

	Register(s.router, EventCommitStroke,
		func(_ context.Context, p *rooms.Participant, req SnapshotRequest) error {
			return s.inRoom(p, req.RoomID, func(r *rooms.Room) error {
				return r.CommitStroke(p, canvas.Snapshot(req.State))
			})
		})

	Register(s.router, EventStrokeEnd,
		func(_ context.Context, p *rooms.Participant, req RoomRef) error {
			return s.inRoom(p, req.RoomID, func(r *rooms.Room) error {
				return r.StrokeEnd(p)
			})
		})

	// 🔹 history ---------------------------------------------------------------
	Register(s.router, EventClear,
		func(_ context.Context, p *rooms.Participant, req RoomRef) error {
			return s.inRoom(p, req.RoomID, func(r *rooms.Room) error {
				return r.Clear(p)
			})
		})

	Register(s.router, EventUndo,
		func(_ context.Context, p *rooms.Participant, req RoomRef) error {
			return s.inRoom(p, req.RoomID, func(r *rooms.Room) error {
				return r.Undo(p)
			})
		})

	Register(s.router, EventRedo,
		func(_ context.Context, p *rooms.Participant, req RoomRef) error {
			return s.inRoom(p, req.RoomID, func(r *rooms.Room) error {
				return r.Redo(p)
			})
		})

	// 🔹 presence --------------------------------------------------------------
	Register(s.router, EventCursorMove,
		func(_ context.Context, p *rooms.Participant, req CursorRequest) error {
			return s.inRoom(p, req.RoomID, func(r *rooms.Room) error {
				return r.CursorMove(p, req.X, req.Y)
			})
		})

	Register(s.router, EventCursorLeave,
		func(_ context.Context, p *rooms.Participant, req RoomRef) error {
			return s.inRoom(p, req.RoomID, func(r *rooms.Room) error {
				return r.CursorLeave(p)
			})
		})
}

// inRoom runs fn against the room roomID resolves to for p.
func (s *WsServer) inRoom(p *rooms.Participant, roomID string, fn func(*rooms.Room) error) error {
	room, err := s.registry.Target(p, roomID)
	if err != nil {
		return err
	}
	return fn(room)
}
