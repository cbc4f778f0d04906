package ws

import (
	"bytes"
	"encoding/json"

	"canvasroom/internal/rooms"
)

// Envelope wraps every WS frame.
type Envelope struct {
	Event string          `json:"event"`          // e.g. "commit-stroke"
	Body  json.RawMessage `json:"body,omitempty"` // arbitrary JSON
}

// ──────────────────────────── Request DTOs ─────────────────────────

// RoomRef addresses a room. Clients may send either {"roomId":"K3X9QZ"}
// or the bare string "K3X9QZ".
type RoomRef struct {
	RoomID string `json:"roomId" validate:"max=64"`
}

func (r *RoomRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &r.RoomID)
	}
	type plain RoomRef
	return json.Unmarshal(data, (*plain)(r))
}

// CreateRoomRequest is the body for "create-room".
type CreateRoomRequest struct {
	UserName string `json:"userName" validate:"max=256"`
}

// JoinRoomRequest is the body for "join-room".
type JoinRoomRequest struct {
	RoomID   string `json:"roomId"   validate:"max=64"`
	UserName string `json:"userName" validate:"max=256"`
}

// SnapshotRequest carries an opaque canvas image, for "begin-stroke" (the
// canvas before the stroke) and "commit-stroke" (the canvas after it).
type SnapshotRequest struct {
	RoomID string `json:"roomId" validate:"max=64"`
	State  string `json:"state"`
}

// SegmentRequest is the body for "stroke-segment".
type SegmentRequest struct {
	RoomID  string  `json:"roomId"  validate:"max=64"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Color   string  `json:"color"   validate:"max=64"`
	Size    float64 `json:"size"    validate:"gte=0"`
	Tool    string  `json:"tool"    validate:"max=32"`
	IsStart bool    `json:"isStart"`
}

func (s SegmentRequest) segment() rooms.Segment {
	return rooms.Segment{X: s.X, Y: s.Y, Color: s.Color, Size: s.Size, Tool: s.Tool, IsStart: s.IsStart}
}

// CursorRequest is the body for "cursor-move".
type CursorRequest struct {
	RoomID string  `json:"roomId" validate:"max=64"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}
