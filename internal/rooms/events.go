package rooms

import "canvasroom/internal/canvas"

// Outbound event names.
const (
	EventRoomCreated   = "room-created"
	EventRoomJoined    = "room-joined"
	EventRoomLeft      = "room-left"
	EventRoomNotFound  = "room-not-found"
	EventExistingUsers = "existing-users"
	EventUserCount     = "user-count-update"
	EventUserJoined    = "user-joined"
	EventUserLeft      = "user-left"
	EventDraw          = "draw"
	EventMouseUp       = "mouseup"
	EventClear         = "clear"
	EventCanvasRestore = "canvas-restore"
	EventHistoryUpdate = "history-update"
	EventCursorMove    = "cursor-move"
	EventCursorHide    = "cursor-hide"
	EventError         = "error"
)

type RoomCreated struct {
	RoomID    string `json:"roomId"`
	UserColor string `json:"userColor"`
	UserName  string `json:"userName"`
	UserCount int    `json:"userCount"`
}

// RoomJoined is what a joiner needs to render the room: the current canvas,
// history availability and the participant count.
type RoomJoined struct {
	RoomID      string          `json:"roomId"`
	UserColor   string          `json:"userColor"`
	UserName    string          `json:"userName"`
	UserCount   int             `json:"userCount"`
	CanvasState canvas.Snapshot `json:"canvasState,omitempty"`
	canvas.Availability
}

type RoomLeft struct {
	RoomID string `json:"roomId"`
}

// RosterEntry is one participant as seen by the others.
type RosterEntry struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

type UserJoined struct {
	SocketID string `json:"socketId"`
	Name     string `json:"name"`
	Color    string `json:"color"`
}

// Segment is one pointer sample of a stroke, relayed verbatim.
type Segment struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Color   string  `json:"color"`
	Size    float64 `json:"size"`
	Tool    string  `json:"tool"`
	IsStart bool    `json:"isStart,omitempty"`
}

type Draw struct {
	SocketID string `json:"socketId"`
	Segment
}

type MouseUp struct {
	SocketID string `json:"socketId"`
}

type CanvasRestore struct {
	State canvas.Snapshot `json:"state"`
	canvas.Availability
}

type CursorMove struct {
	SocketID string  `json:"socketId"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Color    string  `json:"color"`
	Name     string  `json:"name"`
}

type ErrorBody struct {
	Error string `json:"error"`
}
