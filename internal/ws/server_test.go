package ws

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"canvasroom/internal/canvas"
	"canvasroom/internal/rooms"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	t        *testing.T
	registry *rooms.Registry
	url      string
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	registry := rooms.NewRegistry(rooms.Options{})
	srv := NewWsServer(registry, nil, opts)

	engine := gin.New()
	engine.GET("/ws", srv.Handle)
	ts := httptest.NewServer(engine)
	t.Cleanup(ts.Close)

	return &harness{
		t:        t,
		registry: registry,
		url:      "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws",
	}
}

type peer struct {
	t    *testing.T
	conn *websocket.Conn
}

func (h *harness) dial() *peer {
	h.t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(h.url, nil)
	require.NoError(h.t, err)
	h.t.Cleanup(func() { _ = conn.Close() })
	return &peer{t: h.t, conn: conn}
}

func (p *peer) send(event string, body any) {
	p.t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(p.t, err)
	require.NoError(p.t, p.conn.WriteJSON(Envelope{Event: event, Body: raw}))
}

// expect reads the next frame and requires it to be event.
func (p *peer) expect(event string) json.RawMessage {
	p.t.Helper()
	_ = p.conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var env Envelope
	require.NoError(p.t, p.conn.ReadJSON(&env))
	require.Equal(p.t, event, env.Event, "body: %s", env.Body)
	return env.Body
}

func decodeAs[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

type restore struct {
	State   string `json:"state"`
	HasUndo bool   `json:"hasUndo"`
	HasRedo bool   `json:"hasRedo"`
}

func TestEndToEndSharedHistory(t *testing.T) {
	h := newHarness(t, Options{})
	alice := h.dial()
	bob := h.dial()

	alice.send(EventCreateRoom, CreateRoomRequest{UserName: "  Alice  "})
	created := decodeAs[rooms.RoomCreated](t, alice.expect(rooms.EventRoomCreated))
	assert.Len(t, created.RoomID, rooms.IDLength)
	assert.Equal(t, "Alice", created.UserName)
	assert.Equal(t, 1, created.UserCount)
	id := created.RoomID

	bob.send(EventJoinRoom, JoinRoomRequest{RoomID: strings.ToLower(id), UserName: ""})
	joined := decodeAs[rooms.RoomJoined](t, bob.expect(rooms.EventRoomJoined))
	assert.Equal(t, id, joined.RoomID)
	assert.Equal(t, "Anonymous", joined.UserName)
	assert.Empty(t, joined.CanvasState)
	assert.False(t, joined.HasUndo)
	roster := decodeAs[map[string]rooms.RosterEntry](t, bob.expect(rooms.EventExistingUsers))
	assert.Len(t, roster, 2)
	assert.Equal(t, 2, decodeAs[int](t, bob.expect(rooms.EventUserCount)))

	assert.Equal(t, 2, decodeAs[int](t, alice.expect(rooms.EventUserCount)))
	assert.Equal(t, "Anonymous", decodeAs[rooms.UserJoined](t, alice.expect(rooms.EventUserJoined)).Name)

	// stroke
	alice.send(EventBeginStroke, SnapshotRequest{RoomID: id, State: ""})
	alice.send(EventStrokeSegment, SegmentRequest{RoomID: id, X: 10, Y: 20, Color: "#000", Size: 5, Tool: "brush", IsStart: true})
	draw := decodeAs[rooms.Draw](t, bob.expect(rooms.EventDraw))
	assert.Equal(t, 10.0, draw.X)
	assert.True(t, draw.IsStart)

	alice.send(EventStrokeEnd, id)
	bob.expect(rooms.EventMouseUp)

	alice.send(EventCommitStroke, SnapshotRequest{RoomID: id, State: "S1"})
	for _, p := range []*peer{alice, bob} {
		flags := decodeAs[restore](t, p.expect(rooms.EventHistoryUpdate))
		assert.True(t, flags.HasUndo)
		assert.False(t, flags.HasRedo)
	}

	// bob undoes alice's stroke, addressing the room with a bare string
	bob.send(EventUndo, id)
	for _, p := range []*peer{alice, bob} {
		r := decodeAs[restore](t, p.expect(rooms.EventCanvasRestore))
		assert.Equal(t, restore{State: "", HasUndo: false, HasRedo: true}, r)
	}

	bob.send(EventRedo, RoomRef{RoomID: id})
	for _, p := range []*peer{alice, bob} {
		r := decodeAs[restore](t, p.expect(rooms.EventCanvasRestore))
		assert.Equal(t, restore{State: "S1", HasUndo: true, HasRedo: false}, r)
	}

	// commit with nothing in flight is silently ignored; the next frame
	// alice sees is the answer to her cursor move
	alice.send(EventCommitStroke, SnapshotRequest{RoomID: id, State: "S2"})
	alice.send(EventCursorMove, CursorRequest{RoomID: id, X: 3, Y: 4})
	cur := decodeAs[rooms.CursorMove](t, bob.expect(rooms.EventCursorMove))
	assert.Equal(t, "Alice", cur.Name)
	assert.Equal(t, created.UserColor, cur.Color)

	// bob disconnects
	require.NoError(t, bob.conn.Close())
	assert.Equal(t, 1, decodeAs[int](t, alice.expect(rooms.EventUserCount)))
	alice.expect(rooms.EventCursorHide)
	alice.expect(rooms.EventUserLeft)

	alice.send(EventLeaveRoom, id)
	left := decodeAs[rooms.RoomLeft](t, alice.expect(rooms.EventRoomLeft))
	assert.Equal(t, id, left.RoomID)
	assert.Equal(t, 0, h.registry.Len())
}

func TestEndToEndErrors(t *testing.T) {
	h := newHarness(t, Options{})
	c := h.dial()

	c.send(EventJoinRoom, JoinRoomRequest{RoomID: "zzzzzz"})
	assert.Equal(t, "ZZZZZZ", decodeAs[string](t, c.expect(rooms.EventRoomNotFound)))

	c.send("teleport", nil)
	assert.Equal(t, ErrUnknownEvent.Error(), decodeAs[rooms.ErrorBody](t, c.expect(rooms.EventError)).Error)

	require.NoError(t, c.conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	assert.Equal(t, "malformed_frame", decodeAs[rooms.ErrorBody](t, c.expect(rooms.EventError)).Error)

	c.send(EventStrokeSegment, SegmentRequest{Size: -3})
	assert.Contains(t, decodeAs[rooms.ErrorBody](t, c.expect(rooms.EventError)).Error, ErrBadBody.Error())

	// commands for a room the peer is not in produce nothing
	c.send(EventUndo, "ZZZZZZ")
	c.send(EventCreateRoom, CreateRoomRequest{UserName: "solo"})
	c.expect(rooms.EventRoomCreated)
}

func TestEndToEndRateLimitSparesCommands(t *testing.T) {
	h := newHarness(t, Options{MessagesPerSecond: 0.001, MessageBurst: 2})
	c := h.dial()

	c.send("teleport", nil)
	c.send("teleport", nil)
	c.send("teleport", nil) // dropped
	c.send(EventCreateRoom, CreateRoomRequest{UserName: "late"})

	c.expect(rooms.EventError)
	c.expect(rooms.EventError)
	created := decodeAs[rooms.RoomCreated](t, c.expect(rooms.EventRoomCreated))
	assert.Equal(t, "late", created.UserName)
	assert.Equal(t, 1, h.registry.Len())
}

func TestCommitAfterRelayBurstIsApplied(t *testing.T) {
	h := newHarness(t, Options{MessagesPerSecond: 0.001, MessageBurst: 2})
	alice := h.dial()
	bob := h.dial()

	alice.send(EventCreateRoom, CreateRoomRequest{UserName: "Alice"})
	id := decodeAs[rooms.RoomCreated](t, alice.expect(rooms.EventRoomCreated)).RoomID
	bob.send(EventJoinRoom, JoinRoomRequest{RoomID: id, UserName: "Bob"})
	bob.expect(rooms.EventRoomJoined)
	bob.expect(rooms.EventExistingUsers)
	bob.expect(rooms.EventUserCount)
	alice.expect(rooms.EventUserCount)
	alice.expect(rooms.EventUserJoined)

	alice.send(EventBeginStroke, SnapshotRequest{RoomID: id, State: "snap0"})
	for i := 0; i < 50; i++ {
		alice.send(EventStrokeSegment, SegmentRequest{RoomID: id, X: float64(i), Y: 1, Color: "#000", Size: 2, Tool: "brush"})
		alice.send(EventCursorMove, CursorRequest{RoomID: id, X: float64(i), Y: 1})
	}
	alice.send(EventCommitStroke, SnapshotRequest{RoomID: id, State: "snap1"})

	// the burst covers one segment and one cursor move; the rest are dropped
	bob.expect(rooms.EventDraw)
	bob.expect(rooms.EventCursorMove)
	flags := decodeAs[restore](t, bob.expect(rooms.EventHistoryUpdate))
	assert.True(t, flags.HasUndo)
	alice.expect(rooms.EventHistoryUpdate)

	room, ok := h.registry.Lookup(id)
	require.True(t, ok)
	st := room.State()
	assert.Equal(t, canvas.Snapshot("snap1"), st.Canvas)
	assert.Equal(t, []canvas.Snapshot{"snap0"}, st.UndoStack)
	assert.Equal(t, canvas.Idle, st.Stroke)
}
