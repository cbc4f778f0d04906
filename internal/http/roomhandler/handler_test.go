package roomhandler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"canvasroom/internal/rooms"
	"canvasroom/internal/services/archive"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type discard struct{ id string }

func (d discard) ID() string            { return d.id }
func (d discard) Enqueue(_ []byte) bool { return true }

type fakeArchive struct {
	list     []archive.SessionDTO
	err      error
	gotLimit int
	gotOff   int
}

func (f *fakeArchive) ListSessions(_ context.Context, limit, offset int) ([]archive.SessionDTO, error) {
	f.gotLimit, f.gotOff = limit, offset
	return f.list, f.err
}

func (f *fakeArchive) GetSession(_ context.Context, id string) (*archive.SessionDTO, error) {
	for i := range f.list {
		if f.list[i].SessionID == id {
			return &f.list[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", archive.ErrSessionNotFound, id)
}

func newEngine(t *testing.T, svc archive.IArchiveService) (*gin.Engine, *rooms.Registry) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	reg := rooms.NewRegistry(rooms.Options{})
	r := gin.New()
	New(reg, svc).Register(r)
	return r, reg
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestListAndGetRooms(t *testing.T) {
	engine, reg := newEngine(t, nil)

	p := reg.Connect("p1", discard{"p1"})
	room, err := reg.CreateRoom(context.Background(), p, "Alice")
	require.NoError(t, err)

	w := get(engine, "/rooms")
	require.Equal(t, http.StatusOK, w.Code)
	var list []rooms.Info
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, room.ID(), list[0].ID)
	assert.Equal(t, 1, list[0].Participants)

	w = get(engine, "/rooms/"+room.ID())
	require.Equal(t, http.StatusOK, w.Code)
	var info rooms.Info
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, 1, info.Peak)

	w = get(engine, "/rooms/NOPE00")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"room not found"}`, w.Body.String())

	w = get(engine, "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","rooms":1}`, w.Body.String())
}

func TestSessionsDisabled(t *testing.T) {
	engine, _ := newEngine(t, nil)
	assert.Equal(t, http.StatusServiceUnavailable, get(engine, "/sessions").Code)
	assert.Equal(t, http.StatusServiceUnavailable, get(engine, "/sessions/abc").Code)
}

func TestSessions(t *testing.T) {
	fa := &fakeArchive{list: []archive.SessionDTO{{
		SessionID: "s-1",
		RoomID:    "K3X9QZ",
		OpenedAt:  time.Date(2025, 7, 27, 16, 5, 5, 0, time.UTC),
		Peak:      2,
	}}}
	engine, _ := newEngine(t, fa)

	w := get(engine, "/sessions")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 10, fa.gotLimit)
	assert.Equal(t, 0, fa.gotOff)
	var out []archive.SessionDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "K3X9QZ", out[0].RoomID)

	get(engine, "/sessions?limit=25&offset=50")
	assert.Equal(t, 25, fa.gotLimit)
	assert.Equal(t, 50, fa.gotOff)

	assert.Equal(t, http.StatusBadRequest, get(engine, "/sessions?limit=500").Code)
	assert.Equal(t, http.StatusOK, get(engine, "/sessions/s-1").Code)
	assert.Equal(t, http.StatusNotFound, get(engine, "/sessions/s-2").Code)

	fa.err = errors.New("db down")
	assert.Equal(t, http.StatusInternalServerError, get(engine, "/sessions").Code)
}
