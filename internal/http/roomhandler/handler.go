package roomhandler

import (
	"errors"
	"net/http"

	"canvasroom/internal/rooms"
	"canvasroom/internal/services/archive"

	"github.com/gin-gonic/gin"
)

// LiveRooms is the read view of the room registry.
type LiveRooms interface {
	Rooms() []rooms.Info
	Lookup(roomID string) (*rooms.Room, bool)
	Len() int
}

type Handler struct {
	live    LiveRooms
	archive archive.IArchiveService
}

// New builds the REST handler. svc may be nil when the session archive
// is disabled; the /sessions routes then answer 503.
func New(live LiveRooms, svc archive.IArchiveService) *Handler {
	return &Handler{live: live, archive: svc}
}

func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/healthz", h.health)
	r.GET("/rooms", h.list)
	r.GET("/rooms/:id", h.info)
	r.GET("/sessions", h.sessions)
	r.GET("/sessions/:id", h.session)
}

// @Summary		Liveness check
// @Tags			Ops
// @Success		200	{object}	HealthResponse
// @Router			/healthz [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok", Rooms: h.live.Len()})
}

// @Summary		List live rooms
// @Description	Returns every room that currently has participants, oldest first.
// @Tags			Rooms
// @Success		200	{array}	rooms.Info
// @Router			/rooms [get]
func (h *Handler) list(c *gin.Context) {
	c.JSON(http.StatusOK, h.live.Rooms())
}

// @Summary		Get live room
// @Description	Returns participant count, history availability and counters of one live room.
// @Tags			Rooms
// @Param			id	path		string	true	"Room ID"	default(K3X9QZ)
// @Success		200	{object}	rooms.Info
// @Failure		404	{object}	ErrorResponse
// @Router			/rooms/{id} [get]
func (h *Handler) info(c *gin.Context) {
	room, ok := h.live.Lookup(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: rooms.ErrRoomNotFound.Error()})
		return
	}
	c.JSON(http.StatusOK, room.Info())
}

// @Summary		List archived sessions
// @Description	Retrieves a paginated list of room sessions, newest first.
// @Tags			Sessions
// @Param			limit	query		int	false	"Max results (0-100)"	minimum(0)	maximum(100)	default(10)
// @Param			offset	query		int	false	"Offset for pagination"	minimum(0)	default(0)
// @Success		200		{array}		archive.SessionDTO
// @Failure		400		{object}	ErrorResponse
// @Failure		500		{object}	ErrorResponse
// @Failure		503		{object}	ErrorResponse
// @Router			/sessions [get]
func (h *Handler) sessions(c *gin.Context) {
	if !h.archiveEnabled(c) {
		return
	}
	var q ListSessionsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	out, err := h.archive.ListSessions(c.Request.Context(), q.Limit, q.Offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, out)
}

// @Summary		Get archived session
// @Tags			Sessions
// @Param			id	path		string	true	"Session ID"
// @Success		200	{object}	archive.SessionDTO
// @Failure		404	{object}	ErrorResponse
// @Failure		503	{object}	ErrorResponse
// @Router			/sessions/{id} [get]
func (h *Handler) session(c *gin.Context) {
	if !h.archiveEnabled(c) {
		return
	}
	dto, err := h.archive.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, archive.ErrSessionNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, dto)
}

func (h *Handler) archiveEnabled(c *gin.Context) bool {
	if h.archive != nil {
		return true
	}
	c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "session archive disabled"})
	return false
}
