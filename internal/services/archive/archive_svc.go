package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type SessionDTO struct {
	SessionID string     `json:"session_id" example:"0b5b0f7e-1c1e-4bd2-9b1c-1c1b8f1a2b3c"`
	RoomID    string     `json:"room_id"    example:"K3X9QZ"`
	OpenedAt  time.Time  `json:"opened_at"  example:"2025-07-27T16:05:05Z"`
	ClosedAt  *time.Time `json:"closed_at,omitempty" example:"2025-07-27T16:35:05Z"`
	Peak      int        `json:"peak_participants"`
	Strokes   int        `json:"strokes"`
	Undos     int        `json:"undos"`
	Redos     int        `json:"redos"`
	Clears    int        `json:"clears"`
}

var ErrSessionNotFound = errors.New("session not found")

// IArchiveService is the read side of the room session archive.
type IArchiveService interface {
	GetSession(ctx context.Context, id string) (*SessionDTO, error)
	ListSessions(ctx context.Context, limit, offset int) ([]SessionDTO, error)
}

type archiveService struct {
	db *sql.DB
}

var _ IArchiveService = (*archiveService)(nil)

func NewArchiveService(db *sql.DB) IArchiveService {
	return &archiveService{db: db}
}

const selectSession = `SELECT session_id, room_id, opened_at, closed_at,
                              peak_participants, strokes, undos, redos, clears
                         FROM room_sessions`

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(s scanner) (SessionDTO, error) {
	var (
		dto    SessionDTO
		closed sql.NullTime
	)
	err := s.Scan(&dto.SessionID, &dto.RoomID, &dto.OpenedAt, &closed,
		&dto.Peak, &dto.Strokes, &dto.Undos, &dto.Redos, &dto.Clears)
	if err != nil {
		return SessionDTO{}, err
	}
	if closed.Valid {
		t := closed.Time.UTC()
		dto.ClosedAt = &t
	}
	dto.OpenedAt = dto.OpenedAt.UTC()
	return dto, nil
}

func (svc *archiveService) GetSession(ctx context.Context, id string) (*SessionDTO, error) {
	row := svc.db.QueryRowContext(ctx, selectSession+" WHERE session_id = $1", id)
	dto, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
		}
		return nil, err
	}
	return &dto, nil
}

// ListSessions returns archived sessions, newest first.
func (svc *archiveService) ListSessions(ctx context.Context, limit, offset int) ([]SessionDTO, error) {
	if limit == 0 {
		limit = 10
	}
	rows, err := svc.db.QueryContext(ctx,
		selectSession+" ORDER BY opened_at DESC LIMIT $1 OFFSET $2", limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := make([]SessionDTO, 0, limit)
	for rows.Next() {
		dto, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, dto)
	}
	return list, rows.Err()
}
