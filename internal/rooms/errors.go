package rooms

import (
	"errors"

	"canvasroom/internal/canvas"
)

var (
	// ErrRoomNotFound is returned when a join targets an id with no live room.
	ErrRoomNotFound = errors.New("room not found")
	// ErrInvalidTarget is returned for commands with no room id, or for a
	// room the participant is not a member of. Callers drop these silently.
	ErrInvalidTarget = errors.New("invalid command target")
	// ErrIDSpaceExhausted means no free room id could be reserved.
	ErrIDSpaceExhausted = errors.New("room id space exhausted")
	// ErrStaleStroke is a commit or discard with no stroke in flight.
	ErrStaleStroke = canvas.ErrStaleStroke
)

// Silent reports whether err is one of the no-op conditions that must not
// be surfaced to the client.
func Silent(err error) bool {
	return errors.Is(err, ErrInvalidTarget) || errors.Is(err, ErrStaleStroke)
}
