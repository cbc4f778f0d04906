// Package canvas holds the authoritative drawing history of one room: the
// committed canvas, the bounded undo stack, the redo stack and the
// pending-stroke slot used by the begin/commit/discard handshake.
//
// A Session is not safe for concurrent use. Its owner (rooms.Room) serializes
// every call.
package canvas

import "errors"

// DefaultHistoryLimit is the undo depth used when none is configured.
const DefaultHistoryLimit = 30

// Snapshot is an opaque whole-canvas image produced by a client. The server
// never looks inside it.
type Snapshot string

// Empty reports whether the canvas was never drawn on (or was cleared).
func (s Snapshot) Empty() bool { return s == "" }

// StrokeState is the pending-stroke protocol state.
type StrokeState int

const (
	Idle StrokeState = iota
	StrokeInFlight
	// Resolving only exists inside CommitStroke/DiscardStroke, between
	// consuming the pending snapshot and returning to Idle.
	Resolving
)

func (s StrokeState) String() string {
	switch s {
	case Idle:
		return "idle"
	case StrokeInFlight:
		return "stroke_in_flight"
	case Resolving:
		return "resolving"
	default:
		return "unknown"
	}
}

// ErrStaleStroke is returned by CommitStroke and DiscardStroke when no stroke
// is pending, e.g. after a clear or a disconnect raced the handshake.
var ErrStaleStroke = errors.New("no stroke in flight")

// Availability tells clients whether undo and redo can currently do anything.
type Availability struct {
	HasUndo bool `json:"hasUndo"`
	HasRedo bool `json:"hasRedo"`
}

type Session struct {
	canvas Snapshot
	undo   *stack
	redo   *stack

	state        StrokeState
	pending      Snapshot
	pendingOwner string

	evictions int
}

// NewSession returns an empty session whose undo stack keeps at most limit
// entries. A non-positive limit falls back to DefaultHistoryLimit.
func NewSession(limit int) *Session {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &Session{
		undo: newStack(limit),
		redo: newStack(0),
	}
}

// BeginStroke stores prior as the state to return to if the stroke is
// committed and later undone. A second begin before resolution overwrites
// the first pending snapshot; overwritten reports that case.
func (s *Session) BeginStroke(owner string, prior Snapshot) (overwritten bool) {
	overwritten = s.state == StrokeInFlight
	s.pending = prior
	s.pendingOwner = owner
	s.state = StrokeInFlight
	s.redo.reset()
	return overwritten
}

// CommitStroke moves the pending snapshot onto the undo stack and makes final
// the current canvas.
func (s *Session) CommitStroke(final Snapshot) error {
	if s.state != StrokeInFlight {
		return ErrStaleStroke
	}
	s.state = Resolving
	if s.undo.push(s.pending) {
		s.evictions++
	}
	s.canvas = final
	s.clearPending()
	return nil
}

// DiscardStroke drops the pending snapshot without touching history.
func (s *Session) DiscardStroke() error {
	if s.state != StrokeInFlight {
		return ErrStaleStroke
	}
	s.state = Resolving
	s.clearPending()
	return nil
}

// DiscardOwnedBy discards the pending stroke only if owner began it.
func (s *Session) DiscardOwnedBy(owner string) bool {
	if s.state != StrokeInFlight || s.pendingOwner != owner {
		return false
	}
	_ = s.DiscardStroke()
	return true
}

// Undo restores the most recent pre-stroke snapshot. It reports false and
// changes nothing when there is no history.
func (s *Session) Undo() bool {
	prev, ok := s.undo.pop()
	if !ok {
		return false
	}
	if !s.canvas.Empty() {
		s.redo.push(s.canvas)
	}
	s.canvas = prev
	return true
}

// Redo re-applies the most recently undone snapshot.
func (s *Session) Redo() bool {
	next, ok := s.redo.pop()
	if !ok {
		return false
	}
	if s.undo.push(s.canvas) {
		s.evictions++
	}
	s.canvas = next
	return true
}

// Clear empties the canvas and both stacks and abandons any pending stroke.
func (s *Session) Clear() {
	s.canvas = ""
	s.undo.reset()
	s.redo.reset()
	s.clearPending()
}

func (s *Session) clearPending() {
	s.pending = ""
	s.pendingOwner = ""
	s.state = Idle
}

func (s *Session) Canvas() Snapshot { return s.canvas }

func (s *Session) State() StrokeState { return s.state }

// Pending returns the in-flight pre-stroke snapshot and who began it.
func (s *Session) Pending() (snap Snapshot, owner string, ok bool) {
	if s.state != StrokeInFlight {
		return "", "", false
	}
	return s.pending, s.pendingOwner, true
}

func (s *Session) Availability() Availability {
	return Availability{HasUndo: s.undo.len() > 0, HasRedo: s.redo.len() > 0}
}

func (s *Session) UndoDepth() int { return s.undo.len() }

func (s *Session) RedoDepth() int { return s.redo.len() }

// UndoStack returns a copy of the undo stack, oldest first.
func (s *Session) UndoStack() []Snapshot { return s.undo.snapshot() }

// RedoStack returns a copy of the redo stack, oldest first.
func (s *Session) RedoStack() []Snapshot { return s.redo.snapshot() }

// Evictions counts undo entries dropped because the stack was full.
func (s *Session) Evictions() int { return s.evictions }
