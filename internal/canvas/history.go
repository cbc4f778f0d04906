package canvas

// stack is an ordered sequence of snapshots, most-recent-last. A positive
// limit bounds it; pushing at capacity evicts the oldest entry.
type stack struct {
	items []Snapshot
	limit int
}

func newStack(limit int) *stack { return &stack{limit: limit} }

// push appends s and reports whether an entry was evicted to make room.
func (st *stack) push(s Snapshot) (evicted bool) {
	if st.limit > 0 && len(st.items) >= st.limit {
		copy(st.items, st.items[1:])
		st.items[len(st.items)-1] = s
		return true
	}
	st.items = append(st.items, s)
	return false
}

func (st *stack) pop() (Snapshot, bool) {
	if len(st.items) == 0 {
		return "", false
	}
	last := len(st.items) - 1
	s := st.items[last]
	st.items[last] = ""
	st.items = st.items[:last]
	return s, true
}

func (st *stack) len() int { return len(st.items) }

func (st *stack) reset() { st.items = nil }

func (st *stack) snapshot() []Snapshot {
	out := make([]Snapshot, len(st.items))
	copy(out, st.items)
	return out
}
