package timeline

import "math"

// Entry is one tick of live history. Index counts ticks since the history
// was created or cleared and keeps increasing across evictions.
type Entry struct {
	Index int64
	Note  float64
}

// Valid reports whether the entry carries a finite note.
func (e Entry) Valid() bool {
	return !math.IsNaN(e.Note) && !math.IsInf(e.Note, 0)
}

// History is a fixed-capacity FIFO of per-tick note numbers backed by a
// ring buffer. Pushing onto a full history evicts the oldest entry.
type History struct {
	entries []Entry
	head    int // position of the oldest entry
	size    int
	next    int64
}

// NewHistory creates a history holding at most capacity entries.
func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = 1
	}
	return &History{entries: make([]Entry, capacity)}
}

// Push appends a note (NaN for a silent tick) and returns the entry that
// was evicted to make room, if any.
func (h *History) Push(note float64) (evicted Entry, ok bool) {
	e := Entry{Index: h.next, Note: note}
	h.next++

	if h.size == len(h.entries) {
		evicted, ok = h.entries[h.head], true
		h.entries[h.head] = e
		h.head = (h.head + 1) % len(h.entries)
		return evicted, ok
	}

	h.entries[(h.head+h.size)%len(h.entries)] = e
	h.size++
	return Entry{}, false
}

// Len returns the number of stored entries.
func (h *History) Len() int { return h.size }

// Cap returns the capacity.
func (h *History) Cap() int { return len(h.entries) }

// At returns the i-th entry, oldest first.
func (h *History) At(i int) Entry {
	if i < 0 || i >= h.size {
		panic("timeline: history index out of range")
	}
	return h.entries[(h.head+i)%len(h.entries)]
}

// Last returns the newest entry.
func (h *History) Last() (Entry, bool) {
	if h.size == 0 {
		return Entry{}, false
	}
	return h.At(h.size - 1), true
}

// Entries copies the stored entries, oldest first.
func (h *History) Entries() []Entry {
	out := make([]Entry, h.size)
	for i := range out {
		out[i] = h.At(i)
	}
	return out
}

// Range returns the range of the valid notes currently stored.
func (h *History) Range() Range {
	r := EmptyRange()
	for i := 0; i < h.size; i++ {
		r = r.Include(h.At(i).Note)
	}
	return r
}

// Clear drops every entry and restarts the index.
func (h *History) Clear() {
	h.head, h.size, h.next = 0, 0, 0
}
