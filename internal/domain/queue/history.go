package queue

// DefaultRecentLimit is the number of recent selections excluded by shuffle.
const DefaultRecentLimit = 5

// History is a bounded FIFO of recently selected queue indices.
// The oldest entry is evicted when a push exceeds the capacity.
type History struct {
	buf   []int
	start int
	size  int
}

// NewHistory creates a history holding at most limit indices.
// A non-positive limit falls back to DefaultRecentLimit.
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	return &History{buf: make([]int, limit)}
}

// Push records index, evicting the oldest entry if the history is full.
func (h *History) Push(index int) {
	if h.size < len(h.buf) {
		h.buf[(h.start+h.size)%len(h.buf)] = index
		h.size++
		return
	}
	h.buf[h.start] = index
	h.start = (h.start + 1) % len(h.buf)
}

// Contains reports whether index is among the recent entries.
func (h *History) Contains(index int) bool {
	for i := 0; i < h.size; i++ {
		if h.buf[(h.start+i)%len(h.buf)] == index {
			return true
		}
	}
	return false
}

// Items returns the entries from oldest to newest.
func (h *History) Items() []int {
	items := make([]int, h.size)
	for i := 0; i < h.size; i++ {
		items[i] = h.buf[(h.start+i)%len(h.buf)]
	}
	return items
}

// Len returns the number of entries.
func (h *History) Len() int {
	return h.size
}

// Cap returns the capacity.
func (h *History) Cap() int {
	return len(h.buf)
}

// Clear removes all entries.
func (h *History) Clear() {
	h.start = 0
	h.size = 0
}
