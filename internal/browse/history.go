package browse

// History is the in-memory back/forward stack for one browsing session.
// Navigating from the middle of the stack discards the forward entries,
// matching ordinary browser behavior. Nothing is persisted.
type History struct {
	urls []string
	pos  int // index of the current entry, -1 when empty
}

func NewHistory() *History {
	return &History{pos: -1}
}

// Push records a new current URL, truncating any forward entries.
func (h *History) Push(url string) {
	if h.pos >= 0 && h.urls[h.pos] == url {
		return
	}
	h.urls = append(h.urls[:h.pos+1], url)
	h.pos = len(h.urls) - 1
}

// Back moves to the previous entry, reporting false at the beginning.
func (h *History) Back() (string, bool) {
	if h.pos <= 0 {
		return "", false
	}
	h.pos--
	return h.urls[h.pos], true
}

// Forward moves to the next entry, reporting false at the end.
func (h *History) Forward() (string, bool) {
	if h.pos < 0 || h.pos >= len(h.urls)-1 {
		return "", false
	}
	h.pos++
	return h.urls[h.pos], true
}

// Current returns the current URL, if any.
func (h *History) Current() (string, bool) {
	if h.pos < 0 {
		return "", false
	}
	return h.urls[h.pos], true
}

// Len reports how many entries the stack holds.
func (h *History) Len() int {
	return len(h.urls)
}
