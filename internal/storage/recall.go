package storage

// Recall browses a list of lines from newest to oldest the way a prompt's
// up and down keys do. Index -1 means not browsing.
type Recall struct {
	lines []string
	index int
}

// NewRecall starts a cursor over lines, ordered oldest first.
func NewRecall(lines []string) *Recall {
	return &Recall{lines: append([]string(nil), lines...), index: -1}
}

// Push records a new line and stops browsing.
func (r *Recall) Push(line string) {
	r.lines = append(r.lines, line)
	r.index = -1
}

// Prev moves toward older lines. It stays on the oldest line once reached.
func (r *Recall) Prev() (string, bool) {
	if len(r.lines) == 0 {
		return "", false
	}
	switch {
	case r.index == -1:
		r.index = len(r.lines) - 1
	case r.index > 0:
		r.index--
	}
	return r.lines[r.index], true
}

// Next moves toward newer lines. Moving past the newest line stops browsing
// and returns an empty line.
func (r *Recall) Next() (string, bool) {
	if r.index == -1 {
		return "", false
	}
	if r.index == len(r.lines)-1 {
		r.index = -1
		return "", true
	}
	r.index++
	return r.lines[r.index], true
}

// Reset stops browsing.
func (r *Recall) Reset() {
	r.index = -1
}
