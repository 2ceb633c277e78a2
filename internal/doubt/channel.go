package doubt

import (
	"strings"
	"sync"

	"medquiz-service/internal/domain"
)

// Ticket identifies one outstanding doubt. It is handed back on completion so
// results that arrive after the transcript was reset can be discarded.
type Ticket struct {
	epoch uint64
	Text  string
}

// Channel is the append-only doubt transcript of the current question. At
// most one doubt may be awaiting resolution at a time.
type Channel struct {
	mu          sync.Mutex
	epoch       uint64
	entries     []domain.DoubtEntry
	outstanding bool
}

func NewChannel() *Channel {
	return &Channel{}
}

// Begin appends a doubt entry and marks it outstanding.
func (c *Channel) Begin(text string) (Ticket, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Ticket{}, domain.ErrEmptyInput
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.outstanding {
		return Ticket{}, domain.ErrDoubtInFlight
	}
	c.outstanding = true
	c.entries = append(c.entries, domain.DoubtEntry{Role: domain.RoleDoubt, Text: trimmed})
	return Ticket{epoch: c.epoch, Text: trimmed}, nil
}

// Resolve appends the answer for t. It returns false and leaves the
// transcript untouched when t belongs to a previous question.
func (c *Channel) Resolve(t Ticket, answer string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.epoch != c.epoch {
		return false
	}
	c.outstanding = false
	c.entries = append(c.entries, domain.DoubtEntry{Role: domain.RoleAnswer, Text: answer})
	return true
}

// Fail releases the outstanding slot without an answer entry.
func (c *Channel) Fail(t Ticket) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.epoch != c.epoch {
		return false
	}
	c.outstanding = false
	return true
}

// Reset clears the transcript for the next question. Outstanding tickets
// become stale.
func (c *Channel) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	c.entries = nil
	c.outstanding = false
}

// Pending reports whether a doubt is awaiting resolution.
func (c *Channel) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outstanding
}

// Transcript returns a copy of the entries in order.
func (c *Channel) Transcript() []domain.DoubtEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.DoubtEntry, len(c.entries))
	copy(out, c.entries)
	return out
}
