// Package inbox implements the Tool Queue spec §4.B describes: a
// fixed-capacity ring buffer of pending inbound messages for one tool, with
// an overflow policy and lifetime counters.
package inbox

import (
	"github.com/tsiyukino/yukiframe/internal/frameerr"
)

// Policy controls what happens when Add is called on a full Inbox.
type Policy int

const (
	// DropOldest frees the head slot to make room for the new message.
	// Add returns nil in that case; the eviction shows only as a rise in
	// Dropped, which the caller checks to log a warning.
	DropOldest Policy = iota
	// DropNewest rejects the incoming message and counts it as dropped.
	DropNewest
	// Block degenerates to DropNewest-with-QueueFull in this single
	// threaded supervisor: there is no producer to suspend, so the
	// producer is expected to retry on a later tick (spec §4.B).
	Block
)

// DefaultCapacity is the default inbox size a newly registered tool gets
// (spec §3).
const DefaultCapacity = 100

// Inbox is a bounded ring buffer of owned strings. The zero value is not
// usable; construct with New.
type Inbox struct {
	buf      []string
	head     int
	tail     int
	count    int
	policy   Policy
	dropped  uint64
	delivered uint64
}

// New allocates an empty Inbox with the given capacity and overflow
// policy. capacity <= 0 falls back to DefaultCapacity.
func New(capacity int, policy Policy) *Inbox {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Inbox{
		buf:    make([]string, capacity),
		policy: policy,
	}
}

func (q *Inbox) Capacity() int { return len(q.buf) }
func (q *Inbox) Count() int    { return q.count }
func (q *Inbox) IsEmpty() bool { return q.count == 0 }
func (q *Inbox) IsFull() bool  { return q.count == len(q.buf) }
func (q *Inbox) Dropped() uint64   { return q.dropped }
func (q *Inbox) Delivered() uint64 { return q.delivered }
func (q *Inbox) Policy() Policy    { return q.policy }

// Add appends msg, applying the overflow policy when the inbox is full.
// It returns QueueFull when the message was not appended (DropNewest/Block
// when full); DropOldest always appends, evicting the head first.
func (q *Inbox) Add(msg string) error {
	if q.count < len(q.buf) {
		q.buf[q.tail] = msg
		q.tail = (q.tail + 1) % len(q.buf)
		q.count++
		return nil
	}

	switch q.policy {
	case DropOldest:
		q.buf[q.head] = ""
		q.head = (q.head + 1) % len(q.buf)
		q.count--
		q.dropped++
		// Now append normally; guaranteed room since we just freed a slot.
		q.buf[q.tail] = msg
		q.tail = (q.tail + 1) % len(q.buf)
		q.count++
		return nil
	default: // DropNewest, Block
		q.dropped++
		return frameerr.New(frameerr.QueueFull, "inbox.Add", nil)
	}
}

// Peek returns the head message without mutating state. ok is false when
// the inbox is empty.
func (q *Inbox) Peek() (msg string, ok bool) {
	if q.count == 0 {
		return "", false
	}
	return q.buf[q.head], true
}

// Remove discards the head message, advancing head and incrementing the
// delivered counter. It's a no-op on an empty inbox.
func (q *Inbox) Remove() {
	if q.count == 0 {
		return
	}
	q.buf[q.head] = ""
	q.head = (q.head + 1) % len(q.buf)
	q.count--
	q.delivered++
}

// ReplaceHead overwrites the head message in place without changing
// count/head/tail. Used when only part of the head message could be
// written out: the unsent remainder goes back in the same slot so it's
// the next thing delivered, preserving FIFO order.
func (q *Inbox) ReplaceHead(msg string) {
	if q.count == 0 {
		return
	}
	q.buf[q.head] = msg
}

// Clear frees every stored slot and resets head/tail/count. Lifetime
// counters (dropped, delivered) are preserved, per spec §3.
func (q *Inbox) Clear() {
	for i := range q.buf {
		q.buf[i] = ""
	}
	q.head, q.tail, q.count = 0, 0, 0
}
