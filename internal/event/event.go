// Package event implements the wire protocol and in-memory Event value
// spec §3/§6 define: a (type, sender, data) triple carried as one
// newline-terminated, pipe-delimited line between the supervisor and its
// tools.
package event

import (
	"strings"
	"time"

	"github.com/tsiyukino/yukiframe/internal/frameerr"
)

const (
	MaxTypeLen   = 63
	MaxSenderLen = 63
	MaxDataLen   = 4095
)

// Event is the supervisor's unit of fan-out.
type Event struct {
	Type      string
	Sender    string
	Data      string
	Timestamp time.Time
}

// Format renders e in wire form: "TYPE|SENDER|DATA\n". Pipe characters
// inside Data are preserved literally — Parse only ever splits on the
// first two pipes, so round-tripping through Format/Parse is safe even
// when Data itself contains '|'.
func Format(e Event) string {
	var b strings.Builder
	b.Grow(len(e.Type) + len(e.Sender) + len(e.Data) + 3)
	b.WriteString(e.Type)
	b.WriteByte('|')
	b.WriteString(e.Sender)
	b.WriteByte('|')
	b.WriteString(e.Data)
	b.WriteByte('\n')
	return b.String()
}

// Parse decodes one wire line into an Event. The trailing newline is
// optional on input (Parse accepts a line with or without it); TYPE is
// everything before the first pipe, SENDER everything between the first
// and second pipe, and DATA is the remainder up to (but not including) the
// newline. A missing first or second pipe is ParseFailed.
func Parse(line string) (Event, error) {
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")

	firstPipe := strings.IndexByte(line, '|')
	if firstPipe < 0 {
		return Event{}, frameerr.New(frameerr.ParseFailed, "event.Parse", errMissingPipe("type"))
	}
	rest := line[firstPipe+1:]
	secondPipe := strings.IndexByte(rest, '|')
	if secondPipe < 0 {
		return Event{}, frameerr.New(frameerr.ParseFailed, "event.Parse", errMissingPipe("sender"))
	}

	return Event{
		Type:   line[:firstPipe],
		Sender: rest[:secondPipe],
		Data:   rest[secondPipe+1:],
	}, nil
}

type parseErr string

func (e parseErr) Error() string { return string(e) }

func errMissingPipe(field string) error {
	return parseErr("missing pipe delimiting " + field)
}

// Clamp truncates s to at most n bytes, the way publish() enforces the
// type/sender/data caps from spec §3 before copying into a new Event.
func Clamp(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
