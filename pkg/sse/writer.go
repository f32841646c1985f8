package sse

import (
	"bufio"
	"errors"
	"strings"
)

// ErrInvalidField is returned when an event type or ID contains a line break,
// which would split the field across lines on the wire.
var ErrInvalidField = errors.New("sse: field contains a line break")

// Write encodes ev to w and flushes it. Multi-line data is split into one
// "data:" line per line.
func Write(w *bufio.Writer, ev Event) error {
	if strings.ContainsAny(ev.Type, "\r\n") || strings.ContainsAny(ev.ID, "\r\n") {
		return ErrInvalidField
	}

	if ev.ID != "" {
		w.WriteString("id: " + ev.ID + "\n")
	}
	if ev.Type != "" {
		w.WriteString("event: " + ev.Type + "\n")
	}
	for line := range strings.SplitSeq(ev.Data, "\n") {
		w.WriteString("data: " + line + "\n")
	}
	w.WriteString("\n")

	return w.Flush()
}

// Comment writes a comment line and flushes it. Clients ignore comments, which
// makes them useful as keep-alives on idle streams.
func Comment(w *bufio.Writer, text string) error {
	w.WriteString(": " + strings.ReplaceAll(text, "\n", " ") + "\n\n")
	return w.Flush()
}
