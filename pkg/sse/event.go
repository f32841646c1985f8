// Package sse implements just enough of Server-Sent Events for chainchat: a
// writer the API uses to stream followed messages, and a reader that parses
// such a stream back into events, optionally teeing the raw bytes elsewhere.
//
// See https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

// Event is a single SSE event, delimited by a blank line on the wire.
type Event struct {
	// Type is the "event:" field. Empty means the default "message" type.
	Type string

	// Data holds every "data:" line of the event joined with "\n".
	Data string

	// ID is the "id:" field, if present.
	ID string
}
