package httputil

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// EventStream writes server-sent events, flushing after each one so
// consumers observe ticks as they happen rather than on buffer boundaries.
type EventStream struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewEventStream prepares w for server-sent events. Returns false when the
// underlying writer cannot flush, which makes streaming pointless.
func NewEventStream(w http.ResponseWriter) (*EventStream, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return &EventStream{w: w, flusher: flusher}, true
}

// Write emits one named event with a JSON payload.
func (s *EventStream) Write(event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, data)
	s.flusher.Flush()
}
