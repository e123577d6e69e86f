package emit

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"
)

// LogEmitter implements Emitter by writing events to an io.Writer, either as
// human-readable lines or as JSON objects (one per line).
//
// Text format:
//
//	[2026-01-02T15:04:05Z] run=9f0c step=3 node=fetch node_complete {"type":"http"}
//
// The emitter serializes writes with a mutex so interleaved events from
// parallel foreach iterations stay line-atomic.
type LogEmitter struct {
	mu   sync.Mutex
	w    io.Writer
	json bool
}

// NewLogEmitter creates a LogEmitter writing to w. When jsonFormat is true
// each event is emitted as a single-line JSON object.
func NewLogEmitter(w io.Writer, jsonFormat bool) *LogEmitter {
	return &LogEmitter{w: w, json: jsonFormat}
}

// Emit writes one event. Write errors are ignored; observability must not
// fail the workflow.
func (l *LogEmitter) Emit(event Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.json {
		rec := map[string]any{
			"ts":     time.Now().UTC().Format(time.RFC3339Nano),
			"run_id": event.RunID,
			"step":   event.Step,
			"msg":    event.Msg,
		}
		if event.NodeID != "" {
			rec["node_id"] = event.NodeID
		}
		if len(event.Meta) > 0 {
			rec["meta"] = event.Meta
		}
		if b, err := json.Marshal(rec); err == nil {
			fmt.Fprintln(l.w, string(b))
		}
		return
	}

	line := fmt.Sprintf("[%s] run=%s step=%d", time.Now().UTC().Format(time.RFC3339), event.RunID, event.Step)
	if event.NodeID != "" {
		line += " node=" + event.NodeID
	}
	line += " " + event.Msg
	if len(event.Meta) > 0 {
		if b, err := json.Marshal(event.Meta); err == nil {
			line += " " + string(b)
		}
	}
	fmt.Fprintln(l.w, line)
}
