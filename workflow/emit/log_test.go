package emit

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestLogEmitterText(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogEmitter(&buf, false)
	l.Emit(Event{
		RunID:  "abc",
		NodeID: "fetch",
		Step:   2,
		Msg:    MsgNodeComplete,
		Meta:   map[string]any{"type": "http"},
	})

	line := strings.TrimSpace(buf.String())
	for _, want := range []string{"run=abc", "step=2", "node=fetch", MsgNodeComplete, `"type":"http"`} {
		if !strings.Contains(line, want) {
			t.Errorf("line %q missing %q", line, want)
		}
	}
}

func TestLogEmitterTextOmitsEmptyNode(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogEmitter(&buf, false)
	l.Emit(Event{RunID: "abc", Msg: MsgRunStart})
	if strings.Contains(buf.String(), "node=") {
		t.Errorf("run-level event carries node: %q", buf.String())
	}
}

func TestLogEmitterJSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogEmitter(&buf, true)
	l.Emit(Event{RunID: "abc", NodeID: "parse", Step: 1, Msg: MsgNodeError, Meta: map[string]any{"error": "boom"}})
	l.Emit(Event{RunID: "abc", Msg: MsgRunComplete})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d", len(lines))
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("line not json: %v", err)
	}
	if rec["run_id"] != "abc" || rec["node_id"] != "parse" || rec["msg"] != MsgNodeError {
		t.Errorf("rec = %v", rec)
	}
	meta := rec["meta"].(map[string]any)
	if meta["error"] != "boom" {
		t.Errorf("meta = %v", meta)
	}
	if _, has := rec["ts"]; !has {
		t.Error("timestamp missing")
	}
}
