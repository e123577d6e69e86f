package workflow

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/dshills/workflow-go/workflow/emit"
)

func TestRunLinearWorkflow(t *testing.T) {
	e := NewEngine()
	wf := NewWorkflow().
		AddNode("s", &Node{Type: NodeStart}).
		AddNode("e", &Node{Type: NodeEnd}).
		Connect("c1", "s", "e")

	result := e.Run(context.Background(), wf)
	if result.Status != StatusSuccess {
		t.Fatalf("status = %s, error = %s", result.Status, result.Error)
	}
	if result.RunID == "" {
		t.Error("run id missing")
	}
	if len(result.Nodes) != 2 {
		t.Fatalf("trace length = %d", len(result.Nodes))
	}
	if result.Nodes[0].ID != "s" || result.Nodes[1].ID != "e" {
		t.Errorf("trace order = %s, %s", result.Nodes[0].ID, result.Nodes[1].ID)
	}
	endOut, ok := result.Nodes[1].Output.(map[string]any)
	if !ok || endOut["message"] != "Workflow started" {
		t.Errorf("end output = %v, want the kickoff payload passed through", result.Nodes[1].Output)
	}
	if result.TotalTime <= 0 {
		t.Errorf("total_time = %v, want elapsed wall clock", result.TotalTime)
	}
}

func TestRunEmptyWorkflow(t *testing.T) {
	e := NewEngine()
	result := e.Run(context.Background(), NewWorkflow())
	if result.Status != StatusSuccess || len(result.Nodes) != 0 {
		t.Errorf("result = %+v", result)
	}
}

func TestRunHaltsOnFirstError(t *testing.T) {
	emitter := emit.NewBufferedEmitter()
	e := NewEngine(WithEmitter(emitter))
	wf := NewWorkflow().
		AddNode("s", &Node{Type: NodeStart}).
		AddNode("bad", &Node{Type: "telepathy"}).
		AddNode("never", &Node{Type: NodeEnd}).
		Connect("c1", "s", "bad").
		Connect("c2", "bad", "never")

	result := e.Run(context.Background(), wf)
	if result.Status != StatusError {
		t.Fatalf("status = %s", result.Status)
	}
	if !strings.Contains(result.Error, "bad") || !strings.Contains(result.Error, "UNKNOWN_NODE_TYPE") {
		t.Errorf("error = %q", result.Error)
	}
	if len(result.Nodes) != 2 {
		t.Fatalf("trace = %d nodes, want sweep to stop after the failure", len(result.Nodes))
	}
	if result.Nodes[1].Status != StatusError {
		t.Errorf("failing node status = %s", result.Nodes[1].Status)
	}

	errEvents := emitter.HistoryWithFilter(result.RunID, emit.HistoryFilter{Msg: emit.MsgNodeError})
	if len(errEvents) != 1 || errEvents[0].NodeID != "bad" {
		t.Errorf("node_error events = %+v", errEvents)
	}
}

func TestRunSkipDuringExecution(t *testing.T) {
	e := NewEngine()
	wf := NewWorkflow().
		AddNode("s", &Node{Type: NodeStart}).
		AddNode("skipped", &Node{Type: "telepathy", SkipDuringExecution: true}).
		AddNode("e", &Node{Type: NodeEnd}).
		Connect("c1", "s", "skipped").
		Connect("c2", "skipped", "e")

	result := e.Run(context.Background(), wf)
	if result.Status != StatusSuccess {
		t.Fatalf("status = %s, error = %s", result.Status, result.Error)
	}
	// Even an unknown node type forwards its input when marked skipped.
	skipped := findNode(t, result, "skipped")
	if skipped.Status != StatusSuccess {
		t.Errorf("skipped status = %s", skipped.Status)
	}
}

func TestResolveInputFanIn(t *testing.T) {
	e := NewEngine()
	wf := NewWorkflow().
		AddNode("a", &Node{Type: NodeStart}).
		AddNode("b", &Node{Type: NodeStart}).
		AddNode("join", &Node{Type: NodeEnd}).
		Connect("c1", "a", "join").
		Connect("c2", "b", "join")
	outputs := map[string]any{
		"a": map[string]any{"from": "a"},
		"b": map[string]any{"from": "b"},
	}
	got := e.resolveInput(wf, "join", wf.Nodes["join"], outputs)
	if got.(map[string]any)["from"] != "a" {
		t.Errorf("fan-in picked %v, want first connection's source", got)
	}
}

func TestResolveInputForEachPrefersItems(t *testing.T) {
	e := NewEngine()
	wf := NewWorkflow().
		AddNode("meta", &Node{Type: NodeStart}).
		AddNode("rows", &Node{Type: NodeStart}).
		AddNode("loop", &Node{Type: NodeForEach}).
		Connect("c1", "meta", "loop").
		Connect("c2", "rows", "loop")
	outputs := map[string]any{
		"meta": map[string]any{"note": "side input"},
		"rows": map[string]any{"items": []any{float64(1)}},
	}
	got := e.resolveInput(wf, "loop", wf.Nodes["loop"], outputs)
	if _, has := got.(map[string]any)["items"]; !has {
		t.Errorf("foreach input = %v, want the predecessor carrying items", got)
	}
}

func TestResolveInputForEachPrefersSequence(t *testing.T) {
	// A predecessor emitting a bare list is the iteration set; a mapping side
	// input must not shadow it even when its connection comes first.
	e := NewEngine()
	wf := NewWorkflow().
		AddNode("meta", &Node{Type: NodeStart}).
		AddNode("rows", &Node{Type: NodeStart}).
		AddNode("loop", &Node{Type: NodeForEach}).
		Connect("c1", "meta", "loop").
		Connect("c2", "rows", "loop")
	outputs := map[string]any{
		"meta": map[string]any{"note": "side input"},
		"rows": []any{float64(1), float64(2)},
	}
	got := e.resolveInput(wf, "loop", wf.Nodes["loop"], outputs)
	if _, ok := got.([]any); !ok {
		t.Errorf("foreach input = %v, want the sequence predecessor", got)
	}
}

func TestExecHTTPNode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") != "ada" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"greeting": "hello"})
	}))
	defer srv.Close()

	e := NewEngine()
	node := &Node{
		Type: NodeHTTP,
		Config: map[string]any{
			"url":    srv.URL,
			"params": map[string]any{"q": "{name}"},
		},
	}
	out := e.execHTTP(context.Background(), node, map[string]any{"name": "ada", "carry": "along"})
	if out.Status != StatusSuccess {
		t.Fatalf("status = %s, error = %s", out.Status, out.Error)
	}
	got := out.Output.(map[string]any)
	if got["status_code"] != 200 {
		t.Errorf("status_code = %v", got["status_code"])
	}
	if got["data"].(map[string]any)["greeting"] != "hello" {
		t.Errorf("data = %v", got["data"])
	}
	if got["carry"] != "along" {
		t.Errorf("input field not carried: %v", got)
	}
	if !strings.HasPrefix(out.Stdout, "HTTP GET ") || !strings.HasSuffix(out.Stdout, "-> 200") {
		t.Errorf("stdout = %q", out.Stdout)
	}
}

func TestExecHTTPNodeTransportError(t *testing.T) {
	e := NewEngine()
	node := &Node{Type: NodeHTTP, Config: map[string]any{"url": "http://127.0.0.1:1/nope"}}
	out := e.execHTTP(context.Background(), node, map[string]any{})
	if out.Status != StatusError || !strings.Contains(out.Error, "HTTP request failed") {
		t.Errorf("outcome = %+v", out)
	}
}

func TestExecFileNode(t *testing.T) {
	root := t.TempDir()
	e := NewEngine(WithFileRoot(root))
	ctx := context.Background()

	write := &Node{Type: NodeFile, Config: map[string]any{
		"operation": "write", "path": "notes.txt", "content": "line one\n",
	}}
	if out := e.execFile(ctx, write, map[string]any{}); out.Status != StatusSuccess {
		t.Fatalf("write: %s", out.Error)
	}

	appendNode := &Node{Type: NodeFile, Config: map[string]any{
		"operation": "append", "path": "notes.txt", "content": "line two\n",
	}}
	if out := e.execFile(ctx, appendNode, map[string]any{}); out.Status != StatusSuccess {
		t.Fatalf("append: %s", out.Error)
	}

	read := &Node{Type: NodeFile, Config: map[string]any{"operation": "read", "path": "notes.txt"}}
	out := e.execFile(ctx, read, map[string]any{})
	if out.Status != StatusSuccess {
		t.Fatalf("read: %s", out.Error)
	}
	got := out.Output.(map[string]any)
	if got["content"] != "line one\nline two\n" {
		t.Errorf("content = %q", got["content"])
	}

	list := &Node{Type: NodeFile, Config: map[string]any{"operation": "list", "path": "."}}
	out = e.execFile(ctx, list, map[string]any{})
	got = out.Output.(map[string]any)
	if got["count"] != 1 {
		t.Errorf("list = %v", got)
	}

	del := &Node{Type: NodeFile, Config: map[string]any{"operation": "delete", "path": "notes.txt"}}
	if out := e.execFile(ctx, del, map[string]any{}); out.Status != StatusSuccess {
		t.Fatalf("delete: %s", out.Error)
	}
	if _, err := os.Stat(filepath.Join(root, "notes.txt")); !os.IsNotExist(err) {
		t.Error("file survived delete")
	}

	missing := e.execFile(ctx, read, map[string]any{})
	if missing.Status != StatusError || !strings.Contains(missing.Error, "File not found") {
		t.Errorf("read after delete = %+v", missing)
	}
}

func TestConfinePath(t *testing.T) {
	root := "/tmp/workflow_files"
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"relative stays inside", "a/b.txt", "/tmp/workflow_files/a/b.txt"},
		{"absolute under root kept", "/tmp/workflow_files/x.txt", "/tmp/workflow_files/x.txt"},
		{"absolute escape flattens", "/etc/passwd", "/tmp/workflow_files/passwd"},
		{"dotdot escape flattens", "../../etc/shadow", "/tmp/workflow_files/shadow"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := confinePath(root, tt.in); got != tt.want {
				t.Errorf("confinePath(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRunDecodedWorkflow(t *testing.T) {
	doc := []byte(`{
		"nodes": {
			"s": {"type": "start"},
			"route": {"type": "condition", "config": {
				"conditions": [
					{"field": "score", "operator": ">", "value": 70, "output": {"route": "high"}}
				]
			}},
			"e": {"type": "end"}
		},
		"connections": {
			"c1": {"source": "s", "target": "route"},
			"c2": {"source": "route", "target": "e"}
		}
	}`)
	var wf Workflow
	if err := json.Unmarshal(doc, &wf); err != nil {
		t.Fatalf("decode: %v", err)
	}
	e := NewEngine()
	result := e.Run(context.Background(), &wf)
	if result.Status != StatusSuccess {
		t.Fatalf("status = %s, error = %s", result.Status, result.Error)
	}
	ids := []string{result.Nodes[0].ID, result.Nodes[1].ID, result.Nodes[2].ID}
	if !reflect.DeepEqual(ids, []string{"s", "route", "e"}) {
		t.Errorf("trace = %v", ids)
	}
	routeOut := findNode(t, result, "route").Output.(map[string]any)
	// The kickoff payload has no score field, so no clause matched and the
	// input itself became the result.
	if routeOut["matched_condition"] != nil {
		t.Errorf("matched_condition = %v, want nil", routeOut["matched_condition"])
	}
	if routeOut["message"] != "Workflow started" {
		t.Errorf("fallback output = %v, want the input echoed", routeOut)
	}
}
