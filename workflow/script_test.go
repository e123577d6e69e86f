package workflow

import (
	"context"
	"os/exec"
	"reflect"
	"strings"
	"testing"
)

func requirePython(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not installed")
	}
}

func TestRunPythonLinearWorkflow(t *testing.T) {
	requirePython(t)
	e := NewEngine()
	wf := NewWorkflow().
		AddNode("s", &Node{Type: NodeStart}).
		AddNode("p", &Node{Type: NodePython, Code: "def run(x):\n    return {'n': x.get('message', '')}"}).
		AddNode("e", &Node{Type: NodeEnd}).
		Connect("c1", "s", "p").
		Connect("c2", "p", "e")

	result := e.Run(context.Background(), wf)
	if result.Status != StatusSuccess {
		t.Fatalf("status = %s, error = %s", result.Status, result.Error)
	}
	endOut, ok := findNode(t, result, "e").Output.(map[string]any)
	if !ok || endOut["n"] != "Workflow started" {
		t.Errorf("end output = %v, want the kickoff message mapped through", findNode(t, result, "e").Output)
	}
}

func TestRunPythonSerialForEach(t *testing.T) {
	requirePython(t)
	e := NewEngine()
	wf := NewWorkflow().
		AddNode("loop", &Node{Type: NodeForEach, Config: map[string]any{
			"items": []any{float64(1), float64(2), float64(3)},
		}}).
		AddNode("square", &Node{Type: NodePython, Code: "def run(x):\n    return x * x"}).
		AddNode("done", &Node{Type: NodeEndLoop}).
		Connect("c1", "loop", "square").
		Connect("c2", "square", "done")

	result := e.Run(context.Background(), wf)
	if result.Status != StatusSuccess {
		t.Fatalf("status = %s, error = %s", result.Status, result.Error)
	}
	agg := findNode(t, result, "done").Output.(map[string]any)
	if agg["total"] != 3 || agg["successful"] != 3 || agg["failed"] != 0 {
		t.Errorf("counts = total %v successful %v failed %v", agg["total"], agg["successful"], agg["failed"])
	}
	want := []any{float64(1), float64(4), float64(9)}
	if !reflect.DeepEqual(agg["aggregated_outputs"], want) {
		t.Errorf("aggregated_outputs = %v, want %v", agg["aggregated_outputs"], want)
	}
}

func TestRunPythonParallelForEachWithFailure(t *testing.T) {
	requirePython(t)
	e := NewEngine()
	wf := NewWorkflow().
		AddNode("loop", &Node{Type: NodeForEach, Config: map[string]any{
			"items":           []any{float64(0), float64(1), float64(2)},
			"execution_mode":  "parallel",
			"max_concurrency": float64(3),
		}}).
		AddNode("div", &Node{Type: NodePython, Code: "def run(x):\n    return 10 // x"}).
		AddNode("done", &Node{Type: NodeEndLoop}).
		Connect("c1", "loop", "div").
		Connect("c2", "div", "done")

	result := e.Run(context.Background(), wf)
	if result.Status != StatusSuccess {
		t.Fatalf("status = %s, want success (iteration errors aggregate)", result.Status)
	}
	agg := findNode(t, result, "loop").Output.(map[string]any)
	if agg["total"] != 3 || agg["successful"] != 2 || agg["failed"] != 1 {
		t.Errorf("counts = total %v successful %v failed %v", agg["total"], agg["successful"], agg["failed"])
	}
	if got := agg["aggregated_outputs"].([]any); len(got) != 2 {
		t.Errorf("aggregated_outputs = %v, want the two surviving results", got)
	}
	failing := agg["results"].([]any)[0].(map[string]any)
	if failing["status"] != StatusError {
		t.Errorf("iteration 0 status = %v", failing["status"])
	}
	errMsg, _ := failing["error"].(string)
	if !strings.Contains(errMsg, "ZeroDivisionError") {
		t.Errorf("iteration 0 error = %q", errMsg)
	}
}

func TestRunPythonNodeSkipped(t *testing.T) {
	// The code is never handed to an interpreter, so the workflow succeeds
	// even without python installed.
	e := NewEngine()
	wf := NewWorkflow().
		AddNode("s", &Node{Type: NodeStart}).
		AddNode("p", &Node{Type: NodePython, Code: "this is not python at all", SkipDuringExecution: true}).
		AddNode("e", &Node{Type: NodeEnd}).
		Connect("c1", "s", "p").
		Connect("c2", "p", "e")

	result := e.Run(context.Background(), wf)
	if result.Status != StatusSuccess {
		t.Fatalf("status = %s, error = %s", result.Status, result.Error)
	}
	mid, ok := findNode(t, result, "p").Output.(map[string]any)
	if !ok || mid["message"] != "Workflow started" {
		t.Errorf("skipped output = %v, want the start output forwarded", findNode(t, result, "p").Output)
	}
}

func TestExecPythonErrors(t *testing.T) {
	e := NewEngine()
	ctx := context.Background()

	t.Run("no code configured", func(t *testing.T) {
		out := e.execPython(ctx, &Node{Type: NodePython}, nil)
		if out.Status != StatusError || !strings.Contains(out.Error, "no code") {
			t.Errorf("outcome = %+v", out)
		}
	})

	t.Run("denied import surfaces as an error outcome", func(t *testing.T) {
		requirePython(t)
		node := &Node{Type: NodePython, Code: "import socket\ndef run(x):\n    return 1"}
		out := e.execPython(ctx, node, nil)
		if out.Status != StatusError || !strings.Contains(out.Error, "not allowed") {
			t.Errorf("outcome = %+v", out)
		}
	})
}
