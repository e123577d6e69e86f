package workflow

import (
	"context"
	"fmt"
)

// stickyKeys are metadata fields that, once produced inside a loop body, are
// re-injected into every later mapping output that lacks them. Routing
// decisions and loop context survive nodes that return fresh maps.
var stickyKeys = []string{"_workflow_context", "route", "action", "priority"}

// segmentExecution is one per-node record from a loop body run.
type segmentExecution struct {
	ID            string  `json:"id"`
	Status        string  `json:"status"`
	ExecutionTime float64 `json:"execution_time"`
	Error         string  `json:"error,omitempty"`
}

// runSegment executes an ordered list of node ids as a small sub-workflow
// seeded with one iteration's input. It returns the final output, per-node
// execution records, and the first error message (empty when all succeeded).
//
// Within the segment each node resolves its input from its first predecessor
// with a local output, falling back to the running current value (the previous
// node's output, initially the seed) when every predecessor lies outside the
// body. A node marked skipDuringExecution forwards its input; endloop markers
// pass through; a nested foreach is rejected since loop bodies are linear in
// this version.
func (e *Engine) runSegment(ctx context.Context, wf *Workflow, body []string, seed any) (any, []segmentExecution, string) {
	local := make(map[string]any)
	current := cloneValue(seed)
	var execs []segmentExecution

	sticky := make(map[string]any)
	captureSticky(sticky, seed)

	for _, id := range body {
		node := wf.Nodes[id]
		if node == nil {
			continue
		}
		input := e.resolveSegmentInput(wf, id, local, current)

		var out Outcome
		switch {
		case node.SkipDuringExecution:
			out = successOutcome(cloneValue(input))
		case node.Type == NodeForEach:
			out = errorOutcome("nested foreach inside a loop body is not supported")
		case node.Type == NodeEndLoop:
			out = successOutcome(cloneValue(input))
		default:
			out = e.execNode(ctx, node, input)
		}

		if m, ok := asMap(out.Output); ok {
			for k, v := range sticky {
				if _, has := m[k]; !has {
					m[k] = cloneValue(v)
				}
			}
			captureSticky(sticky, m)
		}

		local[id] = out.Output
		exec := segmentExecution{ID: id, Status: out.Status, ExecutionTime: out.ExecutionTime}
		if out.Status == StatusError {
			exec.Error = out.Error
			execs = append(execs, exec)
			return out.Output, execs, fmt.Sprintf("node %s failed: %s", id, out.Error)
		}
		execs = append(execs, exec)
		current = out.Output
	}
	return current, execs, ""
}

// resolveSegmentInput mirrors Engine.resolveInput against the segment-local
// output table. A node whose predecessors all lie outside the body receives
// the running current value, so on entry it sees the iteration seed and later
// it sees the previous node's output.
func (e *Engine) resolveSegmentInput(wf *Workflow, id string, local map[string]any, current any) any {
	for _, src := range predecessors(wf, id) {
		if out, ok := local[src]; ok {
			return cloneValue(out)
		}
	}
	return cloneValue(current)
}

func captureSticky(sticky map[string]any, v any) {
	m, ok := asMap(v)
	if !ok {
		return
	}
	for _, k := range stickyKeys {
		if val, has := m[k]; has {
			sticky[k] = val
		}
	}
}
