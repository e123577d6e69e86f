package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/dshills/workflow-go/workflow/emit"
)

// loopBody is the discovered body of one foreach node.
type loopBody struct {
	body    []string
	endloop string
}

// loopHandoff carries the endloop marker's pre-computed outcome back to the
// top-level sweep, which records it immediately after the foreach itself.
type loopHandoff struct {
	id  string
	out Outcome
}

// discoverLoops finds the body of every foreach node so the top-level sweep
// can mask those nodes out. Endloop markers are not masked; the sweep skips
// them via the executed set once the coordinator has recorded their output.
func discoverLoops(wf *Workflow) (map[string]bool, map[string]loopBody) {
	masked := make(map[string]bool)
	loops := make(map[string]loopBody)
	for _, id := range wf.nodeOrder {
		n := wf.Nodes[id]
		if n == nil || n.Type != NodeForEach {
			continue
		}
		lp := discoverBody(wf, id)
		loops[id] = lp
		for _, b := range lp.body {
			masked[b] = true
		}
	}
	return masked, loops
}

// discoverBody walks breadth-first from the foreach's successors. Traversal
// stops at an endloop (recording the first one seen), at an end marker, and
// at another foreach; none of those join the body.
func discoverBody(wf *Workflow, foreachID string) loopBody {
	var lp loopBody
	visited := map[string]bool{foreachID: true}
	queue := successors(wf, foreachID)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if visited[id] {
			continue
		}
		visited[id] = true
		n := wf.Nodes[id]
		if n == nil {
			continue
		}
		switch n.Type {
		case NodeEndLoop:
			if lp.endloop == "" {
				lp.endloop = id
			}
			continue
		case NodeEnd, NodeForEach:
			continue
		}
		lp.body = append(lp.body, id)
		queue = append(queue, successors(wf, id)...)
	}
	return lp
}

// runForEach executes the loop: resolve the iteration set, run the body once
// per item (serially or with bounded parallelism), and aggregate. Iteration
// failures are recorded in the aggregation but do not fail the workflow.
func (e *Engine) runForEach(ctx context.Context, runID string, wf *Workflow, id string, node *Node, input any, lp loopBody) (Outcome, *loopHandoff) {
	start := time.Now()
	items, ok := resolveItems(node, input)
	if !ok {
		out := errorOutcome("foreach input is not iterable")
		out.ExecutionTime = time.Since(start).Seconds()
		return out, nil
	}
	mode := stringField(node.Config, "execution_mode", "serial")
	if mode != "parallel" {
		mode = "serial"
	}
	maxConc := intField(node.Config, "max_concurrency", e.opts.ForEachConcurrency)
	if maxConc < 1 {
		maxConc = 1
	}

	total := len(items)
	records := make([]any, total)
	iterOutputs := make([]any, total)
	failures := make([]bool, total)

	runOne := func(ctx context.Context, idx int, item any) {
		seed := iterationSeed(input, item)
		final, execs, errMsg := e.runSegment(ctx, wf, lp.body, seed)

		status := StatusSuccess
		if errMsg != "" {
			status = StatusError
			failures[idx] = true
		}
		rec := map[string]any{
			"index":           idx,
			"item":            item,
			"status":          status,
			"output":          final,
			"node_executions": execs,
		}
		if errMsg != "" {
			rec["error"] = errMsg
		}
		records[idx] = rec
		iterOutputs[idx] = final

		e.metrics.RecordForEachIteration(mode, status)
		e.emitter.Emit(emit.Event{
			RunID:  runID,
			NodeID: id,
			Msg:    emit.MsgForEachIteration,
			Meta:   map[string]any{"index": idx, "total": total, "status": status, "mode": mode},
		})
	}

	if mode == "parallel" && total > 0 {
		sem := semaphore.NewWeighted(int64(maxConc))
		var wg sync.WaitGroup
		for idx, item := range items {
			wg.Add(1)
			go func(idx int, item any) {
				defer wg.Done()
				if err := sem.Acquire(ctx, 1); err != nil {
					failures[idx] = true
					records[idx] = map[string]any{
						"index":           idx,
						"item":            item,
						"status":          StatusError,
						"output":          nil,
						"node_executions": []segmentExecution{},
						"error":           fmt.Sprintf("iteration cancelled: %v", err),
					}
					return
				}
				defer sem.Release(1)
				runOne(ctx, idx, item)
			}(idx, item)
		}
		wg.Wait()
	} else {
		for idx, item := range items {
			runOne(ctx, idx, item)
		}
	}

	successful := 0
	aggregated := make([]any, 0, total)
	for idx, failed := range failures {
		if failed {
			continue
		}
		successful++
		aggregated = append(aggregated, iterOutputs[idx])
	}
	agg := map[string]any{
		"results":    records,
		"total":      total,
		"successful": successful,
		"failed":     total - successful,
	}
	// The richer shape is only promised when an endloop consumes it.
	if lp.endloop != "" {
		agg["aggregated_outputs"] = aggregated
		agg["items"] = items
	}

	out := Outcome{
		Status:        StatusSuccess,
		Output:        agg,
		ExecutionTime: time.Since(start).Seconds(),
		Stdout:        fmt.Sprintf("ForEach processed %d items (%d succeeded, %d failed)", total, successful, total-successful),
		EndLoopNodeID: lp.endloop,
	}

	var handoff *loopHandoff
	if lp.endloop != "" && wf.Nodes[lp.endloop] != nil {
		handoff = &loopHandoff{
			id: lp.endloop,
			out: Outcome{
				Status: StatusSuccess,
				Output: cloneValue(agg),
				Stdout: fmt.Sprintf("Loop aggregation complete: %d results", total),
			},
		}
	}
	return out, handoff
}

// resolveItems determines the iteration set: a sequence input wins, then the
// items key inside a mapping input, then config.items. When none of the three
// yields a sequence the foreach has nothing iterable and must error.
func resolveItems(node *Node, input any) ([]any, bool) {
	if seq, ok := asSlice(input); ok {
		return seq, true
	}
	itemsKey := stringField(node.Config, "items_key", "items")
	if m, ok := asMap(input); ok {
		if seq, ok := asSlice(m[itemsKey]); ok {
			return seq, true
		}
	}
	if node.Config != nil {
		if seq, ok := asSlice(node.Config["items"]); ok {
			return seq, true
		}
	}
	return nil, false
}

// iterationSeed shapes one iteration's input. A mapping item is extended with
// a _workflow_context field carrying the whole loop input, so body nodes can
// still reach loop-scope data. Any other item passes through verbatim.
func iterationSeed(loopInput, item any) any {
	im, itemIsMap := asMap(item)
	if _, inputIsMap := asMap(loopInput); !inputIsMap || !itemIsMap {
		return cloneValue(item)
	}
	seed := make(map[string]any, len(im)+1)
	for k, v := range im {
		seed[k] = cloneValue(v)
	}
	if _, has := seed["_workflow_context"]; !has {
		seed["_workflow_context"] = cloneValue(loopInput)
	}
	return seed
}
