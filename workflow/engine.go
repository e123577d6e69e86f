package workflow

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/workflow-go/workflow/emit"
)

// execFunc executes one node against its resolved input.
type execFunc func(ctx context.Context, node *Node, input any) Outcome

// Engine executes workflows. It is safe for concurrent use; per-run state
// lives on the stack of Run.
type Engine struct {
	opts        Options
	emitter     emit.Emitter
	metrics     *Metrics
	httpClient  *http.Client
	chatFactory ChatFactory
	dispatch    map[string]execFunc
}

// NewEngine constructs an engine with the given options applied over the
// defaults.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		opts:       defaultOptions(),
		emitter:    emit.NewNullEmitter(),
		httpClient: &http.Client{},
	}
	e.chatFactory = defaultChatFactory
	for _, opt := range opts {
		opt(e)
	}
	e.dispatch = map[string]execFunc{
		NodeStart:      e.execStart,
		NodeEnd:        e.execEnd,
		NodeEndLoop:    e.execEndLoop,
		NodePython:     e.execPython,
		NodeTypeScript: e.execTypeScript,
		NodeHTTP:       e.execHTTP,
		NodeFile:       e.execFile,
		NodeCondition:  e.execCondition,
		NodeDatabase:   e.execDatabase,
		NodeLLM:        e.execLLM,
		NodeEmbedding:  e.execEmbedding,
		NodeMarkdown:   e.execMarkdown,
		NodeHTML:       e.execHTML,
		NodeJSON:       e.execJSON,
	}
	return e
}

// Run executes a workflow and returns the full trace. It never returns an
// error: every failure mode is represented in the RunResult so the HTTP
// surface can always answer 200 with a trace.
//
// Nodes execute in Kahn topological order with document-order tie-breaking.
// ForEach body nodes are masked out of the top-level sweep and executed by
// the coordinator. The sweep stops at the first error outcome.
func (e *Engine) Run(ctx context.Context, wf *Workflow) *RunResult {
	start := time.Now()
	runID := uuid.NewString()

	result := &RunResult{RunID: runID, Status: StatusSuccess, Nodes: []NodeResult{}}
	if wf == nil || len(wf.Nodes) == 0 {
		result.TotalTime = time.Since(start).Seconds()
		return result
	}

	e.metrics.RunStarted()
	e.emitter.Emit(emit.Event{
		RunID: runID,
		Msg:   emit.MsgRunStart,
		Meta:  map[string]any{"nodes": len(wf.Nodes)},
	})

	order := topoOrder(wf)
	masked, loops := discoverLoops(wf)

	outputs := make(map[string]any)
	executed := make(map[string]bool)
	step := 0
	var failedID, failedMsg string

	for _, id := range order {
		if masked[id] || executed[id] {
			continue
		}
		node := wf.Nodes[id]
		if node == nil {
			continue
		}
		input := e.resolveInput(wf, id, node, outputs)
		step++
		e.emitter.Emit(emit.Event{
			RunID:  runID,
			NodeID: id,
			Step:   step,
			Msg:    emit.MsgNodeStart,
			Meta:   map[string]any{"type": node.Type},
		})

		var out Outcome
		var handoff *loopHandoff
		switch {
		case node.SkipDuringExecution:
			out = successOutcome(cloneValue(input))
			out.Stdout = "Node skipped, input forwarded"
		case node.Type == NodeForEach:
			out, handoff = e.runForEach(ctx, runID, wf, id, node, input, loops[id])
		default:
			out = e.execNode(ctx, node, input)
		}

		outputs[id] = out.Output
		executed[id] = true
		result.Nodes = append(result.Nodes, nodeResultFrom(id, out))
		e.metrics.RecordNode(node.Type, out.Status, out.ExecutionTime)
		e.emitNodeDone(runID, id, step, node.Type, out)

		if handoff != nil {
			outputs[handoff.id] = handoff.out.Output
			executed[handoff.id] = true
			result.Nodes = append(result.Nodes, nodeResultFrom(handoff.id, handoff.out))
			e.metrics.RecordNode(NodeEndLoop, handoff.out.Status, handoff.out.ExecutionTime)
		}

		if out.Status == StatusError {
			failedID, failedMsg = id, out.Error
			break
		}
	}

	result.TotalTime = time.Since(start).Seconds()
	if failedID != "" {
		result.Status = StatusError
		result.Error = fmt.Sprintf("node %s failed: %s", failedID, failedMsg)
	}
	e.metrics.RunFinished(result.Status)
	e.emitter.Emit(emit.Event{
		RunID: runID,
		Msg:   emit.MsgRunComplete,
		Meta: map[string]any{
			"status":     result.Status,
			"total_time": result.TotalTime,
		},
	})
	return result
}

func (e *Engine) emitNodeDone(runID, id string, step int, nodeType string, out Outcome) {
	msg := emit.MsgNodeComplete
	meta := map[string]any{
		"type":        nodeType,
		"duration_ms": out.ExecutionTime * 1000,
	}
	if out.Status == StatusError {
		msg = emit.MsgNodeError
		meta["error"] = out.Error
	}
	e.emitter.Emit(emit.Event{RunID: runID, NodeID: id, Step: step, Msg: msg, Meta: meta})
}

// execNode dispatches one node and stamps its execution time.
func (e *Engine) execNode(ctx context.Context, node *Node, input any) Outcome {
	fn, ok := e.dispatch[node.Type]
	if !ok {
		werr := &WorkflowError{Code: "UNKNOWN_NODE_TYPE", Message: fmt.Sprintf("no executor for node type %q", node.Type)}
		return errorOutcome(werr.Error())
	}
	start := time.Now()
	out := fn(ctx, node, input)
	if out.ExecutionTime == 0 {
		out.ExecutionTime = time.Since(start).Seconds()
	}
	return out
}

// resolveInput picks a node's input from its first predecessor with a
// recorded output, scanning connections in document order. Fan-in is not
// merged: with multiple completed predecessors the earliest connection wins,
// which the preserved document order makes deterministic.
//
// ForEach nodes prefer the predecessor whose output is a sequence or carries
// the configured items key, so a side input cannot shadow the iteration set.
func (e *Engine) resolveInput(wf *Workflow, id string, node *Node, outputs map[string]any) any {
	var ready []string
	for _, src := range predecessors(wf, id) {
		if _, ok := outputs[src]; ok {
			ready = append(ready, src)
		}
	}
	if len(ready) == 0 {
		return map[string]any{}
	}
	if node.Type == NodeForEach {
		itemsKey := stringField(node.Config, "items_key", "items")
		for _, src := range ready {
			if _, ok := asSlice(outputs[src]); ok {
				return cloneValue(outputs[src])
			}
			if m, ok := asMap(outputs[src]); ok {
				if _, has := m[itemsKey]; has {
					return cloneValue(outputs[src])
				}
			}
		}
	}
	return cloneValue(outputs[ready[0]])
}

// Config field accessors shared by the executors.

func stringField(cfg map[string]any, key, fallback string) string {
	if cfg == nil {
		return fallback
	}
	if s, ok := cfg[key].(string); ok && s != "" {
		return s
	}
	return fallback
}

func intField(cfg map[string]any, key string, fallback int) int {
	if cfg == nil {
		return fallback
	}
	if f, ok := toFloat(cfg[key]); ok {
		return int(f)
	}
	return fallback
}

func floatField(cfg map[string]any, key string, fallback float64) float64 {
	if cfg == nil {
		return fallback
	}
	if f, ok := toFloat(cfg[key]); ok {
		return f
	}
	return fallback
}
