// Package workflow implements a node-graph execution engine. Clients submit a
// graph of typed nodes connected by directed edges; the engine orders the
// graph topologically, executes each node against the output of its
// predecessor, and returns a per-node execution trace.
package workflow

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Node type identifiers recognized by the dispatch table.
const (
	NodeStart      = "start"
	NodeEnd        = "end"
	NodeEndLoop    = "endloop"
	NodeForEach    = "foreach"
	NodePython     = "python"
	NodeTypeScript = "typescript"
	NodeHTTP       = "http"
	NodeFile       = "file"
	NodeCondition  = "condition"
	NodeDatabase   = "database"
	NodeLLM        = "llm"
	NodeEmbedding  = "embedding"
	NodeMarkdown   = "markdown"
	NodeHTML       = "html"
	NodeJSON       = "json"
)

// Outcome and run status values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Node is a single unit of work in a workflow graph.
//
// Type selects the executor. Code carries user source for script nodes.
// Config carries executor-specific settings (url, query, conditions, ...).
// A node marked SkipDuringExecution forwards its input unchanged.
type Node struct {
	Type                string         `json:"type"`
	Title               string         `json:"title,omitempty"`
	Code                string         `json:"code,omitempty"`
	Config              map[string]any `json:"config,omitempty"`
	SkipDuringExecution bool           `json:"skipDuringExecution,omitempty"`
}

// Connection is a directed edge from one node to another. SourceOutput and
// TargetInput are carried for round-tripping with the builder UI; routing
// always uses a predecessor's whole output.
type Connection struct {
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceOutput string `json:"sourceOutput,omitempty"`
	TargetInput  string `json:"targetInput,omitempty"`
}

// Workflow is a graph of nodes and directed connections.
//
// The order in which nodes and connections appeared in the request document
// is preserved: it breaks ties in topological ordering and makes
// first-predecessor input resolution deterministic.
type Workflow struct {
	Nodes       map[string]*Node
	Connections map[string]*Connection

	nodeOrder []string
	connOrder []string
}

// NewWorkflow returns an empty workflow. Use AddNode and Connect to build
// graphs programmatically; JSON decoding populates the same structure.
func NewWorkflow() *Workflow {
	return &Workflow{
		Nodes:       make(map[string]*Node),
		Connections: make(map[string]*Connection),
	}
}

// AddNode registers a node under id, preserving insertion order. Re-adding an
// existing id replaces the node without changing its position.
func (w *Workflow) AddNode(id string, n *Node) *Workflow {
	if _, ok := w.Nodes[id]; !ok {
		w.nodeOrder = append(w.nodeOrder, id)
	}
	w.Nodes[id] = n
	return w
}

// Connect adds a directed edge from source to target under the given id.
func (w *Workflow) Connect(id, source, target string) *Workflow {
	if _, ok := w.Connections[id]; !ok {
		w.connOrder = append(w.connOrder, id)
	}
	w.Connections[id] = &Connection{Source: source, Target: target}
	return w
}

// NodeOrder returns node ids in document insertion order.
func (w *Workflow) NodeOrder() []string {
	out := make([]string, len(w.nodeOrder))
	copy(out, w.nodeOrder)
	return out
}

// UnmarshalJSON decodes a workflow while recording the document order of the
// nodes and connections objects. encoding/json alone would lose key order,
// which the scheduler relies on for deterministic tie-breaking.
func (w *Workflow) UnmarshalJSON(data []byte) error {
	var raw struct {
		Nodes       map[string]*Node       `json:"nodes"`
		Connections map[string]*Connection `json:"connections"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var keyed struct {
		Nodes       json.RawMessage `json:"nodes"`
		Connections json.RawMessage `json:"connections"`
	}
	if err := json.Unmarshal(data, &keyed); err != nil {
		return err
	}
	w.Nodes = raw.Nodes
	w.Connections = raw.Connections
	if w.Nodes == nil {
		w.Nodes = make(map[string]*Node)
	}
	if w.Connections == nil {
		w.Connections = make(map[string]*Connection)
	}
	var err error
	if w.nodeOrder, err = objectKeyOrder(keyed.Nodes); err != nil {
		return fmt.Errorf("decode nodes: %w", err)
	}
	if w.connOrder, err = objectKeyOrder(keyed.Connections); err != nil {
		return fmt.Errorf("decode connections: %w", err)
	}
	return nil
}

// MarshalJSON emits the plain two-object wire form.
func (w *Workflow) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Nodes       map[string]*Node       `json:"nodes"`
		Connections map[string]*Connection `json:"connections"`
	}{Nodes: w.Nodes, Connections: w.Connections})
}

// objectKeyOrder returns the top-level keys of a JSON object in document
// order. A missing or null value yields no keys.
func objectKeyOrder(raw json.RawMessage) ([]string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("expected object, got %v", tok)
	}
	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected object key, got %v", tok)
		}
		keys = append(keys, key)
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, err
		}
	}
	return keys, nil
}

// Outcome is the result of executing a single node.
type Outcome struct {
	Status        string
	Output        any
	Stdout        string
	Stderr        string
	ExecutionTime float64 // seconds
	Error         string

	// EndLoopNodeID is set by a foreach node whose body drains into an
	// endloop marker; the marker's outcome is recorded alongside.
	EndLoopNodeID string
}

// NodeResult is one entry in the execution trace returned to the client.
type NodeResult struct {
	ID            string  `json:"id"`
	Status        string  `json:"status"`
	Output        any     `json:"output,omitempty"`
	Stdout        string  `json:"stdout,omitempty"`
	Stderr        string  `json:"stderr,omitempty"`
	ExecutionTime float64 `json:"execution_time"`
	Error         string  `json:"error,omitempty"`
	EndLoopNodeID string  `json:"endloop_node_id,omitempty"`
}

// RunResult is the full response for one workflow execution.
//
// Status is "success" when every executed node succeeded. On failure Error
// names the first failing node and its message; the trace stops there.
type RunResult struct {
	RunID     string       `json:"run_id"`
	Status    string       `json:"status"`
	Nodes     []NodeResult `json:"nodes"`
	TotalTime float64      `json:"total_time"`
	Error     string       `json:"error,omitempty"`
}

// errorOutcome builds an error-status outcome with the given message.
func errorOutcome(msg string) Outcome {
	return Outcome{Status: StatusError, Error: msg}
}

// successOutcome builds a success-status outcome with the given output.
func successOutcome(output any) Outcome {
	return Outcome{Status: StatusSuccess, Output: output}
}

// nodeResultFrom converts an outcome into a trace entry, coercing byte
// strings to base64 so the trace is always JSON-encodable.
func nodeResultFrom(id string, out Outcome) NodeResult {
	return NodeResult{
		ID:            id,
		Status:        out.Status,
		Output:        sanitizeValue(out.Output),
		Stdout:        out.Stdout,
		Stderr:        out.Stderr,
		ExecutionTime: out.ExecutionTime,
		Error:         out.Error,
		EndLoopNodeID: out.EndLoopNodeID,
	}
}
