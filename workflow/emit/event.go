// Package emit provides pluggable observability for workflow execution.
// The engine emits an Event at each lifecycle point; emitters route events
// to logs, in-memory buffers, or OpenTelemetry spans.
package emit

// Event messages emitted by the engine.
const (
	MsgRunStart         = "run_start"
	MsgRunComplete      = "run_complete"
	MsgNodeStart        = "node_start"
	MsgNodeComplete     = "node_complete"
	MsgNodeError        = "node_error"
	MsgForEachIteration = "foreach_iteration"
)

// Event is a single observability record from workflow execution.
//
// RunID identifies the execution, NodeID the node involved (empty for
// run-level events), and Step the 1-based position of the node in the
// execution sweep. Meta carries message-specific details such as node type,
// duration, or iteration counts.
type Event struct {
	RunID  string
	NodeID string
	Step   int
	Msg    string
	Meta   map[string]any
}
