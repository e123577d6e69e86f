package workflow

import "fmt"

// WorkflowError is a structured failure raised by the engine or an executor's
// policy layer, as opposed to an ordinary error outcome produced by user
// logic inside a node.
//
// Codes in use:
//   - "UNKNOWN_NODE_TYPE": dispatch had no executor for the node's type
//   - "VECTOR_EXTENSION_UNAVAILABLE": a vector query needs a native sqlite
//     extension the embedded driver cannot load
//   - "HOST_NOT_ALLOWED": an ollama endpoint outside the private allow-list
type WorkflowError struct {
	Code    string
	Message string
	NodeID  string
}

// Error implements the error interface.
func (e *WorkflowError) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("%s (node %s): %s", e.Code, e.NodeID, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}
