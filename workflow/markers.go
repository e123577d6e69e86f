package workflow

import "context"

// execStart emits the fixed kickoff payload. Workflow data enters through
// node configs downstream, not through the start marker.
func (e *Engine) execStart(ctx context.Context, node *Node, input any) Outcome {
	return successOutcome(map[string]any{"message": "Workflow started"})
}

// execEnd surfaces the final output of the graph in the trace.
func (e *Engine) execEnd(ctx context.Context, node *Node, input any) Outcome {
	return successOutcome(cloneValue(input))
}

// execEndLoop handles an endloop reached outside a loop, e.g. when a foreach
// was deleted but its marker survived. It degrades to a pass-through; inside
// a loop the coordinator records the marker's aggregation output itself.
func (e *Engine) execEndLoop(ctx context.Context, node *Node, input any) Outcome {
	return successOutcome(cloneValue(input))
}
