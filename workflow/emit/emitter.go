package emit

// Emitter receives observability events from workflow execution.
//
// Implementations should be:
//   - Non-blocking: avoid slowing down workflow execution
//   - Thread-safe: parallel foreach iterations emit concurrently
//   - Resilient: a failing backend must not crash the workflow
//
// Emit should not panic; backend errors are handled internally.
type Emitter interface {
	Emit(event Event)
}
