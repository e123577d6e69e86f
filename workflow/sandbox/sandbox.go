// Package sandbox executes user-supplied scripts in short-lived child
// processes. The parent passes {code, input} as JSON on stdin (python) or
// bakes them into a generated program (typescript); the child replies with a
// JSON envelope carrying the result or a user-level error plus captured
// stdout/stderr.
//
// Running scripts out of process keeps user code from touching engine memory
// and lets a wall-clock bound kill a runaway script without poisoning the
// parent.
package sandbox

// Result carries the outcome of one script execution.
//
// OK distinguishes user-level failures (syntax error, raised exception,
// missing run function) from harness failures, which surface as Go errors
// from RunPython/RunTypeScript instead.
type Result struct {
	OK     bool
	Output any
	Stdout string
	Stderr string
	Err    string
}

// envelope is the wire form the child writes on its stdout.
type envelope struct {
	OK     bool   `json:"ok"`
	Output any    `json:"output"`
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
	Error  string `json:"error"`
}
