package workflow

import (
	"context"

	"github.com/dshills/workflow-go/workflow/sandbox"
)

// scriptSource returns the user code for a script node, preferring the code
// field over config.
func scriptSource(node *Node) string {
	if node.Code != "" {
		return node.Code
	}
	return stringField(node.Config, "code", "")
}

// execPython runs user python in a sandboxed child interpreter. The code
// must define run(input); imports are restricted to the allow-list the
// sandbox enforces.
func (e *Engine) execPython(ctx context.Context, node *Node, input any) Outcome {
	code := scriptSource(node)
	if code == "" {
		return errorOutcome("python node has no code")
	}
	res, err := sandbox.RunPython(ctx, e.opts.PythonBin, code, input)
	if err != nil {
		return errorOutcome(err.Error())
	}
	if !res.OK {
		return Outcome{
			Status: StatusError,
			Error:  res.Err,
			Stdout: res.Stdout,
			Stderr: res.Stderr,
		}
	}
	return Outcome{
		Status: StatusSuccess,
		Output: res.Output,
		Stdout: res.Stdout,
		Stderr: res.Stderr,
	}
}

// execTypeScript strips type annotations and runs the result under node with
// a wall-clock bound. Slow scripts come back as error outcomes, not hung
// workflows.
func (e *Engine) execTypeScript(ctx context.Context, node *Node, input any) Outcome {
	code := scriptSource(node)
	if code == "" {
		return errorOutcome("typescript node has no code")
	}
	res, err := sandbox.RunTypeScript(ctx, e.opts.NodeBin, code, input, e.opts.ScriptTimeout)
	if err != nil {
		return errorOutcome(err.Error())
	}
	if !res.OK {
		return Outcome{
			Status: StatusError,
			Error:  res.Err,
			Stdout: res.Stdout,
			Stderr: res.Stderr,
		}
	}
	return Outcome{
		Status: StatusSuccess,
		Output: res.Output,
		Stdout: res.Stdout,
		Stderr: res.Stderr,
	}
}
