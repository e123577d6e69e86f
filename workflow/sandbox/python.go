package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
)

// pythonHarness is the program run in the child interpreter. It reads
// {code, input} as JSON on stdin, installs an import allow-list and a
// restricted builtins table, executes the user code, calls run(input) with
// stdout/stderr captured, and writes a single JSON envelope on stdout.
// Environment variables are readable through a plain environ dict snapshot;
// importing os itself stays denied.
const pythonHarness = `
import builtins
import io
import json
import os
import sys

ALLOWED_MODULES = {
    "json", "math", "random", "datetime", "time", "re", "base64", "hashlib",
    "collections", "itertools", "functools", "operator", "statistics",
    "decimal", "fractions", "uuid", "string", "pytz", "calendar", "copy",
    "heapq", "bisect", "array", "enum", "dataclasses", "typing", "zoneinfo",
    "urllib", "urllib.parse", "urllib.request", "urllib.error", "html", "csv",
    "codecs", "textwrap", "difflib", "pprint", "numpy", "pandas", "requests",
    "markdown", "bs4", "sentence_transformers",
}

SAFE_BUILTIN_NAMES = [
    "abs", "all", "any", "bool", "bytes", "callable", "chr", "dict", "dir",
    "divmod", "enumerate", "filter", "float", "format", "frozenset",
    "getattr", "hasattr", "hash", "hex", "int", "isinstance", "issubclass",
    "iter", "len", "list", "map", "max", "min", "next", "oct", "ord", "pow",
    "print", "range", "repr", "reversed", "round", "set", "slice", "sorted",
    "str", "sum", "tuple", "type", "zip", "Exception", "ValueError",
    "TypeError", "KeyError", "IndexError", "AttributeError", "RuntimeError",
    "StopIteration", "ZeroDivisionError", "ArithmeticError", "LookupError",
]

_real_import = builtins.__import__


def _guarded_import(name, globals=None, locals=None, fromlist=(), level=0):
    root = name.split(".")[0]
    if name not in ALLOWED_MODULES and root not in ALLOWED_MODULES:
        raise ImportError("import of module '%s' is not allowed" % name)
    return _real_import(name, globals, locals, fromlist, level)


def main():
    payload = json.load(sys.stdin)
    code = payload.get("code") or ""
    data = payload.get("input")

    safe_builtins = {}
    for name in SAFE_BUILTIN_NAMES:
        if hasattr(builtins, name):
            safe_builtins[name] = getattr(builtins, name)
    safe_builtins["__import__"] = _guarded_import

    env = {
        "__builtins__": safe_builtins,
        "input_data": data,
        "environ": dict(os.environ),
    }

    captured_out = io.StringIO()
    captured_err = io.StringIO()
    real_out, real_err = sys.stdout, sys.stderr
    sys.stdout, sys.stderr = captured_out, captured_err

    result = {"ok": True, "output": None}
    try:
        exec(compile(code, "<workflow>", "exec"), env)
        fn = env.get("run")
        if not callable(fn):
            raise RuntimeError("code must define a run(input) function")
        value = fn(data)
        result["output"] = json.loads(json.dumps(value, default=str))
    except BaseException as exc:
        result = {"ok": False, "error": "%s: %s" % (type(exc).__name__, exc)}
    finally:
        sys.stdout, sys.stderr = real_out, real_err

    result["stdout"] = captured_out.getvalue()
    result["stderr"] = captured_err.getvalue()
    json.dump(result, sys.stdout)


main()
`

// RunPython executes user code under bin (normally "python3") in a child
// process. The code must define run(input); its return value must be
// JSON-representable. User failures come back in Result.Err; a non-nil error
// means the interpreter itself could not run.
func RunPython(ctx context.Context, bin, code string, input any) (Result, error) {
	if bin == "" {
		bin = "python3"
	}
	payload, err := json.Marshal(map[string]any{"code": code, "input": input})
	if err != nil {
		return Result{}, fmt.Errorf("encode python payload: %w", err)
	}

	cmd := exec.CommandContext(ctx, bin, "-c", pythonHarness)
	cmd.Stdin = bytes.NewReader(payload)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return Result{}, fmt.Errorf("python worker: %w", ctx.Err())
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return Result{}, fmt.Errorf("python worker failed: %s", msg)
	}

	var env envelope
	if err := json.Unmarshal(stdout.Bytes(), &env); err != nil {
		return Result{}, fmt.Errorf("decode python result: %w", err)
	}
	return Result{
		OK:     env.OK,
		Output: env.Output,
		Stdout: env.Stdout,
		Stderr: env.Stderr,
		Err:    env.Error,
	}, nil
}
