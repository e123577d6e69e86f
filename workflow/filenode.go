package workflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// execFile performs read, write, append, delete, and list operations inside
// the engine's safe directory. Paths that resolve outside the root are
// re-anchored to their base name within it, so a workflow cannot touch the
// host filesystem.
func (e *Engine) execFile(ctx context.Context, node *Node, input any) Outcome {
	cfg, _ := asMap(substitutePlaceholders(cloneValue(anyMap(node.Config)), input))

	operation := strings.ToLower(stringField(cfg, "operation", "read"))
	rawPath := stringField(cfg, "path", stringField(cfg, "filename", ""))
	if rawPath == "" {
		return errorOutcome("file node requires a path")
	}
	root := e.opts.FileRoot
	if err := os.MkdirAll(root, 0o755); err != nil {
		return errorOutcome(fmt.Sprintf("prepare file root: %v", err))
	}
	path := confinePath(root, rawPath)

	var output map[string]any
	switch operation {
	case "read":
		data, err := os.ReadFile(path)
		if err != nil {
			return errorOutcome(fmt.Sprintf("File not found: %s", path))
		}
		output = map[string]any{
			"content":   string(data),
			"path":      path,
			"size":      len(data),
			"operation": operation,
		}
	case "write":
		content := stringField(cfg, "content", "")
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return errorOutcome(fmt.Sprintf("write %s: %v", path, err))
		}
		output = map[string]any{
			"path":          path,
			"bytes_written": len(content),
			"operation":     operation,
		}
	case "append":
		content := stringField(cfg, "content", "")
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return errorOutcome(fmt.Sprintf("open %s: %v", path, err))
		}
		if _, err := f.WriteString(content); err != nil {
			f.Close()
			return errorOutcome(fmt.Sprintf("append %s: %v", path, err))
		}
		f.Close()
		output = map[string]any{
			"path":           path,
			"bytes_appended": len(content),
			"operation":      operation,
		}
	case "delete":
		if err := os.Remove(path); err != nil {
			return errorOutcome(fmt.Sprintf("File not found: %s", path))
		}
		output = map[string]any{
			"path":      path,
			"operation": operation,
			"success":   true,
		}
	case "list":
		dir := path
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			dir = filepath.Dir(dir)
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			return errorOutcome(fmt.Sprintf("list %s: %v", dir, err))
		}
		files := make([]any, 0, len(entries))
		for _, entry := range entries {
			files = append(files, entry.Name())
		}
		output = map[string]any{
			"path":      dir,
			"files":     files,
			"count":     len(files),
			"operation": operation,
		}
	default:
		return errorOutcome(fmt.Sprintf("unknown file operation %q", operation))
	}

	out := successOutcome(output)
	out.Stdout = fmt.Sprintf("File operation '%s' completed on %s", operation, path)
	return out
}

// confinePath resolves raw inside root. Absolute paths already under root
// are kept; everything else is flattened to its base name in the root.
func confinePath(root, raw string) string {
	clean := filepath.Clean(raw)
	if filepath.IsAbs(clean) {
		if clean == root || strings.HasPrefix(clean, root+string(filepath.Separator)) {
			return clean
		}
		return filepath.Join(root, filepath.Base(clean))
	}
	joined := filepath.Join(root, clean)
	if joined == root || strings.HasPrefix(joined, root+string(filepath.Separator)) {
		return joined
	}
	return filepath.Join(root, filepath.Base(clean))
}
