package workflow

import (
	"context"
	"strings"
	"testing"
)

func TestExecMarkdown(t *testing.T) {
	e := NewEngine()
	ctx := context.Background()

	t.Run("explicit content key wins", func(t *testing.T) {
		node := &Node{Type: NodeMarkdown, Config: map[string]any{"content_key": "report"}}
		out := e.execMarkdown(ctx, node, map[string]any{
			"report":  "# Title",
			"content": "should be ignored",
		})
		got := out.Output.(map[string]any)
		if got["content"] != "# Title" || got["source_key"] != "report" {
			t.Errorf("output = %v", got)
		}
	})

	t.Run("missing explicit key lists what exists", func(t *testing.T) {
		node := &Node{Type: NodeMarkdown, Config: map[string]any{"content_key": "ghost"}}
		out := e.execMarkdown(ctx, node, map[string]any{"alpha": "a", "beta": "b"})
		if out.Status != StatusError {
			t.Fatal("expected error")
		}
		if !strings.Contains(out.Error, "alpha, beta") {
			t.Errorf("error = %q", out.Error)
		}
	})

	t.Run("preferred keys picked without config", func(t *testing.T) {
		out := e.execMarkdown(ctx, &Node{Type: NodeMarkdown}, map[string]any{
			"content": "## Heading",
			"zzz":     "other",
		})
		got := out.Output.(map[string]any)
		if got["source_key"] != "content" {
			t.Errorf("source_key = %v", got["source_key"])
		}
	})

	t.Run("format detection over remaining strings", func(t *testing.T) {
		out := e.execMarkdown(ctx, &Node{Type: NodeMarkdown}, map[string]any{
			"notes": "plain words",
			"doc":   "# Looks like markdown",
		})
		got := out.Output.(map[string]any)
		if got["source_key"] != "doc" {
			t.Errorf("source_key = %v, content = %q", got["source_key"], got["content"])
		}
	})
}

func TestExecHTML(t *testing.T) {
	e := NewEngine()
	out := e.execHTML(context.Background(), &Node{Type: NodeHTML}, map[string]any{
		"body": "<h1>Hello</h1><p>World</p>",
	})
	if out.Status != StatusSuccess {
		t.Fatalf("error = %s", out.Error)
	}
	got := out.Output.(map[string]any)
	if got["format"] != "html" {
		t.Errorf("format = %v", got["format"])
	}
	md, ok := got["content_markdown"].(string)
	if !ok || !strings.Contains(md, "Hello") {
		t.Errorf("content_markdown = %v", got["content_markdown"])
	}
}

func TestExecJSON(t *testing.T) {
	e := NewEngine()
	ctx := context.Background()

	t.Run("dotted content key pretty-prints the value", func(t *testing.T) {
		node := &Node{Type: NodeJSON, Config: map[string]any{"content_key": "resp.data"}}
		out := e.execJSON(ctx, node, map[string]any{
			"resp": map[string]any{"data": map[string]any{"n": float64(1)}},
		})
		if out.Status != StatusSuccess {
			t.Fatalf("error = %s", out.Error)
		}
		got := out.Output.(map[string]any)
		if !strings.Contains(got["content"].(string), "\"n\": 1") {
			t.Errorf("content = %q", got["content"])
		}
	})

	t.Run("string content parses as json", func(t *testing.T) {
		node := &Node{Type: NodeJSON, Config: map[string]any{"content_key": "raw"}}
		out := e.execJSON(ctx, node, map[string]any{"raw": `{"ok": true}`})
		got := out.Output.(map[string]any)
		parsed := got["parsed"].(map[string]any)
		if parsed["ok"] != true {
			t.Errorf("parsed = %v", parsed)
		}
	})

	t.Run("almost-json is repaired", func(t *testing.T) {
		node := &Node{Type: NodeJSON, Config: map[string]any{"content_key": "raw"}}
		out := e.execJSON(ctx, node, map[string]any{"raw": "{ok: true, msg: 'hi',}"})
		if out.Status != StatusSuccess {
			t.Fatalf("error = %s", out.Error)
		}
		parsed := out.Output.(map[string]any)["parsed"].(map[string]any)
		if parsed["ok"] != true || parsed["msg"] != "hi" {
			t.Errorf("parsed = %v", parsed)
		}
	})

	t.Run("missing key errors with the available keys", func(t *testing.T) {
		node := &Node{Type: NodeJSON, Config: map[string]any{"content_key": "nope"}}
		out := e.execJSON(ctx, node, map[string]any{"a": float64(1)})
		if out.Status != StatusError || !strings.Contains(out.Error, "available keys") {
			t.Errorf("outcome = %+v", out)
		}
	})

	t.Run("no key renders the whole input", func(t *testing.T) {
		out := e.execJSON(ctx, &Node{Type: NodeJSON}, map[string]any{"whole": "thing"})
		got := out.Output.(map[string]any)
		if !strings.Contains(got["content"].(string), "whole") {
			t.Errorf("content = %q", got["content"])
		}
	})
}
