package model

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOllamaChat(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]any{
			"model":         "llama3.2",
			"response":      "local hello",
			"done_reason":   "stop",
			"eval_count":    9,
			"eval_duration": 1500,
		})
	}))
	defer srv.Close()

	m, err := NewOllama(srv.URL)
	if err != nil {
		t.Fatalf("NewOllama() error = %v", err)
	}
	resp, err := m.Chat(context.Background(), ChatRequest{
		Model:       "llama3.2",
		System:      "be nice",
		Prompt:      "hi",
		Temperature: 0.5,
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if resp.Content != "local hello" || resp.EvalCount != 9 || resp.EvalDuration != 1500 {
		t.Errorf("resp = %+v", resp)
	}
	if resp.FinishReason != "stop" {
		t.Errorf("finish = %q", resp.FinishReason)
	}

	if gotBody["stream"] != false {
		t.Error("stream must be disabled")
	}
	prompt := gotBody["prompt"].(string)
	if prompt != "be nice\n\nhi" {
		t.Errorf("prompt = %q, system must prepend", prompt)
	}
	opts := gotBody["options"].(map[string]any)
	if opts["temperature"] != 0.5 {
		t.Errorf("options = %v", opts)
	}
}

func TestOllamaChatServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	m, err := NewOllama(srv.URL)
	if err != nil {
		t.Fatalf("NewOllama() error = %v", err)
	}
	if _, err := m.Chat(context.Background(), ChatRequest{Model: "ghost", Prompt: "hi"}); err == nil {
		t.Error("expected error for non-200 response")
	}
}

func TestNewOllamaRejectsPublicHosts(t *testing.T) {
	if _, err := NewOllama("http://8.8.8.8:11434"); err == nil {
		t.Error("public host admitted")
	}
}

func TestNewOllamaNormalizesScheme(t *testing.T) {
	m, err := NewOllama("localhost:11434")
	if err != nil {
		t.Fatalf("NewOllama() error = %v", err)
	}
	if m.Host() != "http://localhost:11434" {
		t.Errorf("host = %q", m.Host())
	}
}
