package workflow

import (
	"net/http"
	"time"

	"github.com/dshills/workflow-go/workflow/emit"
	"github.com/dshills/workflow-go/workflow/model"
)

// Options holds engine configuration. Zero values are replaced with the
// defaults below when the engine is constructed.
type Options struct {
	// FileRoot is the directory the file node may touch. Paths escaping it
	// are re-anchored to their base name inside it.
	FileRoot string

	// DBRoot is the directory database node files live in.
	DBRoot string

	// HTTPTimeout bounds each http node request.
	HTTPTimeout time.Duration

	// ScriptTimeout bounds a typescript node's wall clock.
	ScriptTimeout time.Duration

	// ChatTimeout bounds chat-completion requests to hosted providers.
	ChatTimeout time.Duration

	// OllamaTimeout bounds local ollama requests, which are slower than
	// hosted endpoints.
	OllamaTimeout time.Duration

	// ForEachConcurrency caps parallel loop iterations when a foreach node
	// does not set max_concurrency itself.
	ForEachConcurrency int

	// PythonBin and NodeBin name the interpreters for script nodes.
	PythonBin string
	NodeBin   string
}

func defaultOptions() Options {
	return Options{
		FileRoot:           "/tmp/workflow_files",
		DBRoot:             "/tmp/workflow_dbs",
		HTTPTimeout:        30 * time.Second,
		ScriptTimeout:      5 * time.Second,
		ChatTimeout:        60 * time.Second,
		OllamaTimeout:      120 * time.Second,
		ForEachConcurrency: 5,
		PythonBin:          "python3",
		NodeBin:            "node",
	}
}

// ChatFactory builds the chat backend for an llm node. The engine's default
// wires real providers; tests replace it to avoid network calls.
type ChatFactory func(provider, apiKey, baseURL string) (model.ChatModel, error)

// Option is a functional option for configuring an Engine.
type Option func(*Engine)

// WithEmitter sets the observability emitter. Default: NullEmitter.
func WithEmitter(e emit.Emitter) Option {
	return func(eng *Engine) { eng.emitter = e }
}

// WithMetrics sets the Prometheus metrics sink. Default: none.
func WithMetrics(m *Metrics) Option {
	return func(eng *Engine) { eng.metrics = m }
}

// WithFileRoot overrides the file node's safe directory.
func WithFileRoot(dir string) Option {
	return func(eng *Engine) { eng.opts.FileRoot = dir }
}

// WithDatabaseRoot overrides the database node's safe directory.
func WithDatabaseRoot(dir string) Option {
	return func(eng *Engine) { eng.opts.DBRoot = dir }
}

// WithHTTPTimeout overrides the http node request bound.
func WithHTTPTimeout(d time.Duration) Option {
	return func(eng *Engine) { eng.opts.HTTPTimeout = d }
}

// WithScriptTimeout overrides the typescript wall-clock bound.
func WithScriptTimeout(d time.Duration) Option {
	return func(eng *Engine) { eng.opts.ScriptTimeout = d }
}

// WithChatTimeout overrides the hosted-provider chat bound.
func WithChatTimeout(d time.Duration) Option {
	return func(eng *Engine) { eng.opts.ChatTimeout = d }
}

// WithOllamaTimeout overrides the local ollama chat bound.
func WithOllamaTimeout(d time.Duration) Option {
	return func(eng *Engine) { eng.opts.OllamaTimeout = d }
}

// WithForEachConcurrency overrides the default parallel iteration cap.
func WithForEachConcurrency(n int) Option {
	return func(eng *Engine) { eng.opts.ForEachConcurrency = n }
}

// WithPython overrides the python interpreter binary.
func WithPython(bin string) Option {
	return func(eng *Engine) { eng.opts.PythonBin = bin }
}

// WithNode overrides the node interpreter binary.
func WithNode(bin string) Option {
	return func(eng *Engine) { eng.opts.NodeBin = bin }
}

// WithHTTPClient overrides the client used by http nodes. Tests point it at
// httptest servers.
func WithHTTPClient(c *http.Client) Option {
	return func(eng *Engine) { eng.httpClient = c }
}

// WithChatFactory overrides how llm nodes obtain chat backends.
func WithChatFactory(f ChatFactory) Option {
	return func(eng *Engine) { eng.chatFactory = f }
}
