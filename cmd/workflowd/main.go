// Command workflowd serves the workflow execution engine over HTTP.
//
// Configuration is environment driven (a .env file is honored):
//
//	WORKFLOWD_ADDR         listen address, default :8000
//	WORKFLOWD_TRACE        any non-empty value enables OpenTelemetry spans
//	OPENROUTER_API_KEY     default key for openrouter llm nodes
//	ANTHROPIC_API_KEY      default key for anthropic llm nodes
//	OLLAMA_HOST            default local ollama endpoint
//	ALLOWED_OLLAMA_HOSTS   extra ollama hostnames, comma separated
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/dshills/workflow-go/server"
	"github.com/dshills/workflow-go/workflow"
	"github.com/dshills/workflow-go/workflow/emit"
)

func main() {
	_ = godotenv.Load()

	addr := os.Getenv("WORKFLOWD_ADDR")
	if addr == "" {
		addr = ":8000"
	}

	var emitter emit.Emitter = emit.NewLogEmitter(os.Stdout, false)
	if os.Getenv("WORKFLOWD_TRACE") != "" {
		tp := sdktrace.NewTracerProvider()
		otel.SetTracerProvider(tp)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = tp.Shutdown(ctx)
		}()
		emitter = emit.NewOTelEmitter(otel.Tracer("workflow-go"))
	}

	reg := prometheus.NewRegistry()
	metrics := workflow.NewMetrics(reg)

	engine := workflow.NewEngine(
		workflow.WithEmitter(emitter),
		workflow.WithMetrics(metrics),
	)

	srv := &http.Server{
		Addr:              addr,
		Handler:           server.New(engine, reg),
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Printf("workflowd listening on %s", addr)
	log.Fatal(srv.ListenAndServe())
}
