package workflow

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/dshills/workflow-go/workflow/model"
)

// DefaultEmbeddingModel is used when an embedding node does not name one.
const DefaultEmbeddingModel = "nomic-embed-text"

// execEmbedding vectorizes one input field. The input mapping is preserved
// and extended with the vector under output_field, formatted per config
// ("blob" for little-endian float32 bytes, "array" for a float list), plus
// <output_field>_array, <output_field>_bytes, and <output_field>_dim
// companions.
func (e *Engine) execEmbedding(ctx context.Context, node *Node, input any) Outcome {
	cfg := anyMap(node.Config)
	modelName := stringField(cfg, "model", DefaultEmbeddingModel)
	inputField := stringField(cfg, "input_field", "text")
	outputField := stringField(cfg, "output_field", "embedding")
	format := stringField(cfg, "format", "blob")

	text := embeddingText(input, inputField)
	if text == "" {
		return errorOutcome(fmt.Sprintf("embedding input field %q is empty", inputField))
	}

	embedder, err := model.EmbedderFor(modelName)
	if err != nil {
		return errorOutcome(err.Error())
	}
	ctx, cancel := context.WithTimeout(ctx, e.opts.OllamaTimeout)
	defer cancel()
	vec, err := embedder.Embed(ctx, text)
	if err != nil {
		return errorOutcome(fmt.Sprintf("embedding failed: %v", err))
	}

	floats := make([]any, len(vec))
	for i, f := range vec {
		floats[i] = float64(f)
	}

	output := make(map[string]any)
	if in, ok := asMap(input); ok {
		for k, v := range in {
			output[k] = cloneValue(v)
		}
	}
	raw := float32Bytes(vec)
	switch format {
	case "array":
		output[outputField] = floats
	default:
		output[outputField] = raw
	}
	output[outputField+"_array"] = floats
	output[outputField+"_bytes"] = raw
	output[outputField+"_dim"] = len(vec)

	out := successOutcome(output)
	out.Stdout = fmt.Sprintf("Generated %d-dimensional embedding with %s", len(vec), modelName)
	return out
}

// embeddingText picks the text to vectorize: the configured field, then the
// input itself when it is a string, then the first string value in key order.
func embeddingText(input any, inputField string) string {
	if raw, found := lookupPath(input, inputField); found {
		if s := stringifyValue(raw); s != "" && s != "null" {
			return s
		}
	}
	if s, ok := input.(string); ok {
		return s
	}
	if m, ok := asMap(input); ok {
		for _, k := range mapKeys(m) {
			if s, ok := m[k].(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// float32Bytes encodes a vector as little-endian float32 bytes, the layout
// sqlite vector extensions ingest.
func float32Bytes(vec []float32) []byte {
	raw := make([]byte, len(vec)*4)
	for i, f := range vec {
		binary.LittleEndian.PutUint32(raw[i*4:], math.Float32bits(f))
	}
	return raw
}
