package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/kaptinlin/jsonrepair"
)

// Viewer nodes select a piece of content from their input for display. An
// explicit content_key wins; otherwise selection walks a preference list of
// common keys, then falls back to format detection over every string field,
// then to the longest string, then to the whole input pretty-printed.

var preferredContentKeys = []string{
	"content", "markdown", "md", "html", "text", "body", "message",
	"output", "result", "data",
}

var (
	markdownishRe = regexp.MustCompile(`(?m)^#{1,6}\s|\*\*[^*]+\*\*|\[[^\]]+\]\([^)]+\)|^[-*]\s`)
	htmlishRe     = regexp.MustCompile(`(?i)<(?:html|body|div|p|h[1-6]|span|table|ul|ol|a|img|br)\b[^>]*>`)
)

// execMarkdown renders markdown content for the visual builder.
func (e *Engine) execMarkdown(ctx context.Context, node *Node, input any) Outcome {
	content, sourceKey, err := selectContent(node, input, markdownishRe)
	if err != nil {
		return errorOutcome(err.Error())
	}
	output := map[string]any{
		"content":    content,
		"format":     "markdown",
		"source_key": sourceKey,
	}
	out := successOutcome(output)
	out.Stdout = fmt.Sprintf("Rendered markdown content from %q", sourceKey)
	return out
}

// execHTML renders HTML content, with a supplemental markdown conversion so
// text-only clients get a readable rendering.
func (e *Engine) execHTML(ctx context.Context, node *Node, input any) Outcome {
	content, sourceKey, err := selectContent(node, input, htmlishRe)
	if err != nil {
		return errorOutcome(err.Error())
	}
	output := map[string]any{
		"content":    content,
		"format":     "html",
		"source_key": sourceKey,
	}
	if md, err := htmltomarkdown.ConvertString(content); err == nil {
		output["content_markdown"] = md
	}
	out := successOutcome(output)
	out.Stdout = fmt.Sprintf("Rendered html content from %q", sourceKey)
	return out
}

// execJSON pretty-prints a value from the input. String content that fails
// strict parsing goes through jsonrepair, which recovers the almost-JSON
// that LLM nodes tend to produce.
func (e *Engine) execJSON(ctx context.Context, node *Node, input any) Outcome {
	contentKey := stringField(node.Config, "content_key", "")

	var value any
	sourceKey := contentKey
	if contentKey != "" {
		v, found := lookupPath(input, contentKey)
		if !found {
			return errorOutcome(keyNotFoundMessage(contentKey, input))
		}
		value = v
	} else {
		value = input
		sourceKey = ""
	}

	if s, ok := value.(string); ok {
		parsed, err := parseTolerantJSON(s)
		if err != nil {
			return errorOutcome(fmt.Sprintf("content under %q is not valid JSON: %v", sourceKey, err))
		}
		value = parsed
	}

	pretty, err := json.MarshalIndent(sanitizeValue(value), "", "  ")
	if err != nil {
		return errorOutcome(fmt.Sprintf("encode json content: %v", err))
	}
	output := map[string]any{
		"content":    string(pretty),
		"parsed":     value,
		"format":     "json",
		"source_key": sourceKey,
	}
	out := successOutcome(output)
	out.Stdout = "Rendered json content"
	return out
}

func parseTolerantJSON(s string) (any, error) {
	var value any
	if err := json.Unmarshal([]byte(s), &value); err == nil {
		return value, nil
	}
	repaired, err := jsonrepair.JSONRepair(s)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(repaired), &value); err != nil {
		return nil, err
	}
	return value, nil
}

// selectContent picks the string to display. Explicit content_key is
// authoritative and errors when missing so misconfigured viewers are visible.
func selectContent(node *Node, input any, formatRe *regexp.Regexp) (content, sourceKey string, err error) {
	contentKey := stringField(node.Config, "content_key", "")
	if contentKey != "" {
		v, found := lookupPath(input, contentKey)
		if !found {
			return "", "", fmt.Errorf("%s", keyNotFoundMessage(contentKey, input))
		}
		return stringifyValue(v), contentKey, nil
	}

	in, ok := asMap(input)
	if !ok {
		return stringifyValue(input), "", nil
	}
	for _, key := range preferredContentKeys {
		if v, has := in[key]; has {
			if s, ok := v.(string); ok && s != "" {
				return s, key, nil
			}
		}
	}
	// Format detection over the remaining string fields, stable by key.
	var longest, longestKey string
	for _, key := range mapKeys(in) {
		s, ok := in[key].(string)
		if !ok || s == "" {
			continue
		}
		if formatRe.MatchString(s) {
			return s, key, nil
		}
		if len(s) > len(longest) {
			longest, longestKey = s, key
		}
	}
	if longest != "" {
		return longest, longestKey, nil
	}
	pretty, err := json.MarshalIndent(sanitizeValue(input), "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("no displayable content in input")
	}
	return string(pretty), "", nil
}

func keyNotFoundMessage(key string, input any) string {
	if in, ok := asMap(input); ok {
		return fmt.Sprintf("content key %q not found; available keys: %s", key, strings.Join(mapKeys(in), ", "))
	}
	return fmt.Sprintf("content key %q not found in non-mapping input", key)
}
