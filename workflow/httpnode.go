package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// execHTTP performs one outbound request. Placeholders in the config resolve
// against the node's input before the request is built. Non-2xx responses are
// still success outcomes carrying status_code; only transport failures and
// timeouts are errors.
func (e *Engine) execHTTP(ctx context.Context, node *Node, input any) Outcome {
	cfg, _ := asMap(substitutePlaceholders(cloneValue(anyMap(node.Config)), input))

	method := strings.ToUpper(stringField(cfg, "method", "GET"))
	rawURL := stringField(cfg, "url", "")
	if rawURL == "" {
		return errorOutcome("http node requires a url")
	}

	finalURL, err := appendQueryParams(rawURL, cfg["params"])
	if err != nil {
		return errorOutcome(fmt.Sprintf("invalid url %q: %v", rawURL, err))
	}

	var body io.Reader
	hasBody := false
	if method == http.MethodPost || method == http.MethodPut || method == http.MethodPatch {
		if raw, ok := cfg["body"]; ok && raw != nil {
			encoded, err := json.Marshal(raw)
			if err != nil {
				return errorOutcome(fmt.Sprintf("encode request body: %v", err))
			}
			body = bytes.NewReader(encoded)
			hasBody = true
		}
	}

	timeout := e.opts.HTTPTimeout
	if secs := floatField(cfg, "timeout", 0); secs > 0 {
		timeout = time.Duration(secs * float64(time.Second))
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, finalURL, body)
	if err != nil {
		return errorOutcome(fmt.Sprintf("build request: %v", err))
	}
	if hasBody {
		req.Header.Set("Content-Type", "application/json")
	}
	if headers, ok := asMap(cfg["headers"]); ok {
		for k, v := range headers {
			req.Header.Set(k, stringifyValue(v))
		}
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return errorOutcome(fmt.Sprintf("HTTP request failed: %v", err))
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errorOutcome(fmt.Sprintf("read response body: %v", err))
	}

	var data any
	if err := json.Unmarshal(rawBody, &data); err != nil {
		data = string(rawBody)
	}

	// Single-valued headers flatten to strings; repeated headers stay lists.
	respHeaders := make(map[string]any, len(resp.Header))
	for k, vals := range resp.Header {
		if len(vals) == 1 {
			respHeaders[k] = vals[0]
		} else {
			respHeaders[k] = vals
		}
	}

	output := map[string]any{
		"status_code": resp.StatusCode,
		"headers":     respHeaders,
		"data":        data,
		"url":         finalURL,
		"method":      method,
	}
	// Input fields ride along unless the response claimed the key.
	if in, ok := asMap(input); ok {
		for k, v := range in {
			if _, taken := output[k]; !taken {
				output[k] = cloneValue(v)
			}
		}
	}

	out := successOutcome(output)
	out.Stdout = fmt.Sprintf("HTTP %s %s -> %d", method, finalURL, resp.StatusCode)
	return out
}

// anyMap returns cfg or an empty map, so substitution always has a mapping.
func anyMap(cfg map[string]any) map[string]any {
	if cfg == nil {
		return map[string]any{}
	}
	return cfg
}

// appendQueryParams merges a params mapping into the url's query string.
func appendQueryParams(rawURL string, params any) (string, error) {
	pm, ok := asMap(params)
	if !ok || len(pm) == 0 {
		return rawURL, nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	for k, v := range pm {
		q.Set(k, stringifyValue(v))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
