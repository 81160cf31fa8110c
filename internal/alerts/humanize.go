package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"
)

// Humanizer produces a human-readable alert message from the alert kind and
// the measurements that triggered it. Implementations may call out to an
// external text service; the engine always has a deterministic fallback.
type Humanizer interface {
	Humanize(ctx context.Context, kind Kind, context map[string]any) (string, error)
}

// FallbackMessage renders the deterministic message used when no humanizer
// is configured or the configured one fails.
func FallbackMessage(kind Kind, ctx map[string]any) string {
	var base string
	switch kind {
	case KindDust:
		base = "Dust density above threshold"
	case KindLowPower:
		base = "Output power abnormally low in daylight"
	case KindOverheat:
		base = "Panel temperature above threshold"
	case KindEfficiencyDrop:
		base = "Output power well below predicted"
	default:
		base = "Alert " + string(kind)
	}
	if len(ctx) == 0 {
		return base
	}

	keys := make([]string, 0, len(ctx))
	for key := range ctx {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", key, ctx[key]))
	}
	return base + " (" + strings.Join(parts, ", ") + ")"
}

// HTTPHumanizer asks a remote text-generation service for the message.
type HTTPHumanizer struct {
	url     string
	client  *http.Client
	timeout time.Duration
}

// HumanizerOption configures the HTTP humanizer.
type HumanizerOption func(*HTTPHumanizer)

// WithHumanizerTimeout bounds each request.
func WithHumanizerTimeout(timeout time.Duration) HumanizerOption {
	return func(h *HTTPHumanizer) {
		if timeout > 0 {
			h.timeout = timeout
		}
	}
}

// WithHumanizerClient overrides the default HTTP client.
func WithHumanizerClient(client *http.Client) HumanizerOption {
	return func(h *HTTPHumanizer) {
		if client != nil {
			h.client = client
		}
	}
}

// NewHTTPHumanizer constructs a humanizer backed by a remote service.
func NewHTTPHumanizer(url string, opts ...HumanizerOption) (*HTTPHumanizer, error) {
	if url == "" {
		return nil, errors.New("alerts humanizer: empty url")
	}
	h := &HTTPHumanizer{
		url:     url,
		client:  http.DefaultClient,
		timeout: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

type humanizeRequest struct {
	Kind    string         `json:"kind"`
	Context map[string]any `json:"context"`
}

type humanizeResponse struct {
	Message string `json:"message"`
}

// Humanize requests a message; failures are returned so the caller can fall
// back, never to block or fail the pipeline.
func (h *HTTPHumanizer) Humanize(ctx context.Context, kind Kind, alertCtx map[string]any) (string, error) {
	if h == nil || h.client == nil {
		return "", errors.New("alerts humanizer: not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	body, err := json.Marshal(humanizeRequest{Kind: string(kind), Context: alertCtx})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("alerts humanizer: status %d", resp.StatusCode)
	}

	var out humanizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if out.Message == "" {
		return "", errors.New("alerts humanizer: empty message")
	}
	return out.Message, nil
}
