// Package scoring adapts an optional external prediction model.
//
// The model estimates expected output power from environmental features.
// Feature order is fixed and must match the deployed model:
// temperature, humidity, dust density, light percent, tilt angle.
package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// FeatureCount is the length of the feature vector passed to Score.
const FeatureCount = 5

// ErrUnavailable is returned when no scorer is configured or the model
// cannot produce a prediction. Callers degrade to rule-only evaluation.
var ErrUnavailable = errors.New("scoring: scorer unavailable")

// Scorer predicts expected power from an ordered feature vector.
type Scorer interface {
	Score(ctx context.Context, features []float64) (float64, error)
}

type disabled struct{}

func (disabled) Score(context.Context, []float64) (float64, error) {
	return 0, ErrUnavailable
}

// Disabled returns the scorer used when no model is deployed. Every call
// fails with ErrUnavailable, so prediction-backed rules never fire.
func Disabled() Scorer { return disabled{} }

// HTTPScorer calls a remote scoring service.
type HTTPScorer struct {
	url     string
	client  *http.Client
	timeout time.Duration
}

// HTTPOption configures the HTTP scorer.
type HTTPOption func(*HTTPScorer)

// WithTimeout bounds each scoring request.
func WithTimeout(timeout time.Duration) HTTPOption {
	return func(s *HTTPScorer) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(s *HTTPScorer) {
		if client != nil {
			s.client = client
		}
	}
}

// NewHTTPScorer constructs a scorer that POSTs the feature vector to url.
func NewHTTPScorer(url string, opts ...HTTPOption) (*HTTPScorer, error) {
	if url == "" {
		return nil, errors.New("scoring: empty url")
	}
	s := &HTTPScorer{
		url:     url,
		client:  http.DefaultClient,
		timeout: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

type scoreRequest struct {
	Features []float64 `json:"features"`
}

type scoreResponse struct {
	Prediction float64 `json:"prediction"`
}

// Score requests a prediction. Transport and decoding failures are returned
// as-is; only an unconfigured scorer reports ErrUnavailable.
func (s *HTTPScorer) Score(ctx context.Context, features []float64) (float64, error) {
	if s == nil || s.client == nil {
		return 0, ErrUnavailable
	}
	if len(features) != FeatureCount {
		return 0, fmt.Errorf("scoring: expected %d features, got %d", FeatureCount, len(features))
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	body, err := json.Marshal(scoreRequest{Features: features})
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("scoring: status %d", resp.StatusCode)
	}

	var out scoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, err
	}
	return out.Prediction, nil
}
