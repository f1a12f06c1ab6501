// Package huggingface provides a client for the Hugging Face Inference API
// zero-shot classification pipeline.
package huggingface

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

const (
	defaultBaseURL = "https://api-inference.huggingface.co"
	defaultModel   = "facebook/bart-large-mnli"
)

// Client performs zero-shot classification requests against the Inference API.
type Client interface {
	ZeroShot(ctx context.Context, req ZeroShotRequest) ([]ZeroShotResponse, error)
}

// ZeroShotRequest is the request body for POST /models/{model}. Inputs may
// hold one or more sequences; the API scores each against every candidate
// label.
type ZeroShotRequest struct {
	Inputs     []string   `json:"inputs"`
	Parameters Parameters `json:"parameters"`
	Options    Options    `json:"options,omitempty"`
}

// Parameters configures the zero-shot pipeline.
type Parameters struct {
	CandidateLabels []string `json:"candidate_labels"`
	MultiLabel      bool     `json:"multi_label"`
}

// Options configures Inference API request handling.
type Options struct {
	WaitForModel bool `json:"wait_for_model,omitempty"`
}

// ZeroShotResponse is the per-sequence result. Labels and Scores are
// parallel slices sorted by descending score.
type ZeroShotResponse struct {
	Sequence string    `json:"sequence"`
	Labels   []string  `json:"labels"`
	Scores   []float64 `json:"scores"`
}

// APIError is a non-2xx response from the Inference API. A 503 with
// EstimatedTime set means the model is still loading.
type APIError struct {
	StatusCode    int
	Message       string
	EstimatedTime float64
}

func (e *APIError) Error() string {
	if e.EstimatedTime > 0 {
		return fmt.Sprintf("huggingface: status %d: %s (model loading, ~%.0fs)", e.StatusCode, e.Message, e.EstimatedTime)
	}
	return fmt.Sprintf("huggingface: status %d: %s", e.StatusCode, e.Message)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithModel overrides the default model.
func WithModel(model string) Option {
	return func(c *httpClient) {
		c.model = model
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	model   string
	http    *http.Client
}

// NewClient creates an Inference API client. An empty apiKey is allowed;
// unauthenticated requests are rate-limited but functional for public models.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		model:   defaultModel,
		http: &http.Client{
			Timeout: 120 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) ZeroShot(ctx context.Context, req ZeroShotRequest) ([]ZeroShotResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "huggingface: marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/models/"+c.model, bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "huggingface: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "huggingface: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "huggingface: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, parseAPIError(resp.StatusCode, respBody)
	}

	return parseZeroShot(respBody)
}

// parseZeroShot accepts both response shapes: an array for multi-sequence
// inputs and a bare object when the API collapses a single-sequence request.
func parseZeroShot(body []byte) ([]ZeroShotResponse, error) {
	var many []ZeroShotResponse
	if err := json.Unmarshal(body, &many); err == nil {
		return many, nil
	}

	var one ZeroShotResponse
	if err := json.Unmarshal(body, &one); err != nil {
		return nil, eris.Wrap(err, "huggingface: unmarshal response")
	}
	return []ZeroShotResponse{one}, nil
}

func parseAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status, Message: string(body)}

	var detail struct {
		Error         string  `json:"error"`
		EstimatedTime float64 `json:"estimated_time"`
	}
	if err := json.Unmarshal(body, &detail); err == nil && detail.Error != "" {
		apiErr.Message = detail.Error
		apiErr.EstimatedTime = detail.EstimatedTime
	}
	return apiErr
}
