package tgi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Parameters are the generation settings accepted by text-generation-inference.
type Parameters struct {
	DoSample       bool    `json:"do_sample"`
	TopK           int     `json:"top_k,omitempty"`
	Temperature    float32 `json:"temperature,omitempty"`
	MaxNewTokens   int     `json:"max_new_tokens,omitempty"`
	ReturnFullText bool    `json:"return_full_text"`
	Truncate       int     `json:"truncate,omitempty"`
}

// GenerateRequest is the payload for POST /generate.
type GenerateRequest struct {
	Inputs     string     `json:"inputs"`
	Parameters Parameters `json:"parameters"`
}

// GenerateResponse carries the generated text.
type GenerateResponse struct {
	GeneratedText string `json:"generated_text"`
}

type errorResponse struct {
	Error     string `json:"error"`
	ErrorType string `json:"error_type"`
}

// Client talks to a text-generation-inference server or the hosted
// Hugging Face inference API, which share the request shape.
type Client struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
}

// NewClient constructs a TGI client. baseURL may point at a server root or
// directly at a model endpoint.
func NewClient(apiKey, baseURL string, timeout time.Duration) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("tgi base url cannot be empty")
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	endpoint := baseURL
	if !strings.HasSuffix(endpoint, "/generate") {
		endpoint += "/generate"
	}
	return &Client{
		apiKey:   strings.TrimSpace(apiKey),
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// Generate runs one synchronous generation.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return GenerateResponse{}, fmt.Errorf("encode generate request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return GenerateResponse{}, fmt.Errorf("build generate request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return GenerateResponse{}, fmt.Errorf("request generate: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return GenerateResponse{}, fmt.Errorf("read generate response: %w", err)
	}
	if resp.StatusCode >= 300 {
		var apiErr errorResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return GenerateResponse{}, fmt.Errorf("tgi generate failed: status=%d type=%s error=%s", resp.StatusCode, apiErr.ErrorType, apiErr.Error)
		}
		return GenerateResponse{}, fmt.Errorf("tgi generate failed: status=%d body=%s", resp.StatusCode, truncateBody(body))
	}
	return decodeGenerate(body)
}

// decodeGenerate accepts the single-object form returned by TGI and the
// one-element array returned by the hosted inference API.
func decodeGenerate(body []byte) (GenerateResponse, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var many []GenerateResponse
		if err := json.Unmarshal(trimmed, &many); err != nil {
			return GenerateResponse{}, fmt.Errorf("decode generate response: %w", err)
		}
		if len(many) == 0 {
			return GenerateResponse{}, errors.New("tgi returned no generations")
		}
		return many[0], nil
	}
	var out GenerateResponse
	if err := json.Unmarshal(trimmed, &out); err != nil {
		return GenerateResponse{}, fmt.Errorf("decode generate response: %w", err)
	}
	return out, nil
}

func truncateBody(body []byte) string {
	const limit = 4 << 10
	if len(body) > limit {
		return string(body[:limit])
	}
	return string(body)
}
