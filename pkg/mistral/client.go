// Package mistral provides HTTP access to the Mistral document OCR and
// chat completion APIs.
package mistral

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL   = "https://api.mistral.ai"
	defaultOCRModel  = "mistral-ocr-latest"
	defaultChatModel = "mistral-large-latest"
)

// Client performs OCR and chat completion calls against the Mistral API.
type Client interface {
	ProcessDocument(ctx context.Context, req OCRRequest) (*OCRResponse, error)
	ChatCompletion(ctx context.Context, req ChatCompletionRequest) (*ChatCompletionResponse, error)
}

// OCRRequest is the request body for POST /v1/ocr.
type OCRRequest struct {
	Model              string   `json:"model"`
	Document           Document `json:"document"`
	IncludeImageBase64 bool     `json:"include_image_base64"`
}

// Document wraps the uploaded file as a data-URI document reference.
type Document struct {
	Type        string `json:"type"`
	DocumentURL string `json:"document_url"`
}

// OCRResponse is the response from POST /v1/ocr.
type OCRResponse struct {
	Pages []Page `json:"pages"`
}

// Page is a single recognized page with its markdown rendering.
type Page struct {
	Index    int    `json:"index"`
	Markdown string `json:"markdown"`
}

// ChatCompletionRequest is the request body for POST /v1/chat/completions.
type ChatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
}

// Message represents a single message in the conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompletionResponse is the response from POST /v1/chat/completions.
type ChatCompletionResponse struct {
	ID      string   `json:"id"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

// Choice is a single completion choice.
type Choice struct {
	Index   int     `json:"index"`
	Message Message `json:"message"`
}

// Usage reports token consumption.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithOCRModel overrides the default OCR model.
func WithOCRModel(model string) Option {
	return func(c *httpClient) {
		c.ocrModel = model
	}
}

// WithChatModel overrides the default chat model.
func WithChatModel(model string) Option {
	return func(c *httpClient) {
		c.chatModel = model
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit sets a per-second rate limit for API calls.
// A burst equal to the integer portion of rps is allowed.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

type httpClient struct {
	apiKey    string
	baseURL   string
	ocrModel  string
	chatModel string
	http      *http.Client
	limiter   *rate.Limiter
}

// NewClient creates a Mistral API client. OCR and chat calls are not bounded
// by a client timeout; the service's own limits apply.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:    apiKey,
		baseURL:   defaultBaseURL,
		ocrModel:  defaultOCRModel,
		chatModel: defaultChatModel,
		http: &http.Client{
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

// wait blocks until the rate limiter allows one event, or ctx is cancelled.
func (c *httpClient) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

func (c *httpClient) ProcessDocument(ctx context.Context, req OCRRequest) (*OCRResponse, error) {
	if req.Model == "" {
		req.Model = c.ocrModel
	}

	if err := c.wait(ctx); err != nil {
		return nil, eris.Wrap(err, "mistral: rate limit")
	}

	respBody, err := c.post(ctx, "/v1/ocr", req)
	if err != nil {
		return nil, err
	}

	var result OCRResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "mistral: unmarshal ocr response")
	}
	return &result, nil
}

func (c *httpClient) ChatCompletion(ctx context.Context, req ChatCompletionRequest) (*ChatCompletionResponse, error) {
	if req.Model == "" {
		req.Model = c.chatModel
	}

	if err := c.wait(ctx); err != nil {
		return nil, eris.Wrap(err, "mistral: rate limit")
	}

	respBody, err := c.post(ctx, "/v1/chat/completions", req)
	if err != nil {
		return nil, err
	}

	var result ChatCompletionResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "mistral: unmarshal chat response")
	}
	return &result, nil
}

// post issues one JSON POST and returns the raw body. Exactly one attempt;
// failures surface verbatim to the caller.
func (c *httpClient) post(ctx context.Context, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, eris.Wrap(err, "mistral: marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "mistral: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "mistral: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "mistral: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("mistral: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}
