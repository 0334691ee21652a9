package fusion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/apflow/invoice-cli/internal/model"
)

// invoicesPath is the Fusion REST resource for AP invoices.
const invoicesPath = "/fscmRestApi/resources/11.13.18.05/invoices"

// contentType is the Oracle ADF resource item media type the invoices
// resource requires.
const contentType = "application/vnd.oracle.adf.resourceitem+json"

const defaultTimeout = 30 * time.Second

// Client posts invoice payloads to one Fusion instance.
type Client struct {
	baseURL    string
	creds      Credentials
	httpClient *http.Client
}

// Option configures the Fusion client.
type Option func(*Client)

// WithHTTPClient overrides the default 30s-timeout HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a Fusion client for the given instance base URL.
func NewClient(baseURL string, creds Credentials, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		creds:      creds,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SubmitResult is a successful submission outcome: HTTP 200 or 201 plus the
// verbatim response body.
type SubmitResult struct {
	StatusCode int    `json:"status_code"`
	Body       string `json:"body"`
}

// StatusError is a Fusion response with any other status. The body is kept
// verbatim so the user sees exactly what the ERP said.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fusion: status %d: %s", e.StatusCode, e.Body)
}

// CreateInvoice posts the payload to the invoices resource. One attempt, no
// retries: invoice creation is not idempotent, so a timed-out request must
// surface to the user rather than silently repost.
func (c *Client) CreateInvoice(ctx context.Context, payload model.InvoicePayload) (*SubmitResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, eris.Wrap(err, "fusion: marshal payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+invoicesPath, bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "fusion: create request")
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", c.creds.AuthHeader())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "fusion: post invoice")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "fusion: read response")
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	return &SubmitResult{StatusCode: resp.StatusCode, Body: string(respBody)}, nil
}
