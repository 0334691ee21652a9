package ocr

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apflow/invoice-cli/pkg/mistral"
)

func newTestAdapter(t *testing.T, handler http.HandlerFunc) *MistralAdapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := mistral.NewClient("test-key", mistral.WithBaseURL(srv.URL))
	return NewMistralAdapter(client, "test-model")
}

func TestExtractText_JoinsPages(t *testing.T) {
	pdf := []byte("%PDF-1.4 test content")

	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/ocr", r.URL.Path)

		var req mistral.OCRRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		assert.Equal(t, "document_url", req.Document.Type)
		assert.True(t, req.IncludeImageBase64)

		// The document URL carries the full PDF, base64-encoded.
		wantPrefix := "data:application/pdf;base64,"
		require.True(t, strings.HasPrefix(req.Document.DocumentURL, wantPrefix))
		decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(req.Document.DocumentURL, wantPrefix))
		require.NoError(t, err)
		assert.Equal(t, pdf, decoded)

		_ = json.NewEncoder(w).Encode(mistral.OCRResponse{
			Pages: []mistral.Page{
				{Index: 0, Markdown: "Page one content"},
				{Index: 1, Markdown: "Page two content"},
			},
		})
	})

	text, err := a.ExtractText(context.Background(), pdf)
	require.NoError(t, err)
	assert.Equal(t, "Page one content\n\nPage two content", text)
}

func TestExtractText_ZeroPages(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(mistral.OCRResponse{Pages: []mistral.Page{}})
	})

	text, err := a.ExtractText(context.Background(), []byte("%PDF-1.4"))
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestExtractText_ServiceError(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid api key"}`))
	})

	_, err := a.ExtractText(context.Background(), []byte("%PDF-1.4"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "process document")
	assert.Contains(t, err.Error(), "401")
}

func TestExtractText_EmptyDocument(t *testing.T) {
	a := NewMistralAdapter(mistral.NewClient("k"), "")
	_, err := a.ExtractText(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty document")
}
