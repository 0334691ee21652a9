// Package ocr turns an uploaded PDF into a single markdown text blob via the
// Mistral document OCR service.
package ocr

import (
	"context"
	"encoding/base64"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/apflow/invoice-cli/pkg/mistral"
)

// Adapter extracts text content from an uploaded PDF.
type Adapter interface {
	ExtractText(ctx context.Context, pdf []byte) (string, error)
}

// MistralAdapter wraps the Mistral OCR operation. The document is sent
// inline as a base64 data URI; no copy of it is kept after the call.
type MistralAdapter struct {
	client mistral.Client
	model  string
}

// NewMistralAdapter creates an Adapter backed by the given Mistral client.
// If model is empty, the client's default OCR model is used.
func NewMistralAdapter(client mistral.Client, model string) *MistralAdapter {
	return &MistralAdapter{client: client, model: model}
}

// ExtractText sends the PDF to Mistral OCR and returns the pages' markdown
// joined with a blank line, in page order. A response with zero pages yields
// the empty string; downstream stages tolerate it.
func (a *MistralAdapter) ExtractText(ctx context.Context, pdf []byte) (string, error) {
	if len(pdf) == 0 {
		return "", eris.New("ocr: empty document")
	}

	encoded := base64.StdEncoding.EncodeToString(pdf)
	dataURL := "data:application/pdf;base64," + encoded

	resp, err := a.client.ProcessDocument(ctx, mistral.OCRRequest{
		Model: a.model,
		Document: mistral.Document{
			Type:        "document_url",
			DocumentURL: dataURL,
		},
		IncludeImageBase64: true,
	})
	if err != nil {
		return "", eris.Wrap(err, "ocr: process document")
	}

	var sb strings.Builder
	for i, page := range resp.Pages {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(page.Markdown)
	}

	return sb.String(), nil
}
