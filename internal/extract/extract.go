// Package extract structures raw OCR text into a CandidateInvoice by asking
// a language model for a JSON object and recovering it from the reply.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/apflow/invoice-cli/internal/model"
)

// ErrNoJSON is returned when the model reply contains no {...} span at all.
var ErrNoJSON = eris.New("extract: could not parse extracted data")

// ChatClient sends one single-turn prompt and returns the reply text.
type ChatClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

const extractionPrompt = `Analyze this invoice text and extract the following information in JSON format:

{
    "invoice_number": "invoice number",
    "invoice_date": "date in YYYY-MM-DD format",
    "invoice_amount": "total amount as number",
    "supplier_name": "vendor/supplier name",
    "supplier_address": "supplier address",
    "currency": "currency code (default USD)",
    "description": "invoice description or main service/product",
    "line_items": [
        {
            "description": "line item description",
            "amount": "line amount as number"
        }
    ]
}

Invoice Text:
%s

Return only the JSON object, no other text.`

// Extractor runs the field extraction step.
type Extractor struct {
	client ChatClient
}

// NewExtractor creates an Extractor using the given chat client.
func NewExtractor(client ChatClient) *Extractor {
	return &Extractor{client: client}
}

// Extract asks the model to structure ocrText and parses the reply. The
// candidate's values are untrusted hints: no semantic validation happens
// here, and malformed amounts or dates pass through for the form layer to
// coerce.
func (e *Extractor) Extract(ctx context.Context, ocrText string) (*model.CandidateInvoice, error) {
	prompt := fmt.Sprintf(extractionPrompt, ocrText)

	reply, err := e.client.Complete(ctx, prompt)
	if err != nil {
		return nil, eris.Wrap(err, "extract: completion")
	}

	span, ok := jsonSpan(reply)
	if !ok {
		zap.L().Warn("extract: no JSON object in model reply",
			zap.Int("reply_len", len(reply)),
		)
		return nil, ErrNoJSON
	}

	var candidate model.CandidateInvoice
	if err := json.Unmarshal([]byte(span), &candidate); err != nil {
		return nil, eris.Wrap(err, "extract: parse candidate JSON")
	}

	return &candidate, nil
}

// jsonSpan recovers the JSON object from a model reply: markdown fences are
// stripped, then the span from the first "{" to the last "}" is taken
// greedily across the whole reply. The greedy span is deliberate — a reply
// with stray braces outside the object will fail to parse rather than be
// silently narrowed.
func jsonSpan(text string) (string, bool) {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", false
	}

	return text[start : end+1], true
}
