package extract

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apflow/invoice-cli/internal/config"
	"github.com/apflow/invoice-cli/internal/model"
)

// fakeChat returns a canned reply and records the prompt it was given.
type fakeChat struct {
	reply  string
	err    error
	prompt string
}

func (f *fakeChat) Complete(_ context.Context, prompt string) (string, error) {
	f.prompt = prompt
	return f.reply, f.err
}

func TestExtract_ParsesCandidate(t *testing.T) {
	chat := &fakeChat{reply: `Here is the extracted data:
{"invoice_number":"INV-42","invoice_date":"2024-03-01","invoice_amount":250.5,"supplier_name":"Acme","currency":"EUR","line_items":[{"description":"Widgets","amount":250.5}]}
Let me know if you need anything else.`}

	e := NewExtractor(chat)
	c, err := e.Extract(context.Background(), "some ocr text")
	require.NoError(t, err)
	assert.Equal(t, "INV-42", c.InvoiceNumber)
	assert.Equal(t, "2024-03-01", c.InvoiceDate)
	assert.Equal(t, 250.5, model.CoerceAmount(c.InvoiceAmount))
	require.Len(t, c.LineItems, 1)
	assert.Equal(t, "Widgets", c.LineItems[0].Description)

	// The OCR text is embedded verbatim in the prompt.
	assert.Contains(t, chat.prompt, "some ocr text")
	assert.Contains(t, chat.prompt, "Return only the JSON object")
}

func TestExtract_NoBraces(t *testing.T) {
	chat := &fakeChat{reply: "I could not find any invoice data in the text."}
	e := NewExtractor(chat)

	c, err := e.Extract(context.Background(), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoJSON)
	assert.Nil(t, c)
}

func TestExtract_InvalidJSONSpan(t *testing.T) {
	// A span exists but is not valid JSON.
	chat := &fakeChat{reply: `{"invoice_number": "INV-1",}`}
	e := NewExtractor(chat)

	_, err := e.Extract(context.Background(), "text")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoJSON)
	assert.Contains(t, err.Error(), "parse candidate JSON")
}

func TestExtract_TransportError(t *testing.T) {
	chat := &fakeChat{err: eris.New("connection refused")}
	e := NewExtractor(chat)

	_, err := e.Extract(context.Background(), "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "completion")
}

func TestJSONSpan(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"bare_object", `{"a":1}`, `{"a":1}`, true},
		{"surrounded", `prefix {"a":1} suffix`, `{"a":1}`, true},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`, true},
		{"plain_fence", "```\n{\"a\":1}\n```", `{"a":1}`, true},
		{"no_braces", "nothing here", "", false},
		{"only_open", "{ unfinished", "", false},
		// Greedy: span runs from the first { to the last }, even across
		// unrelated braces. This mirrors the regex the tool always used.
		{"greedy_across_objects", `{"a":1} and {"b":2}`, `{"a":1} and {"b":2}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := jsonSpan(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewChatClient(t *testing.T) {
	base := func() *config.Config {
		return &config.Config{
			Mistral:   config.MistralConfig{ChatModel: "mistral-large-latest"},
			Anthropic: config.AnthropicConfig{Model: "claude-haiku-4-5-20251001"},
		}
	}

	t.Run("mistral_default", func(t *testing.T) {
		cfg := base()
		cfg.Extract.Provider = ""
		c, err := NewChatClient(cfg, "per-request-key")
		require.NoError(t, err)
		assert.IsType(t, &MistralChat{}, c)
	})

	t.Run("mistral_missing_key", func(t *testing.T) {
		cfg := base()
		cfg.Extract.Provider = "mistral"
		_, err := NewChatClient(cfg, "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "requires mistral api key")
	})

	t.Run("anthropic", func(t *testing.T) {
		cfg := base()
		cfg.Extract.Provider = "anthropic"
		cfg.Anthropic.Key = "sk-ant"
		c, err := NewChatClient(cfg, "")
		require.NoError(t, err)
		assert.IsType(t, &AnthropicChat{}, c)
	})

	t.Run("anthropic_missing_key", func(t *testing.T) {
		cfg := base()
		cfg.Extract.Provider = "anthropic"
		_, err := NewChatClient(cfg, "")
		require.Error(t, err)
	})

	t.Run("unknown_provider", func(t *testing.T) {
		cfg := base()
		cfg.Extract.Provider = "mystery"
		_, err := NewChatClient(cfg, "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), `unknown provider "mystery"`)
	})
}
