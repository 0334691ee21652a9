// Package model defines the invoice records that flow through the pipeline:
// the candidate extracted by the language model, the user-owned form, and
// the payload posted to Oracle Fusion.
package model

import (
	"strconv"
	"strings"
	"time"
)

// DateLayout is the wire format for all invoice dates.
const DateLayout = "2006-01-02"

// CandidateInvoice is the best-effort record structured from the OCR text by
// the language model. Values are untrusted hints: numeric fields may arrive
// as strings and dates may be malformed. Each re-extraction replaces the
// record wholesale; it is never merged with a prior candidate.
type CandidateInvoice struct {
	InvoiceNumber   string          `json:"invoice_number"`
	InvoiceDate     string          `json:"invoice_date"`
	InvoiceAmount   any             `json:"invoice_amount"`
	SupplierName    string          `json:"supplier_name"`
	SupplierAddress string          `json:"supplier_address"`
	Currency        string          `json:"currency"`
	Description     string          `json:"description"`
	LineItems       []CandidateLine `json:"line_items"`
}

// CandidateLine is a single extracted line item.
type CandidateLine struct {
	Description string `json:"description"`
	Amount      any    `json:"amount"`
}

// InvoiceForm is the authoritative, user-controlled record. It is seeded
// from a CandidateInvoice where values are present and independently
// editable afterwards; the two records never resync.
type InvoiceForm struct {
	BusinessUnit    string        `json:"business_unit"`
	SupplierName    string        `json:"supplier_name"`
	SupplierSite    string        `json:"supplier_site"`
	InvoiceNumber   string        `json:"invoice_number"`
	InvoiceAmount   float64       `json:"invoice_amount"`
	InvoiceDate     time.Time     `json:"invoice_date"`
	InvoiceCurrency string        `json:"invoice_currency"`
	PaymentTerms    string        `json:"payment_terms,omitempty"`
	InvoiceGroup    string        `json:"invoice_group,omitempty"`
	Description     string        `json:"description,omitempty"`
	Lines           []InvoiceLine `json:"lines"`
}

// InvoiceLine is a single editable invoice line, addressed by position.
type InvoiceLine struct {
	Description             string  `json:"description,omitempty"`
	Amount                  float64 `json:"amount"`
	DistributionCombination string  `json:"distribution_combination"`
}

// InvoicePayload is the exact JSON document posted to the Fusion invoices
// resource. It is derived deterministically from a validated InvoiceForm
// and is immutable once built.
type InvoicePayload struct {
	InvoiceNumber   string        `json:"InvoiceNumber"`
	InvoiceCurrency string        `json:"InvoiceCurrency"`
	InvoiceAmount   float64       `json:"InvoiceAmount"`
	InvoiceDate     string        `json:"InvoiceDate"`
	BusinessUnit    string        `json:"BusinessUnit"`
	Supplier        string        `json:"Supplier"`
	SupplierSite    string        `json:"SupplierSite"`
	InvoiceGroup    string        `json:"InvoiceGroup"`
	Description     string        `json:"Description"`
	InvoiceLines    []PayloadLine `json:"invoiceLines"`
}

// PayloadLine is a single line of the Fusion payload. AccountingDate always
// carries the header invoice date, not a per-line date.
type PayloadLine struct {
	LineNumber              int     `json:"LineNumber"`
	LineAmount              float64 `json:"LineAmount"`
	AccountingDate          string  `json:"AccountingDate"`
	DistributionCombination string  `json:"DistributionCombination"`
}

// CoerceAmount converts a candidate's numeric-like value to a float64.
// Model output may carry amounts as JSON numbers or as strings; anything
// unparseable falls back to 0 without error.
func CoerceAmount(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

// ParseISODate parses a YYYY-MM-DD date string strictly.
func ParseISODate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}
