// Package form holds the user-editable invoice record for a session. Each
// field carries an explicit origin so candidate re-extraction only refreshes
// values the user has not touched.
package form

import (
	"time"

	"github.com/rotisserie/eris"

	"github.com/apflow/invoice-cli/internal/model"
)

// Line count bounds for the editable rows.
const (
	MinLines = 1
	MaxLines = 10
)

// Origin records how a field got its current value.
type Origin int

const (
	// Unset means the field still holds its zero default.
	Unset Origin = iota
	// Defaulted means the value came from an extracted candidate (or a
	// built-in default) and may be replaced by a later extraction.
	Defaulted
	// UserSet means the user edited the field; it never resyncs.
	UserSet
)

// Header field names, used for origin tracking and PATCH updates.
const (
	FieldBusinessUnit  = "business_unit"
	FieldSupplierName  = "supplier_name"
	FieldSupplierSite  = "supplier_site"
	FieldInvoiceNumber = "invoice_number"
	FieldInvoiceAmount = "invoice_amount"
	FieldInvoiceDate   = "invoice_date"
	FieldCurrency      = "invoice_currency"
	FieldPaymentTerms  = "payment_terms"
	FieldInvoiceGroup  = "invoice_group"
	FieldDescription   = "description"
)

// State is the mutable form for one session. It is not safe for concurrent
// use; the session layer serializes access.
type State struct {
	now func() time.Time

	form    model.InvoiceForm
	origins map[string]Origin

	lineAmountOrigin map[int]Origin
	lineDistOrigin   map[int]Origin
}

// New creates an empty form. The clock is injectable for tests; nil means
// time.Now. The date defaults to today and the currency to USD, both
// replaceable by a candidate; one synthetic line row is seeded.
func New(now func() time.Time) *State {
	if now == nil {
		now = time.Now
	}
	s := &State{
		now:              now,
		origins:          make(map[string]Origin),
		lineAmountOrigin: make(map[int]Origin),
		lineDistOrigin:   make(map[int]Origin),
	}
	s.form.InvoiceDate = today(now())
	s.form.InvoiceCurrency = "USD"
	s.form.Lines = []model.InvoiceLine{{Description: "Service"}}
	return s
}

func today(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ApplyCandidate seeds the form from an extracted candidate. Only fields
// the user has not edited are refreshed; a later candidate replaces earlier
// defaulted values wholesale. Amount coercion failures fall back to 0 and a
// missing or malformed invoice_date falls back to today's date — both
// silently, matching the tool's long-standing behavior.
func (s *State) ApplyCandidate(c *model.CandidateInvoice) {
	if c == nil {
		return
	}

	s.defaultString(FieldSupplierName, c.SupplierName)
	s.defaultString(FieldInvoiceNumber, c.InvoiceNumber)
	s.defaultString(FieldDescription, c.Description)

	if s.origins[FieldInvoiceAmount] != UserSet {
		s.form.InvoiceAmount = model.CoerceAmount(c.InvoiceAmount)
		s.origins[FieldInvoiceAmount] = Defaulted
	}

	if s.origins[FieldInvoiceDate] != UserSet {
		d, err := model.ParseISODate(c.InvoiceDate)
		if err != nil {
			d = today(s.now())
		}
		s.form.InvoiceDate = d
		s.origins[FieldInvoiceDate] = Defaulted
	}

	if s.origins[FieldCurrency] != UserSet {
		cur := c.Currency
		if cur == "" {
			cur = "USD"
		}
		s.form.InvoiceCurrency = cur
		s.origins[FieldCurrency] = Defaulted
	}

	s.seedLines(c.LineItems)
}

// defaultString sets a header string field from the candidate unless the
// user already edited it or the candidate has nothing to offer.
func (s *State) defaultString(field, value string) {
	if value == "" || s.origins[field] == UserSet {
		return
	}
	switch field {
	case FieldSupplierName:
		s.form.SupplierName = value
	case FieldInvoiceNumber:
		s.form.InvoiceNumber = value
	case FieldDescription:
		s.form.Description = value
	}
	s.origins[field] = Defaulted
}

// seedLines rebuilds the line rows from candidate line items. The row count
// becomes len(items) clamped to [1,10]; with no items a single synthetic
// "Service" row is seeded carrying the current header amount. Rows the user
// edited keep their values at the same index.
func (s *State) seedLines(items []model.CandidateLine) {
	n := len(items)
	if n < MinLines {
		n = MinLines
	}
	if n > MaxLines {
		n = MaxLines
	}

	lines := make([]model.InvoiceLine, n)
	for i := 0; i < n; i++ {
		var line model.InvoiceLine
		switch {
		case i < len(items):
			line.Description = items[i].Description
			line.Amount = model.CoerceAmount(items[i].Amount)
		case len(items) == 0:
			line.Description = "Service"
			line.Amount = s.form.InvoiceAmount
		}

		// Preserve user edits at the same position.
		if i < len(s.form.Lines) {
			if s.lineAmountOrigin[i] == UserSet {
				line.Amount = s.form.Lines[i].Amount
			}
			if s.lineDistOrigin[i] == UserSet {
				line.DistributionCombination = s.form.Lines[i].DistributionCombination
			}
		}
		lines[i] = line
	}

	s.form.Lines = lines
	for i := range s.lineAmountOrigin {
		if i >= n {
			delete(s.lineAmountOrigin, i)
			delete(s.lineDistOrigin, i)
		}
	}
}

// SetLineCount resizes the rows to n, clamped to [1,10]. Existing rows never
// reorder; trailing rows are truncated and new rows start at amount 0 with
// an empty distribution combination.
func (s *State) SetLineCount(n int) {
	if n < MinLines {
		n = MinLines
	}
	if n > MaxLines {
		n = MaxLines
	}

	switch {
	case n < len(s.form.Lines):
		s.form.Lines = s.form.Lines[:n]
		for i := range s.lineAmountOrigin {
			if i >= n {
				delete(s.lineAmountOrigin, i)
				delete(s.lineDistOrigin, i)
			}
		}
	case n > len(s.form.Lines):
		for len(s.form.Lines) < n {
			s.form.Lines = append(s.form.Lines, model.InvoiceLine{})
		}
	}
}

// SetLineAmount records a user edit to row i's amount.
func (s *State) SetLineAmount(i int, amount float64) error {
	if i < 0 || i >= len(s.form.Lines) {
		return eris.Errorf("form: line %d out of range", i)
	}
	s.form.Lines[i].Amount = amount
	s.lineAmountOrigin[i] = UserSet
	return nil
}

// SetLineDistribution records a user edit to row i's distribution combination.
func (s *State) SetLineDistribution(i int, dist string) error {
	if i < 0 || i >= len(s.form.Lines) {
		return eris.Errorf("form: line %d out of range", i)
	}
	s.form.Lines[i].DistributionCombination = dist
	s.lineDistOrigin[i] = UserSet
	return nil
}

// Update carries optional header edits; nil pointers leave fields untouched.
type Update struct {
	BusinessUnit    *string  `json:"business_unit"`
	SupplierName    *string  `json:"supplier_name"`
	SupplierSite    *string  `json:"supplier_site"`
	InvoiceNumber   *string  `json:"invoice_number"`
	InvoiceAmount   *float64 `json:"invoice_amount"`
	InvoiceDate     *string  `json:"invoice_date"`
	InvoiceCurrency *string  `json:"invoice_currency"`
	PaymentTerms    *string  `json:"payment_terms"`
	InvoiceGroup    *string  `json:"invoice_group"`
	Description     *string  `json:"description"`

	LineCount *int         `json:"line_count"`
	Lines     []LineUpdate `json:"lines"`
}

// LineUpdate edits one row by position.
type LineUpdate struct {
	Index                   int      `json:"index"`
	Amount                  *float64 `json:"amount"`
	DistributionCombination *string  `json:"distribution_combination"`
}

// ApplyUpdate applies user edits. Every present field is marked UserSet.
// The line count change, if any, is applied before row edits so an update
// can grow the form and fill the new rows in one call.
func (s *State) ApplyUpdate(u Update) error {
	if u.BusinessUnit != nil {
		s.form.BusinessUnit = *u.BusinessUnit
		s.origins[FieldBusinessUnit] = UserSet
	}
	if u.SupplierName != nil {
		s.form.SupplierName = *u.SupplierName
		s.origins[FieldSupplierName] = UserSet
	}
	if u.SupplierSite != nil {
		s.form.SupplierSite = *u.SupplierSite
		s.origins[FieldSupplierSite] = UserSet
	}
	if u.InvoiceNumber != nil {
		s.form.InvoiceNumber = *u.InvoiceNumber
		s.origins[FieldInvoiceNumber] = UserSet
	}
	if u.InvoiceAmount != nil {
		s.form.InvoiceAmount = *u.InvoiceAmount
		s.origins[FieldInvoiceAmount] = UserSet
	}
	if u.InvoiceDate != nil {
		d, err := model.ParseISODate(*u.InvoiceDate)
		if err != nil {
			return eris.Wrapf(err, "form: invoice_date %q", *u.InvoiceDate)
		}
		s.form.InvoiceDate = d
		s.origins[FieldInvoiceDate] = UserSet
	}
	if u.InvoiceCurrency != nil {
		s.form.InvoiceCurrency = *u.InvoiceCurrency
		s.origins[FieldCurrency] = UserSet
	}
	if u.PaymentTerms != nil {
		s.form.PaymentTerms = *u.PaymentTerms
		s.origins[FieldPaymentTerms] = UserSet
	}
	if u.InvoiceGroup != nil {
		s.form.InvoiceGroup = *u.InvoiceGroup
		s.origins[FieldInvoiceGroup] = UserSet
	}
	if u.Description != nil {
		s.form.Description = *u.Description
		s.origins[FieldDescription] = UserSet
	}

	if u.LineCount != nil {
		s.SetLineCount(*u.LineCount)
	}
	for _, lu := range u.Lines {
		if lu.Amount != nil {
			if err := s.SetLineAmount(lu.Index, *lu.Amount); err != nil {
				return err
			}
		}
		if lu.DistributionCombination != nil {
			if err := s.SetLineDistribution(lu.Index, *lu.DistributionCombination); err != nil {
				return err
			}
		}
	}

	return nil
}

// Form returns a snapshot of the current record.
func (s *State) Form() model.InvoiceForm {
	out := s.form
	out.Lines = make([]model.InvoiceLine, len(s.form.Lines))
	copy(out.Lines, s.form.Lines)
	return out
}

// Origin reports how a header field got its value.
func (s *State) Origin(field string) Origin {
	return s.origins[field]
}
