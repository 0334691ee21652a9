// Package fusion builds and submits AP invoice payloads to the Oracle
// Fusion invoices REST resource.
package fusion

import (
	"encoding/base64"
	"fmt"
	"math"

	"golang.org/x/text/currency"

	"github.com/apflow/invoice-cli/internal/model"
)

// Supported authentication methods.
const (
	MethodBasic  = "basic"
	MethodBearer = "bearer"
)

// amountTolerance is the permitted drift between the header amount and the
// sum of line amounts.
const amountTolerance = 1e-6

// Credentials selects and carries one authentication method for the
// Fusion API. Basic uses Username/Password; Bearer uses Token.
type Credentials struct {
	Method   string
	Username string
	Password string
	Token    string
}

// complete reports whether every field the selected method needs is present.
func (c Credentials) complete() bool {
	switch c.Method {
	case MethodBasic:
		return c.Username != "" && c.Password != ""
	case MethodBearer:
		return c.Token != ""
	default:
		return false
	}
}

// AuthHeader returns the Authorization header value for the selected method.
func (c Credentials) AuthHeader() string {
	switch c.Method {
	case MethodBearer:
		return "Bearer " + c.Token
	default:
		raw := c.Username + ":" + c.Password
		return "Basic " + base64.StdEncoding.EncodeToString([]byte(raw))
	}
}

// ValidationError is a user-facing submission blocker. The message is shown
// verbatim in the UI.
type ValidationError string

func (e ValidationError) Error() string { return string(e) }

// Validation failures, in evaluation order.
var (
	ErrMissingFields       = ValidationError("please fill in all required fields")
	ErrNonPositiveAmount   = ValidationError("invoice amount must be greater than 0")
	ErrLineSumMismatch     = ValidationError("sum of line amounts must equal invoice amount")
	ErrMissingDistribution = ValidationError("all lines must have distribution combinations")
)

// Validate checks a form against the submission rules in order; the first
// failure wins and halts submission.
func Validate(f model.InvoiceForm, baseURL string, creds Credentials) error {
	if f.BusinessUnit == "" || f.SupplierName == "" || f.SupplierSite == "" ||
		f.InvoiceNumber == "" || baseURL == "" || f.InvoiceCurrency == "" ||
		!creds.complete() {
		return ErrMissingFields
	}

	if f.InvoiceAmount <= 0 {
		return ErrNonPositiveAmount
	}

	var sum float64
	for _, line := range f.Lines {
		sum += line.Amount
	}
	if math.Abs(sum-f.InvoiceAmount) > amountTolerance {
		return ErrLineSumMismatch
	}

	for _, line := range f.Lines {
		if line.DistributionCombination == "" {
			return ErrMissingDistribution
		}
	}

	return nil
}

// BuildPayload derives the Fusion payload from a validated form. Lines keep
// their on-screen order with 1-based numbers, and every line carries the
// header invoice date as its accounting date.
func BuildPayload(f model.InvoiceForm) model.InvoicePayload {
	date := f.InvoiceDate.Format(model.DateLayout)

	lines := make([]model.PayloadLine, len(f.Lines))
	for i, line := range f.Lines {
		lines[i] = model.PayloadLine{
			LineNumber:              i + 1,
			LineAmount:              line.Amount,
			AccountingDate:          date,
			DistributionCombination: line.DistributionCombination,
		}
	}

	return model.InvoicePayload{
		InvoiceNumber:   f.InvoiceNumber,
		InvoiceCurrency: f.InvoiceCurrency,
		InvoiceAmount:   f.InvoiceAmount,
		InvoiceDate:     date,
		BusinessUnit:    f.BusinessUnit,
		Supplier:        f.SupplierName,
		SupplierSite:    f.SupplierSite,
		InvoiceGroup:    f.InvoiceGroup,
		Description:     f.Description,
		InvoiceLines:    lines,
	}
}

// PreviewWarnings returns non-blocking notes shown next to the payload
// preview. None of these stop a submission; Fusion remains the authority on
// what it accepts.
func PreviewWarnings(f model.InvoiceForm) []string {
	var warnings []string

	if f.InvoiceCurrency != "" {
		if _, err := currency.ParseISO(f.InvoiceCurrency); err != nil {
			warnings = append(warnings,
				fmt.Sprintf("currency %q is not a recognized ISO 4217 code", f.InvoiceCurrency))
		}
	}

	if f.InvoiceAmount == 0 {
		warnings = append(warnings,
			"invoice amount is 0; extracted amounts that could not be parsed default to 0")
	}

	return warnings
}
