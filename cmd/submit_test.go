package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "form.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadInvoiceFile(t *testing.T) {
	path := writeTempJSON(t, `{
		"business_unit": "US Operations",
		"supplier_name": "Acme Corp",
		"supplier_site": "MAIN",
		"invoice_number": "INV-1001",
		"invoice_amount": 100.0,
		"invoice_date": "2024-02-13",
		"lines": [
			{"amount": 100.0, "distribution_combination": "01-100-7710"}
		]
	}`)

	f, err := loadInvoiceFile(path)
	require.NoError(t, err)

	assert.Equal(t, "INV-1001", f.InvoiceNumber)
	assert.Equal(t, time.Date(2024, 2, 13, 0, 0, 0, 0, time.UTC), f.InvoiceDate)
	assert.Equal(t, "USD", f.InvoiceCurrency) // defaults when omitted
	require.Len(t, f.Lines, 1)
	assert.Equal(t, "01-100-7710", f.Lines[0].DistributionCombination)
}

func TestLoadInvoiceFileBadDate(t *testing.T) {
	path := writeTempJSON(t, `{"invoice_date": "13/02/2024"}`)
	_, err := loadInvoiceFile(path)
	assert.Error(t, err)
}

func TestLoadInvoiceFileMissing(t *testing.T) {
	_, err := loadInvoiceFile(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}
