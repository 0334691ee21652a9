package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/apflow/invoice-cli/internal/fusion"
	"github.com/apflow/invoice-cli/internal/model"
)

var (
	submitFusionURL  string
	submitAuthMethod string
	submitUsername   string
	submitPassword   string
	submitToken      string
	submitDryRun     bool
)

// invoiceFile is the on-disk form document for the submit command. It
// matches InvoiceForm except the date is a plain YYYY-MM-DD string.
type invoiceFile struct {
	BusinessUnit    string              `json:"business_unit"`
	SupplierName    string              `json:"supplier_name"`
	SupplierSite    string              `json:"supplier_site"`
	InvoiceNumber   string              `json:"invoice_number"`
	InvoiceAmount   float64             `json:"invoice_amount"`
	InvoiceDate     string              `json:"invoice_date"`
	InvoiceCurrency string              `json:"invoice_currency"`
	PaymentTerms    string              `json:"payment_terms"`
	InvoiceGroup    string              `json:"invoice_group"`
	Description     string              `json:"description"`
	Lines           []model.InvoiceLine `json:"lines"`
}

// loadInvoiceFile reads and converts a form document from disk.
func loadInvoiceFile(path string) (model.InvoiceForm, error) {
	var doc invoiceFile

	data, err := os.ReadFile(path)
	if err != nil {
		return model.InvoiceForm{}, eris.Wrapf(err, "read %s", path)
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return model.InvoiceForm{}, eris.Wrapf(err, "parse %s", path)
	}

	date, err := model.ParseISODate(doc.InvoiceDate)
	if err != nil {
		return model.InvoiceForm{}, eris.Wrapf(err, "invoice_date %q", doc.InvoiceDate)
	}

	currency := doc.InvoiceCurrency
	if currency == "" {
		currency = "USD"
	}

	return model.InvoiceForm{
		BusinessUnit:    doc.BusinessUnit,
		SupplierName:    doc.SupplierName,
		SupplierSite:    doc.SupplierSite,
		InvoiceNumber:   doc.InvoiceNumber,
		InvoiceAmount:   doc.InvoiceAmount,
		InvoiceDate:     date,
		InvoiceCurrency: currency,
		PaymentTerms:    doc.PaymentTerms,
		InvoiceGroup:    doc.InvoiceGroup,
		Description:     doc.Description,
		Lines:           doc.Lines,
	}, nil
}

var submitCmd = &cobra.Command{
	Use:   "submit <form.json>",
	Short: "Validate a form document and create the invoice in Fusion",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := loadInvoiceFile(args[0])
		if err != nil {
			return err
		}

		baseURL := submitFusionURL
		if baseURL == "" {
			baseURL = cfg.Fusion.BaseURL
		}
		creds := fusion.Credentials{
			Method:   submitAuthMethod,
			Username: submitUsername,
			Password: submitPassword,
			Token:    submitToken,
		}
		if creds.Method == "" {
			creds.Method = cfg.Fusion.AuthMethod
		}
		if creds.Username == "" && creds.Password == "" && creds.Token == "" {
			creds.Username = cfg.Fusion.Username
			creds.Password = cfg.Fusion.Password
			creds.Token = cfg.Fusion.Token
		}

		if err := fusion.Validate(f, baseURL, creds); err != nil {
			return err
		}

		payload := fusion.BuildPayload(f)
		preview, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return eris.Wrap(err, "marshal payload")
		}
		fmt.Println(string(preview))

		for _, warning := range fusion.PreviewWarnings(f) {
			zap.L().Warn("payload warning", zap.String("warning", warning))
		}

		if submitDryRun {
			return nil
		}

		result, err := fusion.NewClient(baseURL, creds).CreateInvoice(cmd.Context(), payload)
		if err != nil {
			return err
		}

		zap.L().Info("invoice created",
			zap.String("invoice_number", payload.InvoiceNumber),
			zap.Int("status", result.StatusCode),
		)
		fmt.Println(result.Body)

		return nil
	},
}

func init() {
	submitCmd.Flags().StringVar(&submitFusionURL, "fusion-url", "", "Fusion instance base URL (default from config)")
	submitCmd.Flags().StringVar(&submitAuthMethod, "auth", "", "auth method: basic or bearer (default from config)")
	submitCmd.Flags().StringVar(&submitUsername, "username", "", "Fusion username for basic auth")
	submitCmd.Flags().StringVar(&submitPassword, "password", "", "Fusion password for basic auth")
	submitCmd.Flags().StringVar(&submitToken, "token", "", "Fusion bearer token")
	submitCmd.Flags().BoolVar(&submitDryRun, "dry-run", false, "validate and print the payload without posting")
	rootCmd.AddCommand(submitCmd)
}
