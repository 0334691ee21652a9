package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/apflow/invoice-cli/internal/extract"
	"github.com/apflow/invoice-cli/internal/ocr"
	"github.com/apflow/invoice-cli/pkg/mistral"
)

var extractOCROnly bool

var extractCmd = &cobra.Command{
	Use:   "extract <invoice.pdf>",
	Short: "OCR a PDF invoice and extract structured fields",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pdf, err := os.ReadFile(args[0])
		if err != nil {
			return eris.Wrapf(err, "read %s", args[0])
		}

		mistralClient := mistral.NewClient(cfg.Mistral.Key,
			mistral.WithBaseURL(cfg.Mistral.BaseURL),
			mistral.WithOCRModel(cfg.Mistral.OCRModel),
			mistral.WithChatModel(cfg.Mistral.ChatModel),
			mistral.WithRateLimit(cfg.Mistral.RateLimit),
		)

		ocrAdapter := ocr.NewMistralAdapter(mistralClient, cfg.Mistral.OCRModel)
		text, err := ocrAdapter.ExtractText(cmd.Context(), pdf)
		if err != nil {
			return err
		}
		zap.L().Info("ocr complete", zap.String("file", args[0]), zap.Int("chars", len(text)))

		if extractOCROnly {
			fmt.Println(text)
			return nil
		}

		chat, err := extract.NewChatClient(cfg, cfg.Mistral.Key)
		if err != nil {
			return err
		}

		candidate, err := extract.NewExtractor(chat).Extract(cmd.Context(), text)
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(candidate, "", "  ")
		if err != nil {
			return eris.Wrap(err, "marshal candidate")
		}
		fmt.Println(string(out))

		return nil
	},
}

func init() {
	extractCmd.Flags().BoolVar(&extractOCROnly, "ocr-only", false, "print recognized text and skip field extraction")
	rootCmd.AddCommand(extractCmd)
}
