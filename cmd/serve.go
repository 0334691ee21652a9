package main

import (
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/apflow/invoice-cli/internal/extract"
	"github.com/apflow/invoice-cli/internal/ocr"
	"github.com/apflow/invoice-cli/internal/server"
	"github.com/apflow/invoice-cli/internal/session"
	"github.com/apflow/invoice-cli/pkg/mistral"
)

// sweepInterval is how often idle sessions are checked for eviction.
const sweepInterval = 5 * time.Minute

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the invoice form server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		mistralClient := mistral.NewClient(cfg.Mistral.Key,
			mistral.WithBaseURL(cfg.Mistral.BaseURL),
			mistral.WithOCRModel(cfg.Mistral.OCRModel),
			mistral.WithChatModel(cfg.Mistral.ChatModel),
			mistral.WithRateLimit(cfg.Mistral.RateLimit),
		)
		ocrAdapter := ocr.NewMistralAdapter(mistralClient, cfg.Mistral.OCRModel)

		chat, err := extract.NewChatClient(cfg, cfg.Mistral.Key)
		if err != nil {
			return err
		}
		extractor := extract.NewExtractor(chat)

		store := session.NewStore(time.Duration(cfg.Server.SessionTTLMins) * time.Minute)
		go store.Run(ctx, sweepInterval)

		newOCR := func(apiKey string) ocr.Adapter {
			client := mistral.NewClient(apiKey,
				mistral.WithBaseURL(cfg.Mistral.BaseURL),
				mistral.WithOCRModel(cfg.Mistral.OCRModel),
				mistral.WithRateLimit(cfg.Mistral.RateLimit),
			)
			return ocr.NewMistralAdapter(client, cfg.Mistral.OCRModel)
		}

		srvHandler := server.New(cfg, store, ocrAdapter, extractor,
			server.WithOCRFactory(newOCR),
		).Router()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: srvHandler,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
