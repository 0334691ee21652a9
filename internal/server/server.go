// Package server exposes the invoice workflow over HTTP for the browser
// form: create a session, OCR a PDF, extract fields, edit the form, preview
// the payload, and submit to Fusion.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/apflow/invoice-cli/internal/config"
	"github.com/apflow/invoice-cli/internal/fusion"
	"github.com/apflow/invoice-cli/internal/model"
	"github.com/apflow/invoice-cli/internal/ocr"
	"github.com/apflow/invoice-cli/internal/session"
)

// maxUploadBytes caps PDF uploads.
const maxUploadBytes = 20 << 20

// Extractor structures OCR text into a candidate invoice.
type Extractor interface {
	Extract(ctx context.Context, ocrText string) (*model.CandidateInvoice, error)
}

// Submitter posts one payload to a Fusion instance. Split out so tests can
// submit without a live ERP.
type Submitter func(ctx context.Context, baseURL string, creds fusion.Credentials, payload model.InvoicePayload) (*fusion.SubmitResult, error)

// Server holds the workflow dependencies behind the HTTP handlers.
type Server struct {
	cfg       *config.Config
	store     *session.Store
	ocr       ocr.Adapter
	newOCR    func(apiKey string) ocr.Adapter
	extractor Extractor
	submit    Submitter
}

// Option configures the server.
type Option func(*Server)

// WithSubmitter overrides the Fusion submitter.
func WithSubmitter(submit Submitter) Option {
	return func(s *Server) {
		s.submit = submit
	}
}

// WithOCRFactory enables per-request Mistral API keys on uploads: when the
// form carries a key, the factory builds the adapter for that call instead
// of the configured default.
func WithOCRFactory(newOCR func(apiKey string) ocr.Adapter) Option {
	return func(s *Server) {
		s.newOCR = newOCR
	}
}

// New creates a Server with the given workflow dependencies.
func New(cfg *config.Config, store *session.Store, ocrAdapter ocr.Adapter, extractor Extractor, opts ...Option) *Server {
	s := &Server{
		cfg:       cfg,
		store:     store,
		ocr:       ocrAdapter,
		extractor: extractor,
		submit: func(ctx context.Context, baseURL string, creds fusion.Credentials, payload model.InvoicePayload) (*fusion.SubmitResult, error) {
			return fusion.NewClient(baseURL, creds).CreateInvoice(ctx, payload)
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router assembles the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.Server.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/sessions", func(r chi.Router) {
		r.Post("/", s.handleCreateSession)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Delete("/", s.handleDeleteSession)
			r.Post("/ocr", s.handleOCR)
			r.Get("/ocr", s.handleGetOCRText)
			r.Post("/extract", s.handleExtract)
			r.Get("/form", s.handleGetForm)
			r.Patch("/form", s.handlePatchForm)
			r.Get("/preview", s.handlePreview)
			r.Post("/submit", s.handleSubmit)
		})
	})

	return r
}

// requestLogger logs one line per request through the global zap logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
