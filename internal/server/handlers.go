package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/apflow/invoice-cli/internal/extract"
	"github.com/apflow/invoice-cli/internal/form"
	"github.com/apflow/invoice-cli/internal/fusion"
	"github.com/apflow/invoice-cli/internal/session"
)

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zap.L().Error("encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

// lookup resolves the session from the URL, writing a 404 on a miss.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := chi.URLParam(r, "sessionID")
	sess, err := s.store.Get(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "session not found")
		return nil, false
	}
	return sess, true
}

func (s *Server) handleCreateSession(w http.ResponseWriter, _ *http.Request) {
	sess := s.store.Create()
	respondJSON(w, http.StatusCreated, map[string]any{
		"session_id": sess.ID,
		"form":       sess.Form(),
	})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	s.store.Delete(sess.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleOCR(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if err := sess.Begin(); err != nil {
		respondError(w, http.StatusConflict, "operation already in progress")
		return
	}
	defer sess.End()

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart upload")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	if !strings.HasSuffix(strings.ToLower(header.Filename), ".pdf") {
		respondError(w, http.StatusBadRequest, "only PDF files are accepted")
		return
	}

	pdf, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "read upload")
		return
	}

	adapter := s.ocr
	if key := r.FormValue("mistral_api_key"); key != "" && s.newOCR != nil {
		adapter = s.newOCR(key)
	}

	text, err := adapter.ExtractText(r.Context(), pdf)
	if err != nil {
		zap.L().Error("ocr failed", zap.String("session_id", sess.ID), zap.Error(err))
		respondError(w, http.StatusBadGateway, "OCR service error")
		return
	}

	sess.SetOCRText(text)
	respondJSON(w, http.StatusOK, map[string]string{
		"session_id": sess.ID,
		"ocr_text":   text,
	})
}

func (s *Server) handleGetOCRText(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"session_id": sess.ID,
		"ocr_text":   sess.OCRText(),
	})
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if err := sess.Begin(); err != nil {
		respondError(w, http.StatusConflict, "operation already in progress")
		return
	}
	defer sess.End()

	text := sess.OCRText()
	if text == "" {
		respondError(w, http.StatusBadRequest, "no document text; upload a PDF first")
		return
	}

	candidate, err := s.extractor.Extract(r.Context(), text)
	if err != nil {
		if errors.Is(err, extract.ErrNoJSON) {
			respondError(w, http.StatusUnprocessableEntity, "could not parse extracted data")
			return
		}
		zap.L().Error("extraction failed", zap.String("session_id", sess.ID), zap.Error(err))
		respondError(w, http.StatusBadGateway, "extraction service error")
		return
	}

	sess.SetCandidate(candidate)
	respondJSON(w, http.StatusOK, map[string]any{
		"candidate": candidate,
		"form":      sess.Form(),
	})
}

func (s *Server) handleGetForm(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, sess.Form())
}

func (s *Server) handlePatchForm(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}

	var update form.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := sess.UpdateForm(update); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, sess.Form())
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}

	f := sess.Form()
	respondJSON(w, http.StatusOK, map[string]any{
		"payload":  fusion.BuildPayload(f),
		"warnings": fusion.PreviewWarnings(f),
	})
}

// submitRequest carries the ERP connection details for one submission.
// Fields left empty fall back to configured defaults.
type submitRequest struct {
	FusionURL  string `json:"fusion_url"`
	AuthMethod string `json:"auth_method"`
	Username   string `json:"username"`
	Password   string `json:"password"`
	Token      string `json:"token"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if err := sess.Begin(); err != nil {
		respondError(w, http.StatusConflict, "operation already in progress")
		return
	}
	defer sess.End()

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	baseURL := req.FusionURL
	if baseURL == "" {
		baseURL = s.cfg.Fusion.BaseURL
	}
	creds := fusion.Credentials{
		Method:   req.AuthMethod,
		Username: req.Username,
		Password: req.Password,
		Token:    req.Token,
	}
	if creds.Method == "" {
		creds.Method = s.cfg.Fusion.AuthMethod
	}
	if creds.Username == "" && creds.Password == "" && creds.Token == "" {
		creds.Username = s.cfg.Fusion.Username
		creds.Password = s.cfg.Fusion.Password
		creds.Token = s.cfg.Fusion.Token
	}

	f := sess.Form()
	if err := fusion.Validate(f, baseURL, creds); err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	payload := fusion.BuildPayload(f)
	result, err := s.submit(r.Context(), baseURL, creds, payload)
	if err != nil {
		var statusErr *fusion.StatusError
		if errors.As(err, &statusErr) {
			zap.L().Warn("fusion rejected invoice",
				zap.String("session_id", sess.ID),
				zap.Int("status", statusErr.StatusCode),
			)
			respondJSON(w, http.StatusBadGateway, map[string]any{
				"error":       "invoice creation failed",
				"status_code": statusErr.StatusCode,
				"body":        statusErr.Body,
			})
			return
		}
		zap.L().Error("fusion submit failed", zap.String("session_id", sess.ID), zap.Error(err))
		respondError(w, http.StatusBadGateway, "could not reach the ERP service")
		return
	}

	sess.SetResult(result)
	zap.L().Info("invoice created",
		zap.String("session_id", sess.ID),
		zap.String("invoice_number", payload.InvoiceNumber),
		zap.Int("status", result.StatusCode),
	)
	respondJSON(w, http.StatusOK, map[string]any{
		"status_code": result.StatusCode,
		"body":        result.Body,
	})
}
