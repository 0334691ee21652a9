// Package session owns per-user working state: the OCR text, the latest
// extracted candidate, the editable form, and the last submission result.
// Sessions are memory-only and evicted after a period of inactivity.
package session

import (
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/semaphore"

	"github.com/apflow/invoice-cli/internal/form"
	"github.com/apflow/invoice-cli/internal/fusion"
	"github.com/apflow/invoice-cli/internal/model"
)

// ErrBusy means another long-running operation (OCR, extraction, or
// submission) already holds the session.
var ErrBusy = eris.New("session: operation already in progress")

// Session is one user's in-flight invoice. Long operations serialize on an
// exclusive slot; state reads and edits take the mutex directly.
type Session struct {
	ID        string
	CreatedAt time.Time

	sem *semaphore.Weighted
	now func() time.Time

	mu         sync.RWMutex
	lastActive time.Time
	ocrText    string
	candidate  *model.CandidateInvoice
	form       *form.State
	lastResult *fusion.SubmitResult
}

func newSession(id string, now func() time.Time) *Session {
	return &Session{
		ID:         id,
		CreatedAt:  now(),
		sem:        semaphore.NewWeighted(1),
		now:        now,
		lastActive: now(),
		form:       form.New(now),
	}
}

// Begin claims the session for one long operation. It never blocks: a held
// session reports ErrBusy so the caller can tell the user to wait.
func (s *Session) Begin() error {
	if !s.sem.TryAcquire(1) {
		return ErrBusy
	}
	s.touch()
	return nil
}

// End releases the slot taken by Begin.
func (s *Session) End() {
	s.sem.Release(1)
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastActive = s.now()
	s.mu.Unlock()
}

// LastActive reports when the session was last used.
func (s *Session) LastActive() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActive
}

// SetOCRText stores the recognized document text. Each upload replaces the
// previous text wholesale.
func (s *Session) SetOCRText(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ocrText = text
	s.lastActive = s.now()
}

// OCRText returns the stored document text, empty before the first OCR run.
func (s *Session) OCRText() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ocrText
}

// SetCandidate stores a freshly extracted candidate and seeds the form from
// it, leaving user-edited fields alone.
func (s *Session) SetCandidate(c *model.CandidateInvoice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.candidate = c
	s.form.ApplyCandidate(c)
	s.lastActive = s.now()
}

// Candidate returns the latest extracted candidate, nil before the first
// successful extraction.
func (s *Session) Candidate() *model.CandidateInvoice {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.candidate
}

// UpdateForm applies user edits to the form.
func (s *Session) UpdateForm(u form.Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActive = s.now()
	return s.form.ApplyUpdate(u)
}

// Form returns a snapshot of the current form.
func (s *Session) Form() model.InvoiceForm {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.form.Form()
}

// SetResult records the outcome of the latest submission.
func (s *Session) SetResult(r *fusion.SubmitResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastResult = r
	s.lastActive = s.now()
}

// LastResult returns the most recent submission outcome, nil if the session
// has not submitted successfully yet.
func (s *Session) LastResult() *fusion.SubmitResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastResult
}
