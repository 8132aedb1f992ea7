package api

import (
	"fmt"

	"github.com/docuchat/docuchat/internal/entity"
)

// TransportError is a non-success response from any call. The server error
// body is preserved so callers can surface it verbatim.
type TransportError struct {
	Status int
	Body   string
}

func (e *TransportError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("http status %d: %s", e.Status, e.Body)
	}
	return fmt.Sprintf("http status %d", e.Status)
}

// StartOCRResult is the acceptance response of POST /documents/{id}/ocr.
type StartOCRResult struct {
	Accepted       bool   `json:"accepted"`
	DocumentID     int64  `json:"documentId"`
	StatusEndpoint string `json:"statusEndpoint"`
}

// OCRStatusResult is the poll response of GET /documents/{id}/ocr/status.
// ExtractedText is only populated once the job has completed.
type OCRStatusResult struct {
	Status        string  `json:"status"`
	Progress      int     `json:"progress"`
	Message       *string `json:"message,omitempty"`
	Error         *string `json:"error,omitempty"`
	StartedAt     *string `json:"startedAt,omitempty"`
	UpdatedAt     *string `json:"updatedAt,omitempty"`
	FinishedAt    *string `json:"finishedAt,omitempty"`
	ExtractedText *string `json:"extractedText,omitempty"`
}

// SessionResult is the response of GET /documents/{id}/llm/session. Questions
// and answers are parallel arrays in conversation order; answers may lag
// questions while the server is still generating.
type SessionResult struct {
	ID        int64    `json:"id"`
	Questions []string `json:"questions"`
	Answers   []string `json:"answers"`
}

// FirstAnswer returns the contextualization slot, or ok=false when the server
// has not recorded any answer yet.
func (r *SessionResult) FirstAnswer() (string, bool) {
	if len(r.Answers) == 0 {
		return "", false
	}
	return r.Answers[0], true
}

// History zips questions and answers into ordered exchanges. A question
// without a recorded answer yet is paired with fallback.
func (r *SessionResult) History(fallback string) []entity.Exchange {
	out := make([]entity.Exchange, 0, len(r.Questions))
	for i, q := range r.Questions {
		ans := fallback
		if i < len(r.Answers) {
			ans = r.Answers[i]
		}
		out = append(out, entity.Exchange{Question: q, Answer: ans})
	}
	return out
}

// initializeResult is the response of POST /documents/{id}/llm/initialize.
type initializeResult struct {
	LlmSession struct {
		ID int64 `json:"id"`
	} `json:"llmSession"`
}

// askResult is the response of POST /documents/{id}/llm/{sessionId}/answer.
type askResult struct {
	LlmSession struct {
		Answers []string `json:"answers"`
	} `json:"llmSession"`
}
