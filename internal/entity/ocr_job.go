package entity

import (
	"time"

	"github.com/docuchat/docuchat/constants"
)

// StatusOrigin distinguishes a locally predicted job value from one confirmed
// by a server poll response. A predicted value must never overwrite a
// confirmed one.
type StatusOrigin string

const (
	OriginPredicted StatusOrigin = "predicted" // set optimistically on user action
	OriginConfirmed StatusOrigin = "confirmed" // set from a poll response
)

// OcrJob is the locally tracked state of one document's OCR job.
type OcrJob struct {
	DocumentID   int64               `json:"document_id"`
	Status       constants.JobStatus `json:"status"`
	Progress     int                 `json:"progress"` // 0..100
	Message      *string             `json:"message,omitempty"`
	ErrorMessage *string             `json:"error_message,omitempty"`
	StartedAt    *time.Time          `json:"started_at,omitempty"`
	UpdatedAt    *time.Time          `json:"updated_at,omitempty"`
	FinishedAt   *time.Time          `json:"finished_at,omitempty"`
	// ExtractedText is only present on a completed job's final poll response.
	ExtractedText *string      `json:"extracted_text,omitempty"`
	Origin        StatusOrigin `json:"origin"`
}

// Merge applies an incoming job value onto j, honoring the monotonicity rule:
// a regressing status is discarded, and a predicted value never replaces a
// confirmed one. It reports whether the incoming value was applied.
func (j *OcrJob) Merge(in OcrJob) bool {
	if j.Status.Regresses(in.Status) {
		return false
	}
	if j.Origin == OriginConfirmed && in.Origin == OriginPredicted {
		return false
	}
	doc := j.DocumentID
	*j = in
	j.DocumentID = doc
	return true
}

// Clone returns an independent copy safe to hand to readers.
func (j *OcrJob) Clone() OcrJob {
	out := *j
	out.Message = cloneStr(j.Message)
	out.ErrorMessage = cloneStr(j.ErrorMessage)
	out.StartedAt = cloneTime(j.StartedAt)
	out.UpdatedAt = cloneTime(j.UpdatedAt)
	out.FinishedAt = cloneTime(j.FinishedAt)
	out.ExtractedText = cloneStr(j.ExtractedText)
	return out
}

func cloneStr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneTime(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
