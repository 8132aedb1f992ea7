package entity

import "time"

// Document represents a server-side document row for data transfer between layers.
type Document struct {
	ID            int64     `json:"id"`
	Filename      string    `json:"filename"`
	OriginalName  string    `json:"originalName"`
	MimeType      string    `json:"mimeType"`
	Size          int64     `json:"size"`
	CreatedAt     time.Time `json:"createdAt"`
	ExtractedText *string   `json:"extractedText,omitempty"`
	Path          string    `json:"path"`
}

// OCRReady reports whether the document's OCR job has ever completed, i.e.
// extracted text is present.
func (d *Document) OCRReady() bool {
	return d.ExtractedText != nil && *d.ExtractedText != ""
}

// DisplayName prefers the original upload name over the stored filename.
func (d *Document) DisplayName() string {
	if d.OriginalName != "" {
		return d.OriginalName
	}
	return d.Filename
}
