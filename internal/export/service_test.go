package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/docuchat/docuchat/constants"
	"github.com/docuchat/docuchat/internal/api"
	"github.com/docuchat/docuchat/internal/common"
	"github.com/docuchat/docuchat/internal/entity"
)

type fakeSessions struct {
	byDoc map[int64]api.SessionResult
	err   error
}

func (f *fakeSessions) GetSession(_ context.Context, docID int64) (api.SessionResult, error) {
	if f.err != nil {
		return api.SessionResult{}, f.err
	}
	res, ok := f.byDoc[docID]
	if !ok {
		return api.SessionResult{}, common.WrapError(common.ErrNotFound, "no session")
	}
	return res, nil
}

func sampleDocs() []entity.Document {
	text := "extracted body"
	return []entity.Document{
		{
			ID:            1,
			Filename:      "a1b2.pdf",
			OriginalName:  "invoice.pdf",
			MimeType:      "application/pdf",
			Size:          2048,
			CreatedAt:     time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
			ExtractedText: &text,
		},
		{
			ID:           2,
			Filename:     "c3d4.png",
			OriginalName: "scan.png",
			MimeType:     "image/png",
			Size:         512,
		},
	}
}

func openWorkbook(t *testing.T, data []byte) *excelize.File {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func cell(t *testing.T, f *excelize.File, sheet, ref string) string {
	t.Helper()
	v, err := f.GetCellValue(sheet, ref)
	if err != nil {
		t.Fatalf("read %s!%s: %v", sheet, ref, err)
	}
	return v
}

func TestExportDocumentsSheet(t *testing.T) {
	svc := NewService(&fakeSessions{}, nil)
	jobs := map[int64]entity.OcrJob{
		2: {DocumentID: 2, Status: constants.JobStatusRunning, Progress: 40},
	}

	data, err := svc.ExportDocumentsXLSX(context.Background(), sampleDocs(), jobs, false)
	if err != nil {
		t.Fatal(err)
	}
	f := openWorkbook(t, data)

	if got := cell(t, f, "Documents", "A1"); got != "ID" {
		t.Errorf("A1: got %q", got)
	}
	if got := cell(t, f, "Documents", "B2"); got != "invoice.pdf" {
		t.Errorf("B2: got %q, want original name", got)
	}
	if got := cell(t, f, "Documents", "G2"); got != "Ready" {
		t.Errorf("G2: got %q, want Ready", got)
	}
	if got := cell(t, f, "Documents", "G3"); got != "Not generated" {
		t.Errorf("G3: got %q, want Not generated", got)
	}
	if got := cell(t, f, "Documents", "H3"); got != "running" {
		t.Errorf("H3: got %q, want running", got)
	}
	if got := cell(t, f, "Documents", "H2"); got != "" {
		t.Errorf("H2: got %q, want empty for untracked document", got)
	}

	if idx, _ := f.GetSheetIndex("Q&A"); idx != -1 {
		t.Error("Q&A sheet present without withQA")
	}
}

func TestExportQASheet(t *testing.T) {
	sessions := &fakeSessions{byDoc: map[int64]api.SessionResult{
		1: {
			ID:        101,
			Questions: []string{constants.PrimingQuestion("extracted body"), "What is the total?"},
			Answers:   []string{"This invoice covers two items.", "$42.00"},
		},
	}}
	svc := NewService(sessions, nil)

	data, err := svc.ExportDocumentsXLSX(context.Background(), sampleDocs(), nil, true)
	if err != nil {
		t.Fatal(err)
	}
	f := openWorkbook(t, data)

	// Turn 0 is the contextualization exchange.
	if got := cell(t, f, "Q&A", "B2"); got != "context" {
		t.Errorf("B2: got %q, want context", got)
	}
	if got := cell(t, f, "Q&A", "D2"); got != "This invoice covers two items." {
		t.Errorf("D2: got %q", got)
	}
	if got := cell(t, f, "Q&A", "C3"); got != "What is the total?" {
		t.Errorf("C3: got %q", got)
	}
	if got := cell(t, f, "Q&A", "B3"); got != "1" {
		t.Errorf("B3: got %q, want turn 1", got)
	}
	// Document 2 has no extracted text, so no rows beyond document 1's.
	if got := cell(t, f, "Q&A", "A4"); got != "" {
		t.Errorf("A4: got %q, want empty", got)
	}
}

func TestExportQASurfacesTransportFailure(t *testing.T) {
	svc := NewService(&fakeSessions{err: errors.New("http status 500")}, nil)

	_, err := svc.ExportDocumentsXLSX(context.Background(), sampleDocs(), nil, true)
	if err == nil {
		t.Fatal("expected transport failure to surface")
	}
	if !strings.Contains(err.Error(), "fetch session histories") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestTruncateAddsEllipsis(t *testing.T) {
	long := strings.Repeat("x", 600)
	got := truncate(long, 500)
	if len(got) >= 600 {
		t.Errorf("not truncated: %d bytes", len(got))
	}
	if !strings.HasSuffix(got, "…") {
		t.Errorf("missing ellipsis: %q", got[len(got)-8:])
	}
	if short := truncate("short", 500); short != "short" {
		t.Errorf("short input changed: %q", short)
	}
}

func TestExportHandlesManyDocuments(t *testing.T) {
	docs := make([]entity.Document, 0, 30)
	byDoc := make(map[int64]api.SessionResult)
	for i := int64(1); i <= 30; i++ {
		text := fmt.Sprintf("text %d", i)
		docs = append(docs, entity.Document{
			ID:            i,
			Filename:      fmt.Sprintf("f%d.pdf", i),
			OriginalName:  fmt.Sprintf("doc-%d.pdf", i),
			ExtractedText: &text,
		})
		if i%2 == 0 {
			byDoc[i] = api.SessionResult{
				ID:        100 + i,
				Questions: []string{"q"},
				Answers:   []string{"a"},
			}
		}
	}
	svc := NewService(&fakeSessions{byDoc: byDoc}, nil)

	data, err := svc.ExportDocumentsXLSX(context.Background(), docs, nil, true)
	if err != nil {
		t.Fatal(err)
	}
	f := openWorkbook(t, data)

	// 15 documents have sessions, one row each, ids ascending from row 2.
	if got := cell(t, f, "Q&A", "A2"); got != "2" {
		t.Errorf("A2: got %q, want first session id 2", got)
	}
	if got := cell(t, f, "Q&A", "A16"); got != "30" {
		t.Errorf("A16: got %q, want last session id 30", got)
	}
	if got := cell(t, f, "Q&A", "A17"); got != "" {
		t.Errorf("A17: got %q, want empty", got)
	}
}
