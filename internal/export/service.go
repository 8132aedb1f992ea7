// Package export produces XLSX workbooks for the document inventory and the
// per-document Q&A histories.
package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"
	"golang.org/x/sync/errgroup"

	"github.com/docuchat/docuchat/internal/api"
	"github.com/docuchat/docuchat/internal/common"
	"github.com/docuchat/docuchat/internal/entity"
)

// SessionFetcher is the slice of the transport collaborator used to pull
// conversation histories for the Q&A sheet.
type SessionFetcher interface {
	GetSession(ctx context.Context, docID int64) (api.SessionResult, error)
}

// Service is a tiny façade over the transport that produces XLSX bytes.
type Service struct {
	sessions SessionFetcher
	logger   *slog.Logger
}

func NewService(sessions SessionFetcher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{sessions: sessions, logger: logger}
}

// ExportDocumentsXLSX returns a workbook with a Documents inventory sheet
// and, when withQA is set, a Q&A sheet holding each OCR-ready document's
// conversation history. Histories are fetched concurrently; documents
// without a session are simply skipped.
func (s *Service) ExportDocumentsXLSX(ctx context.Context, docs []entity.Document, jobSnapshot map[int64]entity.OcrJob, withQA bool) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	const sheet = "Documents"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)

	headers := []string{"ID", "Original Name", "Filename", "MIME Type", "Size (bytes)", "Created", "OCR", "Job Status", "Job Progress"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, d := range docs {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}

		write(1, d.ID)
		write(2, d.DisplayName())
		write(3, d.Filename)
		write(4, d.MimeType)
		write(5, d.Size)
		if !d.CreatedAt.IsZero() {
			write(6, d.CreatedAt.UTC().Format(time.RFC3339))
		} else {
			write(6, "")
		}
		if d.OCRReady() {
			write(7, "Ready")
		} else {
			write(7, "Not generated")
		}
		if job, ok := jobSnapshot[d.ID]; ok {
			write(8, string(job.Status))
			write(9, job.Progress)
		}

		row++
	}

	_ = f.SetColWidth(sheet, "A", "A", 8)
	_ = f.SetColWidth(sheet, "B", "C", 32)
	_ = f.SetColWidth(sheet, "D", "D", 18)
	_ = f.SetColWidth(sheet, "E", "F", 22)
	_ = f.SetColWidth(sheet, "G", "I", 14)

	if withQA {
		if err := s.appendQASheet(ctx, f, docs); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"documents", len(docs),
		"with_qa", withQA,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func (s *Service) appendQASheet(ctx context.Context, f *excelize.File, docs []entity.Document) error {
	const sheet = "Q&A"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	headers := []string{"Document ID", "Turn", "Question", "Answer"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	var mu sync.Mutex
	histories := make(map[int64]api.SessionResult)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, d := range docs {
		if !d.OCRReady() {
			continue
		}
		g.Go(func() error {
			res, err := s.sessions.GetSession(gctx, d.ID)
			if err != nil {
				if errors.Is(err, common.ErrNotFound) {
					return nil
				}
				return err
			}
			mu.Lock()
			histories[d.ID] = res
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("fetch session histories: %w", err)
	}

	ids := make([]int64, 0, len(histories))
	for id := range histories {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	row := 2
	for _, id := range ids {
		res := histories[id]
		for turn, exch := range res.History("") {
			write := func(col int, v any) {
				cell, _ := excelize.CoordinatesToCellName(col, row)
				_ = f.SetCellValue(sheet, cell, v)
			}
			write(1, id)
			if turn == 0 {
				write(2, "context")
			} else {
				write(2, turn)
			}
			write(3, truncate(exch.Question, 500))
			write(4, truncate(exch.Answer, 2000))
			row++
		}
	}

	_ = f.SetColWidth(sheet, "A", "B", 12)
	_ = f.SetColWidth(sheet, "C", "D", 80)
	return nil
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
