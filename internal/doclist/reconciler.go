// Package doclist holds the authoritative document list and the multi-select
// state, and reconciles them with the locally tracked job state.
package doclist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/docuchat/docuchat/constants"
	"github.com/docuchat/docuchat/internal/entity"
	"github.com/docuchat/docuchat/internal/jobs"
)

// DocumentAPI is the slice of the transport collaborator the reconciler uses.
type DocumentAPI interface {
	ListDocuments(ctx context.Context) ([]entity.Document, error)
	DeleteDocument(ctx context.Context, docID int64) error
}

// JobTracker is the job-side surface the reconciler needs: bulk starts for
// the selection, cancellation on delete, and the terminal-status events.
type JobTracker interface {
	StartBatch(ctx context.Context, docIDs []int64) error
	CancelJob(docID int64)
	ActiveIDs() []int64
	Events() <-chan jobs.Event
}

// Reconciler owns the document list and SelectionSet. Readers get snapshots.
type Reconciler struct {
	api     DocumentAPI
	tracker JobTracker
	logger  *slog.Logger

	mu        sync.Mutex
	docs      []entity.Document
	selection map[int64]struct{}
}

func NewReconciler(docAPI DocumentAPI, tracker JobTracker, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		api:       docAPI,
		tracker:   tracker,
		logger:    logger,
		selection: make(map[int64]struct{}),
	}
}

// Refresh re-fetches the full document list from the server. This is the
// only way extracted text ever becomes visible locally.
func (r *Reconciler) Refresh(ctx context.Context) error {
	docs, err := r.api.ListDocuments(ctx)
	if err != nil {
		r.logger.Error("doclist.refresh.failed", "error", err)
		return fmt.Errorf("refresh document list: %w", err)
	}
	r.mu.Lock()
	r.docs = docs
	r.mu.Unlock()
	r.logger.Info("doclist.refresh.ok", "count", len(docs))
	return nil
}

// Documents returns a snapshot of the displayed list.
func (r *Reconciler) Documents() []entity.Document {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]entity.Document(nil), r.docs...)
}

// Document looks up one displayed document by id.
func (r *Reconciler) Document(docID int64) (entity.Document, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.docs {
		if d.ID == docID {
			return d, true
		}
	}
	return entity.Document{}, false
}

// IsOCRReady reports whether the document's extracted text is present.
func (r *Reconciler) IsOCRReady(docID int64) bool {
	d, ok := r.Document(docID)
	return ok && d.OCRReady()
}

// ActiveJobIDs returns document ids with a non-terminal tracked OCR job.
func (r *Reconciler) ActiveJobIDs() []int64 {
	return r.tracker.ActiveIDs()
}

// ToggleSelectAll clears the selection when it already equals the full set
// of displayed ids, and otherwise selects everything currently displayed.
// "All" is re-evaluated against the displayed list on every call.
func (r *Reconciler) ToggleSelectAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	all := make(map[int64]struct{}, len(r.docs))
	for _, d := range r.docs {
		all[d.ID] = struct{}{}
	}

	if setsEqual(r.selection, all) {
		r.selection = make(map[int64]struct{})
		return
	}
	r.selection = all
}

// ToggleOne flips membership of a single id in the selection.
func (r *Reconciler) ToggleOne(docID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.selection[docID]; ok {
		delete(r.selection, docID)
		return
	}
	r.selection[docID] = struct{}{}
}

// Selected returns the selection as a sorted slice.
func (r *Reconciler) Selected() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int64, 0, len(r.selection))
	for id := range r.selection {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// OnDocumentDeleted drops the id from the selection and cancels any active
// poll handle for it.
func (r *Reconciler) OnDocumentDeleted(docID int64) {
	r.mu.Lock()
	delete(r.selection, docID)
	r.mu.Unlock()
	r.tracker.CancelJob(docID)
}

// Delete removes the document server-side, then reconciles local state.
func (r *Reconciler) Delete(ctx context.Context, docID int64) error {
	if err := r.api.DeleteDocument(ctx, docID); err != nil {
		r.logger.Error("doclist.delete.failed", "doc_id", docID, "error", err)
		return fmt.Errorf("delete document %d: %w", docID, err)
	}
	r.OnDocumentDeleted(docID)
	r.logger.Info("doclist.delete.ok", "doc_id", docID)
	return r.Refresh(ctx)
}

// DeleteSelected deletes the selected documents one at a time. Individual
// failures do not abort the sweep; the selection is cleared afterwards.
func (r *Reconciler) DeleteSelected(ctx context.Context) error {
	var errs []error
	for _, id := range r.Selected() {
		if err := r.Delete(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	r.mu.Lock()
	r.selection = make(map[int64]struct{})
	r.mu.Unlock()
	return errors.Join(errs...)
}

// OCRSelected starts OCR jobs for the selected documents.
func (r *Reconciler) OCRSelected(ctx context.Context) error {
	return r.tracker.StartBatch(ctx, r.Selected())
}

// Run consumes tracker events until ctx is done. A completed job triggers a
// list refresh so the new extracted text becomes visible.
func (r *Reconciler) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-r.tracker.Events():
			if !ok {
				return
			}
			r.logger.Info("doclist.job_event", "doc_id", ev.DocumentID, "status", ev.Status)
			if ev.Status == constants.JobStatusCompleted {
				if err := r.Refresh(ctx); err != nil {
					r.logger.Warn("doclist.refresh_after_completion_failed",
						"doc_id", ev.DocumentID, "error", err)
				}
			}
		}
	}
}

func setsEqual(a, b map[int64]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}
