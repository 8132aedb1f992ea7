package doclist

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/docuchat/docuchat/constants"
	"github.com/docuchat/docuchat/internal/entity"
	"github.com/docuchat/docuchat/internal/jobs"
)

type fakeDocAPI struct {
	mu        sync.Mutex
	docs      []entity.Document
	listCalls int
	deleted   []int64
	deleteErr error
}

func (f *fakeDocAPI) ListDocuments(_ context.Context) ([]entity.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	return append([]entity.Document(nil), f.docs...), nil
}

func (f *fakeDocAPI) DeleteDocument(_ context.Context, docID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, docID)
	kept := f.docs[:0]
	for _, d := range f.docs {
		if d.ID != docID {
			kept = append(kept, d)
		}
	}
	f.docs = kept
	return nil
}

func (f *fakeDocAPI) lists() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}

type fakeTracker struct {
	mu        sync.Mutex
	cancelled []int64
	batches   [][]int64
	active    []int64
	events    chan jobs.Event
}

func newFakeTracker() *fakeTracker {
	return &fakeTracker{events: make(chan jobs.Event, 4)}
}

func (f *fakeTracker) StartBatch(_ context.Context, docIDs []int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, append([]int64(nil), docIDs...))
	return nil
}

func (f *fakeTracker) CancelJob(docID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, docID)
}

func (f *fakeTracker) ActiveIDs() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.active...)
}

func (f *fakeTracker) Events() <-chan jobs.Event { return f.events }

func doc(id int64, extracted string) entity.Document {
	d := entity.Document{ID: id, Filename: "f", OriginalName: "o"}
	if extracted != "" {
		d.ExtractedText = &extracted
	}
	return d
}

func newTestReconciler(t *testing.T, docs ...entity.Document) (*Reconciler, *fakeDocAPI, *fakeTracker) {
	t.Helper()
	api := &fakeDocAPI{docs: docs}
	tracker := newFakeTracker()
	r := NewReconciler(api, tracker, nil)
	if err := r.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	return r, api, tracker
}

func TestToggleSelectAllRoundTrip(t *testing.T) {
	r, _, _ := newTestReconciler(t, doc(1, ""), doc(2, ""), doc(3, ""))

	r.ToggleSelectAll()
	if got := r.Selected(); len(got) != 3 || got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Errorf("select all: got %v, want [1 2 3]", got)
	}

	r.ToggleSelectAll()
	if got := r.Selected(); len(got) != 0 {
		t.Errorf("second toggle should clear, got %v", got)
	}
}

func TestToggleSelectAllReevaluatesDisplayedList(t *testing.T) {
	r, api, _ := newTestReconciler(t, doc(1, ""), doc(2, ""))

	r.ToggleSelectAll() // {1,2}

	api.mu.Lock()
	api.docs = append(api.docs, doc(3, ""))
	api.mu.Unlock()
	if err := r.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}

	// Selection {1,2} no longer equals the displayed set {1,2,3}, so the
	// toggle selects everything instead of clearing.
	r.ToggleSelectAll()
	if got := r.Selected(); len(got) != 3 {
		t.Errorf("got %v, want all three", got)
	}
}

func TestToggleOneIsSymmetricDifference(t *testing.T) {
	r, _, _ := newTestReconciler(t, doc(1, ""), doc(2, ""))

	r.ToggleOne(1)
	r.ToggleOne(2)
	r.ToggleOne(1)
	if got := r.Selected(); len(got) != 1 || got[0] != 2 {
		t.Errorf("got %v, want [2]", got)
	}
}

func TestOnDocumentDeletedPrunesSelectionAndCancelsPoll(t *testing.T) {
	r, _, tracker := newTestReconciler(t, doc(1, ""), doc(2, ""), doc(3, ""))
	r.ToggleSelectAll()

	r.OnDocumentDeleted(2)

	if got := r.Selected(); len(got) != 2 || got[0] != 1 || got[1] != 3 {
		t.Errorf("selection: got %v, want [1 3]", got)
	}
	tracker.mu.Lock()
	defer tracker.mu.Unlock()
	if len(tracker.cancelled) != 1 || tracker.cancelled[0] != 2 {
		t.Errorf("cancelled: got %v, want [2]", tracker.cancelled)
	}
}

func TestDeleteRemovesServerSideAndRefreshes(t *testing.T) {
	r, api, _ := newTestReconciler(t, doc(1, ""), doc(2, ""))

	if err := r.Delete(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	if _, ok := r.Document(1); ok {
		t.Error("document 1 still displayed after delete")
	}
	api.mu.Lock()
	defer api.mu.Unlock()
	if len(api.deleted) != 1 || api.deleted[0] != 1 {
		t.Errorf("deleted: got %v", api.deleted)
	}
}

func TestDeleteFailureKeepsState(t *testing.T) {
	r, api, tracker := newTestReconciler(t, doc(1, ""))
	r.ToggleOne(1)
	api.deleteErr = errors.New("http status 403: forbidden")

	if err := r.Delete(context.Background(), 1); err == nil {
		t.Fatal("expected delete failure")
	}
	if got := r.Selected(); len(got) != 1 {
		t.Errorf("selection should survive a failed delete, got %v", got)
	}
	tracker.mu.Lock()
	defer tracker.mu.Unlock()
	if len(tracker.cancelled) != 0 {
		t.Errorf("no polls should be cancelled on failure, got %v", tracker.cancelled)
	}
}

func TestDeleteSelectedClearsSelection(t *testing.T) {
	r, api, _ := newTestReconciler(t, doc(1, ""), doc(2, ""))
	r.ToggleSelectAll()

	if err := r.DeleteSelected(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := r.Selected(); len(got) != 0 {
		t.Errorf("selection not cleared: %v", got)
	}
	api.mu.Lock()
	defer api.mu.Unlock()
	if len(api.deleted) != 2 {
		t.Errorf("deleted: got %v", api.deleted)
	}
}

func TestOCRSelectedStartsBatchForSelection(t *testing.T) {
	r, _, tracker := newTestReconciler(t, doc(1, ""), doc(2, ""), doc(3, ""))
	r.ToggleOne(3)
	r.ToggleOne(1)

	if err := r.OCRSelected(context.Background()); err != nil {
		t.Fatal(err)
	}
	tracker.mu.Lock()
	defer tracker.mu.Unlock()
	if len(tracker.batches) != 1 {
		t.Fatalf("batches: got %d", len(tracker.batches))
	}
	if got := tracker.batches[0]; len(got) != 2 || got[0] != 1 || got[1] != 3 {
		t.Errorf("batch ids: got %v, want [1 3]", got)
	}
}

func TestIsOCRReady(t *testing.T) {
	r, _, _ := newTestReconciler(t, doc(1, "some text"), doc(2, ""))

	if !r.IsOCRReady(1) {
		t.Error("document 1 should be ready")
	}
	if r.IsOCRReady(2) {
		t.Error("document 2 should not be ready")
	}
	if r.IsOCRReady(99) {
		t.Error("unknown document should not be ready")
	}
}

func TestRunRefreshesOnCompletedEvent(t *testing.T) {
	r, api, tracker := newTestReconciler(t, doc(1, ""))
	before := api.lists()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	tracker.events <- jobs.Event{DocumentID: 1, Status: constants.JobStatusCompleted}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if api.lists() > before {
			break
		}
		time.Sleep(2 * time.Millisecond)
	}
	if api.lists() <= before {
		t.Fatal("completed event did not trigger a refresh")
	}

	// A failed job records its error but does not refresh the list.
	mid := api.lists()
	tracker.events <- jobs.Event{DocumentID: 1, Status: constants.JobStatusFailed}
	time.Sleep(20 * time.Millisecond)
	if api.lists() != mid {
		t.Errorf("failed event should not refresh, lists went %d -> %d", mid, api.lists())
	}
}
