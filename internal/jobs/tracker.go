// Package jobs owns the per-document OCR job state and drives each job from
// submission to a terminal status via the polling scheduler.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/docuchat/docuchat/constants"
	"github.com/docuchat/docuchat/internal/api"
	"github.com/docuchat/docuchat/internal/entity"
	"github.com/docuchat/docuchat/internal/poller"
)

// OCRAPI is the slice of the transport collaborator the tracker depends on.
type OCRAPI interface {
	StartOCR(ctx context.Context, docID int64) (api.StartOCRResult, error)
	OCRStatus(ctx context.Context, docID int64) (api.OCRStatusResult, error)
}

// Event is emitted whenever a job reaches a terminal status. The document
// list reconciler consumes it to refresh the authoritative list.
type Event struct {
	DocumentID int64
	Status     constants.JobStatus
}

// Tracker owns the OcrJob arena. All reads go through accessor methods and
// return clones; nothing outside this package touches the map.
type Tracker struct {
	api      OCRAPI
	sched    *poller.Scheduler
	logger   *slog.Logger
	interval time.Duration

	mu   sync.Mutex
	jobs map[int64]*entity.OcrJob

	events chan Event
}

type Option func(*Tracker)

func WithPollInterval(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.interval = d
		}
	}
}

func NewTracker(ocrAPI OCRAPI, sched *poller.Scheduler, logger *slog.Logger, opts ...Option) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	t := &Tracker{
		api:      ocrAPI,
		sched:    sched,
		logger:   logger,
		interval: 1200 * time.Millisecond,
		jobs:     make(map[int64]*entity.OcrJob),
		events:   make(chan Event, 16),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Events delivers terminal-status notifications.
func (t *Tracker) Events() <-chan Event {
	return t.events
}

// StartJob submits an OCR job for the document and begins polling its status.
// A document with an active poll handle is a no-op. The local state is set to
// {queued, 0} before the start request goes out.
func (t *Tracker) StartJob(ctx context.Context, docID int64) error {
	key := poller.Key{DocumentID: docID, Kind: poller.KindOCR}
	if t.sched.Active(key) {
		t.logger.Info("ocr.start.already_active", "doc_id", docID)
		return nil
	}

	now := time.Now()
	t.setJob(docID, entity.OcrJob{
		DocumentID: docID,
		Status:     constants.JobStatusQueued,
		Progress:   0,
		Origin:     entity.OriginPredicted,
		StartedAt:  &now,
	})

	res, err := t.api.StartOCR(ctx, docID)
	if err != nil {
		msg := err.Error()
		fin := time.Now()
		t.setJob(docID, entity.OcrJob{
			DocumentID:   docID,
			Status:       constants.JobStatusFailed,
			Progress:     0,
			ErrorMessage: &msg,
			Origin:       entity.OriginPredicted,
			StartedAt:    &now,
			FinishedAt:   &fin,
		})
		t.emit(Event{DocumentID: docID, Status: constants.JobStatusFailed})
		t.logger.Error("ocr.start.failed", "doc_id", docID, "error", err)
		return fmt.Errorf("start ocr job: %w", err)
	}

	// The acceptance flag is informational; the status endpoint is polled
	// either way and settles the real outcome.
	t.logger.Info("ocr.start.accepted",
		"doc_id", docID, "accepted", res.Accepted, "status_endpoint", res.StatusEndpoint)

	t.sched.Register(ctx, key, t.interval,
		func(ctx context.Context) (any, error) { return t.api.OCRStatus(ctx, docID) },
		func(v any) poller.Decision { return t.applyStatus(docID, v.(api.OCRStatusResult)) },
		func(err error) {
			// No retry: the handle is gone and the last non-regressed
			// status stays in place, visibly stalled.
			t.logger.Warn("ocr.poll.transport_error", "doc_id", docID, "error", err)
		},
	)
	return nil
}

// StartBatch starts jobs sequentially: each start request is awaited before
// the next is issued. Accepted jobs then poll concurrently. Individual
// failures do not abort the batch.
func (t *Tracker) StartBatch(ctx context.Context, docIDs []int64) error {
	var errs []error
	for _, id := range docIDs {
		if err := t.StartJob(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("document %d: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// CancelJob drops the active poll handle for the document, if any.
func (t *Tracker) CancelJob(docID int64) {
	t.sched.Cancel(poller.Key{DocumentID: docID, Kind: poller.KindOCR})
}

// StopAll cancels every active OCR poll handle. Used on teardown.
func (t *Tracker) StopAll() {
	for _, key := range t.sched.ActiveKeys() {
		if key.Kind == poller.KindOCR {
			t.sched.Cancel(key)
		}
	}
}

// Job returns a snapshot of the tracked job for the document.
func (t *Tracker) Job(docID int64) (entity.OcrJob, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	j, ok := t.jobs[docID]
	if !ok {
		return entity.OcrJob{}, false
	}
	return j.Clone(), true
}

// ActiveIDs returns document ids whose tracked job is non-terminal.
func (t *Tracker) ActiveIDs() []int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []int64
	for id, j := range t.jobs {
		if !j.Status.IsTerminal() {
			out = append(out, id)
		}
	}
	return out
}

// Snapshot returns a copy of the whole job arena.
func (t *Tracker) Snapshot() map[int64]entity.OcrJob {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[int64]entity.OcrJob, len(t.jobs))
	for id, j := range t.jobs {
		out[id] = j.Clone()
	}
	return out
}

// applyStatus merges one poll response. Regressions are discarded; a
// terminal status stops the poll and emits an event.
func (t *Tracker) applyStatus(docID int64, res api.OCRStatusResult) poller.Decision {
	status, ok := constants.ParseJobStatus(res.Status)
	if !ok {
		t.logger.Warn("ocr.poll.unknown_status", "doc_id", docID, "status", res.Status)
		return poller.Continue
	}

	progress := res.Progress
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}

	in := entity.OcrJob{
		DocumentID:    docID,
		Status:        status,
		Progress:      progress,
		Message:       res.Message,
		ErrorMessage:  res.Error,
		StartedAt:     parseTime(res.StartedAt),
		UpdatedAt:     parseTime(res.UpdatedAt),
		FinishedAt:    parseTime(res.FinishedAt),
		ExtractedText: res.ExtractedText,
		Origin:        entity.OriginConfirmed,
	}

	t.mu.Lock()
	cur, exists := t.jobs[docID]
	if !exists {
		cur = &entity.OcrJob{DocumentID: docID, Status: status, Origin: entity.OriginConfirmed}
		t.jobs[docID] = cur
	}
	applied := cur.Merge(in)
	final := cur.Status
	t.mu.Unlock()

	if !applied {
		t.logger.Warn("ocr.poll.regression_discarded",
			"doc_id", docID, "have", final, "got", status)
		return poller.Continue
	}

	t.logger.Info("ocr.poll.tick", "doc_id", docID, "status", status, "progress", progress)

	if final.IsTerminal() {
		t.emit(Event{DocumentID: docID, Status: final})
		return poller.Stop
	}
	return poller.Continue
}

// setJob replaces the tracked entry outright: starting a job begins a new
// instance, and monotonicity only binds poll responses within one instance.
func (t *Tracker) setJob(docID int64, j entity.OcrJob) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cp := j
	t.jobs[docID] = &cp
}

// emit never blocks a poll goroutine; a consumer that fell behind just
// misses a refresh hint.
func (t *Tracker) emit(ev Event) {
	select {
	case t.events <- ev:
	default:
		t.logger.Warn("ocr.event_dropped", "doc_id", ev.DocumentID, "status", ev.Status)
	}
}

func parseTime(s *string) *time.Time {
	if s == nil || *s == "" {
		return nil
	}
	ts, err := time.Parse(time.RFC3339, *s)
	if err != nil {
		return nil
	}
	return &ts
}
