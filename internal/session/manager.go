// Package session owns the per-document LLM conversation state: creating,
// resuming and extending server-side sessions, plus the bounded best-effort
// poll for the deferred contextualization answer.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/docuchat/docuchat/constants"
	"github.com/docuchat/docuchat/internal/api"
	"github.com/docuchat/docuchat/internal/common"
	"github.com/docuchat/docuchat/internal/entity"
	"github.com/docuchat/docuchat/internal/poller"
)

// SessionAPI is the slice of the transport collaborator the manager depends on.
type SessionAPI interface {
	GetSession(ctx context.Context, docID int64) (api.SessionResult, error)
	InitializeSession(ctx context.Context, docID int64, question string) (int64, error)
	Ask(ctx context.Context, docID, sessionID int64, question string) ([]string, error)
	GeneratePDF(ctx context.Context, docID int64) ([]byte, error)
}

// Manager owns the LlmSession arena. Sessions are server-owned resources the
// client caches; they are never destroyed from here.
type Manager struct {
	api      SessionAPI
	sched    *poller.Scheduler
	logger   *slog.Logger
	interval time.Duration
	attempts int

	mu       sync.Mutex
	sessions map[int64]*entity.LlmSession
}

type Option func(*Manager)

func WithPollInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.interval = d
		}
	}
}

func WithPollAttempts(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.attempts = n
		}
	}
}

func NewManager(sessionAPI SessionAPI, sched *poller.Scheduler, logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		api:      sessionAPI,
		sched:    sched,
		logger:   logger,
		interval: time.Second,
		attempts: 10,
		sessions: make(map[int64]*entity.LlmSession),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// EnsureSession returns the document's conversation, resuming an existing
// server session when one exists or initializing a new one seeded with the
// priming question built from extractedText. For a fresh session the first
// answer is a placeholder; a bounded poll replaces it with the real
// contextualization when the server finishes, and gives up silently after
// the attempt limit.
func (m *Manager) EnsureSession(ctx context.Context, docID int64, extractedText string) (entity.LlmSession, error) {
	res, err := m.api.GetSession(ctx, docID)
	if err == nil {
		sess := entity.LlmSession{
			ID:         res.ID,
			DocumentID: docID,
			History:    res.History(constants.ContextPlaceholder),
		}
		m.put(sess)
		m.logger.Info("session.ensure.resumed", "doc_id", docID, "session_id", res.ID, "turns", len(sess.History))
		return sess.Clone(), nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		m.logger.Error("session.ensure.lookup_failed", "doc_id", docID, "error", err)
		return entity.LlmSession{}, fmt.Errorf("session lookup: %w", err)
	}

	priming := constants.PrimingQuestion(extractedText)
	id, err := m.api.InitializeSession(ctx, docID, priming)
	if err != nil {
		m.logger.Error("session.ensure.initialize_failed", "doc_id", docID, "error", err)
		return entity.LlmSession{}, fmt.Errorf("initialize session: %w", err)
	}

	sess := entity.LlmSession{
		ID:         id,
		DocumentID: docID,
		History:    []entity.Exchange{{Question: priming, Answer: constants.ContextPlaceholder}},
	}
	m.put(sess)
	m.logger.Info("session.ensure.initialized", "doc_id", docID, "session_id", id)

	key := poller.Key{DocumentID: docID, Kind: poller.KindContextualization}
	m.sched.Register(ctx, key, m.interval,
		func(ctx context.Context) (any, error) { return m.api.GetSession(ctx, docID) },
		func(v any) poller.Decision { return m.applyContextualization(docID, v.(api.SessionResult)) },
		func(err error) {
			// Best-effort enhancement: failure leaves the placeholder in
			// place and is never surfaced to the user.
			m.logger.Warn("session.context_poll.transport_error", "doc_id", docID, "error", err)
		},
		poller.WithMaxAttempts(m.attempts),
	)

	return sess.Clone(), nil
}

// Ask posts a question to the document's session and appends the returned
// answer to the local history. Without a prior EnsureSession it fails before
// touching the network.
func (m *Manager) Ask(ctx context.Context, docID int64, question string) (entity.Exchange, error) {
	m.mu.Lock()
	sess, ok := m.sessions[docID]
	var sessionID int64
	if ok {
		sessionID = sess.ID
	}
	m.mu.Unlock()
	if !ok {
		return entity.Exchange{}, fmt.Errorf("ask document %d: %w", docID, common.ErrSessionNotInitialized)
	}

	answers, err := m.api.Ask(ctx, docID, sessionID, question)
	if err != nil {
		m.logger.Error("session.ask.failed", "doc_id", docID, "session_id", sessionID, "error", err)
		return entity.Exchange{}, fmt.Errorf("ask: %w", err)
	}
	if len(answers) == 0 {
		return entity.Exchange{}, fmt.Errorf("ask: empty answer list for document %d", docID)
	}

	exch := entity.Exchange{Question: question, Answer: answers[len(answers)-1]}
	m.mu.Lock()
	if cur, ok := m.sessions[docID]; ok && cur.ID == sessionID {
		cur.History = append(cur.History, exch)
	}
	m.mu.Unlock()

	m.logger.Info("session.ask.ok", "doc_id", docID, "session_id", sessionID, "answer_len", len(exch.Answer))
	return exch, nil
}

// GenerateReport downloads the server-rendered PDF for the document. The
// server requires a session with at least one answer, so that precondition
// is checked up front and turned into a clear error.
func (m *Manager) GenerateReport(ctx context.Context, docID int64) ([]byte, error) {
	res, err := m.api.GetSession(ctx, docID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("contextualization required before generating a report: %w", common.ErrSessionNotInitialized)
		}
		return nil, fmt.Errorf("generate report: %w", err)
	}
	if len(res.Answers) == 0 {
		return nil, fmt.Errorf("contextualization required before generating a report: %w", common.ErrSessionNotInitialized)
	}
	return m.api.GeneratePDF(ctx, docID)
}

// Session returns a snapshot of the cached session for the document.
func (m *Manager) Session(docID int64) (entity.LlmSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[docID]
	if !ok {
		return entity.LlmSession{}, false
	}
	return sess.Clone(), true
}

// History returns the ordered (question, answer) pairs for the document.
func (m *Manager) History(docID int64) []entity.Exchange {
	sess, ok := m.Session(docID)
	if !ok {
		return nil
	}
	return sess.History
}

// StopAll cancels every active contextualization poll. Used on teardown.
func (m *Manager) StopAll() {
	for _, key := range m.sched.ActiveKeys() {
		if key.Kind == poller.KindContextualization {
			m.sched.Cancel(key)
		}
	}
}

func (m *Manager) applyContextualization(docID int64, res api.SessionResult) poller.Decision {
	ans, ok := res.FirstAnswer()
	if !ok || ans == constants.ContextPlaceholder {
		return poller.Continue
	}

	m.mu.Lock()
	if sess, exists := m.sessions[docID]; exists && len(sess.History) > 0 {
		sess.History[0].Answer = ans
	}
	m.mu.Unlock()

	m.logger.Info("session.context_poll.resolved", "doc_id", docID, "answer_len", len(ans))
	return poller.Stop
}

func (m *Manager) put(sess entity.LlmSession) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := sess.Clone()
	m.sessions[sess.DocumentID] = &cp
}
