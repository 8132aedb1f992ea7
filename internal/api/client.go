// Package api is the transport/auth collaborator for the document service.
// It attaches the bearer credential, performs the network exchange, and
// parses every response into a typed result after validating its shape.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/docuchat/docuchat/internal/common"
	"github.com/docuchat/docuchat/internal/entity"
)

// Client talks to the document service over HTTP/JSON.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	log        *slog.Logger
}

func NewClient(cfg common.APIConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: timeout},
		log:        logger,
	}
}

// ListDocuments fetches the authoritative document list.
func (c *Client) ListDocuments(ctx context.Context) ([]entity.Document, error) {
	var docs []entity.Document
	if err := c.doJSON(ctx, http.MethodGet, "/documents", nil, documentListSchema(), &docs); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

// DeleteDocument removes a document server-side.
func (c *Client) DeleteDocument(ctx context.Context, docID int64) error {
	path := fmt.Sprintf("/documents/%d", docID)
	if _, err := c.do(ctx, http.MethodDelete, path, nil); err != nil {
		return fmt.Errorf("delete document %d: %w", docID, err)
	}
	return nil
}

// StartOCR submits an OCR job for the document.
func (c *Client) StartOCR(ctx context.Context, docID int64) (StartOCRResult, error) {
	var out StartOCRResult
	path := fmt.Sprintf("/documents/%d/ocr", docID)
	if err := c.doJSON(ctx, http.MethodPost, path, nil, startOCRSchema(), &out); err != nil {
		return StartOCRResult{}, fmt.Errorf("start ocr for document %d: %w", docID, err)
	}
	return out, nil
}

// OCRStatus polls the current status of the document's OCR job.
func (c *Client) OCRStatus(ctx context.Context, docID int64) (OCRStatusResult, error) {
	var out OCRStatusResult
	path := fmt.Sprintf("/documents/%d/ocr/status", docID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, ocrStatusSchema(), &out); err != nil {
		return OCRStatusResult{}, fmt.Errorf("ocr status for document %d: %w", docID, err)
	}
	return out, nil
}

// GetSession looks up the document's conversation thread. A missing session
// is reported as common.ErrNotFound.
func (c *Client) GetSession(ctx context.Context, docID int64) (SessionResult, error) {
	var out SessionResult
	path := fmt.Sprintf("/documents/%d/llm/session", docID)
	err := c.doJSON(ctx, http.MethodGet, path, nil, sessionSchema(), &out)
	if err != nil {
		if te := asTransportError(err); te != nil && te.Status == http.StatusNotFound {
			return SessionResult{}, fmt.Errorf("session for document %d: %w", docID, common.ErrNotFound)
		}
		return SessionResult{}, fmt.Errorf("session for document %d: %w", docID, err)
	}
	return out, nil
}

// InitializeSession creates a new conversation thread seeded with the priming
// question and returns the server-assigned session id.
func (c *Client) InitializeSession(ctx context.Context, docID int64, question string) (int64, error) {
	var out initializeResult
	path := fmt.Sprintf("/documents/%d/llm/initialize", docID)
	body := map[string]any{"question": question}
	if err := c.doJSON(ctx, http.MethodPost, path, body, initializeSchema(), &out); err != nil {
		return 0, fmt.Errorf("initialize session for document %d: %w", docID, err)
	}
	return out.LlmSession.ID, nil
}

// Ask posts a question to an existing session and returns the full ordered
// answer list, the last element being the answer to this question.
func (c *Client) Ask(ctx context.Context, docID, sessionID int64, question string) ([]string, error) {
	var out askResult
	path := fmt.Sprintf("/documents/%d/llm/%d/answer", docID, sessionID)
	body := map[string]any{"question": question}
	if err := c.doJSON(ctx, http.MethodPost, path, body, askSchema(), &out); err != nil {
		return nil, fmt.Errorf("ask document %d session %d: %w", docID, sessionID, err)
	}
	return out.LlmSession.Answers, nil
}

// GeneratePDF fetches the server-rendered report for the document.
func (c *Client) GeneratePDF(ctx context.Context, docID int64) ([]byte, error) {
	path := fmt.Sprintf("/documents/%d/pdf/generate", docID)
	raw, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("generate pdf for document %d: %w", docID, err)
	}
	return raw, nil
}

// FetchFile fetches the original uploaded bytes. With download set, the
// server is asked for attachment disposition, matching the browser flow.
func (c *Client) FetchFile(ctx context.Context, docID int64, download bool) ([]byte, error) {
	path := fmt.Sprintf("/documents/%d/file", docID)
	if download {
		path += "?download=1"
	}
	raw, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch file for document %d: %w", docID, err)
	}
	return raw, nil
}

// doJSON performs a request, validates the response body against the
// endpoint's schema, and unmarshals it into out.
func (c *Client) doJSON(ctx context.Context, method, path string, body any, schema *jsonschema.Schema, out any) error {
	raw, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	if err := validateAgainstSchema(schema, raw); err != nil {
		return &TransportError{Status: http.StatusOK, Body: "unexpected response shape: " + err.Error()}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	reqID := common.RequestIDFromContext(ctx)
	if reqID == "" {
		reqID = uuid.New().String()
		ctx = common.WithRequestID(ctx, reqID)
	}
	start := time.Now()

	var reader io.Reader
	if body != nil {
		bs, err := json.Marshal(body)
		if err != nil {
			c.log.Error("api.encode_error", "req_id", reqID, "error", err)
			return nil, fmt.Errorf("encode json: %w", err)
		}
		reader = bytes.NewReader(bs)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		c.log.Error("api.build_request_error", "req_id", reqID, "error", err)
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Error("api.send_error",
			"req_id", reqID, "method", method, "path", path,
			"error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, err
	}
	defer func(Body io.ReadCloser) {
		err := Body.Close()
		if err != nil {
			c.log.Warn("api.response_body_close_error", "req_id", reqID, "error", err)
		}
	}(resp.Body)

	raw, _ := io.ReadAll(resp.Body)

	c.log.Info("api.response",
		"req_id", reqID,
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &TransportError{Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	return raw, nil
}

func asTransportError(err error) *TransportError {
	var te *TransportError
	if errors.As(err, &te) {
		return te
	}
	return nil
}
