// Package client talks to the external scoring API that delivers question
// sets, stores autosaves and grades submissions.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/SAP-F-2025/exam-session-service/internal/models"
)

var (
	ErrUnexpectedStatus = errors.New("unexpected status from scoring API")
	ErrSubmissionDenied = errors.New("submission not accepted")
)

// ScoringClient is the HTTP client for the scoring API.
type ScoringClient struct {
	baseURL    string
	httpClient *http.Client
	token      string
	logger     *slog.Logger
}

type ClientOption func(*ScoringClient)

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *ScoringClient) { c.httpClient = hc }
}

// WithBearerToken forwards a service token on every request.
func WithBearerToken(token string) ClientOption {
	return func(c *ScoringClient) { c.token = token }
}

func NewScoringClient(baseURL string, logger *slog.Logger, opts ...ClientOption) *ScoringClient {
	c := &ScoringClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchQuestionSet loads the questions, duration and saved answers of a session.
func (c *ScoringClient) FetchQuestionSet(ctx context.Context, sessionID string) (*models.QuestionSet, error) {
	var set models.QuestionSet
	if err := c.do(ctx, http.MethodGet, "/sessions/"+url.PathEscape(sessionID)+"/questions", nil, &set); err != nil {
		return nil, fmt.Errorf("fetch questions for %s: %w", sessionID, err)
	}
	return &set, nil
}

// Autosave records changed answers for a practice session.
func (c *ScoringClient) Autosave(ctx context.Context, sessionID string, payload *models.AutosavePayload) error {
	if err := c.do(ctx, http.MethodPost, "/sessions/"+url.PathEscape(sessionID)+"/autosave", payload, nil); err != nil {
		return fmt.Errorf("autosave %s: %w", sessionID, err)
	}
	return nil
}

// Submit posts the final payload. A response with status false is reported
// as ErrSubmissionDenied.
func (c *ScoringClient) Submit(ctx context.Context, payload *models.SubmissionPayload) (*models.SubmissionResult, error) {
	var result models.SubmissionResult
	if err := c.do(ctx, http.MethodPost, "/submissions", payload, &result); err != nil {
		return nil, fmt.Errorf("submit %s: %w", payload.ExamID, err)
	}
	if !result.Status {
		return &result, fmt.Errorf("submit %s: %w", payload.ExamID, ErrSubmissionDenied)
	}
	return &result, nil
}

func (c *ScoringClient) do(ctx context.Context, method, path string, body, dest any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	c.logger.Debug("Scoring API call",
		"method", method,
		"path", path,
		"status_code", resp.StatusCode,
		"duration", time.Since(start).String())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %d %s", ErrUnexpectedStatus, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
