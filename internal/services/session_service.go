package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/SAP-F-2025/exam-session-service/internal/events"
	"github.com/SAP-F-2025/exam-session-service/internal/models"
	"github.com/SAP-F-2025/exam-session-service/internal/repositories"
	"github.com/SAP-F-2025/exam-session-service/internal/session"
	"github.com/SAP-F-2025/exam-session-service/internal/validator"
)

type SessionService interface {
	Start(ctx context.Context, req *StartSessionRequest, userID string) (*SessionResponse, error)
	Get(ctx context.Context, sessionID, userID string) (*SessionResponse, error)
	SetAnswer(ctx context.Context, sessionID string, questionID int, req *SetAnswerRequest, userID string) (*ProgressResponse, error)
	ClearAnswer(ctx context.Context, sessionID string, questionID int, userID string) (*ProgressResponse, error)
	MoveItem(ctx context.Context, sessionID string, questionID int, req *MoveItemRequest, userID string) (*QuestionResponse, error)
	Navigate(ctx context.Context, sessionID string, req *NavigateRequest, userID string) (*session.View, error)
	MarkForReview(ctx context.Context, sessionID string, questionID int, req *ReviewRequest, userID string) (*session.View, error)
	Progress(ctx context.Context, sessionID, userID string) (*ProgressResponse, error)
	Preview(ctx context.Context, sessionID, userID string) (*models.SubmissionPayload, error)
	Submit(ctx context.Context, sessionID string, req *SubmitRequest, userID string) (*SubmitResponse, error)
	Sheet(ctx context.Context, sessionID, userID string) ([]session.SheetRow, error)
	End(ctx context.Context, sessionID, userID string) error
	Shutdown(ctx context.Context) error
}

type sessionService struct {
	template  session.Config
	api       session.ScoringAPI
	snapshots repositories.SnapshotRepository
	publisher events.EventPublisher
	validator *validator.Validator
	logger    *slog.Logger
	opLog     *ServiceLogger

	mu       sync.RWMutex
	sessions map[string]*session.Session
}

// NewSessionService keeps live sessions in memory. template supplies the
// timing and shuffle settings copied into every session it starts.
func NewSessionService(
	template session.Config,
	api session.ScoringAPI,
	snapshots repositories.SnapshotRepository,
	publisher events.EventPublisher,
	validator *validator.Validator,
	logger *slog.Logger,
) SessionService {
	if template.Validator == nil {
		template.Validator = validator
	}
	return &sessionService{
		template:  template,
		api:       api,
		snapshots: snapshots,
		publisher: publisher,
		validator: validator,
		logger:    logger,
		opLog:     NewServiceLogger(logger, "session"),
		sessions:  make(map[string]*session.Session),
	}
}

// ===== LIFECYCLE =====

func (s *sessionService) Start(ctx context.Context, req *StartSessionRequest, userID string) (_ *SessionResponse, err error) {
	s.logger.Info("Starting exam session",
		"session_id", req.SessionID,
		"variant", req.Variant,
		"user_id", userID)

	started := time.Now()
	defer func() {
		s.opLog.LogOperation(ctx, "start", userID, req.SessionID, time.Since(started), err)
	}()

	if err := s.validator.ValidateStruct(req); err != nil {
		var errs ValidationErrors
		if errors.As(err, &errs) {
			s.opLog.LogValidationError(ctx, "start", userID, errs)
		}
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	s.mu.Lock()
	existing, ok := s.sessions[req.SessionID]
	if ok {
		s.mu.Unlock()
		if existing.UserID() != userID {
			return nil, NewPermissionError(userID, req.SessionID, "start", "session belongs to another user")
		}
		switch existing.Status() {
		case session.StatusSubmitted:
			return nil, session.ErrAlreadySubmitted
		case session.StatusLoading:
			return nil, session.ErrAlreadyStarted
		}
		if existing.Variant() != req.Variant {
			return nil, NewBusinessRuleError("variant_mismatch",
				fmt.Sprintf("session is running as %s", existing.Variant()),
				map[string]interface{}{"requested": req.Variant})
		}
		s.logger.Info("Reusing live exam session", "session_id", req.SessionID)
		return s.buildSessionResponse(existing), nil
	}

	cfg := s.template
	cfg.SessionID = req.SessionID
	cfg.Variant = req.Variant
	cfg.UserID = userID
	sess := session.New(cfg, s.api, s.snapshots, s.publisher, s.logger)
	s.sessions[req.SessionID] = sess
	s.mu.Unlock()

	if err := sess.Start(ctx); err != nil {
		s.remove(req.SessionID, sess)
		sess.Close()
		s.logger.Error("Failed to start exam session", "session_id", req.SessionID, "error", err)
		return nil, s.classifyStartError(err)
	}

	s.logger.Info("Exam session started successfully",
		"session_id", req.SessionID,
		"user_id", userID)
	return s.buildSessionResponse(sess), nil
}

func (s *sessionService) End(ctx context.Context, sessionID, userID string) (err error) {
	started := time.Now()
	defer func() {
		s.opLog.LogOperation(ctx, "end", userID, sessionID, time.Since(started), err)
	}()

	sess, err := s.lookup(sessionID, userID, "end")
	if err != nil {
		return err
	}
	s.remove(sessionID, sess)
	sess.Close()
	s.logger.Info("Exam session ended", "session_id", sessionID, "status", sess.Status())
	return nil
}

// Shutdown closes every live session. Practice snapshots survive so the
// sessions can be resumed after a restart.
func (s *sessionService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	live := make([]*session.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		live = append(live, sess)
	}
	s.sessions = make(map[string]*session.Session)
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, sess := range live {
			sess.Close()
		}
	}()

	select {
	case <-done:
		s.logger.Info("Closed live exam sessions", "count", len(live))
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown sessions: %w", ctx.Err())
	}
}

// ===== READ OPERATIONS =====

func (s *sessionService) Get(ctx context.Context, sessionID, userID string) (*SessionResponse, error) {
	sess, err := s.lookup(sessionID, userID, "view")
	if err != nil {
		return nil, err
	}
	return s.buildSessionResponse(sess), nil
}

func (s *sessionService) Progress(ctx context.Context, sessionID, userID string) (*ProgressResponse, error) {
	sess, err := s.lookup(sessionID, userID, "view")
	if err != nil {
		return nil, err
	}
	return buildProgressResponse(sess), nil
}

func (s *sessionService) Preview(ctx context.Context, sessionID, userID string) (*models.SubmissionPayload, error) {
	sess, err := s.lookup(sessionID, userID, "view")
	if err != nil {
		return nil, err
	}
	return sess.Preview()
}

func (s *sessionService) Sheet(ctx context.Context, sessionID, userID string) ([]session.SheetRow, error) {
	sess, err := s.lookup(sessionID, userID, "export")
	if err != nil {
		return nil, err
	}
	return sess.Sheet()
}

// ===== ANSWER OPERATIONS =====

func (s *sessionService) SetAnswer(ctx context.Context, sessionID string, questionID int, req *SetAnswerRequest, userID string) (*ProgressResponse, error) {
	if err := s.validator.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	sess, err := s.lookup(sessionID, userID, "answer")
	if err != nil {
		return nil, err
	}
	if err := sess.SetAnswer(questionID, req.Value, req.SubIndex); err != nil {
		return nil, fmt.Errorf("set answer for question %d: %w", questionID, err)
	}
	return buildProgressResponse(sess), nil
}

func (s *sessionService) ClearAnswer(ctx context.Context, sessionID string, questionID int, userID string) (*ProgressResponse, error) {
	sess, err := s.lookup(sessionID, userID, "answer")
	if err != nil {
		return nil, err
	}
	if err := sess.ClearAnswer(questionID); err != nil {
		return nil, fmt.Errorf("clear answer for question %d: %w", questionID, err)
	}
	return buildProgressResponse(sess), nil
}

func (s *sessionService) MoveItem(ctx context.Context, sessionID string, questionID int, req *MoveItemRequest, userID string) (*QuestionResponse, error) {
	sess, err := s.lookup(sessionID, userID, "answer")
	if err != nil {
		return nil, err
	}
	if err := sess.MoveItem(questionID, req.From, req.To); err != nil {
		return nil, fmt.Errorf("move item for question %d: %w", questionID, err)
	}
	for _, q := range sess.Questions() {
		if q.Meta().ID == questionID {
			resp := buildQuestionResponse(sess, q)
			return &resp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *sessionService) Navigate(ctx context.Context, sessionID string, req *NavigateRequest, userID string) (*session.View, error) {
	if err := s.validator.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	sess, err := s.lookup(sessionID, userID, "navigate")
	if err != nil {
		return nil, err
	}
	if err := sess.Navigate(req.QuestionIndex, req.SubIndex); err != nil {
		return nil, fmt.Errorf("navigate: %w", err)
	}
	view := sess.View()
	return &view, nil
}

func (s *sessionService) MarkForReview(ctx context.Context, sessionID string, questionID int, req *ReviewRequest, userID string) (*session.View, error) {
	sess, err := s.lookup(sessionID, userID, "review")
	if err != nil {
		return nil, err
	}
	if err := sess.MarkForReview(questionID, req.Flagged); err != nil {
		return nil, fmt.Errorf("mark question %d for review: %w", questionID, err)
	}
	view := sess.View()
	return &view, nil
}

// ===== SUBMISSION =====

func (s *sessionService) Submit(ctx context.Context, sessionID string, req *SubmitRequest, userID string) (_ *SubmitResponse, err error) {
	started := time.Now()
	defer func() {
		s.opLog.LogOperation(ctx, "submit", userID, sessionID, time.Since(started), err)
	}()

	if !req.Confirm {
		return nil, ErrSubmitNotConfirmed
	}
	sess, err := s.lookup(sessionID, userID, "submit")
	if err != nil {
		return nil, err
	}

	result, err := sess.Submit(ctx, session.ReasonManual)
	if err != nil {
		if IsConflict(err) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrScoringUnavailable, err)
	}
	return &SubmitResponse{
		SessionID: sessionID,
		Status:    sess.Status(),
		Result:    result,
	}, nil
}

// ===== HELPERS =====

func (s *sessionService) lookup(sessionID, userID, action string) (*session.Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	if sess.UserID() != userID {
		return nil, NewPermissionError(userID, sessionID, action, "session belongs to another user")
	}
	return sess, nil
}

// remove drops the registry entry only if it still points at sess.
func (s *sessionService) remove(sessionID string, sess *session.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessions[sessionID] == sess {
		delete(s.sessions, sessionID)
	}
}

// classifyStartError treats anything but a state conflict as an upstream
// failure, including a question set that fails validation.
func (s *sessionService) classifyStartError(err error) error {
	if IsConflict(err) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrScoringUnavailable, err)
}

func (s *sessionService) buildSessionResponse(sess *session.Session) *SessionResponse {
	questions := sess.Questions()
	resp := &SessionResponse{
		View:      sess.View(),
		Questions: make([]QuestionResponse, 0, len(questions)),
	}
	for _, q := range questions {
		resp.Questions = append(resp.Questions, buildQuestionResponse(sess, q))
	}
	return resp
}

func buildQuestionResponse(sess *session.Session, q models.Question) QuestionResponse {
	meta := q.Meta()
	resp := QuestionResponse{
		ID:      meta.ID,
		Type:    q.Type(),
		Prompt:  meta.Prompt,
		Options: meta.Options,
	}
	switch typed := q.(type) {
	case models.FIBQuestion:
		resp.Blanks = typed.Blanks
	case models.EMQQuestion:
		resp.SubPrompts = typed.SubPrompts
	}
	if entry, ok := sess.Entry(meta.ID); ok {
		resp.Answer = &entry
	}
	return resp
}

func buildProgressResponse(sess *session.Session) *ProgressResponse {
	view := sess.View()
	return &ProgressResponse{
		SessionID:         view.SessionID,
		Status:            view.Status,
		Progress:          view.Progress,
		TimeLeft:          view.TimeLeft,
		FormattedTimeLeft: view.FormattedTimeLeft,
	}
}
