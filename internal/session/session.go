// Package session drives one exam or practice-test attempt: it owns the
// answer machine, the countdown, resume snapshots, autosave and the final
// submission.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/SAP-F-2025/exam-session-service/internal/answers"
	"github.com/SAP-F-2025/exam-session-service/internal/events"
	"github.com/SAP-F-2025/exam-session-service/internal/models"
	"github.com/SAP-F-2025/exam-session-service/internal/repositories"
	"github.com/SAP-F-2025/exam-session-service/internal/serializer"
)

var (
	ErrAlreadyStarted     = errors.New("session already started")
	ErrSessionNotActive   = errors.New("session is not in progress")
	ErrSessionClosed      = errors.New("session is closed")
	ErrAlreadySubmitted   = errors.New("session already submitted")
	ErrSubmissionInFlight = errors.New("submission already in progress")
	ErrTimeExpired        = errors.New("session time has expired")
	ErrNoQuestions        = errors.New("question set is empty")
)

type Status string

const (
	StatusLoading    Status = "loading"
	StatusInProgress Status = "in_progress"
	StatusSubmitting Status = "submitting"
	StatusSubmitted  Status = "submitted"
)

type Variant string

const (
	VariantExam     Variant = "exam"
	VariantPractice Variant = "practice"
)

func (v Variant) Valid() bool {
	return v == VariantExam || v == VariantPractice
}

type SubmitReason string

const (
	ReasonManual  SubmitReason = "manual"
	ReasonExpired SubmitReason = "expired"
)

// ScoringAPI is the remote side of a session.
type ScoringAPI interface {
	FetchQuestionSet(ctx context.Context, sessionID string) (*models.QuestionSet, error)
	Autosave(ctx context.Context, sessionID string, payload *models.AutosavePayload) error
	Submit(ctx context.Context, payload *models.SubmissionPayload) (*models.SubmissionResult, error)
}

// SetValidator checks a question set before use. Validate rejects sets
// that cannot run at all; ContentWarnings reports questions that are kept
// but fall back to an unanswered rendering.
type SetValidator interface {
	Validate(s interface{}) error
	ContentWarnings(set *models.QuestionSet) []error
}

type Config struct {
	SessionID string
	Variant   Variant
	UserID    string

	// TickInterval of zero leaves the countdown to be driven by Tick.
	TickInterval    time.Duration
	AutosaveTimeout time.Duration
	SubmitTimeout   time.Duration
	Shuffler        answers.Shuffler
	Validator       SetValidator
}

type Session struct {
	cfg       Config
	api       ScoringAPI
	snapshots repositories.SnapshotRepository
	publisher events.EventPublisher
	logger    *slog.Logger

	// persistMu orders snapshot writes; it is always taken before mu.
	persistMu sync.Mutex
	mu        sync.Mutex
	status    Status
	starting  bool
	closed    bool
	resumed   bool
	machine   *answers.Machine
	countdown *Countdown

	bg sync.WaitGroup
}

func New(cfg Config, api ScoringAPI, snapshots repositories.SnapshotRepository, publisher events.EventPublisher, logger *slog.Logger) *Session {
	if cfg.Variant == "" {
		cfg.Variant = VariantExam
	}
	if cfg.AutosaveTimeout <= 0 {
		cfg.AutosaveTimeout = 10 * time.Second
	}
	if cfg.SubmitTimeout <= 0 {
		cfg.SubmitTimeout = 30 * time.Second
	}
	if cfg.Shuffler == nil {
		cfg.Shuffler = answers.RandomShuffle
	}
	return &Session{
		cfg:       cfg,
		api:       api,
		snapshots: snapshots,
		publisher: publisher,
		logger:    logger.With("session_id", cfg.SessionID, "variant", cfg.Variant),
		status:    StatusLoading,
	}
}

func (s *Session) ID() string { return s.cfg.SessionID }

func (s *Session) Variant() Variant { return s.cfg.Variant }

func (s *Session) UserID() string { return s.cfg.UserID }

// Start loads the question set and moves the session to in progress.
// Practice sessions resume from their snapshot when one decodes; a corrupt
// snapshot is logged and replaced by a fresh start.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.status != StatusLoading || s.starting {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.starting = true
	s.mu.Unlock()

	machine, timeLeft, resumed, err := s.load(ctx)

	s.mu.Lock()
	s.starting = false
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.machine = machine
	s.resumed = resumed
	s.status = StatusInProgress
	s.countdown = NewCountdown(timeLeft, s.cfg.TickInterval, s.onTick, s.onExpire)
	started := events.SessionStartedEvent{
		Variant:    string(s.cfg.Variant),
		Questions:  len(machine.Questions()),
		TimeLeft:   timeLeft,
		Resumed:    resumed,
		UserID:     s.cfg.UserID,
		TotalUnits: machine.TotalUnits(),
	}
	s.mu.Unlock()

	s.logger.Info("Session started", "resumed", resumed, "time_left", timeLeft, "questions", started.Questions)
	s.persist()
	s.publish(events.NewSessionStartedEvent(s.cfg.SessionID, started))
	s.countdown.Start()
	return nil
}

func (s *Session) load(ctx context.Context) (*answers.Machine, int, bool, error) {
	set, err := s.api.FetchQuestionSet(ctx, s.cfg.SessionID)
	if err != nil {
		return nil, 0, false, err
	}
	if s.cfg.Validator != nil {
		if err := s.cfg.Validator.Validate(set); err != nil {
			return nil, 0, false, err
		}
		for _, warning := range s.cfg.Validator.ContentWarnings(set) {
			s.logger.Warn("Keeping malformed question", "error", warning)
		}
	}
	questions, err := set.Decode()
	if err != nil {
		return nil, 0, false, err
	}
	if len(questions) == 0 {
		return nil, 0, false, ErrNoQuestions
	}

	if s.cfg.Variant == VariantPractice && s.snapshots != nil {
		snap, err := s.snapshots.Load(ctx, s.cfg.SessionID)
		switch {
		case err == nil:
			m := answers.NewMachine(questions, answers.WithShuffler(s.cfg.Shuffler))
			m.Restore(*snap)
			return m, snap.TimeLeft, true, nil
		case repositories.IsCorruptError(err):
			s.logger.Warn("Discarding corrupt snapshot", "error", err)
		case !repositories.IsNotFoundError(err):
			s.logger.Warn("Failed to load snapshot, starting fresh", "error", err)
		}
	}

	saved, errs := serializer.RestoreAll(questions, set.SavedAnswers)
	for _, err := range errs {
		s.logger.Warn("Ignoring saved answer", "error", err)
	}
	m := answers.NewMachine(questions,
		answers.WithShuffler(s.cfg.Shuffler),
		answers.WithSavedAnswers(saved))
	return m, set.Duration * 60, false, nil
}

func (s *Session) SetAnswer(questionID int, value models.AnswerValue, subIndex *int) error {
	return s.mutate(func(m *answers.Machine) error {
		return m.SetAnswer(questionID, value, subIndex)
	}, questionID)
}

func (s *Session) ClearAnswer(questionID int) error {
	return s.mutate(func(m *answers.Machine) error {
		return m.ClearAnswer(questionID)
	}, questionID)
}

func (s *Session) MoveItem(questionID, from, to int) error {
	return s.mutate(func(m *answers.Machine) error {
		return m.MoveItem(questionID, from, to)
	}, questionID)
}

func (s *Session) Navigate(index, subIndex int) error {
	return s.mutate(func(m *answers.Machine) error {
		return m.Navigate(index, subIndex)
	})
}

func (s *Session) MarkForReview(questionID int, flagged bool) error {
	return s.mutate(func(m *answers.Machine) error {
		return m.MarkForReview(questionID, flagged)
	})
}

// mutate applies fn under the session lock, then persists the snapshot
// and autosaves the changed answers outside it.
func (s *Session) mutate(fn func(m *answers.Machine) error, changed ...int) error {
	s.mu.Lock()
	if err := s.activeLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	if err := fn(s.machine); err != nil {
		s.mu.Unlock()
		return err
	}
	var autosave *models.AutosavePayload
	if s.cfg.Variant == VariantPractice && len(changed) > 0 {
		if entries := serializer.AutosaveEntries(s.machine, changed...); len(entries) > 0 {
			autosave = &models.AutosavePayload{Answers: entries}
		}
	}
	s.mu.Unlock()

	s.persist()
	if autosave != nil {
		s.autosave(autosave)
	}
	return nil
}

func (s *Session) activeLocked() error {
	switch {
	case s.closed:
		return ErrSessionClosed
	case s.status == StatusSubmitted:
		return ErrAlreadySubmitted
	case s.status != StatusInProgress:
		return ErrSessionNotActive
	case s.countdown.Expired():
		return ErrTimeExpired
	}
	return nil
}

// Submit serializes every answer and posts it once. Only the first caller
// reaches the network; a failed post reopens the session and resumes the
// countdown if time remains.
func (s *Session) Submit(ctx context.Context, reason SubmitReason) (*models.SubmissionResult, error) {
	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return nil, ErrSessionClosed
	case s.status == StatusSubmitted:
		s.mu.Unlock()
		return nil, ErrAlreadySubmitted
	case s.status == StatusSubmitting:
		s.mu.Unlock()
		return nil, ErrSubmissionInFlight
	case s.status != StatusInProgress:
		s.mu.Unlock()
		return nil, ErrSessionNotActive
	}
	s.status = StatusSubmitting
	payload := serializer.BuildPayload(s.cfg.SessionID, s.machine)
	progress := s.machine.Progress()
	countdown := s.countdown
	s.mu.Unlock()

	countdown.Stop()
	s.logger.Info("Submitting session", "reason", reason, "answered", progress.Answered, "total", progress.Total)

	ctx, cancel := context.WithTimeout(ctx, s.cfg.SubmitTimeout)
	defer cancel()
	result, err := s.api.Submit(ctx, payload)

	s.mu.Lock()
	if s.closed {
		if err == nil {
			s.status = StatusSubmitted
		}
		s.mu.Unlock()
		s.logger.Info("Submission response arrived after close", "error", err)
		if err == nil {
			s.deleteSnapshot()
		}
		return result, err
	}
	if err != nil {
		s.status = StatusInProgress
		s.mu.Unlock()

		timeLeft := countdown.Remaining()
		s.logger.Error("Submission failed", "reason", reason, "time_left", timeLeft, "error", err)
		if timeLeft > 0 {
			countdown.Start()
		}
		s.publish(events.NewSessionSubmitFailedEvent(s.cfg.SessionID, events.SessionSubmitFailedEvent{
			Reason:   string(reason),
			Error:    err.Error(),
			TimeLeft: timeLeft,
		}))
		return nil, fmt.Errorf("submit session %s: %w", s.cfg.SessionID, err)
	}
	s.status = StatusSubmitted
	s.mu.Unlock()

	s.deleteSnapshot()
	s.logger.Info("Session submitted", "reason", reason)
	s.publish(events.NewSessionSubmittedEvent(s.cfg.SessionID, events.SessionSubmittedEvent{
		Reason:      string(reason),
		Answered:    progress.Answered,
		Total:       progress.Total,
		TimeLeft:    countdown.Remaining(),
		SubmittedAt: time.Now().UTC(),
	}))
	return result, nil
}

// Close stops the countdown and waits for background work. A practice
// snapshot is kept so the session can be resumed later.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	countdown := s.countdown
	s.mu.Unlock()

	if countdown != nil {
		countdown.Stop()
	}
	s.bg.Wait()
}

func (s *Session) onTick(int) {
	s.persist()
}

func (s *Session) onExpire() {
	s.logger.Info("Session time expired")
	s.publish(events.NewSessionExpiredEvent(s.cfg.SessionID))
	if _, err := s.Submit(context.Background(), ReasonExpired); err != nil {
		s.logger.Warn("Automatic submission did not complete", "error", err)
	}
}

// persist writes the current snapshot for practice sessions.
func (s *Session) persist() {
	if s.cfg.Variant != VariantPractice || s.snapshots == nil {
		return
	}
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	if s.status != StatusInProgress || s.closed {
		s.mu.Unlock()
		return
	}
	snap := s.machine.Snapshot(s.cfg.SessionID, s.countdown.Remaining())
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.AutosaveTimeout)
	defer cancel()
	if err := s.snapshots.Save(ctx, &snap); err != nil {
		s.logger.Warn("Failed to save snapshot", "error", err)
	}
}

// deleteSnapshot removes the practice snapshot of a submitted attempt so it
// can never be resumed and sent again. It runs with a fresh context because
// the submit context may already be done.
func (s *Session) deleteSnapshot() {
	if s.cfg.Variant != VariantPractice || s.snapshots == nil {
		return
	}
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.AutosaveTimeout)
	defer cancel()
	if err := s.snapshots.Delete(ctx, s.cfg.SessionID); err != nil {
		s.logger.Warn("Failed to delete snapshot", "error", err)
	}
}

func (s *Session) autosave(payload *models.AutosavePayload) {
	s.background(func(ctx context.Context) {
		if err := s.api.Autosave(ctx, s.cfg.SessionID, payload); err != nil {
			s.logger.Warn("Autosave failed", "answers", len(payload.Answers), "error", err)
		}
	})
}

func (s *Session) publish(event *events.SessionEvent) {
	if s.publisher == nil {
		return
	}
	s.background(func(ctx context.Context) {
		if err := s.publisher.PublishSessionEvent(ctx, event); err != nil {
			s.logger.Warn("Failed to publish session event", "event_type", event.Type, "error", err)
		}
	})
}

// background runs fn with its own timeout. Nothing new starts once the
// session is closed, so Close can wait for what is already running.
func (s *Session) background(fn func(ctx context.Context)) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.bg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.bg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.AutosaveTimeout)
		defer cancel()
		fn(ctx)
	}()
}

// View is a read-only summary of a session.
type View struct {
	SessionID            string           `json:"session_id"`
	Variant              Variant          `json:"variant"`
	Status               Status           `json:"status"`
	Resumed              bool             `json:"resumed"`
	Progress             answers.Progress `json:"progress"`
	TimeLeft             int              `json:"time_left"`
	FormattedTimeLeft    string           `json:"formatted_time_left"`
	CurrentQuestionIndex int              `json:"current_question_index"`
	CurrentSubIndex      int              `json:"current_sub_index"`
	MarkedForReview      []int            `json:"marked_for_review"`
}

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		SessionID:       s.cfg.SessionID,
		Variant:         s.cfg.Variant,
		Status:          s.status,
		Resumed:         s.resumed,
		MarkedForReview: []int{},
	}
	if s.machine == nil {
		v.FormattedTimeLeft = FormatTimeLeft(0)
		return v
	}
	v.Progress = s.machine.Progress()
	v.TimeLeft = s.countdown.Remaining()
	v.FormattedTimeLeft = FormatTimeLeft(v.TimeLeft)
	v.CurrentQuestionIndex, v.CurrentSubIndex = s.machine.Position()
	for _, q := range s.machine.Questions() {
		if s.machine.IsMarkedForReview(q.Meta().ID) {
			v.MarkedForReview = append(v.MarkedForReview, q.Meta().ID)
		}
	}
	return v
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Session) TimeLeft() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.countdown == nil {
		return 0
	}
	return s.countdown.Remaining()
}

// Tick advances a manually driven countdown by one step.
func (s *Session) Tick() {
	s.mu.Lock()
	countdown := s.countdown
	s.mu.Unlock()
	if countdown != nil {
		countdown.Tick()
	}
}

// Preview serializes the current answers without submitting.
func (s *Session) Preview() (*models.SubmissionPayload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.machine == nil {
		return nil, ErrSessionNotActive
	}
	return serializer.BuildPayload(s.cfg.SessionID, s.machine), nil
}

func (s *Session) Questions() []models.Question {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.machine == nil {
		return nil
	}
	return s.machine.Questions()
}

// Entry returns the current answer of one question.
func (s *Session) Entry(questionID int) (models.AnswerEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.machine == nil {
		return models.AnswerEntry{}, false
	}
	return s.machine.Entry(questionID)
}

// SheetRow is one question of an answer sheet.
type SheetRow struct {
	Index           int
	QuestionID      int
	Type            models.QuestionType
	Prompt          string
	Answer          any
	Answered        int
	Units           int
	MarkedForReview bool
}

// Sheet lists every question with its serialized answer in order.
func (s *Session) Sheet() ([]SheetRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.machine == nil {
		return nil, ErrSessionNotActive
	}

	payload := serializer.BuildPayload(s.cfg.SessionID, s.machine)
	questions := s.machine.Questions()
	rows := make([]SheetRow, 0, len(questions))
	for i, q := range questions {
		id := q.Meta().ID
		answered, units := s.machine.QuestionProgress(id)
		rows = append(rows, SheetRow{
			Index:           i + 1,
			QuestionID:      id,
			Type:            q.Type(),
			Prompt:          q.Meta().Prompt,
			Answer:          payload.Answers[i].Answer,
			Answered:        answered,
			Units:           units,
			MarkedForReview: s.machine.IsMarkedForReview(id),
		})
	}
	return slices.Clip(rows), nil
}
