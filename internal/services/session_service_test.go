package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"testing"

	"github.com/SAP-F-2025/exam-session-service/internal/events"
	"github.com/SAP-F-2025/exam-session-service/internal/models"
	"github.com/SAP-F-2025/exam-session-service/internal/repositories/memory"
	"github.com/SAP-F-2025/exam-session-service/internal/session"
	"github.com/SAP-F-2025/exam-session-service/internal/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockScoringAPI struct {
	mock.Mock
}

func (m *mockScoringAPI) FetchQuestionSet(ctx context.Context, sessionID string) (*models.QuestionSet, error) {
	args := m.Called(ctx, sessionID)
	set, _ := args.Get(0).(*models.QuestionSet)
	return set, args.Error(1)
}

func (m *mockScoringAPI) Autosave(ctx context.Context, sessionID string, payload *models.AutosavePayload) error {
	return m.Called(ctx, sessionID, payload).Error(0)
}

func (m *mockScoringAPI) Submit(ctx context.Context, payload *models.SubmissionPayload) (*models.SubmissionResult, error) {
	args := m.Called(ctx, payload)
	result, _ := args.Get(0).(*models.SubmissionResult)
	return result, args.Error(1)
}

func testQuestionSet() *models.QuestionSet {
	return &models.QuestionSet{
		Duration: 30,
		Questions: []models.QuestionData{
			{ID: 10, Type: models.TypeMSA, Prompt: models.Prompt{"Pick one"}, Options: []string{"a", "b"}},
			{ID: 11, Type: models.TypeFIB, Prompt: models.Prompt{"Fill ___ and ___"}, Options: []string{"2"}},
			{ID: 12, Type: models.TypeORD, Prompt: models.Prompt{"Sort"}, Options: []string{"x", "y", "z"}},
			{ID: 13, Type: models.TypeEMQ, Prompt: models.Prompt{"Stem", "first", "second"}, Options: []string{"p", "q"}},
		},
	}
}

func newTestSessionService(t *testing.T, api *mockScoringAPI) SessionService {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewSessionService(
		session.Config{Shuffler: func(items []string) []string { return slices.Clone(items) }},
		api,
		memory.NewSnapshotMemory(),
		events.NewMockEventPublisher(logger),
		validator.New(),
		logger,
	)
	t.Cleanup(func() { _ = svc.Shutdown(context.Background()) })
	return svc
}

func TestSessionService_StartAndAnswer(t *testing.T) {
	api := &mockScoringAPI{}
	api.On("FetchQuestionSet", mock.Anything, "exam-1").Return(testQuestionSet(), nil).Once()
	svc := newTestSessionService(t, api)
	ctx := context.Background()

	resp, err := svc.Start(ctx, &StartSessionRequest{SessionID: "exam-1", Variant: session.VariantExam}, "user-1")
	require.NoError(t, err)
	assert.Equal(t, session.StatusInProgress, resp.Status)
	assert.Equal(t, 1800, resp.TimeLeft)
	require.Len(t, resp.Questions, 4)
	assert.Equal(t, 2, resp.Questions[1].Blanks)
	assert.Equal(t, []string{"first", "second"}, resp.Questions[3].SubPrompts)

	progress, err := svc.SetAnswer(ctx, "exam-1", 10, &SetAnswerRequest{Value: models.AnswerValue{Options: []string{"b"}}}, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, progress.Progress.Answered)

	q, err := svc.MoveItem(ctx, "exam-1", 12, &MoveItemRequest{From: 0, To: 2}, "user-1")
	require.NoError(t, err)
	require.NotNil(t, q.Answer)
	assert.Equal(t, []string{"y", "z", "x"}, q.Answer.Values)

	view, err := svc.MarkForReview(ctx, "exam-1", 13, &ReviewRequest{Flagged: true}, "user-1")
	require.NoError(t, err)
	assert.Equal(t, []int{13}, view.MarkedForReview)

	progress, err = svc.ClearAnswer(ctx, "exam-1", 10, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, progress.Progress.Answered, "moved ORD still counts")

	again, err := svc.Start(ctx, &StartSessionRequest{SessionID: "exam-1", Variant: session.VariantExam}, "user-1")
	require.NoError(t, err, "second start reuses the live session")
	assert.Equal(t, resp.SessionID, again.SessionID)
	api.AssertNumberOfCalls(t, "FetchQuestionSet", 1)
}

func TestSessionService_Ownership(t *testing.T) {
	api := &mockScoringAPI{}
	api.On("FetchQuestionSet", mock.Anything, "exam-1").Return(testQuestionSet(), nil)
	svc := newTestSessionService(t, api)
	ctx := context.Background()

	_, err := svc.Start(ctx, &StartSessionRequest{SessionID: "exam-1", Variant: session.VariantExam}, "owner")
	require.NoError(t, err)

	_, err = svc.Get(ctx, "exam-1", "intruder")
	var pe *PermissionError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "view", pe.Action)
	assert.True(t, IsUnauthorized(err))

	_, err = svc.Start(ctx, &StartSessionRequest{SessionID: "exam-1", Variant: session.VariantExam}, "intruder")
	assert.True(t, IsUnauthorized(err))

	_, err = svc.Get(ctx, "missing", "owner")
	assert.True(t, IsNotFound(err))
}

func TestSessionService_StartValidation(t *testing.T) {
	api := &mockScoringAPI{}
	svc := newTestSessionService(t, api)

	_, err := svc.Start(context.Background(), &StartSessionRequest{SessionID: "exam-1", Variant: "quiz"}, "user-1")
	require.Error(t, err)
	assert.True(t, IsValidation(err))
	api.AssertNotCalled(t, "FetchQuestionSet", mock.Anything, mock.Anything)
}

func TestSessionService_StartUpstreamFailure(t *testing.T) {
	api := &mockScoringAPI{}
	api.On("FetchQuestionSet", mock.Anything, "exam-1").Return(nil, errors.New("connection refused")).Once()
	api.On("FetchQuestionSet", mock.Anything, "exam-1").Return(testQuestionSet(), nil).Once()
	svc := newTestSessionService(t, api)
	ctx := context.Background()

	_, err := svc.Start(ctx, &StartSessionRequest{SessionID: "exam-1", Variant: session.VariantExam}, "user-1")
	require.Error(t, err)
	assert.True(t, IsUpstream(err))

	_, err = svc.Get(ctx, "exam-1", "user-1")
	assert.True(t, IsNotFound(err), "failed start leaves no registry entry")

	_, err = svc.Start(ctx, &StartSessionRequest{SessionID: "exam-1", Variant: session.VariantExam}, "user-1")
	assert.NoError(t, err)
}

func TestSessionService_StartWithMalformedQuestion(t *testing.T) {
	api := &mockScoringAPI{}
	api.On("FetchQuestionSet", mock.Anything, "exam-1").Return(&models.QuestionSet{
		Duration: 5,
		Questions: []models.QuestionData{
			{ID: 1, Type: models.TypeSAQ, Prompt: models.Prompt{"Name a prime"}},
			{ID: 2, Type: models.TypeMSA, Prompt: models.Prompt{"Pick one"}},
		},
		SavedAnswers: []models.SavedAnswer{{ID: 99, Type: models.TypeSAQ, Answer: json.RawMessage(`"lost"`)}},
	}, nil)
	svc := newTestSessionService(t, api)
	ctx := context.Background()

	resp, err := svc.Start(ctx, &StartSessionRequest{SessionID: "exam-1", Variant: session.VariantExam}, "user-1")
	require.NoError(t, err, "a question without options must not abort the session")
	assert.Equal(t, session.StatusInProgress, resp.Status)
	require.Len(t, resp.Questions, 2)

	progress, err := svc.SetAnswer(ctx, "exam-1", 1, &SetAnswerRequest{Value: models.AnswerValue{Text: models.StringPtr("7")}}, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, progress.Progress.Answered)
	assert.Equal(t, 2, progress.Progress.Total)

	preview, err := svc.Preview(ctx, "exam-1", "user-1")
	require.NoError(t, err)
	raw, err := json.Marshal(preview.Answers)
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"id":1,"type":"SAQ","answer":"7"},
		{"id":2,"type":"MSA","answer":null}
	]`, string(raw))
}

func TestSessionService_StartRejectsDuplicateQuestionIDs(t *testing.T) {
	api := &mockScoringAPI{}
	api.On("FetchQuestionSet", mock.Anything, "exam-1").Return(&models.QuestionSet{
		Duration: 5,
		Questions: []models.QuestionData{
			{ID: 1, Type: models.TypeSAQ},
			{ID: 1, Type: models.TypeSAQ},
		},
	}, nil)
	svc := newTestSessionService(t, api)

	_, err := svc.Start(context.Background(), &StartSessionRequest{SessionID: "exam-1", Variant: session.VariantExam}, "user-1")
	require.Error(t, err)
	assert.True(t, IsUpstream(err))
}

func TestSessionService_Submit(t *testing.T) {
	api := &mockScoringAPI{}
	api.On("FetchQuestionSet", mock.Anything, "exam-1").Return(testQuestionSet(), nil)
	api.On("Submit", mock.Anything, mock.Anything).Return(&models.SubmissionResult{Status: true}, nil).Once()
	svc := newTestSessionService(t, api)
	ctx := context.Background()

	_, err := svc.Start(ctx, &StartSessionRequest{SessionID: "exam-1", Variant: session.VariantExam}, "user-1")
	require.NoError(t, err)

	_, err = svc.Submit(ctx, "exam-1", &SubmitRequest{}, "user-1")
	assert.ErrorIs(t, err, ErrSubmitNotConfirmed)

	resp, err := svc.Submit(ctx, "exam-1", &SubmitRequest{Confirm: true}, "user-1")
	require.NoError(t, err)
	assert.Equal(t, session.StatusSubmitted, resp.Status)
	assert.True(t, resp.Result.Status)

	payload := api.Calls[1].Arguments.Get(1).(*models.SubmissionPayload)
	assert.Equal(t, "exam-1", payload.ExamID)
	raw, err := json.Marshal(payload.Answers)
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"id":10,"type":"MSA","answer":null},
		{"id":11,"type":"FIB","answer":null},
		{"id":12,"type":"ORD","answer":null},
		{"id":13,"type":"EMQ","answer":[]}
	]`, string(raw))

	_, err = svc.Submit(ctx, "exam-1", &SubmitRequest{Confirm: true}, "user-1")
	assert.ErrorIs(t, err, session.ErrAlreadySubmitted)
	assert.True(t, IsConflict(err))

	_, err = svc.Start(ctx, &StartSessionRequest{SessionID: "exam-1", Variant: session.VariantExam}, "user-1")
	assert.ErrorIs(t, err, session.ErrAlreadySubmitted)
	api.AssertNumberOfCalls(t, "Submit", 1)
}

func TestSessionService_SubmitFailure(t *testing.T) {
	api := &mockScoringAPI{}
	api.On("FetchQuestionSet", mock.Anything, "exam-1").Return(testQuestionSet(), nil)
	api.On("Submit", mock.Anything, mock.Anything).Return(nil, errors.New("bad gateway")).Once()
	svc := newTestSessionService(t, api)
	ctx := context.Background()

	_, err := svc.Start(ctx, &StartSessionRequest{SessionID: "exam-1", Variant: session.VariantExam}, "user-1")
	require.NoError(t, err)

	_, err = svc.Submit(ctx, "exam-1", &SubmitRequest{Confirm: true}, "user-1")
	require.Error(t, err)
	assert.True(t, IsUpstream(err))

	progress, err := svc.Progress(ctx, "exam-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, session.StatusInProgress, progress.Status, "latch released after failure")
}

func TestSessionService_EndAndSheet(t *testing.T) {
	api := &mockScoringAPI{}
	api.On("FetchQuestionSet", mock.Anything, "exam-1").Return(testQuestionSet(), nil)
	svc := newTestSessionService(t, api)
	ctx := context.Background()

	_, err := svc.Start(ctx, &StartSessionRequest{SessionID: "exam-1", Variant: session.VariantExam}, "user-1")
	require.NoError(t, err)

	rows, err := svc.Sheet(ctx, "exam-1", "user-1")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, 2, rows[3].Units)

	preview, err := svc.Preview(ctx, "exam-1", "user-1")
	require.NoError(t, err)
	assert.Len(t, preview.Answers, 4)

	require.NoError(t, svc.End(ctx, "exam-1", "user-1"))
	_, err = svc.Get(ctx, "exam-1", "user-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestFormatError(t *testing.T) {
	assert.Nil(t, FormatError(nil))

	perm := FormatError(fmt.Errorf("wrapped: %w", NewPermissionError("u", "s", "view", "owner mismatch")))
	assert.Equal(t, "permission", perm["type"])
	assert.Equal(t, "s", perm["session_id"])

	upstream := FormatError(fmt.Errorf("%w: %w", ErrScoringUnavailable, errors.New("timeout")))
	assert.Equal(t, "upstream", upstream["type"])

	conflict := FormatError(session.ErrSubmissionInFlight)
	assert.Equal(t, "conflict", conflict["type"])
}
