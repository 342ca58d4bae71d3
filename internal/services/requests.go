package services

import (
	"github.com/SAP-F-2025/exam-session-service/internal/answers"
	"github.com/SAP-F-2025/exam-session-service/internal/models"
	"github.com/SAP-F-2025/exam-session-service/internal/session"
)

// ===== REQUEST STRUCTURES =====

type StartSessionRequest struct {
	SessionID string          `json:"session_id" validate:"required,max=96"`
	Variant   session.Variant `json:"variant" validate:"required,session_variant"`
}

type SetAnswerRequest struct {
	Value    models.AnswerValue `json:"value"`
	SubIndex *int               `json:"sub_index" validate:"omitempty,gte=0"`
}

type MoveItemRequest struct {
	From int `json:"from"`
	To   int `json:"to"`
}

type NavigateRequest struct {
	QuestionIndex int `json:"question_index" validate:"gte=0"`
	SubIndex      int `json:"sub_index" validate:"gte=0"`
}

type ReviewRequest struct {
	Flagged bool `json:"flagged"`
}

type SubmitRequest struct {
	Confirm bool `json:"confirm"`
}

// ===== RESPONSE STRUCTURES =====

type QuestionResponse struct {
	ID         int                 `json:"id"`
	Type       models.QuestionType `json:"type"`
	Prompt     string              `json:"prompt"`
	Options    []string            `json:"options"`
	Blanks     int                 `json:"blanks,omitempty"`
	SubPrompts []string            `json:"sub_prompts,omitempty"`
	Answer     *models.AnswerEntry `json:"answer,omitempty"`
}

type SessionResponse struct {
	session.View
	Questions []QuestionResponse `json:"questions,omitempty"`
}

type ProgressResponse struct {
	SessionID         string           `json:"session_id"`
	Status            session.Status   `json:"status"`
	Progress          answers.Progress `json:"progress"`
	TimeLeft          int              `json:"time_left"`
	FormattedTimeLeft string           `json:"formatted_time_left"`
}

type SubmitResponse struct {
	SessionID string                   `json:"session_id"`
	Status    session.Status           `json:"status"`
	Result    *models.SubmissionResult `json:"result"`
}
