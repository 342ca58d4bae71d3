package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/SAP-F-2025/exam-session-service/internal/answers"
	"github.com/SAP-F-2025/exam-session-service/internal/services"
	"github.com/SAP-F-2025/exam-session-service/internal/session"
	"github.com/SAP-F-2025/exam-session-service/internal/utils"
	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type SessionHandler struct {
	BaseHandler
	sessionService services.SessionService
	sheetService   services.AnswerSheetService
}

func NewSessionHandler(
	sessionService services.SessionService,
	sheetService services.AnswerSheetService,
	logger utils.Logger,
) *SessionHandler {
	return &SessionHandler{
		BaseHandler:    NewBaseHandler(logger),
		sessionService: sessionService,
		sheetService:   sheetService,
	}
}

// StartSession starts a session or returns the caller's live one
// @Summary Start or resume exam session
// @Tags sessions
// @Accept json
// @Produce json
// @Param session body services.StartSessionRequest true "Session to start"
// @Success 201 {object} SuccessResponse{data=services.SessionResponse}
// @Failure 400 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /sessions [post]
func (h *SessionHandler) StartSession(c *gin.Context) {
	var req services.StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	userID, ok := RequireUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Starting exam session", "session_id", req.SessionID, "variant", req.Variant)

	resp, err := h.sessionService.Start(c.Request.Context(), &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.RespondWithSuccess(c, http.StatusCreated, "Session started", resp, "session_id", req.SessionID)
}

// GetSession returns the session state with every question and answer
// @Summary Get exam session
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} SuccessResponse{data=services.SessionResponse}
// @Failure 404 {object} ErrorResponse
// @Router /sessions/{id} [get]
func (h *SessionHandler) GetSession(c *gin.Context) {
	sessionID := ParseStringIDParam(c, "id")
	if sessionID == "" {
		return
	}
	userID, ok := RequireUserID(c)
	if !ok {
		return
	}

	resp, err := h.sessionService.Get(c.Request.Context(), sessionID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Session retrieved", Data: resp})
}

// GetProgress returns progress counts and the countdown
// @Summary Get session progress
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} SuccessResponse{data=services.ProgressResponse}
// @Router /sessions/{id}/progress [get]
func (h *SessionHandler) GetProgress(c *gin.Context) {
	sessionID := ParseStringIDParam(c, "id")
	if sessionID == "" {
		return
	}
	userID, ok := RequireUserID(c)
	if !ok {
		return
	}

	resp, err := h.sessionService.Progress(c.Request.Context(), sessionID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Progress retrieved", Data: resp})
}

// SetAnswer records an answer for one question
// @Summary Set answer
// @Tags answers
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param question_id path int true "Question ID"
// @Param answer body services.SetAnswerRequest true "Answer value"
// @Success 200 {object} SuccessResponse{data=services.ProgressResponse}
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /sessions/{id}/answers/{question_id} [put]
func (h *SessionHandler) SetAnswer(c *gin.Context) {
	sessionID := ParseStringIDParam(c, "id")
	if sessionID == "" {
		return
	}
	questionID := ParseIntIDParam(c, "question_id")
	if questionID == 0 {
		return
	}

	var req services.SetAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	userID, ok := RequireUserID(c)
	if !ok {
		return
	}

	resp, err := h.sessionService.SetAnswer(c.Request.Context(), sessionID, questionID, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Answer saved", Data: resp})
}

// ClearAnswer resets one question to its empty answer
// @Summary Clear answer
// @Tags answers
// @Produce json
// @Param id path string true "Session ID"
// @Param question_id path int true "Question ID"
// @Success 200 {object} SuccessResponse{data=services.ProgressResponse}
// @Router /sessions/{id}/answers/{question_id} [delete]
func (h *SessionHandler) ClearAnswer(c *gin.Context) {
	sessionID := ParseStringIDParam(c, "id")
	if sessionID == "" {
		return
	}
	questionID := ParseIntIDParam(c, "question_id")
	if questionID == 0 {
		return
	}
	userID, ok := RequireUserID(c)
	if !ok {
		return
	}

	resp, err := h.sessionService.ClearAnswer(c.Request.Context(), sessionID, questionID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Answer cleared", Data: resp})
}

// MoveItem reorders one item of an ordering question
// @Summary Move ordering item
// @Tags answers
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param question_id path int true "Question ID"
// @Param move body services.MoveItemRequest true "Source and target positions"
// @Success 200 {object} SuccessResponse{data=services.QuestionResponse}
// @Router /sessions/{id}/answers/{question_id}/move [post]
func (h *SessionHandler) MoveItem(c *gin.Context) {
	sessionID := ParseStringIDParam(c, "id")
	if sessionID == "" {
		return
	}
	questionID := ParseIntIDParam(c, "question_id")
	if questionID == 0 {
		return
	}

	var req services.MoveItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	userID, ok := RequireUserID(c)
	if !ok {
		return
	}

	resp, err := h.sessionService.MoveItem(c.Request.Context(), sessionID, questionID, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Item moved", Data: resp})
}

// Navigate moves the current position
// @Summary Navigate
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param position body services.NavigateRequest true "Target position"
// @Success 200 {object} SuccessResponse{data=session.View}
// @Router /sessions/{id}/navigate [post]
func (h *SessionHandler) Navigate(c *gin.Context) {
	sessionID := ParseStringIDParam(c, "id")
	if sessionID == "" {
		return
	}

	var req services.NavigateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	userID, ok := RequireUserID(c)
	if !ok {
		return
	}

	resp, err := h.sessionService.Navigate(c.Request.Context(), sessionID, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Position updated", Data: resp})
}

// MarkForReview flags or unflags a question
// @Summary Mark for review
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param question_id path int true "Question ID"
// @Param review body services.ReviewRequest true "Flag"
// @Success 200 {object} SuccessResponse{data=session.View}
// @Router /sessions/{id}/review/{question_id} [put]
func (h *SessionHandler) MarkForReview(c *gin.Context) {
	sessionID := ParseStringIDParam(c, "id")
	if sessionID == "" {
		return
	}
	questionID := ParseIntIDParam(c, "question_id")
	if questionID == 0 {
		return
	}

	var req services.ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	userID, ok := RequireUserID(c)
	if !ok {
		return
	}

	resp, err := h.sessionService.MarkForReview(c.Request.Context(), sessionID, questionID, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Review flag updated", Data: resp})
}

// PreviewPayload returns the submission payload without sending it
// @Summary Preview submission payload
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} SuccessResponse{data=models.SubmissionPayload}
// @Router /sessions/{id}/payload [get]
func (h *SessionHandler) PreviewPayload(c *gin.Context) {
	sessionID := ParseStringIDParam(c, "id")
	if sessionID == "" {
		return
	}
	userID, ok := RequireUserID(c)
	if !ok {
		return
	}

	payload, err := h.sessionService.Preview(c.Request.Context(), sessionID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Payload preview", Data: payload})
}

// SubmitSession posts the answers to the scoring service
// @Summary Submit exam session
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param submit body services.SubmitRequest true "Confirmation"
// @Success 200 {object} SuccessResponse{data=services.SubmitResponse}
// @Failure 409 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /sessions/{id}/submit [post]
func (h *SessionHandler) SubmitSession(c *gin.Context) {
	sessionID := ParseStringIDParam(c, "id")
	if sessionID == "" {
		return
	}

	var req services.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	userID, ok := RequireUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Submitting exam session", "session_id", sessionID)

	resp, err := h.sessionService.Submit(c.Request.Context(), sessionID, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.RespondWithSuccess(c, http.StatusOK, "Session submitted", resp, "session_id", sessionID)
}

// ExportAnswerSheet downloads the answers as an XLSX workbook
// @Summary Export answer sheet
// @Tags sessions
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path string true "Session ID"
// @Success 200 {file} binary
// @Router /sessions/{id}/answer-sheet [get]
func (h *SessionHandler) ExportAnswerSheet(c *gin.Context) {
	sessionID := ParseStringIDParam(c, "id")
	if sessionID == "" {
		return
	}
	userID, ok := RequireUserID(c)
	if !ok {
		return
	}

	data, err := h.sheetService.ExportAnswerSheet(c.Request.Context(), sessionID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="answer-sheet-%s.xlsx"`, sessionID))
	c.Data(http.StatusOK, xlsxContentType, data)
}

// EndSession stops the countdown and drops the live session
// @Summary End exam session
// @Tags sessions
// @Param id path string true "Session ID"
// @Success 204
// @Router /sessions/{id} [delete]
func (h *SessionHandler) EndSession(c *gin.Context) {
	sessionID := ParseStringIDParam(c, "id")
	if sessionID == "" {
		return
	}
	userID, ok := RequireUserID(c)
	if !ok {
		return
	}

	if err := h.sessionService.End(c.Request.Context(), sessionID, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.LogInfo(c, "Session ended", "session_id", sessionID)
	c.Status(http.StatusNoContent)
}

// ===== ERROR MAPPING =====

func (h *SessionHandler) handleServiceError(c *gin.Context, err error) {
	var permissionError *services.PermissionError
	if errors.As(err, &permissionError) {
		h.RespondWithError(c, http.StatusForbidden, "Access denied", err, map[string]interface{}{
			"session_id": permissionError.SessionID,
			"action":     permissionError.Action,
			"reason":     permissionError.Reason,
		})
		return
	}

	var businessRuleError *services.BusinessRuleError
	if errors.As(err, &businessRuleError) {
		h.RespondWithError(c, http.StatusUnprocessableEntity, businessRuleError.Message, err, map[string]interface{}{
			"rule":    businessRuleError.Rule,
			"context": businessRuleError.Context,
		})
		return
	}

	// Upstream first: a malformed question set also carries validation errors
	if services.IsUpstream(err) {
		h.RespondWithError(c, http.StatusBadGateway, "Scoring service request failed", err, err.Error())
		return
	}

	var validationErrors services.ValidationErrors
	if errors.As(err, &validationErrors) {
		h.RespondWithError(c, http.StatusBadRequest, "Validation failed", nil, validationErrors)
		return
	}

	switch {
	case errors.Is(err, services.ErrSessionNotFound):
		h.RespondWithError(c, http.StatusNotFound, "Session not found", nil)
	case errors.Is(err, answers.ErrQuestionNotFound):
		h.RespondWithError(c, http.StatusNotFound, "Question not found", nil)
	case errors.Is(err, services.ErrSubmitNotConfirmed):
		h.RespondWithError(c, http.StatusBadRequest, "Submission must be confirmed", nil)
	case errors.Is(err, session.ErrAlreadySubmitted):
		h.RespondWithError(c, http.StatusConflict, "Session already submitted", nil)
	case errors.Is(err, session.ErrSubmissionInFlight):
		h.RespondWithError(c, http.StatusConflict, "Submission already in progress", nil)
	case errors.Is(err, session.ErrTimeExpired):
		h.RespondWithError(c, http.StatusConflict, "Session time has expired", nil)
	case services.IsConflict(err):
		h.RespondWithError(c, http.StatusConflict, "Session is not accepting changes", nil, err.Error())
	case services.IsValidation(err):
		h.RespondWithError(c, http.StatusBadRequest, "Invalid answer", nil, err.Error())
	case services.IsNotFound(err):
		h.RespondWithError(c, http.StatusNotFound, "Resource not found", nil)
	case services.IsUnauthorized(err):
		h.RespondWithError(c, http.StatusForbidden, "Access denied", nil)
	default:
		h.RespondWithError(c, http.StatusInternalServerError, "Internal server error", err)
	}
}
