package handlers

import (
	"net/http"

	"github.com/SAP-F-2025/exam-session-service/internal/services"
	"github.com/SAP-F-2025/exam-session-service/internal/utils"
	"github.com/gin-gonic/gin"
)

type HandlerManager struct {
	sessionHandler *SessionHandler
	tokenParser    TokenParser
}

// NewHandlerManager wires the HTTP handlers. A nil tokenParser disables
// JWT verification.
func NewHandlerManager(
	sessionService services.SessionService,
	sheetService services.AnswerSheetService,
	tokenParser TokenParser,
	logger utils.Logger,
) *HandlerManager {
	return &HandlerManager{
		sessionHandler: NewSessionHandler(sessionService, sheetService, logger),
		tokenParser:    tokenParser,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	// Health check endpoint
	router.GET("/health", HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	v1.Use(RequestTimer(), AuthMiddleware(hm.tokenParser))
	{
		sessions := v1.Group("/sessions")
		{
			sessions.POST("", hm.sessionHandler.StartSession)
			sessions.GET("/:id", hm.sessionHandler.GetSession)
			sessions.DELETE("/:id", hm.sessionHandler.EndSession)
			sessions.GET("/:id/progress", hm.sessionHandler.GetProgress)
			sessions.POST("/:id/navigate", hm.sessionHandler.Navigate)
			sessions.GET("/:id/payload", hm.sessionHandler.PreviewPayload)
			sessions.POST("/:id/submit", hm.sessionHandler.SubmitSession)
			sessions.GET("/:id/answer-sheet", hm.sessionHandler.ExportAnswerSheet)

			// Answer management
			sessions.PUT("/:id/answers/:question_id", hm.sessionHandler.SetAnswer)
			sessions.DELETE("/:id/answers/:question_id", hm.sessionHandler.ClearAnswer)
			sessions.POST("/:id/answers/:question_id/move", hm.sessionHandler.MoveItem)
			sessions.PUT("/:id/review/:question_id", hm.sessionHandler.MarkForReview)
		}
	}
}

func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "exam-session-service",
	})
}
