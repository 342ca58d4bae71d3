package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the lifecycle events of an exam session
type EventType string

const (
	EventSessionStarted      EventType = "session.started"
	EventSessionResumed      EventType = "session.resumed"
	EventSessionSubmitted    EventType = "session.submitted"
	EventSessionSubmitFailed EventType = "session.submit_failed"
	EventSessionExpired      EventType = "session.expired"
)

const (
	eventSource  = "exam-session-service"
	eventVersion = "1.0"
)

// SessionEvent is the envelope for every session event
type SessionEvent struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
	Version   string                 `json:"version"`
	SessionID string                 `json:"session_id"`
	Data      interface{}            `json:"data"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

type SessionStartedEvent struct {
	Variant    string `json:"variant"`
	Questions  int    `json:"questions"`
	TimeLeft   int    `json:"time_left"`
	Resumed    bool   `json:"resumed"`
	UserID     string `json:"user_id,omitempty"`
	TotalUnits int    `json:"total_units"`
}

type SessionSubmittedEvent struct {
	Reason      string    `json:"reason"`
	Answered    int       `json:"answered"`
	Total       int       `json:"total"`
	TimeLeft    int       `json:"time_left"`
	SubmittedAt time.Time `json:"submitted_at"`
}

type SessionSubmitFailedEvent struct {
	Reason   string `json:"reason"`
	Error    string `json:"error"`
	TimeLeft int    `json:"time_left"`
}

type SessionExpiredEvent struct {
	ExpiredAt time.Time `json:"expired_at"`
}

func newSessionEvent(t EventType, sessionID string, data interface{}) *SessionEvent {
	return &SessionEvent{
		ID:        uuid.NewString(),
		Type:      t,
		Timestamp: time.Now().UTC(),
		Source:    eventSource,
		Version:   eventVersion,
		SessionID: sessionID,
		Data:      data,
	}
}

func NewSessionStartedEvent(sessionID string, data SessionStartedEvent) *SessionEvent {
	t := EventSessionStarted
	if data.Resumed {
		t = EventSessionResumed
	}
	return newSessionEvent(t, sessionID, data)
}

func NewSessionSubmittedEvent(sessionID string, data SessionSubmittedEvent) *SessionEvent {
	return newSessionEvent(EventSessionSubmitted, sessionID, data)
}

func NewSessionSubmitFailedEvent(sessionID string, data SessionSubmitFailedEvent) *SessionEvent {
	return newSessionEvent(EventSessionSubmitFailed, sessionID, data)
}

func NewSessionExpiredEvent(sessionID string) *SessionEvent {
	return newSessionEvent(EventSessionExpired, sessionID, SessionExpiredEvent{ExpiredAt: time.Now().UTC()})
}
