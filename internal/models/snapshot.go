package models

import (
	"time"

	"gorm.io/datatypes"
)

// Snapshot is the resumable state of a practice-test session.
type Snapshot struct {
	SessionID              string              `json:"session_id"`
	Answers                map[int]AnswerEntry `json:"answers"`
	NotReviewed            map[int]bool        `json:"not_reviewed"`
	Visited                []int               `json:"visited"`
	CurrentQuestionIndex   int                 `json:"current_question_index"`
	CurrentSubIndex        int                 `json:"current_sub_index"`
	TimeLeft               int                 `json:"time_left"`
	InitialShuffledOptions map[int][]string    `json:"initial_shuffled_options"`
}

// SessionSnapshot is the database row holding a Snapshot.
type SessionSnapshot struct {
	Key       string         `json:"key" gorm:"primaryKey;size:128"`
	SessionID string         `json:"session_id" gorm:"not null;index;size:96"`
	Payload   datatypes.JSON `json:"payload" gorm:"type:json;not null"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (SessionSnapshot) TableName() string {
	return "session_snapshots"
}
