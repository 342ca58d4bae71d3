package models

import "encoding/json"

// SubmissionAnswer is one serialized answer. Answer's shape depends on Type.
type SubmissionAnswer struct {
	ID     int          `json:"id"`
	Type   QuestionType `json:"type"`
	Answer any          `json:"answer"`
}

// SavedAnswer is a previously autosaved answer as returned by the
// question endpoint. The answer stays raw until its question is known.
type SavedAnswer struct {
	ID     int             `json:"id"`
	Type   QuestionType    `json:"type"`
	Answer json.RawMessage `json:"answer"`
}

// SubmissionPayload is the body sent to the submission endpoint.
type SubmissionPayload struct {
	ExamID  string             `json:"examId"`
	Answers []SubmissionAnswer `json:"answers"`
}

// AutosavePayload is the body sent to the autosave endpoint.
type AutosavePayload struct {
	Answers []SubmissionAnswer `json:"answers"`
}

// SubmissionResult is the submission endpoint response.
type SubmissionResult struct {
	Status bool `json:"status"`
}
