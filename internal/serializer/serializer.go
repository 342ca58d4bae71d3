// Package serializer turns answer state into the wire answers expected by
// the scoring API. Every function here is pure: the same inputs always give
// the same output and no input is modified.
package serializer

import (
	"slices"
	"strings"

	"github.com/SAP-F-2025/exam-session-service/internal/answers"
	"github.com/SAP-F-2025/exam-session-service/internal/models"
)

// Source is the read side of an answer machine.
type Source interface {
	Questions() []models.Question
	Entry(id int) (models.AnswerEntry, bool)
	Baseline(id int) []string
}

// Answer serializes one question. entry is nil when the question has never
// been touched. The unanswered sentinel per type is:
//
//	MSA, TOF, SAQ, FIB, MTF, ORD  nil
//	MMA                           []int{}
//	EMQ                           []*int{}
func Answer(q models.Question, entry *models.AnswerEntry, baseline []string) any {
	switch q := q.(type) {
	case models.MSAQuestion:
		if entry == nil || len(entry.Values) == 0 {
			return nil
		}
		return optionIndex(q.Options, entry.Values[0])
	case models.MMAQuestion:
		indices := []int{}
		if entry == nil {
			return indices
		}
		for _, value := range entry.Values {
			if idx := optionIndex(q.Options, value); idx > 0 {
				indices = append(indices, idx)
			}
		}
		return indices
	case models.TOFQuestion:
		if entry == nil || len(entry.Values) == 0 {
			return nil
		}
		return trueFalse(q.Options, entry.Values[0])
	case models.SAQQuestion:
		if entry == nil || entry.Text == nil {
			return nil
		}
		return *entry.Text
	case models.FIBQuestion:
		return blanks(q, entry)
	case models.MTFQuestion:
		return matches(q, entry)
	case models.ORDQuestion:
		if entry == nil || len(entry.Values) == 0 || answers.SequenceEqual(entry.Values, baseline) {
			return nil
		}
		return slices.Clone(entry.Values)
	case models.EMQQuestion:
		return extendedMatches(q, entry)
	default:
		return nil
	}
}

// Entry serializes one question into its wire envelope.
func Entry(q models.Question, entry *models.AnswerEntry, baseline []string) models.SubmissionAnswer {
	return models.SubmissionAnswer{
		ID:     q.Meta().ID,
		Type:   q.Type(),
		Answer: Answer(q, entry, baseline),
	}
}

// BuildPayload serializes every question of src in question-set order.
func BuildPayload(sessionID string, src Source) *models.SubmissionPayload {
	questions := src.Questions()
	payload := &models.SubmissionPayload{
		ExamID:  sessionID,
		Answers: make([]models.SubmissionAnswer, 0, len(questions)),
	}
	for _, q := range questions {
		payload.Answers = append(payload.Answers, entryFrom(src, q))
	}
	return payload
}

// AutosaveEntries serializes only the changed questions. ORD questions still
// in their initial shuffle are left out so a non-answer is never recorded.
func AutosaveEntries(src Source, changed ...int) []models.SubmissionAnswer {
	wanted := make(map[int]struct{}, len(changed))
	for _, id := range changed {
		wanted[id] = struct{}{}
	}

	out := make([]models.SubmissionAnswer, 0, len(changed))
	for _, q := range src.Questions() {
		if _, ok := wanted[q.Meta().ID]; !ok {
			continue
		}
		e := entryFrom(src, q)
		if q.Type() == models.TypeORD && e.Answer == nil {
			continue
		}
		out = append(out, e)
	}
	return out
}

func entryFrom(src Source, q models.Question) models.SubmissionAnswer {
	id := q.Meta().ID
	var entry *models.AnswerEntry
	if e, ok := src.Entry(id); ok {
		entry = &e
	}
	return Entry(q, entry, src.Baseline(id))
}

// optionIndex is the 1-based position of value in options, 0 when absent.
// An exact match wins over a markup-insensitive one.
func optionIndex(options []string, value string) int {
	if i := slices.Index(options, value); i >= 0 {
		return i + 1
	}
	plain := answers.PlainText(value)
	for i, option := range options {
		if answers.PlainText(option) == plain {
			return i + 1
		}
	}
	return 0
}

func trueFalse(options []string, value string) any {
	if idx := optionIndex(options, value); idx == 1 || idx == 2 {
		return idx
	}
	switch strings.ToLower(answers.PlainText(value)) {
	case "true":
		return 1
	case "false":
		return 2
	}
	return nil
}

func blanks(q models.FIBQuestion, entry *models.AnswerEntry) any {
	if entry == nil {
		return nil
	}
	filled := false
	for _, value := range entry.Values {
		if strings.TrimSpace(value) != "" {
			filled = true
			break
		}
	}
	if !filled {
		return nil
	}

	out := make([]string, q.Blanks)
	copy(out, entry.Values)
	return out
}

func matches(q models.MTFQuestion, entry *models.AnswerEntry) any {
	if entry == nil {
		return nil
	}
	out := make(map[int]string, len(entry.Pairs))
	for _, p := range entry.Pairs {
		idx := optionIndex(q.Terms(), p.Term)
		if idx == 0 || strings.TrimSpace(p.Value) == "" {
			continue
		}
		out[idx] = p.Value
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func extendedMatches(q models.EMQQuestion, entry *models.AnswerEntry) any {
	out := make([]*int, len(q.SubPrompts))
	answered := false
	if entry != nil {
		for i := range out {
			if i >= len(entry.Values) {
				break
			}
			if idx := optionIndex(q.Options, entry.Values[i]); idx > 0 && strings.TrimSpace(entry.Values[i]) != "" {
				out[i] = &idx
				answered = true
			}
		}
	}
	if !answered {
		return []*int{}
	}
	return out
}
