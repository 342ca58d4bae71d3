package answers

import (
	"slices"

	"github.com/SAP-F-2025/exam-session-service/internal/models"
)

// Progress summarises a session in assessable units. An EMQ question counts
// once per sub-question, every other question counts once.
type Progress struct {
	Answered int `json:"answered"`
	Skipped  int `json:"skipped"`
	Total    int `json:"total"`
	Percent  int `json:"percent"`
}

// Units is the number of assessable units q contributes.
func Units(q models.Question) int {
	if emq, ok := q.(models.EMQQuestion); ok {
		return len(emq.SubPrompts)
	}
	return 1
}

// AnsweredUnits is how many of q's units entry answers. A nil entry
// answers nothing.
func AnsweredUnits(q models.Question, entry *models.AnswerEntry, baseline []string) int {
	if entry == nil {
		return 0
	}

	switch q := q.(type) {
	case models.MSAQuestion, models.MMAQuestion, models.TOFQuestion:
		return boolUnit(len(entry.Values) > 0)
	case models.SAQQuestion:
		return boolUnit(entry.Text != nil && !isBlank(*entry.Text))
	case models.FIBQuestion:
		filled := 0
		for _, blank := range entry.Values {
			if !isBlank(blank) {
				filled++
			}
		}
		return boolUnit(filled > 0 && filled >= q.Blanks)
	case models.MTFQuestion:
		for _, p := range entry.Pairs {
			if slices.Contains(q.Terms(), p.Term) && !isBlank(p.Value) {
				return 1
			}
		}
		return 0
	case models.ORDQuestion:
		return boolUnit(len(entry.Values) > 0 && !SequenceEqual(entry.Values, baseline))
	case models.EMQQuestion:
		answered := 0
		for i, selection := range entry.Values {
			if i < len(q.SubPrompts) && !isBlank(selection) {
				answered++
			}
		}
		return answered
	default:
		return 0
	}
}

func boolUnit(b bool) int {
	if b {
		return 1
	}
	return 0
}
