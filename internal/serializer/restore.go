package serializer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"

	"github.com/SAP-F-2025/exam-session-service/internal/models"
)

var ErrInvalidSavedAnswer = errors.New("saved answer does not fit its question")

// Restore maps a saved wire answer back onto an entry. It returns false
// when raw holds no answer at all.
func Restore(q models.Question, raw json.RawMessage) (models.AnswerEntry, bool, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return models.AnswerEntry{}, false, nil
	}

	entry := models.AnswerEntry{Type: q.Type()}
	fail := func(err error) (models.AnswerEntry, bool, error) {
		return models.AnswerEntry{}, false, fmt.Errorf("%w: question %d (%s): %v", ErrInvalidSavedAnswer, q.Meta().ID, q.Type(), err)
	}

	switch q := q.(type) {
	case models.MSAQuestion:
		var idx int
		if err := json.Unmarshal(raw, &idx); err != nil {
			return fail(err)
		}
		option, ok := optionAt(q.Options, idx)
		if !ok {
			return fail(fmt.Errorf("option %d out of range", idx))
		}
		entry.Values = []string{option}
	case models.TOFQuestion:
		var idx int
		if err := json.Unmarshal(raw, &idx); err != nil {
			return fail(err)
		}
		option, ok := optionAt(q.Options, idx)
		if !ok {
			switch idx {
			case 1:
				option = "True"
			case 2:
				option = "False"
			default:
				return fail(fmt.Errorf("option %d out of range", idx))
			}
		}
		entry.Values = []string{option}
	case models.MMAQuestion:
		var indices []int
		if err := json.Unmarshal(raw, &indices); err != nil {
			return fail(err)
		}
		entry.Values = []string{}
		for _, idx := range indices {
			if option, ok := optionAt(q.Options, idx); ok {
				entry.Values = append(entry.Values, option)
			}
		}
	case models.SAQQuestion:
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return fail(err)
		}
		entry.Text = &text
	case models.FIBQuestion:
		var values []any
		if err := json.Unmarshal(raw, &values); err != nil {
			return fail(err)
		}
		entry.Values = make([]string, len(values))
		for i, v := range values {
			entry.Values[i] = coerce(v)
		}
	case models.MTFQuestion:
		var byIndex map[string]string
		if err := json.Unmarshal(raw, &byIndex); err != nil {
			return fail(err)
		}
		resolved := make(map[int]string, len(byIndex))
		for key, value := range byIndex {
			idx, err := strconv.Atoi(key)
			if err != nil {
				return fail(err)
			}
			resolved[idx] = value
		}
		entry.Pairs = []models.MatchPair{}
		for _, idx := range slices.Sorted(maps.Keys(resolved)) {
			if term, ok := optionAt(q.Terms(), idx); ok {
				entry.Pairs = append(entry.Pairs, models.MatchPair{Term: term, Value: resolved[idx]})
			}
		}
	case models.ORDQuestion:
		if err := json.Unmarshal(raw, &entry.Values); err != nil {
			return fail(err)
		}
	case models.EMQQuestion:
		var indices []*int
		if err := json.Unmarshal(raw, &indices); err != nil {
			return fail(err)
		}
		entry.Values = make([]string, len(indices))
		for i, idx := range indices {
			if idx == nil {
				continue
			}
			if option, ok := optionAt(q.Options, *idx); ok {
				entry.Values[i] = option
			}
		}
	default:
		return fail(fmt.Errorf("unsupported question %T", q))
	}
	return entry, true, nil
}

// RestoreAll maps saved answers onto the questions they belong to. Answers
// that cannot be restored are returned as errors next to the entries that
// could.
func RestoreAll(questions []models.Question, saved []models.SavedAnswer) (map[int]models.AnswerEntry, []error) {
	byID := make(map[int]models.Question, len(questions))
	for _, q := range questions {
		byID[q.Meta().ID] = q
	}

	entries := make(map[int]models.AnswerEntry, len(saved))
	var errs []error
	for _, s := range saved {
		q, ok := byID[s.ID]
		if !ok {
			errs = append(errs, fmt.Errorf("%w: unknown question %d", ErrInvalidSavedAnswer, s.ID))
			continue
		}
		entry, present, err := Restore(q, s.Answer)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if present {
			entries[s.ID] = entry
		}
	}
	return entries, errs
}

func optionAt(options []string, idx int) (string, bool) {
	if idx < 1 || idx > len(options) {
		return "", false
	}
	return options[idx-1], true
}

func coerce(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}
