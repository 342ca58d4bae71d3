package answers

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/SAP-F-2025/exam-session-service/internal/models"
)

var (
	ErrQuestionNotFound  = errors.New("question not found")
	ErrInvalidAnswer     = errors.New("answer shape does not match question type")
	ErrInvalidSubIndex   = errors.New("sub-question index out of range")
	ErrMoveNotSupported  = errors.New("only ordering questions can be reordered")
	ErrInvalidNavigation = errors.New("question index out of range")
)

type ActionKind int

const (
	ActionSet ActionKind = iota
	ActionClear
	ActionMove
)

// Action is one user interaction against a single question.
type Action struct {
	Kind       ActionKind
	QuestionID int
	Value      models.AnswerValue
	SubIndex   *int
	From, To   int
}

func SetAction(questionID int, value models.AnswerValue, subIndex *int) Action {
	return Action{Kind: ActionSet, QuestionID: questionID, Value: value, SubIndex: subIndex}
}

func ClearAction(questionID int) Action {
	return Action{Kind: ActionClear, QuestionID: questionID}
}

func MoveAction(questionID, from, to int) Action {
	return Action{Kind: ActionMove, QuestionID: questionID, From: from, To: to}
}

// Reduce returns the entry that results from applying action to entry. It
// never mutates its inputs. baseline is the initial shuffle of an ORD
// question and is ignored for every other type.
func Reduce(q models.Question, entry models.AnswerEntry, action Action, baseline []string) (models.AnswerEntry, error) {
	switch action.Kind {
	case ActionClear:
		return Empty(q, baseline), nil
	case ActionMove:
		if _, ok := q.(models.ORDQuestion); !ok {
			return entry, ErrMoveNotSupported
		}
		return reduceMove(entry, action.From, action.To), nil
	case ActionSet:
	default:
		return entry, fmt.Errorf("unknown action kind %d", action.Kind)
	}

	v := action.Value
	switch q := q.(type) {
	case models.MSAQuestion:
		return reduceSingleChoice(q.Type(), v)
	case models.TOFQuestion:
		return reduceSingleChoice(q.Type(), v)
	case models.MMAQuestion:
		return reduceMultiChoice(v)
	case models.SAQQuestion:
		return reduceShortAnswer(v)
	case models.FIBQuestion:
		return reduceBlanks(q, entry, v, action.SubIndex)
	case models.MTFQuestion:
		return reduceMatches(entry, v)
	case models.ORDQuestion:
		return reduceOrder(entry, v, baseline)
	case models.EMQQuestion:
		return reduceExtendedMatch(q, entry, v, action.SubIndex)
	default:
		return entry, fmt.Errorf("%w: %T", ErrInvalidAnswer, q)
	}
}

// Empty is the unanswered entry for q.
func Empty(q models.Question, baseline []string) models.AnswerEntry {
	entry := models.AnswerEntry{Type: q.Type()}
	switch q.(type) {
	case models.SAQQuestion:
	case models.MTFQuestion:
		entry.Pairs = []models.MatchPair{}
	case models.ORDQuestion:
		entry.Values = slices.Clone(baseline)
		if entry.Values == nil {
			entry.Values = []string{}
		}
	default:
		entry.Values = []string{}
	}
	return entry
}

func reduceSingleChoice(t models.QuestionType, v models.AnswerValue) (models.AnswerEntry, error) {
	if len(v.Options) > 1 {
		return models.AnswerEntry{}, fmt.Errorf("%w: %s accepts one option, got %d", ErrInvalidAnswer, t, len(v.Options))
	}
	return models.AnswerEntry{Type: t, Values: nonNil(slices.Clone(v.Options))}, nil
}

func reduceMultiChoice(v models.AnswerValue) (models.AnswerEntry, error) {
	selected := make([]string, 0, len(v.Options))
	for _, option := range v.Options {
		if !slices.Contains(selected, option) {
			selected = append(selected, option)
		}
	}
	return models.AnswerEntry{Type: models.TypeMMA, Values: selected}, nil
}

func reduceShortAnswer(v models.AnswerValue) (models.AnswerEntry, error) {
	if v.Text == nil {
		return models.AnswerEntry{}, fmt.Errorf("%w: SAQ requires text", ErrInvalidAnswer)
	}
	return models.AnswerEntry{Type: models.TypeSAQ, Text: models.StringPtr(*v.Text)}, nil
}

func reduceBlanks(q models.FIBQuestion, entry models.AnswerEntry, v models.AnswerValue, subIndex *int) (models.AnswerEntry, error) {
	if subIndex == nil {
		return models.AnswerEntry{Type: models.TypeFIB, Values: nonNil(slices.Clone(v.Options))}, nil
	}

	if v.Text == nil {
		return entry, fmt.Errorf("%w: blank %d requires text", ErrInvalidAnswer, *subIndex)
	}
	if *subIndex < 0 || *subIndex >= q.Blanks {
		return entry, fmt.Errorf("%w: blank %d of %d", ErrInvalidSubIndex, *subIndex, q.Blanks)
	}
	blanks := padTo(entry.Values, *subIndex+1)
	blanks[*subIndex] = *v.Text
	return models.AnswerEntry{Type: models.TypeFIB, Values: blanks}, nil
}

// reduceMatches keys MTF pairs by term: setting a term that already has a
// pair replaces that pair where it stands.
func reduceMatches(entry models.AnswerEntry, v models.AnswerValue) (models.AnswerEntry, error) {
	switch {
	case v.Pair != nil:
		return models.AnswerEntry{Type: models.TypeMTF, Pairs: upsertPair(entry.Pairs, *v.Pair)}, nil
	case v.Pairs != nil:
		pairs := make([]models.MatchPair, 0, len(v.Pairs))
		for _, p := range v.Pairs {
			pairs = upsertPair(pairs, p)
		}
		return models.AnswerEntry{Type: models.TypeMTF, Pairs: pairs}, nil
	default:
		return entry, fmt.Errorf("%w: MTF requires a pair or a list of pairs", ErrInvalidAnswer)
	}
}

func upsertPair(pairs []models.MatchPair, p models.MatchPair) []models.MatchPair {
	out := slices.Clone(pairs)
	if out == nil {
		out = []models.MatchPair{}
	}
	for i := range out {
		if out[i].Term == p.Term {
			out[i].Value = p.Value
			return out
		}
	}
	return append(out, p)
}

// reduceOrder accepts a full reordering as long as it is a permutation of
// the items the question was loaded with.
func reduceOrder(entry models.AnswerEntry, v models.AnswerValue, baseline []string) (models.AnswerEntry, error) {
	if !samePermutation(v.Options, baseline) {
		return entry, fmt.Errorf("%w: ORD order must be a permutation of its options", ErrInvalidAnswer)
	}
	return models.AnswerEntry{Type: models.TypeORD, Values: slices.Clone(v.Options)}, nil
}

func reduceMove(entry models.AnswerEntry, from, to int) models.AnswerEntry {
	n := len(entry.Values)
	if from < 0 || from >= n || to < 0 || to >= n {
		return entry
	}
	items := slices.Clone(entry.Values)
	item := items[from]
	items = slices.Delete(items, from, from+1)
	items = slices.Insert(items, to, item)
	return models.AnswerEntry{Type: models.TypeORD, Values: items}
}

func reduceExtendedMatch(q models.EMQQuestion, entry models.AnswerEntry, v models.AnswerValue, subIndex *int) (models.AnswerEntry, error) {
	subs := len(q.SubPrompts)
	if subIndex == nil {
		values := padTo(v.Options, len(v.Options))
		if len(values) > subs {
			values = values[:subs]
		}
		return models.AnswerEntry{Type: models.TypeEMQ, Values: values}, nil
	}

	if *subIndex < 0 || *subIndex >= subs {
		return entry, fmt.Errorf("%w: sub-question %d of %d", ErrInvalidSubIndex, *subIndex, subs)
	}
	selection := ""
	switch {
	case v.Text != nil:
		selection = *v.Text
	case len(v.Options) == 1:
		selection = v.Options[0]
	case len(v.Options) > 1:
		return entry, fmt.Errorf("%w: EMQ sub-question accepts one option", ErrInvalidAnswer)
	}
	values := padTo(entry.Values, *subIndex+1)
	values[*subIndex] = selection
	return models.AnswerEntry{Type: models.TypeEMQ, Values: values}, nil
}

// padTo copies values into a slice of at least n elements.
func padTo(values []string, n int) []string {
	out := make([]string, max(n, len(values)))
	copy(out, values)
	return out
}

func samePermutation(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	counts := make(map[string]int, len(b))
	for _, item := range b {
		counts[item]++
	}
	for _, item := range a {
		if counts[item] == 0 {
			return false
		}
		counts[item]--
	}
	return true
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
