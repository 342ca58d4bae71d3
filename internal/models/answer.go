package models

import (
	"encoding/json"
	"fmt"
)

// AnswerEntry is the mutable answer state for one question. Which field is
// meaningful depends on Type:
//
//	MSA, MMA, TOF  Values holds the selected option strings
//	FIB            Values holds one string per blank position
//	ORD            Values holds the options in their current order
//	EMQ            Values holds one selection per sub-question, "" if unanswered
//	SAQ            Text holds the typed answer, nil if unanswered
//	MTF            Pairs holds the [term, value] matches
type AnswerEntry struct {
	Type   QuestionType `json:"type"`
	Values []string     `json:"values"`
	Text   *string      `json:"text,omitempty"`
	Pairs  []MatchPair  `json:"pairs"`
}

// Clone returns a deep copy so callers can never alias machine state.
func (e AnswerEntry) Clone() AnswerEntry {
	out := AnswerEntry{Type: e.Type}
	if e.Values != nil {
		out.Values = append(make([]string, 0, len(e.Values)), e.Values...)
	}
	if e.Pairs != nil {
		out.Pairs = append(make([]MatchPair, 0, len(e.Pairs)), e.Pairs...)
	}
	if e.Text != nil {
		text := *e.Text
		out.Text = &text
	}
	return out
}

// MatchPair is one MTF match. It travels as a two-element JSON array.
type MatchPair struct {
	Term  string
	Value string
}

func (p MatchPair) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{p.Term, p.Value})
}

func (p *MatchPair) UnmarshalJSON(data []byte) error {
	var raw []string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("match pair: %w", err)
	}
	if len(raw) != 2 {
		return fmt.Errorf("match pair: expected 2 elements, got %d", len(raw))
	}
	p.Term, p.Value = raw[0], raw[1]
	return nil
}

// AnswerValue is the caller-prepared input of a SetAnswer call.
type AnswerValue struct {
	Options []string    `json:"options,omitempty"` // MSA, MMA, TOF selection; FIB blanks; ORD order; EMQ all sub-answers
	Text    *string     `json:"text,omitempty"`    // SAQ answer; EMQ sub-answer when a sub index is given
	Pair    *MatchPair  `json:"pair,omitempty"`    // MTF keyed replace
	Pairs   []MatchPair `json:"pairs,omitempty"`   // MTF whole replace
}

func StringPtr(s string) *string { return &s }
