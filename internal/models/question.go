package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

type QuestionType string

const (
	TypeMSA QuestionType = "MSA" // multiple choice, single answer
	TypeMMA QuestionType = "MMA" // multiple choice, multiple answers
	TypeTOF QuestionType = "TOF" // true or false
	TypeSAQ QuestionType = "SAQ" // short answer
	TypeFIB QuestionType = "FIB" // fill in the blanks
	TypeMTF QuestionType = "MTF" // match the following
	TypeORD QuestionType = "ORD" // ordering
	TypeEMQ QuestionType = "EMQ" // extended matching
)

// QuestionTypes lists every supported type in display order.
var QuestionTypes = []QuestionType{
	TypeMSA, TypeMMA, TypeTOF, TypeSAQ, TypeFIB, TypeMTF, TypeORD, TypeEMQ,
}

func (t QuestionType) Valid() bool {
	for _, known := range QuestionTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Question is a sealed sum type. Only the eight concrete question kinds
// declared in this file implement it, so a type switch over them is the
// complete set of cases.
type Question interface {
	Meta() QuestionBase
	Type() QuestionType
	isQuestion()
}

// QuestionBase carries the fields shared by every question kind.
type QuestionBase struct {
	ID      int      `json:"id"`
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
}

func (b QuestionBase) Meta() QuestionBase { return b }
func (QuestionBase) isQuestion()          {}

type MSAQuestion struct{ QuestionBase }

type MMAQuestion struct{ QuestionBase }

type TOFQuestion struct{ QuestionBase }

type SAQQuestion struct{ QuestionBase }

// FIBQuestion renders Blanks inputs. The count travels as options[0].
type FIBQuestion struct {
	QuestionBase
	Blanks int `json:"blanks"`
}

// MTFQuestion options hold the terms followed by their definitions.
type MTFQuestion struct{ QuestionBase }

type ORDQuestion struct{ QuestionBase }

// EMQQuestion shares Options across every sub-question. Prompt holds the stem.
type EMQQuestion struct {
	QuestionBase
	SubPrompts []string `json:"sub_prompts"`
}

func (MSAQuestion) Type() QuestionType { return TypeMSA }
func (MMAQuestion) Type() QuestionType { return TypeMMA }
func (TOFQuestion) Type() QuestionType { return TypeTOF }
func (SAQQuestion) Type() QuestionType { return TypeSAQ }
func (FIBQuestion) Type() QuestionType { return TypeFIB }
func (MTFQuestion) Type() QuestionType { return TypeMTF }
func (ORDQuestion) Type() QuestionType { return TypeORD }
func (EMQQuestion) Type() QuestionType { return TypeEMQ }

// Terms returns the left-hand half of the option list. Only a term can be
// the key of a match.
func (q MTFQuestion) Terms() []string {
	return q.Options[:(len(q.Options)+1)/2]
}

// Prompt accepts either a JSON string or a JSON array of strings.
type Prompt []string

func (p *Prompt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*p = nil
		return nil
	}
	if data[0] == '[' {
		var parts []string
		if err := json.Unmarshal(data, &parts); err != nil {
			return fmt.Errorf("prompt: %w", err)
		}
		*p = parts
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err != nil {
		return fmt.Errorf("prompt: %w", err)
	}
	*p = Prompt{single}
	return nil
}

func (p Prompt) MarshalJSON() ([]byte, error) {
	if len(p) == 1 {
		return json.Marshal(p[0])
	}
	return json.Marshal([]string(p))
}

// QuestionData is a question as delivered by the question endpoint.
type QuestionData struct {
	ID      int          `json:"id" validate:"required,gt=0"`
	Type    QuestionType `json:"type" validate:"required,question_type"`
	Prompt  Prompt       `json:"question"`
	Options []string     `json:"options"`
}

// Decode converts the wire form into its typed question.
func (d QuestionData) Decode() (Question, error) {
	base := QuestionBase{
		ID:      d.ID,
		Options: append([]string(nil), d.Options...),
	}
	if len(d.Prompt) > 0 {
		base.Prompt = d.Prompt[0]
	}

	switch d.Type {
	case TypeMSA:
		return MSAQuestion{base}, nil
	case TypeMMA:
		return MMAQuestion{base}, nil
	case TypeTOF:
		return TOFQuestion{base}, nil
	case TypeSAQ:
		return SAQQuestion{base}, nil
	case TypeFIB:
		return FIBQuestion{QuestionBase: base, Blanks: blankCount(d.Options)}, nil
	case TypeMTF:
		return MTFQuestion{base}, nil
	case TypeORD:
		return ORDQuestion{base}, nil
	case TypeEMQ:
		q := EMQQuestion{QuestionBase: base}
		if len(d.Prompt) > 1 {
			q.SubPrompts = append([]string(nil), d.Prompt[1:]...)
		}
		return q, nil
	default:
		return nil, fmt.Errorf("question %d: unsupported type %q", d.ID, d.Type)
	}
}

func blankCount(options []string) int {
	if len(options) == 0 {
		return 1
	}
	n, err := strconv.Atoi(strings.TrimSpace(options[0]))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// QuestionSet is the question endpoint response.
type QuestionSet struct {
	Questions    []QuestionData `json:"questions" validate:"required,min=1,dive"`
	Duration     int            `json:"duration" validate:"gte=0"` // minutes
	SavedAnswers []SavedAnswer  `json:"saved_answers,omitempty"`
}

// Decode converts every question of the set, stopping at the first failure.
func (s *QuestionSet) Decode() ([]Question, error) {
	questions := make([]Question, 0, len(s.Questions))
	seen := make(map[int]struct{}, len(s.Questions))
	for _, data := range s.Questions {
		if _, dup := seen[data.ID]; dup {
			return nil, fmt.Errorf("question %d: duplicate id", data.ID)
		}
		seen[data.ID] = struct{}{}

		q, err := data.Decode()
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, nil
}
