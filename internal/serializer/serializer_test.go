package serializer

import (
	"encoding/json"
	"slices"
	"testing"

	"github.com/SAP-F-2025/exam-session-service/internal/answers"
	"github.com/SAP-F-2025/exam-session-service/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(i int) *int { return &i }

var (
	msa = models.MSAQuestion{QuestionBase: models.QuestionBase{ID: 1, Options: []string{"Paris", "Rome", "Berlin"}}}
	mma = models.MMAQuestion{QuestionBase: models.QuestionBase{ID: 2, Options: []string{"2", "3", "4", "5"}}}
	tof = models.TOFQuestion{QuestionBase: models.QuestionBase{ID: 3, Options: []string{"True", "False"}}}
	saq = models.SAQQuestion{QuestionBase: models.QuestionBase{ID: 4}}
	fib = models.FIBQuestion{QuestionBase: models.QuestionBase{ID: 5, Options: []string{"2"}}, Blanks: 2}
	mtf = models.MTFQuestion{QuestionBase: models.QuestionBase{ID: 6, Options: []string{"X", "Y", "1", "2"}}}
	ord = models.ORDQuestion{QuestionBase: models.QuestionBase{ID: 7, Options: []string{"A", "B", "C"}}}
	emq = models.EMQQuestion{
		QuestionBase: models.QuestionBase{ID: 8, Options: []string{"Aspirin", "Insulin", "Warfarin"}},
		SubPrompts:   []string{"Diabetes", "Clotting", "Headache"},
	}
	allQuestions = []models.Question{msa, mma, tof, saq, fib, mtf, ord, emq}
)

func TestAnswer_UnansweredSentinels(t *testing.T) {
	want := map[models.QuestionType]any{
		models.TypeMSA: nil,
		models.TypeMMA: []int{},
		models.TypeTOF: nil,
		models.TypeSAQ: nil,
		models.TypeFIB: nil,
		models.TypeMTF: nil,
		models.TypeORD: nil,
		models.TypeEMQ: []*int{},
	}

	for _, q := range allQuestions {
		t.Run(string(q.Type()), func(t *testing.T) {
			assert.NotPanics(t, func() {
				assert.Equal(t, want[q.Type()], Answer(q, nil, q.Meta().Options))
			})
			empty := answers.Empty(q, q.Meta().Options)
			assert.Equal(t, want[q.Type()], Answer(q, &empty, q.Meta().Options))
		})
	}
}

func TestAnswer_ByType(t *testing.T) {
	tests := []struct {
		name     string
		q        models.Question
		entry    models.AnswerEntry
		baseline []string
		want     any
	}{
		{"MSA index", msa, models.AnswerEntry{Values: []string{"Rome"}}, nil, 2},
		{"MSA unknown option", msa, models.AnswerEntry{Values: []string{"Madrid"}}, nil, 0},
		{"MMA indices", mma, models.AnswerEntry{Values: []string{"5", "2", "7"}}, nil, []int{4, 1}},
		{"TOF true", tof, models.AnswerEntry{Values: []string{"True"}}, nil, 1},
		{"TOF false", tof, models.AnswerEntry{Values: []string{"False"}}, nil, 2},
		{"TOF literal without options", models.TOFQuestion{}, models.AnswerEntry{Values: []string{"false"}}, nil, 2},
		{"SAQ raw", saq, models.AnswerEntry{Text: models.StringPtr(" Paris ")}, nil, " Paris "},
		{"SAQ empty string is kept", saq, models.AnswerEntry{Text: models.StringPtr("")}, nil, ""},
		{"FIB padded per blank", fib, models.AnswerEntry{Values: []string{"H2O"}}, nil, []string{"H2O", ""}},
		{"MTF by term index", mtf, models.AnswerEntry{Pairs: []models.MatchPair{{Term: "Y", Value: "1"}, {Term: "Z", Value: "2"}}}, nil, map[int]string{2: "1"}},
		{"MTF without valid pairs", mtf, models.AnswerEntry{Pairs: []models.MatchPair{{Term: "Z", Value: "2"}}}, nil, nil},
		{"ORD changed", ord, models.AnswerEntry{Values: []string{"B", "C", "A"}}, []string{"A", "B", "C"}, []string{"B", "C", "A"}},
		{"ORD equal to shuffle", ord, models.AnswerEntry{Values: []string{"A", "B", "C"}}, []string{"A", "B", "C"}, nil},
		{"ORD equal ignoring markup", ord, models.AnswerEntry{Values: []string{"<b>A</b>", "B", "C"}}, []string{"A", "B", "C"}, nil},
		{"EMQ positional", emq, models.AnswerEntry{Values: []string{"", "Warfarin"}}, nil, []*int{nil, intPtr(3), nil}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Answer(tt.q, &tt.entry, tt.baseline))
		})
	}
}

func TestAnswer_DoesNotMutate(t *testing.T) {
	entry := models.AnswerEntry{Type: models.TypeORD, Values: []string{"C", "A", "B"}}
	baseline := []string{"A", "B", "C"}

	first := Answer(ord, &entry, baseline)
	second := Answer(ord, &entry, baseline)

	assert.Equal(t, first, second)
	assert.Equal(t, []string{"C", "A", "B"}, entry.Values)
	assert.Equal(t, []string{"A", "B", "C"}, baseline)
	assert.Equal(t, []string{"A", "B", "C"}, ord.Options)

	out := first.([]string)
	out[0] = "mutated"
	assert.Equal(t, "C", entry.Values[0], "serialized answer must not alias state")
}

func TestBuildPayload_FollowsMachineState(t *testing.T) {
	m := answers.NewMachine(allQuestions, answers.WithShuffler(func(items []string) []string { return slices.Clone(items) }))

	require.NoError(t, m.SetAnswer(1, models.AnswerValue{Options: []string{"Berlin"}}, nil))
	require.NoError(t, m.MoveItem(7, 0, 2))

	payload := BuildPayload("exam-42", m)
	assert.Equal(t, "exam-42", payload.ExamID)
	require.Len(t, payload.Answers, len(allQuestions))
	assert.Equal(t, models.SubmissionAnswer{ID: 1, Type: models.TypeMSA, Answer: 3}, payload.Answers[0])
	assert.Equal(t, []string{"B", "C", "A"}, payload.Answers[6].Answer)

	require.NoError(t, m.MoveItem(7, 2, 0))
	payload = BuildPayload("exam-42", m)
	assert.Nil(t, payload.Answers[6].Answer)

	body, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"examId":"exam-42"`)
	assert.Contains(t, string(body), `{"id":7,"type":"ORD","answer":null}`)
}

func TestAutosaveEntries_SkipsUntouchedOrdering(t *testing.T) {
	m := answers.NewMachine(allQuestions, answers.WithShuffler(func(items []string) []string { return slices.Clone(items) }))
	require.NoError(t, m.SetAnswer(2, models.AnswerValue{Options: []string{"3"}}, nil))

	got := AutosaveEntries(m, 2, 7)
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].ID)
	assert.Equal(t, []int{2}, got[0].Answer)

	require.NoError(t, m.MoveItem(7, 1, 0))
	got = AutosaveEntries(m, 7)
	require.Len(t, got, 1)
	assert.Equal(t, []string{"B", "A", "C"}, got[0].Answer)
}

func TestRestore_InvertsAnswer(t *testing.T) {
	entries := map[int]models.AnswerEntry{
		1: {Type: models.TypeMSA, Values: []string{"Rome"}},
		2: {Type: models.TypeMMA, Values: []string{"3", "5"}},
		3: {Type: models.TypeTOF, Values: []string{"False"}},
		4: {Type: models.TypeSAQ, Text: models.StringPtr("Paris")},
		5: {Type: models.TypeFIB, Values: []string{"H2O", "CO2"}},
		6: {Type: models.TypeMTF, Pairs: []models.MatchPair{{Term: "X", Value: "2"}, {Term: "Y", Value: "1"}}},
		7: {Type: models.TypeORD, Values: []string{"C", "B", "A"}},
		8: {Type: models.TypeEMQ, Values: []string{"Insulin", "", "Aspirin"}},
	}
	baseline := []string{"A", "B", "C"}

	for _, q := range allQuestions {
		t.Run(string(q.Type()), func(t *testing.T) {
			entry := entries[q.Meta().ID]
			raw, err := json.Marshal(Answer(q, &entry, baseline))
			require.NoError(t, err)

			restored, present, err := Restore(q, raw)
			require.NoError(t, err)
			require.True(t, present)
			assert.Equal(t, entry, restored)
		})
	}
}

func TestRestoreAll_ReportsBadAnswers(t *testing.T) {
	saved := []models.SavedAnswer{
		{ID: 1, Type: models.TypeMSA, Answer: json.RawMessage(`2`)},
		{ID: 1, Type: models.TypeMSA, Answer: json.RawMessage(`9`)},
		{ID: 3, Type: models.TypeTOF, Answer: json.RawMessage(`null`)},
		{ID: 5, Type: models.TypeFIB, Answer: json.RawMessage(`[12, "x"]`)},
		{ID: 99, Type: models.TypeSAQ, Answer: json.RawMessage(`"orphan"`)},
	}

	entries, errs := RestoreAll(allQuestions, saved)

	assert.Len(t, errs, 2)
	for _, err := range errs {
		assert.ErrorIs(t, err, ErrInvalidSavedAnswer)
	}
	assert.Equal(t, []string{"Rome"}, entries[1].Values)
	assert.Equal(t, []string{"12", "x"}, entries[5].Values)
	_, ok := entries[3]
	assert.False(t, ok)
}

func TestAnswer_MatchKeyedByDefinitionIsIgnored(t *testing.T) {
	entry := models.AnswerEntry{Type: models.TypeMTF, Pairs: []models.MatchPair{
		{Term: "1", Value: "2"},
		{Term: "Y", Value: "1"},
	}}
	assert.Equal(t, map[int]string{2: "1"}, Answer(mtf, &entry, nil))

	entry.Pairs = entry.Pairs[:1]
	assert.Nil(t, Answer(mtf, &entry, nil))
	assert.Equal(t, 0, answers.AnsweredUnits(mtf, &entry, nil))

	restored, ok, err := Restore(mtf, json.RawMessage(`{"3":"x","1":"2"}`))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []models.MatchPair{{Term: "X", Value: "2"}}, restored.Pairs)
}
