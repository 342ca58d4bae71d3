package answers

import (
	"encoding/json"
	"slices"
	"testing"

	"github.com/SAP-F-2025/exam-session-service/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// identity keeps ORD baselines predictable in tests.
func identity(items []string) []string { return slices.Clone(items) }

func intPtr(i int) *int { return &i }

func sampleQuestions() []models.Question {
	return []models.Question{
		models.MSAQuestion{QuestionBase: models.QuestionBase{ID: 1, Prompt: "Capital of France?", Options: []string{"Paris", "Rome", "Berlin"}}},
		models.MMAQuestion{QuestionBase: models.QuestionBase{ID: 2, Options: []string{"2", "3", "4", "5"}}},
		models.TOFQuestion{QuestionBase: models.QuestionBase{ID: 3, Options: []string{"True", "False"}}},
		models.SAQQuestion{QuestionBase: models.QuestionBase{ID: 4}},
		models.FIBQuestion{QuestionBase: models.QuestionBase{ID: 5, Options: []string{"2"}}, Blanks: 2},
		models.MTFQuestion{QuestionBase: models.QuestionBase{ID: 6, Options: []string{"X", "Y", "1", "2"}}},
		models.ORDQuestion{QuestionBase: models.QuestionBase{ID: 7, Options: []string{"A", "B", "C"}}},
		models.EMQQuestion{
			QuestionBase: models.QuestionBase{ID: 8, Prompt: "Match the drug", Options: []string{"Aspirin", "Insulin", "Warfarin"}},
			SubPrompts:   []string{"Diabetes", "Clotting", "Headache"},
		},
	}
}

func newTestMachine() *Machine {
	return NewMachine(sampleQuestions(), WithShuffler(identity))
}

func TestMachine_InitialState(t *testing.T) {
	m := newTestMachine()

	assert.Equal(t, 0, m.AnsweredCount())
	assert.Equal(t, 10, m.TotalUnits(), "EMQ with three sub-questions counts three units")
	assert.Equal(t, 10, m.SkippedCount())

	entry, ok := m.Entry(7)
	require.True(t, ok, "ORD entry exists from load time")
	assert.Equal(t, []string{"A", "B", "C"}, entry.Values)

	_, ok = m.Entry(1)
	assert.False(t, ok)
}

func TestMachine_OrderingRoundTrip(t *testing.T) {
	m := newTestMachine()
	before := m.AnsweredCount()

	require.NoError(t, m.MoveItem(7, 0, 2))
	entry, _ := m.Entry(7)
	assert.Equal(t, []string{"B", "C", "A"}, entry.Values)
	assert.Equal(t, before+1, m.AnsweredCount())

	require.NoError(t, m.MoveItem(7, 2, 0))
	entry, _ = m.Entry(7)
	assert.Equal(t, []string{"A", "B", "C"}, entry.Values)
	assert.Equal(t, before, m.AnsweredCount(), "returning to the initial shuffle is unanswered again")
}

func TestMachine_OrderingComparesAgainstShuffleNotDeclaredOrder(t *testing.T) {
	reverse := func(items []string) []string {
		out := slices.Clone(items)
		slices.Reverse(out)
		return out
	}
	m := NewMachine(sampleQuestions(), WithShuffler(reverse))

	assert.Equal(t, []string{"C", "B", "A"}, m.Baseline(7))

	require.NoError(t, m.SetAnswer(7, models.AnswerValue{Options: []string{"A", "B", "C"}}, nil))
	answered, _ := m.QuestionProgress(7)
	assert.Equal(t, 1, answered, "declared order differs from the shuffle so it counts")
}

func TestMachine_MoveItemOutOfRangeIsNoop(t *testing.T) {
	m := newTestMachine()

	require.NoError(t, m.MoveItem(7, 0, 3))
	require.NoError(t, m.MoveItem(7, 0, -1))
	require.NoError(t, m.MoveItem(7, 5, 0))

	entry, _ := m.Entry(7)
	assert.Equal(t, []string{"A", "B", "C"}, entry.Values)
}

func TestMachine_MoveItemRejectsOtherTypes(t *testing.T) {
	m := newTestMachine()
	require.NoError(t, m.SetAnswer(2, models.AnswerValue{Options: []string{"2", "3"}}, nil))

	err := m.MoveItem(2, 0, 1)
	assert.ErrorIs(t, err, ErrMoveNotSupported)
}

func TestMachine_MatchPairsAreKeyedByTerm(t *testing.T) {
	m := newTestMachine()

	require.NoError(t, m.SetAnswer(6, models.AnswerValue{Pair: &models.MatchPair{Term: "X", Value: "1"}}, nil))
	require.NoError(t, m.SetAnswer(6, models.AnswerValue{Pair: &models.MatchPair{Term: "Y", Value: "1"}}, nil))
	require.NoError(t, m.SetAnswer(6, models.AnswerValue{Pair: &models.MatchPair{Term: "X", Value: "2"}}, nil))

	entry, _ := m.Entry(6)
	assert.Equal(t, []models.MatchPair{{Term: "X", Value: "2"}, {Term: "Y", Value: "1"}}, entry.Pairs)
}

func TestMachine_ExtendedMatchCounting(t *testing.T) {
	m := newTestMachine()

	require.NoError(t, m.SetAnswer(8, models.AnswerValue{Text: models.StringPtr("Warfarin")}, intPtr(1)))

	answered, total := m.QuestionProgress(8)
	assert.Equal(t, 1, answered)
	assert.Equal(t, 3, total)
	assert.Equal(t, 1, m.AnsweredCount())

	entry, _ := m.Entry(8)
	assert.Equal(t, []string{"", "Warfarin"}, entry.Values)

	err := m.SetAnswer(8, models.AnswerValue{Text: models.StringPtr("Aspirin")}, intPtr(3))
	assert.ErrorIs(t, err, ErrInvalidSubIndex)
}

func TestMachine_ClearAnswer(t *testing.T) {
	m := newTestMachine()

	require.NoError(t, m.ClearAnswer(1), "clearing an unanswered question is fine")

	require.NoError(t, m.SetAnswer(1, models.AnswerValue{Options: []string{"Paris"}}, nil))
	require.NoError(t, m.MoveItem(7, 0, 1))
	require.NoError(t, m.SetAnswer(6, models.AnswerValue{Pair: &models.MatchPair{Term: "X", Value: "1"}}, nil))
	require.NoError(t, m.SetAnswer(4, models.AnswerValue{Text: models.StringPtr("Paris")}, nil))
	assert.Equal(t, 4, m.AnsweredCount())

	for _, id := range []int{1, 4, 6, 7} {
		require.NoError(t, m.ClearAnswer(id))
	}
	assert.Equal(t, 0, m.AnsweredCount())

	entry, _ := m.Entry(7)
	assert.Equal(t, []string{"A", "B", "C"}, entry.Values)
	entry, _ = m.Entry(6)
	assert.Empty(t, entry.Pairs)
	assert.NotNil(t, entry.Pairs)
	entry, _ = m.Entry(4)
	assert.Nil(t, entry.Text)
}

func TestMachine_UnknownQuestion(t *testing.T) {
	m := newTestMachine()

	assert.ErrorIs(t, m.SetAnswer(99, models.AnswerValue{}, nil), ErrQuestionNotFound)
	assert.ErrorIs(t, m.ClearAnswer(99), ErrQuestionNotFound)
	assert.ErrorIs(t, m.MarkForReview(99, true), ErrQuestionNotFound)
}

func TestMachine_FillInBlanksNeedsEveryBlank(t *testing.T) {
	m := newTestMachine()

	require.NoError(t, m.SetAnswer(5, models.AnswerValue{Text: models.StringPtr("H2O")}, intPtr(0)))
	answered, _ := m.QuestionProgress(5)
	assert.Equal(t, 0, answered)

	require.NoError(t, m.SetAnswer(5, models.AnswerValue{Text: models.StringPtr("CO2")}, intPtr(1)))
	answered, _ = m.QuestionProgress(5)
	assert.Equal(t, 1, answered)
}

func TestMachine_ShortAnswerEmptyTextIsNotAnswered(t *testing.T) {
	m := newTestMachine()

	require.NoError(t, m.SetAnswer(4, models.AnswerValue{Text: models.StringPtr("")}, nil))
	entry, ok := m.Entry(4)
	require.True(t, ok)
	require.NotNil(t, entry.Text)
	assert.Equal(t, 0, m.AnsweredCount())
}

func TestMachine_NavigationAndReview(t *testing.T) {
	m := newTestMachine()

	require.NoError(t, m.Navigate(7, 2))
	require.NoError(t, m.Navigate(3, 0))
	index, sub := m.Position()
	assert.Equal(t, 3, index)
	assert.Equal(t, 0, sub)

	assert.ErrorIs(t, m.Navigate(8, 0), ErrInvalidNavigation)
	assert.ErrorIs(t, m.Navigate(1, 1), ErrInvalidSubIndex)

	require.NoError(t, m.MarkForReview(2, true))
	assert.True(t, m.IsMarkedForReview(2))
	require.NoError(t, m.MarkForReview(2, false))
	assert.False(t, m.IsMarkedForReview(2))

	snap := m.Snapshot("s-1", 30)
	assert.Equal(t, []int{0, 3, 7}, snap.Visited)
}

func TestMachine_SavedAnswersSeedState(t *testing.T) {
	saved := map[int]models.AnswerEntry{
		1: {Type: models.TypeMSA, Values: []string{"Rome"}},
		2: {Type: models.TypeSAQ, Text: models.StringPtr("wrong type")},
	}
	m := NewMachine(sampleQuestions(), WithShuffler(identity), WithSavedAnswers(saved))

	entry, ok := m.Entry(1)
	require.True(t, ok)
	assert.Equal(t, []string{"Rome"}, entry.Values)

	_, ok = m.Entry(2)
	assert.False(t, ok, "mismatched type is dropped")
}

func TestMachine_SnapshotRoundTrip(t *testing.T) {
	m := newTestMachine()
	require.NoError(t, m.SetAnswer(1, models.AnswerValue{Options: []string{"Paris"}}, nil))
	require.NoError(t, m.SetAnswer(4, models.AnswerValue{Text: models.StringPtr("")}, nil))
	require.NoError(t, m.SetAnswer(6, models.AnswerValue{Pair: &models.MatchPair{Term: "Y", Value: "2"}}, nil))
	require.NoError(t, m.MoveItem(7, 2, 0))
	require.NoError(t, m.SetAnswer(8, models.AnswerValue{Text: models.StringPtr("Insulin")}, intPtr(0)))
	require.NoError(t, m.MarkForReview(3, true))
	require.NoError(t, m.Navigate(5, 0))

	before, err := json.Marshal(m.Snapshot("s-1", 420))
	require.NoError(t, err)

	var decoded models.Snapshot
	require.NoError(t, json.Unmarshal(before, &decoded))

	fresh := NewMachine(sampleQuestions(), WithShuffler(RandomShuffle))
	fresh.Restore(decoded)

	after, err := json.Marshal(fresh.Snapshot("s-1", decoded.TimeLeft))
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
	assert.Equal(t, m.AnsweredCount(), fresh.AnsweredCount())
}

func TestMachine_RestoreRejectsInconsistentSnapshot(t *testing.T) {
	m := newTestMachine()
	m.Restore(models.Snapshot{
		Answers: map[int]models.AnswerEntry{
			1: {Type: models.TypeSAQ, Text: models.StringPtr("Paris")},
			4: {Type: models.TypeSAQ, Text: models.StringPtr("kept")},
		},
		CurrentQuestionIndex: 7,
		CurrentSubIndex:      5,
	})

	_, ok := m.Entry(1)
	assert.False(t, ok, "entry typed for another question kind")
	entry, ok := m.Entry(4)
	require.True(t, ok)
	assert.Equal(t, "kept", *entry.Text)

	index, sub := m.Position()
	assert.Equal(t, 7, index)
	assert.Equal(t, 0, sub)

	m.Restore(models.Snapshot{CurrentQuestionIndex: 7, CurrentSubIndex: -2})
	_, sub = m.Position()
	assert.Equal(t, 0, sub)

	m.Restore(models.Snapshot{CurrentQuestionIndex: 7, CurrentSubIndex: 2})
	_, sub = m.Position()
	assert.Equal(t, 2, sub)
}
