package answers

import (
	"fmt"
	"maps"
	"math/rand/v2"
	"slices"

	"github.com/SAP-F-2025/exam-session-service/internal/models"
)

// Shuffler returns a reordered copy of items. It must not modify items.
type Shuffler func(items []string) []string

// RandomShuffle is the default Shuffler.
func RandomShuffle(items []string) []string {
	out := slices.Clone(items)
	rand.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

type machineOptions struct {
	shuffle Shuffler
	saved   map[int]models.AnswerEntry
}

type Option func(*machineOptions)

func WithShuffler(s Shuffler) Option {
	return func(o *machineOptions) { o.shuffle = s }
}

// WithSavedAnswers seeds entries, typically restored from server-side
// autosaves. Entries whose type disagrees with their question are dropped.
func WithSavedAnswers(entries map[int]models.AnswerEntry) Option {
	return func(o *machineOptions) { o.saved = entries }
}

// Machine holds the answer state of one session. It is not safe for
// concurrent use; the session controller serialises access.
type Machine struct {
	questions   []models.Question
	positions   map[int]int
	entries     map[int]models.AnswerEntry
	baselines   map[int][]string
	notReviewed map[int]bool
	visited     map[int]struct{}
	current     int
	currentSub  int
}

func NewMachine(questions []models.Question, opts ...Option) *Machine {
	o := machineOptions{shuffle: RandomShuffle}
	for _, opt := range opts {
		opt(&o)
	}

	m := &Machine{
		questions:   slices.Clone(questions),
		positions:   make(map[int]int, len(questions)),
		entries:     make(map[int]models.AnswerEntry, len(questions)),
		baselines:   make(map[int][]string),
		notReviewed: make(map[int]bool),
		visited:     make(map[int]struct{}),
	}
	for i, q := range questions {
		id := q.Meta().ID
		m.positions[id] = i
		if ord, ok := q.(models.ORDQuestion); ok {
			m.baselines[id] = o.shuffle(ord.Options)
			m.entries[id] = Empty(q, m.baselines[id])
		}
	}
	for id, entry := range o.saved {
		if q, ok := m.Question(id); ok && q.Type() == entry.Type {
			m.entries[id] = entry.Clone()
		}
	}
	if len(questions) > 0 {
		m.visited[0] = struct{}{}
	}
	return m
}

func (m *Machine) Questions() []models.Question {
	return slices.Clone(m.questions)
}

func (m *Machine) Question(id int) (models.Question, bool) {
	pos, ok := m.positions[id]
	if !ok {
		return nil, false
	}
	return m.questions[pos], true
}

// Entry returns a copy of the stored entry for id.
func (m *Machine) Entry(id int) (models.AnswerEntry, bool) {
	entry, ok := m.entries[id]
	if !ok {
		return models.AnswerEntry{}, false
	}
	return entry.Clone(), true
}

// Baseline returns the initial shuffle of an ORD question, nil otherwise.
func (m *Machine) Baseline(id int) []string {
	return slices.Clone(m.baselines[id])
}

// Dispatch applies action through the reducer of its question's type.
func (m *Machine) Dispatch(action Action) error {
	q, ok := m.Question(action.QuestionID)
	if !ok {
		return fmt.Errorf("%w: %d", ErrQuestionNotFound, action.QuestionID)
	}

	current, exists := m.entries[action.QuestionID]
	if !exists {
		current = Empty(q, m.baselines[action.QuestionID])
	}
	next, err := Reduce(q, current, action, m.baselines[action.QuestionID])
	if err != nil {
		return fmt.Errorf("question %d: %w", action.QuestionID, err)
	}
	m.entries[action.QuestionID] = next
	return nil
}

func (m *Machine) SetAnswer(questionID int, value models.AnswerValue, subIndex *int) error {
	return m.Dispatch(SetAction(questionID, value, subIndex))
}

func (m *Machine) ClearAnswer(questionID int) error {
	return m.Dispatch(ClearAction(questionID))
}

func (m *Machine) MoveItem(questionID, from, to int) error {
	return m.Dispatch(MoveAction(questionID, from, to))
}

// Navigate moves to the given question and sub-question and marks the
// question as visited.
func (m *Machine) Navigate(index, subIndex int) error {
	if index < 0 || index >= len(m.questions) {
		return fmt.Errorf("%w: %d", ErrInvalidNavigation, index)
	}
	if subIndex < 0 || (subIndex > 0 && subIndex >= Units(m.questions[index])) {
		return fmt.Errorf("%w: question %d", ErrInvalidSubIndex, index)
	}
	m.current, m.currentSub = index, subIndex
	m.visited[index] = struct{}{}
	return nil
}

func (m *Machine) Position() (index, subIndex int) {
	return m.current, m.currentSub
}

// MarkForReview flags a question the user wants to come back to.
func (m *Machine) MarkForReview(questionID int, flagged bool) error {
	if _, ok := m.positions[questionID]; !ok {
		return fmt.Errorf("%w: %d", ErrQuestionNotFound, questionID)
	}
	if flagged {
		m.notReviewed[questionID] = true
	} else {
		delete(m.notReviewed, questionID)
	}
	return nil
}

func (m *Machine) IsMarkedForReview(questionID int) bool {
	return m.notReviewed[questionID]
}

// QuestionProgress returns answered and total units for one question.
func (m *Machine) QuestionProgress(id int) (answered, total int) {
	q, ok := m.Question(id)
	if !ok {
		return 0, 0
	}
	var entry *models.AnswerEntry
	if e, exists := m.entries[id]; exists {
		entry = &e
	}
	return AnsweredUnits(q, entry, m.baselines[id]), Units(q)
}

func (m *Machine) AnsweredCount() int {
	answered := 0
	for _, q := range m.questions {
		n, _ := m.QuestionProgress(q.Meta().ID)
		answered += n
	}
	return answered
}

func (m *Machine) TotalUnits() int {
	total := 0
	for _, q := range m.questions {
		total += Units(q)
	}
	return total
}

func (m *Machine) SkippedCount() int {
	return m.TotalUnits() - m.AnsweredCount()
}

func (m *Machine) Progress() Progress {
	p := Progress{Answered: m.AnsweredCount(), Total: m.TotalUnits()}
	p.Skipped = p.Total - p.Answered
	if p.Total > 0 {
		p.Percent = p.Answered * 100 / p.Total
	}
	return p
}

// Snapshot captures the full machine state. timeLeft belongs to the
// countdown and is passed through.
func (m *Machine) Snapshot(sessionID string, timeLeft int) models.Snapshot {
	answers := make(map[int]models.AnswerEntry, len(m.entries))
	for id, entry := range m.entries {
		answers[id] = entry.Clone()
	}
	shuffles := make(map[int][]string, len(m.baselines))
	for id, baseline := range m.baselines {
		shuffles[id] = slices.Clone(baseline)
	}
	visited := slices.Sorted(maps.Keys(m.visited))
	if visited == nil {
		visited = []int{}
	}

	return models.Snapshot{
		SessionID:              sessionID,
		Answers:                answers,
		NotReviewed:            maps.Clone(m.notReviewed),
		Visited:                visited,
		CurrentQuestionIndex:   m.current,
		CurrentSubIndex:        m.currentSub,
		TimeLeft:               timeLeft,
		InitialShuffledOptions: shuffles,
	}
}

// Restore replaces the machine state with snap. Entries and shuffles for
// questions outside the current set are ignored, as are entries whose type
// disagrees with their question; ORD questions missing from snap keep
// their fresh shuffle. A position Navigate would reject falls back to the
// start of the question.
func (m *Machine) Restore(snap models.Snapshot) {
	for id, baseline := range snap.InitialShuffledOptions {
		if q, ok := m.Question(id); ok && q.Type() == models.TypeORD {
			m.baselines[id] = slices.Clone(baseline)
		}
	}

	entries := make(map[int]models.AnswerEntry, len(snap.Answers))
	for id, entry := range snap.Answers {
		if q, ok := m.Question(id); ok && q.Type() == entry.Type {
			entries[id] = entry.Clone()
		}
	}
	for id, baseline := range m.baselines {
		if _, ok := entries[id]; !ok {
			q, _ := m.Question(id)
			entries[id] = Empty(q, baseline)
		}
	}
	m.entries = entries

	m.notReviewed = make(map[int]bool, len(snap.NotReviewed))
	for id, flag := range snap.NotReviewed {
		if _, ok := m.positions[id]; ok {
			m.notReviewed[id] = flag
		}
	}

	m.visited = make(map[int]struct{}, len(snap.Visited))
	for _, index := range snap.Visited {
		if index >= 0 && index < len(m.questions) {
			m.visited[index] = struct{}{}
		}
	}

	m.current, m.currentSub = 0, 0
	if snap.CurrentQuestionIndex >= 0 && snap.CurrentQuestionIndex < len(m.questions) {
		m.current = snap.CurrentQuestionIndex
		if sub := snap.CurrentSubIndex; sub > 0 && sub < Units(m.questions[m.current]) {
			m.currentSub = sub
		}
	}
}
