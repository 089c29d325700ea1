package examsession

import "fmt"

// AnswerMap maps question ID to the selected option ordinal (1-based).
type AnswerMap map[string]int

// Clone returns an independent copy. The result is never nil.
func (m AnswerMap) Clone() AnswerMap {
	out := make(AnswerMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// AnswerStore holds the current selection per question. Keys are restricted
// to the exam's question IDs and entries are only ever overwritten.
// It is not safe for concurrent use; Session guards it.
type AnswerStore struct {
	optionCount map[string]int
	answers     AnswerMap
}

// NewAnswerStore creates an empty store for the given questions.
func NewAnswerStore(questions []Question) *AnswerStore {
	counts := make(map[string]int, len(questions))
	for _, q := range questions {
		counts[q.ID] = len(q.Options)
	}
	return &AnswerStore{
		optionCount: counts,
		answers:     make(AnswerMap, len(questions)),
	}
}

// Select records option for questionID, replacing any earlier selection.
func (s *AnswerStore) Select(questionID string, option int) error {
	n, ok := s.optionCount[questionID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownQuestion, questionID)
	}
	if option < 1 || option > n {
		return fmt.Errorf("%w: %d not in 1..%d", ErrInvalidOption, option, n)
	}
	s.answers[questionID] = option
	return nil
}

// Answered reports whether questionID has a selection.
func (s *AnswerStore) Answered(questionID string) bool {
	_, ok := s.answers[questionID]
	return ok
}

// Selected returns the selection for questionID, or 0.
func (s *AnswerStore) Selected(questionID string) int {
	return s.answers[questionID]
}

// Len returns the number of answered questions.
func (s *AnswerStore) Len() int { return len(s.answers) }

// Snapshot returns a copy of the answers suitable for sending.
func (s *AnswerStore) Snapshot() AnswerMap { return s.answers.Clone() }

func (s *AnswerStore) reset() {
	s.answers = make(AnswerMap)
}
