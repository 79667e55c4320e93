package attempt

import "quiz-attempt-service/internal/domain"

// AnswerStore is a sparse mapping from question position to selected option.
type AnswerStore struct {
	selected map[int]int
}

func NewAnswerStore() *AnswerStore {
	return &AnswerStore{selected: make(map[int]int)}
}

// Set overwrites any prior selection for the question.
func (s *AnswerStore) Set(questionIndex, optionIndex int) {
	s.selected[questionIndex] = optionIndex
}

// Get returns the selected option, or false when the question is unanswered.
func (s *AnswerStore) Get(questionIndex int) (int, bool) {
	option, ok := s.selected[questionIndex]
	return option, ok
}

func (s *AnswerStore) AnsweredCount() int {
	return len(s.selected)
}

// Ordered returns exactly questionCount entries; unanswered slots hold domain.Unset.
func (s *AnswerStore) Ordered(questionCount int) []int {
	out := make([]int, questionCount)
	for i := range out {
		out[i] = domain.Unset
		if option, ok := s.selected[i]; ok {
			out[i] = option
		}
	}
	return out
}
