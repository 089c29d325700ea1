package examsession

// Navigator tracks the current question index, always within [0, count-1].
type Navigator struct {
	count int
	index int
}

// NewNavigator starts at the first of count questions. count must be positive.
func NewNavigator(count int) *Navigator {
	return &Navigator{count: count}
}

// Index returns the current position.
func (n *Navigator) Index() int { return n.index }

// Next moves forward one question; it is a no-op on the last question.
func (n *Navigator) Next() int {
	if n.index < n.count-1 {
		n.index++
	}
	return n.index
}

// Prev moves back one question; it is a no-op on the first question.
func (n *Navigator) Prev() int {
	if n.index > 0 {
		n.index--
	}
	return n.index
}

// Jump moves directly to i, clamped to the valid range.
func (n *Navigator) Jump(i int) int {
	switch {
	case i < 0:
		n.index = 0
	case i >= n.count:
		n.index = n.count - 1
	default:
		n.index = i
	}
	return n.index
}

// QuestionStatus is one cell of the progress grid.
type QuestionStatus struct {
	Index      int    `json:"index"`
	QuestionID string `json:"question_id"`
	Answered   bool   `json:"answered"`
	Current    bool   `json:"current"`
}
