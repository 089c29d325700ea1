package terminal

import (
	"bytes"
	"testing"

	"github.com/stemsi/exstem-exam/internal/examsession"
	"github.com/stretchr/testify/assert"
)

func TestClock_UrgentColourOnlyOnTerminal(t *testing.T) {
	plain := NewRenderer(&bytes.Buffer{}, false, 0)
	assert.Equal(t, "05:00", plain.Clock(300))
	assert.Equal(t, "04:59", plain.Clock(299))

	colored := NewRenderer(&bytes.Buffer{}, true, 0)
	assert.Equal(t, "05:00", colored.Clock(300))
	assert.Equal(t, ansiRed+ansiBold+"04:59"+ansiReset, colored.Clock(299))
}

func TestQuestion_MarksSelection(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, false, 0)

	r.Question(1, 4, examsession.Question{ID: "q2", Text: "Pick one", Options: []string{"a", "b"}}, 2)

	assert.Equal(t, "Question 2 of 4\nPick one\n   1) a\n * 2) b\n", buf.String())
}

func TestProgress_Grid(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, false, 12)

	r.Progress([]examsession.QuestionStatus{
		{Index: 0, Answered: true},
		{Index: 1, Current: true},
		{Index: 2, Answered: true},
	})

	assert.Equal(t, "  1* [ 2.]\n  3* \n", buf.String())
}

func TestPromptAndResult(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, false, 0)

	r.Prompt(61, 0, 3)
	r.Result(examsession.Result{Score: 66.666, Passed: true})

	assert.Equal(t, "[01:01] 1/3 > \nScore: 66.7 (passed)\n", buf.String())
}
