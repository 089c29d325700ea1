// Package terminal renders an exam session on a line-oriented terminal and
// turns typed commands into session operations.
package terminal

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/stemsi/exstem-exam/internal/examsession"
)

const (
	ansiReset = "\x1b[0m"
	ansiBold  = "\x1b[1m"
	ansiRed   = "\x1b[31m"
	ansiGreen = "\x1b[32m"

	defaultWidth = 60
	cellWidth    = 6
)

// Renderer writes session views to out. Colour escapes are only emitted when
// color is set, which callers do for real terminals.
type Renderer struct {
	mu    sync.Mutex
	out   io.Writer
	color bool
	width int
}

// NewRenderer creates a renderer. A width of zero or less uses a default.
func NewRenderer(out io.Writer, color bool, width int) *Renderer {
	if width <= 0 {
		width = defaultWidth
	}
	return &Renderer{out: out, color: color, width: width}
}

func (r *Renderer) paint(code, s string) string {
	if !r.color {
		return s
	}
	return code + s + ansiReset
}

func (r *Renderer) write(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, _ = io.WriteString(r.out, s)
}

// Clock formats remaining seconds as mm:ss, in red when time is short.
func (r *Renderer) Clock(remaining int) string {
	s := examsession.FormatClock(remaining)
	if examsession.IsUrgent(remaining) {
		return r.paint(ansiRed+ansiBold, s)
	}
	return s
}

// Header prints the exam banner.
func (r *Renderer) Header(e *examsession.Exam) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", r.paint(ansiBold, e.Title))
	if e.CourseTitle != "" {
		fmt.Fprintf(&b, "%s\n", e.CourseTitle)
	}
	fmt.Fprintf(&b, "%d questions, %d minutes. Type h for help.\n\n", len(e.Questions), e.TimeLimitMinutes)
	r.write(b.String())
}

// Question prints question index of total with its options; selected marks
// the recorded ordinal, 0 for none.
func (r *Renderer) Question(index, total int, q examsession.Question, selected int) {
	var b strings.Builder
	fmt.Fprintf(&b, "Question %d of %d\n%s\n", index+1, total, q.Text)
	for i, opt := range q.Options {
		mark := " "
		if selected == i+1 {
			mark = r.paint(ansiGreen, "*")
		}
		fmt.Fprintf(&b, " %s %d) %s\n", mark, i+1, opt)
	}
	r.write(b.String())
}

// Progress prints one cell per question: answered questions carry "*",
// the current one is bracketed.
func (r *Renderer) Progress(statuses []examsession.QuestionStatus) {
	perRow := r.width / cellWidth
	if perRow < 1 {
		perRow = 1
	}

	var b strings.Builder
	for i, st := range statuses {
		mark := "."
		if st.Answered {
			mark = "*"
		}
		open, closing := " ", " "
		if st.Current {
			open, closing = "[", "]"
		}
		fmt.Fprintf(&b, "%s%2d%s%s", open, st.Index+1, mark, closing)
		if (i+1)%perRow == 0 || i == len(statuses)-1 {
			b.WriteString("\n")
		}
	}
	r.write(b.String())
}

// Prompt prints the input prompt with the clock and position.
func (r *Renderer) Prompt(remaining, index, total int) {
	r.write(fmt.Sprintf("[%s] %d/%d > ", r.Clock(remaining), index+1, total))
}

// Result prints the grading outcome.
func (r *Renderer) Result(res examsession.Result) {
	verdict := r.paint(ansiRed, "not passed")
	if res.Passed {
		verdict = r.paint(ansiGreen, "passed")
	}
	r.write(fmt.Sprintf("\nScore: %.1f (%s)\n", res.Score, verdict))
}

// Printf prints a free-form line.
func (r *Renderer) Printf(format string, args ...interface{}) {
	r.write(fmt.Sprintf(format, args...) + "\n")
}

// Help prints the command reference.
func (r *Renderer) Help() {
	r.write(helpText + "\n")
}
