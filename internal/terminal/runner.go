package terminal

import (
	"context"
	"errors"
	"os"

	"github.com/stemsi/exstem-exam/internal/examsession"
)

type confirmation int

const (
	confirmNone confirmation = iota
	confirmSubmit
	confirmExit
)

// warnAt lists the remaining-second marks announced between prompts.
var warnAt = map[int]bool{300: true, 60: true, 30: true, 10: true}

// Runner drives one session from typed lines. It also observes the session,
// so it must be passed to Loader.Start before Run is called.
type Runner struct {
	r       *Renderer
	sess    *examsession.Session
	pending confirmation
}

// NewRunner creates a runner writing through r.
func NewRunner(r *Renderer) *Runner {
	return &Runner{r: r}
}

// ─── examsession.Observer ─────────────────────────────────────────────

func (u *Runner) OnTick(remaining int) {
	if warnAt[remaining] {
		u.r.Printf("\n%s remaining", u.r.Clock(remaining))
	}
}

func (u *Runner) OnExpired() {
	u.r.Printf("\nTime is up. Submitting your answers...")
}

func (u *Runner) OnSubmitting(trigger examsession.Trigger) {
	if trigger == examsession.TriggerManual {
		u.r.Printf("Submitting...")
	}
}

func (u *Runner) OnSubmitted(_ examsession.Trigger, res examsession.Result) {
	u.r.Result(res)
}

func (u *Runner) OnSubmitFailed(err *examsession.SubmissionError) {
	u.r.Printf("Submission failed: %v", err.Err)
	u.r.Printf("Your answers are kept. Type s to try again.")
}

// ─── Loop ─────────────────────────────────────────────────────────────

// Run processes lines and interrupts until the session ends. A closed lines
// channel or a cancelled ctx tears the session down without submitting.
func (u *Runner) Run(ctx context.Context, sess *examsession.Session, lines <-chan string, interrupts <-chan os.Signal) examsession.Outcome {
	u.sess = sess
	u.r.Header(sess.Exam())
	u.show()

	for {
		select {
		case <-sess.Done():
			return sess.Outcome()
		default:
		}

		u.prompt()
		select {
		case <-sess.Done():
			return sess.Outcome()
		case <-ctx.Done():
			sess.Close()
			return sess.Outcome()
		case <-interrupts:
			u.leave()
		case line, ok := <-lines:
			if !ok {
				sess.Close()
				return sess.Outcome()
			}
			u.handle(ctx, line)
		}
	}
}

func (u *Runner) prompt() {
	if u.pending != confirmNone {
		u.r.write("[y/N] ")
		return
	}
	i, _ := u.sess.Current()
	u.r.Prompt(u.sess.Remaining(), i, len(u.sess.Exam().Questions))
}

func (u *Runner) show() {
	i, q := u.sess.Current()
	u.r.Question(i, len(u.sess.Exam().Questions), q, u.sess.Selected(q.ID))
}

// leave is the terminal's beforeunload: an armed guard turns Ctrl-C into an
// exit confirmation.
func (u *Runner) leave() {
	msg, block := u.sess.Guard().BeforeUnload()
	if !block {
		u.sess.Close()
		return
	}
	u.r.Printf("\n%s", msg)
	u.r.Printf("Leave anyway?")
	u.pending = confirmExit
}

func (u *Runner) handle(ctx context.Context, line string) {
	if pending := u.pending; pending != confirmNone {
		u.pending = confirmNone
		if !IsYes(line) {
			u.r.Printf("Cancelled.")
			return
		}
		switch pending {
		case confirmSubmit:
			u.submit(ctx)
		case confirmExit:
			u.exit()
		}
		return
	}

	cmd, err := ParseCommand(line)
	if err != nil {
		u.r.Printf("%v", err)
		return
	}

	total := len(u.sess.Exam().Questions)
	switch cmd.Kind {
	case CmdShow:
		u.show()
	case CmdSelect:
		if err := u.sess.Select(cmd.Arg); err != nil {
			u.reportEditError(err)
			return
		}
		u.show()
	case CmdNext:
		u.sess.Next()
		u.show()
	case CmdPrev:
		u.sess.Prev()
		u.show()
	case CmdJump:
		if cmd.Arg > total {
			u.r.Printf("There are only %d questions.", total)
		}
		u.sess.Jump(cmd.Arg - 1)
		u.show()
	case CmdProgress:
		u.r.Progress(u.sess.Progress())
	case CmdHelp:
		u.r.Help()
	case CmdSubmit:
		if _, err := u.sess.SubmitManual(ctx, false); !errors.Is(err, examsession.ErrConfirmationRequired) {
			u.reportEditError(err)
			return
		}
		answered := len(u.sess.Answers())
		u.r.Progress(u.sess.Progress())
		u.r.Printf("Submit %d of %d answers? This cannot be undone.", answered, total)
		u.pending = confirmSubmit
	case CmdExit:
		u.r.Printf("Exit without submitting? All answers will be discarded.")
		u.pending = confirmExit
	}
}

func (u *Runner) submit(ctx context.Context) {
	_, err := u.sess.SubmitManual(ctx, true)
	var serr *examsession.SubmissionError
	if err != nil && !errors.As(err, &serr) {
		u.reportEditError(err)
	}
}

func (u *Runner) exit() {
	if err := u.sess.Exit(true); err != nil {
		u.reportEditError(err)
		return
	}
	u.r.Printf("Exam exited. Your answers were discarded.")
}

func (u *Runner) reportEditError(err error) {
	switch {
	case errors.Is(err, examsession.ErrSubmissionInProgress):
		u.r.Printf("Your answers are being submitted.")
	case errors.Is(err, examsession.ErrAlreadySubmitted):
		u.r.Printf("The exam has already been submitted.")
	case errors.Is(err, examsession.ErrInvalidOption):
		u.r.Printf("That option does not exist for this question.")
	default:
		u.r.Printf("%v", err)
	}
}
