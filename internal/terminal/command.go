package terminal

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/stemsi/exstem-exam/internal/examsession"
)

// Kind identifies a student command typed at the prompt.
type Kind int

const (
	CmdShow Kind = iota
	CmdSelect
	CmdNext
	CmdPrev
	CmdJump
	CmdSubmit
	CmdExit
	CmdProgress
	CmdHelp
)

// Command is a parsed prompt line. Arg is the option ordinal for CmdSelect
// and the 1-based question number for CmdJump.
type Command struct {
	Kind Kind
	Arg  int
}

var ErrUnknownCommand = errors.New("unknown command")

// ParseCommand reads one prompt line. An empty line re-shows the current question.
func ParseCommand(line string) (Command, error) {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		return Command{Kind: CmdShow}, nil
	}

	head := fields[0]
	if n, err := strconv.Atoi(head); err == nil && len(fields) == 1 {
		if n < 1 || n > examsession.MaxOptions {
			return Command{}, fmt.Errorf("option must be 1..%d", examsession.MaxOptions)
		}
		return Command{Kind: CmdSelect, Arg: n}, nil
	}

	switch head {
	case "n", "next":
		return Command{Kind: CmdNext}, nil
	case "p", "prev":
		return Command{Kind: CmdPrev}, nil
	case "s", "submit":
		return Command{Kind: CmdSubmit}, nil
	case "x", "exit":
		return Command{Kind: CmdExit}, nil
	case "l", "list":
		return Command{Kind: CmdProgress}, nil
	case "h", "help", "?":
		return Command{Kind: CmdHelp}, nil
	}

	// "g 3" and "g3" both jump to question 3.
	if arg, ok := strings.CutPrefix(head, "g"); ok {
		if arg == "" && len(fields) == 2 {
			arg = fields[1]
		} else if len(fields) != 1 {
			return Command{}, errors.New("usage: g <question number>")
		}
		k, err := strconv.Atoi(arg)
		if err != nil || k < 1 {
			return Command{}, errors.New("usage: g <question number>")
		}
		return Command{Kind: CmdJump, Arg: k}, nil
	}

	return Command{}, fmt.Errorf("%w %q, type h for help", ErrUnknownCommand, head)
}

// IsYes reports whether a confirmation answer accepts.
func IsYes(line string) bool {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

const helpText = `Commands:
  1..5     choose an option for the current question
  n / p    next / previous question
  g <k>    go to question k
  l        show progress
  s        submit the exam
  x        exit without submitting
  h        this help`
