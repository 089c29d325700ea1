package examsession

import "sync/atomic"

// DefaultLeaveWarning is shown when the student tries to leave an unsubmitted exam.
const DefaultLeaveWarning = "Your answers have not been submitted and will be lost if you leave."

// NavigationGuard warns before the hosting view is left while the exam is
// still unsubmitted. It is disarmed once the exam is submitted or exited.
type NavigationGuard struct {
	armed   atomic.Bool
	message string
}

func newNavigationGuard(message string) *NavigationGuard {
	if message == "" {
		message = DefaultLeaveWarning
	}
	g := &NavigationGuard{message: message}
	g.armed.Store(true)
	return g
}

// Armed reports whether leaving should currently be intercepted.
func (g *NavigationGuard) Armed() bool { return g.armed.Load() }

// BeforeUnload returns the warning to show and whether leaving should be blocked
// pending the student's confirmation.
func (g *NavigationGuard) BeforeUnload() (message string, block bool) {
	if !g.armed.Load() {
		return "", false
	}
	return g.message, true
}

func (g *NavigationGuard) disarm() { g.armed.Store(false) }
