package websocket

import "github.com/stemsi/exstem-exam/internal/examsession"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionSelect        Action = "select"
	ActionNext          Action = "next"
	ActionPrev          Action = "prev"
	ActionJump          Action = "jump"
	ActionSubmit        Action = "submit"
	ActionConfirmSubmit Action = "confirm_submit"
	ActionExit          Action = "exit"
	ActionConfirmExit   Action = "confirm_exit"
	ActionLeave         Action = "leave"
	ActionPing          Action = "ping"
)

// Request is any client message. Only the fields of its action are read:
// select uses Option and an optional QID (default: current question),
// jump uses the zero-based Index.
type Request struct {
	Action Action `json:"action"`
	QID    string `json:"q_id,omitempty"`
	Option int    `json:"option,omitempty"`
	Index  int    `json:"index,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventSession         Event = "session"
	EventQuestion        Event = "question"
	EventTick            Event = "tick"
	EventSaved           Event = "saved"
	EventConfirmRequired Event = "confirm_required"
	EventSubmitting      Event = "submitting"
	EventGraded          Event = "graded"
	EventSubmitFailed    Event = "submit_failed"
	EventExpired         Event = "expired"
	EventExited          Event = "exited"
	EventLeaveBlocked    Event = "leave_blocked"
	EventLeaveOK         Event = "leave_ok"
	EventError           Event = "error"
	EventPong            Event = "pong"
)

type SessionResponse struct {
	Event          Event                       `json:"event"`
	ExamID         string                      `json:"exam_id"`
	Title          string                      `json:"title"`
	CourseTitle    string                      `json:"course_title"`
	TotalQuestions int                         `json:"total_questions"`
	Remaining      int                         `json:"remaining"`
	Clock          string                      `json:"clock"`
	State          examsession.SubmissionState `json:"state"`
}

type QuestionResponse struct {
	Event      Event                        `json:"event"`
	Index      int                          `json:"index"`
	Total      int                          `json:"total"`
	QuestionID string                       `json:"question_id"`
	Text       string                       `json:"text"`
	Options    []string                     `json:"options"`
	Selected   int                          `json:"selected"`
	Progress   []examsession.QuestionStatus `json:"progress"`
}

type TickResponse struct {
	Event     Event  `json:"event"`
	Remaining int    `json:"remaining"`
	Clock     string `json:"clock"`
	Urgent    bool   `json:"urgent"`
}

type SavedResponse struct {
	Event      Event  `json:"event"`
	QuestionID string `json:"question_id"`
	Option     int    `json:"option"`
	Answered   int    `json:"answered"`
}

type ConfirmRequiredResponse struct {
	Event    Event  `json:"event"`
	For      Action `json:"for"`
	Message  string `json:"message"`
	Answered int    `json:"answered"`
	Total    int    `json:"total"`
}

type SubmittingResponse struct {
	Event   Event               `json:"event"`
	Trigger examsession.Trigger `json:"trigger"`
}

type GradedResponse struct {
	Event   Event               `json:"event"`
	Trigger examsession.Trigger `json:"trigger"`
	Score   float64             `json:"score"`
	Passed  bool                `json:"passed"`
}

type SubmitFailedResponse struct {
	Event   Event               `json:"event"`
	Trigger examsession.Trigger `json:"trigger"`
	Error   string              `json:"error"`
}

type LeaveResponse struct {
	Event   Event  `json:"event"`
	Message string `json:"message,omitempty"`
}

// EventResponse carries events without a payload (expired, exited, leave_ok, pong).
type EventResponse struct {
	Event Event `json:"event"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}
