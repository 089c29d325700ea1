package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-exam/internal/examsession"
	"github.com/stemsi/exstem-exam/internal/middleware"
	"github.com/stemsi/exstem-exam/internal/response"
	"github.com/stemsi/exstem-exam/internal/service"
	ws "github.com/stemsi/exstem-exam/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler hosts one live exam session per WebSocket connection.
type WSHandler struct {
	examService    *service.ExamService
	gradingService *service.GradingService
	sessionOpts    []examsession.LoaderOption
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler. opts apply to every session it starts.
func NewWSHandler(
	examService *service.ExamService,
	gradingService *service.GradingService,
	log zerolog.Logger,
	allowedOrigins []string,
	opts ...examsession.LoaderOption,
) *WSHandler {
	return &WSHandler{
		examService:    examService,
		gradingService: gradingService,
		sessionOpts:    opts,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// sessionObserver forwards session events to the client.
type sessionObserver struct {
	c *ws.Conn
}

func (o sessionObserver) OnTick(remaining int) {
	o.c.Send(ws.TickResponse{
		Event:     ws.EventTick,
		Remaining: remaining,
		Clock:     examsession.FormatClock(remaining),
		Urgent:    examsession.IsUrgent(remaining),
	})
}

func (o sessionObserver) OnExpired() {
	o.c.Send(ws.EventResponse{Event: ws.EventExpired})
}

func (o sessionObserver) OnSubmitting(trigger examsession.Trigger) {
	o.c.Send(ws.SubmittingResponse{Event: ws.EventSubmitting, Trigger: trigger})
}

func (o sessionObserver) OnSubmitted(trigger examsession.Trigger, result examsession.Result) {
	o.c.Send(ws.GradedResponse{Event: ws.EventGraded, Trigger: trigger, Score: result.Score, Passed: result.Passed})
}

func (o sessionObserver) OnSubmitFailed(err *examsession.SubmissionError) {
	o.c.Send(ws.SubmitFailedResponse{Event: ws.EventSubmitFailed, Trigger: err.Trigger, Error: err.Err.Error()})
}

// ExamSession godoc
// WS /ws/v1/student/exams/:exam_id/session
// Runs a timed exam session: the server owns the countdown, answers and
// exactly-once submission; the client renders events and sends actions.
func (h *WSHandler) ExamSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, ok := parseExamID(c)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx := c.Request.Context()
	studentID := claims.UserID
	wsLog := h.log.With().
		Int("student_id", studentID).
		Str("exam_id", examID.String()).
		Logger()
	wc := ws.NewConn(conn, wsLog)

	// A finished exam is not retaken; report the stored result instead.
	if prev, err := h.gradingService.GetResult(ctx, examID, studentID); err == nil {
		wc.Send(ws.GradedResponse{Event: ws.EventGraded, Score: prev.Score, Passed: prev.Passed})
		wc.Close("already submitted")
		return
	}

	gateway := service.NewStudentGateway(h.examService, h.gradingService, studentID)
	loader := examsession.NewLoader(gateway, gateway, wsLog, h.sessionOpts...)

	sess, err := loader.Start(ctx, examID.String(), sessionObserver{c: wc})
	if err != nil {
		wc.SendError(err)
		wc.Close("exam unavailable")
		return
	}
	defer sess.Close()

	wsLog.Info().Msg("Student connected")

	exam := sess.Exam()
	wc.Send(ws.SessionResponse{
		Event:          ws.EventSession,
		ExamID:         exam.ID,
		Title:          exam.Title,
		CourseTitle:    exam.CourseTitle,
		TotalQuestions: len(exam.Questions),
		Remaining:      sess.Remaining(),
		Clock:          examsession.FormatClock(sess.Remaining()),
		State:          sess.State(),
	})
	h.sendQuestion(wc, sess)

	keepAliveCtx, stopKeepAlive := context.WithCancel(ctx)
	defer stopKeepAlive()
	go wc.KeepAlive(keepAliveCtx)

	requests := make(chan ws.Request)
	readErr := make(chan error, 1)
	go func() {
		for {
			var msg ws.Request
			if err := wc.Read(&msg); err != nil {
				readErr <- err
				return
			}
			select {
			case requests <- msg:
			case <-sess.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-sess.Done():
			switch sess.Outcome() {
			case examsession.OutcomeSubmitted:
				wc.Close("submitted")
			case examsession.OutcomeExited:
				wc.Close("exited")
			}
			return

		case err := <-readErr:
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return

		case msg := <-requests:
			if leave := h.handleAction(ctx, wc, sess, msg); leave {
				wc.Close("left")
				return
			}
		}
	}
}

// handleAction applies one client action. It returns true when the client may
// leave and the connection should end.
func (h *WSHandler) handleAction(ctx context.Context, wc *ws.Conn, sess *examsession.Session, msg ws.Request) bool {
	switch msg.Action {
	case ws.ActionSelect:
		qid := msg.QID
		var err error
		if qid == "" {
			_, q := sess.Current()
			qid = q.ID
			err = sess.Select(msg.Option)
		} else {
			err = sess.SelectAnswer(qid, msg.Option)
		}
		if err != nil {
			wc.SendError(err)
			return false
		}
		wc.Send(ws.SavedResponse{
			Event:      ws.EventSaved,
			QuestionID: qid,
			Option:     msg.Option,
			Answered:   len(sess.Answers()),
		})

	case ws.ActionNext:
		sess.Next()
		h.sendQuestion(wc, sess)

	case ws.ActionPrev:
		sess.Prev()
		h.sendQuestion(wc, sess)

	case ws.ActionJump:
		sess.Jump(msg.Index)
		h.sendQuestion(wc, sess)

	case ws.ActionSubmit:
		_, err := sess.SubmitManual(ctx, false)
		if !errors.Is(err, examsession.ErrConfirmationRequired) {
			wc.SendError(err)
			return false
		}
		answered, total := len(sess.Answers()), len(sess.Exam().Questions)
		wc.Send(ws.ConfirmRequiredResponse{
			Event:    ws.EventConfirmRequired,
			For:      ws.ActionConfirmSubmit,
			Message:  fmt.Sprintf("Submit %d of %d answers? This cannot be undone.", answered, total),
			Answered: answered,
			Total:    total,
		})

	case ws.ActionConfirmSubmit:
		// Outcome events come from the observer; only rejections are reported here.
		_, err := sess.SubmitManual(ctx, true)
		var serr *examsession.SubmissionError
		if err != nil && !errors.As(err, &serr) {
			wc.SendError(err)
		}

	case ws.ActionExit:
		msgText, _ := sess.Guard().BeforeUnload()
		wc.Send(ws.ConfirmRequiredResponse{
			Event:    ws.EventConfirmRequired,
			For:      ws.ActionConfirmExit,
			Message:  msgText,
			Answered: len(sess.Answers()),
			Total:    len(sess.Exam().Questions),
		})

	case ws.ActionConfirmExit:
		if err := sess.Exit(true); err != nil {
			wc.SendError(err)
			return false
		}
		wc.Send(ws.EventResponse{Event: ws.EventExited})

	case ws.ActionLeave:
		if text, block := sess.Guard().BeforeUnload(); block {
			wc.Send(ws.LeaveResponse{Event: ws.EventLeaveBlocked, Message: text})
			return false
		}
		wc.Send(ws.LeaveResponse{Event: ws.EventLeaveOK})
		return true

	case ws.ActionPing:
		wc.Send(ws.EventResponse{Event: ws.EventPong})

	default:
		wc.SendError(fmt.Errorf("unknown action: %s", msg.Action))
	}
	return false
}

func (h *WSHandler) sendQuestion(wc *ws.Conn, sess *examsession.Session) {
	idx, q := sess.Current()
	wc.Send(ws.QuestionResponse{
		Event:      ws.EventQuestion,
		Index:      idx,
		Total:      len(sess.Exam().Questions),
		QuestionID: q.ID,
		Text:       q.Text,
		Options:    q.Options,
		Selected:   sess.Selected(q.ID),
		Progress:   sess.Progress(),
	})
}
