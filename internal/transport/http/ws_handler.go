package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"proctor-quiz-service/internal/app"
	"proctor-quiz-service/internal/domain"
	"proctor-quiz-service/internal/proctor"
)

// SessionFactory builds the per-connection session controller wired to the
// connection's signal bus.
type SessionFactory func(userID string, env *proctor.SignalBus) *app.Controller

type WSHandler struct {
	newSession SessionFactory
	upgrader   websocket.Upgrader
}

func NewWSHandler(newSession SessionFactory) *WSHandler {
	return &WSHandler{
		newSession: newSession,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type blockedPayload struct {
	Reason    domain.BlockReason `json:"reason"`
	Retryable bool               `json:"retryable"`
}

// questionView is the client-facing question shape. The correct label and
// explanation never leave the server during a session.
type questionView struct {
	ID       string `json:"id"`
	Prompt   string `json:"prompt"`
	OptionA  string `json:"optionA"`
	OptionB  string `json:"optionB"`
	OptionC  string `json:"optionC"`
	OptionD  string `json:"optionD"`
	Category string `json:"category,omitempty"`
}

type questionsPayload struct {
	Questions []questionView `json:"questions"`
}

type answerPayload struct {
	QuestionID string       `json:"questionId"`
	Label      domain.Label `json:"label"`
}

type tickPayload struct {
	RemainingSeconds int `json:"remainingSeconds"`
	AnsweredCount    int `json:"answeredCount"`
}

type violationPayload struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

type submittedPayload struct {
	Score            int  `json:"score"`
	TotalQuestions   int  `json:"totalQuestions"`
	TimeTakenSeconds int  `json:"timeTakenSeconds"`
	Forced           bool `json:"forced"`
}

// ServeWS upgrades the request and runs one quiz session over the socket.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "missing userId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	bus := proctor.NewSignalBus()
	session := h.newSession(userID, bus)
	defer session.Close()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	eventsDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(eventsDone)
		for {
			select {
			case ev := <-session.Events():
				msg, ok := h.eventMessage(session, ev)
				if !ok {
					continue
				}
				select {
				case send <- msg:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	h.loadAndReport(r, session, send)

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "load":
			h.loadAndReport(r, session, send)
		case "start":
			var device domain.DeviceInfo
			_ = json.Unmarshal(inbound.Payload, &device)
			session.StartSession(device)
			send <- outboundMessage[any]{Type: "started", Payload: tickPayload{
				RemainingSeconds: session.Remaining(),
			}}
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid answer payload"}}
				continue
			}
			session.SelectAnswer(payload.QuestionID, payload.Label)
		case "next":
			session.NextQuestion()
		case "prev":
			session.PreviousQuestion()
		case "signal":
			var sig proctor.Signal
			if err := json.Unmarshal(inbound.Payload, &sig); err != nil {
				continue
			}
			bus.Publish(sig)
		case "submit":
			record, err := session.Submit(r.Context(), false)
			if err != nil {
				if errors.Is(err, domain.ErrInvalidState) {
					// A racing forced submit already won; the submitted
					// event carries the outcome.
					continue
				}
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "submission failed, please retry"}}
				continue
			}
			send <- outboundMessage[any]{Type: "submitted", Payload: submittedPayload{
				Score:            record.Score,
				TotalQuestions:   record.TotalQuestions,
				TimeTakenSeconds: record.TimeTakenSeconds,
				Forced:           record.Forced,
			}}
		default:
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
		}
	}

	close(closeSignals)
	<-eventsDone
	close(send)
	<-writerDone
}

func (h *WSHandler) loadAndReport(r *http.Request, session *app.Controller, send chan<- outboundMessage[any]) {
	if err := session.LoadQuestions(r.Context()); err != nil {
		state, reason := session.State()
		if state == app.StateBlocked {
			send <- outboundMessage[any]{Type: "blocked", Payload: blockedPayload{
				Reason:    reason,
				Retryable: reason.Retryable(),
			}}
			return
		}
		send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
		return
	}

	questions := session.Questions()
	views := make([]questionView, 0, len(questions))
	for _, q := range questions {
		views = append(views, questionView{
			ID:       q.ID,
			Prompt:   q.Prompt,
			OptionA:  q.OptionA,
			OptionB:  q.OptionB,
			OptionC:  q.OptionC,
			OptionD:  q.OptionD,
			Category: q.Category,
		})
	}
	send <- outboundMessage[any]{Type: "questions", Payload: questionsPayload{Questions: views}}
}

func (h *WSHandler) eventMessage(session *app.Controller, ev app.Event) (outboundMessage[any], bool) {
	switch ev.Type {
	case app.EventTick:
		return outboundMessage[any]{Type: "tick", Payload: tickPayload{
			RemainingSeconds: ev.RemainingSeconds,
			AnsweredCount:    session.AnsweredCount(),
		}}, true
	case app.EventViolation:
		return outboundMessage[any]{Type: "violation", Payload: violationPayload{
			Tag:   ev.Violation.Tag,
			Count: len(session.Monitor().Violations()),
		}}, true
	case app.EventSubmitted:
		if ev.Err != nil {
			return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "submission failed, please retry"}}, true
		}
		return outboundMessage[any]{Type: "submitted", Payload: submittedPayload{
			Score:            ev.Record.Score,
			TotalQuestions:   ev.Record.TotalQuestions,
			TimeTakenSeconds: ev.Record.TimeTakenSeconds,
			Forced:           ev.Record.Forced,
		}}, true
	}
	return outboundMessage[any]{}, false
}
