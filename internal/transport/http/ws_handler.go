package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"affairs-quiz-web/internal/app"
	"affairs-quiz-web/internal/guest"
)

// WSHandler streams live session snapshots over a websocket, so the
// countdown and state changes reach the page without polling.
type WSHandler struct {
	svc      *app.Service
	guests   *guest.Provider
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(svc *app.Service, guests *guest.Provider, log zerolog.Logger) *WSHandler {
	return &WSHandler{
		svc:    svc,
		guests: guests,
		log:    log,
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

type selectPayload struct {
	QuestionID int64 `json:"question_id"`
	Option     int   `json:"option"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades the request and attaches it to the guest's quiz
// session. Snapshots flow out on every state change; commands come in
// as typed messages. A single writer goroutine owns the connection's
// write side.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	quizID, err := strconv.ParseInt(r.URL.Query().Get("quizId"), 10, 64)
	if err != nil || quizID <= 0 {
		http.Error(w, "missing or invalid quizId", http.StatusBadRequest)
		return
	}
	id := h.guests.Resolve(w, r)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	snap, err := h.svc.StartSession(r.Context(), quizID, id)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	session, err := h.svc.Session(quizID, id)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}

	updates, cancel := session.Subscribe()
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Debug().Err(err).Msg("ws write error")
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "snapshot", Payload: update}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	send <- outboundMessage[any]{Type: "snapshot", Payload: snap}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		var (
			next  app.Snapshot
			opErr error
		)
		switch inbound.Type {
		case "select":
			var payload selectPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid select payload"}}
				continue
			}
			next, opErr = session.SelectOption(payload.QuestionID, payload.Option)
		case "next":
			next, opErr = session.Next()
		case "prev":
			next, opErr = session.Prev()
		case "submit":
			next, opErr = session.Submit(r.Context())
		case "restart":
			next, opErr = session.Restart(r.Context())
		default:
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
			continue
		}
		if opErr != nil {
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: opErr.Error()}}
			continue
		}
		send <- outboundMessage[any]{Type: "snapshot", Payload: next}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}
