package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
)

type WSHandler struct {
	service  *app.QuizService
	hub      *Hub
	auth     *Authenticator
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

func NewWSHandler(service *app.QuizService, hub *Hub, auth *Authenticator, allowedOrigins []string, logger *slog.Logger) *WSHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSHandler{
		service: service,
		hub:     hub,
		auth:    auth,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// roomPayload covers every inbound message; each type reads the fields it needs.
type roomPayload struct {
	QuizID    string            `json:"quizId"`
	GameCode  string            `json:"gameCode"`
	Name      string            `json:"name"`
	Answer    json.RawMessage   `json:"answer"`
	Questions []domain.Question `json:"questions"`
}

var errUnsupportedMessage = errors.New("unsupported message type")

// ServeWS upgrades the request and feeds inbound messages to the quiz use cases
// until the client goes away.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	actor := h.auth.Actor(r)
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Info("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	id := domain.ConnID(uuid.NewString())
	c := h.hub.register(id)
	ctx := context.WithoutCancel(r.Context())
	logger := h.logger.With("conn", id)
	logger.Debug("ws connected", "actor", actor.ID, "instructor", actor.Instructor)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for msg := range c.send {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				logger.Debug("ws write error", "error", err)
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if err := h.dispatch(ctx, actor, id, inbound); err != nil {
			logger.Debug("ws request failed", "type", inbound.Type, "error", err)
			_ = h.hub.Deliver(id, domain.Event{
				Type:    domain.EventError,
				Payload: domain.ErrorPayload{Event: inbound.Type, Message: err.Error()},
			})
		}
	}

	h.service.Disconnect(ctx, id)
	h.hub.unregister(id)
	<-writerDone
	logger.Debug("ws disconnected")
}

func (h *WSHandler) dispatch(ctx context.Context, actor domain.Actor, id domain.ConnID, in inboundMessage) error {
	var p roomPayload
	if len(in.Payload) > 0 {
		if err := json.Unmarshal(in.Payload, &p); err != nil {
			return errors.New("invalid payload")
		}
	}

	switch in.Type {
	case "createRoom":
		code, err := h.service.CreateRoom(ctx, actor, p.QuizID)
		if err != nil {
			return err
		}
		_ = h.hub.Deliver(id, domain.Event{
			Type:    domain.EventRoomCreated,
			Payload: domain.RoomCreated{Code: code, QuizID: p.QuizID},
		})
		return h.service.HostRoom(ctx, actor, code, id)
	case "hostRoom":
		return h.service.HostRoom(ctx, actor, p.GameCode, id)
	case "join":
		return h.service.Join(ctx, p.GameCode, p.Name, id)
	case "rejoin":
		return h.service.Rejoin(ctx, p.GameCode, p.Name, id)
	case "requestCurrentQuestion":
		return h.service.RequestCurrentQuestion(ctx, p.GameCode, id)
	case "start":
		return h.service.Start(ctx, actor, p.GameCode, p.Questions)
	case "advance":
		return h.service.Advance(ctx, actor, p.GameCode)
	case "submitAnswer":
		return h.service.SubmitAnswer(ctx, p.GameCode, p.Name, id, p.Answer)
	case "requestResults":
		return h.service.RequestResults(ctx, actor, p.GameCode)
	case "end":
		return h.service.End(ctx, actor, p.GameCode)
	default:
		return errUnsupportedMessage
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		set[origin] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}
