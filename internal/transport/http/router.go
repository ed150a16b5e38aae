package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
)

// NewRouter mounts the health check, the websocket endpoint and the instructor REST API.
func NewRouter(service *app.QuizService, ws *WSHandler, auth *Authenticator, logger *slog.Logger) *mux.Router {
	api := &apiHandler{service: service, auth: auth}

	router := mux.NewRouter()
	router.Use(requestLogger(logger))
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	router.HandleFunc("/ws", ws.ServeWS).Methods(http.MethodGet)
	router.HandleFunc("/api/sessions", api.createSession).Methods(http.MethodPost)
	router.HandleFunc("/api/sessions/active", api.activeSessions).Methods(http.MethodGet)
	router.HandleFunc("/api/quizzes/{id}/reload", api.reloadQuiz).Methods(http.MethodPost)
	return router
}

type apiHandler struct {
	service *app.QuizService
	auth    *Authenticator
}

type createSessionRequest struct {
	QuizID string `json:"quizId"`
}

func (a *apiHandler) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.QuizID == "" {
		writeError(w, http.StatusBadRequest, "quizId is required")
		return
	}
	code, err := a.service.CreateRoom(r.Context(), a.auth.Actor(r), req.QuizID)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, domain.RoomCreated{Code: code, QuizID: req.QuizID})
}

func (a *apiHandler) activeSessions(w http.ResponseWriter, r *http.Request) {
	actor := a.auth.Actor(r)
	if !actor.Instructor {
		writeError(w, http.StatusForbidden, domain.ErrForbidden.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": a.service.ActiveRooms(actor.ID)})
}

type reloadResponse struct {
	QuizID    string `json:"quizId"`
	Title     string `json:"title"`
	Questions int    `json:"questions"`
}

func (a *apiHandler) reloadQuiz(w http.ResponseWriter, r *http.Request) {
	quiz, err := a.service.ReloadQuiz(r.Context(), a.auth.Actor(r), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, reloadResponse{QuizID: quiz.ID, Title: quiz.Title, Questions: len(quiz.Questions)})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrQuizNotFound), errors.Is(err, domain.ErrRoomNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func requestLogger(logger *slog.Logger) mux.MiddlewareFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug("http request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
		})
	}
}
