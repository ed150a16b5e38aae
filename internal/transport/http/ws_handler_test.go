package http

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/infra/memory"
)

const testSecret = "test-secret"

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	hub := NewHub(64, nil)
	rooms := memory.NewRoomStore()
	quizRepo := memory.NewQuizRepository(memory.NewStaticQuizLoader(sampleQuiz()), time.Minute)
	service := app.NewQuizService(rooms, quizRepo, app.WithTransport(hub))
	auth := NewAuthenticator(testSecret)
	router := NewRouter(service, NewWSHandler(service, hub, auth, nil, nil), auth, nil)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

func dial(t *testing.T, server *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	if token != "" {
		u += "?token=" + token
	}
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func instructorToken(t *testing.T) string {
	t.Helper()
	token, err := IssueToken(testSecret, "inst-1", "instructor", time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func send(t *testing.T, conn *websocket.Conn, typ string, payload map[string]any) {
	t.Helper()
	if err := conn.WriteJSON(map[string]any{"type": typ, "payload": payload}); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

func TestWebSocketQuizFlow(t *testing.T) {
	server := newTestServer(t)
	host := dial(t, server, instructorToken(t))
	student := dial(t, server, "")

	send(t, host, "createRoom", map[string]any{"quizId": "quiz-1"})
	_, created := readNext(host, t, "room-created")
	code, _ := created["gameCode"].(string)
	if len(code) != 6 {
		t.Fatalf("expected a six digit code, got %v", created)
	}
	readNext(host, t, "roster-update")

	send(t, student, "join", map[string]any{"gameCode": code, "name": "Alice"})
	_, roster := readNext(student, t, "roster-update")
	if roster["totalParticipants"] != float64(1) {
		t.Fatalf("expected 1 participant, got %v", roster)
	}
	readUntil(host, t, "roster-update")

	send(t, host, "start", map[string]any{"gameCode": code})
	readUntil(student, t, "quiz-started")
	send(t, host, "advance", map[string]any{"gameCode": code})
	_, question := readUntil(student, t, "new-question")
	if question["questionNumber"] != float64(1) || question["correct_answer"] != nil {
		t.Fatalf("unexpected question payload %v", question)
	}

	send(t, student, "submitAnswer", map[string]any{"gameCode": code, "name": "Alice", "answer": 1})
	_, result := readUntil(student, t, "answer-result")
	if result["isCorrect"] != true {
		t.Fatalf("expected a correct answer, got %v", result)
	}
	if points, _ := result["points"].(float64); points < 500 || points > 1000 {
		t.Fatalf("unexpected points %v", result["points"])
	}
	_, results := readUntil(host, t, "question-results")
	stats, _ := results["stats"].(map[string]any)
	if stats["correct"] != float64(1) || stats["total"] != float64(1) {
		t.Fatalf("unexpected stats %v", results)
	}

	// Participants cannot drive the quiz.
	send(t, student, "advance", map[string]any{"gameCode": code})
	_, failure := readUntil(student, t, "error")
	if failure["event"] != "advance" || failure["message"] != domain.ErrForbidden.Error() {
		t.Fatalf("unexpected error payload %v", failure)
	}

	send(t, host, "end", map[string]any{"gameCode": code})
	_, ended := readUntil(student, t, "quiz-ended")
	board, _ := ended["leaderboard"].([]any)
	if len(board) != 1 {
		t.Fatalf("expected final leaderboard, got %v", ended)
	}

	send(t, student, "join", map[string]any{"gameCode": code, "name": "Bob"})
	_, failure = readUntil(student, t, "error")
	if failure["message"] != domain.ErrRoomNotFound.Error() {
		t.Fatalf("expected room not found after end, got %v", failure)
	}
}

func TestWebSocketRejectsUnknownMessages(t *testing.T) {
	server := newTestServer(t)
	conn := dial(t, server, "")

	send(t, conn, "dance", nil)
	_, payload := readNext(conn, t, "error")
	if payload["message"] != errUnsupportedMessage.Error() {
		t.Fatalf("unexpected error payload %v", payload)
	}
}

func readNext(conn *websocket.Conn, t *testing.T, expect string) (string, map[string]any) {
	t.Helper()
	var msg struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if expect != "" && msg.Type != expect {
		t.Fatalf("expected type %s, got %s", expect, msg.Type)
	}
	return msg.Type, msg.Payload
}

// readUntil skips messages until one of type expect arrives.
func readUntil(conn *websocket.Conn, t *testing.T, expect string) (string, map[string]any) {
	t.Helper()
	for i := 0; i < 20; i++ {
		typ, payload := readNext(conn, t, "")
		if typ == expect {
			return typ, payload
		}
	}
	t.Fatalf("no %s message within 20 reads", expect)
	return "", nil
}

func sampleQuiz() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"quiz-1": {
			ID:    "quiz-1",
			Title: "Autoflight",
			Questions: []domain.Question{
				{
					ID:      "q1",
					Kind:    domain.KindSingleChoice,
					Text:    "The autopilot feedback loop is used to:",
					Options: []string{"Prevent flutter", "Match commanded position", "Bypass the pilot"},
					Answer:  "1",
				},
			},
		},
	}
}
