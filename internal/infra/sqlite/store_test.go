package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/grading"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "quiz.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSeedAndLoadQuiz(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	quiz := domain.Quiz{
		ID:    "m13",
		Title: "Module 13",
		Questions: []domain.Question{
			{ID: "q1", Kind: domain.KindMultipleChoice, Text: "EFIS displays?", Options: []string{"PFD", "Hydraulics", "ND"}, Answer: "[0, 2]", Explanation: "PFD and ND."},
			{ID: "q2", Kind: domain.KindFillBlank, Text: "The [blank] shows altitude.", Answer: `["altimeter"]`, TimeLimit: 30},
		},
	}
	if err := store.SeedQuizzes(ctx, []domain.Quiz{quiz}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	// Re-seeding replaces questions instead of duplicating them.
	if err := store.SeedQuizzes(ctx, []domain.Quiz{quiz}); err != nil {
		t.Fatalf("reseed: %v", err)
	}

	got, err := store.LoadQuiz(ctx, "m13")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Title != "Module 13" || len(got.Questions) != 2 {
		t.Fatalf("unexpected quiz %+v", got)
	}
	if got.Questions[0].ID != "q1" || len(got.Questions[0].Options) != 3 {
		t.Fatalf("questions out of order or options lost: %+v", got.Questions)
	}
	if got.Questions[1].Limit() != 30*time.Second || got.Questions[0].Limit() != domain.DefaultTimeLimit {
		t.Fatalf("unexpected time limits")
	}
	if !grading.Grade(got.Questions[0], json.RawMessage(`[2,0]`)).Correct {
		t.Fatalf("stored multiple-choice key did not survive the round trip")
	}

	if _, err := store.LoadQuiz(ctx, "missing"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected ErrQuizNotFound, got %v", err)
	}
}

func TestAuditTrail(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	created := time.Date(2024, 11, 22, 9, 0, 0, 0, time.UTC)

	if err := store.RecordSessionCreated(ctx, domain.SessionRecord{Code: "123456", QuizID: "m13", InstructorID: "inst-1", CreatedAt: created}); err != nil {
		t.Fatalf("record created: %v", err)
	}
	if err := store.RecordSessionStatus(ctx, domain.StatusRecord{Code: "123456", Status: domain.StatusActive, At: created.Add(time.Minute)}); err != nil {
		t.Fatalf("record active: %v", err)
	}
	if err := store.RecordResponse(ctx, domain.ResponseRecord{
		Code: "123456", Participant: "Alice", QuestionID: "q1", Answer: json.RawMessage(`1`),
		Correct: true, Points: 900, ResponseTime: 7 * time.Second, AnsweredAt: created.Add(2 * time.Minute),
	}); err != nil {
		t.Fatalf("record response: %v", err)
	}
	if err := store.RecordSessionStatus(ctx, domain.StatusRecord{Code: "123456", Status: domain.StatusCompleted, At: created.Add(time.Hour)}); err != nil {
		t.Fatalf("record completed: %v", err)
	}

	h, err := store.LatestSession(ctx, "123456")
	if err != nil {
		t.Fatalf("latest session: %v", err)
	}
	if h.Status != domain.StatusCompleted || h.StartedAt == nil || h.EndedAt == nil {
		t.Fatalf("unexpected history %+v", h)
	}

	// A recycled code opens a fresh session row.
	if err := store.RecordSessionCreated(ctx, domain.SessionRecord{Code: "123456", QuizID: "m14", CreatedAt: created.Add(2 * time.Hour)}); err != nil {
		t.Fatalf("recycled code: %v", err)
	}
	h, err = store.LatestSession(ctx, "123456")
	if err != nil {
		t.Fatalf("latest session: %v", err)
	}
	if h.QuizID != "m14" || h.Status != domain.StatusWaiting || h.StartedAt != nil {
		t.Fatalf("unexpected recycled history %+v", h)
	}

	var points int
	if err := store.db.QueryRow(`SELECT points FROM student_responses WHERE game_code = ?`, "123456").Scan(&points); err != nil {
		t.Fatalf("select response: %v", err)
	}
	if points != 900 {
		t.Fatalf("expected 900 points stored, got %d", points)
	}
}

func TestSessionResponsesKeepRecycledCodesApart(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	first := time.Date(2024, 11, 22, 9, 0, 0, 0, time.UTC)

	play := func(start time.Time, player string, points int) {
		t.Helper()
		if err := store.RecordSessionCreated(ctx, domain.SessionRecord{Code: "654321", QuizID: "m13", CreatedAt: start}); err != nil {
			t.Fatalf("record created: %v", err)
		}
		if err := store.RecordSessionStatus(ctx, domain.StatusRecord{Code: "654321", Status: domain.StatusActive, At: start.Add(time.Minute)}); err != nil {
			t.Fatalf("record active: %v", err)
		}
		if err := store.RecordResponse(ctx, domain.ResponseRecord{
			Code: "654321", Participant: player, QuestionID: "q1", Answer: json.RawMessage(`[0,2]`),
			Correct: points > 0, Points: points, ResponseTime: 4 * time.Second, AnsweredAt: start.Add(2 * time.Minute),
		}); err != nil {
			t.Fatalf("record response: %v", err)
		}
		if err := store.RecordSessionStatus(ctx, domain.StatusRecord{Code: "654321", Status: domain.StatusCompleted, At: start.Add(time.Hour)}); err != nil {
			t.Fatalf("record completed: %v", err)
		}
	}
	play(first, "Alice", 950)
	play(first.Add(24*time.Hour), "Bob", 0)

	got, err := store.SessionResponses(ctx, "654321")
	if err != nil {
		t.Fatalf("session responses: %v", err)
	}
	if len(got) != 1 || got[0].Participant != "Bob" || got[0].Points != 0 {
		t.Fatalf("expected only the latest session's response, got %+v", got)
	}
	if string(got[0].Answer) != `[0,2]` || got[0].ResponseTime != 4*time.Second {
		t.Fatalf("response fields lost: %+v", got[0])
	}

	var linked int
	if err := store.db.QueryRow(`SELECT COUNT(DISTINCT session_id) FROM student_responses WHERE game_code = ?`, "654321").Scan(&linked); err != nil {
		t.Fatalf("count sessions: %v", err)
	}
	if linked != 2 {
		t.Fatalf("expected responses linked to two sessions, got %d", linked)
	}
}
