package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/grading"
	"live-quiz-service/internal/infra/memory"
)

func TestQuizRepositoryCachesInRedis(t *testing.T) {
	mr := startRedis(t)
	client := newClient(mr)

	loader := &countingLoader{
		QuizLoader: memory.NewStaticQuizLoader(map[string]domain.Quiz{
			"quiz-1": sampleQuiz(),
		}),
	}
	repo := NewQuizRepository(client, loader, time.Minute, nil)

	if _, err := repo.GetQuiz(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if !mr.Exists("quiz:quiz-1") {
		t.Fatalf("expected quiz cached under quiz:quiz-1")
	}
	if ttl := mr.TTL("quiz:quiz-1"); ttl < time.Minute || ttl > time.Minute+6*time.Second {
		t.Fatalf("unexpected ttl %v", ttl)
	}

	got, err := repo.GetQuiz(context.Background(), "quiz-1")
	if err != nil {
		t.Fatalf("get quiz 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}

	// The cached copy must grade exactly like the source.
	for _, q := range got.Questions {
		if res := grading.Grade(q, []byte(`1`)); q.ID == "q1" && !res.Correct {
			t.Fatalf("cached single-choice key lost: %+v", q)
		}
		if res := grading.Grade(q, []byte(`"Altimeter"`)); q.ID == "q2" && !res.Correct {
			t.Fatalf("cached short answer key lost: %+v", q)
		}
	}
}

func TestQuizRepositoryInvalidate(t *testing.T) {
	var _ app.QuizInvalidator = (*QuizRepository)(nil)

	mr := startRedis(t)
	client := newClient(mr)
	static := memory.NewStaticQuizLoader(map[string]domain.Quiz{"quiz-1": sampleQuiz()})
	loader := &countingLoader{QuizLoader: static}
	repo := NewQuizRepository(client, loader, time.Minute, nil)
	ctx := context.Background()

	if _, err := repo.GetQuiz(ctx, "quiz-1"); err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	edited := sampleQuiz()
	edited.Title = "Edited"
	static.Put(edited)

	if err := repo.Invalidate(ctx, "quiz-1"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if mr.Exists("quiz:quiz-1") {
		t.Fatalf("expected cached quiz removed")
	}
	got, err := repo.GetQuiz(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("get quiz after invalidate: %v", err)
	}
	if got.Title != "Edited" || loader.calls != 2 {
		t.Fatalf("expected reload from the store, title=%q calls=%d", got.Title, loader.calls)
	}
}

func TestQuizRepositoryServesWhenRedisIsDown(t *testing.T) {
	mr := startRedis(t)
	client := newClient(mr)
	loader := &countingLoader{QuizLoader: memory.NewStaticQuizLoader(map[string]domain.Quiz{"quiz-1": sampleQuiz()})}
	repo := NewQuizRepository(client, loader, time.Minute, nil)
	mr.Close()

	if _, err := repo.GetQuiz(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("expected loader fallback, got %v", err)
	}
}

type countingLoader struct {
	memory.QuizLoader
	calls int
}

func (l *countingLoader) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	l.calls++
	return l.QuizLoader.LoadQuiz(ctx, quizID)
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:    "quiz-1",
		Title: "Instruments",
		Questions: []domain.Question{
			{ID: "q1", Kind: domain.KindSingleChoice, Text: "Which surface controls pitch?", Options: []string{"Aileron", "Elevator"}, Answer: "1"},
			{ID: "q2", Kind: domain.KindShortAnswer, Text: "Which instrument shows height?", Answer: "altimeter"},
		},
	}
}

func startRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	return mr
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        mr.Addr(),
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
}
