package memory

import (
	"context"
	"testing"

	"live-quiz-service/internal/app"
)

func TestRoomStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewRoomStore()
	room := app.NewRoom("123456", "inst-1", sampleQuiz(), nil)

	ok, err := store.Reserve(ctx, room)
	if err != nil || !ok {
		t.Fatalf("expected reserve to succeed, ok=%v err=%v", ok, err)
	}
	ok, err = store.Reserve(ctx, app.NewRoom("123456", "inst-2", sampleQuiz(), nil))
	if err != nil || ok {
		t.Fatalf("expected duplicate code to be refused, ok=%v err=%v", ok, err)
	}
	if got, ok := store.Get("123456"); !ok || got != room {
		t.Fatalf("expected original room to be kept")
	}
	if n := len(store.List()); n != 1 {
		t.Fatalf("expected 1 room, got %d", n)
	}

	store.Delete(ctx, "123456")
	if _, ok := store.Get("123456"); ok {
		t.Fatalf("expected room removed")
	}
}
