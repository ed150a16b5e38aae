package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"strconv"
	"strings"
	"time"

	"live-quiz-service/internal/domain"
)

// RoomRepository abstracts where live rooms are registered (in-memory, Redis, etc).
type RoomRepository interface {
	// Reserve registers room under its code and reports false when the code is taken.
	Reserve(ctx context.Context, room *Room) (bool, error)
	Get(code string) (*Room, bool)
	Delete(ctx context.Context, code string)
	List() []*Room
}

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// QuizInvalidator is implemented by quiz repositories that cache content.
type QuizInvalidator interface {
	Invalidate(ctx context.Context, quizID string) error
}

const maxCodeAttempts = 64

// RandomCode returns a six digit room code.
func RandomCode() string {
	return strconv.Itoa(100000 + rand.Intn(900000))
}

// Option customises a QuizService.
type Option func(*QuizService)

// WithClock overrides time.Now, mostly for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(s *QuizService) { s.now = now }
}

// WithTransport sets where room events are delivered.
func WithTransport(t Transport) Option {
	return func(s *QuizService) { s.transport = t }
}

// WithAudit sets the queue audit records are handed to.
func WithAudit(q AuditQueue) Option {
	return func(s *QuizService) { s.audit = q }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *QuizService) { s.logger = l }
}

// WithCodeGenerator replaces RandomCode.
func WithCodeGenerator(gen func() string) Option {
	return func(s *QuizService) { s.codes = gen }
}

// QuizService contains the live quiz use cases. Every room-scoped operation runs
// under that room's lock; events are delivered in the order the room produced them.
type QuizService struct {
	rooms       RoomRepository
	quizzes     QuizRepository
	bindings    *Bindings
	broadcaster *RoomBroadcaster
	transport   Transport
	audit       AuditQueue
	now         func() time.Time
	codes       func() string
	logger      *slog.Logger
}

func NewQuizService(rooms RoomRepository, quizzes QuizRepository, opts ...Option) *QuizService {
	s := &QuizService{
		rooms:    rooms,
		quizzes:  quizzes,
		bindings: NewBindings(),
		audit:    discardAudit{},
		now:      time.Now,
		codes:    RandomCode,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.broadcaster = NewRoomBroadcaster(s.bindings, s.transport, s.logger)
	return s
}

// Bindings exposes the connection registry.
func (s *QuizService) Bindings() *Bindings { return s.bindings }

// CreateRoom opens a waiting room for an existing quiz and returns its code.
func (s *QuizService) CreateRoom(ctx context.Context, actor domain.Actor, quizID string) (string, error) {
	if !actor.Instructor {
		return "", domain.ErrForbidden
	}
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return "", err
	}

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		room := NewRoom(s.codes(), actor.ID, quiz, s.now)
		ok, err := s.rooms.Reserve(ctx, room)
		if err != nil {
			return "", fmt.Errorf("reserve room: %w", err)
		}
		if !ok {
			continue
		}
		s.dispatch(room.code, room.opened())
		s.logger.Info("room created", "code", room.code, "quiz_id", quizID, "instructor_id", actor.ID)
		return room.code, nil
	}
	return "", errors.New("no free room code")
}

// ReloadQuiz drops any cached copy of a quiz and loads it again, so edits made in the
// quiz store apply to rooms started afterwards. Rooms already started keep their questions.
func (s *QuizService) ReloadQuiz(ctx context.Context, actor domain.Actor, quizID string) (domain.Quiz, error) {
	if !actor.Instructor {
		return domain.Quiz{}, domain.ErrForbidden
	}
	if cache, ok := s.quizzes.(QuizInvalidator); ok {
		if err := cache.Invalidate(ctx, quizID); err != nil {
			return domain.Quiz{}, fmt.Errorf("invalidate quiz %s: %w", quizID, err)
		}
	}
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}
	s.logger.Info("quiz reloaded", "quiz_id", quizID, "questions", len(quiz.Questions))
	return quiz, nil
}

// HostRoom binds an instructor connection to a room and sends it the roster.
func (s *QuizService) HostRoom(_ context.Context, actor domain.Actor, code string, conn domain.ConnID) error {
	if !actor.Instructor {
		return domain.ErrForbidden
	}
	code = strings.TrimSpace(code)
	return s.withRoom(code, func(r *Room) (Effects, error) {
		s.bindings.Bind(conn, Binding{RoomCode: code, Role: domain.RoleInstructor})
		return r.host(conn), nil
	})
}

// Join adds a participant, or re-binds one with the same name, to a room.
func (s *QuizService) Join(_ context.Context, code, name string, conn domain.ConnID) error {
	code = strings.TrimSpace(code)
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.ErrNameRequired
	}
	return s.withRoom(code, func(r *Room) (Effects, error) {
		s.bindings.Bind(conn, Binding{RoomCode: code, Name: name, Role: domain.RoleParticipant})
		return r.join(name, conn)
	})
}

// Rejoin silently re-binds a known participant after a reconnect. Unknown names are ignored.
func (s *QuizService) Rejoin(_ context.Context, code, name string, conn domain.ConnID) error {
	code = strings.TrimSpace(code)
	name = strings.TrimSpace(name)
	return s.withRoom(code, func(r *Room) (Effects, error) {
		if r.rejoin(name, conn) {
			s.bindings.Bind(conn, Binding{RoomCode: code, Name: name, Role: domain.RoleParticipant})
		}
		return Effects{}, nil
	})
}

// RequestCurrentQuestion re-sends the open question, and any stored result, to conn.
func (s *QuizService) RequestCurrentQuestion(_ context.Context, code string, conn domain.ConnID) error {
	code = strings.TrimSpace(code)
	name := s.boundName(conn, code)
	return s.withRoom(code, func(r *Room) (Effects, error) {
		return r.currentQuestion(conn, name), nil
	})
}

// Start activates a waiting room. With no questions supplied the quiz is loaded from the repository.
func (s *QuizService) Start(ctx context.Context, actor domain.Actor, code string, questions []domain.Question) error {
	if !actor.Instructor {
		return domain.ErrForbidden
	}
	code = strings.TrimSpace(code)
	if len(questions) == 0 {
		room, ok := s.rooms.Get(code)
		if !ok {
			return domain.ErrRoomNotFound
		}
		quiz, err := s.quizzes.GetQuiz(ctx, room.QuizID())
		if err != nil {
			return err
		}
		questions = quiz.Questions
	}
	return s.withRoom(code, func(r *Room) (Effects, error) {
		return r.start(questions)
	})
}

// Advance moves to the next question, ending the quiz after the last one.
func (s *QuizService) Advance(_ context.Context, actor domain.Actor, code string) error {
	if !actor.Instructor {
		return domain.ErrForbidden
	}
	return s.withRoom(strings.TrimSpace(code), func(r *Room) (Effects, error) {
		return r.advance()
	})
}

// SubmitAnswer grades the first answer of a participant to the open question.
// Unknown participants, repeats and submissions with no open question are ignored.
func (s *QuizService) SubmitAnswer(_ context.Context, code, name string, conn domain.ConnID, answer json.RawMessage) error {
	code = strings.TrimSpace(code)
	name = strings.TrimSpace(name)
	fallback := s.boundName(conn, code)
	err := s.withRoom(code, func(r *Room) (Effects, error) {
		return r.submit(name, fallback, conn, answer)
	})
	switch {
	case errors.Is(err, domain.ErrParticipantNotFound),
		errors.Is(err, domain.ErrDuplicateSubmission),
		errors.Is(err, domain.ErrNoActiveQuestion),
		errors.Is(err, domain.ErrMalformedAnswer):
		s.logger.Debug("submission ignored", "code", code, "name", name, "reason", err)
		return nil
	default:
		return err
	}
}

// RequestResults broadcasts the results of the open question.
func (s *QuizService) RequestResults(_ context.Context, actor domain.Actor, code string) error {
	if !actor.Instructor {
		return domain.ErrForbidden
	}
	return s.withRoom(strings.TrimSpace(code), func(r *Room) (Effects, error) {
		return r.results()
	})
}

// End broadcasts the final leaderboard and removes the room.
func (s *QuizService) End(ctx context.Context, actor domain.Actor, code string) error {
	if !actor.Instructor {
		return domain.ErrForbidden
	}
	code = strings.TrimSpace(code)
	err := s.withRoom(code, func(r *Room) (Effects, error) {
		return r.end(), nil
	})
	if err != nil {
		return err
	}
	s.rooms.Delete(ctx, code)
	s.bindings.DropRoom(code)
	s.logger.Info("room ended", "code", code)
	return nil
}

// Disconnect forgets conn and tells the room when a participant went offline.
func (s *QuizService) Disconnect(_ context.Context, conn domain.ConnID) {
	binding, ok := s.bindings.Unbind(conn)
	if !ok || binding.Role != domain.RoleParticipant {
		return
	}
	err := s.withRoom(binding.RoomCode, func(r *Room) (Effects, error) {
		return r.disconnect(binding.Name, conn), nil
	})
	if err != nil && !errors.Is(err, domain.ErrRoomNotFound) {
		s.logger.Warn("disconnect failed", "conn", conn, "error", err)
	}
}

// ActiveRooms lists open rooms, oldest first. An empty instructorID lists every room.
func (s *QuizService) ActiveRooms(instructorID string) []domain.RoomSummary {
	rooms := s.rooms.List()
	out := make([]domain.RoomSummary, 0, len(rooms))
	for _, r := range rooms {
		if instructorID != "" && r.InstructorID() != instructorID {
			continue
		}
		r.mu.Lock()
		closed := r.closed
		summary := r.summary()
		r.mu.Unlock()
		if !closed {
			out = append(out, summary)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (s *QuizService) withRoom(code string, fn func(*Room) (Effects, error)) error {
	room, ok := s.rooms.Get(code)
	if !ok {
		return domain.ErrRoomNotFound
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	if room.closed {
		return domain.ErrRoomNotFound
	}
	eff, err := fn(room)
	s.dispatch(code, eff)
	return err
}

// dispatch runs with the room lock held so per-room event order matches transition order.
func (s *QuizService) dispatch(code string, eff Effects) {
	for _, out := range eff.Out {
		switch out.Target {
		case ToRoom:
			s.broadcaster.Publish(code, out.Event)
		case ToConn:
			s.broadcaster.Send(out.Conn, out.Event)
		}
	}
	for _, rec := range eff.Audit {
		s.audit.Enqueue(rec)
	}
}

func (s *QuizService) boundName(conn domain.ConnID, code string) string {
	binding, ok := s.bindings.Lookup(conn)
	if !ok || binding.RoomCode != code {
		return ""
	}
	return binding.Name
}
