package app

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/grading"
)

// Room is the in-memory state machine of one live quiz.
// Transition methods are unexported, assume r.mu is held, and never perform I/O;
// they return Effects for QuizService to deliver.
type Room struct {
	code         string
	quizID       string
	quizTitle    string
	instructorID string
	createdAt    time.Time
	now          func() time.Time

	mu                sync.Mutex
	status            domain.RoomStatus
	finished          bool
	closed            bool
	questions         []domain.Question
	index             int
	questionStartedAt time.Time
	participants      []*participant
	byName            map[string]*participant
}

type participant struct {
	name      string
	score     int
	conn      domain.ConnID
	connected bool
	slot      *answerSlot // nil until the current question is answered
}

type answerSlot struct {
	raw    json.RawMessage
	result domain.AnswerResult
}

// NewRoom builds a waiting room for quiz, owned by instructorID.
func NewRoom(code, instructorID string, quiz domain.Quiz, now func() time.Time) *Room {
	if now == nil {
		now = time.Now
	}
	return &Room{
		code:         code,
		quizID:       quiz.ID,
		quizTitle:    quiz.Title,
		instructorID: instructorID,
		createdAt:    now(),
		now:          now,
		status:       domain.StatusWaiting,
		index:        -1,
		byName:       make(map[string]*participant),
	}
}

// Code returns the room code.
func (r *Room) Code() string { return r.code }

// QuizID returns the backing quiz identifier.
func (r *Room) QuizID() string { return r.quizID }

// InstructorID returns the owning instructor.
func (r *Room) InstructorID() string { return r.instructorID }

func (r *Room) opened() Effects {
	var eff Effects
	eff.record(domain.SessionRecord{
		Code:         r.code,
		QuizID:       r.quizID,
		InstructorID: r.instructorID,
		CreatedAt:    r.createdAt,
	})
	return eff
}

func (r *Room) host(conn domain.ConnID) Effects {
	var eff Effects
	eff.unicast(conn, domain.EventRosterUpdate, r.roster(true))
	return eff
}

// join adds a participant or re-binds an existing one. Score and answer state survive a re-join.
func (r *Room) join(name string, conn domain.ConnID) (Effects, error) {
	var eff Effects
	if name == "" {
		return eff, domain.ErrNameRequired
	}
	p, ok := r.byName[name]
	if !ok {
		p = &participant{name: name}
		r.participants = append(r.participants, p)
		r.byName[name] = p
	}
	p.conn = conn
	p.connected = true

	eff.unicast(conn, domain.EventRosterUpdate, r.roster(false))
	eff.broadcast(domain.EventLeaderboardUpdate, r.leaderboard(true))
	eff.broadcast(domain.EventRosterUpdate, r.roster(true))
	return eff, nil
}

// rejoin re-binds a known participant and reports whether one was found. It never broadcasts.
func (r *Room) rejoin(name string, conn domain.ConnID) bool {
	p, ok := r.byName[name]
	if !ok {
		return false
	}
	p.conn = conn
	p.connected = true
	return true
}

func (r *Room) start(questions []domain.Question) (Effects, error) {
	var eff Effects
	if r.status != domain.StatusWaiting {
		return eff, domain.ErrInvalidTransition
	}
	if len(questions) == 0 {
		return eff, domain.ErrNoQuestions
	}
	r.questions = append([]domain.Question(nil), questions...)
	r.status = domain.StatusActive
	r.index = -1

	eff.broadcast(domain.EventQuizStarted, domain.QuizStarted{TotalQuestions: len(r.questions)})
	eff.record(domain.StatusRecord{Code: r.code, Status: domain.StatusActive, At: r.now()})
	return eff, nil
}

// advance opens the next question, or finishes the quiz when none is left.
func (r *Room) advance() (Effects, error) {
	var eff Effects
	if r.status != domain.StatusActive {
		return eff, domain.ErrInvalidTransition
	}
	if r.index < len(r.questions) {
		r.index++
	}
	if r.index >= len(r.questions) {
		r.finished = true
		eff.broadcast(domain.EventQuizEnded, domain.QuizEnded{Leaderboard: r.leaderboard(false)})
		return eff, nil
	}

	for _, p := range r.participants {
		p.slot = nil
	}
	r.questionStartedAt = r.now()
	eff.broadcast(domain.EventNewQuestion, r.questions[r.index].Public(r.index, len(r.questions)))
	return eff, nil
}

// currentQuestion re-sends the open question to one connection, plus the stored result
// when the named participant already answered it.
func (r *Room) currentQuestion(conn domain.ConnID, name string) Effects {
	var eff Effects
	q, ok := r.current()
	if !ok {
		return eff
	}
	eff.unicast(conn, domain.EventNewQuestion, q.Public(r.index, len(r.questions)))
	if p, ok := r.byName[name]; ok && p.slot != nil {
		result := p.slot.result
		result.TotalScore = p.score
		result.Redelivered = true
		eff.unicast(conn, domain.EventAnswerResult, result)
	}
	return eff
}

// submit grades and scores the first answer of a participant for the open question.
// The participant is looked up by name, then by fallback (the connection's bound name).
func (r *Room) submit(name, fallback string, conn domain.ConnID, raw json.RawMessage) (Effects, error) {
	var eff Effects
	q, ok := r.current()
	if !ok {
		return eff, domain.ErrNoActiveQuestion
	}
	p := r.resolve(name, fallback)
	if p == nil {
		return eff, domain.ErrParticipantNotFound
	}
	if p.slot != nil {
		return eff, domain.ErrDuplicateSubmission
	}

	answeredAt := r.now()
	elapsed := answeredAt.Sub(r.questionStartedAt)
	graded := grading.Grade(q, raw)
	points := grading.Score(graded.Multiplier, elapsed, q.Limit())
	p.score += points

	stored := json.RawMessage("null")
	if json.Valid(raw) {
		stored = append(json.RawMessage(nil), raw...)
	}
	result := domain.AnswerResult{
		QuestionID:    q.ID,
		Correct:       graded.Correct,
		Points:        points,
		TotalScore:    p.score,
		CorrectAnswer: q.Answer,
		StudentAnswer: stored,
		Explanation:   q.Explanation,
		Partial:       graded.Partial(),
	}
	p.slot = &answerSlot{raw: stored, result: result}

	eff.unicast(conn, domain.EventAnswerResult, result)
	eff.broadcast(domain.EventLeaderboardUpdate, r.leaderboard(true))
	eff.record(domain.ResponseRecord{
		Code:         r.code,
		Participant:  p.name,
		QuestionID:   q.ID,
		Answer:       stored,
		Correct:      graded.Correct,
		Points:       points,
		ResponseTime: elapsed,
		AnsweredAt:   answeredAt,
	})
	if r.allAnswered() {
		eff.broadcast(domain.EventQuestionResults, r.questionResults(q))
	}
	return eff, graded.Err
}

func (r *Room) results() (Effects, error) {
	var eff Effects
	q, ok := r.current()
	if !ok {
		return eff, domain.ErrNoActiveQuestion
	}
	eff.broadcast(domain.EventQuestionResults, r.questionResults(q))
	return eff, nil
}

// end closes the room for good. It is accepted from any status, so a lobby that never
// started moves from waiting straight to completed.
func (r *Room) end() Effects {
	var eff Effects
	eff.broadcast(domain.EventQuizEnded, domain.QuizEnded{Leaderboard: r.leaderboard(false)})
	r.status = domain.StatusCompleted
	r.closed = true
	eff.record(domain.StatusRecord{Code: r.code, Status: domain.StatusCompleted, At: r.now()})
	return eff
}

// disconnect marks a participant offline if conn is still its live connection.
func (r *Room) disconnect(name string, conn domain.ConnID) Effects {
	var eff Effects
	p, ok := r.byName[name]
	if !ok || p.conn != conn {
		return eff
	}
	p.conn = ""
	p.connected = false
	eff.broadcast(domain.EventParticipantStatus, domain.ParticipantStatus{
		Name:              p.name,
		Status:            "disconnected",
		TotalParticipants: len(r.participants),
	})
	return eff
}

func (r *Room) summary() domain.RoomSummary {
	number := 0
	if r.index >= 0 {
		number = min(r.index+1, len(r.questions))
	}
	return domain.RoomSummary{
		Code:           r.code,
		QuizID:         r.quizID,
		QuizTitle:      r.quizTitle,
		InstructorID:   r.instructorID,
		Status:         r.status,
		Finished:       r.finished,
		Participants:   len(r.participants),
		QuestionNumber: number,
		TotalQuestions: len(r.questions),
		CreatedAt:      r.createdAt,
	}
}

func (r *Room) current() (domain.Question, bool) {
	if r.status != domain.StatusActive || r.index < 0 || r.index >= len(r.questions) {
		return domain.Question{}, false
	}
	return r.questions[r.index], true
}

func (r *Room) resolve(name, fallback string) *participant {
	if p, ok := r.byName[name]; ok {
		return p
	}
	if p, ok := r.byName[fallback]; ok {
		return p
	}
	return nil
}

// allAnswered is slot-based: offline participants without an answer keep the question open.
func (r *Room) allAnswered() bool {
	if len(r.participants) == 0 {
		return false
	}
	for _, p := range r.participants {
		if p.slot == nil {
			return false
		}
	}
	return true
}

func (r *Room) questionResults(q domain.Question) domain.QuestionResults {
	stats := domain.QuestionStats{Total: len(r.participants)}
	for _, p := range r.participants {
		if p.slot != nil && p.slot.result.Correct {
			stats.Correct++
		}
	}
	number := r.index + 1
	return domain.QuestionResults{
		QuestionNumber:  number,
		Leaderboard:     r.leaderboard(true),
		CorrectAnswer:   q.Answer,
		Explanation:     q.Explanation,
		Stats:           stats,
		ShowLeaderboard: number%5 == 0,
	}
}

// leaderboard orders by score, highest first; ties keep join order.
func (r *Room) leaderboard(withAnswered bool) []domain.LeaderboardEntry {
	entries := r.entries(withAnswered)
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})
	return entries
}

func (r *Room) roster(sorted bool) domain.RosterUpdate {
	entries := r.entries(true)
	if sorted {
		entries = r.leaderboard(true)
	}
	return domain.RosterUpdate{TotalParticipants: len(r.participants), Participants: entries}
}

func (r *Room) entries(withAnswered bool) []domain.LeaderboardEntry {
	entries := make([]domain.LeaderboardEntry, 0, len(r.participants))
	for _, p := range r.participants {
		entries = append(entries, domain.LeaderboardEntry{
			Name:        p.name,
			Score:       p.score,
			HasAnswered: withAnswered && p.slot != nil,
		})
	}
	return entries
}
