package postgres

import (
	"time"

	"github.com/uptrace/bun"
)

type quizRow struct {
	bun.BaseModel `bun:"table:quizzes"`

	ID               string    `bun:"id,pk"`
	Title            string    `bun:"title,notnull"`
	Description      string    `bun:"description,nullzero"`
	TimeLimitSeconds int       `bun:"time_limit_seconds,nullzero"`
	CreatedBy        string    `bun:"created_by,nullzero"`
	CreatedAt        time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type questionRow struct {
	bun.BaseModel `bun:"table:questions"`

	ID               string   `bun:"id,pk"`
	QuizID           string   `bun:"quiz_id,pk"`
	Position         int      `bun:"position,notnull"`
	Kind             string   `bun:"kind,notnull"`
	Text             string   `bun:"text,notnull"`
	Options          []string `bun:"options,type:jsonb"`
	CorrectAnswer    string   `bun:"correct_answer,notnull"`
	Explanation      string   `bun:"explanation,nullzero"`
	ImageURL         string   `bun:"image_url,nullzero"`
	TimeLimitSeconds int      `bun:"time_limit_seconds,nullzero"`
	Difficulty       string   `bun:"difficulty,nullzero"`
}

type sessionRow struct {
	bun.BaseModel `bun:"table:quiz_sessions"`

	ID           int64        `bun:"id,pk,autoincrement"`
	QuizID       string       `bun:"quiz_id"`
	GameCode     string       `bun:"game_code,notnull"`
	InstructorID string       `bun:"instructor_id"`
	Status       string       `bun:"status,notnull"`
	CreatedAt    time.Time    `bun:"created_at,notnull"`
	StartedAt    bun.NullTime `bun:"started_at"`
	EndedAt      bun.NullTime `bun:"ended_at"`
}

type responseRow struct {
	bun.BaseModel `bun:"table:student_responses"`

	ID             int64     `bun:"id,pk,autoincrement"`
	SessionID      int64     `bun:"session_id,nullzero"`
	GameCode       string    `bun:"game_code,notnull"`
	StudentName    string    `bun:"student_name,notnull"`
	QuestionID     string    `bun:"question_id"`
	Answer         string    `bun:"answer"`
	IsCorrect      bool      `bun:"is_correct,notnull"`
	ResponseTimeMS int64     `bun:"response_time_ms"`
	Points         int       `bun:"points,notnull"`
	AnsweredAt     time.Time `bun:"answered_at,notnull"`
}
