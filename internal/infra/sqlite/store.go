package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"live-quiz-service/internal/domain"
)

//go:embed schema.sql
var schemaSQL string

// Store is a single-file quiz bank and audit trail. It serves as a memory.QuizLoader
// and an app.AuditSink for deployments without Postgres.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		path = "quiz.db"
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000; PRAGMA foreign_keys = ON;`); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	quiz := domain.Quiz{ID: quizID}
	err := s.db.QueryRowContext(ctx, `SELECT title FROM quizzes WHERE id = ?`, quizID).Scan(&quiz.Title)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, text, COALESCE(options, ''), correct_answer,
		       COALESCE(explanation, ''), COALESCE(image_url, ''), COALESCE(time_limit_seconds, 0)
		FROM questions
		WHERE quiz_id = ?
		ORDER BY position, id`, quizID)
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			q       domain.Question
			kind    string
			options string
			answer  string
		)
		if err := rows.Scan(&q.ID, &kind, &q.Text, &options, &answer, &q.Explanation, &q.ImageURL, &q.TimeLimit); err != nil {
			return domain.Quiz{}, fmt.Errorf("scan question: %w", err)
		}
		q.Kind = domain.Kind(kind)
		q.Answer = domain.StoredAnswer(answer)
		if options != "" {
			if err := json.Unmarshal([]byte(options), &q.Options); err != nil {
				return domain.Quiz{}, fmt.Errorf("question %s options: %w", q.ID, err)
			}
		}
		quiz.Questions = append(quiz.Questions, q)
	}
	if err := rows.Err(); err != nil {
		return domain.Quiz{}, fmt.Errorf("load questions: %w", err)
	}
	return quiz, nil
}

// SeedQuizzes upserts quizzes and replaces their questions.
func (s *Store) SeedQuizzes(ctx context.Context, quizzes []domain.Quiz) error {
	for _, quiz := range quizzes {
		if err := s.seedQuiz(ctx, quiz); err != nil {
			return fmt.Errorf("seed quiz %s: %w", quiz.ID, err)
		}
	}
	return nil
}

func (s *Store) seedQuiz(ctx context.Context, quiz domain.Quiz) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO quizzes (id, title) VALUES (?, ?) ON CONFLICT(id) DO UPDATE SET title = excluded.title`,
		quiz.ID, quiz.Title); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM questions WHERE quiz_id = ?`, quiz.ID); err != nil {
		return err
	}
	for i, q := range quiz.Questions {
		options, err := json.Marshal(q.Options)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO questions (id, quiz_id, position, kind, text, options, correct_answer, explanation, image_url, time_limit_seconds)
			VALUES (?, ?, ?, ?, ?, ?, ?, NULLIF(?, ''), NULLIF(?, ''), NULLIF(?, 0))`,
			q.ID, quiz.ID, i, string(q.Kind), q.Text, string(options), string(q.Answer), q.Explanation, q.ImageURL, q.TimeLimit,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) RecordSessionCreated(ctx context.Context, rec domain.SessionRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO quiz_sessions (quiz_id, game_code, instructor_id, status, created_at) VALUES (?, ?, ?, ?, ?)`,
		rec.QuizID, rec.Code, rec.InstructorID, string(domain.StatusWaiting), rec.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert session %s: %w", rec.Code, err)
	}
	return nil
}

func (s *Store) RecordSessionStatus(ctx context.Context, rec domain.StatusRecord) error {
	column := ""
	switch rec.Status {
	case domain.StatusActive:
		column = ", started_at = ?"
	case domain.StatusCompleted:
		column = ", ended_at = ?"
	}
	query := `UPDATE quiz_sessions SET status = ?` + column + ` WHERE game_code = ? AND status <> 'completed'`
	args := []any{string(rec.Status)}
	if column != "" {
		args = append(args, rec.At.UTC())
	}
	args = append(args, rec.Code)
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update session %s: %w", rec.Code, err)
	}
	return nil
}

func (s *Store) RecordResponse(ctx context.Context, rec domain.ResponseRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO student_responses (session_id, game_code, student_name, question_id, answer, is_correct, response_time_ms, points, answered_at)
		VALUES ((SELECT id FROM quiz_sessions WHERE game_code = ? AND status <> 'completed' ORDER BY id DESC LIMIT 1),
			?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Code, rec.Code, rec.Participant, rec.QuestionID, string(rec.Answer), rec.Correct,
		rec.ResponseTime.Milliseconds(), rec.Points, rec.AnsweredAt.UTC())
	if err != nil {
		return fmt.Errorf("insert response for %s: %w", rec.Code, err)
	}
	return nil
}

// SessionResponses lists, in answer order, the responses of the most recent session under code.
func (s *Store) SessionResponses(ctx context.Context, code string) ([]domain.ResponseRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT game_code, student_name, COALESCE(question_id, ''), COALESCE(answer, 'null'), is_correct,
			COALESCE(response_time_ms, 0), points, answered_at
		FROM student_responses
		WHERE session_id = (SELECT id FROM quiz_sessions WHERE game_code = ? ORDER BY id DESC LIMIT 1)
		ORDER BY answered_at, id`, code)
	if err != nil {
		return nil, fmt.Errorf("select responses for %s: %w", code, err)
	}
	defer rows.Close()

	var out []domain.ResponseRecord
	for rows.Next() {
		var (
			rec    domain.ResponseRecord
			answer string
			ms     int64
		)
		if err := rows.Scan(&rec.Code, &rec.Participant, &rec.QuestionID, &answer, &rec.Correct, &ms, &rec.Points, &rec.AnsweredAt); err != nil {
			return nil, fmt.Errorf("scan response for %s: %w", code, err)
		}
		rec.Answer = json.RawMessage(answer)
		rec.ResponseTime = time.Duration(ms) * time.Millisecond
		out = append(out, rec)
	}
	return out, rows.Err()
}

// SessionHistory is the persisted lifecycle of one room.
type SessionHistory struct {
	Code      string
	QuizID    string
	Status    domain.RoomStatus
	CreatedAt time.Time
	StartedAt *time.Time
	EndedAt   *time.Time
}

// LatestSession returns the most recent session recorded under code.
func (s *Store) LatestSession(ctx context.Context, code string) (SessionHistory, error) {
	var (
		h       SessionHistory
		status  string
		started sql.NullTime
		ended   sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT game_code, COALESCE(quiz_id, ''), status, created_at, started_at, ended_at
		FROM quiz_sessions WHERE game_code = ? ORDER BY id DESC LIMIT 1`, code).
		Scan(&h.Code, &h.QuizID, &status, &h.CreatedAt, &started, &ended)
	if errors.Is(err, sql.ErrNoRows) {
		return SessionHistory{}, domain.ErrRoomNotFound
	}
	if err != nil {
		return SessionHistory{}, fmt.Errorf("select session %s: %w", code, err)
	}
	h.Status = domain.RoomStatus(status)
	if started.Valid {
		h.StartedAt = &started.Time
	}
	if ended.Valid {
		h.EndedAt = &ended.Time
	}
	return h, nil
}
