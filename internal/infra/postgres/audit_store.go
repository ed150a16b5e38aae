package postgres

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"live-quiz-service/internal/domain"
)

// AuditStore writes session and response history through bun. It implements app.AuditSink.
type AuditStore struct {
	db *bun.DB
}

func NewAuditStore(db *bun.DB) *AuditStore {
	return &AuditStore{db: db}
}

func (s *AuditStore) RecordSessionCreated(ctx context.Context, rec domain.SessionRecord) error {
	row := &sessionRow{
		QuizID:       rec.QuizID,
		GameCode:     rec.Code,
		InstructorID: rec.InstructorID,
		Status:       string(domain.StatusWaiting),
		CreatedAt:    rec.CreatedAt,
	}
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("insert session %s: %w", rec.Code, err)
	}
	return nil
}

// RecordSessionStatus updates the open session holding the code; codes are reused after a room ends.
func (s *AuditStore) RecordSessionStatus(ctx context.Context, rec domain.StatusRecord) error {
	if _, err := s.statusUpdate(rec).Exec(ctx); err != nil {
		return fmt.Errorf("update session %s: %w", rec.Code, err)
	}
	return nil
}

func (s *AuditStore) statusUpdate(rec domain.StatusRecord) *bun.UpdateQuery {
	q := s.db.NewUpdate().
		Model((*sessionRow)(nil)).
		Set("status = ?", string(rec.Status)).
		Where("game_code = ?", rec.Code).
		Where("status <> ?", string(domain.StatusCompleted))
	switch rec.Status {
	case domain.StatusActive:
		q = q.Set("started_at = ?", rec.At)
	case domain.StatusCompleted:
		q = q.Set("ended_at = ?", rec.At)
	}
	return q
}

func (s *AuditStore) RecordResponse(ctx context.Context, rec domain.ResponseRecord) error {
	if _, err := s.responseInsert(rec).Exec(ctx); err != nil {
		return fmt.Errorf("insert response for %s: %w", rec.Code, err)
	}
	return nil
}

// responseInsert links the row to the open session holding the code.
func (s *AuditStore) responseInsert(rec domain.ResponseRecord) *bun.InsertQuery {
	row := &responseRow{
		GameCode:       rec.Code,
		StudentName:    rec.Participant,
		QuestionID:     rec.QuestionID,
		Answer:         string(rec.Answer),
		IsCorrect:      rec.Correct,
		ResponseTimeMS: rec.ResponseTime.Milliseconds(),
		Points:         rec.Points,
		AnsweredAt:     rec.AnsweredAt,
	}
	session := s.db.NewSelect().
		Model((*sessionRow)(nil)).
		Column("id").
		Where("game_code = ?", rec.Code).
		Where("status <> ?", string(domain.StatusCompleted)).
		OrderExpr("id DESC").
		Limit(1)
	return s.db.NewInsert().Model(row).Value("session_id", "(?)", session)
}

// SessionResponses lists, in answer order, the responses of the most recent session
// that used the code. Earlier sessions that shared the code are left out.
func (s *AuditStore) SessionResponses(ctx context.Context, code string) ([]domain.ResponseRecord, error) {
	var rows []responseRow
	if err := s.responsesQuery(code, &rows).Scan(ctx); err != nil {
		return nil, fmt.Errorf("select responses for %s: %w", code, err)
	}
	return responseRecords(rows), nil
}

func (s *AuditStore) responsesQuery(code string, rows *[]responseRow) *bun.SelectQuery {
	latest := s.db.NewSelect().
		Model((*sessionRow)(nil)).
		Column("id").
		Where("game_code = ?", code).
		OrderExpr("id DESC").
		Limit(1)
	return s.db.NewSelect().
		Model(rows).
		Where("session_id = (?)", latest).
		OrderExpr("answered_at, id")
}

func responseRecords(rows []responseRow) []domain.ResponseRecord {
	out := make([]domain.ResponseRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.ResponseRecord{
			Code:         row.GameCode,
			Participant:  row.StudentName,
			QuestionID:   row.QuestionID,
			Answer:       []byte(row.Answer),
			Correct:      row.IsCorrect,
			Points:       row.Points,
			ResponseTime: msDuration(row.ResponseTimeMS),
			AnsweredAt:   row.AnsweredAt,
		})
	}
	return out
}
