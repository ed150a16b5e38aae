package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"live-quiz-service/internal/domain"
)

// SeedQuizzes upserts quizzes and replaces their questions, one transaction per quiz.
func SeedQuizzes(ctx context.Context, db *bun.DB, quizzes []domain.Quiz) error {
	for _, quiz := range quizzes {
		err := db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			row := &quizRow{ID: quiz.ID, Title: quiz.Title}
			if _, err := tx.NewInsert().Model(row).
				On("CONFLICT (id) DO UPDATE").
				Set("title = EXCLUDED.title").
				Exec(ctx); err != nil {
				return err
			}
			if _, err := tx.NewDelete().Model((*questionRow)(nil)).Where("quiz_id = ?", quiz.ID).Exec(ctx); err != nil {
				return err
			}
			if len(quiz.Questions) == 0 {
				return nil
			}
			rows := make([]questionRow, 0, len(quiz.Questions))
			for i, q := range quiz.Questions {
				rows = append(rows, questionRow{
					ID:               q.ID,
					QuizID:           quiz.ID,
					Position:         i,
					Kind:             string(q.Kind),
					Text:             q.Text,
					Options:          q.Options,
					CorrectAnswer:    string(q.Answer),
					Explanation:      q.Explanation,
					ImageURL:         q.ImageURL,
					TimeLimitSeconds: q.TimeLimit,
				})
			}
			_, err := tx.NewInsert().Model(&rows).Exec(ctx)
			return err
		})
		if err != nil {
			return fmt.Errorf("seed quiz %s: %w", quiz.ID, err)
		}
	}
	return nil
}

func msDuration(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
