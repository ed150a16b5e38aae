package migrations

import (
	"context"
	_ "embed"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

var (
	//go:embed 0001_create_quizzes.sql
	createQuizzesSQL string
	//go:embed 0002_create_sessions.sql
	createSessionsSQL string
	//go:embed 0003_link_responses_to_sessions.sql
	linkResponsesSQL string
)

// Migrations holds the Postgres schema in apply order.
var Migrations = migrate.NewMigrations()

func init() {
	steps := []struct {
		name string
		up   string
		down string
	}{
		{"2024112201", createQuizzesSQL, `DROP TABLE IF EXISTS questions; DROP TABLE IF EXISTS quizzes`},
		{"2024112202", createSessionsSQL, `DROP TABLE IF EXISTS student_responses; DROP TABLE IF EXISTS quiz_sessions`},
		{"2024120301", linkResponsesSQL, `ALTER TABLE student_responses DROP COLUMN IF EXISTS session_id`},
	}
	for _, step := range steps {
		up, down := step.up, step.down
		Migrations.Add(migrate.Migration{
			Name: step.name,
			Up:   exec(up),
			Down: exec(down),
		})
	}
}

func exec(query string) migrate.MigrationFunc {
	return func(ctx context.Context, db *bun.DB) error {
		_, err := db.ExecContext(ctx, query)
		return err
	}
}
