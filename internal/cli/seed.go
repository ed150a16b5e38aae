package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"live-quiz-service/internal/config"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/infra/postgres"
	redisstore "live-quiz-service/internal/infra/redis"
	"live-quiz-service/internal/infra/sqlite"
)

// NewSeedCmd loads the bundled sample quizzes into every configured quiz store.
func NewSeedCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert the sample quizzes into Postgres and/or SQLite",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			return runSeed(cmd.Context(), cfg)
		},
	}
}

func runSeed(ctx context.Context, cfg config.Config) error {
	logger := newLogger(cfg)
	quizzes := sampleQuizzes()
	seeded := false

	if cfg.Postgres.URL != "" {
		if err := runMigrations(ctx, cfg, logger); err != nil {
			return err
		}
		db, err := openBun(cfg)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := postgres.SeedQuizzes(ctx, db, quizzes); err != nil {
			return err
		}
		logger.Info("seeded postgres", "quizzes", len(quizzes))
		seeded = true
	}
	if cfg.SQLite.Path != "" {
		store, err := sqlite.Open(ctx, cfg.SQLite.Path)
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.SeedQuizzes(ctx, quizzes); err != nil {
			return err
		}
		logger.Info("seeded sqlite", "path", cfg.SQLite.Path, "quizzes", len(quizzes))
		seeded = true
	}
	if !seeded {
		return fmt.Errorf("no quiz store configured: set postgres.url or sqlite.path")
	}
	if cfg.Redis.Addr != "" {
		return invalidateCachedQuizzes(ctx, cfg, quizzes, logger)
	}
	return nil
}

// invalidateCachedQuizzes drops stale copies so running servers pick up the seeded questions.
func invalidateCachedQuizzes(ctx context.Context, cfg config.Config, quizzes []domain.Quiz, logger *slog.Logger) error {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer client.Close()

	cache := redisstore.NewQuizRepository(client, nil, 0, logger)
	for _, quiz := range quizzes {
		if err := cache.Invalidate(ctx, quiz.ID); err != nil {
			return fmt.Errorf("invalidate cached quiz %s: %w", quiz.ID, err)
		}
	}
	logger.Info("cleared cached quizzes", "quizzes", len(quizzes))
	return nil
}

// sampleQuizzes is the bundled Module 13 avionics quiz, also served when no store is configured.
func sampleQuizzes() []domain.Quiz {
	return []domain.Quiz{
		{
			ID:    "m13",
			Title: "Module 13: Aircraft Aerodynamic Structures and Systems",
			Questions: []domain.Question{
				{
					ID:   "m13-1",
					Kind: domain.KindSingleChoice,
					Text: "In an autopilot system, the feedback loop from the control surface to the computer is primarily used to:",
					Options: []string{
						"Prevent control surface flutter",
						"Ensure the actual position matches the commanded position",
						"Bypass the pilot commands in an emergency",
						"Monitor the hydraulic pressure in the actuator",
					},
					Answer:      "1",
					Explanation: "The feedback (or follow-up) signal ensures that the servo has moved the control surface to the specific degree commanded by the autopilot computer.",
				},
				{
					ID:   "m13-2",
					Kind: domain.KindSingleChoice,
					Text: "Which frequency range is typically used for long-distance oceanic HF communications?",
					Options: []string{
						"118.000 to 136.975 MHz",
						"2 to 30 MHz",
						"108.00 to 117.95 MHz",
						"329.15 to 335.00 MHz",
					},
					Answer:      "1",
					Explanation: "High Frequency (HF) communications operate between 2 and 30 MHz to take advantage of skywave propagation for long-range communication.",
				},
				{
					ID:   "m13-3",
					Kind: domain.KindMultipleChoice,
					Text: "An Electronic Flight Instrument System (EFIS) uses which of the following to display primary flight data?",
					Options: []string{
						"Primary Flight Display (PFD)",
						"Hydraulic Pressure Indicator",
						"Navigation Display (ND)",
						"Standby Altimeter",
					},
					Answer:      "[0,2]",
					Explanation: "EFIS typically consists of the PFD for flight parameters and the ND for navigation data.",
				},
				{
					ID:          "m13-4",
					Kind:        domain.KindTrueFalse,
					Text:        "A yaw damper acts on the rudder to suppress Dutch roll.",
					Options:     []string{"True", "False"},
					Answer:      "true",
					Explanation: "The yaw damper senses yaw rate and commands small rudder deflections to damp Dutch roll.",
				},
				{
					ID:          "m13-5",
					Kind:        domain.KindFillBlank,
					Text:        "Pitot pressure minus [blank] pressure gives [blank] pressure.",
					Answer:      `["static","dynamic"]`,
					Explanation: "Dynamic pressure is total (pitot) pressure less static pressure.",
					TimeLimit:   90,
				},
			},
		},
	}
}
