package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/config"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/infra/memory"
	"live-quiz-service/internal/infra/postgres"
	"live-quiz-service/internal/infra/rabbit"
	redisstore "live-quiz-service/internal/infra/redis"
	"live-quiz-service/internal/infra/sqlite"
	"live-quiz-service/internal/logging"
	transport "live-quiz-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func newLogger(cfg config.Config) *slog.Logger {
	return logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
}

// closers accumulates cleanup for everything opened during startup.
type closers []func()

func (c *closers) add(fn func()) { *c = append(*c, fn) }

func (c closers) run() {
	for i := len(c) - 1; i >= 0; i-- {
		c[i]()
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	var cleanup closers
	defer cleanup.run()

	if cfg.Postgres.URL != "" {
		if err := runMigrations(ctx, cfg, logger); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		cleanup.add(func() { _ = redisClient.Close() })
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		cleanup.add(pool.Close)
	}

	var sqliteStore *sqlite.Store
	if cfg.SQLite.Path != "" {
		sqliteStore, err = sqlite.Open(ctx, cfg.SQLite.Path)
		if err != nil {
			return err
		}
		cleanup.add(func() { _ = sqliteStore.Close() })
	}

	var loader memory.QuizLoader = memory.NewStaticQuizLoader(quizIndex(sampleQuizzes()))
	switch {
	case pool != nil:
		loader = postgres.NewQuizLoader(pool)
	case sqliteStore != nil:
		loader = sqliteStore
	default:
		logger.Warn("no quiz store configured, serving bundled sample quizzes")
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var quizRepo app.QuizRepository
	if redisClient != nil {
		cacheTTL := config.TTLDuration(cfg.Redis.TTL, quizTTL)
		quizRepo = redisstore.NewQuizRepository(redisClient, loader, cacheTTL, logger)
	} else {
		quizRepo = memory.NewQuizRepository(loader, quizTTL)
	}

	var rooms app.RoomRepository
	if redisClient != nil {
		roomTTL := config.TTLDuration(cfg.Game.RoomTTL, 12*time.Hour)
		rooms = redisstore.NewRoomStore(redisClient, roomTTL, instanceID(), logger)
	} else {
		rooms = memory.NewRoomStore()
	}

	sink, err := buildAuditSink(cfg, pool != nil, sqliteStore, logger, &cleanup)
	if err != nil {
		return err
	}
	worker := app.NewAuditWorker(sink, cfg.Audit.Buffer, logger)

	hub := transport.NewHub(cfg.Game.SendBuffer, logger)
	service := app.NewQuizService(rooms, quizRepo,
		app.WithTransport(hub),
		app.WithAudit(worker),
		app.WithLogger(logger),
	)
	auth := transport.NewAuthenticator(cfg.Auth.JWTSecret)
	if cfg.Auth.JWTSecret == "" {
		logger.Warn("auth.jwt_secret is empty, trusting the " + transport.InstructorHeader + " header")
	}
	wsHandler := transport.NewWSHandler(service, hub, auth, cfg.Server.AllowedOrigins, logger)

	server := &http.Server{
		Addr:              ":" + finalPort,
		Handler:           transport.NewRouter(service, wsHandler, auth, logger),
		ReadHeaderTimeout: 15 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return worker.Run(gctx)
	})
	g.Go(func() error {
		logger.Info("starting quiz service", "port", finalPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")
		timeout := config.TTLDuration(cfg.Server.ShutdownTimeout, 5*time.Second)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// buildAuditSink assembles the configured audit destinations. Postgres audit goes through
// bun on its own connection; the pgx pool only serves quiz reads.
func buildAuditSink(cfg config.Config, havePostgres bool, store *sqlite.Store, logger *slog.Logger, cleanup *closers) (app.AuditSink, error) {
	var sinks app.MultiSink
	for _, name := range cfg.Audit.Sinks {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "", "none":
		case "log":
			sinks = append(sinks, app.LogSink{Logger: logger.With("component", "audit")})
		case "postgres":
			if !havePostgres {
				return nil, fmt.Errorf("audit sink postgres requires postgres.url")
			}
			db, err := openBun(cfg)
			if err != nil {
				return nil, err
			}
			cleanup.add(func() { _ = db.Close() })
			sinks = append(sinks, postgres.NewAuditStore(db))
		case "sqlite":
			if store == nil {
				return nil, fmt.Errorf("audit sink sqlite requires sqlite.path")
			}
			sinks = append(sinks, store)
		case "rabbitmq":
			if cfg.RabbitMQ.URL == "" {
				return nil, fmt.Errorf("audit sink rabbitmq requires rabbitmq.url")
			}
			pub, err := rabbit.Dial(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
			if err != nil {
				return nil, err
			}
			cleanup.add(func() { _ = pub.Close() })
			sinks = append(sinks, pub)
		default:
			return nil, fmt.Errorf("unknown audit sink %q", name)
		}
	}
	return sinks, nil
}

// instanceID tags room codes claimed in Redis by this process.
func instanceID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "quiz"
	}
	return host + "-" + uuid.NewString()[:8]
}

func quizIndex(quizzes []domain.Quiz) map[string]domain.Quiz {
	index := make(map[string]domain.Quiz, len(quizzes))
	for _, quiz := range quizzes {
		index[quiz.ID] = quiz
	}
	return index
}
