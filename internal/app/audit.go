package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"live-quiz-service/internal/domain"
)

// AuditSink persists the durable trail of a room: creation, status changes and responses.
type AuditSink interface {
	RecordSessionCreated(ctx context.Context, rec domain.SessionRecord) error
	RecordSessionStatus(ctx context.Context, rec domain.StatusRecord) error
	RecordResponse(ctx context.Context, rec domain.ResponseRecord) error
}

// AuditQueue accepts records without blocking the caller.
type AuditQueue interface {
	Enqueue(rec domain.AuditRecord)
}

type discardAudit struct{}

func (discardAudit) Enqueue(domain.AuditRecord) {}

// ApplyAudit routes a record to the matching sink method.
func ApplyAudit(ctx context.Context, sink AuditSink, rec domain.AuditRecord) error {
	switch r := rec.(type) {
	case domain.SessionRecord:
		return sink.RecordSessionCreated(ctx, r)
	case domain.StatusRecord:
		return sink.RecordSessionStatus(ctx, r)
	case domain.ResponseRecord:
		return sink.RecordResponse(ctx, r)
	default:
		return fmt.Errorf("unknown audit record %T", rec)
	}
}

// AuditWorker drains a bounded queue into a sink on its own goroutine.
// When the queue is full new records are dropped; room state never waits on storage.
type AuditWorker struct {
	sink    AuditSink
	queue   chan domain.AuditRecord
	timeout time.Duration
	logger  *slog.Logger
}

func NewAuditWorker(sink AuditSink, buffer int, logger *slog.Logger) *AuditWorker {
	if buffer <= 0 {
		buffer = 256
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditWorker{
		sink:    sink,
		queue:   make(chan domain.AuditRecord, buffer),
		timeout: 5 * time.Second,
		logger:  logger,
	}
}

func (w *AuditWorker) Enqueue(rec domain.AuditRecord) {
	select {
	case w.queue <- rec:
	default:
		w.logger.Warn("audit queue full, dropping record", "record", fmt.Sprintf("%T", rec))
	}
}

// Run writes records until ctx is cancelled, then flushes what is already queued.
func (w *AuditWorker) Run(ctx context.Context) error {
	for {
		select {
		case rec := <-w.queue:
			w.write(ctx, rec)
		case <-ctx.Done():
			w.flush()
			return nil
		}
	}
}

func (w *AuditWorker) flush() {
	for {
		select {
		case rec := <-w.queue:
			w.write(context.Background(), rec)
		default:
			return
		}
	}
}

func (w *AuditWorker) write(ctx context.Context, rec domain.AuditRecord) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.timeout)
	defer cancel()
	if err := ApplyAudit(ctx, w.sink, rec); err != nil {
		w.logger.Error("audit write failed", "record", fmt.Sprintf("%T", rec), "error", err)
	}
}

// LogSink writes audit records to the structured log.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) RecordSessionCreated(_ context.Context, rec domain.SessionRecord) error {
	s.logger().Info("session created", "code", rec.Code, "quiz_id", rec.QuizID, "instructor_id", rec.InstructorID)
	return nil
}

func (s LogSink) RecordSessionStatus(_ context.Context, rec domain.StatusRecord) error {
	s.logger().Info("session status", "code", rec.Code, "status", rec.Status)
	return nil
}

func (s LogSink) RecordResponse(_ context.Context, rec domain.ResponseRecord) error {
	s.logger().Info("response recorded",
		"code", rec.Code,
		"participant", rec.Participant,
		"question_id", rec.QuestionID,
		"correct", rec.Correct,
		"points", rec.Points,
		"response_ms", rec.ResponseTime.Milliseconds(),
	)
	return nil
}

func (s LogSink) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

// MultiSink fans each record out to every sink and joins their errors.
type MultiSink []AuditSink

func (m MultiSink) RecordSessionCreated(ctx context.Context, rec domain.SessionRecord) error {
	return m.each(ctx, rec)
}

func (m MultiSink) RecordSessionStatus(ctx context.Context, rec domain.StatusRecord) error {
	return m.each(ctx, rec)
}

func (m MultiSink) RecordResponse(ctx context.Context, rec domain.ResponseRecord) error {
	return m.each(ctx, rec)
}

func (m MultiSink) each(ctx context.Context, rec domain.AuditRecord) error {
	var errs []error
	for _, sink := range m {
		if err := ApplyAudit(ctx, sink, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
