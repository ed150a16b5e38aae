package rabbit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"live-quiz-service/internal/domain"
)

// DefaultExchange is the topic exchange room events are published to.
const DefaultExchange = "session.events"

// Routing keys, one per audit record kind. Status changes append the new status,
// e.g. session.status.active.
const (
	RoutingSessionCreated = "session.created"
	RoutingSessionStatus  = "session.status"
	RoutingResponse       = "response.recorded"
)

// Publisher mirrors the audit trail onto RabbitMQ so downstream services (analytics,
// leaderboards) can follow rooms. It implements app.AuditSink.
type Publisher struct {
	conn     *amqp.Connection
	exchange string

	mu sync.Mutex
	ch *amqp.Channel
}

// Dial connects to url and declares a durable topic exchange.
func Dial(url, exchange string) (*Publisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	err = ch.ExchangeDeclare(
		exchange,
		amqp.ExchangeTopic,
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &Publisher{conn: conn, ch: ch, exchange: exchange}, nil
}

func (p *Publisher) Close() error {
	return p.conn.Close()
}

func (p *Publisher) RecordSessionCreated(ctx context.Context, rec domain.SessionRecord) error {
	return p.publish(ctx, rec)
}

func (p *Publisher) RecordSessionStatus(ctx context.Context, rec domain.StatusRecord) error {
	return p.publish(ctx, rec)
}

func (p *Publisher) RecordResponse(ctx context.Context, rec domain.ResponseRecord) error {
	return p.publish(ctx, rec)
}

func (p *Publisher) publish(ctx context.Context, rec domain.AuditRecord) error {
	key, body, err := Encode(rec)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.ch.PublishWithContext(ctx, p.exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", key, err)
	}
	return nil
}

type sessionCreatedMessage struct {
	GameCode     string    `json:"gameCode"`
	QuizID       string    `json:"quizId"`
	InstructorID string    `json:"instructorId"`
	CreatedAt    time.Time `json:"createdAt"`
}

type sessionStatusMessage struct {
	GameCode string            `json:"gameCode"`
	Status   domain.RoomStatus `json:"status"`
	At       time.Time         `json:"at"`
}

type responseMessage struct {
	GameCode       string          `json:"gameCode"`
	StudentName    string          `json:"studentName"`
	QuestionID     string          `json:"questionId"`
	Answer         json.RawMessage `json:"answer"`
	IsCorrect      bool            `json:"isCorrect"`
	Points         int             `json:"points"`
	ResponseTimeMS int64           `json:"responseTimeMs"`
	AnsweredAt     time.Time       `json:"answeredAt"`
}

// Encode maps a record to its routing key and JSON body.
func Encode(rec domain.AuditRecord) (string, []byte, error) {
	var (
		key string
		msg any
	)
	switch r := rec.(type) {
	case domain.SessionRecord:
		key = RoutingSessionCreated
		msg = sessionCreatedMessage{GameCode: r.Code, QuizID: r.QuizID, InstructorID: r.InstructorID, CreatedAt: r.CreatedAt}
	case domain.StatusRecord:
		key = RoutingSessionStatus + "." + string(r.Status)
		msg = sessionStatusMessage{GameCode: r.Code, Status: r.Status, At: r.At}
	case domain.ResponseRecord:
		answer := r.Answer
		if len(answer) == 0 {
			answer = json.RawMessage("null")
		}
		key = RoutingResponse
		msg = responseMessage{
			GameCode:       r.Code,
			StudentName:    r.Participant,
			QuestionID:     r.QuestionID,
			Answer:         answer,
			IsCorrect:      r.Correct,
			Points:         r.Points,
			ResponseTimeMS: r.ResponseTime.Milliseconds(),
			AnsweredAt:     r.AnsweredAt,
		}
	default:
		return "", nil, fmt.Errorf("unsupported audit record %T", rec)
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return "", nil, fmt.Errorf("encode %s: %w", key, err)
	}
	return key, body, nil
}
