package domain

import (
	"encoding/json"
	"time"
)

// RoomStatus is the lifecycle status of a room.
type RoomStatus string

const (
	StatusWaiting   RoomStatus = "waiting"
	StatusActive    RoomStatus = "active"
	StatusCompleted RoomStatus = "completed"
)

// Role distinguishes the two kinds of connection bound to a room.
type Role string

const (
	RoleInstructor  Role = "instructor"
	RoleParticipant Role = "participant"
)

// Actor is the pre-authenticated caller identity supplied by the transport layer.
type Actor struct {
	ID         string
	Instructor bool
}

// ConnID identifies one live client connection.
type ConnID string

// LeaderboardEntry is a snapshot-friendly view of a participant.
type LeaderboardEntry struct {
	Name        string `json:"name"`
	Score       int    `json:"score"`
	HasAnswered bool   `json:"hasAnswered"`
}

// RoomSummary describes an active room for the instructor's session listing.
type RoomSummary struct {
	Code           string     `json:"gameCode"`
	QuizID         string     `json:"quizId"`
	QuizTitle      string     `json:"quizTitle"`
	InstructorID   string     `json:"instructorId"`
	Status         RoomStatus `json:"status"`
	Finished       bool       `json:"finished"`
	Participants   int        `json:"participants"`
	QuestionNumber int        `json:"questionNumber"`
	TotalQuestions int        `json:"totalQuestions"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// AuditRecord is one best-effort persistence side effect of a room transition.
type AuditRecord interface {
	auditRecord()
}

// SessionRecord is emitted once when a room is created.
type SessionRecord struct {
	Code         string
	QuizID       string
	InstructorID string
	CreatedAt    time.Time
}

// StatusRecord mirrors a room lifecycle change.
type StatusRecord struct {
	Code   string
	Status RoomStatus
	At     time.Time
}

// ResponseRecord is emitted for every scored submission.
type ResponseRecord struct {
	Code         string
	Participant  string
	QuestionID   string
	Answer       json.RawMessage
	Correct      bool
	Points       int
	ResponseTime time.Duration
	AnsweredAt   time.Time
}

func (SessionRecord) auditRecord()  {}
func (StatusRecord) auditRecord()   {}
func (ResponseRecord) auditRecord() {}
