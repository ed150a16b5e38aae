package domain

import "encoding/json"

// EventType names an outbound event.
type EventType string

const (
	EventRoomCreated       EventType = "room-created"
	EventRosterUpdate      EventType = "roster-update"
	EventQuizStarted       EventType = "quiz-started"
	EventNewQuestion       EventType = "new-question"
	EventAnswerResult      EventType = "answer-result"
	EventLeaderboardUpdate EventType = "leaderboard-update"
	EventQuestionResults   EventType = "question-results"
	EventQuizEnded         EventType = "quiz-ended"
	EventParticipantStatus EventType = "participant-status"
	EventError             EventType = "error"
)

// Event is a transport-agnostic outbound message.
type Event struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload"`
}

// RoomCreated acknowledges room creation to the instructor.
type RoomCreated struct {
	Code   string `json:"gameCode"`
	QuizID string `json:"quizId"`
}

// RosterUpdate lists the participants of a room.
type RosterUpdate struct {
	TotalParticipants int                `json:"totalParticipants"`
	Participants      []LeaderboardEntry `json:"participants"`
}

// QuizStarted announces the question count.
type QuizStarted struct {
	TotalQuestions int `json:"totalQuestions"`
}

// NewQuestion is the client-facing form of a question.
type NewQuestion struct {
	QuestionNumber int      `json:"questionNumber"`
	TotalQuestions int      `json:"totalQuestions"`
	ID             string   `json:"id"`
	Text           string   `json:"question_text"`
	Kind           Kind     `json:"question_type"`
	Options        []string `json:"options"`
	ImageURL       string   `json:"image_url,omitempty"`
	TimeLimit      int      `json:"time_limit"`
}

// AnswerResult is the private outcome of one submission.
type AnswerResult struct {
	QuestionID    string          `json:"questionId"`
	Correct       bool            `json:"isCorrect"`
	Points        int             `json:"points"`
	TotalScore    int             `json:"totalScore"`
	CorrectAnswer StoredAnswer    `json:"correctAnswer"`
	StudentAnswer json.RawMessage `json:"studentAnswer"`
	Explanation   string          `json:"explanation"`
	Partial       bool            `json:"partial"`
	Redelivered   bool            `json:"redelivered,omitempty"`
}

// QuestionStats counts fully correct answers against the room's participant count.
type QuestionStats struct {
	Correct int `json:"correct"`
	Total   int `json:"total"`
}

// QuestionResults closes a question for the whole room.
type QuestionResults struct {
	QuestionNumber  int                `json:"questionNumber"`
	Leaderboard     []LeaderboardEntry `json:"leaderboard"`
	CorrectAnswer   StoredAnswer       `json:"correctAnswer"`
	Explanation     string             `json:"explanation"`
	Stats           QuestionStats      `json:"stats"`
	ShowLeaderboard bool               `json:"showLeaderboard"`
}

// QuizEnded carries the final leaderboard.
type QuizEnded struct {
	Leaderboard []LeaderboardEntry `json:"leaderboard"`
}

// ParticipantStatus reports a connectivity change of a participant.
type ParticipantStatus struct {
	Name              string `json:"name"`
	Status            string `json:"status"`
	TotalParticipants int    `json:"totalParticipants"`
}

// ErrorPayload reports a failed inbound event to its sender.
type ErrorPayload struct {
	Event   string `json:"event,omitempty"`
	Message string `json:"message"`
}
