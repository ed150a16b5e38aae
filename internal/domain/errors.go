package domain

import "errors"

var (
	// ErrRoomNotFound is returned for any room-scoped operation on an unknown or ended room code.
	ErrRoomNotFound = errors.New("room not found")
	// ErrParticipantNotFound is returned when a name or connection does not resolve to a participant.
	ErrParticipantNotFound = errors.New("participant not found in room")
	// ErrMalformedAnswer marks a submission whose shape does not fit the question kind.
	ErrMalformedAnswer = errors.New("malformed answer")
	// ErrDuplicateSubmission is returned for a second answer to the same question.
	ErrDuplicateSubmission = errors.New("answer already submitted for this question")
	// ErrNoActiveQuestion is returned when no question is currently open in the room.
	ErrNoActiveQuestion = errors.New("no active question")
	// ErrInvalidTransition is returned when an operation does not fit the room's lifecycle status.
	ErrInvalidTransition = errors.New("invalid room state transition")
	// ErrForbidden is returned when a non-instructor attempts an instructor-only operation.
	ErrForbidden = errors.New("instructor role required")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrNoQuestions is returned when a quiz is started without any questions.
	ErrNoQuestions = errors.New("quiz has no questions")
	// ErrNameRequired is returned when a participant joins with a blank display name.
	ErrNameRequired = errors.New("display name required")
)
