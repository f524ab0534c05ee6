package model

import (
	"errors"
	"fmt"
)

// Sentinel errors. Match them with errors.Is; match the category with errors.As.
var (
	ErrOutOfRange      = errors.New("marks out of range")
	ErrInvalidQuestion = errors.New("invalid question")
	ErrInvalidInput    = errors.New("invalid input")

	ErrAlreadySubmitted = errors.New("attempt already submitted")
	ErrInvalidState     = errors.New("invalid attempt state")
	ErrConflict         = errors.New("attempt modified concurrently")

	ErrAttemptNotFound     = errors.New("attempt not found")
	ErrAnswerNotFound      = errors.New("answer not found")
	ErrQuestionNotFound    = errors.New("question not found")
	ErrQuestionSetNotFound = errors.New("question set not found")
)

// ValidationError reports malformed or out-of-range input.
type ValidationError struct {
	Field string
	Msg   string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%v: %s", e.Err, e.Msg)
	}
	return fmt.Sprintf("%v: %s: %s", e.Err, e.Field, e.Msg)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// OutOfRange builds the error returned when a manual mark falls outside [0, max].
func OutOfRange(marks, max float64) *ValidationError {
	return &ValidationError{
		Field: "marks",
		Msg:   fmt.Sprintf("%v is outside [0, %v]", marks, max),
		Err:   ErrOutOfRange,
	}
}

// StateError reports an illegal lifecycle transition.
type StateError struct {
	Op        string
	AttemptID string
	Status    AttemptStatus
	Err       error
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s attempt %s: %v (status %s)", e.Op, e.AttemptID, e.Err, e.Status)
}

func (e *StateError) Unwrap() error { return e.Err }

// NotFoundError reports a stale reference.
type NotFoundError struct {
	Kind string
	ID   string
	Err  error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Kind, e.ID, e.Err)
}

func (e *NotFoundError) Unwrap() error { return e.Err }

// AttemptNotFound is shorthand for a missing attempt.
func AttemptNotFound(id string) *NotFoundError {
	return &NotFoundError{Kind: "attempt", ID: id, Err: ErrAttemptNotFound}
}

// AnswerNotFound is shorthand for a missing answer.
func AnswerNotFound(id string) *NotFoundError {
	return &NotFoundError{Kind: "answer", ID: id, Err: ErrAnswerNotFound}
}

// QuestionNotFound is shorthand for a missing question.
func QuestionNotFound(id string) *NotFoundError {
	return &NotFoundError{Kind: "question", ID: id, Err: ErrQuestionNotFound}
}

// QuestionSetNotFound is shorthand for a missing question set.
func QuestionSetNotFound(id string) *NotFoundError {
	return &NotFoundError{Kind: "question set", ID: id, Err: ErrQuestionSetNotFound}
}

// ErrorCode returns a stable machine-readable code for err, or "internal".
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrOutOfRange):
		return "out_of_range"
	case errors.Is(err, ErrInvalidQuestion):
		return "invalid_question"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrAlreadySubmitted):
		return "already_submitted"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrAttemptNotFound):
		return "attempt_not_found"
	case errors.Is(err, ErrAnswerNotFound):
		return "answer_not_found"
	case errors.Is(err, ErrQuestionNotFound):
		return "question_not_found"
	case errors.Is(err, ErrQuestionSetNotFound):
		return "question_set_not_found"
	}
	return "internal"
}
