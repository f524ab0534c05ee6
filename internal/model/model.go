package model

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// QuestionType identifies how a question is graded.
type QuestionType string

const (
	QuestionSingleChoice    QuestionType = "single_choice"
	QuestionMultiChoice     QuestionType = "multi_choice"
	QuestionTrueFalse       QuestionType = "true_false"
	QuestionShortText       QuestionType = "short_text"
	QuestionLongText        QuestionType = "long_text"
	QuestionAttachmentBased QuestionType = "attachment_based"
)

// QuestionTypes lists every supported question type.
var QuestionTypes = []QuestionType{
	QuestionSingleChoice,
	QuestionMultiChoice,
	QuestionTrueFalse,
	QuestionShortText,
	QuestionLongText,
	QuestionAttachmentBased,
}

// Valid reports whether t is one of the supported question types.
func (t QuestionType) Valid() bool {
	for _, k := range QuestionTypes {
		if t == k {
			return true
		}
	}
	return false
}

// InherentlyManual reports whether answers of this type always need a teacher.
func (t QuestionType) InherentlyManual() bool {
	return t == QuestionLongText || t == QuestionAttachmentBased
}

// AttemptStatus is a step of the attempt lifecycle.
type AttemptStatus string

const (
	StatusNotStarted AttemptStatus = "not_started"
	StatusInProgress AttemptStatus = "in_progress"
	StatusSubmitted  AttemptStatus = "submitted"
	StatusGraded     AttemptStatus = "graded"
)

// Open reports whether answers may still be written.
func (s AttemptStatus) Open() bool {
	return s == StatusNotStarted || s == StatusInProgress
}

// Closed reports whether the attempt has been submitted (graded or not).
func (s AttemptStatus) Closed() bool {
	return s == StatusSubmitted || s == StatusGraded
}

// Option is one choice of a choice question.
type Option struct {
	ID      string `json:"id"`
	Text    string `json:"text,omitempty"`
	Correct bool   `json:"correct,omitempty"`
}

// Question is a gradable question.
type Question struct {
	ID            string       `json:"id"`
	SetID         string       `json:"set_id,omitempty"`
	Position      int          `json:"position"`
	Type          QuestionType `json:"type"`
	Prompt        string       `json:"prompt,omitempty"`
	Marks         float64      `json:"marks"`
	CorrectAnswer string       `json:"correct_answer,omitempty"`
	Options       []Option     `json:"options,omitempty"`
	Keywords      []string     `json:"keywords,omitempty"`
	SampleAnswer  string       `json:"sample_answer,omitempty"`
}

// CorrectOptionIDs returns the ids of options flagged as correct.
func (q Question) CorrectOptionIDs() []string {
	var ids []string
	for _, o := range q.Options {
		if o.Correct {
			ids = append(ids, o.ID)
		}
	}
	return ids
}

// Validate checks the question definition before it is stored.
func (q Question) Validate() error {
	invalid := func(format string, args ...any) error {
		return &ValidationError{
			Field: "question " + q.ID,
			Msg:   fmt.Sprintf(format, args...),
			Err:   ErrInvalidQuestion,
		}
	}

	if strings.TrimSpace(q.ID) == "" {
		return invalid("id is required")
	}
	if !q.Type.Valid() {
		return invalid("unknown type %q", q.Type)
	}
	if math.IsNaN(q.Marks) || math.IsInf(q.Marks, 0) || q.Marks <= 0 {
		return invalid("marks must be positive, got %v", q.Marks)
	}

	switch q.Type {
	case QuestionSingleChoice:
		if strings.TrimSpace(q.CorrectAnswer) == "" {
			return invalid("correct_answer is required for %s", q.Type)
		}
		if len(q.Options) > 0 && !q.hasOption(q.CorrectAnswer) {
			return invalid("correct_answer %q is not one of the options", q.CorrectAnswer)
		}
	case QuestionShortText:
		if strings.TrimSpace(q.CorrectAnswer) == "" {
			return invalid("correct_answer is required for %s", q.Type)
		}
	case QuestionTrueFalse:
		v := strings.ToLower(strings.TrimSpace(q.CorrectAnswer))
		if v != "true" && v != "false" {
			return invalid("correct_answer must be true or false, got %q", q.CorrectAnswer)
		}
	case QuestionMultiChoice:
		seen := make(map[string]bool, len(q.Options))
		for _, o := range q.Options {
			if o.ID == "" {
				return invalid("option id is required")
			}
			if seen[o.ID] {
				return invalid("duplicate option id %q", o.ID)
			}
			seen[o.ID] = true
		}
		if len(q.CorrectOptionIDs()) == 0 {
			return invalid("at least one option must be correct")
		}
	case QuestionLongText, QuestionAttachmentBased:
	}
	return nil
}

// hasOption matches id against the option ids the way the grader compares
// tokens: trimmed and case-insensitive.
func (q Question) hasOption(id string) bool {
	id = strings.ToLower(strings.TrimSpace(id))
	for _, o := range q.Options {
		if strings.ToLower(strings.TrimSpace(o.ID)) == id {
			return true
		}
	}
	return false
}

// QuestionSet is an ordered collection of questions answered together.
type QuestionSet struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
	CreatedAt time.Time  `json:"created_at"`
}

// MaxMarks sums the marks of every question in the set.
func (s QuestionSet) MaxMarks() float64 {
	var total float64
	for _, q := range s.Questions {
		total += q.Marks
	}
	return total
}

// Validate checks every question and that question ids are unique.
func (s QuestionSet) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return &ValidationError{Field: "question_set", Msg: "id is required", Err: ErrInvalidQuestion}
	}
	if len(s.Questions) == 0 {
		return &ValidationError{Field: "question_set " + s.ID, Msg: "no questions", Err: ErrInvalidQuestion}
	}
	seen := make(map[string]bool, len(s.Questions))
	for _, q := range s.Questions {
		if seen[q.ID] {
			return &ValidationError{Field: "question_set " + s.ID, Msg: fmt.Sprintf("duplicate question id %q", q.ID), Err: ErrInvalidQuestion}
		}
		seen[q.ID] = true
		if err := q.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Answer is a learner's raw response to one question.
// Fields that do not apply to the question type are ignored.
type Answer struct {
	ID              string        `json:"id,omitempty"`
	AttemptID       string        `json:"attempt_id,omitempty"`
	QuestionID      string        `json:"question_id"`
	SelectedOptions []string      `json:"selected_options,omitempty"`
	TextAnswer      string        `json:"text_answer,omitempty"`
	AttachmentRef   string        `json:"attachment_ref,omitempty"`
	UpdatedAt       time.Time     `json:"updated_at"`
	Result          *AnswerResult `json:"result,omitempty"`
}

// Empty reports whether the answer carries no content at all.
func (a Answer) Empty() bool {
	return len(a.SelectedOptions) == 0 && strings.TrimSpace(a.TextAnswer) == "" && strings.TrimSpace(a.AttachmentRef) == ""
}

// AnswerResult is the graded outcome of one answer.
type AnswerResult struct {
	IsCorrect          bool       `json:"is_correct"`
	MarksObtained      float64    `json:"marks_obtained"`
	NeedsManualGrading bool       `json:"needs_manual_grading"`
	Feedback           string     `json:"feedback"`
	AutoGraded         bool       `json:"auto_graded"`
	GradedBy           string     `json:"graded_by,omitempty"`
	ManuallyGradedAt   *time.Time `json:"manually_graded_at,omitempty"`
}

// Attempt is one learner's instance of answering a question set.
type Attempt struct {
	ID                 string        `json:"id"`
	QuestionSetID      string        `json:"question_set_id"`
	LearnerID          string        `json:"learner_id"`
	Status             AttemptStatus `json:"status"`
	Answers            []Answer      `json:"answers"`
	TotalMarksObtained float64       `json:"total_marks_obtained"`
	AutoGradedMarks    float64       `json:"auto_graded_marks"`
	ManualGradedMarks  float64       `json:"manual_graded_marks"`
	MaxMarks           float64       `json:"max_marks"`
	Version            int64         `json:"version"`
	CreatedAt          time.Time     `json:"created_at"`
	SubmittedAt        *time.Time    `json:"submitted_at,omitempty"`
	GradedAt           *time.Time    `json:"graded_at,omitempty"`
}

// Percentage returns the total as a share of the maximum marks.
func (a Attempt) Percentage() float64 {
	if a.MaxMarks <= 0 {
		return 0
	}
	return math.Round(a.TotalMarksObtained/a.MaxMarks*10000) / 100
}

// PendingManual counts answers still waiting for a teacher.
func (a Attempt) PendingManual() int {
	n := 0
	for _, ans := range a.Answers {
		if ans.Result != nil && ans.Result.NeedsManualGrading {
			n++
		}
	}
	return n
}

// AttemptFilter narrows attempt listings. Empty fields match everything.
type AttemptFilter struct {
	Status        AttemptStatus
	LearnerID     string
	QuestionSetID string
	Limit         int
}

// Suggestion is an advisory mark proposed for an answer awaiting review.
type Suggestion struct {
	AnswerID string  `json:"answer_id"`
	Marks    float64 `json:"marks"`
	MaxMarks float64 `json:"max_marks"`
	Feedback string  `json:"feedback"`
	Model    string  `json:"model"`
	Variant  string  `json:"variant"`
	Advisory bool    `json:"advisory"`
}

// ServerConfig holds runtime parameters set via CLI flags.
type ServerConfig struct {
	Lang          string   // default UI language for error messages
	CORSOrigins   []string // empty disables CORS
	LLMEnabled    bool
	PromptVariant string // strict, standard, lenient
}
