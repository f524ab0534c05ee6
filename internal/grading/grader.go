// Package grading scores answers against question definitions and folds the
// per-answer results into attempt totals.
package grading

import (
	"context"
	"fmt"

	"github.com/maryayun81-byte/v0-edu-flow-school-system-2-sub001/internal/model"
)

// Feedback strings attached to results.
const (
	FeedbackCorrect          = "Correct!"
	FeedbackIncorrect        = "Incorrect"
	FeedbackAllCorrect       = "All correct!"
	FeedbackNoSelection      = "No answer selected"
	FeedbackNoAnswer         = "No answer provided"
	FeedbackFlagged          = "Flagged for teacher review"
	FeedbackManualRequired   = "This answer requires manual grading by a teacher"
	FeedbackPartialTemplate  = "Partial credit: %d correct, %d incorrect"
	FeedbackKeywordsTemplate = "Matched %d of %d keywords; provisional marks pending teacher review"
	FeedbackTrueFalseWrong   = "Incorrect. The correct answer is %s"
)

// KeywordThreshold is the minimum keyword coverage that earns provisional credit.
const KeywordThreshold = 0.8

// OptionLookup resolves the correct option ids of a multi_choice question.
type OptionLookup interface {
	CorrectOptionIDs(ctx context.Context, questionID string) ([]string, error)
}

// Grader maps (Question, Answer) to an AnswerResult.
//
// Grading is pure except for multi_choice questions that arrive without their
// options, in which case the correct set is fetched through the OptionLookup.
type Grader struct {
	options OptionLookup
}

// New creates a Grader. options may be nil when every multi_choice question
// is passed with its options attached.
func New(options OptionLookup) *Grader {
	return &Grader{options: options}
}

// Grade scores one answer. It never fails because of the answer's content:
// missing or malformed responses score zero. An error is returned only for an
// unknown question type or a failed option lookup.
func (g *Grader) Grade(ctx context.Context, q model.Question, a model.Answer) (model.AnswerResult, error) {
	switch q.Type {
	case model.QuestionSingleChoice:
		return gradeSingleChoice(q, a), nil
	case model.QuestionTrueFalse:
		return gradeTrueFalse(q, a), nil
	case model.QuestionMultiChoice:
		correct, err := g.correctOptions(ctx, q)
		if err != nil {
			return model.AnswerResult{}, err
		}
		return gradeMultiChoice(q, a, correct), nil
	case model.QuestionShortText:
		return gradeShortText(q, a), nil
	case model.QuestionLongText, model.QuestionAttachmentBased:
		return gradeManual(q), nil
	}
	return model.AnswerResult{}, &model.ValidationError{
		Field: "question " + q.ID,
		Msg:   fmt.Sprintf("unknown type %q", q.Type),
		Err:   model.ErrInvalidQuestion,
	}
}

func (g *Grader) correctOptions(ctx context.Context, q model.Question) ([]string, error) {
	if len(q.Options) > 0 {
		return q.CorrectOptionIDs(), nil
	}
	if g.options == nil {
		return nil, fmt.Errorf("grade question %s: no options and no option lookup", q.ID)
	}
	ids, err := g.options.CorrectOptionIDs(ctx, q.ID)
	if err != nil {
		return nil, fmt.Errorf("lookup options for question %s: %w", q.ID, err)
	}
	return ids, nil
}

// result builds an AnswerResult with marks clamped to [0, q.Marks].
func result(q model.Question, marks float64, correct, manual bool, feedback string) model.AnswerResult {
	return model.AnswerResult{
		IsCorrect:          correct,
		MarksObtained:      clamp(marks, q.Marks),
		NeedsManualGrading: manual,
		Feedback:           feedback,
		AutoGraded:         !manual,
	}
}
