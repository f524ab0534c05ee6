// Package attempt owns the attempt lifecycle: starting, drafting answers,
// submitting, manual reconciliation and retake. Every status transition
// happens here, inside a single store transaction.
package attempt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/maryayun81-byte/v0-edu-flow-school-system-2-sub001/internal/grading"
	"github.com/maryayun81-byte/v0-edu-flow-school-system-2-sub001/internal/model"
	"github.com/maryayun81-byte/v0-edu-flow-school-system-2-sub001/internal/store"
)

// ErrAssistantDisabled is returned by Suggest when no suggester is configured.
var ErrAssistantDisabled = errors.New("grading assistant disabled")

// Suggester proposes marks for an answer awaiting manual review.
type Suggester interface {
	Suggest(ctx context.Context, q model.Question, ans model.Answer) (model.Suggestion, error)
}

// Service runs lifecycle operations against the store.
type Service struct {
	store     *store.Store
	grader    *grading.Grader
	suggester Suggester
	now       func() time.Time
}

// New creates a Service.
func New(st *store.Store, g *grading.Grader) *Service {
	return &Service{
		store:  st,
		grader: g,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SetSuggester enables the grading assistant.
func (s *Service) SetSuggester(sg Suggester) {
	s.suggester = sg
}

// Start creates a not_started attempt for a learner on a question set.
func (s *Service) Start(ctx context.Context, setID, learnerID string) (*model.Attempt, error) {
	if strings.TrimSpace(learnerID) == "" {
		return nil, &model.ValidationError{Field: "learner_id", Msg: "is required", Err: model.ErrInvalidInput}
	}
	set, err := s.store.GetQuestionSet(ctx, setID)
	if err != nil {
		return nil, err
	}

	a := &model.Attempt{
		ID:            uuid.NewString(),
		QuestionSetID: set.ID,
		LearnerID:     learnerID,
		Status:        model.StatusNotStarted,
		Answers:       []model.Answer{},
		MaxMarks:      set.MaxMarks(),
		CreatedAt:     s.now(),
	}
	if err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		return tx.InsertAttempt(ctx, a)
	}); err != nil {
		return nil, err
	}
	slog.Info("attempt started", "attempt_id", a.ID, "learner_id", learnerID, "question_set_id", set.ID)
	return a, nil
}

// SaveAnswer stores a draft answer. The first write moves the attempt to
// in_progress. Closed attempts reject further writes.
func (s *Service) SaveAnswer(ctx context.Context, attemptID string, ans model.Answer) (*model.Attempt, error) {
	var out *model.Attempt
	err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		a, err := tx.LockAttempt(ctx, attemptID)
		if err != nil {
			return err
		}
		if !a.Status.Open() {
			return &model.StateError{Op: "save answer", AttemptID: a.ID, Status: a.Status, Err: model.ErrAlreadySubmitted}
		}
		set, err := tx.QuestionSet(ctx, a.QuestionSetID)
		if err != nil {
			return err
		}
		pos := questionPosition(set, ans.QuestionID)
		if pos < 0 {
			return model.QuestionNotFound(ans.QuestionID)
		}

		ans.ID = uuid.NewString()
		ans.AttemptID = a.ID
		ans.UpdatedAt = s.now()
		ans.Result = nil
		if err := tx.UpsertAnswer(ctx, &ans, pos); err != nil {
			return err
		}

		if a.Status == model.StatusNotStarted {
			a.Status = model.StatusInProgress
		}
		if err := tx.UpdateAttempt(ctx, a); err != nil {
			return err
		}
		out, err = tx.LockAttempt(ctx, a.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Submit closes the attempt, records an answer for every question in the set
// (empty where none was given), grades all of them and aggregates the result.
// Provided answers override saved drafts. The whole operation is one
// transaction, so a submitted attempt is never observed without its answers.
func (s *Service) Submit(ctx context.Context, attemptID string, answers []model.Answer) (*model.Attempt, error) {
	var out *model.Attempt
	err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		a, err := tx.LockAttempt(ctx, attemptID)
		if err != nil {
			return err
		}
		if !a.Status.Open() {
			return &model.StateError{Op: "submit", AttemptID: a.ID, Status: a.Status, Err: model.ErrAlreadySubmitted}
		}
		set, err := tx.QuestionSet(ctx, a.QuestionSetID)
		if err != nil {
			return err
		}

		now := s.now()
		byQuestion := make(map[string]model.Answer, len(set.Questions))
		for _, d := range a.Answers {
			byQuestion[d.QuestionID] = d
		}
		for _, ans := range answers {
			if questionPosition(set, ans.QuestionID) < 0 {
				return model.QuestionNotFound(ans.QuestionID)
			}
			// Answer ids are assigned here, never taken from the caller.
			ans.ID = ""
			if prev, ok := byQuestion[ans.QuestionID]; ok {
				ans.ID = prev.ID
			}
			ans.UpdatedAt = now
			byQuestion[ans.QuestionID] = ans
		}

		a.Answers = make([]model.Answer, 0, len(set.Questions))
		for i, q := range set.Questions {
			ans, ok := byQuestion[q.ID]
			if !ok {
				ans = model.Answer{QuestionID: q.ID, UpdatedAt: now}
			}
			if ans.ID == "" {
				ans.ID = uuid.NewString()
			}
			ans.AttemptID = a.ID
			if err := tx.UpsertAnswer(ctx, &ans, i); err != nil {
				return err
			}

			res, err := s.grader.Grade(ctx, q, ans)
			if err != nil {
				return fmt.Errorf("grade question %s: %w", q.ID, err)
			}
			if err := tx.SaveResult(ctx, ans.ID, res); err != nil {
				return err
			}
			ans.Result = &res
			a.Answers = append(a.Answers, ans)
		}

		a.SubmittedAt = &now
		a.MaxMarks = set.MaxMarks()
		grading.Aggregate(a, now)
		if err := tx.UpdateAttempt(ctx, a); err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	slog.Info("attempt submitted",
		"attempt_id", out.ID,
		"status", out.Status,
		"total", out.TotalMarksObtained,
		"pending_manual", out.PendingManual())
	return out, nil
}

// Reconcile applies a teacher's marks and feedback to one answer and
// re-aggregates the attempt. The manual flag is always cleared. Calling it
// again with the same arguments leaves the totals unchanged.
func (s *Service) Reconcile(ctx context.Context, attemptID, answerID string, marks float64, feedback, gradedBy string) (*model.Attempt, error) {
	var out *model.Attempt
	err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		a, err := tx.LockAttempt(ctx, attemptID)
		if err != nil {
			return err
		}
		idx := -1
		for i := range a.Answers {
			if a.Answers[i].ID == answerID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return model.AnswerNotFound(answerID)
		}
		if !a.Status.Closed() {
			return &model.StateError{Op: "reconcile", AttemptID: a.ID, Status: a.Status, Err: model.ErrInvalidState}
		}

		set, err := tx.QuestionSet(ctx, a.QuestionSetID)
		if err != nil {
			return err
		}
		pos := questionPosition(set, a.Answers[idx].QuestionID)
		if pos < 0 {
			return model.QuestionNotFound(a.Answers[idx].QuestionID)
		}
		q := set.Questions[pos]
		if math.IsNaN(marks) || marks < 0 || marks > q.Marks {
			return model.OutOfRange(marks, q.Marks)
		}

		now := s.now()
		res := model.AnswerResult{
			IsCorrect:          marks >= q.Marks,
			MarksObtained:      marks,
			NeedsManualGrading: false,
			Feedback:           feedback,
			AutoGraded:         false,
			GradedBy:           gradedBy,
			ManuallyGradedAt:   &now,
		}
		if err := tx.SaveResult(ctx, answerID, res); err != nil {
			return err
		}
		a.Answers[idx].Result = &res

		grading.Aggregate(a, now)
		if err := tx.UpdateAttempt(ctx, a); err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	slog.Info("answer reconciled",
		"attempt_id", out.ID,
		"answer_id", answerID,
		"marks", marks,
		"status", out.Status,
		"total", out.TotalMarksObtained)
	return out, nil
}

// Retake destroys a submitted or graded attempt with all its answers and
// results, and returns a fresh not_started attempt for the same learner and
// question set.
func (s *Service) Retake(ctx context.Context, attemptID string) (*model.Attempt, error) {
	var out *model.Attempt
	err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		a, err := tx.LockAttempt(ctx, attemptID)
		if err != nil {
			return err
		}
		if !a.Status.Closed() {
			return &model.StateError{Op: "retake", AttemptID: a.ID, Status: a.Status, Err: model.ErrInvalidState}
		}
		set, err := tx.QuestionSet(ctx, a.QuestionSetID)
		if err != nil {
			return err
		}
		if err := tx.DeleteAttempt(ctx, a.ID); err != nil {
			return err
		}

		out = &model.Attempt{
			ID:            uuid.NewString(),
			QuestionSetID: a.QuestionSetID,
			LearnerID:     a.LearnerID,
			Status:        model.StatusNotStarted,
			Answers:       []model.Answer{},
			MaxMarks:      set.MaxMarks(),
			CreatedAt:     s.now(),
		}
		return tx.InsertAttempt(ctx, out)
	})
	if err != nil {
		return nil, err
	}
	slog.Info("attempt retaken", "previous_attempt_id", attemptID, "attempt_id", out.ID, "learner_id", out.LearnerID)
	return out, nil
}

// Get returns an attempt with its answers and results.
func (s *Service) Get(ctx context.Context, attemptID string) (*model.Attempt, error) {
	return s.store.GetAttempt(ctx, attemptID)
}

// Review returns a closed attempt for read-only review.
func (s *Service) Review(ctx context.Context, attemptID string) (*model.Attempt, error) {
	a, err := s.store.GetAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if !a.Status.Closed() {
		return nil, &model.StateError{Op: "review", AttemptID: a.ID, Status: a.Status, Err: model.ErrInvalidState}
	}
	return a, nil
}

// List returns attempts matching the filter.
func (s *Service) List(ctx context.Context, f model.AttemptFilter) ([]*model.Attempt, error) {
	if f.Status != "" && !validStatus(f.Status) {
		return nil, &model.ValidationError{Field: "status", Msg: fmt.Sprintf("unknown status %q", f.Status), Err: model.ErrInvalidInput}
	}
	return s.store.ListAttempts(ctx, f)
}

// GradePreview grades an answer against a stored question without touching
// any attempt.
func (s *Service) GradePreview(ctx context.Context, questionID string, ans model.Answer) (model.AnswerResult, error) {
	q, err := s.store.GetQuestion(ctx, questionID)
	if err != nil {
		return model.AnswerResult{}, err
	}
	ans.QuestionID = q.ID
	return s.grader.Grade(ctx, q, ans)
}

// Suggest asks the grading assistant for advisory marks on an answer that is
// still waiting for manual grading. It never writes.
func (s *Service) Suggest(ctx context.Context, attemptID, answerID string) (model.Suggestion, error) {
	if s.suggester == nil {
		return model.Suggestion{}, ErrAssistantDisabled
	}
	a, err := s.store.GetAttempt(ctx, attemptID)
	if err != nil {
		return model.Suggestion{}, err
	}
	var ans *model.Answer
	for i := range a.Answers {
		if a.Answers[i].ID == answerID {
			ans = &a.Answers[i]
			break
		}
	}
	if ans == nil {
		return model.Suggestion{}, model.AnswerNotFound(answerID)
	}
	if ans.Result == nil || !ans.Result.NeedsManualGrading {
		return model.Suggestion{}, &model.StateError{Op: "suggest", AttemptID: a.ID, Status: a.Status, Err: model.ErrInvalidState}
	}
	q, err := s.store.GetQuestion(ctx, ans.QuestionID)
	if err != nil {
		return model.Suggestion{}, err
	}
	return s.suggester.Suggest(ctx, q, *ans)
}

func questionPosition(set model.QuestionSet, questionID string) int {
	for i, q := range set.Questions {
		if q.ID == questionID {
			return i
		}
	}
	return -1
}

func validStatus(st model.AttemptStatus) bool {
	return st.Open() || st.Closed()
}
