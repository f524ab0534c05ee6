package store

import (
	"context"
	"fmt"

	"github.com/maryayun81-byte/v0-edu-flow-school-system-2-sub001/internal/model"
)

// ExportAttempts builds export-ready learner results for attempts matching
// the filter, oldest first.
func (s *Store) ExportAttempts(ctx context.Context, f model.AttemptFilter) ([]model.LearnerResult, error) {
	f.Limit = 0
	attempts, err := s.ListAttempts(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}

	// Numbering runs per learner and question set in creation order.
	for i, j := 0, len(attempts)-1; i < j; i, j = i+1, j-1 {
		attempts[i], attempts[j] = attempts[j], attempts[i]
	}
	attemptCount := make(map[[2]string]int)
	sets := make(map[string]model.QuestionSet)

	results := make([]model.LearnerResult, 0, len(attempts))
	for _, summary := range attempts {
		key := [2]string{summary.LearnerID, summary.QuestionSetID}
		attemptCount[key]++

		a, err := s.GetAttempt(ctx, summary.ID)
		if err != nil {
			return nil, fmt.Errorf("get attempt %s: %w", summary.ID, err)
		}
		set, ok := sets[a.QuestionSetID]
		if !ok {
			if set, err = s.GetQuestionSet(ctx, a.QuestionSetID); err != nil {
				return nil, fmt.Errorf("get question set %s: %w", a.QuestionSetID, err)
			}
			sets[a.QuestionSetID] = set
		}
		questions := make(map[string]model.Question, len(set.Questions))
		for _, q := range set.Questions {
			questions[q.ID] = q
		}

		var answers []model.AnswerExport
		for _, ans := range a.Answers {
			q := questions[ans.QuestionID]
			ae := model.AnswerExport{
				QuestionID:      ans.QuestionID,
				Type:            q.Type,
				Marks:           q.Marks,
				SelectedOptions: ans.SelectedOptions,
				TextAnswer:      ans.TextAnswer,
				AttachmentRef:   ans.AttachmentRef,
			}
			if r := ans.Result; r != nil {
				ae.MarksObtained = r.MarksObtained
				ae.IsCorrect = r.IsCorrect
				ae.NeedsManualGrading = r.NeedsManualGrading
				ae.AutoGraded = r.AutoGraded
				ae.Feedback = r.Feedback
				ae.GradedBy = r.GradedBy
			}
			answers = append(answers, ae)
		}

		results = append(results, model.LearnerResult{
			AttemptID:          a.ID,
			LearnerID:          a.LearnerID,
			QuestionSetID:      a.QuestionSetID,
			AttemptNumber:      attemptCount[key],
			Status:             a.Status,
			SubmittedAt:        a.SubmittedAt,
			GradedAt:           a.GradedAt,
			TotalMarksObtained: a.TotalMarksObtained,
			AutoGradedMarks:    a.AutoGradedMarks,
			ManualGradedMarks:  a.ManualGradedMarks,
			MaxMarks:           a.MaxMarks,
			Percentage:         a.Percentage(),
			PendingManual:      a.PendingManual(),
			Answers:            answers,
		})
	}
	return results, nil
}
