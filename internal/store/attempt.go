package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/maryayun81-byte/v0-edu-flow-school-system-2-sub001/internal/model"
)

const attemptColumns = `id, question_set_id, learner_id, status, total_marks, auto_marks, manual_marks,
	max_marks, version, created_at, submitted_at, graded_at`

type attemptRow struct {
	ID            string       `db:"id"`
	QuestionSetID string       `db:"question_set_id"`
	LearnerID     string       `db:"learner_id"`
	Status        string       `db:"status"`
	TotalMarks    float64      `db:"total_marks"`
	AutoMarks     float64      `db:"auto_marks"`
	ManualMarks   float64      `db:"manual_marks"`
	MaxMarks      float64      `db:"max_marks"`
	Version       int64        `db:"version"`
	CreatedAt     time.Time    `db:"created_at"`
	SubmittedAt   sql.NullTime `db:"submitted_at"`
	GradedAt      sql.NullTime `db:"graded_at"`
}

func (r attemptRow) toModel() *model.Attempt {
	return &model.Attempt{
		ID:                 r.ID,
		QuestionSetID:      r.QuestionSetID,
		LearnerID:          r.LearnerID,
		Status:             model.AttemptStatus(r.Status),
		TotalMarksObtained: r.TotalMarks,
		AutoGradedMarks:    r.AutoMarks,
		ManualGradedMarks:  r.ManualMarks,
		MaxMarks:           r.MaxMarks,
		Version:            r.Version,
		CreatedAt:          r.CreatedAt,
		SubmittedAt:        timePtr(r.SubmittedAt),
		GradedAt:           timePtr(r.GradedAt),
	}
}

// answerRow joins an answer with its optional result.
type answerRow struct {
	ID               string          `db:"id"`
	AttemptID        string          `db:"attempt_id"`
	QuestionID       string          `db:"question_id"`
	SelectedJSON     string          `db:"selected_json"`
	TextAnswer       string          `db:"text_answer"`
	AttachmentRef    string          `db:"attachment_ref"`
	UpdatedAt        time.Time       `db:"updated_at"`
	ResultID         sql.NullString  `db:"result_id"`
	IsCorrect        sql.NullBool    `db:"is_correct"`
	MarksObtained    sql.NullFloat64 `db:"marks_obtained"`
	NeedsManual      sql.NullBool    `db:"needs_manual"`
	Feedback         sql.NullString  `db:"feedback"`
	AutoGraded       sql.NullBool    `db:"auto_graded"`
	GradedBy         sql.NullString  `db:"graded_by"`
	ManuallyGradedAt sql.NullTime    `db:"manually_graded_at"`
}

func (r answerRow) toModel() model.Answer {
	a := model.Answer{
		ID:            r.ID,
		AttemptID:     r.AttemptID,
		QuestionID:    r.QuestionID,
		TextAnswer:    r.TextAnswer,
		AttachmentRef: r.AttachmentRef,
		UpdatedAt:     r.UpdatedAt,
	}
	a.SelectedOptions = decodeStrings(r.SelectedJSON)
	if r.ResultID.Valid {
		a.Result = &model.AnswerResult{
			IsCorrect:          r.IsCorrect.Bool,
			MarksObtained:      r.MarksObtained.Float64,
			NeedsManualGrading: r.NeedsManual.Bool,
			Feedback:           r.Feedback.String,
			AutoGraded:         r.AutoGraded.Bool,
			GradedBy:           r.GradedBy.String,
			ManuallyGradedAt:   timePtr(r.ManuallyGradedAt),
		}
	}
	return a
}

func loadAttempt(ctx context.Context, q queryer, query, id string) (*model.Attempt, error) {
	var row attemptRow
	err := sqlx.GetContext(ctx, q, &row, q.Rebind(query), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.AttemptNotFound(id)
	}
	if err != nil {
		return nil, err
	}
	a := row.toModel()
	if err := loadAnswers(ctx, q, a); err != nil {
		return nil, err
	}
	return a, nil
}

func loadAnswers(ctx context.Context, q queryer, a *model.Attempt) error {
	var rows []answerRow
	err := sqlx.SelectContext(ctx, q, &rows, q.Rebind(`
		SELECT a.id, a.attempt_id, a.question_id, a.selected_json, a.text_answer, a.attachment_ref, a.updated_at,
			r.answer_id AS result_id, r.is_correct, r.marks_obtained, r.needs_manual, r.feedback,
			r.auto_graded, r.graded_by, r.manually_graded_at
		FROM answers a
		LEFT JOIN answer_results r ON r.answer_id = a.id
		WHERE a.attempt_id = ?
		ORDER BY a.position, a.question_id`), a.ID)
	if err != nil {
		return err
	}
	a.Answers = make([]model.Answer, 0, len(rows))
	for _, r := range rows {
		a.Answers = append(a.Answers, r.toModel())
	}
	return nil
}

// GetAttempt returns an attempt with its answers and results.
func (s *Store) GetAttempt(ctx context.Context, id string) (*model.Attempt, error) {
	return loadAttempt(ctx, s.db, `SELECT `+attemptColumns+` FROM attempts WHERE id = ?`, id)
}

// ListAttempts returns attempts matching the filter, newest first, without
// their answers.
func (s *Store) ListAttempts(ctx context.Context, f model.AttemptFilter) ([]*model.Attempt, error) {
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.LearnerID != "" {
		where = append(where, "learner_id = ?")
		args = append(args, f.LearnerID)
	}
	if f.QuestionSetID != "" {
		where = append(where, "question_set_id = ?")
		args = append(args, f.QuestionSetID)
	}

	query := `SELECT ` + attemptColumns + ` FROM attempts`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	var rows []attemptRow
	if err := sqlx.SelectContext(ctx, s.db, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	attempts := make([]*model.Attempt, 0, len(rows))
	for _, r := range rows {
		attempts = append(attempts, r.toModel())
	}
	return attempts, nil
}

func encodeStrings(v []string) (string, error) {
	if v == nil {
		return "[]", nil
	}
	b, err := json.Marshal(v)
	return string(b), err
}

func decodeStrings(s string) []string {
	var v []string
	if err := json.Unmarshal([]byte(s), &v); err != nil || len(v) == 0 {
		return nil
	}
	return v
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	ts := t.Time
	return &ts
}
