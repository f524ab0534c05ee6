package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/maryayun81-byte/v0-edu-flow-school-system-2-sub001/internal/model"
)

// Tx is a unit of work. Every read and write inside a read-modify-write
// cycle must go through the same Tx.
type Tx struct {
	tx     *sqlx.Tx
	driver Driver
}

// WithTx runs fn in a transaction. It commits when fn returns nil and rolls
// back otherwise.
func (s *Store) WithTx(ctx context.Context, fn func(*Tx) error) error {
	sqlTx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
	}()
	if err := fn(&Tx{tx: sqlTx, driver: s.driver}); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// QuestionSet loads a question set with its options inside the transaction.
func (t *Tx) QuestionSet(ctx context.Context, id string) (model.QuestionSet, error) {
	return loadQuestionSet(ctx, t.tx, id)
}

// LockAttempt loads an attempt with its answers and results. On PostgreSQL the
// attempt row stays locked until the transaction ends; on SQLite the
// immediate transaction already holds the write lock.
func (t *Tx) LockAttempt(ctx context.Context, id string) (*model.Attempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM attempts WHERE id = ?`
	if t.driver == DriverPostgres {
		query += ` FOR UPDATE`
	}
	return loadAttempt(ctx, t.tx, query, id)
}

// InsertAttempt stores a new attempt row. Answers are written separately.
func (t *Tx) InsertAttempt(ctx context.Context, a *model.Attempt) error {
	if a.Version == 0 {
		a.Version = 1
	}
	_, err := t.tx.ExecContext(ctx, t.tx.Rebind(`
		INSERT INTO attempts (id, question_set_id, learner_id, status, total_marks, auto_marks,
			manual_marks, max_marks, version, created_at, submitted_at, graded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		a.ID, a.QuestionSetID, a.LearnerID, string(a.Status), a.TotalMarksObtained, a.AutoGradedMarks,
		a.ManualGradedMarks, a.MaxMarks, a.Version, a.CreatedAt, a.SubmittedAt, a.GradedAt,
	)
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

// UpdateAttempt writes status, totals and timestamps back, guarded by the
// version read at load time. A stale version yields ErrConflict. On success
// a.Version is bumped.
func (t *Tx) UpdateAttempt(ctx context.Context, a *model.Attempt) error {
	res, err := t.tx.ExecContext(ctx, t.tx.Rebind(`
		UPDATE attempts SET status = ?, total_marks = ?, auto_marks = ?, manual_marks = ?,
			max_marks = ?, submitted_at = ?, graded_at = ?, version = version + 1
		WHERE id = ? AND version = ?`),
		string(a.Status), a.TotalMarksObtained, a.AutoGradedMarks, a.ManualGradedMarks,
		a.MaxMarks, a.SubmittedAt, a.GradedAt, a.ID, a.Version,
	)
	if err != nil {
		return fmt.Errorf("update attempt: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &model.StateError{Op: "update", AttemptID: a.ID, Status: a.Status, Err: model.ErrConflict}
	}
	a.Version++
	return nil
}

// UpsertAnswer stores the answer content, keyed by attempt and question.
// An existing answer keeps its id; ans.ID is updated to the stored one.
func (t *Tx) UpsertAnswer(ctx context.Context, ans *model.Answer, position int) error {
	selected, err := encodeStrings(ans.SelectedOptions)
	if err != nil {
		return err
	}
	var existing []string
	if err := sqlx.SelectContext(ctx, t.tx, &existing, t.tx.Rebind(
		`SELECT id FROM answers WHERE attempt_id = ? AND question_id = ?`), ans.AttemptID, ans.QuestionID); err != nil {
		return err
	}
	if len(existing) > 0 {
		ans.ID = existing[0]
		_, err = t.tx.ExecContext(ctx, t.tx.Rebind(`
			UPDATE answers SET selected_json = ?, text_answer = ?, attachment_ref = ?, updated_at = ?
			WHERE id = ?`),
			selected, ans.TextAnswer, ans.AttachmentRef, ans.UpdatedAt, ans.ID,
		)
	} else {
		_, err = t.tx.ExecContext(ctx, t.tx.Rebind(`
			INSERT INTO answers (id, attempt_id, question_id, position, selected_json, text_answer, attachment_ref, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
			ans.ID, ans.AttemptID, ans.QuestionID, position, selected, ans.TextAnswer, ans.AttachmentRef, ans.UpdatedAt,
		)
	}
	if err != nil {
		return fmt.Errorf("save answer %s: %w", ans.QuestionID, err)
	}
	return nil
}

// SaveResult inserts or replaces the graded result of an answer.
func (t *Tx) SaveResult(ctx context.Context, answerID string, r model.AnswerResult) error {
	if _, err := t.tx.ExecContext(ctx, t.tx.Rebind(`DELETE FROM answer_results WHERE answer_id = ?`), answerID); err != nil {
		return err
	}
	_, err := t.tx.ExecContext(ctx, t.tx.Rebind(`
		INSERT INTO answer_results (answer_id, is_correct, marks_obtained, needs_manual, feedback,
			auto_graded, graded_by, manually_graded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		answerID, r.IsCorrect, r.MarksObtained, r.NeedsManualGrading, r.Feedback,
		r.AutoGraded, r.GradedBy, r.ManuallyGradedAt,
	)
	if err != nil {
		return fmt.Errorf("save result %s: %w", answerID, err)
	}
	return nil
}

// DeleteAttempt removes an attempt with its answers and results.
func (t *Tx) DeleteAttempt(ctx context.Context, id string) error {
	stmts := []string{
		`DELETE FROM answer_results WHERE answer_id IN (SELECT id FROM answers WHERE attempt_id = ?)`,
		`DELETE FROM answers WHERE attempt_id = ?`,
		`DELETE FROM attempts WHERE id = ?`,
	}
	for _, stmt := range stmts {
		if _, err := t.tx.ExecContext(ctx, t.tx.Rebind(stmt), id); err != nil {
			return fmt.Errorf("delete attempt %s: %w", id, err)
		}
	}
	return nil
}
