package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/maryayun81-byte/v0-edu-flow-school-system-2-sub001/internal/model"
)

// queryer is satisfied by both *sqlx.DB and *sqlx.Tx.
type queryer interface {
	sqlx.QueryerContext
	sqlx.ExecerContext
	Rebind(query string) string
}

type questionRow struct {
	ID            string  `db:"id"`
	SetID         string  `db:"set_id"`
	Position      int     `db:"position"`
	Type          string  `db:"type"`
	Prompt        string  `db:"prompt"`
	Marks         float64 `db:"marks"`
	CorrectAnswer string  `db:"correct_answer"`
	KeywordsJSON  string  `db:"keywords_json"`
	SampleAnswer  string  `db:"sample_answer"`
}

func (r questionRow) toModel() model.Question {
	q := model.Question{
		ID:            r.ID,
		SetID:         r.SetID,
		Position:      r.Position,
		Type:          model.QuestionType(r.Type),
		Prompt:        r.Prompt,
		Marks:         r.Marks,
		CorrectAnswer: r.CorrectAnswer,
		SampleAnswer:  r.SampleAnswer,
	}
	if err := json.Unmarshal([]byte(r.KeywordsJSON), &q.Keywords); err != nil {
		q.Keywords = nil
	}
	return q
}

type optionRow struct {
	QuestionID string `db:"question_id"`
	ID         string `db:"id"`
	Position   int    `db:"position"`
	Text       string `db:"text"`
	Correct    bool   `db:"correct"`
}

const questionColumns = `id, set_id, position, type, prompt, marks, correct_answer, keywords_json, sample_answer`

// PutQuestionSet validates and stores a question set with its questions and
// options in one transaction. An existing set with the same id is rejected.
func (s *Store) PutQuestionSet(ctx context.Context, set model.QuestionSet) error {
	if err := set.Validate(); err != nil {
		return err
	}
	return s.WithTx(ctx, func(tx *Tx) error {
		return tx.InsertQuestionSet(ctx, set)
	})
}

// InsertQuestionSet stores an already validated set. Set ids and question
// ids are global, so reusing either is rejected.
func (t *Tx) InsertQuestionSet(ctx context.Context, set model.QuestionSet) error {
	var exists int
	err := sqlx.GetContext(ctx, t.tx, &exists, t.tx.Rebind(`SELECT COUNT(*) FROM question_sets WHERE id = ?`), set.ID)
	if err != nil {
		return err
	}
	if exists > 0 {
		return &model.ValidationError{Field: "question_set " + set.ID, Msg: "already exists", Err: model.ErrInvalidInput}
	}

	ids := make([]string, len(set.Questions))
	for i, q := range set.Questions {
		ids[i] = q.ID
	}
	query, args, err := sqlx.In(`SELECT id, set_id FROM questions WHERE id IN (?) ORDER BY id`, ids)
	if err != nil {
		return err
	}
	var taken []struct {
		ID    string `db:"id"`
		SetID string `db:"set_id"`
	}
	if err := sqlx.SelectContext(ctx, t.tx, &taken, t.tx.Rebind(query), args...); err != nil {
		return err
	}
	if len(taken) > 0 {
		return &model.ValidationError{
			Field: "question " + taken[0].ID,
			Msg:   fmt.Sprintf("id already used by question set %q", taken[0].SetID),
			Err:   model.ErrInvalidQuestion,
		}
	}

	if _, err := t.tx.ExecContext(ctx, t.tx.Rebind(`INSERT INTO question_sets (id, title, created_at) VALUES (?, ?, ?)`),
		set.ID, set.Title, time.Now().UTC()); err != nil {
		return fmt.Errorf("insert question set: %w", err)
	}

	for i, q := range set.Questions {
		kw, err := json.Marshal(q.Keywords)
		if err != nil {
			return err
		}
		if q.Keywords == nil {
			kw = []byte("[]")
		}
		_, err = t.tx.ExecContext(ctx, t.tx.Rebind(
			`INSERT INTO questions (`+questionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			q.ID, set.ID, i, string(q.Type), q.Prompt, q.Marks, q.CorrectAnswer, string(kw), q.SampleAnswer,
		)
		if err != nil {
			return fmt.Errorf("insert question %s: %w", q.ID, err)
		}
		for j, o := range q.Options {
			_, err := t.tx.ExecContext(ctx, t.tx.Rebind(
				`INSERT INTO question_options (question_id, id, position, text, correct) VALUES (?, ?, ?, ?, ?)`),
				q.ID, o.ID, j, o.Text, o.Correct,
			)
			if err != nil {
				return fmt.Errorf("insert option %s/%s: %w", q.ID, o.ID, err)
			}
		}
	}
	return nil
}

// GetQuestionSet returns a question set with its questions and options.
func (s *Store) GetQuestionSet(ctx context.Context, id string) (model.QuestionSet, error) {
	return loadQuestionSet(ctx, s.db, id)
}

func loadQuestionSet(ctx context.Context, q queryer, id string) (model.QuestionSet, error) {
	var set model.QuestionSet
	err := q.QueryRowxContext(ctx, q.Rebind(`SELECT id, title, created_at FROM question_sets WHERE id = ?`), id).
		Scan(&set.ID, &set.Title, &set.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return set, model.QuestionSetNotFound(id)
	}
	if err != nil {
		return set, err
	}

	var rows []questionRow
	if err := sqlx.SelectContext(ctx, q, &rows, q.Rebind(
		`SELECT `+questionColumns+` FROM questions WHERE set_id = ? ORDER BY position`), id); err != nil {
		return set, err
	}

	var opts []optionRow
	if err := sqlx.SelectContext(ctx, q, &opts, q.Rebind(
		`SELECT o.question_id, o.id, o.position, o.text, o.correct
		 FROM question_options o JOIN questions q ON q.id = o.question_id
		 WHERE q.set_id = ? ORDER BY o.question_id, o.position`), id); err != nil {
		return set, err
	}
	byQuestion := make(map[string][]model.Option)
	for _, o := range opts {
		byQuestion[o.QuestionID] = append(byQuestion[o.QuestionID], model.Option{ID: o.ID, Text: o.Text, Correct: o.Correct})
	}

	for _, r := range rows {
		question := r.toModel()
		question.Options = byQuestion[r.ID]
		set.Questions = append(set.Questions, question)
	}
	return set, nil
}

// GetQuestion returns a single question row without its options.
// Correct options of choice questions are resolved through CorrectOptionIDs.
func (s *Store) GetQuestion(ctx context.Context, id string) (model.Question, error) {
	var r questionRow
	err := sqlx.GetContext(ctx, s.db, &r, s.db.Rebind(`SELECT `+questionColumns+` FROM questions WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Question{}, model.QuestionNotFound(id)
	}
	if err != nil {
		return model.Question{}, err
	}
	return r.toModel(), nil
}

// CorrectOptionIDs returns the ids of the options flagged correct for a question.
func (s *Store) CorrectOptionIDs(ctx context.Context, questionID string) ([]string, error) {
	var ids []string
	err := sqlx.SelectContext(ctx, s.db, &ids, s.db.Rebind(
		`SELECT id FROM question_options WHERE question_id = ? AND correct = ? ORDER BY position`), questionID, true)
	return ids, err
}

// ListQuestionSets returns all question sets without their questions.
func (s *Store) ListQuestionSets(ctx context.Context) ([]model.QuestionSet, error) {
	var sets []model.QuestionSet
	rows, err := s.db.QueryxContext(ctx, `SELECT id, title, created_at FROM question_sets ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var set model.QuestionSet
		if err := rows.Scan(&set.ID, &set.Title, &set.CreatedAt); err != nil {
			return nil, err
		}
		sets = append(sets, set)
	}
	return sets, rows.Err()
}

// QuestionSetCount returns the number of stored question sets.
func (s *Store) QuestionSetCount(ctx context.Context) (int, error) {
	var count int
	err := sqlx.GetContext(ctx, s.db, &count, `SELECT COUNT(*) FROM question_sets`)
	return count, err
}
