package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/maryayun81-byte/v0-edu-flow-school-system-2-sub001/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testSet(id string) model.QuestionSet {
	return model.QuestionSet{
		ID:    id,
		Title: "Set " + id,
		Questions: []model.Question{
			{ID: id + "-q1", Type: model.QuestionSingleChoice, Marks: 2, CorrectAnswer: "B", Prompt: "Pick B"},
			{ID: id + "-q2", Type: model.QuestionMultiChoice, Marks: 4, Options: []model.Option{
				{ID: "A", Text: "first", Correct: true},
				{ID: "B", Text: "second"},
				{ID: "C", Text: "third", Correct: true},
			}},
			{ID: id + "-q3", Type: model.QuestionShortText, Marks: 3, CorrectAnswer: "osmosis",
				Keywords: []string{"water", "membrane"}},
		},
	}
}

func putTestSet(t *testing.T, s *Store, id string) model.QuestionSet {
	t.Helper()
	set := testSet(id)
	if err := s.PutQuestionSet(context.Background(), set); err != nil {
		t.Fatalf("PutQuestionSet: %v", err)
	}
	return set
}

func insertTestAttempt(t *testing.T, s *Store, id, setID, learnerID string, created time.Time) *model.Attempt {
	t.Helper()
	a := &model.Attempt{
		ID:            id,
		QuestionSetID: setID,
		LearnerID:     learnerID,
		Status:        model.StatusNotStarted,
		MaxMarks:      9,
		CreatedAt:     created,
	}
	err := s.WithTx(context.Background(), func(tx *Tx) error {
		return tx.InsertAttempt(context.Background(), a)
	})
	if err != nil {
		t.Fatalf("InsertAttempt: %v", err)
	}
	return a
}

func TestQuestionSetCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	count, err := s.QuestionSetCount(ctx)
	if err != nil {
		t.Fatalf("QuestionSetCount: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 sets, got %d", count)
	}

	putTestSet(t, s, "s1")
	got, err := s.GetQuestionSet(ctx, "s1")
	if err != nil {
		t.Fatalf("GetQuestionSet: %v", err)
	}
	if got.Title != "Set s1" || len(got.Questions) != 3 {
		t.Fatalf("got %q with %d questions", got.Title, len(got.Questions))
	}
	if got.Questions[0].ID != "s1-q1" || got.Questions[2].Position != 2 {
		t.Errorf("questions out of order: %+v", got.Questions)
	}
	if opts := got.Questions[1].Options; len(opts) != 3 || opts[2].ID != "C" || !opts[2].Correct {
		t.Errorf("options = %+v", opts)
	}
	if kw := got.Questions[2].Keywords; len(kw) != 2 || kw[1] != "membrane" {
		t.Errorf("keywords = %v", kw)
	}
	if got.MaxMarks() != 9 {
		t.Errorf("max marks = %v, want 9", got.MaxMarks())
	}

	// Duplicate ids are refused.
	err = s.PutQuestionSet(ctx, testSet("s1"))
	if !errors.Is(err, model.ErrInvalidInput) {
		t.Errorf("duplicate set: got %v", err)
	}

	// Invalid sets never reach the database.
	bad := testSet("s2")
	bad.Questions[0].Marks = 0
	if err := s.PutQuestionSet(ctx, bad); !errors.Is(err, model.ErrInvalidQuestion) {
		t.Errorf("invalid set: got %v", err)
	}
	if _, err := s.GetQuestionSet(ctx, "s2"); !errors.Is(err, model.ErrQuestionSetNotFound) {
		t.Errorf("invalid set stored: %v", err)
	}

	sets, err := s.ListQuestionSets(ctx)
	if err != nil {
		t.Fatalf("ListQuestionSets: %v", err)
	}
	if len(sets) != 1 {
		t.Errorf("expected 1 set, got %d", len(sets))
	}
}

func TestGetQuestionAndOptions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	putTestSet(t, s, "s1")

	q, err := s.GetQuestion(ctx, "s1-q2")
	if err != nil {
		t.Fatalf("GetQuestion: %v", err)
	}
	if q.Type != model.QuestionMultiChoice || q.Marks != 4 || q.SetID != "s1" {
		t.Errorf("question = %+v", q)
	}
	if len(q.Options) != 0 {
		t.Errorf("GetQuestion should not load options, got %d", len(q.Options))
	}

	ids, err := s.CorrectOptionIDs(ctx, "s1-q2")
	if err != nil {
		t.Fatalf("CorrectOptionIDs: %v", err)
	}
	if len(ids) != 2 || ids[0] != "A" || ids[1] != "C" {
		t.Errorf("correct ids = %v, want [A C]", ids)
	}

	_, err = s.GetQuestion(ctx, "missing")
	if !errors.Is(err, model.ErrQuestionNotFound) {
		t.Errorf("expected ErrQuestionNotFound, got %v", err)
	}
}

func TestAttemptRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	putTestSet(t, s, "s1")
	created := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	insertTestAttempt(t, s, "a1", "s1", "learner-1", created)

	now := created.Add(time.Hour)
	err := s.WithTx(ctx, func(tx *Tx) error {
		a, err := tx.LockAttempt(ctx, "a1")
		if err != nil {
			return err
		}
		ans := model.Answer{ID: "ans1", AttemptID: "a1", QuestionID: "s1-q2", SelectedOptions: []string{"A", "B"}, UpdatedAt: now}
		if err := tx.UpsertAnswer(ctx, &ans, 1); err != nil {
			return err
		}
		if err := tx.SaveResult(ctx, ans.ID, model.AnswerResult{MarksObtained: 0, Feedback: "Partial credit: 1 correct, 1 incorrect", AutoGraded: true}); err != nil {
			return err
		}
		a.Status = model.StatusSubmitted
		a.SubmittedAt = &now
		return tx.UpdateAttempt(ctx, a)
	})
	if err != nil {
		t.Fatalf("WithTx: %v", err)
	}

	got, err := s.GetAttempt(ctx, "a1")
	if err != nil {
		t.Fatalf("GetAttempt: %v", err)
	}
	if got.Status != model.StatusSubmitted || got.Version != 2 {
		t.Errorf("status = %s version = %d", got.Status, got.Version)
	}
	if got.SubmittedAt == nil || !got.SubmittedAt.Equal(now) {
		t.Errorf("submitted_at = %v, want %v", got.SubmittedAt, now)
	}
	if got.GradedAt != nil {
		t.Errorf("graded_at = %v, want nil", got.GradedAt)
	}
	if len(got.Answers) != 1 {
		t.Fatalf("answers = %d, want 1", len(got.Answers))
	}
	ans := got.Answers[0]
	if len(ans.SelectedOptions) != 2 || ans.SelectedOptions[1] != "B" {
		t.Errorf("selected = %v", ans.SelectedOptions)
	}
	if ans.Result == nil || !ans.Result.AutoGraded || ans.Result.ManuallyGradedAt != nil {
		t.Errorf("result = %+v", ans.Result)
	}

	if _, err := s.GetAttempt(ctx, "missing"); !errors.Is(err, model.ErrAttemptNotFound) {
		t.Errorf("expected ErrAttemptNotFound, got %v", err)
	}
}

func TestUpdateAttemptVersionConflict(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	putTestSet(t, s, "s1")
	insertTestAttempt(t, s, "a1", "s1", "learner-1", time.Now().UTC())

	stale, err := s.GetAttempt(ctx, "a1")
	if err != nil {
		t.Fatalf("GetAttempt: %v", err)
	}
	err = s.WithTx(ctx, func(tx *Tx) error {
		a, err := tx.LockAttempt(ctx, "a1")
		if err != nil {
			return err
		}
		a.Status = model.StatusInProgress
		return tx.UpdateAttempt(ctx, a)
	})
	if err != nil {
		t.Fatalf("first update: %v", err)
	}

	err = s.WithTx(ctx, func(tx *Tx) error {
		stale.Status = model.StatusSubmitted
		return tx.UpdateAttempt(ctx, stale)
	})
	if !errors.Is(err, model.ErrConflict) {
		t.Fatalf("stale update: got %v, want ErrConflict", err)
	}

	got, err := s.GetAttempt(ctx, "a1")
	if err != nil {
		t.Fatalf("GetAttempt: %v", err)
	}
	if got.Status != model.StatusInProgress {
		t.Errorf("status = %s, want in_progress", got.Status)
	}
}

func TestWithTxRollback(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	putTestSet(t, s, "s1")

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(tx *Tx) error {
		if err := tx.InsertAttempt(ctx, &model.Attempt{
			ID: "a1", QuestionSetID: "s1", LearnerID: "l1", Status: model.StatusNotStarted, CreatedAt: time.Now().UTC(),
		}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("got %v, want boom", err)
	}
	if _, err := s.GetAttempt(ctx, "a1"); !errors.Is(err, model.ErrAttemptNotFound) {
		t.Errorf("rolled back attempt is visible: %v", err)
	}
}

func TestDeleteAttempt(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	putTestSet(t, s, "s1")
	insertTestAttempt(t, s, "a1", "s1", "learner-1", time.Now().UTC())

	err := s.WithTx(ctx, func(tx *Tx) error {
		ans := model.Answer{ID: "ans1", AttemptID: "a1", QuestionID: "s1-q1", TextAnswer: "B", UpdatedAt: time.Now().UTC()}
		if err := tx.UpsertAnswer(ctx, &ans, 0); err != nil {
			return err
		}
		if err := tx.SaveResult(ctx, ans.ID, model.AnswerResult{MarksObtained: 2, IsCorrect: true, AutoGraded: true}); err != nil {
			return err
		}
		return tx.DeleteAttempt(ctx, "a1")
	})
	if err != nil {
		t.Fatalf("WithTx: %v", err)
	}
	if _, err := s.GetAttempt(ctx, "a1"); !errors.Is(err, model.ErrAttemptNotFound) {
		t.Errorf("expected ErrAttemptNotFound, got %v", err)
	}

	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM answers`); err != nil {
		t.Fatalf("count answers: %v", err)
	}
	if n != 0 {
		t.Errorf("expected no answers left, got %d", n)
	}
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM answer_results`); err != nil {
		t.Fatalf("count results: %v", err)
	}
	if n != 0 {
		t.Errorf("expected no results left, got %d", n)
	}
}

func TestListAttemptsFiltered(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	putTestSet(t, s, "s1")
	putTestSet(t, s, "s2")
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	insertTestAttempt(t, s, "a1", "s1", "learner-1", base)
	insertTestAttempt(t, s, "a2", "s1", "learner-2", base.Add(time.Minute))
	insertTestAttempt(t, s, "a3", "s2", "learner-1", base.Add(2*time.Minute))

	tests := []struct {
		name      string
		filter    model.AttemptFilter
		wantFirst string
		wantCount int
	}{
		{"no filter", model.AttemptFilter{}, "a3", 3},
		{"by learner", model.AttemptFilter{LearnerID: "learner-1"}, "a3", 2},
		{"by set", model.AttemptFilter{QuestionSetID: "s1"}, "a2", 2},
		{"by both", model.AttemptFilter{LearnerID: "learner-1", QuestionSetID: "s1"}, "a1", 1},
		{"by status", model.AttemptFilter{Status: model.StatusGraded}, "", 0},
		{"limited", model.AttemptFilter{Limit: 2}, "a3", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListAttempts(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListAttempts: %v", err)
			}
			if len(got) != tt.wantCount {
				t.Fatalf("expected %d attempts, got %d", tt.wantCount, len(got))
			}
			if tt.wantCount > 0 && got[0].ID != tt.wantFirst {
				t.Errorf("first = %s, want %s", got[0].ID, tt.wantFirst)
			}
		})
	}
}

func TestExportAttempts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	putTestSet(t, s, "s1")
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	insertTestAttempt(t, s, "a1", "s1", "learner-1", base)
	insertTestAttempt(t, s, "a2", "s1", "learner-1", base.Add(time.Hour))
	insertTestAttempt(t, s, "a3", "s1", "learner-2", base.Add(2*time.Hour))

	err := s.WithTx(ctx, func(tx *Tx) error {
		ans := model.Answer{ID: "ans1", AttemptID: "a2", QuestionID: "s1-q1", SelectedOptions: []string{"B"}, UpdatedAt: base}
		if err := tx.UpsertAnswer(ctx, &ans, 0); err != nil {
			return err
		}
		return tx.SaveResult(ctx, ans.ID, model.AnswerResult{MarksObtained: 2, IsCorrect: true, AutoGraded: true, Feedback: "Correct!"})
	})
	if err != nil {
		t.Fatalf("WithTx: %v", err)
	}

	results, err := s.ExportAttempts(ctx, model.AttemptFilter{})
	if err != nil {
		t.Fatalf("ExportAttempts: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	wantNumbers := map[string]int{"a1": 1, "a2": 2, "a3": 1}
	for _, r := range results {
		if r.AttemptNumber != wantNumbers[r.AttemptID] {
			t.Errorf("%s: attempt number = %d, want %d", r.AttemptID, r.AttemptNumber, wantNumbers[r.AttemptID])
		}
	}
	second := results[1]
	if second.AttemptID != "a2" || len(second.Answers) != 1 {
		t.Fatalf("second result = %+v", second)
	}
	if a := second.Answers[0]; a.Type != model.QuestionSingleChoice || a.Marks != 2 || a.MarksObtained != 2 || a.Feedback != "Correct!" {
		t.Errorf("answer export = %+v", a)
	}
}

func TestImportedFileHash(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	hash, err := s.ImportedFileHash(ctx, "sets/biology.json")
	if err != nil {
		t.Fatalf("ImportedFileHash: %v", err)
	}
	if hash != "" {
		t.Errorf("expected empty hash, got %q", hash)
	}

	if err := s.SetImportedFileHash(ctx, "sets/biology.json", "abc123"); err != nil {
		t.Fatalf("SetImportedFileHash: %v", err)
	}
	if err := s.SetImportedFileHash(ctx, "sets/biology.json", "def456"); err != nil {
		t.Fatalf("SetImportedFileHash overwrite: %v", err)
	}
	hash, err = s.ImportedFileHash(ctx, "sets/biology.json")
	if err != nil {
		t.Fatalf("ImportedFileHash: %v", err)
	}
	if hash != "def456" {
		t.Errorf("expected def456, got %q", hash)
	}
}

func TestImportQuestionSet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	doc := []byte(`{
		"id": "chem-1",
		"title": "Chemistry",
		"questions": [
			{"id": "c1", "type": "true_false", "marks": 1, "correct_answer": "false"},
			{"id": "c2", "type": "multi_choice", "marks": 2, "options": [
				{"id": "a", "text": "H2O", "correct": true},
				{"id": "b", "text": "CO2"}
			]}
		]
	}`)

	set, outcome, err := s.ImportQuestionSet(ctx, "sets/chem.json", doc)
	if err != nil {
		t.Fatalf("ImportQuestionSet: %v", err)
	}
	if outcome != ImportCreated || set.ID != "chem-1" {
		t.Errorf("outcome = %s, id = %s", outcome, set.ID)
	}
	got, err := s.GetQuestionSet(ctx, "chem-1")
	if err != nil {
		t.Fatalf("GetQuestionSet: %v", err)
	}
	if len(got.Questions) != 2 || len(got.Questions[1].Options) != 2 {
		t.Errorf("stored set = %+v", got)
	}

	_, outcome, err = s.ImportQuestionSet(ctx, "sets/chem.json", doc)
	if err != nil || outcome != ImportUnchanged {
		t.Errorf("re-import: outcome = %s, err = %v", outcome, err)
	}

	changed := []byte(`{"id": "chem-1", "questions": [{"id": "c1", "type": "true_false", "marks": 2, "correct_answer": "true"}]}`)
	if _, _, err := s.ImportQuestionSet(ctx, "sets/chem.json", changed); !errors.Is(err, ErrSourceChanged) || !errors.Is(err, model.ErrInvalidInput) {
		t.Errorf("changed file: got %v, want ErrSourceChanged", err)
	}

	tests := []struct {
		name string
		doc  string
		want error
	}{
		{"malformed json", `{"id":`, model.ErrInvalidInput},
		{"invalid question", `{"id": "x", "questions": [{"id": "q", "type": "essay", "marks": 1}]}`, model.ErrInvalidQuestion},
		{"no questions", `{"id": "y", "questions": []}`, model.ErrInvalidQuestion},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := s.ImportQuestionSet(ctx, "", []byte(tt.doc)); !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestPutQuestionSetRejectsTakenQuestionID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	putTestSet(t, s, "bio")

	reuse := testSet("chem")
	reuse.Questions[1].ID = "bio-q2"
	err := s.PutQuestionSet(ctx, reuse)
	var ve *model.ValidationError
	if !errors.As(err, &ve) || !errors.Is(err, model.ErrInvalidQuestion) {
		t.Fatalf("got %v, want ErrInvalidQuestion", err)
	}
	if _, err := s.GetQuestionSet(ctx, "chem"); !errors.Is(err, model.ErrQuestionSetNotFound) {
		t.Errorf("rejected set was stored: %v", err)
	}
	q, err := s.GetQuestion(ctx, "bio-q2")
	if err != nil || q.SetID != "bio" {
		t.Errorf("original question = %+v, %v", q, err)
	}
}

func TestImportQuestionSetIsAtomic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	putTestSet(t, s, "bio")

	clash := []byte(`{"id": "chem-2", "questions": [{"id": "bio-q1", "type": "long_text", "marks": 5}]}`)
	if _, _, err := s.ImportQuestionSet(ctx, "sets/chem2.json", clash); !errors.Is(err, model.ErrInvalidQuestion) {
		t.Fatalf("got %v, want ErrInvalidQuestion", err)
	}
	hash, err := s.ImportedFileHash(ctx, "sets/chem2.json")
	if err != nil {
		t.Fatalf("ImportedFileHash: %v", err)
	}
	if hash != "" {
		t.Errorf("failed import recorded hash %q", hash)
	}

	// The corrected file imports cleanly; its hash lands with the set.
	fixed := []byte(`{"id": "chem-2", "questions": [{"id": "chem-2-q1", "type": "long_text", "marks": 5}]}`)
	if _, outcome, err := s.ImportQuestionSet(ctx, "sets/chem2.json", fixed); err != nil || outcome != ImportCreated {
		t.Fatalf("corrected import: outcome = %s, err = %v", outcome, err)
	}
	hash, err = s.ImportedFileHash(ctx, "sets/chem2.json")
	if err != nil {
		t.Fatalf("ImportedFileHash: %v", err)
	}
	if hash != sha256sum(fixed) {
		t.Errorf("hash = %q, want %q", hash, sha256sum(fixed))
	}
}
