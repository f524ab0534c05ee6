package handler

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/maryayun81-byte/v0-edu-flow-school-system-2-sub001/internal/model"
	"github.com/maryayun81-byte/v0-edu-flow-school-system-2-sub001/internal/store"
)

type importResponse struct {
	ID        string              `json:"id"`
	Title     string              `json:"title"`
	Questions int                 `json:"questions"`
	Outcome   store.ImportOutcome `json:"outcome"`
}

func (h *Handler) handleImportQuestionSet(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.writeError(w, r, &model.ValidationError{Field: "body", Msg: err.Error(), Err: model.ErrInvalidInput}, nil)
		return
	}

	set, outcome, err := h.store.ImportQuestionSet(r.Context(), "", data)
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	slog.Info("imported question set via API", "set_id", set.ID, "count", len(set.Questions), "outcome", outcome)

	status := http.StatusCreated
	if outcome == store.ImportUnchanged {
		status = http.StatusOK
	}
	writeJSON(w, status, importResponse{
		ID:        set.ID,
		Title:     set.Title,
		Questions: len(set.Questions),
		Outcome:   outcome,
	})
}

func (h *Handler) handleListQuestionSets(w http.ResponseWriter, r *http.Request) {
	sets, err := h.store.ListQuestionSets(r.Context())
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	if sets == nil {
		sets = []model.QuestionSet{}
	}
	writeJSON(w, http.StatusOK, sets)
}

// handleGetQuestionSet returns the full set. With ?view=learner the answer
// key is stripped so the set can be shown to learners.
func (h *Handler) handleGetQuestionSet(w http.ResponseWriter, r *http.Request) {
	set, err := h.store.GetQuestionSet(r.Context(), chi.URLParam(r, "setID"))
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	if r.URL.Query().Get("view") == "learner" {
		set = redactAnswerKey(set)
	}
	writeJSON(w, http.StatusOK, set)
}

func (h *Handler) handleGradePreview(w http.ResponseWriter, r *http.Request) {
	var ans model.Answer
	if err := decodeJSON(w, r, &ans, false); err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	res, err := h.attempts.GradePreview(r.Context(), chi.URLParam(r, "questionID"), ans)
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func redactAnswerKey(set model.QuestionSet) model.QuestionSet {
	out := set
	out.Questions = make([]model.Question, len(set.Questions))
	for i, q := range set.Questions {
		q.CorrectAnswer = ""
		q.Keywords = nil
		q.SampleAnswer = ""
		opts := make([]model.Option, len(q.Options))
		for j, o := range q.Options {
			opts[j] = model.Option{ID: o.ID, Text: o.Text}
		}
		q.Options = opts
		out.Questions[i] = q
	}
	return out
}
