package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/maryayun81-byte/v0-edu-flow-school-system-2-sub001/internal/i18n"
	"github.com/maryayun81-byte/v0-edu-flow-school-system-2-sub001/internal/model"
)

type startRequest struct {
	QuestionSetID string `json:"question_set_id"`
	LearnerID     string `json:"learner_id"`
}

type submitRequest struct {
	Answers []model.Answer `json:"answers"`
}

type reconcileRequest struct {
	Marks    *float64 `json:"marks"`
	Feedback string   `json:"feedback"`
	GradedBy string   `json:"graded_by"`
}

type reviewResponse struct {
	Attempt    *model.Attempt `json:"attempt"`
	Percentage float64        `json:"percentage"`
	Summary    string         `json:"summary"`
	Pending    string         `json:"pending,omitempty"`
}

func (h *Handler) handleStartAttempt(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	a, err := h.attempts.Start(r.Context(), req.QuestionSetID, req.LearnerID)
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (h *Handler) handleListAttempts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := model.AttemptFilter{
		Status:        model.AttemptStatus(q.Get("status")),
		LearnerID:     q.Get("learner"),
		QuestionSetID: q.Get("set"),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			h.writeError(w, r, &model.ValidationError{Field: "limit", Msg: "must be a non-negative integer", Err: model.ErrInvalidInput}, nil)
			return
		}
		f.Limit = n
	}

	attempts, err := h.attempts.List(r.Context(), f)
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, attempts)
}

func (h *Handler) handleGetAttempt(w http.ResponseWriter, r *http.Request) {
	a, err := h.attempts.Get(r.Context(), chi.URLParam(r, "attemptID"))
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) handleReviewAttempt(w http.ResponseWriter, r *http.Request) {
	a, err := h.attempts.Review(r.Context(), chi.URLParam(r, "attemptID"))
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}

	resp := reviewResponse{
		Attempt:    a,
		Percentage: a.Percentage(),
		Summary: i18n.Td(r.Context(), "AttemptScore", map[string]any{
			"Total":      strconv.FormatFloat(a.TotalMarksObtained, 'f', -1, 64),
			"Max":        strconv.FormatFloat(a.MaxMarks, 'f', -1, 64),
			"Percentage": strconv.FormatFloat(a.Percentage(), 'f', -1, 64),
		}),
	}
	if n := a.PendingManual(); n > 0 {
		resp.Pending = i18n.Tp(r.Context(), "AnswersPendingReview", n)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleSaveAnswer(w http.ResponseWriter, r *http.Request) {
	var ans model.Answer
	if err := decodeJSON(w, r, &ans, false); err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	a, err := h.attempts.SaveAnswer(r.Context(), chi.URLParam(r, "attemptID"), ans)
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	a, err := h.attempts.Submit(r.Context(), chi.URLParam(r, "attemptID"), req.Answers)
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) handleReconcile(w http.ResponseWriter, r *http.Request) {
	var req reconcileRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	if req.Marks == nil {
		h.writeError(w, r, &model.ValidationError{Field: "marks", Msg: "is required", Err: model.ErrInvalidInput}, nil)
		return
	}

	a, err := h.attempts.Reconcile(r.Context(),
		chi.URLParam(r, "attemptID"),
		chi.URLParam(r, "answerID"),
		*req.Marks, req.Feedback, req.GradedBy)
	if err != nil {
		h.writeError(w, r, err, map[string]any{"Marks": strconv.FormatFloat(*req.Marks, 'f', -1, 64)})
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) handleSuggest(w http.ResponseWriter, r *http.Request) {
	sg, err := h.attempts.Suggest(r.Context(), chi.URLParam(r, "attemptID"), chi.URLParam(r, "answerID"))
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, sg)
}

func (h *Handler) handleRetake(w http.ResponseWriter, r *http.Request) {
	a, err := h.attempts.Retake(r.Context(), chi.URLParam(r, "attemptID"))
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}
