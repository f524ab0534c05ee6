// Package handler exposes the grading engine as a JSON API.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/maryayun81-byte/v0-edu-flow-school-system-2-sub001/internal/attempt"
	"github.com/maryayun81-byte/v0-edu-flow-school-system-2-sub001/internal/i18n"
	"github.com/maryayun81-byte/v0-edu-flow-school-system-2-sub001/internal/model"
	"github.com/maryayun81-byte/v0-edu-flow-school-system-2-sub001/internal/store"
)

// maxBodyBytes caps request bodies, question set uploads included.
const maxBodyBytes = 10 << 20

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store    *store.Store
	attempts *attempt.Service
	config   model.ServerConfig
}

// New creates a new Handler.
func New(s *store.Store, svc *attempt.Service, cfg model.ServerConfig) *Handler {
	return &Handler{store: s, attempts: svc, config: cfg}
}

// Router builds the chi router with middleware and all routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Logger, middleware.Recoverer)
	if len(h.config.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   h.config.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowedHeaders:   []string{"Accept-Language", "Authorization", "Content-Type"},
			ExposedHeaders:   []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	r.Use(i18n.Middleware)
	h.Routes(r)
	return r
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", h.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/question-sets", h.handleListQuestionSets)
		r.Post("/question-sets", h.handleImportQuestionSet)
		r.Get("/question-sets/{setID}", h.handleGetQuestionSet)
		r.Post("/questions/{questionID}/grade", h.handleGradePreview)

		r.Post("/attempts", h.handleStartAttempt)
		r.Get("/attempts", h.handleListAttempts)
		r.Route("/attempts/{attemptID}", func(r chi.Router) {
			r.Get("/", h.handleGetAttempt)
			r.Get("/review", h.handleReviewAttempt)
			r.Put("/answers", h.handleSaveAnswer)
			r.Post("/submit", h.handleSubmit)
			r.Post("/retake", h.handleRetake)
			r.Post("/answers/{answerID}/grade", h.handleReconcile)
			r.Get("/answers/{answerID}/suggestion", h.handleSuggest)
		})
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if _, err := h.store.QuestionSetCount(r.Context()); err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"driver":       h.store.Driver(),
		"llm_enabled":  h.config.LLMEnabled,
		"languages":    i18n.Languages(),
		"default_lang": h.config.Lang,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON reads a JSON body into v. An empty body leaves v untouched
// when optional is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any, optional bool) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return nil
		}
		return &model.ValidationError{Field: "body", Msg: err.Error(), Err: model.ErrInvalidInput}
	}
	return nil
}
