package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/maryayun81-byte/v0-edu-flow-school-system-2-sub001/internal/attempt"
	"github.com/maryayun81-byte/v0-edu-flow-school-system-2-sub001/internal/i18n"
	"github.com/maryayun81-byte/v0-edu-flow-school-system-2-sub001/internal/model"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// messageIDs maps error codes to translation ids.
var messageIDs = map[string]string{
	"out_of_range":           "ErrOutOfRange",
	"invalid_question":       "ErrInvalidQuestion",
	"invalid_input":          "ErrInvalidInput",
	"already_submitted":      "ErrAlreadySubmitted",
	"invalid_state":          "ErrInvalidState",
	"conflict":               "ErrConflict",
	"attempt_not_found":      "ErrAttemptNotFound",
	"answer_not_found":       "ErrAnswerNotFound",
	"question_not_found":     "ErrQuestionNotFound",
	"question_set_not_found": "ErrQuestionSetNotFound",
	"assistant_disabled":     "ErrAssistantDisabled",
	"internal":               "ErrInternal",
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	var (
		ve *model.ValidationError
		se *model.StateError
		nf *model.NotFoundError
	)
	switch {
	case errors.Is(err, attempt.ErrAssistantDisabled):
		return http.StatusServiceUnavailable
	case errors.Is(err, model.ErrOutOfRange):
		return http.StatusUnprocessableEntity
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.As(err, &se):
		return http.StatusConflict
	case errors.As(err, &nf):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func errorCode(err error) string {
	if errors.Is(err, attempt.ErrAssistantDisabled) {
		return "assistant_disabled"
	}
	return model.ErrorCode(err)
}

// writeError renders err as a localized JSON error. data feeds the message
// template. Internal errors are logged and never echoed to the client.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error, data map[string]any) {
	status := statusFor(err)
	code := errorCode(err)
	if status == http.StatusInternalServerError {
		code = "internal"
		slog.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err)
	} else {
		slog.Debug("request rejected", "path", r.URL.Path, "code", code, "error", err)
	}

	writeJSON(w, status, errorResponse{
		Error: i18n.Td(r.Context(), messageIDs[code], data),
		Code:  code,
	})
}
