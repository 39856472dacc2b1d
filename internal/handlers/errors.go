package handlers

import (
	"net/http"

	"github.com/natours/api/internal/apperr"
	"github.com/natours/api/internal/auth"
	"github.com/natours/api/internal/logging"
	"github.com/natours/api/internal/metrics"
)

const genericErrorMessage = "Something went very wrong!"

// ErrorResponse is the failure envelope. Status is "fail" for client
// errors and "error" for server errors.
type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
}

// Responder renders errors for every handler. With ExposeStack the
// wrapped error chain is included in responses.
type Responder struct {
	ExposeStack bool
}

func (rs Responder) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status := kind.Status()

	resp := ErrorResponse{Status: "fail", Message: genericErrorMessage}
	if appErr, ok := apperr.As(err); ok {
		resp.Message = appErr.Message
	}
	if status >= http.StatusInternalServerError {
		resp.Status = "error"
		logging.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	if rs.ExposeStack {
		resp.Stack = err.Error()
	}
	writeJSON(w, status, resp)
}

// authFailure renders access control errors and counts them by reason.
func (rs Responder) authFailure(w http.ResponseWriter, r *http.Request, err error) {
	if reason := auth.Reason(err); reason != "other" {
		metrics.RecordAuthFailure(reason)
	}
	rs.writeError(w, r, err)
}

// NotFound answers unknown routes.
func (rs Responder) NotFound(w http.ResponseWriter, r *http.Request) {
	rs.writeError(w, r, apperr.NotFound("Can't find "+r.URL.Path+" on this server!"))
}

// guard runs access control steps before the handler.
func (rs Responder) guard(steps ...auth.Step) func(http.Handler) http.Handler {
	return auth.Pipeline(rs.authFailure, steps...)
}

// Healthz reports liveness.
func Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// TooManyRequests answers requests rejected by the rate limiter.
func TooManyRequests(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusTooManyRequests, ErrorResponse{
		Status:  "fail",
		Message: "Too many requests from this IP, please try again later!",
	})
}
