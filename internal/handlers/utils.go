package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/natours/api/internal/apperr"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 10 << 10

const statusSuccess = "success"

// DataResponse is the success envelope.
type DataResponse struct {
	Status  string `json:"status"`
	Results *int   `json:"results,omitempty"`
	Data    any    `json:"data"`
}

// TokenResponse is returned by every endpoint that logs the user in.
type TokenResponse struct {
	Status string `json:"status"`
	Token  string `json:"token"`
	Data   any    `json:"data"`
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

// writeData wraps a single resource under key.
func writeData(w http.ResponseWriter, status int, key string, value any) {
	writeJSON(w, status, DataResponse{Status: statusSuccess, Data: map[string]any{key: value}})
}

// writeList wraps a listing under key together with its length.
func writeList[T any](w http.ResponseWriter, key string, items []T) {
	if items == nil {
		items = []T{}
	}
	n := len(items)
	writeJSON(w, http.StatusOK, DataResponse{Status: statusSuccess, Results: &n, Data: map[string]any{key: items}})
}

func writeNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// decodeJSON reads a JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return &apperr.Error{Kind: apperr.KindValidation, Message: "Request body too large", Err: err}
		case errors.Is(err, io.EOF):
			return apperr.Validation("Request body is empty")
		default:
			return &apperr.Error{Kind: apperr.KindValidation, Message: "Invalid JSON body", Err: err}
		}
	}
	return nil
}

func parseID(r *http.Request, param string) (int64, error) {
	raw := strings.TrimSpace(chi.URLParam(r, param))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, apperr.Validationf("Invalid %s: %s", param, raw)
	}
	return id, nil
}
