package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

func renderJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func renderError(w http.ResponseWriter, r *http.Request, status int, code string, err error) {
	renderJSON(w, status, &ErrorResponse{
		Error:     errorFromStatus(status),
		Message:   err.Error(),
		Code:      code,
		RequestID: middleware.GetReqID(r.Context()),
	})
}

func errorFromStatus(status int) string {
	switch status {
	case http.StatusNotFound:
		return "not_found"
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case http.StatusInternalServerError:
		return "internal_server_error"
	default:
		return "error"
	}
}
