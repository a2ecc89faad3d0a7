package response

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

type Error struct {
	Code    int      `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

type Response struct {
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

func write(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "status", status, "error", err)
	}
}

func JSON(w http.ResponseWriter, status int, data any) {
	write(w, status, Response{Data: data})
}

func ErrorJSON(w http.ResponseWriter, status int, message string) {
	write(w, status, Response{Error: &Error{Code: status, Message: message}})
}

// ValidationError is a 400 listing each failed field.
func ValidationError(w http.ResponseWriter, message string, details []string) {
	write(w, http.StatusBadRequest, Response{
		Error: &Error{
			Code:    http.StatusBadRequest,
			Message: message,
			Details: details,
		},
	})
}

func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}
