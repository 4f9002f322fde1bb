package httputil

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// ErrorBody is the error shape of every endpoint.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("write json response failed", slog.Any("err", err))
	}
}

func OK(w http.ResponseWriter, v any) {
	JSON(w, http.StatusOK, v)
}

// Error writes a short machine-oriented error and a localized message for people.
func Error(w http.ResponseWriter, status int, short, localized string) {
	JSON(w, status, ErrorBody{Error: short, Message: localized})
}
