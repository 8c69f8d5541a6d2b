package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error string `json:"error"`
	// Overridable: re-invoking with force would succeed.
	Overridable bool `json:"overridable,omitempty"`
	// ConfirmRequired: re-invoking with confirmed would succeed.
	ConfirmRequired bool `json:"confirm_required,omitempty"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}
