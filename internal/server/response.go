package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// ApiResponse is the envelope of every JSON response.
type ApiResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body ApiResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Default().Error("failed to write response", "error", err)
	}
}

func writeSuccess(w http.ResponseWriter, message string, data any) {
	writeJSON(w, http.StatusOK, ApiResponse{Success: true, Message: message, Data: data})
}

func writeError(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, ApiResponse{Success: false, Message: message, Data: data})
}
