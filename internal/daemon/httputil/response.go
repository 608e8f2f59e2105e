// Package httputil provides JSON response helpers shared by the API handlers.
package httputil

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// WriteJSON writes data as a JSON body with the given status code. Encoding
// failures are logged; the status line has already been sent at that point.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to write JSON response", slog.Any("error", err))
	}
}

// WriteError writes the API's error envelope, {"error": message}, with the
// given status code.
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]string{
		"error": message,
	})
}
