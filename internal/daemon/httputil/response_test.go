package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWriteJSON(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		data       any
		wantStatus int
		wantJSON   string
	}{
		{
			name:       "success with map",
			status:     http.StatusOK,
			data:       map[string]string{"message": "success"},
			wantStatus: http.StatusOK,
			wantJSON:   `{"message":"success"}`,
		},
		{
			name:       "created with struct",
			status:     http.StatusCreated,
			data:       struct{ ID int }{ID: 42},
			wantStatus: http.StatusCreated,
			wantJSON:   `{"ID":42}`,
		},
		{
			name:       "error status code",
			status:     http.StatusInternalServerError,
			data:       map[string]string{"error": "something went wrong"},
			wantStatus: http.StatusInternalServerError,
			wantJSON:   `{"error":"something went wrong"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteJSON(w, tt.status, tt.data)

			if w.Code != tt.wantStatus {
				t.Errorf("WriteJSON() status = %v, want %v", w.Code, tt.wantStatus)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("WriteJSON() Content-Type = %v, want application/json", ct)
			}

			var got, want map[string]any
			if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
				t.Fatalf("Failed to unmarshal response: %v", err)
			}
			if err := json.Unmarshal([]byte(tt.wantJSON), &want); err != nil {
				t.Fatalf("Failed to unmarshal expected JSON: %v", err)
			}
			for k, v := range want {
				if got[k] != v {
					t.Errorf("WriteJSON() response[%s] = %v, want %v", k, got[k], v)
				}
			}
		})
	}
}

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, http.StatusNotFound, "resource not found")

	if w.Code != http.StatusNotFound {
		t.Errorf("WriteError() status = %v, want %v", w.Code, http.StatusNotFound)
	}

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if body["error"] != "resource not found" {
		t.Errorf("WriteError() error = %q, want %q", body["error"], "resource not found")
	}
}
