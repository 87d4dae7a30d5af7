package server

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

func TestHandleHealth(t *testing.T) {
	tests := []struct {
		name       string
		phase      string
		wantStatus string
		wantCode   int
	}{
		{"live pipeline", "live", "healthy", 200},
		{"backfilling", "backfilling", "starting", 200},
		{"idle", "idle", "starting", 200},
		{"failed pipeline", "failed", "unhealthy", 503},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hs := NewHealthServer(0, zap.NewNop())
			hs.SetPhaseProvider(func() string { return tt.phase })
			hs.RegisterStats("history", func() map[string]interface{} {
				return map[string]interface{}{"timeline_length": 42}
			})

			rec := httptest.NewRecorder()
			hs.handleHealth(rec, httptest.NewRequest("GET", "/health", nil))

			if rec.Code != tt.wantCode {
				t.Errorf("status code = %d, want %d", rec.Code, tt.wantCode)
			}

			var body map[string]interface{}
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if body["status"] != tt.wantStatus {
				t.Errorf("status = %v, want %s", body["status"], tt.wantStatus)
			}
			if body["phase"] != tt.phase {
				t.Errorf("phase = %v, want %s", body["phase"], tt.phase)
			}

			stats := body["stats"].(map[string]interface{})
			history := stats["history"].(map[string]interface{})
			if history["timeline_length"].(float64) != 42 {
				t.Errorf("timeline_length = %v, want 42", history["timeline_length"])
			}
		})
	}
}
