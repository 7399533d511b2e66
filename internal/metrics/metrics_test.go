package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHealthStatus_Healthy(t *testing.T) {
	h := NewHealthStatus()
	h.SetFeedConnected(true)
	h.RedisConnected = true
	h.SQLiteOK = true
	h.SetLastCandleTime(time.Now())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status code: got %d want 200", rec.Code)
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Status != "healthy" {
		t.Errorf("status: got %q want healthy", body.Status)
	}
}

func TestHealthStatus_Degraded(t *testing.T) {
	h := NewHealthStatus()
	h.SetFeedConnected(false)
	h.RedisConnected = true
	h.SQLiteOK = true

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status code: got %d want 503", rec.Code)
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Status != "degraded" {
		t.Errorf("status: got %q want degraded", body.Status)
	}
}

func TestHealthStatus_Unhealthy(t *testing.T) {
	h := NewHealthStatus()
	h.SetFeedConnected(true)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	var body struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Status != "unhealthy" {
		t.Errorf("status: got %q want unhealthy", body.Status)
	}
}

func TestRegimeGaugeValue(t *testing.T) {
	cases := []struct {
		category string
		want     float64
	}{
		{"BEAR", 0},
		{"NEUTRAL", 1},
		{"BULL", 2},
		{"garbage", 1},
	}
	for _, tc := range cases {
		if got := RegimeGaugeValue(tc.category); got != tc.want {
			t.Errorf("%s: got %v want %v", tc.category, got, tc.want)
		}
	}
}
