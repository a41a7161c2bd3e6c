package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func decodeReadinessResponse(t *testing.T, rec *httptest.ResponseRecorder) ReadinessResponse {
	t.Helper()
	var response ReadinessResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return response
}

func okPing(context.Context) error { return nil }

func TestHealthzHandler(t *testing.T) {
	handler := NewHealthHandler(nil)
	rec := httptest.NewRecorder()
	handler.HealthzHandler(rec, httptest.NewRequest("GET", "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
}

func TestReadyzHandler_AllHealthy(t *testing.T) {
	handler := NewHealthHandler(map[string]Pinger{
		"mongo": PingFunc(okPing),
		"redis": PingFunc(okPing),
	})
	rec := httptest.NewRecorder()
	handler.ReadyzHandler(rec, httptest.NewRequest("GET", "/readyz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	response := decodeReadinessResponse(t, rec)
	if response.Status != "ready" {
		t.Errorf("expected status 'ready', got '%s'", response.Status)
	}
	if response.Service != "interview" {
		t.Errorf("expected service 'interview', got '%s'", response.Service)
	}
	for _, name := range []string{"mongo", "redis"} {
		if check := response.Checks[name]; check.Status != "ok" {
			t.Errorf("check %s: expected status 'ok', got '%s'", name, check.Status)
		}
	}
}

func TestReadyzHandler_DependencyFails(t *testing.T) {
	handler := NewHealthHandler(map[string]Pinger{
		"mongo": PingFunc(okPing),
		"redis": PingFunc(func(context.Context) error { return errors.New("connection refused") }),
	})
	rec := httptest.NewRecorder()
	handler.ReadyzHandler(rec, httptest.NewRequest("GET", "/readyz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", rec.Code)
	}
	response := decodeReadinessResponse(t, rec)
	if response.Status != "not_ready" {
		t.Errorf("expected status 'not_ready', got '%s'", response.Status)
	}
	if check := response.Checks["redis"]; check.Status != "failed" || check.Message != "connection refused" {
		t.Errorf("unexpected redis check: %+v", check)
	}
	if check := response.Checks["mongo"]; check.Status != "ok" {
		t.Errorf("expected mongo ok, got %+v", check)
	}
}
