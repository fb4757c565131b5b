package health

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type staticChecker Check

func (c staticChecker) Check() Check { return Check(c) }

func TestHandlerHealthy(t *testing.T) {
	handler := NewHandler("v1.0.0")
	handler.RegisterChecker("storage", NewSimpleChecker("storage", func() error {
		return nil
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var response Response
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if response.Status != StatusHealthy {
		t.Errorf("status = %s, want healthy", response.Status)
	}
	if response.Version != "v1.0.0" {
		t.Errorf("version = %s, want v1.0.0", response.Version)
	}
	if len(response.Checks) != 1 {
		t.Errorf("checks = %d, want 1", len(response.Checks))
	}
}

func TestHandlerUnhealthyWins(t *testing.T) {
	handler := NewHandler("v1.0.0")
	handler.RegisterChecker("storage", NewSimpleChecker("storage", func() error {
		return nil
	}))
	handler.RegisterChecker("kafka", NewSimpleChecker("kafka", func() error {
		return errors.New("broker unavailable")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}

	var response Response
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if response.Status != StatusUnhealthy {
		t.Errorf("status = %s, want unhealthy", response.Status)
	}
	if response.Checks["kafka"].Message != "broker unavailable" {
		t.Errorf("unexpected kafka check: %+v", response.Checks["kafka"])
	}
}

func TestHandlerDegradedKeeps200(t *testing.T) {
	handler := NewHandler("v1.0.0")
	handler.RegisterChecker("cache", staticChecker{Name: "cache", Status: StatusDegraded})

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 for degraded", w.Code)
	}

	var response Response
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if response.Status != StatusDegraded {
		t.Errorf("status = %s, want degraded", response.Status)
	}
}

func TestLivenessHandler(t *testing.T) {
	w := httptest.NewRecorder()
	LivenessHandler(w, httptest.NewRequest(http.MethodGet, "/livez", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if w.Body.String() != "ok" {
		t.Errorf("body = %q, want ok", w.Body.String())
	}
}

func TestReadinessHandler(t *testing.T) {
	handler := NewHandler("v1.0.0")
	handler.RegisterChecker("cache", staticChecker{Name: "cache", Status: StatusDegraded})

	w := httptest.NewRecorder()
	handler.ReadinessHandler(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("degraded instance must stay ready, status = %d", w.Code)
	}

	handler.RegisterChecker("storage", NewSimpleChecker("storage", func() error {
		return errors.New("connection refused")
	}))

	w = httptest.NewRecorder()
	handler.ReadinessHandler(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("unhealthy instance must not be ready, status = %d", w.Code)
	}
}
