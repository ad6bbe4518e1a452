package db

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func runHealth(t *testing.T, p Pinger) (int, map[string]any) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/health/db", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := HealthHandler(p)(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return rec.Code, body
}

func TestHealthHandler_Memory(t *testing.T) {
	code, body := runHealth(t, nil)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if body["backend"] != "memory" || body["status"] != "healthy" {
		t.Errorf("unexpected body: %v", body)
	}
}

func TestHealthHandler_Healthy(t *testing.T) {
	code, body := runHealth(t, fakePinger{})
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if body["backend"] != "postgres" || body["status"] != "healthy" {
		t.Errorf("unexpected body: %v", body)
	}
}

func TestHealthHandler_Unreachable(t *testing.T) {
	code, body := runHealth(t, fakePinger{err: errors.New("connection refused")})
	if code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", code)
	}
	if body["status"] != "unhealthy" || body["error"] != "connection refused" {
		t.Errorf("unexpected body: %v", body)
	}
}
