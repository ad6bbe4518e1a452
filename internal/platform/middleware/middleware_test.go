package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/uwscope/scope-web-sub000/internal/model"
	"github.com/uwscope/scope-web-sub000/internal/platform/auth"
	"github.com/uwscope/scope-web-sub000/internal/platform/metrics"
)

func TestRequestID_GeneratesNew(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	err := RequestID()(func(c echo.Context) error {
		if rid, _ := c.Get("request_id").(string); rid == "" {
			t.Error("expected request_id to be generated")
		}
		return c.String(http.StatusOK, "ok")
	})(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("expected X-Request-ID response header")
	}
}

func TestRequestID_PreservesExisting(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "my-custom-id")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	_ = RequestID()(func(c echo.Context) error {
		if rid := c.Get("request_id").(string); rid != "my-custom-id" {
			t.Errorf("expected my-custom-id, got %s", rid)
		}
		return nil
	})(c)
	if rec.Header().Get(RequestIDHeader) != "my-custom-id" {
		t.Errorf("expected my-custom-id in response header, got %s", rec.Header().Get(RequestIDHeader))
	}
}

func TestLogger_WritesErrorResponse(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/missing", nil), rec)
	c.Set("request_id", "req-1")

	err := Logger(logger)(func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "nope")
	})(c)
	if err != nil {
		t.Fatalf("logger should absorb handled errors, got %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 written, got %d", rec.Code)
	}

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if line["level"] != "warn" || line["request_id"] != "req-1" || line["status"] != float64(404) {
		t.Errorf("unexpected log line %v", line)
	}
}

func TestRecovery_CatchesPanic(t *testing.T) {
	logger := zerolog.New(os.Stderr)
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/panic", nil), httptest.NewRecorder())

	err := Recovery(logger)(func(c echo.Context) error {
		panic("test panic")
	})(c)
	expectCode(t, err, http.StatusInternalServerError)
}

func TestRecovery_PassesThrough(t *testing.T) {
	logger := zerolog.New(os.Stderr)
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/ok", nil), httptest.NewRecorder())

	if err := Recovery(logger)(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAudit_LogsRecordAccess(t *testing.T) {
	var buf bytes.Buffer
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/patient/p1/sessions", nil)
	ctx := context.WithValue(req.Context(), auth.UserIDKey, "cm1")
	ctx = context.WithValue(ctx, auth.IdentityKey, model.Identity{Name: "CM", Role: model.RoleSocialWorker, ProviderID: "cm1"})
	c := e.NewContext(req.WithContext(ctx), httptest.NewRecorder())
	c.SetPath("/patient/:id/sessions")
	c.SetParamNames("id")
	c.SetParamValues("p1")

	if err := Audit(zerolog.New(&buf))(func(c echo.Context) error {
		return c.NoContent(http.StatusCreated)
	})(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected one JSON audit line: %v", err)
	}
	want := map[string]any{
		"user_id":    "cm1",
		"role":       "socialWorker",
		"patient_id": "p1",
		"resource":   "sessions",
		"action":     "create",
		"status":     float64(201),
	}
	for k, v := range want {
		if line[k] != v {
			t.Errorf("%s: got %v, want %v", k, line[k], v)
		}
	}
}

func TestAudit_SkipsRegistryRoutes(t *testing.T) {
	var buf bytes.Buffer
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/patients", nil), httptest.NewRecorder())
	c.SetPath("/patients")

	_ = Audit(zerolog.New(&buf))(func(c echo.Context) error { return nil })(c)
	if buf.Len() != 0 {
		t.Errorf("expected no audit line, got %s", buf.String())
	}
}

func TestResourceOf(t *testing.T) {
	tests := map[string]string{
		"/patient/:id":                 "patient",
		"/patient/:id/profile":         "profile",
		"/patient/:id/activities/:aid": "activities",
		"/patient/:id/safetyplan":      "safetyplan",
	}
	for route, want := range tests {
		if got := resourceOf(route); got != want {
			t.Errorf("resourceOf(%s) = %s, want %s", route, got, want)
		}
	}
}

func TestMetrics_CountsByRoute(t *testing.T) {
	m := metrics.NewCollector("test")
	e := echo.New()
	mw := Metrics(m)

	for _, status := range []int{http.StatusOK, http.StatusOK, http.StatusConflict} {
		c := e.NewContext(httptest.NewRequest(http.MethodPut, "/patient/p1/profile", nil), httptest.NewRecorder())
		c.SetPath("/patient/:id/profile")
		code := status
		_ = mw(func(c echo.Context) error {
			if code != http.StatusOK {
				return echo.NewHTTPError(code, "conflict")
			}
			return c.NoContent(code)
		})(c)
	}

	if got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("PUT", "/patient/:id/profile", "200")); got != 2 {
		t.Errorf("expected 2 ok requests, got %v", got)
	}
	if got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("PUT", "/patient/:id/profile", "409")); got != 1 {
		t.Errorf("expected 1 conflict, got %v", got)
	}
}

func TestMetrics_NilCollector(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	sentinel := errors.New("boom")
	if err := Metrics(nil)(func(echo.Context) error { return sentinel })(c); !errors.Is(err, sentinel) {
		t.Errorf("expected handler error to pass through, got %v", err)
	}
}
