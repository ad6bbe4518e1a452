package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uwscope/scope-web-sub000/internal/model"
	"github.com/uwscope/scope-web-sub000/internal/platform/metrics"
)

func newTestClient(t *testing.T, h http.HandlerFunc, mutate ...func(*Options)) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	opts := Options{
		BaseURL:   srv.URL,
		Timeout:   2 * time.Second,
		RetryWait: time.Millisecond,
		Logger:    zerolog.Nop(),
		Metrics:   metrics.NewCollector("test"),
	}
	for _, m := range mutate {
		m(&opts)
	}
	return NewClient(opts)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestClient_ApplyAuthSwapsToken(t *testing.T) {
	var seen []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, []model.Provider{})
	})
	reg := NewRegistryService(c)

	_, err := reg.GetProviders(context.Background())
	require.NoError(t, err)
	c.ApplyAuth("first")
	_, err = reg.GetProviders(context.Background())
	require.NoError(t, err)
	c.ApplyAuth("second")
	_, err = reg.GetProviders(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"", "Bearer first", "Bearer second"}, seen)
}

func TestClient_UnauthorizedInvokesCallback(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, status, map[string]string{"message": "denied"})
		})
		var calls int
		c.OnUnauthorized(func(err error) { calls++ })

		_, err := NewRegistryService(c).GetIdentity(context.Background())
		require.Error(t, err)
		assert.True(t, IsUnauthorized(err))
		assert.Equal(t, 1, calls, "status %d", status)

		var he *HTTPError
		require.ErrorAs(t, err, &he)
		assert.Equal(t, "denied", he.Message)
	}
}

func TestClient_ConflictCarriesSnapshot(t *testing.T) {
	current := []model.Session{{SessionID: "s1", SessionType: model.SessionTypePhone, Rev: 3}}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusConflict, map[string]any{"error": "conflict", "current": current})
	})

	_, err := NewPatientService(c, "p1").UpdateSession(context.Background(), model.Session{SessionID: "s1", Rev: 1})
	ce, ok := AsConflict(err)
	require.True(t, ok, "expected conflict, got %v", err)

	var got []model.Session
	require.NoError(t, ce.Decode(&got))
	assert.Equal(t, current, got)
}

func TestClient_ConflictWithoutSnapshotIsHTTPError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusConflict, map[string]string{"message": "duplicate"})
	})
	_, err := NewRegistryService(c).AddPatient(context.Background(), model.NewDraft(model.Profile{Name: "x"}))
	_, ok := AsConflict(err)
	assert.False(t, ok)
	var he *HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusConflict, he.Status)
}

func TestClient_RetriesGetOnServerError(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		writeJSON(w, http.StatusOK, []model.PatientSummary{{PatientID: "p1"}})
	}, func(o *Options) { o.RetryCount = 3 })

	got, err := NewRegistryService(c).GetPatients(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.EqualValues(t, 3, hits.Load())
}

func TestClient_DoesNotRetryWrites(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}, func(o *Options) { o.RetryCount = 3 })

	_, err := NewPatientService(c, "p1").AddSession(context.Background(), model.NewDraft(model.Session{}))
	require.Error(t, err)
	assert.EqualValues(t, 1, hits.Load())
}

func TestClient_BreakerOpensAfterRepeatedFailures(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	reg := NewRegistryService(c)
	for i := 0; i < 5; i++ {
		_, _ = reg.GetProviders(context.Background())
	}
	_, err := reg.GetProviders(context.Background())
	assert.True(t, errors.Is(err, ErrUnavailable), "expected open breaker, got %v", err)
	assert.EqualValues(t, 5, hits.Load())
}

func TestPatientService_UpdateRejectsDrafts(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	ps := NewPatientService(c, "p1")
	ctx := context.Background()

	_, err := ps.UpdateSession(ctx, model.Session{})
	assert.ErrorIs(t, err, model.ErrDraftEntity)
	_, err = ps.UpdateCaseReview(ctx, model.CaseReview{})
	assert.ErrorIs(t, err, model.ErrDraftEntity)
	_, err = ps.UpdateActivity(ctx, model.Activity{})
	assert.ErrorIs(t, err, model.ErrDraftEntity)
	assert.ErrorIs(t, ps.DeletePushSubscription(ctx, ""), model.ErrDraftEntity)
}

func TestPatientService_Paths(t *testing.T) {
	var got []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = append(got, r.Method+" "+r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]any{})
	})
	ps := NewPatientService(c, "p 1")
	ctx := context.Background()

	_, _ = ps.UpdateProfile(ctx, model.Profile{})
	_, _ = ps.AddAssessmentLog(ctx, model.NewDraft(model.AssessmentLog{}))
	_, _ = ps.UpdateAssessment(ctx, model.Assessment{AssessmentID: model.AssessmentPHQ9})
	_, _ = ps.AddActivitySchedule(ctx, model.NewDraft(model.ActivitySchedule{}))
	_ = ps.DeletePushSubscription(ctx, "sub1")

	assert.Equal(t, []string{
		"PUT /patient/p 1/profile",
		"POST /patient/p 1/assessmentlogs",
		"PUT /patient/p 1/assessments/phq-9",
		"POST /patient/p 1/activities/schedule",
		"DELETE /patient/p 1/pushsubscriptions/sub1",
	}, got)
}

func TestPatientService_GetPatientHydratesTypedDates(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"_id":"p1","moodLogs":[{"logId":"m1","recordedDate":"2024-03-01","mood":4}]}`))
	})
	doc, err := NewPatientService(c, "p1").GetPatient(context.Background())
	require.NoError(t, err)
	require.Len(t, doc.MoodLogs, 1)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), doc.MoodLogs[0].RecordedDate.Time)
}
