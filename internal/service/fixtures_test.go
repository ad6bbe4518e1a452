package service

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uwscope/scope-web-sub000/internal/model"
)

func TestFixtureFallback_Disabled(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	_, err := NewPatientService(c, "p1").AddMoodLog(context.Background(), model.NewDraft(model.MoodLog{Mood: 5}))
	require.Error(t, err)
}

func TestFixtureFallback_AnswersAfterDelay(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}, func(o *Options) {
		o.FixtureFallback = true
		o.FixtureDelay = 20 * time.Millisecond
	})

	start := time.Now()
	got, err := NewPatientService(c, "p1").AddMoodLog(context.Background(), model.NewDraft(model.MoodLog{Mood: 5, Comment: "ok"}))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	assert.NotEmpty(t, got.LogID)
	assert.Equal(t, 5, got.Mood)
	assert.Equal(t, "ok", got.Comment)
	assert.False(t, got.RecordedDate.IsZero())
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.FixtureFallbacks.WithLabelValues("/moodlogs")))
}

func TestFixtureFallback_NeverMasksConflicts(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusConflict, map[string]any{"error": "conflict", "current": []any{}})
	}, func(o *Options) { o.FixtureFallback = true })

	_, err := NewPatientService(c, "p1").AddActivityLog(context.Background(), model.NewDraft(model.ActivityLog{}))
	_, ok := AsConflict(err)
	assert.True(t, ok)
}

func TestFixtureFallback_Config(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotImplemented)
	}, func(o *Options) { o.FixtureFallback = true })

	cfg, err := NewRegistryService(c).GetConfig(context.Background())
	require.NoError(t, err)
	assert.Contains(t, cfg, "assessments")
	assert.IsType(t, time.Time{}, cfg["generatedAt"])
}

func TestFixtureFallback_HonoursCancellation(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}, func(o *Options) {
		o.FixtureFallback = true
		o.FixtureDelay = time.Hour
	})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := NewPatientService(c, "p1").AddMoodLog(ctx, model.NewDraft(model.MoodLog{}))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
