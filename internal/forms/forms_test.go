package forms

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uwscope/scope-web-sub000/internal/model"
	"github.com/uwscope/scope-web-sub000/internal/wizard"
)

var testNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func testOptions() Options {
	return Options{Now: func() time.Time { return testNow }}
}

// fakeWriter stands in for the patient store.
type fakeWriter struct {
	err error

	sessions       []model.Session
	updated        []model.Session
	assessmentLogs []model.AssessmentLog
	activityLogs   []model.ActivityLog
	plans          []model.SafetyPlan
	moods          []model.MoodLog
}

func (f *fakeWriter) AddSession(_ context.Context, d model.Draft[model.Session]) (model.Session, error) {
	if f.err != nil {
		return model.Session{}, f.err
	}
	s := d.Value
	s.SessionID = "s-1"
	f.sessions = append(f.sessions, s)
	return s, nil
}

func (f *fakeWriter) UpdateSession(_ context.Context, s model.Session) (model.Session, error) {
	if f.err != nil {
		return model.Session{}, f.err
	}
	s.Rev++
	f.updated = append(f.updated, s)
	return s, nil
}

func (f *fakeWriter) AddAssessmentLog(_ context.Context, d model.Draft[model.AssessmentLog]) (model.AssessmentLog, error) {
	if f.err != nil {
		return model.AssessmentLog{}, f.err
	}
	l := d.Value
	l.LogID = "al-1"
	f.assessmentLogs = append(f.assessmentLogs, l)
	return l, nil
}

func (f *fakeWriter) AddActivityLog(_ context.Context, d model.Draft[model.ActivityLog]) (model.ActivityLog, error) {
	if f.err != nil {
		return model.ActivityLog{}, f.err
	}
	l := d.Value
	l.LogID = "actlog-1"
	f.activityLogs = append(f.activityLogs, l)
	return l, nil
}

func (f *fakeWriter) UpdateSafetyPlan(_ context.Context, p model.SafetyPlan) (model.SafetyPlan, error) {
	if f.err != nil {
		return model.SafetyPlan{}, f.err
	}
	p.Rev++
	f.plans = append(f.plans, p)
	return p, nil
}

func (f *fakeWriter) AddMoodLog(_ context.Context, d model.Draft[model.MoodLog]) (model.MoodLog, error) {
	if f.err != nil {
		return model.MoodLog{}, f.err
	}
	l := d.Value
	l.LogID = "m-1"
	f.moods = append(f.moods, l)
	return l, nil
}

// finish advances through every page and dismisses the success toast.
func finish(t *testing.T, d *wizard.Dialog) {
	t.Helper()
	ctx := context.Background()
	for d.State().ActivePage < d.State().PageCount-1 {
		require.NoError(t, d.Next(ctx))
	}
	require.NoError(t, d.Next(ctx))
	require.True(t, d.State().SubmitSuccessOpen)
	d.DismissSuccess()
	require.False(t, d.IsOpen())
}

func TestSessionForm_AddAssignsServerID(t *testing.T) {
	w := &fakeWriter{}
	f := NewSessionForm(w, nil, testOptions())

	assert.Equal(t, testNow, f.Value().Date.Time)
	assert.Len(t, f.Value().BehavioralStrategyChecklist, len(model.BehavioralStrategyKeys), "checklists start with every key")

	f.Edit(func(s *model.Session) {
		s.BillableMinutes = 45
		s.SessionNote = "discussed sleep"
		s.BehavioralStrategyChecklist["Problem Solving Therapy"] = true
	})
	finish(t, f.Dialog())

	saved, ok := f.Saved()
	require.True(t, ok)
	assert.Equal(t, "s-1", saved.SessionID)
	assert.Equal(t, 45, saved.BillableMinutes)
	assert.Equal(t, "discussed sleep", saved.SessionNote)
	require.Len(t, w.sessions, 1)
	assert.True(t, w.sessions[0].BehavioralStrategyChecklist["Problem Solving Therapy"])
}

func TestSessionForm_EditExistingUpdates(t *testing.T) {
	w := &fakeWriter{}
	existing := model.Session{SessionID: "s-9", Date: model.NewDate(testNow), SessionType: model.SessionTypePhone}
	f := NewSessionForm(w, &existing, testOptions())

	f.Edit(func(s *model.Session) { s.BillableMinutes = 20 })
	finish(t, f.Dialog())

	assert.Empty(t, w.sessions)
	require.Len(t, w.updated, 1)
	assert.Equal(t, "s-9", w.updated[0].SessionID)
}

func TestSessionForm_GatesAndCloseConfirmation(t *testing.T) {
	w := &fakeWriter{}
	f := NewSessionForm(w, nil, testOptions())
	d := f.Dialog()

	d.Close()
	assert.False(t, d.IsOpen(), "an untouched form closes directly")

	f = NewSessionForm(w, nil, testOptions())
	d = f.Dialog()
	f.Edit(func(s *model.Session) { s.SessionType = "" })
	assert.ErrorIs(t, d.Next(context.Background()), wizard.ErrCannotAdvance)

	d.Close()
	assert.True(t, d.State().CloseConfirmOpen, "edits are not dropped silently")
}

func TestSessionForm_FailureKeepsInput(t *testing.T) {
	w := &fakeWriter{err: errors.New("offline")}
	f := NewSessionForm(w, nil, testOptions())
	d := f.Dialog()
	f.Edit(func(s *model.Session) { s.SessionNote = "keep me" })
	ctx := context.Background()

	require.NoError(t, d.Next(ctx))
	require.NoError(t, d.Next(ctx))
	require.Error(t, d.Next(ctx))
	assert.True(t, d.State().SubmitErrorOpen)
	assert.Equal(t, "keep me", f.Value().SessionNote)

	w.err = nil
	require.NoError(t, d.Retry(ctx))
	saved, ok := f.Saved()
	require.True(t, ok)
	assert.Equal(t, "keep me", saved.SessionNote)
}

func TestCheckIn_PHQ9(t *testing.T) {
	w := &fakeWriter{}
	f, err := NewCheckIn(w, model.AssessmentPHQ9, Submitter{Patient: true}, testOptions())
	require.NoError(t, err)
	d := f.Dialog()
	ctx := context.Background()
	questions := f.Instrument().Questions

	assert.Equal(t, len(questions)+1, d.State().PageCount)
	assert.ErrorIs(t, d.Next(ctx), wizard.ErrCannotAdvance, "unanswered question")

	assert.Error(t, f.Answer(questions[0], 4))
	assert.Error(t, f.Answer("Bogus", 1))

	for i, q := range questions {
		require.NoError(t, f.Answer(q, i%4))
	}
	f.SetComment("rough week")
	finish(t, d)

	want := 0
	for i := range questions {
		want += i % 4
	}
	assert.Equal(t, want, f.Total())
	saved, ok := f.Saved()
	require.True(t, ok)
	total, ok := saved.Total()
	require.True(t, ok)
	assert.Equal(t, want, total)
	assert.True(t, saved.PatientSubmitted)
	assert.Equal(t, testNow, saved.RecordedDate.Time)
	assert.Equal(t, "rough week", saved.Comment)
}

func TestCheckIn_UnknownInstrument(t *testing.T) {
	_, err := NewCheckIn(&fakeWriter{}, model.AssessmentMedication, Submitter{ProviderID: "cm1"}, testOptions())
	assert.Error(t, err)
}

func TestActivityLogForm(t *testing.T) {
	w := &fakeWriter{}
	scheduled := model.ScheduledActivity{
		ScheduledActivityID: "sa-1",
		DataSnapshot:        model.ScheduleSnapshot{Activity: model.Activity{Name: "Walk the dog"}},
	}
	f := NewActivityLogForm(w, scheduled, testOptions())
	d := f.Dialog()
	ctx := context.Background()

	assert.Equal(t, "Walk the dog", d.State().Title)
	assert.ErrorIs(t, d.Next(ctx), wizard.ErrCannotAdvance)
	assert.Error(t, f.SetOutcome("Maybe", ""))

	require.NoError(t, f.SetOutcome(model.SuccessYes, ""))
	require.NoError(t, d.Next(ctx))
	assert.ErrorIs(t, d.Next(ctx), wizard.ErrCannotAdvance, "ratings required after completing")
	assert.Error(t, f.Rate(11, 3))
	require.NoError(t, f.Rate(7, 5))
	finish(t, d)

	saved, ok := f.Saved()
	require.True(t, ok)
	assert.Equal(t, "sa-1", saved.ScheduledActivityID)
	assert.True(t, saved.Completed())
	assert.Equal(t, 7, *saved.Pleasure)
}

func TestActivityLogForm_SomethingElseNeedsAlternative(t *testing.T) {
	f := NewActivityLogForm(&fakeWriter{}, model.ScheduledActivity{ScheduledActivityID: "sa-2"}, testOptions())
	d := f.Dialog()

	require.NoError(t, f.SetOutcome(model.SuccessSomethingElse, ""))
	assert.ErrorIs(t, d.Next(context.Background()), wizard.ErrCannotAdvance)
	require.NoError(t, f.SetOutcome(model.SuccessSomethingElse, "went swimming"))
	require.NoError(t, d.Next(context.Background()))
	require.NoError(t, d.Next(context.Background()), "no ratings needed")
}

func TestSafetyPlanForm(t *testing.T) {
	w := &fakeWriter{}
	f := NewSafetyPlanForm(w, model.SafetyPlan{Assigned: true, Rev: 3}, testOptions())

	require.NoError(t, f.Edit(func(p *model.SafetyPlan) error {
		p.ReasonsForLiving = "my kids"
		return p.AddContact(model.ListSupporters, model.Contact{Name: "Sam", PhoneNumber: "555-0100"})
	}))
	assert.Error(t, f.Edit(func(p *model.SafetyPlan) error {
		p.ReasonsForLiving = "discarded"
		return p.RemoveContact(model.ListProfessionals, 0)
	}))
	assert.Equal(t, "my kids", f.Value().ReasonsForLiving, "a failed edit leaves the plan unchanged")

	finish(t, f.Dialog())
	require.Len(t, w.plans, 1, "saved once, when leaving the last page")
	saved, ok := f.Saved()
	require.True(t, ok)
	assert.Equal(t, 4, saved.Rev)
	assert.Len(t, saved.Supporters, 1)
}

func TestMoodForm(t *testing.T) {
	w := &fakeWriter{}
	f := NewMoodForm(w, testOptions())
	d := f.Dialog()

	assert.ErrorIs(t, d.Next(context.Background()), wizard.ErrCannotAdvance)
	assert.Error(t, f.SetMood(0, ""))
	require.NoError(t, f.SetMood(6, "ok day"))

	require.NoError(t, d.Next(context.Background()))
	d.DismissSuccess()
	assert.False(t, d.IsOpen())

	saved, ok := f.Saved()
	require.True(t, ok)
	assert.Equal(t, 6, saved.Mood)
	assert.Equal(t, testNow, saved.RecordedDate.Time)
}
