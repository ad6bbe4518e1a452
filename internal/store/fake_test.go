package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/uwscope/scope-web-sub000/internal/model"
	"github.com/uwscope/scope-web-sub000/internal/platform/metrics"
	"github.com/uwscope/scope-web-sub000/internal/service"
)

var testNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func testOptions() Options {
	return Options{
		RecentWindow: 14 * 24 * time.Hour,
		Now:          func() time.Time { return testNow },
		Logger:       zerolog.Nop(),
		Metrics:      metrics.NewCollector("test"),
	}
}

func daysAgo(n int) model.Date {
	return model.NewDate(testNow.AddDate(0, 0, -n))
}

func conflictWith(t *testing.T, current any) error {
	t.Helper()
	raw, err := json.Marshal(current)
	if err != nil {
		t.Fatal(err)
	}
	return &service.ConflictError{Method: "PUT", Path: "/test", Current: raw}
}

// fakePatientAPI echoes writes back with server ids, or fails them with err.
type fakePatientAPI struct {
	mu      sync.Mutex
	doc     model.PatientDocument
	loadErr error
	err     error
	nextID  int
	calls   []string

	// gate, when set, blocks GetPatient until closed.
	gate      chan struct{}
	// duringLog runs inside AddActivityLog before it answers.
	duringLog func()
}

func (f *fakePatientAPI) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.err
}

func (f *fakePatientAPI) id(prefix string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

func (f *fakePatientAPI) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakePatientAPI) GetPatient(ctx context.Context) (model.PatientDocument, error) {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return model.PatientDocument{}, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "GetPatient")
	return f.doc, f.loadErr
}

func (f *fakePatientAPI) UpdateProfile(_ context.Context, p model.Profile) (model.Profile, error) {
	p.Rev++
	return p, f.record("UpdateProfile")
}

func (f *fakePatientAPI) UpdateClinicalHistory(_ context.Context, h model.ClinicalHistory) (model.ClinicalHistory, error) {
	return h, f.record("UpdateClinicalHistory")
}

func (f *fakePatientAPI) UpdateValuesInventory(_ context.Context, v model.ValuesInventory) (model.ValuesInventory, error) {
	return v, f.record("UpdateValuesInventory")
}

func (f *fakePatientAPI) UpdateSafetyPlan(_ context.Context, p model.SafetyPlan) (model.SafetyPlan, error) {
	return p, f.record("UpdateSafetyPlan")
}

func (f *fakePatientAPI) AddSession(_ context.Context, d model.Draft[model.Session]) (model.Session, error) {
	if err := f.record("AddSession"); err != nil {
		return model.Session{}, err
	}
	v := d.Value
	v.SessionID = f.id("session")
	return v, nil
}

func (f *fakePatientAPI) UpdateSession(_ context.Context, v model.Session) (model.Session, error) {
	return v, f.record("UpdateSession")
}

func (f *fakePatientAPI) AddCaseReview(_ context.Context, d model.Draft[model.CaseReview]) (model.CaseReview, error) {
	if err := f.record("AddCaseReview"); err != nil {
		return model.CaseReview{}, err
	}
	v := d.Value
	v.ReviewID = f.id("review")
	return v, nil
}

func (f *fakePatientAPI) UpdateCaseReview(_ context.Context, v model.CaseReview) (model.CaseReview, error) {
	return v, f.record("UpdateCaseReview")
}

func (f *fakePatientAPI) UpdateAssessment(_ context.Context, v model.Assessment) (model.Assessment, error) {
	return v, f.record("UpdateAssessment")
}

func (f *fakePatientAPI) AddAssessmentLog(_ context.Context, d model.Draft[model.AssessmentLog]) (model.AssessmentLog, error) {
	if err := f.record("AddAssessmentLog"); err != nil {
		return model.AssessmentLog{}, err
	}
	v := d.Value
	v.LogID = f.id("alog")
	return v, nil
}

func (f *fakePatientAPI) UpdateAssessmentLog(_ context.Context, v model.AssessmentLog) (model.AssessmentLog, error) {
	return v, f.record("UpdateAssessmentLog")
}

func (f *fakePatientAPI) AddActivity(_ context.Context, d model.Draft[model.Activity]) (model.Activity, error) {
	if err := f.record("AddActivity"); err != nil {
		return model.Activity{}, err
	}
	v := d.Value
	v.ActivityID = f.id("activity")
	return v, nil
}

func (f *fakePatientAPI) UpdateActivity(_ context.Context, v model.Activity) (model.Activity, error) {
	return v, f.record("UpdateActivity")
}

func (f *fakePatientAPI) AddValue(_ context.Context, d model.Draft[model.Value]) (model.Value, error) {
	if err := f.record("AddValue"); err != nil {
		return model.Value{}, err
	}
	v := d.Value
	v.ValueID = f.id("value")
	return v, nil
}

func (f *fakePatientAPI) UpdateValue(_ context.Context, v model.Value) (model.Value, error) {
	return v, f.record("UpdateValue")
}

func (f *fakePatientAPI) AddActivitySchedule(_ context.Context, d model.Draft[model.ActivitySchedule]) (service.ScheduleResult, error) {
	if err := f.record("AddActivitySchedule"); err != nil {
		return service.ScheduleResult{}, err
	}
	v := d.Value
	v.ActivityScheduleID = f.id("schedule")
	instances := model.ExpandSchedule(v, model.Activity{ActivityID: v.ActivityID}, nil, testNow.AddDate(0, 0, -1), testNow.AddDate(0, 0, 7))
	for i := range instances {
		instances[i].ScheduledActivityID = f.id("sa")
	}
	return service.ScheduleResult{ActivitySchedule: v, ScheduledActivities: instances}, nil
}

func (f *fakePatientAPI) AddActivityLog(_ context.Context, d model.Draft[model.ActivityLog]) (model.ActivityLog, error) {
	if err := f.record("AddActivityLog"); err != nil {
		return model.ActivityLog{}, err
	}
	if f.duringLog != nil {
		f.duringLog()
	}
	v := d.Value
	v.LogID = f.id("actlog")
	return v, nil
}

func (f *fakePatientAPI) AddMoodLog(_ context.Context, d model.Draft[model.MoodLog]) (model.MoodLog, error) {
	if err := f.record("AddMoodLog"); err != nil {
		return model.MoodLog{}, err
	}
	v := d.Value
	v.LogID = f.id("mood")
	return v, nil
}

// fakeRegistryAPI serves a fixed roster and directory.
type fakeRegistryAPI struct {
	mu           sync.Mutex
	patients     []model.PatientSummary
	providers    []model.Provider
	patientsErr  error
	providersErr error
	nextID       int

	patientsGate  chan struct{}
	providersGate chan struct{}
}

func (f *fakeRegistryAPI) GetPatients(ctx context.Context) ([]model.PatientSummary, error) {
	if f.patientsGate != nil {
		<-f.patientsGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.PatientSummary(nil), f.patients...), f.patientsErr
}

func (f *fakeRegistryAPI) GetProviders(ctx context.Context) ([]model.Provider, error) {
	if f.providersGate != nil {
		<-f.providersGate
	}
	return f.providers, f.providersErr
}

func (f *fakeRegistryAPI) AddPatient(_ context.Context, d model.Draft[model.Profile]) (model.PatientSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	sum := model.PatientSummary{PatientID: fmt.Sprintf("new-%d", f.nextID), Profile: d.Value}
	f.patients = append(f.patients, sum)
	return sum, nil
}

func (f *fakeRegistryAPI) profile(patientID string) model.Profile {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.patients {
		if p.PatientID == patientID {
			return p.Profile
		}
	}
	return model.Profile{}
}
