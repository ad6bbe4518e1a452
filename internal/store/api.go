// Package store holds the observable client-side state for the registry and
// for each patient. Every write goes through the backend first and is folded
// into local state only with the server's canonical answer.
package store

import (
	"context"

	"github.com/uwscope/scope-web-sub000/internal/model"
	"github.com/uwscope/scope-web-sub000/internal/service"
)

// PatientAPI is the per-patient backend surface. *service.PatientService
// implements it.
type PatientAPI interface {
	GetPatient(ctx context.Context) (model.PatientDocument, error)

	UpdateProfile(ctx context.Context, p model.Profile) (model.Profile, error)
	UpdateClinicalHistory(ctx context.Context, h model.ClinicalHistory) (model.ClinicalHistory, error)
	UpdateValuesInventory(ctx context.Context, v model.ValuesInventory) (model.ValuesInventory, error)
	UpdateSafetyPlan(ctx context.Context, p model.SafetyPlan) (model.SafetyPlan, error)

	AddSession(ctx context.Context, d model.Draft[model.Session]) (model.Session, error)
	UpdateSession(ctx context.Context, v model.Session) (model.Session, error)
	AddCaseReview(ctx context.Context, d model.Draft[model.CaseReview]) (model.CaseReview, error)
	UpdateCaseReview(ctx context.Context, v model.CaseReview) (model.CaseReview, error)

	UpdateAssessment(ctx context.Context, v model.Assessment) (model.Assessment, error)
	AddAssessmentLog(ctx context.Context, d model.Draft[model.AssessmentLog]) (model.AssessmentLog, error)
	UpdateAssessmentLog(ctx context.Context, v model.AssessmentLog) (model.AssessmentLog, error)

	AddActivity(ctx context.Context, d model.Draft[model.Activity]) (model.Activity, error)
	UpdateActivity(ctx context.Context, v model.Activity) (model.Activity, error)
	AddValue(ctx context.Context, d model.Draft[model.Value]) (model.Value, error)
	UpdateValue(ctx context.Context, v model.Value) (model.Value, error)
	AddActivitySchedule(ctx context.Context, d model.Draft[model.ActivitySchedule]) (service.ScheduleResult, error)
	AddActivityLog(ctx context.Context, d model.Draft[model.ActivityLog]) (model.ActivityLog, error)
	AddMoodLog(ctx context.Context, d model.Draft[model.MoodLog]) (model.MoodLog, error)
}

// RegistryAPI is the roster-level backend surface. *service.RegistryService
// implements it.
type RegistryAPI interface {
	GetPatients(ctx context.Context) ([]model.PatientSummary, error)
	GetProviders(ctx context.Context) ([]model.Provider, error)
	AddPatient(ctx context.Context, draft model.Draft[model.Profile]) (model.PatientSummary, error)
}

var (
	_ PatientAPI  = (*service.PatientService)(nil)
	_ RegistryAPI = (*service.RegistryService)(nil)
)
