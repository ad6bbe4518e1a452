package model

// Treatment statuses that end a patient's participation in the study.
const (
	TreatmentStatusActive      = "active"
	TreatmentStatusEndPhase    = "endPhase"
	TreatmentStatusRelapse     = "relapse"
	TreatmentStatusDischarged  = "discharged"
	TreatmentStatusExitedStudy = "exitedStudy"
)

// Profile is the demographic and enrollment record of a patient.
type Profile struct {
	Name                      string    `json:"name"`
	MRN                       string    `json:"MRN"`
	ClinicCode                string    `json:"clinicCode,omitempty"`
	BirthDate                 *Date     `json:"birthdate,omitempty"`
	Sex                       string    `json:"sex,omitempty"`
	Gender                    string    `json:"gender,omitempty"`
	Pronoun                   string    `json:"pronoun,omitempty"`
	Race                      []string  `json:"race,omitempty"`
	Ethnicity                 string    `json:"ethnicity,omitempty"`
	PrimaryOncologyProvider   *Provider `json:"primaryOncologyProvider,omitempty"`
	PrimaryCareManager        *Provider `json:"primaryCareManager,omitempty"`
	DiscussionFlag            []string  `json:"discussionFlag,omitempty"`
	FollowupSchedule          string    `json:"followupSchedule,omitempty"`
	DepressionTreatmentStatus string    `json:"depressionTreatmentStatus,omitempty"`
	EnrollmentDate            *Date     `json:"enrollmentDate,omitempty"`
	Rev                       int       `json:"_rev,omitempty"`
}

// ExitedStudy reports whether the patient has left the study.
func (p Profile) ExitedStudy() bool {
	return p.DepressionTreatmentStatus == TreatmentStatusExitedStudy
}

// CareManagerName returns the primary care manager's name, or "".
func (p Profile) CareManagerName() string {
	if p.PrimaryCareManager == nil {
		return ""
	}
	return p.PrimaryCareManager.Name
}

// ClinicalHistory is the singleton oncology and psychiatric history record.
type ClinicalHistory struct {
	PrimaryCancerDiagnosis       string          `json:"primaryCancerDiagnosis,omitempty"`
	DateOfCancerDiagnosis        string          `json:"dateOfCancerDiagnosis,omitempty"`
	CurrentTreatmentRegimen      map[string]bool `json:"currentTreatmentRegimen,omitempty"`
	CurrentTreatmentRegimenOther string          `json:"currentTreatmentRegimenOther,omitempty"`
	CurrentTreatmentRegimenNotes string          `json:"currentTreatmentRegimenNotes,omitempty"`
	PsychDiagnosis               string          `json:"psychDiagnosis,omitempty"`
	PastPsychHistory             string          `json:"pastPsychHistory,omitempty"`
	PastSubstanceUse             string          `json:"pastSubstanceUse,omitempty"`
	PsychSocialBackground        string          `json:"psychSocialBackground,omitempty"`
	Rev                          int             `json:"_rev,omitempty"`
}

// PatientSummary is one roster row.
type PatientSummary struct {
	PatientID string  `json:"patientId"`
	Profile   Profile `json:"profile"`
}

// PatientDocument is the whole-patient payload returned by a single load.
type PatientDocument struct {
	PatientID           string              `json:"_id"`
	Identity            Identity            `json:"identity"`
	Profile             Profile             `json:"profile"`
	ClinicalHistory     ClinicalHistory     `json:"clinicalHistory"`
	ValuesInventory     ValuesInventory     `json:"valuesInventory"`
	SafetyPlan          SafetyPlan          `json:"safetyPlan"`
	Sessions            []Session           `json:"sessions"`
	CaseReviews         []CaseReview        `json:"caseReviews"`
	Assessments         []Assessment        `json:"assessments"`
	AssessmentLogs      []AssessmentLog     `json:"assessmentLogs"`
	Activities          []Activity          `json:"activities"`
	ActivitySchedules   []ActivitySchedule  `json:"activitySchedules"`
	ScheduledActivities []ScheduledActivity `json:"scheduledActivities"`
	ActivityLogs        []ActivityLog       `json:"activityLogs"`
	MoodLogs            []MoodLog           `json:"moodLogs"`
	Values              []Value             `json:"values"`
	PushSubscriptions   []PushSubscription  `json:"pushSubscriptions"`
}

// Summary returns the roster row for the document.
func (d *PatientDocument) Summary() PatientSummary {
	return PatientSummary{PatientID: d.PatientID, Profile: d.Profile}
}
