package model

import "strings"

// ProviderRole is the clinical role of a provider.
type ProviderRole string

const (
	RoleSocialWorker ProviderRole = "socialWorker"
	RolePsychiatrist ProviderRole = "psychiatrist"
	RoleStudyStaff   ProviderRole = "studyStaff"
	RolePatient      ProviderRole = "patient"
)

// Provider is a directory entry for a clinician or staff member.
type Provider struct {
	ProviderID string       `json:"providerId"`
	Name       string       `json:"name"`
	Role       ProviderRole `json:"role"`
}

// Identity is the application-level identity exchanged for a provider session.
// Exactly one of PatientID or ProviderID is set.
type Identity struct {
	Name       string       `json:"name"`
	Role       ProviderRole `json:"role"`
	PatientID  string       `json:"patientId,omitempty"`
	ProviderID string       `json:"providerId,omitempty"`
}

// Valid reports whether the identity carries a name and an id.
func (i *Identity) Valid() bool {
	if i == nil || strings.TrimSpace(i.Name) == "" {
		return false
	}
	if i.Role == RolePatient {
		return i.PatientID != ""
	}
	return i.ProviderID != "" || i.PatientID != ""
}

// IsPatient reports whether the identity belongs to a patient.
func (i *Identity) IsPatient() bool {
	return i != nil && i.PatientID != ""
}
