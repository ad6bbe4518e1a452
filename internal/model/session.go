package model

import "sort"

// Fixed checklist keys. Flag sets are always sent with every key present.
var (
	BehavioralStrategyKeys = []string{
		"Behavioral Activation",
		"Motivational Interviewing",
		"Problem Solving Therapy",
		"Cognitive Therapy",
		"Mindfulness Strategies",
		"Supportive Therapy",
		"Other",
	}

	BehavioralActivationKeys = []string{
		"Review of the BA model",
		"Values and goals assessment",
		"Activity scheduling",
		"Mood and activity monitoring",
		"Relaxation",
		"Contingency management",
		"Managing avoidance behaviors",
		"Problem-solving",
	}
)

// Session types.
const (
	SessionTypeInPerson   = "In person at clinic"
	SessionTypeTelehealth = "Telehealth"
	SessionTypePhone      = "Phone"
)

// Referral is a free-text referral and its outcome.
type Referral struct {
	ReferralType   string `json:"referralType"`
	ReferralStatus string `json:"referralStatus"`
	ReferralOther  string `json:"referralOther,omitempty"`
}

// Session is one care-management encounter.
type Session struct {
	SessionID                     string          `json:"sessionId,omitempty"`
	Date                          Date            `json:"date"`
	SessionType                   string          `json:"sessionType"`
	BillableMinutes               int             `json:"billableMinutes"`
	MedicationChange              string          `json:"medicationChange,omitempty"`
	CurrentMedications            string          `json:"currentMedications,omitempty"`
	BehavioralStrategyChecklist   map[string]bool `json:"behavioralStrategyChecklist"`
	BehavioralStrategyOther       string          `json:"behavioralStrategyOther,omitempty"`
	BehavioralActivationChecklist map[string]bool `json:"behavioralActivationChecklist"`
	Referrals                     []Referral      `json:"referrals,omitempty"`
	OtherRecommendations          string          `json:"otherRecommendations,omitempty"`
	SessionNote                   string          `json:"sessionNote,omitempty"`
	Rev                           int             `json:"_rev,omitempty"`
}

func (s Session) EntityID() string { return s.SessionID }
func (s Session) EntityDate() Date { return s.Date }

// CaseReview is a psychiatrist consultation record.
type CaseReview struct {
	ReviewID                    string          `json:"reviewId,omitempty"`
	Date                        Date            `json:"date"`
	ConsultingPsychiatrist      Provider        `json:"consultingPsychiatrist"`
	MedicationChange            string          `json:"medicationChange,omitempty"`
	BehavioralStrategyChecklist map[string]bool `json:"behavioralStrategyChecklist"`
	BehavioralStrategyOther     string          `json:"behavioralStrategyOther,omitempty"`
	Referrals                   []Referral      `json:"referrals,omitempty"`
	ReviewNote                  string          `json:"reviewNote,omitempty"`
	Rev                         int             `json:"_rev,omitempty"`
}

func (r CaseReview) EntityID() string { return r.ReviewID }
func (r CaseReview) EntityDate() Date { return r.Date }

// NormalizeFlags returns a copy of flags holding exactly the given keys, with
// keys missing from flags set to false.
func NormalizeFlags(flags map[string]bool, keys []string) map[string]bool {
	out := make(map[string]bool, len(keys))
	for _, k := range keys {
		out[k] = flags[k]
	}
	return out
}

// Normalized returns the session with both checklists expanded to the full key set.
func (s Session) Normalized() Session {
	s.BehavioralStrategyChecklist = NormalizeFlags(s.BehavioralStrategyChecklist, BehavioralStrategyKeys)
	s.BehavioralActivationChecklist = NormalizeFlags(s.BehavioralActivationChecklist, BehavioralActivationKeys)
	return s
}

// Normalized returns the review with its checklist expanded to the full key set.
func (r CaseReview) Normalized() CaseReview {
	r.BehavioralStrategyChecklist = NormalizeFlags(r.BehavioralStrategyChecklist, BehavioralStrategyKeys)
	return r
}

// SessionOrCaseReview is one row of the combined chronological encounter list.
type SessionOrCaseReview struct {
	Session    *Session
	CaseReview *CaseReview
}

func (e SessionOrCaseReview) Date() Date {
	if e.Session != nil {
		return e.Session.Date
	}
	return e.CaseReview.Date
}

// MergeEncounters returns sessions and case reviews together, newest first.
func MergeEncounters(sessions []Session, reviews []CaseReview) []SessionOrCaseReview {
	out := make([]SessionOrCaseReview, 0, len(sessions)+len(reviews))
	for i := range sessions {
		out = append(out, SessionOrCaseReview{Session: &sessions[i]})
	}
	for i := range reviews {
		out = append(out, SessionOrCaseReview{CaseReview: &reviews[i]})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date().After(out[j].Date().Time)
	})
	return out
}
