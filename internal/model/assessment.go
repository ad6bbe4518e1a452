package model

import "fmt"

// Assessment instrument ids.
const (
	AssessmentPHQ9       = "phq-9"
	AssessmentGAD7       = "gad-7"
	AssessmentMedication = "medication"
)

// Assessment frequencies.
const (
	FrequencyDaily    = "Daily"
	FrequencyWeekly   = "Once a week"
	FrequencyBiweekly = "Every 2 weeks"
	FrequencyMonthly  = "Every 4 weeks"
)

// Instrument describes a standardized questionnaire.
type Instrument struct {
	ID        string
	Name      string
	Questions []string
	MaxPoint  int
	// Bands are inclusive lower bounds of each severity label, ascending.
	Bands []SeverityBand
}

// SeverityBand labels totals at or above Min.
type SeverityBand struct {
	Min   int
	Label string
}

var Instruments = map[string]Instrument{
	AssessmentPHQ9: {
		ID:   AssessmentPHQ9,
		Name: "PHQ-9",
		Questions: []string{
			"Interest", "Feeling", "Sleep", "Tired", "Appetite",
			"Failure", "Concentrating", "Slowness", "Suicide",
		},
		MaxPoint: 3,
		Bands: []SeverityBand{
			{0, "Minimal"}, {5, "Mild"}, {10, "Moderate"},
			{15, "Moderately severe"}, {20, "Severe"},
		},
	},
	AssessmentGAD7: {
		ID:   AssessmentGAD7,
		Name: "GAD-7",
		Questions: []string{
			"Anxious", "Constant worrying", "Worrying too much", "Trouble relaxing",
			"Restless", "Irritable", "Afraid",
		},
		MaxPoint: 3,
		Bands: []SeverityBand{
			{0, "Minimal"}, {5, "Mild"}, {10, "Moderate"}, {15, "Severe"},
		},
	},
}

// Severity returns the label for a total score.
func (in Instrument) Severity(total int) string {
	label := ""
	for _, b := range in.Bands {
		if total >= b.Min {
			label = b.Label
		}
	}
	return label
}

// Assessment is the assignment of an instrument to a patient.
type Assessment struct {
	AssessmentID string `json:"assessmentId"`
	Assigned     bool   `json:"assigned"`
	AssignedDate *Date  `json:"assignedDate,omitempty"`
	Frequency    string `json:"frequency,omitempty"`
	DayOfWeek    string `json:"dayOfWeek,omitempty"`
	Rev          int    `json:"_rev,omitempty"`
}

func (a Assessment) EntityID() string { return a.AssessmentID }

// AssessmentLog is one completed instance of an assessment.
type AssessmentLog struct {
	LogID                 string         `json:"logId,omitempty"`
	AssessmentID          string         `json:"assessmentId"`
	RecordedDate          Date           `json:"recordedDate"`
	PointValues           map[string]int `json:"pointValues,omitempty"`
	TotalScore            *int           `json:"totalScore,omitempty"`
	Comment               string         `json:"comment,omitempty"`
	PatientSubmitted      bool           `json:"patientSubmitted"`
	SubmittedByProviderID string         `json:"submittedByProviderId,omitempty"`
	Rev                   int            `json:"_rev,omitempty"`
}

func (l AssessmentLog) EntityID() string { return l.LogID }
func (l AssessmentLog) EntityDate() Date { return l.RecordedDate }

// Total returns the log's total score. Point values, when present, always
// determine the total; a log recorded without per-question values carries its
// total in TotalScore. ok is false when neither is available.
func (l AssessmentLog) Total() (total int, ok bool) {
	if len(l.PointValues) > 0 {
		for _, v := range l.PointValues {
			total += v
		}
		return total, true
	}
	if l.TotalScore != nil {
		return *l.TotalScore, true
	}
	return 0, false
}

// Complete reports whether every question of the instrument has a value.
func (l AssessmentLog) Complete(in Instrument) bool {
	for _, q := range in.Questions {
		if _, ok := l.PointValues[q]; !ok {
			return false
		}
	}
	return true
}

// Validate checks point values against the instrument's question set and range.
func (l AssessmentLog) Validate() error {
	in, ok := Instruments[l.AssessmentID]
	if !ok {
		return nil
	}
	known := make(map[string]bool, len(in.Questions))
	for _, q := range in.Questions {
		known[q] = true
	}
	for q, v := range l.PointValues {
		if !known[q] {
			return fmt.Errorf("%s has no question %q", in.Name, q)
		}
		if v < 0 || v > in.MaxPoint {
			return fmt.Errorf("%s question %q: value %d out of range 0-%d", in.Name, q, v, in.MaxPoint)
		}
	}
	return nil
}
