package model

import "fmt"

// MoodLog is one self-reported mood rating.
type MoodLog struct {
	LogID        string `json:"logId,omitempty"`
	RecordedDate Date   `json:"recordedDate"`
	Mood         int    `json:"mood"`
	Comment      string `json:"comment,omitempty"`
	Rev          int    `json:"_rev,omitempty"`
}

func (m MoodLog) EntityID() string { return m.LogID }
func (m MoodLog) EntityDate() Date { return m.RecordedDate }

// Validate checks the rating is on the 1-10 scale.
func (m MoodLog) Validate() error {
	if m.Mood < 1 || m.Mood > 10 {
		return fmt.Errorf("mood must be between 1 and 10, got %d", m.Mood)
	}
	return nil
}
