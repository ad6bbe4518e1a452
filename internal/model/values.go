package model

// LifeArea is an entry of the fixed life-area taxonomy.
type LifeArea struct {
	ID   string
	Name string
}

var LifeAreas = []LifeArea{
	{ID: "relationships", Name: "Relationships"},
	{ID: "education", Name: "Education/Career"},
	{ID: "recreation", Name: "Recreation/Interests"},
	{ID: "mind", Name: "Mind/Body/Spirituality"},
	{ID: "responsibilities", Name: "Daily Responsibilities"},
}

// IsLifeArea reports whether id names a taxonomy entry.
func IsLifeArea(id string) bool {
	for _, la := range LifeAreas {
		if la.ID == id {
			return true
		}
	}
	return false
}

// Value is a patient-authored personal value under a life area.
type Value struct {
	ValueID    string `json:"valueId,omitempty"`
	Name       string `json:"name"`
	LifeAreaID string `json:"lifeAreaId"`
	EditedDate Date   `json:"editedDate"`
	Rev        int    `json:"_rev,omitempty"`
}

func (v Value) EntityID() string { return v.ValueID }
func (v Value) EntityDate() Date { return v.EditedDate }

// ValuesInventory is the singleton assignment flag record for the values
// inventory exercise.
type ValuesInventory struct {
	Assigned            bool  `json:"assigned"`
	AssignedDateTime    *Date `json:"assignedDateTime,omitempty"`
	LastUpdatedDateTime *Date `json:"lastUpdatedDateTime,omitempty"`
	Rev                 int   `json:"_rev,omitempty"`
}
