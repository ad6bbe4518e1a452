package model

import "fmt"

// Contact is one supporter, professional or urgent service on a safety plan.
type Contact struct {
	Name            string `json:"name"`
	Address         string `json:"address,omitempty"`
	PhoneNumber     string `json:"phoneNumber,omitempty"`
	EmergencyNumber string `json:"emergencyNumber,omitempty"`
}

// SafetyPlan is the flat per-patient safety plan.
type SafetyPlan struct {
	Assigned            bool      `json:"assigned"`
	AssignedDateTime    *Date     `json:"assignedDateTime,omitempty"`
	LastUpdatedDateTime *Date     `json:"lastUpdatedDateTime,omitempty"`
	ReasonsForLiving    string    `json:"reasonsForLiving,omitempty"`
	WarningSigns        []string  `json:"warningSigns,omitempty"`
	CopingStrategies    []string  `json:"copingStrategies,omitempty"`
	SocialDistractions  []Contact `json:"socialDistractions,omitempty"`
	SafeEnvironment     []string  `json:"safeEnvironment,omitempty"`
	Supporters          []Contact `json:"supporters,omitempty"`
	Professionals       []Contact `json:"professionals,omitempty"`
	UrgentServices      []Contact `json:"urgentServices,omitempty"`
	Rev                 int       `json:"_rev,omitempty"`
}

// ContactList names one of the plan's contact lists.
type ContactList string

const (
	ListSocialDistractions ContactList = "socialDistractions"
	ListSupporters         ContactList = "supporters"
	ListProfessionals      ContactList = "professionals"
	ListUrgentServices     ContactList = "urgentServices"
)

func (p *SafetyPlan) contacts(list ContactList) (*[]Contact, error) {
	switch list {
	case ListSocialDistractions:
		return &p.SocialDistractions, nil
	case ListSupporters:
		return &p.Supporters, nil
	case ListProfessionals:
		return &p.Professionals, nil
	case ListUrgentServices:
		return &p.UrgentServices, nil
	}
	return nil, fmt.Errorf("unknown contact list %q", list)
}

// AddContact appends c to the named list.
func (p *SafetyPlan) AddContact(list ContactList, c Contact) error {
	l, err := p.contacts(list)
	if err != nil {
		return err
	}
	*l = append(*l, c)
	return nil
}

// RemoveContact deletes the contact at index i from the named list. Removal is
// a hard delete; the plan is submitted without it.
func (p *SafetyPlan) RemoveContact(list ContactList, i int) error {
	l, err := p.contacts(list)
	if err != nil {
		return err
	}
	if i < 0 || i >= len(*l) {
		return fmt.Errorf("%s: index %d out of range", list, i)
	}
	out := make([]Contact, 0, len(*l)-1)
	out = append(out, (*l)[:i]...)
	*l = append(out, (*l)[i+1:]...)
	return nil
}
