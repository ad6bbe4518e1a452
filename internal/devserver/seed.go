package devserver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/uwscope/scope-web-sub000/internal/authstore"
	"github.com/uwscope/scope-web-sub000/internal/model"
)

// DemoAccount is a sign-in created by Seed.
type DemoAccount struct {
	Username string
	Identity model.Identity
}

var demoProviders = []model.Provider{
	{ProviderID: "provider-casey", Name: "Casey Morgan", Role: model.RoleSocialWorker},
	{ProviderID: "provider-jordan", Name: "Jordan Lee", Role: model.RolePsychiatrist},
	{ProviderID: "provider-staff", Name: "Study Staff", Role: model.RoleStudyStaff},
}

var demoPatients = []struct {
	id, name, mrn, clinic string
	careManager           int
}{
	{"patient-ash", "Ash Rivera", "MRN-1001", "Breast", 0},
	{"patient-blair", "Blair Chen", "MRN-1002", "GI", 0},
}

// Seed fills an empty repository with a provider directory, two patients and
// a sign-in for each of them, all sharing password. Seeding a repository that
// already holds the demo patients only re-registers the sign-ins.
func Seed(ctx context.Context, repo Repository, users *authstore.LocalProvider, password string, now time.Time) ([]DemoAccount, error) {
	var accounts []DemoAccount

	for _, p := range demoProviders {
		if err := repo.PutProvider(ctx, p); err != nil {
			return nil, err
		}
		ident := model.Identity{Name: p.Name, Role: p.Role, ProviderID: p.ProviderID}
		accounts = append(accounts, DemoAccount{Username: p.ProviderID, Identity: ident})
	}

	for _, dp := range demoPatients {
		cm := demoProviders[dp.careManager]
		doc := NewPatientDocument(dp.id, model.Profile{
			Name:               dp.name,
			MRN:                dp.mrn,
			ClinicCode:         dp.clinic,
			PrimaryCareManager: &cm,
		}, model.NewDate(now))
		err := repo.CreatePatient(ctx, doc)
		if err != nil && !errors.Is(err, ErrExists) {
			return nil, err
		}
		accounts = append(accounts, DemoAccount{Username: dp.id, Identity: doc.Identity})
	}

	if users != nil {
		for _, a := range accounts {
			if err := users.AddUser(a.Username, password, a.Identity, false); err != nil {
				return nil, fmt.Errorf("seed account %s: %w", a.Username, err)
			}
		}
	}
	return accounts, nil
}
