package store

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/uwscope/scope-web-sub000/internal/model"
	"github.com/uwscope/scope-web-sub000/internal/platform/metrics"
	"github.com/uwscope/scope-web-sub000/internal/platform/observe"
	"github.com/uwscope/scope-web-sub000/internal/platform/query"
)

// Filter narrows the roster. Empty fields match everything.
type Filter struct {
	CareManager string
	Clinic      string
	// ActiveOnly hides patients who have exited the study.
	ActiveOnly bool
}

func (f Filter) match(p *PatientStore) bool {
	profile := p.Profile()
	if f.CareManager != "" && profile.CareManagerName() != f.CareManager {
		return false
	}
	if f.Clinic != "" && profile.ClinicCode != f.Clinic {
		return false
	}
	if f.ActiveOnly && profile.ExitedStudy() {
		return false
	}
	return true
}

// PatientsStore is the roster: one PatientStore per patient plus the provider
// directory and the current filter.
type PatientsStore struct {
	observe.Subject

	api        RegistryAPI
	patientAPI func(patientID string) PatientAPI
	opts       Options
	logger     zerolog.Logger
	metrics    *metrics.Collector

	patients  *query.Query[[]*PatientStore]
	providers *query.Query[[]model.Provider]

	mu     sync.RWMutex
	filter Filter

	details sync.WaitGroup
}

// NewPatientsStore builds an empty roster. patientAPI returns the backend
// surface for one patient's detail store.
func NewPatientsStore(api RegistryAPI, patientAPI func(patientID string) PatientAPI, opts Options) *PatientsStore {
	opts = opts.withDefaults()
	s := &PatientsStore{
		api:        api,
		patientAPI: patientAPI,
		opts:       opts,
		logger:     opts.Logger.With().Str("store", "patients").Logger(),
		metrics:    opts.Metrics,
		patients:   query.New[[]*PatientStore](nil),
		providers:  query.New[[]model.Provider](nil),
	}
	s.patients.Subscribe(s.Notify)
	s.providers.Subscribe(s.Notify)
	return s
}

// Load fetches the roster and the provider directory concurrently. The
// fetched roster replaces the previous one, except that patients added while
// the fetch was in flight are kept. Each patient's detail load starts as soon
// as the roster arrives and is not awaited; use WaitDetails to block on them.
func (s *PatientsStore) Load(ctx context.Context) error {
	var g errgroup.Group

	g.Go(func() error {
		before := rosterIDs(s.patients.Value())
		var fresh []*PatientStore
		_, err := s.patients.Mutate(ctx, func(ctx context.Context) (query.Reducer[[]*PatientStore], error) {
			summaries, err := s.api.GetPatients(ctx)
			if err != nil {
				return nil, err
			}
			return func(current []*PatientStore) []*PatientStore {
				fresh = nil
				// Patients added while the roster was in flight keep their
				// stores, whether or not the fetched roster already has them.
				added := map[string]*PatientStore{}
				for _, p := range current {
					if !before[p.PatientID()] {
						added[p.PatientID()] = p
					}
				}
				out := make([]*PatientStore, 0, len(summaries)+len(added))
				for _, sum := range summaries {
					if p, ok := added[sum.PatientID]; ok {
						out = append(out, p)
						delete(added, sum.PatientID)
						continue
					}
					p := s.newPatient(sum)
					fresh = append(fresh, p)
					out = append(out, p)
				}
				for _, p := range current {
					if _, ok := added[p.PatientID()]; ok {
						out = append(out, p)
					}
				}
				return out
			}, nil
		})
		if err != nil {
			s.logger.Error().Err(err).Msg("roster load failed")
			return err
		}
		for _, p := range fresh {
			s.loadDetails(ctx, p)
		}
		return nil
	})

	g.Go(func() error {
		_, err := s.providers.Run(ctx, s.api.GetProviders)
		if err != nil {
			s.logger.Error().Err(err).Msg("provider directory load failed")
		}
		return err
	})

	return g.Wait()
}

func rosterIDs(stores []*PatientStore) map[string]bool {
	ids := make(map[string]bool, len(stores))
	for _, p := range stores {
		ids[p.PatientID()] = true
	}
	return ids
}

func (s *PatientsStore) newPatient(sum model.PatientSummary) *PatientStore {
	p := NewPatientStore(sum, s.patientAPI(sum.PatientID), s.opts)
	p.Subscribe(s.Notify)
	return p
}

func (s *PatientsStore) loadDetails(ctx context.Context, p *PatientStore) {
	detached := context.WithoutCancel(ctx)
	s.details.Add(1)
	go func() {
		defer s.details.Done()
		// Failures settle the patient's own queries and are logged there.
		_ = p.Load(detached)
	}()
}

// WaitDetails blocks until every detail load started so far has settled.
func (s *PatientsStore) WaitDetails() {
	s.details.Wait()
}

// State combines the roster and directory loads: pending if either is,
// rejected if either failed, fulfilled only when both are.
func (s *PatientsStore) State() query.State {
	a, b := s.patients.State(), s.providers.State()
	switch {
	case a == query.Pending || b == query.Pending:
		return query.Pending
	case a == query.Rejected || b == query.Rejected:
		return query.Rejected
	case a == query.Fulfilled && b == query.Fulfilled:
		return query.Fulfilled
	}
	return query.Idle
}

// Err returns the roster error, or else the directory error.
func (s *PatientsStore) Err() error {
	if err := s.patients.Err(); err != nil {
		return err
	}
	return s.providers.Err()
}

// AddPatient creates a patient and appends its store to the roster.
func (s *PatientsStore) AddPatient(ctx context.Context, draft model.Draft[model.Profile]) (*PatientStore, error) {
	var added *PatientStore
	_, err := s.patients.Mutate(ctx, func(ctx context.Context) (query.Reducer[[]*PatientStore], error) {
		sum, err := s.api.AddPatient(ctx, draft)
		if err != nil {
			return nil, err
		}
		added = s.newPatient(sum)
		return func(items []*PatientStore) []*PatientStore {
			return append(slices.Clone(items), added)
		}, nil
	})
	s.metrics.Mutation("patients", err)
	if err != nil {
		return nil, err
	}
	s.loadDetails(ctx, added)
	return added, nil
}

// Patients returns the whole roster, ignoring the filter.
func (s *PatientsStore) Patients() []*PatientStore {
	return slices.Clone(s.patients.Value())
}

func (s *PatientsStore) Patient(patientID string) (*PatientStore, bool) {
	for _, p := range s.patients.Value() {
		if p.PatientID() == patientID {
			return p, true
		}
	}
	return nil, false
}

func (s *PatientsStore) Filter() Filter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter
}

func (s *PatientsStore) SetFilter(f Filter) {
	s.mu.Lock()
	s.filter = f
	s.mu.Unlock()
	s.Notify()
}

func (s *PatientsStore) SetCareManagerFilter(name string) {
	f := s.Filter()
	f.CareManager = name
	s.SetFilter(f)
}

func (s *PatientsStore) SetClinicFilter(code string) {
	f := s.Filter()
	f.Clinic = code
	s.SetFilter(f)
}

func (s *PatientsStore) SetActiveOnly(active bool) {
	f := s.Filter()
	f.ActiveOnly = active
	s.SetFilter(f)
}

// Filtered returns the roster entries that pass the current filter, in roster
// order. The roster itself is never changed.
func (s *PatientsStore) Filtered() []*PatientStore {
	f := s.Filter()
	var out []*PatientStore
	for _, p := range s.patients.Value() {
		if f.match(p) {
			out = append(out, p)
		}
	}
	return out
}

// NeedingAttention returns the filtered entries whose recent data is flagged.
func (s *PatientsStore) NeedingAttention() []*PatientStore {
	var out []*PatientStore
	for _, p := range s.Filtered() {
		if p.Attention().Needed() {
			out = append(out, p)
		}
	}
	return out
}

func (s *PatientsStore) Providers() []model.Provider {
	return slices.Clone(s.providers.Value())
}

func (s *PatientsStore) providersWithRole(role model.ProviderRole) []model.Provider {
	var out []model.Provider
	for _, p := range s.providers.Value() {
		if p.Role == role {
			out = append(out, p)
		}
	}
	return out
}

func (s *PatientsStore) CareManagers() []model.Provider {
	return s.providersWithRole(model.RoleSocialWorker)
}

func (s *PatientsStore) Psychiatrists() []model.Provider {
	return s.providersWithRole(model.RolePsychiatrist)
}

func (s *PatientsStore) StudyStaff() []model.Provider {
	return s.providersWithRole(model.RoleStudyStaff)
}

// Clinics returns the distinct clinic codes on the roster, sorted.
func (s *PatientsStore) Clinics() []string {
	seen := map[string]bool{}
	var out []string
	for _, p := range s.patients.Value() {
		code := p.Profile().ClinicCode
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}
