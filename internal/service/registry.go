package service

import (
	"context"
	"net/http"

	"github.com/uwscope/scope-web-sub000/internal/model"
)

// RegistryService reaches the roster-level endpoints.
type RegistryService struct {
	c *Client
}

func NewRegistryService(c *Client) *RegistryService {
	return &RegistryService{c: c}
}

func (s *RegistryService) GetPatients(ctx context.Context) ([]model.PatientSummary, error) {
	return send[[]model.PatientSummary](ctx, s.c, http.MethodGet, "/patients", nil)
}

func (s *RegistryService) GetProviders(ctx context.Context) ([]model.Provider, error) {
	return send[[]model.Provider](ctx, s.c, http.MethodGet, "/providers", nil)
}

// AddPatient creates a patient from a draft profile and returns its roster row
// with the server-issued id.
func (s *RegistryService) AddPatient(ctx context.Context, draft model.Draft[model.Profile]) (model.PatientSummary, error) {
	return send[model.PatientSummary](ctx, s.c, http.MethodPost, "/patients", draft.Value)
}

// GetIdentity exchanges the current bearer token for the application identity.
func (s *RegistryService) GetIdentity(ctx context.Context) (model.Identity, error) {
	return send[model.Identity](ctx, s.c, http.MethodGet, "/identity", nil)
}

// GetConfig returns the application configuration document with dates
// hydrated.
func (s *RegistryService) GetConfig(ctx context.Context) (map[string]any, error) {
	return withFallback(ctx, s.c, "/config",
		func() (map[string]any, error) {
			raw, err := s.c.GetJSON(ctx, "/config")
			if err != nil {
				return nil, err
			}
			cfg, _ := raw.(map[string]any)
			return cfg, nil
		},
		fixtureConfig,
	)
}
