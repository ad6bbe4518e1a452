package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/uwscope/scope-web-sub000/internal/authstore"
	"github.com/uwscope/scope-web-sub000/internal/config"
	"github.com/uwscope/scope-web-sub000/internal/model"
	"github.com/uwscope/scope-web-sub000/internal/platform/localstore"
	"github.com/uwscope/scope-web-sub000/internal/platform/metrics"
	"github.com/uwscope/scope-web-sub000/internal/service"
	"github.com/uwscope/scope-web-sub000/internal/store"
)

var errNotSignedIn = errors.New("not signed in, run `scope login` first")

// client wires the service clients to the auth store the same way a browser
// session does: token rotations reach the HTTP client and a 401 expires the
// session.
type client struct {
	cfg      *config.Config
	logger   zerolog.Logger
	metrics  *metrics.Collector
	local    localstore.Store
	api      *service.Client
	registry *service.RegistryService
	auth     *authstore.Store
}

func newClient(ctx context.Context, verbose bool) (*client, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := newLogger(cfg.Env)
	if !verbose {
		logger = logger.Level(zerolog.WarnLevel)
	}

	local, err := localstore.Open(cfg.LocalStorePath)
	if err != nil {
		return nil, err
	}

	m := metrics.NewCollector("scope_client")
	api := service.NewClient(service.Options{
		BaseURL:         cfg.APIBaseURL,
		Timeout:         cfg.RequestTimeout,
		RetryCount:      2,
		FixtureFallback: cfg.FixtureFallback,
		FixtureDelay:    cfg.FixtureDelay,
		Logger:          logger,
		Metrics:         m,
	})
	registry := service.NewRegistryService(api)

	var provider authstore.Provider = authstore.NewHTTPProvider(api)
	if cfg.AuthMode == config.AuthModeCognito {
		cp, err := authstore.NewCognitoProvider(ctx, cfg.CognitoRegion, cfg.CognitoClientID)
		if err != nil {
			return nil, err
		}
		provider = cp
	}

	as := authstore.New(provider, registry, local, logger)
	as.OnToken(api.ApplyAuth)
	api.OnUnauthorized(as.Expire)

	return &client{
		cfg:      cfg,
		logger:   logger,
		metrics:  m,
		local:    local,
		api:      api,
		registry: registry,
		auth:     as,
	}, nil
}

// resume restores the saved session and returns the signed-in identity.
func (c *client) resume(ctx context.Context) (model.Identity, error) {
	if err := c.auth.Initialize(ctx); err != nil {
		c.logger.Debug().Err(err).Msg("resume session")
	}
	id, ok := c.auth.Identity()
	if !ok {
		return model.Identity{}, errNotSignedIn
	}
	return id, nil
}

func (c *client) storeOptions() store.Options {
	return store.Options{
		RecentWindow: c.cfg.RecentWindow(),
		Logger:       c.logger,
		Metrics:      c.metrics,
	}
}

// patient loads the full record of one patient.
func (c *client) patient(ctx context.Context, patientID string) (*store.PatientStore, error) {
	ps := store.NewPatientStore(
		model.PatientSummary{PatientID: patientID},
		service.NewPatientService(c.api, patientID),
		c.storeOptions(),
	)
	if err := ps.Load(ctx); err != nil {
		return nil, fmt.Errorf("load patient %s: %w", patientID, err)
	}
	return ps, nil
}

// resolvePatientID picks the patient a command acts on. Patients act on
// their own record; providers must name one.
func resolvePatientID(id model.Identity, args []string) (string, error) {
	if id.IsPatient() {
		if len(args) > 0 && args[0] != id.PatientID {
			return "", fmt.Errorf("patients can only access their own record")
		}
		return id.PatientID, nil
	}
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return "", errors.New("a patient id is required")
	}
	return args[0], nil
}

// prompter reads answers line by line from the command's input.
type prompter struct {
	in  *bufio.Scanner
	out io.Writer
}

func newPrompter(cmd *cobra.Command) *prompter {
	return &prompter{in: bufio.NewScanner(cmd.InOrStdin()), out: cmd.OutOrStdout()}
}

func (p *prompter) ask(label string) (string, error) {
	fmt.Fprintf(p.out, "%s: ", label)
	if !p.in.Scan() {
		if err := p.in.Err(); err != nil {
			return "", err
		}
		return "", io.ErrUnexpectedEOF
	}
	return strings.TrimSpace(p.in.Text()), nil
}

// valueOrAsk returns v when set and prompts otherwise.
func (p *prompter) valueOrAsk(v, label string) (string, error) {
	if v != "" {
		return v, nil
	}
	return p.ask(label)
}
