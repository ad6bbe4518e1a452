package devserver

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uwscope/scope-web-sub000/internal/authstore"
	"github.com/uwscope/scope-web-sub000/internal/model"
	"github.com/uwscope/scope-web-sub000/internal/platform/localstore"
	"github.com/uwscope/scope-web-sub000/internal/service"
	"github.com/uwscope/scope-web-sub000/internal/store"
)

// signedInClient signs username in through the auth store and returns an API
// client carrying its token.
func signedInClient(t *testing.T, baseURL, username string) *service.Client {
	t.Helper()
	api := service.NewClient(service.Options{BaseURL: baseURL, Logger: zerolog.Nop()})
	provider := authstore.NewHTTPProvider(service.NewClient(service.Options{BaseURL: baseURL, Logger: zerolog.Nop()}))

	as := authstore.New(provider, service.NewRegistryService(api), localstore.NewMemory(), zerolog.Nop())
	as.OnToken(api.ApplyAuth)
	require.NoError(t, as.Login(context.Background(), username, testPassword))
	require.Equal(t, authstore.StateAuthenticated, as.State())
	return api
}

func TestClientStack_ConflictReplacesLocalState(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.e)
	defer srv.Close()
	ctx := context.Background()

	api := signedInClient(t, srv.URL, "provider-casey")
	a := store.NewPatientStore(model.PatientSummary{PatientID: "patient-ash"}, service.NewPatientService(api, "patient-ash"), store.Options{})
	b := store.NewPatientStore(model.PatientSummary{PatientID: "patient-ash"}, service.NewPatientService(api, "patient-ash"), store.Options{})
	require.NoError(t, a.Load(ctx))
	require.NoError(t, b.Load(ctx))

	h := a.ClinicalHistory()
	h.PsychDiagnosis = "MDD"
	saved, err := a.UpdateClinicalHistory(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, 2, saved.Rev)

	stale := b.ClinicalHistory()
	stale.PsychDiagnosis = "GAD"
	_, err = b.UpdateClinicalHistory(ctx, stale)
	_, isConflict := service.AsConflict(err)
	require.True(t, isConflict, "expected a conflict, got %v", err)
	assert.Equal(t, saved, b.ClinicalHistory())
}

func TestClientStack_RegistryAndPatientWrites(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.e)
	defer srv.Close()
	ctx := context.Background()

	api := signedInClient(t, srv.URL, "provider-casey")
	reg := store.NewPatientsStore(service.NewRegistryService(api), func(id string) store.PatientAPI {
		return service.NewPatientService(api, id)
	}, store.Options{})
	require.NoError(t, reg.Load(ctx))
	reg.WaitDetails()
	require.Len(t, reg.Patients(), 2)
	assert.Len(t, reg.CareManagers(), 1)

	ps, ok := reg.Patient("patient-blair")
	require.True(t, ok)
	require.True(t, ps.Loaded())

	sess, err := ps.AddSession(ctx, model.NewDraft(model.Session{SessionType: model.SessionTypePhone}))
	require.NoError(t, err)
	assert.NotEmpty(t, sess.SessionID)
	require.Len(t, ps.Sessions(), 1)

	sess.SessionNote = "follow up"
	updated, err := ps.UpdateSession(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Rev)
	assert.Equal(t, "follow up", ps.Sessions()[0].SessionNote)
}
