package authstore

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uwscope/scope-web-sub000/internal/service"
)

// serveLocal exposes a LocalProvider with the same wire format as the
// development backend.
func serveLocal(t *testing.T, p *LocalProvider) *HTTPProvider {
	t.Helper()
	reply := func(w http.ResponseWriter, v any, err error) {
		w.Header().Set("Content-Type", "application/json")
		if err != nil {
			code, msg, status := ErrorCode(err)
			w.WriteHeader(status)
			_ = json.NewEncoder(w).Encode(map[string]string{"code": code, "message": msg})
			return
		}
		if v == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		_ = json.NewEncoder(w).Encode(v)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		sess, err := p.SignIn(r.Context(), req.Username, req.Password)
		reply(w, sess, err)
	})
	mux.HandleFunc("POST /auth/password", func(w http.ResponseWriter, r *http.Request) {
		var req NewPasswordRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		sess, err := p.CompleteNewPassword(r.Context(), req.Username, req.NewPassword, req.Challenge)
		reply(w, sess, err)
	})
	mux.HandleFunc("POST /auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		var req RefreshRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		sess, err := p.Refresh(r.Context(), req.Username, req.RefreshToken)
		reply(w, sess, err)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return NewHTTPProvider(service.NewClient(service.Options{BaseURL: srv.URL, Logger: zerolog.Nop()}))
}

func TestHTTPProvider_RoundTrip(t *testing.T) {
	hp := serveLocal(t, newLocal(t))
	ctx := context.Background()

	sess, err := hp.SignIn(ctx, "casey", "password1")
	require.NoError(t, err)
	assert.NotEmpty(t, sess.AccessToken)

	_, err = hp.SignIn(ctx, "casey", "nope")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	fresh, err := hp.Refresh(ctx, "casey", sess.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, fresh.AccessToken)
}

func TestHTTPProvider_ChallengeCarriesToken(t *testing.T) {
	hp := serveLocal(t, newLocal(t))
	ctx := context.Background()

	_, err := hp.SignIn(ctx, "pat", "temporary1")
	var ce *ChallengeError
	require.ErrorAs(t, err, &ce)
	require.NotEmpty(t, ce.Challenge)

	_, err = hp.CompleteNewPassword(ctx, "pat", "short", ce.Challenge)
	assert.ErrorIs(t, err, ErrInvalidPassword)
	assert.Equal(t, "Password must be at least 8 characters.", detailFor(err))

	sess, err := hp.CompleteNewPassword(ctx, "pat", "newpassword2", ce.Challenge)
	require.NoError(t, err)
	assert.NotEmpty(t, sess.AccessToken)
}

func TestHTTPProvider_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	hp := NewHTTPProvider(service.NewClient(service.Options{BaseURL: srv.URL, Logger: zerolog.Nop()}))

	_, err := hp.SignIn(context.Background(), "casey", "pw")
	assert.ErrorIs(t, err, ErrServiceUnavailable)
	assert.Equal(t, DetailServiceIssue, detailFor(err))
}
