package authstore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/uwscope/scope-web-sub000/internal/model"
	"github.com/uwscope/scope-web-sub000/internal/platform/localstore"
	"github.com/uwscope/scope-web-sub000/internal/platform/observe"
	"github.com/uwscope/scope-web-sub000/internal/service"
)

type State string

const (
	StateInitialized           State = "initialized"
	StateAuthenticationFailed  State = "authenticationFailed"
	StateUpdatePassword        State = "updatePasswordInProgress"
	StateResetPassword         State = "resetPasswordInProgress"
	StateResetPasswordComplete State = "resetPasswordComplete"
	StateAuthenticated         State = "authenticated"
)

// User-facing detail messages. Wrong credentials, missing application access
// and service trouble stay distinguishable.
const (
	DetailInvalidCredentials = "Incorrect username or password."
	DetailNoAccess           = "This account does not have access to SCOPE."
	DetailServiceIssue       = "Sign-in is temporarily unavailable. Please try again later."
	DetailSessionExpired     = "Your session has ended. Please sign in again."
	DetailInvalidPassword    = "The new password does not meet the password requirements."
	DetailInvalidCode        = "The verification code is incorrect or has expired."
)

// ErrWrongState is returned when an operation does not apply to the current
// state, for example UpdateTempPassword outside a new-password challenge.
var ErrWrongState = errors.New("authstore: operation not valid in current state")

// ErrNoAccess means the provider accepted the user but the application did
// not issue an identity.
var ErrNoAccess = errors.New("authstore: no application access")

// IdentityFetcher exchanges the bearer token currently applied to the service
// clients for the application identity.
type IdentityFetcher interface {
	GetIdentity(ctx context.Context) (model.Identity, error)
}

// Store is the auth state machine. Listeners registered through the embedded
// Subject hear every state change; OnToken listeners hear bearer rotations.
type Store struct {
	observe.Subject

	provider Provider
	identity IdentityFetcher
	local    localstore.Store
	logger   zerolog.Logger

	mu        sync.Mutex
	state     State
	detail    string
	busy      int
	username  string
	challenge string
	session   Session
	ident     *model.Identity

	tokenMu   sync.Mutex
	tokenSubs observe.Subject
	lastToken string
}

func New(provider Provider, identity IdentityFetcher, local localstore.Store, logger zerolog.Logger) *Store {
	if local == nil {
		local = localstore.NewMemory()
	}
	return &Store{
		provider: provider,
		identity: identity,
		local:    local,
		logger:   logger.With().Str("component", "authstore").Logger(),
		state:    StateInitialized,
	}
}

func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Store) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateAuthenticated && s.ident != nil
}

// Authenticating reports whether a provider round trip is in flight.
func (s *Store) Authenticating() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy > 0
}

// Identity returns the application identity once authenticated.
func (s *Store) Identity() (model.Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ident == nil {
		return model.Identity{}, false
	}
	return *s.ident, true
}

// Token returns the current bearer token, empty when signed out.
func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.Bearer()
}

func (s *Store) Detail() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.detail
}

func (s *Store) Username() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.username
}

// OnToken registers fn to receive every bearer token change, including the
// empty token on sign-out. fn is called immediately with the current token.
func (s *Store) OnToken(fn func(token string)) (unsubscribe func()) {
	unsub := s.tokenSubs.Subscribe(func() {
		s.tokenMu.Lock()
		t := s.lastToken
		s.tokenMu.Unlock()
		fn(t)
	})
	fn(s.Token())
	return unsub
}

func (s *Store) publishToken() {
	t := s.Token()
	s.tokenMu.Lock()
	changed := t != s.lastToken
	s.lastToken = t
	s.tokenMu.Unlock()
	if changed {
		s.tokenSubs.Notify()
	}
}

func (s *Store) begin() {
	s.mu.Lock()
	s.busy++
	s.mu.Unlock()
	s.Notify()
}

func (s *Store) end() {
	s.mu.Lock()
	s.busy--
	s.mu.Unlock()
	s.Notify()
}

// set applies fn under the lock, then publishes token and state changes.
func (s *Store) set(fn func()) {
	s.mu.Lock()
	fn()
	s.mu.Unlock()
	s.publishToken()
	s.Notify()
}

// Initialize attempts a silent sign-in from the persisted username and
// refresh token. Missing credentials leave the store Initialized without
// error.
func (s *Store) Initialize(ctx context.Context) error {
	var username, refresh string
	if err := s.local.Get(localstore.KeyLastUsername, &username); err != nil && !errors.Is(err, localstore.ErrNotFound) {
		s.logger.Warn().Err(err).Msg("read last username")
	}
	if err := s.local.Get(localstore.KeyRefreshToken, &refresh); err != nil && !errors.Is(err, localstore.ErrNotFound) {
		s.logger.Warn().Err(err).Msg("read refresh token")
	}
	s.set(func() { s.username = username })
	if username == "" || refresh == "" {
		return nil
	}

	s.begin()
	defer s.end()

	sess, err := s.provider.Refresh(ctx, username, refresh)
	if err != nil {
		s.forgetRefreshToken()
		s.logger.Info().Err(err).Str("username", username).Msg("silent sign-in failed")
		return fmt.Errorf("silent sign-in: %w", err)
	}
	if sess.RefreshToken == "" {
		sess.RefreshToken = refresh
	}
	return s.establish(ctx, username, sess)
}

// Login signs in with a password. A temporary-password challenge moves to
// StateUpdatePassword and a required reset to StateResetPassword; both
// return nil.
func (s *Store) Login(ctx context.Context, username, password string) error {
	s.begin()
	defer s.end()

	sess, err := s.provider.SignIn(ctx, username, password)
	if err != nil {
		var ce *ChallengeError
		switch {
		case errors.As(err, &ce):
			s.set(func() {
				s.state = StateUpdatePassword
				s.username = username
				s.challenge = ce.Challenge
				s.detail = ""
			})
			return nil
		case errors.Is(err, ErrPasswordResetRequired):
			s.set(func() {
				s.state = StateResetPassword
				s.username = username
				s.detail = ""
			})
			return nil
		}
		s.fail(username, err)
		return fmt.Errorf("login: %w", err)
	}
	return s.establish(ctx, username, sess)
}

// UpdateTempPassword answers the new-password challenge from Login. A
// rejected password keeps the challenge open.
func (s *Store) UpdateTempPassword(ctx context.Context, newPassword string) error {
	s.mu.Lock()
	state, username, challenge := s.state, s.username, s.challenge
	s.mu.Unlock()
	if state != StateUpdatePassword {
		return ErrWrongState
	}

	s.begin()
	defer s.end()

	sess, err := s.provider.CompleteNewPassword(ctx, username, newPassword, challenge)
	if err != nil {
		if errors.Is(err, ErrInvalidPassword) {
			s.set(func() { s.detail = detailFor(err) })
		} else {
			s.fail(username, err)
		}
		return fmt.Errorf("update temporary password: %w", err)
	}
	s.set(func() { s.challenge = "" })
	return s.establish(ctx, username, sess)
}

// SendResetPasswordCode asks the provider to send a reset code and moves to
// StateResetPassword.
func (s *Store) SendResetPasswordCode(ctx context.Context, username string) error {
	s.begin()
	defer s.end()

	if err := s.provider.ForgotPassword(ctx, username); err != nil {
		s.fail(username, err)
		return fmt.Errorf("send reset code: %w", err)
	}
	s.set(func() {
		s.state = StateResetPassword
		s.username = username
		s.detail = ""
	})
	return nil
}

// ResetPassword confirms a reset code. Success lands in
// StateResetPasswordComplete, which still requires a Login.
func (s *Store) ResetPassword(ctx context.Context, code, newPassword string) error {
	s.mu.Lock()
	state, username := s.state, s.username
	s.mu.Unlock()
	if state != StateResetPassword {
		return ErrWrongState
	}

	s.begin()
	defer s.end()

	if err := s.provider.ConfirmForgotPassword(ctx, username, code, newPassword); err != nil {
		if errors.Is(err, ErrInvalidCode) || errors.Is(err, ErrInvalidPassword) {
			s.set(func() { s.detail = detailFor(err) })
		} else {
			s.fail(username, err)
		}
		return fmt.Errorf("reset password: %w", err)
	}
	s.set(func() {
		s.state = StateResetPasswordComplete
		s.detail = ""
	})
	return nil
}

// RefreshToken rotates the session tokens. On failure the session is
// dropped and the store returns to StateInitialized so the next screen is
// the sign-in form.
func (s *Store) RefreshToken(ctx context.Context) error {
	s.mu.Lock()
	username, refresh := s.username, s.session.RefreshToken
	s.mu.Unlock()
	if refresh == "" {
		return ErrWrongState
	}

	s.begin()
	defer s.end()

	sess, err := s.provider.Refresh(ctx, username, refresh)
	if err != nil {
		s.forgetRefreshToken()
		s.set(func() {
			s.state = StateInitialized
			s.session = Session{}
			s.ident = nil
			s.detail = detailFor(err)
		})
		s.logger.Warn().Err(err).Str("username", username).Msg("token refresh failed")
		return fmt.Errorf("refresh token: %w", err)
	}
	if sess.RefreshToken == "" {
		sess.RefreshToken = refresh
	}
	s.set(func() { s.session = sess })
	s.persist(username, sess.RefreshToken)
	return nil
}

// Logout ends the provider session and clears the stored refresh token. The
// last username is kept for the next sign-in.
func (s *Store) Logout(ctx context.Context) {
	s.mu.Lock()
	sess := s.session
	s.mu.Unlock()

	if sess.AccessToken != "" {
		if err := s.provider.SignOut(ctx, sess); err != nil {
			s.logger.Warn().Err(err).Msg("provider sign-out failed")
		}
	}
	s.forgetRefreshToken()
	s.set(func() {
		s.state = StateInitialized
		s.session = Session{}
		s.ident = nil
		s.challenge = ""
		s.detail = ""
	})
}

// Expire drops the session after the backend rejected the token. It is the
// service clients' unauthorized callback and never calls the provider.
func (s *Store) Expire(err error) {
	if !s.Authenticated() {
		return
	}
	s.logger.Warn().Err(err).Msg("backend rejected session")
	s.forgetRefreshToken()
	s.set(func() {
		s.state = StateInitialized
		s.session = Session{}
		s.ident = nil
		s.detail = DetailSessionExpired
	})
}

// establish applies the provider session, then fetches the application
// identity. Without a valid identity the session is rolled back.
func (s *Store) establish(ctx context.Context, username string, sess Session) error {
	s.set(func() {
		s.username = username
		s.session = sess
	})

	ident, err := s.identity.GetIdentity(ctx)
	if err == nil && !ident.Valid() {
		err = fmt.Errorf("%w: identity missing name or id", ErrNoAccess)
	}
	if err != nil {
		if service.IsUnauthorized(err) {
			err = fmt.Errorf("%w: %v", ErrNoAccess, err)
		}
		s.set(func() { s.session = Session{} })
		s.fail(username, err)
		return fmt.Errorf("identity exchange: %w", err)
	}

	s.set(func() {
		s.state = StateAuthenticated
		s.ident = &ident
		s.challenge = ""
		s.detail = ""
	})
	s.persist(username, sess.RefreshToken)
	s.logger.Info().Str("username", username).Str("role", string(ident.Role)).Msg("signed in")
	return nil
}

func (s *Store) fail(username string, err error) {
	s.set(func() {
		s.state = StateAuthenticationFailed
		s.username = username
		s.ident = nil
		s.detail = detailFor(err)
	})
	s.logger.Info().Err(err).Str("username", username).Msg("authentication failed")
}

func (s *Store) persist(username, refresh string) {
	if err := s.local.Set(localstore.KeyLastUsername, username); err != nil {
		s.logger.Warn().Err(err).Msg("persist last username")
	}
	if refresh == "" {
		return
	}
	if err := s.local.Set(localstore.KeyRefreshToken, refresh); err != nil {
		s.logger.Warn().Err(err).Msg("persist refresh token")
	}
}

func (s *Store) forgetRefreshToken() {
	if err := s.local.Delete(localstore.KeyRefreshToken); err != nil && !errors.Is(err, localstore.ErrNotFound) {
		s.logger.Warn().Err(err).Msg("delete refresh token")
	}
}

// detailFor maps an error to the message shown on the sign-in screen.
func detailFor(err error) string {
	var pe *ProviderError
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return DetailInvalidCredentials
	case errors.Is(err, ErrNoAccess):
		return DetailNoAccess
	case errors.Is(err, ErrInvalidPassword):
		if errors.As(err, &pe) && pe.Message != "" {
			return pe.Message
		}
		return DetailInvalidPassword
	case errors.Is(err, ErrInvalidCode):
		return DetailInvalidCode
	default:
		return DetailServiceIssue
	}
}
