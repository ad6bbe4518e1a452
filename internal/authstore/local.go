package authstore

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/uwscope/scope-web-sub000/internal/model"
	"github.com/uwscope/scope-web-sub000/internal/platform/auth"
)

const (
	defaultAccessTTL  = time.Hour
	defaultRefreshTTL = 30 * 24 * time.Hour
	minPasswordLength = 8
)

type localUser struct {
	hash          []byte
	identity      model.Identity
	mustChange    bool
	resetRequired bool
	challenge     string
	resetCode     string
	resetExpires  time.Time
}

// LocalProvider is an in-process identity provider with bcrypt password
// hashes and HS256 tokens. The development backend serves it over HTTP.
type LocalProvider struct {
	jwt        auth.JWTConfig
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time

	// OnResetCode delivers password-reset codes. Nil drops them.
	OnResetCode func(username, code string)

	mu       sync.Mutex
	users    map[string]*localUser
	sessions map[string]string // refresh token id -> username
}

func NewLocalProvider(cfg auth.JWTConfig) *LocalProvider {
	return &LocalProvider{
		jwt:        cfg,
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
		now:        time.Now,
		users:      make(map[string]*localUser),
		sessions:   make(map[string]string),
	}
}

// AddUser registers an account. mustChange marks password as temporary.
func (p *LocalProvider) AddUser(username, password string, identity model.Identity, mustChange bool) error {
	if !identity.Valid() {
		return fmt.Errorf("add user %s: identity needs a name and an id", username)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.users[normalize(username)] = &localUser{hash: hash, identity: identity, mustChange: mustChange}
	return nil
}

// RequireReset forces the user through the reset-code flow on next sign-in.
func (p *LocalProvider) RequireReset(username string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if u, ok := p.users[normalize(username)]; ok {
		u.resetRequired = true
	}
}

func (p *LocalProvider) SignIn(_ context.Context, username, password string) (Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := normalize(username)
	u, ok := p.users[key]
	if !ok || bcrypt.CompareHashAndPassword(u.hash, []byte(password)) != nil {
		return Session{}, ErrInvalidCredentials
	}
	if u.resetRequired {
		return Session{}, ErrPasswordResetRequired
	}
	if u.mustChange {
		u.challenge = uuid.NewString()
		return Session{}, &ChallengeError{Challenge: u.challenge}
	}
	return p.issue(key, u)
}

func (p *LocalProvider) CompleteNewPassword(_ context.Context, username, newPassword, challenge string) (Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := normalize(username)
	u, ok := p.users[key]
	if !ok || !u.mustChange || challenge == "" || u.challenge != challenge {
		return Session{}, ErrInvalidCredentials
	}
	if err := checkPassword(newPassword); err != nil {
		return Session{}, err
	}
	if err := p.setPassword(u, newPassword); err != nil {
		return Session{}, err
	}
	u.mustChange = false
	u.challenge = ""
	return p.issue(key, u)
}

// ForgotPassword answers success for unknown users so accounts cannot be
// enumerated.
func (p *LocalProvider) ForgotPassword(_ context.Context, username string) error {
	p.mu.Lock()
	u, ok := p.users[normalize(username)]
	if !ok {
		p.mu.Unlock()
		return nil
	}
	code, err := resetCode()
	if err != nil {
		p.mu.Unlock()
		return providerError(ErrServiceUnavailable, err.Error())
	}
	u.resetCode = code
	u.resetExpires = p.now().Add(time.Hour)
	deliver := p.OnResetCode
	p.mu.Unlock()

	if deliver != nil {
		deliver(username, code)
	}
	return nil
}

func (p *LocalProvider) ConfirmForgotPassword(_ context.Context, username, code, newPassword string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	u, ok := p.users[normalize(username)]
	if !ok || u.resetCode == "" || u.resetCode != code || p.now().After(u.resetExpires) {
		return ErrInvalidCode
	}
	if err := checkPassword(newPassword); err != nil {
		return err
	}
	if err := p.setPassword(u, newPassword); err != nil {
		return err
	}
	u.resetCode = ""
	u.resetRequired = false
	u.mustChange = false
	return nil
}

func (p *LocalProvider) Refresh(_ context.Context, username, refreshToken string) (Session, error) {
	claims, err := auth.Parse(p.jwt, refreshToken, auth.TokenRefresh)
	if err != nil {
		return Session{}, providerError(ErrInvalidCredentials, "refresh token rejected")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	key, ok := p.sessions[claims.ID]
	if !ok || (username != "" && key != normalize(username)) {
		return Session{}, providerError(ErrInvalidCredentials, "refresh token revoked")
	}
	u, ok := p.users[key]
	if !ok {
		return Session{}, ErrInvalidCredentials
	}
	access, expires, err := p.sign(key, u, auth.TokenAccess, "", p.accessTTL)
	if err != nil {
		return Session{}, err
	}
	return Session{AccessToken: access, ExpiresAt: expires}, nil
}

// SignOut revokes every refresh token of the session's user.
func (p *LocalProvider) SignOut(_ context.Context, sess Session) error {
	claims, err := auth.Parse(p.jwt, sess.AccessToken, auth.TokenAccess)
	if err != nil {
		return providerError(ErrInvalidCredentials, "access token rejected")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, user := range p.sessions {
		if user == claims.Subject {
			delete(p.sessions, id)
		}
	}
	return nil
}

// issue mints an access and refresh token pair. Callers hold p.mu.
func (p *LocalProvider) issue(key string, u *localUser) (Session, error) {
	access, expires, err := p.sign(key, u, auth.TokenAccess, "", p.accessTTL)
	if err != nil {
		return Session{}, err
	}
	id := uuid.NewString()
	refresh, _, err := p.sign(key, u, auth.TokenRefresh, id, p.refreshTTL)
	if err != nil {
		return Session{}, err
	}
	p.sessions[id] = key
	return Session{AccessToken: access, RefreshToken: refresh, ExpiresAt: expires}, nil
}

func (p *LocalProvider) sign(key string, u *localUser, kind, id string, ttl time.Duration) (string, time.Time, error) {
	now := p.now()
	claims := auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: key, ID: id},
		Kind:             kind,
		Name:             u.identity.Name,
		Role:             u.identity.Role,
		PatientID:        u.identity.PatientID,
		ProviderID:       u.identity.ProviderID,
	}
	tok, err := auth.Issue(p.jwt, claims, ttl, now)
	if err != nil {
		return "", time.Time{}, providerError(ErrServiceUnavailable, err.Error())
	}
	return tok, now.Add(ttl), nil
}

func (p *LocalProvider) setPassword(u *localUser, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return providerError(ErrServiceUnavailable, err.Error())
	}
	u.hash = hash
	return nil
}

// checkPassword enforces a minimum length and at least one letter and one
// digit.
func checkPassword(pw string) error {
	if len(pw) < minPasswordLength {
		return providerError(ErrInvalidPassword, fmt.Sprintf("Password must be at least %d characters.", minPasswordLength))
	}
	var letter, digit bool
	for _, r := range pw {
		letter = letter || unicode.IsLetter(r)
		digit = digit || unicode.IsDigit(r)
	}
	if !letter || !digit {
		return providerError(ErrInvalidPassword, "Password must contain letters and numbers.")
	}
	return nil
}

func resetCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func normalize(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
