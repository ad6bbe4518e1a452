// Package authstore keeps the signed-in state of the current user: the
// identity-provider session, the application identity exchanged for it,
// and the challenge flows (temporary password, password reset) in between.
package authstore

import (
	"context"
	"errors"
	"time"
)

// Provider is a managed-identity backend.
type Provider interface {
	// SignIn starts a session. It returns a *ChallengeError wrapping
	// ErrNewPasswordRequired when the account still has a temporary password.
	SignIn(ctx context.Context, username, password string) (Session, error)
	// CompleteNewPassword answers the challenge returned by SignIn.
	CompleteNewPassword(ctx context.Context, username, newPassword, challenge string) (Session, error)
	// ForgotPassword sends a reset code to the user.
	ForgotPassword(ctx context.Context, username string) error
	ConfirmForgotPassword(ctx context.Context, username, code, newPassword string) error
	// Refresh exchanges a refresh token for fresh tokens. The returned
	// session may carry an empty RefreshToken, meaning the old one stays valid.
	Refresh(ctx context.Context, username, refreshToken string) (Session, error)
	SignOut(ctx context.Context, session Session) error
}

// Session is the token set of a provider session.
type Session struct {
	AccessToken  string    `json:"accessToken"`
	IDToken      string    `json:"idToken,omitempty"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// Bearer is the token the backend expects: the ID token when the provider
// issues one, the access token otherwise.
func (s Session) Bearer() string {
	if s.IDToken != "" {
		return s.IDToken
	}
	return s.AccessToken
}

// Provider error kinds. Providers wrap these so callers can branch with
// errors.Is.
var (
	ErrInvalidCredentials    = errors.New("invalid username or password")
	ErrNewPasswordRequired   = errors.New("new password required")
	ErrPasswordResetRequired = errors.New("password reset required")
	ErrInvalidPassword       = errors.New("password does not meet requirements")
	ErrInvalidCode           = errors.New("invalid or expired code")
	ErrServiceUnavailable    = errors.New("identity service unavailable")
)

// ChallengeError carries the opaque challenge token needed to complete a
// new-password challenge.
type ChallengeError struct {
	Challenge string
}

func (e *ChallengeError) Error() string { return ErrNewPasswordRequired.Error() }
func (e *ChallengeError) Unwrap() error { return ErrNewPasswordRequired }

// ProviderError pairs an error kind with the provider's own message.
type ProviderError struct {
	Kind    error
	Message string
}

func (e *ProviderError) Error() string {
	if e.Message == "" {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Message
}

func (e *ProviderError) Unwrap() error { return e.Kind }

func providerError(kind error, msg string) error {
	return &ProviderError{Kind: kind, Message: msg}
}
