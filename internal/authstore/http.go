package authstore

import (
	"context"
	"errors"
	"net/http"

	"github.com/uwscope/scope-web-sub000/internal/service"
)

// Wire error codes of the /auth endpoints.
const (
	CodeInvalidCredentials    = "invalid_credentials"
	CodeNewPasswordRequired   = "new_password_required"
	CodePasswordResetRequired = "password_reset_required"
	CodeInvalidPassword       = "invalid_password"
	CodeInvalidCode           = "invalid_code"
)

// Wire bodies of the /auth endpoints.
type (
	LoginRequest struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	NewPasswordRequest struct {
		Username    string `json:"username"`
		NewPassword string `json:"newPassword"`
		Challenge   string `json:"challenge"`
	}
	ForgotRequest struct {
		Username string `json:"username"`
	}
	ResetRequest struct {
		Username    string `json:"username"`
		Code        string `json:"code"`
		NewPassword string `json:"newPassword"`
	}
	RefreshRequest struct {
		Username     string `json:"username"`
		RefreshToken string `json:"refreshToken"`
	}
)

// HTTPProvider reaches a LocalProvider served by the development backend.
// Use a client without an unauthorized callback: failed sign-ins are
// ordinary errors here.
type HTTPProvider struct {
	client *service.Client
}

func NewHTTPProvider(c *service.Client) *HTTPProvider {
	return &HTTPProvider{client: c}
}

func (p *HTTPProvider) SignIn(ctx context.Context, username, password string) (Session, error) {
	var out Session
	err := p.client.Do(ctx, http.MethodPost, "/auth/login", LoginRequest{Username: username, Password: password}, &out)
	return out, mapHTTPError(err)
}

func (p *HTTPProvider) CompleteNewPassword(ctx context.Context, username, newPassword, challenge string) (Session, error) {
	var out Session
	body := NewPasswordRequest{Username: username, NewPassword: newPassword, Challenge: challenge}
	err := p.client.Do(ctx, http.MethodPost, "/auth/password", body, &out)
	return out, mapHTTPError(err)
}

func (p *HTTPProvider) ForgotPassword(ctx context.Context, username string) error {
	return mapHTTPError(p.client.Do(ctx, http.MethodPost, "/auth/forgot", ForgotRequest{Username: username}, nil))
}

func (p *HTTPProvider) ConfirmForgotPassword(ctx context.Context, username, code, newPassword string) error {
	body := ResetRequest{Username: username, Code: code, NewPassword: newPassword}
	return mapHTTPError(p.client.Do(ctx, http.MethodPost, "/auth/reset", body, nil))
}

func (p *HTTPProvider) Refresh(ctx context.Context, username, refreshToken string) (Session, error) {
	var out Session
	err := p.client.Do(ctx, http.MethodPost, "/auth/refresh", RefreshRequest{Username: username, RefreshToken: refreshToken}, &out)
	return out, mapHTTPError(err)
}

func (p *HTTPProvider) SignOut(ctx context.Context, sess Session) error {
	p.client.ApplyAuth(sess.AccessToken)
	defer p.client.ApplyAuth("")
	return mapHTTPError(p.client.Do(ctx, http.MethodPost, "/auth/logout", nil, nil))
}

// mapHTTPError turns the backend's error codes back into provider kinds.
func mapHTTPError(err error) error {
	if err == nil {
		return nil
	}
	var he *service.HTTPError
	if !errors.As(err, &he) {
		return errors.Join(ErrServiceUnavailable, err)
	}
	switch he.Code {
	case CodeInvalidCredentials:
		return providerError(ErrInvalidCredentials, he.Message)
	case CodeNewPasswordRequired:
		return &ChallengeError{Challenge: he.Message}
	case CodePasswordResetRequired:
		return providerError(ErrPasswordResetRequired, he.Message)
	case CodeInvalidPassword:
		return providerError(ErrInvalidPassword, he.Message)
	case CodeInvalidCode:
		return providerError(ErrInvalidCode, he.Message)
	}
	return errors.Join(ErrServiceUnavailable, err)
}

// ErrorCode returns the wire code for a provider error, for servers that
// expose a Provider over HTTP. The second result is the message to send;
// for a challenge it is the challenge token.
func ErrorCode(err error) (code, message string, status int) {
	var ce *ChallengeError
	var pe *ProviderError
	if errors.As(err, &pe) {
		message = pe.Message
	}
	switch {
	case errors.As(err, &ce):
		return CodeNewPasswordRequired, ce.Challenge, http.StatusBadRequest
	case errors.Is(err, ErrInvalidCredentials):
		return CodeInvalidCredentials, message, http.StatusBadRequest
	case errors.Is(err, ErrPasswordResetRequired):
		return CodePasswordResetRequired, message, http.StatusBadRequest
	case errors.Is(err, ErrInvalidPassword):
		return CodeInvalidPassword, message, http.StatusBadRequest
	case errors.Is(err, ErrInvalidCode):
		return CodeInvalidCode, message, http.StatusBadRequest
	}
	return "unavailable", "identity service unavailable", http.StatusServiceUnavailable
}
