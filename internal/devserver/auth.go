package devserver

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/uwscope/scope-web-sub000/internal/authstore"
)

// AuthHandler exposes an identity provider over HTTP. Failures are answered
// with 400 and a machine-readable code so clients never mistake a rejected
// sign-in for an expired session.
type AuthHandler struct {
	provider authstore.Provider
	logger   zerolog.Logger
}

func NewAuthHandler(p authstore.Provider, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{provider: p, logger: logger}
}

func (a *AuthHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/auth")
	g.POST("/login", a.Login)
	g.POST("/password", a.CompleteNewPassword)
	g.POST("/forgot", a.ForgotPassword)
	g.POST("/reset", a.ResetPassword)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)
}

type authErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (a *AuthHandler) fail(c echo.Context, username string, err error) error {
	code, msg, status := authstore.ErrorCode(err)
	ev := a.logger.Info()
	if status >= http.StatusInternalServerError {
		ev = a.logger.Error().Err(err)
	}
	ev.Str("username", username).Str("code", code).Msg("auth request rejected")
	return c.JSON(status, authErrorResponse{Code: code, Message: msg})
}

func (a *AuthHandler) Login(c echo.Context) error {
	req, err := bind[authstore.LoginRequest](c)
	if err != nil {
		return err
	}
	sess, err := a.provider.SignIn(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return a.fail(c, req.Username, err)
	}
	return c.JSON(http.StatusOK, sess)
}

func (a *AuthHandler) CompleteNewPassword(c echo.Context) error {
	req, err := bind[authstore.NewPasswordRequest](c)
	if err != nil {
		return err
	}
	sess, err := a.provider.CompleteNewPassword(c.Request().Context(), req.Username, req.NewPassword, req.Challenge)
	if err != nil {
		return a.fail(c, req.Username, err)
	}
	return c.JSON(http.StatusOK, sess)
}

func (a *AuthHandler) ForgotPassword(c echo.Context) error {
	req, err := bind[authstore.ForgotRequest](c)
	if err != nil {
		return err
	}
	if err := a.provider.ForgotPassword(c.Request().Context(), req.Username); err != nil {
		return a.fail(c, req.Username, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (a *AuthHandler) ResetPassword(c echo.Context) error {
	req, err := bind[authstore.ResetRequest](c)
	if err != nil {
		return err
	}
	if err := a.provider.ConfirmForgotPassword(c.Request().Context(), req.Username, req.Code, req.NewPassword); err != nil {
		return a.fail(c, req.Username, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (a *AuthHandler) Refresh(c echo.Context) error {
	req, err := bind[authstore.RefreshRequest](c)
	if err != nil {
		return err
	}
	sess, err := a.provider.Refresh(c.Request().Context(), req.Username, req.RefreshToken)
	if err != nil {
		return a.fail(c, req.Username, err)
	}
	return c.JSON(http.StatusOK, sess)
}

// Logout revokes the caller's refresh tokens. The bearer has already been
// verified by the auth middleware.
func (a *AuthHandler) Logout(c echo.Context) error {
	token := strings.TrimSpace(c.Request().Header.Get(echo.HeaderAuthorization))
	if len(token) > 7 && strings.EqualFold(token[:7], "bearer ") {
		token = token[7:]
	}
	if err := a.provider.SignOut(c.Request().Context(), authstore.Session{AccessToken: token}); err != nil {
		return a.fail(c, "", err)
	}
	return c.NoContent(http.StatusNoContent)
}
