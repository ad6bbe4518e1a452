package authstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
)

// cognitoAPI is the subset of the Cognito user-pool client in use.
type cognitoAPI interface {
	InitiateAuth(ctx context.Context, in *cip.InitiateAuthInput, optFns ...func(*cip.Options)) (*cip.InitiateAuthOutput, error)
	RespondToAuthChallenge(ctx context.Context, in *cip.RespondToAuthChallengeInput, optFns ...func(*cip.Options)) (*cip.RespondToAuthChallengeOutput, error)
	ForgotPassword(ctx context.Context, in *cip.ForgotPasswordInput, optFns ...func(*cip.Options)) (*cip.ForgotPasswordOutput, error)
	ConfirmForgotPassword(ctx context.Context, in *cip.ConfirmForgotPasswordInput, optFns ...func(*cip.Options)) (*cip.ConfirmForgotPasswordOutput, error)
	GlobalSignOut(ctx context.Context, in *cip.GlobalSignOutInput, optFns ...func(*cip.Options)) (*cip.GlobalSignOutOutput, error)
}

// CognitoProvider signs users in against a Cognito user pool app client
// with the USER_PASSWORD_AUTH flow.
type CognitoProvider struct {
	api      cognitoAPI
	clientID string
	now      func() time.Time
}

// NewCognitoProvider loads AWS configuration from the environment and
// targets the given region.
func NewCognitoProvider(ctx context.Context, region, clientID string) (*CognitoProvider, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return newCognitoProvider(cip.NewFromConfig(cfg), clientID), nil
}

func newCognitoProvider(api cognitoAPI, clientID string) *CognitoProvider {
	return &CognitoProvider{api: api, clientID: clientID, now: time.Now}
}

func (p *CognitoProvider) SignIn(ctx context.Context, username, password string) (Session, error) {
	out, err := p.api.InitiateAuth(ctx, &cip.InitiateAuthInput{
		AuthFlow: types.AuthFlowTypeUserPasswordAuth,
		ClientId: aws.String(p.clientID),
		AuthParameters: map[string]string{
			"USERNAME": username,
			"PASSWORD": password,
		},
	})
	if err != nil {
		return Session{}, mapCognitoError(err)
	}
	if out.ChallengeName == types.ChallengeNameTypeNewPasswordRequired {
		return Session{}, &ChallengeError{Challenge: aws.ToString(out.Session)}
	}
	if out.ChallengeName != "" {
		return Session{}, providerError(ErrServiceUnavailable, "unsupported challenge "+string(out.ChallengeName))
	}
	return p.session(out.AuthenticationResult)
}

func (p *CognitoProvider) CompleteNewPassword(ctx context.Context, username, newPassword, challenge string) (Session, error) {
	out, err := p.api.RespondToAuthChallenge(ctx, &cip.RespondToAuthChallengeInput{
		ChallengeName: types.ChallengeNameTypeNewPasswordRequired,
		ClientId:      aws.String(p.clientID),
		Session:       aws.String(challenge),
		ChallengeResponses: map[string]string{
			"USERNAME":     username,
			"NEW_PASSWORD": newPassword,
		},
	})
	if err != nil {
		return Session{}, mapCognitoError(err)
	}
	return p.session(out.AuthenticationResult)
}

func (p *CognitoProvider) ForgotPassword(ctx context.Context, username string) error {
	_, err := p.api.ForgotPassword(ctx, &cip.ForgotPasswordInput{
		ClientId: aws.String(p.clientID),
		Username: aws.String(username),
	})
	if err != nil {
		return mapCognitoError(err)
	}
	return nil
}

func (p *CognitoProvider) ConfirmForgotPassword(ctx context.Context, username, code, newPassword string) error {
	_, err := p.api.ConfirmForgotPassword(ctx, &cip.ConfirmForgotPasswordInput{
		ClientId:         aws.String(p.clientID),
		Username:         aws.String(username),
		ConfirmationCode: aws.String(code),
		Password:         aws.String(newPassword),
	})
	if err != nil {
		return mapCognitoError(err)
	}
	return nil
}

// Refresh uses REFRESH_TOKEN_AUTH. Cognito does not rotate the refresh
// token, so the returned session leaves it empty.
func (p *CognitoProvider) Refresh(ctx context.Context, _ string, refreshToken string) (Session, error) {
	out, err := p.api.InitiateAuth(ctx, &cip.InitiateAuthInput{
		AuthFlow:       types.AuthFlowTypeRefreshTokenAuth,
		ClientId:       aws.String(p.clientID),
		AuthParameters: map[string]string{"REFRESH_TOKEN": refreshToken},
	})
	if err != nil {
		return Session{}, mapCognitoError(err)
	}
	return p.session(out.AuthenticationResult)
}

func (p *CognitoProvider) SignOut(ctx context.Context, sess Session) error {
	_, err := p.api.GlobalSignOut(ctx, &cip.GlobalSignOutInput{AccessToken: aws.String(sess.AccessToken)})
	if err != nil {
		return mapCognitoError(err)
	}
	return nil
}

func (p *CognitoProvider) session(res *types.AuthenticationResultType) (Session, error) {
	if res == nil || aws.ToString(res.AccessToken) == "" {
		return Session{}, providerError(ErrServiceUnavailable, "no authentication result")
	}
	return Session{
		AccessToken:  aws.ToString(res.AccessToken),
		IDToken:      aws.ToString(res.IdToken),
		RefreshToken: aws.ToString(res.RefreshToken),
		ExpiresAt:    p.now().Add(time.Duration(res.ExpiresIn) * time.Second),
	}, nil
}

// mapCognitoError converts user-pool exceptions to provider error kinds,
// keeping Cognito's message for display.
func mapCognitoError(err error) error {
	var (
		notAuthorized *types.NotAuthorizedException
		notFound      *types.UserNotFoundException
		notConfirmed  *types.UserNotConfirmedException
		resetRequired *types.PasswordResetRequiredException
		badPassword   *types.InvalidPasswordException
		mismatch      *types.CodeMismatchException
		expired       *types.ExpiredCodeException
	)
	switch {
	case errors.As(err, &notAuthorized):
		return providerError(ErrInvalidCredentials, aws.ToString(notAuthorized.Message))
	case errors.As(err, &notFound):
		return providerError(ErrInvalidCredentials, aws.ToString(notFound.Message))
	case errors.As(err, &notConfirmed):
		return providerError(ErrInvalidCredentials, aws.ToString(notConfirmed.Message))
	case errors.As(err, &resetRequired):
		return providerError(ErrPasswordResetRequired, aws.ToString(resetRequired.Message))
	case errors.As(err, &badPassword):
		return providerError(ErrInvalidPassword, aws.ToString(badPassword.Message))
	case errors.As(err, &mismatch):
		return providerError(ErrInvalidCode, aws.ToString(mismatch.Message))
	case errors.As(err, &expired):
		return providerError(ErrInvalidCode, aws.ToString(expired.Message))
	}
	return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
}
