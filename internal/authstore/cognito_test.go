package authstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCognito struct {
	initiate  func(*cip.InitiateAuthInput) (*cip.InitiateAuthOutput, error)
	respond   func(*cip.RespondToAuthChallengeInput) (*cip.RespondToAuthChallengeOutput, error)
	forgotErr error
	confirm   *cip.ConfirmForgotPasswordInput
	signedOut string
}

func (f *fakeCognito) InitiateAuth(_ context.Context, in *cip.InitiateAuthInput, _ ...func(*cip.Options)) (*cip.InitiateAuthOutput, error) {
	return f.initiate(in)
}

func (f *fakeCognito) RespondToAuthChallenge(_ context.Context, in *cip.RespondToAuthChallengeInput, _ ...func(*cip.Options)) (*cip.RespondToAuthChallengeOutput, error) {
	return f.respond(in)
}

func (f *fakeCognito) ForgotPassword(context.Context, *cip.ForgotPasswordInput, ...func(*cip.Options)) (*cip.ForgotPasswordOutput, error) {
	return &cip.ForgotPasswordOutput{}, f.forgotErr
}

func (f *fakeCognito) ConfirmForgotPassword(_ context.Context, in *cip.ConfirmForgotPasswordInput, _ ...func(*cip.Options)) (*cip.ConfirmForgotPasswordOutput, error) {
	f.confirm = in
	return &cip.ConfirmForgotPasswordOutput{}, nil
}

func (f *fakeCognito) GlobalSignOut(_ context.Context, in *cip.GlobalSignOutInput, _ ...func(*cip.Options)) (*cip.GlobalSignOutOutput, error) {
	f.signedOut = aws.ToString(in.AccessToken)
	return &cip.GlobalSignOutOutput{}, nil
}

func authResult(access string) *types.AuthenticationResultType {
	return &types.AuthenticationResultType{
		AccessToken:  aws.String(access),
		IdToken:      aws.String("id-" + access),
		RefreshToken: aws.String("refresh-" + access),
		ExpiresIn:    3600,
	}
}

func TestCognito_SignIn(t *testing.T) {
	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	api := &fakeCognito{initiate: func(in *cip.InitiateAuthInput) (*cip.InitiateAuthOutput, error) {
		assert.Equal(t, types.AuthFlowTypeUserPasswordAuth, in.AuthFlow)
		assert.Equal(t, "client-1", aws.ToString(in.ClientId))
		assert.Equal(t, "casey", in.AuthParameters["USERNAME"])
		return &cip.InitiateAuthOutput{AuthenticationResult: authResult("a1")}, nil
	}}
	p := newCognitoProvider(api, "client-1")
	p.now = func() time.Time { return now }

	sess, err := p.SignIn(context.Background(), "casey", "pw")
	require.NoError(t, err)
	assert.Equal(t, "id-a1", sess.Bearer())
	assert.Equal(t, "refresh-a1", sess.RefreshToken)
	assert.Equal(t, now.Add(time.Hour), sess.ExpiresAt)
}

func TestCognito_NewPasswordChallenge(t *testing.T) {
	api := &fakeCognito{
		initiate: func(*cip.InitiateAuthInput) (*cip.InitiateAuthOutput, error) {
			return &cip.InitiateAuthOutput{
				ChallengeName: types.ChallengeNameTypeNewPasswordRequired,
				Session:       aws.String("cog-session"),
			}, nil
		},
		respond: func(in *cip.RespondToAuthChallengeInput) (*cip.RespondToAuthChallengeOutput, error) {
			assert.Equal(t, "cog-session", aws.ToString(in.Session))
			assert.Equal(t, "newpass1", in.ChallengeResponses["NEW_PASSWORD"])
			return &cip.RespondToAuthChallengeOutput{AuthenticationResult: authResult("a2")}, nil
		},
	}
	p := newCognitoProvider(api, "client-1")
	ctx := context.Background()

	_, err := p.SignIn(ctx, "casey", "temp")
	var ce *ChallengeError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "cog-session", ce.Challenge)

	sess, err := p.CompleteNewPassword(ctx, "casey", "newpass1", ce.Challenge)
	require.NoError(t, err)
	assert.Equal(t, "a2", sess.AccessToken)
}

func TestCognito_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"not authorized", &types.NotAuthorizedException{Message: aws.String("Incorrect username or password.")}, ErrInvalidCredentials},
		{"unknown user", &types.UserNotFoundException{}, ErrInvalidCredentials},
		{"reset required", &types.PasswordResetRequiredException{}, ErrPasswordResetRequired},
		{"weak password", &types.InvalidPasswordException{Message: aws.String("Password not long enough")}, ErrInvalidPassword},
		{"code mismatch", &types.CodeMismatchException{}, ErrInvalidCode},
		{"expired code", &types.ExpiredCodeException{}, ErrInvalidCode},
		{"throttled", &types.TooManyRequestsException{}, ErrServiceUnavailable},
		{"network", errors.New("dial tcp: i/o timeout"), ErrServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeCognito{initiate: func(*cip.InitiateAuthInput) (*cip.InitiateAuthOutput, error) {
				return nil, tt.err
			}}
			_, err := newCognitoProvider(api, "c").SignIn(context.Background(), "u", "p")
			assert.ErrorIs(t, err, tt.want)
		})
	}

	err := mapCognitoError(&types.InvalidPasswordException{Message: aws.String("Password not long enough")})
	assert.Equal(t, "Password not long enough", detailFor(err), "provider message shown for password policy")
}

func TestCognito_RefreshResetSignOut(t *testing.T) {
	api := &fakeCognito{initiate: func(in *cip.InitiateAuthInput) (*cip.InitiateAuthOutput, error) {
		assert.Equal(t, types.AuthFlowTypeRefreshTokenAuth, in.AuthFlow)
		assert.Equal(t, "r1", in.AuthParameters["REFRESH_TOKEN"])
		res := authResult("a3")
		res.RefreshToken = nil
		return &cip.InitiateAuthOutput{AuthenticationResult: res}, nil
	}}
	p := newCognitoProvider(api, "client-1")
	ctx := context.Background()

	sess, err := p.Refresh(ctx, "casey", "r1")
	require.NoError(t, err)
	assert.Equal(t, "a3", sess.AccessToken)
	assert.Empty(t, sess.RefreshToken)

	require.NoError(t, p.ForgotPassword(ctx, "casey"))
	require.NoError(t, p.ConfirmForgotPassword(ctx, "casey", "123456", "newpass1"))
	assert.Equal(t, "123456", aws.ToString(api.confirm.ConfirmationCode))

	require.NoError(t, p.SignOut(ctx, sess))
	assert.Equal(t, "a3", api.signedOut)

	api.initiate = func(*cip.InitiateAuthInput) (*cip.InitiateAuthOutput, error) {
		return &cip.InitiateAuthOutput{}, nil
	}
	_, err = p.SignIn(ctx, "casey", "pw")
	assert.ErrorIs(t, err, ErrServiceUnavailable, "missing result")
}
