package cognito

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/goliatone/go-stockroom"
)

// API is the subset of the Cognito client used by the provider.
type API interface {
	SignUp(ctx context.Context, params *cip.SignUpInput, optFns ...func(*cip.Options)) (*cip.SignUpOutput, error)
	ConfirmSignUp(ctx context.Context, params *cip.ConfirmSignUpInput, optFns ...func(*cip.Options)) (*cip.ConfirmSignUpOutput, error)
	InitiateAuth(ctx context.Context, params *cip.InitiateAuthInput, optFns ...func(*cip.Options)) (*cip.InitiateAuthOutput, error)
	ForgotPassword(ctx context.Context, params *cip.ForgotPasswordInput, optFns ...func(*cip.Options)) (*cip.ForgotPasswordOutput, error)
	ConfirmForgotPassword(ctx context.Context, params *cip.ConfirmForgotPasswordInput, optFns ...func(*cip.Options)) (*cip.ConfirmForgotPasswordOutput, error)
	GetUser(ctx context.Context, params *cip.GetUserInput, optFns ...func(*cip.Options)) (*cip.GetUserOutput, error)
	GlobalSignOut(ctx context.Context, params *cip.GlobalSignOutInput, optFns ...func(*cip.Options)) (*cip.GlobalSignOutOutput, error)
}

// Option customizes the provider.
type Option func(*IdentityProvider)

// WithClock injects a custom clock used to compute token expiry.
func WithClock(clock func() time.Time) Option {
	return func(p *IdentityProvider) {
		if clock != nil {
			p.now = clock
		}
	}
}

// IdentityProvider implements stockroom.IdentityProvider backed by Cognito.
type IdentityProvider struct {
	api          API
	clientID     string
	clientSecret string
	now          func() time.Time
}

var _ stockroom.IdentityProvider = (*IdentityProvider)(nil)

// NewIdentityProvider wraps api for the app client in cfg.
func NewIdentityProvider(api API, cfg Config, opts ...Option) *IdentityProvider {
	p := &IdentityProvider{
		api:          api,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		now:          time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// New loads an AWS config for cfg.Region and returns a ready provider.
func New(ctx context.Context, cfg Config, opts ...Option) (*IdentityProvider, error) {
	api, err := NewAPI(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewIdentityProvider(api, cfg, opts...), nil
}

func (p *IdentityProvider) SignUp(ctx context.Context, username, password string, attrs stockroom.Attributes) (*stockroom.SignUpResult, error) {
	input := &cip.SignUpInput{
		ClientId:       aws.String(p.clientID),
		Username:       aws.String(username),
		Password:       aws.String(password),
		SecretHash:     p.secretHash(username),
		UserAttributes: toAttributeTypes(attrs),
	}

	out, err := p.api.SignUp(ctx, input)
	if err != nil {
		return nil, mapError("SignUp", err)
	}

	return &stockroom.SignUpResult{
		UserConfirmed: out.UserConfirmed,
		UserSub:       aws.ToString(out.UserSub),
		CodeDelivery:  toCodeDelivery(out.CodeDeliveryDetails),
	}, nil
}

func (p *IdentityProvider) ConfirmSignUp(ctx context.Context, username, code string) error {
	_, err := p.api.ConfirmSignUp(ctx, &cip.ConfirmSignUpInput{
		ClientId:         aws.String(p.clientID),
		Username:         aws.String(username),
		ConfirmationCode: aws.String(code),
		SecretHash:       p.secretHash(username),
	})
	return mapError("ConfirmSignUp", err)
}

func (p *IdentityProvider) Authenticate(ctx context.Context, username, password string) (*stockroom.Tokens, error) {
	params := map[string]string{
		"USERNAME": username,
		"PASSWORD": password,
	}
	if hash := p.secretHash(username); hash != nil {
		params["SECRET_HASH"] = *hash
	}

	out, err := p.api.InitiateAuth(ctx, &cip.InitiateAuthInput{
		AuthFlow:       types.AuthFlowTypeUserPasswordAuth,
		ClientId:       aws.String(p.clientID),
		AuthParameters: params,
	})
	if err != nil {
		return nil, mapError("InitiateAuth", err)
	}

	return p.tokens("InitiateAuth", out, "")
}

// RefreshSession exchanges a refresh token for new ID and access tokens.
// Cognito does not rotate the refresh token here; the caller keeps its own.
func (p *IdentityProvider) RefreshSession(ctx context.Context, username, refreshToken string) (*stockroom.Tokens, error) {
	params := map[string]string{
		"REFRESH_TOKEN": refreshToken,
	}
	if hash := p.secretHash(username); hash != nil {
		params["SECRET_HASH"] = *hash
	}

	out, err := p.api.InitiateAuth(ctx, &cip.InitiateAuthInput{
		AuthFlow:       types.AuthFlowTypeRefreshTokenAuth,
		ClientId:       aws.String(p.clientID),
		AuthParameters: params,
	})
	if err != nil {
		return nil, mapError("RefreshSession", err)
	}

	return p.tokens("RefreshSession", out, refreshToken)
}

func (p *IdentityProvider) ForgotPassword(ctx context.Context, username string) (*stockroom.CodeDelivery, error) {
	out, err := p.api.ForgotPassword(ctx, &cip.ForgotPasswordInput{
		ClientId:   aws.String(p.clientID),
		Username:   aws.String(username),
		SecretHash: p.secretHash(username),
	})
	if err != nil {
		return nil, mapError("ForgotPassword", err)
	}
	return toCodeDelivery(out.CodeDeliveryDetails), nil
}

func (p *IdentityProvider) ConfirmForgotPassword(ctx context.Context, username, code, newPassword string) error {
	_, err := p.api.ConfirmForgotPassword(ctx, &cip.ConfirmForgotPasswordInput{
		ClientId:         aws.String(p.clientID),
		Username:         aws.String(username),
		ConfirmationCode: aws.String(code),
		Password:         aws.String(newPassword),
		SecretHash:       p.secretHash(username),
	})
	return mapError("ConfirmForgotPassword", err)
}

func (p *IdentityProvider) GetUserAttributes(ctx context.Context, accessToken string) (stockroom.Attributes, error) {
	out, err := p.api.GetUser(ctx, &cip.GetUserInput{
		AccessToken: aws.String(accessToken),
	})
	if err != nil {
		return nil, mapError("GetUser", err)
	}

	attrs := stockroom.Attributes{}
	for _, attr := range out.UserAttributes {
		name := aws.ToString(attr.Name)
		if name == "" {
			continue
		}
		attrs[name] = aws.ToString(attr.Value)
	}
	return attrs, nil
}

// SignOut revokes every token issued to the user (GlobalSignOut).
func (p *IdentityProvider) SignOut(ctx context.Context, accessToken string) error {
	_, err := p.api.GlobalSignOut(ctx, &cip.GlobalSignOutInput{
		AccessToken: aws.String(accessToken),
	})
	return mapError("GlobalSignOut", err)
}

func (p *IdentityProvider) tokens(operation string, out *cip.InitiateAuthOutput, refreshToken string) (*stockroom.Tokens, error) {
	if out == nil {
		return nil, mapError(operation, errEmptyResponse)
	}

	if out.AuthenticationResult == nil {
		if out.ChallengeName != "" {
			return nil, challengeError(operation, string(out.ChallengeName))
		}
		return nil, mapError(operation, errEmptyResponse)
	}

	result := out.AuthenticationResult
	tokens := &stockroom.Tokens{
		IDToken:      aws.ToString(result.IdToken),
		AccessToken:  aws.ToString(result.AccessToken),
		RefreshToken: aws.ToString(result.RefreshToken),
	}
	if tokens.RefreshToken == "" {
		tokens.RefreshToken = refreshToken
	}
	if result.ExpiresIn > 0 {
		tokens.ExpiresAt = p.now().Add(time.Duration(result.ExpiresIn) * time.Second)
	}
	return tokens, nil
}

func (p *IdentityProvider) secretHash(username string) *string {
	if p.clientSecret == "" {
		return nil
	}
	return aws.String(SecretHash(username, p.clientID, p.clientSecret))
}

func toAttributeTypes(attrs stockroom.Attributes) []types.AttributeType {
	if len(attrs) == 0 {
		return nil
	}
	out := make([]types.AttributeType, 0, len(attrs))
	for name, value := range attrs {
		out = append(out, types.AttributeType{
			Name:  aws.String(name),
			Value: aws.String(value),
		})
	}
	return out
}

func toCodeDelivery(details *types.CodeDeliveryDetailsType) *stockroom.CodeDelivery {
	if details == nil {
		return nil
	}
	return &stockroom.CodeDelivery{
		Destination:   aws.ToString(details.Destination),
		Medium:        string(details.DeliveryMedium),
		AttributeName: aws.ToString(details.AttributeName),
	}
}
