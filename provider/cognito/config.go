package cognito

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	goerrors "github.com/goliatone/go-errors"
)

// Config holds the user pool app client settings.
type Config struct {
	// Region of the user pool, e.g. "us-east-1".
	Region string

	// UserPoolID is informational for the provider itself; it is used to
	// build issuer and JWKS URLs for token verification.
	UserPoolID string

	// ClientID is the app client ID.
	ClientID string

	// ClientSecret is optional. When set, requests carry a SECRET_HASH.
	ClientSecret string
}

func (c Config) validate() error {
	var missing []string
	if strings.TrimSpace(c.Region) == "" {
		missing = append(missing, "region")
	}
	if strings.TrimSpace(c.ClientID) == "" {
		missing = append(missing, "client_id")
	}
	if len(missing) == 0 {
		return nil
	}
	return goerrors.New("cognito: invalid configuration", goerrors.CategoryValidation).
		WithCode(goerrors.CodeBadRequest).
		WithMetadata(map[string]any{"missing": missing})
}

// NewAPI builds a Cognito client for the configured region. The public user
// pool operations do not need AWS credentials, so anonymous ones are used.
func NewAPI(ctx context.Context, cfg Config) (*cognitoidentityprovider.Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(aws.AnonymousCredentials{}),
	)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "cognito: failed to load aws config").
			WithMetadata(map[string]any{"region": cfg.Region})
	}

	return cognitoidentityprovider.NewFromConfig(awsCfg), nil
}
