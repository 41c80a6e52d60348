package stockroom

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

// VerifierConfig configures JWKS backed ID token verification
type VerifierConfig struct {
	// JWKSURL is the provider key set, see CognitoJWKSURL.
	JWKSURL string

	// Issuer expected in the iss claim.
	Issuer string

	// Audience is the app client ID expected in the aud claim.
	Audience string

	// RefreshInterval for the background JWKS refresh.
	// Default: 1 hour.
	RefreshInterval time.Duration

	Logger Logger
}

// JWKSVerifier implements TokenVerifier with jwt/v5 and a key function
type JWKSVerifier struct {
	keyfunc  jwt.Keyfunc
	issuer   string
	audience string
	now      func() time.Time
	jwks     *keyfunc.JWKS
}

// CognitoIssuer returns the issuer URL of a Cognito user pool
func CognitoIssuer(region, userPoolID string) string {
	return fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/%s", region, userPoolID)
}

// CognitoJWKSURL returns the key set URL of a Cognito user pool
func CognitoJWKSURL(region, userPoolID string) string {
	return CognitoIssuer(region, userPoolID) + "/.well-known/jwks.json"
}

// NewJWKSVerifier fetches the key set and keeps it refreshed in the background
func NewJWKSVerifier(cfg VerifierConfig) (*JWKSVerifier, error) {
	if strings.TrimSpace(cfg.JWKSURL) == "" {
		return nil, goerrors.New("stockroom: jwks url is required", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = defLogger{}
	}

	interval := cfg.RefreshInterval
	if interval <= 0 {
		interval = time.Hour
	}

	jwks, err := keyfunc.Get(cfg.JWKSURL, keyfunc.Options{
		RefreshErrorHandler: func(err error) {
			logger.Error("failed to do a background refresh of JWT set: %s", err)
		},
		RefreshInterval:   interval,
		RefreshRateLimit:  time.Minute * 5,
		RefreshTimeout:    time.Second * 10,
		RefreshUnknownKID: true,
	})
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryExternal, "stockroom: failed to get JWK set")
	}

	v := NewKeyfuncVerifier(jwks.Keyfunc, cfg.Issuer, cfg.Audience)
	v.jwks = jwks
	return v, nil
}

// NewKeyfuncVerifier builds a verifier around an existing key function
func NewKeyfuncVerifier(kf jwt.Keyfunc, issuer, audience string) *JWKSVerifier {
	return &JWKSVerifier{
		keyfunc:  kf,
		issuer:   issuer,
		audience: audience,
		now:      time.Now,
	}
}

// WithClock overrides the verification clock (useful for tests)
func (v *JWKSVerifier) WithClock(now func() time.Time) *JWKSVerifier {
	if now != nil {
		v.now = now
	}
	return v
}

// Verify checks signature, issuer, audience, expiry and token use
func (v *JWKSVerifier) Verify(raw string) (*IDTokenClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	token, err := jwt.ParseWithClaims(raw, &IDTokenClaims{}, v.keyfunc, opts...)
	if err != nil {
		return nil, withMetadata(ErrInvalidToken, err, map[string]any{
			"cause":   err.Error(),
			"expired": jwtExpired(err),
		})
	}

	claims, ok := token.Claims.(*IDTokenClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	if claims.TokenUse != tokenUseID {
		return nil, withMetadata(ErrInvalidToken, nil, map[string]any{
			"token_use": claims.TokenUse,
		})
	}

	return claims, nil
}

// Close stops the background key refresh, if any
func (v *JWKSVerifier) Close() {
	if v.jwks != nil {
		v.jwks.EndBackground()
	}
}

func jwtExpired(err error) bool {
	return errors.Is(err, jwt.ErrTokenExpired)
}
