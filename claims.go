package stockroom

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenUseID = "id"

// IDTokenClaims are the claims carried by a provider issued ID token
type IDTokenClaims struct {
	jwt.RegisteredClaims
	TokenUse        string `json:"token_use,omitempty"`
	Email           string `json:"email,omitempty"`
	EmailVerified   bool   `json:"email_verified,omitempty"`
	Name            string `json:"name,omitempty"`
	CognitoUsername string `json:"cognito:username,omitempty"`
	AuthTime        int64  `json:"auth_time,omitempty"`
}

// Expires returns the expiration time
func (c *IDTokenClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issued at time
func (c *IDTokenClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}

// Username returns the provider username, falling back to the subject
func (c *IDTokenClaims) Username() string {
	if c.CognitoUsername != "" {
		return c.CognitoUsername
	}
	return c.RegisteredClaims.Subject
}

// ParseUnverifiedClaims decodes an ID token without checking its signature.
// Use it for expiry bookkeeping on tokens we already received from the provider.
func ParseUnverifiedClaims(raw string) (*IDTokenClaims, error) {
	claims := &IDTokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, withMetadata(ErrInvalidToken, err, map[string]any{
			"cause": err.Error(),
		})
	}
	return claims, nil
}

// tokenExpiry returns the exp claim of any JWT, zero when absent
func tokenExpiry(raw string) (time.Time, error) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return time.Time{}, withMetadata(ErrInvalidToken, err, map[string]any{
			"cause": err.Error(),
		})
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, nil
	}
	return claims.ExpiresAt.Time, nil
}
