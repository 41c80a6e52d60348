package stockroom

import (
	"context"
	"fmt"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Attributes holds the user attributes returned by the identity provider
type Attributes map[string]string

// Tokens is the token set issued by the identity provider after a
// successful authentication or refresh
type Tokens struct {
	IDToken      string    `json:"id_token"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// CodeDelivery describes where a confirmation or reset code was sent
type CodeDelivery struct {
	Destination   string `json:"destination,omitempty"`
	Medium        string `json:"medium,omitempty"`
	AttributeName string `json:"attribute_name,omitempty"`
}

// SignUpResult is returned by a successful registration
type SignUpResult struct {
	UserConfirmed bool          `json:"user_confirmed"`
	UserSub       string        `json:"user_sub,omitempty"`
	CodeDelivery  *CodeDelivery `json:"code_delivery,omitempty"`
}

// ConfirmationRequired reports whether the caller must submit a confirmation code
func (r *SignUpResult) ConfirmationRequired() bool {
	return r != nil && !r.UserConfirmed
}

// IdentityProvider is the external service issuing and validating credentials
type IdentityProvider interface {
	SignUp(ctx context.Context, username, password string, attrs Attributes) (*SignUpResult, error)
	ConfirmSignUp(ctx context.Context, username, code string) error
	Authenticate(ctx context.Context, username, password string) (*Tokens, error)
	RefreshSession(ctx context.Context, username, refreshToken string) (*Tokens, error)
	ForgotPassword(ctx context.Context, username string) (*CodeDelivery, error)
	ConfirmForgotPassword(ctx context.Context, username, code, newPassword string) error
	GetUserAttributes(ctx context.Context, accessToken string) (Attributes, error)
	SignOut(ctx context.Context, accessToken string) error
}

// CachedSession is the identity handle persisted between process runs
type CachedSession struct {
	Username  string    `json:"username"`
	Tokens    Tokens    `json:"tokens"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SessionCache persists the last authenticated identity handle.
// Load returns ErrNoCachedSession when nothing is stored.
type SessionCache interface {
	Load(ctx context.Context) (*CachedSession, error)
	Save(ctx context.Context, session *CachedSession) error
	Clear(ctx context.Context) error
}

// TokenVerifier validates ID tokens before a cached session is trusted
type TokenVerifier interface {
	Verify(token string) (*IDTokenClaims, error)
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] STOCKROOM "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] STOCKROOM "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] STOCKROOM "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] STOCKROOM "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
