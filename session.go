package stockroom

import (
	"fmt"
	"time"
)

// Session is the provider issued proof of an authenticated identity.
// It is owned by the SessionStore and never handed to presentation code.
type Session struct {
	username  string
	tokens    Tokens
	expiresAt time.Time
}

// NewSession builds a Session, deriving its expiry from the exp claims of the
// ID and access tokens. Tokens.ExpiresAt is used when neither carries one.
func NewSession(username string, tokens Tokens) *Session {
	expiresAt := earliest(
		expiryOrZero(tokens.IDToken),
		expiryOrZero(tokens.AccessToken),
	)
	if expiresAt.IsZero() {
		expiresAt = tokens.ExpiresAt
	}

	if username == "" && tokens.IDToken != "" {
		if claims, err := ParseUnverifiedClaims(tokens.IDToken); err == nil {
			username = claims.Username()
		}
	}

	return &Session{
		username:  username,
		tokens:    tokens,
		expiresAt: expiresAt,
	}
}

func (s *Session) Username() string {
	return s.username
}

func (s *Session) IDToken() string {
	return s.tokens.IDToken
}

func (s *Session) AccessToken() string {
	return s.tokens.AccessToken
}

func (s *Session) RefreshToken() string {
	return s.tokens.RefreshToken
}

func (s *Session) ExpiresAt() time.Time {
	return s.expiresAt
}

// IsValid reports whether both tokens are present and unexpired at now
func (s *Session) IsValid(now time.Time) bool {
	if s == nil || s.tokens.IDToken == "" || s.tokens.AccessToken == "" {
		return false
	}
	if s.expiresAt.IsZero() {
		return false
	}
	return now.Before(s.expiresAt)
}

// CanRefresh reports whether the session carries a refresh token
func (s *Session) CanRefresh() bool {
	return s != nil && s.tokens.RefreshToken != ""
}

func (s *Session) cached(now time.Time) *CachedSession {
	tokens := s.tokens
	tokens.ExpiresAt = s.expiresAt
	return &CachedSession{
		Username:  s.username,
		Tokens:    tokens,
		UpdatedAt: now,
	}
}

// String never prints tokens
func (s *Session) String() string {
	if s == nil {
		return "<no session>"
	}
	return fmt.Sprintf(
		"user=%s exp=%s refreshable=%t",
		s.username,
		s.expiresAt.Format(time.RFC1123),
		s.tokens.RefreshToken != "",
	)
}

func expiryOrZero(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	exp, err := tokenExpiry(raw)
	if err != nil {
		return time.Time{}
	}
	return exp
}

func earliest(times ...time.Time) time.Time {
	var out time.Time
	for _, t := range times {
		if t.IsZero() {
			continue
		}
		if out.IsZero() || t.Before(out) {
			out = t
		}
	}
	return out
}
