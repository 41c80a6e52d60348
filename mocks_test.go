package stockroom_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-stockroom"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockIdentityProvider implements stockroom.IdentityProvider
type MockIdentityProvider struct {
	mock.Mock
}

func (m *MockIdentityProvider) SignUp(ctx context.Context, username, password string, attrs stockroom.Attributes) (*stockroom.SignUpResult, error) {
	args := m.Called(ctx, username, password, attrs)
	result, _ := args.Get(0).(*stockroom.SignUpResult)
	return result, args.Error(1)
}

func (m *MockIdentityProvider) ConfirmSignUp(ctx context.Context, username, code string) error {
	args := m.Called(ctx, username, code)
	return args.Error(0)
}

func (m *MockIdentityProvider) Authenticate(ctx context.Context, username, password string) (*stockroom.Tokens, error) {
	args := m.Called(ctx, username, password)
	tokens, _ := args.Get(0).(*stockroom.Tokens)
	return tokens, args.Error(1)
}

func (m *MockIdentityProvider) RefreshSession(ctx context.Context, username, refreshToken string) (*stockroom.Tokens, error) {
	args := m.Called(ctx, username, refreshToken)
	tokens, _ := args.Get(0).(*stockroom.Tokens)
	return tokens, args.Error(1)
}

func (m *MockIdentityProvider) ForgotPassword(ctx context.Context, username string) (*stockroom.CodeDelivery, error) {
	args := m.Called(ctx, username)
	delivery, _ := args.Get(0).(*stockroom.CodeDelivery)
	return delivery, args.Error(1)
}

func (m *MockIdentityProvider) ConfirmForgotPassword(ctx context.Context, username, code, newPassword string) error {
	args := m.Called(ctx, username, code, newPassword)
	return args.Error(0)
}

func (m *MockIdentityProvider) GetUserAttributes(ctx context.Context, accessToken string) (stockroom.Attributes, error) {
	args := m.Called(ctx, accessToken)
	attrs, _ := args.Get(0).(stockroom.Attributes)
	return attrs, args.Error(1)
}

func (m *MockIdentityProvider) SignOut(ctx context.Context, accessToken string) error {
	args := m.Called(ctx, accessToken)
	return args.Error(0)
}

// MockVerifier implements stockroom.TokenVerifier
type MockVerifier struct {
	mock.Mock
}

func (m *MockVerifier) Verify(token string) (*stockroom.IDTokenClaims, error) {
	args := m.Called(token)
	claims, _ := args.Get(0).(*stockroom.IDTokenClaims)
	return claims, args.Error(1)
}

type recordingSink struct {
	mu     sync.Mutex
	events []stockroom.ActivityEvent
}

func (s *recordingSink) Record(_ context.Context, event stockroom.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) count(eventType stockroom.ActivityEventType) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.events {
		if e.EventType == eventType {
			n++
		}
	}
	return n
}

func (s *recordingSink) last(eventType stockroom.ActivityEventType) (stockroom.ActivityEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].EventType == eventType {
			return s.events[i], true
		}
	}
	return stockroom.ActivityEvent{}, false
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

// opaqueTokens are not JWTs, so the session expiry comes from ExpiresAt
func opaqueTokens(suffix string, expiresAt time.Time) *stockroom.Tokens {
	return &stockroom.Tokens{
		IDToken:      "id-" + suffix,
		AccessToken:  "access-" + suffix,
		RefreshToken: "refresh-" + suffix,
		ExpiresAt:    expiresAt,
	}
}

func unsignedJWT(t *testing.T, claims jwt.Claims) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return raw
}
