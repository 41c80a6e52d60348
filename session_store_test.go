package stockroom_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-stockroom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestStore(provider stockroom.IdentityProvider, cache stockroom.SessionCache, opts ...stockroom.SessionStoreOption) *stockroom.SessionStore {
	opts = append([]stockroom.SessionStoreOption{
		stockroom.WithSessionStoreClock(fixedClock),
		stockroom.WithSessionStoreLogger(nopLogger{}),
	}, opts...)
	return stockroom.NewSessionStore(provider, cache, opts...)
}

func seedCache(t *testing.T, cache stockroom.SessionCache, username string, tokens *stockroom.Tokens) {
	t.Helper()
	require.NoError(t, cache.Save(context.Background(), &stockroom.CachedSession{
		Username:  username,
		Tokens:    *tokens,
		UpdatedAt: testNow,
	}))
}

func TestSessionStoreWithoutIdentity(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(&MockIdentityProvider{}, nil)

	has, err := store.HasIdentity(ctx)
	require.NoError(t, err)
	assert.False(t, has)

	_, err = store.Current(ctx)
	assert.True(t, stockroom.IsNoSession(err))

	token, ok := store.BearerToken(ctx)
	assert.False(t, ok)
	assert.Empty(t, token)
}

func TestSessionStoreCommitPersistsHandle(t *testing.T) {
	ctx := context.Background()
	cache := stockroom.NewMemorySessionCache()
	store := newTestStore(&MockIdentityProvider{}, cache)

	session, err := store.Commit(ctx, "ada@example.com", opaqueTokens("1", testNow.Add(time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", session.Username())

	cached, err := cache.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", cached.Username)
	assert.Equal(t, "refresh-1", cached.Tokens.RefreshToken)
	assert.Equal(t, testNow, cached.UpdatedAt)

	token, ok := store.BearerToken(ctx)
	assert.True(t, ok)
	assert.Equal(t, "id-1", token)

	_, err = store.Commit(ctx, "ada@example.com", nil)
	assert.True(t, stockroom.IsNoSession(err))
}

func TestSessionStoreLoadsCachedSession(t *testing.T) {
	ctx := context.Background()
	cache := stockroom.NewMemorySessionCache()
	seedCache(t, cache, "ada@example.com", opaqueTokens("cached", testNow.Add(time.Hour)))

	store := newTestStore(&MockIdentityProvider{}, cache)

	has, err := store.HasIdentity(ctx)
	require.NoError(t, err)
	assert.True(t, has)

	session, err := store.Current(ctx)
	require.NoError(t, err)
	assert.True(t, session.IsValid(testNow))
	assert.Equal(t, "access-cached", session.AccessToken())
}

func TestSessionStoreRefreshesExpiredSession(t *testing.T) {
	ctx := context.Background()
	cache := stockroom.NewMemorySessionCache()
	seedCache(t, cache, "ada@example.com", opaqueTokens("old", testNow.Add(-time.Minute)))

	fresh := opaqueTokens("new", testNow.Add(time.Hour))
	fresh.RefreshToken = ""

	provider := &MockIdentityProvider{}
	provider.On("RefreshSession", mock.Anything, "ada@example.com", "refresh-old").Return(fresh, nil).Once()

	store := newTestStore(provider, cache)

	token, ok := store.BearerToken(ctx)
	require.True(t, ok)
	assert.Equal(t, "id-new", token)

	cached, err := cache.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "access-new", cached.Tokens.AccessToken)
	assert.Equal(t, "refresh-old", cached.Tokens.RefreshToken, "refresh token is kept when none is returned")

	provider.AssertExpectations(t)
}

func TestSessionStoreConcurrentReadersRefreshOnce(t *testing.T) {
	ctx := context.Background()
	cache := stockroom.NewMemorySessionCache()
	seedCache(t, cache, "ada@example.com", opaqueTokens("old", testNow.Add(-time.Minute)))

	provider := &MockIdentityProvider{}
	provider.On("RefreshSession", mock.Anything, "ada@example.com", "refresh-old").
		Return(opaqueTokens("new", testNow.Add(time.Hour)), nil).Once()

	store := newTestStore(provider, cache)

	var wg sync.WaitGroup
	tokens := make([]string, 8)
	for i := range tokens {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], _ = store.BearerToken(ctx)
		}(i)
	}
	wg.Wait()

	for _, token := range tokens {
		assert.Equal(t, "id-new", token)
	}
	provider.AssertNumberOfCalls(t, "RefreshSession", 1)
}

func TestSessionStoreRefreshFailureYieldsNoBearer(t *testing.T) {
	ctx := context.Background()
	cache := stockroom.NewMemorySessionCache()
	seedCache(t, cache, "ada@example.com", opaqueTokens("old", testNow.Add(-time.Minute)))

	perr := &stockroom.ProviderError{Code: stockroom.ProviderCodeNotAuthorized, Message: "Refresh Token has expired"}
	provider := &MockIdentityProvider{}
	provider.On("RefreshSession", mock.Anything, "ada@example.com", "refresh-old").Return(nil, perr)

	store := newTestStore(provider, cache)

	_, err := store.Current(ctx)
	assert.ErrorIs(t, err, perr)

	token, ok := store.BearerToken(ctx)
	assert.False(t, ok)
	assert.Empty(t, token)
}

func TestSessionStoreExpiredWithoutRefreshTokenIsReturnedInvalid(t *testing.T) {
	ctx := context.Background()
	cache := stockroom.NewMemorySessionCache()
	tokens := opaqueTokens("old", testNow.Add(-time.Minute))
	tokens.RefreshToken = ""
	seedCache(t, cache, "ada@example.com", tokens)

	store := newTestStore(&MockIdentityProvider{}, cache)

	session, err := store.Current(ctx)
	require.NoError(t, err)
	assert.False(t, session.IsValid(testNow))

	_, ok := store.BearerToken(ctx)
	assert.False(t, ok)
}

func TestSessionStoreVerifierRejectsCachedSession(t *testing.T) {
	ctx := context.Background()
	cache := stockroom.NewMemorySessionCache()
	seedCache(t, cache, "ada@example.com", opaqueTokens("cached", testNow.Add(time.Hour)))

	verifier := &MockVerifier{}
	verifier.On("Verify", "id-cached").Return(nil, stockroom.ErrInvalidToken)

	store := newTestStore(&MockIdentityProvider{}, cache, stockroom.WithTokenVerifier(verifier))

	_, err := store.Current(ctx)
	assert.True(t, stockroom.IsInvalidToken(err))

	_, err = cache.Load(ctx)
	assert.True(t, stockroom.IsNoCachedSession(err), "rejected handle is dropped")
	verifier.AssertExpectations(t)
}

type failingCache struct {
	stockroom.MemorySessionCache
}

func (*failingCache) Load(context.Context) (*stockroom.CachedSession, error) {
	return nil, errors.New("disk on fire")
}

func TestSessionStoreSurfacesCacheErrors(t *testing.T) {
	store := newTestStore(&MockIdentityProvider{}, &failingCache{})

	_, err := store.HasIdentity(context.Background())
	assert.EqualError(t, err, "disk on fire")
}

func TestSessionStoreClear(t *testing.T) {
	ctx := context.Background()
	cache := stockroom.NewMemorySessionCache()
	store := newTestStore(&MockIdentityProvider{}, cache)

	_, err := store.Commit(ctx, "ada@example.com", opaqueTokens("1", testNow.Add(time.Hour)))
	require.NoError(t, err)
	require.NoError(t, store.Clear(ctx))

	has, err := store.HasIdentity(ctx)
	require.NoError(t, err)
	assert.False(t, has)
}
