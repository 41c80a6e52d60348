package stockroom

import (
	"context"
	"sync"
	"time"
)

// SessionStoreOption customizes SessionStore construction.
type SessionStoreOption func(*SessionStore)

// WithSessionStoreClock injects a custom clock (useful for tests).
func WithSessionStoreClock(clock func() time.Time) SessionStoreOption {
	return func(s *SessionStore) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithSessionStoreLogger overrides the logger.
func WithSessionStoreLogger(logger Logger) SessionStoreOption {
	return func(s *SessionStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithTokenVerifier checks the ID token signature of cached sessions before
// they are trusted.
func WithTokenVerifier(verifier TokenVerifier) SessionStoreOption {
	return func(s *SessionStore) {
		s.verifier = verifier
	}
}

// SessionStore holds the current authenticated session. The Manager is its
// only writer; API clients and presentation code read through BearerToken.
type SessionStore struct {
	provider IdentityProvider
	cache    SessionCache
	verifier TokenVerifier
	logger   Logger
	now      func() time.Time

	mu      sync.RWMutex
	current *Session

	// serializes refreshes so concurrent readers trigger one round-trip
	refreshMu sync.Mutex
}

// NewSessionStore returns a store backed by the given cache. A nil cache
// keeps the handle in memory only.
func NewSessionStore(provider IdentityProvider, cache SessionCache, opts ...SessionStoreOption) *SessionStore {
	if cache == nil {
		cache = NewMemorySessionCache()
	}

	s := &SessionStore{
		provider: provider,
		cache:    cache,
		logger:   defLogger{},
		now:      time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

// HasIdentity reports whether a previously issued identity handle exists
func (s *SessionStore) HasIdentity(ctx context.Context) (bool, error) {
	if s.snapshot() != nil {
		return true, nil
	}

	if _, err := s.cache.Load(ctx); err != nil {
		if IsNoCachedSession(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Current returns the current session, loading it from the cache and
// refreshing it through the provider when it expired. The returned session
// may be invalid when it cannot be refreshed.
func (s *SessionStore) Current(ctx context.Context) (*Session, error) {
	session := s.snapshot()
	if session == nil {
		loaded, err := s.load(ctx)
		if err != nil {
			return nil, err
		}
		session = loaded
	}

	if session.IsValid(s.now()) || !session.CanRefresh() {
		return session, nil
	}

	return s.refresh(ctx, session)
}

// Commit stores a freshly issued token set as the current session
func (s *SessionStore) Commit(ctx context.Context, username string, tokens *Tokens) (*Session, error) {
	if tokens == nil {
		return nil, ErrNoSession
	}

	session := NewSession(username, *tokens)

	if err := s.cache.Save(ctx, session.cached(s.now())); err != nil {
		s.logger.Warn("session cache save error: %v", err)
	}

	s.mu.Lock()
	s.current = session
	s.mu.Unlock()

	return session, nil
}

// Clear drops the in-memory session and the cached handle
func (s *SessionStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()

	return s.cache.Clear(ctx)
}

// BearerToken returns the ID token of a valid session. It never fails: any
// problem resolving the session yields ("", false) and the request goes out
// without an Authorization header.
func (s *SessionStore) BearerToken(ctx context.Context) (string, bool) {
	session, err := s.Current(ctx)
	if err != nil {
		if !IsNoSession(err) {
			s.logger.Debug("bearer token unavailable: %v", err)
		}
		return "", false
	}

	if !session.IsValid(s.now()) {
		return "", false
	}

	return session.IDToken(), true
}

func (s *SessionStore) snapshot() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func (s *SessionStore) load(ctx context.Context) (*Session, error) {
	cached, err := s.cache.Load(ctx)
	if err != nil {
		if IsNoCachedSession(err) {
			return nil, ErrNoSession
		}
		return nil, err
	}

	session := NewSession(cached.Username, cached.Tokens)

	if s.verifier != nil && session.IsValid(s.now()) {
		if _, err := s.verifier.Verify(session.IDToken()); err != nil {
			s.logger.Warn("cached session rejected by verifier: %v", err)
			if clearErr := s.cache.Clear(ctx); clearErr != nil {
				s.logger.Warn("session cache clear error: %v", clearErr)
			}
			return nil, err
		}
	}

	s.mu.Lock()
	if s.current == nil {
		s.current = session
	} else {
		session = s.current
	}
	s.mu.Unlock()

	return session, nil
}

func (s *SessionStore) refresh(ctx context.Context, stale *Session) (*Session, error) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	// another reader may have refreshed while we waited
	if current := s.snapshot(); current != nil && current != stale && current.IsValid(s.now()) {
		return current, nil
	}

	tokens, err := s.provider.RefreshSession(ctx, stale.Username(), stale.RefreshToken())
	if err != nil {
		return nil, err
	}
	if tokens == nil {
		return nil, ErrNoSession
	}

	if tokens.RefreshToken == "" {
		tokens.RefreshToken = stale.RefreshToken()
	}

	return s.Commit(ctx, stale.Username(), tokens)
}
