package stockroom

import (
	"context"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
)

// LoginMessage carries the credentials for a login attempt
type LoginMessage struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (m LoginMessage) Type() string { return "user.login" }

func (m LoginMessage) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Email, validation.Required, is.Email),
		validation.Field(&m.Password, validation.Required),
	)
}

// ManagerOption customizes Manager construction.
type ManagerOption func(*Manager)

// WithManagerLogger overrides the logger.
func WithManagerLogger(logger Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithActivitySink wires the sink receiving auth activity events.
func WithActivitySink(sink ActivitySink) ManagerOption {
	return func(m *Manager) {
		m.activity = normalizeActivitySink(sink)
	}
}

// WithManagerClock injects a custom clock (useful for tests).
func WithManagerClock(clock func() time.Time) ManagerOption {
	return func(m *Manager) {
		if clock != nil {
			m.now = clock
		}
	}
}

// WithGlobalSignOut makes Logout also revoke the tokens at the provider.
func WithGlobalSignOut() ManagerOption {
	return func(m *Manager) {
		m.globalSignOut = true
	}
}

// WithStateMachine replaces the default AuthStateMachine.
func WithStateMachine(sm *AuthStateMachine) ManagerOption {
	return func(m *Manager) {
		if sm != nil {
			m.machine = sm
		}
	}
}

// Manager owns the authentication lifecycle: it restores a previous
// session, runs the login, sign up and password reset flows, and publishes
// the resulting state. It never exposes tokens, only whether the user is
// authenticated and the derived profile.
type Manager struct {
	provider IdentityProvider
	store    *SessionStore
	machine  *AuthStateMachine
	activity ActivitySink
	logger   Logger
	now      func() time.Time

	globalSignOut bool

	signUp          *SignUpHandler
	confirmSignUp   *ConfirmSignUpHandler
	forgotPassword  *ForgotPasswordHandler
	confirmPassword *ConfirmPasswordHandler

	mu      sync.RWMutex
	profile *UserProfile
	loading bool

	// flowMu serializes the final settle of restore and login against
	// logout. epoch is bumped by every logout under flowMu.
	flowMu sync.Mutex
	epoch  uint64
}

// NewManager creates a Manager in the loading state. Call RestoreSession
// once at startup to settle it.
func NewManager(provider IdentityProvider, store *SessionStore, opts ...ManagerOption) *Manager {
	if store == nil {
		store = NewSessionStore(provider, nil)
	}

	m := &Manager{
		provider: provider,
		store:    store,
		activity: noopActivitySink{},
		logger:   defLogger{},
		now:      time.Now,
		loading:  true,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	if m.machine == nil {
		m.machine = NewAuthStateMachine(WithStateMachineClock(m.now))
	}

	m.machine.Subscribe(func(change StateChange) {
		recordActivity(context.Background(), m.activity, m.logger, ActivityEvent{
			EventType:  ActivityEventStateChanged,
			FromState:  change.From,
			ToState:    change.To,
			OccurredAt: change.OccurredAt,
			Metadata: map[string]any{
				"reason": change.Reason,
			},
		})
	})

	m.signUp = NewSignUpHandler(provider).WithActivitySink(m.activity).WithLogger(m.logger)
	m.confirmSignUp = NewConfirmSignUpHandler(provider).WithActivitySink(m.activity).WithLogger(m.logger)
	m.forgotPassword = NewForgotPasswordHandler(provider).WithActivitySink(m.activity).WithLogger(m.logger)
	m.confirmPassword = NewConfirmPasswordHandler(provider).WithActivitySink(m.activity).WithLogger(m.logger)

	return m
}

// Store returns the session store API clients read bearer tokens from
func (m *Manager) Store() *SessionStore {
	return m.store
}

// RestoreSession reconstructs the session from a previously issued identity
// handle. Failures are logged and leave the manager unauthenticated.
func (m *Manager) RestoreSession(ctx context.Context) AuthState {
	defer m.markLoaded()

	if _, err := m.machine.Transition(AuthStateRestoring, WithTransitionReason("restore session")); err != nil {
		m.logger.Warn("restore session skipped: %v", err)
		return m.machine.Current()
	}

	epoch := m.currentEpoch()

	profile, username, err := m.restore(ctx)

	m.flowMu.Lock()
	defer m.flowMu.Unlock()

	if m.epoch != epoch {
		m.logger.Debug("session restore superseded by logout")
		return m.machine.Current()
	}

	if err != nil {
		restoreErr := withMetadata(ErrSessionRestore, err, map[string]any{
			"username": username,
		})
		m.logger.Error("%s: %v", restoreErr.Message, err)
		recordActivity(ctx, m.activity, m.logger, ActivityEvent{
			EventType:  ActivityEventSessionRestoreFailure,
			Username:   username,
			OccurredAt: m.now(),
			Metadata: map[string]any{
				"error": err.Error(),
			},
		})
		m.discardSession(ctx)
		return m.settle(AuthStateUnauthenticated, nil, "session restore failed")
	}

	if profile == nil {
		m.discardSession(ctx)
		return m.settle(AuthStateUnauthenticated, nil, "no valid session")
	}

	state := m.settle(AuthStateAuthenticated, profile, "session restored")
	recordActivity(ctx, m.activity, m.logger, ActivityEvent{
		EventType:  ActivityEventSessionRestored,
		Username:   username,
		OccurredAt: m.now(),
	})
	return state
}

// restore returns a nil profile without error when there is nothing valid
// to restore.
func (m *Manager) restore(ctx context.Context) (*UserProfile, string, error) {
	has, err := m.store.HasIdentity(ctx)
	if err != nil {
		return nil, "", err
	}
	if !has {
		return nil, "", nil
	}

	session, err := m.store.Current(ctx)
	if err != nil {
		if IsNoSession(err) {
			return nil, "", nil
		}
		return nil, "", err
	}

	if !session.IsValid(m.now()) {
		return nil, session.Username(), nil
	}

	attrs, err := m.provider.GetUserAttributes(ctx, session.AccessToken())
	if err != nil {
		return nil, session.Username(), err
	}

	profile, err := DeriveProfile(attrs)
	if err != nil {
		return nil, session.Username(), err
	}

	return &profile, session.Username(), nil
}

// Login authenticates with the provider and establishes a session. On
// failure the provider error is returned unchanged and no partial session
// is left behind.
func (m *Manager) Login(ctx context.Context, email, password string) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during login")
	default:
	}

	msg := LoginMessage{Email: email, Password: password}
	if err := msg.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid login request")
	}

	epoch := m.currentEpoch()
	previous := m.machine.Current()
	if _, err := m.machine.Transition(AuthStateAuthenticating, WithTransitionReason("login")); err != nil {
		return err
	}

	tokens, err := m.provider.Authenticate(ctx, msg.Email, msg.Password)
	if err != nil {
		m.loginFailed(ctx, msg.Email, epoch, previous, false, err)
		return err
	}

	if m.currentEpoch() != epoch {
		m.loginFailed(ctx, msg.Email, epoch, previous, false, ErrLoginSuperseded)
		return ErrLoginSuperseded
	}

	session, err := m.store.Commit(ctx, msg.Email, tokens)
	if err != nil {
		m.loginFailed(ctx, msg.Email, epoch, previous, true, err)
		return err
	}

	attrs, err := m.provider.GetUserAttributes(ctx, session.AccessToken())
	if err != nil {
		m.loginFailed(ctx, msg.Email, epoch, previous, true, err)
		return err
	}

	profile, err := DeriveProfile(attrs)
	if err != nil {
		m.loginFailed(ctx, msg.Email, epoch, previous, true, err)
		return err
	}

	m.flowMu.Lock()
	if m.epoch != epoch {
		m.flowMu.Unlock()
		m.loginFailed(ctx, msg.Email, epoch, previous, true, ErrLoginSuperseded)
		return ErrLoginSuperseded
	}
	m.settle(AuthStateAuthenticated, &profile, "login succeeded")
	m.flowMu.Unlock()
	m.markLoaded()

	recordActivity(ctx, m.activity, m.logger, ActivityEvent{
		EventType:  ActivityEventLoginSuccess,
		Username:   msg.Email,
		OccurredAt: m.now(),
	})

	return nil
}

// loginFailed rolls back to the state held before the attempt. Once the new
// tokens were committed the previous session is gone, so the manager falls
// back to unauthenticated. A logout during the attempt owns the state, so
// only the committed tokens are dropped.
func (m *Manager) loginFailed(ctx context.Context, email string, epoch uint64, previous AuthState, committed bool, cause error) {
	m.flowMu.Lock()
	superseded := m.epoch != epoch

	if committed {
		m.discardSession(ctx)
	}

	if !superseded {
		target := AuthStateUnauthenticated
		var profile *UserProfile
		if !committed && previous == AuthStateAuthenticated {
			target = previous
			profile = m.currentProfile()
		}
		m.settle(target, profile, "login failed")
	}
	m.flowMu.Unlock()

	recordActivity(ctx, m.activity, m.logger, ActivityEvent{
		EventType:  ActivityEventLoginFailure,
		Username:   email,
		OccurredAt: m.now(),
		Metadata: map[string]any{
			"error": cause.Error(),
			"code":  ProviderErrorCode(cause),
		},
	})
}

// SignUp registers a new identity with the email as its only attribute
func (m *Manager) SignUp(ctx context.Context, email, password string) (*SignUpResult, error) {
	var result *SignUpResult
	err := m.signUp.Execute(ctx, SignUpMessage{
		Email:    email,
		Password: password,
		OnResponse: func(r *SignUpResult) {
			result = r
		},
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ConfirmSignUp submits the confirmation code delivered after SignUp
func (m *Manager) ConfirmSignUp(ctx context.Context, email, code string) error {
	return m.confirmSignUp.Execute(ctx, ConfirmSignUpMessage{
		Email: email,
		Code:  code,
	})
}

// ForgotPassword asks the provider to deliver a reset code
func (m *Manager) ForgotPassword(ctx context.Context, email string) (*CodeDelivery, error) {
	var delivery *CodeDelivery
	err := m.forgotPassword.Execute(ctx, ForgotPasswordMessage{
		Email: email,
		OnResponse: func(d *CodeDelivery) {
			delivery = d
		},
	})
	if err != nil {
		return nil, err
	}
	return delivery, nil
}

// ConfirmPassword sets a new password using the delivered reset code
func (m *Manager) ConfirmPassword(ctx context.Context, email, code, newPassword string) error {
	return m.confirmPassword.Execute(ctx, ConfirmPasswordMessage{
		Email:       email,
		Code:        code,
		NewPassword: newPassword,
	})
}

// Logout discards the local session. It never fails and is idempotent.
func (m *Manager) Logout(ctx context.Context) {
	m.flowMu.Lock()
	defer m.flowMu.Unlock()
	m.epoch++

	current := m.store.snapshot()
	username := ""
	if current != nil {
		username = current.Username()
	}

	if m.globalSignOut && current != nil && current.AccessToken() != "" {
		if err := m.provider.SignOut(ctx, current.AccessToken()); err != nil {
			m.logger.Warn("global sign out error: %v", err)
		}
	}

	if err := m.store.Clear(ctx); err != nil {
		m.logger.Warn("session clear error: %v", err)
	}

	previous := m.machine.Current()
	m.settle(AuthStateUnauthenticated, nil, "logout")
	m.markLoaded()

	if previous != AuthStateUnauthenticated || username != "" {
		recordActivity(ctx, m.activity, m.logger, ActivityEvent{
			EventType:  ActivityEventLogout,
			Username:   username,
			OccurredAt: m.now(),
		})
	}
}

// IsAuthenticated reports whether a profile is established
func (m *Manager) IsAuthenticated() bool {
	return m.machine.Current() == AuthStateAuthenticated
}

// IsLoading is true until the first session restore completes
func (m *Manager) IsLoading() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loading
}

func (m *Manager) State() AuthState {
	return m.machine.Current()
}

// User returns the derived profile of the authenticated user
func (m *Manager) User() (UserProfile, bool) {
	profile := m.currentProfile()
	if profile == nil {
		return UserProfile{}, false
	}
	return *profile, true
}

// Subscribe registers a listener for state changes and returns a function
// removing it.
func (m *Manager) Subscribe(listener StateListener) func() {
	return m.machine.Subscribe(listener)
}

// settle stores the profile before publishing the state so listeners
// observe a consistent view.
func (m *Manager) settle(target AuthState, profile *UserProfile, reason string) AuthState {
	m.mu.Lock()
	m.profile = profile
	m.mu.Unlock()

	if _, err := m.machine.Transition(target, WithTransitionReason(reason)); err != nil {
		m.logger.Warn("auth state transition rejected: %v", err)
		if _, err := m.machine.Transition(target, WithTransitionReason(reason), WithForceTransition()); err != nil {
			m.logger.Error("forced auth state transition failed: %v", err)
		}
	}

	return m.machine.Current()
}

func (m *Manager) currentEpoch() uint64 {
	m.flowMu.Lock()
	defer m.flowMu.Unlock()
	return m.epoch
}

// discardSession drops the in-memory session and the cached handle.
func (m *Manager) discardSession(ctx context.Context) {
	if err := m.store.Clear(ctx); err != nil {
		m.logger.Warn("session clear error: %v", err)
	}
}

func (m *Manager) currentProfile() *UserProfile {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.profile
}

func (m *Manager) markLoaded() {
	m.mu.Lock()
	m.loading = false
	m.mu.Unlock()
}
