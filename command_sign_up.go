package stockroom

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
)

type SignUpMessage struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	OnResponse func(result *SignUpResult)
}

func (m SignUpMessage) Type() string { return "user.signup" }

func (m SignUpMessage) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Email, validation.Required, is.Email),
		validation.Field(&m.Password, validation.Required),
	)
}

type SignUpHandler struct {
	provider IdentityProvider
	activity ActivitySink
	logger   Logger
	now      func() time.Time
}

// NewSignUpHandler creates a handler with sane defaults.
func NewSignUpHandler(provider IdentityProvider) *SignUpHandler {
	return &SignUpHandler{
		provider: provider,
		activity: noopActivitySink{},
		logger:   defLogger{},
		now:      time.Now,
	}
}

// WithActivitySink sets the sink used to emit sign up events.
func (h *SignUpHandler) WithActivitySink(sink ActivitySink) *SignUpHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *SignUpHandler) WithLogger(logger Logger) *SignUpHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *SignUpHandler) Execute(ctx context.Context, event SignUpMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during sign up",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *SignUpHandler) execute(ctx context.Context, event SignUpMessage) error {
	if err := event.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid sign up request")
	}

	// the identifier doubles as the single required attribute
	result, err := h.provider.SignUp(ctx, event.Email, event.Password, Attributes{
		AttributeEmail: event.Email,
	})
	if err != nil {
		h.logger.Error("sign up provider error: %v", err)
		return err
	}

	if result == nil {
		result = &SignUpResult{}
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType:  ActivityEventSignUp,
		Username:   event.Email,
		OccurredAt: h.now(),
		Metadata: map[string]any{
			"user_confirmed": result.UserConfirmed,
		},
	})

	if event.OnResponse != nil {
		event.OnResponse(result)
	}

	return nil
}
