package stockroom

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
)

type ConfirmSignUpMessage struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

func (m ConfirmSignUpMessage) Type() string { return "user.signup.confirm" }

func (m ConfirmSignUpMessage) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Email, validation.Required, is.Email),
		validation.Field(&m.Code, validation.Required),
	)
}

type ConfirmSignUpHandler struct {
	provider IdentityProvider
	activity ActivitySink
	logger   Logger
	now      func() time.Time
}

func NewConfirmSignUpHandler(provider IdentityProvider) *ConfirmSignUpHandler {
	return &ConfirmSignUpHandler{
		provider: provider,
		activity: noopActivitySink{},
		logger:   defLogger{},
		now:      time.Now,
	}
}

func (h *ConfirmSignUpHandler) WithActivitySink(sink ActivitySink) *ConfirmSignUpHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *ConfirmSignUpHandler) WithLogger(logger Logger) *ConfirmSignUpHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *ConfirmSignUpHandler) Execute(ctx context.Context, event ConfirmSignUpMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during sign up confirmation")
	default:
		return h.execute(ctx, event)
	}
}

func (h *ConfirmSignUpHandler) execute(ctx context.Context, event ConfirmSignUpMessage) error {
	if err := event.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid confirmation request")
	}

	if err := h.provider.ConfirmSignUp(ctx, event.Email, event.Code); err != nil {
		h.logger.Error("confirm sign up provider error: %v", err)
		return err
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType:  ActivityEventSignUpConfirmed,
		Username:   event.Email,
		OccurredAt: h.now(),
	})

	return nil
}
