package stockroom

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
)

// ForgotPasswordMessage starts the reset flow. The provider sends a code.
type ForgotPasswordMessage struct {
	Email      string `json:"email"`
	OnResponse func(delivery *CodeDelivery)
}

func (m ForgotPasswordMessage) Type() string { return "user.password_reset" }

func (m ForgotPasswordMessage) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Email, validation.Required, is.Email),
	)
}

// ConfirmPasswordMessage finishes the reset flow with the delivered code.
type ConfirmPasswordMessage struct {
	Email       string `json:"email"`
	Code        string `json:"code"`
	NewPassword string `json:"new_password"`
}

func (m ConfirmPasswordMessage) Type() string { return "user.password_reset.confirm" }

func (m ConfirmPasswordMessage) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Email, validation.Required, is.Email),
		validation.Field(&m.Code, validation.Required),
		validation.Field(&m.NewPassword, validation.Required),
	)
}

type ForgotPasswordHandler struct {
	provider IdentityProvider
	activity ActivitySink
	logger   Logger
	now      func() time.Time
}

func NewForgotPasswordHandler(provider IdentityProvider) *ForgotPasswordHandler {
	return &ForgotPasswordHandler{
		provider: provider,
		activity: noopActivitySink{},
		logger:   defLogger{},
		now:      time.Now,
	}
}

func (h *ForgotPasswordHandler) WithActivitySink(sink ActivitySink) *ForgotPasswordHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *ForgotPasswordHandler) WithLogger(logger Logger) *ForgotPasswordHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *ForgotPasswordHandler) Execute(ctx context.Context, event ForgotPasswordMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset initialization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ForgotPasswordHandler) execute(ctx context.Context, event ForgotPasswordMessage) error {
	if err := event.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid password reset request")
	}

	delivery, err := h.provider.ForgotPassword(ctx, event.Email)
	if err != nil {
		h.logger.Error("forgot password provider error: %v", err)
		return err
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType:  ActivityEventPasswordResetRequested,
		Username:   event.Email,
		OccurredAt: h.now(),
	})

	if event.OnResponse != nil {
		event.OnResponse(delivery)
	}

	return nil
}

type ConfirmPasswordHandler struct {
	provider IdentityProvider
	activity ActivitySink
	logger   Logger
	now      func() time.Time
}

func NewConfirmPasswordHandler(provider IdentityProvider) *ConfirmPasswordHandler {
	return &ConfirmPasswordHandler{
		provider: provider,
		activity: noopActivitySink{},
		logger:   defLogger{},
		now:      time.Now,
	}
}

func (h *ConfirmPasswordHandler) WithActivitySink(sink ActivitySink) *ConfirmPasswordHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *ConfirmPasswordHandler) WithLogger(logger Logger) *ConfirmPasswordHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *ConfirmPasswordHandler) Execute(ctx context.Context, event ConfirmPasswordMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset finalization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ConfirmPasswordHandler) execute(ctx context.Context, event ConfirmPasswordMessage) error {
	if err := event.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid password reset confirmation")
	}

	if err := h.provider.ConfirmForgotPassword(ctx, event.Email, event.Code, event.NewPassword); err != nil {
		h.logger.Error("confirm password provider error: %v", err)
		return err
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType:  ActivityEventPasswordResetSuccess,
		Username:   event.Email,
		OccurredAt: h.now(),
	})

	return nil
}
