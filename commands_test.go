package stockroom_test

import (
	"context"
	"errors"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-stockroom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func assertValidationError(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)

	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr))
	assert.Equal(t, goerrors.CategoryValidation, richErr.Category)
}

func TestSignUpHandler(t *testing.T) {
	provider := &MockIdentityProvider{}
	sink := &recordingSink{}
	provider.On("SignUp", mock.Anything, "ada@example.com", "s3cret", stockroom.Attributes{"email": "ada@example.com"}).
		Return(&stockroom.SignUpResult{UserConfirmed: true}, nil).Once()

	handler := stockroom.NewSignUpHandler(provider).WithActivitySink(sink).WithLogger(nopLogger{})

	var got *stockroom.SignUpResult
	err := handler.Execute(context.Background(), stockroom.SignUpMessage{
		Email:      "ada@example.com",
		Password:   "s3cret",
		OnResponse: func(result *stockroom.SignUpResult) { got = result },
	})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.False(t, got.ConfirmationRequired())

	event, ok := sink.last(stockroom.ActivityEventSignUp)
	require.True(t, ok)
	assert.Equal(t, true, event.Metadata["user_confirmed"])
	provider.AssertExpectations(t)
}

func TestSignUpHandlerValidation(t *testing.T) {
	provider := &MockIdentityProvider{}
	handler := stockroom.NewSignUpHandler(provider).WithLogger(nopLogger{})

	assertValidationError(t, handler.Execute(context.Background(), stockroom.SignUpMessage{Email: "nope", Password: "x"}))
	assertValidationError(t, handler.Execute(context.Background(), stockroom.SignUpMessage{Email: "ada@example.com"}))
	provider.AssertNotCalled(t, "SignUp", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSignUpHandlerPassesProviderErrors(t *testing.T) {
	provider := &MockIdentityProvider{}
	sink := &recordingSink{}
	perr := &stockroom.ProviderError{Code: stockroom.ProviderCodeUsernameExists, Message: "User already exists"}
	provider.On("SignUp", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, perr)

	handler := stockroom.NewSignUpHandler(provider).WithActivitySink(sink).WithLogger(nopLogger{})

	called := false
	err := handler.Execute(context.Background(), stockroom.SignUpMessage{
		Email:      "ada@example.com",
		Password:   "s3cret",
		OnResponse: func(*stockroom.SignUpResult) { called = true },
	})
	assert.ErrorIs(t, err, perr)
	assert.False(t, called)
	assert.Zero(t, sink.count(stockroom.ActivityEventSignUp))
}

func TestConfirmSignUpHandler(t *testing.T) {
	provider := &MockIdentityProvider{}
	provider.On("ConfirmSignUp", mock.Anything, "ada@example.com", "123456").Return(nil).Once()

	handler := stockroom.NewConfirmSignUpHandler(provider).WithLogger(nopLogger{})

	require.NoError(t, handler.Execute(context.Background(), stockroom.ConfirmSignUpMessage{Email: "ada@example.com", Code: "123456"}))
	assertValidationError(t, handler.Execute(context.Background(), stockroom.ConfirmSignUpMessage{Email: "ada@example.com"}))
	provider.AssertExpectations(t)
}

func TestForgotPasswordHandler(t *testing.T) {
	provider := &MockIdentityProvider{}
	delivery := &stockroom.CodeDelivery{Destination: "a***@e***", Medium: "EMAIL"}
	provider.On("ForgotPassword", mock.Anything, "ada@example.com").Return(delivery, nil).Once()

	handler := stockroom.NewForgotPasswordHandler(provider).WithLogger(nopLogger{})

	var got *stockroom.CodeDelivery
	require.NoError(t, handler.Execute(context.Background(), stockroom.ForgotPasswordMessage{
		Email:      "ada@example.com",
		OnResponse: func(d *stockroom.CodeDelivery) { got = d },
	}))
	assert.Equal(t, delivery, got)

	assertValidationError(t, handler.Execute(context.Background(), stockroom.ForgotPasswordMessage{}))
	provider.AssertExpectations(t)
}

func TestConfirmPasswordHandler(t *testing.T) {
	provider := &MockIdentityProvider{}
	provider.On("ConfirmForgotPassword", mock.Anything, "ada@example.com", "123456", "n3w").
		Return(errors.New("expired")).Once()

	handler := stockroom.NewConfirmPasswordHandler(provider).WithLogger(nopLogger{})

	err := handler.Execute(context.Background(), stockroom.ConfirmPasswordMessage{
		Email:       "ada@example.com",
		Code:        "123456",
		NewPassword: "n3w",
	})
	assert.EqualError(t, err, "expired")

	assertValidationError(t, handler.Execute(context.Background(), stockroom.ConfirmPasswordMessage{
		Email: "ada@example.com",
		Code:  "123456",
	}))
}

func TestHandlersHonorCancelledContext(t *testing.T) {
	provider := &MockIdentityProvider{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	errs := []error{
		stockroom.NewSignUpHandler(provider).Execute(ctx, stockroom.SignUpMessage{Email: "ada@example.com", Password: "x"}),
		stockroom.NewConfirmSignUpHandler(provider).Execute(ctx, stockroom.ConfirmSignUpMessage{Email: "ada@example.com", Code: "1"}),
		stockroom.NewForgotPasswordHandler(provider).Execute(ctx, stockroom.ForgotPasswordMessage{Email: "ada@example.com"}),
		stockroom.NewConfirmPasswordHandler(provider).Execute(ctx, stockroom.ConfirmPasswordMessage{Email: "ada@example.com", Code: "1", NewPassword: "x"}),
	}

	for _, err := range errs {
		require.Error(t, err)
		var richErr *goerrors.Error
		require.True(t, goerrors.As(err, &richErr))
		assert.Equal(t, goerrors.CategoryOperation, richErr.Category)
	}
	assert.Empty(t, provider.Calls)
}

func TestMessageTypes(t *testing.T) {
	assert.Equal(t, "user.login", stockroom.LoginMessage{}.Type())
	assert.Equal(t, "user.signup", stockroom.SignUpMessage{}.Type())
	assert.Equal(t, "user.signup.confirm", stockroom.ConfirmSignUpMessage{}.Type())
	assert.Equal(t, "user.password_reset", stockroom.ForgotPasswordMessage{}.Type())
	assert.Equal(t, "user.password_reset.confirm", stockroom.ConfirmPasswordMessage{}.Type())
}

func TestMultiActivitySinkReturnsFirstError(t *testing.T) {
	first := &recordingSink{}
	boom := errors.New("boom")
	sink := stockroom.MultiActivitySink{
		first,
		nil,
		stockroom.ActivitySinkFunc(func(context.Context, stockroom.ActivityEvent) error { return boom }),
		stockroom.ActivitySinkFunc(func(context.Context, stockroom.ActivityEvent) error { return errors.New("later") }),
	}

	err := sink.Record(context.Background(), stockroom.ActivityEvent{EventType: stockroom.ActivityEventLogout})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, first.count(stockroom.ActivityEventLogout))
}
