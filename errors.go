package stockroom

import (
	"errors"
	"fmt"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeMissingAttribute  = "MISSING_ATTRIBUTE"
	TextCodeSessionRestore    = "SESSION_RESTORE_FAILED"
	TextCodeNoSession         = "NO_SESSION"
	TextCodeNoCachedSession   = "NO_CACHED_SESSION"
	TextCodeInvalidTransition = "INVALID_AUTH_STATE_TRANSITION"
	TextCodeInvalidToken      = "INVALID_ID_TOKEN"
	TextCodeLoginSuperseded   = "LOGIN_SUPERSEDED"
)

// ErrMissingAttribute is returned when profile derivation lacks a required attribute
var ErrMissingAttribute = goerrors.New("required user attribute is missing", goerrors.CategoryValidation).
	WithTextCode(TextCodeMissingAttribute).
	WithCode(goerrors.CodeBadRequest)

// ErrSessionRestore marks a failed session restore. It is logged, never surfaced.
var ErrSessionRestore = goerrors.New("unable to restore session", goerrors.CategoryAuth).
	WithTextCode(TextCodeSessionRestore).
	WithCode(goerrors.CodeUnauthorized)

// ErrNoSession is returned when there is no valid session to act on
var ErrNoSession = goerrors.New("no active session", goerrors.CategoryAuth).
	WithTextCode(TextCodeNoSession).
	WithCode(goerrors.CodeUnauthorized)

// ErrNoCachedSession is returned by a SessionCache with nothing stored
var ErrNoCachedSession = goerrors.New("no cached session", goerrors.CategoryNotFound).
	WithTextCode(TextCodeNoCachedSession).
	WithCode(goerrors.CodeNotFound)

// ErrInvalidStateTransition is returned when an auth state change is not allowed
var ErrInvalidStateTransition = goerrors.New("invalid auth state transition", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidTransition).
	WithCode(goerrors.CodeBadRequest)

// ErrInvalidToken is returned when an ID token fails verification
var ErrInvalidToken = goerrors.New("invalid id token", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidToken).
	WithCode(goerrors.CodeUnauthorized)

// ErrLoginSuperseded is returned by a login that was overtaken by a logout
var ErrLoginSuperseded = goerrors.New("login cancelled by logout", goerrors.CategoryConflict).
	WithTextCode(TextCodeLoginSuperseded).
	WithCode(goerrors.CodeConflict)

// Provider error codes shared by provider implementations
const (
	ProviderCodeNotAuthorized     = "NotAuthorizedException"
	ProviderCodeUserNotConfirmed  = "UserNotConfirmedException"
	ProviderCodeUserNotFound      = "UserNotFoundException"
	ProviderCodeUsernameExists    = "UsernameExistsException"
	ProviderCodeInvalidPassword   = "InvalidPasswordException"
	ProviderCodeCodeMismatch      = "CodeMismatchException"
	ProviderCodeExpiredCode       = "ExpiredCodeException"
	ProviderCodeLimitExceeded     = "LimitExceededException"
	ProviderCodeChallengeRequired = "ChallengeRequired"
)

// ProviderError captures a failure reported by the identity provider
type ProviderError struct {
	Provider  string
	Operation string
	Code      string
	Message   string
	Err       error
}

func (e *ProviderError) Error() string {
	if e == nil {
		return "provider error"
	}

	scope := "provider"
	if e.Provider != "" && e.Operation != "" {
		scope = fmt.Sprintf("%s %s", e.Provider, e.Operation)
	} else if e.Provider != "" {
		scope = e.Provider
	} else if e.Operation != "" {
		scope = e.Operation
	}

	if e.Message != "" {
		return fmt.Sprintf("%s failed: %s", scope, e.Message)
	}
	if e.Code != "" {
		return fmt.Sprintf("%s failed: %s", scope, e.Code)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s failed: %v", scope, e.Err)
	}

	return fmt.Sprintf("%s failed", scope)
}

func (e *ProviderError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsAuthFailure reports whether the provider rejected the credentials or
// account state, as opposed to input or transport problems
func (e *ProviderError) IsAuthFailure() bool {
	if e == nil {
		return false
	}
	switch e.Code {
	case ProviderCodeNotAuthorized, ProviderCodeUserNotConfirmed, ProviderCodeUserNotFound, ProviderCodeChallengeRequired:
		return true
	}
	return false
}

// Metadata returns the error fields as a map, handy for rich errors and logs
func (e *ProviderError) Metadata() map[string]any {
	if e == nil {
		return nil
	}

	meta := map[string]any{}
	if e.Provider != "" {
		meta["provider"] = e.Provider
	}
	if e.Operation != "" {
		meta["operation"] = e.Operation
	}
	if e.Code != "" {
		meta["code"] = e.Code
	}
	if e.Message != "" {
		meta["message"] = e.Message
	}
	return meta
}

// IsProviderError reports whether err carries a ProviderError
func IsProviderError(err error) bool {
	var perr *ProviderError
	return errors.As(err, &perr) && perr != nil
}

// ProviderErrorCode returns the provider code carried by err, if any
func ProviderErrorCode(err error) string {
	var perr *ProviderError
	if errors.As(err, &perr) && perr != nil {
		return perr.Code
	}
	return ""
}

// IsMissingAttribute checks for ErrMissingAttribute
func IsMissingAttribute(err error) bool {
	return hasTextCode(err, TextCodeMissingAttribute)
}

// IsNoCachedSession checks for ErrNoCachedSession
func IsNoCachedSession(err error) bool {
	return hasTextCode(err, TextCodeNoCachedSession)
}

// IsNoSession checks for ErrNoSession
func IsNoSession(err error) bool {
	return hasTextCode(err, TextCodeNoSession)
}

// IsLoginSuperseded checks for ErrLoginSuperseded
func IsLoginSuperseded(err error) bool {
	return hasTextCode(err, TextCodeLoginSuperseded)
}

// IsInvalidToken checks for ErrInvalidToken
func IsInvalidToken(err error) bool {
	return hasTextCode(err, TextCodeInvalidToken)
}

func hasTextCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr != nil {
		return richErr.TextCode == code
	}
	return false
}

func withMetadata(base *goerrors.Error, source error, meta map[string]any) *goerrors.Error {
	clone := base.Clone()
	if clone == nil {
		clone = base
	}
	if source != nil {
		clone.Source = source
	}
	if len(meta) > 0 {
		clone.WithMetadata(meta)
	}
	return clone
}
