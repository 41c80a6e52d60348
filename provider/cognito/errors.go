package cognito

import (
	"errors"

	"github.com/aws/smithy-go"
	"github.com/goliatone/go-stockroom"
)

// ProviderName is reported in stockroom.ProviderError.Provider.
const ProviderName = "cognito"

// mapError converts an SDK error into a *stockroom.ProviderError carrying the
// Cognito error code and message.
func mapError(operation string, err error) error {
	if err == nil {
		return nil
	}

	perr := &stockroom.ProviderError{
		Provider:  ProviderName,
		Operation: operation,
		Err:       err,
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		perr.Code = apiErr.ErrorCode()
		perr.Message = apiErr.ErrorMessage()
		return perr
	}

	perr.Message = err.Error()
	return perr
}

func challengeError(operation, challenge string) error {
	return &stockroom.ProviderError{
		Provider:  ProviderName,
		Operation: operation,
		Code:      stockroom.ProviderCodeChallengeRequired,
		Message:   "unsupported challenge " + challenge,
	}
}

var errEmptyResponse = errors.New("empty authentication result")
