package inventory

import (
	"fmt"

	goerrors "github.com/goliatone/go-errors"
)

const TextCodeMalformedResponse = "MALFORMED_RESPONSE"

// ErrMalformedResponse is returned by NormalizeItems for a valid JSON body
// that is neither an item array nor a wrapper around one.
var ErrMalformedResponse = goerrors.New("unexpected item list shape", goerrors.CategoryInternal).
	WithTextCode(TextCodeMalformedResponse).
	WithCode(goerrors.CodeInternal)

// IsMalformedResponse checks for ErrMalformedResponse
func IsMalformedResponse(err error) bool {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr != nil {
		return richErr.TextCode == TextCodeMalformedResponse
	}
	return false
}

// RequestFailedError is returned for any non-2xx response.
type RequestFailedError struct {
	Status  int
	Message string
	Method  string
	Path    string
}

func (e *RequestFailedError) Error() string {
	return e.Message
}

// fallbackMessage is used when the body carries no message
func fallbackMessage(status int) string {
	return fmt.Sprintf("API error: %d", status)
}
