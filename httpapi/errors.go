package httpapi

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-stockroom"
	"github.com/goliatone/go-stockroom/inventory"
)

// ErrorResponse is the JSON body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// statusFor maps an error to an HTTP status and a machine readable code.
func statusFor(err error) (int, string) {
	var reqErr *inventory.RequestFailedError
	if errors.As(err, &reqErr) {
		return reqErr.Status, "REQUEST_FAILED"
	}

	var perr *stockroom.ProviderError
	if errors.As(err, &perr) {
		if perr.IsAuthFailure() {
			return fiber.StatusUnauthorized, perr.Code
		}
		return fiber.StatusBadRequest, perr.Code
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fiberErr.Code, ""
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr != nil {
		switch richErr.Category {
		case goerrors.CategoryValidation, goerrors.CategoryBadInput:
			return fiber.StatusBadRequest, textCodeOr(richErr, "VALIDATION_ERROR")
		case goerrors.CategoryAuth:
			return fiber.StatusUnauthorized, textCodeOr(richErr, "UNAUTHORIZED")
		}
		if richErr.Code >= 400 && richErr.Code < 600 {
			return richErr.Code, richErr.TextCode
		}
	}

	return fiber.StatusInternalServerError, "INTERNAL_ERROR"
}

func textCodeOr(err *goerrors.Error, fallback string) string {
	if err.TextCode != "" {
		return err.TextCode
	}
	return fallback
}

func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	status, code := statusFor(err)
	if status >= fiber.StatusInternalServerError {
		s.logger.Error("%s %s: %v", c.Method(), c.Path(), err)
	} else {
		s.logger.Debug("%s %s: %v", c.Method(), c.Path(), err)
	}

	return c.Status(status).JSON(ErrorResponse{
		Error: err.Error(),
		Code:  code,
	})
}
