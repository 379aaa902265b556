package api

import (
	"net/http"

	"sjsage522/dealrefresher/pkg/errors"

	"github.com/gin-gonic/gin"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// statusFor maps an error from the service layer to an HTTP status.
func statusFor(err error) int {
	switch errors.TypeOf(err) {
	case errors.ErrorTypeValidation:
		return http.StatusBadRequest
	case errors.ErrorTypeNotFound:
		return http.StatusNotFound
	case errors.ErrorTypeConfiguration:
		return http.StatusServiceUnavailable
	case errors.ErrorTypeNetwork, errors.ErrorTypeAuth, errors.ErrorTypeRateLimit, errors.ErrorTypeParsing:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func codeFor(err error) string {
	if t := errors.TypeOf(err); t != "" {
		return string(t)
	}
	return "internal"
}
