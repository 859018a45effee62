package controller

import (
	"errors"
	"net/http"
	"strings"

	"testrelay-portal/models"
	"testrelay-portal/transport"

	"github.com/go-playground/validator/v10"
)

// formatValidationErrors formats validation errors into readable messages
func formatValidationErrors(err error) string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err.Error()
	}

	var errorMessages []string
	for _, fieldError := range validationErrors {
		switch fieldError.Tag() {
		case "required":
			errorMessages = append(errorMessages, fieldError.Field()+" is required")
		case "min":
			errorMessages = append(errorMessages, fieldError.Field()+" must be at least "+fieldError.Param()+" characters")
		case "max":
			errorMessages = append(errorMessages, fieldError.Field()+" must be at most "+fieldError.Param()+" characters")
		case "gt":
			errorMessages = append(errorMessages, fieldError.Field()+" must be greater than "+fieldError.Param())
		default:
			errorMessages = append(errorMessages, fieldError.Field()+" is invalid")
		}
	}
	return strings.Join(errorMessages, "; ")
}

// sessionError maps token and link errors onto an HTTP reply
func sessionError(err error) (int, models.APIResponse) {
	switch {
	case errors.Is(err, models.ErrNoSession):
		return http.StatusUnauthorized, models.Failure(http.StatusUnauthorized,
			"No signed-in session", "AuthenticationError", err.Error())
	case transport.IsTerminal(err), errors.Is(err, models.ErrSessionExpired):
		return http.StatusUnauthorized, models.Failure(http.StatusUnauthorized,
			"Session expired, sign in again", "SessionExpired", err.Error())
	case errors.Is(err, models.ErrProvisioning):
		return http.StatusServiceUnavailable, models.Failure(http.StatusServiceUnavailable,
			"Claims provisioning failed", "ProvisioningError", err.Error())
	case errors.Is(err, models.ErrClaimsMissing):
		return http.StatusServiceUnavailable, models.Failure(http.StatusServiceUnavailable,
			"Session claims are not available yet", "SessionLoading", err.Error())
	default:
		return http.StatusBadGateway, models.Failure(http.StatusBadGateway,
			"Upstream request failed", "UpstreamError", err.Error())
	}
}
