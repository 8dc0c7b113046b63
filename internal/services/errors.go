package services

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrValidation marks malformed or out-of-range input.
	ErrValidation = errors.New("validation error")
	// ErrIncompleteIntake marks an intake missing required fields.
	ErrIncompleteIntake = errors.New("incomplete intake")
	// ErrInsufficientTokens marks a debit attempt exceeding the balance.
	ErrInsufficientTokens = errors.New("insufficient tokens")
	// ErrNotEntitled marks an operation the user's plan does not grant.
	ErrNotEntitled = errors.New("not entitled")
	// ErrVoiceProfileMissing marks a personalization step with no profile.
	ErrVoiceProfileMissing = errors.New("voice profile missing")
	// ErrStaleTransition marks a session update that lost a concurrency race.
	ErrStaleTransition = errors.New("stale transition")
	// ErrGenerationFailed marks an external generation service failure.
	ErrGenerationFailed = errors.New("generation failed")
	// ErrNotFound marks a missing session, profile, or request.
	ErrNotFound = errors.New("not found")
	// ErrConfiguration marks unusable service configuration.
	ErrConfiguration = errors.New("configuration error")
)

// Wrap builds an error message that includes operation context while tagging it
// with the provided marker for later status classification. The marker should
// be one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrValidation
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// HTTPStatus maps an engine error to the HTTP status the API should return.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInsufficientTokens):
		return http.StatusPaymentRequired
	case errors.Is(err, ErrNotEntitled):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrIncompleteIntake):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrVoiceProfileMissing), errors.Is(err, ErrStaleTransition):
		return http.StatusConflict
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrGenerationFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
