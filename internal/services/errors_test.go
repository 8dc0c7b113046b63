package services_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"songforge/internal/services"
)

func TestWrapPreservesMarker(t *testing.T) {
	inner := errors.New("boom")
	err := services.Wrap(services.ErrGenerationFailed, "session", "commit", "generator call", inner)
	if !errors.Is(err, services.ErrGenerationFailed) {
		t.Fatalf("wrapped error lost marker: %v", err)
	}
	if !errors.Is(err, inner) {
		t.Fatalf("wrapped error lost cause: %v", err)
	}
}

func TestWrapWithoutCause(t *testing.T) {
	err := services.Wrap(services.ErrNotEntitled, "session", "select_key", "plan lacks key override", nil)
	if !errors.Is(err, services.ErrNotEntitled) {
		t.Fatalf("wrapped error lost marker: %v", err)
	}
	want := "not entitled: session: select_key: plan lacks key override"
	if err.Error() != want {
		t.Fatalf("message = %q, want %q", err.Error(), want)
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{services.ErrInsufficientTokens, http.StatusPaymentRequired},
		{services.ErrNotEntitled, http.StatusForbidden},
		{services.ErrNotFound, http.StatusNotFound},
		{services.ErrIncompleteIntake, http.StatusUnprocessableEntity},
		{services.ErrStaleTransition, http.StatusConflict},
		{services.ErrVoiceProfileMissing, http.StatusConflict},
		{services.ErrValidation, http.StatusBadRequest},
		{services.ErrGenerationFailed, http.StatusBadGateway},
		{errors.New("unexpected"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		wrapped := tc.err
		if wrapped != nil {
			wrapped = fmt.Errorf("outer: %w", wrapped)
		}
		if got := services.HTTPStatus(wrapped); got != tc.want {
			t.Fatalf("HTTPStatus(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
