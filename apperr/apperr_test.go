package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrValidation, "validation"},
		{ErrNotFound, "not_found"},
		{ErrGateway, "gateway"},
		{ErrConsistency, "consistency"},
		{errors.New("boom"), "internal"},
		{fmt.Errorf("verify NGN-123: %w", ErrGateway), "gateway"},
	}
	for _, tt := range tests {
		if got := Kind(tt.err); got != tt.want {
			t.Errorf("Kind(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestHTTPStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{ErrValidation, http.StatusBadRequest},
		{ErrNotFound, http.StatusNotFound},
		{ErrGateway, http.StatusBadGateway},
		{ErrConsistency, http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := HTTPStatus(tt.err); got != tt.want {
			t.Errorf("HTTPStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
