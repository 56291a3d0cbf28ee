// Package apperr defines the error taxonomy of the payment pipeline.
package apperr

import (
	"errors"
	"net/http"
)

var (
	// ErrValidation: bad or missing input. Rejected before any state mutates.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound: payment, basket, or address absent.
	ErrNotFound = errors.New("not found")

	// ErrGateway: the verification call failed or returned non-success.
	// Recoverable; the caller may retry verify later. Never transitions
	// the payment.
	ErrGateway = errors.New("gateway error")

	// ErrConsistency: the payment succeeded but order creation failed.
	// Money has moved; this class must page an operator.
	ErrConsistency = errors.New("order not created after successful payment")
)

func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrGateway):
		return "gateway"
	case errors.Is(err, ErrConsistency):
		return "consistency"
	default:
		return "internal"
	}
}

func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK

	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest

	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, ErrGateway):
		return http.StatusBadGateway

	default:
		return http.StatusInternalServerError
	}
}
