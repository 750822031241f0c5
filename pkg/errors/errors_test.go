package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", fmt.Errorf("loading: %w", ErrDocumentNotFound), http.StatusNotFound},
		{"invalid", ErrInvalidInput, http.StatusBadRequest},
		{"model", ModelUnavailable("generator", errors.New("boom")), http.StatusServiceUnavailable},
		{"forbidden", ErrForbidden, http.StatusForbidden},
		{"timeout", ErrTimeout, http.StatusGatewayTimeout},
		{"app error wins", New(ErrInvalidInput, http.StatusRequestEntityTooLarge, "too big"), http.StatusRequestEntityTooLarge},
		{"unknown", errors.New("other"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatusCode(tt.err); got != tt.want {
				t.Errorf("HTTPStatusCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestModelUnavailableKeepsCause(t *testing.T) {
	err := ModelUnavailable("detector", context.DeadlineExceeded)
	if !errors.Is(err, ErrModelUnavailable) {
		t.Error("expected ErrModelUnavailable in chain")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("expected cause in chain")
	}
}
